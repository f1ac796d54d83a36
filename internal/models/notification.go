package models

type NotificationType string

const (
	NotificationTypeLike    NotificationType = "like"
	NotificationTypeComment NotificationType = "comment"
	NotificationTypeFollow  NotificationType = "follow"
	NotificationTypePost    NotificationType = "post"
)

type Notification struct {
	ID               string           `json:"id"`
	Sender           User             `json:"sender"`
	NotificationType NotificationType `json:"notification_type"`
	Message          string           `json:"message"`
	PostID           string           `json:"post_id,omitempty"`
	CommentID        string           `json:"comment_id,omitempty"`
	IsRead           bool             `json:"is_read"`
	CreatedAt        string           `json:"created_at"`
	ReadAt           string           `json:"read_at,omitempty"`
}
