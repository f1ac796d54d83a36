package rest

import (
	"context"

	"social-client/internal/models"
)

type ChatAPI interface {
	GetConversations(ctx context.Context) ([]models.Conversation, error)
	GetConversation(ctx context.Context, conversationID string) (*models.ConversationDetail, error)
	SendMessage(ctx context.Context, conversationID, content string) (*models.Message, error)
	UnreadMessageCount(ctx context.Context) (int, error)
}

type PostAPI interface {
	GetPosts(ctx context.Context) ([]models.Post, error)
	GetPost(ctx context.Context, postID string) (*models.Post, error)
	LikePost(ctx context.Context, postID string) (*models.LikeResult, error)
	GetComments(ctx context.Context, postID string) ([]models.Comment, error)
	CreateComment(ctx context.Context, postID, content string) (*models.Comment, error)
}

type NotificationAPI interface {
	GetNotifications(ctx context.Context) ([]models.Notification, error)
	UnreadNotificationCount(ctx context.Context) (int, error)
	MarkNotificationRead(ctx context.Context, notificationID string) (*models.Notification, error)
	MarkAllNotificationsRead(ctx context.Context) error
	DeleteNotification(ctx context.Context, notificationID string) error
}

type AccountAPI interface {
	CurrentUser(ctx context.Context) (*models.User, error)
}

type API interface {
	ChatAPI
	PostAPI
	NotificationAPI
	AccountAPI
}
