package models

type EventType string

const (
	// Chat events
	EventTypeMessage      EventType = "message"
	EventTypeUserStatus   EventType = "user_status"
	EventTypeTyping       EventType = "typing"
	EventTypeMessagesRead EventType = "messages_read"

	// Call events
	EventTypeCallIncoming EventType = "call_incoming"
	EventTypeCallAccepted EventType = "call_accepted"
	EventTypeCallRejected EventType = "call_rejected"
	EventTypeCallEnded    EventType = "call_ended"
	EventTypeOffer        EventType = "webrtc_offer"
	EventTypeAnswer       EventType = "webrtc_answer"
	EventTypeICECandidate EventType = "webrtc_ice_candidate"

	// Post events. The server pushes initial_data right after the channel
	// opens, with the post's current likes and comments.
	EventTypeInitialData EventType = "initial_data"
	EventTypeLikeUpdate  EventType = "like_update"
	EventTypeNewComment  EventType = "new_comment"

	// Notification events
	EventTypeNotification EventType = "notification"

	// Connection status events. The first two are synthesized locally, the
	// error event comes from the server (for example on a rejected token).
	EventTypeConnectionEstablished EventType = "connection_established"
	EventTypeConnectionStatus      EventType = "connection_status"
	EventTypeError                 EventType = "error"
)

// Connection status values carried by connection events.
const (
	StatusConnected    = "connected"
	StatusDisconnected = "disconnected"
	StatusReconnecting = "reconnecting"
	StatusFailed       = "failed"
	StatusError        = "error"
	StatusUnauthorized = "unauthorized"
)

// Event is the inbound envelope. Every frame carries a type discriminator;
// the remaining fields are populated per type and zero otherwise.
type Event struct {
	Type EventType `json:"type"`

	// message
	MessageID            string `json:"message_id,omitempty"`
	Message              string `json:"message,omitempty"`
	SenderID             string `json:"sender_id,omitempty"`
	SenderUsername       string `json:"sender_username,omitempty"`
	SenderProfilePicture string `json:"sender_profile_picture,omitempty"`
	Timestamp            string `json:"timestamp,omitempty"`
	IsRead               bool   `json:"is_read,omitempty"`

	// user_status, typing
	UserID   string `json:"user_id,omitempty"`
	Username string `json:"username,omitempty"`
	Status   string `json:"status,omitempty"`
	IsTyping bool   `json:"is_typing,omitempty"`

	// messages_read
	MessageIDs []string `json:"message_ids,omitempty"`
	ReaderID   string   `json:"reader_id,omitempty"`

	// call lifecycle
	CallID               string   `json:"call_id,omitempty"`
	CallType             CallType `json:"call_type,omitempty"`
	CallerID             string   `json:"caller_id,omitempty"`
	CallerUsername       string   `json:"caller_username,omitempty"`
	CallerProfilePicture string   `json:"caller_profile_picture,omitempty"`
	AcceptorID           string   `json:"acceptor_id,omitempty"`
	AcceptorUsername     string   `json:"acceptor_username,omitempty"`
	RejectorID           string   `json:"rejector_id,omitempty"`
	EndedBy              string   `json:"ended_by,omitempty"`

	// call signaling
	Offer     *SessionDescription `json:"offer,omitempty"`
	Answer    *SessionDescription `json:"answer,omitempty"`
	Candidate *ICECandidate       `json:"candidate,omitempty"`

	// like_update, new_comment
	PostID       string   `json:"post_id,omitempty"`
	Liked        bool     `json:"liked,omitempty"`
	LikeCount    int      `json:"like_count,omitempty"`
	Comment      *Comment `json:"comment,omitempty"`
	CommentCount int      `json:"comment_count,omitempty"`

	// initial_data
	LikesCount int       `json:"likes_count,omitempty"`
	IsLiked    bool      `json:"is_liked,omitempty"`
	Comments   []Comment `json:"comments,omitempty"`

	// notification
	Notification *Notification `json:"notification,omitempty"`

	// connection_status, error
	Code        int    `json:"code,omitempty"`
	Reason      string `json:"reason,omitempty"`
	Error       string `json:"error,omitempty"`
	Attempt     int    `json:"attempt,omitempty"`
	MaxAttempts int    `json:"max_attempts,omitempty"`
}
