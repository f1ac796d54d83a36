package models

type Message struct {
	ID           string `json:"id"`
	Conversation string `json:"conversation"`
	Sender       User   `json:"sender"`
	Content      string `json:"content"`
	IsRead       bool   `json:"is_read"`
	CreatedAt    string `json:"created_at"`
	UpdatedAt    string `json:"updated_at"`
}

type LastMessage struct {
	ID             string `json:"id"`
	Content        string `json:"content"`
	SenderUsername string `json:"sender_username"`
	CreatedAt      string `json:"created_at"`
	IsRead         bool   `json:"is_read"`
}

type Conversation struct {
	ID               string       `json:"id"`
	Participant1     User         `json:"participant1"`
	Participant2     User         `json:"participant2"`
	OtherParticipant User         `json:"other_participant"`
	LastMessage      *LastMessage `json:"last_message,omitempty"`
	UnreadCount      int          `json:"unread_count"`
	CreatedAt        string       `json:"created_at"`
	UpdatedAt        string       `json:"updated_at"`
}

type ConversationDetail struct {
	ID               string    `json:"id"`
	Participant1     User      `json:"participant1"`
	Participant2     User      `json:"participant2"`
	OtherParticipant User      `json:"other_participant"`
	Messages         []Message `json:"messages"`
	CreatedAt        string    `json:"created_at"`
	UpdatedAt        string    `json:"updated_at"`
}
