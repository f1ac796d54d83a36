package models

type Comment struct {
	ID        string `json:"id"`
	Content   string `json:"content"`
	Author    User   `json:"author"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

type Post struct {
	ID           string    `json:"id"`
	Content      string    `json:"content"`
	Image        string    `json:"image,omitempty"`
	Video        string    `json:"video,omitempty"`
	Author       User      `json:"author"`
	Privacy      string    `json:"privacy"`
	CreatedAt    string    `json:"created_at"`
	UpdatedAt    string    `json:"updated_at"`
	LikeCount    int       `json:"like_count"`
	CommentCount int       `json:"comment_count"`
	IsLiked      bool      `json:"is_liked"`
	Comments     []Comment `json:"comments"`
}

// LikeResult is the backend's response to a like toggle.
type LikeResult struct {
	Liked     bool `json:"liked"`
	LikeCount int  `json:"like_count"`
}
