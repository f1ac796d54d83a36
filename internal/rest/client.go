package rest

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"time"

	"social-client/internal/models"

	json "github.com/goccy/go-json"
)

// Credentials decorates outgoing requests with whatever the backend expects
// (bearer token header or nothing when cookies carry the session).
type Credentials interface {
	Apply(req *http.Request)
}

// APIError is a non-2xx backend response.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("backend returned %d: %s", e.StatusCode, e.Body)
}

// Client talks to the backend REST API. It is the fallback delivery path for
// every socket action and the source of initial state for each surface.
type Client struct {
	baseURL     string
	http        *http.Client
	credentials Credentials
}

func NewClient(baseURL string, credentials Credentials, timeout time.Duration) (*Client, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}

	return &Client{
		baseURL:     baseURL,
		credentials: credentials,
		http: &http.Client{
			Timeout: timeout,
			Jar:     jar,
		},
	}, nil
}

// Chat API

func (c *Client) GetConversations(ctx context.Context) ([]models.Conversation, error) {
	var out []models.Conversation
	if err := c.do(ctx, http.MethodGet, "/chat/conversations/", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) GetConversation(ctx context.Context, conversationID string) (*models.ConversationDetail, error) {
	out := &models.ConversationDetail{}
	path := fmt.Sprintf("/chat/conversations/%s/", conversationID)
	if err := c.do(ctx, http.MethodGet, path, nil, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) SendMessage(ctx context.Context, conversationID, content string) (*models.Message, error) {
	out := &models.Message{}
	path := fmt.Sprintf("/chat/conversations/%s/messages/", conversationID)
	body := map[string]string{"content": content}
	if err := c.do(ctx, http.MethodPost, path, body, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) UnreadMessageCount(ctx context.Context) (int, error) {
	var out struct {
		UnreadCount int `json:"unread_count"`
	}
	if err := c.do(ctx, http.MethodGet, "/chat/unread-count/", nil, &out); err != nil {
		return 0, err
	}
	return out.UnreadCount, nil
}

// Post API

func (c *Client) GetPosts(ctx context.Context) ([]models.Post, error) {
	var out []models.Post
	if err := c.do(ctx, http.MethodGet, "/posts/", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) GetPost(ctx context.Context, postID string) (*models.Post, error) {
	out := &models.Post{}
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/posts/%s/", postID), nil, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) LikePost(ctx context.Context, postID string) (*models.LikeResult, error) {
	out := &models.LikeResult{}
	if err := c.do(ctx, http.MethodPost, fmt.Sprintf("/posts/%s/like/", postID), nil, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) GetComments(ctx context.Context, postID string) ([]models.Comment, error) {
	var out []models.Comment
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/posts/%s/comments/", postID), nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) CreateComment(ctx context.Context, postID, content string) (*models.Comment, error) {
	out := &models.Comment{}
	body := map[string]string{"post": postID, "content": content}
	if err := c.do(ctx, http.MethodPost, "/comments/", body, out); err != nil {
		return nil, err
	}
	return out, nil
}

// Notification API

func (c *Client) GetNotifications(ctx context.Context) ([]models.Notification, error) {
	var out []models.Notification
	if err := c.do(ctx, http.MethodGet, "/notifications/", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) UnreadNotificationCount(ctx context.Context) (int, error) {
	var out struct {
		UnreadCount int `json:"unread_count"`
	}
	if err := c.do(ctx, http.MethodGet, "/notifications/unread-count/", nil, &out); err != nil {
		return 0, err
	}
	return out.UnreadCount, nil
}

func (c *Client) MarkNotificationRead(ctx context.Context, notificationID string) (*models.Notification, error) {
	out := &models.Notification{}
	path := fmt.Sprintf("/notifications/%s/read/", notificationID)
	if err := c.do(ctx, http.MethodPost, path, nil, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) MarkAllNotificationsRead(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/notifications/mark-all-read/", nil, nil)
}

func (c *Client) DeleteNotification(ctx context.Context, notificationID string) error {
	path := fmt.Sprintf("/notifications/%s/delete/", notificationID)
	return c.do(ctx, http.MethodDelete, path, nil, nil)
}

// Account API

func (c *Client) CurrentUser(ctx context.Context) (*models.User, error) {
	out := &models.User{}
	if err := c.do(ctx, http.MethodGet, "/auth/user/", nil, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.credentials != nil {
		c.credentials.Apply(req)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request %s %s failed: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{StatusCode: resp.StatusCode, Body: string(data)}
	}

	if out != nil && len(data) > 0 {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("failed to decode response body: %w", err)
		}
	}
	return nil
}
