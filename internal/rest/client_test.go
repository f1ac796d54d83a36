package rest

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type headerCreds string

func (h headerCreds) Apply(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+string(h))
}

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := NewClient(server.URL, headerCreds("t0k"), time.Second)
	require.NoError(t, err)
	return client
}

func TestSendMessage(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/chat/conversations/c1/messages/", r.URL.Path)
		assert.Equal(t, "Bearer t0k", r.Header.Get("Authorization"))

		body, _ := io.ReadAll(r.Body)
		assert.JSONEq(t, `{"content":"hi"}`, string(body))

		json.NewEncoder(w).Encode(map[string]interface{}{
			"id":           "m1",
			"conversation": "c1",
			"content":      "hi",
		})
	})

	msg, err := client.SendMessage(context.Background(), "c1", "hi")
	require.NoError(t, err)
	assert.Equal(t, "m1", msg.ID)
	assert.Equal(t, "hi", msg.Content)
}

func TestLikePost(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/posts/p1/like/", r.URL.Path)
		json.NewEncoder(w).Encode(map[string]interface{}{"liked": true, "like_count": 4})
	})

	result, err := client.LikePost(context.Background(), "p1")
	require.NoError(t, err)
	assert.True(t, result.Liked)
	assert.Equal(t, 4, result.LikeCount)
}

func TestCreateComment(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/comments/", r.URL.Path)
		body, _ := io.ReadAll(r.Body)
		assert.JSONEq(t, `{"post":"p1","content":"nice"}`, string(body))
		json.NewEncoder(w).Encode(map[string]interface{}{"id": "cm1", "content": "nice"})
	})

	comment, err := client.CreateComment(context.Background(), "p1", "nice")
	require.NoError(t, err)
	assert.Equal(t, "cm1", comment.ID)
}

func TestUnreadNotificationCount(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/notifications/unread-count/", r.URL.Path)
		json.NewEncoder(w).Encode(map[string]int{"unread_count": 7})
	})

	count, err := client.UnreadNotificationCount(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 7, count)
}

func TestErrorResponse(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusForbidden)
	})

	_, err := client.LikePost(context.Background(), "p1")
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusForbidden, apiErr.StatusCode)
}
