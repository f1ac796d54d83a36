package realtime

import (
	"fmt"
	"net/url"
)

// ChatEndpoint builds conversation channel URLs: <base>/ws/chat/{id}/.
func ChatEndpoint(base string) Endpoint {
	return func(conversationID string) string {
		return fmt.Sprintf("%s/ws/chat/%s/", base, conversationID)
	}
}

// PostEndpoint builds live post channel URLs: <base>/ws/posts/{id}/. When
// token is non-empty it is appended as a query parameter; otherwise the
// server authenticates from cookie credentials on the handshake.
func PostEndpoint(base, token string) Endpoint {
	return func(postID string) string {
		endpoint := fmt.Sprintf("%s/ws/posts/%s/", base, postID)
		if token != "" {
			endpoint += "?token=" + url.QueryEscape(token)
		}
		return endpoint
	}
}

// NotificationsEndpoint builds the global notification stream URL. The
// stream has no per-resource id.
func NotificationsEndpoint(base string) Endpoint {
	return func(string) string {
		return fmt.Sprintf("%s/ws/notifications/", base)
	}
}
