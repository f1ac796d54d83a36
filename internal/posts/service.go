package posts

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"social-client/internal/auth"
	"social-client/internal/config"
	"social-client/internal/models"
	"social-client/internal/realtime"
	"social-client/internal/rest"
	"social-client/pkg/logger"

	"github.com/google/uuid"
)

// ErrUnauthorized is returned for optimistic actions after the live channel
// rejected the session.
var ErrUnauthorized = errors.New("post channel rejected the session")

// NewConn builds the live channel for a post surface. The channel fans out
// like and comment updates from every viewer, so status events and resource
// id attachment are on: subscribers see which post a frame belongs to even
// when the server omits post_id.
func NewConn(wsBase, token string, realtimeCfg config.RealtimeConfig) *realtime.Conn {
	return realtime.New(realtime.Options{
		Endpoint:             realtime.PostEndpoint(wsBase, token),
		ReconnectDelay:       realtimeCfg.ReconnectDelay,
		MaxReconnectAttempts: realtimeCfg.MaxReconnectAttempts,
		StatusEvents:         true,
		AttachResourceID:     true,
	})
}

// Service is one mounted post surface. Like and comment actions apply
// optimistically and reconcile against the server's like_update and
// new_comment broadcasts, or against the REST response when the socket is
// down.
type Service struct {
	postID  string
	conn    *realtime.Conn
	api     rest.PostAPI
	session *auth.Session
	log     *logger.Logger

	mu           sync.Mutex
	closed       bool
	post         models.Post
	provisional  map[string]bool
	unauthorized bool
	onUpdate     func()

	sub *realtime.Subscription
}

func NewService(postID string, conn *realtime.Conn, api rest.PostAPI, session *auth.Session) *Service {
	s := &Service{
		postID:      postID,
		conn:        conn,
		api:         api,
		session:     session,
		log:         logger.GlobalLogger,
		provisional: make(map[string]bool),
	}
	s.sub = conn.OnEvent(s.handleEvent)
	return s
}

// Open loads the post over REST and connects the live channel.
func (s *Service) Open(ctx context.Context) error {
	post, err := s.api.GetPost(ctx, s.postID)
	if err != nil {
		return fmt.Errorf("failed to load post: %w", err)
	}

	s.mu.Lock()
	s.post = *post
	s.mu.Unlock()

	s.conn.Connect(s.postID)
	return nil
}

func (s *Service) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	s.conn.RemoveCallback(s.sub)
	s.conn.Disconnect()
}

// Post returns a snapshot of the reconciled post state.
func (s *Service) Post() models.Post {
	s.mu.Lock()
	defer s.mu.Unlock()
	post := s.post
	post.Comments = append([]models.Comment(nil), s.post.Comments...)
	return post
}

func (s *Service) Unauthorized() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.unauthorized
}

// OnUpdate registers a hook invoked after any state change.
func (s *Service) OnUpdate(fn func()) {
	s.mu.Lock()
	s.onUpdate = fn
	s.mu.Unlock()
}

// ToggleLike flips the like state optimistically, then reconciles. Connected,
// the server's like_update broadcast confirms the flip; disconnected, the
// REST response does. A failed REST call rolls the flip back.
func (s *Service) ToggleLike(ctx context.Context) error {
	s.mu.Lock()
	if s.unauthorized {
		s.mu.Unlock()
		return ErrUnauthorized
	}
	prevLiked := s.post.IsLiked
	prevCount := s.post.LikeCount
	s.post.IsLiked = !prevLiked
	if s.post.IsLiked {
		s.post.LikeCount = prevCount + 1
	} else {
		s.post.LikeCount = prevCount - 1
	}
	s.mu.Unlock()
	s.notifyUpdate()

	if s.conn.IsConnected() && s.conn.Send(models.LikeAction()) {
		return nil
	}

	result, err := s.api.LikePost(ctx, s.postID)
	if err != nil {
		s.mu.Lock()
		s.post.IsLiked = prevLiked
		s.post.LikeCount = prevCount
		s.mu.Unlock()
		s.notifyUpdate()
		return fmt.Errorf("failed to toggle like: %w", err)
	}

	s.mu.Lock()
	s.post.IsLiked = result.Liked
	s.post.LikeCount = result.LikeCount
	s.mu.Unlock()
	s.notifyUpdate()
	return nil
}

// AddComment appends a provisional comment immediately, then reconciles it
// against the confirmed entity from the socket broadcast or the REST
// response. The provisional entry is removed again if delivery fails.
func (s *Service) AddComment(ctx context.Context, content string) error {
	s.mu.Lock()
	if s.unauthorized {
		s.mu.Unlock()
		return ErrUnauthorized
	}
	author := s.session.User()
	if author == nil {
		author = &models.User{}
	}
	temp := models.Comment{
		ID:      uuid.NewString(),
		Content: content,
		Author:  *author,
	}
	s.provisional[temp.ID] = true
	s.post.Comments = append(s.post.Comments, temp)
	s.post.CommentCount++
	s.mu.Unlock()
	s.notifyUpdate()

	if s.conn.IsConnected() && s.conn.Send(models.CommentAction(content)) {
		return nil
	}

	comment, err := s.api.CreateComment(ctx, s.postID, content)
	if err != nil {
		s.removeProvisional(temp.ID)
		return fmt.Errorf("failed to create comment: %w", err)
	}

	s.mu.Lock()
	s.replaceProvisionalLocked(temp.ID, *comment)
	s.mu.Unlock()
	s.notifyUpdate()
	return nil
}

func (s *Service) handleEvent(event models.Event) {
	if event.PostID != "" && event.PostID != s.postID {
		return
	}

	switch event.Type {
	case models.EventTypeInitialData:
		s.handleInitialData(event)
	case models.EventTypeLikeUpdate:
		s.handleLikeUpdate(event)
	case models.EventTypeNewComment:
		s.handleNewComment(event)
	case models.EventTypeError:
		// The post channel only sends error frames when it refuses an action
		// from an unauthenticated session.
		s.log.Error("post channel error: %s", event.Error)
		s.mu.Lock()
		s.unauthorized = true
		s.mu.Unlock()
		s.notifyUpdate()
	}
}

// handleInitialData applies the snapshot the server pushes right after the
// channel opens. It is authoritative for likes and confirmed comments, so it
// also heals state after a reconnect without a REST round-trip; provisional
// comments still awaiting their echo are kept.
func (s *Service) handleInitialData(event models.Event) {
	s.mu.Lock()
	s.post.LikeCount = event.LikesCount
	s.post.IsLiked = event.IsLiked

	confirmed := append([]models.Comment(nil), event.Comments...)
	seen := make(map[string]bool, len(confirmed))
	for _, c := range confirmed {
		seen[c.ID] = true
	}
	for _, existing := range s.post.Comments {
		if s.provisional[existing.ID] && !seen[existing.ID] {
			confirmed = append(confirmed, existing)
		}
	}
	s.post.Comments = confirmed
	s.post.CommentCount = len(event.Comments)
	s.mu.Unlock()
	s.notifyUpdate()
}

// handleLikeUpdate applies a broadcast like change. The count is
// authoritative for everyone; the liked flag only belongs to the local user
// when the update is about them.
func (s *Service) handleLikeUpdate(event models.Event) {
	s.mu.Lock()
	s.post.LikeCount = event.LikeCount
	if event.UserID != "" && event.UserID == s.session.UserID() {
		s.post.IsLiked = event.Liked
	}
	s.mu.Unlock()
	s.notifyUpdate()
}

func (s *Service) handleNewComment(event models.Event) {
	if event.Comment == nil || event.Comment.ID == "" {
		return
	}

	s.mu.Lock()
	defer func() {
		s.mu.Unlock()
		s.notifyUpdate()
	}()

	for _, existing := range s.post.Comments {
		if existing.ID == event.Comment.ID {
			if event.CommentCount > 0 {
				s.post.CommentCount = event.CommentCount
			}
			return
		}
	}

	// The echo of the local user's own comment replaces the provisional
	// entry instead of appending a duplicate.
	if event.Comment.Author.ID == s.session.UserID() {
		for i, existing := range s.post.Comments {
			if s.provisional[existing.ID] && existing.Content == event.Comment.Content {
				delete(s.provisional, existing.ID)
				s.post.Comments[i] = *event.Comment
				if event.CommentCount > 0 {
					s.post.CommentCount = event.CommentCount
				}
				return
			}
		}
	}

	s.post.Comments = append(s.post.Comments, *event.Comment)
	if event.CommentCount > 0 {
		s.post.CommentCount = event.CommentCount
	} else {
		s.post.CommentCount++
	}
}

func (s *Service) removeProvisional(tempID string) {
	s.mu.Lock()
	for i, existing := range s.post.Comments {
		if existing.ID == tempID {
			s.post.Comments = append(s.post.Comments[:i], s.post.Comments[i+1:]...)
			s.post.CommentCount--
			break
		}
	}
	delete(s.provisional, tempID)
	s.mu.Unlock()
	s.notifyUpdate()
}

func (s *Service) replaceProvisionalLocked(tempID string, confirmed models.Comment) {
	for i, existing := range s.post.Comments {
		if existing.ID == tempID {
			s.post.Comments[i] = confirmed
			break
		}
	}
	delete(s.provisional, tempID)
}

func (s *Service) notifyUpdate() {
	s.mu.Lock()
	fn := s.onUpdate
	closed := s.closed
	s.mu.Unlock()
	if fn != nil && !closed {
		fn()
	}
}
