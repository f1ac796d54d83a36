package notifications

import (
	"context"
	"fmt"
	"sync"
	"time"

	"social-client/internal/config"
	"social-client/internal/models"
	"social-client/internal/realtime"
	"social-client/internal/rest"
	"social-client/pkg/logger"
)

const DefaultRefreshInterval = 30 * time.Second

// streamID is the channel binding for the global stream; the endpoint has no
// per-resource id but the connection manager needs a non-empty binding to
// keep reconnecting.
const streamID = "notifications"

// NewConn builds the global notification stream channel.
func NewConn(wsBase string, realtimeCfg config.RealtimeConfig) *realtime.Conn {
	return realtime.New(realtime.Options{
		Endpoint:             realtime.NotificationsEndpoint(wsBase),
		ReconnectDelay:       realtimeCfg.ReconnectDelay,
		MaxReconnectAttempts: realtimeCfg.MaxReconnectAttempts,
		StatusEvents:         true,
	})
}

// Service maintains the notification list and unread count. Pushed
// notifications land immediately; a periodic REST refresh reconciles
// anything missed while the stream was down.
type Service struct {
	conn    *realtime.Conn
	api     rest.NotificationAPI
	log     *logger.Logger
	refresh time.Duration

	mu            sync.Mutex
	closed        bool
	notifications []models.Notification
	unreadCount   int
	ticker        *time.Ticker
	tickerDone    chan struct{}
	onUpdate      func()

	sub *realtime.Subscription
}

func NewService(conn *realtime.Conn, api rest.NotificationAPI, refresh time.Duration) *Service {
	if refresh <= 0 {
		refresh = DefaultRefreshInterval
	}
	s := &Service{
		conn:    conn,
		api:     api,
		log:     logger.GlobalLogger,
		refresh: refresh,
	}
	s.sub = conn.OnEvent(s.handleEvent)
	return s
}

// Start loads current state over REST, connects the stream and begins the
// periodic refresh.
func (s *Service) Start(ctx context.Context) error {
	if err := s.Refresh(ctx); err != nil {
		return err
	}

	s.conn.Connect(streamID)

	s.mu.Lock()
	if s.ticker == nil && !s.closed {
		s.ticker = time.NewTicker(s.refresh)
		s.tickerDone = make(chan struct{})
		go s.refreshLoop(s.ticker, s.tickerDone)
	}
	s.mu.Unlock()
	return nil
}

func (s *Service) refreshLoop(ticker *time.Ticker, done chan struct{}) {
	for {
		select {
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			if err := s.Refresh(ctx); err != nil {
				s.log.Error("notification refresh failed: %v", err)
			}
			cancel()
		case <-done:
			return
		}
	}
}

// Stop halts the refresh loop and closes the stream.
func (s *Service) Stop() {
	s.mu.Lock()
	s.closed = true
	if s.ticker != nil {
		s.ticker.Stop()
		close(s.tickerDone)
		s.ticker = nil
		s.tickerDone = nil
	}
	s.mu.Unlock()

	s.conn.RemoveCallback(s.sub)
	s.conn.Disconnect()
}

// Refresh replaces local state with the backend's list and count.
func (s *Service) Refresh(ctx context.Context) error {
	list, err := s.api.GetNotifications(ctx)
	if err != nil {
		return fmt.Errorf("failed to load notifications: %w", err)
	}
	count, err := s.api.UnreadNotificationCount(ctx)
	if err != nil {
		return fmt.Errorf("failed to load unread count: %w", err)
	}

	s.mu.Lock()
	s.notifications = list
	s.unreadCount = count
	s.mu.Unlock()
	s.notifyUpdate()
	return nil
}

func (s *Service) Notifications() []models.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Notification, len(s.notifications))
	copy(out, s.notifications)
	return out
}

func (s *Service) UnreadCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.unreadCount
}

// OnUpdate registers a hook invoked after any state change.
func (s *Service) OnUpdate(fn func()) {
	s.mu.Lock()
	s.onUpdate = fn
	s.mu.Unlock()
}

// MarkRead marks one notification read on the backend and locally.
func (s *Service) MarkRead(ctx context.Context, notificationID string) error {
	updated, err := s.api.MarkNotificationRead(ctx, notificationID)
	if err != nil {
		return fmt.Errorf("failed to mark notification read: %w", err)
	}

	s.mu.Lock()
	for i := range s.notifications {
		if s.notifications[i].ID == notificationID {
			if !s.notifications[i].IsRead && s.unreadCount > 0 {
				s.unreadCount--
			}
			s.notifications[i] = *updated
			break
		}
	}
	s.mu.Unlock()
	s.notifyUpdate()
	return nil
}

// MarkAllRead marks everything read on the backend and locally.
func (s *Service) MarkAllRead(ctx context.Context) error {
	if err := s.api.MarkAllNotificationsRead(ctx); err != nil {
		return fmt.Errorf("failed to mark all notifications read: %w", err)
	}

	s.mu.Lock()
	for i := range s.notifications {
		s.notifications[i].IsRead = true
	}
	s.unreadCount = 0
	s.mu.Unlock()
	s.notifyUpdate()
	return nil
}

// Delete removes a notification on the backend and locally.
func (s *Service) Delete(ctx context.Context, notificationID string) error {
	if err := s.api.DeleteNotification(ctx, notificationID); err != nil {
		return fmt.Errorf("failed to delete notification: %w", err)
	}

	s.mu.Lock()
	for i := range s.notifications {
		if s.notifications[i].ID == notificationID {
			if !s.notifications[i].IsRead && s.unreadCount > 0 {
				s.unreadCount--
			}
			s.notifications = append(s.notifications[:i], s.notifications[i+1:]...)
			break
		}
	}
	s.mu.Unlock()
	s.notifyUpdate()
	return nil
}

func (s *Service) handleEvent(event models.Event) {
	if event.Type != models.EventTypeNotification || event.Notification == nil {
		return
	}

	s.mu.Lock()
	for _, existing := range s.notifications {
		if existing.ID == event.Notification.ID {
			s.mu.Unlock()
			return
		}
	}
	// Newest first, matching the backend's list ordering.
	s.notifications = append([]models.Notification{*event.Notification}, s.notifications...)
	if !event.Notification.IsRead {
		s.unreadCount++
	}
	s.mu.Unlock()
	s.notifyUpdate()
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
