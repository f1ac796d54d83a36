package chat

import (
	"context"
	"fmt"
	"sync"
	"time"

	"social-client/internal/auth"
	"social-client/internal/config"
	"social-client/internal/models"
	"social-client/internal/realtime"
	"social-client/internal/rest"
	"social-client/pkg/logger"
)

const (
	DefaultTypingIdle       = 2 * time.Second
	DefaultReadReceiptDelay = 500 * time.Millisecond
)

// NewConn builds the realtime channel for a chat surface: the conversation
// endpoint plus a delayed presence request after every open, so the server
// has processed any in-flight disconnect before the client asks for status.
func NewConn(wsBase string, realtimeCfg config.RealtimeConfig, statusRequestDelay time.Duration) *realtime.Conn {
	return realtime.New(realtime.Options{
		Endpoint:             realtime.ChatEndpoint(wsBase),
		ReconnectDelay:       realtimeCfg.ReconnectDelay,
		MaxReconnectAttempts: realtimeCfg.MaxReconnectAttempts,
		AfterOpenDelay:       statusRequestDelay,
		AfterOpen: func(conn *realtime.Conn) {
			conn.Send(models.RequestStatusAction())
		},
	})
}

// Config tunes the service timers. Zero values fall back to defaults.
type Config struct {
	TypingIdle       time.Duration
	ReadReceiptDelay time.Duration
}

// Service is one mounted conversation surface. It owns its Conn, keeps the
// message list reconciled against socket echoes and REST responses, and
// tracks the other participant's presence and typing state.
type Service struct {
	conversationID string
	conn           *realtime.Conn
	api            rest.ChatAPI
	session        *auth.Session
	log            *logger.Logger

	typingIdle time.Duration
	readDelay  time.Duration

	mu           sync.Mutex
	closed       bool
	messages     []models.Message
	otherOnline  bool
	otherTyping  bool
	typingActive bool
	typingTimer  *time.Timer
	pendingReads []string
	readTimer    *time.Timer
	onUpdate     func()
	onEvent      func(models.Event)

	sub *realtime.Subscription
}

func NewService(conversationID string, conn *realtime.Conn, api rest.ChatAPI, session *auth.Session, cfg Config) *Service {
	if cfg.TypingIdle <= 0 {
		cfg.TypingIdle = DefaultTypingIdle
	}
	if cfg.ReadReceiptDelay <= 0 {
		cfg.ReadReceiptDelay = DefaultReadReceiptDelay
	}

	s := &Service{
		conversationID: conversationID,
		conn:           conn,
		api:            api,
		session:        session,
		log:            logger.GlobalLogger,
		typingIdle:     cfg.TypingIdle,
		readDelay:      cfg.ReadReceiptDelay,
	}
	s.sub = conn.OnEvent(s.handleEvent)
	return s
}

// Open loads the conversation over REST and connects the channel.
func (s *Service) Open(ctx context.Context) error {
	detail, err := s.api.GetConversation(ctx, s.conversationID)
	if err != nil {
		return fmt.Errorf("failed to load conversation: %w", err)
	}

	s.mu.Lock()
	s.messages = append([]models.Message(nil), detail.Messages...)
	s.mu.Unlock()

	s.conn.Connect(s.conversationID)
	return nil
}

// Close tears the surface down: timers stopped, callback removed and the
// channel closed, so no event can reach this service afterwards.
func (s *Service) Close() {
	s.mu.Lock()
	s.closed = true
	if s.typingTimer != nil {
		s.typingTimer.Stop()
		s.typingTimer = nil
	}
	if s.readTimer != nil {
		s.readTimer.Stop()
		s.readTimer = nil
	}
	s.mu.Unlock()

	s.conn.RemoveCallback(s.sub)
	s.conn.Disconnect()
}

// SendMessage delivers over the socket when it is open, otherwise through
// the REST fallback. The socket echo reconciles the list on the first path;
// the REST response does on the second.
func (s *Service) SendMessage(ctx context.Context, content string) error {
	defer s.stopTyping()

	if s.conn.IsConnected() && s.conn.Send(models.MessageAction(content)) {
		return nil
	}

	s.log.Debug("channel unavailable for conversation %s, sending over REST", s.conversationID)
	msg, err := s.api.SendMessage(ctx, s.conversationID, content)
	if err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}
	s.reconcileMessage(*msg)
	return nil
}

// InputChanged reports a keystroke. The first keystroke of a burst sends
// typing:true; the stop signal goes out once the idle window elapses.
func (s *Service) InputChanged() {
	if !s.conn.IsConnected() {
		return
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	first := !s.typingActive
	s.typingActive = true
	if s.typingTimer != nil {
		s.typingTimer.Stop()
	}
	s.typingTimer = time.AfterFunc(s.typingIdle, s.typingIdleElapsed)
	s.mu.Unlock()

	if first {
		s.conn.Send(models.TypingAction(true))
	}
}

func (s *Service) typingIdleElapsed() {
	s.mu.Lock()
	if s.closed || !s.typingActive {
		s.mu.Unlock()
		return
	}
	s.typingActive = false
	s.typingTimer = nil
	s.mu.Unlock()

	s.conn.Send(models.TypingAction(false))
}

func (s *Service) stopTyping() {
	s.mu.Lock()
	active := s.typingActive && !s.closed
	s.typingActive = false
	if s.typingTimer != nil {
		s.typingTimer.Stop()
		s.typingTimer = nil
	}
	s.mu.Unlock()

	if active {
		s.conn.Send(models.TypingAction(false))
	}
}

// Call control. Signaling payloads ride the same channel as chat.

func (s *Service) InitiateCall(callType models.CallType) bool {
	return s.conn.Send(models.CallInitiateAction(callType))
}

func (s *Service) AcceptCall(callID string) bool {
	return s.conn.Send(models.CallAcceptAction(callID))
}

func (s *Service) RejectCall(callID string) bool {
	return s.conn.Send(models.CallRejectAction(callID))
}

func (s *Service) EndCall(callID string) bool {
	return s.conn.Send(models.CallEndAction(callID))
}

// Send exposes the underlying channel for the call signaling relay.
func (s *Service) Send(action models.Action) bool {
	return s.conn.Send(action)
}

func (s *Service) Messages() []models.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Message, len(s.messages))
	copy(out, s.messages)
	return out
}

func (s *Service) OtherUserOnline() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.otherOnline
}

func (s *Service) OtherUserTyping() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.otherTyping
}

// OnUpdate registers a hook invoked after any state change.
func (s *Service) OnUpdate(fn func()) {
	s.mu.Lock()
	s.onUpdate = fn
	s.mu.Unlock()
}

// OnEvent registers a hook receiving every raw event on the conversation
// channel. The video call surface uses it to pick up call and signaling
// events without a second socket.
func (s *Service) OnEvent(fn func(models.Event)) {
	s.mu.Lock()
	s.onEvent = fn
	s.mu.Unlock()
}

func (s *Service) handleEvent(event models.Event) {
	s.kickReadReceipts()

	switch event.Type {
	case models.EventTypeMessage:
		s.handleMessage(event)
	case models.EventTypeUserStatus:
		s.handleUserStatus(event)
	case models.EventTypeTyping:
		s.handleTyping(event)
	case models.EventTypeMessagesRead:
		s.handleMessagesRead(event)
	}

	s.mu.Lock()
	forward := s.onEvent
	closed := s.closed
	s.mu.Unlock()
	if forward != nil && !closed {
		forward(event)
	}
}

func (s *Service) handleMessage(event models.Event) {
	if event.MessageID == "" || event.Message == "" || event.SenderUsername == "" {
		return
	}

	msg := models.Message{
		ID:           event.MessageID,
		Conversation: s.conversationID,
		Sender: models.User{
			ID:             event.SenderID,
			Username:       event.SenderUsername,
			ProfilePicture: event.SenderProfilePicture,
		},
		Content:   event.Message,
		IsRead:    event.IsRead,
		CreatedAt: event.Timestamp,
		UpdatedAt: event.Timestamp,
	}
	s.reconcileMessage(msg)

	if event.SenderID != "" && event.SenderID != s.session.UserID() {
		s.scheduleReadReceipt(event.MessageID)
	}
}

func (s *Service) handleUserStatus(event models.Event) {
	if event.UserID == s.session.UserID() {
		return
	}
	s.mu.Lock()
	s.otherOnline = event.Status == "online"
	s.mu.Unlock()
	s.notifyUpdate()
}

func (s *Service) handleTyping(event models.Event) {
	if event.UserID != "" && event.UserID == s.session.UserID() {
		return
	}
	s.mu.Lock()
	s.otherTyping = event.IsTyping
	s.mu.Unlock()
	s.notifyUpdate()
}

func (s *Service) handleMessagesRead(event models.Event) {
	if len(event.MessageIDs) == 0 {
		return
	}
	read := make(map[string]bool, len(event.MessageIDs))
	for _, id := range event.MessageIDs {
		read[id] = true
	}

	s.mu.Lock()
	for i := range s.messages {
		if read[s.messages[i].ID] {
			s.messages[i].IsRead = true
		}
	}
	s.mu.Unlock()
	s.notifyUpdate()
}

// reconcileMessage merges a server-confirmed message, deduplicating by id so
// a socket echo and a REST response for the same send never double up.
func (s *Service) reconcileMessage(msg models.Message) {
	s.mu.Lock()
	for _, existing := range s.messages {
		if existing.ID == msg.ID {
			s.mu.Unlock()
			return
		}
	}
	s.messages = append(s.messages, msg)
	s.mu.Unlock()
	s.notifyUpdate()
}

// scheduleReadReceipt batches ids arriving within the delay window into a
// single mark_read send instead of one per message.
func (s *Service) scheduleReadReceipt(messageID string) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.pendingReads = append(s.pendingReads, messageID)
	if s.readTimer == nil {
		s.readTimer = time.AfterFunc(s.readDelay, s.flushReadReceipts)
	}
	s.mu.Unlock()
}

func (s *Service) flushReadReceipts() {
	s.mu.Lock()
	ids := s.pendingReads
	s.pendingReads = nil
	s.readTimer = nil
	closed := s.closed
	s.mu.Unlock()

	if closed || len(ids) == 0 {
		return
	}
	if s.conn.Send(models.MarkReadAction(ids)) {
		return
	}

	// Channel went down during the delay window. The backend has no REST
	// mark-read endpoint, so hold the batch for the next open; the first
	// inbound event kicks the flush again.
	s.mu.Lock()
	if !s.closed {
		s.pendingReads = append(ids, s.pendingReads...)
	}
	s.mu.Unlock()
}

// kickReadReceipts reschedules a flush for a batch that survived a
// disconnect. Called on inbound events, which only arrive while the channel
// is open.
func (s *Service) kickReadReceipts() {
	s.mu.Lock()
	if !s.closed && s.readTimer == nil && len(s.pendingReads) > 0 {
		s.readTimer = time.AfterFunc(s.readDelay, s.flushReadReceipts)
	}
	s.mu.Unlock()
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
