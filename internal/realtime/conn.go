package realtime

import (
	"errors"
	"net/http"
	"sync"
	"time"

	"social-client/internal/models"
	"social-client/pkg/logger"

	json "github.com/goccy/go-json"
	"github.com/gorilla/websocket"
)

// State of the managed channel.
type State int

const (
	StateIdle State = iota
	StateConnecting
	StateOpen
	StateClosed
	StateReconnecting
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosed:
		return "closed"
	case StateReconnecting:
		return "reconnecting"
	default:
		return "unknown"
	}
}

const (
	DefaultReconnectDelay       = time.Second
	DefaultMaxReconnectAttempts = 5
	DefaultAfterOpenDelay       = time.Second
)

// Endpoint builds the channel URL for a resource id.
type Endpoint func(resourceID string) string

// Options configures a Conn. Endpoint is required, everything else has a
// usable default.
type Options struct {
	Endpoint Endpoint

	// ReconnectDelay is the linear backoff base: attempt n waits n*ReconnectDelay.
	ReconnectDelay time.Duration
	// MaxReconnectAttempts caps consecutive reconnects; a manual Connect is
	// needed once the ceiling is reached.
	MaxReconnectAttempts int

	// StatusEvents synthesizes connection_established/connection_status events
	// for subscribers (live post and notification streams expect these).
	StatusEvents bool
	// AttachResourceID fills in post_id on inbound events that omit it.
	AttachResourceID bool

	// AfterOpen runs AfterOpenDelay after every successful open. The chat
	// surface uses it to request presence once the server has settled any
	// in-flight disconnect events.
	AfterOpen      func(*Conn)
	AfterOpenDelay time.Duration

	// Dialer and RequestHeader control the handshake (cookie credentials go
	// in the header; token auth rides on the endpoint URL).
	Dialer        *websocket.Dialer
	RequestHeader http.Header

	Log *logger.Logger
}

// Conn owns one WebSocket channel bound to a single logical resource.
// Create one per mounted surface via New; instances must not be shared
// across unrelated resource bindings.
type Conn struct {
	opt Options

	mu             sync.Mutex
	socket         *websocket.Conn
	resourceID     string
	connecting     bool
	state          State
	attempts       int
	gen            int
	reconnectTimer *time.Timer
	afterOpenTimer *time.Timer

	subsMu  sync.Mutex
	subs    []*Subscription
	nextSub int
}

func New(opt Options) *Conn {
	if opt.ReconnectDelay <= 0 {
		opt.ReconnectDelay = DefaultReconnectDelay
	}
	if opt.MaxReconnectAttempts <= 0 {
		opt.MaxReconnectAttempts = DefaultMaxReconnectAttempts
	}
	if opt.AfterOpenDelay <= 0 {
		opt.AfterOpenDelay = DefaultAfterOpenDelay
	}
	if opt.Dialer == nil {
		opt.Dialer = websocket.DefaultDialer
	}
	if opt.Log == nil {
		opt.Log = logger.GlobalLogger
	}
	return &Conn{opt: opt, state: StateIdle}
}

// Connect opens the channel for resourceID. Calling it again with the same
// id while connecting or connected is a no-op; a different id closes the
// previous channel first. The dial itself is asynchronous.
func (c *Conn) Connect(resourceID string) {
	c.mu.Lock()
	if c.resourceID == resourceID && (c.connecting || c.state == StateOpen) {
		c.mu.Unlock()
		return
	}
	if c.socket != nil && c.resourceID != resourceID {
		c.closeSocketLocked(websocket.CloseNormalClosure)
	}
	c.stopReconnectLocked()
	c.stopAfterOpenLocked()
	c.resourceID = resourceID
	c.connecting = true
	c.state = StateConnecting
	c.gen++
	gen := c.gen
	url := c.opt.Endpoint(resourceID)
	c.mu.Unlock()

	go c.dial(gen, resourceID, url)
}

func (c *Conn) dial(gen int, resourceID, url string) {
	socket, _, err := c.opt.Dialer.Dial(url, c.opt.RequestHeader)

	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		if socket != nil {
			socket.Close()
		}
		return
	}
	c.connecting = false

	if err != nil {
		c.state = StateClosed
		c.mu.Unlock()
		c.opt.Log.Error("dial %s failed: %v", url, err)
		if c.opt.StatusEvents {
			c.emit(models.Event{
				Type:   models.EventTypeConnectionStatus,
				Status: models.StatusError,
				Error:  err.Error(),
			})
		}
		c.scheduleReconnect()
		return
	}

	c.socket = socket
	c.state = StateOpen
	c.attempts = 0
	if c.opt.AfterOpen != nil {
		c.stopAfterOpenLocked()
		c.afterOpenTimer = time.AfterFunc(c.opt.AfterOpenDelay, func() {
			c.mu.Lock()
			live := gen == c.gen && c.state == StateOpen
			c.mu.Unlock()
			if live {
				c.opt.AfterOpen(c)
			}
		})
	}
	c.mu.Unlock()

	c.opt.Log.Debug("channel open for resource %s", resourceID)
	if c.opt.StatusEvents {
		c.emit(models.Event{
			Type:   models.EventTypeConnectionEstablished,
			Status: models.StatusConnected,
		})
	}

	go c.readLoop(gen, socket)
}

func (c *Conn) readLoop(gen int, socket *websocket.Conn) {
	for {
		_, data, err := socket.ReadMessage()
		if err != nil {
			c.handleClose(gen, err)
			return
		}
		c.dispatchRaw(gen, data)
	}
}

func (c *Conn) handleClose(gen int, err error) {
	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		return
	}
	if c.socket != nil {
		c.socket.Close()
		c.socket = nil
	}
	c.connecting = false
	c.state = StateClosed
	code := closeCode(err)
	c.mu.Unlock()

	c.opt.Log.Debug("channel closed with code %d", code)
	if c.opt.StatusEvents {
		c.emit(models.Event{
			Type:   models.EventTypeConnectionStatus,
			Status: models.StatusDisconnected,
			Code:   code,
		})
	}

	if code != websocket.CloseNormalClosure && code != websocket.CloseGoingAway {
		c.scheduleReconnect()
	}
}

func (c *Conn) scheduleReconnect() {
	c.mu.Lock()
	if c.resourceID == "" {
		c.mu.Unlock()
		return
	}
	if c.attempts >= c.opt.MaxReconnectAttempts {
		c.mu.Unlock()
		c.opt.Log.Error("giving up after %d reconnect attempts", c.opt.MaxReconnectAttempts)
		if c.opt.StatusEvents {
			c.emit(models.Event{
				Type:   models.EventTypeConnectionStatus,
				Status: models.StatusFailed,
			})
		}
		return
	}
	c.attempts++
	attempt := c.attempts
	resourceID := c.resourceID
	c.state = StateReconnecting
	c.stopReconnectLocked()
	c.reconnectTimer = time.AfterFunc(backoffDelay(attempt, c.opt.ReconnectDelay), func() {
		c.mu.Lock()
		due := c.resourceID == resourceID && c.state == StateReconnecting
		c.mu.Unlock()
		if due {
			c.Connect(resourceID)
		}
	})
	c.mu.Unlock()

	if c.opt.StatusEvents {
		c.emit(models.Event{
			Type:        models.EventTypeConnectionStatus,
			Status:      models.StatusReconnecting,
			Attempt:     attempt,
			MaxAttempts: c.opt.MaxReconnectAttempts,
		})
	}
}

// backoffDelay is the linear reconnect schedule: base, 2*base, 3*base, ...
func backoffDelay(attempt int, base time.Duration) time.Duration {
	return time.Duration(attempt) * base
}

// Disconnect closes the channel with a normal-closure code, clears all
// subscribers and resets the reconnect counter. Safe to call repeatedly.
func (c *Conn) Disconnect() {
	c.mu.Lock()
	c.gen++
	c.stopReconnectLocked()
	c.stopAfterOpenLocked()
	if c.socket != nil {
		c.closeSocketLocked(websocket.CloseNormalClosure)
	}
	c.connecting = false
	c.attempts = 0
	c.state = StateClosed
	c.mu.Unlock()

	c.clearSubscribers()
}

// Send serializes and transmits an action if the channel is open. It reports
// whether the frame was handed to the transport; callers fall back to the
// REST path when it returns false.
func (c *Conn) Send(action models.Action) bool {
	data, err := json.Marshal(action)
	if err != nil {
		c.opt.Log.Error("marshal action %s: %v", action.Action, err)
		return false
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.socket == nil || c.state != StateOpen {
		return false
	}
	if err := c.socket.WriteMessage(websocket.TextMessage, data); err != nil {
		c.opt.Log.Error("write action %s: %v", action.Action, err)
		return false
	}
	return true
}

func (c *Conn) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state == StateOpen && c.socket != nil
}

func (c *Conn) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// ResourceID returns the current channel binding. The binding survives
// disconnects so a later Connect can resume it.
func (c *Conn) ResourceID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.resourceID
}

func (c *Conn) closeSocketLocked(code int) {
	deadline := time.Now().Add(time.Second)
	message := websocket.FormatCloseMessage(code, "")
	if err := c.socket.WriteControl(websocket.CloseMessage, message, deadline); err != nil {
		c.opt.Log.Debug("write close frame: %v", err)
	}
	c.socket.Close()
	c.socket = nil
}

func (c *Conn) stopReconnectLocked() {
	if c.reconnectTimer != nil {
		c.reconnectTimer.Stop()
		c.reconnectTimer = nil
	}
}

func (c *Conn) stopAfterOpenLocked() {
	if c.afterOpenTimer != nil {
		c.afterOpenTimer.Stop()
		c.afterOpenTimer = nil
	}
}

func closeCode(err error) int {
	var closeErr *websocket.CloseError
	if errors.As(err, &closeErr) {
		return closeErr.Code
	}
	return websocket.CloseAbnormalClosure
}
