package realtime

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"social-client/internal/models"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type wsServer struct {
	*httptest.Server

	upgrades   int32
	mu         sync.Mutex
	paths      []string
	frames     chan []byte
	closeCodes chan int
	handle     func(conn *websocket.Conn, upgrade int) bool
}

// newWSServer runs a WebSocket server for one test. The optional handle
// hook runs per connection; returning true hands the connection back to the
// default read loop, which records inbound frames and close codes.
func newWSServer(t *testing.T, handle func(conn *websocket.Conn, upgrade int) bool) *wsServer {
	t.Helper()

	s := &wsServer{
		frames:     make(chan []byte, 32),
		closeCodes: make(chan int, 32),
		handle:     handle,
	}
	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}

	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		upgrade := int(atomic.AddInt32(&s.upgrades, 1))
		s.mu.Lock()
		s.paths = append(s.paths, r.URL.RequestURI())
		s.mu.Unlock()

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		if s.handle != nil && !s.handle(conn, upgrade) {
			return
		}
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				var closeErr *websocket.CloseError
				if errors.As(err, &closeErr) {
					s.closeCodes <- closeErr.Code
				}
				return
			}
			s.frames <- data
		}
	}))
	t.Cleanup(s.Close)
	return s
}

func (s *wsServer) wsURL() string {
	return "ws" + strings.TrimPrefix(s.URL, "http")
}

func (s *wsServer) upgradeCount() int {
	return int(atomic.LoadInt32(&s.upgrades))
}

func (s *wsServer) pathAt(i int) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i >= len(s.paths) {
		return ""
	}
	return s.paths[i]
}

func closeAbnormally(conn *websocket.Conn) {
	deadline := time.Now().Add(time.Second)
	message := websocket.FormatCloseMessage(websocket.CloseInternalServerErr, "boom")
	conn.WriteControl(websocket.CloseMessage, message, deadline)
	conn.Close()
}

type eventRecorder struct {
	mu     sync.Mutex
	events []models.Event
}

func (r *eventRecorder) record(event models.Event) {
	r.mu.Lock()
	r.events = append(r.events, event)
	r.mu.Unlock()
}

func (r *eventRecorder) snapshot() []models.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.Event, len(r.events))
	copy(out, r.events)
	return out
}

func (r *eventRecorder) statuses() []string {
	var out []string
	for _, e := range r.snapshot() {
		if e.Type == models.EventTypeConnectionStatus || e.Type == models.EventTypeConnectionEstablished {
			out = append(out, e.Status)
		}
	}
	return out
}

func waitFrame(t *testing.T, s *wsServer) []byte {
	t.Helper()
	select {
	case data := <-s.frames:
		return data
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for frame")
		return nil
	}
}

func TestConnectSameResourceOpensOneChannel(t *testing.T) {
	t.Parallel()

	s := newWSServer(t, nil)
	c := New(Options{Endpoint: ChatEndpoint(s.wsURL())})
	defer c.Disconnect()

	c.Connect("c1")
	c.Connect("c1")
	c.Connect("c1")

	require.Eventually(t, c.IsConnected, 2*time.Second, 5*time.Millisecond)

	c.Connect("c1")
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 1, s.upgradeCount())
	assert.Equal(t, "/ws/chat/c1/", s.pathAt(0))
}

func TestConnectRebindClosesPrevious(t *testing.T) {
	t.Parallel()

	s := newWSServer(t, nil)
	c := New(Options{Endpoint: ChatEndpoint(s.wsURL())})
	defer c.Disconnect()

	c.Connect("c1")
	require.Eventually(t, c.IsConnected, 2*time.Second, 5*time.Millisecond)

	c.Connect("c2")
	require.Eventually(t, func() bool {
		return c.IsConnected() && c.ResourceID() == "c2"
	}, 2*time.Second, 5*time.Millisecond)

	assert.Equal(t, 2, s.upgradeCount())
	assert.Equal(t, "/ws/chat/c1/", s.pathAt(0))
	assert.Equal(t, "/ws/chat/c2/", s.pathAt(1))

	select {
	case code := <-s.closeCodes:
		assert.Equal(t, websocket.CloseNormalClosure, code)
	case <-time.After(2 * time.Second):
		t.Fatal("previous channel was not closed")
	}
}

func TestDisconnectIdempotent(t *testing.T) {
	t.Parallel()

	s := newWSServer(t, nil)
	c := New(Options{Endpoint: ChatEndpoint(s.wsURL())})

	c.OnEvent(func(models.Event) {})
	c.Connect("c1")
	require.Eventually(t, c.IsConnected, 2*time.Second, 5*time.Millisecond)

	c.Disconnect()
	c.Disconnect()

	assert.False(t, c.IsConnected())
	assert.Equal(t, StateClosed, c.State())

	c.subsMu.Lock()
	remaining := len(c.subs)
	c.subsMu.Unlock()
	assert.Zero(t, remaining, "subscribers survived disconnect")
}

func TestSendWhileOpen(t *testing.T) {
	t.Parallel()

	s := newWSServer(t, nil)
	c := New(Options{Endpoint: ChatEndpoint(s.wsURL())})
	defer c.Disconnect()

	c.Connect("c1")
	require.Eventually(t, c.IsConnected, 2*time.Second, 5*time.Millisecond)

	require.True(t, c.Send(models.MessageAction("hi")))
	assert.JSONEq(t, `{"action":"message","message":"hi"}`, string(waitFrame(t, s)))
}

func TestSendWhileClosedDropsFrame(t *testing.T) {
	t.Parallel()

	s := newWSServer(t, nil)
	c := New(Options{Endpoint: ChatEndpoint(s.wsURL())})

	assert.False(t, c.Send(models.MessageAction("hi")))
	assert.Zero(t, s.upgradeCount())
}

func TestAbnormalCloseRetriesUntilCeiling(t *testing.T) {
	t.Parallel()

	s := newWSServer(t, func(conn *websocket.Conn, upgrade int) bool {
		closeAbnormally(conn)
		return false
	})

	c := New(Options{
		Endpoint:             PostEndpoint(s.wsURL(), ""),
		ReconnectDelay:       5 * time.Millisecond,
		MaxReconnectAttempts: 3,
		StatusEvents:         true,
	})
	defer c.Disconnect()

	recorder := &eventRecorder{}
	c.OnEvent(recorder.record)
	c.Connect("p1")

	// Initial open plus one per retry.
	require.Eventually(t, func() bool { return s.upgradeCount() == 4 }, 2*time.Second, 5*time.Millisecond)
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, 4, s.upgradeCount(), "reconnects continued past the ceiling")

	require.Eventually(t, func() bool {
		for _, status := range recorder.statuses() {
			if status == models.StatusFailed {
				return true
			}
		}
		return false
	}, 2*time.Second, 5*time.Millisecond)

	var attempts []int
	for _, e := range recorder.snapshot() {
		if e.Status == models.StatusReconnecting {
			attempts = append(attempts, e.Attempt)
		}
	}
	assert.Equal(t, []int{1, 2, 3}, attempts)

	// The binding survives; a manual Connect resumes.
	c.Connect("p1")
	require.Eventually(t, func() bool { return s.upgradeCount() > 4 }, 2*time.Second, 5*time.Millisecond)
}

func TestReconnectRecoversAfterAbnormalClose(t *testing.T) {
	t.Parallel()

	s := newWSServer(t, func(conn *websocket.Conn, upgrade int) bool {
		if upgrade == 1 {
			closeAbnormally(conn)
			return false
		}
		return true
	})

	c := New(Options{
		Endpoint:       ChatEndpoint(s.wsURL()),
		ReconnectDelay: 5 * time.Millisecond,
	})
	defer c.Disconnect()

	c.Connect("c1")
	require.Eventually(t, func() bool {
		return c.IsConnected() && s.upgradeCount() == 2
	}, 2*time.Second, 5*time.Millisecond)
}

func TestNormalCloseDoesNotReconnect(t *testing.T) {
	t.Parallel()

	s := newWSServer(t, func(conn *websocket.Conn, upgrade int) bool {
		deadline := time.Now().Add(time.Second)
		message := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "done")
		conn.WriteControl(websocket.CloseMessage, message, deadline)
		conn.Close()
		return false
	})

	c := New(Options{
		Endpoint:       ChatEndpoint(s.wsURL()),
		ReconnectDelay: 5 * time.Millisecond,
	})
	defer c.Disconnect()

	c.Connect("c1")
	require.Eventually(t, func() bool { return c.State() == StateClosed }, 2*time.Second, 5*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 1, s.upgradeCount())
}

func TestBackoffDelayIsLinear(t *testing.T) {
	t.Parallel()

	expected := []time.Duration{
		time.Second,
		2 * time.Second,
		3 * time.Second,
		4 * time.Second,
		5 * time.Second,
	}
	for attempt, want := range expected {
		assert.Equal(t, want, backoffDelay(attempt+1, time.Second))
	}
}

func TestAfterOpenHookFiresOnceOpen(t *testing.T) {
	t.Parallel()

	s := newWSServer(t, nil)
	c := New(Options{
		Endpoint:       ChatEndpoint(s.wsURL()),
		AfterOpenDelay: 10 * time.Millisecond,
		AfterOpen: func(conn *Conn) {
			conn.Send(models.RequestStatusAction())
		},
	})
	defer c.Disconnect()

	c.Connect("c1")
	assert.JSONEq(t, `{"action":"request_status"}`, string(waitFrame(t, s)))
}

func TestStatusEventsOnOpenCarryResourceID(t *testing.T) {
	t.Parallel()

	s := newWSServer(t, nil)
	c := New(Options{
		Endpoint:         PostEndpoint(s.wsURL(), ""),
		StatusEvents:     true,
		AttachResourceID: true,
	})
	defer c.Disconnect()

	recorder := &eventRecorder{}
	c.OnEvent(recorder.record)
	c.Connect("42")

	require.Eventually(t, func() bool {
		for _, e := range recorder.snapshot() {
			if e.Type == models.EventTypeConnectionEstablished {
				return e.Status == models.StatusConnected && e.PostID == "42"
			}
		}
		return false
	}, 2*time.Second, 5*time.Millisecond)
}

func TestPostEndpointTokenQuery(t *testing.T) {
	t.Parallel()

	endpoint := PostEndpoint("ws://h", "tok en")
	assert.Equal(t, "ws://h/ws/posts/7/?token=tok+en", endpoint("7"))

	plain := PostEndpoint("ws://h", "")
	assert.Equal(t, "ws://h/ws/posts/7/", plain("7"))
}
