package realtime

import (
	"testing"

	"social-client/internal/models"

	"github.com/stretchr/testify/assert"
)

func newLocalConn(opt Options) *Conn {
	if opt.Endpoint == nil {
		opt.Endpoint = NotificationsEndpoint("ws://unused")
	}
	return New(opt)
}

func TestDispatchDropsMalformedFrames(t *testing.T) {
	t.Parallel()

	c := newLocalConn(Options{})
	var received []models.Event
	c.OnEvent(func(e models.Event) { received = append(received, e) })

	c.dispatchRaw(0, []byte(`{"type":`))
	c.dispatchRaw(0, []byte(`not json at all`))
	assert.Empty(t, received)

	c.dispatchRaw(0, []byte(`{"type":"typing","is_typing":true}`))
	assert.Len(t, received, 1)
	assert.Equal(t, models.EventTypeTyping, received[0].Type)
	assert.True(t, received[0].IsTyping)
}

func TestDispatchIgnoresUnknownType(t *testing.T) {
	t.Parallel()

	c := newLocalConn(Options{})
	var received []models.Event
	c.OnEvent(func(e models.Event) { received = append(received, e) })

	// Unknown discriminators still parse; consumers just never match them.
	c.dispatchRaw(0, []byte(`{"type":"surprise_me"}`))
	assert.Len(t, received, 1)
	assert.Equal(t, models.EventType("surprise_me"), received[0].Type)
}

func TestDispatchSurvivesPanickingSubscriber(t *testing.T) {
	t.Parallel()

	c := newLocalConn(Options{})
	c.OnEvent(func(models.Event) { panic("bad subscriber") })

	var calls int
	c.OnEvent(func(models.Event) { calls++ })

	c.emit(models.Event{Type: models.EventTypeMessage})
	assert.Equal(t, 1, calls)
}

func TestRemoveCallbackDuringDispatch(t *testing.T) {
	t.Parallel()

	c := newLocalConn(Options{})

	var firstCalls, secondCalls int
	var first *Subscription
	first = c.OnEvent(func(models.Event) {
		firstCalls++
		c.RemoveCallback(first)
	})
	c.OnEvent(func(models.Event) { secondCalls++ })

	c.emit(models.Event{Type: models.EventTypeMessage})
	assert.Equal(t, 1, firstCalls)
	assert.Equal(t, 1, secondCalls, "removal during dispatch skipped a subscriber")

	c.emit(models.Event{Type: models.EventTypeMessage})
	assert.Equal(t, 1, firstCalls, "removed subscriber was invoked again")
	assert.Equal(t, 2, secondCalls)
}

func TestDispatchStaleGenerationDropped(t *testing.T) {
	t.Parallel()

	c := newLocalConn(Options{})
	var calls int
	c.OnEvent(func(models.Event) { calls++ })

	c.mu.Lock()
	c.gen = 3
	c.mu.Unlock()

	c.dispatchRaw(2, []byte(`{"type":"message"}`))
	assert.Zero(t, calls)

	c.dispatchRaw(3, []byte(`{"type":"message"}`))
	assert.Equal(t, 1, calls)
}

func TestDispatchAttachesResourceID(t *testing.T) {
	t.Parallel()

	c := newLocalConn(Options{AttachResourceID: true})
	c.mu.Lock()
	c.resourceID = "p9"
	c.mu.Unlock()

	var received []models.Event
	c.OnEvent(func(e models.Event) { received = append(received, e) })

	c.dispatchRaw(0, []byte(`{"type":"like_update","like_count":3}`))
	c.dispatchRaw(0, []byte(`{"type":"new_comment","post_id":"other"}`))

	assert.Len(t, received, 2)
	assert.Equal(t, "p9", received[0].PostID)
	assert.Equal(t, "other", received[1].PostID, "explicit post_id must win")
}
