package realtime

import (
	"social-client/internal/models"

	json "github.com/goccy/go-json"
)

// Subscription is a handle for one registered event callback.
type Subscription struct {
	id int
	fn func(models.Event)
}

// OnEvent registers a callback invoked for every inbound event. Multiple
// subscribers are supported; dispatch order is not guaranteed to be stable.
func (c *Conn) OnEvent(fn func(models.Event)) *Subscription {
	c.subsMu.Lock()
	defer c.subsMu.Unlock()
	c.nextSub++
	sub := &Subscription{id: c.nextSub, fn: fn}
	c.subs = append(c.subs, sub)
	return sub
}

// RemoveCallback unregisters a subscription. Safe to call from inside the
// callback itself; the in-flight dispatch runs over a snapshot.
func (c *Conn) RemoveCallback(sub *Subscription) {
	if sub == nil {
		return
	}
	c.subsMu.Lock()
	defer c.subsMu.Unlock()
	for i, existing := range c.subs {
		if existing.id == sub.id {
			c.subs = append(c.subs[:i], c.subs[i+1:]...)
			return
		}
	}
}

func (c *Conn) clearSubscribers() {
	c.subsMu.Lock()
	c.subs = nil
	c.subsMu.Unlock()
}

// dispatchRaw parses an inbound frame and fans it out. Malformed payloads
// are dropped; frames from a superseded socket generation are dropped too so
// no event reaches a consumer after rebind or teardown.
func (c *Conn) dispatchRaw(gen int, data []byte) {
	var event models.Event
	if err := json.Unmarshal(data, &event); err != nil {
		c.opt.Log.Debug("dropping malformed frame: %v", err)
		return
	}

	c.mu.Lock()
	stale := gen != c.gen
	c.mu.Unlock()
	if stale {
		return
	}

	c.emit(event)
}

func (c *Conn) emit(event models.Event) {
	if c.opt.AttachResourceID && event.PostID == "" {
		event.PostID = c.ResourceID()
	}

	c.subsMu.Lock()
	subs := make([]*Subscription, len(c.subs))
	copy(subs, c.subs)
	c.subsMu.Unlock()

	for _, sub := range subs {
		c.invoke(sub, event)
	}
}

// invoke shields the dispatch loop from a panicking subscriber.
func (c *Conn) invoke(sub *Subscription, event models.Event) {
	defer func() {
		if r := recover(); r != nil {
			c.opt.Log.Error("event callback panicked: %v", r)
		}
	}()
	sub.fn(event)
}
