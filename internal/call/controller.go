package call

import (
	"errors"
	"fmt"
	"sync"

	"social-client/internal/models"
	"social-client/pkg/logger"
)

// Status of a call session.
type Status int

const (
	StatusIdle Status = iota
	// StatusRinging is an incoming call waiting for accept or reject.
	StatusRinging
	// StatusDialing is an outgoing call waiting for the other side.
	StatusDialing
	StatusConnecting
	StatusConnected
	StatusEnded
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusRinging:
		return "ringing"
	case StatusDialing:
		return "dialing"
	case StatusConnecting:
		return "connecting"
	case StatusConnected:
		return "connected"
	case StatusEnded:
		return "ended"
	default:
		return "unknown"
	}
}

var (
	ErrCallInProgress = errors.New("a call is already in progress")
	ErrNoIncomingCall = errors.New("no incoming call to answer")
	ErrNoActiveCall   = errors.New("no active call")
)

// Signaler delivers signaling actions to the other peer. The conversation
// channel satisfies it; signaling rides the same socket as chat.
type Signaler interface {
	Send(action models.Action) bool
}

// Media is the local capture session for a call. The enable toggles drive
// mute and camera controls; SetVideoEnabled fails on an audio-only session.
type Media interface {
	Stop() error
	SetAudioEnabled(enabled bool) error
	SetVideoEnabled(enabled bool) error
}

// Callbacks are invoked by the peer connection from its own goroutines.
type Callbacks struct {
	OnICECandidate func(models.ICECandidate)
	OnConnected    func()
	OnFailed       func()
}

// PeerConnection is the slice of the WebRTC surface the controller needs.
type PeerConnection interface {
	CreateOffer() (models.SessionDescription, error)
	CreateAnswer() (models.SessionDescription, error)
	SetLocalDescription(desc models.SessionDescription) error
	SetRemoteDescription(desc models.SessionDescription) error
	// RemoteDescriptionSet reports whether a remote description was applied;
	// a second offer for the same session is ignored.
	RemoteDescriptionSet() bool
	// AwaitingAnswer reports the have-local-offer signaling state, the only
	// state in which an answer may be applied.
	AwaitingAnswer() bool
	AddICECandidate(candidate models.ICECandidate) error
	Close() error
}

// Engine creates media sessions and peer connections.
type Engine interface {
	CaptureMedia(callType models.CallType) (Media, error)
	NewPeerConnection(media Media, cb Callbacks) (PeerConnection, error)
}

// Controller runs one call session over a conversation channel: lifecycle
// signaling, SDP exchange and ICE relay. Offers arriving before the local
// peer connection exists are parked in a single slot and replayed once on
// accept.
type Controller struct {
	signaler Signaler
	engine   Engine
	log      *logger.Logger

	mu           sync.Mutex
	status       Status
	callID       string
	callType     models.CallType
	peer         models.User
	pc           PeerConnection
	media        Media
	muted        bool
	videoOff     bool
	pendingOffer *models.SessionDescription
	onStatus     func(Status)
	onError      func(error)
}

func NewController(signaler Signaler, engine Engine) *Controller {
	return &Controller{
		signaler: signaler,
		engine:   engine,
		log:      logger.GlobalLogger,
		status:   StatusIdle,
	}
}

// OnStatus registers a hook invoked on every status transition.
func (c *Controller) OnStatus(fn func(Status)) {
	c.mu.Lock()
	c.onStatus = fn
	c.mu.Unlock()
}

// OnError registers a hook for user-visible call failures, such as media
// capture being unavailable.
func (c *Controller) OnError(fn func(error)) {
	c.mu.Lock()
	c.onError = fn
	c.mu.Unlock()
}

func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

func (c *Controller) CallID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.callID
}

// Peer returns the other participant of the current call.
func (c *Controller) Peer() models.User {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.peer
}

// StartCall rings the other participant. The peer connection is not created
// yet; it comes up when the call is accepted.
func (c *Controller) StartCall(callType models.CallType) error {
	c.mu.Lock()
	if c.status != StatusIdle && c.status != StatusEnded {
		c.mu.Unlock()
		return ErrCallInProgress
	}
	c.callType = callType
	c.callID = ""
	c.pendingOffer = nil
	notify := c.setStatusLocked(StatusDialing)
	c.mu.Unlock()

	if notify != nil {
		notify()
	}
	c.signaler.Send(models.CallInitiateAction(callType))
	return nil
}

// Accept answers a ringing call: signal acceptance, bring up media and the
// peer connection, then replay the parked offer if one arrived early.
func (c *Controller) Accept() error {
	c.mu.Lock()
	if c.status != StatusRinging {
		c.mu.Unlock()
		return ErrNoIncomingCall
	}
	callID := c.callID
	notify := c.setStatusLocked(StatusConnecting)
	c.mu.Unlock()

	if notify != nil {
		notify()
	}
	c.signaler.Send(models.CallAcceptAction(callID))

	if err := c.setupPeer(); err != nil {
		c.fail(err)
		return err
	}

	c.mu.Lock()
	parked := c.pendingOffer
	c.pendingOffer = nil
	c.mu.Unlock()

	if parked != nil {
		if err := c.applyOffer(*parked); err != nil {
			c.fail(err)
			return err
		}
	}
	return nil
}

// Reject declines a ringing call.
func (c *Controller) Reject() error {
	c.mu.Lock()
	if c.status != StatusRinging {
		c.mu.Unlock()
		return ErrNoIncomingCall
	}
	callID := c.callID
	c.mu.Unlock()

	c.signaler.Send(models.CallRejectAction(callID))
	c.teardown()
	return nil
}

// End hangs up the current call. Safe to call at any point.
func (c *Controller) End() {
	c.mu.Lock()
	callID := c.callID
	active := c.status != StatusIdle && c.status != StatusEnded
	c.mu.Unlock()

	if active {
		c.signaler.Send(models.CallEndAction(callID))
	}
	c.teardown()
}

// ToggleMute flips the local audio track and reports whether the microphone
// is now muted.
func (c *Controller) ToggleMute() (bool, error) {
	c.mu.Lock()
	media := c.media
	muted := !c.muted
	c.mu.Unlock()

	if media == nil {
		return false, ErrNoActiveCall
	}
	if err := media.SetAudioEnabled(!muted); err != nil {
		return !muted, fmt.Errorf("failed to toggle audio: %w", err)
	}

	c.mu.Lock()
	c.muted = muted
	c.mu.Unlock()
	return muted, nil
}

// ToggleVideo flips the local video track and reports whether the camera is
// now off. Fails on audio-only calls.
func (c *Controller) ToggleVideo() (bool, error) {
	c.mu.Lock()
	media := c.media
	videoOff := !c.videoOff
	c.mu.Unlock()

	if media == nil {
		return false, ErrNoActiveCall
	}
	if err := media.SetVideoEnabled(!videoOff); err != nil {
		return !videoOff, fmt.Errorf("failed to toggle video: %w", err)
	}

	c.mu.Lock()
	c.videoOff = videoOff
	c.mu.Unlock()
	return videoOff, nil
}

func (c *Controller) Muted() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.muted
}

func (c *Controller) VideoOff() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.videoOff
}

// HandleEvent feeds call and signaling events from the conversation channel.
func (c *Controller) HandleEvent(event models.Event) {
	switch event.Type {
	case models.EventTypeCallIncoming:
		c.handleIncoming(event)
	case models.EventTypeCallAccepted:
		c.handleAccepted(event)
	case models.EventTypeCallRejected, models.EventTypeCallEnded:
		c.teardown()
	case models.EventTypeOffer:
		c.handleOffer(event)
	case models.EventTypeAnswer:
		c.handleAnswer(event)
	case models.EventTypeICECandidate:
		c.handleCandidate(event)
	}
}

func (c *Controller) handleIncoming(event models.Event) {
	c.mu.Lock()
	busy := c.status == StatusDialing || c.status == StatusConnecting ||
		c.status == StatusConnected || c.status == StatusRinging
	if busy {
		c.mu.Unlock()
		c.signaler.Send(models.CallRejectAction(event.CallID))
		return
	}
	c.callID = event.CallID
	c.callType = event.CallType
	c.peer = models.User{
		ID:             event.CallerID,
		Username:       event.CallerUsername,
		ProfilePicture: event.CallerProfilePicture,
	}
	c.pendingOffer = nil
	notify := c.setStatusLocked(StatusRinging)
	c.mu.Unlock()

	if notify != nil {
		notify()
	}
}

// handleAccepted runs on the caller's side: the callee picked up, so build
// the peer connection and send the offer.
func (c *Controller) handleAccepted(event models.Event) {
	c.mu.Lock()
	if c.status != StatusDialing {
		c.mu.Unlock()
		return
	}
	if event.CallID != "" {
		c.callID = event.CallID
	}
	if event.AcceptorID != "" {
		c.peer = models.User{ID: event.AcceptorID, Username: event.AcceptorUsername}
	}
	notify := c.setStatusLocked(StatusConnecting)
	c.mu.Unlock()

	if notify != nil {
		notify()
	}
	if err := c.setupPeer(); err != nil {
		c.fail(err)
		return
	}
	if err := c.sendOffer(); err != nil {
		c.fail(err)
	}
}

func (c *Controller) handleOffer(event models.Event) {
	if event.Offer == nil {
		return
	}

	c.mu.Lock()
	pc := c.pc
	if pc == nil {
		// Offer arrived before accept; park it for replay. Latest wins.
		c.pendingOffer = event.Offer
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()

	if pc.RemoteDescriptionSet() {
		c.log.Debug("ignoring duplicate offer for call %s", c.CallID())
		return
	}
	if err := c.applyOffer(*event.Offer); err != nil {
		c.fail(err)
	}
}

func (c *Controller) handleAnswer(event models.Event) {
	if event.Answer == nil {
		return
	}

	c.mu.Lock()
	pc := c.pc
	c.mu.Unlock()
	if pc == nil || !pc.AwaitingAnswer() {
		return
	}
	if err := pc.SetRemoteDescription(*event.Answer); err != nil {
		c.fail(fmt.Errorf("failed to apply answer: %w", err))
	}
}

func (c *Controller) handleCandidate(event models.Event) {
	if event.Candidate == nil {
		return
	}

	c.mu.Lock()
	pc := c.pc
	c.mu.Unlock()
	if pc == nil {
		// Candidates for a session that never came up are dropped.
		return
	}
	if err := pc.AddICECandidate(*event.Candidate); err != nil {
		c.log.Error("failed to add ICE candidate: %v", err)
	}
}

func (c *Controller) setupPeer() error {
	c.mu.Lock()
	callType := c.callType
	c.mu.Unlock()

	media, err := c.engine.CaptureMedia(callType)
	if err != nil {
		return fmt.Errorf("failed to capture media: %w", err)
	}

	pc, err := c.engine.NewPeerConnection(media, Callbacks{
		OnICECandidate: func(candidate models.ICECandidate) {
			c.signaler.Send(models.ICECandidateAction(candidate))
		},
		OnConnected: func() {
			c.mu.Lock()
			notify := c.setStatusLocked(StatusConnected)
			c.mu.Unlock()
			if notify != nil {
				notify()
			}
		},
		OnFailed: func() {
			c.teardown()
		},
	})
	if err != nil {
		media.Stop()
		return fmt.Errorf("failed to create peer connection: %w", err)
	}

	c.mu.Lock()
	c.media = media
	c.pc = pc
	// Fresh sessions start with both tracks live.
	c.muted = false
	c.videoOff = false
	c.mu.Unlock()
	return nil
}

func (c *Controller) sendOffer() error {
	c.mu.Lock()
	pc := c.pc
	c.mu.Unlock()

	offer, err := pc.CreateOffer()
	if err != nil {
		return fmt.Errorf("failed to create offer: %w", err)
	}
	if err := pc.SetLocalDescription(offer); err != nil {
		return fmt.Errorf("failed to set local description: %w", err)
	}
	c.signaler.Send(models.OfferAction(offer))
	return nil
}

func (c *Controller) applyOffer(offer models.SessionDescription) error {
	c.mu.Lock()
	pc := c.pc
	c.mu.Unlock()

	if err := pc.SetRemoteDescription(offer); err != nil {
		return fmt.Errorf("failed to apply offer: %w", err)
	}
	answer, err := pc.CreateAnswer()
	if err != nil {
		return fmt.Errorf("failed to create answer: %w", err)
	}
	if err := pc.SetLocalDescription(answer); err != nil {
		return fmt.Errorf("failed to set local description: %w", err)
	}
	c.signaler.Send(models.AnswerAction(answer))
	return nil
}

// fail surfaces a user-visible error, tells the other side and tears the
// session down.
func (c *Controller) fail(err error) {
	c.log.Error("call failed: %v", err)

	c.mu.Lock()
	callID := c.callID
	fn := c.onError
	c.mu.Unlock()

	if fn != nil {
		fn(err)
	}
	c.signaler.Send(models.CallEndAction(callID))
	c.teardown()
}

// teardown releases media and the peer connection. Idempotent: repeated
// end/reject/failure events find nothing left to release.
func (c *Controller) teardown() {
	c.mu.Lock()
	media := c.media
	pc := c.pc
	c.media = nil
	c.pc = nil
	c.pendingOffer = nil
	var notify func()
	if c.status != StatusEnded && c.status != StatusIdle {
		notify = c.setStatusLocked(StatusEnded)
	}
	c.mu.Unlock()

	if notify != nil {
		notify()
	}
	if media != nil {
		if err := media.Stop(); err != nil {
			c.log.Debug("stop media: %v", err)
		}
	}
	if pc != nil {
		if err := pc.Close(); err != nil {
			c.log.Debug("close peer connection: %v", err)
		}
	}
}

// setStatusLocked records the transition and returns the hook invocation for
// the caller to run after releasing the lock, so hooks observe transitions
// in order.
func (c *Controller) setStatusLocked(status Status) func() {
	if c.status == status {
		return nil
	}
	c.status = status
	fn := c.onStatus
	if fn == nil {
		return nil
	}
	return func() { fn(status) }
}
