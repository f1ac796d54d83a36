package call

import (
	"errors"
	"fmt"
	"sync"

	"social-client/internal/models"

	"github.com/pion/webrtc/v4"
)

var errNoVideoTrack = errors.New("call has no video track")

// WebRTCEngine is the production Engine backed by pion.
type WebRTCEngine struct {
	config webrtc.Configuration
}

func NewWebRTCEngine(stunServers []string) *WebRTCEngine {
	return &WebRTCEngine{
		config: webrtc.Configuration{
			ICEServers: []webrtc.ICEServer{{URLs: stunServers}},
		},
	}
}

// webrtcMedia holds the local tracks for a call. Capture pipelines write
// samples into the tracks, consult the enabled flags before each write (a
// disabled track goes silent, mirroring a browser's track.enabled), and stop
// on their own once the peer connection closes, so Stop has nothing to
// release here.
type webrtcMedia struct {
	tracks []*webrtc.TrackLocalStaticSample

	mu           sync.Mutex
	hasVideo     bool
	audioEnabled bool
	videoEnabled bool
}

func (m *webrtcMedia) Stop() error { return nil }

func (m *webrtcMedia) SetAudioEnabled(enabled bool) error {
	m.mu.Lock()
	m.audioEnabled = enabled
	m.mu.Unlock()
	return nil
}

func (m *webrtcMedia) SetVideoEnabled(enabled bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.hasVideo {
		return errNoVideoTrack
	}
	m.videoEnabled = enabled
	return nil
}

// AudioEnabled and VideoEnabled are read by the capture pipelines feeding
// the tracks.

func (m *webrtcMedia) AudioEnabled() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.audioEnabled
}

func (m *webrtcMedia) VideoEnabled() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.videoEnabled
}

func (e *WebRTCEngine) CaptureMedia(callType models.CallType) (Media, error) {
	audio, err := webrtc.NewTrackLocalStaticSample(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus}, "audio", "social-client")
	if err != nil {
		return nil, fmt.Errorf("failed to create audio track: %w", err)
	}
	tracks := []*webrtc.TrackLocalStaticSample{audio}

	hasVideo := callType == models.CallTypeVideo
	if hasVideo {
		video, err := webrtc.NewTrackLocalStaticSample(
			webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeVP8}, "video", "social-client")
		if err != nil {
			return nil, fmt.Errorf("failed to create video track: %w", err)
		}
		tracks = append(tracks, video)
	}
	return &webrtcMedia{
		tracks:       tracks,
		hasVideo:     hasVideo,
		audioEnabled: true,
		videoEnabled: hasVideo,
	}, nil
}

func (e *WebRTCEngine) NewPeerConnection(media Media, cb Callbacks) (PeerConnection, error) {
	pc, err := webrtc.NewPeerConnection(e.config)
	if err != nil {
		return nil, fmt.Errorf("failed to create peer connection: %w", err)
	}

	if m, ok := media.(*webrtcMedia); ok {
		for _, track := range m.tracks {
			if _, err := pc.AddTrack(track); err != nil {
				pc.Close()
				return nil, fmt.Errorf("failed to add %s track: %w", track.Kind(), err)
			}
		}
	}

	pc.OnICECandidate(func(candidate *webrtc.ICECandidate) {
		// nil marks the end of gathering.
		if candidate == nil || cb.OnICECandidate == nil {
			return
		}
		init := candidate.ToJSON()
		cb.OnICECandidate(models.ICECandidate{
			Candidate:        init.Candidate,
			SDPMid:           init.SDPMid,
			SDPMLineIndex:    init.SDPMLineIndex,
			UsernameFragment: init.UsernameFragment,
		})
	})

	pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		switch state {
		case webrtc.PeerConnectionStateConnected:
			if cb.OnConnected != nil {
				cb.OnConnected()
			}
		case webrtc.PeerConnectionStateFailed, webrtc.PeerConnectionStateClosed:
			if cb.OnFailed != nil {
				cb.OnFailed()
			}
		}
	})

	return &webrtcPeer{pc: pc}, nil
}

type webrtcPeer struct {
	pc *webrtc.PeerConnection
}

func (p *webrtcPeer) CreateOffer() (models.SessionDescription, error) {
	offer, err := p.pc.CreateOffer(nil)
	if err != nil {
		return models.SessionDescription{}, err
	}
	return fromSDP(offer), nil
}

func (p *webrtcPeer) CreateAnswer() (models.SessionDescription, error) {
	answer, err := p.pc.CreateAnswer(nil)
	if err != nil {
		return models.SessionDescription{}, err
	}
	return fromSDP(answer), nil
}

func (p *webrtcPeer) SetLocalDescription(desc models.SessionDescription) error {
	return p.pc.SetLocalDescription(toSDP(desc))
}

func (p *webrtcPeer) SetRemoteDescription(desc models.SessionDescription) error {
	return p.pc.SetRemoteDescription(toSDP(desc))
}

func (p *webrtcPeer) RemoteDescriptionSet() bool {
	return p.pc.RemoteDescription() != nil
}

func (p *webrtcPeer) AwaitingAnswer() bool {
	return p.pc.SignalingState() == webrtc.SignalingStateHaveLocalOffer
}

func (p *webrtcPeer) AddICECandidate(candidate models.ICECandidate) error {
	return p.pc.AddICECandidate(webrtc.ICECandidateInit{
		Candidate:        candidate.Candidate,
		SDPMid:           candidate.SDPMid,
		SDPMLineIndex:    candidate.SDPMLineIndex,
		UsernameFragment: candidate.UsernameFragment,
	})
}

func (p *webrtcPeer) Close() error {
	return p.pc.Close()
}

func toSDP(desc models.SessionDescription) webrtc.SessionDescription {
	return webrtc.SessionDescription{Type: webrtc.NewSDPType(desc.Type), SDP: desc.SDP}
}

func fromSDP(desc webrtc.SessionDescription) models.SessionDescription {
	return models.SessionDescription{Type: desc.Type.String(), SDP: desc.SDP}
}
