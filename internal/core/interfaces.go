package core

import (
	"errors"

	"github.com/dkeye/callbridge/internal/domain"
)

// Radio primitive failures. Non-fatal: callers log and abandon the
// operation, the framework re-issues on the next user action.
var (
	ErrRadioBusy    = errors.New("radio busy")
	ErrInvalidState = errors.New("invalid call state for operation")
	ErrUnsupported  = errors.New("operation not supported on this leg")
)

// RadioLeg is one raw connection object owned by the radio layer.
// The session holds a non-owning reference and must drop it on teardown.
type RadioLeg interface {
	ID() string
	State() domain.CallState
	Address() domain.Address
	Technology() domain.Technology
	IsMultiparty() bool
	// Group returns the call group this leg belongs to, nil if none.
	Group() CallGroup
	// Capabilities is the leg-reported bitmask (video/downgrade bits).
	Capabilities() domain.Capability

	// Fire-and-forget primitives; completion arrives as a later event.
	Hangup() error
	SendDTMF(digit rune) error
	Separate() error
	// DisconnectParticipant asks the conference server to drop one
	// remote party. IMS legs only; others return ErrUnsupported.
	DisconnectParticipant(endpoint string) error

	AddObserver(LegObserver)
	RemoveObserver(LegObserver)
}

// CallGroup is the radio-level grouping of legs that hold/unhold and
// conference primitives act on.
type CallGroup interface {
	ID() string
	Legs() []RadioLeg
	// SwitchActiveHolding is the single primitive behind both hold and
	// unhold. Issuing it on sibling legs cancels out.
	SwitchActiveHolding() error
	// Conference joins the active and held calls of this group.
	Conference() error
	// Flash is the narrowband swap/merge signal. No acknowledgment.
	Flash() error
}

// ParticipantInfo is one entry of a conference event-package snapshot.
// Out-of-band data: never derived from individual leg state.
type ParticipantInfo struct {
	Endpoint    string `json:"endpoint"`
	DisplayName string `json:"display_name"`
	Status      string `json:"status"`
}

// Participant snapshot status values understood by the conference engine.
const (
	ParticipantStatusConnected    = "connected"
	ParticipantStatusOnHold       = "on-hold"
	ParticipantStatusDisconnected = "disconnected"
)

// LegObserver receives the radio bridge's per-leg notifications.
// Callbacks are serialized by the owning queue but arrive in
// non-deterministic order relative to other sources.
type LegObserver interface {
	OnStateChanged(leg RadioLeg)
	OnDisconnected(leg RadioLeg, code domain.RadioDisconnectCode, reason string)
	OnCapabilitiesChanged(leg RadioLeg, caps domain.Capability)
	OnVideoStateChanged(leg RadioLeg, vs domain.VideoState)
	OnWifiChanged(leg RadioLeg, onWifi bool)
	OnAudioQualityChanged(leg RadioLeg, q domain.AudioQuality)
	OnMultipartyChanged(leg RadioLeg, multiparty bool)
	OnConferenceParticipantsChanged(leg RadioLeg, snapshot []ParticipantInfo)
	OnExtrasChanged(leg RadioLeg, extras map[string]string)
}

// ServiceState as reported by the radio control plane.
type ServiceState int

const (
	ServiceOutOfService ServiceState = iota
	ServiceEmergencyOnly
	ServiceInService
	ServicePowerOff
)

// RadioControl is the control-plane surface the emergency activation
// sequencer drives.
type RadioControl interface {
	PowerOn() error
	ServiceState() ServiceState
	// CallConnected reports whether the radio already shows the
	// emergency call as connected (activation is then moot).
	CallConnected() bool
	AddServiceObserver(func(ServiceState)) (remove func())
}

// FrameworkBridge is the outbound surface towards the host
// call-management framework. The framework sees sessions and
// conferences, never raw radio events.
type FrameworkBridge interface {
	OnSessionAdded(s *Session)
	OnSessionUpdated(s *Session)
	OnSessionDestroyed(s *Session, cause domain.DisconnectDescriptor)
	OnConferenceAdded(c *Conference)
	OnConferenceUpdated(c *Conference)
	OnConferenceDestroyed(c *Conference)
	// OnConnectionEvent carries point signals like hold-tone start/end.
	OnConnectionEvent(s *Session, event string)
}

// ConnectionEvent names understood by the framework bridge.
const (
	EventHoldToneStart = "hold_tone_start"
	EventHoldToneEnd   = "hold_tone_end"
	EventWifiCall      = "wifi_call"
)

// ExtraExternalCall marks a call that lives on another device of the
// same account; the radio layer reports it through leg extras.
const ExtraExternalCall = "external_call"

// SiblingView is the session's read-only window onto the rest of the
// live call set, threaded in via the constructor instead of a global
// registry so instances stay testable in isolation.
type SiblingView interface {
	// RingingWaitingExists reports a call-waiting leg in the ringing
	// position. Hold must be suppressed then: the switch primitive
	// would answer the waiting call as a side effect.
	RingingWaitingExists() bool
	// TopLevelCallCount counts framework-visible top-level calls.
	TopLevelCallCount() int
}

// AudioRoute abstracts the device audio path the alert tone player
// manipulates.
type AudioRoute interface {
	VoiceCallVolume() int
	MaxVoiceCallVolume() int
	SetVoiceCallVolume(v int)
	StartTone() error
	StopTone()
	Vibrate(pattern []int) error
	StopVibration()
}
