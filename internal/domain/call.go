// Package domain contains entities without logic, just meta-data and
// pure helpers shared by every layer above.
package domain

// CallState is the framework-facing state of one session or conference.
type CallState int

const (
	StateIdle CallState = iota
	StateDialing
	StateAlerting
	StateIncoming
	StateRinging
	StateActive
	StateHolding
	StateWaiting
	StateDisconnecting
	StateDisconnected
)

func (s CallState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateDialing:
		return "dialing"
	case StateAlerting:
		return "alerting"
	case StateIncoming:
		return "incoming"
	case StateRinging:
		return "ringing"
	case StateActive:
		return "active"
	case StateHolding:
		return "holding"
	case StateWaiting:
		return "waiting"
	case StateDisconnecting:
		return "disconnecting"
	case StateDisconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

// IsTerminal reports whether no further transition can follow.
func (s CallState) IsTerminal() bool {
	return s == StateDisconnected
}

// Direction of the call leg at creation time.
type Direction int

const (
	DirectionUnknown Direction = iota
	DirectionIncoming
	DirectionOutgoing
)

func (d Direction) String() string {
	switch d {
	case DirectionIncoming:
		return "incoming"
	case DirectionOutgoing:
		return "outgoing"
	default:
		return "unknown"
	}
}

// Technology is the closed set of radio access variants a leg can use.
// Variant-specific behavior dispatches on this tag, not on subtypes.
type Technology int

const (
	TechCircuitSwitched Technology = iota
	TechNarrowband
	TechIPMultimedia
)

func (t Technology) String() string {
	switch t {
	case TechCircuitSwitched:
		return "cs"
	case TechNarrowband:
		return "narrowband"
	case TechIPMultimedia:
		return "ims"
	default:
		return "unknown"
	}
}

// Capability bits surfaced to the host framework. Stable contract:
// values never change meaning between releases.
type Capability uint32

const (
	CapHold Capability = 1 << iota
	CapSupportHold
	CapMute
	CapMerge
	CapSwap
	CapSeparateFromConference
	CapDisconnectFromConference
	CapManageConference
	CapDowngradeToAudio
	CapSupportsVTLocalRx
	CapSupportsVTLocalTx
	CapSupportsVTRemoteRx
	CapSupportsVTRemoteTx
	CapCanUpgradeToVideo
	CapRespondViaText
)

// CapSupportsVTLocalBidirectional and friends are the composed forms the
// framework bridge understands.
const (
	CapSupportsVTLocalBidirectional  = CapSupportsVTLocalRx | CapSupportsVTLocalTx
	CapSupportsVTRemoteBidirectional = CapSupportsVTRemoteRx | CapSupportsVTRemoteTx
)

// Has reports whether all bits in mask are set.
func (c Capability) Has(mask Capability) bool { return c&mask == mask }

// Property bits surfaced to the host framework.
type Property uint32

const (
	PropConference Property = 1 << iota
	PropGenericConference
	PropHighDefAudio
	PropWifi
	PropEmergencyCallback
	PropExternalCall
	PropNoChildren
)

// Has reports whether all bits in mask are set.
func (p Property) Has(mask Property) bool { return p&mask == mask }

// VideoState mirrors the leg's negotiated media directionality.
type VideoState int

const (
	VideoNone VideoState = iota
	VideoTxEnabled
	VideoRxEnabled
	VideoBidirectional
)

// AudioQuality as reported by the radio layer.
type AudioQuality int

const (
	AudioQualityStandard AudioQuality = iota
	AudioQualityHigh
)
