package core

import (
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/callbridge/internal/domain"
)

// SessionListener observes one session's framework-visible lifecycle.
// Handles are non-owning; every listener is dropped when the session
// is destroyed, so a stale registration can never call into a freed
// aggregate.
type SessionListener interface {
	OnStateChanged(s *Session, old domain.CallState)
	// OnUpdated fires when capabilities, properties or address-level
	// data changed without a state transition.
	OnUpdated(s *Session)
	OnMultipartyChanged(s *Session)
	// OnParticipantsSnapshot republishes a conference event-package
	// batch received on this session's leg.
	OnParticipantsSnapshot(s *Session, snapshot []ParticipantInfo)
	OnTechnologyChanged(s *Session, old domain.Technology)
	OnDestroyed(s *Session, cause domain.DisconnectDescriptor)
}

// stateOverride forces a synthetic state for as long as the underlying
// leg state stays where it was when the override was set. The first
// real leg transition wins and clears it.
type stateOverride struct {
	active   bool
	state    domain.CallState
	legState domain.CallState
}

// Session adapts one radio call leg into the framework-facing call
// representation. All mutation happens on the owning serial queue;
// no internal locking.
type Session struct {
	id        string
	direction domain.Direction
	siblings  SiblingView

	leg          RadioLeg
	state        domain.CallState
	address      domain.Address
	tech         domain.Technology
	videoState   domain.VideoState
	onWifi       bool
	audioQuality domain.AudioQuality
	extras       map[string]string
	legCaps      domain.Capability

	conference *Conference
	override   stateOverride

	// Sticky one-way flags. Historical, never derived, never cleared.
	emergency bool
	wasIMS    bool

	conferenceCapable bool
	destroyed         bool

	listeners []SessionListener
}

// NewSession creates a session not yet bound to a leg. The sibling
// view is threaded in so hold/unhold suppression can see the rest of
// the live call set without a global registry.
func NewSession(direction domain.Direction, siblings SiblingView) *Session {
	return &Session{
		id:        uuid.NewString(),
		direction: direction,
		siblings:  siblings,
		state:     domain.StateIdle,
		extras:    map[string]string{},
	}
}

func (s *Session) ID() string                     { return s.id }
func (s *Session) Direction() domain.Direction    { return s.direction }
func (s *Session) State() domain.CallState        { return s.state }
func (s *Session) Address() domain.Address        { return s.address }
func (s *Session) Technology() domain.Technology  { return s.tech }
func (s *Session) VideoState() domain.VideoState  { return s.videoState }
func (s *Session) IsEmergency() bool              { return s.emergency }
func (s *Session) WasIMS() bool                   { return s.wasIMS }
func (s *Session) OnWifi() bool                   { return s.onWifi }
func (s *Session) Destroyed() bool                { return s.destroyed }
func (s *Session) Leg() RadioLeg                  { return s.leg }
func (s *Session) Conference() *Conference        { return s.conference }
func (s *Session) ConferenceCapable() bool        { return s.conferenceCapable }
func (s *Session) SetConferenceCapable(v bool)    { s.conferenceCapable = v }
func (s *Session) Extras() map[string]string      { return s.extras }

// MarkEmergency force-flags the session, used when the dial request
// itself was an emergency dial regardless of address pattern.
func (s *Session) MarkEmergency() { s.emergency = true }

func (s *Session) AddListener(l SessionListener) {
	for _, cur := range s.listeners {
		if cur == l {
			return
		}
	}
	s.listeners = append(s.listeners, l)
}

func (s *Session) RemoveListener(l SessionListener) {
	for i, cur := range s.listeners {
		if cur == l {
			s.listeners = append(s.listeners[:i], s.listeners[i+1:]...)
			return
		}
	}
}

// snapshotListeners guards against mutation during fan-out.
func (s *Session) snapshotListeners() []SessionListener {
	out := make([]SessionListener, len(s.listeners))
	copy(out, s.listeners)
	return out
}

// Attach binds a leg, unbinding any previous one first. The session
// tolerates leg going nil later if it degrades to a zombie.
func (s *Session) Attach(leg RadioLeg) {
	if s.leg != nil {
		s.leg.RemoveObserver(s)
	}
	s.leg = leg
	if leg == nil {
		return
	}
	leg.AddObserver(s)
	s.address = leg.Address()
	s.legCaps = leg.Capabilities()
	s.applyTechnology(leg.Technology())
	if domain.IsEmergencyNumber(s.address.Number) {
		s.emergency = true
	}
	log.Debug().Str("module", "core.session").Str("id", s.id).
		Str("leg", leg.ID()).Str("tech", s.tech.String()).Msg("leg attached")
	s.updateState()
}

// Detach drops the leg reference without destroying the session.
func (s *Session) Detach() {
	if s.leg != nil {
		s.leg.RemoveObserver(s)
		s.leg = nil
	}
}

func (s *Session) applyTechnology(tech domain.Technology) {
	if tech == s.tech {
		return
	}
	old := s.tech
	s.tech = tech
	if tech == domain.TechIPMultimedia {
		s.wasIMS = true
	}
	for _, l := range s.snapshotListeners() {
		l.OnTechnologyChanged(s, old)
	}
}

// SetStateOverride forces a synthetic state until the underlying leg
// moves. Used to keep a new outgoing call looking like "dialing"
// while merge consideration is delayed.
func (s *Session) SetStateOverride(synthetic domain.CallState) {
	legState := domain.StateIdle
	if s.leg != nil {
		legState = s.leg.State()
	}
	s.override = stateOverride{active: true, state: synthetic, legState: legState}
	s.updateState()
}

func (s *Session) ClearStateOverride() {
	if !s.override.active {
		return
	}
	s.override = stateOverride{}
	s.updateState()
}

// mapLegState translates raw leg state to session state. Waiting maps
// to ringing: the framework has no separate waiting position.
func mapLegState(ls domain.CallState) domain.CallState {
	switch ls {
	case domain.StateDialing, domain.StateAlerting:
		return domain.StateDialing
	case domain.StateIncoming, domain.StateWaiting:
		return domain.StateRinging
	default:
		return ls
	}
}

// effectiveState applies the override rule: override wins only while
// the leg state has not moved since the override was set.
func (s *Session) effectiveState() domain.CallState {
	legState := domain.StateDisconnected
	if s.leg != nil {
		legState = s.leg.State()
	}
	if s.override.active {
		if legState == s.override.legState {
			return s.override.state
		}
		s.override = stateOverride{}
	}
	if legState == domain.StateDisconnecting {
		// Teardown in flight; hold the last reported state.
		return s.state
	}
	return mapLegState(legState)
}

// updateState recomputes and publishes the session state. Terminal
// disconnect without an explicit cause callback degrades to an
// unspecified normal cause.
func (s *Session) updateState() {
	if s.destroyed {
		return
	}
	next := s.effectiveState()
	if next == s.state {
		return
	}
	old := s.state
	s.state = next
	log.Info().Str("module", "core.session").Str("id", s.id).
		Str("from", old.String()).Str("to", next.String()).Msg("state changed")
	if next == domain.StateDisconnected {
		s.close(domain.MapCause(domain.DiscNormalUnspecified, ""))
		return
	}
	for _, l := range s.snapshotListeners() {
		l.OnStateChanged(s, old)
	}
}

// close tears the session down exactly once: drop the leg reference,
// fan out destruction, then sever every listener registration.
func (s *Session) close(cause domain.DisconnectDescriptor) {
	if s.destroyed {
		return
	}
	s.destroyed = true
	s.state = domain.StateDisconnected
	s.Detach()
	for _, l := range s.snapshotListeners() {
		l.OnDestroyed(s, cause)
	}
	s.listeners = nil
}

// Close destroys the session locally with the given radio cause.
// Used by controllers for handover teardown.
func (s *Session) Close(code domain.RadioDisconnectCode, reason string) {
	s.close(domain.MapCause(code, reason))
}

// Capabilities derives the framework bitmask. Emergency calls never
// advertise hold; conference-termination bits are withheld for any
// session that ever was IMS, even after CS fallback.
func (s *Session) Capabilities() domain.Capability {
	caps := domain.CapMute
	if !s.emergency {
		caps |= domain.CapSupportHold | domain.CapHold
	}
	caps |= s.legCaps & (domain.CapDowngradeToAudio |
		domain.CapSupportsVTLocalBidirectional |
		domain.CapSupportsVTRemoteBidirectional |
		domain.CapCanUpgradeToVideo)
	if s.conference != nil && !s.wasIMS {
		caps |= domain.CapDisconnectFromConference | domain.CapSeparateFromConference
	}
	return caps
}

// Properties derives the framework property bitmask.
func (s *Session) Properties() domain.Property {
	var props domain.Property
	if s.onWifi {
		props |= domain.PropWifi
	}
	if s.audioQuality == domain.AudioQualityHigh {
		props |= domain.PropHighDefAudio
	}
	if s.conference != nil {
		props |= domain.PropConference
	}
	if s.extras[ExtraExternalCall] == "true" {
		props |= domain.PropExternalCall
	}
	return props
}

// Hold requests active->holding on the leg's call group. Suppressed
// while a call-waiting leg rings: the switch primitive would answer
// the waiting call instead.
func (s *Session) Hold() {
	if s.leg == nil || s.leg.Group() == nil {
		log.Warn().Str("module", "core.session").Str("id", s.id).Msg("hold without leg group")
		return
	}
	if s.siblings != nil && s.siblings.RingingWaitingExists() {
		log.Info().Str("module", "core.session").Str("id", s.id).
			Msg("hold suppressed, call-waiting leg is ringing")
		return
	}
	if err := s.leg.Group().SwitchActiveHolding(); err != nil {
		log.Error().Err(err).Str("module", "core.session").Str("id", s.id).Msg("hold failed")
	}
}

// Unhold requests holding->active. Suppressed whenever more than one
// top-level call exists: unhold here and hold on a sibling share one
// radio primitive and would cancel out.
func (s *Session) Unhold() {
	if s.leg == nil || s.leg.Group() == nil {
		log.Warn().Str("module", "core.session").Str("id", s.id).Msg("unhold without leg group")
		return
	}
	if s.siblings != nil && s.siblings.TopLevelCallCount() > 1 {
		log.Info().Str("module", "core.session").Str("id", s.id).
			Msg("unhold suppressed, multiple top-level calls")
		return
	}
	if err := s.leg.Group().SwitchActiveHolding(); err != nil {
		log.Error().Err(err).Str("module", "core.session").Str("id", s.id).Msg("unhold failed")
	}
}

// Hangup tears the leg down. Failure is logged and abandoned; the
// disconnect, when it lands, arrives as a radio event.
func (s *Session) Hangup() {
	if s.leg == nil {
		s.close(domain.MapCause(domain.DiscNormalLocal, "hangup on zombie session"))
		return
	}
	if err := s.leg.Hangup(); err != nil {
		log.Error().Err(err).Str("module", "core.session").Str("id", s.id).Msg("hangup failed")
	}
}

func (s *Session) SendDTMF(digit rune) {
	if s.leg == nil {
		return
	}
	if err := s.leg.SendDTMF(digit); err != nil {
		log.Error().Err(err).Str("module", "core.session").Str("id", s.id).Msg("dtmf failed")
	}
}

// Separate pulls this session out of its network conference.
func (s *Session) Separate() {
	if s.leg == nil {
		return
	}
	if err := s.leg.Separate(); err != nil {
		log.Error().Err(err).Str("module", "core.session").Str("id", s.id).Msg("separate failed")
	}
}

func (s *Session) notifyUpdated() {
	for _, l := range s.snapshotListeners() {
		l.OnUpdated(s)
	}
}

// setConference is called only by Conference child management so the
// at-most-one-membership invariant has a single owner.
func (s *Session) setConference(c *Conference) {
	if s.conference == c {
		return
	}
	s.conference = c
	s.notifyUpdated()
}

// LegObserver implementation. Each callback runs to completion on the
// serial queue before the next radio event is processed.

func (s *Session) OnStateChanged(leg RadioLeg) {
	if leg != s.leg {
		return
	}
	s.applyTechnology(leg.Technology())
	if addr := leg.Address(); addr != s.address {
		s.address = addr
		if domain.IsEmergencyNumber(addr.Number) {
			s.emergency = true
		}
		s.notifyUpdated()
	}
	s.updateState()
}

func (s *Session) OnDisconnected(leg RadioLeg, code domain.RadioDisconnectCode, reason string) {
	if leg != s.leg {
		return
	}
	log.Info().Str("module", "core.session").Str("id", s.id).
		Str("code", code.String()).Str("reason", reason).Msg("leg disconnected")
	s.close(domain.MapCause(code, reason))
}

func (s *Session) OnCapabilitiesChanged(leg RadioLeg, caps domain.Capability) {
	if leg != s.leg {
		return
	}
	if s.legCaps == caps {
		return
	}
	s.legCaps = caps
	s.notifyUpdated()
}

func (s *Session) OnVideoStateChanged(leg RadioLeg, vs domain.VideoState) {
	if leg != s.leg || s.videoState == vs {
		return
	}
	s.videoState = vs
	s.notifyUpdated()
}

func (s *Session) OnWifiChanged(leg RadioLeg, onWifi bool) {
	if leg != s.leg || s.onWifi == onWifi {
		return
	}
	s.onWifi = onWifi
	s.notifyUpdated()
}

func (s *Session) OnAudioQualityChanged(leg RadioLeg, q domain.AudioQuality) {
	if leg != s.leg || s.audioQuality == q {
		return
	}
	s.audioQuality = q
	s.notifyUpdated()
}

func (s *Session) OnMultipartyChanged(leg RadioLeg, multiparty bool) {
	if leg != s.leg {
		return
	}
	for _, l := range s.snapshotListeners() {
		l.OnMultipartyChanged(s)
	}
}

func (s *Session) OnConferenceParticipantsChanged(leg RadioLeg, snapshot []ParticipantInfo) {
	if leg != s.leg {
		return
	}
	for _, l := range s.snapshotListeners() {
		l.OnParticipantsSnapshot(s, snapshot)
	}
}

func (s *Session) OnExtrasChanged(leg RadioLeg, extras map[string]string) {
	if leg != s.leg {
		return
	}
	for k, v := range extras {
		s.extras[k] = v
	}
	s.notifyUpdated()
}
