package app

import (
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/callbridge/internal/core"
	"github.com/dkeye/callbridge/internal/domain"
)

// ManagerConfig carries the operational knobs, resolved from the
// config file by the caller.
type ManagerConfig struct {
	MergeDelay             time.Duration
	MultipartyCapacity     int
	SwapAfterMerge         bool
	EmergencyRetryInterval time.Duration
	EmergencyRetryBudget   int
}

// CallManager owns the serial queue, the session registry and the
// three conference controllers, and is the single entry point for
// radio bridge callbacks. The host framework receives only sessions
// and conferences, never raw radio events.
type CallManager struct {
	queue  *core.SerialQueue
	clock  core.Clock
	reg    *Registry
	bridge core.FrameworkBridge

	Narrowband *NarrowbandController
	Multiparty *MultipartyController
	IMS        *IMSController
	Emergency  *EmergencySequencer

	alert *AlertTonePlayer

	// lastWifi powers the wifi-call status hint edge detection.
	lastWifi map[string]bool
}

func NewCallManager(clock core.Clock, bridge core.FrameworkBridge, cfg ManagerConfig) *CallManager {
	reg := NewRegistry()
	m := &CallManager{
		queue:    core.NewSerialQueue(),
		clock:    clock,
		reg:      reg,
		bridge:   bridge,
		lastWifi: make(map[string]bool),
	}
	m.Narrowband = NewNarrowbandController(reg, clock, bridge, cfg.MergeDelay, cfg.SwapAfterMerge)
	m.Narrowband.SetPoster(m.queue.Post)
	m.Multiparty = NewMultipartyController(reg, bridge, cfg.MultipartyCapacity)
	m.IMS = NewIMSController(reg, bridge)
	m.IMS.SetHandoverSink(m.adoptHandover)
	m.Emergency = NewEmergencySequencer(clock, cfg.EmergencyRetryInterval, cfg.EmergencyRetryBudget)
	m.Emergency.SetPoster(m.queue.Post)
	return m
}

// SetAlertPlayer wires the optional emergency dial alert.
func (m *CallManager) SetAlertPlayer(p *AlertTonePlayer) { m.alert = p }

func (m *CallManager) Registry() *Registry      { return m.reg }
func (m *CallManager) Queue() *core.SerialQueue { return m.queue }

func (m *CallManager) Stop() { m.queue.Stop() }

// OnLegAppeared is the radio bridge's announcement of a new leg:
// incoming, outgoing, or discovered mid-call by handover. Runs on the
// serial queue.
func (m *CallManager) OnLegAppeared(leg core.RadioLeg, direction domain.Direction) {
	m.queue.Post(func() { m.handleLegAppeared(leg, direction) })
}

func (m *CallManager) handleLegAppeared(leg core.RadioLeg, direction domain.Direction) {
	s := core.NewSession(direction, m.reg)
	m.reg.Add(s)
	s.Attach(leg)
	if s.Destroyed() {
		// The leg died between announcement and attach. The manager is
		// not listening yet, so the framework hears neither an add nor
		// a destroy for this session.
		m.reg.Remove(s)
		return
	}
	s.AddListener(m)
	log.Info().Str("module", "app.manager").Str("id", s.ID()).
		Str("leg", leg.ID()).Str("tech", s.Technology().String()).Msg("session created")
	m.bridge.OnSessionAdded(s)
	m.reg.MarkVisible(s)
	m.route(s)
	m.Multiparty.OnSessionVisible(s)
}

// route hands the session to the controller owning its technology.
func (m *CallManager) route(s *core.Session) {
	switch s.Technology() {
	case domain.TechIPMultimedia:
		m.IMS.AdoptSession(s)
	case domain.TechNarrowband:
		m.Narrowband.AdoptSession(s)
	default:
		m.Multiparty.AdoptSession(s)
	}
}

// adoptHandover re-homes the replacement session the IMS controller
// built after circuit-switched fallback; conference membership can
// then re-form under circuit-switched rules.
func (m *CallManager) adoptHandover(s *core.Session) {
	s.AddListener(m)
	m.reg.Add(s)
	m.bridge.OnSessionAdded(s)
	m.reg.MarkVisible(s)
	m.route(s)
	m.Multiparty.OnSessionVisible(s)
}

// ActivateForEmergency runs the radio power-up sequence for an
// emergency dial placed while the radio is down, sounding the
// configured alert meanwhile.
func (m *CallManager) ActivateForEmergency(radio core.RadioControl, done func(ok bool)) {
	if m.alert != nil {
		m.alert.Start()
	}
	m.Emergency.Activate(radio, func(ok bool) {
		if m.alert != nil {
			m.alert.Stop()
		}
		done(ok)
	})
}

// SessionListener implementation: republish session lifecycle to the
// framework bridge and maintain the registry.

func (m *CallManager) OnStateChanged(s *core.Session, old domain.CallState) {
	switch {
	case s.State() == domain.StateHolding && old != domain.StateHolding:
		m.bridge.OnConnectionEvent(s, core.EventHoldToneStart)
	case old == domain.StateHolding && s.State() != domain.StateHolding:
		m.bridge.OnConnectionEvent(s, core.EventHoldToneEnd)
	}
	m.bridge.OnSessionUpdated(s)
}

func (m *CallManager) OnUpdated(s *core.Session) {
	if wifi := s.OnWifi(); wifi != m.lastWifi[s.ID()] {
		m.lastWifi[s.ID()] = wifi
		if wifi {
			m.bridge.OnConnectionEvent(s, core.EventWifiCall)
		}
	}
	m.bridge.OnSessionUpdated(s)
}

func (m *CallManager) OnMultipartyChanged(s *core.Session) {
	m.bridge.OnSessionUpdated(s)
}

func (m *CallManager) OnParticipantsSnapshot(s *core.Session, snap []core.ParticipantInfo) {}

func (m *CallManager) OnTechnologyChanged(s *core.Session, old domain.Technology) {
	m.bridge.OnSessionUpdated(s)
}

func (m *CallManager) OnDestroyed(s *core.Session, cause domain.DisconnectDescriptor) {
	delete(m.lastWifi, s.ID())
	m.reg.Remove(s)
	m.bridge.OnSessionDestroyed(s, cause)
}
