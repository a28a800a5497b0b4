package app

import (
	"github.com/rs/zerolog/log"

	"github.com/dkeye/callbridge/internal/core"
	"github.com/dkeye/callbridge/internal/domain"
)

// MultipartyController builds the explicit circuit-switched
// conference: a session is a member only while its leg reports
// multiparty inside an active or held call group, and only while the
// group stays under capacity.
type MultipartyController struct {
	reg      *Registry
	bridge   core.FrameworkBridge
	capacity int

	conf *core.Conference
	// pendingRecalc defers the merge while any prospective child is
	// not yet acknowledged by the framework; a session add can race
	// the conference add. Retried on the next trigger instead of
	// partially merging.
	pendingRecalc bool
}

func NewMultipartyController(reg *Registry, bridge core.FrameworkBridge, capacity int) *MultipartyController {
	return &MultipartyController{reg: reg, bridge: bridge, capacity: capacity}
}

func (ctl *MultipartyController) Conference() *core.Conference { return ctl.conf }
func (ctl *MultipartyController) PendingRecalc() bool          { return ctl.pendingRecalc }

func (ctl *MultipartyController) AdoptSession(s *core.Session) {
	s.AddListener(ctl)
	ctl.Recompute()
}

// OnSessionVisible is the retry trigger for a deferred recalculation.
func (ctl *MultipartyController) OnSessionVisible(s *core.Session) {
	if ctl.pendingRecalc {
		ctl.Recompute()
	}
}

// groupConferenced reports whether the leg sits in an active or held
// call group; a group mid-teardown no longer conferences.
func groupConferenced(leg core.RadioLeg) bool {
	g := leg.Group()
	if g == nil {
		return false
	}
	for _, l := range g.Legs() {
		switch l.State() {
		case domain.StateActive, domain.StateHolding:
			return true
		}
	}
	return false
}

func (ctl *MultipartyController) isMember(s *core.Session) bool {
	leg := s.Leg()
	if leg == nil || !leg.IsMultiparty() {
		return false
	}
	if !groupConferenced(leg) {
		return false
	}
	if g := leg.Group(); g != nil && len(g.Legs()) > ctl.capacity {
		return false
	}
	return true
}

// Recompute mirrors the aggregate onto the network's multiparty
// reporting. Deferred wholesale when any member is invisible to the
// framework's connection registry.
func (ctl *MultipartyController) Recompute() {
	var members []*core.Session
	for _, s := range ctl.reg.Live() {
		if ctl.isMember(s) {
			members = append(members, s)
		}
	}
	if len(members) >= 2 {
		for _, s := range members {
			if !ctl.reg.IsVisible(s) {
				ctl.pendingRecalc = true
				log.Info().Str("module", "app.multiparty").Str("id", s.ID()).
					Msg("recalculation deferred, session not framework-visible")
				return
			}
		}
	}
	ctl.pendingRecalc = false

	if len(members) < 2 {
		if ctl.conf != nil {
			ctl.conf.Teardown()
		}
		return
	}
	if ctl.conf == nil {
		ctl.conf = core.NewConference(domain.TechCircuitSwitched, ctl, ctl.onConferenceEmpty)
		log.Info().Str("module", "app.multiparty").Str("conf", ctl.conf.ID()).
			Int("children", len(members)).Msg("multiparty conference created")
		ctl.bridge.OnConferenceAdded(ctl.conf)
	}
	inSet := map[string]bool{}
	for _, s := range members {
		inSet[s.ID()] = true
		ctl.conf.AddChild(s)
	}
	for _, child := range ctl.conf.Children() {
		if !inSet[child.ID()] {
			ctl.conf.RemoveChild(child)
		}
	}
	if ctl.conf == nil {
		return
	}
	ctl.conf.SetCapabilities(ctl.deriveCapabilities())
	ctl.conf.SetProperties(domain.PropGenericConference)
	ctl.conf.RecomputeState()
	ctl.bridge.OnConferenceUpdated(ctl.conf)
}

// deriveCapabilities withholds manage-conference when any child ever
// was an IMS session, even after circuit-switched fallback.
func (ctl *MultipartyController) deriveCapabilities() domain.Capability {
	caps := domain.CapMute | domain.CapHold | domain.CapSupportHold | domain.CapSwap
	hadIMS := false
	for _, child := range ctl.conf.Children() {
		if child.WasIMS() {
			hadIMS = true
			break
		}
	}
	if !hadIMS {
		caps |= domain.CapManageConference
	}
	return caps
}

func (ctl *MultipartyController) onConferenceEmpty(c *core.Conference) {
	if ctl.conf != c {
		return
	}
	ctl.conf = nil
	ctl.bridge.OnConferenceDestroyed(c)
}

// PairableWith lists merge suggestions for one session: every active
// session pairs with every held one and vice versa, capacity
// permitting.
func (ctl *MultipartyController) PairableWith(s *core.Session) []*core.Session {
	if ctl.atCapacity() {
		return nil
	}
	var want domain.CallState
	switch s.State() {
	case domain.StateActive:
		want = domain.StateHolding
	case domain.StateHolding:
		want = domain.StateActive
	default:
		return nil
	}
	var out []*core.Session
	for _, cur := range ctl.reg.Live() {
		if cur != s && cur.State() == want {
			out = append(out, cur)
		}
	}
	return out
}

// AggregatePairable lists unconferenced, conference-capable sessions
// the aggregate itself could absorb while under capacity.
func (ctl *MultipartyController) AggregatePairable() []*core.Session {
	if ctl.conf == nil || ctl.atCapacity() {
		return nil
	}
	var out []*core.Session
	for _, s := range ctl.reg.Live() {
		if s.Conference() == nil && s.ConferenceCapable() {
			out = append(out, s)
		}
	}
	return out
}

func (ctl *MultipartyController) atCapacity() bool {
	return ctl.conf != nil && ctl.conf.ChildCount() >= ctl.capacity
}

func (ctl *MultipartyController) groupOf(c *core.Conference) core.CallGroup {
	for _, child := range c.Children() {
		if leg := child.Leg(); leg != nil && leg.Group() != nil {
			return leg.Group()
		}
	}
	return nil
}

// ConferenceOps implementation.

func (ctl *MultipartyController) Merge(c *core.Conference) {
	g := ctl.groupOf(c)
	if g == nil {
		log.Warn().Str("module", "app.multiparty").Msg("merge with no call group")
		return
	}
	if err := g.Conference(); err != nil {
		log.Error().Err(err).Str("module", "app.multiparty").Msg("conference primitive failed")
	}
}

func (ctl *MultipartyController) Swap(c *core.Conference) {
	ctl.switchGroup(c, "swap")
}

func (ctl *MultipartyController) Hold(c *core.Conference) {
	ctl.switchGroup(c, "hold")
}

func (ctl *MultipartyController) Unhold(c *core.Conference) {
	ctl.switchGroup(c, "unhold")
}

func (ctl *MultipartyController) switchGroup(c *core.Conference, op string) {
	g := ctl.groupOf(c)
	if g == nil {
		log.Warn().Str("module", "app.multiparty").Str("op", op).Msg("no call group")
		return
	}
	if err := g.SwitchActiveHolding(); err != nil {
		log.Error().Err(err).Str("module", "app.multiparty").Str("op", op).Msg("switch failed")
	}
}

func (ctl *MultipartyController) Separate(c *core.Conference, child *core.Session) {
	child.Separate()
}

// SessionListener implementation.

func (ctl *MultipartyController) OnStateChanged(s *core.Session, old domain.CallState) {
	ctl.Recompute()
}

func (ctl *MultipartyController) OnMultipartyChanged(s *core.Session) {
	ctl.Recompute()
}

func (ctl *MultipartyController) OnUpdated(s *core.Session) {}
func (ctl *MultipartyController) OnParticipantsSnapshot(s *core.Session, snap []core.ParticipantInfo) {
}
func (ctl *MultipartyController) OnTechnologyChanged(s *core.Session, old domain.Technology) {}

func (ctl *MultipartyController) OnDestroyed(s *core.Session, cause domain.DisconnectDescriptor) {
	if ctl.conf != nil && ctl.conf.Contains(s) {
		ctl.conf.RemoveChild(s)
	}
	ctl.Recompute()
}
