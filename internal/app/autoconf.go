package app

import (
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/callbridge/internal/core"
	"github.com/dkeye/callbridge/internal/domain"
)

// NarrowbandController infers conference existence for legacy
// narrowband voice purely from session count: the network signals
// neither membership nor merges, so any two live non-waiting sessions
// are one conference. Merge and swap ride on a single flash primitive
// with no acknowledgment.
type NarrowbandController struct {
	reg    *Registry
	clock  core.Clock
	bridge core.FrameworkBridge
	// post reschedules timer callbacks onto the owning serial queue.
	post func(func())

	delay          time.Duration
	swapAfterMerge bool

	conf      *core.Conference
	lastAdded *core.Session
	// merged is sticky per conference: a narrowband conference can
	// only be formed once.
	merged bool

	overridden []*core.Session
	delayTimer core.Timer
	delayGen   int
}

func NewNarrowbandController(reg *Registry, clock core.Clock, bridge core.FrameworkBridge, delay time.Duration, swapAfterMerge bool) *NarrowbandController {
	return &NarrowbandController{
		reg:            reg,
		clock:          clock,
		bridge:         bridge,
		post:           func(f func()) { f() },
		delay:          delay,
		swapAfterMerge: swapAfterMerge,
	}
}

// SetPoster routes timer expirations through the manager's queue.
func (ctl *NarrowbandController) SetPoster(post func(func())) { ctl.post = post }

// Conference exposes the current aggregate, nil when none.
func (ctl *NarrowbandController) Conference() *core.Conference { return ctl.conf }

// AdoptSession starts tracking a narrowband session. A new outgoing
// call next to existing ones does not merge immediately: the new call
// is pinned to dialing and the others to holding for the delay
// window, so the UI shows a dialing call instead of an instant
// two-party conference.
func (ctl *NarrowbandController) AdoptSession(s *core.Session) {
	s.AddListener(ctl)
	others := ctl.liveOthers(s)
	ctl.lastAdded = s
	if s.Direction() == domain.DirectionOutgoing && len(others) > 0 {
		// Arm the window before touching overrides: the override set
		// fires state listeners, and recompute must already see the
		// window as open.
		ctl.armDelay()
		s.SetStateOverride(domain.StateDialing)
		ctl.overridden = append(ctl.overridden[:0], s)
		for _, o := range others {
			o.SetStateOverride(domain.StateHolding)
			ctl.overridden = append(ctl.overridden, o)
		}
		log.Info().Str("module", "app.autoconf").Str("id", s.ID()).
			Dur("window", ctl.delay).Msg("merge consideration delayed")
		return
	}
	ctl.recompute()
}

func (ctl *NarrowbandController) liveOthers(s *core.Session) []*core.Session {
	var out []*core.Session
	for _, cur := range ctl.reg.Live() {
		if cur != s && cur.Technology() == domain.TechNarrowband {
			out = append(out, cur)
		}
	}
	return out
}

func (ctl *NarrowbandController) armDelay() {
	if ctl.delayTimer != nil {
		ctl.delayTimer.Stop()
	}
	ctl.delayGen++
	gen := ctl.delayGen
	ctl.delayTimer = ctl.clock.AfterFunc(ctl.delay, func() {
		ctl.post(func() { ctl.onDelayExpired(gen) })
	})
}

// onDelayExpired clears overrides and resumes normal recompute. The
// generation guard drops a stale timer that raced its cancellation.
func (ctl *NarrowbandController) onDelayExpired(gen int) {
	if gen != ctl.delayGen || ctl.delayTimer == nil {
		return
	}
	ctl.delayTimer = nil
	ctl.clearOverrides()
	ctl.recompute()
}

func (ctl *NarrowbandController) cancelDelayWindow() {
	if ctl.delayTimer == nil {
		return
	}
	ctl.delayTimer.Stop()
	ctl.delayTimer = nil
	ctl.delayGen++
	ctl.clearOverrides()
}

func (ctl *NarrowbandController) clearOverrides() {
	for _, s := range ctl.overridden {
		if !s.Destroyed() {
			s.ClearStateOverride()
		}
	}
	ctl.overridden = ctl.overridden[:0]
}

func (ctl *NarrowbandController) windowActive() bool { return ctl.delayTimer != nil }

// candidates are the live narrowband, non-call-waiting sessions. The
// registry is shared with the other controllers, so sessions on any
// other technology never qualify; a leg in the waiting position has
// not been answered and never auto-conferences.
func (ctl *NarrowbandController) candidates() []*core.Session {
	var out []*core.Session
	for _, s := range ctl.reg.Live() {
		if s.Technology() != domain.TechNarrowband {
			continue
		}
		if leg := s.Leg(); leg != nil && leg.State() == domain.StateWaiting {
			continue
		}
		out = append(out, s)
	}
	return out
}

// recompute is idempotent: the aggregate exists iff the candidate
// count is at least two, and children always mirror the candidate set.
func (ctl *NarrowbandController) recompute() {
	if ctl.windowActive() {
		return
	}
	cands := ctl.candidates()
	if len(cands) < 2 {
		if ctl.conf != nil {
			ctl.conf.Teardown()
		}
		return
	}
	if ctl.conf == nil {
		ctl.conf = core.NewConference(domain.TechNarrowband, ctl, ctl.onConferenceEmpty)
		ctl.merged = false
		log.Info().Str("module", "app.autoconf").Str("conf", ctl.conf.ID()).
			Int("children", len(cands)).Msg("auto-conference created")
		ctl.bridge.OnConferenceAdded(ctl.conf)
	}
	inSet := map[string]bool{}
	for _, s := range cands {
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

// deriveCapabilities keeps merge and swap mutually exclusive: the
// network accepts exactly one flash-initiated operation at a time.
func (ctl *NarrowbandController) deriveCapabilities() domain.Capability {
	caps := domain.CapMute
	if ctl.merged {
		if ctl.swapAfterMerge {
			caps |= domain.CapSwap
		}
		return caps
	}
	if ctl.lastAdded != nil && !ctl.lastAdded.Destroyed() &&
		ctl.lastAdded.Direction() == domain.DirectionOutgoing {
		caps |= domain.CapMerge
	} else {
		caps |= domain.CapSwap
	}
	return caps
}

func (ctl *NarrowbandController) onConferenceEmpty(c *core.Conference) {
	if ctl.conf != c {
		return
	}
	ctl.conf = nil
	ctl.merged = false
	ctl.bridge.OnConferenceDestroyed(c)
}

func (ctl *NarrowbandController) flash(c *core.Conference) error {
	for _, child := range c.Children() {
		if leg := child.Leg(); leg != nil && leg.Group() != nil {
			return leg.Group().Flash()
		}
	}
	return core.ErrInvalidState
}

// ConferenceOps implementation.

// Merge issues the flash and assumes success: the network never
// confirms, so merge capability clears permanently right here.
func (ctl *NarrowbandController) Merge(c *core.Conference) {
	if ctl.merged {
		log.Info().Str("module", "app.autoconf").Msg("merge ignored, conference already formed")
		return
	}
	if err := ctl.flash(c); err != nil {
		log.Error().Err(err).Str("module", "app.autoconf").Msg("merge flash failed")
		return
	}
	ctl.merged = true
	c.SetCapabilities(ctl.deriveCapabilities())
	ctl.bridge.OnConferenceUpdated(c)
}

func (ctl *NarrowbandController) Swap(c *core.Conference) {
	if err := ctl.flash(c); err != nil {
		log.Error().Err(err).Str("module", "app.autoconf").Msg("swap flash failed")
	}
}

// Hold, Unhold and Separate have no narrowband network primitive.

func (ctl *NarrowbandController) Hold(c *core.Conference) {
	log.Info().Str("module", "app.autoconf").Msg("hold unsupported on auto-conference")
}

func (ctl *NarrowbandController) Unhold(c *core.Conference) {
	log.Info().Str("module", "app.autoconf").Msg("unhold unsupported on auto-conference")
}

func (ctl *NarrowbandController) Separate(c *core.Conference, child *core.Session) {
	log.Info().Str("module", "app.autoconf").Msg("separate unsupported on auto-conference")
}

// SessionListener implementation.

func (ctl *NarrowbandController) OnStateChanged(s *core.Session, old domain.CallState) {
	ctl.recompute()
}

func (ctl *NarrowbandController) OnUpdated(s *core.Session)           {}
func (ctl *NarrowbandController) OnMultipartyChanged(s *core.Session) {}
func (ctl *NarrowbandController) OnParticipantsSnapshot(s *core.Session, snap []core.ParticipantInfo) {
}
func (ctl *NarrowbandController) OnTechnologyChanged(s *core.Session, old domain.Technology) {}

func (ctl *NarrowbandController) OnDestroyed(s *core.Session, cause domain.DisconnectDescriptor) {
	for i, cur := range ctl.overridden {
		if cur == s {
			ctl.overridden = append(ctl.overridden[:i], ctl.overridden[i+1:]...)
			break
		}
	}
	if s == ctl.lastAdded {
		ctl.lastAdded = nil
	}
	// The dialing call dying mid-window ends the window early.
	if s.Direction() == domain.DirectionOutgoing && ctl.windowActive() {
		ctl.cancelDelayWindow()
	}
	if ctl.conf != nil && ctl.conf.Contains(s) {
		ctl.conf.RemoveChild(s)
	}
	ctl.recompute()
}
