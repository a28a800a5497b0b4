package app

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkeye/callbridge/internal/adapters/radiosim"
	"github.com/dkeye/callbridge/internal/core"
	"github.com/dkeye/callbridge/internal/domain"
)

const testMergeDelay = 6 * time.Second

func newAutoConfHarness() (*Registry, *core.ManualClock, *fakeBridge, *NarrowbandController) {
	reg := NewRegistry()
	clock := core.NewManualClock()
	bridge := &fakeBridge{}
	ctl := NewNarrowbandController(reg, clock, bridge, testMergeDelay, true)
	return reg, clock, bridge, ctl
}

func addNarrowband(reg *Registry, ctl *NarrowbandController, dir domain.Direction, number string) (*core.Session, *radiosim.Leg) {
	s, leg := newLegSession(reg, dir, number, domain.TechNarrowband)
	leg.SetState(domain.StateActive)
	ctl.AdoptSession(s)
	return s, leg
}

func TestAutoConfExistsIffTwoLiveSessions(t *testing.T) {
	reg, _, bridge, ctl := newAutoConfHarness()

	_, firstLeg := addNarrowband(reg, ctl, domain.DirectionIncoming, "5550001")
	assert.Nil(t, ctl.Conference(), "one session is not a conference")

	_, secondLeg := addNarrowband(reg, ctl, domain.DirectionIncoming, "5550002")
	require.NotNil(t, ctl.Conference())
	assert.Equal(t, 2, ctl.Conference().ChildCount())
	assert.Len(t, bridge.confsAdded, 1)

	// Recompute is idempotent: repeated triggers change nothing.
	ctl.recompute()
	ctl.recompute()
	assert.Len(t, bridge.confsAdded, 1)
	assert.Equal(t, 2, ctl.Conference().ChildCount())

	secondLeg.Disconnect(domain.DiscNormalRemote, "")
	assert.Nil(t, ctl.Conference(), "below two sessions the aggregate dies")
	assert.Len(t, bridge.confsDestroyed, 1)

	firstLeg.Disconnect(domain.DiscNormalLocal, "")
	assert.Nil(t, ctl.Conference())
}

func TestAutoConfMergeSwapMutuallyExclusive(t *testing.T) {
	reg, clock, _, ctl := newAutoConfHarness()

	s1, l1 := addNarrowband(reg, ctl, domain.DirectionIncoming, "5550001")
	_, l2 := addNarrowband(reg, ctl, domain.DirectionOutgoing, "5550002")
	group := attachGroup(l1, s1)
	group.Join(l2)
	clock.Advance(testMergeDelay)

	conf := ctl.Conference()
	require.NotNil(t, conf)
	caps := conf.Capabilities()
	assert.True(t, caps.Has(domain.CapMerge), "last added was outgoing")
	assert.False(t, caps.Has(domain.CapSwap))

	// After the flash, merge clears permanently and swap takes over.
	conf.Merge()
	caps = conf.Capabilities()
	assert.False(t, caps.Has(domain.CapMerge))
	assert.True(t, caps.Has(domain.CapSwap))

	// A second merge is refused; the conference forms only once.
	conf.Merge()
	assert.False(t, conf.Capabilities().Has(domain.CapMerge))
}

func TestAutoConfSwapOnlyWhenLastAddedIncoming(t *testing.T) {
	reg, _, _, ctl := newAutoConfHarness()

	addNarrowband(reg, ctl, domain.DirectionOutgoing, "5550001")
	addNarrowband(reg, ctl, domain.DirectionIncoming, "5550002")

	conf := ctl.Conference()
	require.NotNil(t, conf)
	assert.True(t, conf.Capabilities().Has(domain.CapSwap))
	assert.False(t, conf.Capabilities().Has(domain.CapMerge))
}

func TestAutoConfOutgoingDelayWindow(t *testing.T) {
	reg, clock, _, ctl := newAutoConfHarness()

	existing, _ := addNarrowband(reg, ctl, domain.DirectionIncoming, "5550001")

	// The new outgoing leg already reports active; the override keeps
	// it looking like a fresh dial.
	outgoing, _ := addNarrowband(reg, ctl, domain.DirectionOutgoing, "5550002")

	assert.Equal(t, domain.StateDialing, outgoing.State())
	assert.Equal(t, domain.StateHolding, existing.State())
	assert.Nil(t, ctl.Conference(), "no merge while the window is open")

	clock.Advance(testMergeDelay - time.Second)
	assert.Equal(t, domain.StateDialing, outgoing.State())
	assert.Equal(t, domain.StateHolding, existing.State())

	clock.Advance(time.Second)
	assert.Equal(t, domain.StateActive, outgoing.State(), "real state after the window")
	assert.Equal(t, domain.StateActive, existing.State())
	require.NotNil(t, ctl.Conference())
	assert.Equal(t, 2, ctl.Conference().ChildCount())
}

func TestAutoConfWindowCanceledWhenDialerDies(t *testing.T) {
	reg, clock, _, ctl := newAutoConfHarness()

	existing, _ := addNarrowband(reg, ctl, domain.DirectionIncoming, "5550001")
	outgoing, outgoingLeg := addNarrowband(reg, ctl, domain.DirectionOutgoing, "5550002")
	require.Equal(t, domain.StateDialing, outgoing.State())

	outgoingLeg.Disconnect(domain.DiscNormalRemote, "")
	assert.Equal(t, domain.StateActive, existing.State(), "override lifted immediately")

	// The stale timer must not resurrect anything.
	clock.Advance(testMergeDelay)
	assert.Nil(t, ctl.Conference())
}

func TestAutoConfIgnoresOtherTechnologies(t *testing.T) {
	reg, _, _, ctl := newAutoConfHarness()

	// Sessions owned by the other controllers share the registry.
	cs, csLeg := newLegSession(reg, domain.DirectionIncoming, "5550001", domain.TechCircuitSwitched)
	csLeg.SetState(domain.StateActive)
	ims, imsLeg := newLegSession(reg, domain.DirectionIncoming, "5550002", domain.TechIPMultimedia)
	imsLeg.SetState(domain.StateActive)

	addNarrowband(reg, ctl, domain.DirectionIncoming, "5550003")
	assert.Nil(t, ctl.Conference(), "foreign sessions are not merge partners")

	addNarrowband(reg, ctl, domain.DirectionIncoming, "5550004")
	conf := ctl.Conference()
	require.NotNil(t, conf)
	assert.Equal(t, 2, conf.ChildCount())
	assert.False(t, conf.Contains(cs))
	assert.False(t, conf.Contains(ims))
	assert.Nil(t, cs.Conference(), "foreign sessions keep their own membership")
	assert.Nil(t, ims.Conference())
}

func TestAutoConfNoWindowNextToForeignSessions(t *testing.T) {
	reg, _, _, ctl := newAutoConfHarness()

	_, csLeg := newLegSession(reg, domain.DirectionIncoming, "5550001", domain.TechCircuitSwitched)
	csLeg.SetState(domain.StateActive)

	// The only sibling is circuit-switched: no merge to consider, so
	// the outgoing call reports its real state immediately.
	outgoing, _ := addNarrowband(reg, ctl, domain.DirectionOutgoing, "5550002")
	assert.Equal(t, domain.StateActive, outgoing.State())
	assert.Nil(t, ctl.Conference())
}

func TestAutoConfWaitingCallNeverJoins(t *testing.T) {
	reg, _, _, ctl := newAutoConfHarness()

	addNarrowband(reg, ctl, domain.DirectionIncoming, "5550001")
	addNarrowband(reg, ctl, domain.DirectionIncoming, "5550002")
	require.NotNil(t, ctl.Conference())

	waiting, waitingLeg := newLegSession(reg, domain.DirectionIncoming, "5550003", domain.TechNarrowband)
	waitingLeg.SetState(domain.StateWaiting)
	ctl.AdoptSession(waiting)

	assert.Equal(t, 2, ctl.Conference().ChildCount(), "call-waiting leg stays out")
}

func TestAutoConfAggregateHoldUnsupported(t *testing.T) {
	reg, _, _, ctl := newAutoConfHarness()

	s1, l1 := addNarrowband(reg, ctl, domain.DirectionIncoming, "5550001")
	addNarrowband(reg, ctl, domain.DirectionIncoming, "5550002")
	conf := ctl.Conference()
	require.NotNil(t, conf)

	group := attachGroup(l1, s1)
	conf.Hold()
	conf.Unhold()
	conf.Separate(s1)
	assert.Zero(t, group.SwitchCalls, "no narrowband primitive exists for these")
}

// TestAutoConfUnholdSuppressionDocumented captures current behavior:
// a session's unhold is suppressed whenever more than one top-level
// call exists, which can also block a legitimate unhold in three-call
// edge cases. Kept as-is deliberately.
func TestAutoConfUnholdSuppressionDocumented(t *testing.T) {
	reg, _, _, ctl := newAutoConfHarness()

	s1, l1 := addNarrowband(reg, ctl, domain.DirectionIncoming, "5550001")
	group := attachGroup(l1, s1)

	waiting, waitingLeg := newLegSession(reg, domain.DirectionIncoming, "5550002", domain.TechNarrowband)
	waitingLeg.SetState(domain.StateWaiting)
	ctl.AdoptSession(waiting)

	l1.SetState(domain.StateHolding)
	s1.Unhold()
	assert.Zero(t, group.SwitchCalls, "suppressed even where unhold might be legitimate")
}
