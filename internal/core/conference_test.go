package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkeye/callbridge/internal/domain"
)

func activeSession(t *testing.T, number string) (*Session, *fakeLeg) {
	t.Helper()
	leg := newFakeLeg("leg-"+number, number)
	s := NewSession(domain.DirectionOutgoing, &fakeSiblings{})
	s.Attach(leg)
	leg.setState(domain.StateActive)
	return s, leg
}

func TestConferenceMembershipIsExclusive(t *testing.T) {
	s, _ := activeSession(t, "5550001")
	other, _ := activeSession(t, "5550002")

	first := NewConference(domain.TechCircuitSwitched, nil, nil)
	first.AddChild(s)
	first.AddChild(other)

	second := NewConference(domain.TechCircuitSwitched, nil, nil)
	second.AddChild(s)

	assert.False(t, first.Contains(s), "membership must transfer, not duplicate")
	assert.True(t, second.Contains(s))
	assert.Same(t, second, s.Conference())
}

func TestConferenceZeroChildrenTearsDownSynchronously(t *testing.T) {
	s, _ := activeSession(t, "5550001")
	var emptied *Conference
	c := NewConference(domain.TechCircuitSwitched, nil, func(c *Conference) { emptied = c })
	c.AddChild(s)

	c.RemoveChild(s)
	assert.True(t, c.Destroyed(), "teardown happens inside the last removal")
	assert.Same(t, c, emptied)
	assert.Nil(t, s.Conference())
}

func TestConferenceAddChildIdempotent(t *testing.T) {
	s, _ := activeSession(t, "5550001")
	c := NewConference(domain.TechCircuitSwitched, nil, nil)
	c.AddChild(s)
	c.AddChild(s)
	assert.Equal(t, 1, c.ChildCount())
}

func TestConferencePrimaryPrefersMultiparty(t *testing.T) {
	a, _ := activeSession(t, "5550001")
	b, legB := activeSession(t, "5550002")
	legB.multiparty = true

	c := NewConference(domain.TechCircuitSwitched, nil, nil)
	c.AddChild(a)
	c.AddChild(b)

	legB.setState(domain.StateHolding)
	require.True(t, c.RecomputeState())
	assert.Equal(t, domain.StateHolding, c.State(), "state derives from the multiparty child")
}

func TestConferencePrimaryFallsBackToFirstChild(t *testing.T) {
	a, legA := activeSession(t, "5550001")
	b, _ := activeSession(t, "5550002")

	c := NewConference(domain.TechCircuitSwitched, nil, nil)
	c.AddChild(a)
	c.AddChild(b)

	legA.setState(domain.StateHolding)
	c.RecomputeState()
	assert.Equal(t, domain.StateHolding, c.State())
}

func TestConferenceOpsNilIsSafe(t *testing.T) {
	s, _ := activeSession(t, "5550001")
	c := NewConference(domain.TechNarrowband, nil, nil)
	c.AddChild(s)
	// All of these are unsupported no-ops, never panics.
	c.Merge()
	c.Swap()
	c.Hold()
	c.Unhold()
	c.Separate(s)
	assert.False(t, c.Destroyed())
}

func TestConferenceTeardownDetachesAll(t *testing.T) {
	a, _ := activeSession(t, "5550001")
	b, _ := activeSession(t, "5550002")
	c := NewConference(domain.TechCircuitSwitched, nil, nil)
	c.AddChild(a)
	c.AddChild(b)

	c.Teardown()
	assert.True(t, c.Destroyed())
	assert.Zero(t, c.ChildCount())
	assert.Nil(t, a.Conference())
	assert.Nil(t, b.Conference())
}
