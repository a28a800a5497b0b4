package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkeye/callbridge/internal/domain"
)

func TestSessionStateMapping(t *testing.T) {
	leg := newFakeLeg("leg-1", "5551234567")
	s := NewSession(domain.DirectionIncoming, &fakeSiblings{})
	s.Attach(leg)

	leg.setState(domain.StateIncoming)
	assert.Equal(t, domain.StateRinging, s.State())

	leg.setState(domain.StateActive)
	assert.Equal(t, domain.StateActive, s.State())

	leg.setState(domain.StateHolding)
	assert.Equal(t, domain.StateHolding, s.State())
}

func TestSessionAlertingMapsToDialing(t *testing.T) {
	leg := newFakeLeg("leg-1", "5551234567")
	s := NewSession(domain.DirectionOutgoing, &fakeSiblings{})
	s.Attach(leg)

	leg.setState(domain.StateAlerting)
	assert.Equal(t, domain.StateDialing, s.State())
}

func TestSessionDisconnectingIsNoOp(t *testing.T) {
	leg := newFakeLeg("leg-1", "5551234567")
	s := NewSession(domain.DirectionOutgoing, &fakeSiblings{})
	s.Attach(leg)
	leg.setState(domain.StateActive)

	leg.setState(domain.StateDisconnecting)
	assert.Equal(t, domain.StateActive, s.State(), "disconnecting holds the last state")
	assert.False(t, s.Destroyed())
}

func TestSessionOverrideRule(t *testing.T) {
	leg := newFakeLeg("leg-1", "5551234567")
	s := NewSession(domain.DirectionOutgoing, &fakeSiblings{})
	s.Attach(leg)
	leg.setState(domain.StateActive)

	s.SetStateOverride(domain.StateDialing)
	assert.Equal(t, domain.StateDialing, s.State(), "override wins while leg is unmoved")

	// Any real leg transition invalidates the override.
	leg.setState(domain.StateHolding)
	assert.Equal(t, domain.StateHolding, s.State())

	// Clearing an expired override must not disturb anything.
	s.ClearStateOverride()
	assert.Equal(t, domain.StateHolding, s.State())
}

func TestSessionOverrideExplicitClear(t *testing.T) {
	leg := newFakeLeg("leg-1", "5551234567")
	s := NewSession(domain.DirectionOutgoing, &fakeSiblings{})
	s.Attach(leg)
	leg.setState(domain.StateActive)

	s.SetStateOverride(domain.StateHolding)
	assert.Equal(t, domain.StateHolding, s.State())
	s.ClearStateOverride()
	assert.Equal(t, domain.StateActive, s.State())
}

func TestSessionHoldSuppressedWhileWaitingRings(t *testing.T) {
	sib := &fakeSiblings{ringingWaiting: true}
	group := &fakeGroup{id: "g1"}
	leg := newFakeLeg("leg-1", "5551234567")
	leg.group = group
	s := NewSession(domain.DirectionOutgoing, sib)
	s.Attach(leg)
	leg.setState(domain.StateActive)

	s.Hold()
	assert.Zero(t, group.switchCalls, "switch would answer the waiting call")

	sib.ringingWaiting = false
	s.Hold()
	assert.Equal(t, 1, group.switchCalls)
}

func TestSessionUnholdSuppressedWithSiblings(t *testing.T) {
	sib := &fakeSiblings{topLevel: 2}
	group := &fakeGroup{id: "g1"}
	leg := newFakeLeg("leg-1", "5551234567")
	leg.group = group
	s := NewSession(domain.DirectionOutgoing, sib)
	s.Attach(leg)
	leg.setState(domain.StateHolding)

	s.Unhold()
	assert.Zero(t, group.switchCalls)

	sib.topLevel = 1
	s.Unhold()
	assert.Equal(t, 1, group.switchCalls)
}

func TestSessionEmergencyNeverAdvertisesHold(t *testing.T) {
	leg := newFakeLeg("leg-1", "911")
	s := NewSession(domain.DirectionOutgoing, &fakeSiblings{})
	s.Attach(leg)

	require.True(t, s.IsEmergency())
	caps := s.Capabilities()
	assert.False(t, caps.Has(domain.CapHold))
	assert.False(t, caps.Has(domain.CapSupportHold))
	assert.True(t, caps.Has(domain.CapMute))

	// The flag is sticky even if the leg later reports another number.
	leg.address = domain.NewAddress("5551234567", "")
	leg.setState(domain.StateActive)
	assert.True(t, s.IsEmergency())
}

func TestSessionWasIMSWithholdsConferenceTermination(t *testing.T) {
	leg := newFakeLeg("leg-1", "5551234567")
	leg.tech = domain.TechIPMultimedia
	s := NewSession(domain.DirectionOutgoing, &fakeSiblings{})
	s.Attach(leg)
	leg.setState(domain.StateActive)
	require.True(t, s.WasIMS())

	// Fall back to circuit-switched; the flag must not clear.
	leg.tech = domain.TechCircuitSwitched
	leg.setState(domain.StateActive)
	assert.True(t, s.WasIMS())

	conf := NewConference(domain.TechCircuitSwitched, nil, nil)
	conf.AddChild(s)
	caps := s.Capabilities()
	assert.False(t, caps.Has(domain.CapSeparateFromConference))
	assert.False(t, caps.Has(domain.CapDisconnectFromConference))
}

func TestSessionConferenceTerminationForPlainCS(t *testing.T) {
	leg := newFakeLeg("leg-1", "5551234567")
	s := NewSession(domain.DirectionOutgoing, &fakeSiblings{})
	s.Attach(leg)
	leg.setState(domain.StateActive)

	conf := NewConference(domain.TechCircuitSwitched, nil, nil)
	conf.AddChild(s)
	caps := s.Capabilities()
	assert.True(t, caps.Has(domain.CapSeparateFromConference))
	assert.True(t, caps.Has(domain.CapDisconnectFromConference))
}

func TestSessionVideoCapsCopiedFromLeg(t *testing.T) {
	leg := newFakeLeg("leg-1", "5551234567")
	leg.caps = domain.CapSupportsVTLocalBidirectional | domain.CapCanUpgradeToVideo | domain.CapMerge
	s := NewSession(domain.DirectionOutgoing, &fakeSiblings{})
	s.Attach(leg)

	caps := s.Capabilities()
	assert.True(t, caps.Has(domain.CapSupportsVTLocalBidirectional))
	assert.True(t, caps.Has(domain.CapCanUpgradeToVideo))
	assert.False(t, caps.Has(domain.CapMerge), "merge is controller-owned, not copied")
}

func TestSessionDisconnectDestroys(t *testing.T) {
	leg := newFakeLeg("leg-1", "5551234567")
	s := NewSession(domain.DirectionIncoming, &fakeSiblings{})
	rec := &recListener{}
	s.AddListener(rec)
	s.Attach(leg)
	leg.setState(domain.StateActive)

	leg.disconnect(domain.DiscBusy, "")
	assert.True(t, s.Destroyed())
	assert.Nil(t, s.Leg(), "leg reference must be nulled on teardown")
	require.Len(t, rec.causes, 1)
	assert.Equal(t, domain.CategoryBusy, rec.causes[0].Category)
	assert.Equal(t, 1, rec.destroyed)

	// Listener registry is severed; later events cannot reach us.
	leg.setState(domain.StateActive)
	assert.Equal(t, 1, rec.destroyed)
	assert.True(t, s.Destroyed())
}

func TestSessionRadioFailureLeavesStateUnchanged(t *testing.T) {
	group := &fakeGroup{id: "g1", failWith: ErrRadioBusy}
	leg := newFakeLeg("leg-1", "5551234567")
	leg.group = group
	s := NewSession(domain.DirectionOutgoing, &fakeSiblings{topLevel: 1})
	s.Attach(leg)
	leg.setState(domain.StateActive)

	s.Hold()
	assert.Equal(t, domain.StateActive, s.State(), "failed primitive must not move state")

	leg.failWith = ErrInvalidState
	s.Hangup()
	assert.False(t, s.Destroyed())
}

func TestSessionAttachReplacesLeg(t *testing.T) {
	first := newFakeLeg("leg-1", "5551234567")
	second := newFakeLeg("leg-2", "5559876543")
	s := NewSession(domain.DirectionOutgoing, &fakeSiblings{})
	s.Attach(first)
	s.Attach(second)

	assert.Empty(t, first.observers, "previous leg must be unsubscribed")
	require.Len(t, second.observers, 1)

	// Events from the replaced leg are ignored.
	first.setState(domain.StateHolding)
	assert.NotEqual(t, domain.StateHolding, s.State())
}

func TestSessionParticipantsSnapshotRepublished(t *testing.T) {
	leg := newFakeLeg("leg-1", "5551234567")
	leg.tech = domain.TechIPMultimedia
	s := NewSession(domain.DirectionOutgoing, &fakeSiblings{})
	rec := &recListener{}
	s.AddListener(rec)
	s.Attach(leg)

	leg.pushParticipants([]ParticipantInfo{{Endpoint: "tel:5550001", Status: ParticipantStatusConnected}})
	require.Len(t, rec.snapshots, 1)
	assert.Equal(t, "tel:5550001", rec.snapshots[0][0].Endpoint)
}

func TestSessionHangupOnZombieClosesLocally(t *testing.T) {
	s := NewSession(domain.DirectionOutgoing, &fakeSiblings{})
	rec := &recListener{}
	s.AddListener(rec)

	s.Hangup()
	assert.True(t, s.Destroyed())
	require.Len(t, rec.causes, 1)
	assert.Equal(t, domain.CategoryLocal, rec.causes[0].Category)
}

func TestSessionExternalCallProperty(t *testing.T) {
	leg := newFakeLeg("leg-1", "5551234567")
	s := NewSession(domain.DirectionIncoming, &fakeSiblings{})
	s.Attach(leg)
	rec := &recListener{}
	s.AddListener(rec)

	assert.False(t, s.Properties().Has(domain.PropExternalCall))

	leg.pushExtras(map[string]string{ExtraExternalCall: "true"})
	assert.True(t, s.Properties().Has(domain.PropExternalCall))
	assert.Equal(t, 1, rec.updated)
}
