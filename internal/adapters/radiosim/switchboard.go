package radiosim

import (
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/callbridge/internal/core"
	"github.com/dkeye/callbridge/internal/domain"
)

// LegSink receives fabricated legs; the call manager's OnLegAppeared
// satisfies it.
type LegSink interface {
	OnLegAppeared(leg core.RadioLeg, direction domain.Direction)
}

// Switchboard is the simulated exchange. It fabricates legs on dial
// and ring requests, hands them to the sink, and keeps them reachable
// by id for later scripting.
type Switchboard struct {
	sink LegSink
	post func(func())

	mu      sync.Mutex
	legs    map[string]*Leg
	groups  map[string]*Group
	nextLeg int
}

func NewSwitchboard(sink LegSink, post func(func())) *Switchboard {
	return &Switchboard{
		sink:   sink,
		post:   post,
		legs:   make(map[string]*Leg),
		groups: make(map[string]*Group),
	}
}

func (sw *Switchboard) newLeg(number string, tech domain.Technology) *Leg {
	sw.mu.Lock()
	sw.nextLeg++
	id := fmt.Sprintf("leg-%d", sw.nextLeg)
	leg := NewLeg(id, number, tech)
	leg.SetPoster(sw.post)
	sw.legs[id] = leg
	sw.mu.Unlock()
	return leg
}

// Dial fabricates an outgoing leg already in the dialing state.
func (sw *Switchboard) Dial(number string, tech domain.Technology) *Leg {
	leg := sw.newLeg(number, tech)
	sw.sink.OnLegAppeared(leg, domain.DirectionOutgoing)
	leg.SetState(domain.StateDialing)
	log.Info().Str("module", "radiosim.switchboard").Str("leg", leg.ID()).
		Str("number", number).Str("tech", tech.String()).Msg("outgoing leg dialed")
	return leg
}

// Ring fabricates an incoming leg in the incoming state.
func (sw *Switchboard) Ring(number string, tech domain.Technology) *Leg {
	leg := sw.newLeg(number, tech)
	sw.sink.OnLegAppeared(leg, domain.DirectionIncoming)
	leg.SetState(domain.StateIncoming)
	log.Info().Str("module", "radiosim.switchboard").Str("leg", leg.ID()).
		Str("number", number).Str("tech", tech.String()).Msg("incoming leg ringing")
	return leg
}

// Leg looks a fabricated leg up by id.
func (sw *Switchboard) Leg(id string) (*Leg, bool) {
	sw.mu.Lock()
	defer sw.mu.Unlock()
	leg, ok := sw.legs[id]
	return leg, ok
}

// Legs lists every fabricated leg, fabrication order not guaranteed.
func (sw *Switchboard) Legs() []*Leg {
	sw.mu.Lock()
	defer sw.mu.Unlock()
	out := make([]*Leg, 0, len(sw.legs))
	for _, leg := range sw.legs {
		out = append(out, leg)
	}
	return out
}

// Bind joins legs into one call group, creating it on first use. The
// group is where hold/swap/conference primitives land.
func (sw *Switchboard) Bind(groupID string, legIDs ...string) (*Group, error) {
	sw.mu.Lock()
	defer sw.mu.Unlock()
	g, ok := sw.groups[groupID]
	if !ok {
		g = NewGroup(groupID)
		sw.groups[groupID] = g
	}
	for _, id := range legIDs {
		leg, ok := sw.legs[id]
		if !ok {
			return nil, fmt.Errorf("bind group %s: no leg %s", groupID, id)
		}
		if leg.Group() != g {
			g.Join(leg)
		}
	}
	return g, nil
}
