package app

import (
	"github.com/dkeye/callbridge/internal/adapters/radiosim"
	"github.com/dkeye/callbridge/internal/core"
	"github.com/dkeye/callbridge/internal/domain"
)

// fakeBridge records everything pushed towards the host framework.
type fakeBridge struct {
	sessionAdds    []*core.Session
	sessionUpdates int
	destroyed      []domain.DisconnectDescriptor
	confsAdded     []*core.Conference
	confsDestroyed []*core.Conference
	confUpdates    int
	events         []string
}

func (b *fakeBridge) OnSessionAdded(s *core.Session) { b.sessionAdds = append(b.sessionAdds, s) }
func (b *fakeBridge) OnSessionUpdated(s *core.Session) { b.sessionUpdates++ }
func (b *fakeBridge) OnSessionDestroyed(s *core.Session, cause domain.DisconnectDescriptor) {
	b.destroyed = append(b.destroyed, cause)
}
func (b *fakeBridge) OnConferenceAdded(c *core.Conference) { b.confsAdded = append(b.confsAdded, c) }
func (b *fakeBridge) OnConferenceUpdated(c *core.Conference) { b.confUpdates++ }
func (b *fakeBridge) OnConferenceDestroyed(c *core.Conference) {
	b.confsDestroyed = append(b.confsDestroyed, c)
}
func (b *fakeBridge) OnConnectionEvent(s *core.Session, event string) {
	b.events = append(b.events, event)
}

// liveConference returns the last conference added that is not yet
// destroyed, nil if none.
func (b *fakeBridge) liveConference() *core.Conference {
	for i := len(b.confsAdded) - 1; i >= 0; i-- {
		if !b.confsAdded[i].Destroyed() {
			return b.confsAdded[i]
		}
	}
	return nil
}

// newLegSession builds a registered session bound to a fresh sim leg.
func newLegSession(reg *Registry, dir domain.Direction, number string, tech domain.Technology) (*core.Session, *radiosim.Leg) {
	leg := radiosim.NewLeg("leg-"+number, number, tech)
	s := core.NewSession(dir, reg)
	reg.Add(s)
	s.Attach(leg)
	return s, leg
}

// attachGroup wraps a leg in a fresh call group, returning the group
// for primitive-call assertions.
func attachGroup(leg *radiosim.Leg, s *core.Session) *radiosim.Group {
	g := radiosim.NewGroup("group-" + s.ID())
	g.Join(leg)
	return g
}
