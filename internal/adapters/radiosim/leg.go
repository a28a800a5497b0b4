// Package radiosim is an in-process, scriptable radio bridge. It
// stands in for the real radio layer in the demo server and in tests:
// legs and call groups expose the same notification surface the
// hardware bridge would, plus mutators to drive state and failure
// modes from the outside.
package radiosim

import (
	"fmt"
	"sync"

	"github.com/dkeye/callbridge/internal/core"
	"github.com/dkeye/callbridge/internal/domain"
)

// Leg implements core.RadioLeg with scriptable behavior. Mutators
// deliver notifications through the configured post function so
// ordering matches the production single-queue model.
type Leg struct {
	id   string
	post func(func())

	mu         sync.Mutex
	state      domain.CallState
	address    domain.Address
	tech       domain.Technology
	multiparty bool
	group      *Group
	caps       domain.Capability
	observers  []core.LegObserver

	// FailWith, when set, makes every primitive return this error.
	FailWith error

	// Primitive call counters for assertions.
	HangupCalls   int
	SeparateCalls int
	DTMF          []rune
	DroppedParts  []string
}

func NewLeg(id, number string, tech domain.Technology) *Leg {
	return &Leg{
		id:      id,
		post:    func(f func()) { f() },
		state:   domain.StateIdle,
		address: domain.NewAddress(number, ""),
		tech:    tech,
	}
}

// SetPoster routes notifications through the manager's serial queue.
func (l *Leg) SetPoster(post func(func())) { l.post = post }

func (l *Leg) ID() string { return l.id }

func (l *Leg) State() domain.CallState {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

func (l *Leg) Address() domain.Address {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.address
}

func (l *Leg) Technology() domain.Technology {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.tech
}

func (l *Leg) IsMultiparty() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.multiparty
}

func (l *Leg) Group() core.CallGroup {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.group == nil {
		return nil
	}
	return l.group
}

func (l *Leg) Capabilities() domain.Capability {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.caps
}

func (l *Leg) Hangup() error {
	if l.FailWith != nil {
		return l.FailWith
	}
	l.HangupCalls++
	return nil
}

func (l *Leg) SendDTMF(digit rune) error {
	if l.FailWith != nil {
		return l.FailWith
	}
	l.DTMF = append(l.DTMF, digit)
	return nil
}

func (l *Leg) Separate() error {
	if l.FailWith != nil {
		return l.FailWith
	}
	l.SeparateCalls++
	return nil
}

func (l *Leg) DisconnectParticipant(endpoint string) error {
	if l.FailWith != nil {
		return l.FailWith
	}
	if l.Technology() != domain.TechIPMultimedia {
		return core.ErrUnsupported
	}
	l.DroppedParts = append(l.DroppedParts, endpoint)
	return nil
}

func (l *Leg) AddObserver(o core.LegObserver) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.observers = append(l.observers, o)
}

func (l *Leg) RemoveObserver(o core.LegObserver) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i, cur := range l.observers {
		if cur == o {
			l.observers = append(l.observers[:i], l.observers[i+1:]...)
			return
		}
	}
}

func (l *Leg) snapshotObservers() []core.LegObserver {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]core.LegObserver, len(l.observers))
	copy(out, l.observers)
	return out
}

// Script mutators. Each fires the matching notification.

func (l *Leg) SetState(st domain.CallState) {
	l.mu.Lock()
	l.state = st
	l.mu.Unlock()
	l.post(func() {
		for _, o := range l.snapshotObservers() {
			o.OnStateChanged(l)
		}
	})
}

func (l *Leg) Disconnect(code domain.RadioDisconnectCode, reason string) {
	l.mu.Lock()
	l.state = domain.StateDisconnected
	l.mu.Unlock()
	l.post(func() {
		for _, o := range l.snapshotObservers() {
			o.OnDisconnected(l, code, reason)
		}
	})
}

// SetTechnology models an access-technology handover on the same leg.
func (l *Leg) SetTechnology(tech domain.Technology) {
	l.mu.Lock()
	l.tech = tech
	l.mu.Unlock()
	l.post(func() {
		for _, o := range l.snapshotObservers() {
			o.OnStateChanged(l)
		}
	})
}

func (l *Leg) SetCapabilities(caps domain.Capability) {
	l.mu.Lock()
	l.caps = caps
	l.mu.Unlock()
	l.post(func() {
		for _, o := range l.snapshotObservers() {
			o.OnCapabilitiesChanged(l, caps)
		}
	})
}

func (l *Leg) SetVideoState(vs domain.VideoState) {
	l.post(func() {
		for _, o := range l.snapshotObservers() {
			o.OnVideoStateChanged(l, vs)
		}
	})
}

func (l *Leg) SetWifi(onWifi bool) {
	l.post(func() {
		for _, o := range l.snapshotObservers() {
			o.OnWifiChanged(l, onWifi)
		}
	})
}

func (l *Leg) SetAudioQuality(q domain.AudioQuality) {
	l.post(func() {
		for _, o := range l.snapshotObservers() {
			o.OnAudioQualityChanged(l, q)
		}
	})
}

func (l *Leg) SetMultiparty(multi bool) {
	l.mu.Lock()
	l.multiparty = multi
	l.mu.Unlock()
	l.post(func() {
		for _, o := range l.snapshotObservers() {
			o.OnMultipartyChanged(l, multi)
		}
	})
}

func (l *Leg) PushParticipants(snapshot []core.ParticipantInfo) {
	l.post(func() {
		for _, o := range l.snapshotObservers() {
			o.OnConferenceParticipantsChanged(l, snapshot)
		}
	})
}

func (l *Leg) SetExtras(extras map[string]string) {
	l.post(func() {
		for _, o := range l.snapshotObservers() {
			o.OnExtrasChanged(l, extras)
		}
	})
}

// Group implements core.CallGroup over simulated legs.
type Group struct {
	id string

	mu   sync.Mutex
	legs []*Leg

	FailWith    error
	SwitchCalls int
	ConfCalls   int
	FlashCalls  int
}

func NewGroup(id string) *Group { return &Group{id: id} }

func (g *Group) ID() string { return g.id }

func (g *Group) Legs() []core.RadioLeg {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]core.RadioLeg, len(g.legs))
	for i, l := range g.legs {
		out[i] = l
	}
	return out
}

// Join binds a leg into this group.
func (g *Group) Join(l *Leg) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.legs = append(g.legs, l)
	l.mu.Lock()
	l.group = g
	l.mu.Unlock()
}

func (g *Group) SwitchActiveHolding() error {
	if g.FailWith != nil {
		return fmt.Errorf("switch active/holding: %w", g.FailWith)
	}
	g.SwitchCalls++
	return nil
}

func (g *Group) Conference() error {
	if g.FailWith != nil {
		return fmt.Errorf("conference: %w", g.FailWith)
	}
	g.ConfCalls++
	return nil
}

func (g *Group) Flash() error {
	if g.FailWith != nil {
		return fmt.Errorf("flash: %w", g.FailWith)
	}
	g.FlashCalls++
	return nil
}
