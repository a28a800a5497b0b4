package core

import (
	"github.com/dkeye/callbridge/internal/domain"
)

// fakeGroup is a scriptable call group for session tests.
type fakeGroup struct {
	id          string
	legs        []RadioLeg
	switchCalls int
	confCalls   int
	flashCalls  int
	failWith    error
}

func (g *fakeGroup) ID() string       { return g.id }
func (g *fakeGroup) Legs() []RadioLeg { return g.legs }

func (g *fakeGroup) SwitchActiveHolding() error {
	if g.failWith != nil {
		return g.failWith
	}
	g.switchCalls++
	return nil
}

func (g *fakeGroup) Conference() error {
	if g.failWith != nil {
		return g.failWith
	}
	g.confCalls++
	return nil
}

func (g *fakeGroup) Flash() error {
	if g.failWith != nil {
		return g.failWith
	}
	g.flashCalls++
	return nil
}

// fakeLeg is a scriptable radio leg. Tests mutate its fields and fire
// the observer callbacks the way the radio bridge would.
type fakeLeg struct {
	id         string
	state      domain.CallState
	address    domain.Address
	tech       domain.Technology
	multiparty bool
	group      *fakeGroup
	caps       domain.Capability

	observers []LegObserver

	hangupCalls   int
	separateCalls int
	dtmf          []rune
	dropped       []string
	failWith      error
}

func newFakeLeg(id, number string) *fakeLeg {
	return &fakeLeg{
		id:      id,
		state:   domain.StateIdle,
		address: domain.NewAddress(number, ""),
		tech:    domain.TechCircuitSwitched,
	}
}

func (l *fakeLeg) ID() string                      { return l.id }
func (l *fakeLeg) State() domain.CallState         { return l.state }
func (l *fakeLeg) Address() domain.Address         { return l.address }
func (l *fakeLeg) Technology() domain.Technology   { return l.tech }
func (l *fakeLeg) IsMultiparty() bool              { return l.multiparty }
func (l *fakeLeg) Capabilities() domain.Capability { return l.caps }

func (l *fakeLeg) Group() CallGroup {
	if l.group == nil {
		return nil
	}
	return l.group
}

func (l *fakeLeg) Hangup() error {
	if l.failWith != nil {
		return l.failWith
	}
	l.hangupCalls++
	return nil
}

func (l *fakeLeg) SendDTMF(d rune) error {
	if l.failWith != nil {
		return l.failWith
	}
	l.dtmf = append(l.dtmf, d)
	return nil
}

func (l *fakeLeg) Separate() error {
	if l.failWith != nil {
		return l.failWith
	}
	l.separateCalls++
	return nil
}

func (l *fakeLeg) DisconnectParticipant(endpoint string) error {
	if l.failWith != nil {
		return l.failWith
	}
	l.dropped = append(l.dropped, endpoint)
	return nil
}

func (l *fakeLeg) AddObserver(o LegObserver) { l.observers = append(l.observers, o) }

func (l *fakeLeg) RemoveObserver(o LegObserver) {
	for i, cur := range l.observers {
		if cur == o {
			l.observers = append(l.observers[:i], l.observers[i+1:]...)
			return
		}
	}
}

func (l *fakeLeg) setState(st domain.CallState) {
	l.state = st
	for _, o := range append([]LegObserver(nil), l.observers...) {
		o.OnStateChanged(l)
	}
}

func (l *fakeLeg) disconnect(code domain.RadioDisconnectCode, reason string) {
	l.state = domain.StateDisconnected
	for _, o := range append([]LegObserver(nil), l.observers...) {
		o.OnDisconnected(l, code, reason)
	}
}

func (l *fakeLeg) pushParticipants(snapshot []ParticipantInfo) {
	for _, o := range append([]LegObserver(nil), l.observers...) {
		o.OnConferenceParticipantsChanged(l, snapshot)
	}
}

func (l *fakeLeg) pushExtras(extras map[string]string) {
	for _, o := range append([]LegObserver(nil), l.observers...) {
		o.OnExtrasChanged(l, extras)
	}
}

// fakeSiblings scripts the suppression inputs.
type fakeSiblings struct {
	ringingWaiting bool
	topLevel       int
}

func (f *fakeSiblings) RingingWaitingExists() bool { return f.ringingWaiting }
func (f *fakeSiblings) TopLevelCallCount() int     { return f.topLevel }

// recListener records session events for assertions.
type recListener struct {
	states    []domain.CallState
	updated   int
	destroyed int
	causes    []domain.DisconnectDescriptor
	snapshots [][]ParticipantInfo
	techFrom  []domain.Technology
}

func (r *recListener) OnStateChanged(s *Session, old domain.CallState) {
	r.states = append(r.states, s.State())
}
func (r *recListener) OnUpdated(s *Session)            { r.updated++ }
func (r *recListener) OnMultipartyChanged(s *Session)  {}
func (r *recListener) OnParticipantsSnapshot(s *Session, snap []ParticipantInfo) {
	r.snapshots = append(r.snapshots, snap)
}
func (r *recListener) OnTechnologyChanged(s *Session, old domain.Technology) {
	r.techFrom = append(r.techFrom, old)
}
func (r *recListener) OnDestroyed(s *Session, cause domain.DisconnectDescriptor) {
	r.destroyed++
	r.causes = append(r.causes, cause)
}
