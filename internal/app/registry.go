package app

import (
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/callbridge/internal/core"
	"github.com/dkeye/callbridge/internal/domain"
)

// Registry is the per-manager set of live sessions, threaded through
// constructors instead of living as ambient global state so multiple
// managers can be tested in isolation. It also answers the sibling
// queries hold/unhold suppression needs and tracks which sessions the
// host framework has acknowledged.
type Registry struct {
	mu      sync.RWMutex
	byID    map[string]*core.Session
	order   []*core.Session
	visible map[string]bool
}

func NewRegistry() *Registry {
	return &Registry{
		byID:    make(map[string]*core.Session),
		visible: make(map[string]bool),
	}
}

func (r *Registry) Add(s *core.Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[s.ID()]; ok {
		return
	}
	r.byID[s.ID()] = s
	r.order = append(r.order, s)
	log.Info().Str("module", "app.registry").Str("id", s.ID()).
		Str("direction", s.Direction().String()).Msg("session registered")
}

func (r *Registry) Remove(s *core.Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[s.ID()]; !ok {
		return
	}
	delete(r.byID, s.ID())
	delete(r.visible, s.ID())
	for i, cur := range r.order {
		if cur == s {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	log.Info().Str("module", "app.registry").Str("id", s.ID()).Msg("session removed")
}

func (r *Registry) Get(id string) (*core.Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.byID[id]
	return s, ok
}

// All returns sessions in registration order.
func (r *Registry) All() []*core.Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*core.Session, len(r.order))
	copy(out, r.order)
	return out
}

// Live returns non-terminal sessions in registration order.
func (r *Registry) Live() []*core.Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*core.Session, 0, len(r.order))
	for _, s := range r.order {
		if !s.Destroyed() && !s.State().IsTerminal() {
			out = append(out, s)
		}
	}
	return out
}

// MarkVisible records the framework's acknowledgment of a session.
// Conference recalculation defers until every prospective child is
// visible; a session add can race a conference add otherwise.
func (r *Registry) MarkVisible(s *core.Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.visible[s.ID()] = true
}

func (r *Registry) IsVisible(s *core.Session) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.visible[s.ID()]
}

// RingingWaitingExists implements core.SiblingView.
func (r *Registry) RingingWaitingExists() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, s := range r.order {
		if s.Destroyed() {
			continue
		}
		if leg := s.Leg(); leg != nil && leg.State() == domain.StateWaiting {
			return true
		}
	}
	return false
}

// TopLevelCallCount implements core.SiblingView: conferenced sessions
// collapse into their aggregate, everything else counts alone.
func (r *Registry) TopLevelCallCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	count := 0
	conferences := map[string]bool{}
	for _, s := range r.order {
		if s.Destroyed() || s.State().IsTerminal() {
			continue
		}
		if c := s.Conference(); c != nil {
			if !conferences[c.ID()] {
				conferences[c.ID()] = true
				count++
			}
			continue
		}
		count++
	}
	return count
}
