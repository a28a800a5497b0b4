package core

import (
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/callbridge/internal/domain"
)

// ConferenceOps is the variant-specific behavior behind a conference's
// user operations. Each controller supplies its own; entries left to
// the zero value are unsupported and no-op with a log line.
type ConferenceOps interface {
	Merge(c *Conference)
	Swap(c *Conference)
	Hold(c *Conference)
	Unhold(c *Conference)
	Separate(c *Conference, child *Session)
}

// Conference is a framework-facing aggregate of two or more sessions.
// It owns the ordered child set; sessions only record membership for
// queries. A conference with zero children is invalid and tears
// itself down synchronously with the last removal.
type Conference struct {
	id   string
	tech domain.Technology

	children []*Session
	caps     domain.Capability
	props    domain.Property
	state    domain.CallState

	ops       ConferenceOps
	destroyed bool

	// onEmpty runs synchronously when the last child leaves, before
	// AddChild can be called again. Set by the owning controller.
	onEmpty func(*Conference)
}

func NewConference(tech domain.Technology, ops ConferenceOps, onEmpty func(*Conference)) *Conference {
	return &Conference{
		id:      uuid.NewString(),
		tech:    tech,
		ops:     ops,
		onEmpty: onEmpty,
		state:   domain.StateActive,
	}
}

func (c *Conference) ID() string                    { return c.id }
func (c *Conference) Technology() domain.Technology { return c.tech }
func (c *Conference) State() domain.CallState       { return c.state }
func (c *Conference) Destroyed() bool               { return c.destroyed }
func (c *Conference) ChildCount() int               { return len(c.children) }

func (c *Conference) Capabilities() domain.Capability { return c.caps }
func (c *Conference) Properties() domain.Property     { return c.props }
func (c *Conference) SetCapabilities(caps domain.Capability) { c.caps = caps }
func (c *Conference) SetProperties(props domain.Property)    { c.props = props }

// Children returns a copy; callers iterate while controllers mutate.
func (c *Conference) Children() []*Session {
	out := make([]*Session, len(c.children))
	copy(out, c.children)
	return out
}

func (c *Conference) Contains(s *Session) bool {
	for _, child := range c.children {
		if child == s {
			return true
		}
	}
	return false
}

// AddChild appends a session, transferring it out of any previous
// aggregate first so a session is never a member of two at once.
func (c *Conference) AddChild(s *Session) {
	if c.destroyed {
		log.Error().Str("module", "core.conference").Str("id", c.id).
			Msg("add child on destroyed conference")
		return
	}
	if c.Contains(s) {
		return
	}
	if prev := s.Conference(); prev != nil && prev != c {
		prev.RemoveChild(s)
	}
	c.children = append(c.children, s)
	s.setConference(c)
	log.Info().Str("module", "core.conference").Str("id", c.id).
		Str("session", s.ID()).Int("children", len(c.children)).Msg("child added")
}

// RemoveChild detaches a session. Dropping to zero children destroys
// the conference before returning.
func (c *Conference) RemoveChild(s *Session) {
	for i, child := range c.children {
		if child != s {
			continue
		}
		c.children = append(c.children[:i], c.children[i+1:]...)
		if s.Conference() == c {
			s.setConference(nil)
		}
		log.Info().Str("module", "core.conference").Str("id", c.id).
			Str("session", s.ID()).Int("children", len(c.children)).Msg("child removed")
		break
	}
	if len(c.children) == 0 && !c.destroyed {
		c.teardown()
	}
}

// Teardown removes every child and destroys the aggregate.
func (c *Conference) Teardown() {
	for _, child := range c.Children() {
		for i, cur := range c.children {
			if cur == child {
				c.children = append(c.children[:i], c.children[i+1:]...)
				break
			}
		}
		if child.Conference() == c {
			child.setConference(nil)
		}
	}
	if !c.destroyed {
		c.teardown()
	}
}

func (c *Conference) teardown() {
	c.destroyed = true
	log.Info().Str("module", "core.conference").Str("id", c.id).Msg("conference destroyed")
	if c.onEmpty != nil {
		c.onEmpty(c)
	}
}

// primary picks the child the aggregate state derives from: the first
// child whose leg still reports multiparty, else the first child.
func (c *Conference) primary() *Session {
	for _, child := range c.children {
		if leg := child.Leg(); leg != nil && leg.IsMultiparty() {
			return child
		}
	}
	if len(c.children) > 0 {
		return c.children[0]
	}
	return nil
}

// RecomputeState re-derives aggregate state from the primary child.
// Returns true when the state moved.
func (c *Conference) RecomputeState() bool {
	p := c.primary()
	if p == nil {
		return false
	}
	if c.state == p.State() {
		return false
	}
	c.state = p.State()
	log.Debug().Str("module", "core.conference").Str("id", c.id).
		Str("state", c.state.String()).Msg("state recomputed")
	return true
}

// User operations delegate to the controller's ops.

func (c *Conference) Merge() {
	if c.ops == nil {
		log.Info().Str("module", "core.conference").Str("id", c.id).Msg("merge unsupported")
		return
	}
	c.ops.Merge(c)
}

func (c *Conference) Swap() {
	if c.ops == nil {
		log.Info().Str("module", "core.conference").Str("id", c.id).Msg("swap unsupported")
		return
	}
	c.ops.Swap(c)
}

func (c *Conference) Hold() {
	if c.ops == nil {
		log.Info().Str("module", "core.conference").Str("id", c.id).Msg("hold unsupported")
		return
	}
	c.ops.Hold(c)
}

func (c *Conference) Unhold() {
	if c.ops == nil {
		log.Info().Str("module", "core.conference").Str("id", c.id).Msg("unhold unsupported")
		return
	}
	c.ops.Unhold(c)
}

func (c *Conference) Separate(child *Session) {
	if c.ops == nil {
		log.Info().Str("module", "core.conference").Str("id", c.id).Msg("separate unsupported")
		return
	}
	c.ops.Separate(c, child)
}
