package feed

import (
	"github.com/dkeye/callbridge/internal/core"
	"github.com/dkeye/callbridge/internal/domain"
)

// SessionView is the wire shape of one session for feed consumers and
// the inspection API.
type SessionView struct {
	ID           string `json:"id"`
	State        string `json:"state"`
	Direction    string `json:"direction"`
	Number       string `json:"number"`
	DisplayName  string `json:"display_name,omitempty"`
	Technology   string `json:"technology"`
	Emergency    bool   `json:"emergency,omitempty"`
	WasIMS       bool   `json:"was_ims,omitempty"`
	OnWifi       bool   `json:"on_wifi,omitempty"`
	Capabilities uint32 `json:"capabilities"`
	Properties   uint32 `json:"properties"`
	Conference   string `json:"conference,omitempty"`
}

func NewSessionView(s *core.Session) SessionView {
	v := SessionView{
		ID:           s.ID(),
		State:        s.State().String(),
		Direction:    s.Direction().String(),
		Number:       s.Address().Number,
		DisplayName:  s.Address().DisplayName,
		Technology:   s.Technology().String(),
		Emergency:    s.IsEmergency(),
		WasIMS:       s.WasIMS(),
		OnWifi:       s.OnWifi(),
		Capabilities: uint32(s.Capabilities()),
		Properties:   uint32(s.Properties()),
	}
	if c := s.Conference(); c != nil {
		v.Conference = c.ID()
	}
	return v
}

type ParticipantView struct {
	Endpoint    string `json:"endpoint"`
	DisplayName string `json:"display_name,omitempty"`
	State       string `json:"state"`
}

func NewParticipantView(p *core.Participant) ParticipantView {
	return ParticipantView{
		Endpoint:    p.Endpoint(),
		DisplayName: p.DisplayName(),
		State:       p.State().String(),
	}
}

type ConferenceView struct {
	ID           string            `json:"id"`
	Technology   string            `json:"technology"`
	State        string            `json:"state"`
	Capabilities uint32            `json:"capabilities"`
	Properties   uint32            `json:"properties"`
	Children     []string          `json:"children"`
	Participants []ParticipantView `json:"participants,omitempty"`
}

func NewConferenceView(c *core.Conference, participants []*core.Participant) ConferenceView {
	v := ConferenceView{
		ID:           c.ID(),
		Technology:   c.Technology().String(),
		State:        c.State().String(),
		Capabilities: uint32(c.Capabilities()),
		Properties:   uint32(c.Properties()),
		Children:     []string{},
	}
	for _, child := range c.Children() {
		v.Children = append(v.Children, child.ID())
	}
	for _, p := range participants {
		v.Participants = append(v.Participants, NewParticipantView(p))
	}
	return v
}

type CauseView struct {
	Category    string `json:"category"`
	Label       string `json:"label"`
	Description string `json:"description,omitempty"`
	Reason      string `json:"reason,omitempty"`
}

func NewCauseView(cause domain.DisconnectDescriptor) CauseView {
	return CauseView{
		Category:    cause.Category.String(),
		Label:       cause.Label,
		Description: cause.Description,
		Reason:      cause.Reason,
	}
}
