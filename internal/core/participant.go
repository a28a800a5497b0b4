package core

import (
	"github.com/rs/zerolog/log"

	"github.com/dkeye/callbridge/internal/domain"
)

// Participant is one remote party of an event-package-described
// conference. Identity is the endpoint URI: the same URI arriving
// again is an update, never a second participant. Participants are
// created and removed only from snapshot batches, never from leg
// state.
type Participant struct {
	endpoint    string
	displayName string
	address     domain.Address

	state domain.CallState
	// host carries disconnect requests to the conference server.
	host *Session

	disconnected bool
}

// NewParticipant builds a participant from snapshot data. A malformed
// endpoint still yields a participant, just with a restricted
// presentation; rejecting it would desync us from the server's view.
func NewParticipant(info ParticipantInfo, host *Session) *Participant {
	p := &Participant{
		endpoint:    info.Endpoint,
		displayName: info.DisplayName,
		host:        host,
		state:       domain.StateIdle,
	}
	if number, ok := domain.ParseEndpoint(info.Endpoint); ok {
		p.address = domain.NewAddress(number, info.DisplayName)
	} else {
		log.Warn().Str("module", "core.participant").Str("endpoint", info.Endpoint).
			Msg("unparseable participant endpoint, presenting restricted")
		p.address = domain.RestrictedAddress()
	}
	return p
}

func (p *Participant) Endpoint() string          { return p.endpoint }
func (p *Participant) DisplayName() string       { return p.displayName }
func (p *Participant) Address() domain.Address   { return p.address }
func (p *Participant) State() domain.CallState   { return p.state }
func (p *Participant) Host() *Session            { return p.host }
func (p *Participant) Disconnected() bool        { return p.disconnected }

// Update refreshes display data from a later snapshot entry.
func (p *Participant) Update(info ParticipantInfo) {
	if info.DisplayName != "" && info.DisplayName != p.displayName {
		p.displayName = info.DisplayName
		p.address.DisplayName = info.DisplayName
	}
}

// ApplyStatus translates the snapshot status into participant state.
// Unknown statuses leave the state alone.
func (p *Participant) ApplyStatus(status string) {
	switch status {
	case ParticipantStatusConnected:
		p.state = domain.StateActive
	case ParticipantStatusOnHold:
		p.state = domain.StateHolding
	case ParticipantStatusDisconnected:
		p.MarkDisconnected()
	default:
		log.Warn().Str("module", "core.participant").Str("status", status).
			Str("endpoint", p.endpoint).Msg("unknown participant status")
	}
}

// MarkDisconnected is terminal. Removal from a snapshot lands here
// with a canceled, not user-visible, semantic.
func (p *Participant) MarkDisconnected() {
	p.disconnected = true
	p.state = domain.StateDisconnected
}

// Hangup asks the conference server, through the host session's leg,
// to drop this participant. Fire-and-forget like every radio
// primitive; failure is logged and abandoned.
func (p *Participant) Hangup() {
	if p.host == nil || p.host.Leg() == nil {
		log.Warn().Str("module", "core.participant").Str("endpoint", p.endpoint).
			Msg("hangup with no host leg")
		return
	}
	if err := p.host.Leg().DisconnectParticipant(p.endpoint); err != nil {
		log.Error().Err(err).Str("module", "core.participant").
			Str("endpoint", p.endpoint).Msg("participant disconnect failed")
	}
}
