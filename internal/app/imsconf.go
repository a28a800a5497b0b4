package app

import (
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/callbridge/internal/core"
	"github.com/dkeye/callbridge/internal/domain"
)

// IMSController runs the conference whose membership arrives as
// event-package snapshots instead of leg state. One host session
// carries the network leg to the conference server; the framework
// never sees it directly. An internal anchor session clones the
// original, which is then torn down.
type IMSController struct {
	reg    *Registry
	bridge core.FrameworkBridge
	// onHandover hands the replacement circuit-switched session back
	// to the manager after the host leg falls out of IMS.
	onHandover func(*core.Session)

	// mu is the snapshot critical section: two batches dispatched in
	// close succession must not interleave or participants duplicate.
	// Everything else in this package rides the serial queue.
	mu sync.Mutex

	conf *core.Conference
	host *core.Session

	participants map[string]*core.Participant
	order        []string

	// disconnects counts participant removals, exposed for tests
	// asserting snapshot idempotence.
	disconnects int
}

func NewIMSController(reg *Registry, bridge core.FrameworkBridge) *IMSController {
	return &IMSController{
		reg:          reg,
		bridge:       bridge,
		participants: make(map[string]*core.Participant),
	}
}

// SetHandoverSink wires the manager callback that re-adopts the
// replacement session after CS fallback.
func (ctl *IMSController) SetHandoverSink(sink func(*core.Session)) { ctl.onHandover = sink }

func (ctl *IMSController) Conference() *core.Conference { return ctl.conf }
func (ctl *IMSController) Host() *core.Session          { return ctl.host }
func (ctl *IMSController) DisconnectCount() int         { return ctl.disconnects }

// Participants returns the current set in snapshot insertion order.
func (ctl *IMSController) Participants() []*core.Participant {
	out := make([]*core.Participant, 0, len(ctl.order))
	for _, key := range ctl.order {
		if p, ok := ctl.participants[key]; ok {
			out = append(out, p)
		}
	}
	return out
}

// AdoptSession starts watching an IMS session for event packages.
func (ctl *IMSController) AdoptSession(s *core.Session) {
	s.AddListener(ctl)
}

// filterSelf drops the network's echo of the host itself from a
// snapshot, comparing loosely across sip:/tel: forms.
func (ctl *IMSController) filterSelf(hostAddr string, snapshot []core.ParticipantInfo) []core.ParticipantInfo {
	out := snapshot[:0:0]
	for _, info := range snapshot {
		if domain.NumbersMatchLoose(info.Endpoint, hostAddr) {
			log.Debug().Str("module", "app.imsconf").Str("endpoint", info.Endpoint).
				Msg("dropped self echo from snapshot")
			continue
		}
		out = append(out, info)
	}
	return out
}

// promote replaces the framework-exposed origin session with an
// internal anchor and builds the aggregate around it.
func (ctl *IMSController) promote(origin *core.Session) {
	leg := origin.Leg()
	if leg == nil {
		log.Warn().Str("module", "app.imsconf").Str("id", origin.ID()).
			Msg("cannot promote zombie session")
		return
	}
	anchor := core.NewSession(origin.Direction(), ctl.reg)
	origin.Detach()
	anchor.Attach(leg)
	anchor.AddListener(ctl)
	ctl.reg.Add(anchor)
	ctl.host = anchor

	ctl.conf = core.NewConference(domain.TechIPMultimedia, ctl, ctl.onConferenceEmpty)
	ctl.conf.AddChild(anchor)
	ctl.refreshAggregate()
	ctl.bridge.OnConferenceAdded(ctl.conf)
	log.Info().Str("module", "app.imsconf").Str("conf", ctl.conf.ID()).
		Str("anchor", anchor.ID()).Msg("ims conference created")

	// The original's teardown is signaled merged, not dropped.
	origin.Close(domain.DiscIMSMergedSuccessfully, "")
}

// handleSnapshot applies one event-package batch atomically. New
// participants are all created before any state is set, so the
// framework never observes a half-initialized conference.
func (ctl *IMSController) handleSnapshot(origin *core.Session, snapshot []core.ParticipantInfo) {
	ctl.mu.Lock()
	defer ctl.mu.Unlock()

	hostAddr := origin.Address().Number
	if ctl.host != nil {
		hostAddr = ctl.host.Address().Number
	}
	snapshot = ctl.filterSelf(hostAddr, snapshot)

	if ctl.conf == nil {
		if len(snapshot) == 0 {
			return
		}
		ctl.promote(origin)
		if ctl.conf == nil {
			return
		}
	}

	present := map[string]bool{}
	statuses := map[*core.Participant]string{}
	for _, info := range snapshot {
		key := ctl.keyFor(info.Endpoint)
		if present[key] {
			// Same URI twice in one batch is an update, not a twin.
			if p, ok := ctl.participants[key]; ok {
				p.Update(info)
				statuses[p] = info.Status
			}
			continue
		}
		present[key] = true
		if p, ok := ctl.participants[key]; ok {
			p.Update(info)
			statuses[p] = info.Status
			continue
		}
		p := core.NewParticipant(info, ctl.host)
		ctl.participants[key] = p
		ctl.order = append(ctl.order, key)
		statuses[p] = info.Status
		log.Info().Str("module", "app.imsconf").Str("endpoint", info.Endpoint).
			Msg("participant created")
	}

	// Batch-then-activate: states land only after the whole batch
	// exists.
	for p, status := range statuses {
		p.ApplyStatus(status)
	}

	// Anyone missing from the snapshot left the conference. Canceled:
	// the framework must not render a dropped call.
	for _, key := range append([]string(nil), ctl.order...) {
		if present[key] {
			continue
		}
		p := ctl.participants[key]
		p.MarkDisconnected()
		ctl.removeParticipant(key)
		ctl.disconnects++
		log.Info().Str("module", "app.imsconf").Str("endpoint", p.Endpoint()).
			Msg("participant left")
	}

	ctl.refreshAggregate()
	if ctl.conf != nil {
		ctl.bridge.OnConferenceUpdated(ctl.conf)
	}
}

// keyFor normalizes the endpoint into the unique participant key.
func (ctl *IMSController) keyFor(endpoint string) string {
	if number, ok := domain.ParseEndpoint(endpoint); ok {
		return number
	}
	return endpoint
}

func (ctl *IMSController) removeParticipant(key string) {
	delete(ctl.participants, key)
	for i, cur := range ctl.order {
		if cur == key {
			ctl.order = append(ctl.order[:i], ctl.order[i+1:]...)
			return
		}
	}
}

// refreshAggregate mirrors host bits and keeps manage-conference tied
// to a non-empty participant set; the no-children property toggles in
// the opposite sense for consumers that render empty conferences
// differently.
func (ctl *IMSController) refreshAggregate() {
	if ctl.conf == nil {
		return
	}
	caps := domain.CapMute | domain.CapHold | domain.CapSupportHold
	var props domain.Property = domain.PropConference
	if ctl.host != nil {
		hostCaps := ctl.host.Capabilities()
		caps |= hostCaps & (domain.CapSupportsVTLocalBidirectional |
			domain.CapSupportsVTRemoteBidirectional |
			domain.CapDowngradeToAudio |
			domain.CapCanUpgradeToVideo)
		hostProps := ctl.host.Properties()
		props |= hostProps & (domain.PropHighDefAudio | domain.PropWifi | domain.PropExternalCall)
	}
	if len(ctl.participants) > 0 {
		caps |= domain.CapManageConference
	} else {
		props |= domain.PropNoChildren
	}
	ctl.conf.SetCapabilities(caps)
	ctl.conf.SetProperties(props)
	ctl.conf.RecomputeState()
}

// dropAllParticipants cancels everyone; used for handover and host
// teardown.
func (ctl *IMSController) dropAllParticipants() {
	for _, key := range append([]string(nil), ctl.order...) {
		p := ctl.participants[key]
		p.MarkDisconnected()
		ctl.removeParticipant(key)
		ctl.disconnects++
	}
}

// handover rebuilds a plain session around the leg after it fell back
// to circuit-switched, marks it conference-capable so it can re-enter
// conferencing under circuit-switched rules, and destroys the
// aggregate.
func (ctl *IMSController) handover(host *core.Session) {
	leg := host.Leg()
	host.Detach()

	ctl.mu.Lock()
	ctl.dropAllParticipants()
	ctl.mu.Unlock()

	conf := ctl.conf
	replacement := core.NewSession(host.Direction(), ctl.reg)
	if leg != nil {
		replacement.Attach(leg)
	}
	replacement.SetConferenceCapable(true)
	log.Info().Str("module", "app.imsconf").Str("replacement", replacement.ID()).
		Msg("host left ims, rebuilding as circuit-switched")

	if conf != nil {
		conf.Teardown()
	}
	ctl.reg.Remove(host)
	ctl.host = nil

	if ctl.onHandover != nil {
		ctl.onHandover(replacement)
	}
}

func (ctl *IMSController) onConferenceEmpty(c *core.Conference) {
	if ctl.conf != c {
		return
	}
	ctl.conf = nil
	ctl.bridge.OnConferenceDestroyed(c)
}

// ConferenceOps implementation: the host leg carries every operation.

func (ctl *IMSController) Merge(c *core.Conference) {
	log.Info().Str("module", "app.imsconf").Msg("merge not applicable, membership is server-driven")
}

func (ctl *IMSController) Swap(c *core.Conference) {
	log.Info().Str("module", "app.imsconf").Msg("swap not applicable on ims conference")
}

func (ctl *IMSController) Hold(c *core.Conference) {
	if ctl.host != nil {
		ctl.host.Hold()
	}
}

func (ctl *IMSController) Unhold(c *core.Conference) {
	if ctl.host != nil {
		ctl.host.Unhold()
	}
}

// Separate drops one participant-backed child; for the anchor there
// is nothing to separate from.
func (ctl *IMSController) Separate(c *core.Conference, child *core.Session) {
	log.Info().Str("module", "app.imsconf").Msg("separate unsupported on ims conference")
}

// SessionListener implementation; fires for watched IMS sessions and
// for the anchor.

func (ctl *IMSController) OnParticipantsSnapshot(s *core.Session, snapshot []core.ParticipantInfo) {
	ctl.handleSnapshot(s, snapshot)
}

func (ctl *IMSController) OnStateChanged(s *core.Session, old domain.CallState) {
	if s != ctl.host || ctl.conf == nil {
		return
	}
	if ctl.conf.RecomputeState() {
		ctl.bridge.OnConferenceUpdated(ctl.conf)
	}
}

func (ctl *IMSController) OnUpdated(s *core.Session) {
	if s != ctl.host || ctl.conf == nil {
		return
	}
	ctl.refreshAggregate()
	ctl.bridge.OnConferenceUpdated(ctl.conf)
}

func (ctl *IMSController) OnTechnologyChanged(s *core.Session, old domain.Technology) {
	if s != ctl.host {
		return
	}
	if old == domain.TechIPMultimedia && s.Technology() != domain.TechIPMultimedia {
		ctl.handover(s)
	}
}

func (ctl *IMSController) OnMultipartyChanged(s *core.Session) {}

func (ctl *IMSController) OnDestroyed(s *core.Session, cause domain.DisconnectDescriptor) {
	if s != ctl.host {
		return
	}
	ctl.mu.Lock()
	ctl.dropAllParticipants()
	ctl.mu.Unlock()
	ctl.reg.Remove(s)
	ctl.host = nil
	if ctl.conf != nil {
		ctl.conf.Teardown()
	}
}
