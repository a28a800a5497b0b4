package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/callbridge/internal/adapters/feed"
	"github.com/dkeye/callbridge/internal/adapters/radiosim"
	"github.com/dkeye/callbridge/internal/app"
	"github.com/dkeye/callbridge/internal/core"
	"github.com/dkeye/callbridge/internal/domain"
)

type handlers struct {
	mgr   *app.CallManager
	board *radiosim.Switchboard
	radio *radiosim.Control
}

var stateNames = map[string]domain.CallState{
	"idle":          domain.StateIdle,
	"dialing":       domain.StateDialing,
	"alerting":      domain.StateAlerting,
	"incoming":      domain.StateIncoming,
	"ringing":       domain.StateRinging,
	"active":        domain.StateActive,
	"holding":       domain.StateHolding,
	"waiting":       domain.StateWaiting,
	"disconnecting": domain.StateDisconnecting,
	"disconnected":  domain.StateDisconnected,
}

var techNames = map[string]domain.Technology{
	"cs":         domain.TechCircuitSwitched,
	"narrowband": domain.TechNarrowband,
	"ims":        domain.TechIPMultimedia,
}

// Reads and ops hop onto the manager's serial queue so the HTTP side
// never races radio event processing.

func (h *handlers) listSessions(c *gin.Context) {
	var out []feed.SessionView
	h.mgr.Queue().Sync(func() {
		for _, s := range h.mgr.Registry().All() {
			out = append(out, feed.NewSessionView(s))
		}
	})
	c.JSON(http.StatusOK, gin.H{"sessions": out})
}

func (h *handlers) listConferences(c *gin.Context) {
	var out []feed.ConferenceView
	h.mgr.Queue().Sync(func() {
		if conf := h.mgr.Narrowband.Conference(); conf != nil {
			out = append(out, feed.NewConferenceView(conf, nil))
		}
		if conf := h.mgr.Multiparty.Conference(); conf != nil {
			out = append(out, feed.NewConferenceView(conf, nil))
		}
		if conf := h.mgr.IMS.Conference(); conf != nil {
			out = append(out, feed.NewConferenceView(conf, h.mgr.IMS.Participants()))
		}
	})
	c.JSON(http.StatusOK, gin.H{"conferences": out})
}

type legView struct {
	ID         string `json:"id"`
	Number     string `json:"number"`
	State      string `json:"state"`
	Technology string `json:"technology"`
	Multiparty bool   `json:"multiparty,omitempty"`
}

func (h *handlers) listLegs(c *gin.Context) {
	var out []legView
	for _, leg := range h.board.Legs() {
		out = append(out, legView{
			ID:         leg.ID(),
			Number:     leg.Address().Number,
			State:      leg.State().String(),
			Technology: leg.Technology().String(),
			Multiparty: leg.IsMultiparty(),
		})
	}
	c.JSON(http.StatusOK, gin.H{"legs": out})
}

type placeRequest struct {
	Number     string `json:"number"`
	Technology string `json:"technology"`
}

func (h *handlers) place(c *gin.Context, place func(string, domain.Technology) *radiosim.Leg) {
	var req placeRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Number == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing or invalid number"})
		return
	}
	tech, ok := techNames[req.Technology]
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown technology"})
		return
	}
	leg := place(req.Number, tech)
	c.JSON(http.StatusOK, gin.H{"leg": leg.ID()})
}

func (h *handlers) dial(c *gin.Context) { h.place(c, h.board.Dial) }
func (h *handlers) ring(c *gin.Context) { h.place(c, h.board.Ring) }

func (h *handlers) leg(c *gin.Context) (*radiosim.Leg, bool) {
	leg, ok := h.board.Leg(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "no such leg"})
		return nil, false
	}
	return leg, true
}

func (h *handlers) legState(c *gin.Context) {
	leg, ok := h.leg(c)
	if !ok {
		return
	}
	var req struct {
		State string `json:"state"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad request"})
		return
	}
	st, ok := stateNames[req.State]
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown state"})
		return
	}
	leg.SetState(st)
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (h *handlers) legTechnology(c *gin.Context) {
	leg, ok := h.leg(c)
	if !ok {
		return
	}
	var req struct {
		Technology string `json:"technology"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad request"})
		return
	}
	tech, ok := techNames[req.Technology]
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown technology"})
		return
	}
	leg.SetTechnology(tech)
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (h *handlers) legMultiparty(c *gin.Context) {
	leg, ok := h.leg(c)
	if !ok {
		return
	}
	var req struct {
		Multiparty bool `json:"multiparty"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad request"})
		return
	}
	leg.SetMultiparty(req.Multiparty)
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (h *handlers) legDisconnect(c *gin.Context) {
	leg, ok := h.leg(c)
	if !ok {
		return
	}
	var req struct {
		Code   int    `json:"code"`
		Reason string `json:"reason"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad request"})
		return
	}
	leg.Disconnect(domain.RadioDisconnectCode(req.Code), req.Reason)
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (h *handlers) legParticipants(c *gin.Context) {
	leg, ok := h.leg(c)
	if !ok {
		return
	}
	var req struct {
		Participants []struct {
			Endpoint    string `json:"endpoint"`
			DisplayName string `json:"display_name"`
			Status      string `json:"status"`
		} `json:"participants"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad request"})
		return
	}
	snapshot := make([]core.ParticipantInfo, 0, len(req.Participants))
	for _, p := range req.Participants {
		snapshot = append(snapshot, core.ParticipantInfo{
			Endpoint:    p.Endpoint,
			DisplayName: p.DisplayName,
			Status:      p.Status,
		})
	}
	leg.PushParticipants(snapshot)
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (h *handlers) bindGroup(c *gin.Context) {
	var req struct {
		Legs []string `json:"legs"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || len(req.Legs) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing legs"})
		return
	}
	if _, err := h.board.Bind(c.Param("id"), req.Legs...); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (h *handlers) sessionOp(op func(*core.Session)) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("id")
		found := false
		h.mgr.Queue().Sync(func() {
			if s, ok := h.mgr.Registry().Get(id); ok {
				found = true
				op(s)
			}
		})
		if !found {
			c.JSON(http.StatusNotFound, gin.H{"error": "no such session"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"ok": true})
	}
}

func (h *handlers) sessionDTMF(c *gin.Context) {
	var req struct {
		Digit string `json:"digit"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || len(req.Digit) != 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "one digit required"})
		return
	}
	digit := rune(req.Digit[0])
	id := c.Param("id")
	found := false
	h.mgr.Queue().Sync(func() {
		if s, ok := h.mgr.Registry().Get(id); ok {
			found = true
			s.SendDTMF(digit)
		}
	})
	if !found {
		c.JSON(http.StatusNotFound, gin.H{"error": "no such session"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (h *handlers) conferenceOp(op func(*core.Conference)) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("id")
		found := false
		h.mgr.Queue().Sync(func() {
			for _, conf := range []*core.Conference{
				h.mgr.Narrowband.Conference(),
				h.mgr.Multiparty.Conference(),
				h.mgr.IMS.Conference(),
			} {
				if conf != nil && conf.ID() == id {
					found = true
					op(conf)
					return
				}
			}
		})
		if !found {
			c.JSON(http.StatusNotFound, gin.H{"error": "no such conference"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"ok": true})
	}
}

// emergencyActivate kicks off the power-up sequence and returns
// immediately; the outcome lands on the feed as session activity.
func (h *handlers) emergencyActivate(c *gin.Context) {
	h.mgr.Queue().Sync(func() {
		h.mgr.ActivateForEmergency(h.radio, func(ok bool) {
			log.Info().Str("module", "adapters.httpapi").Bool("ok", ok).Msg("emergency activation finished")
		})
	})
	c.JSON(http.StatusAccepted, gin.H{"activating": true})
}
