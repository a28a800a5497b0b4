package app

import (
	"github.com/rs/zerolog/log"

	"github.com/dkeye/callbridge/internal/core"
)

// AlertMode selects which alert channels the player drives. One
// configuration value, two independent toggles.
type AlertMode int

const (
	AlertOff AlertMode = iota
	AlertVibrate
	AlertTone
	AlertToneAndVibrate
)

func (m AlertMode) vibrates() bool { return m == AlertVibrate || m == AlertToneAndVibrate }
func (m AlertMode) audible() bool  { return m == AlertTone || m == AlertToneAndVibrate }

// emergencyVibratePattern alternates pause/buzz in milliseconds.
var emergencyVibratePattern = []int{0, 1000, 1000}

// AlertTonePlayer drives the device alert while an emergency dial
// waits on radio activation. Not a state machine: start and stop are
// both idempotent, and stopping restores the exact voice volume that
// starting captured.
type AlertTonePlayer struct {
	route core.AudioRoute
	mode  AlertMode

	started     bool
	savedVolume int
}

func NewAlertTonePlayer(route core.AudioRoute, mode AlertMode) *AlertTonePlayer {
	return &AlertTonePlayer{route: route, mode: mode}
}

func (p *AlertTonePlayer) Started() bool { return p.started }

// Start begins the configured alerts. No-op if already started.
func (p *AlertTonePlayer) Start() {
	if p.started || p.mode == AlertOff {
		return
	}
	p.started = true
	if p.mode.vibrates() {
		if err := p.route.Vibrate(emergencyVibratePattern); err != nil {
			log.Error().Err(err).Str("module", "app.alerttone").Msg("vibration failed")
		}
	}
	if p.mode.audible() {
		p.savedVolume = p.route.VoiceCallVolume()
		p.route.SetVoiceCallVolume(p.route.MaxVoiceCallVolume())
		if err := p.route.StartTone(); err != nil {
			log.Error().Err(err).Str("module", "app.alerttone").Msg("tone start failed")
			p.route.SetVoiceCallVolume(p.savedVolume)
		}
	}
	log.Info().Str("module", "app.alerttone").Int("mode", int(p.mode)).Msg("alert started")
}

// Stop ends the alerts and restores the captured volume. No-op if not
// started.
func (p *AlertTonePlayer) Stop() {
	if !p.started {
		return
	}
	p.started = false
	if p.mode.vibrates() {
		p.route.StopVibration()
	}
	if p.mode.audible() {
		p.route.StopTone()
		p.route.SetVoiceCallVolume(p.savedVolume)
	}
	log.Info().Str("module", "app.alerttone").Msg("alert stopped")
}
