package app

import (
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/callbridge/internal/core"
)

// SequencerState tracks the emergency activation machine:
// Idle -> Activating -> (ServiceReady | RetryWait) -> Idle.
type SequencerState int

const (
	SequencerIdle SequencerState = iota
	SequencerActivating
	SequencerRetryWait
)

func (s SequencerState) String() string {
	switch s {
	case SequencerActivating:
		return "activating"
	case SequencerRetryWait:
		return "retry-wait"
	default:
		return "idle"
	}
}

// EmergencySequencer powers the radio up for an emergency call placed
// while the radio is off, retrying on a timer until service appears
// or the budget runs out. Cleanup is idempotent and safe to call from
// inside its own callbacks.
type EmergencySequencer struct {
	clock    core.Clock
	interval time.Duration
	budget   int
	// post reschedules timer callbacks onto the owning serial queue.
	post func(func())

	state     SequencerState
	radio     core.RadioControl
	done      func(ok bool)
	retries   int
	timer     core.Timer
	removeObs func()
	// generation invalidates callbacks from a canceled sequence.
	generation int
}

func NewEmergencySequencer(clock core.Clock, interval time.Duration, budget int) *EmergencySequencer {
	return &EmergencySequencer{
		clock:    clock,
		interval: interval,
		budget:   budget,
		post:     func(f func()) { f() },
		state:    SequencerIdle,
	}
}

func (seq *EmergencySequencer) SetPoster(post func(func())) { seq.post = post }

func (seq *EmergencySequencer) State() SequencerState { return seq.state }
func (seq *EmergencySequencer) Retries() int          { return seq.retries }

// Activate starts (or restarts) the sequence. Any in-flight sequence
// for this instance is canceled first, reporting failure to its
// requester.
func (seq *EmergencySequencer) Activate(radio core.RadioControl, done func(ok bool)) {
	if seq.state != SequencerIdle {
		log.Warn().Str("module", "app.emergency").Msg("activation restarted, canceling previous")
		seq.cleanup(false)
	}
	seq.generation++
	gen := seq.generation
	seq.radio = radio
	seq.done = done
	seq.retries = 0
	seq.state = SequencerActivating

	if err := radio.PowerOn(); err != nil {
		log.Error().Err(err).Str("module", "app.emergency").Msg("power-on request failed")
	}
	seq.removeObs = radio.AddServiceObserver(func(st core.ServiceState) {
		seq.post(func() { seq.onServiceState(gen, st) })
	})
	seq.armTimer(gen)
	log.Info().Str("module", "app.emergency").Dur("interval", seq.interval).
		Int("budget", seq.budget).Msg("emergency activation started")
}

// Cancel aborts an in-flight sequence; the requester hears failure.
func (seq *EmergencySequencer) Cancel() {
	if seq.state == SequencerIdle {
		return
	}
	seq.cleanup(false)
}

func (seq *EmergencySequencer) armTimer(gen int) {
	if seq.timer != nil {
		seq.timer.Stop()
	}
	seq.timer = seq.clock.AfterFunc(seq.interval, func() {
		seq.post(func() { seq.onRetryTimer(gen) })
	})
}

// serviceUp is the core success condition: service reachable (fully
// or emergency-only) or the radio already shows the call connected.
func (seq *EmergencySequencer) serviceUp(st core.ServiceState) bool {
	switch st {
	case core.ServiceInService, core.ServiceEmergencyOnly:
		return true
	}
	return seq.radio.CallConnected()
}

func (seq *EmergencySequencer) onServiceState(gen int, st core.ServiceState) {
	if gen != seq.generation || seq.state == SequencerIdle {
		return
	}
	// A notification of out-of-service after the budget is spent also
	// counts as done: stop waiting and let the dial proceed anyway.
	if seq.serviceUp(st) || (st == core.ServiceOutOfService && seq.retries >= seq.budget) {
		seq.cleanup(true)
		return
	}
	// Not there yet; the retry timer keeps running.
	log.Debug().Str("module", "app.emergency").Int("state", int(st)).Msg("still waiting for service")
}

func (seq *EmergencySequencer) onRetryTimer(gen int) {
	if gen != seq.generation || seq.state == SequencerIdle {
		return
	}
	seq.timer = nil
	if seq.serviceUp(seq.radio.ServiceState()) {
		seq.cleanup(true)
		return
	}
	seq.retries++
	if seq.retries > seq.budget {
		log.Warn().Str("module", "app.emergency").Int("retries", seq.retries-1).
			Msg("retry budget exhausted, giving up")
		seq.cleanup(false)
		return
	}
	seq.state = SequencerRetryWait
	log.Info().Str("module", "app.emergency").Int("retry", seq.retries).Msg("re-issuing power-on")
	if err := seq.radio.PowerOn(); err != nil {
		log.Error().Err(err).Str("module", "app.emergency").Msg("power-on retry failed")
	}
	seq.armTimer(gen)
}

// cleanup unwinds everything exactly once: callback, listener, timer,
// saved handle and count. Reentrancy-safe, the state flips to idle
// before the callback runs.
func (seq *EmergencySequencer) cleanup(ok bool) {
	if seq.state == SequencerIdle {
		return
	}
	seq.state = SequencerIdle
	seq.generation++
	if seq.timer != nil {
		seq.timer.Stop()
		seq.timer = nil
	}
	if seq.removeObs != nil {
		seq.removeObs()
		seq.removeObs = nil
	}
	done := seq.done
	seq.done = nil
	seq.radio = nil
	seq.retries = 0
	log.Info().Str("module", "app.emergency").Bool("ok", ok).Msg("activation finished")
	if done != nil {
		done(ok)
	}
}
