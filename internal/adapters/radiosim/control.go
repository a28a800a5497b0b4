package radiosim

import (
	"sync"

	"github.com/dkeye/callbridge/internal/core"
)

// Control implements core.RadioControl with scriptable service state.
type Control struct {
	mu        sync.Mutex
	state     core.ServiceState
	connected bool
	observers map[int]func(core.ServiceState)
	nextObs   int

	FailWith error
	PowerOns int
}

func NewControl() *Control {
	return &Control{
		state:     core.ServicePowerOff,
		observers: make(map[int]func(core.ServiceState)),
	}
}

func (c *Control) PowerOn() error {
	if c.FailWith != nil {
		return c.FailWith
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.PowerOns++
	return nil
}

func (c *Control) ServiceState() core.ServiceState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Control) CallConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

func (c *Control) SetCallConnected(v bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connected = v
}

func (c *Control) AddServiceObserver(fn func(core.ServiceState)) (remove func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.nextObs
	c.nextObs++
	c.observers[id] = fn
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.observers, id)
	}
}

// ObserverCount reports live registrations; cleanup tests use it.
func (c *Control) ObserverCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.observers)
}

// SetServiceState moves the service state and notifies observers.
func (c *Control) SetServiceState(st core.ServiceState) {
	c.mu.Lock()
	c.state = st
	obs := make([]func(core.ServiceState), 0, len(c.observers))
	for _, fn := range c.observers {
		obs = append(obs, fn)
	}
	c.mu.Unlock()
	for _, fn := range obs {
		fn(st)
	}
}

// Route implements core.AudioRoute in memory.
type Route struct {
	mu        sync.Mutex
	volume    int
	max       int
	tone      bool
	vibrating bool

	FailWith error
}

func NewRoute(volume, max int) *Route {
	return &Route{volume: volume, max: max}
}

func (r *Route) VoiceCallVolume() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.volume
}

func (r *Route) MaxVoiceCallVolume() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.max
}

func (r *Route) SetVoiceCallVolume(v int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.volume = v
}

func (r *Route) StartTone() error {
	if r.FailWith != nil {
		return r.FailWith
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tone = true
	return nil
}

func (r *Route) StopTone() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tone = false
}

func (r *Route) Vibrate(pattern []int) error {
	if r.FailWith != nil {
		return r.FailWith
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.vibrating = true
	return nil
}

func (r *Route) StopVibration() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.vibrating = false
}

func (r *Route) TonePlaying() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.tone
}

func (r *Route) Vibrating() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.vibrating
}
