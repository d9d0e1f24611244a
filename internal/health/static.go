package health

import (
	"sync"

	"github.com/w200024212/pebbleos-sub017/internal/kalg"
)

// StaticEnvironment is a settable environment collaborator, used by the
// replay tool and anywhere no real light sensor or charger line exists.
type StaticEnvironment struct {
	mu      sync.Mutex
	light   uint16
	plugged bool
}

func (e *StaticEnvironment) SetAmbientLight(v uint16) {
	e.mu.Lock()
	e.light = v
	e.mu.Unlock()
}

func (e *StaticEnvironment) SetPluggedIn(v bool) {
	e.mu.Lock()
	e.plugged = v
	e.mu.Unlock()
}

func (e *StaticEnvironment) AmbientLight() uint16 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.light
}

func (e *StaticEnvironment) PluggedIn() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.plugged
}

// StaticHeartRate hands out a fixed reading and counts subscriptions.
type StaticHeartRate struct {
	mu   sync.Mutex
	bpm  uint8
	subs int
}

func NewStaticHeartRate(bpm uint8) *StaticHeartRate {
	return &StaticHeartRate{bpm: bpm}
}

func (h *StaticHeartRate) SetBPM(bpm uint8) {
	h.mu.Lock()
	h.bpm = bpm
	h.mu.Unlock()
}

func (h *StaticHeartRate) Subscribe() kalg.HeartRateSubscription {
	h.mu.Lock()
	h.subs++
	h.mu.Unlock()
	return &staticHRSub{src: h}
}

// Subscriptions reports how many subscriptions are currently held.
func (h *StaticHeartRate) Subscriptions() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.subs
}

type staticHRSub struct {
	src  *StaticHeartRate
	once sync.Once
}

func (s *staticHRSub) MedianBPM() uint8 {
	s.src.mu.Lock()
	defer s.src.mu.Unlock()
	return s.src.bpm
}

func (s *staticHRSub) Release() {
	s.once.Do(func() {
		s.src.mu.Lock()
		s.src.subs--
		s.src.mu.Unlock()
	})
}

var (
	_ kalg.Environment     = (*StaticEnvironment)(nil)
	_ kalg.HeartRateSource = (*StaticHeartRate)(nil)
	_ kalg.Metrics         = (*Tracker)(nil)
	_ DistanceSource       = (*GPSDistance)(nil)
)
