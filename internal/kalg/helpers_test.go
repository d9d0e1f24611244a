package kalg

import (
	"math"

	"github.com/w200024212/pebbleos-sub017/internal/accel"
)

// Signal generators and collaborator fakes shared by the package tests.
// All signals are integer-deterministic so scenario runs are repeatable.

type signal struct {
	freqHz  float64
	amps    [3]float64
	phases  [3]float64
	gravity [3]int
}

var (
	// Vigorous 2.0 Hz walk: peak bin 11, all classification thresholds met.
	walkSignal = signal{
		freqHz:  2.0,
		amps:    [3]float64{1200, 800, 400},
		phases:  [3]float64{0, 1.0, 2.0},
		gravity: [3]int{0, 0, -1000},
	}
	// 2.8 Hz run: peak bin 14-15, cadence in the run band.
	runSignal = signal{
		freqHz:  2.8,
		amps:    [3]float64{2500, 1500, 900},
		phases:  [3]float64{0, 1.0, 2.0},
		gravity: [3]int{0, 0, -1000},
	}
	// Motionless device, gravity on z.
	stillSignal = signal{
		gravity: [3]int{0, 0, -1000},
	}
	// Barely moving sleeper: per-epoch VMC in the low tens, never steps.
	restlessSignal = signal{
		freqHz:  1.0,
		amps:    [3]float64{30, 20, 10},
		phases:  [3]float64{0, 1.0, 2.0},
		gravity: [3]int{800, 0, -600},
	}
)

// epochAxes renders one 5-second epoch of the signal.
func epochAxes(sig signal) [3][epochSamples]int16 {
	var axes [3][epochSamples]int16
	for a := 0; a < 3; a++ {
		for i := 0; i < epochSamples; i++ {
			v := float64(sig.gravity[a]) +
				sig.amps[a]*math.Sin(2*math.Pi*sig.freqHz*float64(i)/SampleRateHz+sig.phases[a])
			axes[a][i] = int16(v)
		}
	}
	return axes
}

// epochBatch renders the same epoch as a flat sample slice.
func epochBatch(sig signal) []accel.Sample {
	axes := epochAxes(sig)
	out := make([]accel.Sample, epochSamples)
	for i := range out {
		out[i] = accel.Sample{X: axes[0][i], Y: axes[1][i], Z: axes[2][i]}
	}
	return out
}

// minuteOfSamples renders a full minute (12 epochs) of the signal.
func minuteOfSamples(sig signal) []accel.Sample {
	out := make([]accel.Sample, 0, epochsPerMinute*epochSamples)
	for e := 0; e < epochsPerMinute; e++ {
		out = append(out, epochBatch(sig)...)
	}
	return out
}

type fakeEnv struct {
	light   uint16
	plugged bool
}

func (f *fakeEnv) AmbientLight() uint16 { return f.light }
func (f *fakeEnv) PluggedIn() bool      { return f.plugged }

type fakeMetrics struct {
	resting, active, distance uint32
}

func (f *fakeMetrics) RestingCalories() uint32 { return f.resting }
func (f *fakeMetrics) ActiveCalories() uint32  { return f.active }
func (f *fakeMetrics) DistanceMM() uint32      { return f.distance }

type fakeHR struct {
	bpm      uint8
	subs     int
	releases int
}

func (f *fakeHR) Subscribe() HeartRateSubscription {
	f.subs++
	return &fakeHRSub{src: f}
}

type fakeHRSub struct{ src *fakeHR }

func (s *fakeHRSub) MedianBPM() uint8 { return s.src.bpm }
func (s *fakeHRSub) Release()         { s.src.releases++ }

type markedRange struct{ start, end uint32 }

type fakeRecorder struct {
	samples   []MinuteSample
	uncertain []int
	marks     []markedRange
	flushes   int
}

func (f *fakeRecorder) Record(sample MinuteSample, uncertainM int) error {
	f.samples = append(f.samples, sample)
	f.uncertain = append(f.uncertain, uncertainM)
	return nil
}

func (f *fakeRecorder) MarkSleep(startUTC, endUTC uint32) {
	f.marks = append(f.marks, markedRange{start: startUTC, end: endUTC})
}

func (f *fakeRecorder) Flush() error {
	f.flushes++
	return nil
}

// eventsOf filters events by activity type and kind.
func eventsOf(events []SessionEvent, typ ActivityType, kind SessionEventKind) []SessionEvent {
	var out []SessionEvent
	for _, ev := range events {
		if ev.Session.Type == typ && ev.Kind == kind {
			out = append(out, ev)
		}
	}
	return out
}
