package kalg

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const engBase = uint32(1700014400)

// restlessMinute renders one minute of a barely-moving sleeper whose
// orientation drifts one heading bucket per minute. The drift keeps the
// not-worn detector from mistaking the stillness for time off the wrist,
// and the per-minute VMC stays well inside the sleep band.
func restlessMinute(m int) signal {
	theta := (5.625 + 11.25*float64(m)) * math.Pi / 180
	return signal{
		freqHz:  1.0,
		amps:    [3]float64{24, 16, 8},
		phases:  [3]float64{0, 1.0, 2.0},
		gravity: [3]int{int(800 * math.Cos(theta)), int(800 * math.Sin(theta)), -600},
	}
}

func newTestEngine(rec Recorder, hr HeartRateSource, metrics Metrics) *Engine {
	e := New(nil, &fakeEnv{}, metrics, hr, rec)
	e.Init()
	return e
}

// feedMinute pushes one rendered minute of samples and ticks the clock.
func feedMinute(e *Engine, tick int, sig signal) (MinuteSample, []SessionEvent) {
	samples := minuteOfSamples(sig)
	e.HandleAccelSamples(samples, uint64(tick)*60000)
	return e.MinuteTick(engBase + uint32(tick)*60)
}

func TestEngineUseBeforeInitPanics(t *testing.T) {
	e := New(nil, nil, nil, nil, nil)
	assert.Panics(t, func() { e.MinuteTick(engBase) })
	assert.Panics(t, func() { e.HandleAccelSamples(nil, 0) })

	assert.Equal(t, SampleRateHz, e.Init())
	assert.NotPanics(t, func() { e.MinuteTick(engBase) })

	e.Deinit()
	assert.Panics(t, func() { e.MinuteTick(engBase + 60) })
}

func TestEngineEpochAccounting(t *testing.T) {
	e := newTestEngine(nil, nil, nil)

	samples := append(epochBatch(walkSignal), epochBatch(walkSignal)...)
	samples = append(samples, epochBatch(walkSignal)[:50]...)
	steps := e.HandleAccelSamples(samples, 0)

	assert.Equal(t, uint64(2), e.EpochAnalyses())
	assert.Equal(t, 50, e.PendingSamples())
	assert.Equal(t, 22, steps, "eleven steps per full walk epoch")
}

func TestEngineWalkSessionLifecycle(t *testing.T) {
	rec := &fakeRecorder{}
	hr := &fakeHR{bpm: 112}
	e := newTestEngine(rec, hr, nil)

	var events []SessionEvent
	for i := 0; i < 12; i++ {
		sample, ev := feedMinute(e, i, walkSignal)
		events = append(events, ev...)

		assert.Equal(t, uint16(132), sample.Steps, "minute %d", i)
		assert.True(t, sample.Active)
		if i >= 2 {
			assert.Equal(t, uint8(112), sample.HeartRateBPM,
				"heart rate flows once the walk is three minutes old")
		}
	}

	started := eventsOf(events, ActivityWalk, SessionStarted)
	require.Len(t, started, 1)
	assert.Equal(t, engBase, started[0].Session.StartUTC)
	assert.Equal(t, uint16(10), started[0].Session.LengthM)
	assert.Len(t, eventsOf(events, ActivityWalk, SessionUpdated), 2)

	ev := e.EarlyDeinit()
	ended := eventsOf(ev, ActivityWalk, SessionEnded)
	require.Len(t, ended, 1)
	assert.Equal(t, uint16(12), ended[0].Session.LengthM)
	assert.Equal(t, uint32(12*132), ended[0].Session.Steps)
	assert.Equal(t, 1, rec.flushes)
	assert.Equal(t, 1, hr.releases)
	assert.Len(t, rec.samples, 12)
}

func TestEngineSleepScenario(t *testing.T) {
	rec := &fakeRecorder{}
	e := newTestEngine(rec, nil, nil)

	var events []SessionEvent
	for i := 0; i < 40; i++ {
		sample, ev := feedMinute(e, i, restlessMinute(i))
		events = append(events, ev...)

		assert.Zero(t, sample.Steps, "minute %d", i)
		assert.GreaterOrEqual(t, sample.VMC, uint16(notWornVMCFloor), "minute %d", i)
		assert.LessOrEqual(t, sample.VMC, uint16(maxSleepMinuteScore), "minute %d", i)
	}

	// The session was backdated to its first sleep minute and the whole
	// candidate run zeroed in one go.
	require.NotEmpty(t, rec.marks)
	assert.Equal(t, engBase+2*60, rec.marks[0].start)
	assert.Equal(t, engBase+6*60, rec.marks[0].end)
	assert.Equal(t, markedRange{start: engBase + 7*60, end: engBase + 7*60}, rec.marks[1])

	started := eventsOf(events, ActivitySleep, SessionStarted)
	require.Len(t, started, 1)
	assert.Equal(t, engBase+2*60, started[0].Session.StartUTC)
	assert.Equal(t, uint16(minSleepSessionM), started[0].Session.LengthM)
	assert.Len(t, eventsOf(events, ActivitySleep, SessionUpdated), 16)

	sum := e.SleepSummary()
	assert.Equal(t, engBase+2*60, sum.SleepStartUTC)

	for _, u := range rec.uncertain {
		assert.LessOrEqual(t, u, MaxUncertainSleepM)
	}

	// A burst of walking scores far past the forced-wake line as soon as
	// it enters the window.
	_, ev := feedMinute(e, 40, walkSignal)
	ended := eventsOf(ev, ActivitySleep, SessionEnded)
	require.Len(t, ended, 1)
	assert.Equal(t, engBase+2*60, ended[0].Session.StartUTC)
	assert.Equal(t, uint16(36), ended[0].Session.LengthM,
		"the session ends at its last sleep minute")
	assert.Zero(t, e.SleepSummary().SleepStartUTC)
}

func TestEngineIsDeterministic(t *testing.T) {
	run := func() ([]MinuteSample, []SessionEvent) {
		rec := &fakeRecorder{}
		e := newTestEngine(rec, &fakeHR{bpm: 96}, nil)
		var events []SessionEvent
		for i := 0; i < 15; i++ {
			sig := walkSignal
			if i%5 == 4 {
				sig = stillSignal
			}
			_, ev := feedMinute(e, i, sig)
			events = append(events, ev...)
		}
		events = append(events, e.EarlyDeinit()...)
		return rec.samples, events
	}

	s1, e1 := run()
	s2, e2 := run()
	assert.Equal(t, s1, s2)
	assert.Equal(t, e1, e2)
}

func TestEngineClockRollbackResetsMachines(t *testing.T) {
	e := newTestEngine(nil, nil, nil)

	var events []SessionEvent
	for i := 0; i < 12; i++ {
		_, ev := feedMinute(e, i, walkSignal)
		events = append(events, ev...)
	}
	require.NotEmpty(t, eventsOf(events, ActivityWalk, SessionStarted))

	// The clock jumps back an hour: the open walk is abandoned, not ended.
	sample, ev := e.MinuteTick(engBase - 3600)
	assert.Empty(t, ev)
	assert.Zero(t, sample.Steps)

	// A fresh walk has to earn registration all over again.
	_, ev = feedMinute(e, 0, walkSignal)
	assert.Empty(t, eventsOf(ev, ActivityWalk, SessionUpdated))
}

func TestEngineTrackingToggle(t *testing.T) {
	e := newTestEngine(nil, nil, nil)

	for i := 0; i < 12; i++ {
		feedMinute(e, i, walkSignal)
	}
	ev := e.EnableTracking(false)
	require.Len(t, eventsOf(ev, ActivityWalk, SessionEnded), 1)
	assert.Empty(t, e.EnableTracking(false), "already disabled")

	assert.Zero(t, e.HandleAccelSamples(epochBatch(walkSignal), 0))
	sample, ev := e.MinuteTick(engBase + 12*60)
	assert.Empty(t, ev)
	assert.Zero(t, sample.Steps)

	// Re-enabled, recognition picks up from scratch.
	assert.Empty(t, e.EnableTracking(true))
	steps := e.HandleAccelSamples(epochBatch(walkSignal), 0)
	assert.Equal(t, 11, steps)
}

func TestEngineMetricDeltas(t *testing.T) {
	m := &fakeMetrics{resting: 1000, active: 200, distance: 5000}
	e := newTestEngine(nil, nil, m)

	sample, _ := e.MinuteTick(engBase)
	assert.Zero(t, sample.RestingCalories, "first tick only establishes the baseline")

	m.resting, m.active, m.distance = 1500, 300, 8000
	sample, _ = e.MinuteTick(engBase + 60)
	assert.Equal(t, uint16(500), sample.RestingCalories)
	assert.Equal(t, uint16(100), sample.ActiveCalories)
	assert.Equal(t, uint32(3000), sample.DistanceMM)

	// A collaborator restart drops the totals; the delta must not wrap.
	m.resting = 100
	sample, _ = e.MinuteTick(engBase + 120)
	assert.Zero(t, sample.RestingCalories)

	m.resting = 250
	sample, _ = e.MinuteTick(engBase + 180)
	assert.Equal(t, uint16(150), sample.RestingCalories)
}
