package kalg

import (
	"sync"

	"go.uber.org/zap"

	"github.com/w200024212/pebbleos-sub017/internal/accel"
)

// Engine is the activity recognition engine. All entry points serialize
// on one mutex; sample ingestion and minute ticks are expected to arrive
// from a single background worker, but nothing breaks if they do not.
//
// Lifecycle: New -> Init -> (HandleAccelSamples | MinuteTick)* ->
// EarlyDeinit -> Deinit. Using an engine before Init is a programmer
// error and panics.
type Engine struct {
	mu  sync.Mutex
	log *zap.Logger

	env     Environment
	metrics Metrics
	rec     Recorder

	initialized  bool
	tracking     bool
	shuttingDown bool

	epochs   epochAccumulator
	detector stepDetector
	minutes  minuteAggregator
	sleep    sleepMachine
	notWorn  notWornDetector
	walk     stepRateMachine
	run      stepRateMachine

	lastMinuteUTC uint32
	haveTotals    bool
	prevResting   uint32
	prevActive    uint32
	prevDistance  uint32

	epochAnalyses uint64
}

// SleepSummary describes the current sleep picture: the open session (if
// any) and where certainty ends.
type SleepSummary struct {
	SleepStartUTC     uint32
	CertainLenM       uint16
	UncertainStartUTC uint32
}

// New wires an engine to its collaborators. rec may be nil when minute
// persistence is not wanted (tests, replay tooling).
func New(log *zap.Logger, env Environment, metrics Metrics, hr HeartRateSource, rec Recorder) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{
		log:     log,
		env:     env,
		metrics: metrics,
		rec:     rec,
		walk:    newStepRateMachine(walkConfig, hr),
		run:     newStepRateMachine(runConfig, hr),
	}
}

// Init readies the engine and returns the accelerometer sampling rate it
// wants, in Hz.
func (e *Engine) Init() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.initialized = true
	e.tracking = true
	e.shuttingDown = false
	return SampleRateHz
}

func (e *Engine) mustBeInitialized() {
	if !e.initialized {
		panic("kalg: engine used before Init")
	}
}

// EnableTracking pauses or resumes recognition. Disabling closes every
// open session as if an end condition fired; minute samples keep being
// recorded either way.
func (e *Engine) EnableTracking(enabled bool) []SessionEvent {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.mustBeInitialized()
	if e.tracking == enabled {
		return nil
	}
	e.tracking = enabled
	if enabled {
		return nil
	}
	return e.closeAllLocked()
}

// HandleAccelSamples ingests a batch of samples and returns how many
// steps the completed epochs in this batch contributed.
func (e *Engine) HandleAccelSamples(samples []accel.Sample, firstTimestampMS uint64) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.mustBeInitialized()
	if !e.tracking || e.shuttingDown {
		return 0
	}
	_ = firstTimestampMS // sampling is nominally isochronous; the engine is epoch-driven

	steps := 0
	for _, s := range samples {
		if !e.epochs.add(s) {
			continue
		}
		r := e.detector.analyze(&e.epochs.axes, e.epochs.count)
		e.epochAnalyses++
		steps += r.steps
		e.minutes.addEpoch(r)

		var sx, sy, sz int64
		for i := 0; i < epochSamples; i++ {
			sx += int64(e.epochs.axes[0][i])
			sy += int64(e.epochs.axes[1][i])
			sz += int64(e.epochs.axes[2][i])
		}
		e.minutes.addSampleSums(sx, sy, sz, epochSamples)
		e.epochs.clear()
	}
	return steps
}

// MinuteTick runs the per-minute pipeline: aggregate the minute, feed the
// five state machines, persist the sample, and return the session events
// this minute produced. utcSeconds older than the previous tick means the
// clock was set back; all state machines reset rather than carrying
// sessions across the discontinuity.
func (e *Engine) MinuteTick(utcSeconds uint32) (MinuteSample, []SessionEvent) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.mustBeInitialized()

	if e.lastMinuteUTC != 0 && utcSeconds < e.lastMinuteUTC {
		e.log.Warn("clock rollback, resetting state machines",
			zap.Uint32("utc", utcSeconds), zap.Uint32("previous", e.lastMinuteUTC))
		e.resetMachinesLocked()
	}
	e.lastMinuteUTC = utcSeconds

	plugged := e.env != nil && e.env.PluggedIn()
	features := e.minutes.flush(plugged)

	var light uint16
	if e.env != nil {
		light = e.env.AmbientLight()
	}

	deltas := e.minuteDeltasLocked()

	var events []SessionEvent
	if e.tracking {
		notWornNow := e.notWorn.minute(utcSeconds, features)

		events = append(events, e.walk.minute(utcSeconds, int(features.Steps), deltas, e.shuttingDown)...)
		events = append(events, e.run.minute(utcSeconds, int(features.Steps), deltas, e.shuttingDown)...)

		sleepEvents, zero := e.sleep.tick(utcSeconds, features, notWornNow, &e.notWorn)
		events = append(events, sleepEvents...)
		if zero != nil && e.rec != nil {
			e.rec.MarkSleep(zero.startUTC, zero.endUTC)
		}
	}

	sample := MinuteSample{
		UTC:             utcSeconds,
		Steps:           features.Steps,
		VMC:             features.VMC,
		Orientation:     features.Orientation,
		LightLevel:      light,
		PluggedIn:       features.PluggedIn,
		Active:          features.Steps > 0,
		HeartRateBPM:    e.currentHeartRateLocked(),
		RestingCalories: clipU16(int64(deltas.restingCal)),
		ActiveCalories:  clipU16(int64(deltas.activeCal)),
		DistanceMM:      deltas.distanceMM,
	}

	if e.rec != nil {
		if err := e.rec.Record(sample, e.sleep.uncertainMinutes()); err != nil {
			e.log.Warn("minute record not persisted", zap.Error(err))
		}
	}

	for _, ev := range events {
		e.log.Info("session event",
			zap.String("type", ev.Session.Type.String()),
			zap.String("kind", ev.Kind.String()),
			zap.Uint32("start", ev.Session.StartUTC),
			zap.Uint16("len_m", ev.Session.LengthM))
	}
	return sample, events
}

func (e *Engine) minuteDeltasLocked() minuteDeltas {
	if e.metrics == nil {
		return minuteDeltas{}
	}
	resting := e.metrics.RestingCalories()
	active := e.metrics.ActiveCalories()
	dist := e.metrics.DistanceMM()
	var d minuteDeltas
	if e.haveTotals {
		// Running totals may reset underneath us (collaborator restart);
		// a backwards jump yields a zero delta, not a huge one.
		if resting >= e.prevResting {
			d.restingCal = resting - e.prevResting
		}
		if active >= e.prevActive {
			d.activeCal = active - e.prevActive
		}
		if dist >= e.prevDistance {
			d.distanceMM = dist - e.prevDistance
		}
	}
	e.prevResting, e.prevActive, e.prevDistance = resting, active, dist
	e.haveTotals = true
	return d
}

func (e *Engine) currentHeartRateLocked() uint8 {
	if bpm := e.walk.heartRateBPM(); bpm != 0 {
		return bpm
	}
	return e.run.heartRateBPM()
}

// SleepSummary reports the open sleep session and the first minute whose
// classification is still uncertain.
func (e *Engine) SleepSummary() SleepSummary {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.mustBeInitialized()
	sum := SleepSummary{}
	if e.sleep.open {
		sum.SleepStartUTC = e.sleep.startUTC
		sum.CertainLenM = uint16(e.sleep.lenM)
	}
	if e.sleep.lastScoredUTC != 0 {
		sum.UncertainStartUTC = e.sleep.lastScoredUTC + 60
	}
	return sum
}

// EpochAnalyses reports how many full epochs have been analyzed.
func (e *Engine) EpochAnalyses() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.epochAnalyses
}

// PendingSamples reports how many samples are buffered short of an epoch.
func (e *Engine) PendingSamples() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.epochs.count
}

// EarlyDeinit closes every open session as if its end condition fired and
// flushes partial persistence batches. The events describe whatever the
// shutdown closed out.
func (e *Engine) EarlyDeinit() []SessionEvent {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.mustBeInitialized()
	e.shuttingDown = true
	events := e.closeAllLocked()
	if e.rec != nil {
		if err := e.rec.Flush(); err != nil {
			e.log.Warn("shutdown flush failed", zap.Error(err))
		}
	}
	return events
}

// Deinit tears the engine down. Init may be called again afterwards.
func (e *Engine) Deinit() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.initialized = false
	e.resetMachinesLocked()
	e.lastMinuteUTC = 0
	e.haveTotals = false
	e.epochAnalyses = 0
}

func (e *Engine) closeAllLocked() []SessionEvent {
	var events []SessionEvent
	events = append(events, e.walk.forceClose()...)
	events = append(events, e.run.forceClose()...)
	events = append(events, e.sleep.shutdown(&e.notWorn)...)
	return events
}

func (e *Engine) resetMachinesLocked() {
	e.epochs.reset()
	e.detector.reset()
	e.minutes = minuteAggregator{}
	e.sleep.reset()
	e.notWorn.reset()
	e.walk.reset()
	e.run.reset()
}
