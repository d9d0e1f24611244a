package kalg

// Walk/run state machine: one instance per activity type, differing only
// in cadence band and hysteresis. A minute is active when its step count
// falls inside the instance's band; trailing inactive minutes are
// tolerated up to a cap, then the session closes.

type stepRateConfig struct {
	activity ActivityType
	minSPM   int
	maxSPM   int
	minLenM  int
	maxIdleM int
}

var walkConfig = stepRateConfig{
	activity: ActivityWalk,
	minSPM:   walkMinSPM,
	maxSPM:   walkMaxSPM,
	minLenM:  walkMinLenM,
	maxIdleM: walkMaxIdleM,
}

var runConfig = stepRateConfig{
	activity: ActivityRun,
	minSPM:   runMinSPM,
	maxSPM:   runMaxSPM,
	minLenM:  runMinLenM,
	maxIdleM: runMaxIdleM,
}

// minuteDeltas are the per-minute collaborator metric increments
// attributed to whatever sessions are open.
type minuteDeltas struct {
	restingCal uint32
	activeCal  uint32
	distanceMM uint32
}

type stepRateMachine struct {
	cfg stepRateConfig
	hr  HeartRateSource

	startUTC      uint32 // 0 when no session is open
	lastActiveUTC uint32
	idleM         int
	consecActiveM int
	registered    bool

	steps      uint32
	restingCal uint32
	activeCal  uint32
	distanceMM uint32

	hrSub HeartRateSubscription
}

func newStepRateMachine(cfg stepRateConfig, hr HeartRateSource) stepRateMachine {
	return stepRateMachine{cfg: cfg, hr: hr}
}

func (m *stepRateMachine) reset() {
	m.releaseHR()
	*m = stepRateMachine{cfg: m.cfg, hr: m.hr}
}

func (m *stepRateMachine) open() bool {
	return m.startUTC != 0
}

func (m *stepRateMachine) durationM() int {
	if !m.open() {
		return 0
	}
	return int(m.lastActiveUTC-m.startUTC)/60 + 1
}

func (m *stepRateMachine) session() ActivitySession {
	return ActivitySession{
		Type:            m.cfg.activity,
		StartUTC:        m.startUTC,
		LengthM:         uint16(m.durationM()),
		Steps:           m.steps,
		RestingCalories: m.restingCal,
		ActiveCalories:  m.activeCal,
		DistanceMM:      m.distanceMM,
	}
}

func (m *stepRateMachine) minute(utc uint32, steps int, d minuteDeltas, shutdown bool) []SessionEvent {
	active := steps >= m.cfg.minSPM && steps <= m.cfg.maxSPM

	if !m.open() {
		if !active || shutdown {
			return nil
		}
		m.startUTC = utc
		m.lastActiveUTC = utc
	}

	// Metrics accumulate for as long as the session is open, trailing
	// inactive minutes included.
	m.steps += uint32(steps)
	m.restingCal += d.restingCal
	m.activeCal += d.activeCal
	m.distanceMM += d.distanceMM

	if active {
		m.lastActiveUTC = utc
		m.idleM = 0
		m.consecActiveM++
		if m.consecActiveM >= hrSubscribeAfterActiveM && m.hrSub == nil && m.hr != nil {
			m.hrSub = m.hr.Subscribe()
		}
	} else {
		m.idleM++
		m.consecActiveM = 0
	}

	if shutdown || m.idleM > m.cfg.maxIdleM {
		return m.close()
	}

	if m.durationM() >= m.cfg.minLenM && active {
		kind := SessionUpdated
		if !m.registered {
			m.registered = true
			kind = SessionStarted
		}
		return []SessionEvent{{Kind: kind, Session: m.session()}}
	}
	return nil
}

// close finalizes the session: the net duration excludes trailing
// inactive minutes, and anything under the minimum is silently dropped.
func (m *stepRateMachine) close() []SessionEvent {
	var events []SessionEvent
	if m.durationM() >= m.cfg.minLenM {
		events = []SessionEvent{{Kind: SessionEnded, Session: m.session()}}
	}
	m.releaseHR()
	m.startUTC = 0
	m.lastActiveUTC = 0
	m.idleM = 0
	m.consecActiveM = 0
	m.registered = false
	m.steps = 0
	m.restingCal = 0
	m.activeCal = 0
	m.distanceMM = 0
	return events
}

// forceClose ends any open session as part of engine shutdown.
func (m *stepRateMachine) forceClose() []SessionEvent {
	if !m.open() {
		return nil
	}
	return m.close()
}

// heartRateBPM reports the median heart rate of the live subscription,
// or zero when none is open.
func (m *stepRateMachine) heartRateBPM() uint8 {
	if m.hrSub == nil {
		return 0
	}
	return m.hrSub.MedianBPM()
}

func (m *stepRateMachine) releaseHR() {
	if m.hrSub != nil {
		m.hrSub.Release()
		m.hrSub = nil
	}
}
