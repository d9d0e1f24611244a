package kalg

// Deep-sleep sub-machine. Lives entirely inside an open sleep session:
// it tracks runs of very low minute scores and turns them into
// RestfulSleep sessions. Candidates collected before the parent session
// is old enough to register stay invisible until okToRegister flips.

type deepInterval struct {
	offsetM int // minutes from parent session start
	lenM    int
}

type deepSleepMachine struct {
	parentStart uint32

	intervals [maxDeepIntervals]deepInterval
	count     int

	runStartM int // -1 when no run is open
	runLenM   int

	okToRegister bool
	registered   int // intervals already emitted as ongoing
}

func (d *deepSleepMachine) reset(parentStart uint32) {
	*d = deepSleepMachine{parentStart: parentStart, runStartM: -1}
}

func (d *deepSleepMachine) session(iv deepInterval) ActivitySession {
	return ActivitySession{
		Type:     ActivityRestfulSleep,
		StartUTC: d.parentStart + uint32(iv.offsetM)*60,
		LengthM:  uint16(iv.lenM),
	}
}

// minute folds in one scored minute of the parent session.
func (d *deepSleepMachine) minute(score int, offsetM int) []SessionEvent {
	if score <= deepSleepScoreMax {
		if d.runStartM < 0 {
			d.runStartM = offsetM
			d.runLenM = 0
		}
		d.runLenM = offsetM - d.runStartM + 1
		return nil
	}
	return d.closeRun()
}

// closeRun stores a completed low-score run once it reached the minimum
// length. On a full candidate list the oldest candidate is dropped.
func (d *deepSleepMachine) closeRun() []SessionEvent {
	if d.runStartM < 0 {
		return nil
	}
	iv := deepInterval{offsetM: d.runStartM, lenM: d.runLenM}
	d.runStartM = -1
	if iv.lenM < minDeepSleepRunM {
		return nil
	}
	if d.count == maxDeepIntervals {
		copy(d.intervals[:], d.intervals[1:])
		d.count--
		if d.registered > 0 {
			d.registered--
		}
	}
	d.intervals[d.count] = iv
	d.count++

	if d.okToRegister {
		d.registered = d.count
		return []SessionEvent{{Kind: SessionStarted, Session: d.session(iv)}}
	}
	return nil
}

// setOkToRegister makes previously collected candidates externally
// visible, emitting them retroactively as ongoing sessions.
func (d *deepSleepMachine) setOkToRegister() []SessionEvent {
	if d.okToRegister {
		return nil
	}
	d.okToRegister = true
	var events []SessionEvent
	for i := d.registered; i < d.count; i++ {
		events = append(events, SessionEvent{Kind: SessionStarted, Session: d.session(d.intervals[i])})
	}
	d.registered = d.count
	return events
}

// finalize emits every collected interval, plus any still-open run, as a
// final RestfulSleep session. Called when the parent session ends cleanly.
func (d *deepSleepMachine) finalize() []SessionEvent {
	d.closeRunSilently()
	var events []SessionEvent
	for i := 0; i < d.count; i++ {
		events = append(events, SessionEvent{Kind: SessionEnded, Session: d.session(d.intervals[i])})
	}
	d.count = 0
	d.registered = 0
	return events
}

func (d *deepSleepMachine) closeRunSilently() {
	if d.runStartM < 0 {
		return
	}
	iv := deepInterval{offsetM: d.runStartM, lenM: d.runLenM}
	d.runStartM = -1
	if iv.lenM < minDeepSleepRunM || d.count == maxDeepIntervals {
		return
	}
	d.intervals[d.count] = iv
	d.count++
}

// abort retracts every registered interval and discards the rest. Called
// when the parent session is rejected.
func (d *deepSleepMachine) abort() []SessionEvent {
	var events []SessionEvent
	for i := 0; i < d.registered; i++ {
		events = append(events, SessionEvent{Kind: SessionRetracted, Session: d.session(d.intervals[i])})
	}
	d.count = 0
	d.registered = 0
	d.runStartM = -1
	return events
}
