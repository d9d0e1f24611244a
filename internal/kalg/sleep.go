package kalg

// Sleep/wake state machine. Minutes are scored with a weighted VMC
// convolution over a window centered on the minute under evaluation, so
// every verdict lags the wall clock by sleepWindowHalfM minutes.

var sleepWeights = [sleepWindowM]int{15, 20, 30, 20, 15}

type sleepHistEntry struct {
	utc     uint32
	vmc     uint16
	notWorn bool
}

type sleepStats struct {
	minutes int
	nonZero int
	vmcSum  int64
}

func (s *sleepStats) add(vmc uint16) {
	s.minutes++
	s.vmcSum += int64(vmc)
	if vmc > 0 {
		s.nonZero++
	}
}

// sleepRange names minutes whose step counts must be zeroed in the
// persistence layer because they are now classified as sleep.
type sleepRange struct {
	startUTC, endUTC uint32
}

type sleepMachine struct {
	hist    [sleepWindowM]sleepHistEntry
	histLen int

	lastScoredUTC uint32

	// candidate run while no session is open
	consecSleepM   int
	candidateStart uint32
	candidate      sleepStats

	// open session
	open         bool
	startUTC     uint32
	lenM         int // start through the last sleep minute
	consecAwakeM int
	stats        sleepStats
	registered   bool

	deep deepSleepMachine
}

func (s *sleepMachine) reset() {
	*s = sleepMachine{}
}

func (s *sleepMachine) session() ActivitySession {
	return ActivitySession{Type: ActivitySleep, StartUTC: s.startUTC, LengthM: uint16(s.lenM)}
}

// uncertainMinutes reports how many trailing minutes are still subject to
// retroactive revision: the unscored scoring lag, plus any candidate run
// that has not yet been confirmed as sleep.
func (s *sleepMachine) uncertainMinutes() int {
	n := sleepWindowHalfM
	if !s.open {
		n += s.consecSleepM
	}
	if n > MaxUncertainSleepM {
		n = MaxUncertainSleepM
	}
	return n
}

// tick folds in one minute. notWorn is the detector's verdict for that
// minute and worn is the detector itself, consulted for the retroactive
// veto when a session closes.
func (s *sleepMachine) tick(utc uint32, f MinuteFeatures, notWornNow bool, worn *notWornDetector) ([]SessionEvent, *sleepRange) {
	if s.histLen == sleepWindowM {
		copy(s.hist[:], s.hist[1:])
		s.histLen--
	}
	s.hist[s.histLen] = sleepHistEntry{utc: utc, vmc: f.VMC, notWorn: notWornNow}
	s.histLen++
	if s.histLen < sleepWindowM {
		return nil, nil
	}

	var weighted int64
	for i, e := range s.hist {
		weighted += int64(sleepWeights[i]) * int64(e.vmc)
	}
	score := int(weighted / 100)
	center := s.hist[sleepWindowHalfM]
	s.lastScoredUTC = center.utc

	isSleep := score <= maxSleepMinuteScore && !center.notWorn

	if !s.open {
		return nil, s.tickIdle(center, isSleep)
	}
	return s.tickOpen(center, score, isSleep, worn)
}

func (s *sleepMachine) tickIdle(center sleepHistEntry, isSleep bool) *sleepRange {
	if !isSleep {
		s.consecSleepM = 0
		s.candidate = sleepStats{}
		return nil
	}
	if s.consecSleepM == 0 {
		s.candidateStart = center.utc
		s.candidate = sleepStats{}
	}
	s.consecSleepM++
	s.candidate.add(center.vmc)
	if s.consecSleepM < minSleepMinutesToStart {
		return nil
	}

	// Enough consecutive sleep minutes: the session opens, backdated to
	// the first minute of the run.
	s.open = true
	s.startUTC = s.candidateStart
	s.lenM = s.consecSleepM
	s.consecAwakeM = 0
	s.stats = s.candidate
	s.consecSleepM = 0
	s.deep.reset(s.startUTC)
	return &sleepRange{startUTC: s.startUTC, endUTC: center.utc}
}

func (s *sleepMachine) tickOpen(center sleepHistEntry, score int, isSleep bool, worn *notWornDetector) ([]SessionEvent, *sleepRange) {
	s.stats.add(center.vmc)
	offsetM := int(center.utc-s.startUTC) / 60

	var zero *sleepRange
	var events []SessionEvent

	if isSleep {
		s.consecAwakeM = 0
		s.lenM = offsetM + 1
		zero = &sleepRange{startUTC: center.utc, endUTC: center.utc}
	} else {
		s.consecAwakeM++
	}
	events = append(events, s.deep.minute(score, offsetM)...)

	// End conditions, first match wins.
	switch {
	case center.notWorn:
		events = append(events, s.close(true, worn)...)
		return events, zero
	case s.consecAwakeM >= s.awakeEndThreshold():
		events = append(events, s.close(false, worn)...)
		return events, zero
	case int(center.vmc) >= forcedWakeVMC || score >= forcedWakeScore:
		events = append(events, s.close(false, worn)...)
		return events, zero
	case s.lenM >= sleepStatsMinLenM && s.statsExceeded():
		events = append(events, s.close(true, worn)...)
		return events, zero
	}

	// Still ongoing: past the minimum length the same session is
	// re-emitted every minute with its updated length.
	if s.lenM >= minSleepSessionM {
		if !s.registered {
			s.registered = true
			events = append(events, SessionEvent{Kind: SessionStarted, Session: s.session()})
			events = append(events, s.deep.setOkToRegister()...)
		} else {
			events = append(events, SessionEvent{Kind: SessionUpdated, Session: s.session()})
		}
	}
	return events, zero
}

func (s *sleepMachine) awakeEndThreshold() int {
	if s.lenM < establishedSleepM {
		return awakeEndEarlyM
	}
	return awakeEndLateM
}

func (s *sleepMachine) statsExceeded() bool {
	if s.stats.minutes == 0 {
		return false
	}
	nonZeroPct := 100 * s.stats.nonZero / s.stats.minutes
	avgVMC := s.stats.vmcSum / int64(s.stats.minutes)
	return nonZeroPct > maxNonZeroPct || avgVMC > maxSessionAvgVMC
}

// shutdown force-ends an open session as if a normal end condition fired.
func (s *sleepMachine) shutdown(worn *notWornDetector) []SessionEvent {
	if !s.open {
		return nil
	}
	return s.close(false, worn)
}

// close ends the session. Trailing awake minutes are already excluded
// because lenM only advances on sleep minutes. A rejected or invalid
// session retracts whatever was previously registered.
func (s *sleepMachine) close(reject bool, worn *notWornDetector) []SessionEvent {
	valid := !reject &&
		s.lenM >= minSleepSessionM &&
		!worn.vetoesSleep(s.startUTC, s.lenM)

	var events []SessionEvent
	if valid {
		events = append(events, SessionEvent{Kind: SessionEnded, Session: s.session()})
		events = append(events, s.deep.finalize()...)
	} else {
		if s.registered {
			events = append(events, SessionEvent{Kind: SessionRetracted, Session: s.session()})
		}
		events = append(events, s.deep.abort()...)
	}

	s.open = false
	s.registered = false
	s.lenM = 0
	s.consecAwakeM = 0
	s.stats = sleepStats{}
	s.consecSleepM = 0
	s.candidate = sleepStats{}
	return events
}
