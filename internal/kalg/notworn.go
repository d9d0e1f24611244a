package kalg

// Not-worn detection runs every minute independent of the sleep machine.
// It tracks runs of "maybe not worn" minutes and keeps the three most
// recent closed runs so a just-ended sleep session can be judged
// retroactively.

type notWornInterval struct {
	startUTC uint32
	endUTC   uint32 // last minute in the run
}

func (iv notWornInterval) lenM() int {
	return int(iv.endUTC-iv.startUTC)/60 + 1
}

type notWornDetector struct {
	history [notWornHistory]notWornInterval // most recent first
	histLen int

	cur    notWornInterval
	curLen int // 0 when no candidate run is open

	prevOrientation uint8
	prevVMC         uint16
	havePrev        bool
}

func (d *notWornDetector) reset() {
	*d = notWornDetector{}
}

// minute folds in one minute and returns the worn verdict: true means the
// device is considered off-wrist during this minute.
func (d *notWornDetector) minute(utc uint32, f MinuteFeatures) bool {
	maybe := f.PluggedIn || orientationFlat(f.Orientation)
	if d.havePrev {
		if f.Orientation == d.prevOrientation {
			maybe = true
		}
		if f.VMC < notWornVMCFloor && d.prevVMC < notWornVMCFloor {
			maybe = true
		}
	}
	d.prevOrientation = f.Orientation
	d.prevVMC = f.VMC
	d.havePrev = true

	if !maybe {
		d.archive()
		return false
	}

	if d.curLen == 0 {
		d.cur.startUTC = utc
	}
	d.cur.endUTC = utc
	d.curLen++

	// Charging is a definite verdict; a bare movement/orientation run has
	// to outlast what a still sleeper plausibly produces.
	return f.PluggedIn || d.curLen > notWornMaxRunM
}

// archive shifts the just-closed candidate run into the most-recent-first
// history, evicting the oldest slot.
func (d *notWornDetector) archive() {
	if d.curLen == 0 {
		return
	}
	for i := notWornHistory - 1; i > 0; i-- {
		d.history[i] = d.history[i-1]
	}
	d.history[0] = d.cur
	if d.histLen < notWornHistory {
		d.histLen++
	}
	d.curLen = 0
	d.cur = notWornInterval{}
}

// vetoesSleep judges a closed sleep session against the current and
// archived runs: a long overlap, or a run hugging both session edges,
// means the session was really time off the wrist.
func (d *notWornDetector) vetoesSleep(startUTC uint32, lenM int) bool {
	endUTC := startUTC + uint32(lenM-1)*60
	check := func(iv notWornInterval) bool {
		if overlapMinutes(iv, startUTC, endUTC) > vetoOverlapM {
			return true
		}
		startsEarly := iv.startUTC <= startUTC+vetoStartMarginM*60
		endsLate := iv.endUTC+vetoEndMarginM*60 >= endUTC
		return startsEarly && endsLate
	}
	if d.curLen > 0 && check(d.cur) {
		return true
	}
	for i := 0; i < d.histLen; i++ {
		if check(d.history[i]) {
			return true
		}
	}
	return false
}

func overlapMinutes(iv notWornInterval, startUTC, endUTC uint32) int {
	lo := iv.startUTC
	if startUTC > lo {
		lo = startUTC
	}
	hi := iv.endUTC
	if endUTC < hi {
		hi = endUTC
	}
	if hi < lo {
		return 0
	}
	return int(hi-lo)/60 + 1
}
