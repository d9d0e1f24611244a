package kalg

import "github.com/w200024212/pebbleos-sub017/internal/accel"

// epochAccumulator buffers incoming samples into fixed 5-second windows,
// one buffer per axis. Samples past a full window are retained for the
// next epoch.
type epochAccumulator struct {
	axes  [3][epochSamples]int16
	count int
}

// add appends one sample and reports whether the epoch is now full.
func (e *epochAccumulator) add(s accel.Sample) bool {
	e.axes[0][e.count] = s.X
	e.axes[1][e.count] = s.Y
	e.axes[2][e.count] = s.Z
	e.count++
	return e.count == epochSamples
}

func (e *epochAccumulator) clear() {
	e.count = 0
}

func (e *epochAccumulator) reset() {
	*e = epochAccumulator{}
}
