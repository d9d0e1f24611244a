package kalg

// bandPassFilter is the fixed-point biquad feeding the PIM accumulation.
// One instance per axis; state survives across epochs.
type bandPassFilter struct {
	x1, x2 int32
	y1, y2 int32
	primed bool
}

func (f *bandPassFilter) step(x int32) int32 {
	acc := int64(coefB0)*int64(x) + int64(coefB1)*int64(f.x1) + int64(coefB2)*int64(f.x2) -
		int64(coefA1)*int64(f.y1) - int64(coefA2)*int64(f.y2)
	y := int32(acc >> coefShift)
	f.x2, f.x1 = f.x1, x
	f.y2, f.y1 = f.y1, y
	return y
}

// prime runs an odd-symmetric mirrored extension of the first
// filterPrimeLen samples through the filter so the very first epoch does
// not see a rectangular start-up transient. The x history is preloaded
// with the outermost mirrored value, which for a constant input (device
// at rest) keeps the band-pass output at zero from the first sample.
func (f *bandPassFilter) prime(first []int32) {
	if len(first) < filterPrimeLen {
		panic("kalg: prime needs a full prefix")
	}
	m := 2*first[0] - first[filterPrimeLen-1]
	f.x1, f.x2 = m, m
	f.y1, f.y2 = 0, 0
	for i := filterPrimeLen - 1; i >= 1; i-- {
		f.step(2*first[0] - first[i])
	}
	f.primed = true
}

func (f *bandPassFilter) reset() {
	*f = bandPassFilter{}
}
