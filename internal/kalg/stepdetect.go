package kalg

// Spectral step detection over one epoch: band-pass PIM accumulation,
// VMC derivation, cosine-tapered real FFT per axis, and harmonic scoring
// of the combined magnitude spectrum. All arithmetic is integer; nothing
// here signals errors, implausible epochs simply score below threshold.

type epochResult struct {
	steps int
	vmc   int32

	freq      int // peak bin, cycles per epoch
	score     int
	highScore int
	lowScore  int
	energy    int64

	stepping bool // full classification
	partial  bool // lower-threshold boundary classification
}

type stepDetector struct {
	filters [3]bandPassFilter

	// previous epoch, for boundary smoothing
	prevStepping bool
	prevPartial  bool
	prevFreq     int
}

func (d *stepDetector) reset() {
	*d = stepDetector{}
}

// analyze consumes one full epoch and returns its step count and VMC.
// A zero-length epoch is a no-op.
func (d *stepDetector) analyze(axes *[3][epochSamples]int16, n int) epochResult {
	if n == 0 {
		return epochResult{}
	}
	if n != epochSamples {
		panic("kalg: analyze called with a partial epoch")
	}

	var pims [3]int64
	for a := 0; a < 3; a++ {
		pims[a] = d.axisPIM(&d.filters[a], axes[a][:n])
	}
	vmc := combineVMC(pims)

	mag := d.spectrum(axes, n)
	res := scoreSpectrum(&mag, vmc)
	res.vmc = vmc

	res.stepping = classify(res, false)
	res.partial = res.stepping || classify(res, true)

	// Smooth session boundaries: the half-epoch where a walk starts or
	// ends only reaches the partial thresholds, so credit half its count
	// to the adjacent full epoch.
	steps := 0
	switch {
	case res.stepping:
		steps = res.freq
		if !d.prevStepping && d.prevPartial {
			steps += d.prevFreq / 2
		}
	case res.partial && d.prevStepping:
		steps = res.freq / 2
	}
	res.steps = steps

	d.prevStepping = res.stepping
	d.prevPartial = res.partial
	d.prevFreq = res.freq
	return res
}

// axisPIM filters one axis second by second, rectifies, removes the
// per-sample baseline and accumulates the epoch total.
func (d *stepDetector) axisPIM(f *bandPassFilter, samples []int16) int64 {
	if !f.primed {
		var first [filterPrimeLen]int32
		for i := 0; i < filterPrimeLen; i++ {
			first[i] = int32(samples[i])
		}
		f.prime(first[:])
	}
	var pim int64
	for s := 0; s < secondsPerEpoch; s++ {
		var acc int64
		for i := s * SampleRateHz; i < (s+1)*SampleRateHz; i++ {
			y := f.step(int32(samples[i]))
			if y < 0 {
				y = -y
			}
			acc += int64(y)
		}
		acc -= pimBaselinePerSample * SampleRateHz
		if acc > 0 {
			pim += acc
		}
	}
	if pim > pimAxisClip {
		pim = pimAxisClip
	}
	return pim
}

func combineVMC(pims [3]int64) int32 {
	var sum uint64
	for _, p := range pims {
		sum += uint64(p * p)
	}
	return int32(isqrt(sum) >> vmcShift)
}

// spectrum returns the three axes' magnitude spectra summed per bin.
// Index k holds |X(k)| for k in 1..fftWidth/2.
func (d *stepDetector) spectrum(axes *[3][epochSamples]int16, n int) [fftWidth/2 + 1]int64 {
	var mag [fftWidth/2 + 1]int64
	var buf [fftWidth]int32
	for a := 0; a < 3; a++ {
		var sum int64
		for i := 0; i < n; i++ {
			sum += int64(axes[a][i])
		}
		mean := int32(sum / int64(n))

		for i := 0; i < n; i++ {
			buf[i] = int32(axes[a][i]) - mean
		}
		for i := n; i < fftWidth; i++ {
			buf[i] = 0
		}
		for i := 0; i < taperLen; i++ {
			buf[i] = buf[i] * taperTable[i] / 256
			buf[n-1-i] = buf[n-1-i] * taperTable[i] / 256
		}

		realFFT(buf[:])
		for k := 1; k <= fftWidth/2; k++ {
			var im int64
			if k < fftWidth/2 {
				im = int64(buf[fftWidth-k])
			}
			re := int64(buf[k])
			mag[k] += int64(isqrt(uint64(re*re + im*im)))
		}
	}
	return mag
}

func searchBand(vmc int32) (lo, hi int) {
	switch {
	case vmc < slowWalkVMCMax:
		return 5, 13
	case vmc < mediumWalkVMCMax:
		return 5, 16
	default:
		return 7, 20
	}
}

func binEnergy(mag *[fftWidth/2 + 1]int64, b int) int64 {
	var e int64
	for k := b - 1; k <= b+1; k++ {
		if k >= 1 && k <= fftWidth/2 {
			e += mag[k]
		}
	}
	return e
}

// scoreSpectrum finds the peak bin in the VMC-dependent band, rescans
// around it accumulating harmonic and arm-swing-subharmonic energy, and
// derives the three 0-100 scores.
func scoreSpectrum(mag *[fftWidth/2 + 1]int64, vmc int32) epochResult {
	var total int64
	for k := 1; k <= fftWidth/2; k++ {
		total += mag[k]
	}
	if total == 0 {
		return epochResult{}
	}

	lo, hi := searchBand(vmc)
	peak := lo
	for k := lo; k <= hi; k++ {
		if mag[k] > mag[peak] {
			peak = k
		}
	}

	best, bestSig := peak, int64(-1)
	from, to := peak-2, peak+2
	if from < 3 {
		from = 3
	}
	if to > kMaxStepFreq {
		to = kMaxStepFreq
	}
	for c := from; c <= to; c++ {
		sig := binEnergy(mag, c) + binEnergy(mag, 2*c) + binEnergy(mag, 3*c)
		if c >= 6 {
			sig += binEnergy(mag, c/2) // arm swing at half cadence
		}
		if sig > bestSig {
			bestSig, best = sig, c
		}
	}

	var high, low int64
	for k := 40; k <= fftWidth/2; k++ {
		high += mag[k]
	}
	for k := 1; k <= 4; k++ {
		low += mag[k]
	}

	return epochResult{
		freq:      best,
		score:     int(100 * bestSig / total),
		highScore: int(100 * high / total),
		lowScore:  int(100 * low / total),
		energy:    total,
	}
}

func classify(r epochResult, partial bool) bool {
	minScore, minVMC := kMinScore, int32(kMinVMC)
	if partial {
		minScore, minVMC = kMinScorePartial, int32(kMinVMCPartial)
	}
	if r.freq < kMinStepFreq || r.freq > kMaxStepFreq {
		return false
	}
	if r.score < minScore || r.vmc < minVMC {
		return false
	}
	if r.highScore > kMaxHighScore || r.lowScore > kMaxLowScore {
		return false
	}
	if r.energy < kMinFFTEnergy {
		return false
	}
	if r.freq >= kFastFreq && r.vmc < kMinVMCFast {
		return false
	}
	return true
}
