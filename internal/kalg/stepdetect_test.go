package kalg

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBandPassRejectsConstantInput(t *testing.T) {
	var f bandPassFilter
	first := make([]int32, filterPrimeLen)
	for i := range first {
		first[i] = -1000
	}
	f.prime(first)
	for i := 0; i < 500; i++ {
		assert.Zero(t, f.step(-1000), "sample %d", i)
	}
}

func TestBandPassAttenuatesOutOfBand(t *testing.T) {
	energy := func(freqHz float64) int64 {
		var f bandPassFilter
		in := make([]int32, 500)
		for i := range in {
			in[i] = int32(1000 * math.Sin(2*math.Pi*freqHz*float64(i)/SampleRateHz))
		}
		f.prime(in[:filterPrimeLen])
		var sum int64
		for _, x := range in[125:] { // skip settling
			y := f.step(x)
			if y < 0 {
				y = -y
			}
			sum += int64(y)
		}
		return sum
	}

	inBand := energy(1.0)
	above := energy(10.0)
	require.NotZero(t, inBand)
	assert.Greater(t, inBand, 10*above, "10 Hz should be well outside the pass band")
}

func runEpochs(d *stepDetector, sig signal, n int) []epochResult {
	out := make([]epochResult, n)
	for i := range out {
		axes := epochAxes(sig)
		out[i] = d.analyze(&axes, epochSamples)
	}
	return out
}

func TestWalkEpochsClassifiedStepping(t *testing.T) {
	var d stepDetector
	results := runEpochs(&d, walkSignal, 4)
	for i, r := range results {
		assert.True(t, r.stepping, "epoch %d", i)
		assert.Equal(t, 11, r.freq, "epoch %d", i)
		assert.Equal(t, 11, r.steps, "epoch %d", i)
		assert.InDelta(t, 2900, int(r.vmc), 350, "epoch %d", i)
		assert.GreaterOrEqual(t, r.score, kMinScore)
	}
}

func TestRunEpochsHitRunCadence(t *testing.T) {
	var d stepDetector
	results := runEpochs(&d, runSignal, 4)
	for i, r := range results {
		require.True(t, r.stepping, "epoch %d", i)
		assert.InDelta(t, 15, r.freq, 1, "epoch %d", i)
		// 12 epochs/minute lands the cadence in the run band.
		assert.GreaterOrEqual(t, r.steps*epochsPerMinute, runMinSPM)
	}
}

func TestStillEpochsProduceNothing(t *testing.T) {
	var d stepDetector
	for i, r := range runEpochs(&d, stillSignal, 4) {
		assert.False(t, r.stepping, "epoch %d", i)
		assert.Zero(t, r.steps, "epoch %d", i)
		assert.Zero(t, r.vmc, "epoch %d, priming must kill the DC transient", i)
	}
}

func TestRestlessEpochsStayBelowThresholds(t *testing.T) {
	var d stepDetector
	for i, r := range runEpochs(&d, restlessSignal, 4) {
		assert.False(t, r.stepping, "epoch %d", i)
		assert.Zero(t, r.steps, "epoch %d", i)
		assert.Less(t, int(r.vmc), notWornVMCFloor, "epoch %d", i)
	}
}

func TestAnalyzePanicsOnPartialEpoch(t *testing.T) {
	var d stepDetector
	axes := epochAxes(stillSignal)
	assert.Panics(t, func() { d.analyze(&axes, 60) })
	assert.NotPanics(t, func() { d.analyze(&axes, 0) })
}

func TestSearchBandWidensWithVMC(t *testing.T) {
	lo, hi := searchBand(500)
	assert.Equal(t, [2]int{5, 13}, [2]int{lo, hi})
	lo, hi = searchBand(1500)
	assert.Equal(t, [2]int{5, 16}, [2]int{lo, hi})
	lo, hi = searchBand(4000)
	assert.Equal(t, [2]int{7, 20}, [2]int{lo, hi})
}

func TestClassifyRejectsEdgeCases(t *testing.T) {
	good := epochResult{freq: 10, score: 50, vmc: 2000, highScore: 10, lowScore: 10, energy: 100000}
	require.True(t, classify(good, false))

	for name, mod := range map[string]func(*epochResult){
		"freq too low":    func(r *epochResult) { r.freq = kMinStepFreq - 1 },
		"freq too high":   func(r *epochResult) { r.freq = kMaxStepFreq + 1 },
		"score too low":   func(r *epochResult) { r.score = kMinScore - 1 },
		"vmc too low":     func(r *epochResult) { r.vmc = kMinVMC - 1 },
		"high band noise": func(r *epochResult) { r.highScore = kMaxHighScore + 1 },
		"low band noise":  func(r *epochResult) { r.lowScore = kMaxLowScore + 1 },
		"weak spectrum":   func(r *epochResult) { r.energy = kMinFFTEnergy - 1 },
		"fast needs vmc":  func(r *epochResult) { r.freq = kFastFreq; r.vmc = kMinVMCFast - 1 },
	} {
		r := good
		mod(&r)
		assert.False(t, classify(r, false), name)
	}

	// Partial thresholds are laxer.
	weak := good
	weak.score = kMinScorePartial
	weak.vmc = kMinVMCPartial
	assert.False(t, classify(weak, false))
	assert.True(t, classify(weak, true))
}
