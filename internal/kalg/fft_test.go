package kalg

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// directDFT computes reference bin magnitudes in floating point.
func directDFT(x []int32) []float64 {
	n := len(x)
	mags := make([]float64, n/2+1)
	for k := 0; k <= n/2; k++ {
		var re, im float64
		for i := 0; i < n; i++ {
			a := 2 * math.Pi * float64(k) * float64(i) / float64(n)
			re += float64(x[i]) * math.Cos(a)
			im -= float64(x[i]) * math.Sin(a)
		}
		mags[k] = math.Hypot(re, im)
	}
	return mags
}

func fftMagnitudes(x []int32) []float64 {
	buf := make([]int32, fftWidth)
	copy(buf, x)
	realFFT(buf)
	mags := make([]float64, fftWidth/2+1)
	for k := 0; k <= fftWidth/2; k++ {
		re := float64(buf[k])
		im := 0.0
		if k > 0 && k < fftWidth/2 {
			im = float64(buf[fftWidth-k])
		}
		mags[k] = math.Hypot(re, im)
	}
	return mags
}

func TestRealFFTMatchesDirectDFT(t *testing.T) {
	rnd := rand.New(rand.NewSource(7))
	x := make([]int32, fftWidth)
	for i := range x {
		x[i] = int32(rnd.Intn(4000) - 2000)
	}

	got := fftMagnitudes(x)
	want := directDFT(x)

	for k := 0; k <= fftWidth/2; k++ {
		tol := 0.02*want[k] + 16
		assert.InDelta(t, want[k], got[k], tol, "bin %d", k)
	}
}

func TestRealFFTSingleTone(t *testing.T) {
	// Pure tone in bin 11 concentrates its energy there.
	x := make([]int32, fftWidth)
	for i := range x {
		x[i] = int32(1000 * math.Sin(2*math.Pi*11*float64(i)/fftWidth))
	}
	mags := fftMagnitudes(x)

	peak := 1
	for k := 2; k <= fftWidth/2; k++ {
		if mags[k] > mags[peak] {
			peak = k
		}
	}
	require.Equal(t, 11, peak)
	// N/2 * amplitude, within fixed-point rounding.
	assert.InDelta(t, 64000, mags[11], 650)
	assert.Less(t, mags[20], mags[11]/50, "energy away from the tone")
}

func TestRealFFTImpulse(t *testing.T) {
	x := make([]int32, fftWidth)
	x[0] = 1000
	mags := fftMagnitudes(x)
	for k := 0; k <= fftWidth/2; k++ {
		assert.InDelta(t, 1000, mags[k], 12, "bin %d", k)
	}
}

func TestRealFFTPanicsOnWrongLength(t *testing.T) {
	assert.Panics(t, func() { realFFT(make([]int32, 64)) })
}

func TestIsqrt(t *testing.T) {
	cases := map[uint64]uint32{
		0:                  0,
		1:                  1,
		3:                  1,
		4:                  2,
		99:                 9,
		100:                10,
		1 << 40:            1 << 20,
		(1 << 40) - 1:      (1 << 20) - 1,
		math.MaxUint32:     65535,
		math.MaxUint32 + 1: 65536,
	}
	for in, want := range cases {
		assert.Equal(t, want, isqrt(in), "isqrt(%d)", in)
	}
}
