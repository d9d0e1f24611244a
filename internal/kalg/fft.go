package kalg

import "math"

// In-place radix-2 decimation-in-time FFT for real-valued input
// (Sorensen's RFFT), fixed point with Q15 twiddles. After the call the
// slice holds Re(0..N/2) in x[0..N/2] and Im(k) in x[N-k] for 0 < k < N/2.
// Only magnitudes are consumed downstream, so the Im sign convention is
// irrelevant to callers.

// twiddle factors per stage, filled once at package load.
var (
	fftCos [fftLog2 + 1][]int64
	fftSin [fftLog2 + 1][]int64
)

func init() {
	n2 := 1
	for k := 2; k <= fftLog2; k++ {
		n4 := n2
		n2 = n4 << 1
		n1 := n2 << 1
		e := 2 * math.Pi / float64(n1)
		fftCos[k] = make([]int64, 0, n4)
		fftSin[k] = make([]int64, 0, n4)
		a := e
		for j := 2; j <= n4; j++ {
			fftCos[k] = append(fftCos[k], int64(math.Round(math.Cos(a)*32768)))
			fftSin[k] = append(fftSin[k], int64(math.Round(math.Sin(a)*32768)))
			a += e
		}
	}
}

// realFFT transforms x in place. len(x) must be fftWidth.
func realFFT(x []int32) {
	if len(x) != fftWidth {
		panic("kalg: realFFT buffer must be fftWidth long")
	}
	n := fftWidth

	// Bit-reversal permutation.
	j := 0
	for i := 0; i < n-1; i++ {
		if i < j {
			x[i], x[j] = x[j], x[i]
		}
		k := n >> 1
		for k <= j {
			j -= k
			k >>= 1
		}
		j += k
	}

	// Length-two butterflies.
	for i := 0; i < n; i += 2 {
		t := x[i]
		x[i] = t + x[i+1]
		x[i+1] = t - x[i+1]
	}

	// Remaining stages.
	n2 := 1
	for k := 2; k <= fftLog2; k++ {
		n4 := n2
		n2 = n4 << 1
		n1 := n2 << 1
		for i := 0; i < n; i += n1 {
			t := x[i]
			x[i] = t + x[i+n2]
			x[i+n2] = t - x[i+n2]
			x[i+n4+n2] = -x[i+n4+n2]
			for j := 2; j <= n4; j++ {
				i1 := i + j - 1
				i2 := i - j + n2 + 1
				i3 := i + j + n2 - 1
				i4 := i - j + n1 + 1
				cc := fftCos[k][j-2]
				ss := fftSin[k][j-2]
				t1 := int32((int64(x[i3])*cc + int64(x[i4])*ss) >> 15)
				t2 := int32((int64(x[i3])*ss - int64(x[i4])*cc) >> 15)
				x[i4] = x[i2] - t2
				x[i3] = -x[i2] - t2
				x[i2] = x[i1] - t1
				x[i1] = x[i1] + t1
			}
		}
	}
}

// isqrt returns the integer square root of v.
func isqrt(v uint64) uint32 {
	if v == 0 {
		return 0
	}
	r := uint64(math.Sqrt(float64(v)))
	for r*r > v {
		r--
	}
	for (r+1)*(r+1) <= v {
		r++
	}
	return uint32(r)
}
