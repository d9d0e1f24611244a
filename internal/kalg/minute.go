package kalg

import "math"

// MinuteFeatures is what the state machines consume once per minute.
type MinuteFeatures struct {
	Steps       uint16
	VMC         uint16
	Orientation uint8
	PluggedIn   bool
}

// MinuteSample is the externally logged per-minute record: the features
// plus the collaborator-sourced metrics captured at the minute boundary.
type MinuteSample struct {
	UTC             uint32 `json:"utc"`
	Steps           uint16 `json:"steps"`
	VMC             uint16 `json:"vmc"`
	Orientation     uint8  `json:"orientation"`
	LightLevel      uint16 `json:"light_level"`
	PluggedIn       bool   `json:"plugged_in"`
	Active          bool   `json:"active"`
	HeartRateBPM    uint8  `json:"heart_rate_bpm"`
	RestingCalories uint16 `json:"resting_calories"` // delta for this minute
	ActiveCalories  uint16 `json:"active_calories"`
	DistanceMM      uint32 `json:"distance_mm"`
}

// minuteAggregator folds epoch outputs into one-minute summaries.
type minuteAggregator struct {
	steps  int
	vmcSum int64
	epochs int

	// per-axis sample sums for the minute's mean orientation
	axisSum   [3]int64
	sampleCnt int
}

func (m *minuteAggregator) addEpoch(r epochResult) {
	m.steps += r.steps
	m.vmcSum += int64(r.vmc)
	m.epochs++
}

func (m *minuteAggregator) addSampleSums(x, y, z int64, n int) {
	m.axisSum[0] += x
	m.axisSum[1] += y
	m.axisSum[2] += z
	m.sampleCnt += n
}

// flush produces the minute's features and resets the accumulators.
func (m *minuteAggregator) flush(pluggedIn bool) MinuteFeatures {
	f := MinuteFeatures{
		Steps:       clipU16(int64(m.steps)),
		VMC:         clipU16(m.vmcSum),
		PluggedIn:   pluggedIn,
		Orientation: m.orientation(),
	}
	*m = minuteAggregator{}
	return f
}

func (m *minuteAggregator) orientation() uint8 {
	if m.sampleCnt == 0 {
		return encodeOrientation(0, 0, 0)
	}
	n := int64(m.sampleCnt)
	return encodeOrientation(m.axisSum[0]/n, m.axisSum[1]/n, m.axisSum[2]/n)
}

func clipU16(v int64) uint16 {
	if v > math.MaxUint16 {
		return math.MaxUint16
	}
	if v < 0 {
		return 0
	}
	return uint16(v)
}

const (
	tiltBuckets    = 8
	headingBuckets = 32
)

// encodeOrientation packs two quantized angles into one byte: the top
// three bits hold the tilt from vertical (0..180 degrees in 8 buckets),
// the low five bits the heading in the horizontal plane (32 buckets).
func encodeOrientation(meanX, meanY, meanZ int64) uint8 {
	x, y, z := float64(meanX), float64(meanY), float64(meanZ)

	tilt := math.Atan2(math.Sqrt(x*x+y*y), z) // 0..pi
	tb := int(tilt / math.Pi * tiltBuckets)
	if tb >= tiltBuckets {
		tb = tiltBuckets - 1
	}

	heading := math.Atan2(y, x) + math.Pi // 0..2pi
	hb := int(heading / (2 * math.Pi) * headingBuckets)
	if hb >= headingBuckets {
		hb = headingBuckets - 1
	}

	return uint8(tb)<<5 | uint8(hb)
}

// orientationFlat reports whether the encoded orientation means the
// device is lying face-up or face-down (gravity along z).
func orientationFlat(o uint8) bool {
	tb := o >> 5
	return tb == 0 || tb == tiltBuckets-1
}
