package kalg

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMinuteAggregatorSumsEpochs(t *testing.T) {
	var m minuteAggregator
	for i := 0; i < epochsPerMinute; i++ {
		m.addEpoch(epochResult{steps: 11, vmc: 2800})
		m.addSampleSums(0, 0, -1000*epochSamples, epochSamples)
	}

	f := m.flush(true)
	assert.Equal(t, uint16(11*epochsPerMinute), f.Steps)
	assert.Equal(t, uint16(2800*epochsPerMinute), f.VMC)
	assert.True(t, f.PluggedIn)
	assert.True(t, orientationFlat(f.Orientation), "gravity along -z is flat")

	// flush resets
	f = m.flush(false)
	assert.Zero(t, f.Steps)
	assert.Zero(t, f.VMC)
	assert.False(t, f.PluggedIn)
}

func TestMinuteVMCClipsAtUint16(t *testing.T) {
	var m minuteAggregator
	for i := 0; i < epochsPerMinute; i++ {
		m.addEpoch(epochResult{vmc: 30000})
	}
	assert.Equal(t, uint16(math.MaxUint16), m.flush(false).VMC)
}

func TestEncodeOrientation(t *testing.T) {
	faceUp := encodeOrientation(0, 0, 1000)
	faceDown := encodeOrientation(0, 0, -1000)
	onSideX := encodeOrientation(1000, 0, 0)
	onSideY := encodeOrientation(0, 1000, 0)

	assert.True(t, orientationFlat(faceUp))
	assert.True(t, orientationFlat(faceDown))
	assert.False(t, orientationFlat(onSideX))
	assert.False(t, orientationFlat(onSideY))

	// Same tilt, different heading: only the low five bits differ.
	assert.Equal(t, onSideX>>5, onSideY>>5)
	assert.NotEqual(t, onSideX&0x1f, onSideY&0x1f)
}

func TestClipU16(t *testing.T) {
	assert.Equal(t, uint16(0), clipU16(-5))
	assert.Equal(t, uint16(1234), clipU16(1234))
	assert.Equal(t, uint16(math.MaxUint16), clipU16(math.MaxUint16+1))
}
