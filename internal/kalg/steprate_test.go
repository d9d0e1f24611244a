package kalg

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const srBase = uint32(1700010800)

func driveSteps(m *stepRateMachine, startTick int, perMinute []int) []SessionEvent {
	var events []SessionEvent
	for i, steps := range perMinute {
		utc := srBase + uint32(startTick+i)*60
		events = append(events, m.minute(utc, steps, minuteDeltas{}, false)...)
	}
	return events
}

func TestWalkRegistersAtMinimumLength(t *testing.T) {
	m := newStepRateMachine(walkConfig, nil)

	minutes := make([]int, walkMinLenM)
	for i := range minutes {
		minutes[i] = 100
	}
	events := driveSteps(&m, 0, minutes[:walkMinLenM-1])
	assert.Empty(t, events)

	events = driveSteps(&m, walkMinLenM-1, minutes[walkMinLenM-1:])
	started := eventsOf(events, ActivityWalk, SessionStarted)
	require.Len(t, started, 1)
	assert.Equal(t, srBase, started[0].Session.StartUTC)
	assert.Equal(t, uint16(walkMinLenM), started[0].Session.LengthM)
	assert.Equal(t, uint32(100*walkMinLenM), started[0].Session.Steps)

	events = driveSteps(&m, walkMinLenM, []int{110})
	updated := eventsOf(events, ActivityWalk, SessionUpdated)
	require.Len(t, updated, 1)
	assert.Equal(t, uint16(walkMinLenM+1), updated[0].Session.LengthM)
}

func TestRunRegistersFasterThanWalk(t *testing.T) {
	m := newStepRateMachine(runConfig, nil)

	events := driveSteps(&m, 0, []int{170, 170, 170, 170, 170})
	started := eventsOf(events, ActivityRun, SessionStarted)
	require.Len(t, started, 1)
	assert.Equal(t, uint16(runMinLenM), started[0].Session.LengthM)
}

func TestIdleGapClosesWalkWithNetDuration(t *testing.T) {
	m := newStepRateMachine(walkConfig, nil)

	minutes := make([]int, 15)
	for i := range minutes {
		minutes[i] = 100
	}
	driveSteps(&m, 0, minutes)

	// Idle minutes accumulate metrics but not duration. One past the cap
	// ends the session at its last active minute.
	idle := make([]int, walkMaxIdleM+1)
	events := driveSteps(&m, 15, idle)
	ended := eventsOf(events, ActivityWalk, SessionEnded)
	require.Len(t, ended, 1)
	assert.Equal(t, uint16(15), ended[0].Session.LengthM)
	assert.False(t, m.open())
}

func TestShortWalkDroppedSilently(t *testing.T) {
	m := newStepRateMachine(walkConfig, nil)

	minutes := []int{100, 100, 100, 0, 0, 0, 0, 0, 0, 0, 0, 0}
	events := driveSteps(&m, 0, minutes)
	assert.Empty(t, events)
	assert.False(t, m.open())
}

func TestCadenceOutsideBandIsInactive(t *testing.T) {
	m := newStepRateMachine(walkConfig, nil)

	// Running cadence does not feed a walk session.
	m.minute(srBase, 200, minuteDeltas{}, false)
	assert.False(t, m.open())

	m.minute(srBase+60, walkMinSPM-1, minuteDeltas{}, false)
	assert.False(t, m.open())
}

func TestHeartRateSubscriptionLifecycle(t *testing.T) {
	hr := &fakeHR{bpm: 128}
	m := newStepRateMachine(walkConfig, hr)

	driveSteps(&m, 0, []int{100, 100})
	assert.Zero(t, hr.subs, "subscription waits for sustained activity")
	assert.Zero(t, m.heartRateBPM())

	driveSteps(&m, 2, []int{100})
	require.Equal(t, 1, hr.subs)
	assert.Equal(t, uint8(128), m.heartRateBPM())

	// An idle minute resets the streak but keeps the subscription.
	driveSteps(&m, 3, []int{0, 100, 100, 100})
	assert.Equal(t, 1, hr.subs)

	idle := make([]int, walkMaxIdleM+1)
	driveSteps(&m, 7, idle)
	assert.Equal(t, 1, hr.releases)
	assert.Zero(t, m.heartRateBPM())
}

func TestMetricsAccumulateWhileOpen(t *testing.T) {
	m := newStepRateMachine(walkConfig, nil)

	d := minuteDeltas{restingCal: 1000, activeCal: 4000, distanceMM: 70000}
	for i := 0; i < 12; i++ {
		m.minute(srBase+uint32(i)*60, 100, d, false)
	}
	// Two idle minutes: metrics still attributed to the open session.
	m.minute(srBase+12*60, 0, d, false)
	events := m.minute(srBase+13*60, 0, d, true)

	ended := eventsOf(events, ActivityWalk, SessionEnded)
	require.Len(t, ended, 1)
	s := ended[0].Session
	assert.Equal(t, uint16(12), s.LengthM)
	assert.Equal(t, uint32(1200), s.Steps)
	assert.Equal(t, uint32(14*1000), s.RestingCalories)
	assert.Equal(t, uint32(14*4000), s.ActiveCalories)
	assert.Equal(t, uint32(14*70000), s.DistanceMM)
}

func TestForceCloseEndsOpenSession(t *testing.T) {
	m := newStepRateMachine(walkConfig, nil)

	minutes := make([]int, 12)
	for i := range minutes {
		minutes[i] = 100
	}
	driveSteps(&m, 0, minutes)

	events := m.forceClose()
	require.Len(t, eventsOf(events, ActivityWalk, SessionEnded), 1)
	assert.Empty(t, m.forceClose(), "nothing open after the first close")
}
