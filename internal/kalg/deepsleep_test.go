package kalg

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const dsBase = uint32(1700003600)

// feedRun feeds lenM minutes of quiet followed by one loud minute that
// closes the run, starting at the given offset. Returns what the closing
// minute emitted.
func feedRun(d *deepSleepMachine, startM, lenM int) []SessionEvent {
	for m := startM; m < startM+lenM; m++ {
		d.minute(0, m)
	}
	return d.minute(deepSleepScoreMax+1, startM+lenM)
}

func TestDeepRunBelowMinimumIsDropped(t *testing.T) {
	var d deepSleepMachine
	d.reset(dsBase)
	d.setOkToRegister()

	events := feedRun(&d, 0, minDeepSleepRunM-1)
	assert.Empty(t, events)
	assert.Zero(t, d.count)
}

func TestDeepRunEmittedOnceRegistrationIsOpen(t *testing.T) {
	var d deepSleepMachine
	d.reset(dsBase)
	d.setOkToRegister()

	events := feedRun(&d, 5, 12)
	require.Len(t, events, 1)
	assert.Equal(t, SessionStarted, events[0].Kind)
	assert.Equal(t, ActivityRestfulSleep, events[0].Session.Type)
	assert.Equal(t, dsBase+5*60, events[0].Session.StartUTC)
	assert.Equal(t, uint16(12), events[0].Session.LengthM)
}

func TestDeepRunsCollectedSilentlyUntilRegistration(t *testing.T) {
	var d deepSleepMachine
	d.reset(dsBase)

	assert.Empty(t, feedRun(&d, 0, 10))
	assert.Empty(t, feedRun(&d, 15, 11))
	require.Equal(t, 2, d.count)

	// Registration backfills everything collected so far.
	events := d.setOkToRegister()
	require.Len(t, events, 2)
	assert.Equal(t, dsBase, events[0].Session.StartUTC)
	assert.Equal(t, dsBase+15*60, events[1].Session.StartUTC)
	for _, e := range events {
		assert.Equal(t, SessionStarted, e.Kind)
	}

	// A second flip is a no-op.
	assert.Empty(t, d.setOkToRegister())
}

func TestFinalizeEndsEveryIntervalIncludingOpenRun(t *testing.T) {
	var d deepSleepMachine
	d.reset(dsBase)
	d.setOkToRegister()

	feedRun(&d, 0, 10)
	// Leave a second run open; finalize must still count it.
	for m := 20; m < 31; m++ {
		d.minute(40, m)
	}

	events := d.finalize()
	require.Len(t, events, 2)
	assert.Equal(t, SessionEnded, events[0].Kind)
	assert.Equal(t, dsBase, events[0].Session.StartUTC)
	assert.Equal(t, SessionEnded, events[1].Kind)
	assert.Equal(t, dsBase+20*60, events[1].Session.StartUTC)
	assert.Equal(t, uint16(11), events[1].Session.LengthM)
	assert.Zero(t, d.count)
}

func TestAbortRetractsOnlyRegisteredIntervals(t *testing.T) {
	var d deepSleepMachine
	d.reset(dsBase)

	feedRun(&d, 0, 10)
	d.setOkToRegister()
	feedRun(&d, 20, 10)
	require.Equal(t, 2, d.registered)

	d.reset(dsBase)
	feedRun(&d, 0, 10) // collected but never registered
	events := d.abort()
	assert.Empty(t, events)

	d.reset(dsBase)
	d.setOkToRegister()
	feedRun(&d, 0, 10)
	feedRun(&d, 20, 10)
	events = d.abort()
	require.Len(t, events, 2)
	for _, e := range events {
		assert.Equal(t, SessionRetracted, e.Kind)
	}
	assert.Zero(t, d.count)
}

func TestOldestIntervalDroppedWhenFull(t *testing.T) {
	var d deepSleepMachine
	d.reset(dsBase)
	d.setOkToRegister()

	for i := 0; i < maxDeepIntervals+1; i++ {
		feedRun(&d, i*20, 10)
	}
	require.Equal(t, maxDeepIntervals, d.count)
	// Run at offset 0 was evicted; the list now starts at 20 minutes.
	assert.Equal(t, 20, d.intervals[0].offsetM)
	assert.Equal(t, maxDeepIntervals, d.registered)
}
