package kalg

// Narrow interfaces over the external collaborators the engine queries
// once per minute. Implementations live in internal/health; tests use
// static fakes.

// Environment answers point-in-time device environment queries.
type Environment interface {
	AmbientLight() uint16 // 0..4095
	PluggedIn() bool
}

// Metrics exposes running totals maintained outside the engine. The
// engine differences consecutive reads to attribute per-minute deltas to
// open sessions.
type Metrics interface {
	RestingCalories() uint32
	ActiveCalories() uint32
	DistanceMM() uint32
}

// HeartRateSource hands out subscriptions. Walk/run sessions subscribe a
// few minutes in and release on close, keeping the HR sensor off for
// short bursts of activity.
type HeartRateSource interface {
	Subscribe() HeartRateSubscription
}

// HeartRateSubscription is one live HR claim.
type HeartRateSubscription interface {
	MedianBPM() uint8
	Release()
}

// Recorder is the minute-persistence boundary. The engine pushes one
// sample per minute tick; uncertainM trailing minutes must be withheld
// from draining because their classification may still change.
type Recorder interface {
	Record(sample MinuteSample, uncertainM int) error
	// MarkSleep zeroes retained step counts in [startUTC, endUTC].
	MarkSleep(startUTC, endUTC uint32)
	// Flush force-drains partial batches, e.g. before shutdown.
	Flush() error
}
