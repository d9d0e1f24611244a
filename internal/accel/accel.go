package accel

// SampleRateHz is the rate every Source delivers at.
const SampleRateHz = 25

// Sample is a single raw 3-axis accelerometer reading in milli-g.
type Sample struct {
	X int16 `json:"x"`
	Y int16 `json:"y"`
	Z int16 `json:"z"`
}

// Batch is a group of consecutive samples delivered together, stamped with
// the capture time of the first sample.
type Batch struct {
	Samples          []Sample `json:"samples"`
	FirstTimestampMS uint64   `json:"first_timestamp_ms"`
}

// Source is anything that can deliver sample batches over time: the real
// SPI-attached sensor, a replay source reading a recorded log, etc.
type Source interface {
	NextBatch() (Batch, error)
}
