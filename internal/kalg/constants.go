package kalg

// Sampling and windowing.
const (
	// SampleRateHz is the accelerometer rate the engine asks for at init.
	SampleRateHz = 25

	epochSamples    = 125 // 5 seconds at 25 Hz
	secondsPerEpoch = 5
	epochsPerMinute = 12

	fftWidth = 128 // next power of two >= epochSamples
	fftLog2  = 7
)

// Band-pass PIM filter, 2nd order Butterworth 0.25-2.5 Hz at 25 Hz,
// quantized to Q12. Changing these changes every VMC downstream.
const (
	coefB0    = 898
	coefB1    = 0
	coefB2    = -898
	coefA1    = -6270
	coefA2    = 2300
	coefShift = 12

	filterPrimeLen = 11 // samples mirrored to kill the start-up transient

	pimBaselinePerSample = 16
	pimAxisClip          = 1 << 20

	vmcShift = 5 // raw combined-axis magnitude -> "real" VMC
)

// Cosine taper applied to both window edges before the FFT.
const taperLen = 12

var taperTable = [taperLen]int32{4, 15, 32, 55, 83, 113, 143, 173, 201, 224, 241, 252}

// Step classification. Frequencies are FFT bins, i.e. cycles per epoch.
// These are empirically tuned product constants, not derivable values.
const (
	kMinStepFreq = 7  // 1.4 Hz cadence
	kMaxStepFreq = 20 // 4.0 Hz cadence

	kMinScore        = 15
	kMinScorePartial = 10

	kMinVMC        = 650
	kMinVMCPartial = 400
	kMinVMCFast    = 1000 // required when freq >= kFastFreq
	kFastFreq      = 12

	kMaxHighScore = 35
	kMaxLowScore  = 60
	kMinFFTEnergy = 30000

	// VMC-dependent peak search bands.
	slowWalkVMCMax   = 1000
	mediumWalkVMCMax = 2500
)

// Sleep/wake machine.
const (
	sleepWindowHalfM = 2
	sleepWindowM     = 2*sleepWindowHalfM + 1

	maxSleepMinuteScore    = 330 // weighted-VMC score at or below this is a sleep minute
	minSleepMinutesToStart = 5
	minSleepSessionM       = 20 // minimum length to register and to accept

	forcedWakeVMC   = 5000
	forcedWakeScore = 1000

	awakeEndEarlyM    = 10 // consecutive awake minutes ending a young session
	awakeEndLateM     = 14 // ... and an established one
	establishedSleepM = 60

	sleepStatsMinLenM = 60 // stats-based rejection applies past this length
	maxNonZeroPct     = 70
	maxSessionAvgVMC  = 250

	// MaxUncertainSleepM bounds how many trailing minutes may be withheld
	// from persistence because their classification can still change.
	MaxUncertainSleepM = sleepWindowHalfM + minSleepMinutesToStart
)

// Deep (restful) sleep sub-machine.
const (
	deepSleepScoreMax = 50
	minDeepSleepRunM  = 10
	maxDeepIntervals  = 14
)

// Not-worn detector.
const (
	notWornVMCFloor = 50
	notWornMaxRunM  = 180 // a still-but-worn sleeper must stay under this
	notWornHistory  = 3

	vetoOverlapM     = 30
	vetoStartMarginM = 15
	vetoEndMarginM   = 15
)

// Walk/run machines, cadence in steps per minute.
const (
	walkMinSPM   = 40
	walkMaxSPM   = 149
	walkMinLenM  = 10
	walkMaxIdleM = 8

	runMinSPM   = 150
	runMaxSPM   = 1000
	runMinLenM  = 5
	runMaxIdleM = 3

	hrSubscribeAfterActiveM = 3
)
