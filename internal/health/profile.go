package health

import (
	"sync"
)

// Profile describes the wearer. Calorie and stride estimates are derived
// from it; zero-value fields fall back to the defaults below.
type Profile struct {
	WeightKG  uint16
	HeightCM  uint16
	AgeYears  uint8
	MaleBased bool // which variant of the BMR formula to use
}

const (
	defaultWeightKG = 70
	defaultHeightCM = 170
	defaultAgeYears = 35
)

func (p Profile) withDefaults() Profile {
	if p.WeightKG == 0 {
		p.WeightKG = defaultWeightKG
	}
	if p.HeightCM == 0 {
		p.HeightCM = defaultHeightCM
	}
	if p.AgeYears == 0 {
		p.AgeYears = defaultAgeYears
	}
	return p
}

// bmrMilliCalPerMinute is the Mifflin-St Jeor basal rate spread over the
// day, in thousandths of a kilocalorie per minute.
func (p Profile) bmrMilliCalPerMinute() uint64 {
	bmr := 10*int64(p.WeightKG) + 25*int64(p.HeightCM)/4 - 5*int64(p.AgeYears)
	if p.MaleBased {
		bmr += 5
	} else {
		bmr -= 161
	}
	if bmr < 0 {
		bmr = 0
	}
	return uint64(bmr) * 1000 / 1440
}

// stepMilliCal estimates the energy of one walking step. Roughly half a
// kilocalorie per kilogram per kilometer at the stride below.
func (p Profile) stepMilliCal() uint64 {
	return uint64(p.WeightKG) * uint64(p.strideMM()) / 2000
}

// strideMM estimates walking stride length from height.
func (p Profile) strideMM() uint32 {
	return uint32(p.HeightCM) * 10 * 414 / 1000
}

// DistanceSource supplies an externally measured running distance total,
// typically from GPS. When present it overrides the stride estimate.
type DistanceSource interface {
	DistanceMM() uint32
}

// Tracker turns per-minute step counts into running calorie and distance
// totals. It is the metrics collaborator of the recognition engine:
// the totals only ever grow, and the engine differences them minute to
// minute.
type Tracker struct {
	mu      sync.Mutex
	profile Profile
	gps     DistanceSource

	restingMilliCal uint64
	activeMilliCal  uint64
	strideDistMM    uint64
}

// NewTracker builds a tracker for the given profile. gps may be nil, in
// which case distance is estimated from steps and stride length.
func NewTracker(profile Profile, gps DistanceSource) *Tracker {
	return &Tracker{profile: profile.withDefaults(), gps: gps}
}

// AdvanceMinute accrues one minute of resting burn plus the energy and
// distance of the steps taken in it.
func (t *Tracker) AdvanceMinute(steps uint32) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.restingMilliCal += t.profile.bmrMilliCalPerMinute()
	t.activeMilliCal += uint64(steps) * t.profile.stepMilliCal()
	t.strideDistMM += uint64(steps) * uint64(t.profile.strideMM())
}

func (t *Tracker) RestingCalories() uint32 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return uint32(t.restingMilliCal / 1000)
}

func (t *Tracker) ActiveCalories() uint32 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return uint32(t.activeMilliCal / 1000)
}

func (t *Tracker) DistanceMM() uint32 {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.gps != nil {
		if d := t.gps.DistanceMM(); d > 0 {
			return d
		}
	}
	return uint32(t.strideDistMM)
}
