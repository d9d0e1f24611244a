package kalg

import "fmt"

// ActivityType identifies what a session tracked.
type ActivityType int

const (
	ActivityWalk ActivityType = iota
	ActivityRun
	ActivitySleep
	ActivityRestfulSleep
)

func (t ActivityType) String() string {
	switch t {
	case ActivityWalk:
		return "walk"
	case ActivityRun:
		return "run"
	case ActivitySleep:
		return "sleep"
	case ActivityRestfulSleep:
		return "restful_sleep"
	default:
		return fmt.Sprintf("activity(%d)", int(t))
	}
}

// ActivitySession is a contiguous interval of one activity type with its
// accumulated metrics. Sessions are identified by (Type, StartUTC).
type ActivitySession struct {
	Type            ActivityType `json:"type"`
	StartUTC        uint32       `json:"start_utc"`
	LengthM         uint16       `json:"length_m"`
	Steps           uint32       `json:"steps"`
	RestingCalories uint32       `json:"resting_calories"`
	ActiveCalories  uint32       `json:"active_calories"`
	DistanceMM      uint32       `json:"distance_mm"`
}

// SessionEventKind tags what happened to a session this minute.
type SessionEventKind int

const (
	// SessionStarted is the first emission of an ongoing session.
	SessionStarted SessionEventKind = iota
	// SessionUpdated re-emits a still-ongoing session with a new length.
	SessionUpdated
	// SessionEnded finalizes a session.
	SessionEnded
	// SessionRetracted withdraws a previously started session that was
	// later rejected. It always names a (Type, StartUTC) that was emitted
	// as Started before.
	SessionRetracted
)

func (k SessionEventKind) String() string {
	switch k {
	case SessionStarted:
		return "started"
	case SessionUpdated:
		return "updated"
	case SessionEnded:
		return "ended"
	case SessionRetracted:
		return "retracted"
	default:
		return fmt.Sprintf("event(%d)", int(k))
	}
}

// SessionEvent is one engine-to-caller session notification. Minute ticks
// return zero or more of these.
type SessionEvent struct {
	Kind    SessionEventKind `json:"kind"`
	Session ActivitySession  `json:"session"`
}

func (e SessionEvent) String() string {
	return fmt.Sprintf("%s %s start=%d len=%dm", e.Session.Type, e.Kind, e.Session.StartUTC, e.Session.LengthM)
}
