package telemetry

// Status is the outcome of a session append. Anything but StatusOK leaves
// the appended data unconsumed; callers retry on the next drain.
type Status int

const (
	StatusOK Status = iota
	StatusBusy
	StatusFull
	StatusClosed
	StatusNotFound
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusBusy:
		return "busy"
	case StatusFull:
		return "full"
	case StatusClosed:
		return "closed"
	case StatusNotFound:
		return "not_found"
	default:
		return "unknown"
	}
}

// Session is one open log session.
type Session interface {
	// Append hands count items packed into data to the transport.
	Append(data []byte, count int) Status
	Close()
}

// Transport creates log sessions tagged with an item shape, the phone
// side uses the tag and sizes to route and parse.
type Transport interface {
	CreateSession(tag string, itemType uint16, itemSize int) (Session, error)
}
