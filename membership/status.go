package membership

// Status is the liveness state of a member as seen by the suspension timer.
type Status int

const (
	StatusActive Status = iota + 1
	StatusSuspended
)

func (s Status) String() string {
	switch s {
	case StatusActive:
		return "active"
	case StatusSuspended:
		return "suspended"
	default:
		return ""
	}
}
