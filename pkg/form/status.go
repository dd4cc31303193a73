package form

// Status is the validation state of a node.
type Status string

const (
	StatusValid    Status = "VALID"
	StatusInvalid  Status = "INVALID"
	StatusPending  Status = "PENDING"
	StatusDisabled Status = "DISABLED"
)

// String implements fmt.Stringer.
func (s Status) String() string {
	return string(s)
}

// Valid reports whether the status is VALID.
func (s Status) Valid() bool { return s == StatusValid }

// Pending reports whether the status is PENDING.
func (s Status) Pending() bool { return s == StatusPending }

// severity orders active statuses VALID < PENDING < INVALID. DISABLED sits
// outside the ordering and never participates in aggregation.
func (s Status) severity() int {
	switch s {
	case StatusValid:
		return 0
	case StatusPending:
		return 1
	case StatusInvalid:
		return 2
	default:
		return -1
	}
}

// worse returns the more severe of two statuses, ignoring DISABLED.
func worse(a, b Status) Status {
	if b.severity() > a.severity() {
		return b
	}
	return a
}
