package form

import "errors"

var (
	// ErrNotArray signals an array operation addressed at a non-array child.
	ErrNotArray = errors.New("form: node is not an array")
	// ErrNotField signals a value operation addressed at a container.
	ErrNotField = errors.New("form: node is not a field")
	// ErrNotGroup signals a group lookup that resolved to another node kind.
	ErrNotGroup = errors.New("form: node is not a group")
	// ErrUnknownChild is returned when a name or path does not resolve.
	ErrUnknownChild = errors.New("form: unknown child")
	// ErrDuplicateChild is returned when a group declares the same name twice.
	ErrDuplicateChild = errors.New("form: duplicate child name")
	// ErrIndexOutOfRange is returned for array indexes outside [0, len).
	ErrIndexOutOfRange = errors.New("form: index out of range")
	// ErrValueKind is returned when a value does not match the field kind.
	ErrValueKind = errors.New("form: value does not match field kind")
	// ErrDetached is returned when mutating a node removed from its tree.
	ErrDetached = errors.New("form: node is detached")
	// ErrAlreadyOwned is returned when a node is attached to a second parent.
	ErrAlreadyOwned = errors.New("form: node already has an owner")

	// ErrSubmitPending means submission was attempted while validation was
	// still outstanding. Nothing is queued; callers retry after Wait.
	ErrSubmitPending = errors.New("form: submit blocked while validation is pending")
	// ErrSubmitInvalid means the form failed validation; no payload exists.
	ErrSubmitInvalid = errors.New("form: submit rejected, form is invalid")
	// ErrSubmitDisabled means the whole form is disabled.
	ErrSubmitDisabled = errors.New("form: submit rejected, form is disabled")
)
