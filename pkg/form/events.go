package form

// State is the render-facing snapshot of a node. Value is a copy; mutating
// it does not affect the form.
type State struct {
	ID      string `json:"id"`
	Path    string `json:"path"`
	Status  Status `json:"status"`
	Errors  Errors `json:"errors,omitempty"`
	Touched bool   `json:"touched"`
	Dirty   bool   `json:"dirty"`
	Value   any    `json:"value"`
}

// Event is pushed to observers whenever a node's status, errors, touched,
// dirty, or value changed during an operation. A node emits at most one
// event per operation, carrying its state at the end of that operation.
type Event struct {
	State
}

// Observer receives change events. Observers run outside the form lock and
// may call back into the form; events they cause are delivered after the
// current one, preserving order.
type Observer func(Event)

type observerEntry struct {
	id int
	fn Observer
}

type observerList struct {
	next    int
	entries []observerEntry
}

func (l *observerList) add(fn Observer) int {
	l.next++
	l.entries = append(l.entries, observerEntry{id: l.next, fn: fn})
	return l.next
}

func (l *observerList) remove(id int) {
	for i, entry := range l.entries {
		if entry.id == id {
			l.entries = append(l.entries[:i:i], l.entries[i+1:]...)
			return
		}
	}
}

func (l *observerList) snapshot() []Observer {
	if len(l.entries) == 0 {
		return nil
	}
	out := make([]Observer, 0, len(l.entries))
	for _, entry := range l.entries {
		out = append(out, entry.fn)
	}
	return out
}

func (l *observerList) clear() {
	l.entries = nil
}

type delivery struct {
	event     Event
	observers []Observer
}
