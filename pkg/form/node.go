package form

import (
	"reflect"

	"github.com/google/uuid"
)

// Node is the capability shared by fields, arrays, and groups.
type Node interface {
	// ID is stable for the lifetime of the node, independent of its position.
	ID() string
	// Path is the dotted positional address from the root ("guests.2").
	Path() string
	Parent() Node
	Status() Status
	Errors() Errors
	Touched() bool
	Dirty() bool
	Disabled() bool
	Value() any
	State() State

	MarkTouched()
	Disable()
	Enable()
	Subscribe(fn Observer) (unsubscribe func())

	base() *node
}

// treeNode is the internal contract each concrete node implements.
type treeNode interface {
	Node
	valueLocked(raw bool) any
	mountLocked(core *engine)
	revalidateLocked()
	setDisabledLocked(disabled bool)
	markAllTouchedLocked()
	resetLocked()
	detachLocked()
}

// container is implemented by nodes that own children.
type container interface {
	treeNode
	childKeyLocked(child *node) string
	refreshLocked()
}

// node carries the state every variant shares. Concrete types embed it and
// point self back at themselves.
type node struct {
	id        string
	self      treeNode
	core      *engine
	parent    container
	machine   *statusMachine
	errors    Errors
	touched   bool
	dirty     bool
	disabled  bool
	detached  bool
	marked    bool
	observers observerList
}

func (n *node) init(self treeNode) {
	n.id = uuid.NewString()
	n.self = self
	n.machine = newStatusMachine(n.id, nil, func(_, _ Status) {
		n.markLocked()
	})
}

func (n *node) base() *node { return n }

// acquire starts an operation on the node's form. Pair with release.
func (n *node) acquire() *engine {
	core := n.core
	if core != nil {
		core.mu.Lock()
	}
	return core
}

// ID implements Node.
func (n *node) ID() string { return n.id }

// Path implements Node.
func (n *node) Path() string {
	core := n.acquire()
	defer core.unlock()
	return n.pathLocked()
}

// Parent implements Node. The root and detached nodes return nil.
func (n *node) Parent() Node {
	core := n.acquire()
	defer core.unlock()
	if n.parent == nil {
		return nil
	}
	return n.parent
}

// Status implements Node.
func (n *node) Status() Status {
	core := n.acquire()
	defer core.unlock()
	return n.machine.Current()
}

// Errors implements Node. For groups and arrays these are the errors of the
// container's own validators, never its children's.
func (n *node) Errors() Errors {
	core := n.acquire()
	defer core.unlock()
	return n.errors.Clone()
}

// Touched implements Node.
func (n *node) Touched() bool {
	core := n.acquire()
	defer core.unlock()
	return n.touched
}

// Dirty implements Node.
func (n *node) Dirty() bool {
	core := n.acquire()
	defer core.unlock()
	return n.dirty
}

// Disabled implements Node.
func (n *node) Disabled() bool {
	core := n.acquire()
	defer core.unlock()
	return n.disabled
}

// Value implements Node.
func (n *node) Value() any {
	core := n.acquire()
	defer core.unlock()
	return n.self.valueLocked(false)
}

// State implements Node.
func (n *node) State() State {
	core := n.acquire()
	defer core.unlock()
	return n.stateLocked()
}

// MarkTouched sets touched on the node and its ancestors. It never triggers
// validation.
func (n *node) MarkTouched() {
	core := n.acquire()
	defer core.release()
	n.setTouchedLocked()
}

// Disable removes the node (and its descendants) from validation and from
// parent aggregation.
func (n *node) Disable() {
	core := n.acquire()
	defer core.release()
	if n.detached {
		return
	}
	n.self.setDisabledLocked(true)
	n.refreshParentLocked()
}

// Enable re-activates a disabled node and re-runs its validators.
func (n *node) Enable() {
	core := n.acquire()
	defer core.release()
	if n.detached {
		return
	}
	n.self.setDisabledLocked(false)
	n.refreshParentLocked()
}

// Subscribe registers fn for this node's change events.
func (n *node) Subscribe(fn Observer) func() {
	if fn == nil {
		return func() {}
	}
	core := n.acquire()
	id := n.observers.add(fn)
	core.unlock()
	return func() {
		core := n.acquire()
		defer core.unlock()
		n.observers.remove(id)
	}
}

func (n *node) stateLocked() State {
	return State{
		ID:      n.id,
		Path:    n.pathLocked(),
		Status:  n.machine.Current(),
		Errors:  n.errors.Clone(),
		Touched: n.touched,
		Dirty:   n.dirty,
		Value:   n.self.valueLocked(false),
	}
}

func (n *node) pathLocked() string {
	if n.parent == nil {
		return ""
	}
	key := n.parent.childKeyLocked(n)
	prefix := n.parent.base().pathLocked()
	if prefix == "" {
		return key
	}
	return prefix + "." + key
}

func (n *node) markLocked() {
	if n.core == nil || n.marked {
		return
	}
	n.marked = true
	n.core.marked = append(n.core.marked, n)
}

// markValueLocked records a value change on the node and every ancestor,
// since container values are derived from their children.
func (n *node) markValueLocked() {
	for cur := n; cur != nil; {
		cur.markLocked()
		if cur.parent == nil {
			return
		}
		cur = cur.parent.base()
	}
}

func (n *node) setErrorsLocked(errs Errors) {
	if len(errs) == 0 {
		errs = nil
	}
	if reflect.DeepEqual(n.errors, errs) {
		return
	}
	n.errors = errs
	n.markLocked()
}

func (n *node) setStatusLocked(target Status) {
	current := n.machine.Current()
	if current == target {
		return
	}
	if current == StatusDisabled && target != StatusValid {
		if err := n.machine.moveTo(StatusValid); err != nil {
			n.core.log().Errorw("status transition failed", "node", n.id, "error", err)
			return
		}
	}
	if err := n.machine.moveTo(target); err != nil {
		n.core.log().Errorw("status transition failed", "node", n.id, "error", err)
	}
}

func (n *node) setTouchedLocked() {
	for cur := n; cur != nil; {
		if !cur.touched {
			cur.touched = true
			cur.markLocked()
		}
		if cur.parent == nil {
			return
		}
		cur = cur.parent.base()
	}
}

func (n *node) setDirtyLocked() {
	for cur := n; cur != nil; {
		if !cur.dirty {
			cur.dirty = true
			cur.markLocked()
		}
		if cur.parent == nil {
			return
		}
		cur = cur.parent.base()
	}
}

func (n *node) clearInteractionLocked() {
	if n.touched || n.dirty {
		n.touched = false
		n.dirty = false
		n.markLocked()
	}
}

func (n *node) refreshParentLocked() {
	if n.parent != nil {
		n.parent.refreshLocked()
	}
}

func (n *node) mountBaseLocked(core *engine) {
	n.core = core
	n.machine.logger = core.log()
}

func (n *node) detachBaseLocked() {
	n.detached = true
	n.parent = nil
	n.marked = false
	n.observers.clear()
}
