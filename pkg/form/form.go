package form

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"
)

// Form owns a root group and serialises every operation on its tree.
type Form struct {
	core      *engine
	root      *Group
	handlers  []SubmitHandler
	sanitize  func(string) string
	now       func() time.Time
	submitted bool
	closed    bool
}

// Option configures a Form.
type Option func(*formConfig)

type formConfig struct {
	logger   *zap.SugaredLogger
	metrics  *Metrics
	handlers []SubmitHandler
	sanitize func(string) string
	now      func() time.Time
}

// WithLogger sets the logger used for state transitions, async dispatch,
// and observer failures. Defaults to a no-op logger.
func WithLogger(logger *zap.SugaredLogger) Option {
	return func(c *formConfig) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithMetrics records validation and submission counters.
func WithMetrics(metrics *Metrics) Option {
	return func(c *formConfig) {
		c.metrics = metrics
	}
}

// WithSubmitHandler registers a handler invoked with every accepted
// submission, in registration order.
func WithSubmitHandler(handler SubmitHandler) Option {
	return func(c *formConfig) {
		if handler != nil {
			c.handlers = append(c.handlers, handler)
		}
	}
}

// WithStringSanitizer rewrites every string leaf of a submission payload.
func WithStringSanitizer(fn func(string) string) Option {
	return func(c *formConfig) {
		c.sanitize = fn
	}
}

// WithClock overrides the submission timestamp source.
func WithClock(now func() time.Time) Option {
	return func(c *formConfig) {
		if now != nil {
			c.now = now
		}
	}
}

// New mounts root and runs every validator once. Async validators dispatch
// immediately, so the form may start PENDING.
func New(root *Group, opts ...Option) (*Form, error) {
	if root == nil {
		return nil, fmt.Errorf("form: new: nil root")
	}
	cfg := formConfig{now: time.Now}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	if root.core != nil || root.parent != nil || root.detached {
		return nil, fmt.Errorf("form: new: %w", ErrAlreadyOwned)
	}

	core := newEngine(cfg.logger, cfg.metrics)
	f := &Form{
		core:     core,
		root:     root,
		handlers: cfg.handlers,
		sanitize: cfg.sanitize,
		now:      cfg.now,
	}
	core.mu.Lock()
	root.mountLocked(core)
	root.revalidateLocked()
	core.log().Debugw("form mounted", "root", root.id, "status", root.machine.Current())
	core.flushLocked()
	return f, nil
}

// MustNew is New that panics on error.
func MustNew(root *Group, opts ...Option) *Form {
	f, err := New(root, opts...)
	if err != nil {
		panic(err)
	}
	return f
}

// Root returns the root group.
func (f *Form) Root() *Group { return f.root }

// Get resolves a dotted path such as "guests.1" or "address.city". The
// empty path is the root.
func (f *Form) Get(path string) (Node, error) {
	f.core.mu.Lock()
	defer f.core.mu.Unlock()
	n, err := f.resolveLocked(path)
	if err != nil {
		return nil, err
	}
	return n, nil
}

func (f *Form) resolveLocked(path string) (treeNode, error) {
	var cur treeNode = f.root
	for _, segment := range splitPath(path) {
		switch typed := cur.(type) {
		case *Group:
			child, ok := typed.children[segment]
			if !ok {
				return nil, fmt.Errorf("form: path %q: %w: %q", path, ErrUnknownChild, segment)
			}
			cur = child
		case *Array:
			i, err := strconv.Atoi(segment)
			if err != nil {
				return nil, fmt.Errorf("form: path %q: %w: %q is not an index", path, ErrUnknownChild, segment)
			}
			if i < 0 || i >= len(typed.items) {
				return nil, fmt.Errorf("form: path %q: %w", path, ErrIndexOutOfRange)
			}
			cur = typed.items[i]
		default:
			return nil, fmt.Errorf("form: path %q: %w: %q", path, ErrUnknownChild, segment)
		}
	}
	return cur, nil
}

// Field resolves path to a field.
func (f *Form) Field(path string) (*Field, error) {
	n, err := f.Get(path)
	if err != nil {
		return nil, err
	}
	field, ok := n.(*Field)
	if !ok {
		return nil, fmt.Errorf("form: path %q: %w", path, ErrNotField)
	}
	return field, nil
}

// Array resolves path to an array.
func (f *Form) Array(path string) (*Array, error) {
	n, err := f.Get(path)
	if err != nil {
		return nil, err
	}
	a, ok := n.(*Array)
	if !ok {
		return nil, fmt.Errorf("form: path %q: %w", path, ErrNotArray)
	}
	return a, nil
}

// SetValue sets the field at path.
func (f *Form) SetValue(path string, v any) error {
	field, err := f.Field(path)
	if err != nil {
		return err
	}
	return field.SetValue(v)
}

// Append adds a field to the array at path.
func (f *Form) Append(path string, initial any, validators ...Validator) (*Field, error) {
	a, err := f.Array(path)
	if err != nil {
		return nil, err
	}
	return a.Append(initial, validators...)
}

// RemoveAt removes item i from the array at path.
func (f *Form) RemoveAt(path string, i int) error {
	a, err := f.Array(path)
	if err != nil {
		return err
	}
	return a.RemoveAt(i)
}

// Status returns the root's composite status.
func (f *Form) Status() Status {
	return f.root.Status()
}

// Submitted reports whether Submit has been called since construction or
// the last Reset.
func (f *Form) Submitted() bool {
	f.core.mu.Lock()
	defer f.core.mu.Unlock()
	return f.submitted
}

// Values returns the values of every enabled node. Disabled nodes are left
// out, matching the submission payload.
func (f *Form) Values() map[string]any {
	f.core.mu.Lock()
	defer f.core.mu.Unlock()
	return f.root.valuesLocked(false)
}

// RawValues returns the values of every node, disabled ones included.
func (f *Form) RawValues() map[string]any {
	f.core.mu.Lock()
	defer f.core.mu.Unlock()
	return f.root.valuesLocked(true)
}

// Subscribe registers fn for events from every node in the tree. Node
// observers run before form observers for the same event.
func (f *Form) Subscribe(fn Observer) func() {
	if fn == nil {
		return func() {}
	}
	f.core.mu.Lock()
	id := f.core.observers.add(fn)
	f.core.mu.Unlock()
	return func() {
		f.core.mu.Lock()
		defer f.core.mu.Unlock()
		f.core.observers.remove(id)
	}
}

// Wait blocks until the root is no longer PENDING or ctx is done. The
// engine imposes no deadline of its own.
func (f *Form) Wait(ctx context.Context) (Status, error) {
	for {
		f.core.mu.Lock()
		if f.closed {
			f.core.mu.Unlock()
			return "", fmt.Errorf("form: wait: %w", ErrDetached)
		}
		status := f.root.machine.Current()
		changed := f.core.changed
		f.core.mu.Unlock()
		if status != StatusPending {
			return status, nil
		}
		select {
		case <-ctx.Done():
			return status, ctx.Err()
		case <-changed:
		}
	}
}

// MarkAllTouched marks every node in the tree touched.
func (f *Form) MarkAllTouched() {
	f.core.mu.Lock()
	f.root.markAllTouchedLocked()
	f.core.flushLocked()
}

// Reset restores initial values, clears touched, dirty, and submitted, and
// revalidates the whole tree. Array items appended later are kept.
func (f *Form) Reset() {
	f.core.mu.Lock()
	if f.closed {
		f.core.mu.Unlock()
		return
	}
	f.submitted = false
	f.root.resetLocked()
	f.core.log().Debugw("form reset", "status", f.root.machine.Current())
	f.core.flushLocked()
}

// Close detaches the tree, cancelling every in-flight async validation and
// dropping all observers. Further mutations return ErrDetached.
func (f *Form) Close() {
	f.core.mu.Lock()
	defer f.core.mu.Unlock()
	if f.closed {
		return
	}
	f.closed = true
	f.root.detachLocked()
	f.core.observers.clear()
	f.core.marked = f.core.marked[:0]
	close(f.core.changed)
	f.core.changed = make(chan struct{})
}
