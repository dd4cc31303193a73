package form

import (
	"context"
	"fmt"
	"reflect"
	"slices"

	"golang.org/x/sync/errgroup"
)

// Field is a leaf holding a single scalar value.
type Field struct {
	node

	kind       Kind
	options    []string
	initial    any
	value      any
	validators []Validator
	async      []AsyncValidator
	gateAsync  bool

	syncErrors  Errors
	asyncErrors Errors
	pending     bool
	generation  uint64
	cancel      context.CancelFunc
}

// FieldOption configures a Field at construction.
type FieldOption func(*Field)

// WithValidators appends synchronous validators. Their errors merge in
// declaration order.
func WithValidators(validators ...Validator) FieldOption {
	return func(f *Field) {
		for _, v := range validators {
			if v != nil {
				f.validators = append(f.validators, v)
			}
		}
	}
}

// WithAsyncValidators appends asynchronous validators. They run
// concurrently per dispatch and merge in declaration order.
func WithAsyncValidators(validators ...AsyncValidator) FieldOption {
	return func(f *Field) {
		for _, v := range validators {
			if v != nil {
				f.async = append(f.async, v)
			}
		}
	}
}

// GateAsyncOnSync holds asynchronous validators back until every
// synchronous validator passes.
func GateAsyncOnSync() FieldOption {
	return func(f *Field) {
		f.gateAsync = true
	}
}

// WithEnumOptions records the allowed values of an enum field for
// presentation layers. Use validators.OneOf to enforce them.
func WithEnumOptions(options ...string) FieldOption {
	return func(f *Field) {
		f.options = append([]string(nil), options...)
	}
}

// FieldDisabled creates the field disabled.
func FieldDisabled() FieldOption {
	return func(f *Field) {
		f.disabled = true
	}
}

// NewField creates an unattached field. It panics when initial does not
// match kind, which is a construction-time programming error; use Coerce
// first when the value comes from outside the program.
func NewField(kind Kind, initial any, opts ...FieldOption) *Field {
	value, err := Coerce(kind, initial)
	if err != nil {
		panic(fmt.Errorf("form: new field: %w", err))
	}
	if kind == "" {
		kind = KindAny
	}
	f := &Field{kind: kind, initial: value, value: value}
	f.node.init(f)
	for _, opt := range opts {
		if opt != nil {
			opt(f)
		}
	}
	// Unmounted fields have no engine, so only sync validators run here.
	f.revalidateLocked()
	return f
}

// Kind returns the declared kind.
func (f *Field) Kind() Kind { return f.kind }

// Options returns the enum options, if any.
func (f *Field) Options() []string {
	return append([]string(nil), f.options...)
}

// SetValue stores v, marks the field dirty, re-runs sync validators,
// replaces any in-flight async dispatch, and re-aggregates up to the root.
func (f *Field) SetValue(v any) error {
	core := f.acquire()
	defer core.release()
	return f.setValueLocked(v)
}

func (f *Field) setValueLocked(v any) error {
	if f.detached {
		return fmt.Errorf("form: set value: %w", ErrDetached)
	}
	value, err := Coerce(f.kind, v)
	if err != nil {
		return fmt.Errorf("form: set %q: %w", f.pathLocked(), err)
	}
	f.value = value
	f.markValueLocked()
	f.setDirtyLocked()
	f.revalidateLocked()
	f.refreshParentLocked()
	return nil
}

func (f *Field) valueLocked(bool) any {
	return f.value
}

func (f *Field) mountLocked(core *engine) {
	f.mountBaseLocked(core)
}

// revalidateLocked re-runs validators for the current value without
// touching the parent.
func (f *Field) revalidateLocked() {
	f.cancelAsyncLocked()
	f.asyncErrors = nil
	if f.disabled {
		f.syncErrors = nil
		f.applyLocked()
		return
	}
	if len(f.validators) > 0 && f.core != nil {
		f.core.metrics.validation(validationSync)
	}
	f.syncErrors = runValidators(f.validators, f.value)
	if len(f.async) > 0 && !(f.gateAsync && len(f.syncErrors) > 0) {
		f.dispatchLocked()
	}
	f.applyLocked()
}

func (f *Field) applyLocked() {
	if f.disabled {
		f.setErrorsLocked(nil)
		f.setStatusLocked(StatusDisabled)
		return
	}
	f.setErrorsLocked(MergeErrors(f.syncErrors, f.asyncErrors))
	switch {
	case len(f.syncErrors) > 0:
		f.setStatusLocked(StatusInvalid)
	case f.pending:
		f.setStatusLocked(StatusPending)
	case len(f.asyncErrors) > 0:
		f.setStatusLocked(StatusInvalid)
	default:
		f.setStatusLocked(StatusValid)
	}
}

// dispatchLocked starts a new async evaluation of the current value. The
// generation captured here is the only one allowed to write a result.
func (f *Field) dispatchLocked() {
	core := f.core
	if core == nil {
		return
	}
	f.generation++
	generation := f.generation
	ctx, cancel := context.WithCancel(context.Background())
	f.cancel = cancel
	f.pending = true

	value := f.value
	validators := slices.Clone(f.async)
	core.metrics.validation(validationAsync)
	core.log().Debugw("async validation dispatched", "node", f.id, "generation", generation)

	go func() {
		result := runAsync(ctx, validators, value)
		core.deliver(func() {
			f.resolveLocked(generation, result)
		})
	}()
}

func (f *Field) resolveLocked(generation uint64, result Errors) {
	core := f.core
	if f.detached || !f.pending || generation != f.generation {
		core.metrics.asyncResult(outcomeSuperseded)
		core.log().Debugw("async validation superseded", "node", f.id, "generation", generation, "current", f.generation)
		return
	}
	f.pending = false
	if f.cancel != nil {
		f.cancel()
		f.cancel = nil
	}
	f.asyncErrors = result
	if result.Has(ErrorKeyCheckFailed) {
		core.metrics.asyncResult(outcomeFailed)
		core.log().Warnw("async validation failed", "node", f.id, "path", f.pathLocked(), "reason", result[ErrorKeyCheckFailed])
	} else {
		core.metrics.asyncResult(outcomeApplied)
	}
	f.applyLocked()
	f.refreshParentLocked()
}

func (f *Field) cancelAsyncLocked() {
	if f.cancel != nil {
		f.cancel()
		f.cancel = nil
	}
	f.pending = false
}

func (f *Field) setDisabledLocked(disabled bool) {
	if f.disabled == disabled {
		return
	}
	f.disabled = disabled
	f.markValueLocked()
	if disabled {
		f.cancelAsyncLocked()
		f.syncErrors = nil
		f.asyncErrors = nil
		f.applyLocked()
		return
	}
	f.revalidateLocked()
}

func (f *Field) markAllTouchedLocked() {
	f.setTouchedLocked()
}

func (f *Field) resetLocked() {
	if !reflect.DeepEqual(f.value, f.initial) {
		f.value = f.initial
		f.markValueLocked()
	}
	f.clearInteractionLocked()
	f.revalidateLocked()
}

func (f *Field) detachLocked() {
	f.cancelAsyncLocked()
	f.detachBaseLocked()
}

func runAsync(ctx context.Context, validators []AsyncValidator, value any) Errors {
	results := make([]Errors, len(validators))
	var g errgroup.Group
	for i, v := range validators {
		g.Go(func() error {
			results[i] = invokeAsync(ctx, v, value)
			return nil
		})
	}
	_ = g.Wait()
	return MergeErrors(results...)
}
