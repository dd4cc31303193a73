package form

import (
	"fmt"
	"slices"
	"strconv"
)

// Array owns an ordered, resizable list of children. Index i always
// addresses the i-th child; removal shifts later children down without
// touching their state.
type Array struct {
	node

	items       []treeNode
	itemKind    Kind
	itemOptions []FieldOption
	validators  []ArrayValidator
}

// ArrayOption configures an Array at construction.
type ArrayOption func(*Array)

// WithItemKind sets the kind of fields created by Append. Defaults to
// KindAny.
func WithItemKind(kind Kind) ArrayOption {
	return func(a *Array) {
		a.itemKind = kind
	}
}

// WithItemOptions sets options applied to every field created by Append,
// before the validators passed to Append itself.
func WithItemOptions(opts ...FieldOption) ArrayOption {
	return func(a *Array) {
		a.itemOptions = append(a.itemOptions, opts...)
	}
}

// WithArrayValidators appends validators over the ordered item values.
func WithArrayValidators(validators ...ArrayValidator) ArrayOption {
	return func(a *Array) {
		for _, v := range validators {
			if v != nil {
				a.validators = append(a.validators, v)
			}
		}
	}
}

// ArrayDisabled creates the array, and its items, disabled.
func ArrayDisabled() ArrayOption {
	return func(a *Array) {
		a.disabled = true
	}
}

// NewArray creates an array owning items in order.
func NewArray(items []Node, opts ...ArrayOption) (*Array, error) {
	a := &Array{itemKind: KindAny}
	a.node.init(a)
	for i, item := range items {
		child, err := adopt(item)
		if err != nil {
			return nil, fmt.Errorf("form: new array: item %d: %w", i, err)
		}
		a.items = append(a.items, child)
	}
	for _, child := range a.items {
		child.base().parent = a
	}
	for _, opt := range opts {
		if opt != nil {
			opt(a)
		}
	}
	if a.disabled {
		a.disabled = false
		a.setDisabledLocked(true)
	}
	a.recomputeLocked()
	return a, nil
}

// MustArray is NewArray that panics on error.
func MustArray(items []Node, opts ...ArrayOption) *Array {
	a, err := NewArray(items, opts...)
	if err != nil {
		panic(err)
	}
	return a
}

// ItemKind returns the kind of fields created by Append.
func (a *Array) ItemKind() Kind { return a.itemKind }

// Len returns the number of items.
func (a *Array) Len() int {
	core := a.acquire()
	defer core.unlock()
	return len(a.items)
}

// At returns the item at index i.
func (a *Array) At(i int) (Node, error) {
	core := a.acquire()
	defer core.unlock()
	if i < 0 || i >= len(a.items) {
		return nil, fmt.Errorf("form: at %d (len %d): %w", i, len(a.items), ErrIndexOutOfRange)
	}
	return a.items[i], nil
}

// Children returns the items in order.
func (a *Array) Children() []Node {
	core := a.acquire()
	defer core.unlock()
	out := make([]Node, len(a.items))
	for i, item := range a.items {
		out[i] = item
	}
	return out
}

// Append creates a field of the array's item kind at the end. The new
// index is the previous length.
func (a *Array) Append(initial any, validators ...Validator) (*Field, error) {
	value, err := Coerce(a.itemKind, initial)
	if err != nil {
		return nil, fmt.Errorf("form: append: %w", err)
	}
	opts := append(slices.Clone(a.itemOptions), WithValidators(validators...))
	f := NewField(a.itemKind, value, opts...)
	if err := a.AppendField(f); err != nil {
		return nil, err
	}
	return f, nil
}

// AppendField attaches a field built by the caller, for items that need
// their own kind or async validators.
func (a *Array) AppendField(f *Field) error {
	if f == nil {
		return fmt.Errorf("form: append: nil field")
	}
	return a.AppendNode(f)
}

// AppendNode attaches any unowned node at the end.
func (a *Array) AppendNode(n Node) error {
	core := a.acquire()
	defer core.release()
	if a.detached {
		return fmt.Errorf("form: append: %w", ErrDetached)
	}
	child, err := adopt(n)
	if err != nil {
		return fmt.Errorf("form: append: %w", err)
	}
	a.appendLocked(child)
	return nil
}

func (a *Array) appendLocked(child treeNode) {
	child.base().parent = a
	a.items = append(a.items, child)
	if a.core != nil {
		child.mountLocked(a.core)
	}
	if a.disabled {
		child.setDisabledLocked(true)
	} else {
		child.revalidateLocked()
	}
	markTreeLocked(child)
	a.markValueLocked()
	a.refreshLocked()
}

// RemoveAt detaches the item at index i and shifts later items down.
// The removed node's subscriptions are dropped and its pending async
// validation is cancelled.
func (a *Array) RemoveAt(i int) error {
	core := a.acquire()
	defer core.release()
	if a.detached {
		return fmt.Errorf("form: remove: %w", ErrDetached)
	}
	if i < 0 || i >= len(a.items) {
		return fmt.Errorf("form: remove %d (len %d): %w", i, len(a.items), ErrIndexOutOfRange)
	}
	removed := a.items[i]
	a.items = slices.Delete(a.items, i, i+1)
	removed.detachLocked()
	for _, shifted := range a.items[i:] {
		markTreeLocked(shifted)
	}
	a.markValueLocked()
	a.refreshLocked()
	return nil
}

// Values returns the ordered values of enabled items.
func (a *Array) Values() []any {
	core := a.acquire()
	defer core.unlock()
	return a.valuesLocked(false)
}

func (a *Array) valuesLocked(raw bool) []any {
	out := make([]any, 0, len(a.items))
	for _, item := range a.items {
		if !raw && item.base().disabled {
			continue
		}
		out = append(out, item.valueLocked(raw))
	}
	return out
}

func (a *Array) valueLocked(raw bool) any {
	return a.valuesLocked(raw)
}

func (a *Array) childKeyLocked(child *node) string {
	for i, item := range a.items {
		if item.base() == child {
			return strconv.Itoa(i)
		}
	}
	return ""
}

func (a *Array) mountLocked(core *engine) {
	a.mountBaseLocked(core)
	for _, item := range a.items {
		item.mountLocked(core)
	}
}

func (a *Array) revalidateLocked() {
	for _, item := range a.items {
		item.revalidateLocked()
	}
	a.recomputeLocked()
}

func (a *Array) recomputeLocked() {
	if a.disabled {
		a.setErrorsLocked(nil)
		a.setStatusLocked(StatusDisabled)
		return
	}
	var results []Errors
	if len(a.validators) > 0 {
		values := a.valuesLocked(false)
		for _, v := range a.validators {
			if errs := v.ValidateArray(values); len(errs) > 0 {
				results = append(results, errs)
			}
		}
		if a.core != nil {
			a.core.metrics.validation(validationArray)
		}
	}
	errs := MergeErrors(results...)
	a.setErrorsLocked(errs)

	status := StatusValid
	if len(errs) > 0 {
		status = StatusInvalid
	}
	for _, item := range a.items {
		status = worse(status, item.base().machine.Current())
	}
	a.setStatusLocked(status)
}

func (a *Array) refreshLocked() {
	a.recomputeLocked()
	a.refreshParentLocked()
}

func (a *Array) setDisabledLocked(disabled bool) {
	if a.disabled == disabled {
		return
	}
	a.disabled = disabled
	a.markValueLocked()
	for _, item := range a.items {
		item.setDisabledLocked(disabled)
	}
	a.recomputeLocked()
}

func (a *Array) markAllTouchedLocked() {
	a.setTouchedLocked()
	for _, item := range a.items {
		item.markAllTouchedLocked()
	}
}

func (a *Array) resetLocked() {
	for _, item := range a.items {
		item.resetLocked()
	}
	a.clearInteractionLocked()
	a.recomputeLocked()
}

func (a *Array) detachLocked() {
	for _, item := range a.items {
		item.detachLocked()
	}
	a.detachBaseLocked()
}

// markTreeLocked marks n and its descendants, used when positions change
// and every path under n must be re-announced.
func markTreeLocked(n treeNode) {
	n.base().markLocked()
	switch typed := n.(type) {
	case *Group:
		for _, name := range typed.names {
			markTreeLocked(typed.children[name])
		}
	case *Array:
		for _, item := range typed.items {
			markTreeLocked(item)
		}
	}
}
