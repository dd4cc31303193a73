package form

import (
	"fmt"
	"slices"
	"strings"
)

// Entry names one child of a group.
type Entry struct {
	Name string
	Node Node
}

// Child is shorthand for building an Entry.
func Child(name string, n Node) Entry {
	return Entry{Name: name, Node: n}
}

// Group owns a fixed, ordered table of named children plus cross-field
// validators whose errors attach to the group itself.
type Group struct {
	node

	names      []string
	children   map[string]treeNode
	validators []GroupValidator
}

// GroupOption configures a Group at construction.
type GroupOption func(*Group)

// WithGroupValidators appends cross-field validators.
func WithGroupValidators(validators ...GroupValidator) GroupOption {
	return func(g *Group) {
		for _, v := range validators {
			if v != nil {
				g.validators = append(g.validators, v)
			}
		}
	}
}

// GroupDisabled creates the group, and everything under it, disabled.
func GroupDisabled() GroupOption {
	return func(g *Group) {
		g.disabled = true
	}
}

// NewGroup creates a group owning entries in the given order. Names are
// trimmed and must be unique; nodes must not belong to another container.
func NewGroup(entries []Entry, opts ...GroupOption) (*Group, error) {
	g := &Group{children: make(map[string]treeNode, len(entries))}
	g.node.init(g)

	for _, entry := range entries {
		name := strings.TrimSpace(entry.Name)
		if name == "" || strings.Contains(name, ".") {
			return nil, fmt.Errorf("form: new group: invalid child name %q", entry.Name)
		}
		if _, exists := g.children[name]; exists {
			return nil, fmt.Errorf("form: new group: %w: %q", ErrDuplicateChild, name)
		}
		child, err := adopt(entry.Node)
		if err != nil {
			return nil, fmt.Errorf("form: new group: child %q: %w", name, err)
		}
		g.names = append(g.names, name)
		g.children[name] = child
	}
	for _, name := range g.names {
		g.children[name].base().parent = g
	}

	for _, opt := range opts {
		if opt != nil {
			opt(g)
		}
	}
	if g.disabled {
		g.disabled = false
		g.setDisabledLocked(true)
	}
	g.recomputeLocked()
	return g, nil
}

// MustGroup is NewGroup that panics on error, for static form declarations.
func MustGroup(entries []Entry, opts ...GroupOption) *Group {
	g, err := NewGroup(entries, opts...)
	if err != nil {
		panic(err)
	}
	return g
}

func adopt(n Node) (treeNode, error) {
	if n == nil {
		return nil, fmt.Errorf("nil node")
	}
	child, ok := n.(treeNode)
	if !ok {
		return nil, fmt.Errorf("unsupported node type %T", n)
	}
	b := child.base()
	if b.parent != nil || b.core != nil || b.detached {
		return nil, ErrAlreadyOwned
	}
	return child, nil
}

// Names returns the child names in declaration order.
func (g *Group) Names() []string {
	return slices.Clone(g.names)
}

// Child returns the named child.
func (g *Group) Child(name string) (Node, error) {
	child, err := g.lookup(name)
	if err != nil {
		return nil, err
	}
	return child, nil
}

// Field returns the named child as a field.
func (g *Group) Field(name string) (*Field, error) {
	child, err := g.lookup(name)
	if err != nil {
		return nil, err
	}
	f, ok := child.(*Field)
	if !ok {
		return nil, fmt.Errorf("form: %q: %w", name, ErrNotField)
	}
	return f, nil
}

// Array returns the named child as an array.
func (g *Group) Array(name string) (*Array, error) {
	child, err := g.lookup(name)
	if err != nil {
		return nil, err
	}
	a, ok := child.(*Array)
	if !ok {
		return nil, fmt.Errorf("form: %q: %w", name, ErrNotArray)
	}
	return a, nil
}

// Group returns the named child as a nested group.
func (g *Group) Group(name string) (*Group, error) {
	child, err := g.lookup(name)
	if err != nil {
		return nil, err
	}
	nested, ok := child.(*Group)
	if !ok {
		return nil, fmt.Errorf("form: %q: %w", name, ErrNotGroup)
	}
	return nested, nil
}

func (g *Group) lookup(name string) (treeNode, error) {
	child, ok := g.children[strings.TrimSpace(name)]
	if !ok {
		return nil, fmt.Errorf("form: %w: %q", ErrUnknownChild, name)
	}
	return child, nil
}

// SetChildValue sets the named field and re-runs the group validators
// against the fresh sibling values.
func (g *Group) SetChildValue(name string, v any) error {
	f, err := g.Field(name)
	if err != nil {
		return err
	}
	return f.SetValue(v)
}

// AddArrayChild appends a field to the named array.
func (g *Group) AddArrayChild(name string, initial any, validators ...Validator) (*Field, error) {
	a, err := g.Array(name)
	if err != nil {
		return nil, err
	}
	return a.Append(initial, validators...)
}

// Composite is the aggregated status of the group and its enabled
// descendants. It is the same as Status.
func (g *Group) Composite() Status {
	return g.Status()
}

// GroupErrors returns the errors of the group's own validators. Child
// errors are never included.
func (g *Group) GroupErrors() Errors {
	return g.Errors()
}

// Values returns the values of enabled children keyed by name.
func (g *Group) Values() map[string]any {
	core := g.acquire()
	defer core.unlock()
	return g.valuesLocked(false)
}

func (g *Group) valuesLocked(raw bool) map[string]any {
	out := make(map[string]any, len(g.names))
	for _, name := range g.names {
		child := g.children[name]
		if !raw && child.base().disabled {
			continue
		}
		out[name] = child.valueLocked(raw)
	}
	return out
}

func (g *Group) valueLocked(raw bool) any {
	return g.valuesLocked(raw)
}

func (g *Group) childKeyLocked(child *node) string {
	for _, name := range g.names {
		if g.children[name].base() == child {
			return name
		}
	}
	return ""
}

func (g *Group) mountLocked(core *engine) {
	g.mountBaseLocked(core)
	for _, name := range g.names {
		g.children[name].mountLocked(core)
	}
}

func (g *Group) revalidateLocked() {
	for _, name := range g.names {
		g.children[name].revalidateLocked()
	}
	g.recomputeLocked()
}

// recomputeLocked re-runs the group validators and re-aggregates the
// children without revalidating them.
func (g *Group) recomputeLocked() {
	if g.disabled {
		g.setErrorsLocked(nil)
		g.setStatusLocked(StatusDisabled)
		return
	}
	var results []Errors
	if len(g.validators) > 0 {
		values := g.valuesLocked(false)
		for _, v := range g.validators {
			if errs := v.ValidateGroup(values); len(errs) > 0 {
				results = append(results, errs)
			}
		}
		if g.core != nil {
			g.core.metrics.validation(validationGroup)
		}
	}
	errs := MergeErrors(results...)
	g.setErrorsLocked(errs)

	status := StatusValid
	if len(errs) > 0 {
		status = StatusInvalid
	}
	for _, name := range g.names {
		status = worse(status, g.children[name].base().machine.Current())
	}
	g.setStatusLocked(status)
}

func (g *Group) refreshLocked() {
	g.recomputeLocked()
	g.refreshParentLocked()
}

func (g *Group) setDisabledLocked(disabled bool) {
	if g.disabled == disabled {
		return
	}
	g.disabled = disabled
	g.markValueLocked()
	for _, name := range g.names {
		g.children[name].setDisabledLocked(disabled)
	}
	g.recomputeLocked()
}

func (g *Group) markAllTouchedLocked() {
	g.setTouchedLocked()
	for _, name := range g.names {
		g.children[name].markAllTouchedLocked()
	}
}

func (g *Group) resetLocked() {
	for _, name := range g.names {
		g.children[name].resetLocked()
	}
	g.clearInteractionLocked()
	g.recomputeLocked()
}

func (g *Group) detachLocked() {
	for _, name := range g.names {
		g.children[name].detachLocked()
	}
	g.detachBaseLocked()
}
