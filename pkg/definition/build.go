package definition

import (
	"fmt"
	"strings"

	"github.com/goliatone/go-formstate/pkg/form"
	"github.com/goliatone/go-formstate/pkg/rules"
	"github.com/goliatone/go-formstate/pkg/rules/expr"
	"github.com/goliatone/go-formstate/pkg/validators"
)

// BuildOption configures Build.
type BuildOption func(*builder)

type builder struct {
	async     map[string]form.AsyncValidator
	formOpts  []form.Option
	evaluator rules.Evaluator
}

// WithAsync registers an async validator under name so fields can refer to
// it from their async list. Names are trimmed; registering nil removes one.
func WithAsync(name string, v form.AsyncValidator) BuildOption {
	return func(b *builder) {
		name = strings.TrimSpace(name)
		if name == "" {
			return
		}
		if v == nil {
			delete(b.async, name)
			return
		}
		b.async[name] = v
	}
}

// WithFormOptions forwards options to form.New.
func WithFormOptions(opts ...form.Option) BuildOption {
	return func(b *builder) {
		b.formOpts = append(b.formOpts, opts...)
	}
}

// WithEvaluator replaces the rule evaluator. Defaults to expr.New().
func WithEvaluator(evaluator rules.Evaluator) BuildOption {
	return func(b *builder) {
		if evaluator != nil {
			b.evaluator = evaluator
		}
	}
}

// Build validates def and constructs a mounted form.
func Build(def Definition, opts ...BuildOption) (*form.Form, error) {
	b := newBuilder(opts)
	root, err := b.rootGroup(def)
	if err != nil {
		return nil, err
	}
	return form.New(root, b.formOpts...)
}

// BuildGroup constructs the unmounted root group, for callers that want to
// embed it or mount it themselves.
func BuildGroup(def Definition, opts ...BuildOption) (*form.Group, error) {
	return newBuilder(opts).rootGroup(def)
}

func newBuilder(opts []BuildOption) *builder {
	b := &builder{
		async:     make(map[string]form.AsyncValidator),
		evaluator: expr.New(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(b)
		}
	}
	return b
}

func (b *builder) rootGroup(def Definition) (*form.Group, error) {
	if err := def.Validate(); err != nil {
		return nil, err
	}
	return b.group(def.Fields, def.Rules, false)
}

func (b *builder) group(fields []FieldSpec, ruleSpecs []RuleSpec, disabled bool) (*form.Group, error) {
	entries := make([]form.Entry, 0, len(fields))
	for _, spec := range fields {
		node, err := b.node(spec)
		if err != nil {
			return nil, err
		}
		entries = append(entries, form.Child(strings.TrimSpace(spec.Name), node))
	}

	var opts []form.GroupOption
	for _, rule := range ruleSpecs {
		opts = append(opts, form.WithGroupValidators(
			rules.GroupValidator(rule.Key, rule.Expr, b.evaluator, rules.WithExtras(rule.Extras)),
		))
	}
	if disabled {
		opts = append(opts, form.GroupDisabled())
	}
	return form.NewGroup(entries, opts...)
}

func (b *builder) node(spec FieldSpec) (form.Node, error) {
	switch spec.Type {
	case TypeGroup:
		return b.group(spec.Fields, spec.Rules, spec.Disabled)
	case TypeArray:
		return b.array(spec)
	default:
		return b.field(spec)
	}
}

func (b *builder) field(spec FieldSpec) (*form.Field, error) {
	kind := kindOf(spec.Type)
	initial, err := form.Coerce(kind, spec.Default)
	if err != nil {
		return nil, fmt.Errorf("definition: field %q default: %w", spec.Name, err)
	}
	opts, err := b.fieldOptions(spec)
	if err != nil {
		return nil, err
	}
	return form.NewField(kind, initial, opts...), nil
}

func (b *builder) fieldOptions(spec FieldSpec) ([]form.FieldOption, error) {
	var checks []form.Validator
	if spec.Required {
		checks = append(checks, validators.Required())
	}
	if spec.MinLength != nil {
		checks = append(checks, validators.MinLength(*spec.MinLength))
	}
	if spec.MaxLength != nil {
		checks = append(checks, validators.MaxLength(*spec.MaxLength))
	}
	if spec.Min != nil {
		checks = append(checks, validators.Min(*spec.Min))
	}
	if spec.Max != nil {
		checks = append(checks, validators.Max(*spec.Max))
	}
	if spec.Pattern != "" {
		pattern, err := validators.Pattern(spec.Pattern)
		if err != nil {
			return nil, fmt.Errorf("definition: field %q: %w", spec.Name, err)
		}
		checks = append(checks, pattern)
	}
	if spec.Type == TypeEnum {
		checks = append(checks, validators.OneOf(spec.Enum...))
	}
	if spec.Adult != nil {
		checks = append(checks, validators.Adult(*spec.Adult))
	}

	opts := []form.FieldOption{form.WithValidators(checks...)}
	if len(spec.Enum) > 0 {
		opts = append(opts, form.WithEnumOptions(spec.Enum...))
	}
	for _, name := range spec.Async {
		v, ok := b.async[strings.TrimSpace(name)]
		if !ok {
			return nil, fmt.Errorf("definition: field %q: %w: %q", spec.Name, ErrUnknownAsync, name)
		}
		opts = append(opts, form.WithAsyncValidators(v))
	}
	if spec.GateAsync {
		opts = append(opts, form.GateAsyncOnSync())
	}
	if spec.Disabled {
		opts = append(opts, form.FieldDisabled())
	}
	return opts, nil
}

func (b *builder) array(spec FieldSpec) (*form.Array, error) {
	itemSpec := *spec.Items
	itemSpec.Name = spec.Name + ".items"
	itemSpec.Disabled = false
	itemKind := kindOf(itemSpec.Type)
	itemOpts, err := b.fieldOptions(itemSpec)
	if err != nil {
		return nil, err
	}

	var items []form.Node
	if spec.Default != nil {
		defaults, ok := spec.Default.([]any)
		if !ok {
			return nil, fmt.Errorf("definition: array %q default must be a list, got %T", spec.Name, spec.Default)
		}
		for i, raw := range defaults {
			value, err := form.Coerce(itemKind, raw)
			if err != nil {
				return nil, fmt.Errorf("definition: array %q default %d: %w", spec.Name, i, err)
			}
			items = append(items, form.NewField(itemKind, value, itemOpts...))
		}
	}

	opts := []form.ArrayOption{form.WithItemKind(itemKind), form.WithItemOptions(itemOpts...)}
	if spec.MinItems != nil {
		opts = append(opts, form.WithArrayValidators(validators.MinItems(*spec.MinItems)))
	}
	if spec.MaxItems != nil {
		opts = append(opts, form.WithArrayValidators(validators.MaxItems(*spec.MaxItems)))
	}
	if spec.Disabled {
		opts = append(opts, form.ArrayDisabled())
	}
	return form.NewArray(items, opts...)
}

func kindOf(t FieldType) form.Kind {
	switch t {
	case TypeString:
		return form.KindString
	case TypeNumber:
		return form.KindNumber
	case TypeEnum:
		return form.KindEnum
	default:
		return form.KindAny
	}
}
