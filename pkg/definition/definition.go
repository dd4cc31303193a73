// Package definition describes forms declaratively, in YAML or through an
// OpenAPI request body, and builds live forms from those descriptions.
package definition

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/goliatone/go-formstate/pkg/rules/expr"
)

var (
	// ErrInvalidDefinition wraps every structural problem found by Validate.
	ErrInvalidDefinition = errors.New("definition: invalid definition")
	// ErrUnknownAsync is returned when a field names an async validator that
	// was not registered with WithAsync.
	ErrUnknownAsync = errors.New("definition: unknown async validator")
	// ErrOperationNotFound is returned when an OpenAPI document has no
	// operation with the requested id.
	ErrOperationNotFound = errors.New("definition: operation not found")
)

// FieldType names the node a FieldSpec produces.
type FieldType string

const (
	TypeString FieldType = "string"
	TypeNumber FieldType = "number"
	TypeEnum   FieldType = "enum"
	TypeArray  FieldType = "array"
	TypeGroup  FieldType = "group"
)

// Definition is a whole form: the root group's children plus its rules.
type Definition struct {
	Name   string      `yaml:"name" json:"name"`
	Fields []FieldSpec `yaml:"fields" json:"fields"`
	Rules  []RuleSpec  `yaml:"rules,omitempty" json:"rules,omitempty"`
}

// FieldSpec declares one node. Scalar constraints apply to string, number,
// and enum fields; Items describes array elements; Fields and Rules describe
// nested groups.
type FieldSpec struct {
	Name      string    `yaml:"name" json:"name"`
	Type      FieldType `yaml:"type" json:"type"`
	Label     string    `yaml:"label,omitempty" json:"label,omitempty"`
	Format    string    `yaml:"format,omitempty" json:"format,omitempty"`
	Default   any       `yaml:"default,omitempty" json:"default,omitempty"`
	Enum      []string  `yaml:"enum,omitempty" json:"enum,omitempty"`
	Required  bool      `yaml:"required,omitempty" json:"required,omitempty"`
	MinLength *int      `yaml:"minLength,omitempty" json:"minLength,omitempty"`
	MaxLength *int      `yaml:"maxLength,omitempty" json:"maxLength,omitempty"`
	Min       *float64  `yaml:"min,omitempty" json:"min,omitempty"`
	Max       *float64  `yaml:"max,omitempty" json:"max,omitempty"`
	Pattern   string    `yaml:"pattern,omitempty" json:"pattern,omitempty"`
	Adult     *float64  `yaml:"adult,omitempty" json:"adult,omitempty"`
	Async     []string  `yaml:"async,omitempty" json:"async,omitempty"`
	GateAsync bool      `yaml:"gateAsync,omitempty" json:"gateAsync,omitempty"`
	Disabled  bool      `yaml:"disabled,omitempty" json:"disabled,omitempty"`

	Items    *FieldSpec `yaml:"items,omitempty" json:"items,omitempty"`
	MinItems *int       `yaml:"minItems,omitempty" json:"minItems,omitempty"`
	MaxItems *int       `yaml:"maxItems,omitempty" json:"maxItems,omitempty"`

	Fields []FieldSpec `yaml:"fields,omitempty" json:"fields,omitempty"`
	Rules  []RuleSpec  `yaml:"rules,omitempty" json:"rules,omitempty"`
}

// RuleSpec is a cross-field rule: Key is reported on the group when Expr
// evaluates to false.
type RuleSpec struct {
	Key    string         `yaml:"key" json:"key"`
	Expr   string         `yaml:"expr" json:"expr"`
	Extras map[string]any `yaml:"extras,omitempty" json:"extras,omitempty"`
}

// Parse decodes a YAML definition and validates it.
func Parse(raw []byte) (Definition, error) {
	var def Definition
	if err := yaml.Unmarshal(raw, &def); err != nil {
		return Definition{}, fmt.Errorf("definition: decode yaml: %w", err)
	}
	if err := def.Validate(); err != nil {
		return Definition{}, err
	}
	return def, nil
}

// Load reads and parses a YAML definition file.
func Load(path string) (Definition, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Definition{}, fmt.Errorf("definition: read %s: %w", path, err)
	}
	return Parse(raw)
}

// Validate checks names, types, and rule syntax.
func (d Definition) Validate() error {
	if len(d.Fields) == 0 {
		return fmt.Errorf("%w: no fields", ErrInvalidDefinition)
	}
	if err := validateFields("", d.Fields); err != nil {
		return err
	}
	return validateRules("", d.Rules)
}

func validateFields(prefix string, fields []FieldSpec) error {
	seen := make(map[string]struct{}, len(fields))
	for _, field := range fields {
		name := strings.TrimSpace(field.Name)
		path := joinPath(prefix, name)
		if name == "" || strings.Contains(name, ".") {
			return fmt.Errorf("%w: invalid field name %q", ErrInvalidDefinition, path)
		}
		if _, dup := seen[name]; dup {
			return fmt.Errorf("%w: duplicate field %q", ErrInvalidDefinition, path)
		}
		seen[name] = struct{}{}
		if err := validateField(path, field); err != nil {
			return err
		}
	}
	return nil
}

func validateField(path string, field FieldSpec) error {
	switch field.Type {
	case TypeString, TypeNumber:
	case TypeEnum:
		if len(field.Enum) == 0 {
			return fmt.Errorf("%w: enum %q has no options", ErrInvalidDefinition, path)
		}
	case TypeArray:
		if field.Items == nil {
			return fmt.Errorf("%w: array %q requires items", ErrInvalidDefinition, path)
		}
		switch field.Items.Type {
		case TypeString, TypeNumber, TypeEnum:
		default:
			return fmt.Errorf("%w: array %q items must be scalar, got %q", ErrInvalidDefinition, path, field.Items.Type)
		}
		return validateField(path+".items", *field.Items)
	case TypeGroup:
		if len(field.Fields) == 0 {
			return fmt.Errorf("%w: group %q has no fields", ErrInvalidDefinition, path)
		}
		if err := validateFields(path, field.Fields); err != nil {
			return err
		}
		return validateRules(path, field.Rules)
	default:
		return fmt.Errorf("%w: field %q has unknown type %q", ErrInvalidDefinition, path, field.Type)
	}
	if field.MinLength != nil && field.MaxLength != nil && *field.MinLength > *field.MaxLength {
		return fmt.Errorf("%w: field %q minLength exceeds maxLength", ErrInvalidDefinition, path)
	}
	if field.Min != nil && field.Max != nil && *field.Min > *field.Max {
		return fmt.Errorf("%w: field %q min exceeds max", ErrInvalidDefinition, path)
	}
	return nil
}

func validateRules(path string, rules []RuleSpec) error {
	for _, rule := range rules {
		if strings.TrimSpace(rule.Key) == "" {
			return fmt.Errorf("%w: rule in %q has no key", ErrInvalidDefinition, displayPath(path))
		}
		if _, err := expr.Compile(rule.Expr); err != nil {
			return fmt.Errorf("%w: rule %q in %q: %v", ErrInvalidDefinition, rule.Key, displayPath(path), err)
		}
	}
	return nil
}

// Labels maps dotted field paths to their labels, falling back to the name.
func (d Definition) Labels() map[string]string {
	out := make(map[string]string)
	collectLabels("", d.Fields, out)
	return out
}

// Formats maps dotted field paths to their declared format, for fields that
// have one.
func (d Definition) Formats() map[string]string {
	out := make(map[string]string)
	collectFormats("", d.Fields, out)
	return out
}

func collectLabels(prefix string, fields []FieldSpec, out map[string]string) {
	for _, field := range fields {
		path := joinPath(prefix, strings.TrimSpace(field.Name))
		label := strings.TrimSpace(field.Label)
		if label == "" {
			label = field.Name
		}
		out[path] = label
		if field.Type == TypeGroup {
			collectLabels(path, field.Fields, out)
		}
	}
}

func collectFormats(prefix string, fields []FieldSpec, out map[string]string) {
	for _, field := range fields {
		path := joinPath(prefix, strings.TrimSpace(field.Name))
		if field.Format != "" {
			out[path] = field.Format
		}
		if field.Type == TypeGroup {
			collectFormats(path, field.Fields, out)
		}
	}
}

func joinPath(prefix, name string) string {
	if prefix == "" {
		return name
	}
	return prefix + "." + name
}

func displayPath(path string) string {
	if path == "" {
		return "<root>"
	}
	return path
}
