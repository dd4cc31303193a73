package definition

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"
)

const (
	extensionAsync = "x-formstate-async"
	extensionGate  = "x-formstate-gate-async"
	extensionAdult = "x-formstate-adult"
	extensionRules = "x-formstate-rules"
	extensionOrder = "x-formstate-order"
	extensionLabel = "x-formstate-label"
)

// FromOpenAPI reads an OpenAPI 3 document (JSON or YAML) and converts the
// request body schema of operationID into a Definition. Properties appear in
// the order given by x-formstate-order, then alphabetically.
func FromOpenAPI(ctx context.Context, raw []byte, operationID string) (Definition, error) {
	if err := ctx.Err(); err != nil {
		return Definition{}, err
	}
	if len(raw) == 0 {
		return Definition{}, errors.New("definition: openapi document is empty")
	}

	loader := &openapi3.Loader{Context: ctx}
	doc, err := loader.LoadFromData(raw)
	if err != nil {
		return Definition{}, fmt.Errorf("definition: load openapi document: %w", err)
	}

	operation := findOperation(doc, operationID)
	if operation == nil {
		return Definition{}, fmt.Errorf("%w: %q", ErrOperationNotFound, operationID)
	}
	schema := requestSchema(operation.RequestBody)
	if schema == nil {
		return Definition{}, fmt.Errorf("%w: operation %q has no request body schema", ErrInvalidDefinition, operationID)
	}
	if firstSchemaType(schema.Type) != "object" {
		return Definition{}, fmt.Errorf("%w: operation %q request body must be an object", ErrInvalidDefinition, operationID)
	}

	fields, err := convertProperties(schema)
	if err != nil {
		return Definition{}, err
	}
	ruleSpecs, err := extractRules(schema.Extensions)
	if err != nil {
		return Definition{}, err
	}
	opRules, err := extractRules(operation.Extensions)
	if err != nil {
		return Definition{}, err
	}

	def := Definition{
		Name:   operationID,
		Fields: fields,
		Rules:  append(ruleSpecs, opRules...),
	}
	if err := def.Validate(); err != nil {
		return Definition{}, err
	}
	return def, nil
}

func findOperation(doc *openapi3.T, operationID string) *openapi3.Operation {
	if doc == nil || doc.Paths == nil {
		return nil
	}
	for _, item := range doc.Paths.Map() {
		if item == nil {
			continue
		}
		for _, operation := range item.Operations() {
			if operation != nil && operation.OperationID == operationID {
				return operation
			}
		}
	}
	return nil
}

func requestSchema(body *openapi3.RequestBodyRef) *openapi3.Schema {
	if body == nil || body.Value == nil {
		return nil
	}
	content := body.Value.Content
	for _, mediaType := range []string{"application/json", "application/x-www-form-urlencoded", "multipart/form-data"} {
		if mt, ok := content[mediaType]; ok && mt.Schema != nil {
			return mt.Schema.Value
		}
	}
	return nil
}

func convertProperties(src *openapi3.Schema) ([]FieldSpec, error) {
	required := make(map[string]bool, len(src.Required))
	for _, name := range src.Required {
		required[name] = true
	}

	fields := make([]FieldSpec, 0, len(src.Properties))
	for _, name := range propertyOrder(src) {
		ref := src.Properties[name]
		if ref == nil || ref.Value == nil {
			continue
		}
		field, err := convertSchema(name, ref.Value)
		if err != nil {
			return nil, err
		}
		field.Required = required[name]
		fields = append(fields, field)
	}
	return fields, nil
}

func propertyOrder(src *openapi3.Schema) []string {
	remaining := slices.Sorted(maps.Keys(src.Properties))
	ordered := make([]string, 0, len(remaining))
	for _, name := range stringList(src.Extensions[extensionOrder]) {
		if idx := slices.Index(remaining, name); idx >= 0 {
			ordered = append(ordered, name)
			remaining = slices.Delete(remaining, idx, idx+1)
		}
	}
	return append(ordered, remaining...)
}

func convertSchema(name string, src *openapi3.Schema) (FieldSpec, error) {
	field := FieldSpec{
		Name:    name,
		Format:  src.Format,
		Default: src.Default,
		Label:   stringValue(src.Extensions[extensionLabel]),
	}
	if field.Label == "" {
		field.Label = src.Title
	}

	switch schemaType := firstSchemaType(src.Type); schemaType {
	case "string":
		field.Type = TypeString
		if len(src.Enum) > 0 {
			field.Type = TypeEnum
			for _, option := range src.Enum {
				field.Enum = append(field.Enum, fmt.Sprint(option))
			}
		}
		if src.MinLength != 0 {
			value := int(src.MinLength)
			field.MinLength = &value
		}
		if src.MaxLength != nil {
			value := int(*src.MaxLength)
			field.MaxLength = &value
		}
		field.Pattern = src.Pattern
	case "number", "integer":
		field.Type = TypeNumber
		if src.Min != nil {
			value := *src.Min
			field.Min = &value
		}
		if src.Max != nil {
			value := *src.Max
			field.Max = &value
		}
		if adult, ok := src.Extensions[extensionAdult].(float64); ok {
			field.Adult = &adult
		}
	case "array":
		if src.Items == nil || src.Items.Value == nil {
			return FieldSpec{}, fmt.Errorf("%w: array %q has no items schema", ErrInvalidDefinition, name)
		}
		items, err := convertSchema(name, src.Items.Value)
		if err != nil {
			return FieldSpec{}, err
		}
		items.Name = ""
		items.Label = ""
		field.Type = TypeArray
		field.Items = &items
		if src.MinItems != 0 {
			value := int(src.MinItems)
			field.MinItems = &value
		}
		if src.MaxItems != nil {
			value := int(*src.MaxItems)
			field.MaxItems = &value
		}
	case "object":
		fields, err := convertProperties(src)
		if err != nil {
			return FieldSpec{}, err
		}
		nested, err := extractRules(src.Extensions)
		if err != nil {
			return FieldSpec{}, err
		}
		field.Type = TypeGroup
		field.Fields = fields
		field.Rules = nested
	default:
		return FieldSpec{}, fmt.Errorf("%w: property %q has unsupported type %q", ErrInvalidDefinition, name, schemaType)
	}

	field.Async = stringList(src.Extensions[extensionAsync])
	if gate, ok := src.Extensions[extensionGate].(bool); ok {
		field.GateAsync = gate
	}
	field.Disabled = src.ReadOnly
	return field, nil
}

func extractRules(extensions map[string]any) ([]RuleSpec, error) {
	raw, ok := extensions[extensionRules]
	if !ok || raw == nil {
		return nil, nil
	}
	list, ok := raw.([]any)
	if !ok {
		return nil, fmt.Errorf("%w: %s must be a list", ErrInvalidDefinition, extensionRules)
	}
	out := make([]RuleSpec, 0, len(list))
	for i, item := range list {
		entry, ok := item.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%w: %s[%d] must be an object", ErrInvalidDefinition, extensionRules, i)
		}
		rule := RuleSpec{
			Key:  stringValue(entry["key"]),
			Expr: stringValue(entry["expr"]),
		}
		if extras, ok := entry["extras"].(map[string]any); ok {
			rule.Extras = maps.Clone(extras)
		}
		out = append(out, rule)
	}
	return out, nil
}

func firstSchemaType(types *openapi3.Types) string {
	if types == nil {
		return ""
	}
	values := types.Slice()
	if len(values) == 0 {
		return ""
	}
	return values[0]
}

func stringList(value any) []string {
	switch typed := value.(type) {
	case string:
		if s := strings.TrimSpace(typed); s != "" {
			return []string{s}
		}
	case []any:
		out := make([]string, 0, len(typed))
		for _, item := range typed {
			if s := strings.TrimSpace(stringValue(item)); s != "" {
				out = append(out, s)
			}
		}
		return out
	case []string:
		return slices.Clone(typed)
	}
	return nil
}

func stringValue(value any) string {
	if s, ok := value.(string); ok {
		return s
	}
	return ""
}
