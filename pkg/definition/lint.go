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

const extensionNamespace = "x-formstate"

// Violation is a single problem found by Lint.
type Violation struct {
	Location string
	Message  string
}

func (v Violation) String() string {
	return v.Location + " -> " + v.Message
}

// KnownExtensions lists the x-formstate extension keys FromOpenAPI reads.
func KnownExtensions() []string {
	return []string{
		extensionAdult,
		extensionAsync,
		extensionGate,
		extensionLabel,
		extensionOrder,
		extensionRules,
	}
}

// Lint checks every x-formstate extension in an OpenAPI document and tries
// to convert each operation that carries a request body. Violations are
// sorted by location. The returned error is reserved for documents that
// cannot be loaded at all.
func Lint(ctx context.Context, raw []byte) ([]Violation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(raw) == 0 {
		return nil, errors.New("definition: openapi document is empty")
	}
	loader := &openapi3.Loader{Context: ctx}
	doc, err := loader.LoadFromData(raw)
	if err != nil {
		return nil, fmt.Errorf("definition: load openapi document: %w", err)
	}
	if doc.Paths == nil {
		return nil, nil
	}

	var out []Violation
	for _, route := range slices.Sorted(maps.Keys(doc.Paths.Map())) {
		item := doc.Paths.Value(route)
		if item == nil {
			continue
		}
		operations := item.Operations()
		for _, method := range slices.Sorted(maps.Keys(operations)) {
			operation := operations[method]
			if operation == nil {
				continue
			}
			id := operation.OperationID
			if id == "" {
				id = method + " " + route
			}
			base := []string{"operation", id}
			out = append(out, lintExtensions(base, operation.Extensions)...)

			schema := requestSchema(operation.RequestBody)
			if schema == nil {
				continue
			}
			out = append(out, lintSchema(append(base, "requestBody"), schema)...)
			if operation.OperationID == "" {
				out = append(out, Violation{Location: formatLocation(base), Message: "operation has a request body but no operationId"})
				continue
			}
			if _, err := FromOpenAPI(ctx, raw, operation.OperationID); err != nil {
				out = append(out, Violation{Location: formatLocation(base), Message: err.Error()})
			}
		}
	}

	slices.SortStableFunc(out, func(a, b Violation) int {
		if c := strings.Compare(a.Location, b.Location); c != 0 {
			return c
		}
		return strings.Compare(a.Message, b.Message)
	})
	return slices.Compact(out), nil
}

func lintSchema(path []string, schema *openapi3.Schema) []Violation {
	if schema == nil {
		return nil
	}
	out := lintExtensions(path, schema.Extensions)
	for _, name := range slices.Sorted(maps.Keys(schema.Properties)) {
		if ref := schema.Properties[name]; ref != nil {
			out = append(out, lintSchema(appendPath(path, "properties."+name), ref.Value)...)
		}
	}
	if schema.Items != nil {
		out = append(out, lintSchema(appendPath(path, "items"), schema.Items.Value)...)
	}
	return out
}

func lintExtensions(path []string, extensions map[string]any) []Violation {
	var out []Violation
	for _, key := range slices.Sorted(maps.Keys(extensions)) {
		if !strings.HasPrefix(key, extensionNamespace) {
			continue
		}
		if msg := checkExtension(key, extensions[key]); msg != "" {
			out = append(out, Violation{Location: formatLocation(path), Message: msg})
		}
	}
	return out
}

func checkExtension(key string, value any) string {
	switch key {
	case extensionAsync:
		switch typed := value.(type) {
		case string:
			return ""
		case []any:
			for _, item := range typed {
				if _, ok := item.(string); !ok {
					return fmt.Sprintf("%s entries must be strings (got %T)", key, item)
				}
			}
			return ""
		}
		return fmt.Sprintf("%s must be a string or a list of strings (got %T)", key, value)
	case extensionGate:
		if _, ok := value.(bool); !ok {
			return fmt.Sprintf("%s must be a boolean (got %T)", key, value)
		}
	case extensionAdult:
		if _, ok := value.(float64); !ok {
			return fmt.Sprintf("%s must be a number (got %T)", key, value)
		}
	case extensionLabel:
		if _, ok := value.(string); !ok {
			return fmt.Sprintf("%s must be a string (got %T)", key, value)
		}
	case extensionOrder:
		list, ok := value.([]any)
		if !ok {
			return fmt.Sprintf("%s must be a list of property names (got %T)", key, value)
		}
		for _, item := range list {
			if _, ok := item.(string); !ok {
				return fmt.Sprintf("%s entries must be strings (got %T)", key, item)
			}
		}
	case extensionRules:
		if _, err := extractRules(map[string]any{key: value}); err != nil {
			return err.Error()
		}
	default:
		return fmt.Sprintf("unsupported extension %q (supported: %s)", key, strings.Join(KnownExtensions(), ", "))
	}
	return ""
}

func appendPath(path []string, segment string) []string {
	next := slices.Clone(path)
	return append(next, segment)
}

func formatLocation(path []string) string {
	return strings.Join(path, " > ")
}
