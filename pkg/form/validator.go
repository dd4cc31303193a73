package form

import (
	"context"
	"fmt"
	"sort"
)

// ErrorKeyCheckFailed is reported when an asynchronous validator fails
// instead of producing a verdict.
const ErrorKeyCheckFailed = "checkFailed"

// Errors maps an error key (for example "required" or "minlength") to an
// optional structured payload. A nil or empty map means "no error".
type Errors map[string]any

// Has reports whether key is present.
func (e Errors) Has(key string) bool {
	_, ok := e[key]
	return ok
}

// Keys returns the error keys in lexical order.
func (e Errors) Keys() []string {
	if len(e) == 0 {
		return nil
	}
	keys := make([]string, 0, len(e))
	for key := range e {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// Clone returns a shallow copy, or nil when empty.
func (e Errors) Clone() Errors {
	if len(e) == 0 {
		return nil
	}
	out := make(Errors, len(e))
	for k, v := range e {
		out[k] = v
	}
	return out
}

// MergeErrors combines error sets in order. The first set to report a key
// keeps it. The result is nil when no set reports anything.
func MergeErrors(sets ...Errors) Errors {
	var out Errors
	for _, set := range sets {
		for key, payload := range set {
			if out == nil {
				out = make(Errors, len(set))
			}
			if _, exists := out[key]; exists {
				continue
			}
			out[key] = payload
		}
	}
	return out
}

// Validator is a synchronous rule over a single value. Implementations must
// be deterministic and free of side effects.
type Validator interface {
	Validate(value any) Errors
}

// ValidatorFunc adapts a function into a Validator.
type ValidatorFunc func(value any) Errors

// Validate delegates to the underlying function.
func (fn ValidatorFunc) Validate(value any) Errors {
	return fn(value)
}

// AsyncValidator checks a value out of band. ctx is cancelled when the
// dispatch is superseded by a newer value; results from a superseded
// dispatch are discarded regardless. A non-nil error is reported on the
// field as ErrorKeyCheckFailed.
type AsyncValidator interface {
	ValidateAsync(ctx context.Context, value any) (Errors, error)
}

// AsyncValidatorFunc adapts a function into an AsyncValidator.
type AsyncValidatorFunc func(ctx context.Context, value any) (Errors, error)

// ValidateAsync delegates to the underlying function.
func (fn AsyncValidatorFunc) ValidateAsync(ctx context.Context, value any) (Errors, error) {
	return fn(ctx, value)
}

// GroupValidator is a cross-field rule. values holds every enabled child of
// the group keyed by name. Errors attach to the group itself.
type GroupValidator interface {
	ValidateGroup(values map[string]any) Errors
}

// GroupValidatorFunc adapts a function into a GroupValidator.
type GroupValidatorFunc func(values map[string]any) Errors

// ValidateGroup delegates to the underlying function.
func (fn GroupValidatorFunc) ValidateGroup(values map[string]any) Errors {
	return fn(values)
}

// ArrayValidator is a rule over the ordered values of an array.
type ArrayValidator interface {
	ValidateArray(values []any) Errors
}

// ArrayValidatorFunc adapts a function into an ArrayValidator.
type ArrayValidatorFunc func(values []any) Errors

// ValidateArray delegates to the underlying function.
func (fn ArrayValidatorFunc) ValidateArray(values []any) Errors {
	return fn(values)
}

func runValidators(validators []Validator, value any) Errors {
	var results []Errors
	for _, v := range validators {
		if v == nil {
			continue
		}
		if errs := v.Validate(value); len(errs) > 0 {
			results = append(results, errs)
		}
	}
	return MergeErrors(results...)
}

// invokeAsync never lets a validator escape without a verdict: failures and
// panics both become checkFailed.
func invokeAsync(ctx context.Context, v AsyncValidator, value any) (errs Errors) {
	defer func() {
		if r := recover(); r != nil {
			errs = Errors{ErrorKeyCheckFailed: fmt.Sprintf("panic: %v", r)}
		}
	}()
	result, err := v.ValidateAsync(ctx, value)
	if err != nil {
		return Errors{ErrorKeyCheckFailed: err.Error()}
	}
	return result
}
