// Package validators holds the built-in rules used by the reference form and
// by definitions. Every rule skips empty values except Required and Adult,
// so optional fields stay valid until the user types something.
package validators

import (
	"context"
	"fmt"
	"regexp"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/goliatone/go-formstate/pkg/availability"
	"github.com/goliatone/go-formstate/pkg/form"
)

// Error keys reported by the built-in rules.
const (
	KeyRequired      = "required"
	KeyMinLength     = "minlength"
	KeyMaxLength     = "maxlength"
	KeyMin           = "min"
	KeyMax           = "max"
	KeyPattern       = "pattern"
	KeyOneOf         = "oneOf"
	KeyAdult         = "adult"
	KeyPasswordMatch = "passwordMatch"
	KeyUsernameTaken = "usernameTaken"
	KeyMinItems      = "minItems"
	KeyMaxItems      = "maxItems"
)

// LengthError is the payload of minlength and maxlength.
type LengthError struct {
	RequiredLength int `json:"requiredLength"`
	ActualLength   int `json:"actualLength"`
}

// BoundError is the payload of min and max.
type BoundError struct {
	Limit  float64 `json:"limit"`
	Actual float64 `json:"actual"`
}

// PatternError is the payload of pattern.
type PatternError struct {
	RequiredPattern string `json:"requiredPattern"`
	ActualValue     string `json:"actualValue"`
}

// OneOfError is the payload of oneOf.
type OneOfError struct {
	Allowed []string `json:"allowed"`
	Actual  any      `json:"actual"`
}

// CountError is the payload of minItems and maxItems.
type CountError struct {
	Limit  int `json:"limit"`
	Actual int `json:"actual"`
}

func isEmpty(v any) bool {
	if v == nil {
		return true
	}
	s, ok := v.(string)
	return ok && s == ""
}

// Required reports {required: true} for nil or the empty string.
func Required() form.Validator {
	return form.ValidatorFunc(func(v any) form.Errors {
		if isEmpty(v) {
			return form.Errors{KeyRequired: true}
		}
		return nil
	})
}

// MinLength reports {minlength: LengthError} when a string has fewer than n
// characters.
func MinLength(n int) form.Validator {
	return form.ValidatorFunc(func(v any) form.Errors {
		s, ok := v.(string)
		if !ok || s == "" {
			return nil
		}
		if actual := utf8.RuneCountInString(s); actual < n {
			return form.Errors{KeyMinLength: LengthError{RequiredLength: n, ActualLength: actual}}
		}
		return nil
	})
}

// MaxLength reports {maxlength: LengthError} when a string has more than n
// characters.
func MaxLength(n int) form.Validator {
	return form.ValidatorFunc(func(v any) form.Errors {
		s, ok := v.(string)
		if !ok {
			return nil
		}
		if actual := utf8.RuneCountInString(s); actual > n {
			return form.Errors{KeyMaxLength: LengthError{RequiredLength: n, ActualLength: actual}}
		}
		return nil
	})
}

// Min reports {min: BoundError} for numbers below limit.
func Min(limit float64) form.Validator {
	return form.ValidatorFunc(func(v any) form.Errors {
		n, ok := form.ToNumber(v)
		if !ok || n >= limit {
			return nil
		}
		return form.Errors{KeyMin: BoundError{Limit: limit, Actual: n}}
	})
}

// Max reports {max: BoundError} for numbers above limit.
func Max(limit float64) form.Validator {
	return form.ValidatorFunc(func(v any) form.Errors {
		n, ok := form.ToNumber(v)
		if !ok || n <= limit {
			return nil
		}
		return form.Errors{KeyMax: BoundError{Limit: limit, Actual: n}}
	})
}

// Pattern compiles expr, anchored to the whole value, and reports
// {pattern: PatternError} for non-matching strings.
func Pattern(expr string) (form.Validator, error) {
	expr = strings.TrimSpace(expr)
	anchored := expr
	if !strings.HasPrefix(anchored, "^") {
		anchored = "^" + anchored
	}
	if !strings.HasSuffix(anchored, "$") {
		anchored += "$"
	}
	re, err := regexp.Compile(anchored)
	if err != nil {
		return nil, fmt.Errorf("validators: pattern %q: %w", expr, err)
	}
	return form.ValidatorFunc(func(v any) form.Errors {
		s, ok := v.(string)
		if !ok || s == "" || re.MatchString(s) {
			return nil
		}
		return form.Errors{KeyPattern: PatternError{RequiredPattern: anchored, ActualValue: s}}
	}), nil
}

// MustPattern is Pattern that panics on an invalid expression.
func MustPattern(expr string) form.Validator {
	v, err := Pattern(expr)
	if err != nil {
		panic(err)
	}
	return v
}

// OneOf reports {oneOf: OneOfError} for strings outside allowed.
func OneOf(allowed ...string) form.Validator {
	options := slices.Clone(allowed)
	return form.ValidatorFunc(func(v any) form.Errors {
		if isEmpty(v) {
			return nil
		}
		if s, ok := v.(string); ok && slices.Contains(options, s) {
			return nil
		}
		return form.Errors{KeyOneOf: OneOfError{Allowed: options, Actual: v}}
	})
}

// Adult reports {adult: true} when the value is missing or below minAge.
func Adult(minAge float64) form.Validator {
	return form.ValidatorFunc(func(v any) form.Errors {
		n, ok := form.ToNumber(v)
		if !ok || n < minAge {
			return form.Errors{KeyAdult: true}
		}
		return nil
	})
}

// PasswordMatch reports {passwordMatch: true} on the group when the two
// named siblings differ. A disabled sibling is absent and compares as nil.
func PasswordMatch(password, confirm string) form.GroupValidator {
	return form.GroupValidatorFunc(func(values map[string]any) form.Errors {
		if values[password] != values[confirm] {
			return form.Errors{KeyPasswordMatch: true}
		}
		return nil
	})
}

// MinItems reports {minItems: CountError} for arrays shorter than n.
func MinItems(n int) form.ArrayValidator {
	return form.ArrayValidatorFunc(func(values []any) form.Errors {
		if len(values) < n {
			return form.Errors{KeyMinItems: CountError{Limit: n, Actual: len(values)}}
		}
		return nil
	})
}

// MaxItems reports {maxItems: CountError} for arrays longer than n.
func MaxItems(n int) form.ArrayValidator {
	return form.ArrayValidatorFunc(func(values []any) form.Errors {
		if len(values) > n {
			return form.Errors{KeyMaxItems: CountError{Limit: n, Actual: len(values)}}
		}
		return nil
	})
}

// UsernameAvailable asks checker about the current value. An available name
// is no error, a taken one is {usernameTaken: true}, and a failing lookup is
// returned as an error, which the engine reports as checkFailed.
func UsernameAvailable(checker availability.Checker) form.AsyncValidator {
	return form.AsyncValidatorFunc(func(ctx context.Context, v any) (form.Errors, error) {
		if checker == nil {
			return nil, fmt.Errorf("validators: no availability checker configured")
		}
		candidate, _ := v.(string)
		available, err := checker.CheckAvailability(ctx, candidate)
		if err != nil {
			return nil, err
		}
		if !available {
			return form.Errors{KeyUsernameTaken: true}, nil
		}
		return nil, nil
	})
}
