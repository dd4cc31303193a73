package prompt

import (
	"fmt"
	"strings"

	"github.com/goliatone/go-formstate/pkg/form"
	"github.com/goliatone/go-formstate/pkg/validators"
)

// Describe turns an error set into readable sentences, one per key, in key
// order. Unknown keys fall back to the key itself.
func Describe(errs form.Errors) []string {
	keys := errs.Keys()
	out := make([]string, 0, len(keys))
	for _, key := range keys {
		out = append(out, describe(key, errs[key]))
	}
	return out
}

func describe(key string, payload any) string {
	switch p := payload.(type) {
	case validators.LengthError:
		if key == validators.KeyMaxLength {
			return fmt.Sprintf("must be at most %d characters (has %d)", p.RequiredLength, p.ActualLength)
		}
		return fmt.Sprintf("must be at least %d characters (has %d)", p.RequiredLength, p.ActualLength)
	case validators.BoundError:
		if key == validators.KeyMax {
			return fmt.Sprintf("must be at most %g", p.Limit)
		}
		return fmt.Sprintf("must be at least %g", p.Limit)
	case validators.PatternError:
		return fmt.Sprintf("must match %s", p.RequiredPattern)
	case validators.OneOfError:
		return "must be one of " + strings.Join(p.Allowed, ", ")
	case validators.CountError:
		if key == validators.KeyMaxItems {
			return fmt.Sprintf("may have at most %d entries", p.Limit)
		}
		return fmt.Sprintf("needs at least %d entries", p.Limit)
	}

	switch key {
	case validators.KeyRequired:
		return "is required"
	case validators.KeyAdult:
		return "must be an adult"
	case validators.KeyPasswordMatch:
		return "passwords do not match"
	case validators.KeyUsernameTaken:
		return "is already taken"
	case form.ErrorKeyCheckFailed:
		return fmt.Sprintf("could not be checked: %v", payload)
	}
	if m, ok := payload.(map[string]any); ok {
		if msg, ok := m["error"].(string); ok {
			return fmt.Sprintf("%s: %s", key, msg)
		}
	}
	return key
}
