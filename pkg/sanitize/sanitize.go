// Package sanitize strips markup from submitted strings.
package sanitize

import (
	"html"
	"strings"
	"sync"

	"github.com/microcosm-cc/bluemonday"
)

var (
	strictPolicyOnce sync.Once
	strictPolicy     *bluemonday.Policy
)

// Strict removes every HTML element and attribute from raw and trims the
// result. Entities bluemonday escapes on the way out are decoded again, so
// "Tom & Jerry" survives unchanged. It fits form.WithStringSanitizer.
func Strict(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return ""
	}
	cleaned := policy().Sanitize(trimmed)
	return strings.TrimSpace(html.UnescapeString(cleaned))
}

func policy() *bluemonday.Policy {
	strictPolicyOnce.Do(func() {
		strictPolicy = bluemonday.StrictPolicy()
	})
	return strictPolicy
}
