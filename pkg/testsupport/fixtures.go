// Package testsupport holds helpers shared by package tests: fixture and
// golden file access, a scripted availability checker, and settle helpers.
package testsupport

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/goliatone/go-formstate/pkg/form"
)

// DefaultTimeout bounds every wait performed by the helpers.
const DefaultTimeout = 2 * time.Second

// MustReadFixture reads a fixture file and returns its raw bytes.
func MustReadFixture(t *testing.T, path string) []byte {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read fixture: %v", err)
	}
	return data
}

// MustDecodeJSON reads a JSON fixture into a generic value map.
func MustDecodeJSON(t *testing.T, path string) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(MustReadFixture(t, path), &out); err != nil {
		t.Fatalf("decode fixture %s: %v", path, err)
	}
	return out
}

// WriteMaybeGolden updates a golden file when UPDATE_GOLDENS is set. Returns
// true if the golden was written (test should exit early).
func WriteMaybeGolden(t *testing.T, path string, data []byte) bool {
	t.Helper()
	if os.Getenv("UPDATE_GOLDENS") == "" {
		return false
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir golden dir: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write golden: %v", err)
	}
	return true
}

// Context returns a context bounded by DefaultTimeout and cancelled when
// the test ends.
func Context(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), DefaultTimeout)
	t.Cleanup(cancel)
	return ctx
}

// Settle waits until the form leaves PENDING and returns its status.
func Settle(t *testing.T, f *form.Form) form.Status {
	t.Helper()
	status, err := f.Wait(Context(t))
	if err != nil {
		t.Fatalf("wait for form: %v", err)
	}
	return status
}
