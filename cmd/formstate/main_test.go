package main

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/goccy/go-json"
	"github.com/google/go-cmp/cmp"

	"github.com/goliatone/go-formstate/pkg/form"
	"github.com/goliatone/go-formstate/pkg/testsupport"
)

var (
	validValues  = filepath.Join("testdata", "values.json")
	takenValues  = filepath.Join("testdata", "values_taken.json")
	goldenValues = filepath.Join("testdata", "submission.golden.json")
	definitions  = filepath.Join("..", "..", "pkg", "definition", "testdata")
)

func quietEnv(t *testing.T) {
	t.Helper()
	t.Setenv("FORMSTATE_LOG_LEVEL", "error")
	t.Setenv("FORMSTATE_LOG_FORMAT", "json")
	t.Setenv("FORMSTATE_TAKEN_USERNAMES", "bob")
}

func runCLI(t *testing.T, args ...string) (map[string]any, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	if err := run(context.Background(), args, &stdout, &stderr); err != nil {
		return nil, err
	}
	var out map[string]any
	if err := json.Unmarshal(stdout.Bytes(), &out); err != nil {
		t.Fatalf("decode output %q: %v", stdout.String(), err)
	}
	return out, nil
}

func TestRunSubmitsValuesFile(t *testing.T) {
	quietEnv(t)
	out, err := runCLI(t, "-values", validValues, "-sanitize")
	if err != nil {
		t.Fatalf("run returned error: %v", err)
	}
	if id, _ := out["id"].(string); id == "" {
		t.Fatalf("missing submission id: %v", out)
	}

	got, _ := json.MarshalIndent(out["values"], "", "  ")
	if testsupport.WriteMaybeGolden(t, goldenValues, got) {
		return
	}
	want := testsupport.MustDecodeJSON(t, goldenValues)
	if diff := cmp.Diff(want, out["values"]); diff != "" {
		t.Fatalf("values mismatch (-want +got):\n%s", diff)
	}
}

func TestRunReportsInvalidValues(t *testing.T) {
	quietEnv(t)
	_, err := runCLI(t, "-values", takenValues)
	if !errors.Is(err, form.ErrSubmitInvalid) {
		t.Fatalf("expected ErrSubmitInvalid, got %v", err)
	}
	for _, want := range []string{"username: is already taken", "age: must be an adult"} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("error %q does not mention %q", err, want)
		}
	}
}

func TestRunWithSQLDirectory(t *testing.T) {
	quietEnv(t)
	t.Setenv("FORMSTATE_AVAILABILITY_DSN", ":memory:")

	if _, err := runCLI(t, "-values", validValues); err != nil {
		t.Fatalf("run returned error: %v", err)
	}
	if _, err := runCLI(t, "-values", takenValues); !errors.Is(err, form.ErrSubmitInvalid) {
		t.Fatalf("expected ErrSubmitInvalid, got %v", err)
	}
}

func TestRunWithHTTPDirectory(t *testing.T) {
	quietEnv(t)
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"available": true}`))
	}))
	defer srv.Close()
	t.Setenv("FORMSTATE_AVAILABILITY_URL", srv.URL)

	out, err := runCLI(t, "-values", validValues)
	if err != nil {
		t.Fatalf("run returned error: %v", err)
	}
	values, _ := out["values"].(map[string]any)
	if values["username"] != "alice" || calls.Load() != 1 {
		t.Fatalf("username = %v, calls = %d", values["username"], calls.Load())
	}
}

func TestRunWithDefinitionFile(t *testing.T) {
	quietEnv(t)
	out, err := runCLI(t, "-definition", filepath.Join(definitions, "rsvp.yaml"), "-values", validValues)
	if err != nil {
		t.Fatalf("run returned error: %v", err)
	}
	values, _ := out["values"].(map[string]any)
	if diff := cmp.Diff([]any{"carol", "<b>dave</b>"}, values["guests"]); diff != "" {
		t.Fatalf("guests mismatch (-want +got):\n%s", diff)
	}
}

func TestRunWithOpenAPIOperation(t *testing.T) {
	quietEnv(t)
	out, err := runCLI(t,
		"-openapi", filepath.Join(definitions, "rsvp_openapi.yaml"),
		"-operation", "createRSVP",
		"-values", validValues,
	)
	if err != nil {
		t.Fatalf("run returned error: %v", err)
	}
	values, _ := out["values"].(map[string]any)
	want := map[string]any{"city": nil, "zip": nil}
	if diff := cmp.Diff(want, values["address"]); diff != "" {
		t.Fatalf("address mismatch (-want +got):\n%s", diff)
	}
}

func TestParseFlagsRejectsConflicts(t *testing.T) {
	var stderr bytes.Buffer
	cases := [][]string{
		{"-definition", "a.yaml", "-openapi", "b.json", "-operation", "x"},
		{"-openapi", "b.json"},
		{"-unknown"},
	}
	for _, args := range cases {
		if _, err := parseFlags(args, &stderr); err == nil {
			t.Fatalf("parseFlags(%v) expected error", args)
		}
	}
}
