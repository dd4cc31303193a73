package main

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
)

func fixture(name string) string {
	return filepath.Join("..", "..", "pkg", "definition", "testdata", name)
}

func TestRunCleanDocument(t *testing.T) {
	var stdout, stderr bytes.Buffer
	if err := run(context.Background(), []string{fixture("rsvp_openapi.yaml")}, &stdout, &stderr); err != nil {
		t.Fatalf("run returned error: %v (stderr %s)", err, stderr.String())
	}
	if got := stdout.String(); got != "1 document(s) ok\n" {
		t.Fatalf("stdout = %q", got)
	}
}

func TestRunReportsViolations(t *testing.T) {
	var stdout, stderr bytes.Buffer
	path := fixture("lint_openapi.yaml")
	err := run(context.Background(), []string{path}, &stdout, &stderr)
	if !errors.Is(err, errViolations) {
		t.Fatalf("expected errViolations, got %v", err)
	}
	lines := strings.Split(strings.TrimSpace(stderr.String()), "\n")
	if len(lines) != 7 {
		t.Fatalf("expected 7 violation lines, got %d:\n%s", len(lines), stderr.String())
	}
	want := path + ": operation > POST /notes -> operation has a request body but no operationId"
	if lines[0] != want {
		t.Fatalf("first line = %q, want %q", lines[0], want)
	}
}

func TestRunRequiresPaths(t *testing.T) {
	var stdout, stderr bytes.Buffer
	if err := run(context.Background(), nil, &stdout, &stderr); err == nil {
		t.Fatal("expected error without paths")
	}
	if err := run(context.Background(), []string{"missing.yaml"}, &stdout, &stderr); err == nil {
		t.Fatal("expected error for unreadable file")
	}
}
