package main

import (
	"context"
	"fmt"
	"maps"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/goliatone/go-formstate/pkg/form"
	"github.com/goliatone/go-formstate/pkg/prompt"
)

// submitValues applies a JSON answers file, waits for async validation, and
// submits. An invalid form is reported with one entry per failing node.
func submitValues(ctx context.Context, f *form.Form, path string, timeout time.Duration) (form.Submission, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return form.Submission{}, fmt.Errorf("read values: %w", err)
	}
	var values map[string]any
	if err := json.Unmarshal(raw, &values); err != nil {
		return form.Submission{}, fmt.Errorf("decode values: %w", err)
	}
	if err := applyValues(f, "", values); err != nil {
		return form.Submission{}, err
	}

	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := settleAll(waitCtx, f); err != nil {
		return form.Submission{}, fmt.Errorf("wait for validation: %w", err)
	}

	submission, err := f.Submit(ctx)
	if err != nil {
		if problems := describeInvalid(f.Root()); len(problems) > 0 {
			return form.Submission{}, fmt.Errorf("%w:\n  %s", err, strings.Join(problems, "\n  "))
		}
		return form.Submission{}, err
	}
	return submission, nil
}

func applyValues(f *form.Form, prefix string, values map[string]any) error {
	for _, key := range slices.Sorted(maps.Keys(values)) {
		path := key
		if prefix != "" {
			path = prefix + "." + key
		}
		node, err := f.Get(path)
		if err != nil {
			return err
		}
		value := values[key]
		switch node.(type) {
		case *form.Group:
			nested, ok := value.(map[string]any)
			if !ok {
				return fmt.Errorf("values: %s expects an object, got %T", path, value)
			}
			if err := applyValues(f, path, nested); err != nil {
				return err
			}
		case *form.Array:
			items, ok := value.([]any)
			if !ok {
				return fmt.Errorf("values: %s expects a list, got %T", path, value)
			}
			for _, item := range items {
				if _, err := f.Append(path, item); err != nil {
					return err
				}
			}
		default:
			if err := f.SetValue(path, value); err != nil {
				return err
			}
		}
	}
	return nil
}

// settleAll waits until no enabled node is PENDING. Form.Wait is not
// enough here: an INVALID root can still hide a pending lookup whose
// result belongs in the report.
func settleAll(ctx context.Context, f *form.Form) error {
	changed := make(chan struct{}, 1)
	unsubscribe := f.Subscribe(func(form.Event) {
		select {
		case changed <- struct{}{}:
		default:
		}
	})
	defer unsubscribe()
	for anyPending(f.Root()) {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-changed:
		}
	}
	return nil
}

func anyPending(n form.Node) bool {
	if n.Disabled() {
		return false
	}
	if n.Status() == form.StatusPending {
		return true
	}
	switch c := n.(type) {
	case *form.Group:
		for _, name := range c.Names() {
			if child, err := c.Child(name); err == nil && anyPending(child) {
				return true
			}
		}
	case *form.Array:
		for _, child := range c.Children() {
			if anyPending(child) {
				return true
			}
		}
	}
	return false
}

// describeInvalid lists "path: message" for every invalid node, children
// before their parents.
func describeInvalid(n form.Node) []string {
	if n.Disabled() || n.Status() != form.StatusInvalid {
		return nil
	}
	var out []string
	switch c := n.(type) {
	case *form.Group:
		for _, name := range c.Names() {
			child, _ := c.Child(name)
			out = append(out, describeInvalid(child)...)
		}
	case *form.Array:
		for _, child := range c.Children() {
			out = append(out, describeInvalid(child)...)
		}
	}
	label := n.Path()
	if label == "" {
		label = "form"
	}
	for _, msg := range prompt.Describe(n.Errors()) {
		out = append(out, label+": "+msg)
	}
	return out
}
