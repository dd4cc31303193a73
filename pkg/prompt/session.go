// Package prompt fills a form interactively. Each field is asked in
// declaration order and re-asked while its own validators reject the
// answer; the session submits once the whole form settles VALID.
package prompt

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/goliatone/go-formstate/pkg/form"
)

const defaultMaxAttempts = 3

// Session drives a PromptDriver over a form.
type Session struct {
	driver      PromptDriver
	labels      map[string]string
	secret      map[string]bool
	maxAttempts int
	theme       Theme
	logger      *zap.SugaredLogger
}

// New constructs a Session. Without WithPromptDriver it talks to the
// terminal through survey.
func New(opts ...Option) *Session {
	s := &Session{
		labels:      make(map[string]string),
		secret:      make(map[string]bool),
		maxAttempts: defaultMaxAttempts,
		theme:       Theme{ErrorPrefix: "✗ "},
		logger:      zap.NewNop().Sugar(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	if s.driver == nil {
		s.driver = NewSurveyDriver(nil)
	}
	return s
}

// Run asks for every enabled field, offers to revise answers while the form
// is INVALID, and submits once the user confirms. Declining either question
// returns ErrDeclined.
func (s *Session) Run(ctx context.Context, f *form.Form) (form.Submission, error) {
	if err := s.fillGroup(ctx, f.Root(), false); err != nil {
		return form.Submission{}, err
	}

	for {
		status, err := f.Wait(ctx)
		if err != nil {
			return form.Submission{}, err
		}
		if status != form.StatusInvalid {
			break
		}
		if err := s.reportTree(ctx, f.Root()); err != nil {
			return form.Submission{}, err
		}
		again, err := s.driver.Confirm(ctx, ConfirmConfig{
			Message: "Some answers need attention. Revise them?",
			Default: true,
		})
		if err != nil {
			return form.Submission{}, err
		}
		if !again {
			return form.Submission{}, fmt.Errorf("%w: form is %s", ErrDeclined, status)
		}
		if err := s.fillGroup(ctx, f.Root(), true); err != nil {
			return form.Submission{}, err
		}
	}

	ok, err := s.driver.Confirm(ctx, ConfirmConfig{Message: "Submit?", Default: true})
	if err != nil {
		return form.Submission{}, err
	}
	if !ok {
		return form.Submission{}, ErrDeclined
	}
	return f.Submit(ctx)
}

// fillGroup asks the group's children in order. When revising, only
// invalid children are asked again, plus every direct field of a group
// whose own validators fail.
func (s *Session) fillGroup(ctx context.Context, g *form.Group, revise bool) error {
	groupFailing := revise && len(g.Errors()) > 0
	for _, name := range g.Names() {
		child, err := g.Child(name)
		if err != nil {
			return err
		}
		if child.Disabled() {
			continue
		}
		if revise && child.Status() != form.StatusInvalid {
			if _, isField := child.(*form.Field); !isField || !groupFailing {
				continue
			}
		}
		switch n := child.(type) {
		case *form.Field:
			err = s.fillField(ctx, n, revise)
		case *form.Array:
			err = s.fillArray(ctx, n, revise)
		case *form.Group:
			err = s.fillGroup(ctx, n, revise)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *Session) fillField(ctx context.Context, field *form.Field, revise bool) error {
	label := s.label(field)
	for attempt := 1; ; attempt++ {
		value, err := s.ask(ctx, field, label, revise)
		if err != nil {
			return err
		}
		if err := field.SetValue(value); err != nil {
			return fmt.Errorf("prompt: %s: %w", label, err)
		}
		status, err := settle(ctx, field)
		if err != nil {
			return err
		}
		s.logger.Debugw("prompt answered", "path", field.Path(), "status", status, "attempt", attempt)
		if status != form.StatusInvalid {
			return nil
		}
		if err := s.report(ctx, label, field.Errors()); err != nil {
			return err
		}
		if attempt >= s.maxAttempts {
			return fmt.Errorf("%w: %s", ErrTooManyAttempts, label)
		}
	}
}

func (s *Session) ask(ctx context.Context, field *form.Field, label string, revise bool) (any, error) {
	current := field.Value()
	switch field.Kind() {
	case form.KindEnum:
		options := field.Options()
		idx, err := s.driver.Select(ctx, SelectConfig{
			Message:      label,
			Options:      options,
			DefaultIndex: indexOf(options, fmt.Sprint(current)),
		})
		if err != nil {
			return nil, err
		}
		if idx < 0 || idx >= len(options) {
			return nil, nil
		}
		return options[idx], nil
	case form.KindNumber:
		answer, err := s.driver.Input(ctx, InputConfig{
			Message:   label,
			Default:   formatNumber(current),
			Validator: validateNumber,
		})
		if err != nil {
			return nil, err
		}
		return parseNumber(answer)
	}

	text, _ := current.(string)
	if s.secret[field.Path()] {
		cfg := InputConfig{Message: label}
		if revise && text != "" {
			cfg.Help = "leave empty to keep the current value"
		}
		answer, err := s.driver.Password(ctx, cfg)
		if err != nil {
			return nil, err
		}
		if answer == "" && revise {
			return text, nil
		}
		return answer, nil
	}
	return s.driver.Input(ctx, InputConfig{Message: label, Default: text})
}

// fillArray re-asks invalid entries and offers removals when revising, then
// keeps asking for new entries until the user declines.
func (s *Session) fillArray(ctx context.Context, a *form.Array, revise bool) error {
	label := s.label(a)
	if revise {
		for _, item := range a.Children() {
			field, ok := item.(*form.Field)
			if !ok || item.Status() != form.StatusInvalid {
				continue
			}
			if err := s.fillField(ctx, field, true); err != nil {
				return err
			}
		}
	}
	for revise && a.Len() > 0 {
		remove, err := s.driver.Confirm(ctx, ConfirmConfig{Message: fmt.Sprintf("Remove an entry from %s?", label)})
		if err != nil {
			return err
		}
		if !remove {
			break
		}
		options := make([]string, 0, a.Len())
		for _, item := range a.Children() {
			options = append(options, fmt.Sprint(item.Value()))
		}
		idx, err := s.driver.Select(ctx, SelectConfig{Message: "Which one?", Options: options})
		if err != nil {
			return err
		}
		if idx < 0 {
			break
		}
		if err := a.RemoveAt(idx); err != nil {
			return err
		}
	}

	for {
		add, err := s.driver.Confirm(ctx, ConfirmConfig{Message: fmt.Sprintf("Add an entry to %s?", label)})
		if err != nil {
			return err
		}
		if !add {
			break
		}
		item, err := a.Append(nil)
		if err != nil {
			return fmt.Errorf("prompt: %s: %w", label, err)
		}
		if err := s.fillField(ctx, item, false); err != nil {
			_ = a.RemoveAt(a.Len() - 1)
			return err
		}
	}

	if errs := a.Errors(); len(errs) > 0 {
		return s.report(ctx, label, errs)
	}
	return nil
}

func (s *Session) report(ctx context.Context, label string, errs form.Errors) error {
	for _, msg := range Describe(errs) {
		if err := s.driver.Info(ctx, fmt.Sprintf("%s%s %s", s.theme.ErrorPrefix, label, msg)); err != nil {
			return err
		}
	}
	return nil
}

// reportTree reports the errors of every invalid node, parents after
// children.
func (s *Session) reportTree(ctx context.Context, n form.Node) error {
	if n.Disabled() || n.Status() != form.StatusInvalid {
		return nil
	}
	var children []form.Node
	switch c := n.(type) {
	case *form.Group:
		for _, name := range c.Names() {
			child, _ := c.Child(name)
			children = append(children, child)
		}
	case *form.Array:
		children = c.Children()
	}
	for _, child := range children {
		if err := s.reportTree(ctx, child); err != nil {
			return err
		}
	}
	return s.report(ctx, s.label(n), n.Errors())
}

func (s *Session) label(n form.Node) string {
	path := n.Path()
	if label, ok := s.labels[path]; ok {
		return label
	}
	if path == "" {
		return "Form"
	}
	idx := strings.LastIndex(path, ".")
	last := path[idx+1:]
	if parent, ok := n.Parent().(*form.Array); ok {
		if i, err := strconv.Atoi(last); err == nil {
			return fmt.Sprintf("%s #%d", s.label(parent), i+1)
		}
	}
	return last
}

// settle blocks until n leaves PENDING or ctx is done.
func settle(ctx context.Context, n form.Node) (form.Status, error) {
	changed := make(chan struct{}, 1)
	unsubscribe := n.Subscribe(func(form.Event) {
		select {
		case changed <- struct{}{}:
		default:
		}
	})
	defer unsubscribe()
	for {
		status := n.Status()
		if status != form.StatusPending {
			return status, nil
		}
		select {
		case <-ctx.Done():
			return status, ctx.Err()
		case <-changed:
		}
	}
}

func formatNumber(v any) string {
	n, ok := form.ToNumber(v)
	if !ok {
		return ""
	}
	return strconv.FormatFloat(n, 'f', -1, 64)
}

func validateNumber(answer string) error {
	_, err := parseNumber(answer)
	return err
}

func parseNumber(answer string) (any, error) {
	answer = strings.TrimSpace(answer)
	if answer == "" {
		return nil, nil
	}
	n, err := strconv.ParseFloat(answer, 64)
	if err != nil {
		return nil, fmt.Errorf("%q is not a number", answer)
	}
	return n, nil
}
