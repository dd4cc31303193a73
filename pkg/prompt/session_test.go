package prompt

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/goliatone/go-formstate/pkg/availability"
	"github.com/goliatone/go-formstate/pkg/form"
	"github.com/goliatone/go-formstate/pkg/rsvp"
)

type stubDriver struct {
	inputs       []string
	passwords    []string
	selectIdx    []int
	confirm      []bool
	infoMessages []string
	asked        []string
	inputPos     int
	passPos      int
	selectPos    int
	confirmPos   int
}

func (s *stubDriver) Input(_ context.Context, cfg InputConfig) (string, error) {
	if s.inputPos >= len(s.inputs) {
		return "", errors.New("no input scripted")
	}
	s.asked = append(s.asked, cfg.Message)
	val := s.inputs[s.inputPos]
	s.inputPos++
	return val, nil
}

func (s *stubDriver) Password(_ context.Context, cfg InputConfig) (string, error) {
	if s.passPos >= len(s.passwords) {
		return "", errors.New("no password scripted")
	}
	s.asked = append(s.asked, cfg.Message)
	val := s.passwords[s.passPos]
	s.passPos++
	return val, nil
}

func (s *stubDriver) Confirm(_ context.Context, _ ConfirmConfig) (bool, error) {
	if s.confirmPos >= len(s.confirm) {
		return false, errors.New("no confirm scripted")
	}
	val := s.confirm[s.confirmPos]
	s.confirmPos++
	return val, nil
}

func (s *stubDriver) Select(_ context.Context, cfg SelectConfig) (int, error) {
	if s.selectPos >= len(s.selectIdx) {
		return -1, errors.New("no select scripted")
	}
	s.asked = append(s.asked, cfg.Message)
	val := s.selectIdx[s.selectPos]
	s.selectPos++
	return val, nil
}

func (s *stubDriver) Info(_ context.Context, msg string) error {
	s.infoMessages = append(s.infoMessages, msg)
	return nil
}

func newRSVP(t *testing.T) *form.Form {
	t.Helper()
	f, err := rsvp.New(availability.NewStatic([]string{"bob"}))
	if err != nil {
		t.Fatalf("rsvp.New returned error: %v", err)
	}
	t.Cleanup(f.Close)
	return f
}

func newSession(driver PromptDriver, opts ...Option) *Session {
	base := []Option{
		WithPromptDriver(driver),
		WithLabels(rsvp.Labels()),
		WithSecretFields(rsvp.FieldPassword, rsvp.FieldConfirmPassword),
	}
	return New(append(base, opts...)...)
}

func TestSessionRunFillsRevisesAndSubmits(t *testing.T) {
	f := newRSVP(t)
	driver := &stubDriver{
		inputs:    []string{"bob", "alice", "17", "30", "", "carol", "alice", "30"},
		passwords: []string{"short1", "party-time", "party-tim", "", "party-time"},
		selectIdx: []int{2, 2},
		confirm:   []bool{true, false, true, true},
	}

	submission, err := newSession(driver).Run(context.Background(), f)
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	wantValues := map[string]any{
		rsvp.FieldUsername:        "alice",
		rsvp.FieldAge:             30.0,
		rsvp.FieldPassword:        "party-time",
		rsvp.FieldConfirmPassword: "party-time",
		rsvp.FieldGuests:          []any{"carol"},
		rsvp.FieldHappiness:       rsvp.Happy,
	}
	if diff := cmp.Diff(wantValues, submission.Values); diff != "" {
		t.Fatalf("submission mismatch (-want +got):\n%s", diff)
	}

	wantInfo := []string{
		"✗ Username is already taken",
		"✗ Age must be an adult",
		"✗ Password must be at least 8 characters (has 6)",
		"✗ Guests #1 is required",
		"✗ Form passwords do not match",
	}
	if diff := cmp.Diff(wantInfo, driver.infoMessages); diff != "" {
		t.Fatalf("info mismatch (-want +got):\n%s", diff)
	}

	wantAsked := []string{
		"Username", "Username", "Age", "Age", "Password", "Password", "Confirm password",
		"Guests #1", "Guests #1", "How are you feeling?",
		"Username", "Age", "Password", "Confirm password", "How are you feeling?",
	}
	if diff := cmp.Diff(wantAsked, driver.asked); diff != "" {
		t.Fatalf("asked mismatch (-want +got):\n%s", diff)
	}
}

func TestSessionDeclineSubmit(t *testing.T) {
	f := newRSVP(t)
	driver := &stubDriver{
		inputs:    []string{"alice", "30"},
		passwords: []string{"party-time", "party-time"},
		selectIdx: []int{1},
		confirm:   []bool{false, false},
	}
	if _, err := newSession(driver).Run(context.Background(), f); !errors.Is(err, ErrDeclined) {
		t.Fatalf("expected ErrDeclined, got %v", err)
	}
	if f.Submitted() {
		t.Fatal("declined session must not submit")
	}
}

func TestSessionTooManyAttempts(t *testing.T) {
	f := newRSVP(t)
	driver := &stubDriver{inputs: []string{"", ""}}
	_, err := newSession(driver, WithMaxAttempts(2)).Run(context.Background(), f)
	if !errors.Is(err, ErrTooManyAttempts) {
		t.Fatalf("expected ErrTooManyAttempts, got %v", err)
	}
	if diff := cmp.Diff([]string{"✗ Username is required", "✗ Username is required"}, driver.infoMessages); diff != "" {
		t.Fatalf("info mismatch (-want +got):\n%s", diff)
	}
}

func TestSessionSkipsDisabledFields(t *testing.T) {
	f := newRSVP(t)
	age, _ := f.Field(rsvp.FieldAge)
	age.Disable()
	driver := &stubDriver{
		inputs:    []string{"alice"},
		passwords: []string{"party-time", "party-time"},
		selectIdx: []int{0},
		confirm:   []bool{false, true},
	}
	submission, err := newSession(driver).Run(context.Background(), f)
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if _, ok := submission.Values[rsvp.FieldAge]; ok {
		t.Fatalf("disabled age leaked into submission: %v", submission.Values)
	}
	if submission.Values[rsvp.FieldHappiness] != rsvp.Sad {
		t.Fatalf("happiness = %v", submission.Values[rsvp.FieldHappiness])
	}
}

func TestDescribe(t *testing.T) {
	got := Describe(form.Errors{
		"required":               true,
		"custom":                 map[string]any{"error": "rule broke"},
		"mystery":                1,
		form.ErrorKeyCheckFailed: "lookup down",
	})
	want := []string{
		"could not be checked: lookup down",
		"custom: rule broke",
		"mystery",
		"is required",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("describe mismatch (-want +got):\n%s", diff)
	}
}
