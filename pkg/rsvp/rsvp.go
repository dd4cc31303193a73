// Package rsvp assembles the party RSVP form: a username checked against a
// directory, age, password with confirmation, a guest list, and a mood.
package rsvp

import (
	"fmt"

	"github.com/goliatone/go-formstate/pkg/availability"
	"github.com/goliatone/go-formstate/pkg/form"
	"github.com/goliatone/go-formstate/pkg/validators"
)

// Field names of the reference form.
const (
	FieldUsername        = "username"
	FieldAge             = "age"
	FieldPassword        = "password"
	FieldConfirmPassword = "confirmPassword"
	FieldGuests          = "guests"
	FieldHappiness       = "happiness"
)

// Happiness options, in display order.
const (
	Sad     = "sad"
	Neutral = "neutral"
	Happy   = "happy"
)

const (
	// MinAge is the age the adult rule enforces.
	MinAge = 18
	// MinPasswordLength is the minimum password length in characters.
	MinPasswordLength = 8
)

// HappinessOptions lists the enum values of the happiness field.
func HappinessOptions() []string {
	return []string{Sad, Neutral, Happy}
}

// Labels returns prompt labels keyed by field name.
func Labels() map[string]string {
	return map[string]string{
		FieldUsername:        "Username",
		FieldAge:             "Age",
		FieldPassword:        "Password",
		FieldConfirmPassword: "Confirm password",
		FieldGuests:          "Guests",
		FieldHappiness:       "How are you feeling?",
	}
}

// New builds the RSVP form. The username is checked against checker once
// it is non-empty; opts are forwarded to form.New.
func New(checker availability.Checker, opts ...form.Option) (*form.Form, error) {
	if checker == nil {
		return nil, fmt.Errorf("rsvp: checker is required")
	}
	root, err := form.NewGroup([]form.Entry{
		form.Child(FieldUsername, form.NewField(form.KindString, "",
			form.WithValidators(validators.Required()),
			form.WithAsyncValidators(validators.UsernameAvailable(checker)),
			form.GateAsyncOnSync(),
		)),
		form.Child(FieldAge, form.NewField(form.KindNumber, nil,
			form.WithValidators(validators.Adult(MinAge)),
		)),
		form.Child(FieldPassword, form.NewField(form.KindString, "",
			form.WithValidators(validators.Required(), validators.MinLength(MinPasswordLength)),
		)),
		form.Child(FieldConfirmPassword, form.NewField(form.KindString, "",
			form.WithValidators(validators.Required()),
		)),
		form.Child(FieldGuests, form.MustArray(nil,
			form.WithItemKind(form.KindString),
			form.WithItemOptions(form.WithValidators(validators.Required())),
		)),
		form.Child(FieldHappiness, form.NewField(form.KindEnum, Neutral,
			form.WithEnumOptions(HappinessOptions()...),
			form.WithValidators(validators.Required(), validators.OneOf(HappinessOptions()...)),
		)),
	}, form.WithGroupValidators(validators.PasswordMatch(FieldPassword, FieldConfirmPassword)))
	if err != nil {
		return nil, fmt.Errorf("rsvp: build root: %w", err)
	}
	return form.New(root, opts...)
}

// AddGuest appends a guest name to the guest list.
func AddGuest(f *form.Form, name string) (*form.Field, error) {
	return f.Append(FieldGuests, name)
}

// RemoveGuest removes the guest at index i.
func RemoveGuest(f *form.Form, i int) error {
	return f.RemoveAt(FieldGuests, i)
}
