// Package formstate is the top-level entry point: it re-exports the engine
// types and wires the reference collaborators together for callers that do
// not need to assemble the packages themselves.
package formstate

import (
	"github.com/goliatone/go-formstate/pkg/availability"
	"github.com/goliatone/go-formstate/pkg/definition"
	"github.com/goliatone/go-formstate/pkg/form"
	"github.com/goliatone/go-formstate/pkg/rsvp"
	"github.com/goliatone/go-formstate/pkg/sanitize"
	"github.com/goliatone/go-formstate/pkg/validators"
)

// UsernameValidator is the async validator name definitions use to ask the
// availability checker about a username.
const UsernameValidator = "usernameAvailable"

// Form aliases form.Form.
type Form = form.Form

// Status aliases form.Status.
type Status = form.Status

// Submission aliases form.Submission.
type Submission = form.Submission

// NewRSVP builds the reference party RSVP form.
func NewRSVP(checker availability.Checker, opts ...form.Option) (*form.Form, error) {
	return rsvp.New(checker, opts...)
}

// BuildDefinition builds def with the username validator bound to checker.
// A nil checker leaves the validator unregistered, so definitions that name
// it fail with definition.ErrUnknownAsync.
func BuildDefinition(def definition.Definition, checker availability.Checker, opts ...form.Option) (*form.Form, error) {
	buildOpts := []definition.BuildOption{definition.WithFormOptions(opts...)}
	if checker != nil {
		buildOpts = append(buildOpts, definition.WithAsync(UsernameValidator, validators.UsernameAvailable(checker)))
	}
	return definition.Build(def, buildOpts...)
}

// StrictSanitizer strips markup from every string in submitted payloads.
func StrictSanitizer() form.Option {
	return form.WithStringSanitizer(sanitize.Strict)
}
