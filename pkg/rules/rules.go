// Package rules turns declarative cross-field expressions into group
// validators.
package rules

import (
	"strings"

	"github.com/goliatone/go-formstate/pkg/form"
)

// Evaluator decides whether a rule holds for the given group values.
type Evaluator interface {
	Eval(key, rule string, ctx Context) (bool, error)
}

// Context provides inputs to an Evaluator. Values holds the enabled children
// of the group being validated; Extras carries fixed parameters supplied
// when the rule was declared and is addressed with the `extras.` prefix.
type Context struct {
	Values map[string]any
	Extras map[string]any
}

// EvaluatorFunc adapts a function into an Evaluator.
type EvaluatorFunc func(key, rule string, ctx Context) (bool, error)

// Eval delegates to the underlying function.
func (fn EvaluatorFunc) Eval(key, rule string, ctx Context) (bool, error) {
	return fn(key, rule, ctx)
}

// Option configures a rule-backed validator.
type Option func(*config)

type config struct {
	extras map[string]any
}

// WithExtras exposes fixed parameters to the expression.
func WithExtras(extras map[string]any) Option {
	return func(c *config) {
		c.extras = extras
	}
}

// GroupValidator reports {key: true} when rule evaluates to false, and
// {key: {"error": msg}} when it cannot be evaluated. An empty rule always
// holds.
func GroupValidator(key, rule string, evaluator Evaluator, opts ...Option) form.GroupValidator {
	key = strings.TrimSpace(key)
	cfg := config{}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return form.GroupValidatorFunc(func(values map[string]any) form.Errors {
		if evaluator == nil {
			return nil
		}
		ok, err := evaluator.Eval(key, rule, Context{Values: values, Extras: cfg.extras})
		if err != nil {
			return form.Errors{key: map[string]any{"error": err.Error()}}
		}
		if !ok {
			return form.Errors{key: true}
		}
		return nil
	})
}
