package form_test

import (
	"context"
	"testing"
	"time"

	"github.com/goliatone/go-formstate/pkg/form"
)

func required() form.Validator {
	return form.ValidatorFunc(func(v any) form.Errors {
		if v == nil || v == "" {
			return form.Errors{"required": true}
		}
		return nil
	})
}

func minLength(n int) form.Validator {
	return form.ValidatorFunc(func(v any) form.Errors {
		s, _ := v.(string)
		if s == "" || len(s) >= n {
			return nil
		}
		return form.Errors{"minlength": map[string]int{"requiredLength": n, "actualLength": len(s)}}
	})
}

func passwordMatch() form.GroupValidator {
	return form.GroupValidatorFunc(func(values map[string]any) form.Errors {
		if values["password"] != values["confirm"] {
			return form.Errors{"passwordMatch": true}
		}
		return nil
	})
}

type asyncCall struct {
	value any
	ctx   context.Context
	reply chan form.Errors
}

// controlledAsync blocks every invocation until the test replies. It
// ignores cancellation on purpose so superseded calls can resolve late.
type controlledAsync struct {
	calls chan asyncCall
}

func newControlledAsync() *controlledAsync {
	return &controlledAsync{calls: make(chan asyncCall, 16)}
}

func (c *controlledAsync) ValidateAsync(ctx context.Context, value any) (form.Errors, error) {
	call := asyncCall{value: value, ctx: ctx, reply: make(chan form.Errors, 1)}
	c.calls <- call
	return <-call.reply, nil
}

func (c *controlledAsync) next(t *testing.T) asyncCall {
	t.Helper()
	select {
	case call := <-c.calls:
		return call
	case <-time.After(2 * time.Second):
		t.Fatal("async validator was not invoked")
		return asyncCall{}
	}
}

func (c *controlledAsync) assertIdle(t *testing.T) {
	t.Helper()
	select {
	case call := <-c.calls:
		t.Fatalf("unexpected async dispatch for %v", call.value)
	case <-time.After(20 * time.Millisecond):
	}
}

func eventually(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met before deadline")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func waitSettled(t *testing.T, f *form.Form) form.Status {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	status, err := f.Wait(ctx)
	if err != nil {
		t.Fatalf("wait: %v", err)
	}
	return status
}
