package testsupport

import (
	"context"
	"testing"
	"time"
)

// Call is one lookup received by a ScriptedChecker. The caller stays
// blocked until Reply is invoked or its context ends.
type Call struct {
	Candidate string
	Ctx       context.Context
	reply     chan answer
}

type answer struct {
	available bool
	err       error
}

// Reply answers the lookup. Replying twice, or after the caller gave up,
// is a no-op.
func (c Call) Reply(available bool, err error) {
	select {
	case c.reply <- answer{available: available, err: err}:
	default:
	}
}

// ScriptedChecker is an availability checker whose answers are given by the
// test, one lookup at a time.
type ScriptedChecker struct {
	calls chan Call
}

// NewScriptedChecker constructs an idle ScriptedChecker.
func NewScriptedChecker() *ScriptedChecker {
	return &ScriptedChecker{calls: make(chan Call, 16)}
}

// CheckAvailability queues the lookup and waits for the test's reply.
func (s *ScriptedChecker) CheckAvailability(ctx context.Context, candidate string) (bool, error) {
	call := Call{Candidate: candidate, Ctx: ctx, reply: make(chan answer, 1)}
	select {
	case s.calls <- call:
	case <-ctx.Done():
		return false, ctx.Err()
	}
	select {
	case a := <-call.reply:
		return a.available, a.err
	case <-ctx.Done():
		return false, ctx.Err()
	}
}

// Next returns the next lookup, failing the test after DefaultTimeout.
func (s *ScriptedChecker) Next(t *testing.T) Call {
	t.Helper()
	select {
	case call := <-s.calls:
		return call
	case <-time.After(DefaultTimeout):
		t.Fatal("no availability lookup received")
		return Call{}
	}
}

// AssertIdle fails the test when a lookup arrives within a short grace
// period.
func (s *ScriptedChecker) AssertIdle(t *testing.T) {
	t.Helper()
	select {
	case call := <-s.calls:
		t.Fatalf("unexpected availability lookup for %q", call.Candidate)
	case <-time.After(50 * time.Millisecond):
	}
}
