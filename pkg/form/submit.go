package form

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Submission is the payload of an accepted submit. Values is a deep copy
// owned by the receiver.
type Submission struct {
	ID          string         `json:"id"`
	Values      map[string]any `json:"values"`
	SubmittedAt time.Time      `json:"submittedAt"`
}

// SubmitHandler receives accepted submissions.
type SubmitHandler interface {
	HandleSubmit(ctx context.Context, submission Submission) error
}

// SubmitHandlerFunc adapts a function into a SubmitHandler.
type SubmitHandlerFunc func(ctx context.Context, submission Submission) error

// HandleSubmit delegates to the underlying function.
func (fn SubmitHandlerFunc) HandleSubmit(ctx context.Context, submission Submission) error {
	return fn(ctx, submission)
}

// Submit marks every node touched and gates on the root status. PENDING
// returns ErrSubmitPending and queues nothing; INVALID returns
// ErrSubmitInvalid. A VALID form produces a Submission, which is passed to
// every registered handler. Submit never starts validation.
func (f *Form) Submit(ctx context.Context) (Submission, error) {
	f.core.mu.Lock()
	if f.closed {
		f.core.mu.Unlock()
		return Submission{}, fmt.Errorf("form: submit: %w", ErrDetached)
	}
	f.submitted = true
	f.root.markAllTouchedLocked()

	status := f.root.machine.Current()
	var (
		submission Submission
		err        error
	)
	switch status {
	case StatusPending:
		err = ErrSubmitPending
		f.core.metrics.submission(submitPending)
	case StatusInvalid:
		err = ErrSubmitInvalid
		f.core.metrics.submission(submitRejected)
	case StatusDisabled:
		err = ErrSubmitDisabled
		f.core.metrics.submission(submitRejected)
	default:
		values := f.root.valuesLocked(false)
		submission = Submission{
			ID:          uuid.NewString(),
			Values:      sanitizeValue(values, f.sanitize).(map[string]any),
			SubmittedAt: f.now(),
		}
		f.core.metrics.submission(submitAccepted)
	}
	handlers := f.handlers
	logger := f.core.log()
	f.core.flushLocked()

	if err != nil {
		logger.Debugw("submit refused", "status", status, "error", err)
		return Submission{}, err
	}
	logger.Infow("form submitted", "submission", submission.ID)
	for _, handler := range handlers {
		if herr := handler.HandleSubmit(ctx, submission); herr != nil {
			return submission, fmt.Errorf("form: submit handler: %w", herr)
		}
	}
	return submission, nil
}
