package form

import (
	"context"
	"errors"
	"fmt"

	"github.com/looplab/fsm"
	"go.uber.org/zap"
)

const (
	eventPass    = "pass"
	eventFail    = "fail"
	eventAwait   = "await"
	eventDisable = "disable"
	eventEnable  = "enable"
)

var activeStatuses = []string{
	string(StatusValid),
	string(StatusInvalid),
	string(StatusPending),
}

// statusMachine guards the legal status transitions of a single node.
// DISABLED can only be left through the enable event, so nothing that
// recomputes validity can silently re-activate a disabled node.
type statusMachine struct {
	fsm    *fsm.FSM
	id     string
	logger *zap.SugaredLogger
}

func newStatusMachine(id string, logger *zap.SugaredLogger, onEnter func(from, to Status)) *statusMachine {
	m := &statusMachine{id: id, logger: logger}
	m.fsm = fsm.NewFSM(
		string(StatusValid),
		fsm.Events{
			{Name: eventPass, Src: activeStatuses, Dst: string(StatusValid)},
			{Name: eventFail, Src: activeStatuses, Dst: string(StatusInvalid)},
			{Name: eventAwait, Src: activeStatuses, Dst: string(StatusPending)},
			{Name: eventDisable, Src: activeStatuses, Dst: string(StatusDisabled)},
			{Name: eventEnable, Src: []string{string(StatusDisabled)}, Dst: string(StatusValid)},
		},
		fsm.Callbacks{
			"enter_state": func(_ context.Context, e *fsm.Event) {
				m.log().Debugf("node %s: %s -> %s (%s)", m.id, e.Src, e.Dst, e.Event)
				if onEnter != nil {
					onEnter(Status(e.Src), Status(e.Dst))
				}
			},
		},
	)
	return m
}

func (m *statusMachine) log() *zap.SugaredLogger {
	if m.logger == nil {
		return zap.NewNop().Sugar()
	}
	return m.logger
}

// Current returns the status the machine is in.
func (m *statusMachine) Current() Status {
	return Status(m.fsm.Current())
}

// moveTo fires whichever event leads to target. Staying put is not an error.
func (m *statusMachine) moveTo(target Status) error {
	if m.Current() == target {
		return nil
	}
	event, err := eventFor(m.Current(), target)
	if err != nil {
		return err
	}
	err = m.fsm.Event(context.Background(), event)
	var noTransition fsm.NoTransitionError
	if err != nil && !errors.As(err, &noTransition) {
		return fmt.Errorf("form: status %s -> %s: %w", m.Current(), target, err)
	}
	return nil
}

func eventFor(from, to Status) (string, error) {
	if from == StatusDisabled && to != StatusValid {
		return "", fmt.Errorf("form: status %s -> %s: node must be enabled first", from, to)
	}
	switch to {
	case StatusValid:
		if from == StatusDisabled {
			return eventEnable, nil
		}
		return eventPass, nil
	case StatusInvalid:
		return eventFail, nil
	case StatusPending:
		return eventAwait, nil
	case StatusDisabled:
		return eventDisable, nil
	default:
		return "", fmt.Errorf("form: unknown status %q", to)
	}
}
