package services

import "github.com/ekaya-inc/herbtrace/pkg/models"

// TransitionPolicy decides how a recorded lab verdict moves a batch.
// It is the only place that encodes which verdict-driven moves are allowed.
type TransitionPolicy interface {
	// Next returns the status to write after a test with the given verdict is
	// recorded against a batch in status current. apply is false when the
	// batch must be left untouched.
	Next(current models.BatchStatus, verdict models.TestStatus) (next models.BatchStatus, apply bool)
}

// RetestPolicy applies the latest verdict regardless of the current status,
// so a retest can flip a completed batch to rejected and back.
type RetestPolicy struct{}

func (RetestPolicy) Next(current models.BatchStatus, verdict models.TestStatus) (models.BatchStatus, bool) {
	switch verdict {
	case models.TestStatusPassed:
		return models.BatchStatusCompleted, true
	case models.TestStatusFailed:
		return models.BatchStatusRejected, true
	default:
		return current, false
	}
}

// TerminalLockPolicy behaves like RetestPolicy until the batch is completed
// or rejected, after which verdicts no longer move it.
type TerminalLockPolicy struct{}

func (TerminalLockPolicy) Next(current models.BatchStatus, verdict models.TestStatus) (models.BatchStatus, bool) {
	if current.IsTerminal() {
		return current, false
	}
	return RetestPolicy{}.Next(current, verdict)
}

// NewTransitionPolicy returns TerminalLockPolicy when terminalLock is set and
// RetestPolicy otherwise.
func NewTransitionPolicy(terminalLock bool) TransitionPolicy {
	if terminalLock {
		return TerminalLockPolicy{}
	}
	return RetestPolicy{}
}
