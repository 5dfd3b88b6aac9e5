package alert

import "time"

// Action is what a policy decided for one evaluation.
type Action int

const (
	ActionNone Action = iota
	ActionAlert
	ActionRecovery
	ActionSuppress
)

// Policy decides, per chain and evaluation, whether to send anything.
type Policy interface {
	// Stateful reports whether the policy reads and writes a StateStore.
	Stateful() bool
	Decide(prev ChainState, unhealthy bool, now time.Time) (ChainState, Action)
}

// NoSuppression fires on every unhealthy evaluation.
type NoSuppression struct{}

func (NoSuppression) Stateful() bool { return false }

func (NoSuppression) Decide(prev ChainState, unhealthy bool, _ time.Time) (ChainState, Action) {
	if unhealthy {
		return prev, ActionAlert
	}
	return prev, ActionNone
}

// Cooldown walks healthy -> unhealthy_pending -> alerted -> recovered -> healthy.
type Cooldown struct {
	// PendingCycles is how many consecutive unhealthy evaluations are needed
	// before the first alert. Values below 1 count as 1.
	PendingCycles int
	// Window is the minimum time between two alerts for the same chain.
	Window         time.Duration
	NotifyRecovery bool
}

func (Cooldown) Stateful() bool { return true }

func (c Cooldown) Decide(prev ChainState, unhealthy bool, now time.Time) (ChainState, Action) {
	next := prev
	if next.Phase == "" {
		next.Phase = PhaseHealthy
	}

	if !unhealthy {
		next.Unhealthy = 0
		switch next.Phase {
		case PhaseAlerted:
			next.Phase = PhaseRecovered
			if c.NotifyRecovery {
				return next, ActionRecovery
			}
		default:
			next.Phase = PhaseHealthy
		}
		return next, ActionNone
	}

	next.Unhealthy++
	switch next.Phase {
	case PhaseAlerted:
		if now.Sub(next.LastAlertAt) < c.Window {
			return next, ActionSuppress
		}
	case PhaseRecovered:
		// Flapping back inside the window stays quiet.
		if now.Sub(next.LastAlertAt) < c.Window {
			next.Phase = PhaseAlerted
			return next, ActionSuppress
		}
		fallthrough
	default:
		if next.Unhealthy < max(1, c.PendingCycles) {
			next.Phase = PhasePending
			return next, ActionSuppress
		}
	}

	next.Phase = PhaseAlerted
	next.LastAlertAt = now
	return next, ActionAlert
}
