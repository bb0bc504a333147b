package evaluator

import (
	"github.com/coldwatch/coldwatch/internal/types"
)

// Transition names the edge a reading produced, if any
type Transition int

const (
	// NoChange leaves the alert state as it was.
	NoChange Transition = iota
	// Raised is the rising edge; the only transition that notifies.
	Raised
	// Held is a reading above threshold while already armed.
	Held
	// Cleared is a reading below threshold that disarmed the alert.
	Cleared
)

func (t Transition) String() string {
	switch t {
	case Raised:
		return "raised"
	case Held:
		return "held"
	case Cleared:
		return "cleared"
	default:
		return "no_change"
	}
}

// Decision is the outcome of evaluating one reading
type Decision struct {
	State      types.AlertState
	Notify     bool
	Transition Transition
}

// Evaluate maps a reading and the current alert state to the next state.
//
// Comparisons are strict on both sides: a value equal to the threshold
// neither arms nor disarms the alert. Clearing is silent.
func Evaluate(value, threshold float64, current types.AlertState) Decision {
	switch {
	case value > threshold && !current.Armed:
		return Decision{State: types.AlertState{Armed: true}, Notify: true, Transition: Raised}
	case value > threshold:
		return Decision{State: current, Transition: Held}
	case value < threshold:
		d := Decision{State: types.AlertState{Armed: false}}
		if current.Armed {
			d.Transition = Cleared
		}
		return d
	default:
		return Decision{State: current}
	}
}

// Evaluator binds Evaluate to a fixed threshold
type Evaluator struct {
	threshold float64
}

// NewEvaluator creates a new threshold evaluator
func NewEvaluator(threshold float64) *Evaluator {
	return &Evaluator{threshold: threshold}
}

// Threshold returns the configured threshold
func (e *Evaluator) Threshold() float64 {
	return e.threshold
}

// Evaluate evaluates value against the configured threshold
func (e *Evaluator) Evaluate(value float64, current types.AlertState) Decision {
	return Evaluate(value, e.threshold, current)
}
