// internal/state/step.go
package state

import "fmt"

// StepKind tags the conversational position of a session.
type StepKind int

const (
	StepIdle StepKind = iota
	StepCollecting
	StepConfirming
	StepCorrectingMenu
	StepCorrecting
	StepAwaitingHelp
)

func (k StepKind) String() string {
	switch k {
	case StepIdle:
		return "idle"
	case StepCollecting:
		return "collecting"
	case StepConfirming:
		return "confirming"
	case StepCorrectingMenu:
		return "correcting_menu"
	case StepCorrecting:
		return "correcting"
	case StepAwaitingHelp:
		return "awaiting_help_text"
	default:
		return "unknown"
	}
}

// Step is a tagged variant. Field is set only for StepCollecting and
// StepCorrecting.
type Step struct {
	Kind  StepKind `json:"kind"`
	Field string   `json:"field,omitempty"`
}

func Idle() Step           { return Step{Kind: StepIdle} }
func Confirming() Step     { return Step{Kind: StepConfirming} }
func CorrectingMenu() Step { return Step{Kind: StepCorrectingMenu} }
func AwaitingHelp() Step   { return Step{Kind: StepAwaitingHelp} }

func Collecting(field string) Step {
	return Step{Kind: StepCollecting, Field: field}
}

func Correcting(field string) Step {
	return Step{Kind: StepCorrecting, Field: field}
}

// Capturing reports whether the step expects a field value.
func (s Step) Capturing() bool {
	return s.Kind == StepCollecting || s.Kind == StepCorrecting
}

func (s Step) String() string {
	if s.Capturing() {
		return fmt.Sprintf("%s(%s)", s.Kind, s.Field)
	}
	return s.Kind.String()
}
