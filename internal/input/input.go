// Package input defines the thin device-facing interfaces the session
// orchestrator polls for user input. Button debouncing and the joystick's
// analog-to-edge conversion are out of scope (spec.md §1 treats "button
// polling primitives" as an external black box); this package only states
// the contract the orchestrator needs from whatever implements them.
package input

// Button reports a single momentary push button. Pressed is edge-triggered:
// it returns true at most once per physical press, already debounced by the
// implementation.
type Button interface {
	Pressed() bool
}

// Joystick reports a two-axis stick whose click enters the report screen
// and whose horizontal edges step an integer level selector. Clicked and
// StepRight/StepLeft are edge-triggered like Button.Pressed.
type Joystick interface {
	Clicked() bool
	StepRight() bool
	StepLeft() bool
}

// NoButton is a Button that is never pressed, useful where a physical
// button is absent from a configuration (e.g. headless tests).
type NoButton struct{}

// Pressed always reports false.
func (NoButton) Pressed() bool { return false }

// NoJoystick is a Joystick that never reports input.
type NoJoystick struct{}

// Clicked always reports false.
func (NoJoystick) Clicked() bool { return false }

// StepRight always reports false.
func (NoJoystick) StepRight() bool { return false }

// StepLeft always reports false.
func (NoJoystick) StepLeft() bool { return false }
