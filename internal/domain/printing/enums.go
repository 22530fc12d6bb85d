package printing

import "strings"

// Orientation represents the page orientation requested from the spooler
type Orientation string

const (
	OrientationPortrait  Orientation = "PORTRAIT"
	OrientationLandscape Orientation = "LANDSCAPE"
)

// IsValid checks if the Orientation is a valid value
func (o Orientation) IsValid() bool {
	switch o {
	case OrientationPortrait, OrientationLandscape:
		return true
	}
	return false
}

// String returns the string representation of Orientation
func (o Orientation) String() string {
	return string(o)
}

// ParseOrientation parses an orientation case-insensitively.
// An empty string yields the default, portrait.
func ParseOrientation(s string) (Orientation, error) {
	if strings.TrimSpace(s) == "" {
		return OrientationPortrait, nil
	}
	o := Orientation(strings.ToUpper(strings.TrimSpace(s)))
	if !o.IsValid() {
		return "", InvalidRequest("invalid orientation: " + s)
	}
	return o, nil
}

// SubmissionFormat is the format tag handed to the spooler with a job payload.
// Values are MIME types so they can be passed through to the print subsystem.
type SubmissionFormat string

const (
	SubmissionFormatJPEG SubmissionFormat = "image/jpeg"
	SubmissionFormatPNG  SubmissionFormat = "image/png"
	SubmissionFormatGIF  SubmissionFormat = "image/gif"
)

// IsValid checks if the SubmissionFormat is a valid value
func (f SubmissionFormat) IsValid() bool {
	switch f {
	case SubmissionFormatJPEG, SubmissionFormatPNG, SubmissionFormatGIF:
		return true
	}
	return false
}

// String returns the string representation of SubmissionFormat
func (f SubmissionFormat) String() string {
	return string(f)
}

// RunState represents the state of one pipeline run
type RunState string

const (
	RunStateResolving  RunState = "RESOLVING"
	RunStateConverting RunState = "CONVERTING"
	RunStateSubmitting RunState = "SUBMITTING"
	RunStateCompleted  RunState = "COMPLETED"
	RunStateFailed     RunState = "FAILED"
)

// IsValid checks if the RunState is a valid value
func (s RunState) IsValid() bool {
	switch s {
	case RunStateResolving, RunStateConverting, RunStateSubmitting, RunStateCompleted, RunStateFailed:
		return true
	}
	return false
}

// String returns the string representation of RunState
func (s RunState) String() string {
	return string(s)
}

// IsTerminal returns true if this is a terminal state (no further transitions)
func (s RunState) IsTerminal() bool {
	return s == RunStateCompleted || s == RunStateFailed
}

// CanTransitionTo checks if the state can transition to the target state.
// Converting and Submitting alternate while jobs stream out of a strategy.
func (s RunState) CanTransitionTo(target RunState) bool {
	switch s {
	case RunStateResolving:
		return target == RunStateConverting || target == RunStateFailed
	case RunStateConverting:
		return target == RunStateSubmitting || target == RunStateCompleted || target == RunStateFailed
	case RunStateSubmitting:
		return target == RunStateConverting || target == RunStateCompleted || target == RunStateFailed
	case RunStateCompleted, RunStateFailed:
		return false
	}
	return false
}
