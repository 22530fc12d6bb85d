package printing

import (
	"github.com/erp/printdispatch/internal/domain/shared"
	"github.com/google/uuid"
)

// AggregateTypePrintRun is the aggregate type of PipelineRun events
const AggregateTypePrintRun = "PrintRun"

// Event type constants for PipelineRun
const (
	EventTypePrintRunStarted          = "PrintRunStarted"
	EventTypePrintRunStateChanged     = "PrintRunStateChanged"
	EventTypePrintJobSubmissionFailed = "PrintJobSubmissionFailed"
	EventTypePrintRunCompleted        = "PrintRunCompleted"
	EventTypePrintRunFailed           = "PrintRunFailed"
)

// PrintRunStartedEvent is published when a run starts resolving
type PrintRunStartedEvent struct {
	shared.BaseDomainEvent
	RequestID   uuid.UUID   `json:"request_id"`
	SourcePath  string      `json:"source_path"`
	Orientation Orientation `json:"orientation"`
}

// NewPrintRunStartedEvent creates a new PrintRunStartedEvent
func NewPrintRunStartedEvent(run *PipelineRun) *PrintRunStartedEvent {
	return &PrintRunStartedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypePrintRunStarted, AggregateTypePrintRun, run.ID),
		RequestID:       run.RequestID,
		SourcePath:      run.SourcePath,
		Orientation:     run.Orientation,
	}
}

// PrintRunStateChangedEvent is published on every state transition
type PrintRunStateChangedEvent struct {
	shared.BaseDomainEvent
	OldState RunState `json:"old_state"`
	NewState RunState `json:"new_state"`
}

// NewPrintRunStateChangedEvent creates a new PrintRunStateChangedEvent
func NewPrintRunStateChangedEvent(run *PipelineRun, from, to RunState) *PrintRunStateChangedEvent {
	return &PrintRunStateChangedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypePrintRunStateChanged, AggregateTypePrintRun, run.ID),
		OldState:        from,
		NewState:        to,
	}
}

// PrintJobSubmissionFailedEvent is published when one job is rejected by the device
type PrintJobSubmissionFailedEvent struct {
	shared.BaseDomainEvent
	PageIndex int    `json:"page_index"`
	Device    string `json:"device"`
	Error     string `json:"error"`
}

// NewPrintJobSubmissionFailedEvent creates a new PrintJobSubmissionFailedEvent
func NewPrintJobSubmissionFailedEvent(run *PipelineRun, job *ConversionJob, err error) *PrintJobSubmissionFailedEvent {
	return &PrintJobSubmissionFailedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypePrintJobSubmissionFailed, AggregateTypePrintRun, run.ID),
		PageIndex:       job.PageIndex,
		Device:          run.Device.Name,
		Error:           err.Error(),
	}
}

// PrintRunCompletedEvent is published when a run completes
type PrintRunCompletedEvent struct {
	shared.BaseDomainEvent
	Device        string     `json:"device"`
	Format        FormatKind `json:"format"`
	JobsSubmitted int        `json:"jobs_submitted"`
	JobsFailed    int        `json:"jobs_failed"`
}

// NewPrintRunCompletedEvent creates a new PrintRunCompletedEvent
func NewPrintRunCompletedEvent(run *PipelineRun) *PrintRunCompletedEvent {
	return &PrintRunCompletedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypePrintRunCompleted, AggregateTypePrintRun, run.ID),
		Device:          run.Device.Name,
		Format:          run.Format,
		JobsSubmitted:   run.JobsSubmitted,
		JobsFailed:      len(run.Failures),
	}
}

// PrintRunFailedEvent is published when a run fails
type PrintRunFailedEvent struct {
	shared.BaseDomainEvent
	Code  string `json:"code"`
	Error string `json:"error"`
}

// NewPrintRunFailedEvent creates a new PrintRunFailedEvent
func NewPrintRunFailedEvent(run *PipelineRun) *PrintRunFailedEvent {
	return &PrintRunFailedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypePrintRunFailed, AggregateTypePrintRun, run.ID),
		Code:            ErrorCode(run.Err),
		Error:           run.Err.Error(),
	}
}
