package printing

import (
	"errors"
	"time"

	"github.com/erp/printdispatch/internal/domain/shared"
	"github.com/google/uuid"
)

// JobFailure records one job whose submission failed without aborting the run
type JobFailure struct {
	PageIndex int    `json:"page_index"`
	Label     string `json:"label"`
	Code      string `json:"code"`
	Message   string `json:"message"`
}

// PipelineRun is the aggregate for one end-to-end execution of a print request:
// dispatch, conversion, submission and cleanup.
type PipelineRun struct {
	shared.BaseAggregateRoot
	RequestID     uuid.UUID
	SourcePath    string
	Orientation   Orientation
	Copies        int
	Device        Device
	Format        FormatKind
	State         RunState
	JobsProduced  int
	JobsSubmitted int
	Failures      []JobFailure
	CleanupErrors []string
	Err           error
	StartedAt     time.Time
	FinishedAt    time.Time
}

var _ shared.AggregateRoot = (*PipelineRun)(nil)

// NewPipelineRun starts a run for a request in the Resolving state
func NewPipelineRun(req *PrintRequest) *PipelineRun {
	run := &PipelineRun{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(uuid.Nil),
		RequestID:         req.ID(),
		SourcePath:        req.SourcePath(),
		Orientation:       req.Orientation(),
		Copies:            req.Copies(),
		Format:            FormatUnknown,
		State:             RunStateResolving,
		StartedAt:         time.Now(),
	}
	run.AddDomainEvent(NewPrintRunStartedEvent(run))
	return run
}

func (r *PipelineRun) transition(target RunState) error {
	if !r.State.CanTransitionTo(target) {
		return shared.NewDomainError("INVALID_STATE",
			"Cannot transition print run from "+string(r.State)+" to "+string(target))
	}
	from := r.State
	r.State = target
	r.UpdatedAt = time.Now()
	r.AddDomainEvent(NewPrintRunStateChangedEvent(r, from, target))
	return nil
}

// SelectFormat records the resolved format. Only allowed while resolving.
func (r *PipelineRun) SelectFormat(kind FormatKind) error {
	if r.State != RunStateResolving {
		return shared.NewDomainError("INVALID_STATE", "Format can only be selected while resolving")
	}
	r.Format = kind
	return nil
}

// ResolveDevice records the target device and moves the run to Converting
func (r *PipelineRun) ResolveDevice(device Device) error {
	if r.State != RunStateResolving {
		return shared.NewDomainError("INVALID_STATE", "Device can only be resolved while resolving")
	}
	r.Device = device
	return r.transition(RunStateConverting)
}

// JobProduced moves the run to Submitting for the job a strategy just produced
func (r *PipelineRun) JobProduced() error {
	if err := r.transition(RunStateSubmitting); err != nil {
		return err
	}
	r.JobsProduced++
	return nil
}

// JobSubmitted records a successful submission and returns to Converting
func (r *PipelineRun) JobSubmitted() error {
	if r.State != RunStateSubmitting {
		return shared.NewDomainError("INVALID_STATE", "No job is being submitted")
	}
	r.JobsSubmitted++
	return r.transition(RunStateConverting)
}

// JobFailed records a failed submission and returns to Converting.
// The run itself keeps going.
func (r *PipelineRun) JobFailed(job *ConversionJob, err error) error {
	if r.State != RunStateSubmitting {
		return shared.NewDomainError("INVALID_STATE", "No job is being submitted")
	}
	r.Failures = append(r.Failures, JobFailure{
		PageIndex: job.PageIndex,
		Label:     job.Label(),
		Code:      ErrorCode(err),
		Message:   err.Error(),
	})
	r.AddDomainEvent(NewPrintJobSubmissionFailedEvent(r, job, err))
	return r.transition(RunStateConverting)
}

// RecordCleanupFailure attaches a cleanup error to the run without changing its state
func (r *PipelineRun) RecordCleanupFailure(err error) {
	if err == nil {
		return
	}
	r.CleanupErrors = append(r.CleanupErrors, err.Error())
}

// Complete finishes the run successfully
func (r *PipelineRun) Complete() error {
	if err := r.transition(RunStateCompleted); err != nil {
		return err
	}
	r.FinishedAt = time.Now()
	r.AddDomainEvent(NewPrintRunCompletedEvent(r))
	return nil
}

// Fail finishes the run with err
func (r *PipelineRun) Fail(err error) error {
	if err == nil {
		return shared.NewDomainError("INVALID_INPUT", "Failure cause cannot be nil")
	}
	if err2 := r.transition(RunStateFailed); err2 != nil {
		return err2
	}
	r.Err = err
	r.FinishedAt = time.Now()
	r.AddDomainEvent(NewPrintRunFailedEvent(r))
	return nil
}

// IsTerminal returns true if the run has finished
func (r *PipelineRun) IsTerminal() bool {
	return r.State.IsTerminal()
}

// Result returns a snapshot of the run
func (r *PipelineRun) Result() *RunResult {
	res := &RunResult{
		RunID:         r.ID,
		RequestID:     r.RequestID,
		SourcePath:    r.SourcePath,
		Device:        r.Device.Name,
		Format:        r.Format,
		Orientation:   r.Orientation,
		Copies:        r.Copies,
		State:         r.State,
		JobsProduced:  r.JobsProduced,
		JobsSubmitted: r.JobsSubmitted,
		Failures:      append([]JobFailure(nil), r.Failures...),
		CleanupErrors: append([]string(nil), r.CleanupErrors...),
		StartedAt:     r.StartedAt,
		FinishedAt:    r.FinishedAt,
		Err:           r.Err,
	}
	if r.Err != nil {
		res.ErrorCode = ErrorCode(r.Err)
		res.ErrorMessage = r.Err.Error()
	}
	return res
}

// RunResult is the aggregate outcome of one pipeline run. A Completed run may
// still carry per-job failures.
type RunResult struct {
	RunID         uuid.UUID    `json:"run_id"`
	RequestID     uuid.UUID    `json:"request_id"`
	SourcePath    string       `json:"source_path"`
	Device        string       `json:"device,omitempty"`
	Format        FormatKind   `json:"format"`
	Orientation   Orientation  `json:"orientation"`
	Copies        int          `json:"copies"`
	State         RunState     `json:"state"`
	JobsProduced  int          `json:"jobs_produced"`
	JobsSubmitted int          `json:"jobs_submitted"`
	Failures      []JobFailure `json:"failures,omitempty"`
	CleanupErrors []string     `json:"cleanup_errors,omitempty"`
	ErrorCode     string       `json:"error_code,omitempty"`
	ErrorMessage  string       `json:"error_message,omitempty"`
	StartedAt     time.Time    `json:"started_at"`
	FinishedAt    time.Time    `json:"finished_at"`
	Err           error        `json:"-"`
}

// Completed reports whether the pipeline finished, possibly with job failures
func (r *RunResult) Completed() bool {
	return r.State == RunStateCompleted
}

// Duration returns how long the run took
func (r *RunResult) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// Is reports whether the run failed with the given taxonomy kind
func (r *RunResult) Is(kind error) bool {
	return r.Err != nil && errors.Is(r.Err, kind)
}
