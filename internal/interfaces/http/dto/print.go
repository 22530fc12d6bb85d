package dto

import (
	"time"

	"github.com/erp/printdispatch/internal/domain/printing"
)

// CreatePrintRequest is the body of POST /prints. It binds from JSON or from
// multipart form fields; a multipart "file" part replaces Source.
type CreatePrintRequest struct {
	Source      string `json:"source" form:"source"`
	Device      string `json:"device" form:"device" binding:"omitempty,max=255"`
	Orientation string `json:"orientation" form:"orientation" binding:"omitempty,orientation"`
	Copies      int    `json:"copies" form:"copies" binding:"omitempty,min=1,max=100"`
	RequestID   string `json:"request_id" form:"request_id" binding:"omitempty,uuid"`
	Wait        bool   `json:"wait" form:"wait"`
}

// ListPrintsRequest holds the query of GET /prints
type ListPrintsRequest struct {
	Limit int `form:"limit" binding:"omitempty,min=1,max=500"`
}

// PrintAcceptedResponse is returned when a run was queued but has not finished
type PrintAcceptedResponse struct {
	RequestID string `json:"request_id"`
	State     string `json:"state"`
}

// StateRunning marks a request whose run is still in progress
const StateRunning = "RUNNING"

// JobFailureResponse describes one job that failed to submit
type JobFailureResponse struct {
	Page    int    `json:"page"`
	Label   string `json:"label"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// PrintRunResponse is the outcome of a finished run
type PrintRunResponse struct {
	RunID         string               `json:"run_id"`
	RequestID     string               `json:"request_id"`
	Source        string               `json:"source"`
	Device        string               `json:"device,omitempty"`
	Format        string               `json:"format"`
	Orientation   string               `json:"orientation"`
	Copies        int                  `json:"copies"`
	State         string               `json:"state"`
	JobsProduced  int                  `json:"jobs_produced"`
	JobsSubmitted int                  `json:"jobs_submitted"`
	Failures      []JobFailureResponse `json:"failures,omitempty"`
	CleanupErrors []string             `json:"cleanup_errors,omitempty"`
	ErrorCode     string               `json:"error_code,omitempty"`
	ErrorMessage  string               `json:"error_message,omitempty"`
	StartedAt     time.Time            `json:"started_at"`
	FinishedAt    time.Time            `json:"finished_at"`
	DurationMS    int64                `json:"duration_ms"`
}

// NewPrintRunResponse converts a run result to its API representation
func NewPrintRunResponse(r *printing.RunResult) PrintRunResponse {
	resp := PrintRunResponse{
		RunID:         r.RunID.String(),
		RequestID:     r.RequestID.String(),
		Source:        r.SourcePath,
		Device:        r.Device,
		Format:        r.Format.String(),
		Orientation:   r.Orientation.String(),
		Copies:        r.Copies,
		State:         r.State.String(),
		JobsProduced:  r.JobsProduced,
		JobsSubmitted: r.JobsSubmitted,
		CleanupErrors: r.CleanupErrors,
		StartedAt:     r.StartedAt,
		FinishedAt:    r.FinishedAt,
		DurationMS:    r.Duration().Milliseconds(),
	}
	if r.ErrorCode != "" {
		resp.ErrorCode = NormalizeErrorCode(r.ErrorCode)
		resp.ErrorMessage = r.ErrorMessage
	}
	for _, f := range r.Failures {
		resp.Failures = append(resp.Failures, JobFailureResponse{
			Page:    f.PageIndex + 1,
			Label:   f.Label,
			Code:    NormalizeErrorCode(f.Code),
			Message: f.Message,
		})
	}
	return resp
}

// DeviceResponse is one print device
type DeviceResponse struct {
	Name    string `json:"name"`
	Default bool   `json:"default"`
}

// FormatResponse is one supported input extension
type FormatResponse struct {
	Extension string `json:"extension"`
	Family    string `json:"family"`
	Subtype   string `json:"subtype,omitempty"`
}

// SupportedFormats lists every accepted extension with its format kind
func SupportedFormats() []FormatResponse {
	exts := printing.SupportedExtensions()
	out := make([]FormatResponse, 0, len(exts))
	for _, ext := range exts {
		kind := printing.ResolveFormat("file." + ext)
		out = append(out, FormatResponse{
			Extension: ext,
			Family:    string(kind.Family),
			Subtype:   string(kind.Subtype),
		})
	}
	return out
}
