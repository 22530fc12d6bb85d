package models

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/erp/printdispatch/internal/domain/printing"
)

// PrintRunModel is the GORM model for the print_runs table
type PrintRunModel struct {
	ID            uuid.UUID             `gorm:"type:uuid;primary_key"`
	RequestID     uuid.UUID             `gorm:"column:request_id;type:uuid;not null;uniqueIndex"`
	SourcePath    string                `gorm:"column:source_path;type:text;not null"`
	Device        string                `gorm:"type:varchar(255)"`
	FormatFamily  string                `gorm:"column:format_family;type:varchar(32);not null"`
	FormatSubtype string                `gorm:"column:format_subtype;type:varchar(32)"`
	Orientation   string                `gorm:"type:varchar(20);not null;default:'PORTRAIT'"`
	Copies        int                   `gorm:"not null;default:1"`
	State         string                `gorm:"type:varchar(20);not null;index"`
	JobsProduced  int                   `gorm:"column:jobs_produced;not null;default:0"`
	JobsSubmitted int                   `gorm:"column:jobs_submitted;not null;default:0"`
	Failures      []printing.JobFailure `gorm:"type:text;serializer:json"`
	CleanupErrors []string              `gorm:"column:cleanup_errors;type:text;serializer:json"`
	ErrorCode     string                `gorm:"column:error_code;type:varchar(64);index"`
	ErrorMessage  string                `gorm:"column:error_message;type:text"`
	StartedAt     time.Time             `gorm:"column:started_at;not null"`
	FinishedAt    time.Time             `gorm:"column:finished_at;not null;index"`
	CreatedAt     time.Time             `gorm:"not null"`
}

// TableName returns the table name for PrintRunModel
func (PrintRunModel) TableName() string {
	return "print_runs"
}

// PrintRunModelFromResult creates a PrintRunModel from a finished run
func PrintRunModelFromResult(r *printing.RunResult) *PrintRunModel {
	return &PrintRunModel{
		ID:            r.RunID,
		RequestID:     r.RequestID,
		SourcePath:    r.SourcePath,
		Device:        r.Device,
		FormatFamily:  string(r.Format.Family),
		FormatSubtype: string(r.Format.Subtype),
		Orientation:   string(r.Orientation),
		Copies:        r.Copies,
		State:         string(r.State),
		JobsProduced:  r.JobsProduced,
		JobsSubmitted: r.JobsSubmitted,
		Failures:      r.Failures,
		CleanupErrors: r.CleanupErrors,
		ErrorCode:     r.ErrorCode,
		ErrorMessage:  r.ErrorMessage,
		StartedAt:     r.StartedAt,
		FinishedAt:    r.FinishedAt,
	}
}

// ToResult converts the row back to a RunResult. The original error value is
// not persisted; Err is rebuilt from the stored message.
func (m *PrintRunModel) ToResult() *printing.RunResult {
	res := &printing.RunResult{
		RunID:         m.ID,
		RequestID:     m.RequestID,
		SourcePath:    m.SourcePath,
		Device:        m.Device,
		Format:        printing.FormatKind{Family: printing.FormatFamily(m.FormatFamily), Subtype: printing.FormatSubtype(m.FormatSubtype)},
		Orientation:   printing.Orientation(m.Orientation),
		Copies:        m.Copies,
		State:         printing.RunState(m.State),
		JobsProduced:  m.JobsProduced,
		JobsSubmitted: m.JobsSubmitted,
		Failures:      m.Failures,
		CleanupErrors: m.CleanupErrors,
		ErrorCode:     m.ErrorCode,
		ErrorMessage:  m.ErrorMessage,
		StartedAt:     m.StartedAt,
		FinishedAt:    m.FinishedAt,
	}
	if m.ErrorMessage != "" {
		res.Err = errors.New(m.ErrorMessage)
	}
	return res
}
