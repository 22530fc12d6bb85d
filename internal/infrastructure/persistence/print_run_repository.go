package persistence

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/erp/printdispatch/internal/domain/printing"
	"github.com/erp/printdispatch/internal/domain/shared"
	"github.com/erp/printdispatch/internal/infrastructure/persistence/models"
)

// MaxListLimit caps ListRecent
const MaxListLimit = 500

// GormPrintRunRepository records finished runs and serves history lookups
type GormPrintRunRepository struct {
	db *gorm.DB
}

// NewGormPrintRunRepository creates a new GormPrintRunRepository
func NewGormPrintRunRepository(db *gorm.DB) *GormPrintRunRepository {
	return &GormPrintRunRepository{db: db}
}

// Record stores a finished run
func (r *GormPrintRunRepository) Record(ctx context.Context, result *printing.RunResult) error {
	if result == nil {
		return shared.ErrInvalidInput
	}
	if err := r.db.WithContext(ctx).Create(models.PrintRunModelFromResult(result)).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return shared.ErrAlreadyExists
		}
		return fmt.Errorf("failed to record print run %s: %w", result.RunID, err)
	}
	return nil
}

// FindByID finds a run by run ID
func (r *GormPrintRunRepository) FindByID(ctx context.Context, runID uuid.UUID) (*printing.RunResult, error) {
	return r.first(ctx, "id = ?", runID)
}

// FindByRequestID finds the run that consumed a request
func (r *GormPrintRunRepository) FindByRequestID(ctx context.Context, requestID uuid.UUID) (*printing.RunResult, error) {
	return r.first(ctx, "request_id = ?", requestID)
}

func (r *GormPrintRunRepository) first(ctx context.Context, query string, arg any) (*printing.RunResult, error) {
	var model models.PrintRunModel
	if err := r.db.WithContext(ctx).Where(query, arg).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToResult(), nil
}

// ListRecent returns the most recently finished runs, newest first
func (r *GormPrintRunRepository) ListRecent(ctx context.Context, limit int) ([]printing.RunResult, error) {
	if limit <= 0 || limit > MaxListLimit {
		limit = MaxListLimit
	}

	var rows []models.PrintRunModel
	if err := r.db.WithContext(ctx).
		Order("finished_at DESC").
		Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, err
	}

	results := make([]printing.RunResult, len(rows))
	for i := range rows {
		results[i] = *rows[i].ToResult()
	}
	return results, nil
}

var (
	_ printing.RunRecorder = (*GormPrintRunRepository)(nil)
	_ printing.RunHistory  = (*GormPrintRunRepository)(nil)
)
