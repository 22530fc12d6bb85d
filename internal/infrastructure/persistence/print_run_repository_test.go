package persistence

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	gormlogger "gorm.io/gorm/logger"

	"github.com/erp/printdispatch/internal/domain/printing"
	"github.com/erp/printdispatch/internal/domain/shared"
	"github.com/erp/printdispatch/internal/infrastructure/config"
)

func setupPrintRunTestDB(t *testing.T) *Database {
	cfg := &config.DatabaseConfig{
		Driver: "sqlite",
		Path:   filepath.Join(t.TempDir(), "history.db"),
	}
	db, err := NewDatabase(cfg, zap.NewNop(), gormlogger.Silent)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func finishedResult(finished time.Time) *printing.RunResult {
	return &printing.RunResult{
		RunID:         uuid.New(),
		RequestID:     uuid.New(),
		SourcePath:    "/srv/in/report.pdf",
		Device:        "office-laser",
		Format:        printing.FormatPaginatedDocument,
		Orientation:   printing.OrientationLandscape,
		Copies:        2,
		State:         printing.RunStateCompleted,
		JobsProduced:  3,
		JobsSubmitted: 2,
		Failures: []printing.JobFailure{
			{PageIndex: 1, Label: "page 2/3", Code: printing.CodeSubmissionFailed, Message: "lp: printer offline"},
		},
		StartedAt:  finished.Add(-time.Second),
		FinishedAt: finished,
	}
}

func TestNewDatabase_UnsupportedDriver(t *testing.T) {
	_, err := NewDatabase(&config.DatabaseConfig{Driver: "mysql"}, nil, gormlogger.Silent)
	assert.Error(t, err)
}

func TestGormPrintRunRepository_RecordAndFind(t *testing.T) {
	db := setupPrintRunTestDB(t)
	repo := NewGormPrintRunRepository(db.DB)
	ctx := context.Background()

	result := finishedResult(time.Now())
	require.NoError(t, repo.Record(ctx, result))

	t.Run("by request id", func(t *testing.T) {
		found, err := repo.FindByRequestID(ctx, result.RequestID)
		require.NoError(t, err)

		assert.Equal(t, result.RunID, found.RunID)
		assert.Equal(t, "office-laser", found.Device)
		assert.Equal(t, printing.FormatPaginatedDocument, found.Format)
		assert.Equal(t, printing.OrientationLandscape, found.Orientation)
		assert.Equal(t, 2, found.Copies)
		assert.True(t, found.Completed())
		assert.Equal(t, 3, found.JobsProduced)
		assert.Equal(t, 2, found.JobsSubmitted)
		require.Len(t, found.Failures, 1)
		assert.Equal(t, "page 2/3", found.Failures[0].Label)
		assert.WithinDuration(t, result.FinishedAt, found.FinishedAt, time.Millisecond)
		assert.NoError(t, found.Err)
	})

	t.Run("by run id", func(t *testing.T) {
		found, err := repo.FindByID(ctx, result.RunID)
		require.NoError(t, err)
		assert.Equal(t, result.RequestID, found.RequestID)
	})

	t.Run("unknown id", func(t *testing.T) {
		_, err := repo.FindByRequestID(ctx, uuid.New())
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})

	t.Run("a request is recorded once", func(t *testing.T) {
		dup := finishedResult(time.Now())
		dup.RequestID = result.RequestID
		assert.Error(t, repo.Record(ctx, dup))
	})

	t.Run("nil result", func(t *testing.T) {
		assert.ErrorIs(t, repo.Record(ctx, nil), shared.ErrInvalidInput)
	})
}

func TestGormPrintRunRepository_FailedRunKeepsError(t *testing.T) {
	db := setupPrintRunTestDB(t)
	repo := NewGormPrintRunRepository(db.DB)
	ctx := context.Background()

	result := finishedResult(time.Now())
	result.State = printing.RunStateFailed
	result.Device = ""
	result.Failures = nil
	result.Err = printing.DeviceNotFound("plotter", errors.New("no such destination"))
	result.ErrorCode = printing.ErrorCode(result.Err)
	result.ErrorMessage = result.Err.Error()
	require.NoError(t, repo.Record(ctx, result))

	found, err := repo.FindByRequestID(ctx, result.RequestID)
	require.NoError(t, err)
	assert.Equal(t, printing.CodeDeviceNotFound, found.ErrorCode)
	assert.Equal(t, result.ErrorMessage, found.ErrorMessage)
	require.Error(t, found.Err)
	assert.Empty(t, found.Failures)
}

func TestGormPrintRunRepository_ListRecent(t *testing.T) {
	db := setupPrintRunTestDB(t)
	repo := NewGormPrintRunRepository(db.DB)
	ctx := context.Background()

	base := time.Now().Add(-time.Hour)
	var ids []uuid.UUID
	for i := 0; i < 5; i++ {
		r := finishedResult(base.Add(time.Duration(i) * time.Minute))
		ids = append(ids, r.RunID)
		require.NoError(t, repo.Record(ctx, r))
	}

	recent, err := repo.ListRecent(ctx, 3)
	require.NoError(t, err)
	require.Len(t, recent, 3)
	assert.Equal(t, ids[4], recent[0].RunID)
	assert.Equal(t, ids[3], recent[1].RunID)
	assert.Equal(t, ids[2], recent[2].RunID)

	all, err := repo.ListRecent(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, all, 5)
}
