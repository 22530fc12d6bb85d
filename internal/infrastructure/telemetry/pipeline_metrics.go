package telemetry

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/erp/printdispatch/internal/domain/printing"
)

// ErrMeterNil is returned when PipelineMetrics is built without a meter.
var ErrMeterNil = errors.New("NewPipelineMetrics: meter cannot be nil")

// PipelineMetrics records run and job outcomes. It observes finished runs
// from the orchestrator.
type PipelineMetrics struct {
	logger *zap.Logger

	runsTotal       *Counter
	jobsProduced    *Counter
	jobsSubmitted   *Counter
	jobFailures     *Counter
	cleanupFailures *Counter
	runDuration     *Histogram
}

// NewPipelineMetrics creates the print pipeline instruments on meter.
func NewPipelineMetrics(meter metric.Meter, logger *zap.Logger) (*PipelineMetrics, error) {
	if meter == nil {
		return nil, ErrMeterNil
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	pm := &PipelineMetrics{logger: logger}
	var err error

	if pm.runsTotal, err = NewCounter(meter, "printd_runs_total",
		"Total number of finished print runs", "{runs}"); err != nil {
		return nil, err
	}
	if pm.jobsProduced, err = NewCounter(meter, "printd_jobs_produced_total",
		"Total number of conversion jobs produced", "{jobs}"); err != nil {
		return nil, err
	}
	if pm.jobsSubmitted, err = NewCounter(meter, "printd_jobs_submitted_total",
		"Total number of jobs accepted by the spooler", "{jobs}"); err != nil {
		return nil, err
	}
	if pm.jobFailures, err = NewCounter(meter, "printd_job_failures_total",
		"Total number of jobs the spooler rejected", "{jobs}"); err != nil {
		return nil, err
	}
	if pm.cleanupFailures, err = NewCounter(meter, "printd_cleanup_failures_total",
		"Total number of runs whose scratch cleanup reported errors", "{runs}"); err != nil {
		return nil, err
	}
	if pm.runDuration, err = NewHistogram(meter, HistogramOpts{
		Name:        "printd_run_duration_seconds",
		Description: "Wall time of a print run",
		Unit:        "s",
		Boundaries:  RunDurationBuckets,
	}); err != nil {
		return nil, err
	}

	return pm, nil
}

// ObserveRun records one finished run.
func (pm *PipelineMetrics) ObserveRun(ctx context.Context, result *printing.RunResult) {
	if result == nil {
		return
	}
	family := AttrFormatFamily.String(string(result.Format.Family))
	attrs := []attribute.KeyValue{
		family,
		AttrRunState.String(string(result.State)),
		AttrErrorCode.String(result.ErrorCode),
	}

	pm.runsTotal.Inc(ctx, attrs...)
	pm.runDuration.RecordDuration(ctx, result.Duration(), attrs...)
	if result.JobsProduced > 0 {
		pm.jobsProduced.Add(ctx, int64(result.JobsProduced), family)
	}
	if result.JobsSubmitted > 0 {
		pm.jobsSubmitted.Add(ctx, int64(result.JobsSubmitted), family, AttrDevice.String(result.Device))
	}
	if n := len(result.Failures); n > 0 {
		pm.jobFailures.Add(ctx, int64(n), family, AttrDevice.String(result.Device))
	}
	if len(result.CleanupErrors) > 0 {
		pm.cleanupFailures.Inc(ctx, family)
		pm.logger.Debug("cleanup failure counted",
			zap.String("run_id", result.RunID.String()),
			zap.Int("errors", len(result.CleanupErrors)))
	}
}
