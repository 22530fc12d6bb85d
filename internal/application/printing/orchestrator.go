package printing

import (
	"context"
	"fmt"
	"os"
	"path"
	"time"

	"github.com/erp/printdispatch/internal/domain/printing"
	"github.com/erp/printdispatch/internal/domain/shared"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const tracerName = "github.com/erp/printdispatch/internal/application/printing"

// RunObserver is notified of every finished run
type RunObserver interface {
	ObserveRun(ctx context.Context, result *printing.RunResult)
}

// Executor runs tasks on a bounded worker pool
type Executor interface {
	Execute(task func()) error
}

// Orchestrator drives print requests through device resolution, conversion,
// submission and cleanup.
type Orchestrator struct {
	devices    *DeviceRegistry
	strategies *StrategySet
	submitter  *JobSubmitter
	scratch    printing.ScratchProvider

	fetchers []printing.SourceFetcher
	guard    shared.IdempotencyStore
	guardTTL time.Duration
	recorder printing.RunRecorder
	observer RunObserver
	executor Executor
	tracer   trace.Tracer
	logger   *zap.Logger
}

// OrchestratorOption configures an Orchestrator
type OrchestratorOption func(*Orchestrator)

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) OrchestratorOption {
	return func(o *Orchestrator) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithSourceFetchers registers fetchers for remote sources
func WithSourceFetchers(fetchers ...printing.SourceFetcher) OrchestratorOption {
	return func(o *Orchestrator) {
		o.fetchers = append(o.fetchers, fetchers...)
	}
}

// WithIdempotency rejects a request ID that was already dispatched within ttl
func WithIdempotency(store shared.IdempotencyStore, ttl time.Duration) OrchestratorOption {
	return func(o *Orchestrator) {
		o.guard = store
		o.guardTTL = ttl
	}
}

// WithRecorder persists every finished run
func WithRecorder(recorder printing.RunRecorder) OrchestratorOption {
	return func(o *Orchestrator) {
		o.recorder = recorder
	}
}

// WithObserver reports every finished run, e.g. to metrics
func WithObserver(observer RunObserver) OrchestratorOption {
	return func(o *Orchestrator) {
		o.observer = observer
	}
}

// WithExecutor runs asynchronous dispatches on executor instead of a new goroutine
func WithExecutor(executor Executor) OrchestratorOption {
	return func(o *Orchestrator) {
		o.executor = executor
	}
}

// WithTracer sets the tracer used for run spans
func WithTracer(tracer trace.Tracer) OrchestratorOption {
	return func(o *Orchestrator) {
		if tracer != nil {
			o.tracer = tracer
		}
	}
}

// NewOrchestrator creates a new Orchestrator
func NewOrchestrator(
	devices *DeviceRegistry,
	strategies *StrategySet,
	submitter *JobSubmitter,
	scratch printing.ScratchProvider,
	opts ...OrchestratorOption,
) *Orchestrator {
	o := &Orchestrator{
		devices:    devices,
		strategies: strategies,
		submitter:  submitter,
		scratch:    scratch,
		tracer:     otel.Tracer(tracerName),
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Dispatch runs req to completion and returns the aggregate result.
//
// The returned error is nil when the run completed, even if some jobs failed
// to submit; see RunResult.Failures. Otherwise it carries one of the pipeline
// error kinds and the result describes the failed run. Cancelling ctx does not
// interrupt a run: use Go and bound the wait instead.
func (o *Orchestrator) Dispatch(ctx context.Context, req *printing.PrintRequest) (*printing.RunResult, error) {
	if req == nil {
		return nil, printing.InvalidRequest("print request cannot be nil")
	}
	if err := req.Claim(); err != nil {
		return nil, err
	}
	ctx = context.WithoutCancel(ctx)
	if err := o.checkDuplicate(ctx, req); err != nil {
		return nil, err
	}

	result := o.execute(ctx, req, printing.NewPipelineRun(req))
	return result, result.Err
}

// Go starts req on the executor and returns immediately. The run is detached
// from ctx cancellation. An error means the request was not accepted and no
// run was started.
func (o *Orchestrator) Go(ctx context.Context, req *printing.PrintRequest) (*Pending, error) {
	if req == nil {
		return nil, printing.InvalidRequest("print request cannot be nil")
	}
	ctx = context.WithoutCancel(ctx)
	p := newPending(req.ID())
	task := func() {
		defer close(p.done)
		p.result, p.err = o.Dispatch(ctx, req)
	}
	if o.executor == nil {
		go task()
		return p, nil
	}
	if err := o.executor.Execute(task); err != nil {
		return nil, err
	}
	return p, nil
}

func (o *Orchestrator) checkDuplicate(ctx context.Context, req *printing.PrintRequest) error {
	if o.guard == nil {
		return nil
	}
	wasSet, err := o.guard.MarkProcessed(ctx, req.ID().String(), o.guardTTL)
	if err != nil {
		o.logger.Warn("idempotency check failed, dispatching anyway",
			zap.String("request_id", req.ID().String()), zap.Error(err))
		return nil
	}
	if !wasSet {
		return &printing.PipelineError{Kind: printing.ErrDuplicateRequest, Op: "dispatch", Subject: req.ID().String()}
	}
	return nil
}

func (o *Orchestrator) execute(ctx context.Context, req *printing.PrintRequest, run *printing.PipelineRun) (result *printing.RunResult) {
	ctx, span := o.tracer.Start(ctx, "printing.run", trace.WithAttributes(
		attribute.String("print.run_id", run.ID.String()),
		attribute.String("print.request_id", run.RequestID.String()),
		attribute.String("print.source", run.SourcePath),
	))
	log := o.logger.With(
		zap.String("run_id", run.ID.String()),
		zap.String("request_id", run.RequestID.String()),
		zap.String("source", run.SourcePath))
	log.Info("print run started", zap.String("device", req.DeviceName()))

	var scope printing.ArtifactScope
	defer func() {
		if p := recover(); p != nil {
			log.Error("print run panicked", zap.Any("panic", p), zap.Stack("stack"))
			o.fail(run, printing.ConversionFailed("run pipeline", run.SourcePath, fmt.Errorf("unexpected fault: %v", p)), log)
		}
		if scope != nil {
			o.release(run, scope, log)
		}
		result = o.finish(ctx, span, req, run, log)
	}()

	if err := o.runPipeline(ctx, req, run, &scope, log); err != nil {
		o.fail(run, err, log)
		return
	}
	if err := run.Complete(); err != nil {
		o.fail(run, err, log)
	}
	return
}

func (o *Orchestrator) runPipeline(
	ctx context.Context,
	req *printing.PrintRequest,
	run *printing.PipelineRun,
	scopeOut *printing.ArtifactScope,
	log *zap.Logger,
) error {
	kind := printing.ResolveFormat(req.SourcePath())
	strategy, err := o.strategies.Select(kind)
	if err != nil {
		return printing.UnsupportedFormat(req.SourcePath())
	}
	if err := run.SelectFormat(kind); err != nil {
		return err
	}

	device, err := o.devices.Resolve(ctx, req.DeviceName())
	if err != nil {
		return err
	}
	if err := run.ResolveDevice(device); err != nil {
		return err
	}

	scope, err := o.scratch.NewScope(run.ID, req.SourcePath())
	if err != nil {
		return printing.ConversionFailed("open scratch scope", req.SourcePath(), err)
	}
	*scopeOut = scope

	local, err := o.localSource(ctx, req.SourcePath(), scope, log)
	if err != nil {
		return err
	}

	src := Source{
		Path:        local,
		Format:      kind,
		Orientation: req.Orientation(),
		Copies:      req.Copies(),
		Device:      device,
		Artifacts:   scope,
		OnCleanupFailure: func(err error) {
			run.RecordCleanupFailure(err)
		},
	}
	return o.convertAndSubmit(ctx, strategy, src, run, log)
}

// localSource downloads remote sources into a run artifact and returns the local path
func (o *Orchestrator) localSource(ctx context.Context, source string, scope printing.ArtifactScope, log *zap.Logger) (string, error) {
	for _, f := range o.fetchers {
		if !f.Handles(source) {
			continue
		}
		art, err := scope.Create(path.Ext(source))
		if err != nil {
			return "", printing.ConversionFailed("fetch source", source, err)
		}
		if err := fetchInto(ctx, f, source, art.Path()); err != nil {
			return "", printing.ConversionFailed("fetch source", source, err)
		}
		log.Debug("remote source fetched", zap.String("local", art.Path()))
		return art.Path(), nil
	}
	return source, nil
}

func fetchInto(ctx context.Context, f printing.SourceFetcher, source, dst string) (err error) {
	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := out.Close(); err == nil {
			err = cerr
		}
	}()
	return f.Fetch(ctx, source, out)
}

func (o *Orchestrator) convertAndSubmit(
	ctx context.Context,
	strategy ConversionStrategy,
	src Source,
	run *printing.PipelineRun,
	log *zap.Logger,
) error {
	ctx, span := o.tracer.Start(ctx, "printing.convert", trace.WithAttributes(
		attribute.String("print.format", src.Format.String()),
		attribute.String("print.device", src.Device.Name),
	))
	defer span.End()

	for job, err := range strategy.Convert(ctx, src) {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return err
		}
		if err := o.submit(ctx, run, job, log); err != nil {
			job.Close()
			return err
		}
	}
	span.SetAttributes(attribute.Int("print.jobs", run.JobsProduced))
	return nil
}

// submit hands one job to the device. A rejected job is recorded on the run and
// does not stop the sequence; only a state machine violation is returned.
func (o *Orchestrator) submit(ctx context.Context, run *printing.PipelineRun, job *printing.ConversionJob, log *zap.Logger) error {
	if err := run.JobProduced(); err != nil {
		return err
	}
	ctx, span := o.tracer.Start(ctx, "printing.submit", trace.WithAttributes(
		attribute.Int("print.page", job.PageIndex+1),
		attribute.String("print.submission_format", string(job.Format)),
	))
	defer span.End()

	err := o.submitter.Submit(ctx, job, run.Device)
	if cerr := job.Close(); cerr != nil {
		log.Warn("failed to close job payload", zap.String("job", job.Label()), zap.Error(cerr))
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		log.Warn("print job submission failed",
			zap.String("device", run.Device.Name),
			zap.String("job", job.Label()),
			zap.Error(err))
		return run.JobFailed(job, err)
	}
	return run.JobSubmitted()
}

func (o *Orchestrator) fail(run *printing.PipelineRun, err error, log *zap.Logger) {
	if run.IsTerminal() {
		log.Error("error after print run finished", zap.Error(err))
		return
	}
	if ferr := run.Fail(err); ferr != nil {
		log.Error("failed to mark print run failed", zap.Error(ferr))
	}
}

func (o *Orchestrator) release(run *printing.PipelineRun, scope printing.ArtifactScope, log *zap.Logger) {
	if err := scope.ReleaseAll(); err != nil {
		leak := printing.ResourceLeakPrevented(run.ID.String(), err)
		run.RecordCleanupFailure(leak)
		log.Error("scratch cleanup failed",
			zap.String("code", printing.CodeResourceLeakPrevented),
			zap.Int("live", scope.Live()),
			zap.Error(err))
	}
}

// finish reports the run and fires the completion hook. Artifacts are already
// released at this point.
func (o *Orchestrator) finish(
	ctx context.Context,
	span trace.Span,
	req *printing.PrintRequest,
	run *printing.PipelineRun,
	log *zap.Logger,
) *printing.RunResult {
	result := run.Result()

	span.SetAttributes(
		attribute.String("print.state", string(result.State)),
		attribute.Int("print.jobs_submitted", result.JobsSubmitted),
		attribute.Int("print.jobs_failed", len(result.Failures)),
	)
	fields := []zap.Field{
		zap.String("device", result.Device),
		zap.String("format", result.Format.String()),
		zap.Int("jobs", result.JobsProduced),
		zap.Int("submitted", result.JobsSubmitted),
		zap.Int("failed", len(result.Failures)),
		zap.Duration("duration", result.Duration()),
	}
	if result.Completed() {
		span.SetStatus(codes.Ok, "")
		log.Info("print run completed", fields...)
	} else {
		span.RecordError(result.Err)
		span.SetStatus(codes.Error, result.ErrorMessage)
		log.Warn("print run failed", append(fields, zap.String("code", result.ErrorCode), zap.Error(result.Err))...)
	}
	for _, ev := range run.GetDomainEvents() {
		span.AddEvent(ev.EventType(), trace.WithTimestamp(ev.OccurredAt()))
		log.Debug("run event", zap.String("event_type", ev.EventType()), zap.String("event_id", ev.EventID().String()))
	}
	run.ClearDomainEvents()
	span.End()

	if o.recorder != nil {
		if err := o.recorder.Record(ctx, result); err != nil {
			log.Warn("failed to record print run", zap.Error(err))
		}
	}
	if o.observer != nil {
		o.observer.ObserveRun(ctx, result)
	}
	if hook := req.CompletionHook(); hook != nil {
		invokeHook(hook, result, log)
	}
	return result
}

func invokeHook(hook printing.CompletionHook, result *printing.RunResult, log *zap.Logger) {
	defer func() {
		if p := recover(); p != nil {
			log.Error("completion hook panicked", zap.Any("panic", p))
		}
	}()
	hook(result)
}
