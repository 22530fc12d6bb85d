package printing

import (
	"context"
	"errors"

	"github.com/erp/printdispatch/internal/domain/printing"
	"go.uber.org/zap"
)

// JobSubmitter hands finished jobs to the spooler. It never retries; the
// device queue does.
type JobSubmitter struct {
	spooler printing.Spooler
	logger  *zap.Logger
}

// NewJobSubmitter creates a new JobSubmitter
func NewJobSubmitter(spooler printing.Spooler, logger *zap.Logger) *JobSubmitter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &JobSubmitter{spooler: spooler, logger: logger}
}

// Submit sends one job to device. Spooler rejections are returned as SubmissionFailed.
func (s *JobSubmitter) Submit(ctx context.Context, job *printing.ConversionJob, device printing.Device) error {
	if job == nil || job.Payload == nil {
		return printing.SubmissionFailed("", errors.New("job has no payload"))
	}
	if err := s.spooler.Submit(ctx, job.Payload, job.Format, job.Orientation, job.Copies, device.Name); err != nil {
		return printing.SubmissionFailed(job.Label(), err)
	}
	s.logger.Debug("print job submitted",
		zap.String("device", device.Name),
		zap.String("job", job.Label()),
		zap.String("format", string(job.Format)),
		zap.String("orientation", string(job.Orientation)))
	return nil
}
