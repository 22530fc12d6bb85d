package printing

import (
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/erp/printdispatch/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRun(t *testing.T) *PipelineRun {
	t.Helper()
	req, err := NewPrintRequest("report.pdf", WithCopies(2))
	require.NoError(t, err)
	return NewPipelineRun(req)
}

func TestNewPipelineRun(t *testing.T) {
	run := newTestRun(t)

	assert.Equal(t, RunStateResolving, run.State)
	assert.Equal(t, "report.pdf", run.SourcePath)
	assert.Equal(t, 2, run.Copies)
	assert.True(t, run.Format.IsUnknown())

	events := run.GetDomainEvents()
	require.Len(t, events, 1)
	assert.Equal(t, EventTypePrintRunStarted, events[0].EventType())
	assert.Equal(t, run.ID, events[0].AggregateID())
}

func TestPipelineRun_AggregateRoot(t *testing.T) {
	var root shared.AggregateRoot = newTestRun(t)

	assert.NotEqual(t, uuid.Nil, root.GetID())
	assert.False(t, root.GetCreatedAt().IsZero())
	require.Len(t, root.GetDomainEvents(), 1)

	root.ClearDomainEvents()
	assert.Empty(t, root.GetDomainEvents())
}

func TestPipelineRun_HappyPath(t *testing.T) {
	run := newTestRun(t)

	require.NoError(t, run.SelectFormat(FormatPaginatedDocument))
	require.NoError(t, run.ResolveDevice(Device{Name: "Office-MFP"}))
	assert.Equal(t, RunStateConverting, run.State)

	for i := 0; i < 3; i++ {
		require.NoError(t, run.JobProduced())
		assert.Equal(t, RunStateSubmitting, run.State)
		require.NoError(t, run.JobSubmitted())
	}
	require.NoError(t, run.Complete())

	res := run.Result()
	assert.True(t, res.Completed())
	assert.Equal(t, 3, res.JobsProduced)
	assert.Equal(t, 3, res.JobsSubmitted)
	assert.Equal(t, "Office-MFP", res.Device)
	assert.Empty(t, res.ErrorCode)
	assert.GreaterOrEqual(t, res.Duration().Nanoseconds(), int64(0))
}

func TestPipelineRun_JobFailureDoesNotFailRun(t *testing.T) {
	run := newTestRun(t)
	require.NoError(t, run.ResolveDevice(Device{Name: "Office-MFP"}))

	job := &ConversionJob{Payload: io.NopCloser(strings.NewReader("x")), PageIndex: 1, PageCount: 2}
	require.NoError(t, run.JobProduced())
	require.NoError(t, run.JobFailed(job, SubmissionFailed(job.Label(), errors.New("queue stopped"))))
	require.NoError(t, run.Complete())

	res := run.Result()
	assert.True(t, res.Completed())
	require.Len(t, res.Failures, 1)
	assert.Equal(t, 1, res.Failures[0].PageIndex)
	assert.Equal(t, "page 2/2", res.Failures[0].Label)
	assert.Equal(t, CodeSubmissionFailed, res.Failures[0].Code)
	assert.Contains(t, res.Failures[0].Message, "queue stopped")
}

func TestPipelineRun_FailFromResolving(t *testing.T) {
	run := newTestRun(t)

	cause := DeviceNotFound("Nonexistent", nil)
	require.NoError(t, run.Fail(cause))
	assert.Equal(t, RunStateFailed, run.State)

	res := run.Result()
	assert.False(t, res.Completed())
	assert.True(t, res.Is(ErrDeviceNotFound))
	assert.Equal(t, CodeDeviceNotFound, res.ErrorCode)

	assert.Error(t, run.Complete())
	assert.Error(t, run.Fail(cause))
}

func TestPipelineRun_InvalidTransitions(t *testing.T) {
	run := newTestRun(t)

	assert.Error(t, run.JobProduced())
	assert.Error(t, run.JobSubmitted())
	assert.Error(t, run.Complete())
	assert.Error(t, run.Fail(nil))

	require.NoError(t, run.ResolveDevice(Device{Name: "d"}))
	assert.Error(t, run.SelectFormat(FormatPNG))
	assert.Error(t, run.ResolveDevice(Device{Name: "d"}))
}

func TestPipelineRun_RecordCleanupFailure(t *testing.T) {
	run := newTestRun(t)
	run.RecordCleanupFailure(nil)
	run.RecordCleanupFailure(errors.New("remove /tmp/x: permission denied"))

	assert.Equal(t, []string{"remove /tmp/x: permission denied"}, run.Result().CleanupErrors)
}

func TestConversionJob_CloseIsIdempotent(t *testing.T) {
	rc := &countingCloser{Reader: strings.NewReader("x")}
	job := &ConversionJob{Payload: rc}

	require.NoError(t, job.Close())
	require.NoError(t, job.Close())
	assert.Equal(t, 1, rc.closed)
	assert.Equal(t, "page 1", job.Label())
}

type countingCloser struct {
	io.Reader
	closed int
}

func (c *countingCloser) Close() error {
	c.closed++
	return nil
}
