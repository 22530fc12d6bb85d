package printing

import (
	"context"

	"github.com/erp/printdispatch/internal/domain/printing"
	"github.com/google/uuid"
)

// Pending is a run started with Orchestrator.Go
type Pending struct {
	requestID uuid.UUID
	done      chan struct{}
	result    *printing.RunResult
	err       error
}

func newPending(requestID uuid.UUID) *Pending {
	return &Pending{requestID: requestID, done: make(chan struct{})}
}

// RequestID returns the ID of the dispatched request
func (p *Pending) RequestID() uuid.UUID {
	return p.requestID
}

// Done is closed when the run has finished and its hook has returned
func (p *Pending) Done() <-chan struct{} {
	return p.done
}

// Wait blocks until the run finishes or ctx is done. A ctx timeout only stops
// waiting; the run carries on and its hook still fires.
func (p *Pending) Wait(ctx context.Context) (*printing.RunResult, error) {
	select {
	case <-p.done:
		return p.result, p.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
