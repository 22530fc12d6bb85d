package handler

import (
	"context"
	"sync"

	printingapp "github.com/erp/printdispatch/internal/application/printing"
	"github.com/erp/printdispatch/internal/domain/printing"
	"github.com/google/uuid"
)

// inflightRuns tracks accepted requests whose run has not finished yet.
// A reserved ID maps to nil until the run is started.
type inflightRuns struct {
	mu   sync.Mutex
	runs map[uuid.UUID]*printingapp.Pending
}

func newInflightRuns() *inflightRuns {
	return &inflightRuns{runs: make(map[uuid.UUID]*printingapp.Pending)}
}

// reserve claims id; false if it is already in flight
func (r *inflightRuns) reserve(id uuid.UUID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.runs[id]; ok {
		return false
	}
	r.runs[id] = nil
	return true
}

// track binds a reserved id to its run and forgets it once the run is done.
// onDone, if set, is called afterwards with the run result, which is nil when
// the request was refused before a run started.
func (r *inflightRuns) track(id uuid.UUID, p *printingapp.Pending, onDone func(*printing.RunResult)) {
	r.mu.Lock()
	r.runs[id] = p
	r.mu.Unlock()

	go func() {
		result, _ := p.Wait(context.Background())
		r.release(id)
		if onDone != nil {
			onDone(result)
		}
	}()
}

func (r *inflightRuns) release(id uuid.UUID) {
	r.mu.Lock()
	delete(r.runs, id)
	r.mu.Unlock()
}

func (r *inflightRuns) contains(id uuid.UUID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.runs[id]
	return ok
}
