package printing

import (
	"context"
	"io"
	"sync"
)

// fakeRunner records commands and answers them with handle
type fakeRunner struct {
	mu     sync.Mutex
	calls  []Command
	stdin  [][]byte
	handle func(Command) ([]byte, error)
}

func (f *fakeRunner) Run(_ context.Context, c Command) ([]byte, error) {
	var in []byte
	if c.Stdin != nil {
		in, _ = io.ReadAll(c.Stdin)
	}
	f.mu.Lock()
	f.calls = append(f.calls, c)
	f.stdin = append(f.stdin, in)
	f.mu.Unlock()
	if f.handle == nil {
		return nil, nil
	}
	return f.handle(c)
}

func (f *fakeRunner) Calls() []Command {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Command(nil), f.calls...)
}
