package printing

import (
	"context"
	"iter"
	"sort"
	"sync"

	"github.com/erp/printdispatch/internal/domain/printing"
	"go.uber.org/zap"
)

// DefaultDPI is the resolution paginated documents are rasterized at
const DefaultDPI = 96.0

// Source is the input of one conversion
type Source struct {
	Path        string
	Format      printing.FormatKind
	Orientation printing.Orientation
	Copies      int
	Device      printing.Device
	// Artifacts allocates scratch files owned by the run
	Artifacts printing.ArtifactAllocator
	// OnCleanupFailure is told about resources a strategy failed to release
	OnCleanupFailure func(error)
}

// ConversionStrategy turns a source into a lazy, single-pass sequence of jobs.
// A non-nil error ends the sequence. The consumer owns each yielded job until
// it returns from the loop body; the strategy releases the backing resources
// right after.
type ConversionStrategy interface {
	Family() printing.FormatFamily
	Convert(ctx context.Context, src Source) iter.Seq2[*printing.ConversionJob, error]
}

func reportCleanupFailure(logger *zap.Logger, src Source, err error) {
	logger.Error("failed to release conversion resource",
		zap.String("code", printing.CodeResourceLeakPrevented),
		zap.String("source", src.Path),
		zap.Error(err))
	if src.OnCleanupFailure != nil {
		src.OnCleanupFailure(err)
	}
}

// StrategySet selects a strategy by format family
type StrategySet struct {
	mu         sync.RWMutex
	strategies map[printing.FormatFamily]ConversionStrategy
}

// NewStrategySet creates a StrategySet holding the given strategies
func NewStrategySet(strategies ...ConversionStrategy) *StrategySet {
	s := &StrategySet{strategies: make(map[printing.FormatFamily]ConversionStrategy)}
	for _, strategy := range strategies {
		s.Register(strategy)
	}
	return s
}

// Register adds a strategy, replacing any strategy for the same family
func (s *StrategySet) Register(strategy ConversionStrategy) {
	if strategy == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.strategies[strategy.Family()] = strategy
}

// Select returns the strategy for kind, or UnsupportedFormat
func (s *StrategySet) Select(kind printing.FormatKind) (ConversionStrategy, error) {
	if kind.IsUnknown() {
		return nil, printing.UnsupportedFormat(kind.String())
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	strategy, ok := s.strategies[kind.Family]
	if !ok {
		return nil, printing.UnsupportedFormat(kind.String())
	}
	return strategy, nil
}

// Families returns the registered format families in sorted order
func (s *StrategySet) Families() []printing.FormatFamily {
	s.mu.RLock()
	defer s.mu.RUnlock()
	families := make([]printing.FormatFamily, 0, len(s.strategies))
	for f := range s.strategies {
		families = append(families, f)
	}
	sort.Slice(families, func(i, j int) bool { return families[i] < families[j] })
	return families
}
