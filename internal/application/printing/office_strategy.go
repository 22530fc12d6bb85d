package printing

import (
	"context"
	"errors"
	"iter"

	"github.com/erp/printdispatch/internal/domain/printing"
	"go.uber.org/zap"
)

// OfficeDocumentStrategy prints office documents through an automation bridge.
//
// Word processing documents and spreadsheets are printed natively by the
// office application on the target device and yield no jobs. Presentations are
// exported to a paginated document which is then run through the paginated
// strategy; the export is a run-scoped artifact deleted once that nested
// pipeline finishes.
//
// Each conversion opens its own bridge session and always closes the document
// and quits the session, whatever the outcome.
type OfficeDocumentStrategy struct {
	bridge printing.OfficeBridge
	pages  *PaginatedDocumentStrategy
	logger *zap.Logger
}

// NewOfficeDocumentStrategy creates a new OfficeDocumentStrategy
func NewOfficeDocumentStrategy(bridge printing.OfficeBridge, pages *PaginatedDocumentStrategy, logger *zap.Logger) *OfficeDocumentStrategy {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OfficeDocumentStrategy{bridge: bridge, pages: pages, logger: logger}
}

// Family implements ConversionStrategy
func (s *OfficeDocumentStrategy) Family() printing.FormatFamily {
	return printing.FormatFamilyOfficeDocument
}

// Convert implements ConversionStrategy
func (s *OfficeDocumentStrategy) Convert(ctx context.Context, src Source) iter.Seq2[*printing.ConversionJob, error] {
	return func(yield func(*printing.ConversionJob, error) bool) {
		switch src.Format.Subtype {
		case printing.FormatSubtypeWordProcessing, printing.FormatSubtypeSpreadsheet:
			if err := s.printNative(ctx, src); err != nil {
				yield(nil, err)
			}
		case printing.FormatSubtypePresentation:
			s.exportAndPrint(ctx, src, yield)
		default:
			yield(nil, printing.UnsupportedFormat(src.Path))
		}
	}
}

func (s *OfficeDocumentStrategy) printNative(ctx context.Context, src Source) error {
	if src.Copies > 1 {
		s.logger.Debug("office application prints a single copy", zap.Int("requested", src.Copies))
	}
	return s.withDocument(ctx, src, func(session printing.OfficeSession, doc printing.DocumentHandle) error {
		if err := session.SetActiveDevice(ctx, doc, src.Device.Name); err != nil {
			return printing.ConversionFailed("set active device", src.Path, err)
		}
		if err := session.PrintDocument(ctx, doc); err != nil {
			return printing.ConversionFailed("print document", src.Path, err)
		}
		s.logger.Info("office document printed",
			zap.String("source", src.Path),
			zap.String("device", src.Device.Name),
			zap.String("format", src.Format.String()))
		return nil
	})
}

func (s *OfficeDocumentStrategy) exportAndPrint(ctx context.Context, src Source, yield func(*printing.ConversionJob, error) bool) {
	if s.pages == nil {
		yield(nil, printing.ConversionFailed("export to paginated document", src.Path,
			errors.New("no paginated document strategy configured")))
		return
	}
	export, err := src.Artifacts.Create(".pdf")
	if err != nil {
		yield(nil, printing.ConversionFailed("allocate export", src.Path, err))
		return
	}
	defer func() {
		if err := export.Release(); err != nil {
			reportCleanupFailure(s.logger, src, printing.ResourceLeakPrevented(export.Path(), err))
		}
	}()

	err = s.withDocument(ctx, src, func(session printing.OfficeSession, doc printing.DocumentHandle) error {
		if err := session.ExportToPaginated(ctx, doc, export.Path()); err != nil {
			return printing.ConversionFailed("export to paginated document", src.Path, err)
		}
		return nil
	})
	if err != nil {
		yield(nil, err)
		return
	}

	nested := src
	nested.Path = export.Path()
	nested.Format = printing.FormatPaginatedDocument
	for job, err := range s.pages.Convert(ctx, nested) {
		if !yield(job, err) {
			return
		}
	}
}

// withDocument opens a session and the source document, runs fn, then closes
// the document and quits the session on every path.
func (s *OfficeDocumentStrategy) withDocument(
	ctx context.Context,
	src Source,
	fn func(printing.OfficeSession, printing.DocumentHandle) error,
) error {
	session, err := s.bridge.NewSession(ctx)
	if err != nil {
		return printing.ConversionFailed("start office application", src.Path, err)
	}
	defer func() {
		if err := session.Quit(ctx); err != nil {
			reportCleanupFailure(s.logger, src, printing.ResourceLeakPrevented("office application", err))
		}
	}()

	doc, err := session.OpenDocument(ctx, src.Path)
	if err != nil {
		return printing.ConversionFailed("open document", src.Path, err)
	}
	defer func() {
		if err := session.CloseDocument(ctx, doc); err != nil {
			reportCleanupFailure(s.logger, src, printing.ResourceLeakPrevented(doc.Path, err))
		}
	}()

	return fn(session, doc)
}
