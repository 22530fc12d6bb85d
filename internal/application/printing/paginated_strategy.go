package printing

import (
	"context"
	"fmt"
	"image"
	"image/png"
	"iter"
	"os"

	"github.com/erp/printdispatch/internal/domain/printing"
	"go.uber.org/zap"
)

// PaginatedDocumentStrategy rasterizes every page of a document to PNG and
// yields one landscape job per page. Page images live in run-scoped artifacts
// that are released as soon as the page has been submitted.
type PaginatedDocumentStrategy struct {
	rasterizer printing.PageRasterizer
	dpi        float64
	logger     *zap.Logger
}

// NewPaginatedDocumentStrategy creates a new PaginatedDocumentStrategy.
// A non-positive dpi selects DefaultDPI.
func NewPaginatedDocumentStrategy(rasterizer printing.PageRasterizer, dpi float64, logger *zap.Logger) *PaginatedDocumentStrategy {
	if dpi <= 0 {
		dpi = DefaultDPI
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PaginatedDocumentStrategy{rasterizer: rasterizer, dpi: dpi, logger: logger}
}

// Family implements ConversionStrategy
func (s *PaginatedDocumentStrategy) Family() printing.FormatFamily {
	return printing.FormatFamilyPaginatedDocument
}

// Convert yields one job per page. A page that fails to render ends the
// sequence with ConversionFailed.
func (s *PaginatedDocumentStrategy) Convert(ctx context.Context, src Source) iter.Seq2[*printing.ConversionJob, error] {
	return func(yield func(*printing.ConversionJob, error) bool) {
		doc, err := s.rasterizer.Open(ctx, src.Path)
		if err != nil {
			yield(nil, printing.ConversionFailed("open document", src.Path, err))
			return
		}
		defer func() {
			if err := doc.Close(); err != nil {
				s.logger.Warn("failed to close paginated document", zap.String("source", src.Path), zap.Error(err))
			}
		}()

		pages := doc.PageCount()
		s.logger.Debug("rasterizing document",
			zap.String("source", src.Path),
			zap.Int("pages", pages),
			zap.Float64("dpi", s.dpi))

		for i := 0; i < pages; i++ {
			if !s.emitPage(doc, i, pages, src, yield) {
				return
			}
		}
	}
}

// emitPage renders, yields and releases one page. It returns false when the
// sequence must stop.
func (s *PaginatedDocumentStrategy) emitPage(
	doc printing.PaginatedDocument,
	index, pages int,
	src Source,
	yield func(*printing.ConversionJob, error) bool,
) bool {
	art, err := s.renderPage(doc, index, src)
	if err != nil {
		yield(nil, err)
		return false
	}
	defer func() {
		if err := art.Release(); err != nil {
			reportCleanupFailure(s.logger, src, printing.ResourceLeakPrevented(art.Path(), err))
		}
	}()

	f, err := os.Open(art.Path())
	if err != nil {
		yield(nil, printing.ConversionFailed(fmt.Sprintf("read page %d", index+1), src.Path, err))
		return false
	}
	job := &printing.ConversionJob{
		Payload:     f,
		Format:      printing.SubmissionFormatPNG,
		Orientation: printing.OrientationLandscape,
		Copies:      src.Copies,
		PageIndex:   index,
		PageCount:   pages,
	}
	defer job.Close()

	return yield(job, nil)
}

func (s *PaginatedDocumentStrategy) renderPage(doc printing.PaginatedDocument, index int, src Source) (printing.Artifact, error) {
	op := fmt.Sprintf("render page %d", index+1)
	img, err := doc.RenderPage(index, s.dpi)
	if err != nil {
		return nil, printing.ConversionFailed(op, src.Path, err)
	}

	art, err := src.Artifacts.Create(fmt.Sprintf("-p%d.png", index+1))
	if err != nil {
		return nil, printing.ConversionFailed(op, src.Path, err)
	}
	if err := writePNG(art.Path(), img); err != nil {
		if rerr := art.Release(); rerr != nil {
			reportCleanupFailure(s.logger, src, printing.ResourceLeakPrevented(art.Path(), rerr))
		}
		return nil, printing.ConversionFailed(op, src.Path, err)
	}
	return art, nil
}

func writePNG(path string, img image.Image) (err error) {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	return png.Encode(f, img)
}
