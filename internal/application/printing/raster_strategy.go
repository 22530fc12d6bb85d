package printing

import (
	"context"
	"iter"
	"os"

	"github.com/erp/printdispatch/internal/domain/printing"
)

// RasterImageStrategy submits an image file as-is in its native format
type RasterImageStrategy struct{}

// NewRasterImageStrategy creates a new RasterImageStrategy
func NewRasterImageStrategy() *RasterImageStrategy {
	return &RasterImageStrategy{}
}

// Family implements ConversionStrategy
func (s *RasterImageStrategy) Family() printing.FormatFamily {
	return printing.FormatFamilyRasterImage
}

// Convert yields exactly one job reading the source file
func (s *RasterImageStrategy) Convert(_ context.Context, src Source) iter.Seq2[*printing.ConversionJob, error] {
	return func(yield func(*printing.ConversionJob, error) bool) {
		format, ok := src.Format.SubmissionFormat()
		if !ok {
			yield(nil, printing.UnsupportedFormat(src.Path))
			return
		}
		f, err := os.Open(src.Path)
		if err != nil {
			yield(nil, printing.ConversionFailed("open image", src.Path, err))
			return
		}
		job := &printing.ConversionJob{
			Payload:     f,
			Format:      format,
			Orientation: src.Orientation,
			Copies:      src.Copies,
			PageCount:   1,
		}
		defer job.Close()
		yield(job, nil)
	}
}
