package printing

import (
	"context"
	"fmt"
	"image"
	"sync"

	"github.com/erp/printdispatch/internal/domain/printing"
	"github.com/gen2brain/go-fitz"
)

// FitzRasterizer renders paginated documents with MuPDF
type FitzRasterizer struct{}

var _ printing.PageRasterizer = (*FitzRasterizer)(nil)

// NewFitzRasterizer creates a new FitzRasterizer
func NewFitzRasterizer() *FitzRasterizer {
	return &FitzRasterizer{}
}

// Open opens the document at path
func (r *FitzRasterizer) Open(ctx context.Context, path string) (printing.PaginatedDocument, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	doc, err := fitz.New(path)
	if err != nil {
		return nil, NewBoundaryError(ErrCodeRenderFailed, "failed to open document", err)
	}
	return &fitzDocument{doc: doc}, nil
}

// fitzDocument serializes calls into MuPDF, whose document context is not thread safe.
type fitzDocument struct {
	mu  sync.Mutex
	doc *fitz.Document
}

func (d *fitzDocument) PageCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.doc == nil {
		return 0
	}
	return d.doc.NumPage()
}

func (d *fitzDocument) RenderPage(index int, dpi float64) (image.Image, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.doc == nil {
		return nil, NewBoundaryError(ErrCodeRenderFailed, "document is closed", nil)
	}
	if n := d.doc.NumPage(); index < 0 || index >= n {
		return nil, NewBoundaryError(ErrCodeRenderFailed,
			fmt.Sprintf("page %d out of range [0,%d)", index, n), nil)
	}
	img, err := d.doc.ImageDPI(index, dpi)
	if err != nil {
		return nil, NewBoundaryError(ErrCodeRenderFailed, "failed to render page", err)
	}
	return img, nil
}

func (d *fitzDocument) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.doc == nil {
		return nil
	}
	err := d.doc.Close()
	d.doc = nil
	return err
}
