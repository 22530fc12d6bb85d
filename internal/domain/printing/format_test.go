package printing

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolveFormat(t *testing.T) {
	tests := []struct {
		path     string
		expected FormatKind
	}{
		{"photo.jpg", FormatJPEG},
		{"photo.jpeg", FormatJPEG},
		{"diagram.png", FormatPNG},
		{"anim.gif", FormatGIF},
		{"report.pdf", FormatPaginatedDocument},
		{"letter.doc", FormatWordProcessing},
		{"letter.docx", FormatWordProcessing},
		{"budget.xls", FormatSpreadsheet},
		{"budget.xlsx", FormatSpreadsheet},
		{"deck.ppt", FormatPresentation},
		{"deck.pptx", FormatPresentation},
		{"/srv/in/archive.tar.PDF", FormatPaginatedDocument},
		{"s3://inbox/scans/page.PNG", FormatPNG},
		{"notes.txt", FormatUnknown},
		{"README", FormatUnknown},
		{"trailing.", FormatUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.expected, ResolveFormat(tt.path))
		})
	}
}

func TestResolveFormat_CaseInsensitive(t *testing.T) {
	for _, ext := range SupportedExtensions() {
		lower := ResolveFormat("a." + ext)
		upper := ResolveFormat("A." + toUpper(ext))
		assert.Equal(t, lower, upper, ext)
		assert.False(t, lower.IsUnknown(), ext)
	}
}

func TestFormatKind_SubmissionFormat(t *testing.T) {
	f, ok := FormatJPEG.SubmissionFormat()
	assert.True(t, ok)
	assert.Equal(t, SubmissionFormatJPEG, f)

	f, ok = FormatGIF.SubmissionFormat()
	assert.True(t, ok)
	assert.Equal(t, SubmissionFormatGIF, f)

	_, ok = FormatPaginatedDocument.SubmissionFormat()
	assert.False(t, ok)
}

func TestFormatKind_String(t *testing.T) {
	assert.Equal(t, "PAGINATED_DOCUMENT", FormatPaginatedDocument.String())
	assert.Equal(t, "OFFICE_DOCUMENT/PRESENTATION", FormatPresentation.String())
	assert.True(t, FormatUnknown.IsUnknown())
	assert.True(t, FormatKind{}.IsUnknown())
}

func TestSupportedExtensions(t *testing.T) {
	exts := SupportedExtensions()
	assert.Equal(t, []string{"doc", "docx", "gif", "jpeg", "jpg", "pdf", "png", "ppt", "pptx", "xls", "xlsx"}, exts)
}

func toUpper(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'a' && c <= 'z' {
			b[i] = c - 'a' + 'A'
		}
	}
	return string(b)
}
