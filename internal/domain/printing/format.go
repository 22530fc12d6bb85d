package printing

import (
	"path/filepath"
	"sort"
	"strings"
)

// FormatFamily selects the conversion strategy for an input file
type FormatFamily string

const (
	FormatFamilyRasterImage       FormatFamily = "RASTER_IMAGE"
	FormatFamilyPaginatedDocument FormatFamily = "PAGINATED_DOCUMENT"
	FormatFamilyOfficeDocument    FormatFamily = "OFFICE_DOCUMENT"
	FormatFamilyUnknown           FormatFamily = "UNKNOWN"
)

// FormatSubtype refines a FormatFamily. Paginated documents have none.
type FormatSubtype string

const (
	FormatSubtypeNone           FormatSubtype = ""
	FormatSubtypeJPEG           FormatSubtype = "JPEG"
	FormatSubtypePNG            FormatSubtype = "PNG"
	FormatSubtypeGIF            FormatSubtype = "GIF"
	FormatSubtypeWordProcessing FormatSubtype = "WORD_PROCESSING"
	FormatSubtypeSpreadsheet    FormatSubtype = "SPREADSHEET"
	FormatSubtypePresentation   FormatSubtype = "PRESENTATION"
)

// FormatKind is the closed set of input kinds derived from a file extension
type FormatKind struct {
	Family  FormatFamily  `json:"family"`
	Subtype FormatSubtype `json:"subtype,omitempty"`
}

var (
	FormatJPEG              = FormatKind{Family: FormatFamilyRasterImage, Subtype: FormatSubtypeJPEG}
	FormatPNG               = FormatKind{Family: FormatFamilyRasterImage, Subtype: FormatSubtypePNG}
	FormatGIF               = FormatKind{Family: FormatFamilyRasterImage, Subtype: FormatSubtypeGIF}
	FormatPaginatedDocument = FormatKind{Family: FormatFamilyPaginatedDocument}
	FormatWordProcessing    = FormatKind{Family: FormatFamilyOfficeDocument, Subtype: FormatSubtypeWordProcessing}
	FormatSpreadsheet       = FormatKind{Family: FormatFamilyOfficeDocument, Subtype: FormatSubtypeSpreadsheet}
	FormatPresentation      = FormatKind{Family: FormatFamilyOfficeDocument, Subtype: FormatSubtypePresentation}
	FormatUnknown           = FormatKind{Family: FormatFamilyUnknown}
)

// formatsByExtension maps a lower-cased extension (without the dot) to its kind.
// Adding a format is one entry here plus a strategy for a new family.
var formatsByExtension = map[string]FormatKind{
	"jpg":  FormatJPEG,
	"jpeg": FormatJPEG,
	"png":  FormatPNG,
	"gif":  FormatGIF,
	"pdf":  FormatPaginatedDocument,
	"doc":  FormatWordProcessing,
	"docx": FormatWordProcessing,
	"xls":  FormatSpreadsheet,
	"xlsx": FormatSpreadsheet,
	"ppt":  FormatPresentation,
	"pptx": FormatPresentation,
}

var submissionFormats = map[FormatSubtype]SubmissionFormat{
	FormatSubtypeJPEG: SubmissionFormatJPEG,
	FormatSubtypePNG:  SubmissionFormatPNG,
	FormatSubtypeGIF:  SubmissionFormatGIF,
}

// ResolveFormat derives the FormatKind of a source path from its extension,
// case-insensitively. Paths without a known extension resolve to FormatUnknown.
func ResolveFormat(path string) FormatKind {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
	if kind, ok := formatsByExtension[ext]; ok {
		return kind
	}
	return FormatUnknown
}

// IsUnknown reports whether the kind is the terminal Unknown kind
func (k FormatKind) IsUnknown() bool {
	return k.Family == FormatFamilyUnknown || k.Family == ""
}

// SubmissionFormat returns the native submission format of a raster image kind
func (k FormatKind) SubmissionFormat() (SubmissionFormat, bool) {
	if k.Family != FormatFamilyRasterImage {
		return "", false
	}
	f, ok := submissionFormats[k.Subtype]
	return f, ok
}

// String returns FAMILY or FAMILY/SUBTYPE
func (k FormatKind) String() string {
	if k.Subtype == FormatSubtypeNone {
		return string(k.Family)
	}
	return string(k.Family) + "/" + string(k.Subtype)
}

// SupportedExtensions returns every recognised extension in sorted order
func SupportedExtensions() []string {
	exts := make([]string, 0, len(formatsByExtension))
	for ext := range formatsByExtension {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}
