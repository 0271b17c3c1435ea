package ingest

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/cleared-dev/recon/internal/grid"
)

// Format names understood by the registry and the format helpers.
const (
	FormatCSV   = "csv"
	FormatTSV   = "tsv"
	FormatText  = "text"
	FormatXLSX  = "xlsx"
	FormatXLS   = "xls"
	FormatPDF   = "pdf"
	FormatImage = "image"
)

// ErrUnknownFormat is returned when no decoder is registered for a format.
var ErrUnknownFormat = errors.New("unknown input format")

// Decoder turns raw statement bytes into a grid.
type Decoder interface {
	Decode(r io.Reader) (grid.Grid, error)
	Format() string
}

// Registry holds named decoders.
type Registry struct {
	decoders map[string]Decoder
}

// NewRegistry creates an empty decoder registry.
func NewRegistry() *Registry {
	return &Registry{decoders: make(map[string]Decoder)}
}

// Register adds a decoder. Panics on duplicate format.
func (r *Registry) Register(d Decoder) {
	key := strings.ToLower(d.Format())
	if _, ok := r.decoders[key]; ok {
		panic("duplicate decoder format: " + key)
	}
	r.decoders[key] = d
}

// Get returns the decoder for format, or nil.
func (r *Registry) Get(format string) Decoder {
	return r.decoders[strings.ToLower(format)]
}

// Formats returns the registered format names, sorted.
func (r *Registry) Formats() []string {
	out := make([]string, 0, len(r.decoders))
	for k := range r.decoders {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Decode looks up the decoder for format and runs it over data.
func (r *Registry) Decode(data []byte, format string) (grid.Grid, error) {
	d := r.Get(format)
	if d == nil {
		return nil, fmt.Errorf("%w: %q (supported: %s)", ErrUnknownFormat, format, strings.Join(r.Formats(), ", "))
	}
	return d.Decode(bytes.NewReader(data))
}

// DefaultRegistry returns a registry with all built-in decoders.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(&DelimitedDecoder{Name: FormatCSV})
	r.Register(&DelimitedDecoder{Name: FormatTSV, Comma: '\t'})
	r.Register(&DelimitedDecoder{Name: FormatText})
	r.Register(&XLSXDecoder{})
	r.Register(&XLSDecoder{})
	return r
}

// IsTabular reports whether format is decoded into a grid, as opposed to
// documents that only a generative model can read.
func IsTabular(format string) bool {
	switch strings.ToLower(format) {
	case FormatCSV, FormatTSV, FormatText, FormatXLSX, FormatXLS:
		return true
	}
	return false
}

// Known reports whether format is one of the format names above.
func Known(format string) bool {
	switch strings.ToLower(format) {
	case FormatPDF, FormatImage:
		return true
	}
	return IsTabular(format)
}

// FormatFromFilename maps a file extension to a format name. It returns ""
// for an extension it does not recognize.
func FormatFromFilename(name string) string {
	switch strings.ToLower(strings.TrimPrefix(filepath.Ext(name), ".")) {
	case "csv":
		return FormatCSV
	case "tsv":
		return FormatTSV
	case "txt":
		return FormatText
	case "xlsx":
		return FormatXLSX
	case "xls":
		return FormatXLS
	case "pdf":
		return FormatPDF
	case "png", "jpg", "jpeg", "webp":
		return FormatImage
	}
	return ""
}

var (
	magicZip  = []byte("PK\x03\x04")
	magicOLE2 = []byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1}
	magicPDF  = []byte("%PDF")
	magicPNG  = []byte("\x89PNG")
	magicJPEG = []byte{0xFF, 0xD8, 0xFF}
)

// Sniff guesses the format of data from its leading bytes. Anything that is
// not a known binary container is treated as delimited text.
func Sniff(data []byte) string {
	switch {
	case bytes.HasPrefix(data, magicZip):
		return FormatXLSX
	case bytes.HasPrefix(data, magicOLE2):
		return FormatXLS
	case bytes.HasPrefix(data, magicPDF):
		return FormatPDF
	case bytes.HasPrefix(data, magicPNG), bytes.HasPrefix(data, magicJPEG):
		return FormatImage
	}
	return FormatCSV
}

// Detect resolves the format of an upload, trusting the filename first and
// falling back to the content.
func Detect(filename string, data []byte) string {
	if f := FormatFromFilename(filename); f != "" {
		return f
	}
	return Sniff(data)
}

// FileInfo describes a statement file waiting in an inbox directory.
type FileInfo struct {
	Name   string
	Path   string
	Size   int64
	Format string
}

// processedDir is the inbox subdirectory for handled files.
const processedDir = "processed"

// Scan returns the statement files in dir whose format is recognized.
func Scan(dir string) ([]FileInfo, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading inbox dir: %w", err)
	}

	var files []FileInfo
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		format := FormatFromFilename(e.Name())
		if format == "" {
			continue
		}
		info, err := e.Info()
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", e.Name(), err)
		}
		files = append(files, FileInfo{
			Name:   e.Name(),
			Path:   filepath.Join(dir, e.Name()),
			Size:   info.Size(),
			Format: format,
		})
	}
	return files, nil
}

// ProcessedPath returns where MarkProcessed moves fileName.
func ProcessedPath(dir, fileName string) string {
	return filepath.Join(dir, processedDir, fileName)
}

// MarkProcessed moves a file from dir to dir/processed/.
func MarkProcessed(dir, fileName string) error {
	dstDir := filepath.Join(dir, processedDir)
	if err := os.MkdirAll(dstDir, 0o755); err != nil {
		return fmt.Errorf("creating processed dir: %w", err)
	}

	src := filepath.Join(dir, fileName)
	if err := os.Rename(src, ProcessedPath(dir, fileName)); err != nil {
		return fmt.Errorf("moving %s to processed: %w", fileName, err)
	}
	return nil
}
