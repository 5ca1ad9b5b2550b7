package export

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"io"
	"math"
	"path"
	"strings"
	"time"

	"github.com/jung-kurt/gofpdf"

	"certificate-studio/generator-backend/internal/certificates/render"
	"certificate-studio/generator-backend/internal/templates"
)

// PixelsToPoints converts CSS pixels (96 dpi) to PDF points (72 dpi).
const PixelsToPoints = 0.75

const certificateImage = "certificate"

// EncodingError wraps any failure while assembling the PDF. Nothing is
// written to the destination when it is returned.
type EncodingError struct {
	Op  string
	Err error
}

func (e *EncodingError) Error() string {
	return fmt.Sprintf("pdf %s: %v", e.Op, e.Err)
}

func (e *EncodingError) Unwrap() error {
	return e.Err
}

// Metadata describes the optional second page.
type Metadata struct {
	Code                string    `json:"code"`
	GeneratedAt         time.Time `json:"generated_at"`
	AssociatedFileNames []string  `json:"associated_file_names"`
}

// PDFOptions configures PDF export
type PDFOptions struct {
	JPEGQuality int    `json:"jpeg_quality"`
	Compress    bool   `json:"compress"`
	DateFormat  string `json:"date_format"`
	Title       string `json:"title"`
	Author      string `json:"author,omitempty"`
	Creator     string `json:"creator,omitempty"`

	FontFamily    string  `json:"font_family"`
	FontSize      float64 `json:"font_size"`
	TitleFontSize float64 `json:"title_font_size"`
	Margin        float64 `json:"margin"`
}

// DefaultPDFOptions returns default PDF options
func DefaultPDFOptions() PDFOptions {
	return PDFOptions{
		JPEGQuality:   95,
		Compress:      true,
		DateFormat:    "2006-01-02 15:04:05 MST",
		Title:         "Certificate",
		Creator:       "certificate-studio",
		FontFamily:    "Helvetica",
		FontSize:      12,
		TitleFontSize: 20,
		Margin:        40,
	}
}

// PDFExporter writes certificate rasters as PDF documents. It holds no
// per-document state and is safe for concurrent use.
type PDFExporter struct {
	options PDFOptions
}

// NewPDFExporter creates a new PDF exporter
func NewPDFExporter(options PDFOptions) *PDFExporter {
	defaults := DefaultPDFOptions()
	if options.JPEGQuality <= 0 || options.JPEGQuality > 100 {
		options.JPEGQuality = defaults.JPEGQuality
	}
	if options.DateFormat == "" {
		options.DateFormat = defaults.DateFormat
	}
	if options.FontFamily == "" {
		options.FontFamily = defaults.FontFamily
	}
	if options.FontSize <= 0 {
		options.FontSize = defaults.FontSize
	}
	if options.TitleFontSize <= 0 {
		options.TitleFontSize = defaults.TitleFontSize
	}
	if options.Margin <= 0 {
		options.Margin = defaults.Margin
	}
	return &PDFExporter{options: options}
}

// PageSize returns the page size in points for a canvas and whether it is
// landscape.
func PageSize(dims templates.CanvasDimensions) (width, height float64, landscape bool) {
	width = math.Ceil(dims.Width * PixelsToPoints)
	height = math.Ceil(dims.Height * PixelsToPoints)
	return width, height, dims.Width > dims.Height
}

// Export writes raster as a one-page PDF sized to dims. When meta lists
// associated files a second page describes them.
func (e *PDFExporter) Export(w io.Writer, raster image.Image, dims templates.CanvasDimensions, meta *Metadata) error {
	if raster == nil || raster.Bounds().Empty() {
		return &EncodingError{Op: "embed image", Err: errors.New("raster is empty")}
	}
	if !dims.Valid() {
		return &EncodingError{Op: "page setup", Err: templates.ErrInvalidDimensions}
	}

	jpeg, err := render.EncodeJPEG(raster, e.options.JPEGQuality)
	if err != nil {
		return &EncodingError{Op: "encode image", Err: err}
	}

	pdf := e.newDocument(dims)
	e.addCertificatePage(pdf, jpeg)
	if meta != nil && len(meta.AssociatedFileNames) > 0 {
		e.addMetadataPage(pdf, meta)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return &EncodingError{Op: "output", Err: err}
	}
	if _, err := w.Write(buf.Bytes()); err != nil {
		return fmt.Errorf("failed to write pdf: %w", err)
	}
	return nil
}

// newDocument creates a document whose default page matches dims. gofpdf
// swaps width and height for landscape pages, so the size is given
// portrait-first.
func (e *PDFExporter) newDocument(dims templates.CanvasDimensions) *gofpdf.Fpdf {
	width, height, landscape := PageSize(dims)

	orientation := "P"
	size := gofpdf.SizeType{Wd: width, Ht: height}
	if landscape {
		orientation = "L"
		size = gofpdf.SizeType{Wd: height, Ht: width}
	}

	pdf := gofpdf.NewCustom(&gofpdf.InitType{
		OrientationStr: orientation,
		UnitStr:        "pt",
		Size:           size,
	})
	pdf.SetCompression(e.options.Compress)
	pdf.SetMargins(e.options.Margin, e.options.Margin, e.options.Margin)
	pdf.SetAutoPageBreak(false, 0)
	pdf.SetTitle(e.options.Title, true)
	if e.options.Author != "" {
		pdf.SetAuthor(e.options.Author, true)
	}
	if e.options.Creator != "" {
		pdf.SetCreator(e.options.Creator, true)
	}
	return pdf
}

// addCertificatePage places the raster edge to edge on the first page.
func (e *PDFExporter) addCertificatePage(pdf *gofpdf.Fpdf, jpeg []byte) {
	pdf.AddPage()

	opts := gofpdf.ImageOptions{ImageType: "JPG"}
	pdf.RegisterImageOptionsReader(certificateImage, opts, bytes.NewReader(jpeg))

	width, height := pdf.GetPageSize()
	pdf.ImageOptions(certificateImage, 0, 0, width, height, false, opts, 0, "")
}

// addMetadataPage lists the certificate code, the generation time and the
// associated source files.
func (e *PDFExporter) addMetadataPage(pdf *gofpdf.Fpdf, meta *Metadata) {
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	font := e.options.FontFamily
	lineHeight := e.options.FontSize * 1.5

	pdf.SetAutoPageBreak(true, e.options.Margin)
	pdf.AddPage()
	pdf.SetTextColor(0, 0, 0)

	pdf.SetFont(font, "B", e.options.TitleFontSize)
	pdf.CellFormat(0, e.options.TitleFontSize*1.5, "Certificate Metadata", "", 1, "L", false, 0, "")
	pdf.Ln(lineHeight / 2)

	generated := meta.GeneratedAt
	if generated.IsZero() {
		generated = time.Now()
	}

	pdf.SetFont(font, "", e.options.FontSize)
	pdf.CellFormat(0, lineHeight, tr("Certificate Code: "+meta.Code), "", 1, "L", false, 0, "")
	pdf.CellFormat(0, lineHeight, tr("Generated: "+generated.Format(e.options.DateFormat)), "", 1, "L", false, 0, "")
	pdf.Ln(lineHeight / 2)

	pdf.SetFont(font, "B", e.options.FontSize)
	pdf.CellFormat(0, lineHeight, "Source Files:", "", 1, "L", false, 0, "")

	pdf.SetFont(font, "", e.options.FontSize)
	for i, name := range meta.AssociatedFileNames {
		pdf.MultiCell(0, lineHeight, tr(fmt.Sprintf("%d. %s", i+1, baseName(name))), "", "L", false)
	}
}

// baseName strips any directory part, whichever separator it uses.
func baseName(name string) string {
	return path.Base(strings.ReplaceAll(name, "\\", "/"))
}
