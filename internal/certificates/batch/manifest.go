package batch

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
)

// ManifestColumns are the manifest headers, one row per recipient.
var ManifestColumns = []string{"Row", "Code", "File", "Status", "Location", "Decode Failures", "Unbound Placeholders", "Error"}

// manifestRecord flattens an outcome in ManifestColumns order
func manifestRecord(o Outcome) []interface{} {
	return []interface{}{
		o.Row,
		o.Code,
		o.FileName,
		o.Status(),
		o.Location,
		o.DecodeFailures,
		strings.Join(o.Unbound, ", "),
		o.Error(),
	}
}

// ManifestStyle defines style for manifest cells
type ManifestStyle struct {
	FontBold  bool   `json:"font_bold"`
	FontSize  int    `json:"font_size"`
	FontColor string `json:"font_color"`
	FillColor string `json:"fill_color"`
	Alignment string `json:"alignment"` // left, center, right
	Border    bool   `json:"border"`
}

// ManifestOptions configures the workbook manifest
type ManifestOptions struct {
	SheetName    string         `json:"sheet_name"`
	FreezeHeader bool           `json:"freeze_header"`
	AutoFilter   bool           `json:"auto_filter"`
	AutoWidth    bool           `json:"auto_width"`
	HeaderStyle  *ManifestStyle `json:"header_style,omitempty"`
	FailedStyle  *ManifestStyle `json:"failed_style,omitempty"`
}

// DefaultManifestOptions returns default manifest options
func DefaultManifestOptions() ManifestOptions {
	return ManifestOptions{
		SheetName:    "Certificates",
		FreezeHeader: true,
		AutoFilter:   true,
		AutoWidth:    true,
		HeaderStyle: &ManifestStyle{
			FontBold:  true,
			FontSize:  11,
			FillColor: "4472C4",
			FontColor: "FFFFFF",
			Alignment: "center",
			Border:    true,
		},
		FailedStyle: &ManifestStyle{
			FontSize:  11,
			FontColor: "9C0006",
			FillColor: "FFC7CE",
			Border:    true,
		},
	}
}

// WriteManifestXLSX writes report as a styled workbook with one row per
// recipient. Failed rows are highlighted.
func WriteManifestXLSX(w io.Writer, report *Report, options ManifestOptions) error {
	file := excelize.NewFile()
	defer file.Close()

	sheet := options.SheetName
	if sheet == "" {
		sheet = "Certificates"
	}
	if err := file.SetSheetName("Sheet1", sheet); err != nil {
		return fmt.Errorf("failed to name sheet: %w", err)
	}

	headerStyleID, err := newStyle(file, options.HeaderStyle)
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}
	failedStyleID, err := newStyle(file, options.FailedStyle)
	if err != nil {
		return fmt.Errorf("failed to create failed style: %w", err)
	}

	widths := make([]float64, len(ManifestColumns))
	for i, col := range ManifestColumns {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := file.SetCellValue(sheet, cell, col); err != nil {
			return fmt.Errorf("failed to write header: %w", err)
		}
		widths[i] = estimateWidth(col)
	}
	if headerStyleID > 0 {
		last, _ := excelize.CoordinatesToCellName(len(ManifestColumns), 1)
		file.SetCellStyle(sheet, "A1", last, headerStyleID)
	}

	for r, outcome := range report.Outcomes {
		rowNum := r + 2
		for c, val := range manifestRecord(outcome) {
			cell, _ := excelize.CoordinatesToCellName(c+1, rowNum)
			if err := file.SetCellValue(sheet, cell, val); err != nil {
				return fmt.Errorf("failed to set cell value: %w", err)
			}
			if width := estimateWidth(val); width > widths[c] {
				widths[c] = width
			}
		}
		if outcome.Err != nil && failedStyleID > 0 {
			first, _ := excelize.CoordinatesToCellName(1, rowNum)
			last, _ := excelize.CoordinatesToCellName(len(ManifestColumns), rowNum)
			file.SetCellStyle(sheet, first, last, failedStyleID)
		}
	}

	if options.FreezeHeader {
		file.SetPanes(sheet, &excelize.Panes{
			Freeze:      true,
			YSplit:      1,
			TopLeftCell: "A2",
			ActivePane:  "bottomLeft",
		})
	}

	if options.AutoFilter && len(report.Outcomes) > 0 {
		last, _ := excelize.CoordinatesToCellName(len(ManifestColumns), len(report.Outcomes)+1)
		if err := file.AutoFilter(sheet, "A1:"+last, nil); err != nil {
			return fmt.Errorf("failed to add auto filter: %w", err)
		}
	}

	if options.AutoWidth {
		for i, width := range widths {
			col, _ := excelize.ColumnNumberToName(i + 1)
			// Min width 10, max width 50
			width = min(max(width, 10), 50)
			file.SetColWidth(sheet, col, col, width)
		}
	}

	if err := file.Write(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

// newStyle registers style; a nil style yields 0.
func newStyle(file *excelize.File, config *ManifestStyle) (int, error) {
	if config == nil {
		return 0, nil
	}
	style := &excelize.Style{
		Font: &excelize.Font{
			Bold:  config.FontBold,
			Size:  float64(config.FontSize),
			Color: config.FontColor,
		},
	}
	if config.FillColor != "" {
		style.Fill = excelize.Fill{
			Type:    "pattern",
			Pattern: 1,
			Color:   []string{config.FillColor},
		}
	}
	if config.Alignment != "" {
		style.Alignment = &excelize.Alignment{Horizontal: config.Alignment}
	}
	if config.Border {
		style.Border = []excelize.Border{
			{Type: "left", Color: "000000", Style: 1},
			{Type: "right", Color: "000000", Style: 1},
			{Type: "top", Color: "000000", Style: 1},
			{Type: "bottom", Color: "000000", Style: 1},
		}
	}
	return file.NewStyle(style)
}

// estimateWidth roughly sizes a column: 1 character = 1.2 units
func estimateWidth(val interface{}) float64 {
	return float64(len(fmt.Sprint(val))) * 1.2
}

// WriteManifestCSV writes report as CSV with a header row.
func WriteManifestCSV(w io.Writer, report *Report) error {
	writer := csv.NewWriter(w)

	if err := writer.Write(ManifestColumns); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	for _, outcome := range report.Outcomes {
		values := manifestRecord(outcome)
		record := make([]string, len(values))
		for i, val := range values {
			switch v := val.(type) {
			case int:
				record[i] = strconv.Itoa(v)
			default:
				record[i] = fmt.Sprint(v)
			}
		}
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("failed to write row: %w", err)
		}
	}

	writer.Flush()
	return writer.Error()
}
