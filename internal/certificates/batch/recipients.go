// Package batch generates one certificate per row of a recipient sheet.
package batch

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"certificate-studio/generator-backend/internal/templates"
)

// Format is a recipient sheet format
type Format string

const (
	FormatXLSX Format = "xlsx"
	FormatCSV  Format = "csv"
)

// CodeColumn is the optional header naming a per-row certificate code.
const CodeColumn = "code"

var (
	// ErrUnsupportedFormat is returned for sheets that are neither xlsx nor csv.
	ErrUnsupportedFormat = errors.New("unsupported recipient format")
	// ErrNoMappedColumns means no header matched a template field.
	ErrNoMappedColumns = errors.New("no column matches a template field")
)

// Recipient is one row of field values.
type Recipient struct {
	// Row is the 1-based row number in the source sheet.
	Row    int
	Values map[string]string
	Code   string
}

// FormatFromFilename picks the format from the file extension.
func FormatFromFilename(name string) (Format, error) {
	switch strings.ToLower(strings.TrimPrefix(filepath.Ext(name), ".")) {
	case "xlsx", "xlsm":
		return FormatXLSX, nil
	case "csv", "txt":
		return FormatCSV, nil
	}
	return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, name)
}

// ReadRecipients reads a recipient sheet. The first row is the header; each
// header cell names a field of tpl by ID or by name, ignoring case. A
// "code" column, when present, supplies the certificate code. Unknown
// columns and blank rows are skipped.
func ReadRecipients(r io.Reader, format Format, tpl *templates.Template) ([]Recipient, error) {
	var (
		rows [][]string
		err  error
	)
	switch format {
	case FormatXLSX:
		rows, err = readXLSX(r)
	case FormatCSV:
		rows, err = readCSV(r)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}

	columns, codeColumn := mapHeader(rows[0], tpl)
	if len(columns) == 0 {
		return nil, ErrNoMappedColumns
	}

	var recipients []Recipient
	for i, row := range rows[1:] {
		if blank(row) {
			continue
		}
		rec := Recipient{Row: i + 2, Values: make(map[string]string, len(columns))}
		for col, fieldID := range columns {
			if col < len(row) {
				rec.Values[fieldID] = strings.TrimSpace(row[col])
			}
		}
		if codeColumn >= 0 && codeColumn < len(row) {
			rec.Code = strings.TrimSpace(row[codeColumn])
		}
		recipients = append(recipients, rec)
	}
	return recipients, nil
}

func readXLSX(r io.Reader) ([][]string, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, nil
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %s: %w", sheets[0], err)
	}
	return rows, nil
}

func readCSV(r io.Reader) ([][]string, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read csv: %w", err)
	}
	return rows, nil
}

// mapHeader maps column index to field ID. The code column is -1 when absent.
func mapHeader(header []string, tpl *templates.Template) (map[int]string, int) {
	byKey := make(map[string]string)
	if tpl != nil {
		// names first so an ID that equals another field's name wins
		for _, f := range tpl.Fields {
			byKey[strings.ToLower(f.Name)] = f.ID
		}
		for _, f := range tpl.Fields {
			byKey[strings.ToLower(f.ID)] = f.ID
		}
	}

	columns := make(map[int]string)
	codeColumn := -1
	for i, cell := range header {
		key := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(cell, "\ufeff")))
		if id, ok := byKey[key]; ok {
			columns[i] = id
		} else if key == CodeColumn && codeColumn < 0 {
			codeColumn = i
		}
	}
	return columns, codeColumn
}

func blank(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
