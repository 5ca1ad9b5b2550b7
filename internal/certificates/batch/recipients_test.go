package batch

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"certificate-studio/generator-backend/internal/templates"
)

func rosterTemplate() *templates.Template {
	return &templates.Template{
		Name:             "Roster",
		CanvasDimensions: templates.CanvasDimensions{Width: 400, Height: 300},
		Elements: templates.Elements{
			&templates.TextElement{
				ID:       "line",
				Geometry: templates.Geometry{X: 0, Y: 100, Width: 400, Height: 40},
				Content:  "{{Name}} finished {{Course}}",
				FontSize: 18,
			},
		},
		Fields: []templates.Field{
			{ID: "name", Name: "Name", Value: "Someone", Kind: templates.FieldKindName},
			{ID: "course", Name: "Course", Value: "Go", Kind: templates.FieldKindCourse},
		},
	}
}

func workbook(t *testing.T, rows [][]interface{}) *bytes.Buffer {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	for r, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, r+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow("Sheet1", cell, &row))
	}
	var buf bytes.Buffer
	require.NoError(t, f.Write(&buf))
	return &buf
}

func TestReadRecipients_CSV(t *testing.T) {
	input := "\ufeffNAME, course ,Code,notes\n" +
		"Ada Lovelace,Analytical Engines,cert_ada,first\n" +
		",,,\n" +
		"Grace Hopper\n"

	recipients, err := ReadRecipients(strings.NewReader(input), FormatCSV, rosterTemplate())
	require.NoError(t, err)
	require.Len(t, recipients, 2)

	assert.Equal(t, Recipient{
		Row:    2,
		Values: map[string]string{"name": "Ada Lovelace", "course": "Analytical Engines"},
		Code:   "cert_ada",
	}, recipients[0])

	// short rows leave missing fields unset so defaults apply
	assert.Equal(t, 4, recipients[1].Row)
	assert.Equal(t, map[string]string{"name": "Grace Hopper"}, recipients[1].Values)
	assert.Empty(t, recipients[1].Code)
}

func TestReadRecipients_XLSX(t *testing.T) {
	buf := workbook(t, [][]interface{}{
		{"course", "Name"},
		{"Compilers", "Frances Allen"},
		{"Databases", "Edgar Codd"},
	})

	recipients, err := ReadRecipients(buf, FormatXLSX, rosterTemplate())
	require.NoError(t, err)
	require.Len(t, recipients, 2)

	assert.Equal(t, map[string]string{"name": "Frances Allen", "course": "Compilers"}, recipients[0].Values)
	assert.Equal(t, 3, recipients[1].Row)
	assert.Equal(t, "Edgar Codd", recipients[1].Values["name"])
}

func TestReadRecipients_Errors(t *testing.T) {
	_, err := ReadRecipients(strings.NewReader("foo,bar\n1,2\n"), FormatCSV, rosterTemplate())
	assert.ErrorIs(t, err, ErrNoMappedColumns)

	_, err = ReadRecipients(strings.NewReader(""), Format("ods"), rosterTemplate())
	assert.ErrorIs(t, err, ErrUnsupportedFormat)

	_, err = ReadRecipients(strings.NewReader("not a zip"), FormatXLSX, rosterTemplate())
	assert.Error(t, err)

	recipients, err := ReadRecipients(strings.NewReader(""), FormatCSV, rosterTemplate())
	require.NoError(t, err)
	assert.Empty(t, recipients)
}

func TestFormatFromFilename(t *testing.T) {
	tests := []struct {
		name    string
		want    Format
		wantErr bool
	}{
		{"roster.xlsx", FormatXLSX, false},
		{"ROSTER.CSV", FormatCSV, false},
		{"people.ods", "", true},
		{"noext", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := FormatFromFilename(tt.name)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrUnsupportedFormat)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
