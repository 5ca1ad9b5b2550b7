package templates

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validTemplate() *Template {
	return DefaultTemplate(time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC))
}

func codes(errs []FieldError) []string {
	out := make([]string, len(errs))
	for i, e := range errs {
		out[i] = e.Code
	}
	return out
}

func TestValidate_DefaultTemplateIsValid(t *testing.T) {
	result := Validate(validTemplate())
	assert.True(t, result.IsValid)
	assert.Empty(t, result.Errors)
	assert.NoError(t, result.Err())
}

func TestValidate_InvalidDimensions(t *testing.T) {
	for _, dims := range []CanvasDimensions{{0, 794}, {1123, 0}, {-1, 10}} {
		tpl := validTemplate()
		tpl.CanvasDimensions = dims

		result := Validate(tpl)
		require.False(t, result.IsValid)
		assert.Contains(t, codes(result.Errors), CodeInvalidDimensions)

		err := result.Err()
		assert.True(t, errors.Is(err, ErrInvalidDimensions))
		assert.True(t, errors.Is(err, ErrInvalidTemplate))
		assert.False(t, errors.Is(err, ErrSubstitutionAmbiguity))
	}
}

func TestValidate_OversizedCanvas(t *testing.T) {
	for _, dims := range []CanvasDimensions{{1e10, 1e10}, {MaxCanvasSide + 1, 10}, {8000, 8000}, {math.Inf(1), 10}} {
		tpl := validTemplate()
		tpl.CanvasDimensions = dims

		result := Validate(tpl)
		require.False(t, result.IsValid, "%v", dims)
		assert.Equal(t, []string{CodeInvalidDimensions}, codes(result.Errors))
		assert.ErrorIs(t, result.Err(), ErrInvalidDimensions)
	}

	tpl := validTemplate()
	tpl.CanvasDimensions = CanvasDimensions{Width: MaxCanvasSide, Height: 2000}
	assert.True(t, Validate(tpl).IsValid)
}

func TestValidate_ElementsMayExtendPastCanvas(t *testing.T) {
	tpl := validTemplate()
	tpl.Elements = append(tpl.Elements,
		&ImageElement{ID: "huge", Geometry: Geometry{X: -50, Y: 0, Width: 300000, Height: 300000}},
	)
	assert.True(t, Validate(tpl).IsValid)

	tpl.Elements = append(tpl.Elements,
		&ImageElement{ID: "nan", Geometry: Geometry{X: math.NaN(), Width: 10, Height: 10}},
		&TextElement{ID: "big-text", Geometry: Geometry{Width: 10, Height: 10}, Content: "x", FontSize: MaxFontSize + 1},
	)
	result := Validate(tpl)
	require.False(t, result.IsValid)
	fields := make([]string, len(result.Errors))
	for i, e := range result.Errors {
		fields[i] = e.Field
	}
	assert.ElementsMatch(t, []string{"elements[2]", "elements[3].fontSize"}, fields)
}

func TestValidate_UnicodeFoldedFieldNamesRejected(t *testing.T) {
	tpl := validTemplate()
	tpl.Fields = []Field{
		{ID: "a", Name: "s", Kind: FieldKindOther},
		{ID: "b", Name: "\u017f", Kind: FieldKindOther},
	}

	result := Validate(tpl)
	require.False(t, result.IsValid)
	assert.ErrorIs(t, result.Err(), ErrSubstitutionAmbiguity)
}

func TestValidate_CaseFoldedFieldNamesRejected(t *testing.T) {
	tpl := validTemplate()
	tpl.Fields = append(tpl.Fields, Field{ID: "name2", Name: "NAME", Value: "x", Kind: FieldKindOther})

	result := Validate(tpl)
	require.False(t, result.IsValid)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, "prefixes[4].name", result.Errors[0].Field)
	assert.Equal(t, CodeSubstitutionAmbiguity, result.Errors[0].Code)

	var verr *ValidationError
	require.True(t, errors.As(result.Err(), &verr))
	assert.True(t, errors.Is(verr, ErrSubstitutionAmbiguity))
}

func TestValidate_CollectsEveryProblem(t *testing.T) {
	tpl := validTemplate()
	tpl.Name = "  "
	tpl.Fields = append(tpl.Fields,
		Field{ID: "name", Name: "Other", Kind: FieldKindOther},
		Field{ID: "x", Name: "", Kind: "nickname"},
	)
	tpl.Elements = append(tpl.Elements,
		&TextElement{ID: "default-text-1", Geometry: Geometry{Width: -1, Height: 10}, FontSize: 0, Color: "blue"},
		&ImageElement{ID: ""},
	)

	result := Validate(tpl)
	require.False(t, result.IsValid)

	fields := make(map[string]string)
	for _, e := range result.Errors {
		fields[e.Field] = e.Code
	}
	assert.Equal(t, CodeRequired, fields["name"])
	assert.Equal(t, CodeDuplicate, fields["prefixes[4].id"])
	assert.Equal(t, CodeRequired, fields["prefixes[5].name"])
	assert.Equal(t, CodeInvalid, fields["prefixes[5].type"])
	assert.Equal(t, CodeDuplicate, fields["elements[1].id"])
	assert.Equal(t, CodeInvalid, fields["elements[1]"])
	assert.Equal(t, CodeInvalid, fields["elements[1].fontSize"])
	assert.Equal(t, CodeInvalid, fields["elements[1].color"])
	assert.Equal(t, CodeRequired, fields["elements[2].id"])
}

func TestValidate_UnboundPlaceholderIsWarning(t *testing.T) {
	tpl := validTemplate()
	tpl.Elements = append(tpl.Elements, &TextElement{
		ID:       "venue",
		Geometry: Geometry{Width: 100, Height: 20},
		Content:  "Held at {{venue}}",
		FontSize: 12,
	})

	result := Validate(tpl)
	assert.True(t, result.IsValid)
	require.Len(t, result.Warnings, 1)
	assert.Equal(t, "elements[1].content", result.Warnings[0].Field)
	assert.Contains(t, result.Warnings[0].Message, "{{venue}}")
}

func TestValidate_Nil(t *testing.T) {
	result := Validate(nil)
	assert.False(t, result.IsValid)
	assert.ErrorIs(t, result.Err(), ErrInvalidTemplate)
}

func TestParseHexColor(t *testing.T) {
	c, err := ParseHexColor("#1a2B3c")
	require.NoError(t, err)
	assert.Equal(t, [4]uint8{0x1a, 0x2b, 0x3c, 0xff}, [4]uint8{c.R, c.G, c.B, c.A})

	c, err = ParseHexColor("f00")
	require.NoError(t, err)
	assert.Equal(t, [4]uint8{0xff, 0, 0, 0xff}, [4]uint8{c.R, c.G, c.B, c.A})

	c, err = ParseHexColor("#00ff0080")
	require.NoError(t, err)
	assert.Equal(t, [4]uint8{0, 0xff, 0, 0x80}, [4]uint8{c.R, c.G, c.B, c.A})

	for _, bad := range []string{"", "#12", "#zzzzzz", "red"} {
		_, err := ParseHexColor(bad)
		assert.Error(t, err, bad)
	}
}

func TestNewTemplateID(t *testing.T) {
	now := time.UnixMilli(1700000000000)
	assert.Equal(t, "course-completion----loyw3v28", NewTemplateID("Course Completion!!!", now))
	assert.Equal(t, "a-very-long-template-loyw3v28", NewTemplateID("A very long template name indeed", now))
}
