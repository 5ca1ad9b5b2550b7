package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"certificate-studio/generator-backend/internal/templates"
)

func TestSetFlags(t *testing.T) {
	var s setFlags
	require.NoError(t, s.Set("name=Ada Lovelace"))
	require.NoError(t, s.Set("course=a=b"))

	assert.Equal(t, setFlags{"name": "Ada Lovelace", "course": "a=b"}, s)
	assert.Error(t, s.Set("novalue"))
	assert.Error(t, s.Set("=x"))
}

func TestRunValidate(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "good.json")
	require.NoError(t, os.WriteFile(good, []byte(`{
		"name": "Award",
		"canvasDimensions": {"width": 800, "height": 600},
		"elements": [],
		"prefixes": [{"id": "name", "name": "Name", "value": "Ada", "type": "name"}]
	}`), 0o644))
	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte(`{"name": "", "canvasDimensions": {"width": 0, "height": 600}}`), 0o644))

	var out bytes.Buffer
	require.NoError(t, runValidate([]string{"-template", good}, &out))
	assert.Contains(t, out.String(), `"is_valid": true`)

	out.Reset()
	err := runValidate([]string{"-template", bad}, &out)
	assert.ErrorIs(t, err, templates.ErrInvalidDimensions)
	assert.Contains(t, out.String(), templates.CodeInvalidDimensions)

	assert.Error(t, runValidate(nil, &out))
}
