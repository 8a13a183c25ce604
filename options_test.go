package graphview

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultOptions(t *testing.T) {
	opts := DefaultOptions()
	assert.True(t, opts.ShowGrid)
	assert.True(t, opts.SnapToGrid)
	assert.False(t, opts.ShowOutline)
	assert.True(t, opts.CellsMovable)
	assert.True(t, opts.CellsConnectable)
	assert.True(t, opts.CellsResizable)
	require.NoError(t, opts.Validate())
}

func TestLoadOptionsYAML(t *testing.T) {
	opts, err := LoadOptionsYAML([]byte(`
show_grid: false
cells_resizable: false
font_family: Helvetica
font_size: 12
`))
	require.NoError(t, err)
	assert.False(t, opts.ShowGrid)
	assert.False(t, opts.CellsResizable)
	// Absent keys keep their defaults.
	assert.True(t, opts.SnapToGrid)
	assert.True(t, opts.CellsMovable)
	assert.Equal(t, "Helvetica", opts.FontFamily)
	assert.Equal(t, 12, opts.FontSize)
}

func TestLoadOptionsYAMLErrors(t *testing.T) {
	_, err := LoadOptionsYAML([]byte(`font_size: -3`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "font_size must not be negative")

	_, err = LoadOptionsYAML([]byte(`{`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse graph options")
}

func TestLoadStylesYAML(t *testing.T) {
	styles, err := LoadStylesYAML([]byte(`
styles:
  blue:
    shape: ellipse
    fill_color: "#0000FF"
    fill_opacity: 0.5
  warning:
    stroke_color: "#FFAA00"
    dashed: true
`))
	require.NoError(t, err)
	require.Len(t, styles.Styles, 2)
	assert.Equal(t, "ellipse", styles.Styles["blue"].Shape)
	assert.Equal(t, 0.5, styles.Styles["blue"].FillOpacity)
	assert.True(t, styles.Styles["warning"].Dashed)
}

func TestStylesValidation(t *testing.T) {
	tests := []struct {
		name  string
		style CellStyle
		want  string
	}{
		{"bad fill color", CellStyle{FillColor: "not-a-color"}, "fill_color"},
		{"bad stroke color", CellStyle{StrokeColor: "#12"}, "stroke_color"},
		{"bad font color", CellStyle{FontColor: "red"}, "font_color"},
		{"opacity above range", CellStyle{FillOpacity: 1.5}, "fill_opacity must be within [0, 1]"},
		{"opacity below range", CellStyle{StrokeOpacity: -0.1}, "stroke_opacity must be within [0, 1]"},
		{"negative font size", CellStyle{FontSize: -1}, "font_size must not be negative"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &GraphStyles{Styles: map[string]CellStyle{"bad": tt.style}}
			err := s.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), `style "bad"`)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestGraphStylesMarshalsFlat(t *testing.T) {
	s := &GraphStyles{Styles: map[string]CellStyle{
		"blue": {Shape: "ellipse", FillColor: "#0000FF"},
	}}
	encoded, err := json.Marshal(s)
	require.NoError(t, err)

	var flat map[string]map[string]any
	require.NoError(t, json.Unmarshal(encoded, &flat))
	require.Contains(t, flat, "blue")
	assert.Equal(t, "ellipse", flat["blue"]["shape"])
	assert.Equal(t, "#0000FF", flat["blue"]["fill_color"])

	empty, err := json.Marshal(&GraphStyles{})
	require.NoError(t, err)
	assert.Equal(t, "{}", string(empty))
}
