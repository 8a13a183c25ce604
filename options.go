package graphview

import (
	"encoding/json"
	"fmt"

	"github.com/lucasb-eyer/go-colorful"
	"gopkg.in/yaml.v3"
)

// GraphOptions configures the graph surface. The zero value is NOT usable;
// start from DefaultOptions and override.
//
// Field names follow the keys the graph page consumes, so the struct
// marshals directly into the configuration global.
type GraphOptions struct {
	// ShowGrid displays the background alignment grid.
	ShowGrid bool `yaml:"show_grid" json:"show_grid"`
	// SnapToGrid aligns moved vertices to the grid.
	SnapToGrid bool `yaml:"snap_to_grid" json:"snap_to_grid"`
	// ShowOutline opens the outline overview window.
	ShowOutline bool `yaml:"show_outline" json:"show_outline"`
	// CellsMovable allows cells to be moved.
	CellsMovable bool `yaml:"cells_movable" json:"cells_movable"`
	// CellsConnectable allows new connections to be created between cells.
	CellsConnectable bool `yaml:"cells_connectable" json:"cells_connectable"`
	// CellsResizable allows cells to be resized.
	CellsResizable bool `yaml:"cells_resizable" json:"cells_resizable"`
	// FontFamily is the label font stack; empty means the graph default.
	FontFamily string `yaml:"font_family" json:"font_family,omitempty"`
	// FontSize is the label font size in points; zero means the graph
	// default.
	FontSize int `yaml:"font_size" json:"font_size,omitempty"`
}

// DefaultOptions returns the stock configuration: grid shown with
// snapping, no outline, cells movable, connectable and resizable.
func DefaultOptions() *GraphOptions {
	return &GraphOptions{
		ShowGrid:         true,
		SnapToGrid:       true,
		ShowOutline:      false,
		CellsMovable:     true,
		CellsConnectable: true,
		CellsResizable:   true,
	}
}

// Validate checks option values that have constrained domains.
func (o *GraphOptions) Validate() error {
	if o.FontSize < 0 {
		return fmt.Errorf("font_size must not be negative, got %d", o.FontSize)
	}
	return nil
}

// LoadOptionsYAML parses graph options from YAML, starting from
// DefaultOptions so absent keys keep their defaults.
func LoadOptionsYAML(data []byte) (*GraphOptions, error) {
	opts := DefaultOptions()
	if err := yaml.Unmarshal(data, opts); err != nil {
		return nil, fmt.Errorf("parse graph options: %w", err)
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	return opts, nil
}

// CellStyle describes a named style cells can reference by name. All
// fields are optional.
type CellStyle struct {
	// Shape is the vertex shape, e.g. "rectangle" or "ellipse".
	Shape string `yaml:"shape" json:"shape,omitempty"`
	// FillColor is the interior color as "#RRGGBB".
	FillColor string `yaml:"fill_color" json:"fill_color,omitempty"`
	// FillOpacity is the interior opacity in [0, 1]; zero means opaque.
	FillOpacity float64 `yaml:"fill_opacity" json:"fill_opacity,omitempty"`
	// StrokeColor is the border color as "#RRGGBB".
	StrokeColor string `yaml:"stroke_color" json:"stroke_color,omitempty"`
	// StrokeOpacity is the border opacity in [0, 1]; zero means opaque.
	StrokeOpacity float64 `yaml:"stroke_opacity" json:"stroke_opacity,omitempty"`
	// FontColor is the label color as "#RRGGBB".
	FontColor string `yaml:"font_color" json:"font_color,omitempty"`
	// FontSize is the label font size in points.
	FontSize int `yaml:"font_size" json:"font_size,omitempty"`
	// Dashed draws edges and borders dashed.
	Dashed bool `yaml:"dashed" json:"dashed,omitempty"`
	// Rounded rounds vertex corners.
	Rounded bool `yaml:"rounded" json:"rounded,omitempty"`
	// LabelPosition is the horizontal label placement: "left", "center" or
	// "right".
	LabelPosition string `yaml:"label_position" json:"label_position,omitempty"`
	// VerticalLabelPosition is the vertical label placement: "top",
	// "middle" or "bottom".
	VerticalLabelPosition string `yaml:"vertical_label_position" json:"vertical_label_position,omitempty"`
	// EndArrow is the edge arrowhead, e.g. "classic" or "none".
	EndArrow string `yaml:"end_arrow" json:"end_arrow,omitempty"`
}

// Validate checks colors and opacity ranges.
func (s *CellStyle) Validate() error {
	for _, c := range []struct {
		field string
		value string
	}{
		{"fill_color", s.FillColor},
		{"stroke_color", s.StrokeColor},
		{"font_color", s.FontColor},
	} {
		if c.value == "" {
			continue
		}
		if _, err := colorful.Hex(c.value); err != nil {
			return fmt.Errorf("%s: %w", c.field, err)
		}
	}
	for _, o := range []struct {
		field string
		value float64
	}{
		{"fill_opacity", s.FillOpacity},
		{"stroke_opacity", s.StrokeOpacity},
	} {
		if o.value < 0 || o.value > 1 {
			return fmt.Errorf("%s must be within [0, 1], got %v", o.field, o.value)
		}
	}
	if s.FontSize < 0 {
		return fmt.Errorf("font_size must not be negative, got %d", s.FontSize)
	}
	return nil
}

// GraphStyles declares the named styles cells can reference. The YAML form
// nests them under a styles key; the graph page receives the flat mapping.
type GraphStyles struct {
	Styles map[string]CellStyle `yaml:"styles"`
}

// MarshalJSON flattens to the name-to-style mapping the graph page reads.
func (s *GraphStyles) MarshalJSON() ([]byte, error) {
	if s.Styles == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(s.Styles)
}

// Validate checks every declared style.
func (s *GraphStyles) Validate() error {
	for name, style := range s.Styles {
		if name == "" {
			return fmt.Errorf("style names must not be empty")
		}
		if err := style.Validate(); err != nil {
			return fmt.Errorf("style %q: %w", name, err)
		}
	}
	return nil
}

// LoadStylesYAML parses a style catalog from YAML.
func LoadStylesYAML(data []byte) (*GraphStyles, error) {
	var styles GraphStyles
	if err := yaml.Unmarshal(data, &styles); err != nil {
		return nil, fmt.Errorf("parse graph styles: %w", err)
	}
	if err := styles.Validate(); err != nil {
		return nil, err
	}
	return &styles, nil
}
