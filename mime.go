package graphview

import (
	"encoding/json"
	"fmt"
)

// DragDataMIMEType identifies serialized drag-and-drop payloads targeting
// the graph surface.
const DragDataMIMEType = "application/x-graphview-drag-data"

// Payload versions understood by ParseDragData. Version 2 added
// decorations.
const (
	DragDataVersion1 = 1
	DragDataVersion2 = 2
)

// DragVertex describes a vertex to insert on drop. DX and DY are offsets
// from the drop point, scaled by the current zoom at drop time.
type DragVertex struct {
	DX     float64           `json:"dx"`
	DY     float64           `json:"dy"`
	Width  float64           `json:"width"`
	Height float64           `json:"height"`
	Label  string            `json:"label"`
	Style  string            `json:"style,omitempty"`
	Tags   map[string]string `json:"tags,omitempty"`
}

// DragDecoration describes a decoration to insert on drop; it attaches to
// the edge under the drop point.
type DragDecoration struct {
	Width  float64           `json:"width"`
	Height float64           `json:"height"`
	Label  string            `json:"label"`
	Style  string            `json:"style,omitempty"`
	Tags   map[string]string `json:"tags,omitempty"`
}

// DragData is the versioned drag-and-drop payload.
type DragData struct {
	Version     int              `json:"version"`
	Vertices    []DragVertex     `json:"vertices,omitempty"`
	Decorations []DragDecoration `json:"decorations,omitempty"`
}

// ParseDragData decodes and validates a drag-and-drop payload.
func ParseDragData(data []byte) (*DragData, error) {
	var drag DragData
	if err := json.Unmarshal(data, &drag); err != nil {
		return nil, fmt.Errorf("decode drag data: %w", err)
	}
	switch drag.Version {
	case DragDataVersion1:
		if len(drag.Decorations) > 0 {
			return nil, fmt.Errorf("drag data version 1 does not support decorations")
		}
	case DragDataVersion2:
	default:
		return nil, fmt.Errorf("unsupported drag data version %d", drag.Version)
	}
	for i, v := range drag.Vertices {
		if v.Width <= 0 || v.Height <= 0 {
			return nil, fmt.Errorf("vertex %d: width and height must be positive", i)
		}
	}
	for i, d := range drag.Decorations {
		if d.Width <= 0 || d.Height <= 0 {
			return nil, fmt.Errorf("decoration %d: width and height must be positive", i)
		}
	}
	return &drag, nil
}
