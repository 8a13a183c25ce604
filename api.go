package graphview

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/hexaflow/graphview/callback"
	"github.com/hexaflow/graphview/internal/engine"
)

// Terminal types accepted by SetEdgeTerminal.
const (
	SourceTerminalCell = "source"
	TargetTerminalCell = "target"
)

// Layouts accepted by RunLayout.
const (
	LayoutOrganic      = "organic"
	LayoutCompact      = "compact"
	LayoutCircle       = "circle"
	LayoutCompactTree  = "compact_tree"
	LayoutEdgeLabel    = "edge_label"
	LayoutParallelEdge = "parallel_edge"
	LayoutPartition    = "partition"
	LayoutRadialTree   = "radial_tree"
	LayoutStack        = "stack"
)

// Cell types reported by GetCellType.
const (
	CellTypeVertex     = "vertex"
	CellTypeEdge       = "edge"
	CellTypeDecoration = "decoration"
	CellTypeTable      = "table"
)

// API is the typed binding for the graph-drawing functions living in the
// embedded script engine. Every operation is asynchronous: it submits a
// remote evaluation and the single result is delivered to the supplied
// completion on a later event-loop turn, never synchronously.
type API struct {
	page   *engine.Page
	debug  bool
	logger *zap.Logger
}

// NewAPI creates a binding over page. With debug enabled, every call is
// preceded by an engine-readiness probe and a function-existence probe,
// trading an extra round trip for diagnosable failures.
func NewAPI(page *engine.Page, debug bool, logger *zap.Logger) *API {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &API{page: page, debug: debug, logger: logger}
}

// Call invokes a function of the graph API with positional arguments. All
// arguments must be JSON-serializable or Var live references. The
// completion is returned unchanged to enable chaining idioms.
//
// Without debug mode a call to a nonexistent function reports a script
// error to the error observers but still resolves the completion with nil,
// indistinguishable from a legitimate null-returning call. This mirrors
// the underlying engine's behavior and is intentional; enable debug mode
// to get a FunctionNotFoundError instead.
func (a *API) Call(completion callback.Completion, fn string, args ...any) callback.Completion {
	if a.debug {
		a.callDebug(completion, fn, args...)
		return completion
	}
	expr, err := PrepareCall(fn, args...)
	if err != nil {
		a.page.ReportError(err)
		return completion
	}
	a.page.EvalJS(completion, "api."+expr)
	return completion
}

// callDebug chains two asynchronous preconditions before the real call:
// the page must be loaded and running, and the target function must exist
// on the api namespace. Failures surface through the page's script-error
// observers; the completion is never resolved.
func (a *API) callDebug(completion callback.Completion, fn string, args ...any) {
	a.page.EvalJS(func(loaded any) {
		if !truthy(loaded) {
			a.page.ReportError(ErrEngineUnavailable)
			return
		}
		a.page.EvalJS(func(exists any) {
			if !truthy(exists) {
				a.page.ReportError(&FunctionNotFoundError{Name: fn})
				return
			}
			expr, err := PrepareCall(fn, args...)
			if err != nil {
				a.page.ReportError(err)
				return
			}
			a.page.EvalJS(completion, "api."+expr)
		}, fmt.Sprintf("(typeof api !== 'undefined') && !!api.%s", fn))
	}, `(typeof graphs !== "undefined") && graphs.isRunning()`)
}

func truthy(v any) bool {
	b, ok := v.(bool)
	return ok && b
}

// nullable maps the empty string to a JSON null argument.
func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullableTags(tags map[string]string) any {
	if tags == nil {
		return nil
	}
	return tags
}

// InsertVertexOptions are the optional parameters of InsertVertex.
type InsertVertexOptions struct {
	Style string
	Tags  map[string]string
	// ID of the new vertex; generated when empty or not unique.
	ID string
}

// InsertVertex inserts a new vertex. The completion receives the id of the
// new vertex.
func (a *API) InsertVertex(completion callback.Completion, x, y, width, height float64, label string, opts *InsertVertexOptions) callback.Completion {
	if opts == nil {
		opts = &InsertVertexOptions{}
	}
	return a.Call(completion, "insertVertex", x, y, width, height, label,
		nullable(opts.Style), nullableTags(opts.Tags), nullable(opts.ID))
}

// InsertPortOptions are the optional parameters of InsertPort.
type InsertPortOptions struct {
	Label string
	Style string
	Tags  map[string]string
}

// InsertPort inserts a new port in a vertex. Port coordinates are
// normalized (0-1) relative to the vertex bounds.
func (a *API) InsertPort(completion callback.Completion, vertexID, portName string, x, y float64, width, height float64, opts *InsertPortOptions) callback.Completion {
	if opts == nil {
		opts = &InsertPortOptions{}
	}
	return a.Call(completion, "insertPort", vertexID, portName, x, y, width, height,
		nullable(opts.Label), nullable(opts.Style), nullableTags(opts.Tags))
}

// InsertEdgeOptions are the optional parameters of InsertEdge.
type InsertEdgeOptions struct {
	Style          string
	Tags           map[string]string
	SourcePortName string
	TargetPortName string
	ID             string
}

// InsertEdge inserts a new edge between two vertices. The completion
// receives the id of the new edge.
func (a *API) InsertEdge(completion callback.Completion, sourceID, targetID, label string, opts *InsertEdgeOptions) callback.Completion {
	if opts == nil {
		opts = &InsertEdgeOptions{}
	}
	return a.Call(completion, "insertEdge", sourceID, targetID, label,
		nullable(opts.Style), nullableTags(opts.Tags),
		nullable(opts.SourcePortName), nullable(opts.TargetPortName), nullable(opts.ID))
}

// InsertDecorationOptions are the optional parameters of the decoration
// insert operations.
type InsertDecorationOptions struct {
	Style string
	Tags  map[string]string
	ID    string
}

// InsertDecoration inserts a decoration over the edge found at (x, y); it
// is an error when no edge contains that point. The completion receives
// the id of the new decoration.
func (a *API) InsertDecoration(completion callback.Completion, x, y, width, height float64, label string, opts *InsertDecorationOptions) callback.Completion {
	if opts == nil {
		opts = &InsertDecorationOptions{}
	}
	return a.Call(completion, "insertDecoration", x, y, width, height, label,
		nullable(opts.Style), nullableTags(opts.Tags), nullable(opts.ID))
}

// InsertDecorationOnEdge inserts a decoration at a normalized position
// along an edge.
func (a *API) InsertDecorationOnEdge(completion callback.Completion, edgeID string, position, width, height float64, label string, opts *InsertDecorationOptions) callback.Completion {
	if opts == nil {
		opts = &InsertDecorationOptions{}
	}
	return a.Call(completion, "insertDecorationOnEdge", edgeID, position, width, height, label,
		nullable(opts.Style), nullableTags(opts.Tags), nullable(opts.ID))
}

// InsertTableOptions are the optional parameters of InsertTable.
type InsertTableOptions struct {
	Tags     map[string]string
	Style    string
	ParentID string
	ID       string
}

// InsertTable inserts a table displaying tabular information. Contents
// must be a plain JSON-compatible mapping; nested domain value objects
// must be flattened by the caller before reaching the gateway.
func (a *API) InsertTable(completion callback.Completion, x, y, width float64, contents map[string]any, title string, opts *InsertTableOptions) callback.Completion {
	if opts == nil {
		opts = &InsertTableOptions{}
	}
	return a.Call(completion, "insertTable", x, y, width, contents, title,
		nullableTags(opts.Tags), nullable(opts.Style), nullable(opts.ParentID), nullable(opts.ID))
}

// UpdateTable updates contents and title of a table.
func (a *API) UpdateTable(completion callback.Completion, tableID string, contents map[string]any, title string) callback.Completion {
	return a.Call(completion, "updateTable", tableID, contents, title)
}

// Group creates a group with the currently selected cells. The completion
// receives the id of the new group.
func (a *API) Group(completion callback.Completion) callback.Completion {
	return a.Call(completion, "group")
}

// Ungroup dissolves the currently selected groups.
func (a *API) Ungroup(completion callback.Completion) callback.Completion {
	return a.Call(completion, "ungroup")
}

// ToggleOutline toggles the outline overview window.
func (a *API) ToggleOutline(completion callback.Completion) callback.Completion {
	return a.Call(completion, "toggleOutline")
}

// ToggleGrid toggles the background alignment grid.
func (a *API) ToggleGrid(completion callback.Completion) callback.Completion {
	return a.Call(completion, "toggleGrid")
}

// ToggleSnap toggles snapping of moved vertices to the grid.
func (a *API) ToggleSnap(completion callback.Completion) callback.Completion {
	return a.Call(completion, "toggleSnap")
}

// GetCellIDAt resolves the id of the cell at the given coordinates; the
// completion receives nil when no cell is there.
func (a *API) GetCellIDAt(completion callback.Completion, x, y float64) callback.Completion {
	return a.Call(completion, "getCellIdAt", x, y)
}

// GetDecorationParentCellID resolves the id of the edge containing a
// decoration.
func (a *API) GetDecorationParentCellID(completion callback.Completion, cellID string) callback.Completion {
	return a.Call(completion, "getDecorationParentCellId", cellID)
}

// HasCell reports whether a cell exists.
func (a *API) HasCell(completion callback.Completion, cellID string) callback.Completion {
	return a.Call(completion, "hasCell", cellID)
}

// HasPort reports whether a vertex has the named port.
func (a *API) HasPort(completion callback.Completion, cellID, portName string) callback.Completion {
	return a.Call(completion, "hasPort", cellID, portName)
}

// GetCellType resolves one of the CellType constants for a cell.
func (a *API) GetCellType(completion callback.Completion, cellID string) callback.Completion {
	return a.Call(completion, "getCellType", cellID)
}

// GetGeometry resolves a cell's geometry as [x, y, width, height].
func (a *API) GetGeometry(completion callback.Completion, cellID string) callback.Completion {
	return a.Call(completion, "getGeometry", cellID)
}

// GetEdgeTerminalPoints resolves the terminal coordinates of an edge as
// [[sourceX, sourceY], [targetX, targetY]].
func (a *API) GetEdgeTerminalPoints(completion callback.Completion, edgeID string) callback.Completion {
	return a.Call(completion, "getEdgeTerminalPoints", edgeID)
}

// GetDecorationPosition resolves a decoration's normalized position along
// its parent edge.
func (a *API) GetDecorationPosition(completion callback.Completion, cellID string) callback.Completion {
	return a.Call(completion, "getDecorationPosition", cellID)
}

// SetDecorationPosition moves a decoration along its parent edge.
func (a *API) SetDecorationPosition(completion callback.Completion, cellID string, position float64) callback.Completion {
	return a.Call(completion, "setDecorationPosition", cellID, position)
}

// SetVisible changes a cell's visibility.
func (a *API) SetVisible(completion callback.Completion, cellID string, visible bool) callback.Completion {
	return a.Call(completion, "setVisible", cellID, visible)
}

// IsVisible resolves a cell's visibility.
func (a *API) IsVisible(completion callback.Completion, cellID string) callback.Completion {
	return a.Call(completion, "isVisible", cellID)
}

// SetPortVisible changes a port's visibility.
func (a *API) SetPortVisible(completion callback.Completion, cellID, portName string, visible bool) callback.Completion {
	return a.Call(completion, "setPortVisible", cellID, portName, visible)
}

// IsPortVisible resolves a port's visibility.
func (a *API) IsPortVisible(completion callback.Completion, cellID, portName string) callback.Completion {
	return a.Call(completion, "isPortVisible", cellID, portName)
}

// SetConnectable changes whether a cell accepts connections.
func (a *API) SetConnectable(completion callback.Completion, cellID string, connectable bool) callback.Completion {
	return a.Call(completion, "setConnectable", cellID, connectable)
}

// IsConnectable resolves whether a cell accepts connections.
func (a *API) IsConnectable(completion callback.Completion, cellID string) callback.Completion {
	return a.Call(completion, "isConnectable", cellID)
}

// ZoomIn zooms the graph in.
func (a *API) ZoomIn(completion callback.Completion) callback.Completion {
	return a.Call(completion, "zoomIn")
}

// ZoomOut zooms the graph out.
func (a *API) ZoomOut(completion callback.Completion) callback.Completion {
	return a.Call(completion, "zoomOut")
}

// ResetZoom resets the zoom scale to 1.
func (a *API) ResetZoom(completion callback.Completion) callback.Completion {
	return a.Call(completion, "resetZoom")
}

// Fit rescales the graph to fit its container.
func (a *API) Fit(completion callback.Completion) callback.Completion {
	return a.Call(completion, "fit")
}

// GetZoomScale resolves the current zoom scale.
func (a *API) GetZoomScale(completion callback.Completion) callback.Completion {
	return a.Call(completion, "getZoomScale")
}

// GetScaleAndTranslation resolves [scale, dx, dy], suitable to be fed back
// to SetScaleAndTranslation.
func (a *API) GetScaleAndTranslation(completion callback.Completion) callback.Completion {
	return a.Call(completion, "getScaleAndTranslation")
}

// SetScaleAndTranslation sets the scale (1 = 100%) and the translation
// along both axes (0 = origin).
func (a *API) SetScaleAndTranslation(completion callback.Completion, scale, x, y float64) callback.Completion {
	return a.Call(completion, "setScaleAndTranslation", scale, x, y)
}

// SetSelectedCells selects the cells with the given ids.
func (a *API) SetSelectedCells(completion callback.Completion, cellIDs []string) callback.Completion {
	return a.Call(completion, "setSelectedCells", cellIDs)
}

// GetSelectedCells resolves the selected cell ids.
func (a *API) GetSelectedCells(completion callback.Completion) callback.Completion {
	return a.Call(completion, "getSelectedCells")
}

// RemoveCells removes cells from the graph; edges connected to removed
// cells go with them.
func (a *API) RemoveCells(completion callback.Completion, cellIDs []string) callback.Completion {
	return a.Call(completion, "removeCells", cellIDs)
}

// RemovePort removes a port from a vertex along with any edge connected
// through it.
func (a *API) RemovePort(completion callback.Completion, vertexID, portName string) callback.Completion {
	return a.Call(completion, "removePort", vertexID, portName)
}

// SetDoubleClickHandler installs the double-click handler, a live
// reference to a bridge slot. Double click is exclusive to a single
// handler.
func (a *API) SetDoubleClickHandler(completion callback.Completion, handler Var) callback.Completion {
	return a.Call(completion, "setDoubleClickHandler", handler)
}

// SetPopupMenuHandler installs the popup-menu (right-click) handler, a
// live reference to a bridge slot. Popup menu is exclusive to a single
// handler.
func (a *API) SetPopupMenuHandler(completion callback.Completion, handler Var) callback.Completion {
	return a.Call(completion, "setPopupMenuHandler", handler)
}

// OnLabelChanged registers a bridge slot for label change events.
func (a *API) OnLabelChanged(completion callback.Completion, handler Var) callback.Completion {
	return a.Call(completion, "onLabelChanged", handler)
}

// OnCellsAdded registers a bridge slot for cell addition events.
func (a *API) OnCellsAdded(completion callback.Completion, handler Var) callback.Completion {
	return a.Call(completion, "onCellsAdded", handler)
}

// OnCellsRemoved registers a bridge slot for cell removal events.
func (a *API) OnCellsRemoved(completion callback.Completion, handler Var) callback.Completion {
	return a.Call(completion, "onCellsRemoved", handler)
}

// OnSelectionChanged registers a bridge slot for selection change events.
func (a *API) OnSelectionChanged(completion callback.Completion, handler Var) callback.Completion {
	return a.Call(completion, "onSelectionChanged", handler)
}

// OnTerminalChanged registers a bridge slot for edge terminal change
// events.
func (a *API) OnTerminalChanged(completion callback.Completion, handler Var) callback.Completion {
	return a.Call(completion, "onTerminalChanged", handler)
}

// OnTerminalWithPortChanged registers a bridge slot for terminal change
// events that carry port information.
func (a *API) OnTerminalWithPortChanged(completion callback.Completion, handler Var) callback.Completion {
	return a.Call(completion, "onTerminalWithPortChanged", handler)
}

// OnViewUpdate registers a bridge slot for view update events.
func (a *API) OnViewUpdate(completion callback.Completion, handler Var) callback.Completion {
	return a.Call(completion, "onViewUpdate", handler)
}

// OnCellsBoundsChanged registers a bridge slot for cell bounds change
// events.
func (a *API) OnCellsBoundsChanged(completion callback.Completion, handler Var) callback.Completion {
	return a.Call(completion, "onBoundsChanged", handler)
}

// ResizeContainer resizes the graph container. Dimensions too small to
// contain the existing cells are clamped by the graph itself.
func (a *API) ResizeContainer(completion callback.Completion, width, height float64) callback.Completion {
	return a.Call(completion, "resizeContainer", width, height)
}

// GetLabel resolves a cell's label.
func (a *API) GetLabel(completion callback.Completion, cellID string) callback.Completion {
	return a.Call(completion, "getLabel", cellID)
}

// SetLabel sets a cell's label.
func (a *API) SetLabel(completion callback.Completion, cellID, label string) callback.Completion {
	return a.Call(completion, "setLabel", cellID, label)
}

// SetStyle sets a cell's style, either a named style or an inline one.
func (a *API) SetStyle(completion callback.Completion, cellID, style string) callback.Completion {
	return a.Call(completion, "setStyle", cellID, style)
}

// GetStyle resolves a cell's style.
func (a *API) GetStyle(completion callback.Completion, cellID string) callback.Completion {
	return a.Call(completion, "getStyle", cellID)
}

// SetTag sets a tag on a cell. Tag values are always strings.
func (a *API) SetTag(completion callback.Completion, cellID, tagName, tagValue string) callback.Completion {
	return a.Call(completion, "setTag", cellID, tagName, tagValue)
}

// GetTag resolves the value of a tag on a cell.
func (a *API) GetTag(completion callback.Completion, cellID, tagName string) callback.Completion {
	return a.Call(completion, "getTag", cellID, tagName)
}

// HasTag reports whether a cell carries the named tag.
func (a *API) HasTag(completion callback.Completion, cellID, tagName string) callback.Completion {
	return a.Call(completion, "hasTag", cellID, tagName)
}

// GetEdgeTerminals resolves [sourceID, targetID] of an edge.
func (a *API) GetEdgeTerminals(completion callback.Completion, edgeID string) callback.Completion {
	return a.Call(completion, "getEdgeTerminals", edgeID)
}

// GetEdgeTerminalsWithPorts resolves [[sourceID, sourcePort],
// [targetID, targetPort]] of an edge; ports are null when unused.
func (a *API) GetEdgeTerminalsWithPorts(completion callback.Completion, edgeID string) callback.Completion {
	return a.Call(completion, "getEdgeTerminalsWithPorts", edgeID)
}

// SetEdgeTerminal reconnects one terminal of an edge. terminalType must be
// SourceTerminalCell or TargetTerminalCell; portName may be empty.
func (a *API) SetEdgeTerminal(completion callback.Completion, edgeID, terminalType, newTerminalCellID, portName string) (callback.Completion, error) {
	if terminalType != SourceTerminalCell && terminalType != TargetTerminalCell {
		return completion, fmt.Errorf("%q is not a valid value for terminalType", terminalType)
	}
	return a.Call(completion, "setEdgeTerminal", edgeID, terminalType, newTerminalCellID, nullable(portName)), nil
}

// GetCellBounds resolves a cell's bounds as a typed record; the raw
// mapping delivered by the graph is reconstructed before reaching the
// completion.
func (a *API) GetCellBounds(completion func(CellBounds), cellID string) {
	a.Call(func(value any) {
		completion(cellBoundsFromValue(value))
	}, "getCellBounds", cellID)
}

// SetCellBounds applies bounds to a cell.
func (a *API) SetCellBounds(completion callback.Completion, cellID string, bounds CellBounds) callback.Completion {
	return a.Call(completion, "setCellBounds", cellID, map[string]any{
		"x": bounds.X, "y": bounds.Y, "width": bounds.Width, "height": bounds.Height,
	})
}

// GetCellCount resolves the number of cells matched by filterExpr, a
// JavaScript function expression receiving a cell (e.g.
// `function (cell) { return cell.type === "edge" }`). The expression is a
// live reference, evaluated remotely; empty means count everything.
func (a *API) GetCellCount(completion callback.Completion, filterExpr string) callback.Completion {
	if filterExpr == "" {
		return a.Call(completion, "getCellCount", nil)
	}
	return a.Call(completion, "getCellCount", Var("("+filterExpr+")"))
}

// Dump resolves the current graph state as an XML string, restorable with
// Restore.
func (a *API) Dump(completion callback.Completion) callback.Completion {
	return a.Call(completion, "dump")
}

// Restore replaces the graph state with one previously obtained from Dump.
func (a *API) Restore(completion callback.Completion, state string) callback.Completion {
	return a.Call(completion, "restore", state)
}

// SetCellsDeletable enables or disables cell deletion.
func (a *API) SetCellsDeletable(completion callback.Completion, enabled bool) callback.Completion {
	return a.Call(completion, "setCellsDeletable", enabled)
}

// IsCellsDeletable resolves whether cells are deletable.
func (a *API) IsCellsDeletable(completion callback.Completion) callback.Completion {
	return a.Call(completion, "isCellsDeletable")
}

// SetCellsDisconnectable enables or disables edge disconnection.
func (a *API) SetCellsDisconnectable(completion callback.Completion, enabled bool) callback.Completion {
	return a.Call(completion, "setCellsDisconnectable", enabled)
}

// IsCellsDisconnectable resolves whether edges may be disconnected.
func (a *API) IsCellsDisconnectable(completion callback.Completion) callback.Completion {
	return a.Call(completion, "isCellsDisconnectable")
}

// SetCellsEditable enables or disables in-place label editing.
func (a *API) SetCellsEditable(completion callback.Completion, enabled bool) callback.Completion {
	return a.Call(completion, "setCellsEditable", enabled)
}

// IsCellsEditable resolves whether labels may be edited in place.
func (a *API) IsCellsEditable(completion callback.Completion) callback.Completion {
	return a.Call(completion, "isCellsEditable")
}

// SetCellsMovable enables or disables cell movement.
func (a *API) SetCellsMovable(completion callback.Completion, enabled bool) callback.Completion {
	return a.Call(completion, "setCellsMovable", enabled)
}

// IsCellsMovable resolves whether cells are movable.
func (a *API) IsCellsMovable(completion callback.Completion) callback.Completion {
	return a.Call(completion, "isCellsMovable")
}

// SetCellsConnectable enables or disables creating connections.
func (a *API) SetCellsConnectable(completion callback.Completion, enabled bool) callback.Completion {
	return a.Call(completion, "setCellsConnectable", enabled)
}

// IsCellsConnectable resolves whether connections may be created.
func (a *API) IsCellsConnectable(completion callback.Completion) callback.Completion {
	return a.Call(completion, "isCellsConnectable")
}

// RunLayout executes one of the Layout constants over the graph.
func (a *API) RunLayout(completion callback.Completion, layoutName string) callback.Completion {
	return a.Call(completion, "runLayout", layoutName)
}
