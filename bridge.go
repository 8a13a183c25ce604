package graphview

import (
	"sync"

	"github.com/hexaflow/graphview/internal/engine"
)

// CellBounds is the position and size of a cell as reported by the graph.
type CellBounds struct {
	X      float64
	Y      float64
	Width  float64
	Height float64
}

// cellBoundsFromValue reconstructs a CellBounds from the raw mapping the
// graph script delivers.
func cellBoundsFromValue(value any) CellBounds {
	m, ok := value.(map[string]any)
	if !ok {
		return CellBounds{}
	}
	return CellBounds{
		X:      toFloat64(m["x"]),
		Y:      toFloat64(m["y"]),
		Width:  toFloat64(m["width"]),
		Height: toFloat64(m["height"]),
	}
}

func toFloat64(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int64:
		return float64(n)
	case int:
		return float64(n)
	}
	return 0
}

func toString(v any) string {
	s, _ := v.(string)
	return s
}

func toStringSlice(v any) []string {
	raw, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		out = append(out, toString(item))
	}
	return out
}

func toFloat64Slice(v any) []float64 {
	raw, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]float64, 0, len(raw))
	for _, item := range raw {
		out = append(out, toFloat64(item))
	}
	return out
}

// EventsBridge fans graph events out to host subscribers. Every graph
// event supports any number of subscribers; subscription order is dispatch
// order. Dispatch happens on the engine's event loop goroutine, one turn
// after the originating graph mutation.
type EventsBridge struct {
	mu sync.Mutex

	cellsAdded          []func(cellIDs []string)
	cellsRemoved        []func(cellIDs []string)
	labelChanged        []func(cellID, newLabel, oldLabel string)
	selectionChanged    []func(cellIDs []string)
	terminalChanged     []func(cellID, terminalType, newTerminalID, oldTerminalID string)
	terminalPortChanged []func(cellID, terminalType, newTerminalID, newPort, oldTerminalID, oldPort string)
	viewUpdate          []func(dump string, scaleAndTranslation []float64)
	boundsChanged       []func(bounds map[string]CellBounds)
}

// NewEventsBridge creates a bridge with no subscribers.
func NewEventsBridge() *EventsBridge {
	return &EventsBridge{}
}

// OnCellsAdded subscribes to cell additions; the handler receives the ids
// of the added cells.
func (b *EventsBridge) OnCellsAdded(fn func(cellIDs []string)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.cellsAdded = append(b.cellsAdded, fn)
}

// OnCellsRemoved subscribes to cell removals; the handler receives the ids
// of the removed cells.
func (b *EventsBridge) OnCellsRemoved(fn func(cellIDs []string)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.cellsRemoved = append(b.cellsRemoved, fn)
}

// OnLabelChanged subscribes to label changes.
func (b *EventsBridge) OnLabelChanged(fn func(cellID, newLabel, oldLabel string)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.labelChanged = append(b.labelChanged, fn)
}

// OnSelectionChanged subscribes to selection changes; the handler receives
// the ids of the currently selected cells.
func (b *EventsBridge) OnSelectionChanged(fn func(cellIDs []string)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.selectionChanged = append(b.selectionChanged, fn)
}

// OnTerminalChanged subscribes to edge terminal changes. terminalType is
// SourceTerminalCell or TargetTerminalCell.
func (b *EventsBridge) OnTerminalChanged(fn func(cellID, terminalType, newTerminalID, oldTerminalID string)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.terminalChanged = append(b.terminalChanged, fn)
}

// OnTerminalWithPortChanged subscribes to edge terminal changes including
// port information; ports are empty strings when the connection does not
// go through one.
func (b *EventsBridge) OnTerminalWithPortChanged(fn func(cellID, terminalType, newTerminalID, newPort, oldTerminalID, oldPort string)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.terminalPortChanged = append(b.terminalPortChanged, fn)
}

// OnViewUpdate subscribes to view updates: any mutation of the visible
// graph. The handler receives a full state dump and the current
// [scale, dx, dy].
func (b *EventsBridge) OnViewUpdate(fn func(dump string, scaleAndTranslation []float64)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.viewUpdate = append(b.viewUpdate, fn)
}

// OnCellsBoundsChanged subscribes to geometry changes; the handler
// receives the new bounds keyed by cell id.
func (b *EventsBridge) OnCellsBoundsChanged(fn func(bounds map[string]CellBounds)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.boundsChanged = append(b.boundsChanged, fn)
}

func (b *EventsBridge) emitCellsAdded(raw any) {
	ids := toStringSlice(raw)
	for _, fn := range b.snapshotCellsAdded() {
		fn(ids)
	}
}

func (b *EventsBridge) emitCellsRemoved(raw any) {
	ids := toStringSlice(raw)
	for _, fn := range b.snapshotCellsRemoved() {
		fn(ids)
	}
}

func (b *EventsBridge) emitLabelChanged(cellID, newLabel, oldLabel any) {
	for _, fn := range b.snapshotLabelChanged() {
		fn(toString(cellID), toString(newLabel), toString(oldLabel))
	}
}

func (b *EventsBridge) emitSelectionChanged(raw any) {
	ids := toStringSlice(raw)
	for _, fn := range b.snapshotSelectionChanged() {
		fn(ids)
	}
}

func (b *EventsBridge) emitTerminalChanged(cellID, terminalType, newTerminalID, oldTerminalID any) {
	for _, fn := range b.snapshotTerminalChanged() {
		fn(toString(cellID), toString(terminalType), toString(newTerminalID), toString(oldTerminalID))
	}
}

func (b *EventsBridge) emitTerminalWithPortChanged(cellID, terminalType, newTerminalID, newPort, oldTerminalID, oldPort any) {
	for _, fn := range b.snapshotTerminalPortChanged() {
		fn(toString(cellID), toString(terminalType), toString(newTerminalID),
			toString(newPort), toString(oldTerminalID), toString(oldPort))
	}
}

func (b *EventsBridge) emitViewUpdate(dump, scaleAndTranslation any) {
	st := toFloat64Slice(scaleAndTranslation)
	for _, fn := range b.snapshotViewUpdate() {
		fn(toString(dump), st)
	}
}

func (b *EventsBridge) emitCellsBoundsChanged(raw any) {
	m, _ := raw.(map[string]any)
	bounds := make(map[string]CellBounds, len(m))
	for id, v := range m {
		bounds[id] = cellBoundsFromValue(v)
	}
	for _, fn := range b.snapshotBoundsChanged() {
		fn(bounds)
	}
}

func (b *EventsBridge) snapshotCellsAdded() []func([]string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append(([]func([]string))(nil), b.cellsAdded...)
}

func (b *EventsBridge) snapshotCellsRemoved() []func([]string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append(([]func([]string))(nil), b.cellsRemoved...)
}

func (b *EventsBridge) snapshotLabelChanged() []func(string, string, string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append(([]func(string, string, string))(nil), b.labelChanged...)
}

func (b *EventsBridge) snapshotSelectionChanged() []func([]string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append(([]func([]string))(nil), b.selectionChanged...)
}

func (b *EventsBridge) snapshotTerminalChanged() []func(string, string, string, string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append(([]func(string, string, string, string))(nil), b.terminalChanged...)
}

func (b *EventsBridge) snapshotTerminalPortChanged() []func(string, string, string, string, string, string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append(([]func(string, string, string, string, string, string))(nil), b.terminalPortChanged...)
}

func (b *EventsBridge) snapshotViewUpdate() []func(string, []float64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append(([]func(string, []float64))(nil), b.viewUpdate...)
}

func (b *EventsBridge) snapshotBoundsChanged() []func(map[string]CellBounds) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append(([]func(map[string]CellBounds))(nil), b.boundsChanged...)
}

// ErrorBridge fans graph script errors out to host subscribers.
type ErrorBridge struct {
	mu        sync.Mutex
	observers []func(*engine.ScriptError)
}

// NewErrorBridge creates a bridge with no subscribers.
func NewErrorBridge() *ErrorBridge {
	return &ErrorBridge{}
}

// OnError subscribes to script errors raised by the graph page.
func (b *ErrorBridge) OnError(fn func(*engine.ScriptError)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.observers = append(b.observers, fn)
}

func (b *ErrorBridge) emit(err *engine.ScriptError) {
	b.mu.Lock()
	observers := append(([]func(*engine.ScriptError))(nil), b.observers...)
	b.mu.Unlock()
	for _, fn := range observers {
		fn(err)
	}
}
