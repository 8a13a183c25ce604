package graphview

import (
	"context"
	"fmt"
	"sync"

	"github.com/dop251/goja"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hexaflow/graphview/callback"
	"github.com/hexaflow/graphview/internal/engine"
)

// Config configures a Widget.
type Config struct {
	// Options configures graph behavior; nil means DefaultOptions.
	Options *GraphOptions
	// Styles declares the named styles available to cells; nil means no
	// named styles beyond the built-in defaults.
	Styles *GraphStyles
	// Debug enables per-call readiness and existence probes on the graph
	// API gateway.
	Debug bool
	// AutoLoad loads the graph page during New instead of waiting for an
	// explicit Load call.
	AutoLoad bool
	Logger   *zap.Logger
}

// Widget hosts a graph drawing surface backed by an embedded script
// engine. All graph operations go through API and resolve asynchronously;
// graph events come back through an EventsBridge.
type Widget struct {
	id     string
	rt     *engine.Runtime
	page   *engine.Page
	api    *API
	logger *zap.Logger

	options *GraphOptions
	styles  *GraphStyles

	mu              sync.Mutex
	events          *EventsBridge
	errs            *ErrorBridge
	doubleClick     func(cellID string)
	popupMenu       func(cellID string, x, y int)
	errObserverOnce sync.Once
}

// New creates a Widget with its own engine runtime. The context bounds the
// engine lifecycle; Close must be called when done.
func New(ctx context.Context, cfg Config) (*Widget, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	options := cfg.Options
	if options == nil {
		options = DefaultOptions()
	}
	if err := options.Validate(); err != nil {
		return nil, fmt.Errorf("graph options: %w", err)
	}
	if cfg.Styles != nil {
		if err := cfg.Styles.Validate(); err != nil {
			return nil, fmt.Errorf("graph styles: %w", err)
		}
	}

	rt, err := engine.NewRuntime(ctx, logger)
	if err != nil {
		return nil, err
	}

	w := &Widget{
		id:      uuid.NewString(),
		rt:      rt,
		options: options,
		styles:  cfg.Styles,
		events:  NewEventsBridge(),
		errs:    NewErrorBridge(),
	}
	w.logger = logger.With(zap.String("widget_id", w.id))
	w.page = engine.NewPage(rt, w.logger)
	w.api = NewAPI(w.page, cfg.Debug, w.logger)

	if cfg.AutoLoad {
		if err := w.Load(); err != nil {
			_ = rt.Close()
			return nil, err
		}
	}
	return w, nil
}

// ID returns the unique id of this widget instance.
func (w *Widget) ID() string { return w.id }

// API returns the graph API gateway.
func (w *Widget) API() *API { return w.api }

// Page returns the underlying script page. Exposed for composition and
// tests; most callers only need API.
func (w *Widget) Page() *engine.Page { return w.page }

// Load installs configuration globals, loads the graph page and connects
// the event bridges. Safe to call again after Blank.
func (w *Widget) Load() error {
	if err := w.page.SetJSONGlobal("graphOptions", w.options); err != nil {
		return err
	}
	if w.styles != nil {
		if err := w.page.SetJSONGlobal("graphStyles", w.styles); err != nil {
			return err
		}
	}
	if err := w.registerBridgeGlobals(); err != nil {
		return err
	}
	if err := w.page.Load(); err != nil {
		return err
	}
	w.connectBridges()
	return nil
}

// IsLoaded reports whether the graph page is loaded and running.
func (w *Widget) IsLoaded() bool { return w.page.IsLoaded() }

// Blank unloads the graph page, discarding all graph state. Load restores
// an empty graph.
func (w *Widget) Blank() { w.page.Blank() }

// OnLoadFinished registers an observer notified after each Load attempt.
func (w *Widget) OnLoadFinished(fn func(ok bool)) { w.page.OnLoadFinished(fn) }

// Close shuts down the engine runtime. The widget is unusable afterwards.
func (w *Widget) Close() error { return w.rt.Close() }

// Resize forwards new surface dimensions to the graph container.
func (w *Widget) Resize(width, height float64) {
	w.api.ResizeContainer(nil, width, height)
}

// EventsBridge returns the bridge delivering graph events to host
// subscribers.
func (w *Widget) EventsBridge() *EventsBridge {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.events
}

// SetEventsBridge replaces the events bridge. Existing graph-side
// registrations stay in place; events simply fan out to the new bridge's
// subscribers from the next delivery on.
func (w *Widget) SetEventsBridge(bridge *EventsBridge) {
	if bridge == nil {
		bridge = NewEventsBridge()
	}
	w.mu.Lock()
	w.events = bridge
	w.mu.Unlock()
}

// ErrorBridge returns the bridge delivering script errors to host
// subscribers.
func (w *Widget) ErrorBridge() *ErrorBridge {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.errs
}

// SetErrorBridge replaces the error bridge.
func (w *Widget) SetErrorBridge(bridge *ErrorBridge) {
	if bridge == nil {
		bridge = NewErrorBridge()
	}
	w.mu.Lock()
	w.errs = bridge
	w.mu.Unlock()
}

// SetDoubleClickHandler installs the host handler for cell double clicks.
// A nil handler detaches silently. Double click is exclusive: the new
// handler replaces any previous one.
func (w *Widget) SetDoubleClickHandler(fn func(cellID string)) {
	w.mu.Lock()
	w.doubleClick = fn
	w.mu.Unlock()

	if !w.page.IsLoaded() {
		return
	}
	if fn == nil {
		w.api.Call(nil, "setDoubleClickHandler", nil)
		return
	}
	w.api.SetDoubleClickHandler(nil, Var("bridge_double_click_handler.double_click_slot"))
}

// SetPopupMenuHandler installs the host handler for cell context menus; x
// and y are graph coordinates. A nil handler detaches silently.
func (w *Widget) SetPopupMenuHandler(fn func(cellID string, x, y int)) {
	w.mu.Lock()
	w.popupMenu = fn
	w.mu.Unlock()

	if !w.page.IsLoaded() {
		return
	}
	if fn == nil {
		w.api.Call(nil, "setPopupMenuHandler", nil)
		return
	}
	w.api.SetPopupMenuHandler(nil, Var("bridge_popup_menu_handler.popup_menu_slot"))
}

// registerBridgeGlobals publishes the slot objects the graph script calls
// back into. Each slot re-posts its dispatch one loop turn later so host
// subscribers never run inside the graph mutation that fired the event.
func (w *Widget) registerBridgeGlobals() error {
	if err := w.rt.SetGlobal("bridge_events_handler", map[string]any{
		"cells_added_slot": func(cellIDs any) {
			w.deferred(func() { w.currentEvents().emitCellsAdded(cellIDs) })
		},
		"cells_removed_slot": func(cellIDs any) {
			w.deferred(func() { w.currentEvents().emitCellsRemoved(cellIDs) })
		},
		"label_changed_slot": func(cellID, newLabel, oldLabel any) {
			w.deferred(func() { w.currentEvents().emitLabelChanged(cellID, newLabel, oldLabel) })
		},
		"selection_changed_slot": func(cellIDs any) {
			w.deferred(func() { w.currentEvents().emitSelectionChanged(cellIDs) })
		},
		"terminal_changed_slot": func(cellID, terminalType, newTerminalID, oldTerminalID any) {
			w.deferred(func() {
				w.currentEvents().emitTerminalChanged(cellID, terminalType, newTerminalID, oldTerminalID)
			})
		},
		"terminal_with_port_changed_slot": func(cellID, terminalType, newTerminalID, newPort, oldTerminalID, oldPort any) {
			w.deferred(func() {
				w.currentEvents().emitTerminalWithPortChanged(
					cellID, terminalType, newTerminalID, newPort, oldTerminalID, oldPort)
			})
		},
		"view_update_slot": func(dump, scaleAndTranslation any) {
			w.deferred(func() { w.currentEvents().emitViewUpdate(dump, scaleAndTranslation) })
		},
		"bounds_changed_slot": func(bounds any) {
			w.deferred(func() { w.currentEvents().emitCellsBoundsChanged(bounds) })
		},
	}); err != nil {
		return err
	}
	if err := w.rt.SetGlobal("bridge_double_click_handler", map[string]any{
		"double_click_slot": func(cellID any) {
			w.deferred(func() {
				w.mu.Lock()
				fn := w.doubleClick
				w.mu.Unlock()
				if fn != nil {
					fn(toString(cellID))
				}
			})
		},
	}); err != nil {
		return err
	}
	return w.rt.SetGlobal("bridge_popup_menu_handler", map[string]any{
		"popup_menu_slot": func(cellID, x, y any) {
			w.deferred(func() {
				w.mu.Lock()
				fn := w.popupMenu
				w.mu.Unlock()
				if fn != nil {
					fn(toString(cellID), int(toFloat64(x)), int(toFloat64(y)))
				}
			})
		},
	})
}

// connectBridges registers the graph-side event subscriptions and hooks
// script errors into the error bridge.
func (w *Widget) connectBridges() {
	w.api.OnCellsAdded(nil, Var("bridge_events_handler.cells_added_slot"))
	w.api.OnCellsRemoved(nil, Var("bridge_events_handler.cells_removed_slot"))
	w.api.OnLabelChanged(nil, Var("bridge_events_handler.label_changed_slot"))
	w.api.OnSelectionChanged(nil, Var("bridge_events_handler.selection_changed_slot"))
	w.api.OnTerminalChanged(nil, Var("bridge_events_handler.terminal_changed_slot"))
	w.api.OnTerminalWithPortChanged(nil, Var("bridge_events_handler.terminal_with_port_changed_slot"))
	w.api.OnViewUpdate(nil, Var("bridge_events_handler.view_update_slot"))
	w.api.OnCellsBoundsChanged(nil, Var("bridge_events_handler.bounds_changed_slot"))

	w.errObserverOnce.Do(func() {
		w.page.OnScriptError(func(se *engine.ScriptError) {
			w.mu.Lock()
			errs := w.errs
			w.mu.Unlock()
			errs.emit(se)
		})
	})

	w.mu.Lock()
	doubleClick := w.doubleClick
	popupMenu := w.popupMenu
	w.mu.Unlock()
	if doubleClick != nil {
		w.api.SetDoubleClickHandler(nil, Var("bridge_double_click_handler.double_click_slot"))
	}
	if popupMenu != nil {
		w.api.SetPopupMenuHandler(nil, Var("bridge_popup_menu_handler.popup_menu_slot"))
	}
}

func (w *Widget) currentEvents() *EventsBridge {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.events
}

// deferred re-posts fn to the event loop, pushing it one turn past the
// graph mutation currently executing.
func (w *Widget) deferred(fn func()) {
	if !w.rt.RunOnLoop(func(*goja.Runtime) { fn() }) {
		fn()
	}
}

// DropContent inserts the cells described by a drag-and-drop payload at
// the given drop position. Offsets in the payload are scaled by the
// current zoom before being applied.
func (w *Widget) DropContent(data []byte, x, y float64) error {
	drag, err := ParseDragData(data)
	if err != nil {
		return err
	}

	blocker := callback.NewBlocker(callback.WithMessage("getZoomScale during drop"))
	w.api.GetZoomScale(blocker.Completion())
	if err := blocker.Wait(); err != nil {
		return err
	}
	scale := toFloat64(blocker.Arg(0))
	if scale == 0 {
		scale = 1
	}

	for _, v := range drag.Vertices {
		opts := &InsertVertexOptions{Style: v.Style, Tags: v.Tags}
		w.api.InsertVertex(nil, x+v.DX*scale, y+v.DY*scale, v.Width, v.Height, v.Label, opts)
	}
	for _, d := range drag.Decorations {
		opts := &InsertDecorationOptions{Style: d.Style, Tags: d.Tags}
		w.api.InsertDecoration(nil, x, y, d.Width, d.Height, d.Label, opts)
	}
	return nil
}
