package engine

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/dop251/goja"
	"go.uber.org/zap"
)

//go:embed graphpage.js
var graphPageScript string

// readyProbe is the engine-readiness expression. It is only meaningful
// while the graph page is loaded.
const readyProbe = `(typeof graphs !== "undefined") && graphs.isRunning()`

// ScriptError describes an error thrown by script code, or an error raised
// by the host while probing the script API.
type ScriptError struct {
	Message string
	Source  string
	Line    int
	Column  int
	// Err is the underlying host-side error, when there is one.
	Err error
}

func (e *ScriptError) Error() string {
	if e.Source != "" {
		return fmt.Sprintf("%s (%s:%d:%d)", e.Message, e.Source, e.Line, e.Column)
	}
	return e.Message
}

func (e *ScriptError) Unwrap() error { return e.Err }

// Page is the headless stand-in for the web view hosting the graph page.
// It loads the embedded graph script and provides asynchronous expression
// evaluation with single-delivery completions.
type Page struct {
	rt     *Runtime
	logger *zap.Logger

	mu            sync.Mutex
	loaded        bool
	errObservers  []func(*ScriptError)
	loadObservers []func(ok bool)
}

// NewPage creates a page bound to rt. The page is blank until Load is
// called.
func NewPage(rt *Runtime, logger *zap.Logger) *Page {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Page{rt: rt, logger: logger}
}

// Runtime returns the runtime hosting this page.
func (p *Page) Runtime() *Runtime { return p.rt }

// OnScriptError registers an observer for script-thrown errors and host
// probe failures. Observers run on the event loop goroutine, one turn
// after the error occurred.
func (p *Page) OnScriptError(fn func(*ScriptError)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.errObservers = append(p.errObservers, fn)
}

// OnLoadFinished registers an observer notified after Load completes. The
// argument reports whether the page is usable.
func (p *Page) OnLoadFinished(fn func(ok bool)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.loadObservers = append(p.loadObservers, fn)
}

// Load evaluates the embedded graph page script, making the graphs and api
// namespaces available. Configuration globals must be set before calling
// Load. Safe to call again after Blank.
func (p *Page) Load() error {
	err := p.rt.LoadScript("graphpage.js", graphPageScript)
	ok := err == nil

	p.mu.Lock()
	p.loaded = ok
	observers := append(([]func(bool))(nil), p.loadObservers...)
	p.mu.Unlock()

	if err != nil {
		p.logger.Error("graph page failed to load", zap.Error(err))
	} else {
		p.logger.Debug("graph page loaded")
	}
	for _, fn := range observers {
		fn(ok)
	}
	if err != nil {
		return fmt.Errorf("load graph page: %w", err)
	}
	return nil
}

// Blank unloads the page, clearing the graph namespaces. Evaluations
// issued after Blank deliver nil results.
func (p *Page) Blank() {
	p.mu.Lock()
	p.loaded = false
	p.mu.Unlock()

	// Best effort; the loop may already be stopping.
	p.rt.RunOnLoop(func(vm *goja.Runtime) {
		_, _ = vm.RunString(`if (typeof graphs !== "undefined") { graphs._running = false; }
graphs = undefined;
api = undefined;`)
	})
}

// IsLoaded reports whether the page finished loading and the graph script
// reports itself as running. Safe to call from the event loop goroutine.
func (p *Page) IsLoaded() bool {
	p.mu.Lock()
	loaded := p.loaded
	p.mu.Unlock()
	if !loaded {
		return false
	}

	var running bool
	err := p.rt.TryRunOnLoopSync(func(vm *goja.Runtime) error {
		val, err := vm.RunString(readyProbe)
		if err != nil {
			return err
		}
		running = val.ToBoolean()
		return nil
	})
	return err == nil && running
}

// EvalJS submits expr for asynchronous evaluation. The completion, when
// non-nil, receives exactly one result value on a later loop turn, never
// synchronously within this call. A thrown script error is fanned out to
// the script-error observers and the completion receives nil, matching a
// legitimate null result.
func (p *Page) EvalJS(completion func(value any), expr string) {
	scheduled := p.rt.RunOnLoop(func(vm *goja.Runtime) {
		val, err := vm.RunString(expr)
		if err != nil {
			p.reportError(toScriptError(err))
			if completion != nil {
				completion(nil)
			}
			return
		}
		if completion != nil {
			completion(exportValue(val))
		}
	})
	if !scheduled {
		p.logger.Warn("evaluation dropped: event loop not running", zap.String("expr", expr))
	}
}

// ReportError fans out a host-side error (e.g. a debug-guard failure) to
// the script-error observers, on a later loop turn.
func (p *Page) ReportError(err error) {
	if err == nil {
		return
	}
	if se, ok := err.(*ScriptError); ok {
		p.reportError(se)
		return
	}
	p.reportError(&ScriptError{Message: err.Error(), Err: err})
}

// reportError defers observer dispatch by one loop turn so handlers never
// run inside the failing evaluation's call frame.
func (p *Page) reportError(se *ScriptError) {
	p.logger.Warn("script error", zap.String("message", se.Message))
	p.mu.Lock()
	observers := append(([]func(*ScriptError))(nil), p.errObservers...)
	p.mu.Unlock()
	if len(observers) == 0 {
		return
	}
	p.rt.RunOnLoop(func(*goja.Runtime) {
		for _, fn := range observers {
			fn(se)
		}
	})
}

// toScriptError converts a goja evaluation error.
func toScriptError(err error) *ScriptError {
	if ex, ok := err.(*goja.Exception); ok {
		return &ScriptError{Message: ex.Error(), Source: "graphpage.js", Err: err}
	}
	return &ScriptError{Message: err.Error(), Source: "graphpage.js", Err: err}
}

// exportValue converts a goja value to a plain Go value. Undefined and
// null both export as nil.
func exportValue(val goja.Value) any {
	if val == nil || goja.IsUndefined(val) || goja.IsNull(val) {
		return nil
	}
	return val.Export()
}

// SetJSONGlobal marshals v and assigns it to a global; used for
// configuration handed to the graph page before Load.
func (p *Page) SetJSONGlobal(name string, v any) error {
	encoded, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", name, err)
	}
	return p.rt.RunOnLoopSync(func(vm *goja.Runtime) error {
		val, err := vm.RunString(fmt.Sprintf("(%s)", string(encoded)))
		if err != nil {
			return err
		}
		return vm.Set(name, val)
	})
}
