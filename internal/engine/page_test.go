package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestPage(t *testing.T) *Page {
	t.Helper()
	rt, err := NewRuntime(context.Background(), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = rt.Close() })
	return NewPage(rt, nil)
}

func awaitValue(t *testing.T, ch <-chan any) any {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(2 * time.Second):
		t.Fatal("no asynchronous delivery")
		return nil
	}
}

func TestPageLoad(t *testing.T) {
	p := newTestPage(t)
	assert.False(t, p.IsLoaded())

	loadCh := make(chan bool, 1)
	p.OnLoadFinished(func(ok bool) { loadCh <- ok })

	require.NoError(t, p.Load())
	assert.True(t, <-loadCh)
	assert.True(t, p.IsLoaded())
}

func TestPageBlankAndReload(t *testing.T) {
	p := newTestPage(t)
	require.NoError(t, p.Load())
	require.True(t, p.IsLoaded())

	p.Blank()
	assert.False(t, p.IsLoaded())

	require.NoError(t, p.Load())
	assert.True(t, p.IsLoaded())
}

func TestPageEvalJSDeliversResult(t *testing.T) {
	p := newTestPage(t)
	require.NoError(t, p.Load())

	ch := make(chan any, 1)
	p.EvalJS(func(v any) { ch <- v }, "1 + 2")
	assert.Equal(t, int64(3), awaitValue(t, ch))

	// Undefined and null both come back as nil.
	p.EvalJS(func(v any) { ch <- v }, "undefined")
	assert.Nil(t, awaitValue(t, ch))
	p.EvalJS(func(v any) { ch <- v }, "null")
	assert.Nil(t, awaitValue(t, ch))
}

func TestPageEvalJSNeverDeliversSynchronously(t *testing.T) {
	p := newTestPage(t)
	require.NoError(t, p.Load())

	delivered := false
	ch := make(chan struct{})
	p.EvalJS(func(any) { delivered = true; close(ch) }, "1")
	assert.False(t, delivered)
	<-ch
}

func TestPageScriptErrorFansOutAndResolvesNil(t *testing.T) {
	p := newTestPage(t)
	require.NoError(t, p.Load())

	errCh := make(chan *ScriptError, 1)
	p.OnScriptError(func(se *ScriptError) { errCh <- se })

	resCh := make(chan any, 1)
	p.EvalJS(func(v any) { resCh <- v }, "(function () { throw new Error('BOOM') })()")

	// The failed evaluation still resolves its completion, with nil.
	assert.Nil(t, awaitValue(t, resCh))

	select {
	case se := <-errCh:
		assert.Contains(t, se.Message, "BOOM")
		assert.Equal(t, "graphpage.js", se.Source)
	case <-time.After(2 * time.Second):
		t.Fatal("script error never fanned out")
	}
}

func TestPageReportError(t *testing.T) {
	p := newTestPage(t)
	require.NoError(t, p.Load())

	errCh := make(chan *ScriptError, 1)
	p.OnScriptError(func(se *ScriptError) { errCh <- se })

	hostErr := errors.New("probe failed")
	p.ReportError(hostErr)

	select {
	case se := <-errCh:
		assert.Equal(t, "probe failed", se.Message)
		assert.ErrorIs(t, se, hostErr)
	case <-time.After(2 * time.Second):
		t.Fatal("host error never fanned out")
	}

	// Nil is ignored.
	p.ReportError(nil)
}

func TestPageSetJSONGlobal(t *testing.T) {
	p := newTestPage(t)

	require.NoError(t, p.SetJSONGlobal("cfg", map[string]any{"show_grid": false}))
	require.NoError(t, p.Load())

	ch := make(chan any, 1)
	p.EvalJS(func(v any) { ch <- v }, "cfg.show_grid")
	assert.Equal(t, false, awaitValue(t, ch))

	err := p.SetJSONGlobal("bad", make(chan int))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "encode bad")
}

func TestPageGraphNamespacesAvailableAfterLoad(t *testing.T) {
	p := newTestPage(t)
	require.NoError(t, p.Load())

	ch := make(chan any, 1)
	p.EvalJS(func(v any) { ch <- v }, "typeof api.insertVertex")
	assert.Equal(t, "function", awaitValue(t, ch))

	p.EvalJS(func(v any) { ch <- v }, "graphs.isRunning()")
	assert.Equal(t, true, awaitValue(t, ch))
}
