package graphview

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hexaflow/graphview/callback"
)

func TestNewValidatesConfiguration(t *testing.T) {
	_, err := New(context.Background(), Config{
		Styles: &GraphStyles{Styles: map[string]CellStyle{"bad": {FillColor: "chartreuse"}}},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "graph styles")

	_, err = New(context.Background(), Config{
		Options: &GraphOptions{FontSize: -1},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "graph options")
}

func TestWidgetLoadLifecycle(t *testing.T) {
	w, err := New(context.Background(), Config{})
	require.NoError(t, err)
	defer func() { _ = w.Close() }()

	assert.NotEmpty(t, w.ID())
	assert.False(t, w.IsLoaded())

	loadCh := make(chan bool, 2)
	w.OnLoadFinished(func(ok bool) { loadCh <- ok })

	require.NoError(t, w.Load())
	assert.True(t, <-loadCh)
	assert.True(t, w.IsLoaded())

	insertVertex(t, w.API(), 0, 0, 10, 10, "A")

	w.Blank()
	assert.False(t, w.IsLoaded())

	// Reloading starts from an empty graph.
	require.NoError(t, w.Load())
	assert.True(t, <-loadCh)
	count := await(t, func(c callback.Completion) { w.API().GetCellCount(c, "") })
	assert.Equal(t, int64(0), count)
}

func TestWidgetAppliesOptions(t *testing.T) {
	w, err := New(context.Background(), Config{
		AutoLoad: true,
		Options: func() *GraphOptions {
			o := DefaultOptions()
			o.ShowGrid = false
			o.CellsMovable = false
			return o
		}(),
	})
	require.NoError(t, err)
	defer func() { _ = w.Close() }()

	assert.Equal(t, false, await(t, func(c callback.Completion) { w.API().IsCellsMovable(c) }))
}

func TestCellsAddedAndRemovedEvents(t *testing.T) {
	w := newTestWidget(t, false)

	addedCh := make(chan []string, 4)
	removedCh := make(chan []string, 4)
	w.EventsBridge().OnCellsAdded(func(ids []string) { addedCh <- ids })
	w.EventsBridge().OnCellsRemoved(func(ids []string) { removedCh <- ids })

	id := insertVertex(t, w.API(), 0, 0, 10, 10, "A")
	select {
	case ids := <-addedCh:
		assert.Equal(t, []string{id}, ids)
	case <-time.After(2 * time.Second):
		t.Fatal("cellsAdded never delivered")
	}

	await(t, func(c callback.Completion) { w.API().RemoveCells(c, []string{id}) })
	select {
	case ids := <-removedCh:
		assert.Equal(t, []string{id}, ids)
	case <-time.After(2 * time.Second):
		t.Fatal("cellsRemoved never delivered")
	}
}

func TestLabelChangedEvent(t *testing.T) {
	w := newTestWidget(t, false)

	type change struct{ id, newLabel, oldLabel string }
	ch := make(chan change, 1)
	w.EventsBridge().OnLabelChanged(func(cellID, newLabel, oldLabel string) {
		ch <- change{cellID, newLabel, oldLabel}
	})

	id := insertVertex(t, w.API(), 0, 0, 10, 10, "before")
	await(t, func(c callback.Completion) { w.API().SetLabel(c, id, "after") })

	select {
	case got := <-ch:
		assert.Equal(t, change{id, "after", "before"}, got)
	case <-time.After(2 * time.Second):
		t.Fatal("labelChanged never delivered")
	}
}

func TestSelectionChangedEvent(t *testing.T) {
	w := newTestWidget(t, false)

	ch := make(chan []string, 1)
	w.EventsBridge().OnSelectionChanged(func(ids []string) { ch <- ids })

	a := insertVertex(t, w.API(), 0, 0, 10, 10, "A")
	b := insertVertex(t, w.API(), 20, 0, 10, 10, "B")
	await(t, func(c callback.Completion) { w.API().SetSelectedCells(c, []string{a, b}) })

	select {
	case ids := <-ch:
		assert.Equal(t, []string{a, b}, ids)
	case <-time.After(2 * time.Second):
		t.Fatal("selectionChanged never delivered")
	}
}

func TestTerminalChangedEvents(t *testing.T) {
	w := newTestWidget(t, false)
	api := w.API()

	type plain struct{ id, terminalType, newID, oldID string }
	type withPort struct{ id, terminalType, newID, newPort, oldID, oldPort string }
	plainCh := make(chan plain, 1)
	portCh := make(chan withPort, 1)
	w.EventsBridge().OnTerminalChanged(func(cellID, terminalType, newTerminalID, oldTerminalID string) {
		plainCh <- plain{cellID, terminalType, newTerminalID, oldTerminalID}
	})
	w.EventsBridge().OnTerminalWithPortChanged(func(cellID, terminalType, newTerminalID, newPort, oldTerminalID, oldPort string) {
		portCh <- withPort{cellID, terminalType, newTerminalID, newPort, oldTerminalID, oldPort}
	})

	a := insertVertex(t, api, 0, 0, 10, 10, "A")
	b := insertVertex(t, api, 20, 0, 10, 10, "B")
	c := insertVertex(t, api, 40, 0, 10, 10, "C")
	await(t, func(cb callback.Completion) { api.InsertPort(cb, c, "in", 0, 0, 4, 4, nil) })
	edge := await(t, func(cb callback.Completion) { api.InsertEdge(cb, a, b, "", nil) }).(string)

	blocker := callback.NewBlocker(callback.WithTimeout(2 * time.Second))
	_, err := api.SetEdgeTerminal(blocker.Completion(), edge, TargetTerminalCell, c, "in")
	require.NoError(t, err)
	require.NoError(t, blocker.Wait())

	select {
	case got := <-plainCh:
		assert.Equal(t, plain{edge, TargetTerminalCell, c, b}, got)
	case <-time.After(2 * time.Second):
		t.Fatal("terminalChanged never delivered")
	}
	select {
	case got := <-portCh:
		// The old connection went straight to the cell, so its port is
		// reported as the empty string.
		assert.Equal(t, withPort{edge, TargetTerminalCell, c, "in", b, ""}, got)
	case <-time.After(2 * time.Second):
		t.Fatal("terminalWithPortChanged never delivered")
	}
}

func TestViewUpdateEvent(t *testing.T) {
	w := newTestWidget(t, false)

	type update struct {
		dump string
		st   []float64
	}
	ch := make(chan update, 1)
	w.EventsBridge().OnViewUpdate(func(dump string, st []float64) { ch <- update{dump, st} })

	await(t, func(c callback.Completion) { w.API().ZoomIn(c) })

	select {
	case got := <-ch:
		assert.Contains(t, got.dump, "<graph state=")
		require.Len(t, got.st, 3)
		assert.Equal(t, 1.2, got.st[0])
	case <-time.After(2 * time.Second):
		t.Fatal("viewUpdate never delivered")
	}
}

func TestCellsBoundsChangedEvent(t *testing.T) {
	w := newTestWidget(t, false)

	ch := make(chan map[string]CellBounds, 1)
	w.EventsBridge().OnCellsBoundsChanged(func(bounds map[string]CellBounds) { ch <- bounds })

	id := insertVertex(t, w.API(), 0, 0, 10, 10, "A")
	await(t, func(c callback.Completion) {
		w.API().SetCellBounds(c, id, CellBounds{X: 1, Y: 2, Width: 3, Height: 4})
	})

	select {
	case bounds := <-ch:
		assert.Equal(t, map[string]CellBounds{id: {X: 1, Y: 2, Width: 3, Height: 4}}, bounds)
	case <-time.After(2 * time.Second):
		t.Fatal("boundsChanged never delivered")
	}
}

func TestSetEventsBridgeSwapsDelivery(t *testing.T) {
	w := newTestWidget(t, false)

	oldCh := make(chan []string, 1)
	w.EventsBridge().OnCellsAdded(func(ids []string) { oldCh <- ids })

	replacement := NewEventsBridge()
	newCh := make(chan []string, 1)
	replacement.OnCellsAdded(func(ids []string) { newCh <- ids })
	w.SetEventsBridge(replacement)
	assert.Same(t, replacement, w.EventsBridge())

	id := insertVertex(t, w.API(), 0, 0, 10, 10, "A")
	select {
	case ids := <-newCh:
		assert.Equal(t, []string{id}, ids)
	case <-time.After(2 * time.Second):
		t.Fatal("replacement bridge never received the event")
	}
	select {
	case <-oldCh:
		t.Fatal("old bridge still receiving events")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestDoubleClickHandler(t *testing.T) {
	w := newTestWidget(t, false)

	ch := make(chan string, 1)
	w.SetDoubleClickHandler(func(cellID string) { ch <- cellID })

	w.Page().EvalJS(nil, `graphs.fireDoubleClick("v1")`)
	select {
	case id := <-ch:
		assert.Equal(t, "v1", id)
	case <-time.After(2 * time.Second):
		t.Fatal("double click never delivered")
	}

	// Detaching is silent; further gestures go nowhere.
	w.SetDoubleClickHandler(nil)
	w.Page().EvalJS(nil, `graphs.fireDoubleClick("v2")`)
	select {
	case id := <-ch:
		t.Fatalf("handler still attached, got %q", id)
	case <-time.After(150 * time.Millisecond):
	}
}

func TestPopupMenuHandler(t *testing.T) {
	w := newTestWidget(t, false)

	type menu struct {
		cellID string
		x, y   int
	}
	ch := make(chan menu, 1)
	w.SetPopupMenuHandler(func(cellID string, x, y int) { ch <- menu{cellID, x, y} })

	w.Page().EvalJS(nil, `graphs.firePopupMenu("v1", 15, 25)`)
	select {
	case got := <-ch:
		assert.Equal(t, menu{"v1", 15, 25}, got)
	case <-time.After(2 * time.Second):
		t.Fatal("popup menu never delivered")
	}

	w.SetPopupMenuHandler(nil)
	w.Page().EvalJS(nil, `graphs.firePopupMenu("v2", 0, 0)`)
	select {
	case <-ch:
		t.Fatal("handler still attached")
	case <-time.After(150 * time.Millisecond):
	}
}

func TestHandlersSurviveReload(t *testing.T) {
	w := newTestWidget(t, false)

	ch := make(chan string, 1)
	w.SetDoubleClickHandler(func(cellID string) { ch <- cellID })

	w.Blank()
	require.NoError(t, w.Load())

	w.Page().EvalJS(nil, `graphs.fireDoubleClick("again")`)
	select {
	case id := <-ch:
		assert.Equal(t, "again", id)
	case <-time.After(2 * time.Second):
		t.Fatal("double click lost across reload")
	}
}

func TestDropContent(t *testing.T) {
	w := newTestWidget(t, false)
	api := w.API()

	payload, err := json.Marshal(DragData{
		Version: DragDataVersion2,
		Vertices: []DragVertex{
			{DX: -10, DY: -5, Width: 40, Height: 20, Label: "dropped"},
			{DX: 60, DY: 0, Width: 40, Height: 20, Label: "sibling"},
		},
	})
	require.NoError(t, err)

	require.NoError(t, w.DropContent(payload, 100, 100))

	count := await(t, func(c callback.Completion) {
		api.GetCellCount(c, `function (cell) { return cell.type === "vertex" }`)
	})
	assert.Equal(t, int64(2), count)

	// Zoom is 1, so the first vertex sits at the drop point plus its raw
	// offset.
	id := await(t, func(c callback.Completion) { api.GetCellIDAt(c, 95, 100) })
	require.NotNil(t, id)
	assert.Equal(t, "dropped", await(t, func(c callback.Completion) { api.GetLabel(c, id.(string)) }))
}

func TestDropContentRejectsMalformedPayload(t *testing.T) {
	w := newTestWidget(t, false)
	require.Error(t, w.DropContent([]byte(`{"version": 9}`), 0, 0))
}
