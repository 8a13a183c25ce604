package graphview

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrepareCall(t *testing.T) {
	tests := []struct {
		name string
		fn   string
		args []any
		want string
	}{
		{
			name: "no arguments",
			fn:   "group",
			want: "group()",
		},
		{
			name: "primitives",
			fn:   "insertVertex",
			args: []any{10, 20.5, "label", true, nil},
			want: `insertVertex(10, 20.5, "label", true, null)`,
		},
		{
			name: "string escaping",
			fn:   "setLabel",
			args: []any{"v1", `say "hi"`},
			want: `setLabel("v1", "say \"hi\"")`,
		},
		{
			name: "slices and maps",
			fn:   "setSelectedCells",
			args: []any{[]string{"a", "b"}, map[string]string{"k": "v"}},
			want: `setSelectedCells(["a","b"], {"k":"v"})`,
		},
		{
			name: "live reference emitted verbatim",
			fn:   "onCellsAdded",
			args: []any{Var("bridge_events_handler.cells_added_slot")},
			want: "onCellsAdded(bridge_events_handler.cells_added_slot)",
		},
		{
			name: "mixed literal and live reference",
			fn:   "getCellCount",
			args: []any{Var(`(function (cell) { return true })`)},
			want: "getCellCount((function (cell) { return true }))",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := PrepareCall(tt.fn, tt.args...)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPrepareCallUnserializableArgument(t *testing.T) {
	_, err := PrepareCall("insertVertex", 1, make(chan int))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "argument 1 of insertVertex call is not serializable")
}
