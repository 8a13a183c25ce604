package graphview

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Var is a live-reference argument: instead of being serialized as a JSON
// literal it is emitted verbatim, so the graph script resolves it as an
// identifier expression at call time. This is how a host-side bridge slot
// name is handed over as a true callable rather than a string.
type Var string

// PrepareCall serializes a remote invocation of fn with positional
// arguments into an expression of the form `fn(arg1, ..., argN)`. Every
// argument must either be JSON-serializable or a Var; mapping arguments
// must already have been flattened to plain JSON-compatible values by the
// calling operation wrapper.
func PrepareCall(fn string, args ...any) (string, error) {
	parts := make([]string, len(args))
	for i, arg := range args {
		if v, ok := arg.(Var); ok {
			parts[i] = string(v)
			continue
		}
		encoded, err := json.Marshal(arg)
		if err != nil {
			return "", fmt.Errorf("argument %d of %s call is not serializable: %w", i, fn, err)
		}
		parts[i] = string(encoded)
	}
	return fmt.Sprintf("%s(%s)", fn, strings.Join(parts, ", ")), nil
}
