package graphview

import (
	"errors"
	"fmt"
)

// ErrEngineUnavailable reports a debug-mode call attempted while the graph
// page is not loaded and running.
var ErrEngineUnavailable = errors.New("graph page is unloaded; cannot call the graph API")

// FunctionNotFoundError reports a debug-mode call to a function missing
// from the graph API surface. Without debug mode the same call silently
// resolves with a null result.
type FunctionNotFoundError struct {
	Name string
}

func (e *FunctionNotFoundError) Error() string {
	return fmt.Sprintf("unable to find function %q in the graph API", e.Name)
}
