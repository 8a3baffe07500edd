// Package workflow provides graph validation and evaluation over workflow definitions.
package workflow

import (
	"errors"
	"fmt"
)

// ErrInvalidGraph indicates a malformed workflow definition. It is fatal to
// that workflow only, never to a batch.
var ErrInvalidGraph = errors.New("invalid workflow graph")

// GraphError wraps graph validation failures with workflow context.
type GraphError struct {
	WorkflowID string
	NodeID     string
	Detail     string
}

func (e *GraphError) Error() string {
	if e.NodeID != "" {
		return fmt.Sprintf("invalid graph in workflow %s at node %s: %s", e.WorkflowID, e.NodeID, e.Detail)
	}

	return fmt.Sprintf("invalid graph in workflow %s: %s", e.WorkflowID, e.Detail)
}

func (e *GraphError) Unwrap() error {
	return ErrInvalidGraph
}

func newGraphError(workflowID, nodeID, detail string) *GraphError {
	return &GraphError{WorkflowID: workflowID, NodeID: nodeID, Detail: detail}
}

// IsInvalidGraph checks if an error indicates a malformed workflow definition.
func IsInvalidGraph(err error) bool {
	return errors.Is(err, ErrInvalidGraph)
}
