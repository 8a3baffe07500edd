package workflow

import (
	"fmt"

	"github.com/omniflowhq/omniflow/pkg/models"
)

// Validate checks a workflow definition for structural soundness: exactly one
// trigger node, a spec matching each node's kind, connections referencing
// known node ids, and every non-trigger node reachable from the trigger.
// Violations surface as ErrInvalidGraph for the editor UI; they never abort a
// processing batch.
func Validate(workflow *models.Workflow) error {
	if len(workflow.Nodes) == 0 {
		return newGraphError(workflow.ID, "", "workflow has no nodes")
	}

	nodesByID := make(map[string]*models.WorkflowNode, len(workflow.Nodes))
	triggerCount := 0

	var triggerID string

	for _, node := range workflow.Nodes {
		if node.ID == "" {
			return newGraphError(workflow.ID, "", "node with empty id")
		}

		if _, duplicate := nodesByID[node.ID]; duplicate {
			return newGraphError(workflow.ID, node.ID, "duplicate node id")
		}

		nodesByID[node.ID] = node

		if node.Spec() == nil {
			return newGraphError(workflow.ID, node.ID, fmt.Sprintf("node kind %q has no matching spec", node.Kind))
		}

		if err := validateNodeConfig(workflow.ID, node); err != nil {
			return err
		}

		if node.Kind == models.NodeKindTrigger {
			triggerCount++
			triggerID = node.ID
		}
	}

	if triggerCount == 0 {
		return newGraphError(workflow.ID, "", "workflow has no trigger node")
	}

	if triggerCount > 1 {
		return newGraphError(workflow.ID, "", "workflow has multiple trigger nodes")
	}

	for _, conn := range workflow.Connections {
		if _, ok := nodesByID[conn.FromNodeID]; !ok {
			return newGraphError(workflow.ID, conn.FromNodeID, "connection references unknown source node")
		}

		if _, ok := nodesByID[conn.ToNodeID]; !ok {
			return newGraphError(workflow.ID, conn.ToNodeID, "connection references unknown target node")
		}

		if to := nodesByID[conn.ToNodeID]; to.Kind == models.NodeKindTrigger {
			return newGraphError(workflow.ID, conn.ToNodeID, "connection targets the trigger node")
		}
	}

	reachable := reachableFrom(workflow, triggerID)
	for _, node := range workflow.Nodes {
		if node.ID == triggerID {
			continue
		}

		if !reachable[node.ID] {
			return newGraphError(workflow.ID, node.ID, "node unreachable from trigger")
		}
	}

	return nil
}

// NextNodes returns the ordered node ids reachable from nodeID via outgoing
// connections carrying the given branch tag. Condition nodes use branch tags;
// every other kind has the single implicit empty branch. Pure data query.
func NextNodes(workflow *models.Workflow, nodeID, branch string) []string {
	var next []string

	for _, conn := range workflow.Connections {
		if conn.FromNodeID == nodeID && conn.Branch == branch {
			next = append(next, conn.ToNodeID)
		}
	}

	return next
}

// reachableFrom walks all outgoing connections regardless of branch tag.
func reachableFrom(workflow *models.Workflow, startID string) map[string]bool {
	outgoing := make(map[string][]string)
	for _, conn := range workflow.Connections {
		outgoing[conn.FromNodeID] = append(outgoing[conn.FromNodeID], conn.ToNodeID)
	}

	visited := make(map[string]bool)
	queue := []string{startID}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		for _, target := range outgoing[current] {
			if !visited[target] {
				visited[target] = true
				queue = append(queue, target)
			}
		}
	}

	return visited
}
