package registry

import (
	"fmt"

	"kinegraph/internal/graph"
)

// DuplicateTypeMismatchError reports a normalized name claimed by two
// different node types. The first-registered type wins; the caller may log
// the conflict and continue.
type DuplicateTypeMismatchError struct {
	Name           string
	NormalizedName string
	ExistingID     string
	ExistingType   graph.NodeType
	RequestedType  graph.NodeType
}

func (e *DuplicateTypeMismatchError) Error() string {
	return fmt.Sprintf("duplicate name %q already registered as %s (%s), requested as %s",
		e.Name, e.ExistingType, e.ExistingID, e.RequestedType)
}

// RequestError reports a malformed node-creation request. It fails the batch
// fast, before the request can reach the graph.
type RequestError struct {
	Name   string
	Type   graph.NodeType
	Reason string
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("invalid node request %q (%s): %s", e.Name, e.Type, e.Reason)
}
