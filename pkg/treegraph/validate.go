package treegraph

import (
	"fmt"
	"math"
)

// ValidationSeverity distinguishes a blocking structural defect from an
// advisory numerical oddity that a mesher can still render around.
type ValidationSeverity int

const (
	SeverityError ValidationSeverity = iota
	SeverityWarning
)

// ValidationError is one finding produced by Validate.
type ValidationError struct {
	Node     NodeIndex
	Message  string
	Severity ValidationSeverity
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("node %d: %s", e.Node, e.Message)
}

// ValidationResult separates blocking errors from advisory warnings, the
// same tiering the rest of the corpus uses for structural checks.
type ValidationResult struct {
	Errors   []ValidationError
	Warnings []ValidationError
}

// Validate runs every structural check against g and every stem's subtree.
// It never panics: an arena that fails these checks came from generator
// code with a bug, and the caller (typically a test) is expected to fail
// loudly on the returned findings rather than have Validate itself abort.
func Validate(g *Graph) ValidationResult {
	var result ValidationResult
	seen := make([]bool, len(g.Nodes))

	for _, stem := range g.Stems {
		validateSubtree(g, stem.Root, seen, &result)
	}
	validateNoOrphans(g, seen, &result)
	return result
}

func validateSubtree(g *Graph, idx NodeIndex, seen []bool, result *ValidationResult) {
	if int(idx) < 0 || int(idx) >= len(g.Nodes) {
		result.Errors = append(result.Errors, ValidationError{
			Node: idx, Message: "child index out of range", Severity: SeverityError,
		})
		return
	}
	if seen[idx] {
		result.Errors = append(result.Errors, ValidationError{
			Node: idx, Message: "node reachable from more than one parent", Severity: SeverityError,
		})
		return
	}
	seen[idx] = true

	n := g.Get(idx)
	validateNode(idx, n, result)

	for _, link := range n.Children {
		if link.PositionInParent < 0 || link.PositionInParent > 1 {
			result.Warnings = append(result.Warnings, ValidationError{
				Node:     idx,
				Message:  fmt.Sprintf("child position_in_parent %.3f outside [0,1]", link.PositionInParent),
				Severity: SeverityWarning,
			})
		}
		validateSubtree(g, link.Child, seen, result)
	}
}

func validateNode(idx NodeIndex, n *Node, result *ValidationResult) {
	if n.Length < 0 {
		result.Errors = append(result.Errors, ValidationError{
			Node: idx, Message: "negative length", Severity: SeverityError,
		})
	}
	if n.Radius < 0 {
		result.Errors = append(result.Errors, ValidationError{
			Node: idx, Message: "negative radius", Severity: SeverityError,
		})
	}
	if l := n.Direction.Length(); l > 0 && math.Abs(l-1) > 1e-3 {
		result.Warnings = append(result.Warnings, ValidationError{
			Node:     idx,
			Message:  fmt.Sprintf("direction not unit length (%.4f)", l),
			Severity: SeverityWarning,
		})
	}
	if n.Tangent.Length() > 1e-9 && math.Abs(n.Tangent.Normalized().Dot(n.Direction.Normalized())) > 0.99 {
		result.Warnings = append(result.Warnings, ValidationError{
			Node:     idx,
			Message:  "tangent nearly parallel to direction",
			Severity: SeverityWarning,
		})
	}
}

// validateNoOrphans flags arena slots that no stem's subtree reached; those
// nodes are either dead allocations or a broken parent link, both signs of
// a generator bug rather than a rendering concern.
func validateNoOrphans(g *Graph, seen []bool, result *ValidationResult) {
	for i, wasSeen := range seen {
		if !wasSeen {
			result.Warnings = append(result.Warnings, ValidationError{
				Node:     NodeIndex(i),
				Message:  "node not reachable from any stem root",
				Severity: SeverityWarning,
			})
		}
	}
}
