// Package engine is the client-side drawing core: canvas state, the active
// tool state machine, hit-testing driven selection and erasing, undo/redo
// and the bridge to durable storage (network relay or guest store).
package engine

import "github.com/drawrhq/drawr/internal/shape"

// OpKind discriminates reversible edit operations.
type OpKind string

const (
	OpAdd            OpKind = "add"
	OpDelete         OpKind = "delete"
	OpMove           OpKind = "move"
	OpPropertyChange OpKind = "propertyChange"
)

// Operation records one reversible edit for the undo history.
//
// Add and Delete carry the affected elements. Move and PropertyChange carry
// the before and after snapshots plus the element's index in the canvas
// list, so undo can swap the exact slot back.
type Operation struct {
	Kind OpKind

	Elements []shape.Element // add, delete

	Original shape.Element  // move, propertyChange
	Updated  shape.Element  // move, propertyChange
	Index    int            // move, propertyChange
	Property shape.Property // propertyChange
}

func addOp(els ...shape.Element) Operation {
	return Operation{Kind: OpAdd, Elements: els}
}

func deleteOp(els ...shape.Element) Operation {
	return Operation{Kind: OpDelete, Elements: els}
}

func moveOp(original, updated shape.Element, index int) Operation {
	return Operation{Kind: OpMove, Original: original, Updated: updated, Index: index}
}

func propertyOp(original, updated shape.Element, index int, prop shape.Property) Operation {
	return Operation{Kind: OpPropertyChange, Original: original, Updated: updated, Index: index, Property: prop}
}
