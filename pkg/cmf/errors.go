package cmf

import "fmt"

// ErrorKind classifies the error conditions a forest can surface.
//
// Most kinds are recoverable: the forest remains usable and the caller is
// simply told that some expected effect did not happen. InvariantViolation
// is the one fatal kind — once raised, the forest must not be used again.
type ErrorKind uint8

const (
	// OutOfArena reports that a training point could not be fully absorbed
	// because no free node slots remained and the active extend policy
	// needed one. The forest state remains valid; any tree that did have
	// room absorbed the point.
	OutOfArena ErrorKind = iota
	// InvariantViolation reports that an internal consistency check (parent
	// child linkage, box containment, tau monotonicity) failed. Fatal.
	InvariantViolation
	// DegenerateSplit reports that all excesses and all box widths were
	// zero, so the extend step fell back to a box-update no-op.
	DegenerateSplit
	// EmptyTreeOnPredict reports that a tree's root was absent during
	// prediction; not an error in the usual sense, the tree simply
	// contributes the prior.
	EmptyTreeOnPredict
)

func (k ErrorKind) String() string {
	switch k {
	case OutOfArena:
		return "OutOfArena"
	case InvariantViolation:
		return "InvariantViolation"
	case DegenerateSplit:
		return "DegenerateSplit"
	case EmptyTreeOnPredict:
		return "EmptyTreeOnPredict"
	default:
		return "Unknown"
	}
}

// Error is the error type raised by pkg/cmf. It carries an ErrorKind so
// callers can distinguish fatal conditions (InvariantViolation) from
// ordinary, recoverable ones with errors.As or xerrors.AsA.
type Error struct {
	Kind ErrorKind
	Tree int
	Node int
	Msg  string
}

func (e *Error) Error() string {
	if e.Msg == "" {
		return fmt.Sprintf("cmf: %s (tree=%d node=%d)", e.Kind, e.Tree, e.Node)
	}

	return fmt.Sprintf("cmf: %s (tree=%d node=%d): %s", e.Kind, e.Tree, e.Node, e.Msg)
}

// Fatal reports whether this error leaves the forest unusable.
func (e *Error) Fatal() bool { return e.Kind == InvariantViolation }

func newError(kind ErrorKind, tree, node int, format string, args ...any) *Error {
	return &Error{Kind: kind, Tree: tree, Node: node, Msg: fmt.Sprintf(format, args...)}
}
