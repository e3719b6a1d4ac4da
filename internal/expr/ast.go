package expr

import "github.com/roach88/boardsync/internal/ir"

// Node is a parsed expression.
//
// This is a sealed interface - only types in this package implement it,
// which keeps the interpreter's type switch exhaustive.
type Node interface {
	exprNode()
}

// Ident is a vocabulary path such as "item.column".
type Ident struct {
	Path string
	Pos  int
}

func (Ident) exprNode() {}

// Literal is a string, boolean or null literal.
type Literal struct {
	Value ir.IRValue
}

func (Literal) exprNode() {}

// Not is logical negation.
type Not struct {
	X Node
}

func (Not) exprNode() {}

// Op is a binary operator.
type Op string

const (
	OpEq  Op = "==="
	OpNeq Op = "!=="
	OpAnd Op = "&&"
	OpOr  Op = "||"
)

// Binary is a binary operation.
type Binary struct {
	Op    Op
	Left  Node
	Right Node
}

func (Binary) exprNode() {}

// Includes is the membership call recv.includes(arg).
type Includes struct {
	Recv Node
	Arg  Node
}

func (Includes) exprNode() {}
