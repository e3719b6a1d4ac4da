package expr

import (
	"strings"

	"github.com/roach88/boardsync/internal/ir"
)

// Env binds vocabulary paths to values for one evaluation. Missing paths
// read as null.
type Env map[string]ir.IRValue

func (env Env) lookup(path string) ir.IRValue {
	if v, ok := env[path]; ok && v != nil {
		return v
	}
	return ir.IRNull{}
}

// Eval evaluates the expression and reports its truthiness.
// A nil expression is true, which is what an absent condition means.
func (e *Expr) Eval(env Env) bool {
	if e == nil {
		return true
	}
	return Truthy(evalNode(e.Root, env))
}

// Value evaluates the expression to a value.
func (e *Expr) Value(env Env) ir.IRValue {
	if e == nil {
		return ir.IRNull{}
	}
	return evalNode(e.Root, env)
}

func evalNode(n Node, env Env) ir.IRValue {
	switch n := n.(type) {
	case Literal:
		return n.Value
	case Ident:
		return env.lookup(n.Path)
	case Not:
		return ir.IRBool(!Truthy(evalNode(n.X, env)))
	case Binary:
		return evalBinary(n, env)
	case Includes:
		return ir.IRBool(includes(evalNode(n.Recv, env), evalNode(n.Arg, env)))
	default:
		return ir.IRNull{}
	}
}

func evalBinary(n Binary, env Env) ir.IRValue {
	switch n.Op {
	case OpAnd:
		if !Truthy(evalNode(n.Left, env)) {
			return ir.IRBool(false)
		}
		return ir.IRBool(Truthy(evalNode(n.Right, env)))
	case OpOr:
		if Truthy(evalNode(n.Left, env)) {
			return ir.IRBool(true)
		}
		return ir.IRBool(Truthy(evalNode(n.Right, env)))
	case OpEq:
		return ir.IRBool(strictEqual(evalNode(n.Left, env), evalNode(n.Right, env)))
	case OpNeq:
		return ir.IRBool(!strictEqual(evalNode(n.Left, env), evalNode(n.Right, env)))
	default:
		return ir.IRBool(false)
	}
}

// strictEqual compares scalars by value. Lists and objects never compare
// equal to anything, including themselves, matching reference equality
// on freshly built values.
func strictEqual(a, b ir.IRValue) bool {
	switch a.(type) {
	case ir.IRArray, ir.IRObject:
		return false
	}
	return ir.Equal(a, b)
}

// includes implements list membership and substring search. Any other
// receiver is a type mismatch and yields false.
func includes(recv, arg ir.IRValue) bool {
	switch r := recv.(type) {
	case ir.IRArray:
		for _, elem := range r {
			if strictEqual(elem, arg) {
				return true
			}
		}
		return false
	case ir.IRString:
		s, ok := arg.(ir.IRString)
		return ok && strings.Contains(string(r), string(s))
	default:
		return false
	}
}

// Truthy maps a value to a boolean: null, false and the empty string are
// false, everything else is true.
func Truthy(v ir.IRValue) bool {
	switch v := v.(type) {
	case ir.IRNull:
		return false
	case ir.IRBool:
		return bool(v)
	case ir.IRString:
		return v != ""
	case ir.IRInt:
		return v != 0
	case nil:
		return false
	default:
		return true
	}
}
