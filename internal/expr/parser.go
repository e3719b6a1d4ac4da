package expr

import (
	"fmt"
	"slices"

	"github.com/roach88/boardsync/internal/ir"
)

// Expr is a compiled condition.
type Expr struct {
	Source string
	Root   Node

	// Idents lists the vocabulary paths the expression reads, sorted and
	// deduplicated.
	Idents []string
}

// Compile parses src and checks every identifier against the vocabulary.
// The returned error is a *SyntaxError.
func Compile(src string) (*Expr, error) {
	toks, err := tokenize(src)
	if err != nil {
		return nil, err
	}
	p := &parser{src: src, toks: toks}

	root, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if tok := p.peek(); tok.kind != tokEOF {
		return nil, p.errorf(tok, "unexpected %s", tok.kind)
	}

	root, err = p.resolve(root)
	if err != nil {
		return nil, err
	}

	slices.Sort(p.idents)
	return &Expr{Source: src, Root: root, Idents: slices.Compact(p.idents)}, nil
}

// MustCompile is Compile for expressions known to be valid. It panics on
// error and is intended for built-in defaults and tests.
func MustCompile(src string) *Expr {
	e, err := Compile(src)
	if err != nil {
		panic(err)
	}
	return e
}

type parser struct {
	src    string
	toks   []token
	pos    int
	idents []string
}

// pathNode is an identifier path still under construction. It never
// survives resolve.
type pathNode struct {
	path string
	pos  int
}

func (pathNode) exprNode() {}

func (p *parser) peek() token {
	return p.toks[p.pos]
}

func (p *parser) advance() token {
	tok := p.toks[p.pos]
	if tok.kind != tokEOF {
		p.pos++
	}
	return tok
}

func (p *parser) errorf(tok token, format string, args ...any) *SyntaxError {
	return &SyntaxError{Source: p.src, Pos: tok.pos, Message: fmt.Sprintf(format, args...)}
}

func (p *parser) expect(kind tokenKind) (token, error) {
	tok := p.advance()
	if tok.kind != kind {
		return tok, p.errorf(tok, "expected %s, found %s", kind, tok.kind)
	}
	return tok, nil
}

func (p *parser) parseOr() (Node, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.peek().kind == tokOr {
		p.advance()
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = Binary{Op: OpOr, Left: left, Right: right}
	}
	return left, nil
}

func (p *parser) parseAnd() (Node, error) {
	left, err := p.parseEquality()
	if err != nil {
		return nil, err
	}
	for p.peek().kind == tokAnd {
		p.advance()
		right, err := p.parseEquality()
		if err != nil {
			return nil, err
		}
		left = Binary{Op: OpAnd, Left: left, Right: right}
	}
	return left, nil
}

func (p *parser) parseEquality() (Node, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for {
		var op Op
		switch p.peek().kind {
		case tokEq:
			op = OpEq
		case tokNeq:
			op = OpNeq
		default:
			return left, nil
		}
		p.advance()
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = Binary{Op: op, Left: left, Right: right}
	}
}

func (p *parser) parseUnary() (Node, error) {
	if p.peek().kind == tokNot {
		p.advance()
		x, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return Not{X: x}, nil
	}
	return p.parsePostfix()
}

func (p *parser) parsePostfix() (Node, error) {
	node, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	for p.peek().kind == tokDot {
		p.advance()
		name, err := p.expect(tokIdent)
		if err != nil {
			return nil, err
		}

		if name.text == "includes" && p.peek().kind == tokLParen {
			p.advance()
			arg, err := p.parseOr()
			if err != nil {
				return nil, err
			}
			if _, err := p.expect(tokRParen); err != nil {
				return nil, err
			}
			node = Includes{Recv: node, Arg: arg}
			continue
		}

		path, ok := node.(pathNode)
		if !ok {
			return nil, p.errorf(name, "property access .%s is only allowed on identifiers", name.text)
		}
		node = pathNode{path: path.path + "." + name.text, pos: path.pos}
	}
	return node, nil
}

func (p *parser) parsePrimary() (Node, error) {
	tok := p.advance()
	switch tok.kind {
	case tokString:
		return Literal{Value: ir.IRString(tok.text)}, nil
	case tokIdent:
		switch tok.text {
		case "true":
			return Literal{Value: ir.IRBool(true)}, nil
		case "false":
			return Literal{Value: ir.IRBool(false)}, nil
		case "null":
			return Literal{Value: ir.IRNull{}}, nil
		}
		return pathNode{path: tok.text, pos: tok.pos}, nil
	case tokLParen:
		inner, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(tokRParen); err != nil {
			return nil, err
		}
		return inner, nil
	default:
		return nil, p.errorf(tok, "unexpected %s", tok.kind)
	}
}

// resolve replaces path nodes with vocabulary identifiers and rejects
// anything outside the vocabulary.
func (p *parser) resolve(n Node) (Node, error) {
	switch n := n.(type) {
	case pathNode:
		if !IsKnown(n.path) {
			msg := "unknown identifier %q"
			if isPrefix(n.path) {
				msg = "incomplete identifier %q"
			}
			return nil, p.errorf(token{pos: n.pos}, msg, n.path)
		}
		p.idents = append(p.idents, n.path)
		return Ident{Path: n.path, Pos: n.pos}, nil
	case Not:
		x, err := p.resolve(n.X)
		if err != nil {
			return nil, err
		}
		return Not{X: x}, nil
	case Binary:
		left, err := p.resolve(n.Left)
		if err != nil {
			return nil, err
		}
		right, err := p.resolve(n.Right)
		if err != nil {
			return nil, err
		}
		return Binary{Op: n.Op, Left: left, Right: right}, nil
	case Includes:
		recv, err := p.resolve(n.Recv)
		if err != nil {
			return nil, err
		}
		arg, err := p.resolve(n.Arg)
		if err != nil {
			return nil, err
		}
		return Includes{Recv: recv, Arg: arg}, nil
	default:
		return n, nil
	}
}
