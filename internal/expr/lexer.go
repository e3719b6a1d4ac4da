package expr

import (
	"fmt"
	"strings"
	"unicode"
)

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokIdent
	tokString
	tokEq     // ===
	tokNeq    // !==
	tokNot    // !
	tokAnd    // &&
	tokOr     // ||
	tokDot    // .
	tokLParen // (
	tokRParen // )
)

func (k tokenKind) String() string {
	switch k {
	case tokEOF:
		return "end of expression"
	case tokIdent:
		return "identifier"
	case tokString:
		return "string"
	case tokEq:
		return "'==='"
	case tokNeq:
		return "'!=='"
	case tokNot:
		return "'!'"
	case tokAnd:
		return "'&&'"
	case tokOr:
		return "'||'"
	case tokDot:
		return "'.'"
	case tokLParen:
		return "'('"
	case tokRParen:
		return "')'"
	default:
		return "unknown token"
	}
}

type token struct {
	kind tokenKind
	text string // identifier name or decoded string literal
	pos  int    // byte offset in source
}

// SyntaxError reports an expression outside the grammar.
type SyntaxError struct {
	Source  string
	Pos     int
	Message string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("expression %q at offset %d: %s", e.Source, e.Pos, e.Message)
}

type lexer struct {
	src string
	pos int
}

func (l *lexer) errorf(pos int, format string, args ...any) *SyntaxError {
	return &SyntaxError{Source: l.src, Pos: pos, Message: fmt.Sprintf(format, args...)}
}

func tokenize(src string) ([]token, error) {
	l := &lexer{src: src}
	var toks []token
	for {
		tok, err := l.next()
		if err != nil {
			return nil, err
		}
		toks = append(toks, tok)
		if tok.kind == tokEOF {
			return toks, nil
		}
	}
}

func (l *lexer) next() (token, error) {
	for l.pos < len(l.src) && isSpace(l.src[l.pos]) {
		l.pos++
	}
	start := l.pos
	if l.pos >= len(l.src) {
		return token{kind: tokEOF, pos: start}, nil
	}

	rest := l.src[l.pos:]
	switch {
	case strings.HasPrefix(rest, "==="):
		l.pos += 3
		return token{kind: tokEq, pos: start}, nil
	case strings.HasPrefix(rest, "!=="):
		l.pos += 3
		return token{kind: tokNeq, pos: start}, nil
	case strings.HasPrefix(rest, "=="), strings.HasPrefix(rest, "!="):
		return token{}, l.errorf(start, "loose equality is not supported, use === or !==")
	case strings.HasPrefix(rest, "&&"):
		l.pos += 2
		return token{kind: tokAnd, pos: start}, nil
	case strings.HasPrefix(rest, "||"):
		l.pos += 2
		return token{kind: tokOr, pos: start}, nil
	}

	c := l.src[l.pos]
	switch {
	case c == '!':
		l.pos++
		return token{kind: tokNot, pos: start}, nil
	case c == '.':
		l.pos++
		return token{kind: tokDot, pos: start}, nil
	case c == '(':
		l.pos++
		return token{kind: tokLParen, pos: start}, nil
	case c == ')':
		l.pos++
		return token{kind: tokRParen, pos: start}, nil
	case c == '\'' || c == '"':
		return l.lexString(c)
	case isIdentStart(rune(c)):
		for l.pos < len(l.src) && isIdentPart(rune(l.src[l.pos])) {
			l.pos++
		}
		return token{kind: tokIdent, text: l.src[start:l.pos], pos: start}, nil
	default:
		return token{}, l.errorf(start, "unexpected character %q", c)
	}
}

func (l *lexer) lexString(quote byte) (token, error) {
	start := l.pos
	l.pos++
	var sb strings.Builder
	for l.pos < len(l.src) {
		c := l.src[l.pos]
		switch {
		case c == quote:
			l.pos++
			return token{kind: tokString, text: sb.String(), pos: start}, nil
		case c == '\\':
			if l.pos+1 >= len(l.src) {
				return token{}, l.errorf(l.pos, "unterminated escape")
			}
			sb.WriteByte(l.src[l.pos+1])
			l.pos += 2
		default:
			sb.WriteByte(c)
			l.pos++
		}
	}
	return token{}, l.errorf(start, "unterminated string literal")
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}

func isIdentStart(r rune) bool {
	return r == '_' || r == '$' || unicode.IsLetter(r)
}

func isIdentPart(r rune) bool {
	return isIdentStart(r) || unicode.IsDigit(r)
}
