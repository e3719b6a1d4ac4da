// Package expr implements the condition language used by rule triggers,
// skip_if clauses and transition conditions.
//
// The language is deliberately tiny:
//
//	expr     := or
//	or       := and ( "||" and )*
//	and      := equality ( "&&" equality )*
//	equality := unary ( ("===" | "!==") unary )*
//	unary    := "!" unary | postfix
//	postfix  := primary ( "." ident | ".includes(" expr ")" )*
//	primary  := ident | string | "true" | "false" | "null" | "(" expr ")"
//
// Property access is only meaningful as part of a known identifier path
// (item.author, monitored.repos, item.pr.column, ...). Any path outside
// the vocabulary is rejected by Compile, so a rule file with a typo fails
// at load time rather than silently evaluating to false.
//
// Evaluation is pure and total: it never panics, never errors, and
// comparisons between values of different types are false.
package expr
