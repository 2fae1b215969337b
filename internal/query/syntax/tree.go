// Package syntax turns query text into a parse tree.
//
//	query      := command ( "|" command )*
//	command    := "search" expr+ | "fields" field+ | "join" "BY" field | "prettyprint" "format" "=" format
//	expr       := unary ( "OR" unary )*
//	unary      := "NOT" unary | field op value
//
// Stage ordering (search first, prettyprint last) is not a syntax concern; it is checked by the compiler.
package syntax

import "fmt"

// Op is a comparison operator.
type Op int

const (
	// Eq is "=" (glob match).
	Eq Op = iota
	// Ne is "!=" (glob mismatch).
	Ne
	// Lt is "<".
	Lt
	// Le is "<=".
	Le
	// Gt is ">".
	Gt
	// Ge is ">=".
	Ge
)

var opNames = [...]string{Eq: "eq", Ne: "ne", Lt: "lt", Le: "le", Gt: "gt", Ge: "ge"}

var opSymbols = map[string]Op{"=": Eq, "!=": Ne, "<": Lt, "<=": Le, ">": Gt, ">=": Ge}

func (o Op) String() string {
	if int(o) < len(opNames) {
		return opNames[o]
	}
	return fmt.Sprintf("op(%d)", int(o))
}

// IsOrdering reports whether the operator compares numerically.
func (o Op) IsOrdering() bool { return o >= Lt }

// Query is the parse tree of a whole query string.
type Query struct {
	Input    string
	Commands []Command
}

// Command is one "|"-separated part of a query.
type Command interface {
	// Name is the command keyword.
	Name() string
	// Pos is the byte offset of the keyword in the input.
	Pos() int
}

// SearchCmd filters documents; its expressions are AND-ed.
type SearchCmd struct {
	At    int
	Exprs []Expr
}

// FieldsCmd projects documents onto the listed fields.
type FieldsCmd struct {
	At     int
	Fields []string
}

// JoinCmd merges documents sharing the value of By.
type JoinCmd struct {
	At int
	By string
}

// PrettyprintCmd formats documents as text.
type PrettyprintCmd struct {
	At     int
	Format string
}

func (c *SearchCmd) Name() string      { return "search" }
func (c *FieldsCmd) Name() string      { return "fields" }
func (c *JoinCmd) Name() string        { return "join" }
func (c *PrettyprintCmd) Name() string { return "prettyprint" }

func (c *SearchCmd) Pos() int      { return c.At }
func (c *FieldsCmd) Pos() int      { return c.At }
func (c *JoinCmd) Pos() int        { return c.At }
func (c *PrettyprintCmd) Pos() int { return c.At }

// Expr is a boolean expression inside a search command.
type Expr interface {
	expr()
}

// ComparisonExpr is "field op value".
type ComparisonExpr struct {
	Field string
	Op    Op
	Value string
}

// DisjunctionExpr is "a OR b OR ...".
type DisjunctionExpr struct {
	Parts []Expr
}

// NotExpr is "NOT item".
type NotExpr struct {
	Item Expr
}

func (*ComparisonExpr) expr()  {}
func (*DisjunctionExpr) expr() {}
func (*NotExpr) expr()         {}
