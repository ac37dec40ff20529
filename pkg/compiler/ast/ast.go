package ast

import "github.com/agenthands/gaufre/pkg/compiler/lexer"

// Node represents any node in the Abstract Syntax Tree.
type Node interface {
	Pos() lexer.Token
}

// Expr represents a `log` argument.
type Expr interface {
	Node
	exprNode()
}

// Stmt represents a standalone unit of execution.
type Stmt interface {
	Node
	stmtNode()
}

// Program is the root node: the body of `fn main() { ... }`.
type Program struct {
	Body []Stmt
}

// LogStmt: log(EXPR, EXPR, ...). Args is never empty.
type LogStmt struct {
	Token lexer.Token
	Args  []Expr
}

func (l *LogStmt) Pos() lexer.Token { return l.Token }
func (l *LogStmt) stmtNode()        {}

// ForStmt: for NAME = START to END { BODY }, inclusive, step 1.
type ForStmt struct {
	Token lexer.Token
	Name  string
	Start int32
	End   int32
	Body  []Stmt
}

func (f *ForStmt) Pos() lexer.Token { return f.Token }
func (f *ForStmt) stmtNode()        {}

// Literal values
type StringLiteral struct {
	Token lexer.Token
	Value string
}

func (s *StringLiteral) Pos() lexer.Token { return s.Token }
func (s *StringLiteral) exprNode()        {}

type IntLiteral struct {
	Token lexer.Token
	Value int32
}

func (i *IntLiteral) Pos() lexer.Token { return i.Token }
func (i *IntLiteral) exprNode()        {}

// Identifier is a loop variable reference.
type Identifier struct {
	Token lexer.Token
	Name  string
}

func (i *Identifier) Pos() lexer.Token { return i.Token }
func (i *Identifier) exprNode()        {}

// Walk calls fn for every statement in body, depth-first in program order,
// descending into loop bodies after visiting the loop itself.
func Walk(body []Stmt, fn func(Stmt)) {
	for _, stmt := range body {
		fn(stmt)
		if f, ok := stmt.(*ForStmt); ok {
			Walk(f.Body, fn)
		}
	}
}
