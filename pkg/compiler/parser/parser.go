package parser

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/agenthands/gaufre/pkg/compiler/ast"
	"github.com/agenthands/gaufre/pkg/compiler/lexer"
)

// UnexpectedTokenError reports a token that does not fit the grammar at
// the current position.
type UnexpectedTokenError struct {
	Found    lexer.Token
	Expected string
}

func (e *UnexpectedTokenError) Error() string {
	return fmt.Sprintf("unexpected token at byte %d: %v (expected %s)", e.Found.Offset, e.Found, e.Expected)
}

// IntRangeError reports an integer literal outside the int32 range.
type IntRangeError struct {
	Literal string
	Offset  int
}

func (e *IntRangeError) Error() string {
	return fmt.Sprintf("integer out of range at byte %d: %s", e.Offset, e.Literal)
}

// Parser is a single-token-lookahead recursive descent parser. The first
// error aborts the whole program.
type Parser struct {
	scanner *lexer.Scanner
	curTok  lexer.Token
}

func NewParser(s *lexer.Scanner) *Parser {
	return &Parser{scanner: s}
}

// Parse parses `fn main() { Stmt* }` followed by end of input.
func Parse(src []byte) (*ast.Program, error) {
	return NewParser(lexer.NewScanner(src)).Parse()
}

func (p *Parser) nextToken() error {
	tok, err := p.scanner.Next()
	if err != nil {
		return err
	}
	p.curTok = tok
	return nil
}

func (p *Parser) Parse() (*ast.Program, error) {
	if err := p.nextToken(); err != nil {
		return nil, err
	}

	for _, k := range []lexer.Kind{lexer.KindFn, lexer.KindMain, lexer.KindLParen, lexer.KindRParen} {
		if _, err := p.expect(k, k.String()); err != nil {
			return nil, err
		}
	}

	body, err := p.parseBlock()
	if err != nil {
		return nil, err
	}

	if p.curTok.Kind != lexer.KindEOF {
		return nil, p.unexpected("end of input")
	}

	return &ast.Program{Body: body}, nil
}

// parseBlock parses `{ Stmt* }` and consumes the closing brace.
func (p *Parser) parseBlock() ([]ast.Stmt, error) {
	if _, err := p.expect(lexer.KindLBrace, "`{`"); err != nil {
		return nil, err
	}

	var body []ast.Stmt
	for p.curTok.Kind != lexer.KindRBrace {
		stmt, err := p.parseStatement()
		if err != nil {
			return nil, err
		}
		body = append(body, stmt)
	}

	if err := p.nextToken(); err != nil { // skip '}'
		return nil, err
	}
	return body, nil
}

func (p *Parser) parseStatement() (ast.Stmt, error) {
	switch p.curTok.Kind {
	case lexer.KindLog:
		return p.parseLogStmt()
	case lexer.KindFor:
		return p.parseForStmt()
	default:
		return nil, p.unexpected("`log`, `for` or `}`")
	}
}

func (p *Parser) parseLogStmt() (ast.Stmt, error) {
	stmt := &ast.LogStmt{Token: p.curTok}
	if err := p.nextToken(); err != nil { // skip 'log'
		return nil, err
	}
	if _, err := p.expect(lexer.KindLParen, "`(`"); err != nil {
		return nil, err
	}

	arg, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	stmt.Args = append(stmt.Args, arg)

	for p.curTok.Kind == lexer.KindComma {
		if err := p.nextToken(); err != nil {
			return nil, err
		}
		arg, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		stmt.Args = append(stmt.Args, arg)
	}

	if _, err := p.expect(lexer.KindRParen, "`,` or `)`"); err != nil {
		return nil, err
	}
	return stmt, nil
}

func (p *Parser) parseForStmt() (ast.Stmt, error) {
	stmt := &ast.ForStmt{Token: p.curTok}
	if err := p.nextToken(); err != nil { // skip 'for'
		return nil, err
	}

	name, err := p.expect(lexer.KindIdentifier, "loop variable name")
	if err != nil {
		return nil, err
	}
	stmt.Name = name.Text

	if _, err := p.expect(lexer.KindAssign, "`=`"); err != nil {
		return nil, err
	}
	if stmt.Start, err = p.parseInt(); err != nil {
		return nil, err
	}
	if _, err := p.expect(lexer.KindTo, "`to`"); err != nil {
		return nil, err
	}
	if stmt.End, err = p.parseInt(); err != nil {
		return nil, err
	}

	if stmt.Body, err = p.parseBlock(); err != nil {
		return nil, err
	}
	return stmt, nil
}

func (p *Parser) parseExpr() (ast.Expr, error) {
	tok := p.curTok
	switch tok.Kind {
	case lexer.KindString:
		if err := p.nextToken(); err != nil {
			return nil, err
		}
		return &ast.StringLiteral{Token: tok, Value: tok.Text}, nil
	case lexer.KindIdentifier:
		if err := p.nextToken(); err != nil {
			return nil, err
		}
		return &ast.Identifier{Token: tok, Name: tok.Text}, nil
	case lexer.KindNumber:
		v, err := p.parseInt()
		if err != nil {
			return nil, err
		}
		return &ast.IntLiteral{Token: tok, Value: v}, nil
	default:
		return nil, p.unexpected("string, identifier or integer")
	}
}

func (p *Parser) parseInt() (int32, error) {
	tok, err := p.expect(lexer.KindNumber, "integer")
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseInt(tok.Text, 10, 32)
	if err != nil {
		if errors.Is(err, strconv.ErrRange) {
			return 0, &IntRangeError{Literal: tok.Text, Offset: tok.Offset}
		}
		return 0, fmt.Errorf("parse integer %q: %w", tok.Text, err)
	}
	return int32(v), nil
}

// expect consumes the current token if it has the wanted kind and returns it.
func (p *Parser) expect(kind lexer.Kind, expected string) (lexer.Token, error) {
	tok := p.curTok
	if tok.Kind != kind {
		return tok, p.unexpected(expected)
	}
	if err := p.nextToken(); err != nil {
		return tok, err
	}
	return tok, nil
}

func (p *Parser) unexpected(expected string) error {
	return &UnexpectedTokenError{Found: p.curTok, Expected: expected}
}
