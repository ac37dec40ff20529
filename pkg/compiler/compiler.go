// Package compiler chains the gaufre pipeline: source text is scanned,
// parsed into an AST and lowered into a WebAssembly module.
package compiler

import (
	"github.com/agenthands/gaufre/pkg/compiler/emitter"
	"github.com/agenthands/gaufre/pkg/compiler/lexer"
	"github.com/agenthands/gaufre/pkg/compiler/parser"
	"github.com/agenthands/gaufre/pkg/wat"
)

// Compile turns source into a module using the default layout. Errors are
// *lexer.Error (matching lexer.ErrUnterminatedString or lexer.ErrInvalidUTF8
// with errors.Is when the failure has a name), *parser.UnexpectedTokenError,
// *parser.IntRangeError or *emitter.LayoutError, returned unwrapped. A
// variable no loop declares is not an error; it reads 0.
func Compile(src []byte) (*wat.Module, error) {
	return CompileWithLayout(src, emitter.DefaultLayout())
}

func CompileWithLayout(src []byte, l emitter.Layout) (*wat.Module, error) {
	p := parser.NewParser(lexer.NewScanner(src))
	prog, err := p.Parse()
	if err != nil {
		return nil, err
	}
	return emitter.NewEmitterWithLayout(l).Emit(prog)
}

// CompileText is Compile followed by rendering to the text format.
func CompileText(src []byte) (string, error) {
	mod, err := Compile(src)
	if err != nil {
		return "", err
	}
	return mod.String(), nil
}
