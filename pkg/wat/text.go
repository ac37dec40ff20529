package wat

import (
	"fmt"
	"io"
	"strconv"
	"strings"
)

type watBuilder struct {
	sb     strings.Builder
	indent int
}

func (w *watBuilder) line(s string) {
	w.sb.WriteString(strings.Repeat("  ", w.indent))
	w.sb.WriteString(s)
	w.sb.WriteString("\n")
}

func (w *watBuilder) String() string {
	return w.sb.String()
}

// String renders the module in the WebAssembly text format.
func (m *Module) String() string {
	w := &watBuilder{}
	w.line("(module")
	w.indent++
	for _, imp := range m.Imports {
		w.line(fmt.Sprintf("(import %q %q (func $%s%s))", imp.Module, imp.Field, imp.Name, signature(nil, imp.Params, imp.Results)))
	}
	if m.Memory.Export != "" {
		w.line(fmt.Sprintf("(memory (export %q) %d)", m.Memory.Export, m.Memory.Pages))
	} else {
		w.line(fmt.Sprintf("(memory %d)", m.Memory.Pages))
	}
	for _, d := range m.Data {
		w.line(fmt.Sprintf("(data (i32.const %d) \"%s\")", d.Offset, Escape(d.Bytes)))
	}
	for _, f := range m.Funcs {
		writeFunc(w, f)
	}
	w.indent--
	w.line(")")
	return w.String()
}

// WriteTo writes the text form of the module to dst.
func (m *Module) WriteTo(dst io.Writer) (int64, error) {
	n, err := io.WriteString(dst, m.String())
	return int64(n), err
}

func writeFunc(w *watBuilder, f *Func) {
	head := "(func $" + f.Name
	if f.Export != "" {
		head += fmt.Sprintf(" (export %q)", f.Export)
	}
	w.line(head + signature(f.Params, nil, f.Results))
	w.indent++
	for _, l := range f.Locals {
		w.line(fmt.Sprintf("(local $%s %s)", l.Name, l.Type))
	}
	writeInstrs(w, f.Body)
	w.indent--
	w.line(")")
}

// signature renders params and results. Named params win over bare types.
func signature(named []Local, params []ValType, results []ValType) string {
	var sb strings.Builder
	for _, p := range named {
		fmt.Fprintf(&sb, " (param $%s %s)", p.Name, p.Type)
	}
	if len(params) > 0 {
		sb.WriteString(" (param")
		for _, p := range params {
			sb.WriteString(" " + string(p))
		}
		sb.WriteString(")")
	}
	if len(results) > 0 {
		sb.WriteString(" (result")
		for _, r := range results {
			sb.WriteString(" " + string(r))
		}
		sb.WriteString(")")
	}
	return sb.String()
}

func writeInstrs(w *watBuilder, body []Instr) {
	for _, in := range body {
		writeInstr(w, in)
	}
}

func writeInstr(w *watBuilder, in Instr) {
	text := in.Op.String()
	switch in.Op {
	case OpI32Const, OpI64Const:
		text += " " + strconv.FormatInt(in.Imm, 10)
	case OpLocalGet, OpLocalSet, OpCall, OpBr, OpBrIf:
		text += " $" + in.Name
	case OpBlock, OpLoop:
		if in.Name != "" {
			text += " $" + in.Name
		}
	}
	if in.Comment != "" {
		text += " ;; " + in.Comment
	}
	w.line(text)

	switch in.Op {
	case OpBlock, OpLoop, OpIf:
		w.indent++
		writeInstrs(w, in.Body)
		w.indent--
		if in.Op == OpIf && len(in.Else) > 0 {
			w.line("else")
			w.indent++
			writeInstrs(w, in.Else)
			w.indent--
		}
		w.line("end")
	}
}

// Escape renders bytes for a string literal in the text format: printable
// ASCII except '"' and '\' is kept, \n \r \t use short escapes and every
// other byte is written as \hh.
func Escape(b []byte) string {
	var sb strings.Builder
	for _, c := range b {
		switch {
		case c == '"':
			sb.WriteString(`\"`)
		case c == '\\':
			sb.WriteString(`\\`)
		case c == '\n':
			sb.WriteString(`\n`)
		case c == '\r':
			sb.WriteString(`\r`)
		case c == '\t':
			sb.WriteString(`\t`)
		case c >= 0x20 && c <= 0x7e:
			sb.WriteByte(c)
		default:
			fmt.Fprintf(&sb, `\%02x`, c)
		}
	}
	return sb.String()
}
