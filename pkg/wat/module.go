// Package wat holds an in-memory WebAssembly module and renders it in the
// text format. Only the constructs the gaufre compiler produces are modeled.
package wat

// ValType is a WebAssembly value type.
type ValType string

const (
	I32 ValType = "i32"
	I64 ValType = "i64"
)

// Instr is one instruction. Structured instructions (block, loop, if) carry
// their nested instructions in Body and, for if, Else.
type Instr struct {
	Op      Op
	Imm     int64  // i32.const / i64.const
	Name    string // local, label or function name, without the '$' sigil
	Body    []Instr
	Else    []Instr
	Comment string
}

// Local is a named parameter or local variable.
type Local struct {
	Name string
	Type ValType
}

// Import is an imported host function.
type Import struct {
	Module  string
	Field   string
	Name    string
	Params  []ValType
	Results []ValType
}

// Memory is the module's linear memory, optionally exported.
type Memory struct {
	Export string
	Pages  int
}

// Data is an active data segment in memory 0.
type Data struct {
	Offset int
	Bytes  []byte
}

// Func is a module-defined function.
type Func struct {
	Name    string
	Export  string
	Params  []Local
	Results []ValType
	Locals  []Local
	Body    []Instr
}

// Module is a complete WebAssembly module.
type Module struct {
	Imports []Import
	Memory  Memory
	Data    []Data
	Funcs   []*Func
}

// Func returns the function with the given name, or nil.
func (m *Module) Func(name string) *Func {
	for _, f := range m.Funcs {
		if f.Name == name {
			return f
		}
	}
	return nil
}

// Export returns the function exported under the given name, or nil.
func (m *Module) Export(name string) *Func {
	for _, f := range m.Funcs {
		if f.Export == name {
			return f
		}
	}
	return nil
}

// Import returns the import bound to the given function name, or nil.
func (m *Module) Import(name string) *Import {
	for i := range m.Imports {
		if m.Imports[i].Name == name {
			return &m.Imports[i]
		}
	}
	return nil
}

// Instruction constructors.

func I32Const(v int32) Instr { return Instr{Op: OpI32Const, Imm: int64(v)} }
func I64Const(v int64) Instr { return Instr{Op: OpI64Const, Imm: v} }
func LocalGet(name string) Instr { return Instr{Op: OpLocalGet, Name: name} }
func LocalSet(name string) Instr { return Instr{Op: OpLocalSet, Name: name} }
func Call(name string) Instr { return Instr{Op: OpCall, Name: name} }
func Br(label string) Instr { return Instr{Op: OpBr, Name: label} }
func BrIf(label string) Instr { return Instr{Op: OpBrIf, Name: label} }
func Plain(op Op) Instr { return Instr{Op: op} }

func Block(label string, body ...Instr) Instr {
	return Instr{Op: OpBlock, Name: label, Body: body}
}

func Loop(label string, body ...Instr) Instr {
	return Instr{Op: OpLoop, Name: label, Body: body}
}

func If(then []Instr, els []Instr) Instr {
	return Instr{Op: OpIf, Body: then, Else: els}
}

// WithComment returns a copy of in annotated with a trailing comment.
func (in Instr) WithComment(c string) Instr {
	in.Comment = c
	return in
}
