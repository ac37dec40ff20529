package emitter

import (
	"fmt"

	"github.com/agenthands/gaufre/pkg/compiler/ast"
	"github.com/agenthands/gaufre/pkg/wat"
)

const (
	// HostFunc is the local name of the imported reporting function.
	HostFunc = "invoke"
	// EntryExport is the export name of the generated entry routine.
	EntryExport = "main"
	// MemoryExport is the export name of linear memory.
	MemoryExport = "memory"

	cursorLocal = "cursor"
	varPrefix   = "var_"

	// Widest itoa output: "-2147483648".
	maxIntWidth = 11
)

// VarLocal returns the local that stores loop variable name. Every loop
// over the same name, nested or not, shares it.
func VarLocal(name string) string {
	return varPrefix + name
}

// Emitter lowers a parsed program into a WebAssembly module. It holds all
// per-generation state and is used for a single Emit call.
type Emitter struct {
	layout  Layout
	strings *interner
	data    []wat.Data
	vars    []string
	loops   int
}

func NewEmitter() *Emitter {
	return NewEmitterWithLayout(DefaultLayout())
}

func NewEmitterWithLayout(l Layout) *Emitter {
	return &Emitter{layout: l}
}

// Emit generates the module for prog. It only fails when the program does
// not fit the layout.
func (e *Emitter) Emit(prog *ast.Program) (*wat.Module, error) {
	if err := e.layout.validate(); err != nil {
		return nil, err
	}

	e.strings = newInterner(e.layout.PoolBase, e.layout.Align)
	e.data = []wat.Data{{Offset: 0, Bytes: []byte(e.layout.Target)}}
	e.vars = nil
	e.loops = 0

	if err := e.internStrings(prog); err != nil {
		return nil, err
	}
	e.collectVars(prog)

	locals := []wat.Local{{Name: cursorLocal, Type: wat.I32}}
	for _, name := range e.vars {
		locals = append(locals, wat.Local{Name: VarLocal(name), Type: wat.I32})
	}

	entry := &wat.Func{
		Name:   EntryExport,
		Export: EntryExport,
		Locals: locals,
		Body:   e.emitStmts(prog.Body),
	}

	i32 := wat.I32
	return &wat.Module{
		Imports: []wat.Import{{
			Module:  e.layout.HostModule,
			Field:   e.layout.HostField,
			Name:    HostFunc,
			Params:  []wat.ValType{i32, i32, i32, i32, i32, i32},
			Results: []wat.ValType{i32},
		}},
		Memory: wat.Memory{Export: MemoryExport, Pages: e.layout.Pages},
		Data:   e.data,
		Funcs:  []*wat.Func{itoaFunc(), entry},
	}, nil
}

// Segment returns the data segment holding the quoted form of lit. Only
// valid after Emit.
func (e *Emitter) Segment(lit string) (Segment, bool) {
	if e.strings == nil {
		return Segment{}, false
	}
	return e.strings.lookup(lit)
}

// Vars returns the distinct variable names in local order: loop variables
// first, then names only ever logged.
func (e *Emitter) Vars() []string {
	return e.vars
}

// internStrings allocates a data segment for every distinct string literal
// and checks that each log payload fits the scratch buffer.
func (e *Emitter) internStrings(prog *ast.Program) error {
	var err error
	ast.Walk(prog.Body, func(stmt ast.Stmt) {
		l, ok := stmt.(*ast.LogStmt)
		if !ok || err != nil {
			return
		}

		need := len(l.Args) + 1 // '[' ',' ... ']'
		for _, arg := range l.Args {
			s, ok := arg.(*ast.StringLiteral)
			if !ok {
				need += maxIntWidth
				continue
			}
			seg, fresh := e.strings.intern(s.Value)
			need += seg.Length
			if !fresh {
				continue
			}
			if end := seg.Offset + seg.Length; end > e.layout.ScratchBase {
				err = &LayoutError{Msg: fmt.Sprintf("literal pool ends at %d, past the scratch buffer at %d", end, e.layout.ScratchBase)}
				return
			}
			e.data = append(e.data, wat.Data{Offset: seg.Offset, Bytes: []byte(e.strings.quoted(s.Value))})
		}

		if need > e.layout.ScratchCap() {
			err = &LayoutError{Msg: fmt.Sprintf("log at byte %d may need %d bytes, scratch buffer holds %d", l.Token.Offset, need, e.layout.ScratchCap())}
		}
	})
	return err
}

// collectVars records every loop variable name once, in encounter order.
// Names that only appear as log arguments follow, so every reference has a
// local and reads 0.
func (e *Emitter) collectVars(prog *ast.Program) {
	seen := make(map[string]bool)
	ast.Walk(prog.Body, func(stmt ast.Stmt) {
		if f, ok := stmt.(*ast.ForStmt); ok && !seen[f.Name] {
			seen[f.Name] = true
			e.vars = append(e.vars, f.Name)
		}
	})
	ast.Walk(prog.Body, func(stmt ast.Stmt) {
		l, ok := stmt.(*ast.LogStmt)
		if !ok {
			return
		}
		for _, arg := range l.Args {
			if id, ok := arg.(*ast.Identifier); ok && !seen[id.Name] {
				seen[id.Name] = true
				e.vars = append(e.vars, id.Name)
			}
		}
	})
}

func (e *Emitter) emitStmts(body []ast.Stmt) []wat.Instr {
	var out []wat.Instr
	for _, stmt := range body {
		out = append(out, e.emitStmt(stmt)...)
	}
	return out
}

func (e *Emitter) emitStmt(stmt ast.Stmt) []wat.Instr {
	switch s := stmt.(type) {
	case *ast.LogStmt:
		return e.emitLog(s)
	case *ast.ForStmt:
		return e.emitFor(s)
	default:
		panic(fmt.Sprintf("emitter: unknown statement %T", stmt))
	}
}

// emitLog assembles `[arg,arg,...]` at the scratch buffer, tracking the
// write position in $cursor, then reports it through the host import.
func (e *Emitter) emitLog(s *ast.LogStmt) []wat.Instr {
	l := e.layout
	out := []wat.Instr{
		wat.I32Const(int32(l.ScratchBase)),
		wat.I32Const('['),
		wat.Plain(wat.OpI32Store8),
		wat.I32Const(1),
		wat.LocalSet(cursorLocal),
	}

	for i, arg := range s.Args {
		if i > 0 {
			out = append(out, e.scratchAt()...)
			out = append(out, wat.I32Const(','), wat.Plain(wat.OpI32Store8))
			out = append(out, advance(wat.I32Const(1))...)
		}

		switch a := arg.(type) {
		case *ast.StringLiteral:
			seg, _ := e.strings.lookup(a.Value)
			out = append(out, e.scratchAt()...)
			out = append(out,
				wat.I32Const(int32(seg.Offset)),
				wat.I32Const(int32(seg.Length)),
				wat.Plain(wat.OpMemoryCopy),
			)
			out = append(out, advance(wat.I32Const(int32(seg.Length)))...)
		case *ast.Identifier:
			out = append(out, wat.LocalGet(VarLocal(a.Name)))
			out = append(out, e.formatInt()...)
		case *ast.IntLiteral:
			out = append(out, wat.I32Const(a.Value))
			out = append(out, e.formatInt()...)
		default:
			panic(fmt.Sprintf("emitter: unknown expression %T", arg))
		}
	}

	out = append(out, e.scratchAt()...)
	out = append(out, wat.I32Const(']'), wat.Plain(wat.OpI32Store8))
	out = append(out, advance(wat.I32Const(1))...)

	return append(out,
		wat.I32Const(0).WithComment("name ptr: "+l.Target),
		wat.I32Const(int32(len(l.Target))),
		wat.I32Const(int32(l.ScratchBase)).WithComment("args ptr: JSON array"),
		wat.LocalGet(cursorLocal),
		wat.I32Const(int32(l.ReturnBase)).WithComment("ret buf ptr"),
		wat.I32Const(int32(l.ReturnCap)).WithComment("ret cap"),
		wat.Call(HostFunc),
		wat.Plain(wat.OpDrop),
	)
}

// emitFor lowers an inclusive counting loop:
//
//	$var = start
//	block $exit
//	  loop $head
//	    br_if $exit ($var > end)
//	    body
//	    $var = $var + 1
//	    br $head
func (e *Emitter) emitFor(s *ast.ForStmt) []wat.Instr {
	id := e.loops
	e.loops++
	exit := fmt.Sprintf("for%d_exit", id)
	head := fmt.Sprintf("for%d_head", id)
	v := VarLocal(s.Name)

	body := []wat.Instr{
		wat.LocalGet(v),
		wat.I32Const(s.End),
		wat.Plain(wat.OpI32GtS),
		wat.BrIf(exit),
	}
	body = append(body, e.emitStmts(s.Body)...)
	body = append(body,
		wat.LocalGet(v),
		wat.I32Const(1),
		wat.Plain(wat.OpI32Add),
		wat.LocalSet(v),
		wat.Br(head),
	)

	return []wat.Instr{
		wat.I32Const(s.Start),
		wat.LocalSet(v),
		wat.Block(exit, wat.Loop(head, body...)),
	}
}

// scratchAt pushes the current write address.
func (e *Emitter) scratchAt() []wat.Instr {
	return []wat.Instr{
		wat.I32Const(int32(e.layout.ScratchBase)),
		wat.LocalGet(cursorLocal),
		wat.Plain(wat.OpI32Add),
	}
}

// formatInt expects the value on the stack, writes its decimal form at the
// write address and advances the cursor by the returned length.
func (e *Emitter) formatInt() []wat.Instr {
	out := e.scratchAt()
	out = append(out, wat.Call(ItoaFunc))
	return append(out,
		wat.LocalGet(cursorLocal),
		wat.Plain(wat.OpI32Add),
		wat.LocalSet(cursorLocal),
	)
}

// advance adds the value produced by n to the cursor.
func advance(n wat.Instr) []wat.Instr {
	return []wat.Instr{
		wat.LocalGet(cursorLocal),
		n,
		wat.Plain(wat.OpI32Add),
		wat.LocalSet(cursorLocal),
	}
}
