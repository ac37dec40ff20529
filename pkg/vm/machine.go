package vm

import (
	"errors"
	"fmt"
	"runtime"

	"github.com/agenthands/gaufre/pkg/core/value"
	"github.com/agenthands/gaufre/pkg/wat"
)

var (
	ErrStackOverflow   = errors.New("vm: stack overflow")
	ErrStackUnderflow  = errors.New("vm: stack underflow")
	ErrGasExhausted    = errors.New("vm: gas exhausted")
	ErrMemoryAccess    = errors.New("vm: out of bounds memory access")
	ErrUnknownFunction = errors.New("vm: unknown function")
	ErrUnresolved      = errors.New("vm: unresolved import")
	ErrUnreachable     = errors.New("vm: unreachable executed")
	ErrCallDepth       = errors.New("vm: call stack exhausted")
)

// PageSize is the size of one linear-memory page.
const PageSize = 65536

const (
	StackDepth = 1024
	MaxFrames  = 64
)

// HostFunction is a Go function bound to a module import. It pops its
// parameters (last parameter first) and pushes its results.
type HostFunction func(m *Machine) error

// frame holds the locals of one function activation.
type frame struct {
	fn     *wat.Func
	locals []value.Value
	index  map[string]int
}

// Machine executes a single wat.Module instance: one linear memory, an
// operand stack and the host functions its imports resolve to.
type Machine struct {
	Stack [StackDepth]value.Value
	SP    int // Stack Pointer

	Memory []byte
	Module *wat.Module

	hosts map[string]HostFunction
	gas   int
	depth int
}

// New instantiates mod: memory is allocated and data segments are copied in.
func New(mod *wat.Module) (*Machine, error) {
	m := &Machine{
		Module: mod,
		hosts:  make(map[string]HostFunction),
	}
	if err := m.initMemory(); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Machine) initMemory() error {
	size := m.Module.Memory.Pages * PageSize
	if len(m.Memory) != size {
		m.Memory = make([]byte, size)
	} else {
		clear(m.Memory)
	}
	for _, d := range m.Module.Data {
		if d.Offset < 0 || d.Offset+len(d.Bytes) > len(m.Memory) {
			return fmt.Errorf("data segment at %d (%d bytes): %w", d.Offset, len(d.Bytes), ErrMemoryAccess)
		}
		copy(m.Memory[d.Offset:], d.Bytes)
	}
	return nil
}

// Reset restores memory to its instantiated state and clears the stack.
func (m *Machine) Reset() error {
	m.SP = 0
	m.depth = 0
	for i := range m.Stack {
		m.Stack[i] = value.Value{}
	}
	return m.initMemory()
}

// RegisterHostFunction binds fn to the import module.field.
func (m *Machine) RegisterHostFunction(module, field string, fn HostFunction) {
	m.hosts[module+"."+field] = fn
}

// Push adds a value to the stack. Panics on overflow.
func (m *Machine) Push(v value.Value) {
	if m.SP >= StackDepth {
		panic(ErrStackOverflow)
	}
	m.Stack[m.SP] = v
	m.SP++
}

// Pop removes and returns the top value from the stack. Panics on underflow.
func (m *Machine) Pop() value.Value {
	if m.SP <= 0 {
		panic(ErrStackUnderflow)
	}
	m.SP--
	return m.Stack[m.SP]
}

// ReadMemory returns a copy of length bytes at offset.
func (m *Machine) ReadMemory(offset, length uint32) ([]byte, error) {
	if uint64(offset)+uint64(length) > uint64(len(m.Memory)) {
		return nil, ErrMemoryAccess
	}
	out := make([]byte, length)
	copy(out, m.Memory[offset:])
	return out, nil
}

// WriteMemory copies b into memory at offset.
func (m *Machine) WriteMemory(offset uint32, b []byte) error {
	if uint64(offset)+uint64(len(b)) > uint64(len(m.Memory)) {
		return ErrMemoryAccess
	}
	copy(m.Memory[offset:], b)
	return nil
}

// Run invokes the function exported as "main" with no arguments.
func (m *Machine) Run(gasLimit int) error {
	_, err := m.Invoke("main", gasLimit)
	return err
}

// Invoke calls the function exported (or, failing that, defined) under
// name. Every executed instruction costs one unit of gas.
func (m *Machine) Invoke(name string, gasLimit int, args ...value.Value) (results []value.Value, err error) {
	fn := m.Module.Export(name)
	if fn == nil {
		fn = m.Module.Func(name)
	}
	if fn == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownFunction, name)
	}
	if len(args) != len(fn.Params) {
		return nil, fmt.Errorf("vm: %s takes %d arguments, got %d", name, len(fn.Params), len(args))
	}

	// Safety net: convert internal stack panics to errors
	defer func() {
		if r := recover(); r != nil {
			if e, ok := r.(error); ok && (e == ErrStackOverflow || e == ErrStackUnderflow) {
				err = e
				return
			}
			if _, ok := r.(runtime.Error); ok {
				err = fmt.Errorf("vm: %v", r)
				return
			}
			panic(r)
		}
	}()

	m.gas = gasLimit
	base := m.SP
	for _, a := range args {
		m.Push(a)
	}
	if err := m.call(fn); err != nil {
		m.SP = base
		return nil, err
	}

	results = make([]value.Value, m.SP-base)
	copy(results, m.Stack[base:m.SP])
	m.SP = base
	return results, nil
}

// call runs fn with its parameters already on the stack and leaves its
// results in their place.
func (m *Machine) call(fn *wat.Func) error {
	if m.depth >= MaxFrames {
		return ErrCallDepth
	}
	m.depth++
	defer func() { m.depth-- }()

	f := &frame{
		fn:     fn,
		locals: make([]value.Value, 0, len(fn.Params)+len(fn.Locals)),
		index:  make(map[string]int, len(fn.Params)+len(fn.Locals)),
	}
	for _, p := range fn.Params {
		f.index[p.Name] = len(f.locals)
		f.locals = append(f.locals, value.Zero(p.Type))
	}
	for i := len(fn.Params) - 1; i >= 0; i-- {
		f.locals[i] = m.Pop()
	}
	for _, l := range fn.Locals {
		f.index[l.Name] = len(f.locals)
		f.locals = append(f.locals, value.Zero(l.Type))
	}

	base := m.SP
	if _, _, err := m.exec(f, fn.Body); err != nil {
		return err
	}

	n := len(fn.Results)
	if m.SP-base < n {
		return ErrStackUnderflow
	}
	copy(m.Stack[base:], m.Stack[m.SP-n:m.SP])
	m.SP = base + n
	return nil
}

func (m *Machine) callByName(name string) error {
	if imp := m.Module.Import(name); imp != nil {
		host, ok := m.hosts[imp.Module+"."+imp.Field]
		if !ok {
			return fmt.Errorf("%w: %s.%s", ErrUnresolved, imp.Module, imp.Field)
		}
		return host(m)
	}
	fn := m.Module.Func(name)
	if fn == nil {
		return fmt.Errorf("%w: %s", ErrUnknownFunction, name)
	}
	return m.call(fn)
}

// exec runs a structured instruction sequence. It reports the label of a
// pending branch, or returning=true once a return instruction executed.
func (m *Machine) exec(f *frame, body []wat.Instr) (branch string, returning bool, err error) {
	for i := range body {
		in := &body[i]
		m.gas--
		if m.gas < 0 {
			return "", false, ErrGasExhausted
		}

		switch in.Op {
		case wat.OpNop:

		case wat.OpUnreachable:
			return "", false, ErrUnreachable

		case wat.OpBlock:
			br, ret, err := m.exec(f, in.Body)
			if err != nil || ret || (br != "" && br != in.Name) {
				return br, ret, err
			}

		case wat.OpLoop:
			for {
				br, ret, err := m.exec(f, in.Body)
				if err != nil || ret || (br != "" && br != in.Name) {
					return br, ret, err
				}
				if br == "" {
					break
				}
			}

		case wat.OpIf:
			branchBody := in.Else
			if m.Pop().Uint32() != 0 {
				branchBody = in.Body
			}
			if br, ret, err := m.exec(f, branchBody); err != nil || ret || br != "" {
				return br, ret, err
			}

		case wat.OpBr:
			return in.Name, false, nil

		case wat.OpBrIf:
			if m.Pop().Uint32() != 0 {
				return in.Name, false, nil
			}

		case wat.OpReturn:
			return "", true, nil

		case wat.OpCall:
			if err := m.callByName(in.Name); err != nil {
				return "", false, err
			}

		case wat.OpDrop:
			m.Pop()

		case wat.OpLocalGet:
			idx, ok := f.index[in.Name]
			if !ok {
				return "", false, fmt.Errorf("vm: unknown local $%s in $%s", in.Name, f.fn.Name)
			}
			m.Push(f.locals[idx])

		case wat.OpLocalSet:
			idx, ok := f.index[in.Name]
			if !ok {
				return "", false, fmt.Errorf("vm: unknown local $%s in $%s", in.Name, f.fn.Name)
			}
			f.locals[idx] = m.Pop()

		case wat.OpI32Const:
			m.Push(value.I32(int32(in.Imm)))

		case wat.OpI64Const:
			m.Push(value.I64(in.Imm))

		case wat.OpI32Add:
			b, a := m.Pop().Uint32(), m.Pop().Uint32()
			m.Push(value.I32(int32(a + b)))

		case wat.OpI32Sub:
			b, a := m.Pop().Uint32(), m.Pop().Uint32()
			m.Push(value.I32(int32(a - b)))

		case wat.OpI32GtS:
			b, a := m.Pop().Int32(), m.Pop().Int32()
			m.Push(boolValue(a > b))

		case wat.OpI32GeU:
			b, a := m.Pop().Uint32(), m.Pop().Uint32()
			m.Push(boolValue(a >= b))

		case wat.OpI32WrapI64:
			m.Push(value.I32(int32(m.Pop().Int64())))

		case wat.OpI32Load8U:
			addr := m.Pop().Uint32()
			if int(addr) >= len(m.Memory) {
				return "", false, ErrMemoryAccess
			}
			m.Push(value.I32(int32(m.Memory[addr])))

		case wat.OpI32Store8:
			v := m.Pop().Uint32()
			addr := m.Pop().Uint32()
			if int(addr) >= len(m.Memory) {
				return "", false, ErrMemoryAccess
			}
			m.Memory[addr] = byte(v)

		case wat.OpI64Eqz:
			m.Push(boolValue(m.Pop().Int64() == 0))

		case wat.OpI64LtS:
			b, a := m.Pop().Int64(), m.Pop().Int64()
			m.Push(boolValue(a < b))

		case wat.OpI64Sub:
			b, a := m.Pop().Int64(), m.Pop().Int64()
			m.Push(value.I64(a - b))

		case wat.OpI64DivU, wat.OpI64RemU:
			b, a := uint64(m.Pop().Int64()), uint64(m.Pop().Int64())
			if b == 0 {
				return "", false, errors.New("vm: integer divide by zero")
			}
			if in.Op == wat.OpI64DivU {
				m.Push(value.I64(int64(a / b)))
			} else {
				m.Push(value.I64(int64(a % b)))
			}

		case wat.OpI64ExtendI32S:
			m.Push(value.I64(int64(m.Pop().Int32())))

		case wat.OpMemoryCopy:
			n := m.Pop().Uint32()
			src := m.Pop().Uint32()
			dst := m.Pop().Uint32()
			size := uint64(len(m.Memory))
			if uint64(src)+uint64(n) > size || uint64(dst)+uint64(n) > size {
				return "", false, ErrMemoryAccess
			}
			copy(m.Memory[dst:dst+n], m.Memory[src:src+n])

		default:
			return "", false, fmt.Errorf("vm: unsupported instruction %s", in.Op)
		}
	}
	return "", false, nil
}

func boolValue(b bool) value.Value {
	if b {
		return value.I32(1)
	}
	return value.I32(0)
}
