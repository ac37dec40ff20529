// Package host implements the gaufre.invoke import that generated modules
// call to report values.
package host

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/agenthands/gaufre/pkg/compiler/emitter"
	"github.com/agenthands/gaufre/pkg/core/value"
	"github.com/agenthands/gaufre/pkg/vm"
)

// TargetConsoleLog is the only target generated modules name.
const TargetConsoleLog = "console.log"

// Call is one decoded host invocation.
type Call struct {
	Target string
	Raw    string // the JSON payload as read from memory
	Args   []any  // decoded payload; numbers are json.Number
}

// Console answers gaufre.invoke: console.log prints its arguments to Out,
// separated by spaces, and every call is recorded in Calls.
type Console struct {
	Out   io.Writer
	Calls []Call
}

func NewConsole(out io.Writer) *Console {
	return &Console{Out: out}
}

// Register binds the console to the layout's host import on m.
func (c *Console) Register(m *vm.Machine, l emitter.Layout) {
	m.RegisterHostFunction(l.HostModule, l.HostField, c.Invoke)
}

// Invoke: ( namePtr nameLen argsPtr argsLen retPtr retCap -- retLen )
// Returns the number of bytes written at retPtr, or -1 when the target is
// unknown or the result does not fit retCap.
func (c *Console) Invoke(m *vm.Machine) error {
	retCap := m.Pop().Uint32()
	retPtr := m.Pop().Uint32()
	argsLen := m.Pop().Uint32()
	argsPtr := m.Pop().Uint32()
	nameLen := m.Pop().Uint32()
	namePtr := m.Pop().Uint32()

	name, err := m.ReadMemory(namePtr, nameLen)
	if err != nil {
		return fmt.Errorf("invoke: read target name: %w", err)
	}
	raw, err := m.ReadMemory(argsPtr, argsLen)
	if err != nil {
		return fmt.Errorf("invoke: read arguments: %w", err)
	}

	args, err := DecodeArgs(raw)
	if err != nil {
		return fmt.Errorf("invoke %s: %w", name, err)
	}
	c.Calls = append(c.Calls, Call{Target: string(name), Raw: string(raw), Args: args})

	var result any
	switch string(name) {
	case TargetConsoleLog:
		if c.Out != nil {
			if _, err := fmt.Fprintln(c.Out, FormatArgs(args)); err != nil {
				return fmt.Errorf("console.log: %w", err)
			}
		}
	default:
		m.Push(value.I32(-1))
		return nil
	}

	out, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("invoke %s: encode result: %w", name, err)
	}
	if uint32(len(out)) > retCap {
		m.Push(value.I32(-1))
		return nil
	}
	if err := m.WriteMemory(retPtr, out); err != nil {
		return fmt.Errorf("invoke %s: write result: %w", name, err)
	}
	m.Push(value.I32(int32(len(out))))
	return nil
}

// DecodeArgs parses a JSON array payload, keeping numbers exact.
func DecodeArgs(raw []byte) ([]any, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var args []any
	if err := dec.Decode(&args); err != nil {
		return nil, fmt.Errorf("json unmarshal failed: %v | Raw: %s", err, raw)
	}
	if dec.More() {
		return nil, fmt.Errorf("trailing data after arguments | Raw: %s", raw)
	}
	return args, nil
}

// FormatArgs renders arguments the way console.log does: strings verbatim,
// everything else as JSON, separated by single spaces.
func FormatArgs(args []any) string {
	parts := make([]string, len(args))
	for i, a := range args {
		switch v := a.(type) {
		case string:
			parts[i] = v
		case json.Number:
			parts[i] = v.String()
		default:
			b, err := json.Marshal(v)
			if err != nil {
				parts[i] = fmt.Sprint(v)
				continue
			}
			parts[i] = string(b)
		}
	}
	return strings.Join(parts, " ")
}
