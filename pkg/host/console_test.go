package host_test

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/agenthands/gaufre/pkg/compiler"
	"github.com/agenthands/gaufre/pkg/compiler/emitter"
	"github.com/agenthands/gaufre/pkg/host"
	"github.com/agenthands/gaufre/pkg/vm"
	"github.com/agenthands/gaufre/pkg/wat"
)

func TestConsolePrints(t *testing.T) {
	mod, err := compiler.Compile([]byte(`fn main(){ log("hi") for i = 1 to 2 { log("i", i, "of", 2) } }`))
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}
	m, err := vm.New(mod)
	if err != nil {
		t.Fatalf("vm.New failed: %v", err)
	}

	var out bytes.Buffer
	console := host.NewConsole(&out)
	console.Register(m, emitter.DefaultLayout())
	if err := m.Run(1_000_000); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if got, want := out.String(), "hi\ni 1 of 2\ni 2 of 2\n"; got != want {
		t.Errorf("output = %q, want %q", got, want)
	}
	if len(console.Calls) != 3 {
		t.Fatalf("expected 3 calls, got %d", len(console.Calls))
	}
	args := console.Calls[1].Args
	if len(args) != 4 || args[0] != "i" || args[1] != json.Number("1") {
		t.Errorf("unexpected decoded args %#v", args)
	}

	ret, err := m.ReadMemory(0xF000, 4)
	if err != nil {
		t.Fatalf("ReadMemory failed: %v", err)
	}
	if string(ret) != "null" {
		t.Errorf("expected null in the return buffer, got %q", ret)
	}
}

// invokeModule calls the host import once with the given target and return
// capacity and returns what the import produced.
func invokeModule(target string, retCap int32) *wat.Module {
	i32 := wat.I32
	return &wat.Module{
		Imports: []wat.Import{{
			Module: "gaufre", Field: "invoke", Name: "invoke",
			Params:  []wat.ValType{i32, i32, i32, i32, i32, i32},
			Results: []wat.ValType{i32},
		}},
		Memory: wat.Memory{Export: "memory", Pages: 1},
		Data: []wat.Data{
			{Offset: 0, Bytes: []byte(target)},
			{Offset: 32, Bytes: []byte(`[1,"x"]`)},
		},
		Funcs: []*wat.Func{{
			Name:    "main",
			Export:  "main",
			Results: []wat.ValType{i32},
			Body: []wat.Instr{
				wat.I32Const(0),
				wat.I32Const(int32(len(target))),
				wat.I32Const(32),
				wat.I32Const(7),
				wat.I32Const(256),
				wat.I32Const(retCap),
				wat.Call("invoke"),
			},
		}},
	}
}

func TestConsoleInvokeResult(t *testing.T) {
	tests := []struct {
		name   string
		target string
		retCap int32
		want   int32
		output string
	}{
		{"console.log", host.TargetConsoleLog, 1024, 4, "1 x\n"},
		{"exact capacity", host.TargetConsoleLog, 4, 4, "1 x\n"},
		{"capacity too small", host.TargetConsoleLog, 3, -1, "1 x\n"},
		{"unknown target", "console.warn", 1024, -1, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := vm.New(invokeModule(tt.target, tt.retCap))
			if err != nil {
				t.Fatalf("vm.New failed: %v", err)
			}
			var out bytes.Buffer
			console := host.NewConsole(&out)
			console.Register(m, emitter.DefaultLayout())

			res, err := m.Invoke("main", 100)
			if err != nil {
				t.Fatalf("Invoke failed: %v", err)
			}
			if len(res) != 1 || res[0].Int32() != tt.want {
				t.Errorf("result = %v, want %d", res, tt.want)
			}
			if out.String() != tt.output {
				t.Errorf("output = %q, want %q", out.String(), tt.output)
			}
			if len(console.Calls) != 1 || console.Calls[0].Target != tt.target {
				t.Errorf("unexpected calls %+v", console.Calls)
			}
		})
	}
}

func TestConsoleNilWriter(t *testing.T) {
	m, err := vm.New(invokeModule(host.TargetConsoleLog, 1024))
	if err != nil {
		t.Fatalf("vm.New failed: %v", err)
	}
	console := host.NewConsole(nil)
	console.Register(m, emitter.DefaultLayout())
	if _, err := m.Invoke("main", 100); err != nil {
		t.Fatalf("Invoke failed: %v", err)
	}
	if len(console.Calls) != 1 || console.Calls[0].Raw != `[1,"x"]` {
		t.Errorf("unexpected calls %+v", console.Calls)
	}
}

func TestDecodeArgs(t *testing.T) {
	args, err := host.DecodeArgs([]byte(`["a",-2147483648,2147483647]`))
	if err != nil {
		t.Fatalf("DecodeArgs failed: %v", err)
	}
	if len(args) != 3 || args[1] != json.Number("-2147483648") || args[2] != json.Number("2147483647") {
		t.Errorf("unexpected args %#v", args)
	}

	for _, raw := range []string{``, `[1`, `{"a":1}`, `[1] [2]`} {
		if _, err := host.DecodeArgs([]byte(raw)); err == nil {
			t.Errorf("DecodeArgs(%q): expected error", raw)
		}
	}
}

func TestFormatArgs(t *testing.T) {
	tests := []struct {
		args []any
		want string
	}{
		{[]any{"hello"}, "hello"},
		{[]any{"n", json.Number("-7")}, "n -7"},
		{[]any{true, nil, "x y"}, "true null x y"},
		{[]any{[]any{json.Number("1")}}, "[1]"},
		{nil, ""},
	}
	for _, tt := range tests {
		if got := host.FormatArgs(tt.args); got != tt.want {
			t.Errorf("FormatArgs(%v) = %q, want %q", tt.args, got, tt.want)
		}
	}
}
