package emitter_test

import (
	"errors"
	"math"
	"math/rand"
	"strconv"
	"strings"
	"testing"

	"github.com/agenthands/gaufre/pkg/compiler/ast"
	"github.com/agenthands/gaufre/pkg/compiler/emitter"
	"github.com/agenthands/gaufre/pkg/compiler/parser"
	"github.com/agenthands/gaufre/pkg/core/value"
	"github.com/agenthands/gaufre/pkg/host"
	"github.com/agenthands/gaufre/pkg/vm"
	"github.com/agenthands/gaufre/pkg/wat"
)

const gas = 10_000_000

func emit(t *testing.T, src string) (*wat.Module, *emitter.Emitter) {
	t.Helper()
	prog, err := parser.Parse([]byte(src))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	e := emitter.NewEmitter()
	mod, err := e.Emit(prog)
	if err != nil {
		t.Fatalf("Emit failed: %v", err)
	}
	return mod, e
}

// run executes the module's entry point and returns the raw payloads it
// reported.
func run(t *testing.T, mod *wat.Module) []string {
	t.Helper()
	m, err := vm.New(mod)
	if err != nil {
		t.Fatalf("vm.New failed: %v", err)
	}
	console := host.NewConsole(nil)
	console.Register(m, emitter.DefaultLayout())
	if err := m.Run(gas); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	payloads := make([]string, len(console.Calls))
	for i, c := range console.Calls {
		if c.Target != host.TargetConsoleLog {
			t.Errorf("call %d: unexpected target %q", i, c.Target)
		}
		payloads[i] = c.Raw
	}
	return payloads
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestEmitSingleLog(t *testing.T) {
	mod, e := emit(t, `fn main(){ log("hi") }`)

	if len(mod.Data) != 2 {
		t.Fatalf("expected 2 data segments, got %d", len(mod.Data))
	}
	if mod.Data[0].Offset != 0 || string(mod.Data[0].Bytes) != "console.log" {
		t.Errorf("segment 0: got %d %q", mod.Data[0].Offset, mod.Data[0].Bytes)
	}
	if mod.Data[1].Offset != 16 || string(mod.Data[1].Bytes) != `"hi"` {
		t.Errorf("segment 1: got %d %q", mod.Data[1].Offset, mod.Data[1].Bytes)
	}
	if seg, ok := e.Segment("hi"); !ok || seg.Offset != 16 || seg.Length != 4 {
		t.Errorf("Segment(hi) = %+v, %v", seg, ok)
	}

	text := mod.String()
	if n := strings.Count(text, "call $invoke"); n != 1 {
		t.Errorf("expected 1 host call, got %d", n)
	}
	for _, want := range []string{
		`(import "gaufre" "invoke" (func $invoke (param i32 i32 i32 i32 i32 i32) (result i32)))`,
		`(memory (export "memory") 1)`,
		`(data (i32.const 0) "console.log")`,
		`(data (i32.const 16) "\"hi\"")`,
		`(func $itoa (param $value i32) (param $dst i32) (result i32)`,
		`(func $main (export "main")`,
		`memory.copy`,
	} {
		if !strings.Contains(text, want) {
			t.Errorf("module text is missing %q:\n%s", want, text)
		}
	}

	if got := run(t, mod); !equalStrings(got, []string{`["hi"]`}) {
		t.Errorf("payloads = %q", got)
	}
}

func TestEmitDeduplicatesLiterals(t *testing.T) {
	mod, e := emit(t, `fn main(){ log("x") log("y") log("x") for i = 1 to 2 { log("y", "x") } }`)

	if len(mod.Data) != 3 {
		t.Fatalf("expected console.log + 2 literal segments, got %d", len(mod.Data))
	}
	x, _ := e.Segment("x")
	y, _ := e.Segment("y")
	if x.Offset != 16 || y.Offset != 32 {
		t.Errorf("expected offsets 16 and 32, got %d and %d", x.Offset, y.Offset)
	}

	if n := strings.Count(mod.String(), "call $invoke"); n != 4 {
		t.Errorf("expected 4 host call sites, got %d", n)
	}

	want := []string{`["x"]`, `["y"]`, `["x"]`, `["y","x"]`, `["y","x"]`}
	if got := run(t, mod); !equalStrings(got, want) {
		t.Errorf("payloads = %q, want %q", got, want)
	}
}

func TestEmitTwoIdenticalLogs(t *testing.T) {
	mod, _ := emit(t, `fn main(){ log("x") log("x") }`)
	if len(mod.Data) != 2 {
		t.Errorf("expected one literal segment, got %d segments", len(mod.Data))
	}
	if n := strings.Count(mod.String(), "call $invoke"); n != 2 {
		t.Errorf("expected 2 host calls, got %d", n)
	}
}

func TestEmitAlignsSegments(t *testing.T) {
	long := "0123456789abcdefghij" // quoted: 22 bytes
	mod, _ := emit(t, `fn main(){ log("abc") log("`+long+`") log("") }`)

	wantOffsets := []int{0, 16, 32, 64}
	if len(mod.Data) != len(wantOffsets) {
		t.Fatalf("expected %d segments, got %d", len(wantOffsets), len(mod.Data))
	}
	for i, d := range mod.Data {
		if d.Offset != wantOffsets[i] {
			t.Errorf("segment %d at %d, want %d", i, d.Offset, wantOffsets[i])
		}
		if i > 0 && d.Offset%16 != 0 {
			t.Errorf("segment %d is not 16-byte aligned", i)
		}
	}
	if string(mod.Data[3].Bytes) != `""` {
		t.Errorf("empty literal: got %q", mod.Data[3].Bytes)
	}
}

func TestEmitEscaping(t *testing.T) {
	src := "fn main(){ log(\"tab\\there\") log(\"a\tb\") log(\"é\") }"
	mod, _ := emit(t, src)

	wantJSON := []string{`"tab\\there"`, `"a\tb"`, `"\u00e9"`}
	for i, want := range wantJSON {
		if got := string(mod.Data[i+1].Bytes); got != want {
			t.Errorf("segment %d: got %s, want %s", i+1, got, want)
		}
	}

	text := mod.String()
	for _, want := range []string{
		`(data (i32.const 16) "\"tab\\\\there\"")`,
		`(data (i32.const 32) "\"a\\tb\"")`,
		`(data (i32.const 48) "\"\\u00e9\"")`,
	} {
		if !strings.Contains(text, want) {
			t.Errorf("module text is missing %s", want)
		}
	}

	got := run(t, mod)
	want := []string{`["tab\\there"]`, `["a\tb"]`, `["\u00e9"]`}
	if !equalStrings(got, want) {
		t.Errorf("payloads = %q, want %q", got, want)
	}
}

func TestEmitLoop(t *testing.T) {
	mod, _ := emit(t, `fn main(){ for i = 1 to 3 { log(i) } }`)

	text := mod.String()
	if n := strings.Count(text, "call $invoke"); n != 1 {
		t.Errorf("expected 1 static host call, got %d", n)
	}
	for _, want := range []string{"(local $cursor i32)", "(local $var_i i32)", "block $for0_exit", "loop $for0_head", "i32.gt_s", "call $itoa"} {
		if !strings.Contains(text, want) {
			t.Errorf("module text is missing %q", want)
		}
	}

	want := []string{"[1]", "[2]", "[3]"}
	if got := run(t, mod); !equalStrings(got, want) {
		t.Errorf("payloads = %q, want %q", got, want)
	}
}

func TestEmitLoopCounts(t *testing.T) {
	tests := []struct {
		name       string
		start, end int32
		want       int
	}{
		{"start after end", 5, 1, 0},
		{"single iteration", 7, 7, 1},
		{"ascending", 0, 9, 10},
		{"large values", 2147483640, 2147483646, 7},
		{"from zero", 0, 0, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := "fn main(){ for k = " + strconv.Itoa(int(tt.start)) + " to " + strconv.Itoa(int(tt.end)) + " { log(k) } }"
			mod, _ := emit(t, src)
			got := run(t, mod)
			if len(got) != tt.want {
				t.Fatalf("body ran %d times, want %d", len(got), tt.want)
			}
			for i, p := range got {
				if want := "[" + strconv.Itoa(int(tt.start)+i) + "]"; p != want {
					t.Errorf("iteration %d: got %s, want %s", i, p, want)
				}
			}
		})
	}
}

func TestEmitNestedLoops(t *testing.T) {
	mod, e := emit(t, `fn main(){
		log("begin")
		for i = 1 to 2 {
			for j = 3 to 4 {
				log("cell", i, j)
			}
		}
		log("end", 0)
	}`)

	if vars := e.Vars(); !equalStrings(vars, []string{"i", "j"}) {
		t.Errorf("Vars() = %v", vars)
	}

	want := []string{
		`["begin"]`,
		`["cell",1,3]`, `["cell",1,4]`,
		`["cell",2,3]`, `["cell",2,4]`,
		`["end",0]`,
	}
	if got := run(t, mod); !equalStrings(got, want) {
		t.Errorf("payloads = %q, want %q", got, want)
	}
}

func TestEmitSharedLoopVariable(t *testing.T) {
	// Both loops count in the same local: the inner loop leaves i at 3,
	// which ends the outer loop after its first pass.
	mod, e := emit(t, `fn main(){ for i = 1 to 3 { for i = 1 to 2 { log(i) } } for i = 7 to 7 { log(i) } }`)

	if vars := e.Vars(); !equalStrings(vars, []string{"i"}) {
		t.Errorf("Vars() = %v, want [i]", vars)
	}
	if n := strings.Count(mod.String(), "(local $var_i i32)"); n != 1 {
		t.Errorf("expected one local for i, got %d", n)
	}

	want := []string{"[1]", "[2]", "[7]"}
	if got := run(t, mod); !equalStrings(got, want) {
		t.Errorf("payloads = %q, want %q", got, want)
	}
}

func TestEmitVariableBeforeLoop(t *testing.T) {
	// Locals start at zero and keep their last value after a loop.
	mod, _ := emit(t, `fn main(){ log(n) for n = 1 to 2 { } log(n) }`)
	want := []string{"[0]", "[3]"}
	if got := run(t, mod); !equalStrings(got, want) {
		t.Errorf("payloads = %q, want %q", got, want)
	}
}

func TestEmitEmptyProgram(t *testing.T) {
	mod, _ := emit(t, `fn main(){ }`)

	if len(mod.Data) != 1 {
		t.Errorf("expected only the console.log segment, got %d", len(mod.Data))
	}
	entry := mod.Export("main")
	if entry == nil {
		t.Fatalf("missing main export")
	}
	if len(entry.Body) != 0 || len(entry.Locals) != 1 {
		t.Errorf("expected empty body with one local, got %d instrs and %d locals", len(entry.Body), len(entry.Locals))
	}
	if got := run(t, mod); len(got) != 0 {
		t.Errorf("expected no host calls, got %q", got)
	}
}

func invokeItoa(t *testing.T, m *vm.Machine, v int32) string {
	t.Helper()
	const dst = 0xC000
	res, err := m.Invoke(emitter.ItoaFunc, 10000, value.I32(v), value.I32(dst))
	if err != nil {
		t.Fatalf("itoa(%d): %v", v, err)
	}
	if len(res) != 1 {
		t.Fatalf("itoa(%d): expected one result, got %d", v, len(res))
	}
	out, err := m.ReadMemory(dst, res[0].Uint32())
	if err != nil {
		t.Fatalf("itoa(%d): %v", v, err)
	}
	return string(out)
}

func TestItoaRoundTrip(t *testing.T) {
	mod, _ := emit(t, `fn main(){ }`)
	m, err := vm.New(mod)
	if err != nil {
		t.Fatalf("vm.New failed: %v", err)
	}

	values := []int32{0, 1, -1, 9, 10, -10, 99, 100, 1000000, -987654321, math.MaxInt32, math.MinInt32 + 1, math.MinInt32}
	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 500; i++ {
		values = append(values, int32(rng.Uint32()))
	}

	for _, v := range values {
		got := invokeItoa(t, m, v)
		if want := strconv.FormatInt(int64(v), 10); got != want {
			t.Errorf("itoa(%d) = %q, want %q", v, got, want)
		}
		back, err := strconv.ParseInt(got, 10, 32)
		if err != nil || int32(back) != v {
			t.Errorf("itoa(%d) does not parse back: %q", v, got)
		}
	}

	if got := invokeItoa(t, m, 0); got != "0" {
		t.Errorf("itoa(0) = %q", got)
	}
}

func TestEmitIntLiteralArguments(t *testing.T) {
	mod, _ := emit(t, `fn main(){ log(0, 2147483647, "s", 42) }`)
	want := []string{`[0,2147483647,"s",42]`}
	if got := run(t, mod); !equalStrings(got, want) {
		t.Errorf("payloads = %q, want %q", got, want)
	}
}

func TestEmitLayoutErrors(t *testing.T) {
	t.Run("payload exceeds scratch buffer", func(t *testing.T) {
		src := `fn main(){ log("` + strings.Repeat("a", 13000) + `") }`
		prog, err := parser.Parse([]byte(src))
		if err != nil {
			t.Fatalf("Parse failed: %v", err)
		}
		_, err = emitter.NewEmitter().Emit(prog)
		var layoutErr *emitter.LayoutError
		if !errors.As(err, &layoutErr) {
			t.Fatalf("expected *emitter.LayoutError, got %v", err)
		}
	})

	t.Run("literal pool exceeds its region", func(t *testing.T) {
		var sb strings.Builder
		sb.WriteString("fn main(){")
		for i := 0; i < 60; i++ {
			sb.WriteString(` log("` + strconv.Itoa(i) + strings.Repeat("b", 1000) + `")`)
		}
		sb.WriteString("}")
		prog, err := parser.Parse([]byte(sb.String()))
		if err != nil {
			t.Fatalf("Parse failed: %v", err)
		}
		_, err = emitter.NewEmitter().Emit(prog)
		var layoutErr *emitter.LayoutError
		if !errors.As(err, &layoutErr) {
			t.Fatalf("expected *emitter.LayoutError, got %v", err)
		}
	})

	t.Run("invalid layout", func(t *testing.T) {
		l := emitter.DefaultLayout()
		l.ScratchBase = l.ReturnBase + 16
		_, err := emitter.NewEmitterWithLayout(l).Emit(&ast.Program{})
		var layoutErr *emitter.LayoutError
		if !errors.As(err, &layoutErr) {
			t.Fatalf("expected *emitter.LayoutError, got %v", err)
		}
	})
}

func TestEmitCustomLayout(t *testing.T) {
	l := emitter.DefaultLayout()
	l.PoolBase = 32
	l.Align = 8
	l.ScratchBase = 1024
	l.ReturnBase = 2048
	l.ReturnCap = 64

	prog, err := parser.Parse([]byte(`fn main(){ log("ab") log("cde", 7) }`))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	mod, err := emitter.NewEmitterWithLayout(l).Emit(prog)
	if err != nil {
		t.Fatalf("Emit failed: %v", err)
	}
	if mod.Data[1].Offset != 32 || mod.Data[2].Offset != 40 {
		t.Errorf("unexpected offsets %d, %d", mod.Data[1].Offset, mod.Data[2].Offset)
	}

	m, err := vm.New(mod)
	if err != nil {
		t.Fatalf("vm.New failed: %v", err)
	}
	console := host.NewConsole(nil)
	console.Register(m, l)
	if err := m.Run(gas); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(console.Calls) != 2 || console.Calls[1].Raw != `["cde",7]` {
		t.Errorf("unexpected calls %+v", console.Calls)
	}
}

func TestEmitUnboundVariable(t *testing.T) {
	mod, e := emit(t, `fn main(){ log(z) for i = 1 to 2 { log(i, j) } log(j, z) }`)

	if vars := e.Vars(); !equalStrings(vars, []string{"i", "z", "j"}) {
		t.Errorf("Vars() = %v, want [i z j]", vars)
	}
	text := mod.String()
	for _, want := range []string{"(local $var_z i32)", "(local $var_j i32)"} {
		if !strings.Contains(text, want) {
			t.Errorf("module text is missing %q", want)
		}
	}

	want := []string{"[0]", "[1,0]", "[2,0]", "[0,0]"}
	if got := run(t, mod); !equalStrings(got, want) {
		t.Errorf("payloads = %q, want %q", got, want)
	}
}

func TestQuoteJSON(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"", `""`},
		{"plain", `"plain"`},
		{`back\slash`, `"back\\slash"`},
		{"<&>", `"<&>"`},
		{"line\nbreak", `"line\nbreak"`},
		{"\x01", `"\u0001"`},
		{"caf\u00e9", `"caf\u00e9"`},
		{"\U0001F600", `"\ud83d\ude00"`},
	}
	for _, tt := range tests {
		if got := string(emitter.QuoteJSON(tt.in)); got != tt.want {
			t.Errorf("QuoteJSON(%q) = %s, want %s", tt.in, got, tt.want)
		}
	}
}

func collectOps(body []wat.Instr, seen map[wat.Op]bool) {
	for _, in := range body {
		seen[in.Op] = true
		collectOps(in.Body, seen)
		collectOps(in.Else, seen)
	}
}

func TestEmitInstructionSet(t *testing.T) {
	mod, _ := emit(t, `fn main(){ log("s", 1, -0) for i = 3 to 1 { log(i) } }`)

	seen := make(map[wat.Op]bool)
	for _, f := range mod.Funcs {
		collectOps(f.Body, seen)
	}
	for op := range seen {
		if op.String() == "unknown" {
			t.Errorf("emitted an instruction outside the op table: %d", op)
		}
	}
	// unreachable and nop only appear in hand-built modules.
	for op := wat.OpBlock; op <= wat.OpMemoryCopy; op++ {
		if !seen[op] {
			t.Errorf("expected %s in the generated module", op)
		}
	}
}
