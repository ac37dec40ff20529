package emitter

import (
	"github.com/agenthands/gaufre/pkg/wat"
)

// ItoaFunc is the name of the synthesized integer formatting routine.
const ItoaFunc = "itoa"

// itoaFunc builds `(func $itoa (param $value i32) (param $dst i32) (result i32))`.
// It writes the decimal form of value at dst and returns the byte count.
// The value is sign-extended to i64 before negation so math.MinInt32 formats
// correctly. Digits are produced least significant first, a '-' is appended
// for negative values, then the span is reversed in place.
func itoaFunc() *wat.Func {
	i32 := func(v int32) wat.Instr { return wat.I32Const(v) }
	op := wat.Plain
	get := wat.LocalGet
	set := wat.LocalSet

	body := []wat.Instr{
		get("value"),
		op(wat.OpI64ExtendI32S),
		set("n"),

		// negative: remember the sign, continue with the magnitude
		get("n"),
		wat.I64Const(0),
		op(wat.OpI64LtS),
		wat.If([]wat.Instr{
			i32(1),
			set("neg"),
			wat.I64Const(0),
			get("n"),
			op(wat.OpI64Sub),
			set("n"),
		}, nil),

		get("n"),
		op(wat.OpI64Eqz),
		wat.If([]wat.Instr{
			get("dst"),
			i32('0'),
			op(wat.OpI32Store8),
			i32(1),
			op(wat.OpReturn),
		}, nil),

		wat.Block("digits_done",
			wat.Loop("digits",
				get("n"),
				op(wat.OpI64Eqz),
				wat.BrIf("digits_done"),
				get("dst"),
				get("len"),
				op(wat.OpI32Add),
				get("n"),
				wat.I64Const(10),
				op(wat.OpI64RemU),
				op(wat.OpI32WrapI64),
				i32('0'),
				op(wat.OpI32Add),
				op(wat.OpI32Store8),
				get("len"),
				i32(1),
				op(wat.OpI32Add),
				set("len"),
				get("n"),
				wat.I64Const(10),
				op(wat.OpI64DivU),
				set("n"),
				wat.Br("digits"),
			),
		),

		get("neg"),
		wat.If([]wat.Instr{
			get("dst"),
			get("len"),
			op(wat.OpI32Add),
			i32('-'),
			op(wat.OpI32Store8),
			get("len"),
			i32(1),
			op(wat.OpI32Add),
			set("len"),
		}, nil),

		// reverse [dst, dst+len)
		get("dst"),
		set("lo"),
		get("dst"),
		get("len"),
		op(wat.OpI32Add),
		i32(1),
		op(wat.OpI32Sub),
		set("hi"),
		wat.Block("reverse_done",
			wat.Loop("reverse",
				get("lo"),
				get("hi"),
				op(wat.OpI32GeU),
				wat.BrIf("reverse_done"),
				get("lo"),
				op(wat.OpI32Load8U),
				set("tmp"),
				get("lo"),
				get("hi"),
				op(wat.OpI32Load8U),
				op(wat.OpI32Store8),
				get("hi"),
				get("tmp"),
				op(wat.OpI32Store8),
				get("lo"),
				i32(1),
				op(wat.OpI32Add),
				set("lo"),
				get("hi"),
				i32(1),
				op(wat.OpI32Sub),
				set("hi"),
				wat.Br("reverse"),
			),
		),

		get("len"),
	}

	return &wat.Func{
		Name:    ItoaFunc,
		Params:  []wat.Local{{Name: "value", Type: wat.I32}, {Name: "dst", Type: wat.I32}},
		Results: []wat.ValType{wat.I32},
		Locals: []wat.Local{
			{Name: "n", Type: wat.I64},
			{Name: "len", Type: wat.I32},
			{Name: "neg", Type: wat.I32},
			{Name: "lo", Type: wat.I32},
			{Name: "hi", Type: wat.I32},
			{Name: "tmp", Type: wat.I32},
		},
		Body: body,
	}
}
