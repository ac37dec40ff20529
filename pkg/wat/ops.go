package wat

// Op is a WebAssembly instruction in the subset the compiler emits, plus
// unreachable and nop for hand-built modules.
type Op uint8

const (
	OpUnreachable Op = iota
	OpNop
	OpBlock
	OpLoop
	OpIf
	OpBr
	OpBrIf
	OpReturn
	OpCall
	OpDrop
	OpLocalGet
	OpLocalSet
	OpI32Const
	OpI64Const
	OpI32Add
	OpI32Sub
	OpI32GtS
	OpI32GeU
	OpI32WrapI64
	OpI32Load8U
	OpI32Store8
	OpI64Eqz
	OpI64LtS
	OpI64Sub
	OpI64DivU
	OpI64RemU
	OpI64ExtendI32S
	OpMemoryCopy
)

var mnemonics = [...]string{
	OpUnreachable:   "unreachable",
	OpNop:           "nop",
	OpBlock:         "block",
	OpLoop:          "loop",
	OpIf:            "if",
	OpBr:            "br",
	OpBrIf:          "br_if",
	OpReturn:        "return",
	OpCall:          "call",
	OpDrop:          "drop",
	OpLocalGet:      "local.get",
	OpLocalSet:      "local.set",
	OpI32Const:      "i32.const",
	OpI64Const:      "i64.const",
	OpI32Add:        "i32.add",
	OpI32Sub:        "i32.sub",
	OpI32GtS:        "i32.gt_s",
	OpI32GeU:        "i32.ge_u",
	OpI32WrapI64:    "i32.wrap_i64",
	OpI32Load8U:     "i32.load8_u",
	OpI32Store8:     "i32.store8",
	OpI64Eqz:        "i64.eqz",
	OpI64LtS:        "i64.lt_s",
	OpI64Sub:        "i64.sub",
	OpI64DivU:       "i64.div_u",
	OpI64RemU:       "i64.rem_u",
	OpI64ExtendI32S: "i64.extend_i32_s",
	OpMemoryCopy:    "memory.copy",
}

func (op Op) String() string {
	if int(op) < len(mnemonics) && mnemonics[op] != "" {
		return mnemonics[op]
	}
	return "unknown"
}
