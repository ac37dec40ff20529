package value

import (
	"fmt"

	"github.com/agenthands/gaufre/pkg/wat"
)

// Type represents the tag in the Value tagged union.
type Type uint8

const (
	TypeVoid Type = iota
	TypeI32
	TypeI64
)

func (t Type) String() string {
	switch t {
	case TypeI32:
		return "i32"
	case TypeI64:
		return "i64"
	}
	return "void"
}

// Value is a tagged union over the WebAssembly number types the VM runs.
// Data holds the raw bits; an i32 keeps its bits in the low 32.
type Value struct {
	Type Type
	Data uint64
}

func I32(v int32) Value { return Value{Type: TypeI32, Data: uint64(uint32(v))} }
func I64(v int64) Value { return Value{Type: TypeI64, Data: uint64(v)} }

// Zero returns the default value of a local of type t.
func Zero(t wat.ValType) Value {
	if t == wat.I64 {
		return Value{Type: TypeI64}
	}
	return Value{Type: TypeI32}
}

// Int32 returns the value as a signed i32.
func (v Value) Int32() int32 {
	return int32(uint32(v.Data))
}

// Uint32 returns the value as an unsigned i32.
func (v Value) Uint32() uint32 {
	return uint32(v.Data)
}

// Int64 returns the value as a signed i64.
func (v Value) Int64() int64 {
	return int64(v.Data)
}

// Format returns a string representation of the value.
func (v Value) Format() string {
	switch v.Type {
	case TypeI32:
		return fmt.Sprintf("%d:i32", v.Int32())
	case TypeI64:
		return fmt.Sprintf("%d:i64", v.Int64())
	}
	return "void"
}
