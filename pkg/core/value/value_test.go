package value_test

import (
	"math"
	"testing"

	"github.com/agenthands/gaufre/pkg/core/value"
	"github.com/agenthands/gaufre/pkg/wat"
)

func TestValueCreation(t *testing.T) {
	v := value.I32(-1)
	if v.Type != value.TypeI32 {
		t.Errorf("expected TypeI32, got %v", v.Type)
	}
	if v.Data != 0xFFFFFFFF {
		t.Errorf("expected low 32 bits set, got %#x", v.Data)
	}
	if v.Int32() != -1 || v.Uint32() != math.MaxUint32 {
		t.Errorf("expected -1 / MaxUint32, got %d / %d", v.Int32(), v.Uint32())
	}

	w := value.I64(math.MinInt32)
	if w.Type != value.TypeI64 || w.Int64() != math.MinInt32 {
		t.Errorf("expected i64 MinInt32, got %v", w.Format())
	}
}

func TestValueZero(t *testing.T) {
	if z := value.Zero(wat.I64); z.Type != value.TypeI64 || z.Data != 0 {
		t.Errorf("expected zero i64, got %v", z.Format())
	}
	if z := value.Zero(wat.I32); z.Type != value.TypeI32 || z.Data != 0 {
		t.Errorf("expected zero i32, got %v", z.Format())
	}
}

func TestValueFormat(t *testing.T) {
	if s := value.I32(42).Format(); s != "42:i32" {
		t.Errorf("got %q", s)
	}
	if s := value.I64(-7).Format(); s != "-7:i64" {
		t.Errorf("got %q", s)
	}
	if s := (value.Value{}).Format(); s != "void" {
		t.Errorf("got %q", s)
	}
}
