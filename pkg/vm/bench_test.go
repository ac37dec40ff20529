package vm_test

import (
	"testing"

	"github.com/agenthands/gaufre/pkg/core/value"
	"github.com/agenthands/gaufre/pkg/vm"
)

func BenchmarkVMLoop(b *testing.B) {
	m, err := vm.New(counterModule())
	if err != nil {
		b.Fatalf("New failed: %v", err)
	}

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := m.Invoke("sum", 1000000, value.I32(1000)); err != nil {
			b.Fatal(err)
		}
	}
}
