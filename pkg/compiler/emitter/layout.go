package emitter

import "fmt"

// PageSize is the size of one WebAssembly linear-memory page.
const PageSize = 65536

// Layout fixes the memory map of a generated module and the host binding
// it calls. The host target name lives at offset 0, the literal pool starts
// at PoolBase, one log payload is assembled at ScratchBase and the host may
// write up to ReturnCap bytes at ReturnBase.
type Layout struct {
	HostModule string
	HostField  string
	Target     string

	PoolBase    int
	Align       int
	ScratchBase int
	ReturnBase  int
	ReturnCap   int
	Pages       int
}

// DefaultLayout returns the layout every gaufre host expects.
func DefaultLayout() Layout {
	return Layout{
		HostModule:  "gaufre",
		HostField:   "invoke",
		Target:      "console.log",
		PoolBase:    16,
		Align:       16,
		ScratchBase: 0xC000,
		ReturnBase:  0xF000,
		ReturnCap:   1024,
		Pages:       1,
	}
}

// ScratchCap is the number of bytes available for one payload.
func (l Layout) ScratchCap() int {
	return l.ReturnBase - l.ScratchBase
}

func (l Layout) validate() error {
	switch {
	case l.Align <= 0:
		return &LayoutError{Msg: fmt.Sprintf("alignment %d must be positive", l.Align)}
	case l.PoolBase < len(l.Target):
		return &LayoutError{Msg: fmt.Sprintf("literal pool at %d overlaps the %d-byte target name", l.PoolBase, len(l.Target))}
	case l.ScratchBase < l.PoolBase || l.ReturnBase <= l.ScratchBase:
		return &LayoutError{Msg: "scratch buffer must sit between the literal pool and the return buffer"}
	case l.ReturnCap <= 0 || l.ReturnBase+l.ReturnCap > l.Pages*PageSize:
		return &LayoutError{Msg: fmt.Sprintf("return buffer [%d, %d) does not fit in %d page(s)", l.ReturnBase, l.ReturnBase+l.ReturnCap, l.Pages)}
	}
	return nil
}

// LayoutError reports a program or layout that does not fit the fixed
// memory regions.
type LayoutError struct {
	Msg string
}

func (e *LayoutError) Error() string {
	return "layout: " + e.Msg
}

func alignUp(n, align int) int {
	if r := n % align; r != 0 {
		n += align - r
	}
	return n
}
