package emitter

import (
	"bytes"
	"encoding/json"
	"fmt"
	"unicode/utf16"
	"unicode/utf8"
)

// Segment locates an interned literal in linear memory.
type Segment struct {
	Offset int
	Length int
}

// interner deduplicates JSON-quoted string literals into 16-byte aligned
// data segments, in first-seen order.
type interner struct {
	align int
	next  int
	table map[string]Segment // keyed by the quoted form
	raw   map[string]string  // literal -> quoted form
}

func newInterner(base, align int) *interner {
	return &interner{
		align: align,
		next:  base,
		table: make(map[string]Segment),
		raw:   make(map[string]string),
	}
}

// intern returns the segment for lit, allocating one if its quoted form is
// new. The second result reports whether a segment was allocated.
func (in *interner) intern(lit string) (Segment, bool) {
	key := in.quoted(lit)
	if seg, ok := in.table[key]; ok {
		return seg, false
	}
	seg := Segment{Offset: in.next, Length: len(key)}
	in.table[key] = seg
	in.next = alignUp(in.next+seg.Length, in.align)
	return seg, true
}

func (in *interner) lookup(lit string) (Segment, bool) {
	seg, ok := in.table[in.quoted(lit)]
	return seg, ok
}

func (in *interner) quoted(lit string) string {
	if q, ok := in.raw[lit]; ok {
		return q
	}
	q := string(QuoteJSON(lit))
	in.raw[lit] = q
	return q
}

// QuoteJSON returns s as a JSON string literal made only of ASCII bytes.
// Control characters, '"' and '\' use JSON escapes, printable ASCII passes
// through and every other code point becomes \uXXXX (a surrogate pair above
// U+FFFF). Invalid UTF-8 is replaced by U+FFFD; the scanner rejects such
// literals before they reach the emitter.
func QuoteJSON(s string) []byte {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s); err != nil {
		// Encoding a Go string cannot fail.
		panic(fmt.Sprintf("emitter: quote %q: %v", s, err))
	}
	encoded := bytes.TrimSuffix(buf.Bytes(), []byte("\n"))

	out := make([]byte, 0, len(encoded))
	for len(encoded) > 0 {
		c := encoded[0]
		if c < utf8.RuneSelf {
			out = append(out, c)
			encoded = encoded[1:]
			continue
		}
		r, size := utf8.DecodeRune(encoded)
		encoded = encoded[size:]
		if r > 0xFFFF {
			hi, lo := utf16.EncodeRune(r)
			out = fmt.Appendf(out, `\u%04x\u%04x`, hi, lo)
			continue
		}
		out = fmt.Appendf(out, `\u%04x`, r)
	}
	return out
}
