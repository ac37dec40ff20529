package lexer

import (
	"errors"
	"fmt"
	"unicode/utf8"
)

var (
	ErrUnterminatedString = errors.New("unterminated string")
	ErrInvalidUTF8        = errors.New("invalid UTF-8 in string")
)

// Error is a lexical error positioned at a byte offset in the source. Err
// is one of the sentinels above when the failure has a name.
type Error struct {
	Offset int
	Msg    string
	Err    error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s (byte %d)", e.Msg, e.Offset)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(offset int, err error) *Error {
	return &Error{Offset: offset, Msg: err.Error(), Err: err}
}

// Scanner performs lexical analysis on gaufre source.
type Scanner struct {
	source []byte
	cursor int
}

// NewScanner creates a new scanner for the given source.
func NewScanner(source []byte) *Scanner {
	return &Scanner{source: source}
}

// Reset re-initializes the scanner with new source for reuse.
func (s *Scanner) Reset(source []byte) {
	s.source = source
	s.cursor = 0
}

// Next returns the next token from the source. Once the input is exhausted
// every call returns a KindEOF token.
func (s *Scanner) Next() (Token, error) {
	s.skipWhitespace()

	if s.cursor >= len(s.source) {
		return Token{Kind: KindEOF, Offset: len(s.source)}, nil
	}

	start := s.cursor
	ch := s.source[s.cursor]

	switch {
	case ch == '"':
		return s.scanString()
	case isDigit(ch):
		return s.scanNumber(), nil
	case isIdentStart(ch):
		return s.scanIdentifier(), nil
	}

	kind := KindEOF
	switch ch {
	case '(':
		kind = KindLParen
	case ')':
		kind = KindRParen
	case '{':
		kind = KindLBrace
	case '}':
		kind = KindRBrace
	case ',':
		kind = KindComma
	case '=':
		kind = KindAssign
	default:
		return Token{}, &Error{Offset: start, Msg: fmt.Sprintf("unexpected character 0x%02X", ch)}
	}
	s.cursor++
	return Token{Kind: kind, Offset: start}, nil
}

func (s *Scanner) skipWhitespace() {
	for s.cursor < len(s.source) {
		switch s.source[s.cursor] {
		case ' ', '\t', '\r', '\n':
			s.cursor++
		default:
			return
		}
	}
}

func (s *Scanner) scanString() (Token, error) {
	start := s.cursor
	s.cursor++ // Skip opening '"'
	for s.cursor < len(s.source) && s.source[s.cursor] != '"' {
		s.cursor++
	}

	if s.cursor >= len(s.source) {
		return Token{}, newError(start, ErrUnterminatedString)
	}

	raw := s.source[start+1 : s.cursor]
	if !utf8.Valid(raw) {
		return Token{}, newError(start+1+invalidAt(raw), ErrInvalidUTF8)
	}
	text := string(raw)
	s.cursor++ // Skip closing '"'
	return Token{Kind: KindString, Offset: start, Text: text}, nil
}

func (s *Scanner) scanNumber() Token {
	start := s.cursor
	for s.cursor < len(s.source) && isDigit(s.source[s.cursor]) {
		s.cursor++
	}
	return Token{Kind: KindNumber, Offset: start, Text: string(s.source[start:s.cursor])}
}

func (s *Scanner) scanIdentifier() Token {
	start := s.cursor
	for s.cursor < len(s.source) && (isIdentStart(s.source[s.cursor]) || isDigit(s.source[s.cursor])) {
		s.cursor++
	}

	literal := string(s.source[start:s.cursor])
	if kind, ok := keywords[literal]; ok {
		return Token{Kind: kind, Offset: start}
	}
	return Token{Kind: KindIdentifier, Offset: start, Text: literal}
}

func isDigit(ch byte) bool {
	return ch >= '0' && ch <= '9'
}

func isIdentStart(ch byte) bool {
	return (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z') || ch == '_'
}

// invalidAt returns the offset of the first byte of b that does not start a
// valid UTF-8 sequence.
func invalidAt(b []byte) int {
	for i := 0; i < len(b); {
		r, size := utf8.DecodeRune(b[i:])
		if r == utf8.RuneError && size <= 1 {
			return i
		}
		i += size
	}
	return len(b)
}
