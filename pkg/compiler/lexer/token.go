package lexer

import "fmt"

// Kind represents the type of token identified by the scanner.
type Kind uint8

const (
	KindEOF Kind = iota
	KindIdentifier
	KindNumber
	KindString
	KindFn     // fn
	KindMain   // main
	KindLog    // log
	KindFor    // for
	KindTo     // to
	KindLParen // (
	KindRParen // )
	KindLBrace // {
	KindRBrace // }
	KindComma  // ,
	KindAssign // =
)

var kindNames = [...]string{
	KindEOF:        "EOF",
	KindIdentifier: "identifier",
	KindNumber:     "number",
	KindString:     "string",
	KindFn:         "`fn`",
	KindMain:       "`main`",
	KindLog:        "`log`",
	KindFor:        "`for`",
	KindTo:         "`to`",
	KindLParen:     "`(`",
	KindRParen:     "`)`",
	KindLBrace:     "`{`",
	KindRBrace:     "`}`",
	KindComma:      "`,`",
	KindAssign:     "`=`",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}

var keywords = map[string]Kind{
	"fn":   KindFn,
	"main": KindMain,
	"log":  KindLog,
	"for":  KindFor,
	"to":   KindTo,
}

// Token represents a lexical unit pointing back to the source.
// Text is set for identifiers, numbers (digits only) and strings (the raw
// bytes between the quotes).
type Token struct {
	Kind   Kind
	Offset int
	Text   string
}

func (t Token) String() string {
	switch t.Kind {
	case KindIdentifier, KindNumber:
		return fmt.Sprintf("%s %s", t.Kind, t.Text)
	case KindString:
		return fmt.Sprintf("string %q", t.Text)
	}
	return t.Kind.String()
}
