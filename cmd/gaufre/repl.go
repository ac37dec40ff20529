package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/peterh/liner"

	"github.com/agenthands/gaufre/pkg/compiler"
	"github.com/agenthands/gaufre/pkg/compiler/lexer"
)

const (
	historyFile = ".gaufre_history"
	promptMain  = "gaufre> "
	promptCont  = "   ...> "

	banner = "gaufre REPL\nStatements run inside fn main(). Ctrl+C cancels input, Ctrl+D exits.\nType :wat to print the last module, :quit to exit."
)

// replSource wraps statements typed at the prompt into a program.
func replSource(stmts string) []byte {
	return []byte("fn main(){\n" + stmts + "\n}")
}

func (c *cli) cmdRepl(args []string) int {
	if len(args) > 0 {
		fmt.Fprintln(c.stderr, usage)
		return exitUsage
	}
	fmt.Fprintln(c.stdout, banner)

	home, _ := os.UserHomeDir()
	histPath := filepath.Join(home, historyFile)

	ln := liner.NewLiner()
	defer ln.Close()
	ln.SetCtrlCAborts(true)

	if f, err := os.Open(histPath); err == nil {
		_, _ = ln.ReadHistory(f)
		_ = f.Close()
	}
	defer func() {
		if f, err := os.Create(histPath); err == nil {
			_, _ = ln.WriteHistory(f)
			_ = f.Close()
		}
	}()

	last := ""
	for {
		code, ok := readStatements(ln)
		if !ok {
			fmt.Fprintln(c.stdout)
			return exitOK
		}

		trimmed := strings.TrimSpace(code)
		if trimmed == "" {
			continue
		}
		if strings.HasPrefix(trimmed, ":") {
			switch strings.ToLower(trimmed) {
			case ":quit", ":q":
				return exitOK
			case ":wat":
				if last == "" {
					fmt.Fprintln(c.stdout, "nothing compiled yet")
				} else {
					fmt.Fprint(c.stdout, last)
				}
			default:
				fmt.Fprintln(c.stdout, "unknown command. Type :wat or :quit.")
			}
			continue
		}

		ln.AppendHistory(strings.ReplaceAll(code, "\n", " "))

		mod, err := compiler.Compile(replSource(code))
		if err != nil {
			c.log.Print(err)
			continue
		}
		last = mod.String()
		if err := execute(mod, c.stdout, defaultGas); err != nil {
			c.log.Printf("runtime error: %v", err)
		}
	}
}

// readStatements keeps prompting while braces or a string are left open.
// It reports false when input ends or is aborted.
func readStatements(ln *liner.State) (string, bool) {
	var b strings.Builder
	for {
		prompt := promptMain
		if b.Len() > 0 {
			prompt = promptCont
		}
		line, err := ln.Prompt(prompt)
		if err != nil {
			// io.EOF on Ctrl+D, liner.ErrPromptAborted on Ctrl+C.
			return "", false
		}

		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(line)

		if src := b.String(); !incomplete(src) {
			return src, true
		}
	}
}

// incomplete reports whether src ends inside a string or an open block.
func incomplete(src string) bool {
	s := lexer.NewScanner([]byte(src))
	depth := 0
	for {
		tok, err := s.Next()
		if err != nil {
			return errors.Is(err, lexer.ErrUnterminatedString)
		}
		switch tok.Kind {
		case lexer.KindLBrace:
			depth++
		case lexer.KindRBrace:
			depth--
		case lexer.KindEOF:
			return depth > 0
		}
	}
}
