// Command gaufre compiles gaufre scripts to WebAssembly text and can run
// them in the reference VM.
package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/agenthands/gaufre/pkg/compiler"
	"github.com/agenthands/gaufre/pkg/compiler/emitter"
	"github.com/agenthands/gaufre/pkg/host"
	"github.com/agenthands/gaufre/pkg/vm"
	"github.com/agenthands/gaufre/pkg/wat"
)

const (
	exitOK    = 0
	exitError = 1
	exitUsage = 2

	defaultGas = 10_000_000
)

const usage = `usage:
  gaufre build [-o out.wat] <file.gfr|->
  gaufre run [-gas N] <file.gfr|->
  gaufre repl
  gaufre <file.gfr|-> [out.wat]`

type cli struct {
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
	log    *log.Logger
}

func main() {
	log.SetFlags(0)
	log.SetPrefix("gaufre: ")
	log.SetOutput(os.Stderr)

	c := &cli{stdin: os.Stdin, stdout: os.Stdout, stderr: os.Stderr, log: log.Default()}
	os.Exit(c.run(os.Args[1:]))
}

func (c *cli) run(args []string) int {
	if len(args) == 0 {
		fmt.Fprintln(c.stderr, usage)
		return exitUsage
	}

	switch args[0] {
	case "build":
		return c.cmdBuild(args[1:])
	case "run":
		return c.cmdRun(args[1:])
	case "repl":
		return c.cmdRepl(args[1:])
	case "help", "-h", "-help", "--help":
		fmt.Fprintln(c.stdout, usage)
		return exitOK
	}

	// gaufre <file> [out.wat]
	if len(args) > 2 || strings.HasPrefix(args[0], "-") && args[0] != "-" {
		fmt.Fprintln(c.stderr, usage)
		return exitUsage
	}
	out := ""
	if len(args) == 2 {
		out = args[1]
	}
	return c.build(args[0], out)
}

// parseArgs parses flags on either side of the single positional argument.
func parseArgs(fs *flag.FlagSet, args []string) (string, error) {
	if err := fs.Parse(args); err != nil {
		return "", err
	}
	if fs.NArg() == 0 {
		return "", fmt.Errorf("missing input file")
	}
	path := fs.Arg(0)
	if err := fs.Parse(fs.Args()[1:]); err != nil {
		return "", err
	}
	if fs.NArg() > 0 {
		return "", fmt.Errorf("unexpected argument %q", fs.Arg(0))
	}
	return path, nil
}

func (c *cli) cmdBuild(args []string) int {
	fs := flag.NewFlagSet("build", flag.ContinueOnError)
	fs.SetOutput(c.stderr)
	out := fs.String("o", "", "output path (default <input>.wat, stdout for -)")

	path, err := parseArgs(fs, args)
	if err != nil {
		c.log.Printf("build: %v", err)
		fmt.Fprintln(c.stderr, usage)
		return exitUsage
	}
	return c.build(path, *out)
}

func (c *cli) cmdRun(args []string) int {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	fs.SetOutput(c.stderr)
	gas := fs.Int("gas", defaultGas, "maximum instruction limit")

	path, err := parseArgs(fs, args)
	if err != nil {
		c.log.Printf("run: %v", err)
		fmt.Fprintln(c.stderr, usage)
		return exitUsage
	}

	mod, ok := c.compile(path)
	if !ok {
		return exitError
	}
	if err := execute(mod, c.stdout, *gas); err != nil {
		c.log.Printf("%s: runtime error: %v", path, err)
		return exitError
	}
	return exitOK
}

func (c *cli) build(path, out string) int {
	mod, ok := c.compile(path)
	if !ok {
		return exitError
	}

	if out == "" && path == "-" {
		if _, err := mod.WriteTo(c.stdout); err != nil {
			c.log.Printf("write: %v", err)
			return exitError
		}
		return exitOK
	}

	if out == "" {
		out = outputPath(path)
	}
	if err := os.WriteFile(out, []byte(mod.String()), 0o644); err != nil {
		c.log.Printf("write: %v", err)
		return exitError
	}
	fmt.Fprintf(c.stderr, "wrote: %s\n", out)
	return exitOK
}

// compile reads and compiles path, reporting failures itself.
func (c *cli) compile(path string) (*wat.Module, bool) {
	src, err := c.readSource(path)
	if err != nil {
		c.log.Printf("read: %v", err)
		return nil, false
	}
	mod, err := compiler.Compile(src)
	if err != nil {
		c.log.Printf("%s: %v", displayName(path), err)
		return nil, false
	}
	return mod, true
}

func (c *cli) readSource(path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(c.stdin)
	}
	return os.ReadFile(path)
}

// outputPath replaces the input's extension with .wat.
func outputPath(path string) string {
	return strings.TrimSuffix(path, filepath.Ext(path)) + ".wat"
}

func displayName(path string) string {
	if path == "-" {
		return "<stdin>"
	}
	return path
}

// execute runs the module's entry point, printing every console.log to out.
func execute(mod *wat.Module, out io.Writer, gas int) error {
	m, err := vm.New(mod)
	if err != nil {
		return err
	}
	host.NewConsole(out).Register(m, emitter.DefaultLayout())
	return m.Run(gas)
}
