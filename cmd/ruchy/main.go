package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/peterh/liner"

	"github.com/ruchy-lang/ruchy"
)

const (
	appName     = "ruchy"
	version     = "0.1.0"
	historyFile = ".ruchy_history"
	promptCont  = "  ... "
)

var banner = fmt.Sprintf("Ruchy %s REPL\nCtrl+C cancels input, Ctrl+D exits. Type :quit to exit.", version)

func red(s string) string  { return "\x1b[31m" + s + "\x1b[0m" }
func blue(s string) string { return "\x1b[94m" + s + "\x1b[0m" }

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	switch cmd := os.Args[1]; cmd {
	case "run":
		os.Exit(cmdRun(os.Args[2:], false))
	case "compile":
		os.Exit(cmdRun(os.Args[2:], true))
	case "repl":
		os.Exit(cmdRepl())
	case "transpile":
		os.Exit(cmdTranspile(os.Args[2:]))
	case "disasm":
		os.Exit(cmdDisasm(os.Args[2:]))
	case "version":
		fmt.Println(version)
	case "-h", "--help", "help":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "%s: unknown command %q\n", appName, cmd)
		usage()
		os.Exit(2)
	}
}

func usage() {
	fmt.Printf(`Ruchy %s

Usage:
  %s run <file>         Run a script on the tree-walking interpreter.
  %s compile <file>     Run a script on the bytecode VM.
  %s repl               Start the interactive REPL.
  %s transpile <file>   Emit Rust source for a script.
  %s disasm <file>      Print the compiled bytecode for a script.
  %s version            Print the version.

`, version, appName, appName, appName, appName, appName, appName)
}

func readSource(args []string, cmd string) (string, bool) {
	if len(args) < 1 {
		fmt.Fprintf(os.Stderr, "usage: %s %s <file>\n", appName, cmd)
		return "", false
	}
	src, err := os.ReadFile(args[0])
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: cannot read %s: %v\n", appName, args[0], err)
		return "", false
	}
	return string(src), true
}

func cmdRun(args []string, compiled bool) int {
	src, ok := readSource(args, "run")
	if !ok {
		return 2
	}
	s := ruchy.NewSession()

	// Ctrl+C interrupts the running program, not the process.
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigc)
	go func() {
		<-sigc
		s.Interp().Interrupt()
	}()

	var v ruchy.Value
	var err error
	if compiled {
		v, err = s.Compile(src)
	} else {
		v, err = s.Eval(src)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, red(err.Error()))
		if e := ruchy.AsError(err); len(e.Frames) > 0 && os.Getenv("RUCHY_VERBOSE") != "" {
			fmt.Fprint(os.Stderr, e.Trace())
		}
		return 1
	}
	if v.Tag != ruchy.TagUnit {
		fmt.Println(ruchy.DisplayValue(v))
	}
	return 0
}

func cmdTranspile(args []string) int {
	src, ok := readSource(args, "transpile")
	if !ok {
		return 2
	}
	out, err := ruchy.Transpile(src)
	if err != nil {
		fmt.Fprintln(os.Stderr, red(err.Error()))
		return 1
	}
	fmt.Print(out)
	return 0
}

func cmdDisasm(args []string) int {
	src, ok := readSource(args, "disasm")
	if !ok {
		return 2
	}
	out, err := ruchy.NewSession().Disassemble(src)
	if err != nil {
		fmt.Fprintln(os.Stderr, red(err.Error()))
		return 1
	}
	fmt.Print(out)
	return 0
}

func cmdRepl() int {
	fmt.Println(banner)

	home, _ := os.UserHomeDir()
	histPath := filepath.Join(home, historyFile)

	ln := liner.NewLiner()
	defer ln.Close()
	ln.SetCtrlCAborts(true)

	defer func() {
		if f, err := os.Create(histPath); err == nil {
			_, _ = ln.WriteHistory(f)
			_ = f.Close()
		}
	}()

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGTERM, syscall.SIGHUP)
	defer signal.Stop(sigc)
	go func() {
		<-sigc
		ln.Close()
		os.Exit(130)
	}()

	if f, err := os.Open(histPath); err == nil {
		_, _ = ln.ReadHistory(f)
		_ = f.Close()
	}

	repl := ruchy.NewREPL(ruchy.NewSession())

	for {
		code, ok := readByParseProbe(ln, repl.Prompt(), promptCont)
		if !ok {
			fmt.Println()
			return 0
		}
		if strings.TrimSpace(code) == "" {
			continue
		}

		out, quit := repl.Dispatch(code)
		if quit {
			return 0
		}
		if out != "" {
			if strings.HasPrefix(out, "error") {
				fmt.Println(red(out))
			} else {
				fmt.Println(blue(out))
			}
		}
		ln.AppendHistory(strings.ReplaceAll(code, "\n", " "))
	}
}

// readByParseProbe accumulates lines until the input parses, or fails with an
// error that more input cannot fix. Commands never span lines.
func readByParseProbe(ln *liner.State, prompt, cont string) (string, bool) {
	var b strings.Builder

	for {
		var line string
		var err error
		if b.Len() == 0 {
			line, err = ln.Prompt(prompt)
		} else {
			line, err = ln.Prompt(cont)
		}
		if errors.Is(err, io.EOF) {
			return "", false
		}
		if err != nil {
			return "", true
		}

		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(line)

		src := b.String()
		if strings.HasPrefix(strings.TrimSpace(src), ":") {
			return src, true
		}
		_, perr := ruchy.ParseInteractive(src)
		if perr == nil || !ruchy.IsIncomplete(perr) {
			return src, true
		}
	}
}
