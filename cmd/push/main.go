// push CLI - compiles and runs push programs
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tebeka/atexit"
	"github.com/tliron/commonlog"

	"github.com/chazu/push/manifest"
	"github.com/chazu/push/server"

	_ "github.com/tliron/commonlog/simple"
)

const version = "0.1.0"

var log = commonlog.GetLogger("push")

func main() {
	compileOnly := flag.Bool("c", false, "Compile only; write the program to -o")
	output := flag.String("o", "", "Output path for -c (default out.pushc, or out.pushb with -bundle)")
	bundle := flag.Bool("bundle", false, "Write a CBOR bundle instead of a raw binary")
	disasm := flag.Bool("S", false, "Print the disassembly instead of running")
	trace := flag.Bool("trace", false, "Log every executed instruction")
	profile := flag.Int("profile", 0, "Print the n most executed instructions to stderr after the run")
	verbosity := flag.Int("v", 0, "Log verbosity (-4 .. 2)")
	noCache := flag.Bool("no-cache", false, "Do not use the compile cache")
	allow := flag.String("allow", "", "Comma-separated built-ins a bundle may call (default all)")
	cacheStats := flag.Bool("cache-stats", false, "Print compile cache statistics and exit")
	cacheClear := flag.Bool("cache-clear", false, "Empty the compile cache and exit")
	lspMode := flag.Bool("lsp", false, "Start the language server on stdio")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: push [options] [path]\n\n")
		fmt.Fprintf(os.Stderr, "Compiles and runs push programs. The file extension selects the mode:\n")
		fmt.Fprintf(os.Stderr, "  .push   source, compiled then run (or written with -c)\n")
		fmt.Fprintf(os.Stderr, "  .pushc  compiled program, run\n")
		fmt.Fprintf(os.Stderr, "  .pushb  bundle, verified then run\n\n")
		fmt.Fprintf(os.Stderr, "Without a path the [project] entry of push.toml is used.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  push hello.push               # Compile and run\n")
		fmt.Fprintf(os.Stderr, "  push -c -o hello.pushc hello.push\n")
		fmt.Fprintf(os.Stderr, "  push -S hello.pushc           # Disassemble\n")
		fmt.Fprintf(os.Stderr, "  push -c -bundle hello.push    # Write out.pushb\n")
	}
	flag.Parse()

	set := make(map[string]bool)
	flag.Visit(func(f *flag.Flag) { set[f.Name] = true })

	if flag.NArg() > 1 {
		flag.Usage()
		atexit.Exit(1)
	}
	path := flag.Arg(0)

	// Load push.toml from the source directory, or the current one
	dir := "."
	if path != "" {
		dir = filepath.Dir(path)
	}
	m, err := manifest.FindAndLoad(dir)
	if err != nil {
		fatal(err)
	}
	if m == nil {
		m = manifest.Default()
	}

	// Flags override the manifest
	if set["v"] {
		m.Log.Verbosity = *verbosity
	}
	if set["trace"] {
		m.VM.Trace = *trace
	}
	if set["bundle"] {
		m.Build.Bundle = *bundle
	}
	if *noCache {
		m.Cache.Enabled = false
	}
	if m.VM.Trace && m.Log.Verbosity < 2 {
		m.Log.Verbosity = 2
	}
	commonlog.Configure(m.Log.Verbosity, m.LogFile())

	if *lspMode {
		if err := server.NewLSP(version).Run(); err != nil {
			fatal(err)
		}
		atexit.Exit(0)
	}

	a := newApp(m, os.Stdout)
	atexit.Register(a.close)

	a.compileOnly = *compileOnly
	a.disasm = *disasm
	a.profile = *profile
	a.output = m.OutputPath(m.Build.Bundle)
	if *output != "" {
		a.output = *output
	}
	if *allow != "" {
		a.allowed = strings.Split(*allow, ",")
	}

	if *cacheStats || *cacheClear {
		if err := a.cacheCommand(*cacheClear); err != nil {
			fatal(err)
		}
		atexit.Exit(0)
	}

	if path == "" {
		path = m.EntryPath()
	}
	if path == "" {
		flag.Usage()
		atexit.Exit(1)
	}

	if err := a.runPath(path); err != nil {
		fatal(err)
	}
	atexit.Exit(0)
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "push: %v\n", err)
	atexit.Exit(1)
}
