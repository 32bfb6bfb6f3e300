package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/chazu/push/cache"
	"github.com/chazu/push/compiler"
	"github.com/chazu/push/manifest"
	"github.com/chazu/push/vm"
	"github.com/chazu/push/vm/dist"
)

// app carries the resolved configuration of one invocation.
type app struct {
	m      *manifest.Manifest
	stdout io.Writer
	stderr io.Writer // profile reports

	compileOnly bool
	disasm      bool
	profile     int // report the top n instructions; 0 = off
	output      string
	allowed     []string // nil = all built-ins

	cache       *cache.Cache
	cacheOpened bool
}

func newApp(m *manifest.Manifest, stdout io.Writer) *app {
	return &app{m: m, stdout: stdout, stderr: os.Stderr}
}

// close releases the compile cache. Registered as an exit handler.
func (a *app) close() {
	if a.cache != nil {
		if err := a.cache.Close(); err != nil {
			log.Warningf("closing cache: %s", err)
		}
		a.cache = nil
	}
}

// runPath dispatches on the file extension.
func (a *app) runPath(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	switch ext := filepath.Ext(path); ext {
	case ".push":
		program, err := a.compile(string(data))
		if err != nil {
			return fmt.Errorf("%s:%w", path, err)
		}
		if a.compileOnly {
			return a.writeOutput(path, string(data), program)
		}
		return a.runProgram(program)

	case ".pushc":
		if a.compileOnly {
			return fmt.Errorf("%s is already compiled", path)
		}
		return a.runProgram(data)

	case dist.Extension:
		if a.compileOnly {
			return fmt.Errorf("%s is already compiled", path)
		}
		b, err := dist.UnmarshalBundle(data)
		if err != nil {
			return err
		}
		if err := b.Verify(); err != nil {
			return err
		}
		if err := a.policy().Check(b); err != nil {
			return err
		}
		log.Infof("bundle %q, built-ins %v", b.Name, b.Builtins)
		return a.runProgram(b.Program)

	default:
		return fmt.Errorf("%s: unknown file type %q (want .push, .pushc or %s)", path, ext, dist.Extension)
	}
}

func (a *app) policy() *dist.BuiltinPolicy {
	if a.allowed == nil {
		return dist.NewPermissivePolicy()
	}
	return dist.NewRestrictedPolicy(a.allowed)
}

// openCache opens the compile cache once. Failures disable the cache.
func (a *app) openCache() *cache.Cache {
	if a.cacheOpened || !a.m.Cache.Enabled {
		return a.cache
	}
	a.cacheOpened = true

	path, err := a.m.CachePath()
	if err != nil {
		log.Warningf("compile cache disabled: %s", err)
		return nil
	}
	c, err := cache.Open(path)
	if err != nil {
		log.Warningf("compile cache disabled: %s", err)
		return nil
	}
	a.cache = c
	return c
}

// compile compiles source, consulting the cache when it is enabled.
func (a *app) compile(source string) ([]byte, error) {
	c := a.openCache()
	if c != nil {
		program, buildID, ok, err := c.Get(source)
		if err != nil {
			log.Warningf("cache lookup: %s", err)
		} else if ok {
			log.Infof("using cached build %s", buildID)
			return program, nil
		}
	}

	program, err := compiler.Compile(source)
	if err != nil {
		return nil, err
	}

	if c != nil {
		if buildID, err := c.Put(source, program); err != nil {
			log.Warningf("cache store: %s", err)
		} else {
			log.Debugf("cached build %s", buildID)
		}
	}
	return program, nil
}

// writeOutput writes a compiled program, or a bundle around it.
func (a *app) writeOutput(path, source string, program []byte) error {
	data := program
	if a.m.Build.Bundle {
		name := a.m.Project.Name
		if name == "" {
			name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		}
		b, err := dist.NewBundle(name, source, program)
		if err != nil {
			return err
		}
		if data, err = dist.MarshalBundle(b); err != nil {
			return err
		}
	}

	if err := os.WriteFile(a.output, data, 0644); err != nil {
		return err
	}
	log.Infof("wrote %s (%d bytes)", a.output, len(data))

	if a.disasm {
		return a.disassemble(program)
	}
	return nil
}

// runProgram executes a program, or prints its disassembly with -S.
func (a *app) runProgram(program []byte) error {
	if a.disasm {
		return a.disassemble(program)
	}

	out := bufio.NewWriter(a.stdout)
	interp := vm.NewInterpreter(out)
	interp.StackLimit = a.m.VM.StackLimit
	interp.HeapLimit = a.m.VM.HeapLimit
	interp.Trace = a.m.VM.Trace
	if a.profile > 0 {
		interp.Profiler = vm.NewProfiler()
	}

	err := interp.Run(program)
	if ferr := out.Flush(); err == nil {
		err = ferr
	}
	log.Debugf("%d instructions executed", interp.Steps())

	if interp.Profiler != nil {
		if perr := interp.Profiler.WriteReport(a.stderr, a.profile); err == nil {
			err = perr
		}
	}
	return err
}

func (a *app) disassemble(program []byte) error {
	listing, err := vm.Disassemble(program)
	if err != nil {
		return err
	}
	_, err = io.WriteString(a.stdout, listing)
	return err
}

// cacheCommand prints cache statistics, clearing the cache first if asked.
func (a *app) cacheCommand(clear bool) error {
	path, err := a.m.CachePath()
	if err != nil {
		return err
	}
	c, err := cache.Open(path)
	if err != nil {
		return err
	}
	a.cache = c

	if clear {
		if err := c.Clear(); err != nil {
			return err
		}
	}
	s, err := c.Stats()
	if err != nil {
		return err
	}
	fmt.Fprintf(a.stdout, "%s: %d programs, %d hits, %d bytes\n", c.Path(), s.Entries, s.Hits, s.Bytes)
	return nil
}
