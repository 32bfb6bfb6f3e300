// Package manifest handles push.toml project configuration.
package manifest

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/chazu/push/vm"
)

// FileName is the name of the project file.
const FileName = "push.toml"

// Manifest represents a push.toml project configuration.
type Manifest struct {
	Project Project   `toml:"project"`
	Build   Build     `toml:"build"`
	VM      VMConfig  `toml:"vm"`
	Cache   Cache     `toml:"cache"`
	Log     LogConfig `toml:"log"`

	// Dir is the directory containing the push.toml file (set at load time).
	// Empty for the default manifest.
	Dir string `toml:"-"`
}

// Project contains project metadata.
type Project struct {
	Name  string `toml:"name"`
	Entry string `toml:"entry"`
}

// Build configures compiler output.
type Build struct {
	Output string `toml:"output"`
	Bundle bool   `toml:"bundle"`
}

// VMConfig configures the interpreter. Zero limits are unlimited.
type VMConfig struct {
	StackLimit int  `toml:"stack-limit"`
	HeapLimit  int  `toml:"heap-limit"`
	Trace      bool `toml:"trace"`
}

// Cache configures the compile cache.
type Cache struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"`
}

// LogConfig configures commonlog.
type LogConfig struct {
	Verbosity int    `toml:"verbosity"`
	File      string `toml:"file"`
}

// Default returns the configuration used when no push.toml exists.
func Default() *Manifest {
	return &Manifest{
		VM: VMConfig{
			StackLimit: vm.DefaultStackLimit,
			HeapLimit:  vm.DefaultHeapLimit,
		},
		Cache: Cache{Enabled: true},
	}
}

// Load parses a push.toml file from the given directory. Keys missing from
// the file keep their default values; unknown keys are an error.
func Load(dir string) (*Manifest, error) {
	path := filepath.Join(dir, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	m := Default()
	md, err := toml.Decode(string(data), m)
	if err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return nil, fmt.Errorf("%s: unknown keys: %s", path, strings.Join(keys, ", "))
	}

	if m.VM.StackLimit < 0 || m.VM.HeapLimit < 0 {
		return nil, fmt.Errorf("%s: vm limits must not be negative", path)
	}

	m.Dir, err = filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", dir, err)
	}

	return m, nil
}

// FindAndLoad walks up from startDir to find a push.toml file,
// then loads and returns the manifest. Returns nil if no manifest is found.
func FindAndLoad(startDir string) (*Manifest, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}

	for {
		path := filepath.Join(dir, FileName)
		if _, err := os.Stat(path); err == nil {
			return Load(dir)
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached root
			return nil, nil
		}
		dir = parent
	}
}

// resolve makes p relative to the manifest directory.
func (m *Manifest) resolve(p string) string {
	if p == "" || filepath.IsAbs(p) || m.Dir == "" {
		return p
	}
	return filepath.Join(m.Dir, p)
}

// EntryPath returns the path of the entry source file, or "" if none is set.
func (m *Manifest) EntryPath() string {
	return m.resolve(m.Project.Entry)
}

// OutputPath returns the compiler output path. The default depends on
// whether a bundle or a raw binary is written.
func (m *Manifest) OutputPath(bundle bool) string {
	if m.Build.Output != "" {
		return m.resolve(m.Build.Output)
	}
	if bundle {
		return "out.pushb"
	}
	return "out.pushc"
}

// CachePath returns the compile cache database path.
func (m *Manifest) CachePath() (string, error) {
	if m.Cache.Path != "" {
		return m.resolve(m.Cache.Path), nil
	}
	dir, err := os.UserCacheDir()
	if err != nil {
		return "", fmt.Errorf("no cache directory: %w", err)
	}
	return filepath.Join(dir, "push", "programs.db"), nil
}

// LogFile returns the log file path, or nil to log to stderr.
func (m *Manifest) LogFile() *string {
	if m.Log.File == "" {
		return nil
	}
	p := m.resolve(m.Log.File)
	return &p
}
