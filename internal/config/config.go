// Package config loads the registry configuration from the environment and
// command line flags.
package config

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/boardzilla/boardzilla-modreg/internal/registry"
	"github.com/caarlos0/env/v11"
)

type Config struct {
	ModulePath    string   `env:"MODREG_MODULE"`
	ExtensionsDir string   `env:"MODREG_EXTENSIONS_DIR"`
	Patterns      []string `env:"MODREG_EXTENSION_PATTERNS" envSeparator:"," envDefault:"*.vmdx,*.zip"`
	DataDir       string   `env:"MODREG_DATA_DIR" envDefault:"data"`
	PieceKeysPath string   `env:"MODREG_PIECE_KEYS"`
	Port          int      `env:"MODREG_PORT" envDefault:"8080"`
	Watch         bool     `env:"MODREG_WATCH"`
}

// FromEnv reads the MODREG_* environment variables.
func FromEnv() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

// Flags registers the flags shared by every command, defaulting to the
// values already in cfg.
func (cfg *Config) Flags(fs *flag.FlagSet) {
	fs.StringVar(&cfg.ModulePath, "module", cfg.ModulePath, "module file")
	fs.StringVar(&cfg.ExtensionsDir, "extensions", cfg.ExtensionsDir, "directory holding extension files")
	fs.StringVar(&cfg.DataDir, "data", cfg.DataDir, "directory holding correction tables and the extension catalog")
	fs.StringVar(&cfg.PieceKeysPath, "keys", cfg.PieceKeysPath, "file listing the piece ids to load")
	fs.Func("patterns", "comma separated extension file patterns (default "+strings.Join(cfg.Patterns, ",")+")", func(s string) error {
		cfg.Patterns = splitList(s)
		return nil
	})
}

func (cfg Config) Validate() error {
	if strings.TrimSpace(cfg.ModulePath) == "" {
		return errors.New("module is required")
	}
	if cfg.Port < 0 || cfg.Port > 65535 {
		return fmt.Errorf("invalid port %d", cfg.Port)
	}
	return nil
}

// Options turns the configuration into registry build options.
func (cfg Config) Options() (registry.Options, error) {
	if err := cfg.Validate(); err != nil {
		return registry.Options{}, err
	}
	opts := registry.Options{
		ModulePath:    cfg.ModulePath,
		ExtensionsDir: cfg.ExtensionsDir,
		Patterns:      cfg.Patterns,
		DataDir:       cfg.DataDir,
	}
	if cfg.PieceKeysPath != "" {
		keys, err := LoadPieceKeys(cfg.PieceKeysPath)
		if err != nil {
			return registry.Options{}, err
		}
		opts.Interest = func(gpid string) bool { return keys[gpid] }
	}
	return opts, nil
}

// LoadPieceKeys reads one piece id per line. Blank lines and lines starting
// with # are ignored.
func LoadPieceKeys(p string) (map[string]bool, error) {
	f, err := os.Open(filepath.Clean(p))
	if err != nil {
		return nil, fmt.Errorf("piece keys: %w", err)
	}
	defer f.Close()
	keys := map[string]bool{}
	s := bufio.NewScanner(f)
	for s.Scan() {
		line := strings.TrimSpace(s.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		keys[line] = true
	}
	if err := s.Err(); err != nil {
		return nil, fmt.Errorf("piece keys: %w", err)
	}
	return keys, nil
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Exitf writes a formatted error message to stderr and exits with code 1.
func Exitf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
