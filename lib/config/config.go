// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// ConfigEnv names the environment variable holding the config
	// file path.
	ConfigEnv = "LINEFS_CONFIG"

	// SourceEnv names the environment variable that overrides
	// source.path.
	SourceEnv = "LINEFS_FILE"
)

// Config is the master configuration for linefs.
type Config struct {
	// Source configures the backing file.
	Source SourceConfig `yaml:"source"`

	// Index configures line index capacity.
	Index IndexConfig `yaml:"index"`

	// Mount configures the FUSE mount.
	Mount MountConfig `yaml:"mount"`

	// Log configures diagnostic output.
	Log LogConfig `yaml:"log"`
}

// SourceConfig configures the backing file.
type SourceConfig struct {
	// Path is the file whose lines are served. Overridden by
	// LINEFS_FILE.
	Path string `yaml:"path"`

	// Backend selects how line bytes are read: "pread" or "mmap".
	// Default: pread
	Backend string `yaml:"backend"`

	// MaxInterruptRetries bounds consecutive EINTR retries of a single
	// positional read.
	// Default: 64
	MaxInterruptRetries int `yaml:"max_interrupt_retries"`

	// CheckInterval is how often the source is checked for changes
	// after mounting. Zero disables the check.
	// Default: 5s
	CheckInterval Duration `yaml:"check_interval"`
}

// IndexConfig configures line index capacity. Zero means unbounded.
type IndexConfig struct {
	// MaxLines caps the number of line files. Lines past the cap are
	// not served.
	MaxLines int `yaml:"max_lines"`

	// MaxLineLength splits longer lines into pieces of this many
	// bytes, each its own line file.
	MaxLineLength int64 `yaml:"max_line_length"`
}

// MountConfig configures the FUSE mount.
type MountConfig struct {
	// Mountpoint is where the line directory appears. The mount
	// command's positional argument takes precedence.
	Mountpoint string `yaml:"mountpoint"`

	// AllowOther permits other users to access the mount. Requires
	// user_allow_other in /etc/fuse.conf.
	AllowOther bool `yaml:"allow_other"`

	// KernelCache keeps line content in the kernel page cache across
	// opens.
	// Default: true
	KernelCache bool `yaml:"kernel_cache"`

	// EntryTimeout and AttrTimeout bound kernel caching of lookups
	// and attributes.
	// Default: 1s
	EntryTimeout Duration `yaml:"entry_timeout"`
	AttrTimeout  Duration `yaml:"attr_timeout"`

	// FsName is the source name shown in /proc/mounts.
	// Default: linefs
	FsName string `yaml:"fs_name"`

	// DirMode and FileMode are the permission bits of the root and of
	// each line, written in octal. Write bits are ignored.
	// Default: 0500 and 0400
	DirMode  FileMode `yaml:"dir_mode"`
	FileMode FileMode `yaml:"file_mode"`

	// Debug logs every FUSE request.
	Debug bool `yaml:"debug"`
}

// LogConfig configures diagnostic output.
type LogConfig struct {
	// Level is one of debug, info, warn, error.
	// Default: info
	Level string `yaml:"level"`

	// Format is "text" or "json".
	// Default: text
	Format string `yaml:"format"`

	// File receives log output. Empty means stderr.
	File string `yaml:"file"`
}

// Default returns the default configuration. These defaults are the
// base the config file is merged into.
func Default() *Config {
	return &Config{
		Source: SourceConfig{
			Backend:             "pread",
			MaxInterruptRetries: 64,
			CheckInterval:       Duration(5 * time.Second),
		},
		Mount: MountConfig{
			KernelCache:  true,
			EntryTimeout: Duration(time.Second),
			AttrTimeout:  Duration(time.Second),
			FsName:       "linefs",
			DirMode:      0o500,
			FileMode:     0o400,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load loads configuration from the file named by LINEFS_CONFIG. When
// the variable is unset, the defaults are used.
func Load() (*Config, error) {
	configPath := os.Getenv(ConfigEnv)
	if configPath == "" {
		cfg := Default()
		cfg.applyEnvironment()
		cfg.expandVariables()
		return cfg, nil
	}
	return LoadFile(configPath)
}

// LoadFile loads configuration from a specific file path.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	if err := cfg.loadFile(path); err != nil {
		return nil, err
	}

	cfg.applyEnvironment()
	cfg.expandVariables()

	return cfg, nil
}

// loadFile loads a single configuration file, merging into the current config.
func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}
	return nil
}

// applyEnvironment applies LINEFS_FILE over source.path.
func (c *Config) applyEnvironment() {
	if path := os.Getenv(SourceEnv); path != "" {
		c.Source.Path = path
	}
}

// expandVariables expands ${VAR} and ${VAR:-default} patterns in paths
// from the process environment.
func (c *Config) expandVariables() {
	c.Source.Path = expandVars(c.Source.Path, os.LookupEnv)
	c.Mount.Mountpoint = expandVars(c.Mount.Mountpoint, os.LookupEnv)
	c.Log.File = expandVars(c.Log.File, os.LookupEnv)
}

// variablePattern matches ${NAME} and ${NAME:-fallback}.
var variablePattern = regexp.MustCompile(`\$\{(\w+)(?::-([^}]*))?\}`)

// expandVars replaces each reference with its value from lookup. An
// unset or empty variable takes the fallback, which defaults to "".
func expandVars(s string, lookup func(string) (string, bool)) string {
	return variablePattern.ReplaceAllStringFunc(s, func(reference string) string {
		groups := variablePattern.FindStringSubmatch(reference)
		if value, ok := lookup(groups[1]); ok && value != "" {
			return value
		}
		return groups[2]
	})
}

var (
	backends   = []string{"pread", "mmap"}
	logLevels  = []string{"debug", "info", "warn", "error"}
	logFormats = []string{"text", "json"}
)

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error

	if c.Source.Path == "" {
		errs = append(errs, fmt.Errorf("source.path is required (set it, %s, or --source)", SourceEnv))
	}
	if !slices.Contains(backends, c.Source.Backend) {
		errs = append(errs, fmt.Errorf("source.backend must be one of: %v", backends))
	}
	if c.Source.MaxInterruptRetries < 0 {
		errs = append(errs, fmt.Errorf("source.max_interrupt_retries must not be negative"))
	}
	if c.Source.CheckInterval < 0 {
		errs = append(errs, fmt.Errorf("source.check_interval must not be negative"))
	}

	if c.Index.MaxLines < 0 {
		errs = append(errs, fmt.Errorf("index.max_lines must not be negative"))
	}
	if c.Index.MaxLineLength < 0 {
		errs = append(errs, fmt.Errorf("index.max_line_length must not be negative"))
	}

	if c.Mount.EntryTimeout < 0 {
		errs = append(errs, fmt.Errorf("mount.entry_timeout must not be negative"))
	}
	if c.Mount.AttrTimeout < 0 {
		errs = append(errs, fmt.Errorf("mount.attr_timeout must not be negative"))
	}
	if c.Mount.DirMode > 0o777 {
		errs = append(errs, fmt.Errorf("mount.dir_mode %s has bits outside 0777", c.Mount.DirMode))
	}
	if c.Mount.FileMode > 0o777 {
		errs = append(errs, fmt.Errorf("mount.file_mode %s has bits outside 0777", c.Mount.FileMode))
	}

	if !slices.Contains(logLevels, c.Log.Level) {
		errs = append(errs, fmt.Errorf("log.level must be one of: %v", logLevels))
	}
	if !slices.Contains(logFormats, c.Log.Format) {
		errs = append(errs, fmt.Errorf("log.format must be one of: %v", logFormats))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// Duration is a time.Duration written as a Go duration string ("5s",
// "250ms") in YAML.
type Duration time.Duration

// Std returns d as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d Duration) String() string { return time.Duration(d).String() }

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: duration must be a scalar", node.Line)
	}
	parsed, err := time.ParseDuration(node.Value)
	if err != nil {
		return fmt.Errorf("line %d: %w", node.Line, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (any, error) {
	return d.String(), nil
}

// FileMode is a permission mode written in octal in YAML. Both 0500
// and 0o500 are accepted, quoted or not.
type FileMode uint32

// Perm returns m as an fs.FileMode.
func (m FileMode) Perm() fs.FileMode { return fs.FileMode(m).Perm() }

func (m FileMode) String() string { return fmt.Sprintf("%04o", uint32(m)) }

// UnmarshalYAML implements yaml.Unmarshaler.
func (m *FileMode) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: mode must be a scalar", node.Line)
	}
	digits := strings.TrimPrefix(strings.TrimPrefix(node.Value, "0o"), "0O")
	parsed, err := strconv.ParseUint(digits, 8, 32)
	if err != nil {
		return fmt.Errorf("line %d: mode %q is not octal", node.Line, node.Value)
	}
	*m = FileMode(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (m FileMode) MarshalYAML() (any, error) {
	return m.String(), nil
}
