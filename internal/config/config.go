// Package config loads rewind configuration from flags, environment
// variables and an optional rewind.yaml.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/afero"
	"github.com/spf13/viper"

	"github.com/rybkr/rewind/internal/gitcore"
	"github.com/rybkr/rewind/internal/logging"
	"github.com/rybkr/rewind/internal/timeline"
)

const (
	EnvPrefix = "REWIND"
	FileName  = "rewind"
)

// Config holds all rewind settings.
type Config struct {
	Folders  []string `mapstructure:"folders"`
	Backend  string   `mapstructure:"backend"`
	GitBin   string   `mapstructure:"git_bin"`
	MaxCount int      `mapstructure:"max_count"`

	Log    LogConfig    `mapstructure:"log"`
	Server ServerConfig `mapstructure:"server"`
	Watch  WatchConfig  `mapstructure:"watch"`
	Render RenderConfig `mapstructure:"render"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

type ServerConfig struct {
	Addr string `mapstructure:"addr"`
}

// WatchConfig controls the opt-in refresh of the server's tree. With it
// disabled the tree keeps showing the history read on first expansion.
type WatchConfig struct {
	Enabled    bool          `mapstructure:"enabled"`
	Debounce   time.Duration `mapstructure:"debounce"`
	PollPeriod time.Duration `mapstructure:"poll_period"`
}

type RenderConfig struct {
	Depth int `mapstructure:"depth"`
	// Color is "auto", "always" or "never".
	Color string `mapstructure:"color"`
}

// SetDefaults registers every default on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("folders", []string{})
	v.SetDefault("backend", gitcore.BackendExec)
	v.SetDefault("git_bin", "git")
	v.SetDefault("max_count", 0)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("log.output", "")
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("watch.enabled", false)
	v.SetDefault("watch.debounce", 100*time.Millisecond)
	v.SetDefault("watch.poll_period", 5*time.Second)
	v.SetDefault("render.depth", 2)
	v.SetDefault("render.color", "auto")
}

// NewViper returns a viper instance with defaults and environment binding.
// configFile, when set, must exist; otherwise rewind.yaml is looked up in the
// working directory and ignored when absent.
func NewViper(configFile string) (*viper.Viper, error) {
	return NewViperFs(afero.NewOsFs(), configFile)
}

// NewViperFs is NewViper reading configuration files from fs.
func NewViperFs(fs afero.Fs, configFile string) (*viper.Viper, error) {
	v := viper.New()
	v.SetFs(fs)
	SetDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		if ok, err := afero.Exists(fs, configFile); err != nil || !ok {
			return nil, fmt.Errorf("read config: %s does not exist", configFile)
		}
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName(FileName)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}
	return v, nil
}

// Load decodes v into a Config and validates it.
func Load(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	// A comma separated REWIND_FOLDERS arrives as a single element.
	if len(cfg.Folders) == 1 && strings.Contains(cfg.Folders[0], ",") {
		cfg.Folders = strings.Split(cfg.Folders[0], ",")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings no component can honor.
func (c *Config) Validate() error {
	switch strings.ToLower(c.Backend) {
	case gitcore.BackendExec, gitcore.BackendGoGit:
	default:
		return fmt.Errorf("unknown backend %q (want %s or %s)", c.Backend, gitcore.BackendExec, gitcore.BackendGoGit)
	}
	if c.MaxCount < 0 {
		return fmt.Errorf("max_count must not be negative, got %d", c.MaxCount)
	}
	if c.Render.Depth < 0 {
		return fmt.Errorf("render.depth must not be negative, got %d", c.Render.Depth)
	}
	switch c.Render.Color {
	case "auto", "always", "never":
	default:
		return fmt.Errorf("render.color must be auto, always or never, got %q", c.Render.Color)
	}
	if c.Watch.Enabled && c.Watch.PollPeriod <= 0 {
		return fmt.Errorf("watch.poll_period must be positive")
	}
	return nil
}

// WorkspaceFolders resolves the configured folder paths. With none configured
// the current directory is the only folder. Each folder is named after the
// base of its absolute path.
func (c *Config) WorkspaceFolders() ([]timeline.Folder, error) {
	paths := c.Folders
	if len(paths) == 0 {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("resolve working directory: %w", err)
		}
		paths = []string{wd}
	}

	folders := make([]timeline.Folder, 0, len(paths))
	for _, p := range paths {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		abs, err := filepath.Abs(p)
		if err != nil {
			return nil, fmt.Errorf("resolve folder %s: %w", p, err)
		}
		folders = append(folders, timeline.Folder{Name: filepath.Base(abs), Path: abs})
	}
	return folders, nil
}

// Logging returns the logging settings.
func (c *Config) Logging() logging.Config {
	return logging.Config{Level: c.Log.Level, Format: c.Log.Format, OutputPath: c.Log.Output}
}
