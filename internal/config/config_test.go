package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rybkr/rewind/internal/timeline"
)

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	v, err := NewViper("")
	require.NoError(t, err)
	cfg, err := Load(v)
	require.NoError(t, err)

	assert.Empty(t, cfg.Folders)
	assert.Equal(t, "exec", cfg.Backend)
	assert.Equal(t, "git", cfg.GitBin)
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.False(t, cfg.Watch.Enabled)
	assert.Equal(t, 100*time.Millisecond, cfg.Watch.Debounce)
	assert.Equal(t, 5*time.Second, cfg.Watch.PollPeriod)
	assert.Equal(t, 2, cfg.Render.Depth)
	assert.Equal(t, "auto", cfg.Render.Color)
}

func TestLoadFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "custom.yaml")
	require.NoError(t, os.WriteFile(file, []byte(`
folders:
  - ./one
  - ./two
backend: gogit
max_count: 50
watch:
  enabled: true
  poll_period: 2s
render:
  depth: 3
`), 0o644))
	t.Setenv("REWIND_SERVER_ADDR", "127.0.0.1:9999")
	t.Setenv("REWIND_LOG_LEVEL", "debug")

	v, err := NewViper(file)
	require.NoError(t, err)
	cfg, err := Load(v)
	require.NoError(t, err)

	assert.Equal(t, []string{"./one", "./two"}, cfg.Folders)
	assert.Equal(t, "gogit", cfg.Backend)
	assert.Equal(t, 50, cfg.MaxCount)
	assert.True(t, cfg.Watch.Enabled)
	assert.Equal(t, 2*time.Second, cfg.Watch.PollPeriod)
	assert.Equal(t, 3, cfg.Render.Depth)
	assert.Equal(t, "127.0.0.1:9999", cfg.Server.Addr)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestNewViperMissingExplicitFile(t *testing.T) {
	_, err := NewViper(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestNewViperFsInMemory(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/etc/rewind/rewind.yaml", []byte("backend: gogit\nmax_count: 7\n"), 0o644))

	v, err := NewViperFs(fs, "/etc/rewind/rewind.yaml")
	require.NoError(t, err)
	cfg, err := Load(v)
	require.NoError(t, err)
	assert.Equal(t, "gogit", cfg.Backend)
	assert.Equal(t, 7, cfg.MaxCount)

	_, err = NewViperFs(fs, "/etc/rewind/missing.yaml")
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := Config{Backend: "exec", Render: RenderConfig{Color: "auto"}}
	require.NoError(t, valid.Validate())

	tests := map[string]func(c *Config){
		"unknown backend":  func(c *Config) { c.Backend = "hg" },
		"negative count":   func(c *Config) { c.MaxCount = -1 },
		"negative depth":   func(c *Config) { c.Render.Depth = -2 },
		"bad color":        func(c *Config) { c.Render.Color = "sometimes" },
		"zero poll period": func(c *Config) { c.Watch.Enabled = true },
	}
	for name, mutate := range tests {
		t.Run(name, func(t *testing.T) {
			c := valid
			mutate(&c)
			assert.Error(t, c.Validate())
		})
	}
}

func TestWorkspaceFolders(t *testing.T) {
	base := t.TempDir()
	cfg := Config{Folders: []string{filepath.Join(base, "alpha"), " ", filepath.Join(base, "beta")}}

	folders, err := cfg.WorkspaceFolders()
	require.NoError(t, err)
	assert.Equal(t, []timeline.Folder{
		{Name: "alpha", Path: filepath.Join(base, "alpha")},
		{Name: "beta", Path: filepath.Join(base, "beta")},
	}, folders)
}

func TestWorkspaceFoldersDefaultsToWorkingDirectory(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	folders, err := (&Config{}).WorkspaceFolders()
	require.NoError(t, err)
	require.Len(t, folders, 1)
	assert.Equal(t, filepath.Base(dir), folders[0].Name)
}
