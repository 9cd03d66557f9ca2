package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestParse_TOML(t *testing.T) {
	cfg, err := Parse([]byte(`
[completion]
resolve_on_apply = false
context_aware_sorting = true
tab_size = 2
resolve_timeout = "750ms"

[server]
command = "gopls"
args = ["serve"]
`), FormatTOML)
	require.NoError(t, err)

	assert.False(t, cfg.Completion.ResolveOnApply)
	assert.True(t, cfg.Completion.ContextAwareSorting)
	assert.True(t, cfg.Completion.TemplateForInvocationOnlySnippet, "default kept")
	assert.Equal(t, 2, cfg.Completion.TabSize)
	assert.Equal(t, 750*time.Millisecond, cfg.Completion.ResolveTimeout.Std())
	assert.Equal(t, "gopls", cfg.Server.Command)
	assert.Equal(t, []string{"serve"}, cfg.Server.Args)
	assert.Equal(t, 30*time.Second, cfg.Server.InitializeTimeout.Std())
}

func TestParse_YAML(t *testing.T) {
	cfg, err := Parse([]byte(`
completion:
  case_sensitive: true
  insert_spaces: false
log:
  level: debug
  json: true
server:
  request_timeout: 3s
`), FormatYAML)
	require.NoError(t, err)

	assert.True(t, cfg.Completion.CaseSensitive)
	assert.False(t, cfg.Completion.InsertSpaces)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.True(t, cfg.Log.JSON)
	assert.Equal(t, 3*time.Second, cfg.Server.RequestTimeout.Std())
}

func TestParse_Empty(t *testing.T) {
	cfg, err := Parse(nil, FormatYAML)
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestParse_Errors(t *testing.T) {
	var perr *ParseError

	_, err := Parse([]byte("[completion]\ntab_sise = 2\n"), FormatTOML)
	require.ErrorAs(t, err, &perr, "unknown keys are rejected")

	_, err = Parse([]byte("completion: [\n"), FormatYAML)
	require.ErrorAs(t, err, &perr)

	_, err = Parse([]byte(`[completion]
resolve_timeout = "soon"`), FormatTOML)
	require.Error(t, err)

	var verr *ValidationError
	_, err = Parse([]byte("[completion]\ntab_size = 0\n"), FormatTOML)
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "completion.tab_size", verr.Path)
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_FileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lspcomplete.yml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  command: pyright\n"), 0o600))

	t.Setenv("LSPCOMPLETE_SERVER_ARGS", "--stdio --verbose")
	t.Setenv("LSPCOMPLETE_TAB_SIZE", "8")
	t.Setenv("LSPCOMPLETE_LOG_JSON", "true")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "pyright", cfg.Server.Command)
	assert.Equal(t, []string{"--stdio", "--verbose"}, cfg.Server.Args)
	assert.Equal(t, 8, cfg.Completion.TabSize)
	assert.True(t, cfg.Log.JSON)
}

func TestLoad_BadEnv(t *testing.T) {
	t.Setenv("LSPCOMPLETE_RESOLVE_ON_APPLY", "sometimes")
	_, err := Load("")
	assert.ErrorContains(t, err, "LSPCOMPLETE_RESOLVE_ON_APPLY")
}

func TestFormatOf(t *testing.T) {
	assert.Equal(t, FormatYAML, FormatOf("a.YAML"))
	assert.Equal(t, FormatYAML, FormatOf("a.yml"))
	assert.Equal(t, FormatTOML, FormatOf("a.toml"))
	assert.Equal(t, FormatTOML, FormatOf("noext"))
}

func TestCompletionConfig_Policy(t *testing.T) {
	c := Default().Completion
	c.ResolveOnApply = false
	c.TemplateForInvocationOnlySnippet = false
	c.InsertSpaces = false

	p := c.Policy()
	assert.True(t, p.DisableResolveOnApply)
	assert.True(t, p.SimplifyInvocations)
	assert.False(t, p.UseTemplateForInvocationOnlySnippet())
	tab, spaces := p.Indent()
	assert.Equal(t, 4, tab)
	assert.False(t, spaces)
}

func TestStore(t *testing.T) {
	s := NewStore(nil)
	assert.Equal(t, Default(), s.Get())

	next := Default()
	next.Log.Level = "debug"
	prev := s.Set(next)
	assert.Equal(t, "info", prev.Log.Level)
	assert.Equal(t, "debug", s.Get().Log.Level)
}

func TestWatcher_Reload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "lspcomplete.toml")
	require.NoError(t, os.WriteFile(path, []byte("[log]\nlevel = \"info\"\n"), 0o600))

	store := NewStore(nil)
	w := NewWatcher(path, store, WithDebounce(10*time.Millisecond), WithWatcherLogger(zaptest.NewLogger(t).Sugar()))
	reloaded := make(chan *Config, 4)
	w.OnReload(func(cfg *Config) { reloaded <- cfg })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	// Give the watcher time to register before writing.
	time.Sleep(50 * time.Millisecond)
	require.NoError(t, os.WriteFile(path, []byte("[log]\nlevel = \"debug\"\n"), 0o600))

	select {
	case cfg := <-reloaded:
		assert.Equal(t, "debug", cfg.Log.Level)
		assert.Equal(t, "debug", store.Get().Log.Level)
	case <-time.After(3 * time.Second):
		t.Fatal("config was not reloaded")
	}
}
