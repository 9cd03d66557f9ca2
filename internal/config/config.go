package config

import (
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"gopkg.in/yaml.v3"

	"github.com/dshills/lspcomplete/internal/completion"
)

// Config is the complete settings tree.
type Config struct {
	Completion CompletionConfig `toml:"completion" yaml:"completion"`
	Server     ServerConfig     `toml:"server" yaml:"server"`
	Log        LogConfig        `toml:"log" yaml:"log"`
}

// CompletionConfig holds the client side completion switches.
type CompletionConfig struct {
	ResolveOnApply                   bool     `toml:"resolve_on_apply" yaml:"resolve_on_apply"`
	TemplateForInvocationOnlySnippet bool     `toml:"template_for_invocation_only_snippet" yaml:"template_for_invocation_only_snippet"`
	ContextAwareSorting              bool     `toml:"context_aware_sorting" yaml:"context_aware_sorting"`
	CaseSensitive                    bool     `toml:"case_sensitive" yaml:"case_sensitive"`
	TabSize                          int      `toml:"tab_size" yaml:"tab_size"`
	InsertSpaces                     bool     `toml:"insert_spaces" yaml:"insert_spaces"`
	ResolveTimeout                   Duration `toml:"resolve_timeout" yaml:"resolve_timeout"`
}

// ServerConfig describes the language server to launch.
type ServerConfig struct {
	Command           string   `toml:"command" yaml:"command"`
	Args              []string `toml:"args" yaml:"args"`
	RootDir           string   `toml:"root_dir" yaml:"root_dir"`
	InitializeTimeout Duration `toml:"initialize_timeout" yaml:"initialize_timeout"`
	RequestTimeout    Duration `toml:"request_timeout" yaml:"request_timeout"`
}

// LogConfig selects the log level and encoding.
type LogConfig struct {
	Level string `toml:"level" yaml:"level"`
	JSON  bool   `toml:"json" yaml:"json"`
}

// Default returns the built-in settings.
func Default() *Config {
	return &Config{
		Completion: CompletionConfig{
			ResolveOnApply:                   true,
			TemplateForInvocationOnlySnippet: true,
			TabSize:                          4,
			InsertSpaces:                     true,
			ResolveTimeout:                   Duration(2 * time.Second),
		},
		Server: ServerConfig{
			InitializeTimeout: Duration(30 * time.Second),
			RequestTimeout:    Duration(10 * time.Second),
		},
		Log: LogConfig{Level: "info"},
	}
}

// Validate reports settings that cannot work.
func (c *Config) Validate() error {
	if c.Completion.TabSize <= 0 {
		return &ValidationError{Path: "completion.tab_size", Message: "must be positive"}
	}
	if c.Completion.ResolveTimeout < 0 {
		return &ValidationError{Path: "completion.resolve_timeout", Message: "must not be negative"}
	}
	for _, d := range []struct {
		path string
		v    Duration
	}{
		{"server.initialize_timeout", c.Server.InitializeTimeout},
		{"server.request_timeout", c.Server.RequestTimeout},
	} {
		if d.v <= 0 {
			return &ValidationError{Path: d.path, Message: "must be positive"}
		}
	}
	return nil
}

// Policy converts the completion settings to a completion.Policy.
func (c CompletionConfig) Policy() completion.DefaultPolicy {
	return completion.DefaultPolicy{
		DisableResolveOnApply: !c.ResolveOnApply,
		SimplifyInvocations:   !c.TemplateForInvocationOnlySnippet,
		ContextAwareSorting:   c.ContextAwareSorting,
		MatchCase:             c.CaseSensitive,
		TabSize:               c.TabSize,
		UseTabs:               !c.InsertSpaces,
	}
}

// Duration is a time.Duration written as "1.5s" in config files.
type Duration time.Duration

// Std returns d as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// String implements fmt.Stringer.
func (d Duration) String() string { return time.Duration(d).String() }

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(strings.TrimSpace(string(text)))
	if err != nil {
		return errors.Wrapf(err, "duration %q", text)
	}
	*d = Duration(v)
	return nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	return d.UnmarshalText([]byte(node.Value))
}
