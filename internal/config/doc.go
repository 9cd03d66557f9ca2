// Package config loads lspcomplete settings from TOML or YAML files and the
// environment, and can watch the file for live reload.
//
// Settings are layered: built-in defaults, then the file, then environment
// variables prefixed with LSPCOMPLETE_.
package config
