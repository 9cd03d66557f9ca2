package config

import "sync/atomic"

// Store holds the active configuration. Readers never block; a reload swaps
// the whole tree.
type Store struct {
	current atomic.Pointer[Config]
}

// NewStore returns a store holding cfg, or the defaults when cfg is nil.
func NewStore(cfg *Config) *Store {
	if cfg == nil {
		cfg = Default()
	}
	s := &Store{}
	s.current.Store(cfg)
	return s
}

// Get returns the active configuration. Callers must not modify it.
func (s *Store) Get() *Config {
	return s.current.Load()
}

// Set replaces the active configuration and returns the previous one.
func (s *Store) Set(cfg *Config) *Config {
	return s.current.Swap(cfg)
}
