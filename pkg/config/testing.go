package config

import (
	"github.com/creasty/defaults"
)

// NewForTest returns a config holding only defaults. Callers fill in the
// directories they need, usually from t.TempDir().
func NewForTest() *Config {
	cfg := &Config{}
	_ = defaults.Set(cfg)
	cfg.DataDir = "/tmp/lectern-test"
	cfg.applyDerivedDefaults()
	return cfg
}
