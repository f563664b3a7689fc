package config

import "os"

const environmentENV = "ENVIRONMENT"

// loadDevelopmentConfig fills in local-friendly values before file and env
// overrides are applied.
func loadDevelopmentConfig(cfg *Config) {
	if os.Getenv(environmentENV) != "development" {
		return
	}

	cfg.DataDir = "./tmp"
	cfg.DatabaseDebug = true
	cfg.ServerHost = "127.0.0.1"
}
