package config

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/pkg/errors"
)

type Config struct {
	DataDir string `koanf:"data_dir" validate:"required"`

	DatabaseBusyTimeout       time.Duration `koanf:"database_busy_timeout" default:"5s"`
	DatabaseConnectRetryCount int           `koanf:"database_connect_retry_count" default:"5"`
	DatabaseConnectRetryDelay time.Duration `koanf:"database_connect_retry_delay" default:"2s"`
	DatabaseDebug             bool          `koanf:"database_debug"`
	DatabaseFilePath          string        `koanf:"database_file_path"`
	DatabaseMaxRetries        int           `koanf:"database_max_retries" default:"5"`

	Hostname   string `koanf:"-"`
	ServerHost string `koanf:"server_host" default:"0.0.0.0"`
	ServerPort int    `koanf:"server_port" default:"3700"`

	// CacheDir holds extracted archives, staging copies and page images.
	CacheDir         string `koanf:"cache_dir"`
	SettingsFilePath string `koanf:"settings_file_path"`

	LoadTimeout        time.Duration `koanf:"load_timeout" default:"30s" validate:"min=1000000000"`
	SaveThrottle       time.Duration `koanf:"save_throttle" default:"5s"`
	MinSessionDuration time.Duration `koanf:"min_session_duration" default:"5s"`
	RestoreSeekDelay   time.Duration `koanf:"restore_seek_delay" default:"300ms"`
	AwaitLayoutSettled bool          `koanf:"await_layout_settled"`

	TextChunkThreshold int64 `koanf:"text_chunk_threshold" default:"2097152" validate:"min=1"`
	TextChunkSize      int64 `koanf:"text_chunk_size" default:"30720" validate:"min=1"`
}

const (
	configFileENV     = "CONFIG_FILE"
	defaultConfigFile = "/config/lectern.yaml"
)

func New() (*Config, error) {
	hostname, err := os.Hostname()
	if err != nil {
		return nil, errors.WithStack(err)
	}

	cfg := &Config{}
	if err := defaults.Set(cfg); err != nil {
		return nil, errors.WithStack(err)
	}
	loadDevelopmentConfig(cfg)

	k := koanf.New(".")

	configFile := os.Getenv(configFileENV)
	if configFile == "" {
		configFile = defaultConfigFile
	}
	if _, err := os.Stat(configFile); err == nil {
		if err := k.Load(file.Provider(configFile), yaml.Parser()); err != nil {
			return nil, errors.Wrapf(err, "failed to load config file %s", configFile)
		}
	}

	// Env vars override the file, e.g. SERVER_PORT=9090 -> server_port.
	keys := fileKeys(cfg)
	err = k.Load(env.ProviderWithValue("", ".", func(s string, v string) (string, interface{}) {
		key := strings.ToLower(s)
		if _, ok := keys[key]; !ok || v == "" {
			return "", nil
		}
		return key, v
	}), nil)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	if err := k.Unmarshal("", cfg); err != nil {
		return nil, errors.WithStack(err)
	}

	cfg.Hostname = hostname
	cfg.applyDerivedDefaults()

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (cfg *Config) applyDerivedDefaults() {
	if cfg.DatabaseFilePath == "" && cfg.DataDir != "" {
		cfg.DatabaseFilePath = filepath.Join(cfg.DataDir, "lectern.sqlite")
	}
	if cfg.CacheDir == "" && cfg.DataDir != "" {
		cfg.CacheDir = filepath.Join(cfg.DataDir, "cache")
	}
	if cfg.SettingsFilePath == "" && cfg.DataDir != "" {
		cfg.SettingsFilePath = filepath.Join(cfg.DataDir, "settings.json")
	}
}

func (cfg *Config) validate() error {
	validate := validator.New()
	err := validate.Struct(cfg)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return errors.WithStack(err)
	}

	fe := verrs[0]
	key := koanfKey(fe.StructField())
	if fe.Tag() == "required" {
		return errors.Errorf("missing required config: set %s or %s in the config file", strings.ToUpper(key), key)
	}
	return errors.Errorf("invalid config value for %s (%s=%s)", key, fe.Tag(), fe.Param())
}

// fileKeys returns every koanf key the Config struct understands.
func fileKeys(cfg *Config) map[string]struct{} {
	keys := map[string]struct{}{}
	t := reflect.TypeOf(*cfg)
	for i := 0; i < t.NumField(); i++ {
		tag := t.Field(i).Tag.Get("koanf")
		if tag == "" || tag == "-" {
			continue
		}
		keys[tag] = struct{}{}
	}
	return keys
}

func koanfKey(fieldName string) string {
	f, ok := reflect.TypeOf(Config{}).FieldByName(fieldName)
	if !ok {
		return fieldName
	}
	return f.Tag.Get("koanf")
}

func (cfg *Config) String() string {
	return fmt.Sprintf("data_dir=%s cache_dir=%s db=%s port=%d", cfg.DataDir, cfg.CacheDir, cfg.DatabaseFilePath, cfg.ServerPort)
}
