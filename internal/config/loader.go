package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// envPrefix is the environment variable prefix used by all settings.
const envPrefix = "CLAUSELENS"

var (
	ErrConfigFileNotFound = errors.New("config: file not found")
	ErrConfigParseError   = errors.New("config: parse error")
	ErrConfigValidation   = errors.New("config: validation failed")
)

// Loader owns the viper instance behind a loaded Config so callers can
// render the effective settings or watch the file.
type Loader struct {
	v    *viper.Viper
	path string
}

// NewLoader layers DefaultYAML, then the file at path (if any), then
// CLAUSELENS_* environment variables. "server.http.port" is overridden by
// CLAUSELENS_SERVER_HTTP_PORT.
func NewLoader(path string) (*Loader, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadConfig(strings.NewReader(DefaultYAML)); err != nil {
		return nil, fmt.Errorf("%w: defaults: %v", ErrConfigParseError, err)
	}

	if path != "" {
		if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrConfigFileNotFound, path)
		}
		v.SetConfigFile(path)
		if err := v.MergeInConfig(); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrConfigParseError, path, err)
		}
	}
	return &Loader{v: v, path: path}, nil
}

// Config unmarshals, applies defaults and validates.
func (l *Loader) Config() (*Config, error) {
	cfg := &Config{}
	if err := l.v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfigParseError, err)
	}
	ApplyDefaults(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfigValidation, err)
	}
	return cfg, nil
}

// Settings returns the effective key/value tree with env overrides applied.
func (l *Loader) Settings() map[string]interface{} {
	return l.v.AllSettings()
}

// Watch calls onChange with each valid reload of the config file and
// onError with each invalid one. It does nothing when no file was given.
// Only hot-safe settings such as the log level should be applied by callers.
func (l *Loader) Watch(onChange func(*Config), onError func(error)) {
	if l.path == "" {
		return
	}
	l.v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		// viper re-reads only the file on change, so rebuild all layers.
		cfg, err := Load(l.path)
		if err != nil {
			if onError != nil {
				onError(err)
			}
			return
		}
		onChange(cfg)
	})
	l.v.WatchConfig()
}

// Load is NewLoader(path).Config(). An empty path uses defaults and env only.
func Load(path string) (*Config, error) {
	l, err := NewLoader(path)
	if err != nil {
		return nil, err
	}
	return l.Config()
}

// MustLoad panics on any error. main() only.
func MustLoad(path string) *Config {
	cfg, err := Load(path)
	if err != nil {
		panic(fmt.Sprintf("config: MustLoad failed: %v", err))
	}
	return cfg
}
