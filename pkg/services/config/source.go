package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

const (
	KeyDefaultDriver = "default"
	KeyDrivers       = "drivers"
	KeyCrux          = "crux"
	KeyPageSpeed     = "pagespeed"
	KeyGSC           = "gsc"
	KeyTimeout       = "timeout"

	DefaultDriver = "matomo"
)

// envBindings maps configuration keys to the environment variables that may set them.
var envBindings = map[string]string{
	KeyDefaultDriver:        "ANALYTICS_DRIVER",
	"drivers.matomo.url":    "MATOMO_URL",
	"drivers.matomo.token":  "MATOMO_TOKEN",
	"drivers.matomo.siteid": "MATOMO_SITEID",
	"crux.apikey":           "CRUX_APIKEY",
	"pagespeed.apikey":      "PAGESPEED_APIKEY",
	"gsc.auth":              "GSC_AUTH",
	KeyTimeout:              "ANALYTICS_TIMEOUT",
}

// Source supplies configuration values. Nested blocks are returned as map[string]any.
type Source interface {
	Get(key string, def any) any
}

type Options struct {
	// ConfigFile is an optional yaml/json/toml file.
	ConfigFile string
	// CredentialsFile is an optional ini file, see LoadCredentials.
	CredentialsFile string
}

type viperSource struct {
	v *viper.Viper
}

// Load builds a Source from defaults, the optional files and the environment, in increasing precedence.
func Load(opts Options) (Source, error) {
	v := viper.New()
	v.SetDefault(KeyDefaultDriver, DefaultDriver)

	if opts.ConfigFile != "" {
		v.SetConfigFile(opts.ConfigFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	if opts.CredentialsFile != "" {
		creds, err := LoadCredentials(opts.CredentialsFile)
		if err != nil {
			return nil, err
		}
		if err := v.MergeConfigMap(creds); err != nil {
			return nil, fmt.Errorf("failed to merge credentials: %w", err)
		}
	}

	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", env, err)
		}
	}

	return &viperSource{v: v}, nil
}

// NewViperSource wraps an already configured viper instance.
func NewViperSource(v *viper.Viper) Source {
	return &viperSource{v: v}
}

func (s *viperSource) Get(key string, def any) any {
	key = strings.ToLower(key)
	prefix := key + "."

	var nested map[string]any
	for _, k := range s.v.AllKeys() {
		if !strings.HasPrefix(k, prefix) {
			continue
		}
		value := s.v.Get(k)
		if value == nil {
			continue
		}
		if nested == nil {
			nested = make(map[string]any)
		}
		setPath(nested, splitKey(strings.TrimPrefix(k, prefix)), value)
	}
	if nested != nil {
		return nested
	}

	if value := s.v.Get(key); value != nil {
		return value
	}
	return def
}

// Map returns the block under key, or an empty map.
func Map(s Source, key string) map[string]any {
	if m, ok := s.Get(key, nil).(map[string]any); ok {
		return m
	}
	return map[string]any{}
}

// String returns the string under key, or def.
func String(s Source, key, def string) string {
	v := s.Get(key, def)
	if str, ok := v.(string); ok && str != "" {
		return str
	}
	return def
}
