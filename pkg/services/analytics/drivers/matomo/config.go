package matomo

import (
	"fmt"
	"strings"
	"time"

	"github.com/de-tools/analytics-bridge/pkg/services/analytics"
)

type Config struct {
	URL     string        `mapstructure:"url" validate:"required"`
	Token   string        `mapstructure:"token" validate:"required"`
	SiteID  string        `mapstructure:"siteid" validate:"required"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// LoadConfig decodes and validates the driver options
func LoadConfig(opts analytics.Options) (*Config, error) {
	var cfg Config
	if err := opts.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse matomo config: %w", err)
	}

	var missing []string
	if cfg.URL == "" {
		missing = append(missing, "url")
	}
	if cfg.Token == "" {
		missing = append(missing, "token")
	}
	if cfg.SiteID == "" {
		missing = append(missing, "siteid")
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("matomo config is missing %s", strings.Join(missing, ", "))
	}

	cfg.URL = strings.TrimRight(cfg.URL, "/")
	return &cfg, nil
}
