package analytics

import (
	"fmt"
	"strings"

	"github.com/go-viper/mapstructure/v2"
)

// Options is the configuration handed to a driver.
type Options map[string]any

// Merge returns a copy of base with override applied on top. Override wins on collision.
// Keys are compared case-insensitively since configuration sources lowercase them.
func Merge(base, override map[string]any) Options {
	merged := make(Options, len(base)+len(override))
	for k, v := range base {
		merged[strings.ToLower(k)] = v
	}
	for k, v := range override {
		merged[strings.ToLower(k)] = v
	}
	return merged
}

// Decode fills a struct tagged with `mapstructure` from the options.
func (o Options) Decode(out any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		WeaklyTypedInput: true,
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
	})
	if err != nil {
		return fmt.Errorf("failed to create options decoder: %w", err)
	}
	if err := decoder.Decode(map[string]any(o)); err != nil {
		return fmt.Errorf("failed to decode driver options: %w", err)
	}
	return nil
}
