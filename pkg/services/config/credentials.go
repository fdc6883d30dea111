package config

import (
	"fmt"

	"gopkg.in/ini.v1"
)

// LoadCredentials reads an ini credentials file with one section per driver or feature:
//
//	[drivers.matomo]
//	url = https://stats.example.com
//	token = ...
//	siteid = 1
//
//	[crux]
//	apikey = ...
//
// The result is a nested map suitable for viper.MergeConfigMap.
func LoadCredentials(path string) (map[string]any, error) {
	cfg, err := ini.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load credentials file: %w", err)
	}

	settings := make(map[string]any)
	for _, section := range cfg.Sections() {
		if len(section.Keys()) == 0 {
			continue
		}
		values := make(map[string]any, len(section.Keys()))
		for _, key := range section.Keys() {
			values[key.Name()] = key.String()
		}
		if section.Name() == ini.DefaultSection {
			for k, v := range values {
				settings[k] = v
			}
			continue
		}
		setPath(settings, splitKey(section.Name()), values)
	}
	return settings, nil
}

// Profiles returns the names of the non-empty sections of a credentials file.
func Profiles(path string) ([]string, error) {
	cfg, err := ini.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load credentials file: %w", err)
	}

	var profiles []string
	for _, section := range cfg.Sections() {
		if len(section.Keys()) > 0 && section.Name() != ini.DefaultSection {
			profiles = append(profiles, section.Name())
		}
	}
	return profiles, nil
}
