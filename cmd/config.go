package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/caarlos0/env/v11"
	"github.com/magiconair/properties"

	"github.com/redstone-tools/tickpack/scan"
)

// loadScanConfig reads the config file when given, then applies TICKPACK_*
// environment overrides, then validates.
func loadScanConfig(path string) (scan.Config, error) {
	cfg := scan.DefaultConfig()
	if path != "" {
		var err error
		if cfg, err = scan.LoadConfig(path); err != nil {
			return cfg, err
		}
	}
	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// readServerProperties parses a Minecraft server.properties file with the
// usual .properties rules: comments, "=" or ":" separators, escapes and
// continued lines. ${...} references are left as written.
func readServerProperties(path string) (map[string]string, error) {
	p, err := properties.LoadFile(path, properties.UTF8)
	if err != nil {
		return nil, fmt.Errorf("reading server properties: %w", err)
	}
	p.DisableExpansion = true
	return p.Map(), nil
}

// datapackRoot resolves where packages are written: an explicit --out wins,
// otherwise <server dir>/<level-name>/datapacks from server.properties.
func datapackRoot(out, propertiesPath string) (string, error) {
	if out != "" {
		return out, nil
	}
	if propertiesPath == "" {
		return "", fmt.Errorf("either --out or --server-properties is required")
	}
	props, err := readServerProperties(propertiesPath)
	if err != nil {
		return "", err
	}
	level := props["level-name"]
	if level == "" {
		return "", fmt.Errorf("%s has no level-name", propertiesPath)
	}
	return filepath.Join(filepath.Dir(propertiesPath), level, "datapacks"), nil
}
