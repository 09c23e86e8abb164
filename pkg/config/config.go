// Package config loads the installer's TOML configuration file,
// grounded directly on the teacher's config/portago.go (same
// toml.DecodeFile call shape), with an environment-variable override
// layer for the two variables spec.md §6 names explicitly.
package config

import (
	"os"

	"github.com/BurntSushi/toml"
)

// Config is the installer's static configuration.
type Config struct {
	Prefix string `toml:"prefix"` // HOMEBREW_PREFIX
	Cellar string `toml:"cellar"` // HOMEBREW_CELLAR

	Sandbox struct {
		Available bool `toml:"available"`
	} `toml:"sandbox"`

	Build struct {
		Interpreter string `toml:"interpreter"`
		LoadPath    string `toml:"load_path"`
		Script      string `toml:"script"`
	} `toml:"build"`

	// InstallBadge overrides the summary emoji (HOMEBREW_INSTALL_BADGE).
	InstallBadge string `toml:"install_badge"`
	// NoEmoji suppresses emoji in the summary (HOMEBREW_NO_EMOJI).
	NoEmoji bool `toml:"no_emoji"`
}

// Default returns a Config with the conventional Homebrew-style layout
// rooted at prefix.
func Default(prefix string) Config {
	return Config{
		Prefix: prefix,
		Cellar: prefix + "/Cellar",
	}
}

// Load decodes the TOML file at path into a Config seeded with Default
// values, then applies environment-variable overrides.
func Load(path, defaultPrefix string) (Config, error) {
	cfg := Default(defaultPrefix)
	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}
	cfg.applyEnv()
	return cfg, nil
}

// applyEnv implements spec.md §6's "Environment Variables" subsection:
// HOMEBREW_INSTALL_BADGE overrides the summary emoji, HOMEBREW_NO_EMOJI
// suppresses it.
func (c *Config) applyEnv() {
	if badge := os.Getenv("HOMEBREW_INSTALL_BADGE"); badge != "" {
		c.InstallBadge = badge
	}
	if _, ok := os.LookupEnv("HOMEBREW_NO_EMOJI"); ok {
		c.NoEmoji = true
	}
}
