package config

import (
	"fmt"
	"os"
	"strings"

	"carrot-arena/server/engine"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Port        string `env:"PORT" envDefault:"8080"`
	DatabaseURL string `env:"DATABASE_URL"`
	AutoMigrate bool   `env:"AUTO_MIGRATE"`
	Debug       bool   `env:"DEBUG"`
	RulesPreset string `env:"RULES_PRESET" envDefault:"default"`
	RulesFile   string `env:"RULES_FILE"`
	NoColor     string `env:"NO_COLOR"`
	UseColor    string `env:"USE_COLOR"`
	BotModelOne string `env:"BOT_MODEL_ONE"`
	BotModelTwo string `env:"BOT_MODEL_TWO"`
}

// Load reads .env (if present) and then the process environment.
func Load() (Config, error) {
	_ = godotenv.Load()
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

// Color reports whether console output should be coloured.
func (c Config) Color() bool {
	return c.NoColor == "" && strings.TrimSpace(c.UseColor) != "0"
}

// Rules resolves the preset and applies RULES_FILE overrides on top of it.
func (c Config) Rules() (engine.Rules, error) {
	r, err := engine.RulesPreset(c.RulesPreset)
	if err != nil {
		return r, err
	}
	if c.RulesFile == "" {
		return r, nil
	}
	return LoadRules(c.RulesFile, r)
}

// LoadRules reads a YAML rules file. Keys missing from the file keep the
// values of base.
func LoadRules(path string, base engine.Rules) (engine.Rules, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return base, err
	}
	r := base
	if err := yaml.Unmarshal(raw, &r); err != nil {
		return base, fmt.Errorf("%s: %w", path, err)
	}
	if err := r.Validate(); err != nil {
		return base, fmt.Errorf("%s: %w", path, err)
	}
	return r, nil
}
