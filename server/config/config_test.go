package config

import (
	"os"
	"path/filepath"
	"testing"

	"carrot-arena/server/engine"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("RULES_PRESET", "")
	t.Setenv("DATABASE_URL", "")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.DatabaseURL != "" {
		t.Fatalf("unexpected DATABASE_URL %q", cfg.DatabaseURL)
	}
	r, err := cfg.Rules()
	if err != nil {
		t.Fatalf("Rules returned error: %v", err)
	}
	if r != engine.DefaultRules() {
		t.Fatalf("expected default rules, got %+v", r)
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("AUTO_MIGRATE", "true")
	t.Setenv("RULES_PRESET", "hase")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Port != "9090" || !cfg.AutoMigrate {
		t.Fatalf("unexpected config %+v", cfg)
	}
	r, err := cfg.Rules()
	if err != nil {
		t.Fatalf("Rules returned error: %v", err)
	}
	if r.ExchangeStep != 10 || !r.RequireCarrotField {
		t.Fatalf("expected hase rules, got %+v", r)
	}
}

func TestRulesFileOverridesPreset(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	if err := os.WriteFile(path, []byte("exchange_step: 5\nsalad_bonus_trail: 40\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg := Config{RulesPreset: "hase", RulesFile: path}
	r, err := cfg.Rules()
	if err != nil {
		t.Fatalf("Rules returned error: %v", err)
	}
	if r.ExchangeStep != 5 || r.SaladBonusTrail != 40 || !r.RequireCarrotField || r.SaladBonusLead != 10 {
		t.Fatalf("unexpected merged rules %+v", r)
	}
}

func TestRulesFileRejectsBadValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	if err := os.WriteFile(path, []byte("exchange_step: -3\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := LoadRules(path, engine.DefaultRules()); err == nil {
		t.Fatalf("expected negative step to be rejected")
	}
	if _, err := (Config{RulesPreset: "chess"}).Rules(); err == nil {
		t.Fatalf("expected unknown preset to fail")
	}
}

func TestColor(t *testing.T) {
	if !(Config{}).Color() {
		t.Fatalf("colour should default on")
	}
	if (Config{NoColor: "1"}).Color() || (Config{UseColor: "0"}).Color() {
		t.Fatalf("NO_COLOR / USE_COLOR=0 should disable colour")
	}
}
