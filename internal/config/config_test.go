package config

import (
	"testing"
	"time"
)

func TestFromEnvDefaults(t *testing.T) {
	cfg := FromEnv()
	if cfg.HTTPAddr != ":8080" {
		t.Errorf("HTTPAddr = %q", cfg.HTTPAddr)
	}
	if cfg.DBDriver != "sqlite" {
		t.Errorf("DBDriver = %q", cfg.DBDriver)
	}
	if cfg.TokenTTL != 168*time.Hour {
		t.Errorf("TokenTTL = %s", cfg.TokenTTL)
	}
	if cfg.Cooldown != 24*time.Hour {
		t.Errorf("Cooldown = %s", cfg.Cooldown)
	}
	if cfg.BcryptCost != 12 {
		t.Errorf("BcryptCost = %d", cfg.BcryptCost)
	}
	if len(cfg.CORSOrigins) == 0 {
		t.Error("CORSOrigins empty")
	}
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("HTTP_ADDR", ":9000")
	t.Setenv("DB_DRIVER", "postgres")
	t.Setenv("COOLDOWN_SECONDS", "3600")
	t.Setenv("TOKEN_TTL_HOURS", "1")
	t.Setenv("CORS_ORIGINS", "https://a.example, https://b.example")

	cfg := FromEnv()
	if cfg.HTTPAddr != ":9000" || cfg.DBDriver != "postgres" {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.Cooldown != time.Hour || cfg.TokenTTL != time.Hour {
		t.Errorf("durations = %s / %s", cfg.Cooldown, cfg.TokenTTL)
	}
	if len(cfg.CORSOrigins) != 2 || cfg.CORSOrigins[1] != "https://b.example" {
		t.Errorf("CORSOrigins = %v", cfg.CORSOrigins)
	}
}

func TestEnvIntRejectsBadValues(t *testing.T) {
	t.Setenv("COOLDOWN_SECONDS", "not-a-number")
	t.Setenv("BCRYPT_COST", "-3")
	cfg := FromEnv()
	if cfg.Cooldown != 24*time.Hour {
		t.Errorf("Cooldown = %s, want default", cfg.Cooldown)
	}
	if cfg.BcryptCost != 12 {
		t.Errorf("BcryptCost = %d, want default", cfg.BcryptCost)
	}
}
