package aigateway

import "testing"

func TestApplyEnvOverlay_OverridesFileValues(t *testing.T) {
	cfg := Config{}
	t.Setenv("PORT", "9090")
	t.Setenv("HOST", "0.0.0.0")
	t.Setenv("JWT_SECRET", "s3cr3t")
	t.Setenv("CACHE_ENABLED", "true")
	t.Setenv("CACHE_TTL_SECONDS", "120")
	t.Setenv("RATE_LIMIT_MAX_REQUESTS", "1000")

	if err := ApplyEnvOverlay(&cfg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("expected port 9090, got %d", cfg.Server.Port)
	}
	if cfg.Server.Host != "0.0.0.0" {
		t.Errorf("expected host override, got %q", cfg.Server.Host)
	}
	if cfg.Auth.JWTSecret != "s3cr3t" {
		t.Errorf("expected jwt secret override, got %q", cfg.Auth.JWTSecret)
	}
	if !cfg.Cache.Enabled || cfg.Cache.TTLSeconds != 120 {
		t.Errorf("expected cache overrides applied, got %+v", cfg.Cache)
	}
	if cfg.RateLimit.MaxRequests != 1000 {
		t.Errorf("expected rate limit override, got %d", cfg.RateLimit.MaxRequests)
	}
}

func TestApplyEnvOverlay_LeavesUnsetFieldsAlone(t *testing.T) {
	cfg := Config{Server: ServerConfig{Port: 8080}}
	if err := ApplyEnvOverlay(&cfg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("expected untouched port 8080, got %d", cfg.Server.Port)
	}
}

func TestApplyEnvOverlay_RejectsMalformedNumeric(t *testing.T) {
	cfg := Config{}
	t.Setenv("PORT", "not-a-number")
	if err := ApplyEnvOverlay(&cfg); err == nil {
		t.Fatal("expected error for malformed PORT")
	}
}

func TestLoadConfig_EnvOverlayAppliedAfterFile(t *testing.T) {
	data := `{
		"strategy": {"mode": "single"},
		"targets": [{"virtual_key": "k"}],
		"server": {"port": 8080}
	}`
	path := writeTempFile(t, "config.json", data)
	t.Setenv("PORT", "9999")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.Port != 9999 {
		t.Errorf("expected env to win over file, got %d", cfg.Server.Port)
	}
}

func TestLoadConfig_RejectsUnknownField(t *testing.T) {
	data := `{
		"strategy": {"mode": "single"},
		"targets": [{"virtual_key": "k"}],
		"totally_unknown_field": true
	}`
	path := writeTempFile(t, "config.json", data)
	if _, err := LoadConfig(path); err == nil {
		t.Fatal("expected error for unknown top-level field")
	}
}
