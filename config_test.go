package goJWT

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestConfigValidateEnums(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Config)
		wantValid bool
	}{
		{
			name: "leeway valid",
			mutate: func(c *Config) {
				c.Token.Leeway = 45 * time.Second
			},
			wantValid: true,
		},
		{
			name: "leeway negative",
			mutate: func(c *Config) {
				c.Token.Leeway = -time.Second
			},
			wantValid: false,
		},
		{
			name: "leeway too large",
			mutate: func(c *Config) {
				c.Token.Leeway = 11 * time.Minute
			},
			wantValid: false,
		},
		{
			name: "miss refresh limit negative",
			mutate: func(c *Config) {
				c.Keys.MissRefreshLimit = -1
			},
			wantValid: false,
		},
		{
			name: "miss refresh window missing",
			mutate: func(c *Config) {
				c.Keys.MissRefreshLimit = 5
				c.Keys.MissRefreshWindow = 0
			},
			wantValid: false,
		},
		{
			name: "miss refresh disabled",
			mutate: func(c *Config) {
				c.Keys.MissRefreshLimit = 0
				c.Keys.MissRefreshWindow = 0
			},
			wantValid: true,
		},
		{
			name: "ttl zero",
			mutate: func(c *Config) {
				c.Token.TTL = 0
			},
			wantValid: false,
		},
		{
			name: "algorithm lower case",
			mutate: func(c *Config) {
				c.Token.Algorithm = "hs512"
			},
			wantValid: true,
		},
		{
			name: "algorithm unknown",
			mutate: func(c *Config) {
				c.Token.Algorithm = "PS256"
			},
			wantValid: false,
		},
		{
			name: "none without opt in",
			mutate: func(c *Config) {
				c.Token.Algorithm = "none"
			},
			wantValid: false,
		},
		{
			name: "none with opt in",
			mutate: func(c *Config) {
				c.Token.Algorithm = "none"
				c.Token.AllowNone = true
			},
			wantValid: true,
		},
		{
			name: "hmac without secret or source",
			mutate: func(c *Config) {
				c.Token.Secret = ""
			},
			wantValid: false,
		},
		{
			name: "hmac secret from bundle",
			mutate: func(c *Config) {
				c.Token.Secret = ""
				c.Keys.Source = "https://issuer.test/jwks"
			},
			wantValid: true,
		},
		{
			name: "encoding base32",
			mutate: func(c *Config) {
				c.Token.Encoding = "base32"
			},
			wantValid: true,
		},
		{
			name: "encoding unknown",
			mutate: func(c *Config) {
				c.Token.Encoding = "base58"
			},
			wantValid: false,
		},
		{
			name: "blank audience",
			mutate: func(c *Config) {
				c.Token.Audience = []string{"  "}
			},
			wantValid: false,
		},
		{
			name: "padded issuer",
			mutate: func(c *Config) {
				c.Token.Issuer = " https://issuer.test"
			},
			wantValid: false,
		},
		{
			name: "keys format der",
			mutate: func(c *Config) {
				c.Keys.Format = "der"
			},
			wantValid: true,
		},
		{
			name: "keys format unknown",
			mutate: func(c *Config) {
				c.Keys.Format = "pkcs12"
			},
			wantValid: false,
		},
		{
			name: "watch remote source",
			mutate: func(c *Config) {
				c.Keys.Source = "https://issuer.test/jwks"
				c.Keys.WatchFile = true
			},
			wantValid: false,
		},
		{
			name: "cache time zero",
			mutate: func(c *Config) {
				c.Keys.CacheTime = 0
			},
			wantValid: false,
		},
		{
			name: "audit buffer zero",
			mutate: func(c *Config) {
				c.Audit.Enabled = true
				c.Audit.BufferSize = 0
			},
			wantValid: false,
		},
		{
			name: "log level unknown",
			mutate: func(c *Config) {
				c.Logging.Level = "chatty"
			},
			wantValid: false,
		},
		{
			name: "log format console",
			mutate: func(c *Config) {
				c.Logging.Format = "console"
			},
			wantValid: true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := testConfig()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if tc.wantValid && err != nil {
				t.Fatalf("expected valid config, got %v", err)
			}
			if !tc.wantValid && err == nil {
				t.Fatal("expected invalid config, got nil")
			}
		})
	}
}

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv("JWT_TOKEN_ALGORITHM", "HS384")
	t.Setenv("JWT_TOKEN_SECRET", testSecret+testSecret)
	t.Setenv("JWT_TOKEN_ISSUER", "https://issuer.test")
	t.Setenv("JWT_TOKEN_AUDIENCE", "api,admin")
	t.Setenv("JWT_TOKEN_TTL", "5m")
	t.Setenv("JWT_KEYS_CACHE_TIME", "1m")
	t.Setenv("JWT_AUDIT_ENABLED", "true")

	cfg, err := LoadConfigFromEnv("JWT_")
	if err != nil {
		t.Fatalf("LoadConfigFromEnv failed: %v", err)
	}
	if cfg.Token.Algorithm != "HS384" || cfg.Token.TTL != 5*time.Minute {
		t.Fatalf("unexpected token config: %+v", cfg.Token)
	}
	if len(cfg.Token.Audience) != 2 || cfg.Token.Audience[1] != "admin" {
		t.Fatalf("expected split audience, got %v", cfg.Token.Audience)
	}
	if cfg.Keys.CacheTime != time.Minute || !cfg.Audit.Enabled {
		t.Fatalf("unexpected nested config: %+v %+v", cfg.Keys, cfg.Audit)
	}
	if cfg.Token.Leeway != 30*time.Second {
		t.Fatalf("expected default leeway to survive, got %v", cfg.Token.Leeway)
	}
}

func TestLoadConfigFromEnvRejectsInvalid(t *testing.T) {
	t.Setenv("BAD_TOKEN_ALGORITHM", "HS256")
	if _, err := LoadConfigFromEnv("BAD_"); err == nil {
		t.Fatal("expected HS256 without a secret to fail validation")
	}
}

func TestLoadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "jwt.yaml")
	doc := `
token:
  issuer: https://issuer.test
  audience: [api]
  algorithm: HS256
  secret: 0123456789abcdef0123456789abcdef
  ttl: 10m
keys:
  source: https://issuer.test/.well-known/jwks.json
  retention_window: 2h
`
	if err := os.WriteFile(path, []byte(doc), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfigFile(path)
	if err != nil {
		t.Fatalf("LoadConfigFile failed: %v", err)
	}
	if cfg.Token.TTL != 10*time.Minute || cfg.Keys.RetentionWindow != 2*time.Hour {
		t.Fatalf("unexpected durations: ttl=%v retention=%v", cfg.Token.TTL, cfg.Keys.RetentionWindow)
	}
	if !cfg.Keys.VerifyTLS {
		t.Fatal("expected default VerifyTLS to survive")
	}
}

func TestLoadConfigFileRejectsUnknownFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "jwt.yaml")
	if err := os.WriteFile(path, []byte("token:\n  isuer: typo\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadConfigFile(path); err == nil {
		t.Fatal("expected unknown field to be rejected")
	}
}

func TestCloneConfigDetachesSlices(t *testing.T) {
	cfg := testConfig()
	clone := cloneConfig(cfg)
	clone.Token.Audience[0] = "changed"
	if cfg.Token.Audience[0] != "api" {
		t.Fatal("clone shares the audience slice")
	}
}
