package goJWT

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/MrEthical07/goJWT/algorithm"
	"github.com/MrEthical07/goJWT/jwt"
	"github.com/MrEthical07/goJWT/keys"
	"github.com/caarlos0/env/v11"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

// Config is the full engine configuration. Every field can be set from the
// environment (see LoadConfigFromEnv) or a YAML file (see LoadConfigFile).
//
// Config instances are intended to be configured during initialization and
// then treated as immutable.
type Config struct {
	Token   TokenConfig   `envPrefix:"TOKEN_" yaml:"token"`
	Keys    KeysConfig    `envPrefix:"KEYS_" yaml:"keys"`
	Audit   AuditConfig   `envPrefix:"AUDIT_" yaml:"audit"`
	Metrics MetricsConfig `envPrefix:"METRICS_" yaml:"metrics"`
	Logging LoggingConfig `envPrefix:"LOG_" yaml:"logging"`

	// ProductionMode turns the softer lint warnings into validation errors.
	ProductionMode bool `env:"PRODUCTION_MODE" yaml:"production_mode"`
}

/*
====================================
TOKEN CONFIG
====================================
*/

// TokenConfig drives issuance and verification.
type TokenConfig struct {
	Issuer string `env:"ISSUER" yaml:"issuer"`
	// AcceptIssuers defaults to Issuer when empty.
	AcceptIssuers  []string      `env:"ACCEPT_ISSUERS" envSeparator:"," yaml:"accept_issuers"`
	Audience       []string      `env:"AUDIENCE" envSeparator:"," yaml:"audience"`
	TTL            time.Duration `env:"TTL" yaml:"ttl"`
	Leeway         time.Duration `env:"LEEWAY" yaml:"leeway"`
	Algorithm      string        `env:"ALGORITHM" yaml:"algorithm"`
	Encoding       string        `env:"ENCODING" yaml:"encoding"`
	RequiredClaims []string      `env:"REQUIRED_CLAIMS" envSeparator:"," yaml:"required_claims"`
	KeyID          string        `env:"KEY_ID" yaml:"key_id"`
	AllowNone      bool          `env:"ALLOW_NONE" yaml:"allow_none"`

	// Secret is the HMAC key. PrivateKeyPEM and PublicKeyPEM hold RSA or
	// ECDSA keys; without them keys come from the key bundle.
	Secret        string `env:"SECRET" yaml:"secret"`
	PrivateKeyPEM string `env:"PRIVATE_KEY_PEM" yaml:"private_key_pem"`
	PublicKeyPEM  string `env:"PUBLIC_KEY_PEM" yaml:"public_key_pem"`
}

/*
====================================
KEYS CONFIG
====================================
*/

// KeysConfig describes the key bundle built when none is supplied.
type KeysConfig struct {
	// Source is an http(s) JWKS URL, a file:// URL or a bare path. Empty
	// means no bundle.
	Source          string        `env:"SOURCE" yaml:"source"`
	Format          string        `env:"FORMAT" yaml:"format"`
	CacheTime       time.Duration `env:"CACHE_TIME" yaml:"cache_time"`
	RetentionWindow time.Duration `env:"RETENTION_WINDOW" yaml:"retention_window"`
	VerifyTLS       bool          `env:"VERIFY_TLS" yaml:"verify_tls"`
	StrictETag      bool          `env:"STRICT_ETAG" yaml:"strict_etag"`
	WatchFile       bool          `env:"WATCH_FILE" yaml:"watch_file"`
	SnapshotPrefix  string        `env:"SNAPSHOT_PREFIX" yaml:"snapshot_prefix"`
	SnapshotTTL     time.Duration `env:"SNAPSHOT_TTL" yaml:"snapshot_ttl"`

	// MissRefreshLimit caps refetches forced by unknown key ids per
	// MissRefreshWindow. Zero disables the cap.
	MissRefreshLimit  int           `env:"MISS_REFRESH_LIMIT" yaml:"miss_refresh_limit"`
	MissRefreshWindow time.Duration `env:"MISS_REFRESH_WINDOW" yaml:"miss_refresh_window"`
}

/*
====================================
AUDIT / METRICS / LOGGING CONFIG
====================================
*/

type AuditConfig struct {
	Enabled    bool `env:"ENABLED" yaml:"enabled"`
	BufferSize int  `env:"BUFFER_SIZE" yaml:"buffer_size"`
	DropIfFull bool `env:"DROP_IF_FULL" yaml:"drop_if_full"`
}

type MetricsConfig struct {
	Enabled                 bool `env:"ENABLED" yaml:"enabled"`
	EnableLatencyHistograms bool `env:"LATENCY_HISTOGRAMS" yaml:"latency_histograms"`
}

// LoggingConfig selects the zap preset. Format is "json" or "console".
type LoggingConfig struct {
	Level  string `env:"LEVEL" yaml:"level"`
	Format string `env:"FORMAT" yaml:"format"`
}

/*
====================================
DEFAULTS
====================================
*/

func defaultConfig() Config {
	return Config{
		Token: TokenConfig{
			TTL:            15 * time.Minute,
			Leeway:         30 * time.Second,
			Algorithm:      algorithm.RS256,
			Encoding:       jwt.Base64URL.String(),
			RequiredClaims: []string{jwt.ClaimIssuer, jwt.ClaimSubject, jwt.ClaimIssuedAt},
		},
		Keys: KeysConfig{
			Format:          keys.FormatJWKS.String(),
			CacheTime:       keys.DefaultCacheTime,
			RetentionWindow: 24 * time.Hour,
			VerifyTLS:       true,
			SnapshotPrefix:  "jwks:",

			MissRefreshLimit:  10,
			MissRefreshWindow: time.Minute,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 false,
			EnableLatencyHistograms: false,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.Token.AcceptIssuers = cloneStrings(cfg.Token.AcceptIssuers)
	out.Token.Audience = cloneStrings(cfg.Token.Audience)
	out.Token.RequiredClaims = cloneStrings(cfg.Token.RequiredClaims)
	return out
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	return append([]string(nil), in...)
}

/*
====================================
LOADING
====================================
*/

// LoadConfigFromEnv overlays environment variables on the defaults. With
// prefix "JWT_" the issuer is read from JWT_TOKEN_ISSUER.
func LoadConfigFromEnv(prefix string) (Config, error) {
	cfg := defaultConfig()
	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: prefix}); err != nil {
		return Config{}, fmt.Errorf("parse environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadConfigFile overlays a YAML file on the defaults. Unknown fields are
// rejected.
func LoadConfigFile(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	cfg := defaultConfig()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

/*
====================================
VALIDATION
====================================
*/

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	// Token
	if c.Token.TTL <= 0 {
		return errors.New("Token TTL must be > 0")
	}
	if c.Token.Leeway < 0 {
		return errors.New("Token Leeway must be >= 0")
	}
	if c.Token.Leeway > 10*time.Minute {
		return errors.New("Token Leeway must be <= 10m")
	}
	if strings.TrimSpace(c.Token.Algorithm) == "" {
		return errors.New("Token Algorithm must be set")
	}
	desc, err := algorithm.Lookup(algorithm.Canonical(c.Token.Algorithm))
	if err != nil {
		return fmt.Errorf("Token Algorithm %q is not supported", c.Token.Algorithm)
	}
	if desc.Family == algorithm.FamilyNone && !c.Token.AllowNone {
		return errors.New("Token Algorithm none requires AllowNone")
	}
	if desc.Family == algorithm.FamilyHMAC && c.Token.Secret == "" && c.Keys.Source == "" {
		return errors.New("HMAC algorithms require Token Secret or a Keys Source")
	}
	if _, err := jwt.ParseEncoding(c.Token.Encoding); err != nil {
		return fmt.Errorf("Token Encoding %q is not supported", c.Token.Encoding)
	}
	for _, name := range c.Token.RequiredClaims {
		if strings.TrimSpace(name) == "" {
			return errors.New("Token RequiredClaims must not contain blank names")
		}
	}
	for _, aud := range c.Token.Audience {
		if strings.TrimSpace(aud) == "" {
			return errors.New("Token Audience must not contain blank values")
		}
	}
	if strings.TrimSpace(c.Token.Issuer) != c.Token.Issuer {
		return errors.New("Token Issuer must not have surrounding whitespace")
	}

	// Keys
	if c.Keys.CacheTime <= 0 {
		return errors.New("Keys CacheTime must be > 0")
	}
	if c.Keys.RetentionWindow < 0 {
		return errors.New("Keys RetentionWindow must be >= 0")
	}
	if c.Keys.SnapshotTTL < 0 {
		return errors.New("Keys SnapshotTTL must be >= 0")
	}
	if _, err := keys.ParseFormat(c.Keys.Format); err != nil {
		return fmt.Errorf("Keys Format %q is not supported", c.Keys.Format)
	}
	if c.Keys.MissRefreshLimit < 0 {
		return errors.New("Keys MissRefreshLimit must be >= 0")
	}
	if c.Keys.MissRefreshLimit > 0 && c.Keys.MissRefreshWindow <= 0 {
		return errors.New("Keys MissRefreshWindow must be > 0 when MissRefreshLimit is set")
	}
	if c.Keys.WatchFile && isRemoteSource(c.Keys.Source) {
		return errors.New("Keys WatchFile requires a local Source")
	}

	// Audit
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when enabled")
	}

	// Logging
	if _, err := zapcore.ParseLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("Logging Level %q is not supported", c.Logging.Level)
	}
	if c.Logging.Format != "json" && c.Logging.Format != "console" {
		return errors.New("Logging Format must be json or console")
	}

	if c.ProductionMode {
		if c.Token.AllowNone {
			return errors.New("ProductionMode forbids the none algorithm")
		}
		if c.Token.TTL > time.Hour {
			return errors.New("ProductionMode requires Token TTL <= 1h")
		}
		if desc.Family == algorithm.FamilyHMAC && c.Token.Secret != "" && len(c.Token.Secret) < desc.Bits/8 {
			return fmt.Errorf("ProductionMode requires a %s secret of at least %d bytes", desc.Name, desc.Bits/8)
		}
		if !c.Keys.VerifyTLS {
			return errors.New("ProductionMode requires Keys VerifyTLS")
		}
		if len(c.Token.Audience) == 0 {
			return errors.New("ProductionMode requires Token Audience")
		}
	}

	return nil
}

func isRemoteSource(source string) bool {
	return strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://")
}
