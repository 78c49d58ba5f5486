package goJWT

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MrEthical07/goJWT/algorithm"
)

// LintSeverity ranks a configuration warning.
type LintSeverity int

const (
	LintInfo LintSeverity = iota
	LintWarn
	LintHigh
)

func (s LintSeverity) String() string {
	switch s {
	case LintInfo:
		return "INFO"
	case LintWarn:
		return "WARN"
	case LintHigh:
		return "HIGH"
	default:
		return fmt.Sprintf("LintSeverity(%d)", int(s))
	}
}

// LintWarning is a valid but questionable setting.
type LintWarning struct {
	Code     string
	Severity LintSeverity
	Message  string
}

type LintWarnings []LintWarning

func (ws LintWarnings) Codes() []string {
	out := make([]string, len(ws))
	for i, w := range ws {
		out[i] = w.Code
	}
	return out
}

// BySeverity keeps warnings at or above min.
func (ws LintWarnings) BySeverity(min LintSeverity) LintWarnings {
	var out LintWarnings
	for _, w := range ws {
		if w.Severity >= min {
			out = append(out, w)
		}
	}
	return out
}

// AsError joins warnings at or above min into one error, or returns nil.
func (ws LintWarnings) AsError(min LintSeverity) error {
	selected := ws.BySeverity(min)
	if len(selected) == 0 {
		return nil
	}
	msgs := make([]string, len(selected))
	for i, w := range selected {
		msgs[i] = fmt.Sprintf("[%s] %s: %s", w.Severity, w.Code, w.Message)
	}
	return errors.New("config lint: " + strings.Join(msgs, "; "))
}

// Lint inspects a configuration that passes Validate for settings that are
// legal but risky.
func (c *Config) Lint() LintWarnings {
	var ws LintWarnings
	add := func(code string, sev LintSeverity, msg string) {
		ws = append(ws, LintWarning{Code: code, Severity: sev, Message: msg})
	}

	if c.Token.Leeway > time.Minute {
		add("leeway_large", LintWarn, "leeway above 1m widens the replay window")
	}
	if c.Token.TTL > 30*time.Minute {
		add("token_ttl_long", LintWarn, "tokens live longer than 30m")
	}
	if c.Token.AllowNone {
		add("none_allowed", LintHigh, "unsigned tokens are accepted")
	}
	if desc, err := algorithm.Lookup(algorithm.Canonical(c.Token.Algorithm)); err == nil && desc.Family == algorithm.FamilyHMAC {
		add("hmac_shared_secret", LintInfo, "HMAC requires every verifier to hold the signing secret")
	}
	if len(c.Token.Audience) == 0 {
		add("audience_unchecked", LintWarn, "no audience configured; tokens for any audience are accepted")
	}
	if c.Token.Issuer == "" && len(c.Token.AcceptIssuers) == 0 {
		add("issuer_unchecked", LintWarn, "no issuer configured; tokens from any issuer are accepted")
	}
	if !c.Keys.VerifyTLS && isRemoteSource(c.Keys.Source) {
		add("jwks_tls_unverified", LintHigh, "remote JWKS fetched without certificate verification")
	}
	if strings.HasPrefix(c.Keys.Source, "http://") {
		add("jwks_plain_http", LintHigh, "remote JWKS fetched over plain HTTP")
	}
	if c.Keys.Source != "" && c.Keys.RetentionWindow == 0 {
		add("retention_zero", LintWarn, "rotated keys are pruned immediately; tokens they signed stop verifying")
	}
	if isRemoteSource(c.Keys.Source) && c.Keys.MissRefreshLimit == 0 {
		add("kid_miss_unbounded", LintWarn, "unknown key ids may refetch the remote JWKS without limit")
	}
	if !c.Audit.Enabled {
		add("audit_disabled", LintInfo, "token and key events are not audited")
	}
	return ws
}
