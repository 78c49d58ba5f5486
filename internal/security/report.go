package security

import (
	"sort"
	"time"
)

// KeyReport describes the key bundle behind verification.
type KeyReport struct {
	Source           string        `json:"source" yaml:"source"`
	Remote           bool          `json:"remote" yaml:"remote"`
	State            string        `json:"state" yaml:"state"`
	ActiveKeys       int           `json:"active_keys" yaml:"active_keys"`
	InactiveKeys     int           `json:"inactive_keys" yaml:"inactive_keys"`
	CacheTime        time.Duration `json:"cache_time" yaml:"cache_time"`
	RetentionWindow  time.Duration `json:"retention_window" yaml:"retention_window"`
	StrictETag       bool          `json:"strict_etag" yaml:"strict_etag"`
	VerifyTLS        bool          `json:"verify_tls" yaml:"verify_tls"`
	MissRefreshLimit int           `json:"miss_refresh_limit" yaml:"miss_refresh_limit"`
}

// Report is a flat summary of the checks an engine applies.
type Report struct {
	ProductionMode  bool          `json:"production_mode" yaml:"production_mode"`
	Algorithm       string        `json:"algorithm" yaml:"algorithm"`
	AlgorithmFamily string        `json:"algorithm_family" yaml:"algorithm_family"`
	Encoding        string        `json:"encoding" yaml:"encoding"`
	TokenTTL        time.Duration `json:"token_ttl" yaml:"token_ttl"`
	Leeway          time.Duration `json:"leeway" yaml:"leeway"`
	NoneAccepted    bool          `json:"none_accepted" yaml:"none_accepted"`
	IssuerChecked   bool          `json:"issuer_checked" yaml:"issuer_checked"`
	AudienceChecked bool          `json:"audience_checked" yaml:"audience_checked"`
	RequiredClaims  []string      `json:"required_claims" yaml:"required_claims"`
	Keys            *KeyReport    `json:"keys,omitempty" yaml:"keys,omitempty"`
	AuditEnabled    bool          `json:"audit_enabled" yaml:"audit_enabled"`
	MetricsEnabled  bool          `json:"metrics_enabled" yaml:"metrics_enabled"`
	LintFindings    []string      `json:"lint_findings,omitempty" yaml:"lint_findings,omitempty"`
}

type ReportInput struct {
	ProductionMode  bool
	Algorithm       string
	AlgorithmFamily string
	Encoding        string
	TokenTTL        time.Duration
	Leeway          time.Duration
	AllowNone       bool
	Issuer          string
	AcceptIssuers   []string
	Audience        []string
	RequiredClaims  []string
	Keys            *KeyReport
	AuditEnabled    bool
	MetricsEnabled  bool
	LintCodes       []string
}

func BuildReport(input ReportInput) Report {
	required := append([]string(nil), input.RequiredClaims...)
	sort.Strings(required)
	lint := append([]string(nil), input.LintCodes...)
	sort.Strings(lint)

	return Report{
		ProductionMode:  input.ProductionMode,
		Algorithm:       input.Algorithm,
		AlgorithmFamily: input.AlgorithmFamily,
		Encoding:        input.Encoding,
		TokenTTL:        input.TokenTTL,
		Leeway:          input.Leeway,
		NoneAccepted:    input.AllowNone || input.AlgorithmFamily == "none",
		IssuerChecked:   input.Issuer != "" || len(input.AcceptIssuers) > 0,
		AudienceChecked: len(input.Audience) > 0,
		RequiredClaims:  required,
		Keys:            input.Keys,
		AuditEnabled:    input.AuditEnabled,
		MetricsEnabled:  input.MetricsEnabled,
		LintFindings:    lint,
	}
}
