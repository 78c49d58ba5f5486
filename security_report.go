package goJWT

import (
	"context"

	"github.com/MrEthical07/goJWT/internal/security"
)

// SecurityReport summarises what an engine checks. KeyBundleReport is nil
// for engines without a key bundle.
type (
	SecurityReport  = security.Report
	KeyBundleReport = security.KeyReport
)

// SecurityReport describes the engine's effective settings. With a remote
// key bundle the key counts may trigger a lazy refresh.
func (e *Engine) SecurityReport(ctx context.Context) SecurityReport {
	if e == nil {
		return SecurityReport{}
	}
	cfg := e.config

	var keyReport *KeyBundleReport
	if e.bundle != nil {
		kr := &KeyBundleReport{
			Source:           e.bundle.Source(),
			Remote:           e.bundle.IsRemote(),
			CacheTime:        cfg.Keys.CacheTime,
			RetentionWindow:  cfg.Keys.RetentionWindow,
			StrictETag:       cfg.Keys.StrictETag,
			VerifyTLS:        cfg.Keys.VerifyTLS,
			MissRefreshLimit: cfg.Keys.MissRefreshLimit,
		}
		for _, k := range e.bundle.Keys(ctx) {
			if k.Active() {
				kr.ActiveKeys++
			} else {
				kr.InactiveKeys++
			}
		}
		kr.State = e.bundle.State().String()
		keyReport = kr
	}

	return security.BuildReport(security.ReportInput{
		ProductionMode:  cfg.ProductionMode,
		Algorithm:       e.alg.Name(),
		AlgorithmFamily: e.alg.Family().String(),
		Encoding:        e.encoding.String(),
		TokenTTL:        cfg.Token.TTL,
		Leeway:          cfg.Token.Leeway,
		AllowNone:       cfg.Token.AllowNone,
		Issuer:          cfg.Token.Issuer,
		AcceptIssuers:   cfg.Token.AcceptIssuers,
		Audience:        cfg.Token.Audience,
		RequiredClaims:  cfg.Token.RequiredClaims,
		Keys:            keyReport,
		AuditEnabled:    cfg.Audit.Enabled,
		MetricsEnabled:  cfg.Metrics.Enabled,
		LintCodes:       cfg.Lint().BySeverity(LintWarn).Codes(),
	})
}
