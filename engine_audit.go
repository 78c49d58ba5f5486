package goJWT

import (
	"context"
	"errors"
	"strconv"

	"github.com/MrEthical07/goJWT/jwt"
	"github.com/MrEthical07/goJWT/keys"
)

const (
	auditEventTokenIssued       = "token_issued"
	auditEventTokenRejected     = "token_rejected"
	auditEventKeysRefreshed     = "keys_refreshed"
	auditEventKeysRefreshFailed = "keys_refresh_failed"
	auditEventKeysRotated       = "keys_rotated"
	auditEventKeysPruned        = "keys_pruned"
)

// AuditErrorCode is the stable reason written to AuditEvent.Error. Raw
// error strings are never audited.
type AuditErrorCode string

const (
	auditErrMalformed         AuditErrorCode = "malformed"
	auditErrAlgorithmMismatch AuditErrorCode = "algorithm_mismatch"
	auditErrKeyNotFound       AuditErrorCode = "key_not_found"
	auditErrInvalidKey        AuditErrorCode = "invalid_key"
	auditErrInvalidSignature  AuditErrorCode = "invalid_signature"
	auditErrExpired           AuditErrorCode = "expired"
	auditErrNotYetValid       AuditErrorCode = "not_yet_valid"
	auditErrIssuerMismatch    AuditErrorCode = "issuer_mismatch"
	auditErrAudienceMismatch  AuditErrorCode = "audience_mismatch"
	auditErrClaimMismatch     AuditErrorCode = "claim_mismatch"
	auditErrMissingClaim      AuditErrorCode = "missing_claim"
	auditErrInvalidClaim      AuditErrorCode = "invalid_claim"
	auditErrNoneNotAllowed    AuditErrorCode = "none_not_allowed"
	auditErrMissingETag       AuditErrorCode = "missing_etag"
	auditErrMissingKeys       AuditErrorCode = "missing_keys"
	auditErrSourceImport      AuditErrorCode = "source_import"
	auditErrUpdateFailed      AuditErrorCode = "update_failed"
	auditErrCanceled          AuditErrorCode = "canceled"
	auditErrInternal          AuditErrorCode = "internal_error"
)

func (e *Engine) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	subject string,
	tokenID string,
	keyID string,
	source string,
	err error,
	metadataBuilder func() map[string]string,
) {
	if e == nil || e.audit == nil {
		return
	}

	var metadata map[string]string
	if metadataBuilder != nil {
		metadata = metadataBuilder()
	}
	metadata = withRequestMetadata(ctx, metadata)

	event := AuditEvent{
		Timestamp: e.clock().UTC(),
		EventType: eventType,
		Subject:   subject,
		TokenID:   tokenID,
		KeyID:     keyID,
		Source:    source,
		Success:   success,
		Metadata:  metadata,
	}
	if code := auditErrorCode(err); code != "" {
		event.Error = string(code)
	}

	e.audit.Emit(ctx, event)
}

func refreshMetadata(ev keys.RefreshEvent) map[string]string {
	md := map[string]string{
		"outcome":     ev.Outcome.String(),
		"keys":        itoa(ev.Keys),
		"duration_ms": strconv.FormatInt(ev.Duration.Milliseconds(), 10),
	}
	if ev.StatusCode != 0 {
		md["status"] = itoa(ev.StatusCode)
	}
	if ev.Rotated > 0 {
		md["rotated"] = itoa(ev.Rotated)
	}
	return md
}

func itoa(n int) string { return strconv.Itoa(n) }

// auditErrorCode classifies err. Key lookups are checked before signature
// failures because an unresolvable key is reported as both.
func auditErrorCode(err error) AuditErrorCode {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, jwt.ErrTokenFormat):
		return auditErrMalformed
	case errors.Is(err, jwt.ErrAlgorithmMismatch):
		return auditErrAlgorithmMismatch
	case errors.Is(err, keys.ErrKeyNotFound):
		return auditErrKeyNotFound
	case errors.Is(err, jwt.ErrInvalidKeyMaterial):
		return auditErrInvalidKey
	case errors.Is(err, jwt.ErrInvalidSignature):
		return auditErrInvalidSignature
	case errors.Is(err, jwt.ErrTokenExpired):
		return auditErrExpired
	case errors.Is(err, jwt.ErrTokenNotYetValid):
		return auditErrNotYetValid
	case errors.Is(err, jwt.ErrIssuerMismatch):
		return auditErrIssuerMismatch
	case errors.Is(err, jwt.ErrAudienceMismatch):
		return auditErrAudienceMismatch
	case errors.Is(err, jwt.ErrClaimMismatch):
		return auditErrClaimMismatch
	case errors.Is(err, jwt.ErrMissingRequiredClaim):
		return auditErrMissingClaim
	case errors.Is(err, jwt.ErrInvalidClaim):
		return auditErrInvalidClaim
	case errors.Is(err, jwt.ErrNoneAlgorithmNotAllowed):
		return auditErrNoneNotAllowed
	case errors.Is(err, keys.ErrMissingETag):
		return auditErrMissingETag
	case errors.Is(err, keys.ErrMissingKeys):
		return auditErrMissingKeys
	case errors.Is(err, keys.ErrSourceImport):
		return auditErrSourceImport
	case errors.Is(err, keys.ErrUpdateFailed):
		return auditErrUpdateFailed
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return auditErrCanceled
	default:
		return auditErrInternal
	}
}

func verifyFailureMetric(err error) MetricID {
	switch auditErrorCode(err) {
	case auditErrMalformed:
		return MetricVerifyMalformed
	case auditErrAlgorithmMismatch:
		return MetricVerifyAlgorithmMismatch
	case auditErrKeyNotFound, auditErrInvalidKey:
		return MetricVerifyKeyUnavailable
	case auditErrExpired:
		return MetricVerifyExpired
	case auditErrNotYetValid:
		return MetricVerifyNotYetValid
	case auditErrIssuerMismatch:
		return MetricVerifyIssuerMismatch
	case auditErrAudienceMismatch:
		return MetricVerifyAudienceMismatch
	case auditErrClaimMismatch:
		return MetricVerifyClaimMismatch
	default:
		return MetricVerifyInvalidSignature
	}
}

