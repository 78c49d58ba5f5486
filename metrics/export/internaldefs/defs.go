package internaldefs

import (
	goJWT "github.com/MrEthical07/goJWT"
	"github.com/MrEthical07/goJWT/keys"
)

type CounterDef struct {
	ID   goJWT.MetricID
	Name string
	Help string
}

type HistogramDef struct {
	ID   goJWT.MetricID
	Name string
	Help string
}

// CounterDefs lists every engine counter in exposition order.
var CounterDefs = []CounterDef{
	{ID: goJWT.MetricSignSuccess, Name: "gojwt_sign_success_total", Help: "Tokens signed."},
	{ID: goJWT.MetricSignFailure, Name: "gojwt_sign_failure_total", Help: "Signing attempts that failed."},
	{ID: goJWT.MetricVerifySuccess, Name: "gojwt_verify_success_total", Help: "Tokens that passed verification."},
	{ID: goJWT.MetricVerifyMalformed, Name: "gojwt_verify_malformed_total", Help: "Tokens rejected as malformed."},
	{ID: goJWT.MetricVerifyAlgorithmMismatch, Name: "gojwt_verify_algorithm_mismatch_total", Help: "Tokens signed with an unexpected algorithm."},
	{ID: goJWT.MetricVerifyInvalidSignature, Name: "gojwt_verify_invalid_signature_total", Help: "Tokens with a signature that does not verify."},
	{ID: goJWT.MetricVerifyExpired, Name: "gojwt_verify_expired_total", Help: "Tokens rejected as expired."},
	{ID: goJWT.MetricVerifyNotYetValid, Name: "gojwt_verify_not_yet_valid_total", Help: "Tokens rejected before nbf or with a future iat."},
	{ID: goJWT.MetricVerifyIssuerMismatch, Name: "gojwt_verify_issuer_mismatch_total", Help: "Tokens from an unaccepted issuer."},
	{ID: goJWT.MetricVerifyAudienceMismatch, Name: "gojwt_verify_audience_mismatch_total", Help: "Tokens for an unaccepted audience."},
	{ID: goJWT.MetricVerifyClaimMismatch, Name: "gojwt_verify_claim_mismatch_total", Help: "Tokens failing a required claim value."},
	{ID: goJWT.MetricVerifyKeyUnavailable, Name: "gojwt_verify_key_unavailable_total", Help: "Tokens whose key could not be resolved."},
	{ID: goJWT.MetricKeysRefreshUpdated, Name: "gojwt_keys_refresh_updated_total", Help: "Key bundle refreshes that replaced the key set."},
	{ID: goJWT.MetricKeysRefreshNotModified, Name: "gojwt_keys_refresh_not_modified_total", Help: "Key bundle refreshes answered with 304."},
	{ID: goJWT.MetricKeysRefreshFailure, Name: "gojwt_keys_refresh_failure_total", Help: "Key bundle refreshes that failed."},
	{ID: goJWT.MetricKeysRotated, Name: "gojwt_keys_rotated_total", Help: "Keys marked inactive by a refresh."},
	{ID: goJWT.MetricKeysPruned, Name: "gojwt_keys_pruned_total", Help: "Inactive keys removed after the retention window."},
}

var HistogramDefs = []HistogramDef{
	{ID: goJWT.MetricVerifyLatency, Name: "gojwt_verify_latency_seconds", Help: "Verify latency histogram."},
}

// Key bundle gauges, exported only for engines with a key bundle.
const (
	KeysActiveName      = "gojwt_keys_active"
	KeysActiveHelp      = "Active keys in the key bundle."
	KeysInactiveName    = "gojwt_keys_inactive"
	KeysInactiveHelp    = "Rotated-out keys still accepted for verification."
	KeysLastUpdatedName = "gojwt_keys_last_update_timestamp_seconds"
	KeysLastUpdatedHelp = "Unix time of the last key set change, 0 before the first load."
)

// AuditDroppedName is exported alongside the engine counters.
const (
	AuditDroppedName = "gojwt_audit_dropped_total"
	AuditDroppedHelp = "Dropped audit events due to dispatcher backpressure."
)

// HistogramUpperBounds are the finite bucket bounds in seconds. The last
// engine bucket is +Inf.
var HistogramUpperBounds = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5}

var HistogramBounds = []string{
	"0.005",
	"0.01",
	"0.025",
	"0.05",
	"0.1",
	"0.25",
	"0.5",
	"+Inf",
}

var HistogramBoundSuffix = []string{
	"0_005",
	"0_01",
	"0_025",
	"0_05",
	"0_1",
	"0_25",
	"0_5",
	"inf",
}

// NormalizeBuckets copies raw into a fixed array, zero-filling missing
// buckets.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}

// KeyStatsSource is implemented by sources that can report key bundle
// counts. ok is false when there is no bundle.
type KeyStatsSource interface {
	KeyStats() (stats keys.Stats, ok bool)
}

// KeyStats asks source for bundle counts when it supports them.
func KeyStats(source any) (keys.Stats, bool) {
	ks, ok := source.(KeyStatsSource)
	if !ok {
		return keys.Stats{}, false
	}
	return ks.KeyStats()
}

// UnixSeconds is 0 for the zero time.
func UnixSeconds(st keys.Stats) int64 {
	if st.LastUpdated.IsZero() {
		return 0
	}
	return st.LastUpdated.Unix()
}
