package jwt

import (
	"errors"
	"fmt"

	"github.com/MrEthical07/goJWT/algorithm"
)

var (
	// ErrInvalidKeyMaterial is shared with package algorithm.
	ErrInvalidKeyMaterial = algorithm.ErrInvalidKeyMaterial

	ErrNoneAlgorithmNotAllowed = errors.New("none algorithm not allowed")
	ErrMissingRequiredClaim    = errors.New("missing required claim")
	ErrInvalidClaim            = errors.New("invalid claim")

	ErrTokenFormat       = errors.New("malformed token")
	ErrAlgorithmMismatch = errors.New("algorithm mismatch")
	ErrInvalidSignature  = errors.New("invalid signature")
	ErrTokenExpired      = errors.New("token expired")
	ErrTokenNotYetValid  = errors.New("token not yet valid")
	ErrIssuerMismatch    = errors.New("issuer mismatch")
	ErrAudienceMismatch  = errors.New("audience mismatch")
	ErrClaimMismatch     = errors.New("claim mismatch")
	ErrLeewayInvalid     = errors.New("leeway value can't be negative")
)

// MissingClaimError names the first required claim left unset at signing.
type MissingClaimError struct {
	Name string
}

func (e *MissingClaimError) Error() string {
	return fmt.Sprintf("missing required claim %q", e.Name)
}

func (e *MissingClaimError) Is(target error) bool {
	return target == ErrMissingRequiredClaim
}

// ClaimError names a claim whose value does not match the expected one.
type ClaimError struct {
	Name string
}

func (e *ClaimError) Error() string {
	return fmt.Sprintf("claim %q mismatch", e.Name)
}

func (e *ClaimError) Is(target error) bool {
	return target == ErrClaimMismatch
}
