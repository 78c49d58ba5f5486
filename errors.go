package goJWT

import (
	"errors"

	"github.com/MrEthical07/goJWT/algorithm"
	"github.com/MrEthical07/goJWT/jwt"
	"github.com/MrEthical07/goJWT/keys"
)

// Token and key errors, re-exported so callers can match them with
// errors.Is without importing the sub-packages.
var (
	ErrInvalidKeyMaterial      = algorithm.ErrInvalidKeyMaterial
	ErrAlgorithmNotFound       = algorithm.ErrAlgorithmNotFound
	ErrNoneAlgorithmNotAllowed = jwt.ErrNoneAlgorithmNotAllowed
	ErrMissingRequiredClaim    = jwt.ErrMissingRequiredClaim
	ErrInvalidClaim            = jwt.ErrInvalidClaim
	ErrTokenFormat             = jwt.ErrTokenFormat
	ErrAlgorithmMismatch       = jwt.ErrAlgorithmMismatch
	ErrInvalidSignature        = jwt.ErrInvalidSignature
	ErrTokenExpired            = jwt.ErrTokenExpired
	ErrTokenNotYetValid        = jwt.ErrTokenNotYetValid
	ErrIssuerMismatch          = jwt.ErrIssuerMismatch
	ErrAudienceMismatch        = jwt.ErrAudienceMismatch
	ErrClaimMismatch           = jwt.ErrClaimMismatch
	ErrLeewayInvalid           = jwt.ErrLeewayInvalid

	ErrSourceImport     = keys.ErrSourceImport
	ErrUpdateFailed     = keys.ErrUpdateFailed
	ErrMissingETag      = keys.ErrMissingETag
	ErrMissingKeys      = keys.ErrMissingKeys
	ErrUnknownKeyType   = keys.ErrUnknownKeyType
	ErrKeyNotFound      = keys.ErrKeyNotFound
	ErrRefreshThrottled = keys.ErrRefreshThrottled
)

var (
	ErrBuilderUsed = errors.New("builder already used")
	// ErrNoSigningKey means neither a signing algorithm, key material in
	// the configuration nor a key bundle was supplied.
	ErrNoSigningKey = errors.New("no signing algorithm or key bundle configured")
	ErrEngineClosed = errors.New("engine closed")
	ErrNilBuilder   = errors.New("nil token builder")
)
