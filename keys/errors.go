package keys

import (
	"errors"
	"fmt"
)

var (
	// ErrSourceImport reports a key source that cannot be used at all: a
	// missing file, an unsupported scheme or an unreadable file format.
	ErrSourceImport = errors.New("key source import failed")
	// ErrUpdateFailed reports a refresh that did not replace the key set.
	ErrUpdateFailed = errors.New("key bundle update failed")
	// ErrMissingETag is returned in strict mode when a 200 response has no ETag.
	ErrMissingETag = errors.New("response carries no ETag")
	// ErrMissingKeys reports a JWKS document without a "keys" member.
	ErrMissingKeys = errors.New(`JWKS document has no "keys" member`)
	ErrUnknownKeyType = errors.New("unknown key type")
	ErrKeyNotFound    = errors.New("key not found")
	ErrInvalidUse     = errors.New("invalid key use")
	// ErrRefreshThrottled is joined to ErrKeyNotFound when a kid miss was
	// not allowed to refetch the source.
	ErrRefreshThrottled = errors.New("kid miss refresh throttled")
)

// UpdateError describes a failed refresh. StatusCode is zero when no HTTP
// response was received.
type UpdateError struct {
	Source     string
	StatusCode int
	Err        error
}

func (e *UpdateError) Error() string {
	switch {
	case e.StatusCode != 0 && e.Err != nil:
		return fmt.Sprintf("update %s: status %d: %v", e.Source, e.StatusCode, e.Err)
	case e.StatusCode != 0:
		return fmt.Sprintf("update %s: unexpected status %d", e.Source, e.StatusCode)
	case e.Err != nil:
		return fmt.Sprintf("update %s: %v", e.Source, e.Err)
	default:
		return fmt.Sprintf("update %s failed", e.Source)
	}
}

func (e *UpdateError) Is(target error) bool { return target == ErrUpdateFailed }
func (e *UpdateError) Unwrap() error        { return e.Err }
