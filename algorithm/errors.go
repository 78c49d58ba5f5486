package algorithm

import "errors"

var (
	// ErrInvalidKeyMaterial reports key material that cannot serve the algorithm:
	// missing keys, empty secrets, wrong key types or curve sizes.
	ErrInvalidKeyMaterial = errors.New("invalid key material")
	// ErrAlgorithmNotFound reports an algorithm name absent from the registry.
	ErrAlgorithmNotFound = errors.New("algorithm not found")
)
