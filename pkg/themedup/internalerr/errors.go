package internalerr

import "errors"

// Sentinel errors for common cases
var (
	ErrInvalidInput        = errors.New("invalid input")
	ErrInvalidConfig       = errors.New("invalid configuration")
	ErrStoreUnavailable    = errors.New("store unavailable")
	ErrProviderUnavailable = errors.New("embedding provider unavailable")
	ErrMalformedEmbedding  = errors.New("malformed embedding")
)
