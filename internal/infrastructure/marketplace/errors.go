package marketplace

import "errors"

// maxResponseSize is the maximum allowed response size from marketplace APIs (10MB)
const maxResponseSize = 10 * 1024 * 1024

// Common errors
var (
	ErrUnavailable   = errors.New("marketplace: platform unavailable")
	ErrRequestFailed = errors.New("marketplace: request failed")
	ErrAuthFailed    = errors.New("marketplace: authorization failed")
)
