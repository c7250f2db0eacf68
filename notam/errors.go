package notam

import "errors"

// Error kinds surfaced by the core. Wrap with fmt.Errorf("%w: ...") and
// match with errors.Is at the HTTP boundary.
var (
	// ErrValidation marks bad or missing request input. Not retryable.
	ErrValidation = errors.New("validation error")
	// ErrConfig marks missing credentials or configuration.
	ErrConfig = errors.New("config error")
	// ErrUpstream marks a non-2xx status, transport failure or
	// undecodable body from the provider or its auth endpoint.
	ErrUpstream = errors.New("upstream error")
	// ErrProtocol marks an internal response shape violation, i.e. a
	// logic defect rather than an input problem.
	ErrProtocol = errors.New("protocol error")
	// ErrStore marks an unavailable cache backend. Treated as fatal for
	// the request instead of silently bypassing the cache.
	ErrStore = errors.New("store error")
)
