package weather

import "errors"

var (
	// ErrUpstreamFetch covers transport failures, timeouts and non-2xx replies from a provider.
	ErrUpstreamFetch = errors.New("upstream fetch failed")
	// ErrUpstreamPayload is returned when a provider reply is malformed or incomplete.
	ErrUpstreamPayload = errors.New("upstream payload invalid")
	// ErrStorageUnavailable wraps any connection or operation failure against the store.
	ErrStorageUnavailable = errors.New("storage unavailable")
	// ErrInvalidQueryParameter is reserved. Query parameters are normalized, not rejected.
	ErrInvalidQueryParameter = errors.New("invalid query parameter")
)
