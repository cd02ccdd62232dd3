package relay

import "errors"

// Sentinel errors for relay operations.
var (
	// ErrShuttingDown indicates the instance no longer accepts requests.
	// Acceptors should close their listeners and drain.
	ErrShuttingDown = errors.New("relay: shutting down")
)
