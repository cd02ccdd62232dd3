package protocol

import (
	"bytes"
	"time"
)

// InternalKeyPrefix marks keys intercepted by the proxy itself instead of
// being routed to a backend. The remainder of the key selects a diagnostic
// sub-endpoint.
const InternalKeyPrefix = "__mcrouter__."

// Request is one parsed client operation. It is treated as immutable once
// handed to the routing core; identity is the arrival instance.
type Request struct {
	Kind    Kind
	Key     []byte
	Value   []byte
	Flags   uint32
	Exptime int32

	// ReceivedAt is stamped by the transport when the request was parsed.
	ReceivedAt time.Time
}

// KeyString returns the key as a string.
func (r *Request) KeyString() string {
	return string(r.Key)
}

// HasInternalKey reports whether the key lives in the proxy's internal
// diagnostic namespace.
func (r *Request) HasInternalKey() bool {
	return bytes.HasPrefix(r.Key, []byte(InternalKeyPrefix))
}

// InternalKeySuffix returns the key with the internal prefix stripped.
// Callers must check HasInternalKey first.
func (r *Request) InternalKeySuffix() string {
	return string(r.Key[len(InternalKeyPrefix):])
}
