package protocol

import "fmt"

// Reply is the outcome of one request.
type Reply struct {
	Result  Result
	Value   []byte
	Flags   uint32
	Message string
}

// NewReply returns a reply with the given result and no payload.
func NewReply(result Result) Reply {
	return Reply{Result: result}
}

// BusyReply returns the admission-shedding reply.
func BusyReply() Reply {
	return Reply{Result: ResultBusy}
}

// ErrorReply returns a local-error reply carrying a diagnostic message.
func ErrorReply(format string, args ...any) Reply {
	return Reply{Result: ResultLocalError, Message: fmt.Sprintf(format, args...)}
}

// ValueReply returns an OK reply carrying a value payload.
func ValueReply(value []byte) Reply {
	return Reply{Result: ResultOK, Value: value}
}

// IsError reports whether the reply represents a failure.
func (r Reply) IsError() bool {
	return r.Result.IsError()
}
