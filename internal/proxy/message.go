package proxy

// MessageType discriminates the variant carried by a Message.
type MessageType uint8

// Message types delivered to a worker's event loop.
const (
	// MessageRequest transfers ownership of a RequestContext to the worker.
	MessageRequest MessageType = iota

	// MessageOldConfig returns a displaced config handle to the worker so
	// its teardown runs on the worker goroutine.
	MessageOldConfig

	// MessageShutdown carries no payload. It exists solely to wake the
	// event loop so it can observe the shutdown flag.
	MessageShutdown
)

// Message is the tagged union flowing through the MessageQueue. At most one
// payload field is set, matching Type; a shutdown message carries none.
type Message struct {
	Type      MessageType
	Request   *RequestContext
	OldConfig *ConfigHandle
}
