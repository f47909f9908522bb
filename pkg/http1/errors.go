package http1

import "errors"

// Client and server errors.
var (
	// ErrParam is returned for bad caller arguments.
	ErrParam = errors.New("http1: invalid parameter")
	// ErrURI is returned when a URI cannot be parsed.
	ErrURI = errors.New("http1: invalid uri")
	// ErrOrder is returned when an operation is not valid in the current state.
	ErrOrder = errors.New("http1: operation out of order")
	// ErrNet is returned for transport failures. The connection is closed.
	ErrNet = errors.New("http1: network error")
	// ErrClosed is returned when the peer closed the connection.
	ErrClosed = errors.New("http1: connection closed")
	// ErrTimeout is returned when a bounded wait expired.
	ErrTimeout = errors.New("http1: timeout")
	// ErrVersion is returned for an unsupported protocol version.
	ErrVersion = errors.New("http1: unsupported version")
	// ErrMalformedChunk is returned for an unparsable chunk-size line.
	ErrMalformedChunk = errors.New("http1: malformed chunk")
	// ErrAddress is returned when the server cannot listen on its address.
	ErrAddress = errors.New("http1: cannot listen on address")
	// ErrMemory is returned when an accumulator cannot grow.
	ErrMemory = errors.New("http1: out of memory")
)
