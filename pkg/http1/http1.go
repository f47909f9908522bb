// Package http1 implements an HTTP/1.x client and a worker-pool server
// over plain TCP.
//
// The client keeps one connection per Client, reused while the server
// agrees to keep it alive, and reads response bodies under fixed-length,
// chunked or read-until-close framing. The server dispatches accepted
// connections to a fixed pool of reusable workers and answers overload with
// an immediate 503 instead of queueing.
package http1

// Version is a negotiated protocol version.
type Version int

const (
	// Version09 is a legacy exchange with no header section.
	Version09 Version = iota + 1
	// Version10 is HTTP/1.0.
	Version10
	// Version11 is HTTP/1.1.
	Version11
)

// String returns the version as it appears on the wire.
func (v Version) String() string {
	switch v {
	case Version09:
		return "HTTP/0.9"
	case Version10:
		return "HTTP/1.0"
	case Version11:
		return "HTTP/1.1"
	default:
		return "unknown"
	}
}

// Framing is how the end of a response body is found.
type Framing int

const (
	// FramingFixed reads exactly Content-Length bytes.
	FramingFixed Framing = iota + 1
	// FramingChunked reads chunked transfer encoding.
	FramingChunked
	// FramingUntilClose reads until the peer closes.
	FramingUntilClose
)

// String returns the framing name.
func (f Framing) String() string {
	switch f {
	case FramingFixed:
		return "fixed"
	case FramingChunked:
		return "chunked"
	case FramingUntilClose:
		return "until-close"
	default:
		return "none"
	}
}

const crlf = "\r\n"

// maxHostname bounds the host[:port] part of a client URI.
const maxHostname = 1024 + 32

// headerStep is the initial size and growth of header accumulators.
const headerStep = 1024

// endOfHeader advances the blank-line detector with one byte. state counts
// the bytes of "\r\n\r\n" matched so far and is 4 when the header is done.
func endOfHeader(state int, ch byte) int {
	if state%2 == 0 {
		if ch == '\r' {
			return state + 1
		}
		return 0
	}
	if ch == '\n' {
		return state + 1
	}
	return 0
}
