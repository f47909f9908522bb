package ringbuf

import "errors"

// Buffer errors.
var (
	// ErrParam is returned for invalid arguments (negative sizes, nil buffer).
	ErrParam = errors.New("ringbuf: invalid parameter")
	// ErrMode is returned when the access discipline is neither Queue nor Stack.
	ErrMode = errors.New("ringbuf: invalid mode")
	// ErrFull is returned when a non-growable buffer cannot take more data,
	// or when Init is called on a buffer that is already initialized.
	ErrFull = errors.New("ringbuf: buffer full")
	// ErrOutOfMemory is returned when storage cannot be grown.
	ErrOutOfMemory = errors.New("ringbuf: out of memory")
)
