// Package ringbuf provides a growable circular byte buffer with FIFO (queue)
// and LIFO (stack) access disciplines.
//
// The buffer is used to accumulate protocol bytes that arrive in arbitrary
// increments and to hold codec output. It is not safe for concurrent use.
package ringbuf

// Mode selects the access discipline of a Buffer.
type Mode int

const (
	// ModeNone marks an uninitialized or freed buffer.
	ModeNone Mode = iota
	// ModeQueue reads the oldest bytes first.
	ModeQueue
	// ModeStack reads the most recently written bytes first.
	ModeStack
)

// maxCapacity bounds storage growth. Requests beyond it fail with ErrOutOfMemory
// instead of letting the runtime abort the process.
const maxCapacity = 1 << 36

// String returns the mode name.
func (m Mode) String() string {
	switch m {
	case ModeQueue:
		return "queue"
	case ModeStack:
		return "stack"
	default:
		return "none"
	}
}

// Buffer is a circular byte buffer.
//
// head is the write cursor and tail the read cursor. Stored bytes run from
// tail to head, wrapping at the end of storage.
type Buffer struct {
	mem  []byte
	head int
	tail int
	n    int
	grow int
	mode Mode
}

// New allocates and initializes a buffer. See Init.
func New(size int, mode Mode, grow int, seed []byte) (*Buffer, error) {
	b := &Buffer{}
	if err := b.Init(size, mode, grow, seed); err != nil {
		return nil, err
	}
	return b, nil
}

// Init sets up the buffer with size bytes of storage. grow is the increment
// used when more space is needed; with grow == 0 the buffer never grows and
// Put fails with ErrFull instead. seed, if non-empty, is stored immediately.
//
// Init on a buffer that is already initialized fails with ErrFull so a live
// buffer is never silently discarded; call Free first.
func (b *Buffer) Init(size int, mode Mode, grow int, seed []byte) error {
	if b == nil || size < 0 || grow < 0 || (size == 0 && grow == 0) {
		return ErrParam
	}
	if b.mode != ModeNone {
		return ErrFull
	}
	if mode != ModeQueue && mode != ModeStack {
		return ErrMode
	}
	if size > maxCapacity {
		return ErrOutOfMemory
	}

	*b = Buffer{
		mem:  make([]byte, size),
		grow: grow,
		mode: mode,
	}
	if len(seed) > 0 {
		if err := b.Put(seed); err != nil {
			*b = Buffer{}
			return err
		}
	}
	return nil
}

// Len returns the number of stored bytes.
func (b *Buffer) Len() int {
	if b == nil {
		return 0
	}
	return b.n
}

// Cap returns the current storage size.
func (b *Buffer) Cap() int {
	if b == nil {
		return 0
	}
	return len(b.mem)
}

// Mode returns the access discipline, or ModeNone for a freed buffer.
func (b *Buffer) Mode() Mode {
	if b == nil {
		return ModeNone
	}
	return b.mode
}

// Put appends (queue) or pushes (stack) p, growing storage first if needed.
// On failure the stored data is left untouched.
func (b *Buffer) Put(p []byte) error {
	if b == nil || b.mode == ModeNone {
		return ErrParam
	}
	if len(p) == 0 {
		return nil
	}
	if err := b.ensure(len(p)); err != nil {
		return err
	}

	k := copy(b.mem[b.head:], p)
	b.head += k
	if b.head == len(b.mem) {
		b.head = 0
	}
	if k < len(p) {
		b.head = copy(b.mem, p[k:])
	}
	b.n += len(p)
	return nil
}

// Write implements io.Writer on top of Put.
func (b *Buffer) Write(p []byte) (int, error) {
	if err := b.Put(p); err != nil {
		return 0, err
	}
	return len(p), nil
}

// Get removes up to len(p) bytes into p and returns the count removed.
// Queue buffers yield the oldest bytes; stack buffers yield the most recent
// len(p) bytes in the order they were stored. An empty buffer returns 0.
func (b *Buffer) Get(p []byte) int {
	if b == nil || len(p) == 0 || b.n == 0 {
		return 0
	}
	grab := len(p)
	if grab > b.n {
		grab = b.n
	}

	switch b.mode {
	case ModeQueue:
		k := copy(p[:grab], b.mem[b.tail:])
		b.tail += k
		if b.tail == len(b.mem) {
			b.tail = 0
		}
		if k < grab {
			b.tail = copy(p[k:grab], b.mem)
		}
	case ModeStack:
		if grab <= b.head {
			copy(p[:grab], b.mem[b.head-grab:b.head])
			b.head -= grab
		} else {
			atEnd := grab - b.head
			copy(p[atEnd:grab], b.mem[:b.head])
			copy(p[:atEnd], b.mem[len(b.mem)-atEnd:])
			b.head = len(b.mem) - atEnd
		}
	default:
		return 0
	}
	b.n -= grab
	return grab
}

// Unget reinserts bytes previously removed by Get so that they are returned
// first by the next Get. Queue buffers prepend before the read cursor;
// stack buffers push.
func (b *Buffer) Unget(p []byte) error {
	if b == nil {
		return ErrParam
	}
	switch b.mode {
	case ModeStack:
		return b.Put(p)
	case ModeQueue:
	default:
		return ErrMode
	}
	if len(p) == 0 {
		return nil
	}
	if err := b.ensure(len(p)); err != nil {
		return err
	}

	atTail, atEnd := len(p), 0
	if len(p) > b.tail {
		atTail = b.tail
		atEnd = len(p) - atTail
	}
	b.tail -= atTail
	copy(b.mem[b.tail:], p[atEnd:])
	if atEnd > 0 {
		b.tail = len(b.mem) - atEnd
		copy(b.mem[b.tail:], p[:atEnd])
	}
	b.n += len(p)
	return nil
}

// Bytes returns a copy of the stored bytes from the read cursor onward,
// without consuming them.
func (b *Buffer) Bytes() []byte {
	if b == nil || b.n == 0 {
		return nil
	}
	out := make([]byte, b.n)
	k := copy(out, b.mem[b.tail:])
	if k < b.n {
		copy(out[k:], b.mem)
	}
	return out
}

// Clear discards all stored bytes without releasing storage.
func (b *Buffer) Clear() {
	if b == nil {
		return
	}
	b.n = 0
	b.head = 0
	b.tail = 0
}

// Free releases storage and returns the buffer to its zero state.
func (b *Buffer) Free() {
	if b == nil {
		return
	}
	*b = Buffer{}
}

// ensure grows storage so that extra more bytes fit. New storage is rounded
// up to a multiple of the grow increment. A wrapped tail segment is moved to
// the end of the new storage so the logical content stays in order.
func (b *Buffer) ensure(extra int) error {
	total := b.n + extra
	if total <= len(b.mem) {
		return nil
	}
	if b.grow == 0 {
		return ErrFull
	}

	size := ((total + b.grow - 1) / b.grow) * b.grow
	if size < total || size > maxCapacity {
		return ErrOutOfMemory
	}
	mem := make([]byte, size)
	old := len(b.mem)
	copy(mem, b.mem)

	if b.n == 0 {
		b.head, b.tail = 0, 0
	} else {
		// exactly full with the write cursor wrapped to zero
		if b.head == 0 {
			b.head = old
		}
		if b.tail >= b.head {
			add := size - old
			copy(mem[b.tail+add:], b.mem[b.tail:old])
			b.tail += add
		}
	}
	b.mem = mem
	return nil
}
