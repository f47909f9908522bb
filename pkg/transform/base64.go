package transform

const base64Alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789+/"

// base64LineIn is the number of input bytes encoded per output line.
const base64LineIn = 57

var base64Reverse = func() [256]int8 {
	var t [256]int8
	for i := range t {
		t[i] = -1
	}
	for i := 0; i < len(base64Alphabet); i++ {
		t[base64Alphabet[i]] = int8(i)
	}
	t['='] = 0
	return t
}()

// Base64Encoder encodes standard base64 in 76 character units without line
// separators. Input is buffered until a full unit of 57 bytes is available;
// End encodes the remainder with '=' padding.
type Base64Encoder struct {
	line  [base64LineIn]byte
	count int
	out   [base64LineIn / 3 * 4]byte
}

// NewBase64Encoder returns an encoder codec.
func NewBase64Encoder() *Base64Encoder {
	return &Base64Encoder{}
}

// RequiresNext reports true; encoded output must go somewhere.
func (e *Base64Encoder) RequiresNext() bool { return true }

// Encode implements Codec.
func (e *Base64Encoder) Encode(p []byte, emit Emit) error {
	for len(p) > 0 {
		k := copy(e.line[e.count:], p)
		e.count += k
		p = p[k:]
		if e.count < base64LineIn {
			break
		}
		n := encodeBlock(e.out[:], e.line[:])
		e.count = 0
		if err := emit(e.out[:n]); err != nil {
			return err
		}
	}
	return nil
}

// End implements Codec.
func (e *Base64Encoder) End(emit Emit) error {
	if e.count == 0 {
		return nil
	}
	n := encodeBlock(e.out[:], e.line[:e.count])
	e.count = 0
	return emit(e.out[:n])
}

// encodeBlock encodes src into dst, padding a trailing partial group.
func encodeBlock(dst, src []byte) int {
	n := 0
	for len(src) >= 3 {
		v := uint(src[0])<<16 | uint(src[1])<<8 | uint(src[2])
		dst[n] = base64Alphabet[v>>18&0x3f]
		dst[n+1] = base64Alphabet[v>>12&0x3f]
		dst[n+2] = base64Alphabet[v>>6&0x3f]
		dst[n+3] = base64Alphabet[v&0x3f]
		n += 4
		src = src[3:]
	}
	switch len(src) {
	case 1:
		v := uint(src[0]) << 16
		dst[n] = base64Alphabet[v>>18&0x3f]
		dst[n+1] = base64Alphabet[v>>12&0x3f]
		dst[n+2] = '='
		dst[n+3] = '='
		n += 4
	case 2:
		v := uint(src[0])<<16 | uint(src[1])<<8
		dst[n] = base64Alphabet[v>>18&0x3f]
		dst[n+1] = base64Alphabet[v>>12&0x3f]
		dst[n+2] = base64Alphabet[v>>6&0x3f]
		dst[n+3] = '='
		n += 4
	}
	return n
}

// Base64Decoder decodes standard base64. Bytes outside the alphabet, such
// as line breaks, are skipped. Each complete group of four symbols produces
// three bytes minus the number of '=' symbols in the group. End fails with
// ErrFatal if a partial group is left over.
type Base64Decoder struct {
	value uint32
	count int
	pad   int
	out   []byte
}

// NewBase64Decoder returns a decoder codec.
func NewBase64Decoder() *Base64Decoder {
	return &Base64Decoder{}
}

// RequiresNext reports true; decoded output must go somewhere.
func (d *Base64Decoder) RequiresNext() bool { return true }

// Encode implements Codec.
func (d *Base64Decoder) Encode(p []byte, emit Emit) error {
	d.out = d.out[:0]
	for _, c := range p {
		v := base64Reverse[c]
		if v < 0 {
			continue
		}
		if c == '=' {
			d.pad++
		}
		d.value = d.value<<6 | uint32(v)
		d.count++
		if d.count < 4 {
			continue
		}
		if d.pad > 2 {
			return ErrFatal
		}
		group := [3]byte{byte(d.value >> 16), byte(d.value >> 8), byte(d.value)}
		d.out = append(d.out, group[:3-d.pad]...)
		d.value, d.count, d.pad = 0, 0, 0
	}
	if len(d.out) == 0 {
		return nil
	}
	return emit(d.out)
}

// End implements Codec.
func (d *Base64Decoder) End(emit Emit) error {
	leftover := d.count != 0
	d.value, d.count, d.pad = 0, 0, 0
	d.out = nil
	if leftover {
		return ErrFatal
	}
	return nil
}
