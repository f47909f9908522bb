package ringbuf

import (
	"bytes"
	"errors"
	"math/rand"
	"testing"
)

func TestInit_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		size int
		mode Mode
		grow int
		want error
	}{
		{"negative size", -1, ModeQueue, 10, ErrParam},
		{"negative grow", 10, ModeQueue, -1, ErrParam},
		{"no storage and no growth", 0, ModeQueue, 0, ErrParam},
		{"bad mode", 10, Mode(7), 10, ErrMode},
		{"none mode", 10, ModeNone, 10, ErrMode},
		{"too large", maxCapacity + 1, ModeQueue, 0, ErrOutOfMemory},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var b Buffer
			if err := b.Init(tt.size, tt.mode, tt.grow, nil); !errors.Is(err, tt.want) {
				t.Errorf("Init() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestInit_RejectsLiveBuffer(t *testing.T) {
	t.Parallel()

	b, err := New(10, ModeQueue, 10, []byte("keep"))
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	if err := b.Init(20, ModeStack, 0, nil); !errors.Is(err, ErrFull) {
		t.Fatalf("second Init() error = %v, want ErrFull", err)
	}
	if got := b.Bytes(); string(got) != "keep" {
		t.Errorf("contents after rejected Init = %q, want %q", got, "keep")
	}

	b.Free()
	if err := b.Init(20, ModeStack, 0, nil); err != nil {
		t.Errorf("Init() after Free error: %v", err)
	}
}

func TestInit_SeedTooLarge(t *testing.T) {
	t.Parallel()

	var b Buffer
	if err := b.Init(4, ModeQueue, 0, []byte("too long")); !errors.Is(err, ErrFull) {
		t.Fatalf("Init() error = %v, want ErrFull", err)
	}
	if b.Mode() != ModeNone {
		t.Errorf("Mode() = %v after failed seed, want none", b.Mode())
	}
}

func TestQueue_GrowthExample(t *testing.T) {
	t.Parallel()

	b, err := New(10, ModeQueue, 10, nil)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	first := []byte("ABCDEFGH")
	second := []byte("IJKLMNOP")
	if err := b.Put(first); err != nil {
		t.Fatalf("Put(first) error: %v", err)
	}
	if err := b.Put(second); err != nil {
		t.Fatalf("Put(second) error: %v", err)
	}

	if b.Len() != 16 {
		t.Errorf("Len() = %d, want 16", b.Len())
	}
	if b.Cap() < 20 {
		t.Errorf("Cap() = %d, want >= 20", b.Cap())
	}

	var got []byte
	chunk := make([]byte, 3)
	for {
		n := b.Get(chunk)
		if n == 0 {
			break
		}
		got = append(got, chunk[:n]...)
	}
	if want := "ABCDEFGHIJKLMNOP"; string(got) != want {
		t.Errorf("drained %q, want %q", got, want)
	}
}

func TestQueue_GrowWhileWrapped(t *testing.T) {
	t.Parallel()

	b, _ := New(8, ModeQueue, 4, nil)
	_ = b.Put([]byte("012345"))
	tmp := make([]byte, 4)
	b.Get(tmp) // tail at 4, head at 6
	_ = b.Put([]byte("6789"))
	// wrapped: tail 4, head 2

	if err := b.Put([]byte("ABCDEF")); err != nil {
		t.Fatalf("Put() error: %v", err)
	}
	if b.Cap() != 12 {
		t.Errorf("Cap() = %d, want 12", b.Cap())
	}
	if got := string(b.Bytes()); got != "456789ABCDEF" {
		t.Errorf("Bytes() = %q, want %q", got, "456789ABCDEF")
	}
}

func TestQueue_GrowWhenExactlyFull(t *testing.T) {
	t.Parallel()

	b, _ := New(4, ModeQueue, 4, nil)
	_ = b.Put([]byte("abcd")) // head wrapped to 0
	if err := b.Put([]byte("e")); err != nil {
		t.Fatalf("Put() error: %v", err)
	}
	if got := string(b.Bytes()); got != "abcde" {
		t.Errorf("Bytes() = %q, want %q", got, "abcde")
	}
}

func TestQueue_OrderProperty(t *testing.T) {
	t.Parallel()

	rng := rand.New(rand.NewSource(42))
	for round := 0; round < 50; round++ {
		b, err := New(1+rng.Intn(16), ModeQueue, 1+rng.Intn(16), nil)
		if err != nil {
			t.Fatalf("New() error: %v", err)
		}

		var model []byte
		var next byte
		for op := 0; op < 200; op++ {
			if rng.Intn(3) > 0 {
				p := make([]byte, rng.Intn(20))
				for i := range p {
					p[i] = next
					next++
				}
				if err := b.Put(p); err != nil {
					t.Fatalf("round %d: Put() error: %v", round, err)
				}
				model = append(model, p...)
				continue
			}
			p := make([]byte, rng.Intn(20))
			n := b.Get(p)
			want := len(p)
			if want > len(model) {
				want = len(model)
			}
			if n != want {
				t.Fatalf("round %d: Get() = %d, want %d", round, n, want)
			}
			if !bytes.Equal(p[:n], model[:n]) {
				t.Fatalf("round %d: Get() = %v, want %v", round, p[:n], model[:n])
			}
			model = model[n:]
		}
		if b.Len() != len(model) {
			t.Fatalf("round %d: Len() = %d, want %d", round, b.Len(), len(model))
		}
		if !bytes.Equal(b.Bytes(), model) && len(model) > 0 {
			t.Fatalf("round %d: Bytes() mismatch", round)
		}
	}
}

func TestStack_ReverseOrder(t *testing.T) {
	t.Parallel()

	b, _ := New(2, ModeStack, 2, nil)
	for _, c := range []byte("abcdefg") {
		if err := b.Put([]byte{c}); err != nil {
			t.Fatalf("Put() error: %v", err)
		}
	}

	var got []byte
	one := make([]byte, 1)
	for b.Get(one) == 1 {
		got = append(got, one[0])
	}
	if string(got) != "gfedcba" {
		t.Errorf("popped %q, want %q", got, "gfedcba")
	}
}

func TestStack_GetKeepsStoredOrder(t *testing.T) {
	t.Parallel()

	b, _ := New(4, ModeStack, 0, []byte("wxyz"))
	p := make([]byte, 3)
	if n := b.Get(p); n != 3 {
		t.Fatalf("Get() = %d, want 3", n)
	}
	if string(p) != "xyz" {
		t.Errorf("Get() = %q, want %q", p, "xyz")
	}
	if got := string(b.Bytes()); got != "w" {
		t.Errorf("remaining %q, want %q", got, "w")
	}
}

func TestUnget_RoundTrip(t *testing.T) {
	t.Parallel()

	for _, mode := range []Mode{ModeQueue, ModeStack} {
		t.Run(mode.String(), func(t *testing.T) {
			b, _ := New(5, mode, 5, []byte("hello world"))
			p := make([]byte, 4)
			n := b.Get(p)
			taken := append([]byte(nil), p[:n]...)

			if err := b.Unget(taken); err != nil {
				t.Fatalf("Unget() error: %v", err)
			}
			again := make([]byte, 4)
			if n := b.Get(again); n != 4 {
				t.Fatalf("Get() after Unget = %d, want 4", n)
			}
			if !bytes.Equal(again, taken) {
				t.Errorf("Get() after Unget = %q, want %q", again, taken)
			}
		})
	}
}

func TestUnget_QueueWrapsBeforeStart(t *testing.T) {
	t.Parallel()

	b, _ := New(8, ModeQueue, 0, []byte("cdef"))
	tmp := make([]byte, 1)
	b.Get(tmp) // tail 1
	if err := b.Unget([]byte("abc")); err != nil {
		t.Fatalf("Unget() error: %v", err)
	}
	if got := string(b.Bytes()); got != "abcdef" {
		t.Errorf("Bytes() = %q, want %q", got, "abcdef")
	}
}

func TestPut_FullWithoutGrowth(t *testing.T) {
	t.Parallel()

	b, _ := New(4, ModeQueue, 0, []byte("abc"))
	if err := b.Put([]byte("de")); !errors.Is(err, ErrFull) {
		t.Fatalf("Put() error = %v, want ErrFull", err)
	}
	if got := string(b.Bytes()); got != "abc" {
		t.Errorf("contents after failed Put = %q, want %q", got, "abc")
	}
	if err := b.Unget([]byte("xy")); !errors.Is(err, ErrFull) {
		t.Errorf("Unget() error = %v, want ErrFull", err)
	}
}

func TestGet_EmptyIsNotAnError(t *testing.T) {
	t.Parallel()

	b, _ := New(4, ModeQueue, 4, nil)
	if n := b.Get(make([]byte, 10)); n != 0 {
		t.Errorf("Get() on empty = %d, want 0", n)
	}
}

func TestClearAndFree(t *testing.T) {
	t.Parallel()

	b, _ := New(4, ModeQueue, 4, []byte("abcdef"))
	capBefore := b.Cap()
	b.Clear()
	if b.Len() != 0 || b.Cap() != capBefore {
		t.Errorf("after Clear: Len=%d Cap=%d, want 0 and %d", b.Len(), b.Cap(), capBefore)
	}

	b.Free()
	if b.Cap() != 0 || b.Mode() != ModeNone {
		t.Errorf("after Free: Cap=%d Mode=%v, want zero state", b.Cap(), b.Mode())
	}
	if err := b.Put([]byte("x")); !errors.Is(err, ErrParam) {
		t.Errorf("Put() on freed buffer error = %v, want ErrParam", err)
	}
}

func TestWrite_ImplementsWriter(t *testing.T) {
	t.Parallel()

	b, _ := New(8, ModeQueue, 8, nil)
	n, err := b.Write([]byte("payload"))
	if err != nil || n != 7 {
		t.Fatalf("Write() = %d, %v", n, err)
	}
	if got := string(b.Bytes()); got != "payload" {
		t.Errorf("Bytes() = %q, want %q", got, "payload")
	}
}
