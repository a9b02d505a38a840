package bitcodec

import "testing"

func TestReadWriteUintRoundTrip(t *testing.T) {
	cases := []struct {
		value      uint64
		lengthBits int
		offsetBits int
	}{
		{0, 4, 0},
		{0xf, 4, 0},
		{0x1234, 16, 0},
		{0x1234, 16, 8},
		{0xabcdef, 24, 4},
		{0xffffffff, 32, 16},
		{1, 64, 0},
	}

	for _, c := range cases {
		buf := make([]byte, 32)
		if _, err := WriteUint(buf, c.value, c.lengthBits, c.offsetBits); err != nil {
			t.Fatalf("write(%d, %d, %d): %v", c.value, c.lengthBits, c.offsetBits, err)
		}

		got, err := ReadUint(buf, c.lengthBits, c.offsetBits)
		if err != nil {
			t.Fatalf("read(%d, %d): %v", c.lengthBits, c.offsetBits, err)
		}

		if got != c.value {
			t.Fatalf("round trip mismatch: wrote %#x, read %#x", c.value, got)
		}
	}
}

func TestWriteUintReturnValue(t *testing.T) {
	buf := make([]byte, 4)
	n, err := WriteUint(buf, 0xab, 8, 0)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Fatalf("expected byte offset 1, got %d", n)
	}

	n, err = WriteUint(buf, 0xab, 8, 4)
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Fatalf("expected byte offset 2, got %d", n)
	}
}

func TestReadUintRejectsBadParameters(t *testing.T) {
	buf := make([]byte, 4)

	if _, err := ReadUint(buf, 3, 0); err == nil {
		t.Fatal("expected error for non-multiple-of-4 length")
	}
	if _, err := ReadUint(buf, 4, 3); err == nil {
		t.Fatal("expected error for non-multiple-of-4 offset")
	}
	if _, err := ReadUint(buf, 0, 0); err == nil {
		t.Fatal("expected error for zero length")
	}
}

func TestReadUintOutOfBounds(t *testing.T) {
	buf := make([]byte, 1)
	if _, err := ReadUint(buf, 16, 0); err == nil {
		t.Fatal("expected out of bounds error")
	}
}

func TestWriteBytesAligned(t *testing.T) {
	buf := make([]byte, 8)
	src := []byte{1, 2, 3, 4}

	if err := WriteBytesAligned(buf, src, 32, 16); err != nil {
		t.Fatal(err)
	}

	want := []byte{0, 0, 1, 2, 3, 4, 0, 0}
	for i := range want {
		if buf[i] != want[i] {
			t.Fatalf("byte %d: got %d want %d", i, buf[i], want[i])
		}
	}
}

func TestWriteBytesAlignedRejectsMisalignment(t *testing.T) {
	buf := make([]byte, 8)
	src := []byte{1, 2}
	if err := WriteBytesAligned(buf, src, 12, 0); err == nil {
		t.Fatal("expected error for non-byte-aligned length")
	}
	if err := WriteBytesAligned(buf, src, 16, 4); err == nil {
		t.Fatal("expected error for non-byte-aligned offset")
	}
}

func TestSnip(t *testing.T) {
	buf := []byte{0x12, 0x34, 0x56}

	out, err := Snip(buf, 16, 8)
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != 2 || out[0] != 0x34 || out[1] != 0x56 {
		t.Fatalf("unexpected snip result: %x", out)
	}

	// odd nibble count, left padded
	out, err = Snip(buf, 12, 4)
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != 2 || out[0] != 0x02 || out[1] != 0x34 {
		t.Fatalf("unexpected padded snip result: %x", out)
	}
}

func TestSliceToUint(t *testing.T) {
	got, err := SliceToUint([]byte{0x01, 0x02, 0x03, 0x04})
	if err != nil {
		t.Fatal(err)
	}
	if got != 0x01020304 {
		t.Fatalf("got %#x", got)
	}

	if _, err := SliceToUint(make([]byte, 9)); err == nil {
		t.Fatal("expected error for too-long buffer")
	}
}
