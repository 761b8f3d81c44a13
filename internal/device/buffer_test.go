package device

import (
	"bytes"
	"testing"
)

func TestPCMBuffer_UnderflowZeroPads(t *testing.T) {
	b := NewPCMBuffer(0)

	data := make([]byte, 500)
	for i := range data {
		data[i] = byte(i%250 + 1)
	}
	b.Write(data)

	out := make([]byte, 1920)
	for i := range out {
		out[i] = 0xaa
	}
	b.ReadInto(out)

	if !bytes.Equal(out[:500], data) {
		t.Error("buffered bytes did not come out first")
	}
	for i := 500; i < len(out); i++ {
		if out[i] != 0 {
			t.Fatalf("byte %d not zero-padded: %#x", i, out[i])
		}
	}
	if b.Underflows() != 1 {
		t.Errorf("expected 1 underflow, got %d", b.Underflows())
	}
	if b.Len() != 0 {
		t.Errorf("expected buffer drained, got %d bytes", b.Len())
	}
}

func TestPCMBuffer_FIFOOrder(t *testing.T) {
	b := NewPCMBuffer(0)
	b.Write([]byte{1, 2, 3})
	b.Write([]byte{4, 5, 6})

	out := make([]byte, 4)
	b.ReadInto(out)
	if !bytes.Equal(out, []byte{1, 2, 3, 4}) {
		t.Errorf("expected 1 2 3 4, got %v", out)
	}

	b.ReadInto(out[:2])
	if !bytes.Equal(out[:2], []byte{5, 6}) {
		t.Errorf("expected 5 6, got %v", out[:2])
	}
	if b.Underflows() != 0 {
		t.Errorf("exact reads must not count as underflows, got %d", b.Underflows())
	}
}

func TestPCMBuffer_CapDropsOldest(t *testing.T) {
	b := NewPCMBuffer(4)
	b.Write([]byte{1, 2, 3, 4, 5, 6})

	if b.Len() != 4 {
		t.Fatalf("expected cap at 4 bytes, got %d", b.Len())
	}
	out := make([]byte, 4)
	b.ReadInto(out)
	if !bytes.Equal(out, []byte{3, 4, 5, 6}) {
		t.Errorf("expected oldest bytes dropped, got %v", out)
	}
}

func TestPCMBuffer_EmptyReadAllZeros(t *testing.T) {
	b := NewPCMBuffer(0)

	out := []byte{9, 9, 9, 9}
	b.ReadInto(out)

	if !bytes.Equal(out, []byte{0, 0, 0, 0}) {
		t.Errorf("expected all zeros, got %v", out)
	}
	if b.Underflows() != 1 {
		t.Errorf("expected 1 underflow, got %d", b.Underflows())
	}
}

func TestPCMBuffer_Reset(t *testing.T) {
	b := NewPCMBuffer(0)
	b.Write([]byte{1, 2, 3})
	b.Reset()

	if b.Len() != 0 {
		t.Errorf("expected empty buffer after Reset, got %d", b.Len())
	}
}
