package mem

import (
	"errors"
	"testing"
)

func TestArena_AllocAlignment(t *testing.T) {
	a := New(0x1000, 0x1000)
	b1, err := a.Alloc(3, 1)
	if err != nil {
		t.Fatal(err)
	}
	b2, err := a.Alloc(64, 32)
	if err != nil {
		t.Fatal(err)
	}
	if b1.Addr != 0x1000 {
		t.Fatalf("first block got %#x, want 0x1000", b1.Addr)
	}
	if b2.Addr%32 != 0 {
		t.Fatalf("aligned block got %#x, not 32-byte aligned", b2.Addr)
	}
	if b2.Addr < b1.End() {
		t.Fatalf("blocks overlap: %#x < %#x", b2.Addr, b1.End())
	}
	if got := a.InUse(); got != 67 {
		t.Fatalf("in use got %d, want 67", got)
	}
}

func TestArena_OutOfMemoryAndReuse(t *testing.T) {
	a := New(0, 256)
	b, err := a.Alloc(200, 32)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := a.Alloc(100, 32); !errors.Is(err, ErrOutOfMemory) {
		t.Fatalf("got %v, want ErrOutOfMemory", err)
	}
	a.Free(b)
	if got := a.InUse(); got != 0 {
		t.Fatalf("in use after free got %d, want 0", got)
	}
	// the freed span merges back so the whole arena is usable again
	if _, err := a.Alloc(256, 1); err != nil {
		t.Fatalf("alloc after free: %v", err)
	}
}

func TestArena_CacheCoherency(t *testing.T) {
	a := New(0x80000000, 128)
	b, _ := a.Alloc(16, 32)
	b.Data[0] = 0xAB

	got := make([]byte, 1)
	a.ReadDevice(b.Addr, got)
	if got[0] != 0 {
		t.Fatalf("device saw unflushed write: %02x", got[0])
	}
	a.StoreRange(b.Addr, b.Size())
	a.ReadDevice(b.Addr, got)
	if got[0] != 0xAB {
		t.Fatalf("device read got %02x, want AB", got[0])
	}

	a.WriteDevice(b.Addr+1, []byte{0x55})
	if b.Data[1] != 0 {
		t.Fatalf("cpu saw device write before invalidate: %02x", b.Data[1])
	}
	a.InvalidateRange(b.Addr, b.Size())
	if b.Data[1] != 0x55 {
		t.Fatalf("cpu read got %02x, want 55", b.Data[1])
	}
}

func TestFitsWindow(t *testing.T) {
	cases := []struct {
		addr   uint32
		size   int
		window uint32
		want   bool
	}{
		{0x0000, 0x100, 0x1000, true},
		{0x0F00, 0x100, 0x1000, false}, // touches the boundary
		{0x0F00, 0x200, 0x1000, false},
		{0x1100, 0x800, 0x1000, true},
		{0x1100, 0x800, 0, true},
	}
	for _, c := range cases {
		if got := FitsWindow(c.addr, c.size, c.window); got != c.want {
			t.Fatalf("FitsWindow(%#x, %#x, %#x) got %v, want %v", c.addr, c.size, c.window, got, c.want)
		}
	}
}
