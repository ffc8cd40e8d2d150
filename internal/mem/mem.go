package mem

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

// ErrOutOfMemory is returned when no free span can hold an allocation.
var ErrOutOfMemory = errors.New("out of memory")

// Block is an allocated span of the arena. Data is the CPU view of the span;
// writes to it are invisible to devices until StoreRange is called.
type Block struct {
	Addr uint32
	Data []byte
}

// Size returns the length of the block in bytes.
func (b Block) Size() int { return len(b.Data) }

// End returns the first address past the block.
func (b Block) End() uint32 { return b.Addr + uint32(len(b.Data)) }

// Contains reports whether addr falls inside the block.
func (b Block) Contains(addr uint32) bool { return addr >= b.Addr && addr < b.End() }

type span struct {
	off, size int
}

// Arena models physical memory shared by the CPU and the GPU/DSP/VI units.
// The CPU reads and writes through a data cache (the cpu slice); devices
// see main memory (the dev slice). The two only agree after an explicit
// StoreRange or InvalidateRange.
type Arena struct {
	base uint32
	cpu  []byte
	dev  []byte

	mu     sync.RWMutex // guards dev
	allocM sync.Mutex   // guards free and used
	free   []span
	used   map[uint32]int
}

// New returns an arena of size bytes mapped at base.
func New(base uint32, size int) *Arena {
	return &Arena{
		base: base,
		cpu:  make([]byte, size),
		dev:  make([]byte, size),
		free: []span{{0, size}},
		used: make(map[uint32]int),
	}
}

// Base returns the first address of the arena.
func (a *Arena) Base() uint32 { return a.base }

// Size returns the total arena size in bytes.
func (a *Arena) Size() int { return len(a.cpu) }

// Alloc reserves size bytes aligned to align (a power of two, 0 or 1 for
// none) using first fit.
func (a *Arena) Alloc(size, align int) (Block, error) {
	if size <= 0 {
		return Block{}, fmt.Errorf("alloc %d bytes: invalid size", size)
	}
	if align <= 0 {
		align = 1
	}
	if align&(align-1) != 0 {
		return Block{}, fmt.Errorf("alloc: alignment %d is not a power of two", align)
	}
	a.allocM.Lock()
	defer a.allocM.Unlock()
	for i, s := range a.free {
		addr := int(a.base) + s.off
		pad := (align - addr%align) % align
		if pad+size > s.size {
			continue
		}
		off := s.off + pad
		// split the span into [head pad] [block] [tail]
		var repl []span
		if pad > 0 {
			repl = append(repl, span{s.off, pad})
		}
		if tail := s.size - pad - size; tail > 0 {
			repl = append(repl, span{off + size, tail})
		}
		a.free = append(a.free[:i], append(repl, a.free[i+1:]...)...)
		a.used[a.base+uint32(off)] = size
		return Block{Addr: a.base + uint32(off), Data: a.cpu[off : off+size : off+size]}, nil
	}
	return Block{}, fmt.Errorf("alloc %d bytes (align %d): %w", size, align, ErrOutOfMemory)
}

// Free releases a block returned by Alloc. Freeing a zero Block is a no-op.
func (a *Arena) Free(b Block) {
	if b.Data == nil {
		return
	}
	a.allocM.Lock()
	defer a.allocM.Unlock()
	size, ok := a.used[b.Addr]
	if !ok {
		return
	}
	delete(a.used, b.Addr)
	a.free = append(a.free, span{int(b.Addr - a.base), size})
	sort.Slice(a.free, func(i, j int) bool { return a.free[i].off < a.free[j].off })
	merged := a.free[:1]
	for _, s := range a.free[1:] {
		last := &merged[len(merged)-1]
		if last.off+last.size == s.off {
			last.size += s.size
			continue
		}
		merged = append(merged, s)
	}
	a.free = merged
}

// InUse returns the number of bytes currently allocated.
func (a *Arena) InUse() int {
	a.allocM.Lock()
	defer a.allocM.Unlock()
	n := 0
	for _, s := range a.used {
		n += s
	}
	return n
}

func (a *Arena) rng(addr uint32, n int) (int, int, bool) {
	if addr < a.base || n <= 0 {
		return 0, 0, false
	}
	off := int(addr - a.base)
	if off >= len(a.cpu) {
		return 0, 0, false
	}
	end := off + n
	if end > len(a.cpu) {
		end = len(a.cpu)
	}
	return off, end, true
}

// StoreRange writes back CPU-side data so devices observe it (DCStoreRange).
func (a *Arena) StoreRange(addr uint32, n int) {
	off, end, ok := a.rng(addr, n)
	if !ok {
		return
	}
	a.mu.Lock()
	copy(a.dev[off:end], a.cpu[off:end])
	a.mu.Unlock()
}

// InvalidateRange discards CPU-side data so the CPU observes what devices
// wrote (DCInvalidateRange).
func (a *Arena) InvalidateRange(addr uint32, n int) {
	off, end, ok := a.rng(addr, n)
	if !ok {
		return
	}
	a.mu.RLock()
	copy(a.cpu[off:end], a.dev[off:end])
	a.mu.RUnlock()
}

// ReadDevice copies main memory starting at addr into dst, bypassing the
// CPU cache. It returns the number of bytes copied.
func (a *Arena) ReadDevice(addr uint32, dst []byte) int {
	off, end, ok := a.rng(addr, len(dst))
	if !ok {
		return 0
	}
	a.mu.RLock()
	n := copy(dst, a.dev[off:end])
	a.mu.RUnlock()
	return n
}

// WriteDevice stores src into main memory at addr, bypassing the CPU cache.
func (a *Arena) WriteDevice(addr uint32, src []byte) int {
	off, end, ok := a.rng(addr, len(src))
	if !ok {
		return 0
	}
	a.mu.Lock()
	n := copy(a.dev[off:end], src)
	a.mu.Unlock()
	return n
}

// FillDevice sets n bytes of main memory at addr to v.
func (a *Arena) FillDevice(addr uint32, n int, v byte) {
	off, end, ok := a.rng(addr, n)
	if !ok {
		return
	}
	a.mu.Lock()
	for i := off; i < end; i++ {
		a.dev[i] = v
	}
	a.mu.Unlock()
}

// FitsWindow reports whether [addr, addr+size) lies inside a single
// window-sized aliasing region, as required by DMA engines that only
// carry the low address bits.
func FitsWindow(addr uint32, size int, window uint32) bool {
	if window == 0 {
		return true
	}
	return uint64(addr%window)+uint64(size) < uint64(window)
}
