// Package vi models the video interface: the unit that scans an external
// framebuffer in main memory out to the TV once per field.
package vi

import (
	"context"
	"image"
	"sync"
	"time"

	"github.com/FabianRolfMatthiasNoll/gxbackend/internal/mem"
)

// BytesPerPixel is the storage size of one external framebuffer pixel.
const BytesPerPixel = 4

// Config holds the model parameters.
type Config struct {
	TV TVFormat
}

// VI is the video interface model. Retraces come from a ticker started by
// Start; without one every WaitVSync retraces immediately, which keeps
// headless runs deterministic.
type VI struct {
	cfg Config
	mem *mem.Arena

	mu         sync.Mutex
	cond       *sync.Cond
	mode       Mode
	configured bool
	black      bool
	pending    uint32 // set by SetNextFramebuffer
	flushed    uint32 // committed by Flush, latched on retrace
	hasFlushed bool
	current    uint32
	hasCurrent bool
	retraces   uint64
	configures int
	configAt   uint64 // retrace count at the last Configure
	running    bool

	stop context.CancelFunc
	done chan struct{}
}

// New returns a video interface scanning out of m.
func New(m *mem.Arena, cfg Config) *VI {
	v := &VI{cfg: cfg, mem: m, black: true}
	v.cond = sync.NewCond(&v.mu)
	return v
}

// TVFormat returns the configured broadcast standard.
func (v *VI) TVFormat() TVFormat { return v.cfg.TV }

// PreferredMode returns the default render mode for the TV format.
func (v *VI) PreferredMode() Mode { return PreferredMode(v.cfg.TV) }

// Configure programs scan-out timing for a mode. The latched framebuffer
// belongs to the old timing, so scan-out stays black until the next
// framebuffer is latched.
func (v *VI) Configure(m Mode) {
	v.mu.Lock()
	v.mode = m
	v.configured = true
	v.configures++
	v.configAt = v.retraces
	v.hasCurrent = false
	v.mu.Unlock()
}

// Mode returns the configured mode.
func (v *VI) Mode() (Mode, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.mode, v.configured
}

// Configures returns how often Configure was called.
func (v *VI) Configures() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.configures
}

// ConfiguredAt returns the retrace count when Configure was last called.
func (v *VI) ConfiguredAt() uint64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.configAt
}

// SetBlack blanks or unblanks the output.
func (v *VI) SetBlack(b bool) {
	v.mu.Lock()
	v.black = b
	v.mu.Unlock()
}

// Black reports whether the output is blanked.
func (v *VI) Black() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.black
}

// SetNextFramebuffer selects the framebuffer shown after the next Flush.
func (v *VI) SetNextFramebuffer(addr uint32) {
	v.mu.Lock()
	v.pending = addr
	v.mu.Unlock()
}

// Flush commits register changes; they take effect at the next retrace.
func (v *VI) Flush() {
	v.mu.Lock()
	v.flushed = v.pending
	v.hasFlushed = true
	v.mu.Unlock()
}

// ClearFramebuffer fills a framebuffer of mode m with an opaque color.
func (v *VI) ClearFramebuffer(m Mode, addr uint32, r, g, b uint8) {
	row := make([]byte, m.FBWidth*BytesPerPixel)
	for i := 0; i < len(row); i += BytesPerPixel {
		row[i], row[i+1], row[i+2], row[i+3] = r, g, b, 0xFF
	}
	for y := 0; y < m.XFBHeight; y++ {
		v.mem.WriteDevice(addr+uint32(y*len(row)), row)
	}
}

func (v *VI) retraceLocked() {
	if v.hasFlushed {
		v.current = v.flushed
		v.hasCurrent = true
		v.hasFlushed = false
	}
	v.retraces++
	v.cond.Broadcast()
}

// WaitVSync blocks until the next retrace.
func (v *VI) WaitVSync() {
	v.mu.Lock()
	defer v.mu.Unlock()
	if !v.running {
		v.retraceLocked()
		return
	}
	n := v.retraces
	for v.retraces == n && v.running {
		v.cond.Wait()
	}
}

// Retraces returns the number of retraces so far.
func (v *VI) Retraces() uint64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.retraces
}

// Start runs the retrace clock at the field rate of the configured mode
// until ctx is done or Stop is called.
func (v *VI) Start(ctx context.Context) {
	v.mu.Lock()
	if v.running {
		v.mu.Unlock()
		return
	}
	hz := 60
	if v.configured {
		hz = v.mode.RefreshHz()
	}
	ctx, cancel := context.WithCancel(ctx)
	v.stop = cancel
	v.done = make(chan struct{})
	v.running = true
	v.mu.Unlock()

	go func() {
		defer close(v.done)
		t := time.NewTicker(time.Second / time.Duration(hz))
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				v.mu.Lock()
				v.running = false
				v.cond.Broadcast()
				v.mu.Unlock()
				return
			case <-t.C:
				v.mu.Lock()
				v.retraceLocked()
				v.mu.Unlock()
			}
		}
	}()
}

// Stop halts the retrace clock started by Start.
func (v *VI) Stop() {
	v.mu.Lock()
	stop, done := v.stop, v.done
	v.stop = nil
	v.mu.Unlock()
	if stop == nil {
		return
	}
	stop()
	<-done
}

// Frame returns the image currently on screen: the latched framebuffer, or
// black while blanked or before the first framebuffer was latched.
func (v *VI) Frame() *image.RGBA {
	v.mu.Lock()
	m, black, addr, ok := v.mode, v.black, v.current, v.hasCurrent
	configured := v.configured
	v.mu.Unlock()
	if !configured {
		m = v.PreferredMode()
	}
	img := image.NewRGBA(image.Rect(0, 0, m.FBWidth, m.XFBHeight))
	if black || !ok {
		for i := 3; i < len(img.Pix); i += 4 {
			img.Pix[i] = 0xFF
		}
		return img
	}
	v.mem.ReadDevice(addr, img.Pix)
	for i := 3; i < len(img.Pix); i += 4 {
		img.Pix[i] = 0xFF
	}
	return img
}
