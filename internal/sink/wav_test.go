package sink

import (
	"bytes"
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func frames(n int) []byte {
	b := make([]byte, n*4)
	for i := 0; i < n; i++ {
		binary.LittleEndian.PutUint16(b[i*4:], uint16(int16(i*100)))
		binary.LittleEndian.PutUint16(b[i*4+2:], uint16(int16(-i*100)))
	}
	return b
}

func TestWAVSplitWrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.wav")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	w := NewWAV(f, 48000)
	data := frames(64)
	// Cut mid-sample and mid-frame.
	for _, chunk := range [][]byte{data[:3], data[3:10], data[10:101], data[101:]} {
		if n, err := w.Write(chunk); err != nil || n != len(chunk) {
			t.Fatalf("write got %d, %v", n, err)
		}
	}
	if w.Frames() != 64 {
		t.Fatalf("frames got %d want 64", w.Frames())
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	f.Close()

	in, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer in.Close()
	clip, err := ReadWAV(in)
	if err != nil {
		t.Fatal(err)
	}
	if clip.Rate != 48000 || clip.Channels != 2 || clip.Frames() != 64 {
		t.Fatalf("clip %d Hz x%d, %d frames", clip.Rate, clip.Channels, clip.Frames())
	}
	for i := 0; i < 64; i++ {
		if l, r := clip.Samples[i*2], clip.Samples[i*2+1]; l != int16(i*100) || r != int16(-i*100) {
			t.Fatalf("frame %d got %d,%d", i, l, r)
		}
	}
}

func TestCapture(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cap.wav")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := Capture(f, bytes.NewReader(frames(100)), 32000, 40); err != nil {
		t.Fatal(err)
	}
	if _, err := f.Seek(0, 0); err != nil {
		t.Fatal(err)
	}
	clip, err := ReadWAV(f)
	if err != nil {
		t.Fatal(err)
	}
	if clip.Frames() != 40 || clip.Rate != 32000 {
		t.Fatalf("captured %d frames at %d Hz", clip.Frames(), clip.Rate)
	}

	if err := Capture(f, bytes.NewReader(frames(2)), 32000, 40); err == nil {
		t.Fatal("short stream captured")
	}
}

func TestReadWAVRejectsGarbage(t *testing.T) {
	_, err := ReadWAV(bytes.NewReader([]byte("definitely not RIFF data")))
	if !errors.Is(err, ErrNotWAV) {
		t.Fatalf("got %v want ErrNotWAV", err)
	}
}
