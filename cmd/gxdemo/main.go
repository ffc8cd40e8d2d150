package main

import (
	"context"
	"flag"
	"fmt"
	"hash/crc32"
	"image/png"
	"io"
	"log"
	"os"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/FabianRolfMatthiasNoll/gxbackend/internal/demo"
	"github.com/FabianRolfMatthiasNoll/gxbackend/internal/dsp"
	"github.com/FabianRolfMatthiasNoll/gxbackend/internal/sink"
	"github.com/FabianRolfMatthiasNoll/gxbackend/internal/system"
	"github.com/FabianRolfMatthiasNoll/gxbackend/internal/ui"
	"github.com/FabianRolfMatthiasNoll/gxbackend/internal/vi"
)

type CLIFlags struct {
	TV     string
	Wii    bool
	Width  int
	Height int
	BPP    int
	Scale  int
	Title  string

	// audio
	Mute   bool
	Tone   float64
	WAVIn  string // clip to loop instead of the tone
	Stereo bool

	// headless
	Headless bool
	Realtime bool // clock VI and DSP in real time and play through the sound card
	Frames   int
	PNGOut   string
	WAVOut   string
	Expect   string // expected frame CRC32 hex (e.g., "1a2b3c4d")
}

func parseFlags() CLIFlags {
	var f CLIFlags
	flag.StringVar(&f.TV, "tv", "ntsc", "TV format: ntsc, mpal, eurgb60 or pal")
	flag.BoolVar(&f.Wii, "wii", false, "Wii console (remotes, 848x480 screens)")
	flag.IntVar(&f.Width, "w", 0, "screen surface width (0 keeps the preferred mode)")
	flag.IntVar(&f.Height, "h", 0, "screen surface height")
	flag.IntVar(&f.BPP, "bpp", 16, "screen surface depth")
	flag.IntVar(&f.Scale, "scale", 1, "window scale")
	flag.StringVar(&f.Title, "title", "gxdemo", "window title")

	flag.BoolVar(&f.Mute, "mute", false, "no audio stream")
	flag.Float64Var(&f.Tone, "tone", 440, "tone frequency in Hz")
	flag.StringVar(&f.WAVIn, "wav", "", "loop this WAV file instead of the tone")
	flag.BoolVar(&f.Stereo, "stereo", true, "stereo host output; false folds to mono")

	// headless options
	flag.BoolVar(&f.Headless, "headless", false, "run without a window")
	flag.BoolVar(&f.Realtime, "realtime", false, "headless: run at console speed and play audio")
	flag.IntVar(&f.Frames, "frames", 300, "frames to run in headless mode")
	flag.StringVar(&f.PNGOut, "outpng", "", "write last displayed frame to PNG at path")
	flag.StringVar(&f.WAVOut, "outwav", "", "headless: record the DSP output to a WAV file")
	flag.StringVar(&f.Expect, "expect", "", "assert displayed frame CRC32 (hex)")
	flag.Parse()
	return f
}

func parseTV(s string) (vi.TVFormat, error) {
	switch strings.ToLower(s) {
	case "ntsc":
		return vi.NTSC, nil
	case "mpal":
		return vi.MPAL, nil
	case "eurgb60":
		return vi.EURGB60, nil
	case "pal":
		return vi.PAL, nil
	}
	return 0, fmt.Errorf("unknown TV format %q", s)
}

// runHeadless presents frames as fast as possible, stepping the DSP in
// lockstep with the video so the audio matches the frame count exactly.
func runHeadless(sys *system.System, scene *demo.Scene, f CLIFlags) error {
	frames := max(f.Frames, 1)

	var wav *sink.WAV
	if f.WAVOut != "" {
		out, err := os.Create(f.WAVOut)
		if err != nil {
			return err
		}
		defer out.Close()
		wav = sink.NewWAV(out, sys.DSP.InputSamplesPerSec())
		defer func() {
			if err := wav.Close(); err != nil {
				log.Printf("wav: %v", err)
			}
		}()
	}
	stream := dsp.NewStream(sys.DSP)
	var drain io.Writer = io.Discard
	if wav != nil {
		drain = wav
	}

	d := sys.DSP
	hz := sys.Video.Mode().RefreshHz()
	perFrame := hz * d.InputSamplesPerFrame()
	acc := 0
	buf := make([]byte, 4096)

	start := time.Now()
	for i := 0; i < frames; i++ {
		if err := scene.Frame(); err != nil {
			return fmt.Errorf("frame %d: %w", i, err)
		}
		for acc += d.InputSamplesPerSec(); acc >= perFrame; acc -= perFrame {
			if e := scene.Audio(); e != nil && e.Rendering() != e.Playing() {
				if err := scene.FillAudio(); err != nil {
					return err
				}
			}
			d.Step()
		}
		for d.StereoAvailable() > 0 {
			n, _ := stream.Read(buf)
			if _, err := drain.Write(buf[:n]); err != nil {
				return err
			}
		}
	}
	dur := time.Since(start)

	img := sys.VI.Frame()
	crc := crc32.ChecksumIEEE(img.Pix)
	fps := float64(frames) / dur.Seconds()
	log.Printf("headless: frames=%d elapsed=%s fps=%.2f frame_crc32=%08x dsp_frames=%d",
		frames, dur.Truncate(time.Millisecond), fps, crc, d.Frames())
	if wav != nil {
		log.Printf("wrote %s (%d sample frames)", f.WAVOut, wav.Frames())
	}

	if f.PNGOut != "" {
		out, err := os.Create(f.PNGOut)
		if err != nil {
			return fmt.Errorf("write PNG: %w", err)
		}
		defer out.Close()
		if err := png.Encode(out, img); err != nil {
			return fmt.Errorf("write PNG: %w", err)
		}
		log.Printf("wrote %s", f.PNGOut)
	}

	if f.Expect != "" {
		// normalize expected hex (allow with/without 0x, upper/lowercase)
		want := strings.TrimPrefix(strings.ToLower(f.Expect), "0x")
		got := fmt.Sprintf("%08x", crc)
		if got != want {
			return fmt.Errorf("checksum mismatch: got %s, want %s", got, want)
		}
	}
	return nil
}

// feedAudio keeps the audio engine supplied until ctx is done.
func feedAudio(ctx context.Context, scene *demo.Scene) error {
	e := scene.Audio()
	if e == nil {
		return nil
	}
	for ctx.Err() == nil {
		e.WaitDevice()
		if ctx.Err() != nil {
			break
		}
		if err := scene.FillAudio(); err != nil {
			return err
		}
	}
	return nil
}

// runRealtime runs without a window at console speed: the video loop and
// the audio producer run side by side and the DSP output goes to the sound
// card.
func runRealtime(sys *system.System, scene *demo.Scene, f CLIFlags) error {
	// The clocks outlive the producers so a WaitDevice in progress returns.
	clocks, stop := context.WithCancel(context.Background())
	defer stop()
	sys.Start(clocks)

	stream := dsp.NewStream(sys.DSP)
	stream.Mono = !f.Stereo
	player, err := sink.NewPlayer(stream, sys.DSP.InputSamplesPerSec(), 40*time.Millisecond)
	if err != nil {
		return err
	}
	defer player.Close()
	player.Play()

	ctx, cancel := context.WithCancel(clocks)
	defer cancel()
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer cancel()
		for i := 0; i < max(f.Frames, 1) && ctx.Err() == nil; i++ {
			if err := scene.Frame(); err != nil {
				return fmt.Errorf("frame %d: %w", i, err)
			}
		}
		return nil
	})
	g.Go(func() error { return feedAudio(ctx, scene) })
	err = g.Wait()
	log.Printf("realtime: frames=%d retraces=%d underruns=%d", scene.Frames(), sys.VI.Retraces(), stream.Underruns())
	return err
}

func runWindow(sys *system.System, scene *demo.Scene, f CLIFlags) error {
	clocks, stop := context.WithCancel(context.Background())
	defer stop()
	// Ebiten paces the frames; only the DSP needs a clock.
	sys.DSP.Start(clocks)

	ctx, cancel := context.WithCancel(clocks)
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return feedAudio(ctx, scene) })

	app := ui.NewApp(ui.Config{Title: f.Title, Scale: f.Scale, Wii: f.Wii, AudioMono: !f.Stereo}, sys, scene)
	err := app.Run()
	cancel()
	if werr := g.Wait(); err == nil {
		err = werr
	}
	return err
}

func main() {
	f := parseFlags()
	tv, err := parseTV(f.TV)
	if err != nil {
		log.Fatal(err)
	}

	sys, err := system.New(system.Config{TV: tv, Wii: f.Wii})
	if err != nil {
		log.Fatalf("console: %v", err)
	}
	defer sys.Close()

	if f.Width > 0 && f.Height > 0 {
		if _, err := sys.SetVideoMode(f.Width, f.Height, f.BPP); err != nil {
			log.Fatal(err)
		}
	}
	if f.Wii {
		if _, err := sys.Video.CreateSystemCursor(); err != nil {
			log.Fatalf("cursor: %v", err)
		}
	}

	cfg := demo.Config{ToneHz: f.Tone, Mute: f.Mute}
	if f.WAVIn != "" {
		in, err := os.Open(f.WAVIn)
		if err != nil {
			log.Fatal(err)
		}
		clip, err := sink.ReadWAV(in)
		in.Close()
		if err != nil {
			log.Fatalf("%s: %v", f.WAVIn, err)
		}
		cfg.Clip = &clip
		log.Printf("clip: %s %d Hz x%d, %d frames", f.WAVIn, clip.Rate, clip.Channels, clip.Frames())
	}
	scene, err := demo.New(sys, cfg)
	if err != nil {
		log.Fatalf("scene: %v", err)
	}
	defer scene.Close()

	switch {
	case f.Headless && f.Realtime:
		err = runRealtime(sys, scene, f)
	case f.Headless:
		err = runHeadless(sys, scene, f)
	default:
		err = runWindow(sys, scene, f)
	}
	if err != nil {
		log.Fatal(err)
	}
}
