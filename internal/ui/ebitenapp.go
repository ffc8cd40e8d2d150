package ui

import (
	"errors"
	"fmt"
	"image/png"
	"os"
	"path/filepath"
	"time"

	"github.com/FabianRolfMatthiasNoll/gxbackend/internal/dsp"
	"github.com/FabianRolfMatthiasNoll/gxbackend/internal/input"
	"github.com/FabianRolfMatthiasNoll/gxbackend/internal/system"
	"github.com/hajimehoshi/ebiten/v2"
	ebaudio "github.com/hajimehoshi/ebiten/v2/audio"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
)

// Program is what the window runs once per tick.
type Program interface {
	Frame() error
}

// App shows the console's video output in a window and feeds it the host
// keyboard and mouse.
type App struct {
	cfg  Config
	sys  *system.System
	prog Program
	keys Keyboard
	tex  *ebiten.Image

	paused       bool
	muted        bool
	cursorHidden bool
	events       int // events delivered to the program since start
	last         input.Event

	stream      *dsp.Stream
	audioPlayer *ebaudio.Player

	// overlay/menu
	showMenu   bool
	menuMode   string
	menuIdx    int
	keysOff    int
	toastMsg   string
	toastUntil time.Time
	curW, curH int
}

func NewApp(cfg Config, sys *system.System, prog Program) *App {
	cfg.Defaults()
	a := &App{cfg: cfg, sys: sys, prog: prog, keys: Keyboard{wii: cfg.Wii}, menuMode: "main"}
	w, h := a.screenSize()
	ebiten.SetWindowTitle(cfg.Title)
	ebiten.SetWindowSize(w*cfg.Scale, h*cfg.Scale)
	ebiten.SetWindowResizingMode(ebiten.WindowResizingModeEnabled)
	return a
}

// Run opens the window and blocks until it is closed or the console asks
// to quit.
func (a *App) Run() error {
	if err := a.startAudio(); err != nil {
		return err
	}
	defer a.stopAudio()
	err := ebiten.RunGame(a)
	if errors.Is(err, ebiten.Termination) {
		return nil
	}
	return err
}

// screenSize is the scanned-out frame size of the current mode.
func (a *App) screenSize() (int, int) {
	m := a.sys.Video.Mode()
	return m.FBWidth, m.XFBHeight
}

func (a *App) Update() error {
	a.keys.poll(ebiten.IsKeyPressed)
	if a.cfg.Wii {
		x, y := ebiten.CursorPosition()
		w, h := a.screenSize()
		a.keys.pointMouse(x, y, w, h,
			ebiten.IsMouseButtonPressed(ebiten.MouseButtonLeft),
			ebiten.IsMouseButtonPressed(ebiten.MouseButtonRight),
			ebiten.IsKeyPressed)
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyF8) {
		a.sys.RequestReset()
	}
	a.sys.PumpEvents(&a.keys)
	for {
		e, ok := a.sys.PollEvent()
		if !ok {
			break
		}
		if e.Kind == input.Quit {
			return ebiten.Termination
		}
		a.events++
		a.last = e
	}

	// Pause toggle (P)
	if inpututil.IsKeyJustPressed(ebiten.KeyP) {
		a.paused = !a.paused
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyM) {
		a.setMuted(!a.muted)
		a.toast(map[bool]string{true: "Muted", false: "Unmuted"}[a.muted])
	}
	// Screenshot (F12)
	if inpututil.IsKeyJustPressed(ebiten.KeyF12) {
		if name, err := a.saveScreenshot(); err != nil {
			a.toast("Screenshot failed: " + err.Error())
		} else {
			a.toast("Saved " + filepath.Base(name))
		}
	}
	// Toggle menu (Escape)
	if inpututil.IsKeyJustPressed(ebiten.KeyEscape) && a.menuMode == "main" {
		a.showMenu = !a.showMenu
		a.menuIdx = 0
	}
	if a.showMenu {
		a.updateMenu()
		return nil
	}

	// Frame-step when paused (N)
	if a.paused && !inpututil.IsKeyJustPressed(ebiten.KeyN) {
		return nil
	}
	if err := a.prog.Frame(); err != nil {
		return fmt.Errorf("ui: frame: %w", err)
	}
	return nil
}

func (a *App) Draw(screen *ebiten.Image) {
	img := a.sys.VI.Frame()
	b := img.Bounds()
	if a.tex == nil || a.tex.Bounds() != b {
		a.tex = ebiten.NewImage(b.Dx(), b.Dy())
	}
	a.tex.WritePixels(img.Pix)
	screen.DrawImage(a.tex, nil)

	if a.showMenu {
		a.drawMenu(screen)
	}
	if time.Now().Before(a.toastUntil) {
		ebitenutil.DebugPrintAt(screen, a.toastMsg, 10, a.curH-20)
	}
}

func (a *App) Layout(outW, outH int) (int, int) {
	a.curW, a.curH = a.screenSize()
	return a.curW, a.curH
}

func (a *App) toast(msg string) {
	a.toastMsg = msg
	a.toastUntil = time.Now().Add(2 * time.Second)
}

func (a *App) saveScreenshot() (string, error) {
	img := a.sys.VI.Frame()
	ts := time.Now().Format("20060102_150405")
	name := filepath.Join(a.cfg.ScreenshotDir, fmt.Sprintf("screenshot_%s.png", ts))
	f, err := os.Create(name)
	if err != nil {
		return "", err
	}
	defer f.Close()
	return name, png.Encode(f, img)
}
