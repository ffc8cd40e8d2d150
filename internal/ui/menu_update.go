package ui

import (
	"fmt"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
)

var mainMenu = []string{
	"Resume",
	"On-screen keyboard",
	"Cursor",
	"Settings",
	"Keybindings",
	"Reset console",
	"Power off",
}

const numSettings = 4

func (a *App) updateMenu() {
	switch a.menuMode {
	case "settings":
		a.updateSettingsMenu()
	case "keys":
		a.updateKeysMenu()
	default:
		a.updateMainMenu()
	}
}

func (a *App) moveSelection(n int) {
	if inpututil.IsKeyJustPressed(ebiten.KeyArrowUp) && a.menuIdx > 0 {
		a.menuIdx--
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyArrowDown) && a.menuIdx < n-1 {
		a.menuIdx++
	}
}

func (a *App) updateMainMenu() {
	a.moveSelection(len(mainMenu))
	if inpututil.IsKeyJustPressed(ebiten.KeyEnter) {
		switch a.menuIdx {
		case 0:
			a.showMenu = false
		case 1:
			kb := a.sys.OSK
			switch {
			case !kb.HasSupport():
				a.toast("No on-screen keyboard registered")
			case kb.IsShown():
				kb.Hide()
			default:
				kb.Show()
			}
		case 2:
			a.cursorHidden = !a.cursorHidden
			a.sys.Video.ShowCursor(!a.cursorHidden)
		case 3:
			a.menuMode = "settings"
			a.menuIdx = 0
		case 4:
			a.menuMode = "keys"
			a.keysOff = 0
		case 5:
			a.sys.RequestReset()
			a.showMenu = false
		case 6:
			a.sys.RequestPowerOff()
		}
	}
	// Back with Backspace
	if inpututil.IsKeyJustPressed(ebiten.KeyBackspace) {
		a.showMenu = false
	}
}

func (a *App) updateKeysMenu() {
	if inpututil.IsKeyJustPressed(ebiten.KeyArrowUp) && a.keysOff > 0 {
		a.keysOff--
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyArrowDown) && a.keysOff < len(keyHelp)-1 {
		a.keysOff++
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyEscape) || inpututil.IsKeyJustPressed(ebiten.KeyBackspace) {
		a.menuMode = "main"
		a.menuIdx = 4
	}
}

func (a *App) updateSettingsMenu() {
	a.moveSelection(numSettings)
	left := inpututil.IsKeyJustPressed(ebiten.KeyArrowLeft)
	right := inpututil.IsKeyJustPressed(ebiten.KeyArrowRight)
	toggle := left || right || inpututil.IsKeyJustPressed(ebiten.KeyEnter)
	switch a.menuIdx {
	case 0: // Scale
		if left && a.cfg.Scale > 1 {
			a.cfg.Scale--
		}
		if right && a.cfg.Scale < 4 {
			a.cfg.Scale++
		}
		if left || right {
			w, h := a.screenSize()
			ebiten.SetWindowSize(w*a.cfg.Scale, h*a.cfg.Scale)
		}
	case 1: // Mute
		if toggle {
			a.setMuted(!a.muted)
		}
	case 2: // Low latency
		if toggle {
			a.cfg.AudioLowLatency = !a.cfg.AudioLowLatency
			a.applyPlayerBufferSize()
		}
	case 3: // Buffer size
		if left && a.cfg.AudioBufferMs > 20 {
			a.cfg.AudioBufferMs -= 10
		}
		if right && a.cfg.AudioBufferMs < 200 {
			a.cfg.AudioBufferMs += 10
		}
		if left || right {
			a.applyPlayerBufferSize()
			a.toast(fmt.Sprintf("Audio buffer %d ms", a.cfg.AudioBufferMs))
		}
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyEscape) || inpututil.IsKeyJustPressed(ebiten.KeyBackspace) {
		a.menuMode = "main"
		a.menuIdx = 3
	}
}
