package ui

import (
	"fmt"
	"image/color"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
	"github.com/hajimehoshi/ebiten/v2/vector"
)

var keyHelp = []string{
	"Arrows: D-Pad",
	"WASD: Control stick",
	"IJKL: C stick",
	"Z/X/C/V: A/B/X/Y",
	"Q/E: L/R triggers",
	"F: Z",
	"Enter: Start",
	"Mouse: Wii remote pointer (B/A)",
	"P: Pause",
	"N: Step (when paused)",
	"M: Mute",
	"F8: Reset button",
	"F12: Screenshot",
	"Esc: Open/Close Menu",
}

func (a *App) drawMenu(screen *ebiten.Image) {
	vector.DrawFilledRect(screen, 0, 0, float32(a.curW), float32(a.curH), color.RGBA{0, 0, 0, 160}, false)
	switch a.menuMode {
	case "settings":
		a.drawSettingsMenu(screen)
	case "keys":
		a.drawKeysMenu(screen)
	default:
		a.drawMainMenu(screen)
	}
}

func onOff(b bool) string { return map[bool]string{true: "On", false: "Off"}[b] }

func (a *App) drawList(screen *ebiten.Image, title string, items []string, sel int) {
	ebitenutil.DebugPrintAt(screen, title, 10, 10)
	maxChars := a.maxCharsForText(10)
	for i, s := range items {
		prefix := "  "
		if i == sel {
			prefix = "> "
		}
		ebitenutil.DebugPrintAt(screen, a.truncateText(prefix+s, maxChars), 10, 24+i*14)
	}
}

func (a *App) drawMainMenu(screen *ebiten.Image) {
	items := make([]string, len(mainMenu))
	copy(items, mainMenu)
	items[1] += ": " + onOff(a.sys.OSK.IsShown())
	items[2] += ": " + onOff(!a.cursorHidden)
	a.drawList(screen, "Menu:", items, a.menuIdx)

	m := a.sys.Video.Mode()
	status := fmt.Sprintf("%v  events %d  last %v", m, a.events, a.last.Kind)
	ebitenutil.DebugPrintAt(screen, a.truncateText(status, a.maxCharsForText(10)), 10, 24+(len(items)+1)*14)
}

func (a *App) drawSettingsMenu(screen *ebiten.Image) {
	items := []string{
		fmt.Sprintf("Scale: %dx", a.cfg.Scale),
		"Mute: " + onOff(a.muted),
		"Low-Latency Audio: " + onOff(a.cfg.AudioLowLatency),
		fmt.Sprintf("Audio Buffer: %d ms", a.cfg.AudioBufferMs),
	}
	title := a.truncateText("Settings (Up/Down select; Left/Right change; Esc: back)", a.maxCharsForText(10))
	a.drawList(screen, title, items, a.menuIdx)
}

func (a *App) drawKeysMenu(screen *ebiten.Image) {
	cursorY := 10
	for _, w := range a.wrapText("Keybindings (Up/Down to scroll, Backspace/Esc to return)", a.maxCharsForText(10)) {
		ebitenutil.DebugPrintAt(screen, w, 10, cursorY)
		cursorY += 14
	}
	baseY := cursorY + 4
	maxRows := max((a.curH-baseY)/14, 1)
	end := min(a.keysOff+maxRows, len(keyHelp))
	maxChars := a.maxCharsForText(10)
	for i := a.keysOff; i < end; i++ {
		ebitenutil.DebugPrintAt(screen, a.truncateText(keyHelp[i], maxChars), 10, baseY+(i-a.keysOff)*14)
	}
	// scroll indicators
	if a.keysOff > 0 {
		ebitenutil.DebugPrintAt(screen, "^", 2, baseY)
	}
	if end < len(keyHelp) {
		ebitenutil.DebugPrintAt(screen, "v", 2, baseY+(maxRows-1)*14)
	}
}

// debug text glyphs are 6 pixels wide
func (a *App) maxCharsForText(x int) int { return max((a.curW-x)/6, 1) }

func (a *App) truncateText(s string, n int) string {
	if len(s) <= n {
		return s
	}
	if n <= 3 {
		return s[:n]
	}
	return s[:n-3] + "..."
}

func (a *App) wrapText(s string, n int) []string {
	var lines []string
	for len(s) > n {
		cut := n
		for i := n; i > 0; i-- {
			if s[i] == ' ' {
				cut = i
				break
			}
		}
		lines = append(lines, s[:cut])
		s = s[cut:]
		for len(s) > 0 && s[0] == ' ' {
			s = s[1:]
		}
	}
	return append(lines, s)
}
