// Package osk hosts an on-screen keyboard plugin. The backend never draws
// a keyboard itself; it forwards text input requests, events and the
// per-frame render call to whichever plugin the application registered.
package osk

import (
	"image"
	"sync"

	"github.com/FabianRolfMatthiasNoll/gxbackend/internal/input"
)

// Plugin is an on-screen keyboard implementation.
type Plugin interface {
	Init(c *Context)
	RenderKeyboard(c *Context)
	// ProcessEvent returns true when the keyboard consumed e.
	ProcessEvent(c *Context, e input.Event) bool
	StartTextInput(c *Context)
	StopTextInput(c *Context)
	SetTextInputRect(c *Context, r image.Rectangle)
	Show(c *Context)
	Hide(c *Context)
}

// Context is the state shared between the backend and the plugin. The
// plugin sets Open and PanY; the backend reads them.
type Context struct {
	Open      bool
	InputRect image.Rectangle
	// PanY shifts the application's viewport so the text field stays
	// visible above the keyboard.
	PanY int

	send func(input.Event)
}

// SendText delivers typed text to the application.
func (c *Context) SendText(text string) {
	if c.send != nil {
		c.send(input.Event{Kind: input.TextInput, Text: text})
	}
}

// SendKey delivers a key press or release to the application.
func (c *Context) SendKey(down bool, scancode int) {
	if c.send == nil {
		return
	}
	k := input.KeyUp
	if down {
		k = input.KeyDown
	}
	c.send(input.Event{Kind: k, Index: scancode})
}

// Manager owns the registered plugin and its context.
type Manager struct {
	mu     sync.Mutex
	plugin Plugin
	ctx    *Context
	send   func(input.Event)
}

// NewManager returns a manager delivering keyboard output through send.
func NewManager(send func(input.Event)) *Manager {
	return &Manager{send: send}
}

// Register installs p and returns the plugin it replaces. The context is
// created on first registration and p is initialised with it.
func (m *Manager) Register(p Plugin) Plugin {
	m.mu.Lock()
	old := m.plugin
	m.plugin = p
	fresh := m.ctx == nil
	if fresh {
		m.ctx = &Context{send: m.send}
	}
	c := m.ctx
	m.mu.Unlock()
	if fresh && p != nil {
		p.Init(c)
	}
	return old
}

func (m *Manager) active() (Plugin, *Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.plugin, m.ctx
}

// HasSupport reports whether a plugin is registered.
func (m *Manager) HasSupport() bool {
	p, _ := m.active()
	return p != nil
}

func (m *Manager) StartTextInput() {
	if p, c := m.active(); p != nil {
		p.StartTextInput(c)
	}
}

func (m *Manager) StopTextInput() {
	if p, c := m.active(); p != nil {
		p.StopTextInput(c)
	}
}

func (m *Manager) SetTextInputRect(r image.Rectangle) {
	if p, c := m.active(); p != nil && c != nil {
		c.InputRect = r
		p.SetTextInputRect(c, r)
	}
}

func (m *Manager) Show() {
	if p, c := m.active(); p != nil {
		p.Show(c)
	}
}

func (m *Manager) Hide() {
	if p, c := m.active(); p != nil {
		p.Hide(c)
	}
}

// IsShown reports whether the keyboard is open.
func (m *Manager) IsShown() bool {
	_, c := m.active()
	return c != nil && c.Open
}

// ProcessEvent offers e to an open keyboard and reports whether it was
// consumed.
func (m *Manager) ProcessEvent(e input.Event) bool {
	p, c := m.active()
	if p == nil || c == nil || !c.Open {
		return false
	}
	return p.ProcessEvent(c, e)
}

// Render draws an open keyboard and reports whether it drew.
func (m *Manager) Render() bool {
	p, c := m.active()
	if p == nil || c == nil || !c.Open {
		return false
	}
	p.RenderKeyboard(c)
	return true
}

// PanY returns the viewport shift requested by the keyboard.
func (m *Manager) PanY() int {
	p, c := m.active()
	if p == nil || c == nil {
		return 0
	}
	return c.PanY
}
