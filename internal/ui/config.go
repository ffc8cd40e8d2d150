package ui

// Config contains window/input/audio related settings.
type Config struct {
	Title string // window title
	Scale int    // integer upscaling factor
	Wii   bool   // the mouse drives Wii remote 0
	// Audio buffering
	AudioMono       bool // fold the DSP output to mono
	AudioBufferMs   int  // desired host buffer in ms (approx)
	AudioLowLatency bool // hard-cap buffering for minimal latency
	ScreenshotDir   string
}

// Defaults fills missing fields with reasonable defaults.
func (c *Config) Defaults() {
	if c.Title == "" {
		c.Title = "gxdemo"
	}
	if c.Scale <= 0 {
		c.Scale = 1
	}
	if c.AudioBufferMs <= 0 {
		c.AudioBufferMs = 40
	}
	if c.ScreenshotDir == "" {
		c.ScreenshotDir = "."
	}
}
