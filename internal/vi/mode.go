package vi

import "fmt"

// TVFormat is the broadcast standard the console is set to.
type TVFormat uint8

const (
	NTSC TVFormat = iota
	PAL
	MPAL
	EURGB60
)

func (f TVFormat) String() string {
	switch f {
	case NTSC:
		return "NTSC"
	case PAL:
		return "PAL"
	case MPAL:
		return "MPAL"
	case EURGB60:
		return "EURGB60"
	}
	return fmt.Sprintf("TVFormat(%d)", uint8(f))
}

// ScanMode is how lines are sent to the TV.
type ScanMode uint8

const (
	Interlace ScanMode = iota
	NonInterlace
	Progressive
)

// Mode is a render mode (GXRModeObj): framebuffer geometry plus scan-out
// timing.
type Mode struct {
	Name      string
	TV        TVFormat
	Scan      ScanMode
	FBWidth   int // EFB and XFB width
	EFBHeight int // rendered lines
	XFBHeight int // scanned out lines
	VIWidth   int
	VIHeight  int
	VFilter   bool // vertical copy filter
}

// RefreshHz returns the field rate of the mode's TV format.
func (m Mode) RefreshHz() int {
	if m.TV == PAL {
		return 50
	}
	return 60
}

// XFBSize returns the bytes one external framebuffer of this mode needs.
func (m Mode) XFBSize() int {
	return m.FBWidth * m.XFBHeight * BytesPerPixel
}

func (m Mode) String() string {
	return fmt.Sprintf("%s %dx%d@%dHz", m.Name, m.FBWidth, m.EFBHeight, m.RefreshHz())
}

// Predefined render modes.
var (
	NTSC240Ds = Mode{Name: "NTSC 240p", TV: NTSC, Scan: NonInterlace,
		FBWidth: 640, EFBHeight: 240, XFBHeight: 240, VIWidth: 640, VIHeight: 480, VFilter: true}
	NTSC480Prog = Mode{Name: "NTSC 480p", TV: NTSC, Scan: Progressive,
		FBWidth: 640, EFBHeight: 480, XFBHeight: 480, VIWidth: 640, VIHeight: 480, VFilter: true}
	MPAL240Ds = Mode{Name: "MPAL 240p", TV: MPAL, Scan: NonInterlace,
		FBWidth: 640, EFBHeight: 240, XFBHeight: 240, VIWidth: 640, VIHeight: 480, VFilter: true}
	MPAL480Prog = Mode{Name: "MPAL 480p", TV: MPAL, Scan: Progressive,
		FBWidth: 640, EFBHeight: 480, XFBHeight: 480, VIWidth: 640, VIHeight: 480, VFilter: true}
	EURGB60240Ds = Mode{Name: "EURGB60 240p", TV: EURGB60, Scan: NonInterlace,
		FBWidth: 640, EFBHeight: 240, XFBHeight: 240, VIWidth: 640, VIHeight: 480, VFilter: true}
	EURGB60480Prog = Mode{Name: "EURGB60 480p", TV: EURGB60, Scan: Progressive,
		FBWidth: 640, EFBHeight: 480, XFBHeight: 480, VIWidth: 640, VIHeight: 480, VFilter: true}
	PAL264Ds = Mode{Name: "PAL 264p", TV: PAL, Scan: NonInterlace,
		FBWidth: 640, EFBHeight: 264, XFBHeight: 264, VIWidth: 640, VIHeight: 528, VFilter: true}
	PAL528Prog = Mode{Name: "PAL 528p", TV: PAL, Scan: Progressive,
		FBWidth: 640, EFBHeight: 528, XFBHeight: 528, VIWidth: 640, VIHeight: 528, VFilter: true}
	PAL576ProgScale = Mode{Name: "PAL 576p scaled", TV: PAL, Scan: Progressive,
		FBWidth: 640, EFBHeight: 480, XFBHeight: 576, VIWidth: 640, VIHeight: 576, VFilter: true}
)

// PreferredMode returns the default mode for a TV format.
func PreferredMode(f TVFormat) Mode {
	switch f {
	case PAL:
		return PAL528Prog
	case MPAL:
		return MPAL480Prog
	case EURGB60:
		return EURGB60480Prog
	}
	return NTSC480Prog
}
