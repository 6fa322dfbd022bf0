package navigator

import (
	"image"
	"image/color"

	"gocv.io/x/gocv"
)

// overlayColor is yellow; gocv takes RGBA and converts to BGR.
var overlayColor = color.RGBA{255, 255, 0, 255}

// OverlayText is the banner drawn on the debug window.
func OverlayText(m Mode) string {
	if m == ModeCloud {
		return "MODO: AWS (NUVEM)"
	}
	return "MODO: LOCAL (PC)"
}

// Overlay is a debug window showing the live frame and the current mode.
// gocv windows must be driven from a single OS thread.
type Overlay struct {
	window *gocv.Window
}

// NewOverlay opens the debug window.
func NewOverlay(title string) *Overlay {
	return &Overlay{window: gocv.NewWindow(title)}
}

// Show draws one frame and returns false once the user presses q.
// Frames that do not decode are skipped.
func (o *Overlay) Show(jpeg []byte, mode Mode) bool {
	img, err := gocv.IMDecode(jpeg, gocv.IMReadColor)
	if err != nil {
		return true
	}
	defer img.Close()
	if img.Empty() {
		return true
	}

	gocv.PutText(&img, OverlayText(mode), image.Pt(10, 30), gocv.FontHersheySimplex, 0.7, overlayColor, 2)
	o.window.IMShow(img)
	return o.window.WaitKey(1) != 'q'
}

func (o *Overlay) Close() error {
	return o.window.Close()
}
