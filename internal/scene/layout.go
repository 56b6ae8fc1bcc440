package scene

import (
	"image"
	"math"

	"idol-vr/internal/geom"
)

// Device describes how the primary model is placed on narrow screens.
type Device struct {
	Breakpoint     int
	MobilePosition geom.Vec3
	MobileScale    float64
}

// Place returns the placement for a window of the given width. It always
// starts from base so repeated resizes never compound the scale.
func (d Device) Place(base geom.Placement, width int) geom.Placement {
	if d.Breakpoint <= 0 || width >= d.Breakpoint {
		return base
	}
	p := base.Scaled(d.MobileScale)
	p.Position = d.MobilePosition
	return p
}

// Mobile reports whether width is below the breakpoint.
func (d Device) Mobile(width int) bool {
	return d.Breakpoint > 0 && width < d.Breakpoint
}

// fov is the horizontal field of view of the viewer.
const fov = math.Pi / 2

// eyeHeight matches a standing viewer.
const eyeHeight = 1.6

// viewCamera returns the camera for a screen of width w.
func viewCamera(w int, yaw, pitch float64) geom.Camera {
	return geom.Camera{
		Eye:   geom.Vec3{0, eyeHeight, 0},
		Yaw:   yaw,
		Pitch: pitch,
		Focal: float64(w) / 2 / math.Tan(fov/2),
	}
}

// skyLayout is how an equirectangular panorama maps onto the screen.
type skyLayout struct {
	Scale float64 // image to screen
	TileW float64 // scaled width of one full turn
	X     float64 // left edge of the first tile, in (-TileW, 0]
	Y     float64 // top edge
}

// layoutSky wraps a panorama of imgW x imgH around the viewer. Positive
// yaw (turning left) moves the sky right, positive pitch moves it down.
func layoutSky(imgW, imgH, screenW, screenH int, yaw, pitch float64) skyLayout {
	if imgW <= 0 || imgH <= 0 {
		return skyLayout{}
	}
	tileW := float64(screenW) * 2 * math.Pi / fov
	scale := tileW / float64(imgW)
	pxPerRad := tileW / (2 * math.Pi)

	x := float64(screenW)/2 - tileW/2 + yaw*pxPerRad
	x = math.Mod(x, tileW)
	if x > 0 {
		x -= tileW
	}
	y := float64(screenH)/2 - float64(imgH)*scale/2 + pitch*pxPerRad
	return skyLayout{Scale: scale, TileW: tileW, X: x, Y: y}
}

// tiles returns how many copies cover a screen of width w.
func (l skyLayout) tiles(w int) int {
	if l.TileW <= 0 {
		return 0
	}
	return int(math.Ceil((float64(w)-l.X)/l.TileW))
}

// clampPitch keeps the view off the poles.
func clampPitch(p float64) float64 {
	const limit = math.Pi / 2 * 0.9
	return math.Max(-limit, math.Min(limit, p))
}

// wrapYaw folds yaw into (-pi, pi].
func wrapYaw(y float64) float64 {
	y = math.Mod(y+math.Pi, 2*math.Pi)
	if y < 0 {
		y += 2 * math.Pi
	}
	return y - math.Pi
}

// button is a clickable rectangle with a label.
type button struct {
	Rect  image.Rectangle
	Label string
}

func (b button) hit(x, y int) bool {
	return image.Pt(x, y).In(b.Rect)
}

const (
	buttonH   = 28
	buttonPad = 12
	charW     = 6 // bitmapfont Gothic12r half-width glyph
)

// audioButton sits in the bottom right corner.
func audioButton(w, h int, playing bool) button {
	label := "Play Mantra"
	if playing {
		label = "Pause Mantra"
	}
	bw := len(label)*charW + 2*buttonPad
	return button{
		Rect:  image.Rect(w-bw-16, h-buttonH-16, w-16, h-16),
		Label: label,
	}
}

// forceStartButton sits under the progress readout.
func forceStartButton(w, h int) button {
	const label = "Start Now"
	bw := len(label)*charW + 2*buttonPad
	x := (w - bw) / 2
	y := h/2 + 48
	return button{Rect: image.Rect(x, y, x+bw, y+buttonH), Label: label}
}
