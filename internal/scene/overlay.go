package scene

import (
	"fmt"
	"image/color"
	"math"
	"time"

	"github.com/charmbracelet/harmonica"
	"github.com/hajimehoshi/bitmapfont"
	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/text"
	"github.com/hajimehoshi/ebiten/v2/vector"
)

// fade eases a value toward a target with a critically damped spring.
type fade struct {
	spring harmonica.Spring
	value  float64
	vel    float64
	target float64
}

func newFade(tps int, freq, value float64) fade {
	return fade{
		spring: harmonica.NewSpring(harmonica.FPS(tps), freq, 1.0),
		value:  value,
		target: value,
	}
}

func (f *fade) update() {
	f.value, f.vel = f.spring.Update(f.value, f.vel, f.target)
}

func (f *fade) settled() bool {
	return math.Abs(f.value-f.target) < 1e-3 && math.Abs(f.vel) < 1e-3
}

// pulse grows a scale factor to 1.1 and back over twice its half period.
type pulse struct {
	half  time.Duration
	fade  fade
	start time.Time
	on    bool
}

const pulseScale = 1.1

func newPulse(tps int, half time.Duration) pulse {
	return pulse{half: half, fade: newFade(tps, 18, 1)}
}

func (p *pulse) trigger(now time.Time) {
	p.start = now
	p.on = true
}

func (p *pulse) update(now time.Time) {
	p.fade.target = 1
	if p.on && now.Sub(p.start) < p.half {
		p.fade.target = pulseScale
	} else {
		p.on = false
	}
	p.fade.update()
}

func (p *pulse) factor() float64 { return p.fade.value }

// overlay is the loading screen drawn over the world until reveal.
type overlay struct {
	percent    int
	detail     string
	forceStart bool
	opacity    fade
	removed    bool
}

func newOverlay(tps int) overlay {
	return overlay{opacity: newFade(tps, 10, 1), detail: "Loading..."}
}

var (
	backdropColor = color.NRGBA{0x10, 0x04, 0x1c, 0xff}
	accentColor   = color.RGBA{0xff, 0x99, 0x33, 0xff}
	textColor     = color.RGBA{0xff, 0xff, 0xff, 0xff}
	noticeColor   = color.NRGBA{0x8b, 0x1a, 0x1a, 0xe0}
	buttonColor   = color.NRGBA{0x20, 0x20, 0x20, 0xc0}
)

// drawText draws s with its top left corner at x, y.
func drawText(dst *ebiten.Image, s string, x, y, scale float64, clr color.Color, alpha float32) {
	var op ebiten.DrawImageOptions
	// Glyphs are drawn from the baseline.
	op.GeoM.Translate(0, 10)
	op.GeoM.Scale(scale, scale)
	op.GeoM.Translate(x, y)
	op.ColorScale.ScaleWithColor(clr)
	op.ColorScale.ScaleAlpha(alpha)
	text.DrawWithOptions(dst, s, bitmapfont.Gothic12r, &op)
}

// drawCentered draws s horizontally centred on cx.
func drawCentered(dst *ebiten.Image, s string, cx, y, scale float64, clr color.Color, alpha float32) {
	w := float64(text.BoundString(bitmapfont.Gothic12r, s).Dx()) * scale
	drawText(dst, s, cx-w/2, y, scale, clr, alpha)
}

func drawButton(dst *ebiten.Image, b button, alpha float32) {
	r := b.Rect
	bg := buttonColor
	bg.A = uint8(float32(bg.A) * alpha)
	vector.DrawFilledRect(dst, float32(r.Min.X), float32(r.Min.Y), float32(r.Dx()), float32(r.Dy()), bg, false)
	vector.StrokeRect(dst, float32(r.Min.X), float32(r.Min.Y), float32(r.Dx()), float32(r.Dy()), 1, accentColor, false)
	drawCentered(dst, b.Label, float64(r.Min.X+r.Dx()/2), float64(r.Min.Y+(r.Dy()-12)/2), 1, textColor, alpha)
}

func (o *overlay) draw(dst *ebiten.Image) {
	if o.removed {
		return
	}
	a := float32(math.Max(0, math.Min(1, o.opacity.value)))
	if a <= 0 || (o.opacity.target == 0 && o.opacity.settled()) {
		return
	}
	b := dst.Bounds()
	w, h := b.Dx(), b.Dy()

	bg := backdropColor
	bg.A = uint8(float32(bg.A) * a)
	vector.DrawFilledRect(dst, 0, 0, float32(w), float32(h), bg, false)

	cx := float64(w) / 2
	drawCentered(dst, "Loading Experience", cx, float64(h)/2-72, 2, accentColor, a)

	const barW, barH = 240, 6
	bx, by := float32(cx)-barW/2, float32(h)/2-24
	track := color.NRGBA{0x40, 0x40, 0x40, uint8(255 * a)}
	fill := color.NRGBA{accentColor.R, accentColor.G, accentColor.B, uint8(255 * a)}
	vector.DrawFilledRect(dst, bx, by, barW, barH, track, false)
	vector.DrawFilledRect(dst, bx, by, barW*float32(o.percent)/100, barH, fill, false)

	drawCentered(dst, fmt.Sprintf("%d%%", o.percent), cx, float64(h)/2-8, 2, textColor, a)
	drawCentered(dst, o.detail, cx, float64(h)/2+24, 1, textColor, a)

	if o.forceStart {
		drawButton(dst, forceStartButton(w, h), a)
	}
}

func drawNotice(dst *ebiten.Image, msg string) {
	if msg == "" {
		return
	}
	w := dst.Bounds().Dx()
	tw := float32(text.BoundString(bitmapfont.Gothic12r, msg).Dx() + 2*buttonPad)
	x := (float32(w) - tw) / 2
	vector.DrawFilledRect(dst, x, 16, tw, buttonH, noticeColor, false)
	drawCentered(dst, msg, float64(w)/2, 16+(buttonH-12)/2, 1, textColor, 1)
}
