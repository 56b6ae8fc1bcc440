package scene

import (
	"image/color"
	"math"
	"sort"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/vector"
	"github.com/lucasb-eyer/go-colorful"

	"idol-vr/internal/geom"
)

// boxTurn is the time for one full idle rotation, in seconds.
const boxTurn = 10.0

// Box is the last-resort stand-in for the model: a solid coloured box
// slowly turning about its vertical axis.
type Box struct {
	Size  geom.Vec3
	Angle float64

	faces [6]color.RGBA
}

// NewBox creates a box of the given size and base colour.
func NewBox(size geom.Vec3, base color.RGBA) *Box {
	b := &Box{Size: size}
	c, _ := colorful.MakeColor(base)
	black := colorful.Color{}
	white := colorful.Color{R: 1, G: 1, B: 1}
	// Back, front, bottom, top, left, right.
	shades := []colorful.Color{
		c.BlendRgb(black, 0.35),
		c,
		c.BlendRgb(black, 0.5),
		c.BlendRgb(white, 0.25),
		c.BlendRgb(black, 0.2),
		c.BlendRgb(black, 0.1),
	}
	for i, s := range shades {
		r, g, bl := s.Clamped().RGB255()
		b.faces[i] = color.RGBA{r, g, bl, base.A}
	}
	return b
}

// Update advances the idle rotation by dt seconds.
func (b *Box) Update(dt float64) {
	b.Angle = math.Mod(b.Angle+dt*2*math.Pi/boxTurn, 2*math.Pi)
}

var boxFaces = [6][4]int{
	{0, 1, 2, 3}, // Back
	{4, 5, 6, 7}, // Front
	{0, 1, 5, 4}, // Bottom
	{2, 3, 7, 6}, // Top
	{0, 3, 7, 4}, // Left
	{1, 2, 6, 5}, // Right
}

// corners returns the box vertices in world space around centre.
func (b *Box) corners(p geom.Placement) [8]geom.Vec3 {
	hx, hy, hz := b.Size.X()/2*p.Scale.X(), b.Size.Y()/2*p.Scale.Y(), b.Size.Z()/2*p.Scale.Z()
	local := [8]geom.Vec3{
		{-hx, -hy, -hz}, {hx, -hy, -hz}, {hx, hy, -hz}, {-hx, hy, -hz},
		{-hx, -hy, hz}, {hx, -hy, hz}, {hx, hy, hz}, {-hx, hy, hz},
	}
	cos, sin := math.Cos(b.Angle), math.Sin(b.Angle)
	var out [8]geom.Vec3
	for i, v := range local {
		x := v.X()*cos + v.Z()*sin
		z := -v.X()*sin + v.Z()*cos
		out[i] = p.Position.Add(geom.Vec3{x, v.Y(), z})
	}
	return out
}

// Draw renders the box at p as seen by cam.
func (b *Box) Draw(screen *ebiten.Image, cam geom.Camera, p geom.Placement) {
	bounds := screen.Bounds()
	cx, cy := float64(bounds.Dx())/2, float64(bounds.Dy())/2
	world := b.corners(p)

	var (
		pts   [8][2]float32
		depth [8]float64
	)
	for i, v := range world {
		x, y, _, ok := cam.Project(v, cx, cy)
		if !ok {
			return
		}
		pts[i] = [2]float32{float32(x), float32(y)}
		depth[i] = v.Sub(cam.Eye).Len()
	}

	// Painter's order: farthest face first.
	order := []int{0, 1, 2, 3, 4, 5}
	faceDepth := func(f int) float64 {
		d := 0.0
		for _, vi := range boxFaces[f] {
			d += depth[vi]
		}
		return d / 4
	}
	sort.Slice(order, func(i, j int) bool { return faceDepth(order[i]) > faceDepth(order[j]) })

	for _, f := range order {
		face := boxFaces[f]
		clr := b.faces[f]
		drawQuad(screen, pts[face[0]], pts[face[1]], pts[face[2]], pts[face[3]], clr)

		edge := color.RGBA{clr.R * 3 / 4, clr.G * 3 / 4, clr.B * 3 / 4, clr.A}
		for i := 0; i < 4; i++ {
			a, c := pts[face[i]], pts[face[(i+1)%4]]
			vector.StrokeLine(screen, a[0], a[1], c[0], c[1], 1, edge, true)
		}
	}
}

// drawQuad fills a convex quadrilateral as two triangles.
func drawQuad(screen *ebiten.Image, a, b, c, d [2]float32, clr color.Color) {
	drawTriangle(screen, a, b, c, clr)
	drawTriangle(screen, a, c, d, clr)
}

// drawTriangle fills a triangle with horizontal spans.
func drawTriangle(screen *ebiten.Image, p1, p2, p3 [2]float32, clr color.Color) {
	if p1[1] > p2[1] {
		p1, p2 = p2, p1
	}
	if p1[1] > p3[1] {
		p1, p3 = p3, p1
	}
	if p2[1] > p3[1] {
		p2, p3 = p3, p2
	}
	if p3[1]-p1[1] <= 0 {
		return
	}
	lerp := func(a, b [2]float32, y float32) float32 {
		if b[1] == a[1] {
			return a[0]
		}
		return a[0] + (b[0]-a[0])*(y-a[1])/(b[1]-a[1])
	}
	for y := p1[1]; y <= p3[1]; y++ {
		long := lerp(p1, p3, y)
		var short float32
		if y < p2[1] {
			short = lerp(p1, p2, y)
		} else {
			short = lerp(p2, p3, y)
		}
		if long > short {
			long, short = short, long
		}
		vector.StrokeLine(screen, long, y, short+1, y, 1, clr, false)
	}
}
