package scene

import (
	"image"
	"math"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/solarlune/tetra3d"

	"idol-vr/internal/geom"
)

const (
	modelTexSize = 512
	// tan(30deg), half of the off-screen camera's 60 degree field of view.
	modelHalfFov = 0.5773502691896257
	// framePad leaves a margin around the model inside its texture.
	framePad = 1.1
)

// extent is a model's axis-aligned bounds in its own units.
type extent struct {
	Center geom.Vec3
	Size   geom.Vec3
}

// span is how many model units the texture covers on each side.
func (e extent) span() float64 {
	s := math.Max(e.Size.X(), e.Size.Y()) * framePad
	if s <= 0 {
		return 1
	}
	return s
}

// center is the world position of the bounds' centre at placement p.
func (e extent) center(p geom.Placement) geom.Vec3 {
	return p.Position.Add(geom.Vec3{
		e.Center.X() * p.Scale.X(),
		e.Center.Y() * p.Scale.Y(),
		e.Center.Z() * p.Scale.Z(),
	})
}

// spriteRect is where the model's texture lands on screen for placement p.
func (e extent) spriteRect(cam geom.Camera, p geom.Placement, screenW, screenH int) (image.Rectangle, bool) {
	s := e.span()
	return projectRect(cam, e.center(p), s*math.Abs(p.Scale.X()), s*math.Abs(p.Scale.Y()), screenW, screenH)
}

// hitRect is the screen box of the model itself, without the texture margin.
func (e extent) hitRect(cam geom.Camera, p geom.Placement, screenW, screenH int) (image.Rectangle, bool) {
	return projectRect(cam, e.center(p), e.Size.X()*math.Abs(p.Scale.X()), e.Size.Y()*math.Abs(p.Scale.Y()), screenW, screenH)
}

// projectRect projects a w by h world rectangle facing the viewer at c, and
// returns false when c is behind the viewer.
func projectRect(cam geom.Camera, c geom.Vec3, w, h float64, screenW, screenH int) (image.Rectangle, bool) {
	x, y, f, ok := cam.Project(c, float64(screenW)/2, float64(screenH)/2)
	if !ok {
		return image.Rectangle{}, false
	}
	w, h = w*f, h*f
	return image.Rect(
		int(math.Round(x-w/2)), int(math.Round(y-h/2)),
		int(math.Round(x+w/2)), int(math.Round(y+h/2)),
	), true
}

// measure returns the bounds of every mesh under root.
func measure(root tetra3d.INode) extent {
	lo := geom.Vec3{math.Inf(1), math.Inf(1), math.Inf(1)}
	hi := geom.Vec3{math.Inf(-1), math.Inf(-1), math.Inf(-1)}
	found := false
	for _, m := range root.SearchTree().Models() {
		if m.Mesh == nil {
			continue
		}
		d := m.Mesh.Dimensions
		t := m.Transform()
		for _, x := range []float64{d.Min.X, d.Max.X} {
			for _, y := range []float64{d.Min.Y, d.Max.Y} {
				for _, z := range []float64{d.Min.Z, d.Max.Z} {
					v := t.MultVec(tetra3d.Vector{X: x, Y: y, Z: z})
					for i, c := range []float64{v.X, v.Y, v.Z} {
						lo[i] = math.Min(lo[i], c)
						hi[i] = math.Max(hi[i], c)
					}
				}
			}
		}
		found = true
	}
	if !found {
		return extent{Size: geom.Vec3{1, 1, 1}}
	}
	return extent{Center: lo.Add(hi).Mul(0.5), Size: hi.Sub(lo)}
}

// modelView renders a glTF scene off-screen, framed to its bounds, and
// composites it into the world at a fixed placement.
type modelView struct {
	scene  *tetra3d.Scene
	camera *tetra3d.Camera
	bounds extent
}

func newModelView(lib *tetra3d.Library) *modelView {
	scene := lib.Scenes[0].Clone()
	bounds := measure(scene.Root)
	camera := tetra3d.NewCamera(modelTexSize, modelTexSize)
	c := bounds.Center
	dist := bounds.Size.Z()/2 + bounds.span()/2/modelHalfFov
	camera.SetLocalPosition(c.X(), c.Y(), c.Z()+dist)
	scene.Root.AddChildren(camera)
	return &modelView{scene: scene, camera: camera, bounds: bounds}
}

func (m *modelView) render() *ebiten.Image {
	m.camera.Clear()
	m.camera.RenderScene(m.scene)
	return m.camera.ColorTexture()
}

// hit reports whether screen point x, y lies on the model at placement p.
func (m *modelView) hit(cam geom.Camera, p geom.Placement, x, y, screenW, screenH int) bool {
	r, ok := m.bounds.hitRect(cam, p, screenW, screenH)
	return ok && image.Pt(x, y).In(r)
}

func (m *modelView) draw(screen *ebiten.Image, cam geom.Camera, p geom.Placement) {
	b := screen.Bounds()
	r, ok := m.bounds.spriteRect(cam, p, b.Dx(), b.Dy())
	if !ok || r.Empty() || !r.Overlaps(b) {
		return
	}
	tex := m.render()
	tw, th := tex.Bounds().Dx(), tex.Bounds().Dy()

	op := &ebiten.DrawImageOptions{}
	op.GeoM.Scale(float64(r.Dx())/float64(tw), float64(r.Dy())/float64(th))
	op.GeoM.Translate(float64(r.Min.X), float64(r.Min.Y))
	op.Filter = ebiten.FilterLinear
	screen.DrawImage(tex, op)
}
