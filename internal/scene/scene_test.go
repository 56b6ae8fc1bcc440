package scene

import (
	"context"
	"errors"
	"image"
	"image/color"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"idol-vr/internal/config"
	"idol-vr/internal/geom"
	"idol-vr/internal/loader"
	"idol-vr/internal/tracker"
)

func TestDevicePlace(t *testing.T) {
	d := Device{Breakpoint: 768, MobilePosition: geom.Vec3{0, 1, -2}, MobileScale: 0.8}
	base := geom.Placement{Position: geom.Vec3{0, 1.5, -3}, Scale: geom.Vec3{50, 50, 50}}

	assert.Equal(t, base, d.Place(base, 1280))
	assert.Equal(t, base, d.Place(base, 768))
	assert.False(t, d.Mobile(768))
	assert.True(t, d.Mobile(767))

	m := d.Place(base, 767)
	assert.Equal(t, geom.Vec3{0, 1, -2}, m.Position)
	assert.True(t, geom.Vec3{40, 40, 40}.ApproxEqual(m.Scale))

	// Resizing back and forth never compounds.
	for _, w := range []int{500, 1000, 400, 300} {
		_ = d.Place(base, w)
	}
	assert.True(t, geom.Vec3{40, 40, 40}.ApproxEqual(d.Place(base, 300).Scale))
	assert.Equal(t, base, d.Place(base, 1024))

	assert.Equal(t, base, Device{}.Place(base, 100))
}

func TestLayoutSky(t *testing.T) {
	l := layoutSky(4096, 2048, 800, 600, 0, 0)
	assert.InDelta(t, 3200, l.TileW, 1e-9)
	assert.InDelta(t, 3200.0/4096, l.Scale, 1e-9)
	// Image centre sits at screen centre.
	assert.InDelta(t, 400, l.X+l.TileW/2, 1e-9)
	assert.InDelta(t, 300, l.Y+2048*l.Scale/2, 1e-9)

	// A quarter turn left shifts the sky right by one screen width.
	r := layoutSky(4096, 2048, 800, 600, math.Pi/2, 0)
	assert.InDelta(t, math.Mod(l.X+800+l.TileW, l.TileW)-l.TileW, r.X, 1e-6)

	for _, yaw := range []float64{-7, -math.Pi, 0, 1, math.Pi, 12} {
		s := layoutSky(1000, 500, 800, 600, yaw, 0)
		assert.LessOrEqual(t, s.X, 0.0)
		assert.Greater(t, s.X, -s.TileW)
		assert.GreaterOrEqual(t, s.X+float64(s.tiles(800))*s.TileW, 800.0)
	}

	up := layoutSky(4096, 2048, 800, 600, 0, 0.2)
	assert.Greater(t, up.Y, l.Y)

	assert.Zero(t, layoutSky(0, 0, 800, 600, 0, 0).tiles(800))
}

func TestAngles(t *testing.T) {
	assert.InDelta(t, 0, wrapYaw(2*math.Pi), 1e-9)
	assert.InDelta(t, -math.Pi/2, wrapYaw(3*math.Pi/2), 1e-9)
	assert.InDelta(t, math.Pi/2, wrapYaw(-3*math.Pi/2), 1e-9)
	assert.InDelta(t, math.Pi/2*0.9, clampPitch(3), 1e-9)
	assert.InDelta(t, -math.Pi/2*0.9, clampPitch(-3), 1e-9)
	assert.InDelta(t, 0.3, clampPitch(0.3), 1e-9)
}

func TestButtons(t *testing.T) {
	b := audioButton(1280, 720, false)
	assert.Equal(t, "Play Mantra", b.Label)
	assert.True(t, b.hit(b.Rect.Min.X+1, b.Rect.Min.Y+1))
	assert.False(t, b.hit(10, 10))
	assert.True(t, b.Rect.In(image.Rect(0, 0, 1280, 720)))
	assert.Equal(t, "Pause Mantra", audioButton(1280, 720, true).Label)

	f := forceStartButton(1280, 720)
	c := f.Rect.Min.Add(f.Rect.Size().Div(2))
	assert.InDelta(t, 640, c.X, 1)
	assert.True(t, f.hit(c.X, c.Y))
}

func TestModelRects(t *testing.T) {
	cam := viewCamera(800, 0, 0)
	p := geom.Placement{Position: geom.Vec3{0, eyeHeight, -3}, Scale: geom.Vec3{1, 1, 1}}
	e := extent{Size: geom.Vec3{1, 1, 1}}

	hit, ok := e.hitRect(cam, p, 800, 600)
	require.True(t, ok)
	c := hit.Min.Add(hit.Size().Div(2))
	assert.InDelta(t, 400, c.X, 1)
	assert.InDelta(t, 300, c.Y, 1)
	// 400px focal length at 3 units.
	assert.InDelta(t, 133, hit.Dx(), 1)

	sprite, ok := e.spriteRect(cam, p, 800, 600)
	require.True(t, ok)
	assert.True(t, hit.In(sprite))
	assert.InDelta(t, 147, sprite.Dx(), 1)

	big, ok := e.hitRect(cam, p.Scaled(2), 800, 600)
	require.True(t, ok)
	assert.InDelta(t, 2*hit.Dx(), big.Dx(), 2)

	// An off-centre mesh moves with the scale applied to it.
	up := extent{Center: geom.Vec3{0, 0.5, 0}, Size: geom.Vec3{1, 1, 1}}
	r, ok := up.hitRect(cam, p.Scaled(2), 800, 600)
	require.True(t, ok)
	assert.InDelta(t, 300-133, r.Min.Y+r.Dy()/2, 1)

	_, ok = e.hitRect(viewCamera(800, math.Pi, 0), p, 800, 600)
	assert.False(t, ok)

	assert.InDelta(t, 1, extent{}.span(), 1e-9)
}

// A small native model at the default placement stays a small target.
func TestModelHitDefaultPlacement(t *testing.T) {
	settings, err := config.Default().Settings()
	require.NoError(t, err)
	m := &modelView{bounds: extent{Center: geom.Vec3{0, 0.02, 0}, Size: geom.Vec3{0.03, 0.04, 0.02}}}
	cam := viewCamera(1280, 0, 0)

	r, ok := m.bounds.hitRect(cam, settings.ModelPlacement, 1280, 720)
	require.True(t, ok)
	assert.Less(t, r.Dx(), 1280/2)
	assert.Less(t, r.Dy(), 720)
	assert.True(t, m.hit(cam, settings.ModelPlacement, 640, 300, 1280, 720))
	assert.False(t, m.hit(cam, settings.ModelPlacement, 100, 650, 1280, 720))
	assert.False(t, m.hit(cam, settings.ModelPlacement, 1200, 300, 1280, 720))
}

func TestPulse(t *testing.T) {
	p := newPulse(60, 300*time.Millisecond)
	now := time.Unix(0, 0)
	frame := time.Second / 60

	assert.InDelta(t, 1, p.factor(), 1e-9)
	p.trigger(now)
	peak := 1.0
	for range 18 {
		now = now.Add(frame)
		p.update(now)
		peak = math.Max(peak, p.factor())
	}
	assert.Greater(t, peak, 1.05)
	assert.LessOrEqual(t, peak, 1.1+1e-6)

	for range 60 {
		now = now.Add(frame)
		p.update(now)
	}
	assert.InDelta(t, 1, p.factor(), 1e-3)
}

func TestFade(t *testing.T) {
	f := newFade(60, 10, 1)
	assert.True(t, f.settled())
	f.target = 0
	assert.False(t, f.settled())
	for range 120 {
		f.update()
	}
	assert.True(t, f.settled())
	assert.InDelta(t, 0, f.value, 1e-3)
}

func TestBoxRotation(t *testing.T) {
	b := NewBox(placeholderSize, color.RGBA{0xff, 0x99, 0x33, 0xff})
	assert.Equal(t, color.RGBA{0xff, 0x99, 0x33, 0xff}, b.faces[1])
	for _, f := range b.faces {
		assert.Equal(t, uint8(0xff), f.A)
	}

	b.Update(boxTurn / 4)
	assert.InDelta(t, math.Pi/2, b.Angle, 1e-9)
	b.Update(boxTurn)
	assert.InDelta(t, math.Pi/2, b.Angle, 1e-9)

	// A quarter turn swaps width and depth.
	c := b.corners(geom.Placement{Position: geom.Vec3{0, 1.5, -3}, Scale: geom.Vec3{1, 1, 1}})
	assert.InDelta(t, 0.25, math.Abs(c[0].X()), 1e-9)
	assert.InDelta(t, 0.5, math.Abs(c[0].Z()+3), 1e-9)
	assert.InDelta(t, 0.75, c[0].Y(), 1e-9)
}

type fakeSource struct {
	reqs    []loader.Request
	ready   []loader.Result
	respond func(loader.Request) (loader.Result, bool)
}

func (f *fakeSource) Fetch(_ context.Context, req loader.Request) {
	f.reqs = append(f.reqs, req)
	if f.respond == nil {
		return
	}
	if r, ok := f.respond(req); ok {
		f.ready = append(f.ready, r)
	}
}

func (f *fakeSource) Drain(fn func(loader.Result)) int {
	rs := f.ready
	f.ready = nil
	for _, r := range rs {
		fn(r)
	}
	return len(rs)
}

type fixedOrienter struct{ o tracker.Orientation }

func (f fixedOrienter) Orientation() (tracker.Orientation, bool) { return f.o, true }

func newTestGame(t *testing.T, src *fakeSource, opts Options) *Game {
	t.Helper()
	settings, err := config.Default().Settings()
	require.NoError(t, err)
	opts.Settings = settings
	opts.Source = src
	g, err := New(context.Background(), opts)
	require.NoError(t, err)
	return g
}

var t0 = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func TestGameAllFail(t *testing.T) {
	src := &fakeSource{respond: func(req loader.Request) (loader.Result, bool) {
		return loader.Result{Attempt: req.Attempt, Resource: req.Resource, Tier: req.Tier,
			Err: errors.New("boom")}, true
	}}
	var snaps []loader.Snapshot
	g := newTestGame(t, src, Options{Observe: func(s loader.Snapshot) { snaps = append(snaps, s) }})

	// The first step begins loading and drains the primary failures, which
	// starts the secondary model.
	g.step(t0)
	require.Len(t, src.reqs, 4)
	assert.Equal(t, loader.Secondary, src.reqs[3].Tier)
	assert.Equal(t, 2, g.Supervisor().Completed())

	g.step(t0.Add(16 * time.Millisecond))

	sup := g.Supervisor()
	assert.Equal(t, loader.Finalizing, sup.State())
	assert.Equal(t, 3, sup.Completed())
	assert.NotNil(t, g.box)
	assert.Nil(t, g.sky)
	assert.Equal(t, g.settings.Loader.SkyColor, g.skyColor)
	assert.Nil(t, g.track)
	assert.Equal(t, loader.FallbackNotice, g.notice)
	assert.Zero(t, g.overlay.opacity.target)
	assert.False(t, g.Revealed())
	assert.False(t, g.particles.Enabled())

	g.step(t0.Add(600 * time.Millisecond))
	assert.Equal(t, loader.Ready, sup.State())
	assert.True(t, g.Revealed())
	assert.True(t, g.overlay.removed)
	assert.True(t, g.particles.Enabled())
	assert.Equal(t, 200, g.particles.Alive())

	g.step(t0.Add(6 * time.Second))
	assert.Empty(t, g.notice)

	require.NotEmpty(t, snaps)
	assert.Equal(t, loader.Ready, snaps[len(snaps)-1].State)
}

func TestGameCeiling(t *testing.T) {
	src := &fakeSource{}
	g := newTestGame(t, src, Options{})

	g.step(t0)
	assert.False(t, g.overlay.forceStart)
	g.step(t0.Add(10 * time.Second))
	assert.True(t, g.overlay.forceStart)
	assert.Equal(t, loader.Loading, g.Supervisor().State())

	g.step(t0.Add(15 * time.Second))
	assert.Equal(t, loader.Finalizing, g.Supervisor().State())
	assert.False(t, g.overlay.forceStart)
	assert.NotNil(t, g.box)
	assert.Equal(t, 100, g.overlay.percent)

	g.step(t0.Add(15*time.Second + 500*time.Millisecond))
	assert.True(t, g.Revealed())
}

func TestGameTracker(t *testing.T) {
	g := newTestGame(t, &fakeSource{}, Options{Tracker: fixedOrienter{tracker.Orientation{Yaw: 0.4, Pitch: 3}}})
	g.step(t0)
	yaw, pitch := g.Look()
	assert.InDelta(t, 0.4, yaw, 1e-9)
	assert.InDelta(t, math.Pi/2*0.9, pitch, 1e-9)
}

func TestGameLayoutAndPlacement(t *testing.T) {
	g := newTestGame(t, &fakeSource{}, Options{})
	w, h := g.Layout(600, 900)
	assert.Equal(t, 600, w)
	assert.Equal(t, 900, h)
	assert.Equal(t, g.settings.MobileModelPosition, g.primaryPlacement().Position)

	g.Layout(1280, 720)
	assert.Equal(t, g.settings.ModelPlacement, g.primaryPlacement())

	w, h = g.Layout(0, 0)
	assert.Equal(t, 1280, w)
	assert.Equal(t, 720, h)
}

func TestUnknownPreset(t *testing.T) {
	settings, err := config.Default().Settings()
	require.NoError(t, err)
	settings.ParticlePreset = "confetti"
	_, err = New(context.Background(), Options{Settings: settings, Source: &fakeSource{}})
	assert.Error(t, err)
}

func TestGamePress(t *testing.T) {
	g := newTestGame(t, &fakeSource{}, Options{})
	g.Layout(1280, 720)
	g.revealed = true
	g.models[loader.Primary] = &modelView{bounds: extent{Center: geom.Vec3{0, 0.02, 0}, Size: geom.Vec3{0.03, 0.04, 0.02}}}

	// Away from the model a press starts a look drag.
	g.press(100, 650, t0)
	assert.True(t, g.dragging)
	assert.Equal(t, 100, g.dragX)
	assert.Equal(t, 650, g.dragY)
	assert.False(t, g.pulse.on)

	g.dragging = false
	g.press(640, 300, t0)
	assert.False(t, g.dragging)
	assert.True(t, g.pulse.on)

	// Before reveal the model is not a target.
	g.pulse.on = false
	g.revealed = false
	g.press(640, 300, t0)
	assert.True(t, g.dragging)
	assert.False(t, g.pulse.on)
}
