// Package scene is the ebiten host for the loader: it draws the sky, the
// model and the loading overlay, and turns input into supervisor calls.
package scene

import (
	"context"
	"image/color"
	"time"

	"fortio.org/log"
	"github.com/hajimehoshi/ebiten/v2"
	ebitenaudio "github.com/hajimehoshi/ebiten/v2/audio"
	"github.com/hajimehoshi/ebiten/v2/inpututil"

	"idol-vr/internal/assets"
	"idol-vr/internal/audio"
	"idol-vr/internal/config"
	"idol-vr/internal/geom"
	"idol-vr/internal/loader"
	"idol-vr/internal/particles"
	"idol-vr/internal/tracker"
)

const (
	lookSpeed  = 1.5 // radians per second
	dragSpeed  = 0.005
	volumeStep = 0.05
	pulseHalf  = 300 * time.Millisecond
)

// placeholderSize is the box used when no model could be loaded.
var placeholderSize = geom.Vec3{1, 1.5, 0.5}

// Source is where fetches are started and where their results are drained.
type Source interface {
	loader.Fetcher
	Drain(fn func(loader.Result)) int
}

// Orienter reports head orientation from an external tracker.
type Orienter interface {
	Orientation() (tracker.Orientation, bool)
}

// Options configures a Game.
type Options struct {
	Settings config.Settings
	Source   Source
	// Audio is the shared audio context; nil disables playback.
	Audio *ebitenaudio.Context
	// Tracker overrides the look direction when it has a reading.
	Tracker Orienter
	// Observe receives every supervisor snapshot.
	Observe func(loader.Snapshot)
	// Clock defaults to time.Now.
	Clock func() time.Time
}

// Game implements ebiten.Game and loader.Scene.
type Game struct {
	ctx      context.Context
	settings config.Settings
	source   Source
	audioCtx *ebitenaudio.Context
	tracker  Orienter
	clock    func() time.Time
	sup      *loader.Supervisor
	device   Device

	began    bool
	now      time.Time
	revealed bool
	width    int
	height   int

	// World
	sky       *ebiten.Image
	skyColor  color.RGBA
	models    [2]*modelView
	box       *Box
	particles *particles.System
	yaw       float64
	pitch     float64
	dragX     int
	dragY     int
	dragging  bool

	// UI
	overlay overlay
	notice  string
	pulse   pulse

	track   *audio.Track
	playing bool
}

// New wires a Game to a fresh supervisor. Loading starts on the first Update.
func New(ctx context.Context, opts Options) (*Game, error) {
	preset, err := particles.Lookup(opts.Settings.ParticlePreset)
	if err != nil {
		return nil, err
	}
	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}
	tps := ebiten.TPS()
	g := &Game{
		ctx:      ctx,
		settings: opts.Settings,
		source:   opts.Source,
		audioCtx: opts.Audio,
		tracker:  opts.Tracker,
		clock:    clock,
		device: Device{
			Breakpoint:     opts.Settings.MobileBreakpoint,
			MobilePosition: opts.Settings.MobileModelPosition,
			MobileScale:    opts.Settings.MobileScaleFactor,
		},
		width:     1280,
		height:    720,
		skyColor:  color.RGBA{0, 0, 0, 0xff},
		particles: particles.New(preset, opts.Settings.ModelPlacement.Position, nil),
		overlay:   newOverlay(tps),
		pulse:     newPulse(tps, pulseHalf),
	}
	g.sup = loader.New(opts.Settings.Loader, g, opts.Source)
	if opts.Observe != nil {
		g.sup.Observe(opts.Observe)
	}
	g.sup.OnReady(func() {
		log.Infof("Scene revealed, starting particles (%d)", preset.Count)
		g.particles.Enable()
	})
	return g, nil
}

// Supervisor returns the loader driving this game.
func (g *Game) Supervisor() *loader.Supervisor { return g.sup }

// Update implements ebiten.Game.
func (g *Game) Update() error {
	now := g.clock()
	g.step(now)
	g.handleInput(now)
	return nil
}

// step advances everything that does not depend on input.
func (g *Game) step(now time.Time) {
	if !g.began {
		g.began = true
		g.now = now
		g.sup.Begin(g.ctx, now)
	}
	dt := now.Sub(g.now).Seconds()
	g.now = now

	g.source.Drain(g.sup.Deliver)
	g.sup.Tick(now)

	g.overlay.opacity.update()
	g.pulse.update(now)
	if g.box != nil {
		g.box.Update(dt)
	}
	g.particles.Update(dt)

	if g.tracker != nil {
		if o, ok := g.tracker.Orientation(); ok {
			g.yaw, g.pitch = o.Yaw, clampPitch(o.Pitch)
		}
	}
}

func (g *Game) handleInput(now time.Time) {
	dt := 1 / float64(ebiten.TPS())
	if ebiten.IsKeyPressed(ebiten.KeyLeft) {
		g.yaw = wrapYaw(g.yaw + lookSpeed*dt)
	}
	if ebiten.IsKeyPressed(ebiten.KeyRight) {
		g.yaw = wrapYaw(g.yaw - lookSpeed*dt)
	}
	if ebiten.IsKeyPressed(ebiten.KeyUp) {
		g.pitch = clampPitch(g.pitch + lookSpeed*dt)
	}
	if ebiten.IsKeyPressed(ebiten.KeyDown) {
		g.pitch = clampPitch(g.pitch - lookSpeed*dt)
	}

	if inpututil.IsKeyJustPressed(ebiten.KeyM) {
		g.toggleAudio()
	}
	if g.track != nil {
		if inpututil.IsKeyJustPressed(ebiten.KeyEqual) || inpututil.IsKeyJustPressed(ebiten.KeyKPAdd) {
			g.track.SetVolume(g.track.Volume() + volumeStep)
		}
		if inpututil.IsKeyJustPressed(ebiten.KeyMinus) || inpututil.IsKeyJustPressed(ebiten.KeyKPSubtract) {
			g.track.SetVolume(g.track.Volume() - volumeStep)
		}
	}
	if g.overlay.forceStart && inpututil.IsKeyJustPressed(ebiten.KeyEnter) {
		g.sup.ForceStart(now)
	}

	x, y := ebiten.CursorPosition()
	if inpututil.IsMouseButtonJustPressed(ebiten.MouseButtonLeft) {
		g.press(x, y, now)
	}
	if g.dragging {
		if !ebiten.IsMouseButtonPressed(ebiten.MouseButtonLeft) {
			g.dragging = false
		} else {
			g.yaw = wrapYaw(g.yaw + float64(x-g.dragX)*dragSpeed)
			g.pitch = clampPitch(g.pitch + float64(y-g.dragY)*dragSpeed)
			g.dragX, g.dragY = x, y
		}
	}
}

// press handles a mouse press: a click on a target, otherwise the start of
// a look drag.
func (g *Game) press(x, y int, now time.Time) {
	if g.click(x, y, now) {
		return
	}
	g.dragging = true
	g.dragX, g.dragY = x, y
}

// click handles a press at x, y and reports whether it hit anything.
func (g *Game) click(x, y int, now time.Time) bool {
	if g.overlay.forceStart && !g.overlay.removed && forceStartButton(g.width, g.height).hit(x, y) {
		g.sup.ForceStart(now)
		return true
	}
	if g.track != nil && audioButton(g.width, g.height, g.playing).hit(x, y) {
		g.toggleAudio()
		return true
	}
	if !g.revealed {
		return false
	}
	cam := viewCamera(g.width, g.yaw, g.pitch)
	if m := g.models[loader.Primary]; m != nil {
		if m.hit(cam, g.primaryPlacement(), x, y, g.width, g.height) {
			log.LogVf("Model clicked")
			g.pulse.trigger(now)
			g.playAudio()
			return true
		}
	}
	if m := g.models[loader.Secondary]; m != nil {
		if m.hit(cam, g.settings.FallbackPlacement, x, y, g.width, g.height) {
			log.LogVf("Fallback model clicked")
			g.playAudio()
			return true
		}
	}
	return false
}

func (g *Game) toggleAudio() {
	if g.track == nil {
		log.Infof("No audio available")
		return
	}
	g.playing = g.track.Toggle()
}

func (g *Game) playAudio() {
	if g.track == nil || g.playing {
		return
	}
	g.track.Play()
	g.playing = true
}

// primaryPlacement is the device-adjusted placement with the click pulse applied.
func (g *Game) primaryPlacement() geom.Placement {
	return g.device.Place(g.settings.ModelPlacement, g.width).Scaled(g.pulse.factor())
}

func (g *Game) placeholderPlacement() geom.Placement {
	return geom.Placement{Position: g.settings.ModelPlacement.Position, Scale: geom.Vec3{1, 1, 1}}
}

// Draw implements ebiten.Game.
func (g *Game) Draw(screen *ebiten.Image) {
	screen.Fill(g.skyColor)
	g.drawSky(screen)

	cam := viewCamera(g.width, g.yaw, g.pitch)
	if m := g.models[loader.Primary]; m != nil {
		m.draw(screen, cam, g.primaryPlacement())
	}
	if m := g.models[loader.Secondary]; m != nil {
		m.draw(screen, cam, g.settings.FallbackPlacement)
	}
	if g.box != nil {
		g.box.Draw(screen, cam, g.placeholderPlacement())
	}
	g.particles.Draw(screen, cam)

	g.overlay.draw(screen)
	drawNotice(screen, g.notice)
	if g.track != nil {
		drawButton(screen, audioButton(g.width, g.height, g.playing), 1)
	}
}

func (g *Game) drawSky(screen *ebiten.Image) {
	if g.sky == nil {
		return
	}
	b := g.sky.Bounds()
	l := layoutSky(b.Dx(), b.Dy(), g.width, g.height, g.yaw, g.pitch)
	for i := 0; i < l.tiles(g.width); i++ {
		op := &ebiten.DrawImageOptions{}
		op.GeoM.Scale(l.Scale, l.Scale)
		op.GeoM.Translate(l.X+float64(i)*l.TileW, l.Y)
		op.Filter = ebiten.FilterLinear
		screen.DrawImage(g.sky, op)
	}
}

// Layout implements ebiten.Game.
func (g *Game) Layout(outsideWidth, outsideHeight int) (int, int) {
	if outsideWidth > 0 && outsideHeight > 0 {
		if g.device.Mobile(outsideWidth) != g.device.Mobile(g.width) {
			log.LogVf("Window width %d, mobile layout %v", outsideWidth, g.device.Mobile(outsideWidth))
		}
		g.width, g.height = outsideWidth, outsideHeight
	}
	return g.width, g.height
}

// Close stops pending loads and releases audio.
func (g *Game) Close() {
	g.sup.Close()
	if g.track != nil {
		if err := g.track.Close(); err != nil {
			log.Warnf("Error closing audio: %v", err)
		}
	}
}

// ApplyPanorama implements loader.Scene.
func (g *Game) ApplyPanorama(a loader.Asset) {
	p, ok := a.(*assets.Panorama)
	if !ok {
		log.Warnf("Unexpected panorama asset %T", a)
		return
	}
	g.sky = ebiten.NewImageFromImage(p.Image)
}

// ApplySkyColor implements loader.Scene.
func (g *Game) ApplySkyColor(c color.RGBA) {
	g.sky = nil
	g.skyColor = c
}

// ShowModel implements loader.Scene.
func (g *Game) ShowModel(tier loader.Tier, a loader.Asset) {
	m, ok := a.(*assets.Model)
	if !ok || int(tier) >= len(g.models) {
		log.Warnf("Unexpected %s model asset %T", tier, a)
		return
	}
	g.models[tier] = newModelView(m.Library)
}

// HideModel implements loader.Scene.
func (g *Game) HideModel(tier loader.Tier) {
	if int(tier) < len(g.models) {
		g.models[tier] = nil
	}
}

// SpawnPlaceholder implements loader.Scene.
func (g *Game) SpawnPlaceholder() {
	log.Infof("Creating simple box as final fallback")
	g.box = NewBox(placeholderSize, g.settings.PlaceholderColor)
}

// ApplyAudio implements loader.Scene.
func (g *Game) ApplyAudio(a loader.Asset) {
	t, ok := a.(*assets.Track)
	if !ok {
		log.Warnf("Unexpected audio asset %T", a)
		return
	}
	if g.audioCtx == nil {
		log.Infof("Audio output disabled, ignoring %s", t.Source)
		return
	}
	track, err := audio.NewTrack(g.audioCtx, t.Stream, g.settings.MusicVolume)
	if err != nil {
		log.Errf("Failed to load music: %v", err)
		// Continue without music
		return
	}
	g.track = track
}

// SetProgress implements loader.Scene.
func (g *Game) SetProgress(percent int, detail string) {
	g.overlay.percent = percent
	g.overlay.detail = detail
}

// ShowForceStart implements loader.Scene.
func (g *Game) ShowForceStart() { g.overlay.forceStart = true }

// ShowNotice implements loader.Scene.
func (g *Game) ShowNotice(msg string) { g.notice = msg }

// HideNotice implements loader.Scene.
func (g *Game) HideNotice() { g.notice = "" }

// HideOverlay implements loader.Scene.
func (g *Game) HideOverlay() {
	g.overlay.forceStart = false
	g.overlay.opacity.target = 0
}

// RevealScene implements loader.Scene.
func (g *Game) RevealScene() {
	g.overlay.removed = true
	g.revealed = true
}

// Revealed reports whether the scene is visible and interactive.
func (g *Game) Revealed() bool { return g.revealed }

// Look returns the current view direction.
func (g *Game) Look() (yaw, pitch float64) { return g.yaw, g.pitch }

var _ loader.Scene = (*Game)(nil)
