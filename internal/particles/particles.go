// Package particles animates short-lived decorative sprites around a point
// in the scene.
package particles

import (
	"fmt"
	"image/color"
	"math"
	"math/rand/v2"
	"sort"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/vector"

	"idol-vr/internal/geom"
)

// Preset describes one burst of particles.
type Preset struct {
	Count    int
	Colors   []color.RGBA
	Size     float64 // world units
	Duration float64 // seconds
	Velocity float64 // world units per second
}

var presets = map[string]struct {
	count                    int
	colors                   string
	size, duration, velocity float64
}{
	"dust":    {100, "#ffffff", 0.05, 2, 0.5},
	"sparkle": {50, "#ffcc00,#ff9933,#ffffff", 0.03, 1, 1.5},
	"divine":  {200, "#ff9933,#ffffff,#138808", 0.04, 3, 0.8},
}

// Names lists the known presets.
func Names() []string {
	names := make([]string, 0, len(presets))
	for n := range presets {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Lookup returns the named preset.
func Lookup(name string) (Preset, error) {
	p, ok := presets[name]
	if !ok {
		return Preset{}, fmt.Errorf("unknown particle preset %q", name)
	}
	colors, err := geom.ParseColors(p.colors)
	if err != nil {
		return Preset{}, err
	}
	return Preset{Count: p.count, Colors: colors, Size: p.size, Duration: p.duration, Velocity: p.velocity}, nil
}

// Particle is one live sprite. Position is relative to the system centre.
type Particle struct {
	Pos     geom.Vec3
	Vel     geom.Vec3
	Radius  float64
	Life    float64
	Opacity float64
	Color   color.RGBA
}

// System owns a burst of particles.
type System struct {
	Center geom.Vec3

	preset    Preset
	rng       *rand.Rand
	particles []Particle
	enabled   bool
}

// New creates a disabled system. rng may be nil.
func New(p Preset, center geom.Vec3, rng *rand.Rand) *System {
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &System{Center: center, preset: p, rng: rng}
}

// Enable spawns a fresh burst.
func (s *System) Enable() {
	s.Clear()
	s.spawn()
	s.enabled = true
}

// Disable stops the animation and removes every particle.
func (s *System) Disable() {
	s.enabled = false
	s.Clear()
}

// Enabled reports whether the system is animating.
func (s *System) Enabled() bool { return s.enabled }

// Clear removes all particles.
func (s *System) Clear() { s.particles = s.particles[:0] }

// Alive returns the number of live particles.
func (s *System) Alive() int { return len(s.particles) }

// Particles returns the live particles. The slice is owned by the system.
func (s *System) Particles() []Particle { return s.particles }

func (s *System) spawn() {
	p := s.preset
	for range p.Count {
		angle := s.rng.Float64() * 2 * math.Pi
		radius := s.rng.Float64() * 0.5
		pos := geom.Vec3{
			math.Cos(angle) * radius,
			s.rng.Float64()*0.5 - 0.25,
			math.Sin(angle) * radius,
		}

		dir := geom.Vec3{s.rng.Float64()*2 - 1, s.rng.Float64() * 2, s.rng.Float64()*2 - 1}
		if dir.Len() < 1e-9 {
			dir = geom.Vec3{0, 1, 0}
		}
		speed := p.Velocity * (0.5 + s.rng.Float64())

		var c color.RGBA
		if len(p.Colors) > 0 {
			c = p.Colors[s.rng.IntN(len(p.Colors))]
		}
		s.particles = append(s.particles, Particle{
			Pos:     pos,
			Vel:     dir.Normalize().Mul(speed),
			Radius:  p.Size * (0.5 + s.rng.Float64()*0.5),
			Life:    p.Duration * (0.7 + s.rng.Float64()*0.6),
			Opacity: 0.7,
			Color:   c,
		})
	}
}

// Update advances every particle by dt seconds. Dead particles are removed;
// the system disables itself once none are left.
func (s *System) Update(dt float64) {
	if !s.enabled {
		return
	}
	live := s.particles[:0]
	for _, pt := range s.particles {
		pt.Life -= dt
		if pt.Life <= 0 {
			continue
		}
		pt.Pos = pt.Pos.Add(pt.Vel.Mul(dt))
		norm := pt.Life / s.preset.Duration
		pt.Opacity = math.Min(1, norm) * 0.7
		pt.Radius = norm * s.preset.Size
		live = append(live, pt)
	}
	s.particles = live
	if len(s.particles) == 0 {
		s.enabled = false
	}
}

// Draw projects the particles through cam onto dst.
func (s *System) Draw(dst *ebiten.Image, cam geom.Camera) {
	if len(s.particles) == 0 {
		return
	}
	b := dst.Bounds()
	cx, cy := float64(b.Dx())/2, float64(b.Dy())/2
	for _, pt := range s.particles {
		x, y, f, ok := cam.Project(s.Center.Add(pt.Pos), cx, cy)
		if !ok {
			continue
		}
		r := pt.Radius * f
		if r < 0.5 {
			r = 0.5
		}
		clr := color.NRGBA{pt.Color.R, pt.Color.G, pt.Color.B, uint8(pt.Opacity * 255)}
		vector.DrawFilledCircle(dst, float32(x), float32(y), float32(r), clr, true)
	}
}
