package geom

import (
	"fmt"
	"image/color"
	"strconv"
	"strings"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/lucasb-eyer/go-colorful"
)

// Vec3 is the single vector type used for positions and scales.
type Vec3 = mgl64.Vec3

// ParseVec3 reads "x y z". A single number is applied to all three axes.
func ParseVec3(s string) (Vec3, error) {
	fields := strings.Fields(s)
	switch len(fields) {
	case 1:
		v, err := strconv.ParseFloat(fields[0], 64)
		if err != nil {
			return Vec3{}, fmt.Errorf("invalid vector %q: %w", s, err)
		}
		return Vec3{v, v, v}, nil
	case 3:
		var out Vec3
		for i, f := range fields {
			v, err := strconv.ParseFloat(f, 64)
			if err != nil {
				return Vec3{}, fmt.Errorf("invalid vector %q: %w", s, err)
			}
			out[i] = v
		}
		return out, nil
	}
	return Vec3{}, fmt.Errorf("invalid vector %q: expected 3 components, got %d", s, len(fields))
}

// FormatVec3 is the inverse of ParseVec3.
func FormatVec3(v Vec3) string {
	return strconv.FormatFloat(v[0], 'g', -1, 64) + " " +
		strconv.FormatFloat(v[1], 'g', -1, 64) + " " +
		strconv.FormatFloat(v[2], 'g', -1, 64)
}

// ParseColor reads a "#rrggbb" colour.
func ParseColor(s string) (color.RGBA, error) {
	c, err := colorful.Hex(strings.TrimSpace(s))
	if err != nil {
		return color.RGBA{}, fmt.Errorf("invalid color %q: %w", s, err)
	}
	r, g, b := c.RGB255()
	return color.RGBA{r, g, b, 0xff}, nil
}

// ParseColors reads a comma separated list of colours.
func ParseColors(s string) ([]color.RGBA, error) {
	var out []color.RGBA
	for _, part := range strings.Split(s, ",") {
		c, err := ParseColor(part)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

// Placement is where an entity sits in the scene.
type Placement struct {
	Position Vec3
	Scale    Vec3
}

// Scaled returns p with its scale multiplied by f.
func (p Placement) Scaled(f float64) Placement {
	p.Scale = p.Scale.Mul(f)
	return p
}

// Camera is a minimal pinhole camera looking down -Z.
type Camera struct {
	Eye Vec3
	// Yaw pans the view around the Y axis and Pitch tilts it up, in radians.
	Yaw   float64
	Pitch float64
	// Focal is the focal length in pixels.
	Focal float64
}

// Project maps a world point to screen coordinates around (cx, cy). factor
// is the pixels-per-unit at that depth; ok is false behind the camera.
func (c Camera) Project(p Vec3, cx, cy float64) (x, y, factor float64, ok bool) {
	rel := mgl64.Rotate3DX(-c.Pitch).Mul3(mgl64.Rotate3DY(-c.Yaw)).Mul3x1(p.Sub(c.Eye))
	depth := -rel.Z()
	if depth <= 1e-6 {
		return 0, 0, 0, false
	}
	factor = c.Focal / depth
	return cx + rel.X()*factor, cy - rel.Y()*factor, factor, true
}
