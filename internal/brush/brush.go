// Package brush tracks the on-canvas cursor: projected position,
// orientation, radius and display state.
package brush

import (
	"cogentcore.org/core/math32"

	"hpaint/internal/geo"
	"hpaint/internal/project"
)

// ResizeBase is the per-unit growth factor for interactive resizing.
const ResizeBase = 1.01

// DefaultRadius seeds the brush radius when none is configured.
const DefaultRadius = 0.05

// EraserColor is displayed while erase mode is held.
var EraserColor = [4]float32{1, 0, 0, 1}

// Cursor is the visual brush: a disc posed on the projected pointer
// position, oriented to the surface under it. Not safe for concurrent
// use.
type Cursor struct {
	pos     math32.Vector3
	rot     math32.Quat
	radius  float32
	xform   math32.Matrix4
	view    math32.Matrix4
	color   [4]float32
	visible bool
	hit     bool
	prim    int32
}

// NewCursor returns a hidden cursor with the default radius.
func NewCursor() *Cursor {
	c := &Cursor{radius: DefaultRadius}
	c.rot.SetIdentity()
	c.xform = *math32.Identity4()
	c.view = *math32.Identity4()
	c.compose()
	return c
}

// UpdatePosition projects the pointer ray per p against surface and
// re-poses the cursor on the result: translated to the landing point,
// rotated so +Z meets the surface normal (or the view direction off
// surface), scaled to radius. A degenerate direction leaves the
// previous transform untouched. The projection result is returned for
// reuse.
func (c *Cursor) UpdatePosition(origin, dir math32.Vector3, radius float32, p project.Params, surface *geo.Geometry) project.Result {
	r := project.Project(origin, dir, p, surface)

	target := dir
	if r.Normal != nil {
		target = *r.Normal
	}
	if target.Length() < 1e-8 {
		return r
	}

	c.rot.SetFromUnitVectors(math32.Vec3(0, 0, 1), target.Normal())
	c.pos = r.Pos
	c.radius = radius
	c.hit = r.Hit
	c.prim = r.Prim
	c.compose()
	return r
}

// UpdateViewTransform stores the viewport's model transform so the
// renderer can map the cursor into drawing space.
func (c *Cursor) UpdateViewTransform(m *math32.Matrix4) {
	if m != nil {
		c.view = *m
	}
}

// ViewTransform returns the stored viewport model transform.
func (c *Cursor) ViewTransform() math32.Matrix4 { return c.view }

// Transform returns the composed world transform.
func (c *Cursor) Transform() math32.Matrix4 { return c.xform }

// Position returns the last projected position.
func (c *Cursor) Position() math32.Vector3 { return c.pos }

// Radius returns the current display radius.
func (c *Cursor) Radius() float32 { return c.radius }

// Hit reports whether the last projection landed on the surface.
func (c *Cursor) Hit() bool { return c.hit }

// Prim returns the surface primitive under the cursor, -1 off surface.
func (c *Cursor) Prim() int32 { return c.prim }

// SetRadius poses the cursor at an absolute radius.
func (c *Cursor) SetRadius(r float32) {
	c.radius = r
	c.compose()
}

// Resize scales the radius by ResizeBase^dist.
func (c *Cursor) Resize(dist float32) {
	c.radius *= math32.Pow(ResizeBase, dist)
	c.compose()
}

// SetColor sets the display color RGBA.
func (c *Cursor) SetColor(rgba [4]float32) { c.color = rgba }

// Color returns the display color RGBA.
func (c *Cursor) Color() [4]float32 { return c.color }

// Show makes the cursor visible.
func (c *Cursor) Show() { c.visible = true }

// Hide makes the cursor invisible.
func (c *Cursor) Hide() { c.visible = false }

// Visible reports display state.
func (c *Cursor) Visible() bool { return c.visible }

func (c *Cursor) compose() {
	c.xform.SetTransform(c.pos, c.rot, math32.Vec3(c.radius, c.radius, c.radius))
}
