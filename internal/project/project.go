// Package project maps pointer rays onto paintable space: one of the
// fixed world planes, a plane facing the viewer, or the painted
// surface itself.
package project

import (
	"cogentcore.org/core/math32"

	"hpaint/internal/geo"
)

// Mode selects the projection target.
type Mode int32

// Projection modes. Numeric values are part of the persisted parameter
// surface and never reorder.
const (
	PlaneXY Mode = iota
	PlaneYZ
	PlaneZX
	PlaneScreen
	Surface
)

// planeEps rejects rays running parallel to the projection plane.
const planeEps = 1e-8

// surfaceTol ignores surface hits closer than this to the ray origin,
// so a cursor sitting on the canvas does not re-hit its own position.
const surfaceTol = 5e-3

// Params configures a projection.
type Params struct {
	// Mode selects the projection target.
	Mode Mode

	// Center anchors plane projections when no Anchor is set.
	Center math32.Vector3

	// Anchor, when non-nil, re-anchors the plane at a previous hit so
	// a stroke sliding off the surface continues in its own plane.
	Anchor *math32.Vector3
}

// Result is the outcome of one projection.
type Result struct {
	Pos math32.Vector3

	// Normal is the surface normal on a surface hit, nil otherwise.
	Normal *math32.Vector3

	// UVW holds the parametric coordinates of a surface hit.
	UVW math32.Vector3

	// Prim is the hit primitive index, -1 off-surface.
	Prim int32

	Hit bool
}

// Project casts the ray origin/dir according to p. Surface mode
// intersects the given geometry and falls back to the screen plane,
// reported as a miss, when the ray clears it; plane modes always land.
// A ray parallel to its target plane yields a zero position with
// Hit=false rather than an error.
func Project(origin, dir math32.Vector3, p Params, surface *geo.Geometry) Result {
	if p.Mode >= Surface {
		if r, ok := intersectSurface(origin, dir, surface); ok {
			return r
		}
		r := intersectPlane(origin, dir, dir, planeOrigin(p))
		r.Hit = false
		return r
	}
	return intersectPlane(origin, dir, planeNormal(p.Mode, dir), planeOrigin(p))
}

func planeOrigin(p Params) math32.Vector3 {
	if p.Anchor != nil {
		return *p.Anchor
	}
	return p.Center
}

func planeNormal(mode Mode, dir math32.Vector3) math32.Vector3 {
	switch mode {
	case PlaneXY:
		return math32.Vec3(0, 0, 1)
	case PlaneYZ:
		return math32.Vec3(1, 0, 0)
	case PlaneZX:
		return math32.Vec3(0, 1, 0)
	}
	return dir
}

func intersectPlane(origin, dir, normal, at math32.Vector3) Result {
	denom := dir.Dot(normal)
	if math32.Abs(denom) < planeEps {
		return Result{Prim: -1}
	}
	t := at.Sub(origin).Dot(normal) / denom
	return Result{
		Pos:  origin.Add(dir.MulScalar(t)),
		Prim: -1,
		Hit:  true,
	}
}

func intersectSurface(origin, dir math32.Vector3, g *geo.Geometry) (Result, bool) {
	if g == nil || g.NumPrims() == 0 {
		return Result{}, false
	}

	ray := math32.Ray{Origin: origin, Dir: dir}
	if _, ok := ray.IntersectBox(g.Bounds()); !ok {
		return Result{}, false
	}

	best := Result{Prim: -1}
	bestDist := math32.Infinity
	for i := 0; i < g.NumPrims(); i++ {
		pr := g.Prim(i)
		if pr.Kind != geo.KindTriangle || len(pr.Verts) < 3 {
			continue
		}
		a := g.Position(int(pr.Verts[0]))
		b := g.Position(int(pr.Verts[1]))
		c := g.Position(int(pr.Verts[2]))

		pt, ok := ray.IntersectTriangle(a, b, c, false)
		if !ok {
			continue
		}
		dist := pt.Sub(origin).Length()
		if dist <= surfaceTol || dist >= bestDist {
			continue
		}

		n := math32.Normal(a, b, c)
		best = Result{
			Pos:    pt,
			Normal: &n,
			UVW:    math32.BarycoordFromPoint(pt, a, b, c),
			Prim:   int32(i),
			Hit:    true,
		}
		bestDist = dist
	}

	if !best.Hit {
		return Result{}, false
	}
	return best, true
}
