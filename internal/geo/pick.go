package geo

import "cogentcore.org/core/math32"

// NearestPrim returns the primitive whose points pass closest to the
// ray, within tol, or -1 when none qualifies. Distance is measured
// point-to-ray, which picks densely sampled polylines naturally.
func (g *Geometry) NearestPrim(origin, dir math32.Vector3, tol float32) int {
	if dir.Length() < 1e-8 {
		return -1
	}
	d := dir.Normal()

	best := -1
	bestDist := tol
	for i, p := range g.prims {
		for _, v := range p.Verts {
			w := g.positions[v].Sub(origin)
			t := w.Dot(d)
			var dist float32
			if t < 0 {
				dist = w.Length()
			} else {
				dist = w.Sub(d.MulScalar(t)).Length()
			}
			if dist <= tol && (best == -1 || dist < bestDist) {
				best = i
				bestDist = dist
			}
		}
	}
	return best
}
