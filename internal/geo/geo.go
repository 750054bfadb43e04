// Package geo provides the in-memory geometry kernel backing the paint
// pipeline: points with attributes, polyline and triangle primitives,
// named primitive groups, and detail (global) attributes.
//
// Geometry values are not safe for concurrent mutation; the engine is
// single-threaded by contract and callers serialize access.
package geo

import (
	"sort"

	"cogentcore.org/core/math32"
)

// Well-known attribute names shared across the paint pipeline.
const (
	AttrStrokeID    = "stroke_id"
	AttrSegID       = "seg_id"
	AttrMaxStrokeID = "max_strokeid"
	AttrScale       = "pscale"
	AttrAlpha       = "Alpha"
	AttrColor       = "Cd"
)

// PrimKind discriminates primitive types.
type PrimKind uint8

const (
	KindPolyline PrimKind = iota
	KindTriangle
)

// Prim is one primitive: an ordered list of point indices.
type Prim struct {
	Kind  PrimKind
	Verts []int32
}

// Geometry is a mutable container of points, primitives, groups and
// attributes. The zero value is not usable; call New.
type Geometry struct {
	positions []math32.Vector3
	pointF    map[string][]float32
	pointV    map[string][]math32.Vector3
	prims     []Prim
	primI     map[string][]int32
	groups    map[string][]int
	detailI   map[string]int32
}

// New returns an empty geometry.
func New() *Geometry {
	return &Geometry{
		pointF:  make(map[string][]float32),
		pointV:  make(map[string][]math32.Vector3),
		primI:   make(map[string][]int32),
		groups:  make(map[string][]int),
		detailI: make(map[string]int32),
	}
}

// NumPoints returns the point count.
func (g *Geometry) NumPoints() int { return len(g.positions) }

// NumPrims returns the primitive count.
func (g *Geometry) NumPrims() int { return len(g.prims) }

// AddPoint appends a point and returns its index.
func (g *Geometry) AddPoint(pos math32.Vector3) int {
	g.positions = append(g.positions, pos)
	for name, vals := range g.pointF {
		g.pointF[name] = append(vals, 0)
	}
	for name, vals := range g.pointV {
		g.pointV[name] = append(vals, math32.Vector3{})
	}
	return len(g.positions) - 1
}

// Position returns the position of point i.
func (g *Geometry) Position(i int) math32.Vector3 { return g.positions[i] }

// Positions returns the backing position slice. Callers must treat it as
// read-only.
func (g *Geometry) Positions() []math32.Vector3 { return g.positions }

// SetPointF sets a per-point float attribute, creating the attribute
// zero-filled on first use.
func (g *Geometry) SetPointF(name string, i int, v float32) {
	vals, ok := g.pointF[name]
	if !ok {
		vals = make([]float32, len(g.positions))
		g.pointF[name] = vals
	}
	vals[i] = v
}

// PointF returns a per-point float attribute value.
func (g *Geometry) PointF(name string, i int) (float32, bool) {
	vals, ok := g.pointF[name]
	if !ok {
		return 0, false
	}
	return vals[i], true
}

// SetPointV sets a per-point vector attribute, creating the attribute
// zero-filled on first use.
func (g *Geometry) SetPointV(name string, i int, v math32.Vector3) {
	vals, ok := g.pointV[name]
	if !ok {
		vals = make([]math32.Vector3, len(g.positions))
		g.pointV[name] = vals
	}
	vals[i] = v
}

// PointV returns a per-point vector attribute value.
func (g *Geometry) PointV(name string, i int) (math32.Vector3, bool) {
	vals, ok := g.pointV[name]
	if !ok {
		return math32.Vector3{}, false
	}
	return vals[i], true
}

// AddPrim appends a primitive over existing points and returns its index.
func (g *Geometry) AddPrim(kind PrimKind, verts []int32) int {
	g.prims = append(g.prims, Prim{Kind: kind, Verts: verts})
	for name, vals := range g.primI {
		g.primI[name] = append(vals, 0)
	}
	return len(g.prims) - 1
}

// AddPolylinePoints appends the given positions as new points joined by
// one polyline primitive and returns the primitive index.
func (g *Geometry) AddPolylinePoints(pts []math32.Vector3) int {
	verts := make([]int32, 0, len(pts))
	for _, p := range pts {
		verts = append(verts, int32(g.AddPoint(p)))
	}
	return g.AddPrim(KindPolyline, verts)
}

// AddTriangle appends a triangle with three new points and returns the
// primitive index.
func (g *Geometry) AddTriangle(a, b, c math32.Vector3) int {
	verts := []int32{
		int32(g.AddPoint(a)),
		int32(g.AddPoint(b)),
		int32(g.AddPoint(c)),
	}
	return g.AddPrim(KindTriangle, verts)
}

// Prim returns primitive i. The Verts slice is shared; callers must not
// mutate it.
func (g *Geometry) Prim(i int) Prim { return g.prims[i] }

// SetPrimI sets a per-primitive int attribute, creating the attribute
// zero-filled on first use.
func (g *Geometry) SetPrimI(name string, i int, v int32) {
	vals, ok := g.primI[name]
	if !ok {
		vals = make([]int32, len(g.prims))
		g.primI[name] = vals
	}
	vals[i] = v
}

// PrimI returns a per-primitive int attribute value.
func (g *Geometry) PrimI(name string, i int) (int32, bool) {
	vals, ok := g.primI[name]
	if !ok {
		return 0, false
	}
	return vals[i], true
}

// SetDetailI sets a detail int attribute.
func (g *Geometry) SetDetailI(name string, v int32) { g.detailI[name] = v }

// DetailI returns a detail int attribute.
func (g *Geometry) DetailI(name string) (int32, bool) {
	v, ok := g.detailI[name]
	return v, ok
}

// RaiseDetailI sets a detail int attribute to v unless the stored value
// is already higher. Commit bookkeeping relies on this never lowering.
func (g *Geometry) RaiseDetailI(name string, v int32) {
	if cur, ok := g.detailI[name]; ok && cur >= v {
		return
	}
	g.detailI[name] = v
}

// CreateGroup ensures a (possibly empty) primitive group exists.
func (g *Geometry) CreateGroup(name string) {
	if _, ok := g.groups[name]; !ok {
		g.groups[name] = nil
	}
}

// AddToGroup adds primitive prim to the named group, creating it if
// needed. Membership is kept sorted and unique.
func (g *Geometry) AddToGroup(name string, prim int) {
	members := g.groups[name]
	idx := sort.SearchInts(members, prim)
	if idx < len(members) && members[idx] == prim {
		return
	}
	members = append(members, 0)
	copy(members[idx+1:], members[idx:])
	members[idx] = prim
	g.groups[name] = members
}

// Group returns the sorted member primitives of a group, or nil if the
// group does not exist. Callers must treat the slice as read-only.
func (g *Geometry) Group(name string) []int { return g.groups[name] }

// HasGroup reports whether the named group exists.
func (g *Geometry) HasGroup(name string) bool {
	_, ok := g.groups[name]
	return ok
}

// GroupNames returns all group names, sorted.
func (g *Geometry) GroupNames() []string {
	names := make([]string, 0, len(g.groups))
	for name := range g.groups {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Bounds returns the bounding box over all points. An empty geometry
// yields an empty box.
func (g *Geometry) Bounds() math32.Box3 {
	bb := math32.B3Empty()
	bb.ExpandByPoints(g.positions)
	return bb
}

// Clone returns a deep copy.
func (g *Geometry) Clone() *Geometry {
	c := New()
	c.positions = append([]math32.Vector3(nil), g.positions...)
	for name, vals := range g.pointF {
		c.pointF[name] = append([]float32(nil), vals...)
	}
	for name, vals := range g.pointV {
		c.pointV[name] = append([]math32.Vector3(nil), vals...)
	}
	c.prims = make([]Prim, len(g.prims))
	for i, p := range g.prims {
		c.prims[i] = Prim{Kind: p.Kind, Verts: append([]int32(nil), p.Verts...)}
	}
	for name, vals := range g.primI {
		c.primI[name] = append([]int32(nil), vals...)
	}
	for name, members := range g.groups {
		c.groups[name] = append([]int(nil), members...)
	}
	for name, v := range g.detailI {
		c.detailI[name] = v
	}
	return c
}

// Merge appends all of src into g, remapping point and primitive indices.
// Attributes present on only one side are zero-filled on the other.
// Detail attributes are copied only where g has no value; callers that
// need the only-raise rule use RaiseDetailI explicitly.
func (g *Geometry) Merge(src *Geometry) {
	pointOffset := len(g.positions)
	primOffset := len(g.prims)

	g.positions = append(g.positions, src.positions...)

	for name, vals := range g.pointF {
		if _, ok := src.pointF[name]; !ok {
			g.pointF[name] = append(vals, make([]float32, src.NumPoints())...)
		}
	}
	for name, vals := range src.pointF {
		dst, ok := g.pointF[name]
		if !ok {
			dst = make([]float32, pointOffset)
		}
		g.pointF[name] = append(dst, vals...)
	}

	for name, vals := range g.pointV {
		if _, ok := src.pointV[name]; !ok {
			g.pointV[name] = append(vals, make([]math32.Vector3, src.NumPoints())...)
		}
	}
	for name, vals := range src.pointV {
		dst, ok := g.pointV[name]
		if !ok {
			dst = make([]math32.Vector3, pointOffset)
		}
		g.pointV[name] = append(dst, vals...)
	}

	for _, p := range src.prims {
		verts := make([]int32, len(p.Verts))
		for i, v := range p.Verts {
			verts[i] = v + int32(pointOffset)
		}
		g.prims = append(g.prims, Prim{Kind: p.Kind, Verts: verts})
	}

	for name, vals := range g.primI {
		if _, ok := src.primI[name]; !ok {
			g.primI[name] = append(vals, make([]int32, src.NumPrims())...)
		}
	}
	for name, vals := range src.primI {
		dst, ok := g.primI[name]
		if !ok {
			dst = make([]int32, primOffset)
		}
		g.primI[name] = append(dst, vals...)
	}

	for name, members := range src.groups {
		g.CreateGroup(name)
		for _, m := range members {
			g.AddToGroup(name, m+primOffset)
		}
	}

	for name, v := range src.detailI {
		if _, ok := g.detailI[name]; !ok {
			g.detailI[name] = v
		}
	}
}

// DeletePrims removes the given primitives, compacting indices. Points
// that were referenced only by deleted primitives are removed too; group
// membership is remapped and deleted members dropped. Group definitions
// survive even when emptied.
func (g *Geometry) DeletePrims(prims []int) {
	if len(prims) == 0 {
		return
	}

	deleted := make([]bool, len(g.prims))
	any := false
	for _, p := range prims {
		if p >= 0 && p < len(g.prims) {
			deleted[p] = true
			any = true
		}
	}
	if !any {
		return
	}

	usedSurvivor := make([]bool, len(g.positions))
	usedDeleted := make([]bool, len(g.positions))
	for i, p := range g.prims {
		used := usedSurvivor
		if deleted[i] {
			used = usedDeleted
		}
		for _, v := range p.Verts {
			used[v] = true
		}
	}

	// Remap points, dropping those orphaned by this delete.
	pointRemap := make([]int32, len(g.positions))
	newPositions := g.positions[:0]
	np := 0
	for i := range g.positions {
		if usedDeleted[i] && !usedSurvivor[i] {
			pointRemap[i] = -1
			continue
		}
		pointRemap[i] = int32(np)
		newPositions = append(newPositions, g.positions[i])
		np++
	}
	g.positions = newPositions

	for name, vals := range g.pointF {
		kept := vals[:0]
		for i, v := range vals {
			if pointRemap[i] >= 0 {
				kept = append(kept, v)
			}
		}
		g.pointF[name] = kept
	}
	for name, vals := range g.pointV {
		kept := vals[:0]
		for i, v := range vals {
			if pointRemap[i] >= 0 {
				kept = append(kept, v)
			}
		}
		g.pointV[name] = kept
	}

	// Remap primitives.
	primRemap := make([]int, len(g.prims))
	newPrims := g.prims[:0]
	npr := 0
	for i, p := range g.prims {
		if deleted[i] {
			primRemap[i] = -1
			continue
		}
		for j, v := range p.Verts {
			p.Verts[j] = pointRemap[v]
		}
		primRemap[i] = npr
		newPrims = append(newPrims, p)
		npr++
	}
	g.prims = newPrims

	for name, vals := range g.primI {
		kept := vals[:0]
		for i, v := range vals {
			if primRemap[i] >= 0 {
				kept = append(kept, v)
			}
		}
		g.primI[name] = kept
	}

	for name, members := range g.groups {
		kept := members[:0]
		for _, m := range members {
			if nm := primRemap[m]; nm >= 0 {
				kept = append(kept, nm)
			}
		}
		g.groups[name] = kept
	}
}
