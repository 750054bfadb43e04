// Package stroke accumulates pointer samples for the stroke in
// progress, encodes them into per-mirror parameter slots, and builds
// the committed stroke geometry.
//
// The accumulator is append-only while a gesture runs: samples arrive
// raw (ray origin and direction), and each Apply incrementally mirrors,
// re-projects and encodes the samples added since the previous Apply.
// Not safe for concurrent use.
package stroke

import (
	"fmt"
	"strings"

	"cogentcore.org/core/math32"

	"hpaint/internal/geo"
	"hpaint/internal/project"
	"hpaint/pkg/strokefmt"
)

// Host is the parameter surface the accumulator writes slots to. The
// capture host satisfies it.
type Host interface {
	GetScalar(name string) float32
	SetScalar(name string, v float32)
	SetString(name, v string)
	SetBinary(name string, v []byte)
}

// ParamStrokeCount is the live slot count: one slot per mirror per
// in-progress stroke, reset to zero on commit.
const ParamStrokeCount = "stroke_numstrokes"

// ParamStrokeNum is the committed stroke counter, incremented before
// each commit.
const ParamStrokeNum = "stroke_num"

// Per-slot parameter names, addressed through SlotParam.
const (
	ParamData     = "data"
	ParamRadius   = "radius"
	ParamOpacity  = "opacity"
	ParamTool     = "tool"
	ParamProjMode = "projmode"
	ParamMeta     = "meta"
)

// SlotParam returns the parameter name for a 1-based stroke slot.
func SlotParam(name string, slot int) string {
	return fmt.Sprintf("stroke_%s_%d", name, slot)
}

// StrokeGroup names the group holding every segment of one stroke.
func StrokeGroup(id int32) string {
	return fmt.Sprintf("__hstroke_%d", id)
}

// SegmentGroup names the group holding one mirror segment of a stroke.
func SegmentGroup(id int32, seg int) string {
	return fmt.Sprintf("__hstroke_%d_%d", id, seg)
}

// BuildMirrors assembles the mirror transform list: identity first,
// then one reflection per axis name ("x", "y", "z"), then any explicit
// transforms. Unknown axis names are skipped.
func BuildMirrors(axes []string, explicit []math32.Matrix4) []math32.Matrix4 {
	out := []math32.Matrix4{*math32.Identity4()}
	var ident math32.Quat
	ident.SetIdentity()
	for _, ax := range axes {
		var scale math32.Vector3
		switch strings.ToLower(strings.TrimSpace(ax)) {
		case "x":
			scale = math32.Vec3(-1, 1, 1)
		case "y":
			scale = math32.Vec3(1, -1, 1)
		case "z":
			scale = math32.Vec3(1, 1, -1)
		default:
			continue
		}
		var m math32.Matrix4
		m.SetTransform(math32.Vector3{}, ident, scale)
		out = append(out, m)
	}
	return append(out, explicit...)
}

// Shared carries the per-stroke parameters written to every slot.
type Shared struct {
	Radius  float32
	Opacity float32
	Tool    int32
	Color   [4]float32
}

// Accumulator collects the in-progress stroke. One byte stream and one
// continuity anchor per mirror transform.
type Accumulator struct {
	proj    project.Params
	mirrors []math32.Matrix4
	shared  Shared
	meta    string

	// pressureScale widens committed points by sample pressure.
	pressureScale bool

	samples []strokefmt.Sample

	encoded [][]byte
	decoded [][]strokefmt.Sample
	anchors []*math32.Vector3

	nextEncode int
}

// NewAccumulator returns an accumulator over the given mirror set. An
// empty set collapses to the identity transform alone.
func NewAccumulator(proj project.Params, mirrors []math32.Matrix4) *Accumulator {
	a := &Accumulator{proj: proj}
	a.SetMirrors(mirrors)
	return a
}

// SetProjection replaces the projection parameters for future samples.
func (a *Accumulator) SetProjection(p project.Params) { a.proj = p }

// SetShared replaces the per-stroke slot parameters.
func (a *Accumulator) SetShared(s Shared) { a.shared = s }

// Shared returns the current per-stroke slot parameters.
func (a *Accumulator) Shared() Shared { return a.shared }

// SetMeta replaces the metadata document written to each slot.
func (a *Accumulator) SetMeta(doc string) { a.meta = doc }

// SetPressureScale toggles pressure-driven point widths on commit.
func (a *Accumulator) SetPressureScale(on bool) { a.pressureScale = on }

// SetMirrors replaces the mirror set. Streams for existing indices are
// kept in place; added mirrors get fresh empty streams and anchors, and
// removed trailing mirrors drop theirs. Indices never reorder.
func (a *Accumulator) SetMirrors(mirrors []math32.Matrix4) {
	if len(mirrors) == 0 {
		mirrors = []math32.Matrix4{*math32.Identity4()}
	}
	a.mirrors = mirrors
	for len(a.encoded) < len(mirrors) {
		a.encoded = append(a.encoded, nil)
		a.decoded = append(a.decoded, nil)
		a.anchors = append(a.anchors, nil)
	}
	if len(a.encoded) > len(mirrors) {
		a.encoded = a.encoded[:len(mirrors)]
		a.decoded = a.decoded[:len(mirrors)]
		a.anchors = a.anchors[:len(mirrors)]
	}
}

// Mirrors returns the active mirror set.
func (a *Accumulator) Mirrors() []math32.Matrix4 { return a.mirrors }

// Append adds one raw sample. No encoding happens until Apply.
func (a *Accumulator) Append(s strokefmt.Sample) {
	a.samples = append(a.samples, s)
}

// Len returns the raw sample count.
func (a *Accumulator) Len() int { return len(a.samples) }

// Last returns the most recent raw sample.
func (a *Accumulator) Last() (strokefmt.Sample, bool) {
	if len(a.samples) == 0 {
		return strokefmt.Sample{}, false
	}
	return a.samples[len(a.samples)-1], true
}

// Samples returns the raw sample slice. Callers must treat it as
// read-only.
func (a *Accumulator) Samples() []strokefmt.Sample { return a.samples }

// Streams returns the mirrored, projected samples per stream. Callers
// must treat them as read-only.
func (a *Accumulator) Streams() [][]strokefmt.Sample { return a.decoded }

// Reset drops all samples, streams, anchors and the encode cursor. The
// mirror set stays.
func (a *Accumulator) Reset() {
	a.samples = nil
	a.nextEncode = 0
	for i := range a.encoded {
		a.encoded[i] = nil
		a.decoded[i] = nil
		a.anchors[i] = nil
	}
}

// Apply encodes the samples appended since the last Apply into every
// mirror stream and writes each stream's parameter slot. A fresh stroke
// (zero live slots, or update false) first reserves one new slot per
// mirror. The encode cursor only ever advances; Reset is the one way
// back.
func (a *Accumulator) Apply(host Host, surface *geo.Geometry, update bool) {
	// An externally rewound sample list would leave the cursor past the
	// end; recover by restarting the streams.
	if a.nextEncode > len(a.samples) {
		a.nextEncode = 0
		for i := range a.encoded {
			a.encoded[i] = nil
			a.decoded[i] = nil
			a.anchors[i] = nil
		}
	}

	n := int(host.GetScalar(ParamStrokeCount))
	if n == 0 || !update {
		n += len(a.mirrors)
		host.SetScalar(ParamStrokeCount, float32(n))
	}
	base := n - len(a.mirrors) + 1
	// Mirrors added mid-stroke can outgrow the reserved slots; extend
	// the count so slot numbering stays 1-based.
	if base < 1 {
		n += 1 - base
		base = 1
		host.SetScalar(ParamStrokeCount, float32(n))
	}

	for i, m := range a.mirrors {
		for _, s := range a.samples[a.nextEncode:] {
			ms := s
			ms.Pos = s.Pos.MulMatrix4AsVector4(&m, 1)
			ms.Dir = s.Dir.MulMatrix4AsVector4(&m, 0)

			p := a.proj
			p.Anchor = a.anchors[i]
			r := project.Project(ms.Pos, ms.Dir, p, surface)
			ms.ProjPos = r.Pos
			ms.ProjPrim = r.Prim
			ms.ProjUVW = r.UVW
			ms.Hit = r.Hit
			if r.Hit {
				hit := r.Pos
				a.anchors[i] = &hit
			}

			a.encoded[i] = ms.AppendTo(a.encoded[i])
			a.decoded[i] = append(a.decoded[i], ms)
		}
		a.writeSlot(host, base+i, i)
	}
	a.nextEncode = len(a.samples)
}

func (a *Accumulator) writeSlot(host Host, slot, stream int) {
	count := int32(len(a.decoded[stream]))
	host.SetBinary(SlotParam(ParamData, slot), strokefmt.FrameStream(count, a.encoded[stream]))
	host.SetScalar(SlotParam(ParamRadius, slot), a.shared.Radius)
	host.SetScalar(SlotParam(ParamOpacity, slot), a.shared.Opacity)
	host.SetScalar(SlotParam(ParamTool, slot), float32(a.shared.Tool))
	host.SetScalar(SlotParam("colorr", slot), a.shared.Color[0])
	host.SetScalar(SlotParam("colorg", slot), a.shared.Color[1])
	host.SetScalar(SlotParam("colorb", slot), a.shared.Color[2])
	host.SetScalar(SlotParam("colora", slot), a.shared.Color[3])
	host.SetScalar(SlotParam(ParamProjMode, slot), float32(a.proj.Mode))
	host.SetString(SlotParam(ParamMeta, slot), a.meta)
}

// BuildGeometry turns the accumulated streams into stroke geometry:
// one polyline per non-empty stream, point width/alpha/color from the
// shared parameters, stroke and segment ids as primitive attributes,
// and the stroke's group plus one group per segment.
func (a *Accumulator) BuildGeometry(strokeID int32) *geo.Geometry {
	return StreamsGeometry(a.decoded, strokeID, a.shared, a.pressureScale)
}

// StreamsGeometry builds the committed geometry for a set of projected
// sample streams. Journal replay uses it to rebuild strokes from
// decoded records without an accumulator.
func StreamsGeometry(streams [][]strokefmt.Sample, strokeID int32, shared Shared, pressureScale bool) *geo.Geometry {
	g := geo.New()
	for seg, samples := range streams {
		if len(samples) == 0 {
			continue
		}
		pts := make([]math32.Vector3, len(samples))
		for j, s := range samples {
			pts[j] = s.ProjPos
		}
		prim := g.AddPolylinePoints(pts)

		verts := g.Prim(prim).Verts
		for j, s := range samples {
			pi := int(verts[j])
			width := shared.Radius
			if pressureScale {
				width *= s.Pressure
			}
			g.SetPointF(geo.AttrScale, pi, width)
			g.SetPointF(geo.AttrAlpha, pi, shared.Opacity)
			g.SetPointV(geo.AttrColor, pi, math32.Vec3(shared.Color[0], shared.Color[1], shared.Color[2]))
		}

		g.SetPrimI(geo.AttrStrokeID, prim, strokeID)
		g.SetPrimI(geo.AttrSegID, prim, int32(seg))
		g.AddToGroup(StrokeGroup(strokeID), prim)
		g.AddToGroup(SegmentGroup(strokeID, seg), prim)
	}
	return g
}
