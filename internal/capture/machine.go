// Package capture runs the interaction state machine: pointer events
// in, encoded stroke slots and buffer commits out.
//
// The machine is single-threaded by contract. Feed it from one event
// loop; hover tracking belongs to the caller, only gesture events
// (press, pressed moves, release) come through HandleEvent.
package capture

import (
	"log/slog"
	"time"

	"cogentcore.org/core/math32"

	"hpaint/internal/brush"
	"hpaint/internal/geo"
	"hpaint/internal/project"
	"hpaint/internal/stroke"
	"hpaint/pkg/strokefmt"
)

// Reason classifies a pointer event within a gesture.
type Reason int

const (
	// Start is the initial press.
	Start Reason = iota
	// Active is a move while pressed.
	Active
	// Changed is the release.
	Changed
)

// PointerEvent carries one gesture event. Time is the device timestamp
// in seconds, negative when the device provides none. Queued holds
// coalesced sub-events delivered with this one, oldest first; queued
// entries carry sample fields only, not modifier state.
type PointerEvent struct {
	Reason   Reason
	Origin   math32.Vector3
	Dir      math32.Vector3
	Pressure float32
	Tilt     float32
	Angle    float32
	Roll     float32
	Time     float32
	Ctrl     bool
	Shift    bool
	MouseX   float32
	MouseY   float32
	ScrollY  float32
	Queued   []PointerEvent
}

// Parameter names the machine reads and writes on its host. Per-slot
// stroke parameters are named by the stroke package.
const (
	ParamRadius      = "radius"
	ParamOpacity     = "opacity"
	ParamTool        = "tool"
	ParamColorR      = "colorr"
	ParamColorG      = "colorg"
	ParamColorB      = "colorb"
	ParamColorA      = "colora"
	ParamSurfaceDist = "surface_dist"
)

const (
	surfaceDistStep = 0.005
	wheelStep       = 10
	wheelAccurate   = 0.2
)

const promptText = "LMB draws, Ctrl erases (Ctrl+Shift whole strokes), Shift+drag or wheel resizes"

// Options fixes the machine's configuration-driven behavior. Live
// brush parameters (radius, opacity, color, tool) stay on the host.
type Options struct {
	// Masked gates drawing on surface hits.
	Masked bool

	// PressureEnabled scales widths and cursor size by pen pressure.
	PressureEnabled bool

	// FullStrokeErase erases whole strokes without requiring Shift.
	FullStrokeErase bool

	Proj    project.Params
	Mirrors []math32.Matrix4
	Meta    []stroke.MetaField

	Logger *slog.Logger
}

// Machine consumes pointer events and drives the accumulator, cursor
// and host.
type Machine struct {
	host Host
	opts Options
	log  *slog.Logger

	acc    *stroke.Accumulator
	cursor *brush.Cursor

	tx       Tx
	firstHit bool

	resizing  bool
	resizeX   float32
	resizeY   float32
	resizeRad float32

	erasing   bool
	fullErase bool

	useDevice   bool
	epochDevice float32
	stopwatch   time.Time

	prompt string

	// OnPreStroke fires after a stroke transaction opens, before the
	// first slot write.
	OnPreStroke func()

	// OnPostStroke fires after a stroke committed into the buffer and
	// before the accumulator resets, so callbacks can still read the
	// committed streams.
	OnPostStroke func(strokeID int32, g *geo.Geometry)
}

// NewMachine builds a machine over host. A nil or empty mirror set
// collapses to the identity transform.
func NewMachine(host Host, opts Options) *Machine {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if len(opts.Mirrors) == 0 {
		opts.Mirrors = stroke.BuildMirrors(nil, nil)
	}
	m := &Machine{
		host:     host,
		opts:     opts,
		log:      opts.Logger,
		cursor:   brush.NewCursor(),
		firstHit: true,
	}
	m.acc = stroke.NewAccumulator(opts.Proj, opts.Mirrors)
	m.acc.SetPressureScale(opts.PressureEnabled)
	return m
}

// Cursor exposes the brush cursor for rendering.
func (m *Machine) Cursor() *brush.Cursor { return m.cursor }

// Accumulator exposes the live stroke for rendering.
func (m *Machine) Accumulator() *stroke.Accumulator { return m.acc }

// Drawing reports whether a stroke gesture is running.
func (m *Machine) Drawing() bool { return !m.firstHit }

// Erasing reports whether erase mode was held on the last event.
func (m *Machine) Erasing() bool { return m.erasing }

// Prompt returns the viewport hint text.
func (m *Machine) Prompt() string { return m.prompt }

// Enter activates the tool: seeds the default radius, encodes the
// metadata registry once, and hides the cursor until the first event.
func (m *Machine) Enter() {
	if m.host.GetScalar(ParamRadius) == 0 {
		m.host.SetScalar(ParamRadius, brush.DefaultRadius)
	}
	doc, err := stroke.EncodeMeta(m.opts.Meta)
	if err != nil {
		m.log.Warn("metadata registry rejected", "error", err)
		doc = "[0,{}]"
	}
	m.acc.SetMeta(doc)
	m.cursor.Hide()
	m.prompt = promptText
}

// Reconfigure applies new options mid-session. Mirror growth while a
// stroke is open adds fresh streams without reordering existing ones.
func (m *Machine) Reconfigure(opts Options) {
	if opts.Logger == nil {
		opts.Logger = m.log
	}
	if len(opts.Mirrors) == 0 {
		opts.Mirrors = stroke.BuildMirrors(nil, nil)
	}
	m.opts = opts
	m.log = opts.Logger
	m.acc.SetProjection(opts.Proj)
	m.acc.SetMirrors(opts.Mirrors)
	m.acc.SetPressureScale(opts.PressureEnabled)
	if doc, err := stroke.EncodeMeta(opts.Meta); err == nil {
		m.acc.SetMeta(doc)
	}
}

// Interrupt hides the cursor when the host loses the viewport. No
// release event is required first.
func (m *Machine) Interrupt() {
	m.cursor.Hide()
}

// Resume restores the cursor and prompt after an Interrupt.
func (m *Machine) Resume() {
	m.cursor.Show()
	m.prompt = promptText
}

// ShiftSurfaceDistance bumps the stroke lift above the surface by one
// step, clamped at zero going down.
func (m *Machine) ShiftSurfaceDistance(up bool) {
	d := m.host.GetScalar(ParamSurfaceDist)
	if up {
		d += surfaceDistStep
	} else {
		d -= surfaceDistStep
		if d < 0 {
			d = 0
		}
	}
	m.host.SetScalar(ParamSurfaceDist, d)
}

// Wheel resizes the brush from scroll input. Shift engages accurate
// mode. Intentionally transaction-free; per-notch undo is noise.
func (m *Machine) Wheel(ev PointerEvent) {
	dist := ev.ScrollY * wheelStep
	if ev.Shift {
		dist *= wheelAccurate
	}
	r := m.host.GetScalar(ParamRadius) * math32.Pow(brush.ResizeBase, dist)
	m.host.SetScalar(ParamRadius, r)
	m.cursor.SetRadius(r)
}

// HandleEvent runs the pipeline for one gesture event: cursor update,
// resize branch, eraser mode, sample intake, then the draw or erase
// transition.
func (m *Machine) HandleEvent(ev PointerEvent) {
	if !m.resizing && len(ev.Queued) == 0 {
		radius := m.host.GetScalar(ParamRadius)
		if m.opts.PressureEnabled && ev.Reason != Changed {
			if last, ok := m.acc.Last(); ok {
				radius *= last.Pressure
			}
		}
		m.cursor.UpdatePosition(ev.Origin, ev.Dir, radius, m.opts.Proj, m.host.Surface())
	}
	m.cursor.Show()

	if m.handleResize(ev) {
		return
	}

	m.updateEraser(ev)
	m.takeSamples(ev)

	switch {
	case m.erasing:
		m.eraseInteractive(ev)
	case m.opts.Masked:
		m.strokeMasked(ev)
	default:
		m.strokeUnmasked(ev)
	}
}

// ===== Resize =====

func (m *Machine) handleResize(ev PointerEvent) bool {
	if ev.Reason == Start && ev.Shift && !ev.Ctrl && !m.resizing {
		if !m.beginTx("Brush Resize") {
			return true
		}
		m.resizing = true
		m.resizeX, m.resizeY = ev.MouseX, ev.MouseY
		m.resizeRad = m.host.GetScalar(ParamRadius)
		return true
	}
	if !m.resizing {
		return false
	}

	if ev.Reason == Changed {
		m.endTx()
		m.resizing = false
		return true
	}

	// Summed axis deltas, not euclidean; dragging up-right grows.
	dist := (ev.MouseX - m.resizeX) + (ev.MouseY - m.resizeY)
	r := m.resizeRad * math32.Pow(brush.ResizeBase, dist)
	m.host.SetScalar(ParamRadius, r)
	m.cursor.SetRadius(r)
	return true
}

// ===== Eraser mode =====

func (m *Machine) updateEraser(ev PointerEvent) {
	m.erasing = ev.Ctrl
	m.fullErase = m.opts.FullStrokeErase || (ev.Ctrl && ev.Shift)
	if m.erasing {
		m.cursor.SetColor(brush.EraserColor)
	} else {
		m.cursor.SetColor(m.hostColor())
	}
}

func (m *Machine) hostColor() [4]float32 {
	return [4]float32{
		m.host.GetScalar(ParamColorR),
		m.host.GetScalar(ParamColorG),
		m.host.GetScalar(ParamColorB),
		m.host.GetScalar(ParamColorA),
	}
}

// ===== Sample intake =====

func (m *Machine) takeSamples(ev PointerEvent) {
	if m.acc.Len() == 0 {
		first := ev
		if len(ev.Queued) > 0 {
			first = ev.Queued[0]
		}
		if first.Time >= 0 {
			m.useDevice = true
			m.epochDevice = first.Time
		} else {
			m.useDevice = false
			m.stopwatch = time.Now()
		}
	}

	for _, q := range ev.Queued {
		m.acc.Append(m.sampleFrom(q))
	}

	s := m.sampleFrom(ev)
	if ev.Reason == Changed {
		// Release events read zero pressure and tilt on some tablets;
		// carry the previous sample's values through.
		if last, ok := m.acc.Last(); ok {
			s.Pressure = last.Pressure
			s.Tilt = last.Tilt
			s.Angle = last.Angle
			s.Roll = last.Roll
		}
	}
	m.acc.Append(s)
}

func (m *Machine) sampleFrom(ev PointerEvent) strokefmt.Sample {
	return strokefmt.Sample{
		Pos:      ev.Origin,
		Dir:      ev.Dir,
		Pressure: ev.Pressure,
		Time:     m.elapsed(ev),
		Tilt:     ev.Tilt,
		Angle:    ev.Angle,
		Roll:     ev.Roll,
	}
}

func (m *Machine) elapsed(ev PointerEvent) float32 {
	if m.useDevice && ev.Time >= 0 {
		return ev.Time - m.epochDevice
	}
	return float32(time.Since(m.stopwatch).Seconds())
}

// ===== Draw transitions =====

func (m *Machine) strokeMasked(ev PointerEvent) {
	hit := m.cursor.Hit()
	switch ev.Reason {
	case Start, Active:
		if m.firstHit {
			if !hit {
				return
			}
			m.beginStroke()
			return
		}
		if hit {
			m.acc.Apply(m.host, m.host.Surface(), true)
			return
		}
		// Slid off the surface mid-gesture: the stroke ends here and a
		// new one begins if the cursor comes back before release.
		m.endStroke()
	case Changed:
		if m.firstHit {
			// Gesture never landed; drop its samples.
			m.acc.Reset()
			return
		}
		m.acc.Apply(m.host, m.host.Surface(), true)
		m.endStroke()
	}
}

func (m *Machine) strokeUnmasked(ev PointerEvent) {
	switch ev.Reason {
	case Start, Active:
		if m.firstHit {
			m.beginStroke()
			return
		}
		m.acc.Apply(m.host, m.host.Surface(), true)
	case Changed:
		if m.firstHit {
			m.acc.Reset()
			return
		}
		m.acc.Apply(m.host, m.host.Surface(), true)
		m.endStroke()
	}
}

// beginStroke opens the stroke transaction and writes the first empty
// slots. The accumulator reset drops the press event's own sample, so
// a gesture of press + N moves + release commits exactly N+1 samples.
func (m *Machine) beginStroke() {
	if !m.beginTx("Draw Stroke") {
		return
	}
	m.acc.Reset()
	if m.OnPreStroke != nil {
		m.OnPreStroke()
	}
	m.refreshShared()
	m.acc.Apply(m.host, m.host.Surface(), false)
	m.firstHit = false
}

func (m *Machine) endStroke() {
	id, g := m.commitStroke()
	if m.OnPostStroke != nil {
		m.OnPostStroke(id, g)
	}
	m.acc.Reset()
	m.firstHit = true
	m.endTx()
}

// commitStroke advances the stroke counter, merges the generated
// geometry into the buffer, raises the buffer's high-water stroke id,
// and zeroes the live slot count.
func (m *Machine) commitStroke() (int32, *geo.Geometry) {
	id := int32(m.host.GetScalar(stroke.ParamStrokeNum)) + 1
	m.host.SetScalar(stroke.ParamStrokeNum, float32(id))

	g := m.acc.BuildGeometry(id)
	m.host.MergeGeometry(g)
	if buf := m.host.Buffer(); buf != nil {
		buf.RaiseDetailI(geo.AttrMaxStrokeID, id)
	}
	m.host.SetScalar(stroke.ParamStrokeCount, 0)
	m.log.Debug("stroke committed", "stroke_id", id, "prims", g.NumPrims())
	return id, g
}

func (m *Machine) refreshShared() {
	m.acc.SetShared(stroke.Shared{
		Radius:  m.host.GetScalar(ParamRadius),
		Opacity: m.host.GetScalar(ParamOpacity),
		Tool:    int32(m.host.GetScalar(ParamTool)),
		Color:   m.hostColor(),
	})
}

// ===== Erase transitions =====

func (m *Machine) eraseInteractive(ev PointerEvent) {
	switch ev.Reason {
	case Start, Active:
		if m.firstHit {
			if !m.beginTx("Eraser") {
				return
			}
			m.firstHit = false
		}
		m.eraseAt(ev)
	case Changed:
		m.endTx()
		m.firstHit = true
		m.acc.Reset()
	}
}

func (m *Machine) eraseAt(ev PointerEvent) {
	buf := m.host.Buffer()
	if buf == nil {
		return
	}
	prim := buf.NearestPrim(ev.Origin, ev.Dir, m.host.GetScalar(ParamRadius))
	if prim < 0 {
		return
	}
	sid, ok := buf.PrimI(geo.AttrStrokeID, prim)
	if !ok {
		return
	}

	var group string
	if m.fullErase {
		group = stroke.StrokeGroup(sid)
	} else {
		seg, ok := buf.PrimI(geo.AttrSegID, prim)
		if !ok {
			return
		}
		group = stroke.SegmentGroup(sid, int(seg))
	}

	members := buf.Group(group)
	if len(members) == 0 {
		return
	}
	buf.DeletePrims(append([]int(nil), members...))
	m.host.SetBuffer(buf)
}

// ===== Transactions =====

// beginTx opens a host transaction, closing any still open. A failed
// begin aborts the caller's transition.
func (m *Machine) beginTx(label string) bool {
	if m.tx != nil {
		m.endTx()
	}
	tx, err := m.host.BeginTransaction(label)
	if err != nil {
		m.log.Debug("transaction rejected", "label", label, "error", err)
		return false
	}
	m.tx = tx
	return true
}

func (m *Machine) endTx() {
	if m.tx == nil {
		return
	}
	if err := m.tx.Commit(); err != nil {
		m.log.Warn("transaction commit failed", "error", err)
	}
	m.tx = nil
}
