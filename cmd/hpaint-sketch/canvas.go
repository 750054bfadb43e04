package main

import (
	"fmt"
	"image"
	"image/color"

	"gioui.org/f32"
	"gioui.org/io/event"
	"gioui.org/io/key"
	"gioui.org/io/pointer"
	"gioui.org/layout"
	"gioui.org/op"
	"gioui.org/op/clip"
	"gioui.org/op/paint"
	"gioui.org/unit"
	"gioui.org/widget/material"

	"cogentcore.org/core/math32"

	"hpaint/internal/capture"
	"hpaint/internal/geo"
	"hpaint/internal/project"
)

// scrollNotch is the device pixels gio reports per wheel detent.
const scrollNotch = 120

var (
	canvasBg = color.NRGBA{R: 0x12, G: 0x12, B: 0x14, A: 0xFF}
	statusBg = color.NRGBA{R: 0x1C, G: 0x1C, B: 0x20, A: 0xFF}
	statusFg = color.NRGBA{R: 0xC8, G: 0xC8, B: 0xCC, A: 0xFF}
)

// canvas maps the widget area onto the engine's world: a square window
// two world units across, x right and y up, centered on the widget.
// Pointer gestures feed the machine; the buffer, the in-progress
// stroke and the brush cursor draw back in pixel space.
type canvas struct {
	host    *capture.MemHost
	machine *capture.Machine
	proj    project.Params

	dragging bool

	// Pixel mapping for the current frame.
	scale float32
	cx    float32
	cy    float32
}

func newCanvas(host *capture.MemHost, machine *capture.Machine, proj project.Params) *canvas {
	return &canvas{host: host, machine: machine, proj: proj}
}

// Frame lays out the full window: the drawing area above a one-line
// status bar.
func (c *canvas) Frame(gtx layout.Context, th *material.Theme) layout.Dimensions {
	return layout.Flex{Axis: layout.Vertical}.Layout(gtx,
		layout.Flexed(1, func(gtx layout.Context) layout.Dimensions {
			return c.Layout(gtx)
		}),
		layout.Rigid(func(gtx layout.Context) layout.Dimensions {
			return c.layoutStatus(gtx, th)
		}),
	)
}

// Layout draws the canvas area and routes its pointer input.
func (c *canvas) Layout(gtx layout.Context) layout.Dimensions {
	size := gtx.Constraints.Max

	side := size.X
	if size.Y < side {
		side = size.Y
	}
	c.scale = float32(side) / 2
	c.cx = float32(size.X) / 2
	c.cy = float32(size.Y) / 2

	defer clip.Rect{Max: size}.Push(gtx.Ops).Pop()
	paint.Fill(gtx.Ops, canvasBg)

	c.handleInput(gtx)
	event.Op(gtx.Ops, c)
	pointer.CursorCrosshair.Add(gtx.Ops)

	c.drawBuffer(gtx.Ops)
	c.drawLive(gtx.Ops)
	c.drawCursor(gtx.Ops)

	return layout.Dimensions{Size: size}
}

func (c *canvas) handleInput(gtx layout.Context) {
	for {
		ev, ok := gtx.Event(pointer.Filter{
			Target: c,
			Kinds: pointer.Press | pointer.Drag | pointer.Release |
				pointer.Cancel | pointer.Move | pointer.Leave | pointer.Scroll,
			ScrollY: pointer.ScrollRange{Min: -1000, Max: 1000},
		})
		if !ok {
			break
		}
		e, ok := ev.(pointer.Event)
		if !ok {
			continue
		}
		c.pointer(e)
	}
}

func (c *canvas) pointer(e pointer.Event) {
	switch e.Kind {
	case pointer.Press:
		if e.Buttons&pointer.ButtonPrimary == 0 {
			return
		}
		c.dragging = true
		c.machine.HandleEvent(c.gesture(e, capture.Start))
	case pointer.Drag:
		if !c.dragging {
			return
		}
		c.machine.HandleEvent(c.gesture(e, capture.Active))
	case pointer.Release, pointer.Cancel:
		if !c.dragging {
			return
		}
		c.dragging = false
		c.machine.HandleEvent(c.gesture(e, capture.Changed))
	case pointer.Move:
		c.hover(e)
	case pointer.Leave:
		if !c.dragging {
			c.machine.Cursor().Hide()
		}
	case pointer.Scroll:
		ev := c.gesture(e, capture.Active)
		ev.ScrollY = -e.Scroll.Y / scrollNotch
		c.machine.Wheel(ev)
	}
}

// gesture translates a window pointer event into an engine event.
// Pixel coordinates feed the resize drag, with y flipped so dragging
// up grows the brush.
func (c *canvas) gesture(e pointer.Event, reason capture.Reason) capture.PointerEvent {
	origin, dir := c.ray(e.Position)
	return capture.PointerEvent{
		Reason:   reason,
		Origin:   origin,
		Dir:      dir,
		Pressure: 1,
		Time:     float32(e.Time.Seconds()),
		Ctrl:     e.Modifiers.Contain(key.ModCtrl),
		Shift:    e.Modifiers.Contain(key.ModShift),
		MouseX:   e.Position.X,
		MouseY:   -e.Position.Y,
	}
}

// hover tracks the brush cursor between gestures. Unpressed moves
// never reach the machine; they would accumulate samples.
func (c *canvas) hover(e pointer.Event) {
	if c.dragging {
		return
	}
	origin, dir := c.ray(e.Position)
	cur := c.machine.Cursor()
	cur.UpdatePosition(origin, dir, c.host.GetScalar(capture.ParamRadius), c.proj, c.host.Surface())
	cur.Show()
}

// ray casts an orthographic view ray through a widget position. The
// view looks down -Z, so a screen-plane projection lands at z = 0 with
// the canvas mapping.
func (c *canvas) ray(p f32.Point) (origin, dir math32.Vector3) {
	x, y := c.toWorld(p)
	return math32.Vec3(x, y, 1), math32.Vec3(0, 0, -1)
}

func (c *canvas) toWorld(p f32.Point) (x, y float32) {
	return (p.X - c.cx) / c.scale, (c.cy - p.Y) / c.scale
}

func (c *canvas) toPixel(v math32.Vector3) f32.Point {
	return f32.Pt(c.cx+v.X*c.scale, c.cy-v.Y*c.scale)
}

// drawBuffer renders the committed strokes. Stroke width comes from
// the per-point widths averaged over the polyline; clip strokes carry
// one width per path.
func (c *canvas) drawBuffer(ops *op.Ops) {
	buf := c.host.Buffer()
	pos := buf.Positions()
	for i := 0; i < buf.NumPrims(); i++ {
		pr := buf.Prim(i)
		if pr.Kind != geo.KindPolyline || len(pr.Verts) == 0 {
			continue
		}
		pts := make([]f32.Point, len(pr.Verts))
		var width float32
		for j, v := range pr.Verts {
			pts[j] = c.toPixel(pos[v])
			if s, ok := buf.PointF(geo.AttrScale, int(v)); ok {
				width += s
			}
		}
		width = width / float32(len(pr.Verts)) * 2 * c.scale
		c.strokePath(ops, pts, width, c.primColor(buf, pr))
	}
}

// drawLive renders the in-progress stroke and its mirror images from
// the accumulator. Erase gestures have no preview.
func (c *canvas) drawLive(ops *op.Ops) {
	if !c.machine.Drawing() || c.machine.Erasing() {
		return
	}
	acc := c.machine.Accumulator()
	shared := acc.Shared()
	col := rgba(shared.Color[0], shared.Color[1], shared.Color[2], shared.Opacity)
	width := shared.Radius * 2 * c.scale
	for _, stream := range acc.Streams() {
		if len(stream) == 0 {
			continue
		}
		pts := make([]f32.Point, len(stream))
		for j, s := range stream {
			pts[j] = c.toPixel(s.ProjPos)
		}
		c.strokePath(ops, pts, width, col)
	}
}

func (c *canvas) drawCursor(ops *op.Ops) {
	cur := c.machine.Cursor()
	if !cur.Visible() {
		return
	}
	p := c.toPixel(cur.Position())
	r := cur.Radius() * c.scale
	if r < 2 {
		r = 2
	}
	col := cur.Color()
	bounds := image.Rect(int(p.X-r), int(p.Y-r), int(p.X+r), int(p.Y+r))
	outline := clip.Stroke{Path: clip.Ellipse(bounds).Path(ops), Width: 1.5}.Op()
	paint.FillShape(ops, rgba(col[0], col[1], col[2], col[3]), outline)
}

// strokePath draws a polyline with round pixel width. A single point
// draws as a dot.
func (c *canvas) strokePath(ops *op.Ops, pts []f32.Point, width float32, col color.NRGBA) {
	if len(pts) == 0 {
		return
	}
	if width < 1 {
		width = 1
	}
	if len(pts) == 1 {
		r := width / 2
		if r < 1 {
			r = 1
		}
		bounds := image.Rect(int(pts[0].X-r), int(pts[0].Y-r), int(pts[0].X+r), int(pts[0].Y+r))
		paint.FillShape(ops, col, clip.Ellipse(bounds).Op(ops))
		return
	}
	var p clip.Path
	p.Begin(ops)
	p.MoveTo(pts[0])
	for _, pt := range pts[1:] {
		p.LineTo(pt)
	}
	paint.FillShape(ops, col, clip.Stroke{Path: p.End(), Width: width}.Op())
}

func (c *canvas) primColor(g *geo.Geometry, pr geo.Prim) color.NRGBA {
	pi := int(pr.Verts[0])
	col := math32.Vec3(1, 1, 1)
	if v, ok := g.PointV(geo.AttrColor, pi); ok {
		col = v
	}
	alpha := float32(1)
	if a, ok := g.PointF(geo.AttrAlpha, pi); ok {
		alpha = a
	}
	return rgba(col.X, col.Y, col.Z, alpha)
}

func (c *canvas) layoutStatus(gtx layout.Context, th *material.Theme) layout.Dimensions {
	height := gtx.Dp(28)
	size := image.Pt(gtx.Constraints.Max.X, height)
	paint.FillShape(gtx.Ops, statusBg, clip.Rect{Max: size}.Op())

	gtx.Constraints.Min.Y = height
	gtx.Constraints.Max.Y = height
	layout.UniformInset(unit.Dp(6)).Layout(gtx, func(gtx layout.Context) layout.Dimensions {
		l := material.Body2(th, c.status())
		l.Color = statusFg
		l.TextSize = unit.Sp(13)
		return l.Layout(gtx)
	})
	return layout.Dimensions{Size: size}
}

func (c *canvas) status() string {
	mode := "draw"
	if c.machine.Erasing() {
		mode = "erase"
	}
	return fmt.Sprintf("%s  |  %s  radius %.3f  |  %d prims",
		c.machine.Prompt(), mode,
		c.host.GetScalar(capture.ParamRadius),
		c.host.Buffer().NumPrims())
}

func rgba(r, g, b, a float32) color.NRGBA {
	return color.NRGBA{R: channel(r), G: channel(g), B: channel(b), A: channel(a)}
}

func channel(v float32) uint8 {
	switch {
	case v <= 0:
		return 0
	case v >= 1:
		return 255
	}
	return uint8(v * 255)
}
