//go:build integration

package integration

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hpaint/internal/capture"
	"hpaint/internal/geo"
	"hpaint/internal/stroke"
)

// The strokes here live entirely in positive x so the x-mirror copy is
// spatially separate and an erase click can only reach one of them.

func mirroredEnv(t *testing.T) *TestEnv {
	env := NewTestEnv(t)
	env.InitMachine(capture.Options{
		Mirrors: stroke.BuildMirrors([]string{"x"}, nil),
	})
	return env
}

// =============================================================================
// Segment Erase
// =============================================================================

// TestSegmentErase clicks one mirror segment and verifies only that
// segment disappears while its twin stays.
func TestSegmentErase(t *testing.T) {
	env := mirroredEnv(t)
	defer env.Cleanup()

	env.DrawStroke(0.1, 0.2, 0.5, 0.2, 4)
	require.Equal(t, 2, env.Host.Buffer().NumPrims())

	// A stroke vertex sits exactly at (0.3, 0.2); the mirror twin is
	// half a unit away, far outside the brush radius.
	env.EraseAt(0.3, 0.2, false)

	buf := env.Host.Buffer()
	require.Equal(t, 1, buf.NumPrims())
	id, ok := buf.PrimI(geo.AttrStrokeID, 0)
	require.True(t, ok)
	assert.Equal(t, int32(1), id)
	seg, ok := buf.PrimI(geo.AttrSegID, 0)
	require.True(t, ok)
	assert.Equal(t, int32(1), seg, "the surviving prim is the mirror segment")

	assert.Len(t, buf.Group(stroke.StrokeGroup(1)), 1)
	assert.Empty(t, buf.Group(stroke.SegmentGroup(1, 0)))
}

// =============================================================================
// Whole-Stroke Erase
// =============================================================================

// TestWholeStrokeErase holds Shift with the eraser and verifies every
// mirror segment of the clicked stroke goes while other strokes stay.
func TestWholeStrokeErase(t *testing.T) {
	env := mirroredEnv(t)
	defer env.Cleanup()

	env.DrawStroke(0.1, 0.2, 0.5, 0.2, 4)
	env.DrawStroke(0.1, -0.4, 0.5, -0.4, 3)
	require.Equal(t, 4, env.Host.Buffer().NumPrims())

	env.EraseAt(0.3, 0.2, true)

	buf := env.Host.Buffer()
	require.Equal(t, 2, buf.NumPrims())
	for i := 0; i < buf.NumPrims(); i++ {
		id, ok := buf.PrimI(geo.AttrStrokeID, i)
		require.True(t, ok)
		assert.Equal(t, int32(2), id)
	}
	assert.Empty(t, buf.Group(stroke.StrokeGroup(1)))
	assert.Len(t, buf.Group(stroke.StrokeGroup(2)), 2)

	// Erasing never lowers the id high-water mark.
	assert.Equal(t, int32(2), env.MaxStrokeID())
	assert.Equal(t, float32(2), env.Host.GetScalar(stroke.ParamStrokeNum))
}

// TestFullEraseOption configures whole-stroke erasure as the default
// so a plain Ctrl click takes all mirror segments.
func TestFullEraseOption(t *testing.T) {
	env := NewTestEnv(t)
	defer env.Cleanup()
	env.InitMachine(capture.Options{
		FullStrokeErase: true,
		Mirrors:         stroke.BuildMirrors([]string{"x"}, nil),
	})

	env.DrawStroke(0.1, 0.2, 0.5, 0.2, 4)
	require.Equal(t, 2, env.Host.Buffer().NumPrims())

	env.EraseAt(0.3, 0.2, false)
	assert.Equal(t, 0, env.Host.Buffer().NumPrims())
}

// TestEraseOutOfRange clicks empty canvas and verifies nothing is
// deleted when no prim falls inside the brush radius.
func TestEraseOutOfRange(t *testing.T) {
	env := mirroredEnv(t)
	defer env.Cleanup()

	env.DrawStroke(0.1, 0.2, 0.5, 0.2, 4)
	env.EraseAt(0.3, 0.8, false)

	assert.Equal(t, 2, env.Host.Buffer().NumPrims())
	assert.Equal(t, 1, env.StrokeCount())
}

// TestEraseThenDrawContinuesIds erases the only stroke and verifies
// the next stroke still takes a fresh id rather than reusing one.
func TestEraseThenDrawContinuesIds(t *testing.T) {
	env := mirroredEnv(t)
	defer env.Cleanup()

	env.DrawStroke(0.1, 0.2, 0.5, 0.2, 4)
	env.EraseAt(0.3, 0.2, true)
	require.Equal(t, 0, env.Host.Buffer().NumPrims())

	env.DrawStroke(0.1, -0.1, 0.5, -0.1, 3)

	buf := env.Host.Buffer()
	require.Equal(t, 2, buf.NumPrims())
	id, _ := buf.PrimI(geo.AttrStrokeID, 0)
	assert.Equal(t, int32(2), id)
	assert.Equal(t, int32(2), env.MaxStrokeID())
}
