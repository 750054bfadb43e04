package geo

import (
	"testing"

	"cogentcore.org/core/math32"
	"github.com/stretchr/testify/assert"
)

func TestNearestPrim(t *testing.T) {
	g := New()
	g.AddPolylinePoints([]math32.Vector3{math32.Vec3(0, 0, 0), math32.Vec3(1, 0, 0)})
	g.AddPolylinePoints([]math32.Vector3{math32.Vec3(0, 0.5, 0), math32.Vec3(1, 0.5, 0)})

	origin := math32.Vec3(0.5, 0.1, 5)
	dir := math32.Vec3(0, 0, -1)

	// Both lines are within a loose radius; the closer one wins.
	assert.Equal(t, 0, g.NearestPrim(origin, dir, 1))

	// A tighter radius only reaches the first line's points.
	assert.Equal(t, 0, g.NearestPrim(origin, dir, 0.6))

	// Tighter than either misses.
	assert.Equal(t, -1, g.NearestPrim(origin, dir, 0.3))

	// Aim between them, nearer the second.
	assert.Equal(t, 1, g.NearestPrim(math32.Vec3(0.5, 0.4, 5), dir, 1))
}

func TestNearestPrim_BehindOrigin(t *testing.T) {
	g := New()
	g.AddPolylinePoints([]math32.Vector3{math32.Vec3(0, 0, 10), math32.Vec3(1, 0, 10)})

	// The line sits behind the ray start; only the raw offset counts,
	// which is too far.
	assert.Equal(t, -1, g.NearestPrim(math32.Vec3(0, 0, 5), math32.Vec3(0, 0, -1), 1))
}

func TestNearestPrim_DegenerateDir(t *testing.T) {
	g := New()
	g.AddPolylinePoints([]math32.Vector3{math32.Vec3(0, 0, 0), math32.Vec3(1, 0, 0)})
	assert.Equal(t, -1, g.NearestPrim(math32.Vec3(0, 0, 1), math32.Vector3{}, 10))
}
