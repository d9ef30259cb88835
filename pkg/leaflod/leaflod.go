// Package leaflod builds cheap stand-ins for a full leaf mesh: a single
// bounding quad, a billboard cloud of several such quads fanned around a
// set of positions, and the hemisphere of view directions an impostor
// renderer would bake against.
package leaflod

import (
	"math"

	"github.com/chazu/canopy/pkg/mesh"
	"github.com/chazu/canopy/pkg/vecmath"
)

// GenerateCard returns a single quad spanning source's XY bounding box at
// the midpoint of source's Z range, with a fixed BL/BR/TR/TL vertex and UV
// winding. A source with fewer than 3 vertices (nothing to bound) yields an
// empty mesh.
func GenerateCard(source *mesh.Mesh) *mesh.Mesh {
	m := mesh.New()
	if source == nil || len(source.Vertices) < 3 {
		return m
	}

	minX, minY, maxX, maxY := math.Inf(1), math.Inf(1), math.Inf(-1), math.Inf(-1)
	minZ, maxZ := math.Inf(1), math.Inf(-1)
	for _, v := range source.Vertices {
		minX, maxX = math.Min(minX, v.X), math.Max(maxX, v.X)
		minY, maxY = math.Min(minY, v.Y), math.Max(maxY, v.Y)
		minZ, maxZ = math.Min(minZ, v.Z), math.Max(maxZ, v.Z)
	}
	avgZ := (minZ + maxZ) * 0.5

	bl := m.AddVertex(vecmath.Vec3{X: minX, Y: minY, Z: avgZ})
	br := m.AddVertex(vecmath.Vec3{X: maxX, Y: minY, Z: avgZ})
	tr := m.AddVertex(vecmath.Vec3{X: maxX, Y: maxY, Z: avgZ})
	tl := m.AddVertex(vecmath.Vec3{X: minX, Y: maxY, Z: avgZ})

	m.AddQuad(bl, br, tr, tl)
	m.UVs = [][2]float64{{0, 0}, {1, 0}, {1, 1}, {0, 1}}
	m.UVLoops = append(m.UVLoops, mesh.Polygon{bl, br, tr, tl})
	return m
}

// GenerateBillboardCloud fits a bounding radius around positions, then
// places numPlanes vertical quads of that size around the centroid, one
// per equal azimuthal step around Z, so the cloud approximates the source
// foliage from any horizontal viewing angle. Each quad is triangulated
// into two independent triangles (no shared vertices between planes).
func GenerateBillboardCloud(positions []vecmath.Vec3, numPlanes int) *mesh.Mesh {
	m := mesh.New()
	if numPlanes <= 0 || len(positions) == 0 {
		return m
	}

	centroid := vecmath.Vec3{}
	for _, p := range positions {
		centroid = centroid.Add(p)
	}
	centroid = centroid.Scale(1 / float64(len(positions)))

	radius := 0.0
	for _, p := range positions {
		radius = math.Max(radius, p.Distance(centroid))
	}
	if radius < 1e-6 {
		radius = 0.5
	}

	up := vecmath.Vec3{Z: 1}
	for i := 0; i < numPlanes; i++ {
		azimuth := math.Pi * float64(i) / float64(numPlanes)
		right := vecmath.Vec3{X: math.Cos(azimuth), Y: math.Sin(azimuth), Z: 0}

		bl := m.AddVertex(centroid.Sub(right.Scale(radius)).Sub(up.Scale(radius)))
		br := m.AddVertex(centroid.Add(right.Scale(radius)).Sub(up.Scale(radius)))
		tr := m.AddVertex(centroid.Add(right.Scale(radius)).Add(up.Scale(radius)))
		tl := m.AddVertex(centroid.Sub(right.Scale(radius)).Add(up.Scale(radius)))

		m.AddTriangle(bl, br, tr)
		m.AddTriangle(bl, tr, tl)
		m.UVs = append(m.UVs, [2]float64{0, 0}, [2]float64{1, 0}, [2]float64{1, 1}, [2]float64{0, 1})
		m.UVLoops = append(m.UVLoops, mesh.Polygon{bl, br, tr, tr}, mesh.Polygon{bl, tr, tl, tl})
	}
	return m
}

// ImpostorViewDirections returns the resolution*resolution unit directions
// an impostor atlas of that resolution bakes against: a spherical grid over
// the upper hemisphere that excludes both the pole (straight down the tree's
// own up axis) and the horizon (grazing angles a billboard cloud already
// covers) by construction.
func ImpostorViewDirections(resolution int) []vecmath.Vec3 {
	if resolution <= 0 {
		return nil
	}
	dirs := make([]vecmath.Vec3, 0, resolution*resolution)
	for j := 0; j < resolution; j++ {
		phi := math.Pi / 2 * float64(j+1) / float64(resolution+1)
		sinPhi, cosPhi := math.Sin(phi), math.Cos(phi)
		for i := 0; i < resolution; i++ {
			theta := 2 * math.Pi * float64(i) / float64(resolution)
			dirs = append(dirs, vecmath.Vec3{
				X: sinPhi * math.Cos(theta),
				Y: sinPhi * math.Sin(theta),
				Z: cosPhi,
			})
		}
	}
	return dirs
}
