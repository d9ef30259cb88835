// Package leaf generates a single leaf mesh from a superformula contour:
// sample the outline, cut a serration/lobing margin into it, triangulate,
// lay planar UVs, then bend the flat blade in Z.
package leaf

import (
	"math"

	"github.com/chazu/canopy/pkg/mesh"
	"github.com/chazu/canopy/pkg/vecmath"
)

// MarginShape selects the tooth profile cut into the contour radius.
type MarginShape int

const (
	Entire MarginShape = iota
	Serrate
	Dentate
	Crenate
	Lobed
)

// Params fully describes one leaf blade.
type Params struct {
	M, A, B, N1, N2, N3 float64 // superformula coefficients
	AspectRatio         float64
	ContourResolution    int
	Margin              MarginShape
	ToothCount          float64
	ToothDepth          float64
	ToothSharpness      float64
	AsymmetrySeed       int64 // 0 means "no asymmetry"
	MidribCurvature     float64
	CrossCurvature      float64
	EdgeCurl            float64
}

const minN1Magnitude = 0.001

// Generate builds the leaf blade mesh for p.
func Generate(p Params) *mesh.Mesh {
	m := mesh.New()

	contour := sampleContour(p)
	if len(contour) < 3 {
		return m
	}
	contour = applyMargin(p, contour)

	vertices, polys := triangulate(contour)
	for _, v := range vertices {
		m.AddVertex(v)
	}
	m.Polygons = append(m.Polygons, polys...)
	m.UVs = computeUVs(vertices)
	m.UVLoops = append(m.UVLoops, polys...)

	applyDeformation(p, m)
	return m
}

func superformulaRadius(p Params, theta float64) float64 {
	n1 := p.N1
	if math.Abs(n1) < minN1Magnitude {
		if n1 < 0 {
			n1 = -minN1Magnitude
		} else {
			n1 = minN1Magnitude
		}
	}
	t1 := math.Abs(math.Cos(p.M*theta/4) / p.A)
	t2 := math.Abs(math.Sin(p.M*theta/4) / p.B)
	return math.Pow(math.Pow(t1, p.N2)+math.Pow(t2, p.N3), -1/n1)
}

func contourPoint(p Params, theta float64) vecmath.Vec3 {
	r := superformulaRadius(p, theta)
	x := r * math.Cos(theta) * p.AspectRatio
	y := r * math.Sin(theta)
	return vecmath.Vec3{X: x, Y: y, Z: 0}
}

// sampleContour walks theta from 0 to 2pi, adaptively inserting a midpoint
// wherever consecutive edge directions turn sharper than ~18 degrees.
func sampleContour(p Params) []vecmath.Vec3 {
	n := p.ContourResolution
	if n < 8 {
		n = 8
	}

	thetas := make([]float64, 0, n+1)
	for i := 0; i < n; i++ {
		thetas = append(thetas, 2*math.Pi*float64(i)/float64(n))
	}

	points := make([]vecmath.Vec3, len(thetas))
	for i, th := range thetas {
		points[i] = contourPoint(p, th)
	}

	const maxPasses = 4
	for pass := 0; pass < maxPasses; pass++ {
		refinedThetas := make([]float64, 0, len(thetas)*2)
		refinedPoints := make([]vecmath.Vec3, 0, len(points)*2)
		changed := false

		for i := range points {
			refinedThetas = append(refinedThetas, thetas[i])
			refinedPoints = append(refinedPoints, points[i])

			j := (i + 1) % len(points)
			prev := points[(i-1+len(points))%len(points)]
			edgeA := points[i].Sub(prev).Normalized()
			edgeB := points[j].Sub(points[i]).Normalized()
			if edgeA.Dot(edgeB) < 0.95 {
				midTheta := thetas[i] + angularDelta(thetas[i], wrapTheta(thetas, i))/2
				mid := contourPoint(p, midTheta)
				refinedThetas = append(refinedThetas, midTheta)
				refinedPoints = append(refinedPoints, mid)
				changed = true
			}
		}

		thetas, points = refinedThetas, refinedPoints
		if !changed {
			break
		}
	}

	return points
}

func wrapTheta(thetas []float64, i int) float64 {
	j := (i + 1) % len(thetas)
	if j == 0 {
		return thetas[i] + (2*math.Pi - thetas[i])
	}
	return thetas[j]
}

func angularDelta(a, b float64) float64 {
	d := b - a
	if d < 0 {
		d += 2 * math.Pi
	}
	return d
}

func marginModulation(shape MarginShape, frac, toothSharpness float64) float64 {
	switch shape {
	case Serrate:
		if frac < 0 {
			frac += 1
		}
		if frac < toothSharpness {
			return frac / toothSharpness
		}
		return (1 - frac) / (1 - toothSharpness)
	case Dentate:
		return 1 - 2*math.Abs(frac-0.5)
	case Crenate:
		return 0.5 * (1 + math.Sin(2*math.Pi*frac))
	case Lobed:
		return 0.5 * (1 + math.Cos(2*math.Pi*frac))
	default:
		return 0
	}
}

// applyMargin re-scales each contour point's radius by the tooth profile.
func applyMargin(p Params, contour []vecmath.Vec3) []vecmath.Vec3 {
	if p.Margin == Entire || p.ToothCount <= 0 {
		return contour
	}

	rng := newAsymmetryRand(p.AsymmetrySeed)
	out := make([]vecmath.Vec3, len(contour))
	for i, v := range contour {
		theta := math.Atan2(v.Y, v.X)
		if theta < 0 {
			theta += 2 * math.Pi
		}
		t := theta * p.ToothCount / (2 * math.Pi)
		frac := t - math.Floor(t)

		depth := p.ToothDepth
		if p.AsymmetrySeed != 0 {
			depth *= 1 + rng()*0.6-0.3
		}

		mod := marginModulation(p.Margin, frac, p.ToothSharpness)
		scale := 1 + depth*mod
		out[i] = vecmath.Vec3{X: v.X * scale, Y: v.Y * scale, Z: v.Z}
	}
	return out
}

// newAsymmetryRand returns a closure yielding successive uniform(0,1)
// values from a small deterministic LCG, avoiding a full math/rand.Rand
// allocation for what is a cosmetic per-vertex jitter.
func newAsymmetryRand(seed int64) func() float64 {
	state := uint64(seed)
	if state == 0 {
		state = 1
	}
	return func() float64 {
		state = state*6364136223846793005 + 1442695040888963407
		return float64(state>>11) / float64(1<<53)
	}
}

// triangulate ear-clips contour after normalizing to CCW winding, falling
// back to a centroid fan if no ear can be found. It returns the vertex
// list the returned polygons index into, which is contour itself unless
// the centroid fallback appended an extra vertex.
func triangulate(contour []vecmath.Vec3) ([]vecmath.Vec3, []mesh.Polygon) {
	ring := make([]int, len(contour))
	for i := range ring {
		ring[i] = i
	}
	if signedArea(contour, ring) < 0 {
		reverse(ring)
	}

	var polys []mesh.Polygon
	for len(ring) > 3 {
		earIdx := findEar(contour, ring)
		if earIdx < 0 {
			fanPolys, vertices := centroidFan(contour, ring)
			return vertices, append(polys, fanPolys...)
		}
		prev := ring[(earIdx-1+len(ring))%len(ring)]
		cur := ring[earIdx]
		next := ring[(earIdx+1)%len(ring)]
		polys = append(polys, mesh.Polygon{prev, cur, next, next})
		ring = append(ring[:earIdx], ring[earIdx+1:]...)
	}
	if len(ring) == 3 {
		polys = append(polys, mesh.Polygon{ring[0], ring[1], ring[2], ring[2]})
	}
	return contour, polys
}

func signedArea(pts []vecmath.Vec3, ring []int) float64 {
	area := 0.0
	for i := range ring {
		a := pts[ring[i]]
		b := pts[ring[(i+1)%len(ring)]]
		area += a.X*b.Y - b.X*a.Y
	}
	return area / 2
}

func reverse(ring []int) {
	for i, j := 0, len(ring)-1; i < j; i, j = i+1, j-1 {
		ring[i], ring[j] = ring[j], ring[i]
	}
}

func findEar(pts []vecmath.Vec3, ring []int) int {
	for i := range ring {
		prev := pts[ring[(i-1+len(ring))%len(ring)]]
		cur := pts[ring[i]]
		next := pts[ring[(i+1)%len(ring)]]

		cross := (cur.X-prev.X)*(next.Y-prev.Y) - (cur.Y-prev.Y)*(next.X-prev.X)
		if cross <= 0 {
			continue // reflex vertex, cannot be an ear
		}

		containsOther := false
		for j, idx := range ring {
			if j == i || ring[(i-1+len(ring))%len(ring)] == idx || ring[(i+1)%len(ring)] == idx {
				continue
			}
			if pointInTriangle(pts[idx], prev, cur, next) {
				containsOther = true
				break
			}
		}
		if !containsOther {
			return i
		}
	}
	return -1
}

func pointInTriangle(p, a, b, c vecmath.Vec3) bool {
	d1 := sign2D(p, a, b)
	d2 := sign2D(p, b, c)
	d3 := sign2D(p, c, a)
	hasNeg := d1 < 0 || d2 < 0 || d3 < 0
	hasPos := d1 > 0 || d2 > 0 || d3 > 0
	return !(hasNeg && hasPos)
}

func sign2D(p, a, b vecmath.Vec3) float64 {
	return (p.X-b.X)*(a.Y-b.Y) - (a.X-b.X)*(p.Y-b.Y)
}

func centroidFan(pts []vecmath.Vec3, ring []int) ([]mesh.Polygon, []vecmath.Vec3) {
	centroid := vecmath.Vec3{}
	for _, idx := range ring {
		centroid = centroid.Add(pts[idx])
	}
	centroid = centroid.Scale(1 / float64(len(ring)))
	centroidIdx := len(pts)
	vertices := append(append([]vecmath.Vec3{}, pts...), centroid)

	polys := make([]mesh.Polygon, 0, len(ring))
	for i := range ring {
		a := ring[i]
		b := ring[(i+1)%len(ring)]
		polys = append(polys, mesh.Polygon{centroidIdx, a, b, b})
	}
	return polys, vertices
}

func computeUVs(contour []vecmath.Vec3) [][2]float64 {
	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for _, v := range contour {
		minX, maxX = math.Min(minX, v.X), math.Max(maxX, v.X)
		minY, maxY = math.Min(minY, v.Y), math.Max(maxY, v.Y)
	}
	width, height := maxX-minX, maxY-minY
	if width < 1e-9 {
		width = 1
	}
	if height < 1e-9 {
		height = 1
	}

	uvs := make([][2]float64, len(contour))
	for i, v := range contour {
		u := clamp01((v.X - minX) / width)
		vv := clamp01((v.Y - minY) / height)
		uvs[i] = [2]float64{u, vv}
	}
	return uvs
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}

// applyDeformation bends the flat blade in Z: a midrib bow along the
// length, cross cupping across the width, and edge curl near the margin.
func applyDeformation(p Params, m *mesh.Mesh) {
	if p.MidribCurvature == 0 && p.CrossCurvature == 0 && p.EdgeCurl == 0 {
		return
	}

	minY, maxY := math.Inf(1), math.Inf(-1)
	minX, maxX := math.Inf(1), math.Inf(-1)
	for _, v := range m.Vertices {
		minY, maxY = math.Min(minY, v.Y), math.Max(maxY, v.Y)
		minX, maxX = math.Min(minX, v.X), math.Max(maxX, v.X)
	}
	height := maxY - minY
	if height < 1e-9 {
		height = 1
	}
	halfWidth := (maxX - minX) / 2
	if halfWidth < 1e-9 {
		halfWidth = 1
	}
	centerX := (minX + maxX) / 2

	contourEdge := m.Vertices

	for i, v := range m.Vertices {
		ny := (v.Y - minY) / height
		nx := clampSym((v.X - centerX) / halfWidth)

		z := v.Z
		z += p.MidribCurvature * ny * ny * 0.5
		z += p.CrossCurvature * nx * nx * 0.3

		if p.EdgeCurl != 0 {
			d := minDistanceToContour(v, contourEdge)
			edgeFactor := 1 - clamp01(d/(0.3*halfWidth))
			z += p.EdgeCurl * edgeFactor * edgeFactor * 0.2
		}

		m.Vertices[i].Z = z
	}
}

func clampSym(v float64) float64 {
	return math.Max(-1, math.Min(1, v))
}

func minDistanceToContour(p vecmath.Vec3, contour []vecmath.Vec3) float64 {
	minD := math.Inf(1)
	for i := range contour {
		a := contour[i]
		b := contour[(i+1)%len(contour)]
		d := distancePointToSegment(p, a, b)
		if d < minD {
			minD = d
		}
	}
	return minD
}

func distancePointToSegment(p, a, b vecmath.Vec3) float64 {
	ab := b.Sub(a)
	lenSq := ab.LengthSq()
	if lenSq < 1e-12 {
		return p.Distance(a)
	}
	t := clamp01(p.Sub(a).Dot(ab) / lenSq)
	proj := a.Add(ab.Scale(t))
	return p.Distance(proj)
}
