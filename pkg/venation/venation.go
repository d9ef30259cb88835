// Package venation grows a leaf's vein network over a flat contour using
// space colonization ("runions"): auxin sources attract nearby vein tips,
// which extend toward the average attraction direction until the auxins
// they satisfy are consumed.
package venation

import (
	"math"
	"math/rand"

	"github.com/dhconnelly/rtreego"

	"github.com/chazu/canopy/pkg/mesh"
	"github.com/chazu/canopy/pkg/vecmath"
)

// Mode selects whether converging vein tips may merge into a shared node
// (Closed) or must each keep growing independently (Open).
type Mode int

const (
	Open Mode = iota
	Closed
)

const maxAuxinCount = 5000

// Params configures one venation growth run.
type Params struct {
	Mode               Mode
	VeinDensity        float64 // auxin points per unit contour area
	AttractionDistance float64
	KillDistance       float64
	GrowthStepSize     float64
	MaxIterations      int
}

// Node is one vein-tree vertex. Parent is -1 for a root; parent[i] < i
// for every non-root node, so a forest is representable as a flat slice
// walked backward from any node to reach a root in bounded steps.
type Node struct {
	Position vecmath.Vec3
	Parent   int
	Width    float64
}

// Result is the output vein forest, plus the pipe-model width already
// propagated onto each node.
type Result struct {
	Nodes []Node
}

// Generate grows a vein forest over contour using p. An empty or
// degenerate contour (fewer than 3 points, or vein_density producing no
// auxins) yields an empty Result — not an error, per the numerical
// degeneracy handling the rest of this pipeline follows.
func Generate(contour []vecmath.Vec3, p Params, seed int64) Result {
	if len(contour) < 3 {
		return Result{}
	}
	rng := rand.New(rand.NewSource(seed))

	minX, minY, maxX, maxY := boundingBox(contour)
	area := contourArea(contour)
	auxinCount := int(clamp(p.VeinDensity*area, 0, maxAuxinCount))
	if auxinCount == 0 {
		return Result{}
	}

	auxins := seedAuxins(rng, contour, auxinCount, minX, minY, maxX, maxY)

	root := placeRoot(contour, minX, minY, maxX, maxY, p.GrowthStepSize)
	nodes := []Node{{Position: root, Parent: -1}}

	hash := NewSpatialHash2D(math.Max(p.AttractionDistance, 1e-6))
	hash.Insert(0, root)

	maxIter := p.MaxIterations
	if maxIter <= 0 {
		maxIter = 200
	}

	for iter := 0; iter < maxIter; iter++ {
		if len(auxins) == 0 {
			break
		}

		type accum struct {
			dir   vecmath.Vec3
			count int
		}
		attraction := map[int]*accum{}

		for _, a := range auxins {
			nearest, dist := nearestNode(hash, a)
			if nearest < 0 || dist > p.AttractionDistance {
				continue
			}
			dir := a.Sub(nodes[nearest].Position).Normalized()
			acc, ok := attraction[nearest]
			if !ok {
				acc = &accum{}
				attraction[nearest] = acc
			}
			acc.dir = acc.dir.Add(dir)
			acc.count++
		}

		if len(attraction) == 0 {
			break
		}

		grew := false
		newIndices := []int{}
		for parentIdx, acc := range attraction {
			avgDir := acc.dir.Scale(1 / float64(acc.count)).Normalized()
			newPos := nodes[parentIdx].Position.Add(avgDir.Scale(p.GrowthStepSize))
			if !pointInPolygon(newPos, contour) {
				continue
			}

			targetParent := parentIdx
			if p.Mode == Closed {
				if foreign := findForeignParent(nodes, hash, parentIdx, newPos, 3*p.GrowthStepSize); foreign >= 0 {
					targetParent = foreign
				}
			}

			newIdx := len(nodes)
			nodes = append(nodes, Node{Position: newPos, Parent: targetParent})
			hash.Insert(newIdx, newPos)
			newIndices = append(newIndices, newIdx)
			grew = true
		}

		if !grew {
			break
		}

		effectiveKill := p.KillDistance
		if p.Mode == Closed {
			effectiveKill = p.KillDistance / 2
		}
		auxins = killNearby(auxins, nodes, newIndices, effectiveKill)
	}

	computePipeWidths(nodes)
	return Result{Nodes: nodes}
}

func boundingBox(contour []vecmath.Vec3) (minX, minY, maxX, maxY float64) {
	minX, minY = math.Inf(1), math.Inf(1)
	maxX, maxY = math.Inf(-1), math.Inf(-1)
	for _, v := range contour {
		minX, maxX = math.Min(minX, v.X), math.Max(maxX, v.X)
		minY, maxY = math.Min(minY, v.Y), math.Max(maxY, v.Y)
	}
	return
}

// contourArea is the shoelace-formula polygon area of contour's XY
// projection, used in place of its bounding-box area since a leaf outline
// is far from rectangular.
func contourArea(contour []vecmath.Vec3) float64 {
	sum := 0.0
	for i, a := range contour {
		b := contour[(i+1)%len(contour)]
		sum += a.X*b.Y - b.X*a.Y
	}
	return math.Abs(sum) / 2
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func seedAuxins(rng *rand.Rand, contour []vecmath.Vec3, count int, minX, minY, maxX, maxY float64) []vecmath.Vec3 {
	auxins := make([]vecmath.Vec3, 0, count)
	maxAttempts := 10 * count
	for attempt := 0; attempt < maxAttempts && len(auxins) < count; attempt++ {
		p := vecmath.Vec3{
			X: minX + rng.Float64()*(maxX-minX),
			Y: minY + rng.Float64()*(maxY-minY),
		}
		if pointInPolygon(p, contour) {
			auxins = append(auxins, p)
		}
	}
	return auxins
}

// pointInPolygon is an even-odd crossing test in the XY plane.
func pointInPolygon(p vecmath.Vec3, contour []vecmath.Vec3) bool {
	inside := false
	for i, j := 0, len(contour)-1; i < len(contour); j, i = i, i+1 {
		a, b := contour[i], contour[j]
		if (a.Y > p.Y) != (b.Y > p.Y) {
			xIntersect := (b.X-a.X)*(p.Y-a.Y)/(b.Y-a.Y) + a.X
			if p.X < xIntersect {
				inside = !inside
			}
		}
	}
	return inside
}

func placeRoot(contour []vecmath.Vec3, minX, minY, maxX, maxY, stepSize float64) vecmath.Vec3 {
	height := maxY - minY
	root := vecmath.Vec3{X: 0, Y: minY + 0.02*height}

	if pointInPolygon(root, contour) {
		return root
	}

	nearest := contour[0]
	best := math.Inf(1)
	for _, v := range contour {
		d := root.Distance(v)
		if d < best {
			best = d
			nearest = v
		}
	}

	centroid := vecmath.Vec3{}
	for _, v := range contour {
		centroid = centroid.Add(v)
	}
	centroid = centroid.Scale(1 / float64(len(contour)))

	dir := centroid.Sub(nearest).Normalized()
	if stepSize <= 0 {
		stepSize = 0.05
	}
	return nearest.Add(dir.Scale(stepSize))
}

func nearestNode(hash *SpatialHash2D, auxin vecmath.Vec3) (int, float64) {
	candidates := hash.QueryRadius(auxin, hash.cellSize)
	if len(candidates) == 0 {
		candidates = hash.QueryRadius(auxin, hash.cellSize*4)
	}
	best := -1
	bestDist := math.Inf(1)
	for _, id := range candidates {
		d := auxin.Distance(hash.positions[id])
		if d < bestDist {
			bestDist = d
			best = id
		}
	}
	return best, bestDist
}

func isRelated(nodes []Node, a, b int) bool {
	if a == b {
		return true
	}
	for i := b; i != -1; i = nodes[i].Parent {
		if i == a {
			return true
		}
	}
	for i := a; i != -1; i = nodes[i].Parent {
		if i == b {
			return true
		}
	}
	return false
}

// findForeignParent looks for a vein node near newPos that is not an
// ancestor or descendant of attractingIdx, implementing the Closed
// venation loop-merge rule. Returns -1 if none exists.
func findForeignParent(nodes []Node, hash *SpatialHash2D, attractingIdx int, newPos vecmath.Vec3, radius float64) int {
	candidates := hash.QueryRadius(newPos, radius)
	best := -1
	bestDist := math.Inf(1)
	for _, id := range candidates {
		if isRelated(nodes, attractingIdx, id) {
			continue
		}
		d := newPos.Distance(nodes[id].Position)
		if d < bestDist {
			bestDist = d
			best = id
		}
	}
	return best
}

func killNearby(auxins []vecmath.Vec3, nodes []Node, newIndices []int, killDist float64) []vecmath.Vec3 {
	survivors := auxins[:0:0]
	for _, a := range auxins {
		killed := false
		for _, idx := range newIndices {
			if a.Distance(nodes[idx].Position) <= killDist {
				killed = true
				break
			}
		}
		if !killed {
			survivors = append(survivors, a)
		}
	}
	return survivors
}

// computePipeWidths applies the pipe model post-order: tips get unit
// width, an internal node's width sums its children's, and the stored
// width is sqrt(max(width, 1)).
func computePipeWidths(nodes []Node) {
	childCounts := make([]int, len(nodes))
	rawWidth := make([]float64, len(nodes))
	for i := range nodes {
		if nodes[i].Parent >= 0 {
			childCounts[nodes[i].Parent]++
		}
	}
	// Process from the last node backward: parent[i] < i guarantees every
	// child of i has already been visited by the time i is.
	for i := len(nodes) - 1; i >= 0; i-- {
		if childCounts[i] == 0 {
			rawWidth[i] = 1
		}
		if nodes[i].Parent >= 0 {
			rawWidth[nodes[i].Parent] += rawWidth[i]
		}
	}
	for i := range nodes {
		nodes[i].Width = math.Sqrt(math.Max(rawWidth[i], 1))
	}
}

// ComputeVeinDistances sets a "vein_distance" float attribute on m: for
// every vertex, the minimum distance to any vein segment (a lone root is
// treated as a point). If result has no nodes, no attribute is added.
//
// Candidate segments per vertex are narrowed with an rtreego index over
// segment bounding boxes instead of scanning every segment: a query rect
// around the vertex is expanded geometrically until it yields at least
// one candidate, and only those candidates get the exact point-to-segment
// distance computation.
func ComputeVeinDistances(m *mesh.Mesh, result Result) {
	if len(result.Nodes) == 0 {
		return
	}

	segments := buildSegmentIndex(result.Nodes)
	index := buildSegmentTree(segments)

	distances := make([]float64, len(m.Vertices))
	for i, v := range m.Vertices {
		distances[i] = nearestSegmentDistance(v, index, segments)
	}
	m.SetFloatAttribute("vein_distance", distances)
}

type segment struct{ a, b vecmath.Vec3 }

// segmentBox is the rtreego.Spatial wrapper indexing one segment's
// axis-aligned bounding box.
type segmentBox struct {
	idx                    int
	minX, minY, maxX, maxY float64
}

func (s *segmentBox) Bounds() rtreego.Rect {
	const pad = 1e-6
	rect, err := rtreego.NewRect(
		rtreego.Point{s.minX - pad, s.minY - pad},
		[]float64{(s.maxX - s.minX) + 2*pad, (s.maxY - s.minY) + 2*pad},
	)
	if err != nil {
		rect, _ = rtreego.NewRect(rtreego.Point{s.minX - pad, s.minY - pad}, []float64{2 * pad, 2 * pad})
	}
	return rect
}

func buildSegmentIndex(nodes []Node) []segment {
	segments := make([]segment, 0, len(nodes))
	for _, n := range nodes {
		if n.Parent < 0 {
			continue
		}
		segments = append(segments, segment{a: nodes[n.Parent].Position, b: n.Position})
	}
	if len(segments) == 0 && len(nodes) == 1 {
		segments = append(segments, segment{a: nodes[0].Position, b: nodes[0].Position})
	}
	return segments
}

func buildSegmentTree(segments []segment) *rtreego.Rtree {
	tree := rtreego.NewTree(2, 4, 16)
	for i, s := range segments {
		tree.Insert(&segmentBox{
			idx:  i,
			minX: math.Min(s.a.X, s.b.X), maxX: math.Max(s.a.X, s.b.X),
			minY: math.Min(s.a.Y, s.b.Y), maxY: math.Max(s.a.Y, s.b.Y),
		})
	}
	return tree
}

// nearestSegmentDistance expands radius until a disk of that radius around
// p is guaranteed to contain every segment that could still beat the best
// distance found so far. A square query rect of half-side r always fully
// contains the disk of radius r (|dx|,|dy| <= r follows trivially from
// dx^2+dy^2 <= r^2), so once best <= radius no un-queried segment can be
// closer and the search can stop.
func nearestSegmentDistance(p vecmath.Vec3, tree *rtreego.Rtree, segments []segment) float64 {
	radius := 0.05
	const maxRadius = 1e6

	for radius < maxRadius {
		queryRect, err := rtreego.NewRect(
			rtreego.Point{p.X - radius, p.Y - radius},
			[]float64{2 * radius, 2 * radius},
		)
		if err != nil {
			break
		}
		hits := tree.SearchIntersect(queryRect)
		best := math.Inf(1)
		for _, h := range hits {
			box := h.(*segmentBox)
			s := segments[box.idx]
			d := distancePointToSegment(p, s.a, s.b)
			if d < best {
				best = d
			}
		}
		if len(hits) > 0 && best <= radius {
			return best
		}
		radius *= 4
	}

	// Fallback: exhaustive scan, only reached if every segment lies
	// further than maxRadius from p.
	best := math.Inf(1)
	for _, s := range segments {
		d := distancePointToSegment(p, s.a, s.b)
		if d < best {
			best = d
		}
	}
	return best
}

func distancePointToSegment(p, a, b vecmath.Vec3) float64 {
	ab := b.Sub(a)
	lenSq := ab.LengthSq()
	if lenSq < 1e-12 {
		return p.Distance(a)
	}
	t := clamp(p.Sub(a).Dot(ab)/lenSq, 0, 1)
	proj := a.Add(ab.Scale(t))
	return p.Distance(proj)
}
