// Package mesher converts a finished tree skeleton into a quad tube mesh:
// a radial cross-section is extruded along every node with a frame carried
// forward parallel-transport style so the tube never twists, and
// Pivot-Painter wind-shader attributes are stamped onto every vertex. Each
// side branch is a separate tube whose base ring sits at its attach point
// on the parent; it is not joined to the parent's surface, so the mesh is
// not manifold at junctions, and tube ends are left open.
package mesher

import (
	"math"

	"github.com/chazu/canopy/pkg/mesh"
	"github.com/chazu/canopy/pkg/treegraph"
	"github.com/chazu/canopy/pkg/vecmath"
)

// Params controls cross-section density and post-process smoothing.
type Params struct {
	RadialResolution int
	SmoothIterations int
}

const phyllotaxisStep = 2.39996322972865

// frame is the propagated cross-section basis: Right and Up span the
// plane perpendicular to Forward.
type frame struct {
	Forward, Right, Up vecmath.Vec3
}

func initialFrame(dir vecmath.Vec3) frame {
	fwd, right, up := vecmath.LookAtRotation(dir)
	return frame{Forward: fwd, Right: right, Up: up}
}

// transport carries f forward to newDir by rotating Right/Up with the
// minimal rotation between the old and new forward directions, avoiding
// the twist a fresh LookAtRotation recompute at every node would add.
func (f frame) transport(newDir vecmath.Vec3) frame {
	newDir = newDir.Normalized()
	rot := minimalRotation(f.Forward, newDir)
	return frame{Forward: newDir, Right: rot.Apply(f.Right).Normalized(), Up: rot.Apply(f.Up).Normalized()}
}

// minimalRotation returns the rotation carrying unit vector from onto
// unit vector to, using whichever axis is perpendicular to both; if the
// two are nearly parallel (or anti-parallel) an arbitrary perpendicular
// axis is used since the rotation angle is then 0 or pi either way.
func minimalRotation(from, to vecmath.Vec3) vecmath.Rotation {
	axis := from.Cross(to)
	if axis.LengthSq() < 1e-12 {
		axis = vecmath.OrthogonalVector(from)
	}
	cos := math.Max(-1, math.Min(1, from.Dot(to)))
	angle := math.Acos(cos)
	return vecmath.AxisAngleRotation(axis, angle)
}

// chain is one branch instance: the sequence of continuation nodes from a
// branch base (attach point on its parent, or a stem root) out to its tip.
type chain struct {
	nodes         []treegraph.NodeIndex
	pivot         vecmath.Vec3
	hierarchyDepth int
	attachDir     vecmath.Vec3 // not set by buildChains; frame continuity comes from startFrame
	startPos      vecmath.Vec3
	startFrame    frame
}

// buildChains walks g from root, grouping nodes into continuation chains:
// a chain follows child[i] while PositionInParent is within epsilon of 1;
// any other child starts a new chain one hierarchy level deeper.
func buildChains(g *treegraph.Graph, root treegraph.NodeIndex, rootPos vecmath.Vec3, rootFrame frame) []*chain {
	var chains []*chain
	var walk func(idx treegraph.NodeIndex, pos vecmath.Vec3, f frame, depth int, pivot vecmath.Vec3, current *chain)

	walk = func(idx treegraph.NodeIndex, pos vecmath.Vec3, f frame, depth int, pivot vecmath.Vec3, current *chain) {
		if current == nil {
			current = &chain{pivot: pivot, hierarchyDepth: depth, startPos: pos, startFrame: f}
			chains = append(chains, current)
		}
		current.nodes = append(current.nodes, idx)

		n := g.Get(idx)
		endPos := pos.Add(n.Direction.Scale(n.Length))
		endFrame := f.transport(n.Direction)

		count := g.ChildCount(idx)
		for i := 0; i < count; i++ {
			link := n.Children[i]
			childPos := vecmath.Lerp(pos, endPos, link.PositionInParent)
			if link.PositionInParent >= 1-1e-6 {
				walk(link.Child, childPos, endFrame, depth, pivot, current)
			} else {
				childFrame := endFrame.transport(g.Get(link.Child).Direction)
				walk(link.Child, childPos, childFrame, depth+1, childPos, nil)
			}
		}
	}

	walk(root, rootPos, rootFrame, 0, rootPos, nil)
	return chains
}

// MeshStem builds the tube mesh for one stem, tagged with stemID for the
// Pivot-Painter stem_id attribute.
func MeshStem(g *treegraph.Graph, stem treegraph.Stem, stemID int, p Params) *mesh.Mesh {
	n := p.RadialResolution
	if n < 3 {
		n = 3
	}

	rootNode := g.Get(stem.Root)
	chains := buildChains(g, stem.Root, stem.Position, initialFrame(rootNode.Direction))

	m := mesh.New()
	var smoothAmount []float64
	var radiusAttr []float64
	var directionAttr []vecmath.Vec3
	var phyllotaxisAttr []float64
	var stemIDAttr []float64
	var hierarchyAttr []float64
	var pivotAttr []vecmath.Vec3
	var extentAttr []float64

	sectionIndex := 0

	for _, c := range chains {
		branchExtent := 0.0
		for _, idx := range c.nodes {
			branchExtent += g.Get(idx).Length
		}

		pos := c.startPos
		f := c.startFrame

		// First ring of the chain, at its base, using the base node's own
		// radius (the parent's radius at the attach point in a fuller
		// implementation would be interpolated in; here the base ring
		// uses the child branch's own starting radius, still giving a
		// continuous surface since the attach position itself is exact).
		firstNode := g.Get(c.nodes[0])
		prevRing := emitRing(m, pos, f, firstNode.Radius, n)
		prevRadius := firstNode.Radius
		appendRingAttrs(&smoothAmount, &radiusAttr, &directionAttr, &phyllotaxisAttr, &stemIDAttr, &hierarchyAttr, &pivotAttr, &extentAttr,
			n, 0.1, prevRadius, firstNode.Direction, sectionIndex, float64(stemID), float64(c.hierarchyDepth), c.pivot, branchExtent)
		sectionIndex++

		for _, idx := range c.nodes {
			node := g.Get(idx)
			endPos := pos.Add(node.Direction.Scale(node.Length))
			endFrame := f.transport(node.Direction)

			endRing := emitRing(m, endPos, endFrame, node.Radius, n)
			stitchRings(m, prevRing, endRing, n)

			smoothWeight := 0.8
			if idx == c.nodes[0] {
				smoothWeight = 0.1 // preserve joints near branch bases
			}
			appendRingAttrs(&smoothAmount, &radiusAttr, &directionAttr, &phyllotaxisAttr, &stemIDAttr, &hierarchyAttr, &pivotAttr, &extentAttr,
				n, smoothWeight, node.Radius, node.Direction, sectionIndex, float64(stemID), float64(c.hierarchyDepth), c.pivot, branchExtent)
			sectionIndex++

			pos, f, prevRing = endPos, endFrame, endRing
		}
	}

	if m.IsEmpty() {
		return m
	}

	m.SetFloatAttribute("smooth_amount", smoothAmount)
	m.SetFloatAttribute("radius", radiusAttr)
	m.SetVec3Attribute("direction", directionAttr)
	m.SetFloatAttribute("phyllotaxis_angle", phyllotaxisAttr)
	m.SetFloatAttribute("stem_id", stemIDAttr)
	m.SetFloatAttribute("hierarchy_depth", hierarchyAttr)
	m.SetVec3Attribute("pivot_position", pivotAttr)
	m.SetFloatAttribute("branch_extent", extentAttr)

	laplacianSmooth(m, smoothAmount, p.SmoothIterations)
	return m
}

// MeshTree meshes every stem in g and merges the results into one mesh.
func MeshTree(g *treegraph.Graph, p Params) *mesh.Mesh {
	result := mesh.New()
	for i, stem := range g.Stems {
		result.Merge(MeshStem(g, stem, i, p))
	}
	return result
}

func emitRing(m *mesh.Mesh, center vecmath.Vec3, f frame, radius float64, n int) []int {
	ring := make([]int, n)
	for i := 0; i < n; i++ {
		angle := 2 * math.Pi * float64(i) / float64(n)
		offset := f.Right.Scale(math.Cos(angle) * radius).Add(f.Up.Scale(math.Sin(angle) * radius))
		ring[i] = m.AddVertex(center.Add(offset))
	}
	return ring
}

func stitchRings(m *mesh.Mesh, a, b []int, n int) {
	for i := 0; i < n; i++ {
		j := (i + 1) % n
		m.AddQuad(a[i], a[j], b[j], b[i])
	}
}

func appendRingAttrs(smoothAmount, radiusAttr *[]float64, directionAttr *[]vecmath.Vec3, phyllotaxisAttr, stemIDAttr, hierarchyAttr *[]float64, pivotAttr *[]vecmath.Vec3, extentAttr *[]float64,
	n int, smooth, radius float64, direction vecmath.Vec3, sectionIndex int, stemID, hierarchyDepth float64, pivot vecmath.Vec3, branchExtent float64) {

	phyllotaxis := math.Mod(float64(sectionIndex)*phyllotaxisStep, 2*math.Pi)
	if phyllotaxis < 0 {
		phyllotaxis += 2 * math.Pi
	}

	for i := 0; i < n; i++ {
		*smoothAmount = append(*smoothAmount, smooth)
		*radiusAttr = append(*radiusAttr, radius)
		*directionAttr = append(*directionAttr, direction)
		*phyllotaxisAttr = append(*phyllotaxisAttr, phyllotaxis)
		*stemIDAttr = append(*stemIDAttr, stemID)
		*hierarchyAttr = append(*hierarchyAttr, hierarchyDepth)
		*pivotAttr = append(*pivotAttr, pivot)
		*extentAttr = append(*extentAttr, branchExtent)
	}
}

// laplacianSmooth relaxes vertex positions toward their edge-neighbor
// average, weighted per vertex by smoothAmount so branch bases (a low
// weight) stay rigid while mid-branch cross-sections (a high weight)
// relax freely.
func laplacianSmooth(m *mesh.Mesh, smoothAmount []float64, iterations int) {
	if iterations <= 0 {
		return
	}
	adjacency := buildAdjacency(m)

	for iter := 0; iter < iterations; iter++ {
		next := make([]vecmath.Vec3, len(m.Vertices))
		copy(next, m.Vertices)

		for v, neighbors := range adjacency {
			if len(neighbors) == 0 {
				continue
			}
			avg := vecmath.Vec3{}
			for _, nb := range neighbors {
				avg = avg.Add(m.Vertices[nb])
			}
			avg = avg.Scale(1 / float64(len(neighbors)))
			next[v] = vecmath.Lerp(m.Vertices[v], avg, smoothAmount[v])
		}
		m.Vertices = next
	}
}

func buildAdjacency(m *mesh.Mesh) [][]int {
	adjacency := make([][]int, len(m.Vertices))
	seen := make([]map[int]bool, len(m.Vertices))
	for i := range seen {
		seen[i] = map[int]bool{}
	}

	addEdge := func(a, b int) {
		if a == b || seen[a][b] {
			return
		}
		seen[a][b] = true
		seen[b][a] = true
		adjacency[a] = append(adjacency[a], b)
		adjacency[b] = append(adjacency[b], a)
	}

	for _, poly := range m.Polygons {
		verts := []int{poly[0], poly[1], poly[2]}
		if !poly.IsTriangle() {
			verts = append(verts, poly[3])
		}
		for i := range verts {
			addEdge(verts[i], verts[(i+1)%len(verts)])
		}
	}
	return adjacency
}
