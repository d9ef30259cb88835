// Package proxy builds a coarse collision solid for a finished stem: a
// cylinder per main-path segment unioned into one geometry, far cheaper
// for a physics engine to query than the full render mesh. The Kernel
// abstraction lets the backend (sdfxkernel, or a stub for testing) vary
// independently of the walk that produces the segment list.
package proxy

import (
	"math"

	"github.com/chazu/canopy/pkg/treegraph"
	"github.com/chazu/canopy/pkg/vecmath"
)

// Solid is an opaque handle to a geometry kernel solid.
type Solid interface {
	BoundingBox() (min, max [3]float64)
}

// Kernel is the abstract geometry backend a collision proxy is built
// against. Implementations (sdfxkernel) provide solid modeling behind
// this interface.
type Kernel interface {
	Cylinder(height, radius float64) Solid
	Union(a, b Solid) Solid
	Translate(s Solid, x, y, z float64) Solid
	Rotate(s Solid, x, y, z float64) Solid // Euler angles in degrees
	ToMesh(s Solid) (*Mesh, error)
}

// Mesh is a flat triangle mesh suitable for a physics engine's static
// collision shape.
type Mesh struct {
	Vertices []float32
	Normals  []float32
	Indices  []uint32
}

func (m *Mesh) VertexCount() int   { return len(m.Vertices) / 3 }
func (m *Mesh) TriangleCount() int { return len(m.Indices) / 3 }
func (m *Mesh) IsEmpty() bool      { return len(m.Vertices) == 0 }

// BuildCollisionProxy walks stem's main continuation path (skipping any
// side branches) and unions one cylinder per segment into a single
// solid, aligned and positioned to match the segment's direction and
// midpoint, then renders that solid to a mesh via k.
func BuildCollisionProxy(g *treegraph.Graph, stem treegraph.Stem, k Kernel) (*Mesh, error) {
	var solid Solid
	pos := stem.Position
	idx := stem.Root

	for {
		n := g.Get(idx)
		if n.Length > 1e-9 && n.Radius > 1e-9 {
			mid := pos.Add(n.Direction.Scale(n.Length / 2))
			rx, ry, rz := eulerFromDirection(n.Direction)

			segment := k.Cylinder(n.Length, n.Radius)
			segment = k.Rotate(segment, rx, ry, rz)
			segment = k.Translate(segment, mid.X, mid.Y, mid.Z)

			if solid == nil {
				solid = segment
			} else {
				solid = k.Union(solid, segment)
			}
		}

		end := pos.Add(n.Direction.Scale(n.Length))
		next := treegraph.NoNode
		for _, link := range n.Children {
			if link.PositionInParent >= 1-1e-6 {
				next = link.Child
				break
			}
		}
		if next == treegraph.NoNode {
			break
		}
		idx, pos = next, end
	}

	if solid == nil {
		return &Mesh{}, nil
	}
	return k.ToMesh(solid)
}

// eulerFromDirection returns the X, Y, Z Euler angles (degrees) that,
// applied in that order (X then Y then Z), rotate +Z onto d. Cylinders
// built along Z only need pitch (Y) and yaw (Z); roll around the
// cylinder's own axis is irrelevant for a radially symmetric solid.
func eulerFromDirection(d vecmath.Vec3) (rx, ry, rz float64) {
	d = d.Normalized()
	pitch := math.Acos(math.Max(-1, math.Min(1, d.Z)))
	yaw := math.Atan2(d.Y, d.X)
	return 0, pitch * 180 / math.Pi, yaw * 180 / math.Pi
}
