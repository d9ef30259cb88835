// Package mesh defines the flat geometry container every generator in this
// module (leaf shapes, skeleton meshing, collision proxies) produces and
// every consumer (a renderer, an exporter, a physics engine) reads.
package mesh

import "github.com/chazu/canopy/pkg/vecmath"

// Polygon is a face given as up to four vertex indices. Triangles repeat
// their last index (Polygon{a, b, c, c}), matching the degenerate-quad
// convention used throughout the leaf and LOD generators so a mesh never
// needs two separate face-arity representations.
type Polygon [4]int

// IsTriangle reports whether p is a degenerate quad standing in for a
// triangle (its last two indices coincide).
func (p Polygon) IsTriangle() bool { return p[2] == p[3] }

// AttributeKind distinguishes the payload type of a named per-vertex
// attribute channel.
type AttributeKind int

const (
	AttributeFloat AttributeKind = iota
	AttributeVec3
)

// Attribute is one named per-vertex data channel, e.g. the Pivot Painter
// "radius" (float) or "direction" (vec3) channels a mesher emits. Exactly
// one of Floats/Vectors is populated, selected by Kind, and its length
// always equals the owning Mesh's vertex count.
type Attribute struct {
	Kind    AttributeKind
	Floats  []float64
	Vectors []vecmath.Vec3
}

// Mesh is the shared geometry container: a vertex list, a UV list aligned
// with vertices, per-face UV loop indices (parallel to Polygons, since UV
// seams mean a vertex can carry more than one UV), and an open set of named
// per-vertex attribute channels.
type Mesh struct {
	Vertices   []vecmath.Vec3
	Polygons   []Polygon
	UVs        [][2]float64
	UVLoops    []Polygon
	Attributes map[string]Attribute
}

// New returns an empty mesh ready to be appended to.
func New() *Mesh {
	return &Mesh{Attributes: map[string]Attribute{}}
}

// VertexCount returns the number of vertices.
func (m *Mesh) VertexCount() int { return len(m.Vertices) }

// TriangleCount returns the number of triangles a triangulated export of
// this mesh would contain (quads count as two).
func (m *Mesh) TriangleCount() int {
	n := 0
	for _, p := range m.Polygons {
		if p.IsTriangle() {
			n++
		} else {
			n += 2
		}
	}
	return n
}

// IsEmpty returns true if the mesh has no geometry.
func (m *Mesh) IsEmpty() bool { return len(m.Vertices) == 0 }

// AddVertex appends v and returns its index.
func (m *Mesh) AddVertex(v vecmath.Vec3) int {
	m.Vertices = append(m.Vertices, v)
	return len(m.Vertices) - 1
}

// AddTriangle appends a triangle face as a degenerate quad.
func (m *Mesh) AddTriangle(a, b, c int) {
	m.Polygons = append(m.Polygons, Polygon{a, b, c, c})
}

// AddQuad appends a quad face.
func (m *Mesh) AddQuad(a, b, c, d int) {
	m.Polygons = append(m.Polygons, Polygon{a, b, c, d})
}

// SetFloatAttribute installs or replaces a per-vertex float attribute.
// It panics if values isn't one entry per vertex; this is an internal
// invariant violation (a mesher forgot to size the slice), not a
// degenerate-input condition, so it is not silently absorbed.
func (m *Mesh) SetFloatAttribute(name string, values []float64) {
	if len(values) != len(m.Vertices) {
		panic("mesh: float attribute length does not match vertex count")
	}
	if m.Attributes == nil {
		m.Attributes = map[string]Attribute{}
	}
	m.Attributes[name] = Attribute{Kind: AttributeFloat, Floats: values}
}

// SetVec3Attribute installs or replaces a per-vertex vector attribute.
func (m *Mesh) SetVec3Attribute(name string, values []vecmath.Vec3) {
	if len(values) != len(m.Vertices) {
		panic("mesh: vec3 attribute length does not match vertex count")
	}
	if m.Attributes == nil {
		m.Attributes = map[string]Attribute{}
	}
	m.Attributes[name] = Attribute{Kind: AttributeVec3, Vectors: values}
}

// Merge appends other's geometry onto m, offsetting all of other's indices
// (Polygons, UVLoops) by m's current vertex/UV counts. Attribute channels
// present in only one of the two meshes are dropped from the merge result,
// since a partially-populated channel would silently mislead a consumer
// keying off Kind/length; the meshers that call Merge always populate the
// same channel set on every part they build. Merging into a mesh with no
// vertices adopts a copy of other's channels.
func (m *Mesh) Merge(other *Mesh) {
	if other == nil || other.IsEmpty() {
		return
	}
	adopt := m.IsEmpty()
	vertexOffset := len(m.Vertices)
	uvOffset := len(m.UVs)

	m.Vertices = append(m.Vertices, other.Vertices...)
	m.UVs = append(m.UVs, other.UVs...)

	for _, p := range other.Polygons {
		m.Polygons = append(m.Polygons, offsetPolygon(p, vertexOffset))
	}
	for _, p := range other.UVLoops {
		m.UVLoops = append(m.UVLoops, offsetPolygon(p, uvOffset))
	}

	if adopt {
		m.Attributes = map[string]Attribute{}
		for name, attr := range other.Attributes {
			attr.Floats = append([]float64(nil), attr.Floats...)
			attr.Vectors = append([]vecmath.Vec3(nil), attr.Vectors...)
			m.Attributes[name] = attr
		}
		return
	}

	for name, attr := range m.Attributes {
		otherAttr, ok := other.Attributes[name]
		if !ok {
			delete(m.Attributes, name)
			continue
		}
		switch attr.Kind {
		case AttributeFloat:
			attr.Floats = append(attr.Floats, otherAttr.Floats...)
		case AttributeVec3:
			attr.Vectors = append(attr.Vectors, otherAttr.Vectors...)
		}
		m.Attributes[name] = attr
	}
}

func offsetPolygon(p Polygon, offset int) Polygon {
	return Polygon{p[0] + offset, p[1] + offset, p[2] + offset, p[3] + offset}
}
