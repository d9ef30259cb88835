package mesh

import (
	"testing"

	"github.com/chazu/canopy/pkg/vecmath"
)

func TestNewMeshIsEmpty(t *testing.T) {
	m := New()
	if !m.IsEmpty() {
		t.Fatal("expected new mesh to be empty")
	}
	if m.VertexCount() != 0 || m.TriangleCount() != 0 {
		t.Fatal("expected zero counts on empty mesh")
	}
}

func TestAddTriangleIsDegenerateQuad(t *testing.T) {
	m := New()
	a := m.AddVertex(vecmath.Vec3{X: 0, Y: 0, Z: 0})
	b := m.AddVertex(vecmath.Vec3{X: 1, Y: 0, Z: 0})
	c := m.AddVertex(vecmath.Vec3{X: 0, Y: 1, Z: 0})
	m.AddTriangle(a, b, c)

	if len(m.Polygons) != 1 {
		t.Fatalf("expected 1 polygon, got %d", len(m.Polygons))
	}
	p := m.Polygons[0]
	if !p.IsTriangle() {
		t.Fatalf("expected degenerate-quad triangle, got %+v", p)
	}
	if m.TriangleCount() != 1 {
		t.Fatalf("expected triangle count 1, got %d", m.TriangleCount())
	}
}

func TestAddQuadCountsAsTwoTriangles(t *testing.T) {
	m := New()
	a := m.AddVertex(vecmath.Vec3{X: 0, Y: 0, Z: 0})
	b := m.AddVertex(vecmath.Vec3{X: 1, Y: 0, Z: 0})
	c := m.AddVertex(vecmath.Vec3{X: 1, Y: 1, Z: 0})
	d := m.AddVertex(vecmath.Vec3{X: 0, Y: 1, Z: 0})
	m.AddQuad(a, b, c, d)

	if m.Polygons[0].IsTriangle() {
		t.Fatal("expected a proper quad, not a degenerate triangle")
	}
	if m.TriangleCount() != 2 {
		t.Fatalf("expected triangle count 2 for one quad, got %d", m.TriangleCount())
	}
}

func TestSetFloatAttributePanicsOnLengthMismatch(t *testing.T) {
	m := New()
	m.AddVertex(vecmath.Vec3{})
	m.AddVertex(vecmath.Vec3{})

	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on attribute length mismatch")
		}
	}()
	m.SetFloatAttribute("radius", []float64{1})
}

func TestMergeOffsetsIndicesAndAttributes(t *testing.T) {
	a := New()
	v0 := a.AddVertex(vecmath.Vec3{X: 0, Y: 0, Z: 0})
	v1 := a.AddVertex(vecmath.Vec3{X: 1, Y: 0, Z: 0})
	v2 := a.AddVertex(vecmath.Vec3{X: 0, Y: 1, Z: 0})
	a.AddTriangle(v0, v1, v2)
	a.SetFloatAttribute("radius", []float64{1, 1, 1})

	b := New()
	w0 := b.AddVertex(vecmath.Vec3{X: 5, Y: 0, Z: 0})
	w1 := b.AddVertex(vecmath.Vec3{X: 6, Y: 0, Z: 0})
	w2 := b.AddVertex(vecmath.Vec3{X: 5, Y: 1, Z: 0})
	b.AddTriangle(w0, w1, w2)
	b.SetFloatAttribute("radius", []float64{2, 2, 2})

	a.Merge(b)

	if a.VertexCount() != 6 {
		t.Fatalf("expected 6 vertices after merge, got %d", a.VertexCount())
	}
	if len(a.Polygons) != 2 {
		t.Fatalf("expected 2 polygons after merge, got %d", len(a.Polygons))
	}
	second := a.Polygons[1]
	if second[0] != 3 || second[1] != 4 || second[2] != 5 {
		t.Fatalf("expected merged polygon indices offset by 3, got %+v", second)
	}
	radius := a.Attributes["radius"]
	if len(radius.Floats) != 6 || radius.Floats[3] != 2 {
		t.Fatalf("expected merged radius attribute of length 6, got %+v", radius.Floats)
	}
}

func TestMergeDropsAttributeMissingFromOther(t *testing.T) {
	a := New()
	a.AddVertex(vecmath.Vec3{})
	a.SetFloatAttribute("radius", []float64{1})

	b := New()
	b.AddVertex(vecmath.Vec3{})

	a.Merge(b)

	if _, ok := a.Attributes["radius"]; ok {
		t.Fatal("expected partially-populated attribute to be dropped on merge")
	}
}
