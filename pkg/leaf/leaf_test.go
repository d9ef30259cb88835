package leaf

import (
	"math"
	"testing"

	"github.com/chazu/canopy/pkg/vecmath"
)

func oakParams() Params {
	p, _ := ByName("Oak")
	return p.Params
}

func TestGenerateProducesValidMesh(t *testing.T) {
	m := Generate(oakParams())

	if m.VertexCount() < 4 {
		t.Fatalf("expected at least 4 vertices, got %d", m.VertexCount())
	}
	if len(m.Polygons) < 1 {
		t.Fatal("expected at least one polygon")
	}
	for _, poly := range m.Polygons {
		for _, idx := range poly {
			if idx < 0 || idx >= m.VertexCount() {
				t.Fatalf("polygon index %d out of range for %d vertices", idx, m.VertexCount())
			}
		}
		if poly.IsTriangle() {
			if poly[0] == poly[1] || poly[1] == poly[2] || poly[0] == poly[2] {
				t.Fatalf("degenerate triangle with repeated vertex: %v", poly)
			}
		}
	}
	if len(m.UVs) != m.VertexCount() {
		t.Fatalf("expected UV count to match vertex count, got %d vs %d", len(m.UVs), m.VertexCount())
	}
	for _, uv := range m.UVs {
		if uv[0] < 0 || uv[0] > 1 || uv[1] < 0 || uv[1] > 1 {
			t.Fatalf("UV out of [0,1]^2: %v", uv)
		}
	}
}

func TestGenerateWithZeroDeformationHasFlatZ(t *testing.T) {
	p := oakParams()
	p.MidribCurvature, p.CrossCurvature, p.EdgeCurl = 0, 0, 0
	m := Generate(p)

	for _, v := range m.Vertices {
		if math.Abs(v.Z) > 1e-6 {
			t.Fatalf("expected flat blade, got z=%f", v.Z)
		}
	}
}

func TestGenerateWithDeformationBendsZ(t *testing.T) {
	p := oakParams()
	p.MidribCurvature = 0.5
	m := Generate(p)

	nonZero := false
	for _, v := range m.Vertices {
		if math.Abs(v.Z) > 1e-6 {
			nonZero = true
			break
		}
	}
	if !nonZero {
		t.Fatal("expected midrib curvature to produce non-zero z displacement")
	}
}

func TestGenerateClampsDegenerateN1(t *testing.T) {
	p := oakParams()
	p.N1 = 0
	m := Generate(p)
	if m.IsEmpty() {
		t.Fatal("expected n1=0 to still clamp and produce a valid mesh")
	}
}

func TestSuperformulaRadiusHandlesZeroN1(t *testing.T) {
	p := oakParams()
	p.N1 = 0
	r := superformulaRadius(p, 0.3)
	if math.IsNaN(r) || math.IsInf(r, 0) {
		t.Fatalf("expected finite radius for clamped n1, got %f", r)
	}
}

func TestTriangulateSquareProducesTwoTriangles(t *testing.T) {
	square := []vecmath.Vec3{
		{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 1, Y: 1}, {X: 0, Y: 1},
	}
	vertices, polys := triangulate(square)
	if len(vertices) != 4 {
		t.Fatalf("expected no extra vertices for a clean quad, got %d", len(vertices))
	}
	if len(polys) != 2 {
		t.Fatalf("expected 2 triangles from a quad, got %d", len(polys))
	}
}

func TestByNameFindsAllPresets(t *testing.T) {
	for _, name := range []string{"Oak", "Maple", "Birch", "Willow", "Pine"} {
		if _, ok := ByName(name); !ok {
			t.Fatalf("expected preset %q to exist", name)
		}
	}
}

func TestPineHasVenationDisabled(t *testing.T) {
	p, _ := ByName("Pine")
	if p.Venation.Enabled {
		t.Fatal("expected Pine preset to have venation disabled")
	}
}
