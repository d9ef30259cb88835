package venation

import (
	"testing"

	"github.com/chazu/canopy/pkg/mesh"
	"github.com/chazu/canopy/pkg/vecmath"
)

func diamondContour() []vecmath.Vec3 {
	return []vecmath.Vec3{
		{X: 0, Y: -1}, {X: 1, Y: 0}, {X: 0, Y: 1}, {X: -1, Y: 0},
	}
}

func TestSpatialHashQueryRadiusReturnsOnlyPointsWithin(t *testing.T) {
	h := NewSpatialHash2D(1)
	h.Insert(0, vecmath.Vec3{X: 0, Y: 0})
	h.Insert(1, vecmath.Vec3{X: 0.5, Y: 0})
	h.Insert(2, vecmath.Vec3{X: 5, Y: 5})

	got := h.QueryRadius(vecmath.Vec3{X: 0, Y: 0}, 1)
	if len(got) != 2 {
		t.Fatalf("expected 2 points within radius 1, got %d", len(got))
	}
	for _, id := range got {
		if id == 2 {
			t.Fatal("far point should not be returned")
		}
	}
}

func TestPointInPolygonDiamond(t *testing.T) {
	c := diamondContour()
	if !pointInPolygon(vecmath.Vec3{X: 0, Y: 0}, c) {
		t.Fatal("expected origin inside diamond")
	}
	if pointInPolygon(vecmath.Vec3{X: 2, Y: 2}, c) {
		t.Fatal("expected far point outside diamond")
	}
}

func TestGenerateProducesForestWithParentBeforeChild(t *testing.T) {
	p := Params{Mode: Open, VeinDensity: 200, AttractionDistance: 0.3, KillDistance: 0.15, GrowthStepSize: 0.1, MaxIterations: 50}
	result := Generate(diamondContour(), p, 1)

	if len(result.Nodes) < 2 {
		t.Fatalf("expected vein growth to produce more than the root, got %d nodes", len(result.Nodes))
	}
	for i, n := range result.Nodes {
		if i == 0 {
			if n.Parent != -1 {
				t.Fatalf("expected root to have no parent, got %d", n.Parent)
			}
			continue
		}
		if n.Parent >= i {
			t.Fatalf("expected parent[%d]=%d < %d", i, n.Parent, i)
		}
	}
}

func TestGenerateTerminatesFollowingParentLinks(t *testing.T) {
	p := Params{Mode: Open, VeinDensity: 200, AttractionDistance: 0.3, KillDistance: 0.15, GrowthStepSize: 0.1, MaxIterations: 50}
	result := Generate(diamondContour(), p, 2)

	for i := range result.Nodes {
		steps := 0
		for cur := i; cur != -1; cur = result.Nodes[cur].Parent {
			steps++
			if steps > len(result.Nodes)+1 {
				t.Fatalf("parent chain from node %d did not terminate", i)
			}
		}
	}
}

func TestGenerateZeroDensityIsEmpty(t *testing.T) {
	p := Params{Mode: Open, VeinDensity: 0, AttractionDistance: 0.3, KillDistance: 0.15, GrowthStepSize: 0.1}
	result := Generate(diamondContour(), p, 3)
	if len(result.Nodes) != 0 {
		t.Fatalf("expected zero density to yield an empty vein forest, got %d nodes", len(result.Nodes))
	}
}

func TestGenerateTinyContourIsEmpty(t *testing.T) {
	p := Params{Mode: Open, VeinDensity: 500, AttractionDistance: 0.3, KillDistance: 0.15, GrowthStepSize: 0.1}
	result := Generate([]vecmath.Vec3{{X: 0, Y: 0}, {X: 1, Y: 0}}, p, 4)
	if len(result.Nodes) != 0 {
		t.Fatal("expected a contour with fewer than 3 points to yield no veins")
	}
}

func TestComputeVeinDistancesSkippedWhenEmpty(t *testing.T) {
	m := mesh.New()
	m.AddVertex(vecmath.Vec3{})
	ComputeVeinDistances(m, Result{})
	if _, ok := m.Attributes["vein_distance"]; ok {
		t.Fatal("expected no vein_distance attribute for an empty vein forest")
	}
}

func TestComputeVeinDistancesAllNonNegative(t *testing.T) {
	p := Params{Mode: Open, VeinDensity: 300, AttractionDistance: 0.3, KillDistance: 0.15, GrowthStepSize: 0.1, MaxIterations: 50}
	result := Generate(diamondContour(), p, 5)

	m := mesh.New()
	for _, v := range diamondContour() {
		m.AddVertex(v)
	}
	ComputeVeinDistances(m, result)

	attr, ok := m.Attributes["vein_distance"]
	if !ok {
		t.Fatal("expected vein_distance attribute to be set")
	}
	for _, d := range attr.Floats {
		if d < 0 {
			t.Fatalf("expected non-negative vein distance, got %f", d)
		}
	}
}

func TestComputePipeWidthsTipsAreUnitBeforeSquareRoot(t *testing.T) {
	nodes := []Node{
		{Position: vecmath.Vec3{}, Parent: -1},
		{Position: vecmath.Vec3{X: 1}, Parent: 0},
		{Position: vecmath.Vec3{X: 2}, Parent: 1},
	}
	computePipeWidths(nodes)
	if nodes[2].Width != 1 {
		t.Fatalf("expected leaf tip width sqrt(max(1,1))=1, got %f", nodes[2].Width)
	}
	if nodes[0].Width < nodes[2].Width {
		t.Fatalf("expected root width to be at least tip width, got root=%f tip=%f", nodes[0].Width, nodes[2].Width)
	}
}
