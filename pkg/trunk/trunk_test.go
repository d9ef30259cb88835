package trunk

import (
	"testing"

	"github.com/chazu/canopy/pkg/treegraph"
	"github.com/chazu/canopy/pkg/vecmath"
)

func TestGenerateSeedsBranchGrowthInfo(t *testing.T) {
	g := treegraph.New()
	stem := Generate(g, Params{DesiredLength: 9, OriginRadius: 0.4}, 0)

	root := g.Get(stem.Root)
	if root.Growth.Kind != treegraph.GrowthBranch {
		t.Fatalf("expected GrowthBranch payload, got kind %v", root.Growth.Kind)
	}
	if root.Growth.Branch.DesiredLength != 9 {
		t.Fatalf("expected desired length 9, got %f", root.Growth.Branch.DesiredLength)
	}
	if root.Radius != 0.4 {
		t.Fatalf("expected radius 0.4, got %f", root.Radius)
	}
}

func TestGenerateRootPointsUp(t *testing.T) {
	g := treegraph.New()
	stem := Generate(g, Params{DesiredLength: 1, OriginRadius: 0.1}, 42)
	root := g.Get(stem.Root)
	if !vecEqual(root.Direction, vecmath.Up) {
		t.Fatalf("expected trunk direction Up, got %+v", root.Direction)
	}
}

func vecEqual(a, b vecmath.Vec3) bool {
	return a.X == b.X && a.Y == b.Y && a.Z == b.Z
}
