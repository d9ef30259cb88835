package branch

import (
	"testing"

	"github.com/chazu/canopy/pkg/crownshape"
	"github.com/chazu/canopy/pkg/treegraph"
	"github.com/chazu/canopy/pkg/trunk"
)

func defaultParams() Params {
	return Params{
		Length:      Constant(9),
		StartRadius: Constant(0.4),
		EndRadius:   0.05,
		BreakChance: 0.01,
		Resolution:  3,
		Randomness:  Constant(0.4),
		Flatness:    0.5,
		StartAngle:  Constant(45),
		Split:       SplitParams{Radius: 0.9, Angle: 45, Probability: 0.5},
		Gravity:     GravityParams{Strength: 10, Stiffness: 0.1, UpAttraction: 0.25},
		Distribution: DistributionParams{
			Start: 0.1, End: 1.0, Density: 2.0, PhyllotaxisAngle: 137.5,
		},
		Crown: CrownParams{Shape: crownshape.Cylindrical, BaseSize: 0.3, Height: -1, AngleVariation: 0},
	}
}

func buildTrunk(g *treegraph.Graph) treegraph.NodeIndex {
	stem := trunk.Generate(g, trunk.Params{DesiredLength: 9, OriginRadius: 0.4}, 0)
	return stem.Root
}

func TestGenerateProducesChildrenOnTrunk(t *testing.T) {
	g := treegraph.New()
	root := buildTrunk(g)
	// Trunk alone has no children yet; give the root a 9-unit continuation
	// segment, itself continued by a short end segment, so the long segment
	// has children and is eligible for origins (childless nodes are skipped).
	tip := g.AddNode(treegraph.Node{
		Direction: g.Get(root).Direction, Length: 9, Radius: 0.4, CreatorID: 0,
		Growth: treegraph.GrowthInfo{Kind: treegraph.GrowthBranch, Branch: treegraph.BranchGrowthInfo{
			DesiredLength: 9, OriginRadius: 0.4, CurrentLength: 9,
		}},
	})
	g.AddChild(root, tip, 1)
	end := g.AddNode(treegraph.Node{Direction: g.Get(root).Direction, Length: 1, Radius: 0.4, CreatorID: 0})
	g.AddChild(tip, end, 1)

	Generate(g, defaultParams(), 1, 0, 42)

	if g.ChildCount(tip) <= 1 {
		t.Fatal("expected Branch to attach at least one origin to the trunk chain besides its continuation")
	}

	result := treegraph.Validate(g)
	if len(result.Errors) != 0 {
		t.Fatalf("expected no validation errors, got %+v", result.Errors)
	}
}

func TestGenerateIsDeterministicForFixedSeed(t *testing.T) {
	build := func() *treegraph.Graph {
		g := treegraph.New()
		root := buildTrunk(g)
		tip := g.AddNode(treegraph.Node{
			Direction: g.Get(root).Direction, Length: 9, Radius: 0.4, CreatorID: 0,
			Growth: treegraph.GrowthInfo{Kind: treegraph.GrowthBranch, Branch: treegraph.BranchGrowthInfo{
				DesiredLength: 9, OriginRadius: 0.4, CurrentLength: 9,
			}},
		})
		g.AddChild(root, tip, 1)
		Generate(g, defaultParams(), 1, 0, 7)
		return g
	}

	a, b := build(), build()
	if len(a.Nodes) != len(b.Nodes) {
		t.Fatalf("expected identical node counts for identical seed, got %d vs %d", len(a.Nodes), len(b.Nodes))
	}
	for i := range a.Nodes {
		if a.Nodes[i].Direction != b.Nodes[i].Direction {
			t.Fatalf("node %d direction diverged between identical-seed runs", i)
		}
	}
}

func TestRampAt(t *testing.T) {
	r := Ramp{At0: 0, At1: 10}
	if got := r.At(0.5); got != 5 {
		t.Fatalf("expected midpoint 5, got %f", got)
	}
}
