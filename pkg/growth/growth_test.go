package growth

import (
	"math/rand"
	"testing"

	"github.com/chazu/canopy/pkg/treegraph"
	"github.com/chazu/canopy/pkg/vecmath"
)

func defaultParams() Params {
	return Params{
		Iterations:       4,
		PreviewIteration: -1,
		ApicalDominance:  0.7,
		GrowThreshold:    0.5,
		SplitThreshold:   0.7,
		CutThreshold:     0.2,
		SplitAngle:       60,
		BranchLength:     1,
		Gravitropism:     0.1,
		Randomness:       0.1,
		GravityStrength:  1,
		PhyllotaxisAngle: 2.399,
		FlowerThreshold:  0.5,
		EnableFlowering:  true,
		Lateral: LateralParams{
			Enable: true, Start: 0.1, End: 0.9, Density: 2.0, Activation: 0.4, Angle: 45,
		},
	}
}

func newSingleNodeGraph() (*treegraph.Graph, treegraph.NodeIndex) {
	g := treegraph.New()
	stem, root := g.AddStem(vecmath.Vec3{}, treegraph.Node{
		Direction: vecmath.Up, Tangent: vecmath.OrthogonalVector(vecmath.Up), Length: 1, Radius: 0.1,
	})
	_ = stem
	return g, root
}

func TestSetupGrowthInfoTagsLeafAsMeristem(t *testing.T) {
	g, root := newSingleNodeGraph()
	setupGrowthInfo(g, root, false)

	n := g.Get(root)
	if n.Growth.Kind != treegraph.GrowthBioNode {
		t.Fatalf("expected GrowthBioNode kind, got %v", n.Growth.Kind)
	}
	if n.Growth.BioNode.Type != treegraph.Meristem {
		t.Fatalf("expected leaf node tagged Meristem, got %v", n.Growth.BioNode.Type)
	}
}

func TestSetupGrowthInfoSuppressesTipWhenLateralEnabled(t *testing.T) {
	g, root := newSingleNodeGraph()
	setupGrowthInfo(g, root, true)

	if g.Get(root).Growth.BioNode.Type != treegraph.Ignored {
		t.Fatalf("expected suppressed tip to be Ignored, got %v", g.Get(root).Growth.BioNode.Type)
	}
}

func TestUpdateVigorRatioMeristemReturnsOne(t *testing.T) {
	g, root := newSingleNodeGraph()
	setupGrowthInfo(g, root, false)

	flux := updateVigorRatio(g, defaultParams(), root)
	if flux != 1 {
		t.Fatalf("expected a bare meristem to report light flux 1, got %f", flux)
	}
}

func TestUpdateVigorRatioLeaderFavoredOverFollower(t *testing.T) {
	g, root := newSingleNodeGraph()
	n := g.Get(root)
	n.Growth = treegraph.GrowthInfo{Kind: treegraph.GrowthBioNode, BioNode: treegraph.BioNodeInfo{Type: treegraph.Branch}}

	leader := g.AddNode(treegraph.Node{Direction: vecmath.Up, Length: 1, Radius: 0.1,
		Growth: treegraph.GrowthInfo{Kind: treegraph.GrowthBioNode, BioNode: treegraph.BioNodeInfo{Type: treegraph.Meristem}}})
	follower := g.AddNode(treegraph.Node{Direction: vecmath.Up, Length: 1, Radius: 0.1,
		Growth: treegraph.GrowthInfo{Kind: treegraph.GrowthBioNode, BioNode: treegraph.BioNodeInfo{Type: treegraph.Meristem}}})
	g.AddChild(root, leader, 1)
	g.AddChild(root, follower, 0.5)

	updateVigorRatio(g, defaultParams(), root)

	leaderRatio := g.Get(leader).Growth.BioNode.VigorRatio
	followerRatio := g.Get(follower).Growth.BioNode.VigorRatio
	if leaderRatio <= followerRatio {
		t.Fatalf("expected leader (first child) to receive a larger vigor ratio than follower, got leader=%f follower=%f", leaderRatio, followerRatio)
	}
}

func TestDormantBudActivatesAboveThreshold(t *testing.T) {
	g, root := newSingleNodeGraph()
	n := g.Get(root)
	n.Growth = treegraph.GrowthInfo{Kind: treegraph.GrowthBioNode, BioNode: treegraph.BioNodeInfo{
		Type: treegraph.Dormant, Vigor: 0.9,
	}}

	p := defaultParams()
	simulateGrowth(g, rand.New(rand.NewSource(1)), p, p.CutThreshold, 1, root)

	if g.Get(root).Growth.BioNode.Type != treegraph.Meristem {
		t.Fatalf("expected dormant bud with vigor above activation to become Meristem, got %v", g.Get(root).Growth.BioNode.Type)
	}
}

func TestDormantBudStaysDormantBelowThreshold(t *testing.T) {
	g, root := newSingleNodeGraph()
	n := g.Get(root)
	n.Growth = treegraph.GrowthInfo{Kind: treegraph.GrowthBioNode, BioNode: treegraph.BioNodeInfo{
		Type: treegraph.Dormant, Vigor: 0.1,
	}}

	p := defaultParams()
	simulateGrowth(g, rand.New(rand.NewSource(1)), p, p.CutThreshold, 1, root)

	if g.Get(root).Growth.BioNode.Type != treegraph.Dormant {
		t.Fatalf("expected low-vigor dormant bud to remain Dormant, got %v", g.Get(root).Growth.BioNode.Type)
	}
}

func TestMeristemBelowCutThresholdIsCut(t *testing.T) {
	g, root := newSingleNodeGraph()
	n := g.Get(root)
	n.Growth = treegraph.GrowthInfo{Kind: treegraph.GrowthBioNode, BioNode: treegraph.BioNodeInfo{
		Type: treegraph.Meristem, Vigor: 0.05,
	}}

	simulateGrowth(g, rand.New(rand.NewSource(1)), defaultParams(), 0.2, 1, root)

	if g.Get(root).Growth.BioNode.Type != treegraph.Cut {
		t.Fatalf("expected low-vigor meristem to be Cut, got %v", g.Get(root).Growth.BioNode.Type)
	}
	if len(g.Get(root).Children) != 0 {
		t.Fatalf("expected a cut node to grow no children")
	}
}

func TestMeristemAboveGrowThresholdExtends(t *testing.T) {
	g, root := newSingleNodeGraph()
	n := g.Get(root)
	n.Growth = treegraph.GrowthInfo{Kind: treegraph.GrowthBioNode, BioNode: treegraph.BioNodeInfo{
		Type: treegraph.Meristem, Vigor: 0.6,
	}}

	p := defaultParams()
	simulateGrowth(g, rand.New(rand.NewSource(1)), p, p.CutThreshold, 1, root)

	if len(g.Get(root).Children) != 1 {
		t.Fatalf("expected exactly one continuation child, got %d", len(g.Get(root).Children))
	}
	if g.Get(root).Growth.BioNode.Type != treegraph.Branch {
		t.Fatalf("expected extended node to become Branch, got %v", g.Get(root).Growth.BioNode.Type)
	}
}

func TestMeristemAboveSplitThresholdProducesTwoChildren(t *testing.T) {
	g, root := newSingleNodeGraph()
	n := g.Get(root)
	n.Growth = treegraph.GrowthInfo{Kind: treegraph.GrowthBioNode, BioNode: treegraph.BioNodeInfo{
		Type: treegraph.Meristem, Vigor: 0.95,
	}}

	p := defaultParams()
	simulateGrowth(g, rand.New(rand.NewSource(1)), p, p.CutThreshold, 1, root)

	if len(g.Get(root).Children) != 2 {
		t.Fatalf("expected primary growth plus split child, got %d children", len(g.Get(root).Children))
	}
}

func TestComputeWeightAggregatesChildren(t *testing.T) {
	g, root := newSingleNodeGraph()
	child := g.AddNode(treegraph.Node{Direction: vecmath.Up, Length: 1, Radius: 0.1})
	g.AddChild(root, child, 1)

	updateAbsolutePosition(g, root, vecmath.Vec3{})
	computeWeight(g, root)

	rootInfo := g.Get(root).Growth.BioNode
	if rootInfo.BranchWeight <= 0 {
		t.Fatalf("expected positive aggregated branch weight, got %f", rootInfo.BranchWeight)
	}
}

func TestGenerateProducesGrowthOnMeristemStem(t *testing.T) {
	g, root := newSingleNodeGraph()
	n := g.Get(root)
	n.Growth = treegraph.GrowthInfo{Kind: treegraph.GrowthBioNode, BioNode: treegraph.BioNodeInfo{Type: treegraph.Meristem}}

	p := defaultParams()
	p.Lateral.Enable = false
	Generate(g, p, 1, 42)

	if len(g.Nodes) <= 1 {
		t.Fatalf("expected growth to add nodes beyond the initial stem, got %d nodes", len(g.Nodes))
	}
}
