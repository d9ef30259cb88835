// Package growth implements the Growth Tree Function: a multi-iteration
// L-system driven by vigor distribution, an apical-dominance competition
// between siblings, lateral dormant buds, flowering, and gravity bending.
package growth

import (
	"math"
	"math/rand"

	"github.com/chazu/canopy/pkg/treegraph"
	"github.com/chazu/canopy/pkg/vecmath"
)

// Fixed biological constants the source hard-codes rather than exposing as
// tunable parameters.
const (
	dormantBudEnergyRequest = 0.3
	dormantBudVigorFactor   = 0.3
	extensionTaper          = 0.85
	splitTaper              = 0.9
	lateralRadiusRatio      = 0.5
	gravityAngleMultiplier  = 50.0
	thresholdAdjustmentStep = 0.1
	epsilon                 = 1e-5
)

// LateralParams governs the pre-pass that plants dormant lateral buds
// before any growth iteration runs.
type LateralParams struct {
	Enable     bool
	Start      float64
	End        float64
	Density    float64
	Activation float64
	Angle      float64 // degrees
}

// Params groups every knob of one Growth Function invocation.
type Params struct {
	Iterations       int
	PreviewIteration int // < 0 or out of range means "run all"
	ApicalDominance  float64
	GrowThreshold    float64
	SplitThreshold   float64
	CutThreshold     float64
	SplitAngle       float64 // degrees
	BranchLength     float64
	Gravitropism     float64
	Randomness       float64
	GravityStrength  float64
	PhyllotaxisAngle float64 // radians
	FlowerThreshold  float64
	EnableFlowering  bool
	Lateral          LateralParams
}

// Generate runs one Growth Function invocation over every stem in g,
// mutating nodes tagged with a BioNodeInfo growth payload.
func Generate(g *treegraph.Graph, p Params, creatorID int, seed int64) {
	rng := rand.New(rand.NewSource(seed))

	for _, stem := range g.Stems {
		setupGrowthInfo(g, stem.Root, p.Lateral.Enable)
	}

	if p.Lateral.Enable {
		for _, stem := range g.Stems {
			totalLength := mainPathLength(g, stem.Root)
			distToNext := p.Lateral.Start * totalLength
			currentLength := 0.0
			philo := 0.0
			createLateralBuds(g, rng, p, creatorID, stem.Root, stem.Position, &distToNext, &currentLength, totalLength, &philo)
		}
	}

	effectiveIterations := p.Iterations
	if p.PreviewIteration >= 0 && p.PreviewIteration < p.Iterations {
		effectiveIterations = p.PreviewIteration
	}

	cutThreshold := p.CutThreshold

	for i := 0; i < effectiveIterations; i++ {
		targetLightFlux := 1 + math.Pow(float64(i), 1.5)

		for _, stem := range g.Stems {
			lightFlux := updateVigorRatio(g, p, stem.Root)

			if targetLightFlux > lightFlux {
				cutThreshold -= thresholdAdjustmentStep
			} else if targetLightFlux < lightFlux {
				cutThreshold += thresholdAdjustmentStep
			}

			updateVigor(g, p, stem.Root, targetLightFlux)
			simulateGrowth(g, rng, p, cutThreshold, creatorID, stem.Root)
			updateAbsolutePosition(g, stem.Root, stem.Position)
			computeWeight(g, stem.Root)
			applyGravityRec(g, p, stem.Root, vecmath.IdentityRotation())
		}
	}
}

func mainPathLength(g *treegraph.Graph, root treegraph.NodeIndex) float64 {
	total := 0.0
	idx := root
	for {
		n := g.Get(idx)
		total += n.Length
		if len(n.Children) == 0 {
			return total
		}
		idx = n.Children[0].Child
	}
}

// setupGrowthInfo tags every existing node with a BioNodeInfo payload:
// leaves become Meristem (or Ignored, if lateral branching would otherwise
// produce tip blow-up), everything else starts Ignored.
func setupGrowthInfo(g *treegraph.Graph, idx treegraph.NodeIndex, suppressTipGrowth bool) {
	n := g.Get(idx)
	tipType := treegraph.Meristem
	if suppressTipGrowth {
		tipType = treegraph.Ignored
	}
	nodeType := treegraph.Ignored
	if len(n.Children) == 0 {
		nodeType = tipType
	}
	n.Growth = treegraph.GrowthInfo{Kind: treegraph.GrowthBioNode, BioNode: treegraph.BioNodeInfo{Type: nodeType, VigorRatio: 1}}
	for _, link := range n.Children {
		setupGrowthInfo(g, link.Child, suppressTipGrowth)
	}
}

// createLateralBuds walks the main continuation chain from root, planting
// Dormant buds on Ignored segments between lateral.Start and lateral.End of
// the chain's total length.
func createLateralBuds(g *treegraph.Graph, rng *rand.Rand, p Params, creatorID int, idx treegraph.NodeIndex,
	pos vecmath.Vec3, distToNext, currentLength *float64, totalLength float64, philo *float64) {

	n := g.Get(idx)
	info := n.Growth.BioNode

	if info.Type == treegraph.Ignored && len(n.Children) > 0 {
		absoluteStart := p.Lateral.Start * totalLength
		absoluteEnd := p.Lateral.End * totalLength
		budSpacing := 1.0 / (p.Lateral.Density + epsilon)

		if *currentLength+n.Length >= absoluteStart && *currentLength < absoluteEnd {
			remaining := n.Length
			posInNode := 0.0

			if *currentLength < absoluteStart {
				skip := absoluteStart - *currentLength
				remaining -= skip
				posInNode = skip
				*distToNext = 0
			}

			for remaining > *distToNext && *currentLength+posInNode < absoluteEnd {
				posInNode += *distToNext
				remaining -= *distToNext

				*philo += p.PhyllotaxisAngle
				tangent := vecmath.Vec3{X: math.Cos(*philo), Y: math.Sin(*philo), Z: 0}
				_, right, up := vecmath.LookAtRotation(n.Direction)
				tangent = right.Scale(tangent.X).Add(up.Scale(tangent.Y)).Add(n.Direction.Scale(tangent.Z))
				budDirection := vecmath.Lerp(n.Direction, tangent, p.Lateral.Angle/90).Normalized()

				positionInParent := posInNode / n.Length
				childRadius := n.Radius * lateralRadiusRatio
				childLength := p.BranchLength * 0.5

				childIdx := g.AddNode(treegraph.Node{
					Direction: budDirection, Tangent: n.Tangent, Length: childLength, Radius: childRadius, CreatorID: creatorID,
					Growth: treegraph.GrowthInfo{Kind: treegraph.GrowthBioNode, BioNode: treegraph.BioNodeInfo{
						Type: treegraph.Dormant, PhyllotaxisAngle: *philo,
					}},
				})
				g.AddChild(idx, childIdx, positionInParent)

				*distToNext = budSpacing
			}
			*distToNext -= remaining
		} else if *currentLength+n.Length < absoluteStart {
			*distToNext = math.Max(0, absoluteStart-(*currentLength+n.Length))
		}
	}

	*currentLength += n.Length
	childPos := pos.Add(n.Direction.Scale(n.Length))

	if len(n.Children) > 0 {
		createLateralBuds(g, rng, p, creatorID, n.Children[0].Child, childPos, distToNext, currentLength, totalLength, philo)
	}
}

// updateVigorRatio is the post-order light-flux pass: it returns the total
// light flux captured by idx's subtree and assigns each child its share of
// the parent's vigor via VigorRatio.
func updateVigorRatio(g *treegraph.Graph, p Params, idx treegraph.NodeIndex) float64 {
	n := g.Get(idx)
	info := n.Growth.BioNode

	switch info.Type {
	case treegraph.Meristem:
		return 1
	case treegraph.Dormant:
		info.VigorRatio = dormantBudEnergyRequest
		n.Growth.BioNode = info
		return dormantBudEnergyRequest
	case treegraph.Branch, treegraph.Ignored:
		if len(n.Children) == 0 {
			info.VigorRatio = 0
			n.Growth.BioNode = info
			return 0
		}
		lightFlux := updateVigorRatio(g, p, n.Children[0].Child)
		vigorRatio := 1.0
		for i := 1; i < len(n.Children); i++ {
			childFlux := updateVigorRatio(g, p, n.Children[i].Child)
			t := p.ApicalDominance
			vigorRatio = (t * lightFlux) / (t*lightFlux + (1-t)*childFlux + epsilon)
			childNode := g.Get(n.Children[i].Child)
			childInfo := childNode.Growth.BioNode
			childInfo.VigorRatio = 1 - vigorRatio
			childNode.Growth.BioNode = childInfo
			lightFlux += childFlux
		}
		leaderNode := g.Get(n.Children[0].Child)
		leaderInfo := leaderNode.Growth.BioNode
		leaderInfo.VigorRatio = vigorRatio
		leaderNode.Growth.BioNode = leaderInfo
		return lightFlux
	default: // Cut, Flower
		info.VigorRatio = 0
		n.Growth.BioNode = info
		return 0
	}
}

// updateVigor is the pre-order distribution pass: each node's vigor is its
// parent's vigor times its own VigorRatio, except Dormant buds which
// bypass the competitive ratio entirely.
func updateVigor(g *treegraph.Graph, p Params, idx treegraph.NodeIndex, vigor float64) {
	n := g.Get(idx)
	info := n.Growth.BioNode
	info.Vigor = vigor
	n.Growth.BioNode = info

	for _, link := range n.Children {
		child := g.Get(link.Child)
		childInfo := child.Growth.BioNode
		childVigor := childInfo.VigorRatio * vigor
		if childInfo.Type == treegraph.Dormant {
			childVigor = vigor * (1.0 - p.ApicalDominance) * dormantBudVigorFactor
		}
		updateVigor(g, p, link.Child, childVigor)
	}
}

// simulateGrowth is the pre-order rule-application pass. It snapshots each
// node's child count before appending anything, so a meristem activated
// this pass never recurses into a child it just grew.
func simulateGrowth(g *treegraph.Graph, rng *rand.Rand, p Params, cutThreshold float64, creatorID int, idx treegraph.NodeIndex) {
	n := g.Get(idx)
	info := n.Growth.BioNode

	activateDormant := info.Type == treegraph.Dormant && info.Vigor > p.Lateral.Activation
	if activateDormant {
		info.Type = treegraph.Meristem
		n.Length = p.BranchLength * (info.Vigor + 0.1)
	}

	primaryGrowth := info.Type == treegraph.Meristem && (activateDormant || info.Vigor > p.GrowThreshold)
	secondaryGrowth := info.Vigor > p.GrowThreshold && info.Type != treegraph.Ignored && info.Type != treegraph.Dormant
	split := info.Type == treegraph.Meristem && info.Vigor > p.SplitThreshold
	cut := info.Type == treegraph.Meristem && info.Vigor < cutThreshold
	becomeFlower := p.EnableFlowering && info.Type == treegraph.Meristem &&
		info.Vigor < p.FlowerThreshold && info.Vigor >= cutThreshold

	childCount := len(n.Children)

	if cut {
		info.Type = treegraph.Cut
		n.Growth.BioNode = info
		return
	}
	if becomeFlower {
		info.Type = treegraph.Flower
		n.Growth.BioNode = info
		return
	}

	info.Age++
	if secondaryGrowth {
		n.Radius = (1 - math.Exp(-info.Age*0.01) + 0.01) * 0.5
	}

	nodeDirection := n.Direction
	nodeTangent := n.Tangent
	nodeRadius := n.Radius
	branchLength := p.BranchLength

	if primaryGrowth {
		childDirection := nodeDirection.Add(vecmath.Vec3{Z: p.Gravitropism}).Add(vecmath.RandomVec(rng, 0).Scale(p.Randomness)).Normalized()
		childRadius := nodeRadius * extensionTaper
		childAngle := info.PhyllotaxisAngle
		if split {
			childAngle += p.PhyllotaxisAngle
		}

		childIdx := g.AddNode(treegraph.Node{
			Direction: childDirection, Tangent: nodeTangent, Length: branchLength, Radius: childRadius, CreatorID: creatorID,
			Growth: treegraph.GrowthInfo{Kind: treegraph.GrowthBioNode, BioNode: treegraph.BioNodeInfo{
				Type: treegraph.Meristem, PhyllotaxisAngle: childAngle,
			}},
		})
		g.AddChild(idx, childIdx, 1)
		info.Type = treegraph.Branch
	}

	if split {
		info.PhyllotaxisAngle += p.PhyllotaxisAngle
		tangent := vecmath.Vec3{X: math.Cos(info.PhyllotaxisAngle), Y: math.Sin(info.PhyllotaxisAngle), Z: 0}
		_, right, up := vecmath.LookAtRotation(nodeDirection)
		tangent = right.Scale(tangent.X).Add(up.Scale(tangent.Y)).Add(nodeDirection.Scale(tangent.Z))
		childDirection := vecmath.Lerp(nodeDirection, tangent, p.SplitAngle/90).Normalized()
		childRadius := nodeRadius * splitTaper

		childIdx := g.AddNode(treegraph.Node{
			Direction: childDirection, Tangent: nodeTangent, Length: branchLength, Radius: childRadius, CreatorID: creatorID,
			Growth: treegraph.GrowthInfo{Kind: treegraph.GrowthBioNode, BioNode: treegraph.BioNodeInfo{Type: treegraph.Meristem}},
		})
		g.AddChild(idx, childIdx, 1)
		info.Type = treegraph.Branch
	}

	g.Get(idx).Growth.BioNode = info

	for i := 0; i < childCount; i++ {
		simulateGrowth(g, rng, p, cutThreshold, creatorID, n.Children[i].Child)
	}
}

// computeWeight is the post-order mass pass: segment weight approximates
// length*radius^2, and each subtree's center of mass is the weighted
// average of its own segment and every child subtree's.
func computeWeight(g *treegraph.Graph, idx treegraph.NodeIndex) {
	n := g.Get(idx)
	for _, link := range n.Children {
		computeWeight(g, link.Child)
	}

	info := n.Growth.BioNode
	segmentWeight := n.Length * n.Radius * n.Radius
	centerOfMass := info.AbsolutePosition.Add(n.Direction.Scale(n.Length / 2)).Scale(segmentWeight)
	totalWeight := segmentWeight

	for _, link := range n.Children {
		child := g.Get(link.Child)
		childInfo := child.Growth.BioNode
		centerOfMass = centerOfMass.Add(childInfo.CenterOfMass.Scale(childInfo.BranchWeight))
		totalWeight += childInfo.BranchWeight
	}
	if totalWeight > 0 {
		centerOfMass = centerOfMass.Scale(1 / totalWeight)
	}

	info.CenterOfMass = centerOfMass
	info.BranchWeight = totalWeight
	n.Growth.BioNode = info
}

func updateAbsolutePosition(g *treegraph.Graph, idx treegraph.NodeIndex, position vecmath.Vec3) {
	n := g.Get(idx)
	info := n.Growth.BioNode
	info.AbsolutePosition = position
	n.Growth.BioNode = info

	for _, link := range n.Children {
		childPosition := position.Add(n.Direction.Scale(n.Length * link.PositionInParent))
		updateAbsolutePosition(g, link.Child, childPosition)
	}
}

// applyGravityRec bends every non-Ignored node toward the direction its
// subtree's center of mass pulls it, propagating the accumulated rotation
// down to children. A node's own bend is applied before the rotation
// inherited from its ancestors.
func applyGravityRec(g *treegraph.Graph, p Params, idx treegraph.NodeIndex, current vecmath.Rotation) {
	n := g.Get(idx)
	info := n.Growth.BioNode

	if info.Type != treegraph.Ignored {
		offset := info.CenterOfMass.Sub(info.AbsolutePosition)
		offset.Z = 0
		leverArm := offset.Length()
		torque := info.BranchWeight * leverArm
		bendiness := math.Exp(-(info.Age/2 + info.Vigor))
		angle := torque * bendiness * p.GravityStrength * gravityAngleMultiplier

		tangent := n.Direction.Cross(vecmath.Vec3{Z: -1})
		rot := vecmath.AxisAngleRotation(tangent, angle)
		current = vecmath.Compose(current, rot)
		n.Direction = current.Apply(n.Direction)
	}

	for _, link := range n.Children {
		applyGravityRec(g, p, link.Child, current)
	}
}
