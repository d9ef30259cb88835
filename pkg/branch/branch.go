// Package branch implements the Branch Tree Function: stochastic
// split-driven extension of a parent function's output with gravity
// bending, phyllotaxis-spaced origins and a crown-shape envelope.
package branch

import (
	"math"
	"math/rand"

	"github.com/chazu/canopy/pkg/crownshape"
	"github.com/chazu/canopy/pkg/treegraph"
	"github.com/chazu/canopy/pkg/vecmath"
	"github.com/samber/lo"
)

// Ramp is a two-point linear gradient over a branch's normalized position
// (0 at its base, 1 at its tip), used for parameters that taper along a
// branch's length rather than staying constant.
type Ramp struct{ At0, At1 float64 }

// Constant returns a Ramp with the same value at both ends.
func Constant(v float64) Ramp { return Ramp{At0: v, At1: v} }

// At linearly interpolates the ramp at position t.
func (r Ramp) At(t float64) float64 { return r.At0 + (r.At1-r.At0)*t }

// SplitParams governs the optional second child appended at each extension
// step.
type SplitParams struct {
	Radius      float64
	Angle       float64 // degrees
	Probability float64
}

// GravityParams governs the post-extension bending pass.
type GravityParams struct {
	Strength     float64
	Stiffness    float64
	UpAttraction float64
}

// DistributionParams governs where along a parent branch new origins are
// placed.
type DistributionParams struct {
	Start              float64
	End                float64
	Density            float64
	PhyllotaxisAngle   float64 // degrees
}

// CrownParams governs the height-dependent envelope applied to origins.
type CrownParams struct {
	Shape          crownshape.Shape
	BaseSize       float64
	Height         float64 // < 0 with parent creator 0 derives it from the first stem's main path length; < 0 otherwise disables the envelope
	AngleVariation float64 // degrees
}

// Params groups every knob of one Branch Function invocation.
type Params struct {
	Length      Ramp
	StartRadius Ramp
	EndRadius   float64
	BreakChance float64
	Resolution  float64
	Randomness  Ramp
	Flatness    float64
	StartAngle  Ramp

	Split        SplitParams
	Gravity      GravityParams
	Distribution DistributionParams
	Crown        CrownParams
}

const angleVariationEpsilon = 0.001

// Generate runs one Branch Function invocation: it selects origins along
// every branch produced by parentCreatorID, extends each into a queue-grown
// chain tagged creatorID, then bends the result under gravity.
func Generate(g *treegraph.Graph, p Params, creatorID, parentCreatorID int, seed int64) {
	rng := rand.New(rand.NewSource(seed))
	origins := getOrigins(g, rng, p, creatorID, parentCreatorID)
	growOrigins(g, rng, p, origins, creatorID)
}

type branchChain struct {
	nodes     []treegraph.NodeIndex
	positions []vecmath.Vec3
}

// selectBranches groups every node created by parentID into linear chains,
// following the continuation link (position_in_parent == 1) as long as it
// stays inside the same creator; other children start their own search.
func selectBranches(g *treegraph.Graph, parentID int) []branchChain {
	var chains []branchChain

	var walk func(idx treegraph.NodeIndex, start vecmath.Vec3)
	walk = func(idx treegraph.NodeIndex, start vecmath.Vec3) {
		n := g.Get(idx)
		if n.CreatorID != parentID {
			end := start.Add(n.Direction.Scale(n.Length))
			for _, link := range n.Children {
				walk(link.Child, vecmath.Lerp(start, end, link.PositionInParent))
			}
			return
		}

		chain := branchChain{}
		cur, curStart := idx, start
		for {
			chain.nodes = append(chain.nodes, cur)
			chain.positions = append(chain.positions, curStart)
			cn := g.Get(cur)
			end := curStart.Add(cn.Direction.Scale(cn.Length))

			continuation := -1
			for i, link := range cn.Children {
				if link.PositionInParent >= 1-1e-6 {
					continuation = i
					break
				}
			}

			for i, link := range cn.Children {
				if i == continuation {
					continue
				}
				walk(link.Child, vecmath.Lerp(curStart, end, link.PositionInParent))
			}

			if continuation == -1 {
				break
			}
			next := cn.Children[continuation].Child
			if g.Get(next).CreatorID != parentID {
				walk(next, end)
				break
			}
			cur, curStart = next, end
		}
		chains = append(chains, chain)
	}

	for _, stem := range g.Stems {
		walk(stem.Root, stem.Position)
	}
	return chains
}

func chainLength(g *treegraph.Graph, chain branchChain) float64 {
	total := 0.0
	for _, idx := range chain.nodes {
		total += g.Get(idx).Length
	}
	return total
}

// mainPathLength follows the continuation link from root regardless of
// creator, used only to derive a default crown height from the trunk.
func mainPathLength(g *treegraph.Graph, root treegraph.NodeIndex) float64 {
	total := 0.0
	idx := root
	for {
		n := g.Get(idx)
		total += n.Length
		next := treegraph.NoNode
		for _, link := range n.Children {
			if link.PositionInParent >= 1-1e-6 {
				next = link.Child
				break
			}
		}
		if next == treegraph.NoNode {
			return total
		}
		idx = next
	}
}

func getOrigins(g *treegraph.Graph, rng *rand.Rand, p Params, creatorID, parentID int) []treegraph.NodeIndex {
	chains := lo.Filter(selectBranches(g, parentID), func(c branchChain, _ int) bool {
		return len(c.nodes) > 0
	})
	var origins []treegraph.NodeIndex

	effectiveCrownHeight := p.Crown.Height
	if effectiveCrownHeight < 0 && parentID == 0 && len(g.Stems) > 0 {
		effectiveCrownHeight = mainPathLength(g, g.Stems[0].Root)
	}
	crownStartZ := effectiveCrownHeight * p.Crown.BaseSize
	crownZoneHeight := effectiveCrownHeight * (1.0 - p.Crown.BaseSize)

	originsDist := 1 / (p.Distribution.Density + 0.001)

	for _, chain := range chains {
		branchLen := chainLength(g, chain)
		absoluteStart := p.Distribution.Start * branchLen
		absoluteEnd := p.Distribution.End * branchLen
		currentLength := 0.0
		distToNextOrigin := absoluteStart
		tangent := vecmath.OrthogonalVector(g.Get(chain.nodes[0]).Direction)

		for nodeIdx, idx := range chain.nodes {
			hadChildrenBefore := len(g.Get(idx).Children) > 0
			if !hadChildrenBefore {
				continue
			}
			nodePosition := chain.positions[nodeIdx]
			n := g.Get(idx)
			nodeDirection := n.Direction
			nodeTangentField := n.Tangent
			nodeLength := n.Length
			nodeRadius := n.Radius

			phylloRadians := (p.Distribution.PhyllotaxisAngle + (rng.Float64()-0.5)*2) / 180 * math.Pi

			if distToNextOrigin > nodeLength {
				distToNextOrigin -= nodeLength
				currentLength += nodeLength
				continue
			}

			remainingNodeLength := nodeLength - distToNextOrigin
			currentLength += distToNextOrigin
			originsToCreate := int(remainingNodeLength/originsDist) + 1
			positionInParent := distToNextOrigin / nodeLength
			positionStep := originsDist / nodeLength

			for i := 0; i < originsToCreate; i++ {
				if currentLength > absoluteEnd {
					break
				}
				factor := (currentLength - absoluteStart) / math.Max(0.001, absoluteEnd-absoluteStart)

				tangent = vecmath.RotateAroundAxis(tangent, nodeDirection, phylloRadians)
				tangent = vecmath.ProjectOnPlane(tangent, nodeDirection).Normalized()

				childRadius := nodeRadius * p.StartRadius.At(factor)
				branchLength := p.Length.At(factor)
				effectiveStartAngle := p.StartAngle.At(factor)

				needsHeightCalc := crownZoneHeight > angleVariationEpsilon &&
					(p.Crown.Shape != crownshape.Cylindrical || math.Abs(p.Crown.AngleVariation) > angleVariationEpsilon)
				if needsHeightCalc {
					branchZ := nodePosition.Add(nodeDirection.Scale(nodeLength * positionInParent)).Z
					if branchZ >= crownStartZ {
						heightRatio := 1.0 - math.Min(1.0, (branchZ-crownStartZ)/crownZoneHeight)
						if p.Crown.Shape != crownshape.Cylindrical {
							branchLength *= crownshape.Ratio(p.Crown.Shape, heightRatio)
						}
						if math.Abs(p.Crown.AngleVariation) > angleVariationEpsilon {
							shapeRatio := crownshape.Ratio(crownshape.Conical, heightRatio)
							angleOffset := p.Crown.AngleVariation * (1.0 - 2.0*shapeRatio)
							effectiveStartAngle = math.Max(0, math.Min(180, effectiveStartAngle+angleOffset))
						}
					}
				}

				childDirection := vecmath.Lerp(nodeDirection, tangent, effectiveStartAngle/90).Normalized()
				childNodeLength := math.Min(branchLength, 1/(p.Resolution+0.001))

				childIdx := g.AddNode(treegraph.Node{
					Direction: childDirection,
					Tangent:   nodeTangentField,
					Length:    childNodeLength,
					Radius:    childRadius,
					CreatorID: creatorID,
				})
				g.AddChild(idx, childIdx, positionInParent)

				childPosition := nodePosition.Add(nodeDirection.Scale(nodeLength * positionInParent))
				g.Get(childIdx).Growth = treegraph.GrowthInfo{
					Kind: treegraph.GrowthBranch,
					Branch: treegraph.BranchGrowthInfo{
						DesiredLength: branchLength - childNodeLength,
						OriginRadius:  childRadius,
						Position:      childPosition,
						CurrentLength: childNodeLength,
					},
				}

				if branchLength-childNodeLength > 1e-3 {
					origins = append(origins, childIdx)
				}
				positionInParent += positionStep
				if i > 0 {
					currentLength += originsDist
				}
			}
			remainingNodeLength = remainingNodeLength - float64(originsToCreate-1)*originsDist
			distToNextOrigin = originsDist - remainingNodeLength
		}

		// The chain's own tip carries no side-branch origin (it has no
		// children yet, so extending it is a continuation, not a split),
		// but if the parent function left it open (desired_length not yet
		// reached, e.g. a freshly emitted Trunk root) it is itself an
		// origin: this is how Trunk's bare seed node grows into a chain.
		tipIdx := chain.nodes[len(chain.nodes)-1]
		tip := g.Get(tipIdx)
		if len(tip.Children) == 0 && tip.Growth.Kind == treegraph.GrowthBranch && !tip.Growth.Branch.Inactive {
			info := tip.Growth.Branch
			if info.DesiredLength-info.CurrentLength > 1e-3 {
				origins = append(origins, tipIdx)
			}
		}
	}
	return origins
}

func avoidFloor(position vecmath.Vec3, direction *vecmath.Vec3, parentLength float64) bool {
	if direction.Z < 0 {
		direction.Z -= direction.Z * 2 / (2 + position.Z)
	}
	next := position.Add(*direction)
	return next.Z*parentLength*4 < 0
}

func mainChildDirection(rng *rand.Rand, parentDirection, parentPosition vecmath.Vec3, upAttraction, flatness, randomness, resolution, parentLength float64) (vecmath.Vec3, bool) {
	randomDir := vecmath.RandomVec(rng, flatness).Add(vecmath.Vec3{Z: upAttraction})
	childDirection := parentDirection.Add(randomDir.Scale(randomness / resolution))
	terminate := avoidFloor(parentPosition, &childDirection, parentLength)
	return childDirection.Normalized(), terminate
}

// splitDirection mirrors get_split_direction: avoidFloor is invoked purely
// for its z-attenuation side effect here, its terminate return discarded,
// matching the source's split path.
func splitDirection(rng *rand.Rand, parentDirection, parentPosition vecmath.Vec3, upAttraction, flatness, resolution, angle, parentLength float64) vecmath.Vec3 {
	childDirection := vecmath.RandomVec(rng, 0)
	childDirection = childDirection.Cross(parentDirection).Add(vecmath.Vec3{Z: upAttraction * flatness})
	flatNormal := vecmath.Up.Cross(parentDirection).Cross(parentDirection).Normalized()
	childDirection = childDirection.Sub(flatNormal.Scale(childDirection.Dot(flatNormal) * flatness))
	_ = avoidFloor(parentPosition, &childDirection, parentLength)
	childDirection = vecmath.Lerp(parentDirection, childDirection, angle/90)
	return childDirection.Normalized()
}

func markInactive(g *treegraph.Graph, idx treegraph.NodeIndex) {
	g.Get(idx).Growth.Branch.Inactive = true
}

func propagateInactive(g *treegraph.Graph, idx treegraph.NodeIndex) bool {
	n := g.Get(idx)
	if len(n.Children) == 0 || n.Growth.Branch.Inactive {
		return n.Growth.Branch.Inactive
	}
	inactive := false
	for _, link := range n.Children {
		if propagateInactive(g, link.Child) {
			inactive = true
		}
	}
	g.Get(idx).Growth.Branch.Inactive = inactive
	return inactive
}

func updateWeight(g *treegraph.Graph, idx treegraph.NodeIndex) {
	n := g.Get(idx)
	weight := n.Length
	for _, link := range n.Children {
		updateWeight(g, link.Child)
		weight += g.Get(link.Child).Growth.Branch.CumulatedWeight
	}
	g.Get(idx).Growth.Branch.CumulatedWeight = weight
}

func applyGravityRec(g *treegraph.Graph, idx treegraph.NodeIndex, gravity GravityParams, resolution float64, current vecmath.Rotation) {
	n := g.Get(idx)
	info := n.Growth.Branch

	horizontality := 1 - math.Abs(n.Direction.Z)
	info.Age += 1 / resolution
	displacement := horizontality * math.Sqrt(math.Max(0, info.CumulatedWeight)) *
		gravity.Strength / resolution / resolution / 1000 / (1 + info.Age)
	displacement *= math.Exp(-math.Abs(info.DeviationFromRestPose / resolution * gravity.Stiffness))
	info.DeviationFromRestPose += displacement

	tangentAxis := n.Direction.Cross(vecmath.Vec3{Z: -1}).Normalized()
	rot := vecmath.AxisAngleRotation(tangentAxis, displacement)
	current = vecmath.Compose(rot, current)

	n.Growth.Branch = info
	n.Direction = current.Apply(n.Direction)

	for _, link := range n.Children {
		applyGravityRec(g, link.Child, gravity, resolution, current)
	}
}

func updatePositions(g *treegraph.Graph, idx treegraph.NodeIndex, position vecmath.Vec3) {
	n := g.Get(idx)
	n.Growth.Branch.Position = position
	end := position.Add(n.Direction.Scale(n.Length))
	for _, link := range n.Children {
		updatePositions(g, link.Child, vecmath.Lerp(position, end, link.PositionInParent))
	}
}

func applyGravityToBranch(g *treegraph.Graph, gravity GravityParams, resolution float64, origin treegraph.NodeIndex) {
	propagateInactive(g, origin)
	updateWeight(g, origin)
	applyGravityRec(g, origin, gravity, resolution, vecmath.IdentityRotation())
	updatePositions(g, origin, g.Get(origin).Growth.Branch.Position)
}

func growNodeOnce(g *treegraph.Graph, rng *rand.Rand, p Params, idx treegraph.NodeIndex, creatorID int, queue *[]treegraph.NodeIndex) {
	if rng.Float64()*p.Resolution < p.BreakChance {
		markInactive(g, idx)
		return
	}

	n := g.Get(idx)
	info := n.Growth.Branch
	nodeDirection := n.Direction
	nodeTangent := n.Tangent
	nodeRadius := n.Radius
	nodeLength := n.Length

	factorInBranch := info.CurrentLength / info.DesiredLength
	childRadius := info.OriginRadius + (info.OriginRadius*p.EndRadius-info.OriginRadius)*factorInBranch
	childLength := math.Min(1/p.Resolution, info.DesiredLength-info.CurrentLength)

	dir, terminate := mainChildDirection(rng, nodeDirection, info.Position, p.Gravity.UpAttraction, p.Flatness,
		p.Randomness.At(factorInBranch), p.Resolution, nodeLength)
	if terminate {
		markInactive(g, idx)
		return
	}

	childIdx := g.AddNode(treegraph.Node{
		Direction: dir, Tangent: nodeTangent, Length: childLength, Radius: childRadius, CreatorID: creatorID,
	})
	g.AddChild(idx, childIdx, 1)

	currentLength := info.CurrentLength + childLength
	childPosition := info.Position.Add(dir.Scale(childLength))
	g.Get(childIdx).Growth = treegraph.GrowthInfo{
		Kind: treegraph.GrowthBranch,
		Branch: treegraph.BranchGrowthInfo{
			DesiredLength: info.DesiredLength, OriginRadius: info.OriginRadius,
			Position: childPosition, CurrentLength: currentLength,
		},
	}
	if currentLength < info.DesiredLength {
		*queue = append(*queue, childIdx)
	}

	if rng.Float64()*p.Resolution < p.Split.Probability {
		splitDir := splitDirection(rng, nodeDirection, info.Position, p.Gravity.UpAttraction, p.Flatness, p.Resolution, p.Split.Angle, nodeLength)
		splitRadius := nodeRadius * p.Split.Radius

		splitIdx := g.AddNode(treegraph.Node{
			Direction: splitDir, Tangent: nodeTangent, Length: childLength, Radius: splitRadius, CreatorID: creatorID,
		})
		g.AddChild(idx, splitIdx, rng.Float64())

		splitPosition := info.Position.Add(splitDir.Scale(childLength))
		g.Get(splitIdx).Growth = treegraph.GrowthInfo{
			Kind: treegraph.GrowthBranch,
			Branch: treegraph.BranchGrowthInfo{
				DesiredLength: info.DesiredLength, OriginRadius: info.OriginRadius * p.Split.Radius,
				Position: splitPosition, CurrentLength: currentLength,
			},
		}
		if currentLength < info.DesiredLength {
			*queue = append(*queue, splitIdx)
		}
	}
}

func growOrigins(g *treegraph.Graph, rng *rand.Rand, p Params, origins []treegraph.NodeIndex, creatorID int) {
	queue := append([]treegraph.NodeIndex{}, origins...)
	batchSize := len(queue)
	for len(queue) > 0 {
		if batchSize == 0 {
			batchSize = len(queue)
			for _, o := range origins {
				applyGravityToBranch(g, p.Gravity, p.Resolution, o)
			}
		}
		next := queue[0]
		queue = queue[1:]
		growNodeOnce(g, rng, p, next, creatorID, &queue)
		batchSize--
	}
}
