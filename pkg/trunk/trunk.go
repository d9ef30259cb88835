// Package trunk implements the Trunk Tree Function: it emits the initial
// Stem list a Branch or Growth Function chain then extends.
package trunk

import (
	"github.com/chazu/canopy/pkg/treegraph"
	"github.com/chazu/canopy/pkg/vecmath"
)

// CreatorID tags every node this function produces.
const CreatorID = 0

// Params configures a single trunk.
type Params struct {
	DesiredLength float64
	OriginRadius  float64
}

// Generate emits one Stem at world origin pointing along +Z, seeded with a
// BranchGrowthInfo the Branch Function reads to know how far to extend it.
// Trunk has no stochastic behavior of its own; a seed argument is accepted
// only so the pipeline driver can treat every Tree Function uniformly.
func Generate(g *treegraph.Graph, p Params, seed int64) treegraph.Stem {
	_ = seed
	root := treegraph.Node{
		Direction: vecmath.Up,
		Tangent:   vecmath.OrthogonalVector(vecmath.Up),
		Length:    0,
		Radius:    p.OriginRadius,
		CreatorID: CreatorID,
		Growth: treegraph.GrowthInfo{
			Kind: treegraph.GrowthBranch,
			Branch: treegraph.BranchGrowthInfo{
				DesiredLength: p.DesiredLength,
				OriginRadius:  p.OriginRadius,
			},
		},
	}
	stem, _ := g.AddStem(vecmath.Vec3{}, root)
	return stem
}
