// Package pipeline is the host-plugin boundary: parameter structs per
// Tree Function, an ordered pipeline driver, and the two mesh entry
// points (skeleton meshing and leaf generation). It shares no mutable
// state with a host beyond the stems graph passed in.
package pipeline

import (
	"log/slog"

	"github.com/chazu/canopy/pkg/branch"
	"github.com/chazu/canopy/pkg/growth"
	"github.com/chazu/canopy/pkg/leaf"
	"github.com/chazu/canopy/pkg/mesh"
	"github.com/chazu/canopy/pkg/mesher"
	"github.com/chazu/canopy/pkg/treegraph"
	"github.com/chazu/canopy/pkg/trunk"
	"github.com/chazu/canopy/pkg/venation"
)

// TreeFunction is one stage of the pipeline: it mutates g in place,
// exclusively owning nodes it creates (tagged with its own CreatorID) and
// only appending children to nodes created by earlier stages.
type TreeFunction interface {
	CreatorID() int
	Apply(g *treegraph.Graph, seed int64)
}

// TrunkStage seeds a single stem.
type TrunkStage struct {
	Params trunk.Params
}

func (s TrunkStage) CreatorID() int { return trunk.CreatorID }

func (s TrunkStage) Apply(g *treegraph.Graph, seed int64) {
	slog.Debug("pipeline: trunk stage", "desired_length", s.Params.DesiredLength, "seed", seed)
	trunk.Generate(g, s.Params, seed)
}

// BranchStage extends an existing stem chain with origins and children.
type BranchStage struct {
	ID           int
	ParentID     int
	Params       branch.Params
}

func (s BranchStage) CreatorID() int { return s.ID }

func (s BranchStage) Apply(g *treegraph.Graph, seed int64) {
	slog.Debug("pipeline: branch stage", "creator_id", s.ID, "seed", seed)
	branch.Generate(g, s.Params, s.ID, s.ParentID, seed)
}

// GrowthStage runs the vigor-driven L-system over the whole graph.
type GrowthStage struct {
	ID     int
	Params growth.Params
}

func (s GrowthStage) CreatorID() int { return s.ID }

func (s GrowthStage) Apply(g *treegraph.Graph, seed int64) {
	slog.Debug("pipeline: growth stage", "creator_id", s.ID, "iterations", s.Params.Iterations, "seed", seed)
	growth.Generate(g, s.Params, s.ID, seed)
}

// ExecutePipeline runs chain in order against g, deriving each stage's
// PRNG seed deterministically from the caller's base seed and the
// stage's position so re-running the same chain and seed reproduces
// bit-identical output.
func ExecutePipeline(g *treegraph.Graph, chain []TreeFunction, seed int64) {
	for i, stage := range chain {
		stageSeed := seed + int64(i)*1_000_003
		stage.Apply(g, stageSeed)
	}
	slog.Debug("pipeline: execute_pipeline complete", "stages", len(chain), "nodes", len(g.Nodes))
}

// MeshTree meshes every stem in g into one tube mesh.
func MeshTree(g *treegraph.Graph, params mesher.Params) *mesh.Mesh {
	slog.Debug("pipeline: mesh_tree", "radial_resolution", params.RadialResolution, "stems", len(g.Stems))
	return mesher.MeshTree(g, params)
}

// LeafParams bundles the blade shape and an optional venation pass into
// one call, matching the host boundary's generate_leaf entry point.
type LeafParams struct {
	Blade           leaf.Params
	EnableVenation  bool
	Venation        venation.Params
	VenationSeed    int64
}

// GenerateLeaf builds a leaf blade and, if enabled, grows and stamps a
// vein network onto it.
func GenerateLeaf(p LeafParams) *mesh.Mesh {
	slog.Debug("pipeline: generate_leaf", "venation_enabled", p.EnableVenation)
	m := leaf.Generate(p.Blade)
	if !p.EnableVenation || m.IsEmpty() {
		return m
	}

	result := venation.Generate(m.Vertices, p.Venation, p.VenationSeed)
	venation.ComputeVeinDistances(m, result)
	return m
}
