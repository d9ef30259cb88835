// Package sdfxkernel implements proxy.Kernel using the
// github.com/deadsy/sdfx SDF-based CAD library, rendering the unioned
// solid to a triangle mesh via marching cubes.
package sdfxkernel

import (
	"fmt"
	"math"

	"github.com/chazu/canopy/pkg/proxy"
	"github.com/deadsy/sdfx/render"
	"github.com/deadsy/sdfx/sdf"
	v3 "github.com/deadsy/sdfx/vec/v3"
)

var _ proxy.Kernel = (*Kernel)(nil)

// defaultMeshCells controls marching cubes tessellation resolution. A
// collision proxy only needs to be roughly right, so this stays coarse
// relative to a render-quality mesh.
const defaultMeshCells = 96

type solid struct{ s sdf.SDF3 }

func (s *solid) BoundingBox() (min, max [3]float64) {
	bb := s.s.BoundingBox()
	return [3]float64{bb.Min.X, bb.Min.Y, bb.Min.Z}, [3]float64{bb.Max.X, bb.Max.Y, bb.Max.Z}
}

// Kernel implements proxy.Kernel using sdfx.
type Kernel struct{}

// New returns a new Kernel.
func New() *Kernel { return &Kernel{} }

func unwrap(s proxy.Solid) sdf.SDF3 { return s.(*solid).s }
func wrap(s sdf.SDF3) proxy.Solid   { return &solid{s: s} }

// Cylinder creates a cylinder of the given height and radius, centered
// on the origin and extending along Z.
func (k *Kernel) Cylinder(height, radius float64) proxy.Solid {
	s, err := sdf.Cylinder3D(height, radius, 0)
	if err != nil {
		panic(fmt.Sprintf("sdfx.Cylinder3D: %v", err))
	}
	return wrap(s)
}

// Union returns the union of two solids.
func (k *Kernel) Union(a, b proxy.Solid) proxy.Solid {
	return wrap(sdf.Union3D(unwrap(a), unwrap(b)))
}

// Translate moves a solid by (x, y, z).
func (k *Kernel) Translate(s proxy.Solid, x, y, z float64) proxy.Solid {
	m := sdf.Translate3d(v3.Vec{X: x, Y: y, Z: z})
	return wrap(sdf.Transform3D(unwrap(s), m))
}

// Rotate rotates a solid by Euler angles (degrees), X then Y then Z.
func (k *Kernel) Rotate(s proxy.Solid, x, y, z float64) proxy.Solid {
	xRad, yRad, zRad := x*math.Pi/180, y*math.Pi/180, z*math.Pi/180
	m := sdf.RotateZ(zRad).Mul(sdf.RotateY(yRad)).Mul(sdf.RotateX(xRad))
	return wrap(sdf.Transform3D(unwrap(s), m))
}

// ToMesh converts a solid to a triangle mesh using marching cubes.
func (k *Kernel) ToMesh(s proxy.Solid) (*proxy.Mesh, error) {
	sdf3 := unwrap(s)

	renderer := render.NewMarchingCubesUniform(defaultMeshCells)
	triangles := render.ToTriangles(sdf3, renderer)

	vertices := make([]float32, 0, len(triangles)*9)
	normals := make([]float32, 0, len(triangles)*9)
	indices := make([]uint32, 0, len(triangles)*3)

	for i, tri := range triangles {
		n := tri.Normal()
		nx, ny, nz := float32(n.X), float32(n.Y), float32(n.Z)
		for j := 0; j < 3; j++ {
			v := tri[j]
			vertices = append(vertices, float32(v.X), float32(v.Y), float32(v.Z))
			normals = append(normals, nx, ny, nz)
			indices = append(indices, uint32(i*3+j))
		}
	}

	return &proxy.Mesh{Vertices: vertices, Normals: normals, Indices: indices}, nil
}
