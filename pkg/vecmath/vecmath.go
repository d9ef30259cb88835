// Package vecmath provides the 3D vector and rotation primitives shared by
// every stage of the tree generation pipeline: trunk, branch and growth
// direction bookkeeping, leaf contour sampling, and skeleton meshing frames.
package vecmath

import (
	"math"
	"math/rand"

	"goki.dev/mat32/v2"
)

// Vec3 is a plain 3D vector, matching the field layout the rest of the
// corpus uses for world-space points and directions.
type Vec3 struct {
	X, Y, Z float64
}

// Zero is the additive identity.
var Zero = Vec3{}

// Up is the world up direction used by gravitropism and crown-envelope math.
var Up = Vec3{X: 0, Y: 0, Z: 1}

func (a Vec3) Add(b Vec3) Vec3 { return Vec3{a.X + b.X, a.Y + b.Y, a.Z + b.Z} }
func (a Vec3) Sub(b Vec3) Vec3 { return Vec3{a.X - b.X, a.Y - b.Y, a.Z - b.Z} }
func (a Vec3) Scale(s float64) Vec3 { return Vec3{a.X * s, a.Y * s, a.Z * s} }

func (a Vec3) Dot(b Vec3) float64 { return a.X*b.X + a.Y*b.Y + a.Z*b.Z }

func (a Vec3) Cross(b Vec3) Vec3 {
	return Vec3{
		X: a.Y*b.Z - a.Z*b.Y,
		Y: a.Z*b.X - a.X*b.Z,
		Z: a.X*b.Y - a.Y*b.X,
	}
}

func (a Vec3) LengthSq() float64 { return a.Dot(a) }

func (a Vec3) Length() float64 { return math.Sqrt(a.LengthSq()) }

// Normalized returns a unit vector in the direction of a, or Up if a is
// degenerate (near-zero length). Callers that need to detect degeneracy
// explicitly should check Length() themselves; this method exists so
// direction bookkeeping never has to special-case a zero vector.
func (a Vec3) Normalized() Vec3 {
	l := a.Length()
	if l < 1e-9 {
		return Up
	}
	return a.Scale(1 / l)
}

func (a Vec3) Distance(b Vec3) float64 { return a.Sub(b).Length() }

// Lerp linearly interpolates between a and b.
func Lerp(a, b Vec3, t float64) Vec3 {
	return Vec3{
		X: a.X + (b.X-a.X)*t,
		Y: a.Y + (b.Y-a.Y)*t,
		Z: a.Z + (b.Z-a.Z)*t,
	}
}

// Slerp spherically interpolates between two unit directions using a
// quaternion built from the shorter arc between them.
func Slerp(from, to Vec3, t float64) Vec3 {
	q := RotationBetween(from.Normalized(), to.Normalized())
	identity := mat32.Quat{X: 0, Y: 0, Z: 0, W: 1}
	identity.Slerp(q, float32(t))
	return rotate(identity, from.Normalized()).Scale(from.Length())
}

// RandomVec returns a random unit vector biased toward the XY plane as
// flatness approaches 1 (0 = fully spherical, 1 = confined to the XY plane).
// Mirrors the flatness-weighted random direction sampling used to scatter
// branch split directions and phyllotaxis jitter.
func RandomVec(rng *rand.Rand, flatness float64) Vec3 {
	theta := rng.Float64() * 2 * math.Pi
	z := (rng.Float64()*2 - 1) * (1 - flatness)
	r := math.Sqrt(math.Max(0, 1-z*z))
	return Vec3{X: r * math.Cos(theta), Y: r * math.Sin(theta), Z: z}.Normalized()
}

// OrthogonalVector returns an arbitrary unit vector perpendicular to v.
func OrthogonalVector(v Vec3) Vec3 {
	v = v.Normalized()
	ref := Vec3{X: 0, Y: 0, Z: 1}
	if math.Abs(v.Dot(ref)) > 0.99 {
		ref = Vec3{X: 1, Y: 0, Z: 0}
	}
	return v.Cross(ref).Normalized()
}

// ProjectOnPlane projects v onto the plane whose normal is n (n must be
// a unit vector).
func ProjectOnPlane(v, n Vec3) Vec3 {
	return v.Sub(n.Scale(v.Dot(n)))
}

// toMat32 converts to the mat32 vector type at the boundary of the
// functions in this package that build mat32 quaternions (RotationBetween,
// RotateAroundAxis, AxisAngleRotation).
func toMat32(v Vec3) mat32.Vec3 {
	return mat32.Vec3{X: float32(v.X), Y: float32(v.Y), Z: float32(v.Z)}
}

// RotationBetween returns the quaternion rotating unit vector from onto
// unit vector to.
func RotationBetween(from, to Vec3) mat32.Quat {
	var q mat32.Quat
	q.SetFromUnitVectors(toMat32(from), toMat32(to))
	return q
}

// rotate applies quaternion q to vector v using the standard
// q * (0,v) * q^-1 sandwich, expanded into the closed-form
// v' = v + 2w(qv x v) + 2(qv x (qv x v)) so no quaternion-quaternion
// multiplication of a pure vector is needed.
func rotate(q mat32.Quat, v Vec3) Vec3 {
	qv := Vec3{X: float64(q.X), Y: float64(q.Y), Z: float64(q.Z)}
	w := float64(q.W)
	t := qv.Cross(v).Scale(2)
	return v.Add(t.Scale(w)).Add(qv.Cross(t))
}

// LookAtRotation returns an orthonormal frame for dir: forward is dir
// itself, right is +X carried by the rotation that takes +Z onto dir, and
// up is right x forward. It mirrors the "align local frame to growth
// direction" step used by both branch extension and skeleton meshing.
func LookAtRotation(dir Vec3) (forward, right, up Vec3) {
	dir = dir.Normalized()
	q := RotationBetween(Vec3{X: 0, Y: 0, Z: 1}, dir)
	forward = dir
	right = rotate(q, Vec3{X: 1, Y: 0, Z: 0}).Normalized()
	up = right.Cross(forward).Normalized()
	return
}

// RotateAroundAxis rotates v around the unit axis by angle radians.
func RotateAroundAxis(v, axis Vec3, angle float64) Vec3 {
	var q mat32.Quat
	q.SetFromAxisAngle(toMat32(axis.Normalized()), float32(angle))
	return rotate(q, v)
}

// Rotation is an accumulated rotation, used where several incremental
// rotations must compose before being applied to a direction — gravity
// bending propagated down a branch chain, where each node's own bend must
// stack on top of every ancestor's.
type Rotation struct{ q mat32.Quat }

// IdentityRotation returns a no-op rotation.
func IdentityRotation() Rotation {
	return Rotation{q: mat32.Quat{W: 1}}
}

// AxisAngleRotation returns the rotation of angle radians around axis.
func AxisAngleRotation(axis Vec3, angle float64) Rotation {
	var q mat32.Quat
	q.SetFromAxisAngle(toMat32(axis.Normalized()), float32(angle))
	return Rotation{q: q}
}

// Compose returns the rotation that applies inner first, then outer.
func Compose(outer, inner Rotation) Rotation {
	return Rotation{q: outer.q.Mul(inner.q)}
}

// Apply rotates v by r.
func (r Rotation) Apply(v Vec3) Vec3 {
	return rotate(r.q, v)
}
