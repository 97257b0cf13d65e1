package mathx

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

func EqualWithEpsilon(a float64, b float64, epsilon float64) bool {
	return math.Abs(a-b) <= epsilon
}

// Norm maps val from the [min, max] range into [0, 1]. The result is
// undefined (NaN or infinite) when max equals min.
func Norm(val, max, min float64) float64 {
	return (val - min) / (max - min)
}

// IsFinite reports whether none of the given values is NaN or infinite.
func IsFinite(values ...float64) bool {
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// ProjectOntoSphere moves v along the direction from center so that it lies
// at distance r from center. A point equal to center is returned unchanged.
func ProjectOntoSphere(v mgl64.Vec3, r float64, center mgl64.Vec3) mgl64.Vec3 {
	dir := v.Sub(center)
	length := dir.Len()
	if length == 0 {
		return v
	}
	return center.Add(dir.Mul(r / length))
}

// Euler is a rotation in radians applied in X, then Y, then Z intrinsic
// order, which is the matrix Rx * Ry * Rz.
type Euler struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
	Z float64 `json:"z" yaml:"z"`
}

func (e Euler) Mat4() mgl64.Mat4 {
	return mgl64.HomogRotate3DX(e.X).
		Mul4(mgl64.HomogRotate3DY(e.Y)).
		Mul4(mgl64.HomogRotate3DZ(e.Z))
}

func (e Euler) Rotate(v mgl64.Vec3) mgl64.Vec3 {
	return mgl64.TransformNormal(v, e.Mat4())
}

// Compose returns the rigid transform translate(position) * rotate(e).
func Compose(position mgl64.Vec3, e Euler) mgl64.Mat4 {
	return mgl64.Translate3D(position.X(), position.Y(), position.Z()).Mul4(e.Mat4())
}

// WorldToLocal transforms a world point into the local space of a node with
// the given world matrix.
func WorldToLocal(world mgl64.Mat4, p mgl64.Vec3) mgl64.Vec3 {
	return mgl64.TransformCoordinate(p, world.Inv())
}

// Origin returns the translation part of a world matrix.
func Origin(world mgl64.Mat4) mgl64.Vec3 {
	return world.Col(3).Vec3()
}

// Vec3EqualWithEpsilon reports whether every component of a and b differs by
// at most epsilon.
func Vec3EqualWithEpsilon(a, b mgl64.Vec3, epsilon float64) bool {
	for i := range a {
		if !EqualWithEpsilon(a[i], b[i], epsilon) {
			return false
		}
	}
	return true
}

func Vec2EqualWithEpsilon(a, b mgl64.Vec2, epsilon float64) bool {
	return EqualWithEpsilon(a[0], b[0], epsilon) && EqualWithEpsilon(a[1], b[1], epsilon)
}
