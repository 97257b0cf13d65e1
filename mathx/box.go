package mathx

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// Box3 is an axis aligned bounding box. The zero value is not empty, use
// EmptyBox3 to start accumulating points.
type Box3 struct {
	Min mgl64.Vec3 `json:"min"`
	Max mgl64.Vec3 `json:"max"`
}

func EmptyBox3() Box3 {
	inf := math.Inf(1)
	return Box3{
		Min: mgl64.Vec3{inf, inf, inf},
		Max: mgl64.Vec3{-inf, -inf, -inf},
	}
}

func NewBox3FromCenter(center mgl64.Vec3, halfExtents mgl64.Vec3) Box3 {
	return Box3{
		Min: center.Sub(halfExtents),
		Max: center.Add(halfExtents),
	}
}

func (b Box3) IsEmpty() bool {
	return b.Max.X() < b.Min.X() || b.Max.Y() < b.Min.Y() || b.Max.Z() < b.Min.Z()
}

func (b *Box3) ExpandByPoint(p mgl64.Vec3) {
	for i := 0; i < 3; i++ {
		b.Min[i] = math.Min(b.Min[i], p[i])
		b.Max[i] = math.Max(b.Max[i], p[i])
	}
}

// ExpandByScalar grows the box by s on every side.
func (b *Box3) ExpandByScalar(s float64) {
	if b.IsEmpty() {
		return
	}
	pad := mgl64.Vec3{s, s, s}
	b.Min = b.Min.Sub(pad)
	b.Max = b.Max.Add(pad)
}

func (b Box3) Center() mgl64.Vec3 {
	return b.Min.Add(b.Max).Mul(0.5)
}

func (b Box3) Size() mgl64.Vec3 {
	if b.IsEmpty() {
		return mgl64.Vec3{}
	}
	return b.Max.Sub(b.Min)
}
