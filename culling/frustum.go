// Package culling hides the tiles that fall outside of the camera view.
package culling

import (
	"github.com/aukilabs/cubesphere/mathx"
	"github.com/aukilabs/cubesphere/render"
	"github.com/go-gl/mathgl/mgl64"
)

// Plane is the half-space Normal·p + D >= 0. The normal points inside the
// frustum.
type Plane struct {
	Normal mgl64.Vec3
	D      float64
}

// Distance returns the signed distance from p to the plane.
func (p Plane) Distance(v mgl64.Vec3) float64 {
	return p.Normal.Dot(v) + p.D
}

func newPlane(v mgl64.Vec4) Plane {
	n := v.Vec3()
	l := n.Len()
	if l == 0 {
		return Plane{}
	}
	return Plane{Normal: n.Mul(1 / l), D: v.W() / l}
}

// Frustum holds the left, right, bottom, top, near and far planes of a view
// volume.
type Frustum struct {
	Planes [6]Plane
}

// NewFrustum extracts the planes of a projection · view matrix.
func NewFrustum(m mgl64.Mat4) Frustum {
	r0, r1, r2, r3 := m.Row(0), m.Row(1), m.Row(2), m.Row(3)

	return Frustum{
		Planes: [6]Plane{
			newPlane(r3.Add(r0)),
			newPlane(r3.Sub(r0)),
			newPlane(r3.Add(r1)),
			newPlane(r3.Sub(r1)),
			newPlane(r3.Add(r2)),
			newPlane(r3.Sub(r2)),
		},
	}
}

// FromCamera returns the frustum of a camera.
func FromCamera(c render.Camera) Frustum {
	return NewFrustum(c.ProjectionMatrix().Mul4(c.ViewMatrixInverse()))
}

// IntersectsBox reports whether the box is at least partially inside the
// frustum. Empty boxes never intersect.
func (f Frustum) IntersectsBox(b mathx.Box3) bool {
	if b.IsEmpty() {
		return false
	}

	for _, p := range f.Planes {
		var v mgl64.Vec3
		for i := 0; i < 3; i++ {
			if p.Normal[i] < 0 {
				v[i] = b.Min[i]
			} else {
				v[i] = b.Max[i]
			}
		}

		if p.Distance(v) < 0 {
			return false
		}
	}
	return true
}
