package render

import (
	"github.com/go-gl/mathgl/mgl64"
)

// Camera is the read-only view used to cull tiles and select their level of
// detail.
type Camera interface {
	ProjectionMatrix() mgl64.Mat4

	// ViewMatrixInverse returns the inverse of the camera world matrix, which
	// maps world space into camera space.
	ViewMatrixInverse() mgl64.Mat4

	WorldPosition() mgl64.Vec3
}

// PerspectiveCamera is a camera looking at a target.
type PerspectiveCamera struct {
	FovY   float64 // Radians.
	Aspect float64
	Near   float64
	Far    float64

	Position mgl64.Vec3
	Target   mgl64.Vec3
	Up       mgl64.Vec3
}

func NewPerspectiveCamera(fovY, aspect, near, far float64) *PerspectiveCamera {
	return &PerspectiveCamera{
		FovY:   fovY,
		Aspect: aspect,
		Near:   near,
		Far:    far,
		Target: mgl64.Vec3{0, 0, -1},
		Up:     mgl64.Vec3{0, 1, 0},
	}
}

func (c *PerspectiveCamera) ProjectionMatrix() mgl64.Mat4 {
	return mgl64.Perspective(c.FovY, c.Aspect, c.Near, c.Far)
}

func (c *PerspectiveCamera) ViewMatrixInverse() mgl64.Mat4 {
	return mgl64.LookAtV(c.Position, c.Target, c.Up)
}

func (c *PerspectiveCamera) WorldPosition() mgl64.Vec3 {
	return c.Position
}

func (c *PerspectiveCamera) LookAt(target mgl64.Vec3) {
	c.Target = target
}
