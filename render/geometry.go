package render

import (
	"github.com/aukilabs/cubesphere/mathx"
	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/go-gl/mathgl/mgl64"
)

const (
	ErrTypeInvalidGeometry = "invalid_geometry"
)

// Geometry is an indexed triangle mesh made of flat buffers, the way they are
// uploaded to the GPU.
type Geometry struct {
	Positions []float32
	Normals   []float32
	UVs       []float32
	Indices   []uint32

	// The bounding box of the positions in the local space of the node.
	BoundingBox mathx.Box3
}

// NewGeometry creates a geometry from the given buffers and computes its
// bounding box. Buffers are used as is and must not be shared.
func NewGeometry(positions, normals, uvs []float32, indices []uint32) (*Geometry, error) {
	vertices := len(positions) / 3

	switch {
	case len(positions)%3 != 0:
		return nil, errors.New("positions are not a multiple of 3").
			WithType(ErrTypeInvalidGeometry).
			WithTag("positions", len(positions))

	case len(normals) != len(positions):
		return nil, errors.New("normal count does not match positions").
			WithType(ErrTypeInvalidGeometry).
			WithTag("positions", len(positions)).
			WithTag("normals", len(normals))

	case len(uvs) != vertices*2:
		return nil, errors.New("uv count does not match positions").
			WithType(ErrTypeInvalidGeometry).
			WithTag("vertices", vertices).
			WithTag("uvs", len(uvs))

	case len(indices)%3 != 0:
		return nil, errors.New("indices are not triangles").
			WithType(ErrTypeInvalidGeometry).
			WithTag("indices", len(indices))
	}

	for _, i := range indices {
		if int(i) >= vertices {
			return nil, errors.New("index out of range").
				WithType(ErrTypeInvalidGeometry).
				WithTag("index", i).
				WithTag("vertices", vertices)
		}
	}

	g := &Geometry{
		Positions: positions,
		Normals:   normals,
		UVs:       uvs,
		Indices:   indices,
	}
	g.ComputeBoundingBox()
	return g, nil
}

func (g *Geometry) VertexCount() int {
	return len(g.Positions) / 3
}

// Position returns the position of the i-th vertex.
func (g *Geometry) Position(i int) mgl64.Vec3 {
	return mgl64.Vec3{
		float64(g.Positions[i*3]),
		float64(g.Positions[i*3+1]),
		float64(g.Positions[i*3+2]),
	}
}

func (g *Geometry) Normal(i int) mgl64.Vec3 {
	return mgl64.Vec3{
		float64(g.Normals[i*3]),
		float64(g.Normals[i*3+1]),
		float64(g.Normals[i*3+2]),
	}
}

func (g *Geometry) UV(i int) mgl64.Vec2 {
	return mgl64.Vec2{float64(g.UVs[i*2]), float64(g.UVs[i*2+1])}
}

func (g *Geometry) ComputeBoundingBox() {
	box := mathx.EmptyBox3()
	for i := 0; i < g.VertexCount(); i++ {
		box.ExpandByPoint(g.Position(i))
	}
	g.BoundingBox = box
}

// WorldBoundingBox returns the bounding box of the geometry transformed by
// the given world matrix.
func (g *Geometry) WorldBoundingBox(world mgl64.Mat4) mathx.Box3 {
	return TransformBox(g.BoundingBox, world)
}

// TransformBox returns the axis aligned box enclosing the eight transformed
// corners of b.
func TransformBox(b mathx.Box3, m mgl64.Mat4) mathx.Box3 {
	if b.IsEmpty() {
		return b
	}

	box := mathx.EmptyBox3()
	for i := 0; i < 8; i++ {
		corner := mgl64.Vec3{b.Min[0], b.Min[1], b.Min[2]}
		if i&1 != 0 {
			corner[0] = b.Max[0]
		}
		if i&2 != 0 {
			corner[1] = b.Max[1]
		}
		if i&4 != 0 {
			corner[2] = b.Max[2]
		}
		box.ExpandByPoint(mgl64.TransformCoordinate(corner, m))
	}
	return box
}
