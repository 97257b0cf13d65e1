package face

import (
	"math"

	"github.com/aukilabs/cubesphere/mathx"
	"github.com/aukilabs/cubesphere/quadtree"
	"github.com/go-gl/mathgl/mgl64"
)

// Permutation re-expresses an offset from a face center as the face U and V
// coordinates. Each coordinate is the dot product of the offset with a row.
//
// The rows are chosen so that the coordinates of neighboring faces address
// the same cube point along their shared edge.
type Permutation struct {
	U mgl64.Vec3
	V mgl64.Vec3
}

var permutations = [6]Permutation{
	quadtree.Right:  {U: mgl64.Vec3{-1, 0, -1}, V: mgl64.Vec3{0, 1, 0}},
	quadtree.Left:   {U: mgl64.Vec3{-1, 0, 1}, V: mgl64.Vec3{0, 1, 0}},
	quadtree.Top:    {U: mgl64.Vec3{1, 0, 0}, V: mgl64.Vec3{0, -1, -1}},
	quadtree.Bottom: {U: mgl64.Vec3{1, 0, 0}, V: mgl64.Vec3{0, -1, 1}},
	quadtree.Front:  {U: mgl64.Vec3{1, 0, 0}, V: mgl64.Vec3{0, 1, 0}},
	quadtree.Back:   {U: mgl64.Vec3{-1, 0, 0}, V: mgl64.Vec3{0, 1, 0}},
}

// PermutationOf returns the permutation of a face.
func PermutationOf(side quadtree.Side) Permutation {
	return permutations[side]
}

func (p Permutation) Apply(offset mgl64.Vec3) mgl64.Vec2 {
	return mgl64.Vec2{p.U.Dot(offset), p.V.Dot(offset)}
}

// normalize maps face coordinates from [-starting/2, starting/2] to [0, 1].
func normalize(uv mgl64.Vec2, starting float64) mgl64.Vec2 {
	half := math.Abs(starting / 2)
	return mgl64.Vec2{
		mathx.Norm(uv[0], half, -half),
		mathx.Norm(uv[1], half, -half),
	}
}

// Project returns the normalized face coordinates of p, a point of the given
// face expressed in the unscaled cube frame of a cube starting wide.
func Project(side quadtree.Side, p mgl64.Vec3, starting float64) mgl64.Vec2 {
	offset := p.Sub(side.Normal().Mul(starting / 2))
	return normalize(PermutationOf(side).Apply(offset), starting)
}

// Unproject returns the point of the unscaled cube frame addressed by the
// normalized face coordinates uv.
func Unproject(side quadtree.Side, uv mgl64.Vec2, starting float64) mgl64.Vec3 {
	local := mgl64.Vec3{
		(uv[0] - 0.5) * starting,
		(uv[1] - 0.5) * starting,
		starting / 2,
	}
	return side.Rotation().Rotate(local)
}
