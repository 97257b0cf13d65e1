package build

import (
	"github.com/aukilabs/go-tooling/pkg/errors"
)

const (
	ErrTypeInvalidTask = "invalid_build_task"
)

// BuildPlane meshes a plane of the task size centered on the origin, facing
// +Z and subdivided in segments.
//
// Vertices go row by row from the top left corner. U grows with X and V with
// Y, so that the bottom left corner has the UV (0, 0).
func BuildPlane(t Task) (Result, error) {
	if t.Width <= 0 || t.Height <= 0 || t.WidthSegments < 1 || t.HeightSegments < 1 {
		return Result{}, errors.New("invalid plane dimensions").
			WithType(ErrTypeInvalidTask).
			WithTag("key", t.Key).
			WithTag("width", t.Width).
			WithTag("height", t.Height).
			WithTag("width_segments", t.WidthSegments).
			WithTag("height_segments", t.HeightSegments)
	}

	gridX, gridY := t.WidthSegments, t.HeightSegments
	gridX1, gridY1 := gridX+1, gridY+1
	segmentWidth := t.Width / float64(gridX)
	segmentHeight := t.Height / float64(gridY)
	vertices := gridX1 * gridY1

	res := Result{
		Key:       t.Key,
		Ticket:    t.Ticket,
		Positions: make([]float32, 0, vertices*3),
		Normals:   make([]float32, 0, vertices*3),
		UVs:       make([]float32, 0, vertices*2),
		Indices:   make([]uint32, 0, gridX*gridY*6),
	}

	for iy := 0; iy < gridY1; iy++ {
		y := float64(iy)*segmentHeight - t.Height/2

		for ix := 0; ix < gridX1; ix++ {
			x := float64(ix)*segmentWidth - t.Width/2

			res.Positions = append(res.Positions, float32(x), float32(-y), 0)
			res.Normals = append(res.Normals, 0, 0, 1)
			res.UVs = append(res.UVs,
				float32(float64(ix)/float64(gridX)),
				float32(1-float64(iy)/float64(gridY)),
			)
		}
	}

	for iy := 0; iy < gridY; iy++ {
		for ix := 0; ix < gridX; ix++ {
			a := uint32(ix + gridX1*iy)
			b := uint32(ix + gridX1*(iy+1))
			c := uint32(ix + 1 + gridX1*(iy+1))
			d := uint32(ix + 1 + gridX1*iy)

			res.Indices = append(res.Indices, a, b, d, b, c, d)
		}
	}

	return res, nil
}
