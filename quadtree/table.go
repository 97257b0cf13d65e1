package quadtree

import (
	"fmt"

	"github.com/aukilabs/cubesphere/mathx"
	"github.com/go-gl/mathgl/mgl64"
)

// LocalTransform is the placement of a tile in the unscaled cube frame, where
// the cube is centered on the origin and faces are Starting wide.
type LocalTransform struct {
	// The tile center, already rotated onto its face.
	Position mgl64.Vec3  `json:"position"`
	Rotation mathx.Euler `json:"rotation"`
	Extent   float64     `json:"extent"`
}

// Table holds the local transforms of every tile of every face and level.
// Tiles of a level are indexed row major: idx = row*PerAxis(level) + col,
// rows going up the face and columns going right.
type Table struct {
	dimensions int
	levels     int
	starting   float64
	transforms [6][][]LocalTransform
}

// NewTable enumerates the tiles of the six faces. dimensions is the number of
// root tiles per face axis and starting the width of a face.
func NewTable(dimensions, levels int, starting float64) *Table {
	t := &Table{
		dimensions: dimensions,
		levels:     levels,
		starting:   starting,
	}

	for _, side := range Sides {
		rot := side.Rotation()
		t.transforms[side] = make([][]LocalTransform, levels)

		for level := 0; level < levels; level++ {
			n := t.PerAxis(level)
			extent := starting / float64(n)
			transforms := make([]LocalTransform, n*n)

			for row := 0; row < n; row++ {
				for col := 0; col < n; col++ {
					local := mgl64.Vec3{
						-starting/2 + (float64(col)+0.5)*extent,
						-starting/2 + (float64(row)+0.5)*extent,
						starting / 2,
					}

					transforms[row*n+col] = LocalTransform{
						Position: rot.Rotate(local),
						Rotation: rot,
						Extent:   extent,
					}
				}
			}

			t.transforms[side][level] = transforms
		}
	}

	return t
}

func (t *Table) Dimensions() int {
	return t.dimensions
}

func (t *Table) Levels() int {
	return t.levels
}

func (t *Table) Starting() float64 {
	return t.starting
}

// PerAxis returns the number of tiles along a face axis at the given level.
func (t *Table) PerAxis(level int) int {
	return t.dimensions << level
}

// Count returns the number of tiles of a face at the given level.
func (t *Table) Count(level int) int {
	n := t.PerAxis(level)
	return n * n
}

// TileCount returns the number of tiles of the six faces of a quadtree. It
// overflows for trees too large to be built.
func TileCount(dimensions, levels int) int {
	var count int
	for level := 0; level < levels; level++ {
		n := dimensions << level
		count += n * n
	}
	return len(Sides) * count
}

// Lookup returns the local transform of a tile. It panics when the tile does
// not exist.
func (t *Table) Lookup(side Side, level, idx int) LocalTransform {
	if !side.Valid() || level < 0 || level >= t.levels || idx < 0 || idx >= t.Count(level) {
		panic(fmt.Sprintf("quadtree: tile %s/%d/%d is out of range", side, level, idx))
	}
	return t.transforms[side][level][idx]
}

// RootIndex returns the index of the level 0 tile containing the given tile.
func (t *Table) RootIndex(level, idx int) int {
	n := t.PerAxis(level)
	row, col := idx/n, idx%n
	return (row>>level)*t.dimensions + col>>level
}

// ChildIndexes returns the indexes at level+1 of the four children of a tile,
// ordered bottom left, bottom right, top left, top right.
func (t *Table) ChildIndexes(level, idx int) [4]int {
	n := t.PerAxis(level)
	row, col := idx/n, idx%n
	cn := n * 2
	r, c := row*2, col*2
	return [4]int{
		r*cn + c,
		r*cn + c + 1,
		(r+1)*cn + c,
		(r+1)*cn + c + 1,
	}
}
