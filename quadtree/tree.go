package quadtree

import (
	"github.com/aukilabs/cubesphere/mathx"
	"github.com/aukilabs/cubesphere/render"
	"github.com/go-gl/mathgl/mgl64"
)

// TreeOptions configures how tiles are placed in the world.
type TreeOptions struct {
	// The planet center.
	Center mgl64.Vec3

	// The multiplier from the unscaled cube frame to world units.
	Scale float64

	// Whether each root tile owns its textures. When false, a face is covered
	// by a single texture and scalings are relative to the whole face.
	Tiled bool

	// Creates the render node of a tile. It defaults to a mesh without
	// material.
	NewNode func(k Key, world mgl64.Mat4) render.Node
}

// Tree is the set of the six face quadtrees. Its shape is immutable after
// creation, only the state of the tiles changes.
type Tree struct {
	table *Table
	tiles [6][][]*Tile
	count int
}

func NewTree(table *Table, opts TreeOptions) *Tree {
	if opts.NewNode == nil {
		opts.NewNode = func(k Key, world mgl64.Mat4) render.Node {
			return render.NewMesh(k.String(), world, nil)
		}
	}

	rootExtent := table.Starting()
	if opts.Tiled {
		rootExtent /= float64(table.Dimensions())
	}

	tree := &Tree{table: table}

	for _, side := range Sides {
		tree.tiles[side] = make([][]*Tile, table.Levels())

		for level := 0; level < table.Levels(); level++ {
			tiles := make([]*Tile, table.Count(level))

			for idx := range tiles {
				key := Key{Side: side, Level: level, Index: idx}
				local := table.Lookup(side, level, idx)
				world := mathx.Compose(opts.Center.Add(local.Position.Mul(opts.Scale)), local.Rotation)
				scaling := local.Extent / rootExtent

				tile := &Tile{
					Key:       key,
					Root:      table.RootIndex(level, idx),
					Local:     local,
					Scaling:   scaling,
					HalfScale: scaling / 2,
					Size:      local.Extent * opts.Scale,
					Pivot:     opts.Center,
					Node:      opts.NewNode(key, world),
					Bounds:    mathx.EmptyBox3(),
				}

				if level > 0 {
					parentIdx := tree.parentIndex(level, idx)
					tile.Parent = tree.tiles[side][level-1][parentIdx]
				}

				tiles[idx] = tile
			}

			tree.tiles[side][level] = tiles
			tree.count += len(tiles)
		}

		for level := 0; level < table.Levels()-1; level++ {
			for idx, tile := range tree.tiles[side][level] {
				for _, c := range table.ChildIndexes(level, idx) {
					tile.Children = append(tile.Children, tree.tiles[side][level+1][c])
				}
			}
		}
	}

	return tree
}

func (t *Tree) parentIndex(level, idx int) int {
	n := t.table.PerAxis(level)
	row, col := idx/n, idx%n
	return (row/2)*(n/2) + col/2
}

func (t *Tree) Table() *Table {
	return t.table
}

// Count returns the number of tiles of the tree.
func (t *Tree) Count() int {
	return t.count
}

// Tile returns the tile with the given key.
func (t *Tree) Tile(k Key) (*Tile, bool) {
	if !k.Side.Valid() || k.Level < 0 || k.Level >= len(t.tiles[k.Side]) {
		return nil, false
	}
	tiles := t.tiles[k.Side][k.Level]
	if k.Index < 0 || k.Index >= len(tiles) {
		return nil, false
	}
	return tiles[k.Index], true
}

// Level returns the tiles of a face at the given level.
func (t *Tree) Level(side Side, level int) []*Tile {
	return t.tiles[side][level]
}

// Roots returns the level 0 tiles of every face.
func (t *Tree) Roots() []*Tile {
	var roots []*Tile
	for _, side := range Sides {
		roots = append(roots, t.tiles[side][0]...)
	}
	return roots
}

// Walk calls fn on every tile, parents before children. Children of a tile
// are skipped when fn returns false.
func (t *Tree) Walk(fn func(*Tile) bool) {
	var walk func(*Tile)
	walk = func(tile *Tile) {
		if !fn(tile) {
			return
		}
		for _, c := range tile.Children {
			walk(c)
		}
	}

	for _, root := range t.Roots() {
		walk(root)
	}
}
