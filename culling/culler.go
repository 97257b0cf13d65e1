package culling

import (
	"github.com/aukilabs/cubesphere/quadtree"
)

// Culler sets the visibility of tiles from a frustum.
type Culler struct {
	// Disabled makes every active tile visible.
	Disabled bool
}

// Cull tests every active Ready tile once against the frustum. A tile is visible
// when it is active and its bounds intersect the frustum. Tiles that are not
// Ready are hidden without being tested. It returns the number of tested and
// visible tiles.
func (c *Culler) Cull(f Frustum, tiles []*quadtree.Tile) (tested, visible int) {
	for _, t := range tiles {
		if t.State != quadtree.Ready {
			t.Node.SetVisible(false)
			continue
		}

		v := t.Active
		if v && !c.Disabled {
			tested++
			v = f.IntersectsBox(t.Bounds)
		}

		t.Node.SetVisible(v)
		if v {
			visible++
		}
	}

	instrumentCull(tested, visible)
	return tested, visible
}
