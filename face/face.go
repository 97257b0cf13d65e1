// Package face computes, for each tile, the texture coordinates sampled by
// its vertices and the expressions that displace and color them.
//
// Coordinates are continuous across quadtree levels: a tile samples the
// sub-rectangle of its root texture it covers. They are also continuous across
// faces: the permutation of each face keeps the coordinates of two adjacent
// faces addressing the same cube point along their shared edge.
package face

import (
	"github.com/aukilabs/cubesphere/expr"
	"github.com/aukilabs/cubesphere/mathx"
	"github.com/aukilabs/cubesphere/quadtree"
	"github.com/aukilabs/cubesphere/render"
	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/go-gl/mathgl/mgl64"
)

const (
	ErrTypeDegenerateConfig = "degenerate_face_config"
	ErrTypeNonFinite        = "non_finite_coordinates"
	ErrTypeNotReady         = "tile_not_ready"
)

// Light is the fixed light used to shade tile colors.
type Light struct {
	Direction mgl64.Vec3
	ViewPoint mgl64.Vec3
}

// Config holds the constants shared by the tiles of a face.
type Config struct {
	// The planet center.
	Center mgl64.Vec3

	// The world anchor of the face, its center. Used when not tiled.
	Position mgl64.Vec3

	// When tiled, each root tile owns its textures and tiles are anchored on
	// their root tile, looked up in Table.
	Tiled bool
	Table *quadtree.Table

	// The multiplier from the unscaled cube frame to world units.
	Scale float64

	// The width of the area covered by a texture in the unscaled cube frame:
	// a face, or a root tile when tiled.
	Starting float64

	Spherical bool

	// Whether the face base positions are projected on the sphere of the
	// given radius. Spherical only.
	Outer  bool
	Radius float64

	DisplacementScale float64

	// The textures of the face, one per root tile when tiled.
	Textures []render.FaceTextures

	// Multipliers of the sampled color, indexed by tile level. Levels past
	// the end are not tinted.
	Tints []mgl64.Vec3

	Light *Light
}

// Validate reports configurations that would produce undefined coordinates.
func (c Config) Validate() error {
	if !mathx.IsFinite(c.Scale) || c.Scale <= 0 {
		return errors.New("face scale must be positive and finite").
			WithType(ErrTypeDegenerateConfig).
			WithTag("scale", c.Scale)
	}

	if !mathx.IsFinite(c.Starting) || c.Starting <= 0 {
		return errors.New("face starting extent must be positive and finite").
			WithType(ErrTypeDegenerateConfig).
			WithTag("starting", c.Starting)
	}

	if !mathx.IsFinite(c.DisplacementScale, c.Radius) ||
		!mathx.IsFinite(c.Center[:]...) ||
		!mathx.IsFinite(c.Position[:]...) {
		return errors.New("face config is not finite").
			WithType(ErrTypeDegenerateConfig)
	}

	if c.Spherical && c.Outer && c.Radius <= 0 {
		return errors.New("outer face radius must be positive").
			WithType(ErrTypeDegenerateConfig).
			WithTag("radius", c.Radius)
	}

	for level, t := range c.Tints {
		if !mathx.IsFinite(t[:]...) {
			return errors.New("face tint is not finite").
				WithType(ErrTypeDegenerateConfig).
				WithTag("level", level)
		}
	}

	if c.Tiled && c.Table == nil {
		return errors.New("tiled face has no table").
			WithType(ErrTypeDegenerateConfig)
	}

	if len(c.Textures) == 0 {
		return errors.New("face has no textures").
			WithType(ErrTypeDegenerateConfig)
	}
	for i, t := range c.Textures {
		if t.Color == nil || t.Displacement == nil {
			return errors.New("face textures are incomplete").
				WithType(ErrTypeDegenerateConfig).
				WithTag("root", i)
		}
	}

	return nil
}

// Anchor returns the world center of a face of a cube of the given width.
func Anchor(center mgl64.Vec3, side quadtree.Side, width, scale float64) mgl64.Vec3 {
	return center.Add(side.Normal().Mul(width / 2 * scale))
}

// Result is the output of the face transform of a tile.
type Result struct {
	// The normalized coordinates of the tile bottom left corner.
	Offset mgl64.Vec2

	// The coordinates sampled by the tile vertices.
	SampleUV expr.Node

	Position expr.Node
	Color    expr.Node
}

// Compute returns the sampling coordinates and the position and color
// expressions of a tile. It does not modify the tile.
func Compute(tile *quadtree.Tile, cfg Config) (Result, error) {
	if err := cfg.Validate(); err != nil {
		return Result{}, err
	}

	anchor := cfg.Position
	textures := cfg.Textures[0]
	if cfg.Tiled {
		root := cfg.Table.Lookup(tile.Side, 0, tile.Root)
		anchor = cfg.Center.Add(root.Position.Mul(cfg.Scale))
		if tile.Root < len(cfg.Textures) {
			textures = cfg.Textures[tile.Root]
		}
	}

	world := tile.Node.WorldMatrix()
	offset := mathx.Origin(world).Sub(anchor).Mul(1 / cfg.Scale)
	n := normalize(PermutationOf(tile.Side).Apply(offset), cfg.Starting)
	uvOffset := mgl64.Vec2{n[0] - tile.HalfScale, n[1] - tile.HalfScale}

	if !mathx.IsFinite(uvOffset[:]...) || !mathx.IsFinite(tile.Scaling) {
		return Result{}, errors.New("tile coordinates are not finite").
			WithType(ErrTypeNonFinite).
			WithTag("tile", tile.Key.String()).
			WithTag("offset", uvOffset)
	}

	sampleUV := expr.Add(expr.Mul(expr.UV(), expr.Float(tile.Scaling)), expr.Vec2(uvOffset))
	height := expr.Texture(textures.Displacement.Name(), sampleUV)
	color := expr.Swizzle(expr.Texture(textures.Color.Name(), sampleUV), "xyz")
	scale := expr.Float(cfg.DisplacementScale)

	var position expr.Node
	if cfg.Spherical {
		pivot := mathx.WorldToLocal(world, tile.Pivot)
		if !mathx.IsFinite(pivot[:]...) {
			return Result{}, errors.New("tile pivot is not finite").
				WithType(ErrTypeNonFinite).
				WithTag("tile", tile.Key.String())
		}

		direction := expr.Normalize(expr.Sub(expr.PositionLocal(), expr.Vec3(pivot)))
		displacement := expr.Mul(expr.Mul(expr.Swizzle(height, "w"), scale), direction)

		base := expr.PositionLocal()
		if cfg.Outer {
			base = expr.Add(expr.Mul(expr.Float(cfg.Radius), direction), expr.Vec3(pivot))
		}
		position = expr.Add(base, displacement)
	} else {
		position = expr.Add(
			expr.Mul(expr.Mul(expr.Swizzle(height, "r"), scale), expr.NormalLocal()),
			expr.PositionLocal(),
		)
	}

	if tile.Level < len(cfg.Tints) {
		color = expr.Mul(color, expr.Vec3(cfg.Tints[tile.Level]))
	}

	if cfg.Light != nil {
		color = expr.Light(color, cfg.Light.Direction, cfg.Light.ViewPoint)
	}

	return Result{
		Offset:   uvOffset,
		SampleUV: sampleUV,
		Position: position,
		Color:    color,
	}, nil
}

// Apply runs the face transform of a Ready tile and assigns the resulting
// expressions to its node.
func Apply(tile *quadtree.Tile, cfg Config) (Result, error) {
	if tile.State != quadtree.Ready {
		return Result{}, errors.New("tile geometry is not built").
			WithType(ErrTypeNotReady).
			WithTag("tile", tile.Key.String()).
			WithTag("state", tile.State.String())
	}

	res, err := Compute(tile, cfg)
	if err != nil {
		return Result{}, err
	}

	tile.Node.SetPositionExpr(res.Position)
	tile.Node.SetColorExpr(res.Color)
	tile.Transformed = true
	return res, nil
}
