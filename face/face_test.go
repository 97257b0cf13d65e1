package face

import (
	"fmt"
	"math"
	"testing"

	"github.com/aukilabs/cubesphere/expr"
	"github.com/aukilabs/cubesphere/mathx"
	"github.com/aukilabs/cubesphere/quadtree"
	"github.com/aukilabs/cubesphere/render"
	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/require"
)

const (
	testScale  = 100.0
	testRadius = 120.0
	testDisp   = 4.0
)

var testCenter = mgl64.Vec3{10, -20, 30}

type testPlanet struct {
	table   *quadtree.Table
	tree    *quadtree.Tree
	configs [6]Config
}

// quad returns the geometry of a tile made of its four corners.
func quad(size float64) *render.Geometry {
	h := float32(size / 2)
	g, err := render.NewGeometry(
		[]float32{-h, -h, 0, h, -h, 0, -h, h, 0, h, h, 0},
		[]float32{0, 0, 1, 0, 0, 1, 0, 0, 1, 0, 0, 1},
		[]float32{0, 0, 1, 0, 0, 1, 1, 1},
		[]uint32{0, 1, 2, 2, 1, 3},
	)
	if err != nil {
		panic(err)
	}
	return g
}

func heightTexture(name string, h float64) render.FuncTexture {
	return render.FuncTexture{ID: name, Fn: func(uv mgl64.Vec2) mgl64.Vec4 {
		return mgl64.Vec4{uv[0], uv[1], 0.5, h}
	}}
}

func newTestPlanet(dims, levels int, tiled, spherical, outer bool) testPlanet {
	table := quadtree.NewTable(dims, levels, 1)
	tree := quadtree.NewTree(table, quadtree.TreeOptions{
		Center: testCenter,
		Scale:  testScale,
		Tiled:  tiled,
	})

	tree.Walk(func(t *quadtree.Tile) bool {
		t.Node.SetGeometry(quad(t.Size))
		t.State = quadtree.Ready
		return true
	})

	starting := 1.0
	if tiled {
		starting /= float64(dims)
	}

	var configs [6]Config
	for _, side := range quadtree.Sides {
		textures := make([]render.FaceTextures, dims*dims)
		for i := range textures {
			name := fmt.Sprintf("%s_%d", side.Short(), i)
			textures[i] = render.FaceTextures{
				Color:        render.NamedTexture(name + "_color"),
				Displacement: render.NamedTexture(name + "_disp"),
			}
		}

		configs[side] = Config{
			Center:            testCenter,
			Position:          Anchor(testCenter, side, 1, testScale),
			Tiled:             tiled,
			Table:             table,
			Scale:             testScale,
			Starting:          starting,
			Spherical:         spherical,
			Outer:             outer,
			Radius:            testRadius,
			DisplacementScale: testDisp,
			Textures:          textures,
		}
	}

	return testPlanet{table: table, tree: tree, configs: configs}
}

func evalUV(t *testing.T, sampleUV expr.Node, uv mgl64.Vec2) mgl64.Vec2 {
	v, err := sampleUV.Eval(&expr.Env{Attributes: map[string]expr.Value{
		expr.AttrUV: {uv[0], uv[1]},
	}})
	require.NoError(t, err)
	return v.Vec2()
}

type edge struct {
	a, b quadtree.Side
}

func cubeEdges() []edge {
	var edges []edge
	for i, a := range quadtree.Sides {
		for _, b := range quadtree.Sides[i+1:] {
			if a.Normal().Dot(b.Normal()) == 0 {
				edges = append(edges, edge{a: a, b: b})
			}
		}
	}
	return edges
}

func TestPermutationsAgreeOnEdges(t *testing.T) {
	edges := cubeEdges()
	require.Len(t, edges, 12)

	for _, e := range edges {
		t.Run(fmt.Sprintf("%s-%s", e.a, e.b), func(t *testing.T) {
			na, nb := e.a.Normal(), e.b.Normal()
			dir := na.Cross(nb)

			for _, s := range []float64{0, 0.1, 0.25, 0.5, 0.9, 1} {
				p := na.Add(nb).Mul(0.5).Add(dir.Mul(s - 0.5))

				uvA := Project(e.a, p, 1)
				uvB := Project(e.b, p, 1)

				// Both faces address the same cube point.
				require.True(t, mathx.Vec3EqualWithEpsilon(Unproject(e.a, uvA, 1), p, 1e-12))
				require.True(t, mathx.Vec3EqualWithEpsilon(Unproject(e.b, uvB, 1), p, 1e-12))

				// The point is on the border of both face textures.
				requireOnBorder(t, uvA)
				requireOnBorder(t, uvB)

				// And the position along the edge matches, possibly mirrored.
				along := func(uv mgl64.Vec2) float64 {
					if onBorder(uv[0]) {
						return uv[1]
					}
					return uv[0]
				}
				a, b := along(uvA), along(uvB)
				require.True(t,
					math.Abs(a-b) < 1e-12 || math.Abs(a-(1-b)) < 1e-12,
					"edge coordinates %v and %v do not match", a, b)
			}
		})
	}
}

func onBorder(v float64) bool {
	return math.Abs(v) < 1e-12 || math.Abs(v-1) < 1e-12
}

func requireOnBorder(t *testing.T, uv mgl64.Vec2) {
	require.True(t, onBorder(uv[0]) || onBorder(uv[1]), "%v is not on a texture border", uv)
}

// Every tile vertex samples the texel of the cube point it lies on.
func TestComputeAddressesVertexPoints(t *testing.T) {
	cases := []struct {
		name  string
		dims  int
		tiled bool
	}{
		{name: "single root", dims: 1},
		{name: "many roots sharing a texture", dims: 2},
		{name: "tiled roots", dims: 2, tiled: true},
	}

	corners := []mgl64.Vec2{{0, 0}, {1, 0}, {0, 1}, {1, 1}, {0.5, 0.5}, {0.25, 0.75}}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			p := newTestPlanet(c.dims, 3, c.tiled, false, false)

			p.tree.Walk(func(tile *quadtree.Tile) bool {
				cfg := p.configs[tile.Side]
				res, err := Compute(tile, cfg)
				require.NoError(t, err)

				for _, uv := range corners {
					local := mgl64.Vec3{(uv[0] - 0.5) * tile.Size, (uv[1] - 0.5) * tile.Size, 0}
					world := mgl64.TransformCoordinate(local, tile.Node.WorldMatrix())
					point := world.Sub(testCenter).Mul(1 / testScale)

					sample := evalUV(t, res.SampleUV, uv)
					addressed := Unproject(tile.Side, sample, cfg.Starting)
					if c.tiled {
						root := p.table.Lookup(tile.Side, 0, tile.Root)
						addressed = addressed.Sub(tile.Side.Normal().Mul(cfg.Starting / 2)).Add(root.Position)
					}

					require.True(t, mathx.Vec3EqualWithEpsilon(addressed, point, 1e-9),
						"tile %s at %v addresses %v instead of %v", tile.Key, uv, addressed, point)
				}
				return true
			})
		})
	}
}

func TestSeamBetweenNeighborTiles(t *testing.T) {
	p := newTestPlanet(1, 3, false, false, false)

	for level := 0; level < p.table.Levels(); level++ {
		n := p.table.PerAxis(level)

		for row := 0; row < n; row++ {
			front := p.tree.Level(quadtree.Front, level)[row*n+n-1]
			right := p.tree.Level(quadtree.Right, level)[row*n]

			resFront, err := Compute(front, p.configs[quadtree.Front])
			require.NoError(t, err)
			resRight, err := Compute(right, p.configs[quadtree.Right])
			require.NoError(t, err)

			for _, v := range []float64{0, 0.3, 1} {
				a := evalUV(t, resFront.SampleUV, mgl64.Vec2{1, v})
				b := evalUV(t, resRight.SampleUV, mgl64.Vec2{0, v})

				require.InDelta(t, 1, a[0], 1e-9)
				require.InDelta(t, 0, b[0], 1e-9)
				require.InDelta(t, a[1], b[1], 1e-9)
			}
		}
	}
}

func TestTiledMatchesFlatWithOneRoot(t *testing.T) {
	flat := newTestPlanet(1, 3, false, false, false)
	tiled := newTestPlanet(1, 3, true, false, false)

	flat.tree.Walk(func(tile *quadtree.Tile) bool {
		other, ok := tiled.tree.Tile(tile.Key)
		require.True(t, ok)

		a, err := Compute(tile, flat.configs[tile.Side])
		require.NoError(t, err)
		b, err := Compute(other, tiled.configs[tile.Side])
		require.NoError(t, err)

		require.True(t, mathx.Vec2EqualWithEpsilon(a.Offset, b.Offset, 1e-12), tile.Key.String())
		require.Equal(t, a.SampleUV.String(), b.SampleUV.String())
		return true
	})
}

func TestOffsetsStayInRootRange(t *testing.T) {
	p := newTestPlanet(1, 4, false, false, false)

	p.tree.Walk(func(tile *quadtree.Tile) bool {
		res, err := Compute(tile, p.configs[tile.Side])
		require.NoError(t, err)

		for _, o := range res.Offset {
			require.GreaterOrEqual(t, o, -1e-12)
			require.LessOrEqual(t, o+tile.Scaling, 1+1e-12)
		}
		return true
	})
}

func TestDegenerateConfig(t *testing.T) {
	p := newTestPlanet(1, 1, false, false, false)
	tile := p.tree.Level(quadtree.Front, 0)[0]

	cases := []struct {
		name   string
		mutate func(c *Config)
	}{
		{name: "zero scale", mutate: func(c *Config) { c.Scale = 0 }},
		{name: "negative scale", mutate: func(c *Config) { c.Scale = -1 }},
		{name: "nan scale", mutate: func(c *Config) { c.Scale = math.NaN() }},
		{name: "zero starting", mutate: func(c *Config) { c.Starting = 0 }},
		{name: "negative starting", mutate: func(c *Config) { c.Starting = -1 }},
		{name: "infinite starting", mutate: func(c *Config) { c.Starting = math.Inf(1) }},
		{name: "nan displacement", mutate: func(c *Config) { c.DisplacementScale = math.NaN() }},
		{name: "outer without radius", mutate: func(c *Config) {
			c.Spherical = true
			c.Outer = true
			c.Radius = 0
		}},
		{name: "tiled without table", mutate: func(c *Config) {
			c.Tiled = true
			c.Table = nil
		}},
		{name: "no textures", mutate: func(c *Config) { c.Textures = nil }},
		{name: "incomplete textures", mutate: func(c *Config) {
			c.Textures = []render.FaceTextures{{Color: render.NamedTexture("c")}}
		}},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			cfg := p.configs[quadtree.Front]
			c.mutate(&cfg)

			require.True(t, errors.IsType(cfg.Validate(), ErrTypeDegenerateConfig))

			res, err := Compute(tile, cfg)
			require.True(t, errors.IsType(err, ErrTypeDegenerateConfig))
			require.Nil(t, res.Position)
		})
	}

	require.NoError(t, p.configs[quadtree.Front].Validate())
}

func TestApply(t *testing.T) {
	p := newTestPlanet(1, 2, false, false, false)
	tile := p.tree.Level(quadtree.Top, 1)[2]

	tile.State = quadtree.Building
	_, err := Apply(tile, p.configs[quadtree.Top])
	require.True(t, errors.IsType(err, ErrTypeNotReady))
	require.Nil(t, tile.Node.PositionExpr())
	require.False(t, tile.Transformed)

	tile.State = quadtree.Ready
	res, err := Apply(tile, p.configs[quadtree.Top])
	require.NoError(t, err)
	require.True(t, tile.Transformed)
	require.Equal(t, res.Position, tile.Node.PositionExpr())
	require.Equal(t, res.Color, tile.Node.ColorExpr())
}

func TestFlatDisplacement(t *testing.T) {
	p := newTestPlanet(1, 2, false, false, false)
	tile := p.tree.Level(quadtree.Left, 1)[1]

	cfg := p.configs[quadtree.Left]
	tex := cfg.Textures[0]
	env := render.SamplerEnv(map[string]render.Sampler{
		tex.Displacement.Name(): heightTexture(tex.Displacement.Name(), 1),
		tex.Color.Name():        heightTexture(tex.Color.Name(), 1),
	})

	_, err := Apply(tile, cfg)
	require.NoError(t, err)

	geometry := tile.Node.Geometry()
	for i := 0; i < geometry.VertexCount(); i++ {
		res, err := Compute(tile, cfg)
		require.NoError(t, err)
		sample := evalUV(t, res.SampleUV, geometry.UV(i))

		pos, color, err := render.EvalVertex(tile.Node, i, env)
		require.NoError(t, err)

		// The red channel of the test texture is the sampled U coordinate.
		expected := geometry.Position(i).Add(mgl64.Vec3{0, 0, sample[0] * testDisp})
		require.True(t, mathx.Vec3EqualWithEpsilon(pos, expected, 1e-9))
		require.True(t, mathx.Vec3EqualWithEpsilon(color, mgl64.Vec3{sample[0], sample[1], 0.5}, 1e-9))
	}
}

func TestSphericalOuterProjectsOntoRadius(t *testing.T) {
	for _, h := range []float64{0, 0.5, 1} {
		p := newTestPlanet(1, 3, false, true, true)

		p.tree.Walk(func(tile *quadtree.Tile) bool {
			cfg := p.configs[tile.Side]
			tex := cfg.Textures[0]
			env := render.SamplerEnv(map[string]render.Sampler{
				tex.Displacement.Name(): heightTexture(tex.Displacement.Name(), h),
			})

			_, err := Apply(tile, cfg)
			require.NoError(t, err)

			for i := 0; i < tile.Node.Geometry().VertexCount(); i++ {
				local, _, err := render.EvalVertex(tile.Node, i, env)
				require.NoError(t, err)

				world := mgl64.TransformCoordinate(local, tile.Node.WorldMatrix())
				require.InDelta(t, testRadius+h*testDisp, world.Sub(testCenter).Len(), 1e-9)
			}
			return true
		})
	}
}

func TestSphericalInnerDisplacesLocalPosition(t *testing.T) {
	p := newTestPlanet(1, 1, false, true, false)
	tile := p.tree.Level(quadtree.Back, 0)[0]
	cfg := p.configs[quadtree.Back]
	tex := cfg.Textures[0]
	env := render.SamplerEnv(map[string]render.Sampler{
		tex.Displacement.Name(): heightTexture(tex.Displacement.Name(), 1),
	})

	displaced := func(t *testing.T) []mgl64.Vec3 {
		var positions []mgl64.Vec3
		for i := 0; i < tile.Node.Geometry().VertexCount(); i++ {
			local, _, err := render.EvalVertex(tile.Node, i, env)
			require.NoError(t, err)
			positions = append(positions, mgl64.TransformCoordinate(local, tile.Node.WorldMatrix()))
		}
		return positions
	}

	first, err := Apply(tile, cfg)
	require.NoError(t, err)
	positions := displaced(t)

	for i, world := range positions {
		base := mgl64.TransformCoordinate(tile.Node.Geometry().Position(i), tile.Node.WorldMatrix())
		require.InDelta(t, base.Sub(testCenter).Len()+testDisp, world.Sub(testCenter).Len(), 1e-9)
	}

	t.Run("applying again does not displace twice", func(t *testing.T) {
		tile.Transformed = false

		second, err := Apply(tile, cfg)
		require.NoError(t, err)
		require.Equal(t, first.Position.String(), second.Position.String())

		for i, world := range displaced(t) {
			require.True(t, mathx.Vec3EqualWithEpsilon(positions[i], world, 1e-9), "vertex %d", i)
		}
	})
}

func TestTints(t *testing.T) {
	p := newTestPlanet(1, 2, false, false, false)
	cfg := p.configs[quadtree.Front]
	tex := cfg.Textures[0]
	env := render.SamplerEnv(map[string]render.Sampler{
		tex.Color.Name():        heightTexture(tex.Color.Name(), 1),
		tex.Displacement.Name(): heightTexture(tex.Displacement.Name(), 0),
	})

	colors := func(t *testing.T, tile *quadtree.Tile, cfg Config) []mgl64.Vec3 {
		_, err := Apply(tile, cfg)
		require.NoError(t, err)

		var res []mgl64.Vec3
		for i := 0; i < tile.Node.Geometry().VertexCount(); i++ {
			_, c, err := render.EvalVertex(tile.Node, i, env)
			require.NoError(t, err)
			res = append(res, c)
		}
		return res
	}

	tint := mgl64.Vec3{0.5, 2, 1}
	tinted := cfg
	tinted.Tints = []mgl64.Vec3{tint}

	t.Run("tinted level", func(t *testing.T) {
		tile := p.tree.Level(quadtree.Front, 0)[0]
		plain := colors(t, tile, cfg)

		for i, c := range colors(t, tile, tinted) {
			expected := mgl64.Vec3{plain[i][0] * tint[0], plain[i][1] * tint[1], plain[i][2] * tint[2]}
			require.True(t, mathx.Vec3EqualWithEpsilon(expected, c, 1e-12), "vertex %d", i)
		}
	})

	t.Run("levels without tint", func(t *testing.T) {
		tile := p.tree.Level(quadtree.Front, 1)[3]
		require.Equal(t, colors(t, tile, cfg), colors(t, tile, tinted))
	})

	t.Run("non finite tint", func(t *testing.T) {
		bad := cfg
		bad.Tints = []mgl64.Vec3{{math.NaN(), 1, 1}}
		require.True(t, errors.IsType(bad.Validate(), ErrTypeDegenerateConfig))
	})
}

func TestLight(t *testing.T) {
	p := newTestPlanet(1, 1, false, false, false)
	tile := p.tree.Level(quadtree.Front, 0)[0]

	cfg := p.configs[quadtree.Front]
	cfg.Light = &Light{Direction: mgl64.Vec3{0, 8, 8}}

	res, err := Compute(tile, cfg)
	require.NoError(t, err)
	require.Contains(t, res.Color.String(), expr.FuncLight+"(")

	cfg.Light = nil
	res, err = Compute(tile, cfg)
	require.NoError(t, err)
	require.NotContains(t, res.Color.String(), expr.FuncLight+"(")
}
