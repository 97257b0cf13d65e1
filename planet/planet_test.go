package planet

import (
	"context"
	"math/rand"
	"testing"
	"time"

	"github.com/aukilabs/cubesphere/build"
	"github.com/aukilabs/cubesphere/colors"
	"github.com/aukilabs/cubesphere/expr"
	"github.com/aukilabs/cubesphere/face"
	"github.com/aukilabs/cubesphere/featureflag"
	"github.com/aukilabs/cubesphere/quadtree"
	"github.com/aukilabs/cubesphere/render"
	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/require"
)

// syncChannel builds tasks as soon as they are sent.
type syncChannel struct {
	t       *testing.T
	codec   *build.Codec
	results chan []byte
	drop    bool
	sent    int
}

func newSyncChannel(t *testing.T, codec *build.Codec) *syncChannel {
	return &syncChannel{
		t:       t,
		codec:   codec,
		results: make(chan []byte, 1024),
	}
}

func (c *syncChannel) Send(ctx context.Context, msg []byte) error {
	c.sent++
	if c.drop {
		return nil
	}

	task, err := c.codec.DecodeTask(msg)
	require.NoError(c.t, err)

	res, err := build.BuildPlane(task)
	require.NoError(c.t, err)

	b, err := c.codec.EncodeResult(res)
	require.NoError(c.t, err)

	c.results <- b
	return nil
}

func (c *syncChannel) Results() <-chan []byte {
	return c.results
}

func (c *syncChannel) Close() {
}

func newTestCodec(t *testing.T) *build.Codec {
	codec, err := build.NewCodec()
	require.NoError(t, err)
	t.Cleanup(codec.Close)
	return codec
}

func newTestConfig() Config {
	c := DefaultConfig()
	c.Name = "test"
	c.Size = 100
	c.PolyCount = 2
	c.Levels = 3
	c.Spherical = false
	c.OuterFaces = nil
	c.DisplacementScale = 4
	c.LODDistanceOffset = 1.5
	return c
}

func newTestCamera(position mgl64.Vec3) *render.PerspectiveCamera {
	c := render.NewPerspectiveCamera(mgl64.DegToRad(60), 1, 1, 100000)
	c.Position = position
	c.LookAt(mgl64.Vec3{})
	return c
}

func newTestPlanet(t *testing.T, cfg Config, options ...Option) (*Planet, *syncChannel) {
	codec := newTestCodec(t)
	ch := newSyncChannel(t, codec)

	textures := render.NamedTextureSet(quadtree.ShortNames(), cfg.Dimensions)
	p, err := New(cfg, textures, ch, codec, options...)
	require.NoError(t, err)
	return p, ch
}

func TestPlanet(t *testing.T) {
	ctx := context.Background()
	p, ch := newTestPlanet(t, newTestConfig())

	require.Equal(t, 6*(1+4+16), p.Tiles().Total)
	require.False(t, p.Ready())

	require.NoError(t, p.Start(ctx))
	require.Equal(t, 6, ch.sent)
	require.Equal(t, 6, p.Tiles().Building)

	t.Run("far camera keeps the roots", func(t *testing.T) {
		cam := newTestCamera(mgl64.Vec3{0, 0, 1000})

		stats := p.Update(ctx, cam)
		require.Equal(t, 6, stats.Completed)
		require.Equal(t, 6, stats.Transformed)
		require.Zero(t, stats.Submitted)
		require.Zero(t, stats.Failed)
		require.Zero(t, stats.Pending)
		require.Equal(t, 6, stats.Active)
		require.Equal(t, 6, stats.Tested)
		require.Equal(t, 6, stats.Visible)

		require.True(t, p.Ready())
		require.Equal(t, stats, p.LastFrame())

		for _, root := range p.Tree().Roots() {
			require.Equal(t, quadtree.Ready, root.State)
			require.True(t, root.Transformed)
			require.True(t, root.Node.Visible())
			require.NotNil(t, root.Node.PositionExpr())
			require.NotNil(t, root.Node.ColorExpr())
			require.NotSame(t, p.material, root.Node.Material())
		}
	})

	t.Run("close camera splits the nearest roots", func(t *testing.T) {
		cam := newTestCamera(mgl64.Vec3{0, 0, 120})

		stats := p.Update(ctx, cam)
		require.Equal(t, 5*4, stats.Submitted)
		require.Equal(t, 6, stats.Active)

		back, _ := p.Tree().Tile(quadtree.Key{Side: quadtree.Back})
		front, _ := p.Tree().Tile(quadtree.Key{Side: quadtree.Front})
		require.True(t, front.Active)
		for _, c := range front.Children {
			require.Equal(t, quadtree.Building, c.State)
			require.False(t, c.Node.Visible())
		}

		stats = p.Update(ctx, cam)
		require.Equal(t, 20, stats.Completed)
		require.Equal(t, 20, stats.Transformed)
		require.Zero(t, stats.Submitted)
		require.Equal(t, 21, stats.Active)
		require.Equal(t, 21, stats.Tested)

		require.False(t, front.Active)
		require.False(t, front.Node.Visible())
		require.True(t, back.Active)
		for _, c := range front.Children {
			require.True(t, c.Active)
			require.True(t, c.Transformed)
			require.True(t, c.Node.Visible())
		}

		tiles := p.Tiles()
		require.Equal(t, 26, tiles.Ready)
		require.Equal(t, 100, tiles.Unbuilt)
		require.Equal(t, 21, tiles.Active)
	})

	t.Run("moving away merges the tiles", func(t *testing.T) {
		stats := p.Update(ctx, newTestCamera(mgl64.Vec3{0, 0, 1000}))
		require.Equal(t, 6, stats.Active)
		require.Zero(t, stats.Submitted)

		for _, root := range p.Tree().Roots() {
			require.True(t, root.Active)
			for _, c := range root.Children {
				require.False(t, c.Active)
				require.False(t, c.Node.Visible())
			}
		}
	})

	t.Run("meta data", func(t *testing.T) {
		md := p.MetaData()
		require.NotEmpty(t, md.ID)
		require.Equal(t, "test", md.Name)
		require.Equal(t, 3, md.Levels)
		require.Equal(t, 126, md.Tiles.Total)
		require.True(t, md.Tiles.RootsReady)
	})
}

func TestPlanetLostBuilds(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	cfg := newTestConfig()
	cfg.Build.MaxRetries = 1
	p, ch := newTestPlanet(t, cfg, WithPipelineOptions(build.WithClock(func() time.Time {
		return now
	})))

	ch.drop = true
	require.NoError(t, p.Start(ctx))

	cam := newTestCamera(mgl64.Vec3{0, 0, 1000})
	stats := p.Update(ctx, cam)
	require.Zero(t, stats.Completed)
	require.Equal(t, 6, stats.Pending)
	require.Zero(t, stats.Tested)
	require.Zero(t, stats.Visible)

	now = now.Add(cfg.Build.Timeout * 2)
	stats = p.Update(ctx, cam)
	require.Zero(t, stats.Failed)
	require.Equal(t, 12, ch.sent)

	now = now.Add(cfg.Build.Timeout * 2)
	stats = p.Update(ctx, cam)
	require.Equal(t, 6, stats.Failed)
	require.Zero(t, stats.Pending)
	require.Equal(t, 6, p.Tiles().Failed)
	require.False(t, p.Ready())

	stats = p.Update(ctx, cam)
	require.Zero(t, stats.Submitted)
	require.Equal(t, 12, ch.sent)
}

func TestPlanetFeatureFlags(t *testing.T) {
	ctx := context.Background()
	flags := featureflag.New([]string{
		string(featureflag.FlagDisableLOD),
		string(featureflag.FlagDisableCulling),
		string(featureflag.FlagDisableLighting),
	})
	p, _ := newTestPlanet(t, newTestConfig(), WithFeatureFlags(flags))
	require.NoError(t, p.Start(ctx))

	// Looking away from the planet.
	cam := render.NewPerspectiveCamera(mgl64.DegToRad(60), 1, 1, 100000)
	cam.Position = mgl64.Vec3{0, 0, 60}
	cam.LookAt(mgl64.Vec3{0, 0, 200})

	p.Update(ctx, cam)
	stats := p.Update(ctx, cam)
	require.Zero(t, stats.Submitted)
	require.Zero(t, stats.Tested)
	require.Equal(t, 6, stats.Visible)

	for _, f := range p.faces {
		require.Nil(t, f.Light)
	}
}

func TestPlanetTints(t *testing.T) {
	ctx := context.Background()
	cam := newTestCamera(mgl64.Vec3{0, 0, 1000})

	requireTints := func(t *testing.T, p *Planet, expected []mgl64.Vec3) {
		for _, f := range p.faces {
			require.Equal(t, expected, f.Tints)
		}

		require.NoError(t, p.Start(ctx))
		p.Update(ctx, cam)
		for _, root := range p.Tree().Roots() {
			require.True(t, root.Transformed)
			require.Contains(t, root.Node.ColorExpr().String(), expr.Vec3(expected[0]).String())
		}
	}

	t.Run("no tint", func(t *testing.T) {
		p, _ := newTestPlanet(t, newTestConfig())
		for _, f := range p.faces {
			require.Nil(t, f.Tints)
		}
	})

	t.Run("configured tint", func(t *testing.T) {
		cfg := newTestConfig()
		cfg.Tint = "#f00"
		p, _ := newTestPlanet(t, cfg)

		c, err := colors.HexToRGBA("#f00")
		require.NoError(t, err)

		tint := mgl64.Vec3(c)
		requireTints(t, p, []mgl64.Vec3{tint, tint, tint})
	})

	t.Run("random tint", func(t *testing.T) {
		cfg := newTestConfig()
		cfg.Tint = TintRandom
		p, _ := newTestPlanet(t, cfg, WithRand(rand.New(rand.NewSource(5))))

		c := colors.RandomRGB(rand.New(rand.NewSource(5)))
		tint := mgl64.Vec3{float64(c[0]) / 255, float64(c[1]) / 255, float64(c[2]) / 255}
		requireTints(t, p, []mgl64.Vec3{tint, tint, tint})
	})

	t.Run("debug level colors", func(t *testing.T) {
		flags := featureflag.New([]string{string(featureflag.FlagDebugLevelColors)})
		p, _ := newTestPlanet(t, newTestConfig(),
			WithFeatureFlags(flags),
			WithRand(rand.New(rand.NewSource(3))),
		)

		var expected []mgl64.Vec3
		for _, c := range colors.LevelColors(3, rand.New(rand.NewSource(3))) {
			expected = append(expected, mgl64.Vec3(c))
		}
		requireTints(t, p, expected)
	})
}

func TestPlanetFailsUntransformableTiles(t *testing.T) {
	ctx := context.Background()
	p, _ := newTestPlanet(t, newTestConfig())
	p.faces[quadtree.Front].Textures = nil

	require.NoError(t, p.Start(ctx))

	cam := newTestCamera(mgl64.Vec3{0, 0, 1000})
	stats := p.Update(ctx, cam)
	require.Equal(t, 6, stats.Completed)
	require.Equal(t, 5, stats.Transformed)
	require.Equal(t, 1, stats.Failed)
	require.Equal(t, 5, stats.Tested)
	require.Equal(t, 5, stats.Visible)

	front, _ := p.Tree().Tile(quadtree.Key{Side: quadtree.Front})
	require.Equal(t, quadtree.Failed, front.State)
	require.False(t, front.Transformed)
	require.False(t, front.Node.Visible())
	require.Nil(t, front.Node.PositionExpr())
	require.Equal(t, 1, p.Tiles().Failed)
	require.False(t, p.Ready())

	stats = p.Update(ctx, cam)
	require.Zero(t, stats.Failed)
	require.Zero(t, stats.Transformed)
	require.Zero(t, stats.Submitted)
	require.Equal(t, 5, stats.Visible)
}

func TestPlanetSphericalBounds(t *testing.T) {
	ctx := context.Background()

	cfg := newTestConfig()
	cfg.Spherical = true
	cfg.Radius = 80
	cfg.OuterFaces = []quadtree.Side{quadtree.Front}

	p, _ := newTestPlanet(t, cfg)
	require.NoError(t, p.Start(ctx))
	p.Update(ctx, newTestCamera(mgl64.Vec3{0, 0, 1000}))

	front, _ := p.Tree().Tile(quadtree.Key{Side: quadtree.Front})
	require.Equal(t, quadtree.Ready, front.State)
	require.InDelta(t, 80+cfg.DisplacementScale, front.Bounds.Max.Z(), 1e-6)
	require.InDelta(t, 0, front.Bounds.Center().X(), 1e-6)

	back, _ := p.Tree().Tile(quadtree.Key{Side: quadtree.Back})
	require.InDelta(t, -50-cfg.DisplacementScale, back.Bounds.Min.Z(), 1e-6)
}

func TestNewRejectsDegenerateConfigs(t *testing.T) {
	codec := newTestCodec(t)
	ch := newSyncChannel(t, codec)
	textures := render.NamedTextureSet(quadtree.ShortNames(), 1)

	t.Run("zero size", func(t *testing.T) {
		cfg := newTestConfig()
		cfg.Size = 0

		_, err := New(cfg, textures, ch, codec)
		require.True(t, errors.IsType(err, ErrTypeConfig))
	})

	t.Run("missing textures", func(t *testing.T) {
		_, err := New(newTestConfig(), render.TextureSet{}, ch, codec)
		require.True(t, errors.IsType(err, face.ErrTypeDegenerateConfig))
	})
}
