// Package planet drives the tiles of a cube-sphere planet: it builds their
// geometry in the background, transforms them onto their face, selects their
// level of detail and culls them.
package planet

import (
	"context"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/aukilabs/cubesphere/build"
	"github.com/aukilabs/cubesphere/colors"
	"github.com/aukilabs/cubesphere/culling"
	"github.com/aukilabs/cubesphere/face"
	"github.com/aukilabs/cubesphere/featureflag"
	"github.com/aukilabs/cubesphere/mathx"
	"github.com/aukilabs/cubesphere/quadtree"
	"github.com/aukilabs/cubesphere/render"
	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/google/uuid"
)

// Option configures a planet.
type Option func(*Planet)

func WithFeatureFlags(f featureflag.FeatureFlag) Option {
	return func(p *Planet) {
		p.flags = f
	}
}

// WithMaterial sets the material the tiles are drawn with. Each tile gets its
// own copy once its geometry is built.
func WithMaterial(m render.Material) Option {
	return func(p *Planet) {
		p.material = m
	}
}

// WithRand sets the random source of the random tints.
func WithRand(r *rand.Rand) Option {
	return func(p *Planet) {
		p.rand = r
	}
}

// WithPipelineOptions adds options to the geometry build pipeline. They
// override the ones derived from the config.
func WithPipelineOptions(options ...build.Option) Option {
	return func(p *Planet) {
		p.pipelineOptions = append(p.pipelineOptions, options...)
	}
}

// FrameStats reports what happened during a frame.
type FrameStats struct {
	Frame       uint64        `json:"frame"`
	Completed   int           `json:"completed"`
	Transformed int           `json:"transformed"`
	Submitted   int           `json:"submitted"`
	Failed      int           `json:"failed"`
	Pending     int           `json:"pending"`
	Active      int           `json:"active"`
	Tested      int           `json:"tested"`
	Visible     int           `json:"visible"`
	Duration    time.Duration `json:"duration"`
}

// TileStats counts the tiles of a planet by state.
type TileStats struct {
	Total    int `json:"total"`
	Unbuilt  int `json:"unbuilt"`
	Building int `json:"building"`
	Ready    int `json:"ready"`
	Failed   int `json:"failed"`
	Active   int `json:"active"`
	Visible  int `json:"visible"`

	// Whether every root tile is Ready.
	RootsReady bool `json:"roots_ready"`
}

type MetaData struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	Center     mgl64.Vec3 `json:"center"`
	Radius     float64    `json:"radius"`
	Size       float64    `json:"size"`
	Dimensions int        `json:"dimensions"`
	Levels     int        `json:"levels"`
	Tiles      TileStats  `json:"tiles"`
}

// Planet owns the quadtrees of the six faces of a planet. Start and Update
// must be called from the same goroutine. Stats accessors are safe for
// concurrent use.
type Planet struct {
	id     string
	config Config

	tree     *quadtree.Tree
	faces    [6]face.Config
	pipeline *build.Pipeline
	culler   culling.Culler

	flags           featureflag.FeatureFlag
	material        render.Material
	rand            *rand.Rand
	pipelineOptions []build.Option
	frame           uint64

	mutex     sync.RWMutex
	lastFrame FrameStats
	tiles     TileStats
}

// New creates a planet whose tile geometries are built through ch. Textures
// are looked up by face, then by root tile when the config is tiled.
func New(cfg Config, textures render.TextureSet, ch build.Channel, codec *build.Codec, options ...Option) (*Planet, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	p := &Planet{
		id:     uuid.NewString(),
		config: cfg,
		material: &render.BasicMaterial{
			ID:    cfg.Name,
			Color: mgl64.Vec3{1, 1, 1},
		},
		rand: rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for _, o := range options {
		o(p)
	}

	tints, err := p.tints()
	if err != nil {
		return nil, err
	}

	p.culler.Disabled = p.flags.IsSet(featureflag.FlagDisableCulling)

	tiled := cfg.IsTiled()
	table := quadtree.NewTable(cfg.Dimensions, cfg.Levels, 1)
	p.tree = quadtree.NewTree(table, quadtree.TreeOptions{
		Center: cfg.Center,
		Scale:  cfg.Size,
		Tiled:  tiled,
		NewNode: func(k quadtree.Key, world mgl64.Mat4) render.Node {
			return render.NewMesh(k.String(), world, p.material)
		},
	})

	starting := 1.0
	if tiled {
		starting /= float64(cfg.Dimensions)
	}

	var light *face.Light
	if cfg.Light != nil && !p.flags.IsSet(featureflag.FlagDisableLighting) {
		light = &face.Light{Direction: *cfg.Light}
	}

	for _, side := range quadtree.Sides {
		fc := face.Config{
			Center:            cfg.Center,
			Position:          face.Anchor(cfg.Center, side, 1, cfg.Size),
			Tiled:             tiled,
			Table:             table,
			Scale:             cfg.Size,
			Starting:          starting,
			Spherical:         cfg.Spherical,
			Outer:             cfg.IsOuter(side),
			Radius:            cfg.Radius,
			DisplacementScale: cfg.DisplacementScale,
			Textures:          textures[side],
			Tints:             tints,
			Light:             light,
		}

		if err := fc.Validate(); err != nil {
			return nil, errors.New("invalid face").
				WithType(face.ErrTypeDegenerateConfig).
				WithTag("side", side.String()).
				Wrap(err)
		}
		p.faces[side] = fc
	}

	pipelineOptions := append([]build.Option{
		build.WithTimeout(cfg.Build.Timeout),
		build.WithMaxRetries(cfg.Build.MaxRetries),
		build.WithBounds(p.bounds),
	}, p.pipelineOptions...)
	p.pipeline = build.NewPipeline(p.tree, ch, codec, pipelineOptions...)

	p.refreshTiles()
	return p, nil
}

// Tree returns the quadtree of the planet.
func (p *Planet) Tree() *quadtree.Tree {
	return p.tree
}

// Start submits the geometry builds of the root tiles. Deeper tiles are built
// when the level of detail needs them.
func (p *Planet) Start(ctx context.Context) error {
	defer p.refreshTiles()

	for _, t := range p.tree.Roots() {
		if t.State != quadtree.Unbuilt {
			continue
		}
		if err := p.submit(ctx, t); err != nil {
			return err
		}
	}

	logs.WithTag("planet", p.config.Name).
		WithTag("id", p.id).
		WithTag("tiles", p.tree.Count()).
		WithTag("flags", p.flags.Names()).
		Info("planet started")
	return nil
}

func (p *Planet) submit(ctx context.Context, t *quadtree.Tile) error {
	return p.pipeline.Submit(ctx, t, build.Task{
		Width:          t.Size,
		Height:         t.Size,
		WidthSegments:  p.config.PolyCount,
		HeightSegments: p.config.PolyCount,
	})
}

// Update runs a frame: it swaps built geometries into their tiles, runs the
// face transform of the tiles that became Ready, failing the tiles it can't
// transform, resubmits lost builds,
// selects the level of detail for the camera and culls the tiles outside of
// its view.
func (p *Planet) Update(ctx context.Context, cam render.Camera) FrameStats {
	start := time.Now()
	p.frame++
	stats := FrameStats{Frame: p.frame}

	ready, errs := p.pipeline.Drain(ctx)
	stats.Completed = len(ready)
	for _, err := range errs {
		logs.Warn(err)
		stats.Failed++
	}

	for _, t := range ready {
		if t.Transformed {
			continue
		}
		if _, err := face.Apply(t, p.faces[t.Side]); err != nil {
			logs.Warn(errors.New("transforming tile failed").
				WithTag("tile", t.Key.String()).
				Wrap(err))
			t.State = quadtree.Failed
			t.Node.SetVisible(false)
			stats.Failed++
			continue
		}
		stats.Transformed++
	}

	for _, err := range p.pipeline.Expire(ctx) {
		logs.Warn(err)
		stats.Failed++
	}

	eye := cam.WorldPosition()
	for _, root := range p.tree.Roots() {
		stats.Submitted += p.selectLOD(ctx, root, eye)
	}

	var tiles []*quadtree.Tile
	p.tree.Walk(func(t *quadtree.Tile) bool {
		tiles = append(tiles, t)
		if t.Active {
			stats.Active++
		}
		return true
	})
	stats.Tested, stats.Visible = p.culler.Cull(culling.FromCamera(cam), tiles)

	stats.Pending = p.pipeline.Pending()
	stats.Duration = time.Since(start)

	p.mutex.Lock()
	p.lastFrame = stats
	p.mutex.Unlock()

	p.refreshTiles()
	instrumentFrame(stats)
	return stats
}

// selectLOD activates t, or its descendants when the camera is close enough
// and they are built. Missing children are submitted. A tile stays active
// until all its children are Ready. It returns the number of submitted
// builds.
func (p *Planet) selectLOD(ctx context.Context, t *quadtree.Tile, eye mgl64.Vec3) int {
	var submitted int
	if t.State == quadtree.Unbuilt && p.trySubmit(ctx, t) {
		submitted++
	}

	t.Active = true
	if t.IsLeaf() ||
		t.State != quadtree.Ready ||
		p.flags.IsSet(featureflag.FlagDisableLOD) ||
		!p.shouldSplit(t, eye) {
		deactivate(t.Children)
		return submitted
	}

	for _, c := range t.Children {
		if c.State == quadtree.Unbuilt && p.trySubmit(ctx, c) {
			submitted++
		}
	}

	if !t.ChildrenReady() {
		deactivate(t.Children)
		return submitted
	}

	t.Active = false
	for _, c := range t.Children {
		submitted += p.selectLOD(ctx, c, eye)
	}
	return submitted
}

// tints returns the color multipliers of each level, or nil when tiles are
// not tinted.
func (p *Planet) tints() ([]mgl64.Vec3, error) {
	debug := p.flags.IsSet(featureflag.FlagDebugLevelColors)
	if p.config.Tint == "" && !debug {
		return nil, nil
	}

	tint := mgl64.Vec3{1, 1, 1}
	switch p.config.Tint {
	case "":
	case TintRandom:
		c := colors.RandomRGB(p.rand)
		tint = mgl64.Vec3{float64(c[0]) / 255, float64(c[1]) / 255, float64(c[2]) / 255}
	default:
		c, err := colors.HexToRGBA(p.config.Tint)
		if err != nil {
			return nil, errors.New("invalid tint").
				WithType(ErrTypeConfig).
				WithTag("tint", p.config.Tint).
				Wrap(err)
		}
		tint = mgl64.Vec3(c)
	}

	tints := make([]mgl64.Vec3, p.config.Levels)
	for i := range tints {
		tints[i] = tint
	}

	if debug {
		for i, c := range colors.LevelColors(p.config.Levels, p.rand) {
			tints[i] = mgl64.Vec3{tint[0] * c[0], tint[1] * c[1], tint[2] * c[2]}
		}
	}
	return tints, nil
}

func (p *Planet) trySubmit(ctx context.Context, t *quadtree.Tile) bool {
	if err := p.submit(ctx, t); err != nil {
		logs.Warn(err)
		return false
	}
	return true
}

func (p *Planet) shouldSplit(t *quadtree.Tile, eye mgl64.Vec3) bool {
	center := t.WorldPosition()
	if !t.Bounds.IsEmpty() {
		center = t.Bounds.Center()
	}
	return eye.Sub(center).Len() < t.Size*p.config.LODDistanceOffset
}

func deactivate(tiles []*quadtree.Tile) {
	for _, t := range tiles {
		t.Active = false
		deactivate(t.Children)
	}
}

// bounds returns the world box enclosing a tile once displaced. Outer faces
// of spherical planets are projected on the planet sphere.
func (p *Planet) bounds(t *quadtree.Tile, g *render.Geometry) mathx.Box3 {
	world := t.Node.WorldMatrix()
	pad := math.Abs(p.config.DisplacementScale)

	if !p.config.Spherical || !p.config.IsOuter(t.Side) {
		b := g.WorldBoundingBox(world)
		b.ExpandByScalar(pad)
		return b
	}

	b := mathx.EmptyBox3()
	for i := 0; i < g.VertexCount(); i++ {
		v := mgl64.TransformCoordinate(g.Position(i), world)
		b.ExpandByPoint(mathx.ProjectOntoSphere(v, p.config.Radius, p.config.Center))
	}
	b.ExpandByScalar(pad)
	return b
}

func (p *Planet) refreshTiles() {
	stats := TileStats{RootsReady: true}

	p.tree.Walk(func(t *quadtree.Tile) bool {
		stats.Total++
		switch t.State {
		case quadtree.Unbuilt:
			stats.Unbuilt++
		case quadtree.Building:
			stats.Building++
		case quadtree.Ready:
			stats.Ready++
		case quadtree.Failed:
			stats.Failed++
		}
		if t.Active {
			stats.Active++
		}
		if t.Node.Visible() {
			stats.Visible++
		}
		if t.Level == 0 && t.State != quadtree.Ready {
			stats.RootsReady = false
		}
		return true
	})

	p.mutex.Lock()
	p.tiles = stats
	p.mutex.Unlock()

	instrumentTiles(stats)
}

// LastFrame returns the stats of the last frame.
func (p *Planet) LastFrame() FrameStats {
	p.mutex.RLock()
	defer p.mutex.RUnlock()
	return p.lastFrame
}

// Tiles returns the tile counts as of the last frame.
func (p *Planet) Tiles() TileStats {
	p.mutex.RLock()
	defer p.mutex.RUnlock()
	return p.tiles
}

// Ready reports whether every root tile is built.
func (p *Planet) Ready() bool {
	return p.Tiles().RootsReady
}

func (p *Planet) MetaData() MetaData {
	return MetaData{
		ID:         p.id,
		Name:       p.config.Name,
		Center:     p.config.Center,
		Radius:     p.config.Radius,
		Size:       p.config.Size,
		Dimensions: p.config.Dimensions,
		Levels:     p.config.Levels,
		Tiles:      p.Tiles(),
	}
}
