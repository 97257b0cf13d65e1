package build

import (
	"context"
	"sort"
	"time"

	"github.com/aukilabs/cubesphere/mathx"
	"github.com/aukilabs/cubesphere/quadtree"
	"github.com/aukilabs/cubesphere/render"
	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/google/uuid"
)

const (
	ErrTypeSubmit    = "build_submit"
	ErrTypeBuildLost = "build_lost"
	ErrTypeBuildFail = "build_failed"
)

const (
	defaultTimeout    = 10 * time.Second
	defaultMaxRetries = 3
)

// Option configures a pipeline.
type Option func(*Pipeline)

// WithTimeout sets the time after which a build without result is considered
// lost.
func WithTimeout(d time.Duration) Option {
	return func(p *Pipeline) {
		p.timeout = d
	}
}

// WithMaxRetries sets how many times a lost or failed build is submitted
// again before its tile is marked as Failed.
func WithMaxRetries(n int) Option {
	return func(p *Pipeline) {
		p.maxRetries = n
	}
}

// WithBounds sets the function computing the world bounding box of a built
// tile. It defaults to the geometry box transformed by the tile world
// matrix.
func WithBounds(fn func(t *quadtree.Tile, g *render.Geometry) mathx.Box3) Option {
	return func(p *Pipeline) {
		p.bounds = fn
	}
}

// WithClock sets the function returning the current time.
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) {
		p.now = now
	}
}

type submission struct {
	ticket    string
	task      Task
	submitted time.Time
	deadline  time.Time
	retries   int
}

// Pipeline builds tile geometries in the background and swaps them into
// their tiles. It must be driven from a single goroutine: tiles are only
// mutated from Submit, Drain, OnComplete and Expire.
type Pipeline struct {
	tree    *quadtree.Tree
	channel Channel
	codec   *Codec

	timeout    time.Duration
	maxRetries int
	bounds     func(*quadtree.Tile, *render.Geometry) mathx.Box3
	now        func() time.Time

	pending map[quadtree.Key]*submission
}

func NewPipeline(tree *quadtree.Tree, ch Channel, codec *Codec, options ...Option) *Pipeline {
	p := &Pipeline{
		tree:       tree,
		channel:    ch,
		codec:      codec,
		timeout:    defaultTimeout,
		maxRetries: defaultMaxRetries,
		bounds: func(t *quadtree.Tile, g *render.Geometry) mathx.Box3 {
			return g.WorldBoundingBox(t.Node.WorldMatrix())
		},
		now:     time.Now,
		pending: make(map[quadtree.Key]*submission),
	}

	for _, o := range options {
		o(p)
	}
	return p
}

// Submit sends the build of a tile to the workers and marks the tile as
// Building. Submitting a tile that is already building supersedes the
// previous submission.
func (p *Pipeline) Submit(ctx context.Context, tile *quadtree.Tile, task Task) error {
	if err := p.send(ctx, tile, task, 0); err != nil {
		return err
	}
	instrumentSubmit(tile.Side.String())
	return nil
}

func (p *Pipeline) send(ctx context.Context, tile *quadtree.Tile, task Task, retries int) error {
	task.Key = tile.Key.String()
	task.Ticket = uuid.NewString()

	msg, err := p.codec.EncodeTask(task)
	if err != nil {
		return errors.New("encoding build task failed").
			WithType(ErrTypeSubmit).
			WithTag("tile", task.Key).
			Wrap(err)
	}

	if err := p.channel.Send(ctx, msg); err != nil {
		return errors.New("sending build task failed").
			WithType(ErrTypeSubmit).
			WithTag("tile", task.Key).
			Wrap(err)
	}

	now := p.now()
	p.pending[tile.Key] = &submission{
		ticket:    task.Ticket,
		task:      task,
		submitted: now,
		deadline:  now.Add(p.timeout),
		retries:   retries,
	}
	tile.State = quadtree.Building
	instrumentPending(len(p.pending))
	return nil
}

// Pending returns the number of builds waiting for their result.
func (p *Pipeline) Pending() int {
	return len(p.pending)
}

// Drain applies every result received so far without blocking. It returns
// the tiles that became Ready, and the errors of builds that failed for good.
func (p *Pipeline) Drain(ctx context.Context) ([]*quadtree.Tile, []error) {
	var ready []*quadtree.Tile
	var errs []error

	for {
		select {
		case msg, ok := <-p.channel.Results():
			if !ok {
				return ready, errs
			}

			tile, applied, err := p.handle(ctx, msg)
			if err != nil {
				errs = append(errs, err)
			}
			if applied {
				ready = append(ready, tile)
			}

		default:
			return ready, errs
		}
	}
}

func (p *Pipeline) handle(ctx context.Context, msg []byte) (*quadtree.Tile, bool, error) {
	res, err := p.codec.DecodeResult(msg)
	if err != nil {
		logs.Warn(errors.New("dropping undecodable build result").Wrap(err))
		instrumentIgnored(ignoredUndecoded)
		return nil, false, nil
	}

	key, err := quadtree.ParseKey(res.Key)
	if err != nil {
		instrumentIgnored(ignoredUnknown)
		return nil, false, nil
	}

	tile, ok := p.tree.Tile(key)
	if !ok {
		instrumentIgnored(ignoredUnknown)
		return nil, false, nil
	}

	if res.Error != "" {
		sub, ok := p.pending[tile.Key]
		if !ok || sub.ticket != res.Ticket {
			instrumentIgnored(ignoredStale)
			return tile, false, nil
		}

		cause := errors.New(res.Error).WithType(ErrTypeBuildFail)
		return tile, false, p.retry(ctx, tile, sub, cause)
	}

	applied, err := p.OnComplete(tile, res)
	if err != nil {
		sub, ok := p.pending[tile.Key]
		if !ok {
			return tile, false, err
		}
		return tile, false, p.retry(ctx, tile, sub, err)
	}
	return tile, applied, nil
}

// OnComplete swaps a built geometry into its tile. It applies a result at
// most once per submission: results of superseded submissions and repeated
// results are ignored. The geometry, material and bounds of the tile are only
// assigned once all of them are computed.
func (p *Pipeline) OnComplete(tile *quadtree.Tile, res Result) (bool, error) {
	sub, ok := p.pending[tile.Key]
	if !ok || sub.ticket != res.Ticket {
		logs.WithTag("tile", tile.Key.String()).
			WithTag("ticket", res.Ticket).
			Debug("ignoring stale build result")
		instrumentIgnored(ignoredStale)
		return false, nil
	}

	geometry, err := render.NewGeometry(res.Positions, res.Normals, res.UVs, res.Indices)
	if err != nil {
		return false, errors.New("building tile geometry failed").
			WithType(ErrTypeBuildFail).
			WithTag("tile", tile.Key.String()).
			Wrap(err)
	}

	bounds := p.bounds(tile, geometry)

	var material render.Material
	if m := tile.Node.Material(); m != nil {
		material = m.Clone()
	}

	tile.Node.SetGeometry(geometry)
	if material != nil {
		tile.Node.SetMaterial(material)
	}
	tile.Bounds = bounds
	tile.State = quadtree.Ready
	tile.Transformed = false

	delete(p.pending, tile.Key)
	instrumentPending(len(p.pending))
	instrumentCompletion(tile.Side.String(), sub.submitted, p.now())
	return true, nil
}

// Expire submits again the builds whose result did not arrive in time. Tiles
// whose builds exhausted their retries are marked as Failed and reported with
// an ErrTypeBuildLost error.
func (p *Pipeline) Expire(ctx context.Context) []error {
	now := p.now()

	var expired []quadtree.Key
	for k, sub := range p.pending {
		if now.After(sub.deadline) {
			expired = append(expired, k)
		}
	}
	sort.Slice(expired, func(i, j int) bool {
		return expired[i].String() < expired[j].String()
	})

	var errs []error
	for _, k := range expired {
		tile, _ := p.tree.Tile(k)
		sub := p.pending[k]

		cause := errors.New("build result did not arrive in time").
			WithType(ErrTypeBuildLost).
			WithTag("timeout", p.timeout.String())

		if err := p.retry(ctx, tile, sub, cause); err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}

func (p *Pipeline) retry(ctx context.Context, tile *quadtree.Tile, sub *submission, cause error) error {
	if sub.retries < p.maxRetries {
		logs.WithTag("tile", tile.Key.String()).
			WithTag("retry", sub.retries+1).
			WithTag("cause", cause.Error()).
			Info("retrying tile build")

		err := p.send(ctx, tile, sub.task, sub.retries+1)
		if err == nil {
			instrumentRetry(tile.Side.String())
			return nil
		}
		cause = err
	}

	delete(p.pending, tile.Key)
	tile.State = quadtree.Failed
	instrumentPending(len(p.pending))

	err := errors.New("tile build lost").
		WithType(ErrTypeBuildLost).
		WithTag("tile", tile.Key.String()).
		WithTag("retries", sub.retries).
		Wrap(cause)
	instrumentFailure(tile.Side.String(), err)
	return err
}
