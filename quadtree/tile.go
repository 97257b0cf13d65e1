package quadtree

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/aukilabs/cubesphere/mathx"
	"github.com/aukilabs/cubesphere/render"
	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/go-gl/mathgl/mgl64"
)

const (
	ErrTypeBadKey = "bad_tile_key"
)

// State is the build state of a tile. A tile is transformed and culled only
// once Ready.
type State int

const (
	Unbuilt State = iota
	Building
	Ready
	Failed
)

func (s State) String() string {
	switch s {
	case Unbuilt:
		return "unbuilt"
	case Building:
		return "building"
	case Ready:
		return "ready"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Key identifies a tile.
type Key struct {
	Side  Side `json:"side"`
	Level int  `json:"level"`
	Index int  `json:"index"`
}

func (k Key) String() string {
	return fmt.Sprintf("%s/%d/%d", k.Side, k.Level, k.Index)
}

// ParseKey parses a key formatted by Key.String.
func ParseKey(s string) (Key, error) {
	parts := strings.Split(s, "/")
	if len(parts) != 3 {
		return Key{}, errors.New("bad tile key").
			WithType(ErrTypeBadKey).
			WithTag("key", s)
	}

	side, err := ParseSide(parts[0])
	if err != nil {
		return Key{}, errors.New("bad tile key").
			WithType(ErrTypeBadKey).
			WithTag("key", s).
			Wrap(err)
	}

	level, err := strconv.Atoi(parts[1])
	if err != nil {
		return Key{}, errors.New("bad tile level").
			WithType(ErrTypeBadKey).
			WithTag("key", s).
			Wrap(err)
	}

	idx, err := strconv.Atoi(parts[2])
	if err != nil {
		return Key{}, errors.New("bad tile index").
			WithType(ErrTypeBadKey).
			WithTag("key", s).
			Wrap(err)
	}

	return Key{Side: side, Level: level, Index: idx}, nil
}

// Tile is a node of a face quadtree.
type Tile struct {
	Key

	// The index of the level 0 tile this tile descends from.
	Root int

	Local LocalTransform

	// The UV footprint of the tile relative to its root tile.
	Scaling   float64
	HalfScale float64

	// The world edge length of the tile.
	Size float64

	// The planet center, where spherical displacement pivots.
	Pivot mgl64.Vec3

	// The render node owned by the tile.
	Node render.Node

	// The world bounding box of the tile geometry, set when the geometry is
	// built.
	Bounds mathx.Box3

	State State

	// Whether the face transform ran on the tile geometry.
	Transformed bool

	// Whether the tile is selected by the level of detail.
	Active bool

	Parent   *Tile
	Children []*Tile
}

func (t *Tile) IsLeaf() bool {
	return len(t.Children) == 0
}

// WorldPosition returns the world position of the tile center.
func (t *Tile) WorldPosition() mgl64.Vec3 {
	return mathx.Origin(t.Node.WorldMatrix())
}

// ChildrenReady reports whether every child of the tile is Ready.
func (t *Tile) ChildrenReady() bool {
	if t.IsLeaf() {
		return false
	}
	for _, c := range t.Children {
		if c.State != Ready {
			return false
		}
	}
	return true
}
