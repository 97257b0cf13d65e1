package planet

import (
	_ "embed"
	"os"
	"time"

	"github.com/aukilabs/cubesphere/colors"
	"github.com/aukilabs/cubesphere/mathx"
	"github.com/aukilabs/cubesphere/quadtree"
	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/segmentio/encoding/json"
	"gopkg.in/yaml.v3"
)

const (
	ErrTypeConfig = "planet_config"

	// TintRandom picks a random tint when the planet is created.
	TintRandom = "random"

	// Limits of the quadtree a config can describe. Tile records are all
	// allocated when the planet is created.
	MaxDimensions = 64
	MaxLevels     = 12
	MaxTiles      = 1 << 20
)

//go:embed schemas/config.schema.json
var configSchemaSource string

var configSchema = jsonschema.MustCompileString("config.schema.json", configSchemaSource)

// Config describes a planet.
type Config struct {
	Name   string     `yaml:"name"`
	Center mgl64.Vec3 `yaml:"center"`

	// The cube width in world units.
	Size float64 `yaml:"size"`

	// The number of segments along each edge of a tile geometry.
	PolyCount int `yaml:"poly_count"`

	// The number of root tiles along each edge of a face.
	Dimensions int  `yaml:"dimensions"`
	Levels     int  `yaml:"levels"`
	Tiled      bool `yaml:"tiled"`

	Spherical         bool    `yaml:"spherical"`
	Radius            float64 `yaml:"radius"`
	DisplacementScale float64 `yaml:"displacement_scale"`

	// A tile is split when the camera is closer than its size times this
	// offset.
	LODDistanceOffset float64 `yaml:"lod_distance_offset"`

	// The faces projected on the sphere of the planet radius.
	OuterFaces []quadtree.Side `yaml:"outer_faces"`

	// The light direction. Nil disables lighting.
	Light *mgl64.Vec3 `yaml:"light"`

	// A "#rgb" or "#rrggbb" color multiplied with the sampled colors, or
	// TintRandom.
	Tint string `yaml:"tint"`

	Build BuildConfig `yaml:"build"`
}

type BuildConfig struct {
	Timeout    time.Duration `yaml:"timeout"`
	MaxRetries int           `yaml:"max_retries"`
	Workers    int           `yaml:"workers"`
	QueueSize  int           `yaml:"queue_size"`
}

// DefaultConfig returns the config of the default planet.
func DefaultConfig() Config {
	return Config{
		Name:              "terranox",
		Size:              10000,
		PolyCount:         30,
		Dimensions:        1,
		Levels:            5,
		Spherical:         true,
		Radius:            80000,
		DisplacementScale: 80.5,
		LODDistanceOffset: 12.4,
		OuterFaces:        append([]quadtree.Side(nil), quadtree.Sides[:]...),
		Light:             &mgl64.Vec3{0, 8, 8},
		Build: BuildConfig{
			Timeout:    10 * time.Second,
			MaxRetries: 3,
			Workers:    4,
			QueueSize:  256,
		},
	}
}

// IsOuter reports whether a face is projected on the planet sphere.
func (c Config) IsOuter(side quadtree.Side) bool {
	for _, s := range c.OuterFaces {
		if s == side {
			return true
		}
	}
	return false
}

// IsTiled reports whether each root tile owns its textures.
func (c Config) IsTiled() bool {
	return c.Tiled && c.Dimensions > 1
}

// Validate reports a config that can't build a planet.
func (c Config) Validate() error {
	switch {
	case !mathx.IsFinite(c.Size) || c.Size <= 0:
		return errors.New("size must be positive and finite").
			WithType(ErrTypeConfig).
			WithTag("size", c.Size)

	case c.PolyCount < 1:
		return errors.New("poly count must be positive").
			WithType(ErrTypeConfig).
			WithTag("poly_count", c.PolyCount)

	case c.Dimensions < 1:
		return errors.New("dimensions must be positive").
			WithType(ErrTypeConfig).
			WithTag("dimensions", c.Dimensions)

	case c.Dimensions > MaxDimensions:
		return errors.New("too many dimensions").
			WithType(ErrTypeConfig).
			WithTag("dimensions", c.Dimensions).
			WithTag("max", MaxDimensions)

	case c.Levels < 1:
		return errors.New("levels must be positive").
			WithType(ErrTypeConfig).
			WithTag("levels", c.Levels)

	case c.Levels > MaxLevels:
		return errors.New("too many levels").
			WithType(ErrTypeConfig).
			WithTag("levels", c.Levels).
			WithTag("max", MaxLevels)

	case quadtree.TileCount(c.Dimensions, c.Levels) > MaxTiles:
		return errors.New("too many tiles").
			WithType(ErrTypeConfig).
			WithTag("dimensions", c.Dimensions).
			WithTag("levels", c.Levels).
			WithTag("tiles", quadtree.TileCount(c.Dimensions, c.Levels)).
			WithTag("max", MaxTiles)

	case !mathx.IsFinite(c.Center[:]...):
		return errors.New("center must be finite").
			WithType(ErrTypeConfig)

	case !mathx.IsFinite(c.Radius, c.DisplacementScale):
		return errors.New("radius and displacement scale must be finite").
			WithType(ErrTypeConfig)

	case c.Spherical && len(c.OuterFaces) > 0 && c.Radius <= 0:
		return errors.New("radius must be positive").
			WithType(ErrTypeConfig).
			WithTag("radius", c.Radius)

	case !mathx.IsFinite(c.LODDistanceOffset) || c.LODDistanceOffset <= 0:
		return errors.New("lod distance offset must be positive").
			WithType(ErrTypeConfig).
			WithTag("lod_distance_offset", c.LODDistanceOffset)

	case c.Light != nil && !mathx.IsFinite(c.Light[:]...):
		return errors.New("light must be finite").
			WithType(ErrTypeConfig)

	case c.Build.Timeout <= 0:
		return errors.New("build timeout must be positive").
			WithType(ErrTypeConfig).
			WithTag("timeout", c.Build.Timeout.String())

	case c.Build.MaxRetries < 0:
		return errors.New("build retries must not be negative").
			WithType(ErrTypeConfig).
			WithTag("max_retries", c.Build.MaxRetries)

	case c.Build.Workers < 1:
		return errors.New("build workers must be positive").
			WithType(ErrTypeConfig).
			WithTag("workers", c.Build.Workers)

	case c.Build.QueueSize < 1:
		return errors.New("build queue size must be positive").
			WithType(ErrTypeConfig).
			WithTag("queue_size", c.Build.QueueSize)
	}

	if c.Tint != "" && c.Tint != TintRandom {
		if _, err := colors.HexToRGBA(c.Tint); err != nil {
			return errors.New("invalid tint").
				WithType(ErrTypeConfig).
				WithTag("tint", c.Tint).
				Wrap(err)
		}
	}

	for _, s := range c.OuterFaces {
		if !s.Valid() {
			return errors.New("unknown outer face").
				WithType(ErrTypeConfig).
				WithTag("side", int(s))
		}
	}
	return nil
}

// Load reads a YAML planet config. Fields missing from the file keep their
// default value.
func Load(path string) (Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, errors.New("reading planet config failed").
			WithType(ErrTypeConfig).
			WithTag("path", path).
			Wrap(err)
	}
	return Parse(b)
}

// Parse decodes and validates a YAML planet config.
func Parse(b []byte) (Config, error) {
	doc, err := toJSONDocument(b)
	if err != nil {
		return Config{}, errors.New("parsing planet config failed").
			WithType(ErrTypeConfig).
			Wrap(err)
	}

	if doc != nil {
		if err := configSchema.Validate(doc); err != nil {
			return Config{}, errors.New("planet config does not match its schema").
				WithType(ErrTypeConfig).
				Wrap(err)
		}
	}

	c := DefaultConfig()
	if err := yaml.Unmarshal(b, &c); err != nil {
		return Config{}, errors.New("decoding planet config failed").
			WithType(ErrTypeConfig).
			Wrap(err)
	}

	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// toJSONDocument decodes YAML into the generic values understood by the
// schema validator.
func toJSONDocument(b []byte) (any, error) {
	var doc any
	if err := yaml.Unmarshal(b, &doc); err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, nil
	}

	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, err
	}

	var res any
	if err := json.Unmarshal(raw, &res); err != nil {
		return nil, err
	}
	return res, nil
}
