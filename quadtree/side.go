package quadtree

import (
	"math"
	"strings"

	"github.com/aukilabs/cubesphere/mathx"
	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/go-gl/mathgl/mgl64"
)

const (
	ErrTypeUnknownSide = "unknown_side"
)

// Side identifies one of the six cube faces. The order is the cube map order
// used by texture sets.
type Side int

const (
	Right Side = iota
	Left
	Top
	Bottom
	Front
	Back
)

// Sides lists every face in cube map order.
var Sides = [6]Side{Right, Left, Top, Bottom, Front, Back}

var sideNames = [6]string{"right", "left", "top", "bottom", "front", "back"}

var sideShortNames = [6]string{"r", "l", "t", "bo", "f", "b"}

// ShortNames returns the short face names in cube map order. They prefix the
// face texture files.
func ShortNames() [6]string {
	return sideShortNames
}

func (s Side) String() string {
	if !s.Valid() {
		return "unknown"
	}
	return sideNames[s]
}

func (s Side) Short() string {
	if !s.Valid() {
		return "?"
	}
	return sideShortNames[s]
}

func (s Side) Valid() bool {
	return s >= Right && s <= Back
}

// ParseSide returns the side matching a long or short face name.
func ParseSide(name string) (Side, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for _, s := range Sides {
		if name == sideNames[s] || name == sideShortNames[s] {
			return s, nil
		}
	}
	return 0, errors.New("unknown side").
		WithType(ErrTypeUnknownSide).
		WithTag("side", name)
}

func (s Side) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Side) UnmarshalText(b []byte) error {
	side, err := ParseSide(string(b))
	if err != nil {
		return err
	}
	*s = side
	return nil
}

// Rotation returns the rotation bringing the front face, which lies in the
// XY plane facing +Z, onto the face.
func (s Side) Rotation() mathx.Euler {
	switch s {
	case Right:
		return mathx.Euler{Y: math.Pi / 2}
	case Left:
		return mathx.Euler{Y: -math.Pi / 2}
	case Top:
		return mathx.Euler{X: -math.Pi / 2}
	case Bottom:
		return mathx.Euler{X: math.Pi / 2}
	case Back:
		return mathx.Euler{Y: math.Pi}
	default:
		return mathx.Euler{}
	}
}

// Normal returns the outward unit normal of the face.
func (s Side) Normal() mgl64.Vec3 {
	switch s {
	case Right:
		return mgl64.Vec3{1, 0, 0}
	case Left:
		return mgl64.Vec3{-1, 0, 0}
	case Top:
		return mgl64.Vec3{0, 1, 0}
	case Bottom:
		return mgl64.Vec3{0, -1, 0}
	case Back:
		return mgl64.Vec3{0, 0, -1}
	default:
		return mgl64.Vec3{0, 0, 1}
	}
}
