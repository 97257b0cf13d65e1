package expr

import (
	"math"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/go-gl/mathgl/mgl64"
)

// FuncLight is the name of the lighting function provided by the backend:
// light(color vec3, lightDir vec3, viewPoint vec3) vec3.
const FuncLight = "light"

// Light returns an expression that shades color with a fixed light direction
// and view point.
func Light(color Node, lightDir, viewPoint mgl64.Vec3) Node {
	return Call(FuncLight, 3, color, Vec3(lightDir), Vec3(viewPoint))
}

// LambertLight is a CPU rendition of the light function. It scales the color
// by the cosine between the light direction and the view-to-light direction,
// never going below an ambient floor.
func LambertLight(args []Value) (Value, error) {
	if len(args) != 3 || len(args[0]) != 3 || len(args[1]) != 3 || len(args[2]) != 3 {
		return nil, errors.New("light expects three vec3 arguments").
			WithTag("args", len(args))
	}

	color := args[0].Vec3()
	lightDir := args[1].Vec3()
	if lightDir.Len() == 0 {
		return Value{color[0], color[1], color[2]}, nil
	}

	toLight := lightDir.Sub(args[2].Vec3())
	if toLight.Len() == 0 {
		return Value{color[0], color[1], color[2]}, nil
	}

	intensity := math.Max(lightDir.Normalize().Dot(toLight.Normalize()), ambient)

	c := color.Mul(intensity)
	return Value{c[0], c[1], c[2]}, nil
}

const ambient = 0.2

// DefaultFuncs returns the functions understood by Eval out of the box.
func DefaultFuncs() map[string]Func {
	return map[string]Func{
		FuncLight: LambertLight,
	}
}
