// Package expr describes the shader expressions handed to the rendering
// backend.
//
// An expression is an immutable graph of nodes. The backend compiles it into
// its own shading language; String renders a GLSL-like form useful for logs
// and tests, and Eval computes the value on the CPU for a given set of
// attribute bindings.
package expr

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/go-gl/mathgl/mgl64"
)

const (
	ErrTypeEval = "expr_eval"
)

// Attribute names bound by the renderer for each vertex.
const (
	AttrUV            = "uv"
	AttrPositionLocal = "positionLocal"
	AttrNormalLocal   = "normalLocal"
)

// Value is the result of an evaluation. Its length is the node dimension.
type Value []float64

func (v Value) Vec2() mgl64.Vec2 {
	var r mgl64.Vec2
	copy(r[:], v)
	return r
}

func (v Value) Vec3() mgl64.Vec3 {
	var r mgl64.Vec3
	copy(r[:], v)
	return r
}

// Node is a side-effect-free expression.
type Node interface {
	// Dim returns the number of components of the node value (1 to 4).
	Dim() int

	String() string

	Eval(env *Env) (Value, error)
}

// Func is a function callable from a Call node.
type Func func(args []Value) (Value, error)

// Env carries what an expression needs to be evaluated on the CPU.
type Env struct {
	Attributes map[string]Value
	Sample     func(texture string, uv mgl64.Vec2) mgl64.Vec4
	Funcs      map[string]Func
}

type constant struct {
	value Value
}

func Float(v float64) Node {
	return constant{value: Value{v}}
}

func Vec2(v mgl64.Vec2) Node {
	return constant{value: Value{v[0], v[1]}}
}

func Vec3(v mgl64.Vec3) Node {
	return constant{value: Value{v[0], v[1], v[2]}}
}

func (c constant) Dim() int {
	return len(c.value)
}

func (c constant) String() string {
	parts := make([]string, len(c.value))
	for i, v := range c.value {
		parts[i] = strconv.FormatFloat(v, 'g', -1, 64)
	}
	if len(parts) == 1 {
		return parts[0]
	}
	return fmt.Sprintf("vec%d(%s)", len(parts), strings.Join(parts, ", "))
}

func (c constant) Eval(env *Env) (Value, error) {
	return append(Value(nil), c.value...), nil
}

type attribute struct {
	name string
	dim  int
}

func UV() Node {
	return attribute{name: AttrUV, dim: 2}
}

func PositionLocal() Node {
	return attribute{name: AttrPositionLocal, dim: 3}
}

func NormalLocal() Node {
	return attribute{name: AttrNormalLocal, dim: 3}
}

func (a attribute) Dim() int {
	return a.dim
}

func (a attribute) String() string {
	return a.name
}

func (a attribute) Eval(env *Env) (Value, error) {
	v, ok := env.Attributes[a.name]
	if !ok || len(v) != a.dim {
		return nil, errors.New("attribute is not bound").
			WithType(ErrTypeEval).
			WithTag("attribute", a.name).
			WithTag("dim", a.dim)
	}
	return append(Value(nil), v...), nil
}

type sample struct {
	texture string
	uv      Node
}

// Texture samples the named texture at uv. It yields a vec4.
func Texture(texture string, uv Node) Node {
	return sample{texture: texture, uv: uv}
}

func (s sample) Dim() int {
	return 4
}

func (s sample) String() string {
	return fmt.Sprintf("texture(%s, %s)", s.texture, s.uv)
}

func (s sample) Eval(env *Env) (Value, error) {
	if env.Sample == nil {
		return nil, errors.New("no texture sampler").
			WithType(ErrTypeEval).
			WithTag("texture", s.texture)
	}

	uv, err := s.uv.Eval(env)
	if err != nil {
		return nil, err
	}

	v := env.Sample(s.texture, uv.Vec2())
	return Value{v[0], v[1], v[2], v[3]}, nil
}

type swizzle struct {
	x          Node
	components string
}

var swizzleIndex = map[rune]int{
	'x': 0, 'y': 1, 'z': 2, 'w': 3,
	'r': 0, 'g': 1, 'b': 2, 'a': 3,
}

// Swizzle selects components of x, e.g. "r", "xyz" or "w".
func Swizzle(x Node, components string) Node {
	return swizzle{x: x, components: components}
}

func (s swizzle) Dim() int {
	return len(s.components)
}

func (s swizzle) String() string {
	return fmt.Sprintf("%s.%s", s.x, s.components)
}

func (s swizzle) Eval(env *Env) (Value, error) {
	v, err := s.x.Eval(env)
	if err != nil {
		return nil, err
	}

	res := make(Value, 0, len(s.components))
	for _, c := range s.components {
		i, ok := swizzleIndex[c]
		if !ok || i >= len(v) {
			return nil, errors.New("invalid swizzle").
				WithType(ErrTypeEval).
				WithTag("components", s.components).
				WithTag("dim", len(v))
		}
		res = append(res, v[i])
	}
	return res, nil
}

type binary struct {
	op   byte
	a, b Node
}

func Add(a, b Node) Node {
	return binary{op: '+', a: a, b: b}
}

func Sub(a, b Node) Node {
	return binary{op: '-', a: a, b: b}
}

func Mul(a, b Node) Node {
	return binary{op: '*', a: a, b: b}
}

func (n binary) Dim() int {
	return max(n.a.Dim(), n.b.Dim())
}

func (n binary) String() string {
	return fmt.Sprintf("(%s %c %s)", n.a, n.op, n.b)
}

func (n binary) Eval(env *Env) (Value, error) {
	a, err := n.a.Eval(env)
	if err != nil {
		return nil, err
	}
	b, err := n.b.Eval(env)
	if err != nil {
		return nil, err
	}

	if len(a) != len(b) && len(a) != 1 && len(b) != 1 {
		return nil, errors.New("mismatched operand dimensions").
			WithType(ErrTypeEval).
			WithTag("op", string(n.op)).
			WithTag("a", len(a)).
			WithTag("b", len(b))
	}

	res := make(Value, max(len(a), len(b)))
	for i := range res {
		x, y := broadcast(a, i), broadcast(b, i)
		switch n.op {
		case '+':
			res[i] = x + y
		case '-':
			res[i] = x - y
		case '*':
			res[i] = x * y
		}
	}
	return res, nil
}

func broadcast(v Value, i int) float64 {
	if len(v) == 1 {
		return v[0]
	}
	return v[i]
}

type normalize struct {
	x Node
}

func Normalize(x Node) Node {
	return normalize{x: x}
}

func (n normalize) Dim() int {
	return n.x.Dim()
}

func (n normalize) String() string {
	return fmt.Sprintf("normalize(%s)", n.x)
}

func (n normalize) Eval(env *Env) (Value, error) {
	v, err := n.x.Eval(env)
	if err != nil {
		return nil, err
	}

	var l float64
	for _, c := range v {
		l += c * c
	}
	l = math.Sqrt(l)
	if l == 0 {
		return v, nil
	}

	for i := range v {
		v[i] /= l
	}
	return v, nil
}

type call struct {
	name string
	dim  int
	args []Node
}

// Call invokes a named function that the backend provides. dim is the
// dimension of the returned value.
func Call(name string, dim int, args ...Node) Node {
	return call{name: name, dim: dim, args: args}
}

func (c call) Dim() int {
	return c.dim
}

func (c call) String() string {
	args := make([]string, len(c.args))
	for i, a := range c.args {
		args[i] = a.String()
	}
	return fmt.Sprintf("%s(%s)", c.name, strings.Join(args, ", "))
}

func (c call) Eval(env *Env) (Value, error) {
	f, ok := env.Funcs[c.name]
	if !ok {
		return nil, errors.New("function is not defined").
			WithType(ErrTypeEval).
			WithTag("function", c.name)
	}

	args := make([]Value, len(c.args))
	for i, a := range c.args {
		v, err := a.Eval(env)
		if err != nil {
			return nil, err
		}
		args[i] = v
	}

	res, err := f(args)
	if err != nil {
		return nil, errors.New("calling function failed").
			WithType(ErrTypeEval).
			WithTag("function", c.name).
			Wrap(err)
	}
	if len(res) != c.dim {
		return nil, errors.New("function returned an unexpected dimension").
			WithType(ErrTypeEval).
			WithTag("function", c.name).
			WithTag("dim", len(res))
	}
	return res, nil
}
