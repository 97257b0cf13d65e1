package render

import (
	"github.com/aukilabs/cubesphere/expr"
	"github.com/go-gl/mathgl/mgl64"
)

// Node is a renderable scene node. The terrain core writes the geometry,
// material and expressions of the node, the backend draws it.
type Node interface {
	Name() string

	// The transform from the node local space to world space.
	WorldMatrix() mgl64.Mat4

	PositionExpr() expr.Node
	SetPositionExpr(e expr.Node)

	ColorExpr() expr.Node
	SetColorExpr(e expr.Node)

	Geometry() *Geometry
	SetGeometry(g *Geometry)

	Material() Material
	SetMaterial(m Material)

	Visible() bool
	SetVisible(v bool)
}

// Mesh is an in-memory Node. It is not safe for concurrent use.
type Mesh struct {
	name         string
	world        mgl64.Mat4
	positionExpr expr.Node
	colorExpr    expr.Node
	geometry     *Geometry
	material     Material
	visible      bool
}

func NewMesh(name string, world mgl64.Mat4, m Material) *Mesh {
	return &Mesh{
		name:     name,
		world:    world,
		material: m,
	}
}

func (m *Mesh) Name() string {
	return m.name
}

func (m *Mesh) WorldMatrix() mgl64.Mat4 {
	return m.world
}

func (m *Mesh) PositionExpr() expr.Node {
	return m.positionExpr
}

func (m *Mesh) SetPositionExpr(e expr.Node) {
	m.positionExpr = e
}

func (m *Mesh) ColorExpr() expr.Node {
	return m.colorExpr
}

func (m *Mesh) SetColorExpr(e expr.Node) {
	m.colorExpr = e
}

func (m *Mesh) Geometry() *Geometry {
	return m.geometry
}

func (m *Mesh) SetGeometry(g *Geometry) {
	m.geometry = g
}

func (m *Mesh) Material() Material {
	return m.material
}

func (m *Mesh) SetMaterial(mat Material) {
	m.material = mat
}

func (m *Mesh) Visible() bool {
	return m.visible
}

func (m *Mesh) SetVisible(v bool) {
	m.visible = v
}

// EvalVertex evaluates the position and color expressions of a node for the
// i-th vertex of its geometry. Missing expressions evaluate to the vertex
// position and a white color.
func EvalVertex(n Node, i int, env *expr.Env) (position, color mgl64.Vec3, err error) {
	g := n.Geometry()
	uv := g.UV(i)
	pos := g.Position(i)
	normal := g.Normal(i)

	vertexEnv := *env
	vertexEnv.Attributes = map[string]expr.Value{
		expr.AttrUV:            {uv[0], uv[1]},
		expr.AttrPositionLocal: {pos[0], pos[1], pos[2]},
		expr.AttrNormalLocal:   {normal[0], normal[1], normal[2]},
	}

	position = pos
	if e := n.PositionExpr(); e != nil {
		v, err := e.Eval(&vertexEnv)
		if err != nil {
			return position, color, err
		}
		position = v.Vec3()
	}

	color = mgl64.Vec3{1, 1, 1}
	if e := n.ColorExpr(); e != nil {
		v, err := e.Eval(&vertexEnv)
		if err != nil {
			return position, color, err
		}
		color = v.Vec3()
	}

	return position, color, nil
}

// SamplerEnv returns an evaluation environment that samples the given
// textures on the CPU. Unknown textures sample as transparent black.
func SamplerEnv(samplers map[string]Sampler) *expr.Env {
	return &expr.Env{
		Sample: func(texture string, uv mgl64.Vec2) mgl64.Vec4 {
			s, ok := samplers[texture]
			if !ok {
				return mgl64.Vec4{}
			}
			return s.Sample(uv)
		},
		Funcs: expr.DefaultFuncs(),
	}
}
