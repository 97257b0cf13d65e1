package render

import (
	"github.com/go-gl/mathgl/mgl64"
)

// Material is the backend state used to draw a node. Clone must return a
// copy that shares no mutable state with the original.
type Material interface {
	Name() string
	Clone() Material
}

// BasicMaterial is a material with a flat color and an optional wireframe.
type BasicMaterial struct {
	ID        string
	Color     mgl64.Vec3
	Wireframe bool
	Uniforms  map[string]float64
}

func (m *BasicMaterial) Name() string {
	return m.ID
}

func (m *BasicMaterial) Clone() Material {
	c := *m
	if m.Uniforms != nil {
		c.Uniforms = make(map[string]float64, len(m.Uniforms))
		for k, v := range m.Uniforms {
			c.Uniforms[k] = v
		}
	}
	return &c
}
