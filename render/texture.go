package render

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl64"
)

// Texture is a handle to a texture owned by the rendering backend. The core
// never decodes pixels, it only references textures by name in expressions.
type Texture interface {
	Name() string
}

// NamedTexture is a texture known only by its name.
type NamedTexture string

func (t NamedTexture) Name() string {
	return string(t)
}

// Sampler is implemented by textures whose texels can be read on the CPU.
// It is used to evaluate expressions outside of the GPU.
type Sampler interface {
	Texture

	Sample(uv mgl64.Vec2) mgl64.Vec4
}

// FuncTexture is a procedural texture.
type FuncTexture struct {
	ID string
	Fn func(uv mgl64.Vec2) mgl64.Vec4
}

func (t FuncTexture) Name() string {
	return t.ID
}

func (t FuncTexture) Sample(uv mgl64.Vec2) mgl64.Vec4 {
	return t.Fn(uv)
}

// FaceTextures are the textures of one root tile of a face.
type FaceTextures struct {
	Color        Texture
	Displacement Texture
}

// TextureSet holds the textures of the six faces, indexed by face then by
// root tile index.
type TextureSet [6][]FaceTextures

// Samplers returns the CPU samplers of the set keyed by texture name.
func (s *TextureSet) Samplers() map[string]Sampler {
	samplers := make(map[string]Sampler)
	for _, roots := range s {
		for _, t := range roots {
			for _, tex := range []Texture{t.Color, t.Displacement} {
				if sampler, ok := tex.(Sampler); ok {
					samplers[sampler.Name()] = sampler
				}
			}
		}
	}
	return samplers
}

// NamedTextureSet returns a set where every face has dims*dims roots whose
// textures follow the "<prefix><face>[_<root>]_image.png" and
// "n<prefix><face>[_<root>]_image.png" naming. shortNames are the short face
// names in face order.
func NamedTextureSet(shortNames [6]string, dims int) TextureSet {
	var set TextureSet
	for side, short := range shortNames {
		count := max(dims*dims, 1)
		roots := make([]FaceTextures, count)
		for i := range roots {
			name := short
			if count > 1 {
				name = fmt.Sprintf("%s_%d", short, i)
			}
			roots[i] = FaceTextures{
				Color:        NamedTexture(name + "_image.png"),
				Displacement: NamedTexture("n" + name + "_image.png"),
			}
		}
		set[side] = roots
	}
	return set
}
