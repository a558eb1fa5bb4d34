package imdraw

// TextureKind discriminates the native resource behind a TextureID.
type TextureKind uint8

const (
	// TextureNone marks the zero TextureID; no resource is bound.
	TextureNone TextureKind = iota

	// TextureGL wraps an OpenGL texture name.
	TextureGL

	// TextureDescriptorSet wraps a Vulkan descriptor set handle.
	TextureDescriptorSet

	// TextureBindGroup wraps a wgpu/hal bind group.
	TextureBindGroup
)

// String returns the kind name for logging.
func (k TextureKind) String() string {
	switch k {
	case TextureGL:
		return "gl"
	case TextureDescriptorSet:
		return "descriptor-set"
	case TextureBindGroup:
		return "bind-group"
	default:
		return "none"
	}
}

// TextureID is a tagged reference to a backend texture resource. Each
// backend records one into the font atlas at Initialize and reads them back
// from draw commands at Render, asserting the kind it understands instead
// of reinterpreting a raw integer.
//
// The zero TextureID binds nothing.
type TextureID struct {
	kind   TextureKind
	handle any
}

// GLTextureID references an OpenGL texture by name.
func GLTextureID(name uint32) TextureID {
	return TextureID{kind: TextureGL, handle: name}
}

// DescriptorSetID references a Vulkan descriptor set. The handle keeps its
// native type (vk.DescriptorSet); the vulkan backend asserts it back.
func DescriptorSetID(set any) TextureID {
	return TextureID{kind: TextureDescriptorSet, handle: set}
}

// BindGroupID references a wgpu/hal bind group (hal.BindGroup).
func BindGroupID(group any) TextureID {
	return TextureID{kind: TextureBindGroup, handle: group}
}

// Kind returns the discriminator.
func (t TextureID) Kind() TextureKind { return t.kind }

// Handle returns the native resource handle. Callers assert the concrete
// type matching Kind.
func (t TextureID) Handle() any { return t.handle }

// GLName returns the OpenGL texture name, or false when the reference is
// not an OpenGL texture.
func (t TextureID) GLName() (uint32, bool) {
	if t.kind != TextureGL {
		return 0, false
	}
	name, ok := t.handle.(uint32)
	return name, ok
}

// IsZero reports whether the reference binds nothing.
func (t TextureID) IsZero() bool { return t.kind == TextureNone || t.handle == nil }
