package imdraw

import "testing"

func TestTextureIDZero(t *testing.T) {
	var id TextureID

	if !id.IsZero() {
		t.Error("zero TextureID IsZero() = false")
	}
	if id.Kind() != TextureNone {
		t.Errorf("zero Kind() = %v, want TextureNone", id.Kind())
	}
	if _, ok := id.GLName(); ok {
		t.Error("zero GLName() ok = true")
	}
}

func TestGLTextureID(t *testing.T) {
	id := GLTextureID(42)

	if id.IsZero() {
		t.Error("IsZero() = true for a bound texture")
	}
	if id.Kind() != TextureGL {
		t.Errorf("Kind() = %v, want TextureGL", id.Kind())
	}
	name, ok := id.GLName()
	if !ok || name != 42 {
		t.Errorf("GLName() = (%d, %v), want (42, true)", name, ok)
	}
}

func TestDescriptorSetID(t *testing.T) {
	type fakeSet uintptr
	id := DescriptorSetID(fakeSet(7))

	if id.Kind() != TextureDescriptorSet {
		t.Errorf("Kind() = %v, want TextureDescriptorSet", id.Kind())
	}
	if got, ok := id.Handle().(fakeSet); !ok || got != 7 {
		t.Errorf("Handle() = %v, want fakeSet(7)", id.Handle())
	}
	if _, ok := id.GLName(); ok {
		t.Error("GLName() ok = true for a descriptor set")
	}
}

func TestBindGroupID(t *testing.T) {
	marker := &struct{}{}
	id := BindGroupID(marker)

	if id.Kind() != TextureBindGroup {
		t.Errorf("Kind() = %v, want TextureBindGroup", id.Kind())
	}
	if id.Handle() != marker {
		t.Error("Handle() does not round-trip")
	}
}

func TestTextureKindString(t *testing.T) {
	tests := []struct {
		kind TextureKind
		want string
	}{
		{TextureNone, "none"},
		{TextureGL, "gl"},
		{TextureDescriptorSet, "descriptor-set"},
		{TextureBindGroup, "bind-group"},
		{TextureKind(99), "none"},
	}
	for _, tt := range tests {
		if got := tt.kind.String(); got != tt.want {
			t.Errorf("TextureKind(%d).String() = %q, want %q", tt.kind, got, tt.want)
		}
	}
}
