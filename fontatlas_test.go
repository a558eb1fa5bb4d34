package imdraw

import "testing"

func TestFontAtlasLifecycle(t *testing.T) {
	pixels := make([]byte, 4*2*2)
	atlas := NewFontAtlas(pixels, 2, 2)

	if !atlas.HasTexData() {
		t.Fatal("HasTexData() = false before upload")
	}

	got, w, h, bpp, err := atlas.TexDataRGBA32()
	if err != nil {
		t.Fatalf("TexDataRGBA32() error = %v", err)
	}
	if w != 2 || h != 2 || bpp != 4 || len(got) != 16 {
		t.Errorf("TexDataRGBA32() = (%d bytes, %dx%d, bpp %d)", len(got), w, h, bpp)
	}

	atlas.SetTexID(GLTextureID(3))
	atlas.ClearTexData()

	if atlas.HasTexData() {
		t.Error("HasTexData() = true after ClearTexData")
	}
	if _, _, _, _, err := atlas.TexDataRGBA32(); err != ErrNoTexData {
		t.Errorf("TexDataRGBA32() error = %v, want ErrNoTexData", err)
	}
	if name, ok := atlas.TexID().GLName(); !ok || name != 3 {
		t.Error("TexID lost after ClearTexData")
	}
}

func TestFontAtlasLazyBuild(t *testing.T) {
	calls := 0
	atlas := NewLazyFontAtlas(func() ([]byte, int, int, error) {
		calls++
		return make([]byte, 4), 1, 1, nil
	})

	if !atlas.HasTexData() {
		t.Fatal("HasTexData() = false for lazy atlas")
	}
	if w, h := atlas.Size(); w != 0 || h != 0 {
		t.Errorf("Size() = (%d, %d) before build, want (0, 0)", w, h)
	}

	for i := 0; i < 2; i++ {
		if _, _, _, _, err := atlas.TexDataRGBA32(); err != nil {
			t.Fatalf("TexDataRGBA32() error = %v", err)
		}
	}
	if calls != 1 {
		t.Errorf("build called %d times, want 1", calls)
	}
	if w, h := atlas.Size(); w != 1 || h != 1 {
		t.Errorf("Size() = (%d, %d), want (1, 1)", w, h)
	}
}

func TestFontAtlasBadSize(t *testing.T) {
	atlas := NewFontAtlas(make([]byte, 3), 2, 2)

	if _, _, _, _, err := atlas.TexDataRGBA32(); err != ErrBadTexData {
		t.Errorf("TexDataRGBA32() error = %v, want ErrBadTexData", err)
	}
}
