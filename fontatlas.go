package imdraw

import "errors"

// FontAtlas errors.
var (
	// ErrNoTexData is returned when pixel data is requested after
	// ClearTexData, or from an atlas that never had any.
	ErrNoTexData = errors.New("imdraw: font atlas has no texture data")

	// ErrBadTexData is returned when the pixel buffer length does not
	// match width*height*4.
	ErrBadTexData = errors.New("imdraw: font atlas pixel data has wrong size")
)

// atlasBytesPerPixel is the only supported atlas pixel format: RGBA, 8 bits
// per channel.
const atlasBytesPerPixel = 4

// FontAtlas holds the toolkit's glyph atlas: one RGBA32 pixel buffer that
// every backend uploads exactly once during Initialize. After the upload
// the backend records its native texture reference via SetTexID and the
// CPU-side pixels are released with ClearTexData.
//
// The pixel buffer may be built lazily: a FontAtlas constructed with
// NewLazyFontAtlas allocates pixels on the first TexDataRGBA32 call, so
// headless runs that immediately clear the data never pay for a full
// rasterization pass... beyond the one forced build.
type FontAtlas struct {
	pixels        []byte
	width, height int
	build         func() (pixels []byte, w, h int, err error)
	texID         TextureID
}

// NewFontAtlas wraps an existing RGBA32 pixel buffer. len(pixels) must be
// w*h*4; TexDataRGBA32 reports ErrBadTexData otherwise.
func NewFontAtlas(pixels []byte, w, h int) *FontAtlas {
	return &FontAtlas{pixels: pixels, width: w, height: h}
}

// NewLazyFontAtlas defers pixel generation until the first TexDataRGBA32
// call. The build function is invoked at most once.
func NewLazyFontAtlas(build func() (pixels []byte, w, h int, err error)) *FontAtlas {
	return &FontAtlas{build: build}
}

// TexDataRGBA32 returns the atlas pixels as tightly packed RGBA32 together
// with the atlas dimensions and bytes per pixel (always 4), building them
// first if the atlas is lazy.
func (a *FontAtlas) TexDataRGBA32() (pixels []byte, w, h, bytesPerPixel int, err error) {
	if a.pixels == nil {
		if a.build == nil {
			return nil, 0, 0, 0, ErrNoTexData
		}
		a.pixels, a.width, a.height, err = a.build()
		a.build = nil
		if err != nil {
			a.pixels = nil
			return nil, 0, 0, 0, err
		}
	}
	if len(a.pixels) != a.width*a.height*atlasBytesPerPixel {
		return nil, 0, 0, 0, ErrBadTexData
	}
	return a.pixels, a.width, a.height, atlasBytesPerPixel, nil
}

// HasTexData reports whether CPU-side pixels are currently held (or can
// still be built).
func (a *FontAtlas) HasTexData() bool { return a.pixels != nil || a.build != nil }

// ClearTexData releases the CPU-side pixel copy. The recorded TexID
// survives; only GPU memory backs the atlas from here on.
func (a *FontAtlas) ClearTexData() {
	a.pixels = nil
	a.build = nil
}

// SetTexID records the backend's native texture reference so subsequent
// draw commands can bind the atlas.
func (a *FontAtlas) SetTexID(id TextureID) { a.texID = id }

// TexID returns the recorded texture reference. Zero before Initialize.
func (a *FontAtlas) TexID() TextureID { return a.texID }

// Size returns the atlas dimensions. Zero until the pixels were built.
func (a *FontAtlas) Size() (w, h int) { return a.width, a.height }
