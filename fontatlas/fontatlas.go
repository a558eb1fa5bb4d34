// Package fontatlas rasterizes fonts into RGBA atlases consumable by
// imdraw backends.
//
// Build parses a TrueType/OpenType font, rasterizes a configurable rune
// range onto a shelf-packed grid and returns the atlas together with
// per-glyph UV metadata. Without font data it falls back to a built-in
// bitmap face, which keeps headless tools and tests free of font file
// dependencies.
package fontatlas

import (
	"errors"
	"fmt"
	"image"
	"image/draw"
	"unicode"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"

	"github.com/gogpu/imdraw"
)

// Build errors.
var (
	// ErrNoGlyphs is returned when the configured rune range produces no
	// usable glyphs.
	ErrNoGlyphs = errors.New("fontatlas: no glyphs rasterized")

	// ErrAtlasTooSmall is returned when the glyphs do not fit the atlas.
	ErrAtlasTooSmall = errors.New("fontatlas: glyphs do not fit atlas")
)

// Glyph is one rasterized rune with its atlas placement.
type Glyph struct {
	Rune rune

	// U0, V0, U1, V1 are the glyph's texture coordinates in [0, 1].
	U0, V0, U1, V1 float32

	// OffsetX and OffsetY position the glyph quad relative to the pen,
	// with Y measured down from the baseline top (pen y is the ascent
	// line).
	OffsetX, OffsetY float32

	// Width and Height are the quad size in pixels.
	Width, Height float32

	// Advance is the pen advance after this glyph.
	Advance float32
}

// Config selects the font and rune range to rasterize.
type Config struct {
	// TTF is the raw font file. Empty selects the built-in bitmap face.
	TTF []byte

	// Size is the rasterization size in pixels. Default: 13.
	Size float64

	// DPI is the dot-per-inch resolution. Default: 72.
	DPI float64

	// FirstRune and LastRune bound the rasterized range, inclusive.
	// Default: printable ASCII (0x20 to 0x7E).
	FirstRune rune
	LastRune  rune

	// Width is the atlas width in pixels. Height grows as needed.
	// Default: 512.
	Width int

	// Padding is the gap between packed glyphs. Default: 1.
	Padding int
}

// DefaultConfig returns the default atlas settings.
func DefaultConfig() Config {
	return Config{
		Size:      13,
		DPI:       72,
		FirstRune: 0x20,
		LastRune:  0x7E,
		Width:     512,
		Padding:   1,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Size <= 0 {
		c.Size = d.Size
	}
	if c.DPI <= 0 {
		c.DPI = d.DPI
	}
	if c.FirstRune == 0 && c.LastRune == 0 {
		c.FirstRune, c.LastRune = d.FirstRune, d.LastRune
	}
	if c.Width <= 0 {
		c.Width = d.Width
	}
	if c.Padding <= 0 {
		c.Padding = d.Padding
	}
	return c
}

// Atlas is a rasterized font atlas plus the glyph table needed to lay
// out text against it.
type Atlas struct {
	fonts  *imdraw.FontAtlas
	glyphs map[rune]Glyph

	lineHeight float32
	ascent     float32

	// whiteUV is the center of a solid white region usable for
	// untextured quads.
	whiteU, whiteV float32
}

// Build rasterizes the configured rune range into a new atlas.
func Build(cfg Config) (*Atlas, error) {
	cfg = cfg.withDefaults()

	face, err := openFace(cfg)
	if err != nil {
		return nil, err
	}

	metrics := face.Metrics()
	ascent := float32(metrics.Ascent.Ceil())
	lineHeight := float32(metrics.Height.Ceil())
	rowHeight := metrics.Height.Ceil() + cfg.Padding

	// First pass: measure and shelf-pack. The white block occupies the
	// first slot.
	const whiteSize = 2
	type placement struct {
		r    rune
		x, y int
		w, h int
	}
	var places []placement

	penX := whiteSize + cfg.Padding
	penY := 0
	for r := cfg.FirstRune; r <= cfg.LastRune; r++ {
		if !unicode.IsPrint(r) {
			continue
		}
		bounds, _, ok := face.GlyphBounds(r)
		if !ok {
			continue
		}
		w := (bounds.Max.X - bounds.Min.X).Ceil()
		h := (bounds.Max.Y - bounds.Min.Y).Ceil()
		if w <= 0 || h <= 0 {
			// Blank glyphs such as space still advance the pen but
			// need no atlas area.
			places = append(places, placement{r: r})
			continue
		}
		if penX+w+cfg.Padding > cfg.Width {
			penX = 0
			penY += rowHeight
		}
		if w+cfg.Padding > cfg.Width {
			return nil, fmt.Errorf("%w: glyph %q wider than atlas", ErrAtlasTooSmall, r)
		}
		places = append(places, placement{r: r, x: penX, y: penY, w: w, h: h})
		penX += w + cfg.Padding
	}
	if len(places) == 0 {
		return nil, ErrNoGlyphs
	}

	height := nextPow2(penY + rowHeight)
	img := image.NewRGBA(image.Rect(0, 0, cfg.Width, height))

	// White block for untextured quads.
	draw.Draw(img, image.Rect(0, 0, whiteSize, whiteSize), image.White, image.Point{}, draw.Src)

	atlasW := float32(cfg.Width)
	atlasH := float32(height)

	// Second pass: rasterize each glyph at its slot and record UVs.
	glyphs := make(map[rune]Glyph, len(places))
	drawer := font.Drawer{Dst: img, Src: image.White, Face: face}
	for _, p := range places {
		bounds, advance, ok := face.GlyphBounds(p.r)
		if !ok {
			continue
		}
		g := Glyph{
			Rune:    p.r,
			Advance: fixedToFloat32(advance),
		}
		if p.w > 0 && p.h > 0 {
			// Position the pen so the glyph's bounding box lands at
			// the packed slot.
			drawer.Dot = fixed.Point26_6{
				X: fixed.I(p.x) - bounds.Min.X,
				Y: fixed.I(p.y) - bounds.Min.Y,
			}
			drawer.DrawString(string(p.r))

			g.U0 = float32(p.x) / atlasW
			g.V0 = float32(p.y) / atlasH
			g.U1 = float32(p.x+p.w) / atlasW
			g.V1 = float32(p.y+p.h) / atlasH
			g.OffsetX = fixedToFloat32(bounds.Min.X)
			g.OffsetY = ascent + fixedToFloat32(bounds.Min.Y)
			g.Width = float32(p.w)
			g.Height = float32(p.h)
		}
		glyphs[p.r] = g
	}

	return &Atlas{
		fonts:      imdraw.NewFontAtlas(img.Pix, cfg.Width, height),
		glyphs:     glyphs,
		lineHeight: lineHeight,
		ascent:     ascent,
		whiteU:     float32(whiteSize) / 2 / atlasW,
		whiteV:     float32(whiteSize) / 2 / atlasH,
	}, nil
}

// openFace opens the configured font face, falling back to the built-in
// bitmap face when no font data is given.
func openFace(cfg Config) (font.Face, error) {
	if len(cfg.TTF) == 0 {
		return basicfont.Face7x13, nil
	}
	f, err := opentype.Parse(cfg.TTF)
	if err != nil {
		return nil, fmt.Errorf("fontatlas: failed to parse font: %w", err)
	}
	face, err := opentype.NewFace(f, &opentype.FaceOptions{
		Size:    cfg.Size,
		DPI:     cfg.DPI,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return nil, fmt.Errorf("fontatlas: failed to create face: %w", err)
	}
	return face, nil
}

// FontAtlas returns the atlas consumed by backend Initialize.
func (a *Atlas) FontAtlas() *imdraw.FontAtlas { return a.fonts }

// Glyph looks up the metadata for a rune.
func (a *Atlas) Glyph(r rune) (Glyph, bool) {
	g, ok := a.glyphs[r]
	return g, ok
}

// LineHeight returns the vertical pen advance between lines.
func (a *Atlas) LineHeight() float32 { return a.lineHeight }

// Ascent returns the baseline offset from the top of a line.
func (a *Atlas) Ascent() float32 { return a.ascent }

// WhiteUV returns texture coordinates inside a solid white region,
// usable for drawing untextured filled quads with the atlas bound.
func (a *Atlas) WhiteUV() (u, v float32) { return a.whiteU, a.whiteV }

// MeasureText returns the pen advance of a single-line string.
func (a *Atlas) MeasureText(text string) float32 {
	var w float32
	for _, r := range text {
		if g, ok := a.glyphs[r]; ok {
			w += g.Advance
		}
	}
	return w
}

// AppendText appends one quad per visible glyph of text to the list,
// clipped to clip, starting with the pen at pos. It emits a single draw
// command covering the appended indices. Unknown runes are skipped.
func (a *Atlas) AppendText(list *imdraw.DrawList, pos imdraw.Vec2, col uint32, clip imdraw.ClipRect, text string) {
	idxStart := len(list.IdxBuffer)
	penX := pos.X
	for _, r := range text {
		g, ok := a.glyphs[r]
		if !ok {
			continue
		}
		if g.Width > 0 && g.Height > 0 {
			appendQuad(list,
				imdraw.Vec2{X: penX + g.OffsetX, Y: pos.Y + g.OffsetY},
				imdraw.Vec2{X: penX + g.OffsetX + g.Width, Y: pos.Y + g.OffsetY + g.Height},
				imdraw.Vec2{X: g.U0, Y: g.V0},
				imdraw.Vec2{X: g.U1, Y: g.V1},
				col)
		}
		penX += g.Advance
	}

	count := len(list.IdxBuffer) - idxStart
	if count == 0 {
		return
	}
	list.CmdBuffer = append(list.CmdBuffer, imdraw.DrawCmd{
		ClipRect:  clip,
		TexID:     a.fonts.TexID(),
		ElemCount: uint32(count),
		IdxOffset: uint32(idxStart),
	})
}

// AppendRect appends a solid filled rectangle using the atlas white
// region, with a single covering draw command.
func (a *Atlas) AppendRect(list *imdraw.DrawList, min, max imdraw.Vec2, col uint32, clip imdraw.ClipRect) {
	idxStart := len(list.IdxBuffer)
	white := imdraw.Vec2{X: a.whiteU, Y: a.whiteV}
	appendQuad(list, min, max, white, white, col)
	list.CmdBuffer = append(list.CmdBuffer, imdraw.DrawCmd{
		ClipRect:  clip,
		TexID:     a.fonts.TexID(),
		ElemCount: uint32(len(list.IdxBuffer) - idxStart),
		IdxOffset: uint32(idxStart),
	})
}

// appendQuad appends two triangles forming the rectangle (min, max)
// with the given texture coordinates.
func appendQuad(list *imdraw.DrawList, min, max, uv0, uv1 imdraw.Vec2, col uint32) {
	base := imdraw.DrawIdx(len(list.VtxBuffer))
	list.VtxBuffer = append(list.VtxBuffer,
		imdraw.DrawVert{Pos: min, UV: uv0, Col: col},
		imdraw.DrawVert{Pos: imdraw.Vec2{X: max.X, Y: min.Y}, UV: imdraw.Vec2{X: uv1.X, Y: uv0.Y}, Col: col},
		imdraw.DrawVert{Pos: max, UV: uv1, Col: col},
		imdraw.DrawVert{Pos: imdraw.Vec2{X: min.X, Y: max.Y}, UV: imdraw.Vec2{X: uv0.X, Y: uv1.Y}, Col: col},
	)
	list.IdxBuffer = append(list.IdxBuffer,
		base, base+1, base+2,
		base+2, base+3, base,
	)
}

// fixedToFloat32 converts fixed.Int26_6 to float32.
func fixedToFloat32(x fixed.Int26_6) float32 {
	return float32(x) / 64.0
}

// nextPow2 rounds n up to the next power of two.
func nextPow2(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}
