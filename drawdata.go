package imdraw

// Vec2 is a 2D point or extent in toolkit display space.
type Vec2 struct {
	X, Y float32
}

// ClipRect is an axis-aligned clip rectangle in unclipped display space.
// (X0, Y0) is the upper-left corner, (X1, Y1) the lower-right.
type ClipRect struct {
	X0, Y0, X1, Y1 float32
}

// Width returns X1 - X0. Negative for inverted rectangles.
func (r ClipRect) Width() float32 { return r.X1 - r.X0 }

// Height returns Y1 - Y0. Negative for inverted rectangles.
func (r ClipRect) Height() float32 { return r.Y1 - r.Y0 }

// Empty reports whether the rectangle has zero or negative area.
func (r ClipRect) Empty() bool { return r.X1 <= r.X0 || r.Y1 <= r.Y0 }

// DrawVert is one UI vertex: screen-space position, texture coordinate and
// a packed RGBA color (byte order R, G, B, A in increasing memory address).
//
// The wire layout is 20 bytes: position at offset 0, texture coordinate at
// offset 8, color at offset 16. Backends describe their vertex inputs
// against exactly this record.
type DrawVert struct {
	Pos Vec2
	UV  Vec2
	Col uint32
}

// VertexSize is the byte size of one DrawVert record.
const VertexSize = 20

// IndexSize is the byte size of one DrawIdx.
const IndexSize = 2

// DrawIdx is a 16-bit vertex index. Indices reference vertices within the
// owning DrawList, offset by the command's VtxOffset.
type DrawIdx = uint16

// DrawCmd is a single indexed draw operation within a DrawList.
type DrawCmd struct {
	// ClipRect bounds the command's output in unclipped display space.
	ClipRect ClipRect

	// TexID selects the texture the fragment stage samples.
	TexID TextureID

	// ElemCount is the number of indices consumed (a multiple of 3).
	ElemCount uint32

	// IdxOffset is the command's starting index within the owning list's
	// IdxBuffer.
	IdxOffset uint32

	// VtxOffset is the command's starting vertex within the owning list's
	// VtxBuffer.
	VtxOffset uint32

	// UserCallback, when non-nil, asks the renderer to invoke user code in
	// place of drawing. No backend supports it: Render fails with
	// backend.ErrUserCallbackUnsupported.
	UserCallback func(*DrawList, *DrawCmd)
}

// DrawList is one logical batch of UI geometry (typically one window):
// its own vertex and index buffers plus ordered sub-commands.
type DrawList struct {
	VtxBuffer []DrawVert
	IdxBuffer []DrawIdx
	CmdBuffer []DrawCmd
}

// DrawData is the per-frame payload handed to a backend's Render.
// It is constructed fresh each frame by the UI toolkit and is read-only
// to the renderer.
type DrawData struct {
	// Lists holds the frame's command lists in paint order.
	Lists []*DrawList

	// TotalVtxCount and TotalIdxCount are the sums over all Lists,
	// maintained by AddList. Backends size their GPU buffers from these.
	TotalVtxCount int
	TotalIdxCount int

	// DisplayPos is the display origin offset (top-left of the draw
	// surface in toolkit coordinates, non-zero with multi-viewport UIs).
	DisplayPos Vec2

	// DisplaySize is the logical size of the draw surface.
	DisplaySize Vec2

	// FramebufferScale maps display coordinates to framebuffer pixels
	// (> 1 on high-DPI surfaces).
	FramebufferScale Vec2
}

// NewDrawData returns an empty frame for the given display geometry with a
// framebuffer scale of 1.
func NewDrawData(displaySize Vec2) *DrawData {
	return &DrawData{
		DisplaySize:      displaySize,
		FramebufferScale: Vec2{1, 1},
	}
}

// AddList appends a command list and folds its counts into the totals.
func (d *DrawData) AddList(l *DrawList) {
	d.Lists = append(d.Lists, l)
	d.TotalVtxCount += len(l.VtxBuffer)
	d.TotalIdxCount += len(l.IdxBuffer)
}

// FramebufferSize returns DisplaySize scaled by FramebufferScale.
// Either dimension may be zero or negative while the window is minimized;
// backends treat that as a frame to skip, not an error.
func (d *DrawData) FramebufferSize() (w, h float32) {
	return d.DisplaySize.X * d.FramebufferScale.X,
		d.DisplaySize.Y * d.FramebufferScale.Y
}

// Valid reports whether the frame has anything to draw: a positive
// framebuffer area and at least one command list. Backends skip invalid
// frames without error.
func (d *DrawData) Valid() bool {
	w, h := d.FramebufferSize()
	return w > 0 && h > 0 && len(d.Lists) > 0
}

// VtxBytes returns the byte size of the frame's vertex data.
func (d *DrawData) VtxBytes() int { return d.TotalVtxCount * VertexSize }

// IdxBytes returns the byte size of the frame's index data.
func (d *DrawData) IdxBytes() int { return d.TotalIdxCount * IndexSize }

// ScaleClipRects multiplies every command's clip rectangle by scale.
// Use when the toolkit emitted clip rectangles at a different scale than
// the framebuffer.
func (d *DrawData) ScaleClipRects(scale Vec2) {
	for _, list := range d.Lists {
		for i := range list.CmdBuffer {
			r := &list.CmdBuffer[i].ClipRect
			r.X0 *= scale.X
			r.Y0 *= scale.Y
			r.X1 *= scale.X
			r.Y1 *= scale.Y
		}
	}
}
