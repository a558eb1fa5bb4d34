package backend

import "github.com/gogpu/imdraw"

// GrowCapacity returns the buffer capacity to allocate so that required
// bytes fit. Capacity at least doubles on every growth step, amortizing
// future frames instead of chasing the exact requirement; a current
// capacity that already fits is returned unchanged. current <= 0 grows
// from required directly.
//
// Growth has no upper bound: pathological draw data grows the buffers
// without limit.
func GrowCapacity(current, required int) int {
	if required <= current {
		return current
	}
	if current <= 0 {
		return required
	}
	newCap := current
	for newCap < required {
		newCap *= 2
	}
	return newCap
}

// ClampClip projects a clip rectangle from unclipped display space into
// framebuffer space and clamps it to [0, fbWidth] x [0, fbHeight].
// The display origin is subtracted first, then the framebuffer scale
// applied, matching the coordinate space the toolkit emitted.
//
// ok is false when the clamped rectangle has zero or negative area; the
// caller skips the draw entirely. That is a valid degenerate case, not an
// error.
func ClampClip(clip imdraw.ClipRect, displayPos, fbScale imdraw.Vec2, fbWidth, fbHeight float32) (x, y, w, h int32, ok bool) {
	x0 := (clip.X0 - displayPos.X) * fbScale.X
	y0 := (clip.Y0 - displayPos.Y) * fbScale.Y
	x1 := (clip.X1 - displayPos.X) * fbScale.X
	y1 := (clip.Y1 - displayPos.Y) * fbScale.Y

	if x0 < 0 {
		x0 = 0
	}
	if y0 < 0 {
		y0 = 0
	}
	if x1 > fbWidth {
		x1 = fbWidth
	}
	if y1 > fbHeight {
		y1 = fbHeight
	}
	if x1 <= x0 || y1 <= y0 {
		return 0, 0, 0, 0, false
	}
	return int32(x0), int32(y0), int32(x1 - x0), int32(y1 - y0), true
}

// ScissorFlipY converts a clip rectangle from the toolkit's top-left-origin
// draw space to OpenGL's bottom-left-origin scissor space by subtracting
// from the framebuffer height. No clamping is performed; OpenGL clamps
// scissor rectangles itself.
func ScissorFlipY(clip imdraw.ClipRect, fbHeight float32) (x, y, w, h int32) {
	return int32(clip.X0),
		int32(fbHeight - clip.Y1),
		int32(clip.X1 - clip.X0),
		int32(clip.Y1 - clip.Y0)
}
