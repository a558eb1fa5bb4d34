// Package stub registers a backend that draws nothing.
//
// The stub backend lets headless or non-graphical runs share the exact
// call sites of a real backend: Initialize still walks the font atlas
// through its build-and-release cycle, Render and CleanUp do nothing.
package stub

import (
	"github.com/gogpu/imdraw"
	"github.com/gogpu/imdraw/backend"
)

func init() {
	backend.Register(backend.BackendStub, func() backend.Renderer {
		return New()
	})
}

// Stub is the no-op rendering backend.
type Stub struct{}

// New creates a stub backend.
func New() *Stub { return &Stub{} }

// Name implements backend.Renderer.
func (*Stub) Name() string { return backend.BackendStub }

// Initialize reads out the font atlas pixels, forcing a lazy atlas to
// allocate them, then immediately releases the CPU-side copy. Nothing is
// stored or uploaded.
func (*Stub) Initialize(fonts *imdraw.FontAtlas) error {
	if _, _, _, _, err := fonts.TexDataRGBA32(); err != nil {
		return err
	}
	fonts.ClearTexData()
	return nil
}

// Render discards the frame.
func (*Stub) Render(*imdraw.DrawData) error { return nil }

// CleanUp does nothing; the stub owns no GPU resources.
func (*Stub) CleanUp() {}
