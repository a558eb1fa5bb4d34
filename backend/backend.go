package backend

import (
	"errors"

	"github.com/gogpu/imdraw"
)

// Common backend errors.
var (
	// ErrBackendNotAvailable is returned when a requested backend is not available.
	ErrBackendNotAvailable = errors.New("backend: not available")

	// ErrNotInitialized is returned when Render is called before Initialize
	// or after CleanUp.
	ErrNotInitialized = errors.New("backend: not initialized")

	// ErrUserCallbackUnsupported is returned when a draw command carries a
	// user callback. No backend implements callbacks; this is a hard
	// "not implemented" boundary, not a recoverable condition.
	ErrUserCallbackUnsupported = errors.New("backend: draw command user callbacks are not supported")
)

// Renderer is the backend-neutral contract every rendering backend
// satisfies. It abstracts the graphics API, allowing the same draw-data
// stream to target OpenGL, Vulkan, wgpu or nothing at all.
//
// Lifecycle: Initialize exactly once, then any number of Render calls,
// then CleanUp exactly once, all from a single goroutine. The instance is
// unusable after CleanUp. Calls out of order are undefined behavior; there
// is no runtime guard beyond a cheap initialized check.
//
// Backends must be registered via Register() and are selected once at
// startup via Get() or Default(); they are never switched at runtime.
type Renderer interface {
	// Name returns the backend identifier (e.g., "opengl", "vulkan").
	Name() string

	// Initialize uploads the font atlas, creates all process-lifetime GPU
	// resources and records the atlas texture reference back into fonts so
	// later draw commands can bind it.
	Initialize(fonts *imdraw.FontAtlas) error

	// Render translates one frame of draw data into GPU draw calls,
	// growing the backend's vertex/index buffers as needed. Degenerate
	// frames (no lists, no vertices, minimized window) are skipped
	// silently.
	Render(data *imdraw.DrawData) error

	// CleanUp releases every GPU resource created in Initialize.
	// The backend must not be used afterward.
	CleanUp()
}
