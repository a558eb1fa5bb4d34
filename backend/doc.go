// Package backend provides a pluggable rendering backend abstraction for
// imdraw draw data.
//
// # Backend Registration
//
// Backends are registered via init() functions and selected at runtime.
// Import the backend packages you want available:
//
//	import (
//		_ "github.com/gogpu/imdraw/backend/stub"
//		_ "github.com/gogpu/imdraw/backend/gl"
//	)
//
// # Backend Selection
//
// Use Default() to get the best available backend, or Get() to request a
// specific backend by name:
//
//	r := backend.Get("opengl")
//	if r == nil {
//		r = backend.MustDefault()
//	}
//
// # Lifecycle
//
//	if err := r.Initialize(atlas); err != nil {
//		log.Fatal(err)
//	}
//	defer r.CleanUp()
//
//	for running {
//		if err := r.Render(ui.BuildFrame()); err != nil {
//			log.Fatal(err)
//		}
//	}
//
// # Available Backends
//
//   - "stub": no-op, headless (always available once imported)
//   - "opengl": OpenGL 3.3 core via go-gl
//   - "vulkan": Vulkan via goki/vulkan
//   - "wgpu": WebGPU HAL via gogpu/wgpu
package backend
