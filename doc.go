// Package imdraw renders immediate-mode GUI draw data on the GPU.
//
// # Overview
//
// An immediate-mode UI toolkit produces a fresh [DrawData] every frame:
// per-window command lists of pre-transformed vertices, 16-bit indices and
// draw commands, each command carrying a clip rectangle and a texture
// binding. imdraw translates that stream into graphics-API draw calls,
// managing GPU buffer lifetime, resource binding and per-frame buffer
// growth across heterogeneous backends.
//
// # Quick Start
//
//	import (
//		"github.com/gogpu/imdraw"
//		"github.com/gogpu/imdraw/backend"
//		_ "github.com/gogpu/imdraw/backend/gl" // register the OpenGL backend
//	)
//
//	r := backend.MustDefault()
//	if err := r.Initialize(atlas); err != nil {
//		log.Fatal(err)
//	}
//	defer r.CleanUp()
//
//	for running {
//		data := ui.BuildFrame()
//		if err := r.Render(data); err != nil {
//			log.Fatal(err)
//		}
//	}
//
// # Backends
//
//   - "stub": discards everything; headless operation without special-casing
//     call sites (github.com/gogpu/imdraw/backend/stub)
//   - "opengl": vertex-array-object rasterizer over go-gl
//     (github.com/gogpu/imdraw/backend/gl)
//   - "vulkan": descriptor-based pipeline over goki/vulkan
//     (github.com/gogpu/imdraw/backend/vulkan)
//   - "wgpu": render pipeline over wgpu/hal
//     (github.com/gogpu/imdraw/backend/wgpu)
//
// Backends are registered by importing their package and selected once at
// startup via backend.Get or backend.Default; they are never switched at
// runtime.
package imdraw
