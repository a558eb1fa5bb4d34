package backend

import (
	"sync"

	"github.com/gogpu/imdraw"
)

// Registered backend names.
const (
	// BackendStub is the no-op backend; always available.
	BackendStub = "stub"

	// BackendGL is the OpenGL 3.3 rasterizer backend.
	BackendGL = "opengl"

	// BackendVulkan is the descriptor-based Vulkan backend.
	BackendVulkan = "vulkan"

	// BackendWGPU is the wgpu/hal backend.
	BackendWGPU = "wgpu"
)

// Factory creates a new backend instance.
type Factory func() Renderer

// registry holds registered backends.
var (
	registryMu sync.RWMutex
	backends   = make(map[string]Factory)
	// Priority order for backend selection (first available wins).
	// Stub is last: it is always registered and draws nothing.
	backendPriority = []string{BackendVulkan, BackendGL, BackendWGPU, BackendStub}
)

// Register registers a backend factory with the given name.
// This is typically called from init() functions in backend packages.
// If a backend with the same name is already registered, it is replaced.
func Register(name string, factory Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	backends[name] = factory
}

// Unregister removes a backend from the registry.
// This is useful for testing.
func Unregister(name string) {
	registryMu.Lock()
	defer registryMu.Unlock()
	delete(backends, name)
}

// Available returns a list of registered backend names.
func Available() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	names := make([]string, 0, len(backends))
	for name := range backends {
		names = append(names, name)
	}
	return names
}

// IsRegistered checks if a backend with the given name is registered.
func IsRegistered(name string) bool {
	registryMu.RLock()
	defer registryMu.RUnlock()
	_, ok := backends[name]
	return ok
}

// Get returns a backend instance by name.
// Returns nil if the backend is not registered.
func Get(name string) Renderer {
	registryMu.RLock()
	defer registryMu.RUnlock()

	factory, ok := backends[name]
	if !ok {
		return nil
	}
	return factory()
}

// Default returns the best available backend based on priority.
// Priority order: vulkan > opengl > wgpu > stub.
// Returns nil if no backends are registered.
func Default() Renderer {
	registryMu.RLock()
	defer registryMu.RUnlock()

	for _, name := range backendPriority {
		if factory, ok := backends[name]; ok {
			if r := factory(); r != nil {
				return r
			}
		}
	}

	// Fallback: return first available
	for _, factory := range backends {
		if r := factory(); r != nil {
			return r
		}
	}

	return nil
}

// MustDefault returns the default backend or panics.
func MustDefault() Renderer {
	r := Default()
	if r == nil {
		panic("backend: no backend available")
	}
	return r
}

// InitDefault returns the best available backend, already initialized
// with the given font atlas. Returns ErrBackendNotAvailable when
// nothing is registered.
func InitDefault(fonts *imdraw.FontAtlas) (Renderer, error) {
	r := Default()
	if r == nil {
		return nil, ErrBackendNotAvailable
	}
	if err := r.Initialize(fonts); err != nil {
		return nil, err
	}
	return r, nil
}
