package vulkan

import (
	vk "github.com/goki/vulkan"
)

// Default shader asset paths, relative to the working directory.
const (
	DefaultVertShaderPath = "Assets/Default/ImGuiVert.wgsl"
	DefaultFragShaderPath = "Assets/Default/ImGuiFrag.wgsl"
)

// Config holds the host-owned Vulkan objects and creation parameters the
// backend needs. The backend never creates or destroys any of the handles
// listed here; it only creates resources of its own on Device.
type Config struct {
	// PhysicalDevice is used for memory-type selection.
	PhysicalDevice vk.PhysicalDevice

	// Device is the logical device all backend resources are created on.
	Device vk.Device

	// Queue receives the one-shot font upload submission. Usually the
	// graphics queue; any queue with transfer capability works.
	Queue vk.Queue

	// CommandPool allocates the one-shot font upload command buffer.
	CommandPool vk.CommandPool

	// RenderPass is the pass the graphics pipeline is built against.
	RenderPass vk.RenderPass

	// Subpass is the subpass index within RenderPass.
	Subpass uint32

	// VertShaderPath and FragShaderPath locate the WGSL shader sources,
	// compiled to SPIR-V at Initialize. Empty fields use the defaults.
	VertShaderPath string
	FragShaderPath string

	// InitialVtxBytes and InitialIdxBytes are the buffers' starting
	// capacities. Zero fields use 8192 and 1024 bytes.
	InitialVtxBytes int
	InitialIdxBytes int
}

// withDefaults fills unset fields.
func (c Config) withDefaults() Config {
	if c.VertShaderPath == "" {
		c.VertShaderPath = DefaultVertShaderPath
	}
	if c.FragShaderPath == "" {
		c.FragShaderPath = DefaultFragShaderPath
	}
	if c.InitialVtxBytes <= 0 {
		c.InitialVtxBytes = 8192
	}
	if c.InitialIdxBytes <= 0 {
		c.InitialIdxBytes = 1024
	}
	return c
}
