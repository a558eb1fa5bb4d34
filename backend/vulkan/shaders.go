package vulkan

import (
	"fmt"
	"os"
	"unsafe"

	"github.com/gogpu/naga"
	vk "github.com/goki/vulkan"
)

// compileShaderFile reads a WGSL source file, compiles it to SPIR-V and
// wraps it in a shader module. Compilation happens once per Initialize.
func compileShaderFile(device vk.Device, path string) (vk.ShaderModule, error) {
	source, err := os.ReadFile(path)
	if err != nil {
		return vk.NullShaderModule, fmt.Errorf("vulkan: read shader %s: %w", path, err)
	}

	spirv, err := naga.Compile(string(source))
	if err != nil {
		return vk.NullShaderModule, fmt.Errorf("vulkan: compile shader %s: %w", path, err)
	}

	return createShaderModule(device, spirv)
}

// createShaderModule creates a shader module from SPIR-V bytecode.
func createShaderModule(device vk.Device, code []byte) (vk.ShaderModule, error) {
	createInfo := vk.ShaderModuleCreateInfo{
		SType:    vk.StructureTypeShaderModuleCreateInfo,
		CodeSize: uint64(len(code)),
		PCode:    sliceUint32(code),
	}

	var module vk.ShaderModule
	if res := vk.CreateShaderModule(device, &createInfo, nil, &module); res != vk.Success {
		return vk.NullShaderModule, fmt.Errorf("vulkan: vkCreateShaderModule failed: %d", res)
	}
	return module, nil
}

// safeString creates a null-terminated string for Vulkan.
func safeString(s string) string {
	return s + "\x00"
}

// sliceUint32 reinterprets SPIR-V bytes as little-endian 32-bit words.
func sliceUint32(data []byte) []uint32 {
	return unsafe.Slice((*uint32)(unsafe.Pointer(&data[0])), len(data)/4)
}
