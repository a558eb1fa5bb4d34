package vulkan

import (
	"fmt"
	"unsafe"

	vk "github.com/goki/vulkan"

	"github.com/gogpu/imdraw"
)

// Resource construction is factored into free functions taking explicit
// device parameters so each step is independently testable against a
// device and fails with a typed error instead of half-built state.

// createDescriptorPool creates a pool sized for exactly one set: the
// font atlas texture and its sampler.
func createDescriptorPool(device vk.Device) (vk.DescriptorPool, error) {
	poolSizes := []vk.DescriptorPoolSize{
		{Type: vk.DescriptorTypeSampledImage, DescriptorCount: 1},
		{Type: vk.DescriptorTypeSampler, DescriptorCount: 1},
	}
	info := vk.DescriptorPoolCreateInfo{
		SType:         vk.StructureTypeDescriptorPoolCreateInfo,
		MaxSets:       1,
		PoolSizeCount: uint32(len(poolSizes)),
		PPoolSizes:    poolSizes,
	}

	var pool vk.DescriptorPool
	if res := vk.CreateDescriptorPool(device, &info, nil, &pool); res != vk.Success {
		return vk.NullDescriptorPool, fmt.Errorf("vulkan: vkCreateDescriptorPool failed: %d", res)
	}
	return pool, nil
}

// createFontSampler creates the atlas sampler: linear filtering and
// mipmapping, repeat addressing, no anisotropy, effectively unbounded LOD.
func createFontSampler(device vk.Device) (vk.Sampler, error) {
	info := vk.SamplerCreateInfo{
		SType:         vk.StructureTypeSamplerCreateInfo,
		MagFilter:     vk.FilterLinear,
		MinFilter:     vk.FilterLinear,
		MipmapMode:    vk.SamplerMipmapModeLinear,
		AddressModeU:  vk.SamplerAddressModeRepeat,
		AddressModeV:  vk.SamplerAddressModeRepeat,
		AddressModeW:  vk.SamplerAddressModeRepeat,
		MinLod:        -1000,
		MaxLod:        1000,
		MaxAnisotropy: 1,
	}

	var sampler vk.Sampler
	if res := vk.CreateSampler(device, &info, nil, &sampler); res != vk.Success {
		return vk.NullSampler, fmt.Errorf("vulkan: vkCreateSampler failed: %d", res)
	}
	return sampler, nil
}

// createDescriptorSetLayout creates the fragment-stage layout the
// compiled shaders expect: sampled image at binding 0, sampler at
// binding 1.
func createDescriptorSetLayout(device vk.Device) (vk.DescriptorSetLayout, error) {
	bindings := []vk.DescriptorSetLayoutBinding{
		{
			Binding:         0,
			DescriptorType:  vk.DescriptorTypeSampledImage,
			DescriptorCount: 1,
			StageFlags:      vk.ShaderStageFlags(vk.ShaderStageFragmentBit),
		},
		{
			Binding:         1,
			DescriptorType:  vk.DescriptorTypeSampler,
			DescriptorCount: 1,
			StageFlags:      vk.ShaderStageFlags(vk.ShaderStageFragmentBit),
		},
	}
	info := vk.DescriptorSetLayoutCreateInfo{
		SType:        vk.StructureTypeDescriptorSetLayoutCreateInfo,
		BindingCount: uint32(len(bindings)),
		PBindings:    bindings,
	}

	var layout vk.DescriptorSetLayout
	if res := vk.CreateDescriptorSetLayout(device, &info, nil, &layout); res != vk.Success {
		return vk.NullDescriptorSetLayout, fmt.Errorf("vulkan: vkCreateDescriptorSetLayout failed: %d", res)
	}
	return layout, nil
}

// pushConstantBytes carries a 2-component scale and a 2-component
// translation, mapping display coordinates to normalized device
// coordinates without a full matrix.
const pushConstantBytes = 16

// createPipelineLayout creates the pipeline layout referencing the
// descriptor set layout and one vertex-stage push-constant range.
func createPipelineLayout(device vk.Device, setLayout vk.DescriptorSetLayout) (vk.PipelineLayout, error) {
	pushRange := vk.PushConstantRange{
		StageFlags: vk.ShaderStageFlags(vk.ShaderStageVertexBit),
		Offset:     0,
		Size:       pushConstantBytes,
	}
	info := vk.PipelineLayoutCreateInfo{
		SType:                  vk.StructureTypePipelineLayoutCreateInfo,
		SetLayoutCount:         1,
		PSetLayouts:            []vk.DescriptorSetLayout{setLayout},
		PushConstantRangeCount: 1,
		PPushConstantRanges:    []vk.PushConstantRange{pushRange},
	}

	var layout vk.PipelineLayout
	if res := vk.CreatePipelineLayout(device, &info, nil, &layout); res != vk.Success {
		return vk.NullPipelineLayout, fmt.Errorf("vulkan: vkCreatePipelineLayout failed: %d", res)
	}
	return layout, nil
}

// createPipeline builds the UI graphics pipeline: the imdraw vertex
// layout, triangle-list topology, fill rasterization with no culling,
// single-sample, standard alpha blending, and dynamic viewport+scissor.
func createPipeline(device vk.Device, layout vk.PipelineLayout, renderPass vk.RenderPass,
	subpass uint32, vertModule, fragModule vk.ShaderModule) (vk.Pipeline, error) {
	shaderStages := []vk.PipelineShaderStageCreateInfo{
		{
			SType:  vk.StructureTypePipelineShaderStageCreateInfo,
			Stage:  vk.ShaderStageVertexBit,
			Module: vertModule,
			PName:  safeString("vs_main"),
		},
		{
			SType:  vk.StructureTypePipelineShaderStageCreateInfo,
			Stage:  vk.ShaderStageFragmentBit,
			Module: fragModule,
			PName:  safeString("fs_main"),
		},
	}

	bindingDesc := vk.VertexInputBindingDescription{
		Binding:   0,
		Stride:    imdraw.VertexSize,
		InputRate: vk.VertexInputRateVertex,
	}
	attrDescs := []vk.VertexInputAttributeDescription{
		{Location: 0, Binding: 0, Format: vk.FormatR32g32Sfloat, Offset: 0},
		{Location: 1, Binding: 0, Format: vk.FormatR32g32Sfloat, Offset: 8},
		{Location: 2, Binding: 0, Format: vk.FormatR8g8b8a8Unorm, Offset: 16},
	}
	vertexInput := vk.PipelineVertexInputStateCreateInfo{
		SType:                           vk.StructureTypePipelineVertexInputStateCreateInfo,
		VertexBindingDescriptionCount:   1,
		PVertexBindingDescriptions:      []vk.VertexInputBindingDescription{bindingDesc},
		VertexAttributeDescriptionCount: uint32(len(attrDescs)),
		PVertexAttributeDescriptions:    attrDescs,
	}

	inputAssembly := vk.PipelineInputAssemblyStateCreateInfo{
		SType:    vk.StructureTypePipelineInputAssemblyStateCreateInfo,
		Topology: vk.PrimitiveTopologyTriangleList,
	}

	// One viewport and scissor, both set per-draw via dynamic state.
	viewportState := vk.PipelineViewportStateCreateInfo{
		SType:         vk.StructureTypePipelineViewportStateCreateInfo,
		ViewportCount: 1,
		ScissorCount:  1,
	}

	rasterizer := vk.PipelineRasterizationStateCreateInfo{
		SType:       vk.StructureTypePipelineRasterizationStateCreateInfo,
		PolygonMode: vk.PolygonModeFill,
		CullMode:    vk.CullModeFlags(vk.CullModeNone),
		FrontFace:   vk.FrontFaceCounterClockwise,
		LineWidth:   1,
	}

	multisampling := vk.PipelineMultisampleStateCreateInfo{
		SType:                vk.StructureTypePipelineMultisampleStateCreateInfo,
		RasterizationSamples: vk.SampleCount1Bit,
		MinSampleShading:     1,
	}

	blendAttachment := vk.PipelineColorBlendAttachmentState{
		BlendEnable:         vk.True,
		SrcColorBlendFactor: vk.BlendFactorSrcAlpha,
		DstColorBlendFactor: vk.BlendFactorOneMinusSrcAlpha,
		ColorBlendOp:        vk.BlendOpAdd,
		SrcAlphaBlendFactor: vk.BlendFactorSrcAlpha,
		DstAlphaBlendFactor: vk.BlendFactorOneMinusSrcAlpha,
		AlphaBlendOp:        vk.BlendOpAdd,
		ColorWriteMask: vk.ColorComponentFlags(vk.ColorComponentRBit |
			vk.ColorComponentGBit | vk.ColorComponentBBit | vk.ColorComponentABit),
	}
	colorBlending := vk.PipelineColorBlendStateCreateInfo{
		SType:           vk.StructureTypePipelineColorBlendStateCreateInfo,
		AttachmentCount: 1,
		PAttachments:    []vk.PipelineColorBlendAttachmentState{blendAttachment},
	}

	dynamicStates := []vk.DynamicState{vk.DynamicStateViewport, vk.DynamicStateScissor}
	dynamicState := vk.PipelineDynamicStateCreateInfo{
		SType:             vk.StructureTypePipelineDynamicStateCreateInfo,
		DynamicStateCount: uint32(len(dynamicStates)),
		PDynamicStates:    dynamicStates,
	}

	pipelineInfo := vk.GraphicsPipelineCreateInfo{
		SType:               vk.StructureTypeGraphicsPipelineCreateInfo,
		StageCount:          uint32(len(shaderStages)),
		PStages:             shaderStages,
		PVertexInputState:   &vertexInput,
		PInputAssemblyState: &inputAssembly,
		PViewportState:      &viewportState,
		PRasterizationState: &rasterizer,
		PMultisampleState:   &multisampling,
		PColorBlendState:    &colorBlending,
		PDynamicState:       &dynamicState,
		Layout:              layout,
		RenderPass:          renderPass,
		Subpass:             subpass,
	}

	pipelines := make([]vk.Pipeline, 1)
	if res := vk.CreateGraphicsPipelines(device, vk.PipelineCache(vk.NullHandle), 1,
		[]vk.GraphicsPipelineCreateInfo{pipelineInfo}, nil, pipelines); res != vk.Success {
		return vk.NullPipeline, fmt.Errorf("vulkan: vkCreateGraphicsPipelines failed: %d", res)
	}
	return pipelines[0], nil
}

// createFontImage creates a sampled, transfer-destination RGBA image
// matching the atlas dimensions, backed by device-local memory.
func createFontImage(device vk.Device, physicalDevice vk.PhysicalDevice,
	width, height int) (vk.Image, vk.DeviceMemory, error) {
	info := vk.ImageCreateInfo{
		SType:     vk.StructureTypeImageCreateInfo,
		ImageType: vk.ImageType2d,
		Format:    vk.FormatR8g8b8a8Unorm,
		Extent: vk.Extent3D{
			Width:  uint32(width),
			Height: uint32(height),
			Depth:  1,
		},
		MipLevels:     1,
		ArrayLayers:   1,
		Samples:       vk.SampleCount1Bit,
		Tiling:        vk.ImageTilingOptimal,
		Usage:         vk.ImageUsageFlags(vk.ImageUsageSampledBit | vk.ImageUsageTransferDstBit),
		InitialLayout: vk.ImageLayoutUndefined,
	}

	var image vk.Image
	if res := vk.CreateImage(device, &info, nil, &image); res != vk.Success {
		return vk.NullImage, vk.NullDeviceMemory, fmt.Errorf("vulkan: vkCreateImage (font) failed: %d", res)
	}

	var memReqs vk.MemoryRequirements
	vk.GetImageMemoryRequirements(device, image, &memReqs)
	memReqs.Deref()

	memTypeIndex, err := findMemoryType(physicalDevice, memReqs.MemoryTypeBits,
		vk.MemoryPropertyFlags(vk.MemoryPropertyDeviceLocalBit))
	if err != nil {
		vk.DestroyImage(device, image, nil)
		return vk.NullImage, vk.NullDeviceMemory, err
	}

	allocInfo := vk.MemoryAllocateInfo{
		SType:           vk.StructureTypeMemoryAllocateInfo,
		AllocationSize:  memReqs.Size,
		MemoryTypeIndex: memTypeIndex,
	}
	var memory vk.DeviceMemory
	if res := vk.AllocateMemory(device, &allocInfo, nil, &memory); res != vk.Success {
		vk.DestroyImage(device, image, nil)
		return vk.NullImage, vk.NullDeviceMemory, fmt.Errorf("vulkan: vkAllocateMemory (font) failed: %d", res)
	}

	vk.BindImageMemory(device, image, memory, 0)
	return image, memory, nil
}

// createFontImageView creates the 2D color view over the font image.
func createFontImageView(device vk.Device, image vk.Image) (vk.ImageView, error) {
	info := vk.ImageViewCreateInfo{
		SType:    vk.StructureTypeImageViewCreateInfo,
		Image:    image,
		ViewType: vk.ImageViewType2d,
		Format:   vk.FormatR8g8b8a8Unorm,
		SubresourceRange: vk.ImageSubresourceRange{
			AspectMask: vk.ImageAspectFlags(vk.ImageAspectColorBit),
			LevelCount: 1,
			LayerCount: 1,
		},
	}

	var view vk.ImageView
	if res := vk.CreateImageView(device, &info, nil, &view); res != vk.Success {
		return vk.NullImageView, fmt.Errorf("vulkan: vkCreateImageView (font) failed: %d", res)
	}
	return view, nil
}

// allocateFontDescriptorSet allocates the atlas descriptor set from the
// pool and points it at the sampler and image view.
func allocateFontDescriptorSet(device vk.Device, pool vk.DescriptorPool,
	layout vk.DescriptorSetLayout, sampler vk.Sampler, view vk.ImageView) (vk.DescriptorSet, error) {
	allocInfo := vk.DescriptorSetAllocateInfo{
		SType:              vk.StructureTypeDescriptorSetAllocateInfo,
		DescriptorPool:     pool,
		DescriptorSetCount: 1,
		PSetLayouts:        []vk.DescriptorSetLayout{layout},
	}

	var set vk.DescriptorSet
	if res := vk.AllocateDescriptorSets(device, &allocInfo, &set); res != vk.Success {
		return vk.NullDescriptorSet, fmt.Errorf("vulkan: vkAllocateDescriptorSets failed: %d", res)
	}

	imageInfo := vk.DescriptorImageInfo{
		ImageView:   view,
		ImageLayout: vk.ImageLayoutShaderReadOnlyOptimal,
	}
	samplerInfo := vk.DescriptorImageInfo{
		Sampler: sampler,
	}
	writes := []vk.WriteDescriptorSet{
		{
			SType:           vk.StructureTypeWriteDescriptorSet,
			DstSet:          set,
			DstBinding:      0,
			DescriptorCount: 1,
			DescriptorType:  vk.DescriptorTypeSampledImage,
			PImageInfo:      []vk.DescriptorImageInfo{imageInfo},
		},
		{
			SType:           vk.StructureTypeWriteDescriptorSet,
			DstSet:          set,
			DstBinding:      1,
			DescriptorCount: 1,
			DescriptorType:  vk.DescriptorTypeSampler,
			PImageInfo:      []vk.DescriptorImageInfo{samplerInfo},
		},
	}
	vk.UpdateDescriptorSets(device, uint32(len(writes)), writes, 0, nil)

	return set, nil
}

// deviceBuffer is a buffer plus its backing memory and byte capacity.
// Buffers are never resized in place: growth destroys and recreates.
type deviceBuffer struct {
	buf  vk.Buffer
	mem  vk.DeviceMemory
	size int
}

// createDeviceBuffer creates a host-visible, host-coherent buffer suitable
// for per-frame re-upload.
func createDeviceBuffer(device vk.Device, physicalDevice vk.PhysicalDevice,
	size int, usage vk.BufferUsageFlagBits) (deviceBuffer, error) {
	info := vk.BufferCreateInfo{
		SType:       vk.StructureTypeBufferCreateInfo,
		Size:        vk.DeviceSize(size),
		Usage:       vk.BufferUsageFlags(usage),
		SharingMode: vk.SharingModeExclusive,
	}

	var buf vk.Buffer
	if res := vk.CreateBuffer(device, &info, nil, &buf); res != vk.Success {
		return deviceBuffer{}, fmt.Errorf("vulkan: vkCreateBuffer failed: %d", res)
	}

	var memReqs vk.MemoryRequirements
	vk.GetBufferMemoryRequirements(device, buf, &memReqs)
	memReqs.Deref()

	memTypeIndex, err := findMemoryType(physicalDevice, memReqs.MemoryTypeBits,
		vk.MemoryPropertyFlags(vk.MemoryPropertyHostVisibleBit|vk.MemoryPropertyHostCoherentBit))
	if err != nil {
		vk.DestroyBuffer(device, buf, nil)
		return deviceBuffer{}, err
	}

	allocInfo := vk.MemoryAllocateInfo{
		SType:           vk.StructureTypeMemoryAllocateInfo,
		AllocationSize:  memReqs.Size,
		MemoryTypeIndex: memTypeIndex,
	}
	var memory vk.DeviceMemory
	if res := vk.AllocateMemory(device, &allocInfo, nil, &memory); res != vk.Success {
		vk.DestroyBuffer(device, buf, nil)
		return deviceBuffer{}, fmt.Errorf("vulkan: vkAllocateMemory failed: %d", res)
	}

	vk.BindBufferMemory(device, buf, memory, 0)
	return deviceBuffer{buf: buf, mem: memory, size: size}, nil
}

// upload maps the buffer's memory at offset and copies data in. Each
// upload is a discrete map/copy/unmap; no persistent mapping is assumed.
func (b *deviceBuffer) upload(device vk.Device, offset int, data []byte) {
	if len(data) == 0 {
		return
	}
	var ptr unsafe.Pointer
	vk.MapMemory(device, b.mem, vk.DeviceSize(offset), vk.DeviceSize(len(data)), 0, &ptr)
	vk.Memcopy(ptr, data)
	vk.UnmapMemory(device, b.mem)
}

// destroy releases the buffer and its memory. Safe on the zero value.
func (b *deviceBuffer) destroy(device vk.Device) {
	if b.buf != vk.NullBuffer {
		vk.DestroyBuffer(device, b.buf, nil)
		b.buf = vk.NullBuffer
	}
	if b.mem != vk.NullDeviceMemory {
		vk.FreeMemory(device, b.mem, nil)
		b.mem = vk.NullDeviceMemory
	}
	b.size = 0
}

// findMemoryType locates a memory type matching the filter and property
// flags.
func findMemoryType(physicalDevice vk.PhysicalDevice, typeFilter uint32,
	properties vk.MemoryPropertyFlags) (uint32, error) {
	var memProps vk.PhysicalDeviceMemoryProperties
	vk.GetPhysicalDeviceMemoryProperties(physicalDevice, &memProps)
	memProps.Deref()

	for i := uint32(0); i < memProps.MemoryTypeCount; i++ {
		memProps.MemoryTypes[i].Deref()
		if (typeFilter&(1<<i)) != 0 && (memProps.MemoryTypes[i].PropertyFlags&properties) == properties {
			return i, nil
		}
	}
	return 0, fmt.Errorf("vulkan: no suitable memory type")
}
