// Package vulkan renders draw data through an explicit-API graphics
// backend. The host owns the device, queue, render pass and per-frame
// command buffers; the renderer owns the pipeline, the font atlas
// texture and the geometry buffers it draws from.
//
// Because the renderer records into a host-supplied command buffer, the
// host must call BeginFrame with the active command buffer before Render
// each frame, inside its own render pass.
package vulkan

import (
	"fmt"
	"unsafe"

	vk "github.com/goki/vulkan"

	"github.com/gogpu/imdraw"
	"github.com/gogpu/imdraw/backend"
)

// Renderer draws into a host-provided command buffer using host-owned
// device objects. Construct with New; the zero value is not usable.
type Renderer struct {
	cfg Config

	vertModule vk.ShaderModule
	fragModule vk.ShaderModule

	descriptorPool      vk.DescriptorPool
	descriptorSetLayout vk.DescriptorSetLayout
	fontDescriptorSet   vk.DescriptorSet
	sampler             vk.Sampler

	pipelineLayout vk.PipelineLayout
	pipeline       vk.Pipeline

	fontImage     vk.Image
	fontMemory    vk.DeviceMemory
	fontImageView vk.ImageView

	vtx deviceBuffer
	idx deviceBuffer

	commandBuffer vk.CommandBuffer

	initialized bool
}

// New creates a renderer bound to the host's device objects. The config
// must carry a valid PhysicalDevice, Device, Queue, CommandPool and
// RenderPass; Initialize fails otherwise.
func New(cfg Config) *Renderer {
	return &Renderer{cfg: cfg.withDefaults()}
}

// Name reports the registry name for this backend.
func (r *Renderer) Name() string { return backend.BackendVulkan }

// BeginFrame records the command buffer Render will encode into. Call
// once per frame, after the host begins its render pass.
func (r *Renderer) BeginFrame(cb vk.CommandBuffer) {
	r.commandBuffer = cb
}

// Initialize compiles the shaders, builds the pipeline and descriptor
// objects, and uploads the font atlas. It consumes the atlas pixel data
// on success.
func (r *Renderer) Initialize(fonts *imdraw.FontAtlas) error {
	device := r.cfg.Device

	var err error
	if r.vertModule, err = compileShaderFile(device, r.cfg.VertShaderPath); err != nil {
		return err
	}
	if r.fragModule, err = compileShaderFile(device, r.cfg.FragShaderPath); err != nil {
		return err
	}

	if r.descriptorPool, err = createDescriptorPool(device); err != nil {
		return err
	}
	if r.sampler, err = createFontSampler(device); err != nil {
		return err
	}
	if r.descriptorSetLayout, err = createDescriptorSetLayout(device); err != nil {
		return err
	}
	if r.pipelineLayout, err = createPipelineLayout(device, r.descriptorSetLayout); err != nil {
		return err
	}
	if r.pipeline, err = createPipeline(device, r.pipelineLayout, r.cfg.RenderPass,
		r.cfg.Subpass, r.vertModule, r.fragModule); err != nil {
		return err
	}

	if err = r.uploadFontAtlas(fonts); err != nil {
		return err
	}

	if r.vtx, err = createDeviceBuffer(device, r.cfg.PhysicalDevice,
		r.cfg.InitialVtxBytes, vk.BufferUsageVertexBufferBit); err != nil {
		return err
	}
	if r.idx, err = createDeviceBuffer(device, r.cfg.PhysicalDevice,
		r.cfg.InitialIdxBytes, vk.BufferUsageIndexBufferBit); err != nil {
		return err
	}

	r.initialized = true
	imdraw.Logger().Info("vulkan backend initialized",
		"vertShader", r.cfg.VertShaderPath,
		"fragShader", r.cfg.FragShaderPath)
	return nil
}

// uploadFontAtlas creates the atlas image and pushes the pixels through
// a staging buffer in a one-shot command buffer, waiting for the queue
// to drain before freeing the staging resources.
func (r *Renderer) uploadFontAtlas(fonts *imdraw.FontAtlas) error {
	device := r.cfg.Device

	pixels, width, height, _, err := fonts.TexDataRGBA32()
	if err != nil {
		return err
	}

	if r.fontImage, r.fontMemory, err = createFontImage(device, r.cfg.PhysicalDevice, width, height); err != nil {
		return err
	}
	if r.fontImageView, err = createFontImageView(device, r.fontImage); err != nil {
		return err
	}
	if r.fontDescriptorSet, err = allocateFontDescriptorSet(device, r.descriptorPool,
		r.descriptorSetLayout, r.sampler, r.fontImageView); err != nil {
		return err
	}

	staging, err := createDeviceBuffer(device, r.cfg.PhysicalDevice, len(pixels),
		vk.BufferUsageTransferSrcBit)
	if err != nil {
		return err
	}
	defer staging.destroy(device)

	staging.upload(device, 0, pixels)

	cb, err := r.beginOneShot()
	if err != nil {
		return err
	}

	// undefined -> transfer-dst, copy, transfer-dst -> shader-read.
	toTransfer := vk.ImageMemoryBarrier{
		SType:               vk.StructureTypeImageMemoryBarrier,
		DstAccessMask:       vk.AccessFlags(vk.AccessTransferWriteBit),
		OldLayout:           vk.ImageLayoutUndefined,
		NewLayout:           vk.ImageLayoutTransferDstOptimal,
		SrcQueueFamilyIndex: vk.QueueFamilyIgnored,
		DstQueueFamilyIndex: vk.QueueFamilyIgnored,
		Image:               r.fontImage,
		SubresourceRange: vk.ImageSubresourceRange{
			AspectMask: vk.ImageAspectFlags(vk.ImageAspectColorBit),
			LevelCount: 1,
			LayerCount: 1,
		},
	}
	vk.CmdPipelineBarrier(cb,
		vk.PipelineStageFlags(vk.PipelineStageHostBit),
		vk.PipelineStageFlags(vk.PipelineStageTransferBit),
		0, 0, nil, 0, nil, 1, []vk.ImageMemoryBarrier{toTransfer})

	region := vk.BufferImageCopy{
		ImageSubresource: vk.ImageSubresourceLayers{
			AspectMask: vk.ImageAspectFlags(vk.ImageAspectColorBit),
			LayerCount: 1,
		},
		ImageExtent: vk.Extent3D{
			Width:  uint32(width),
			Height: uint32(height),
			Depth:  1,
		},
	}
	vk.CmdCopyBufferToImage(cb, staging.buf, r.fontImage,
		vk.ImageLayoutTransferDstOptimal, 1, []vk.BufferImageCopy{region})

	toShaderRead := vk.ImageMemoryBarrier{
		SType:               vk.StructureTypeImageMemoryBarrier,
		SrcAccessMask:       vk.AccessFlags(vk.AccessTransferWriteBit),
		DstAccessMask:       vk.AccessFlags(vk.AccessShaderReadBit),
		OldLayout:           vk.ImageLayoutTransferDstOptimal,
		NewLayout:           vk.ImageLayoutShaderReadOnlyOptimal,
		SrcQueueFamilyIndex: vk.QueueFamilyIgnored,
		DstQueueFamilyIndex: vk.QueueFamilyIgnored,
		Image:               r.fontImage,
		SubresourceRange: vk.ImageSubresourceRange{
			AspectMask: vk.ImageAspectFlags(vk.ImageAspectColorBit),
			LevelCount: 1,
			LayerCount: 1,
		},
	}
	vk.CmdPipelineBarrier(cb,
		vk.PipelineStageFlags(vk.PipelineStageTransferBit),
		vk.PipelineStageFlags(vk.PipelineStageFragmentShaderBit),
		0, 0, nil, 0, nil, 1, []vk.ImageMemoryBarrier{toShaderRead})

	if err = r.endOneShot(cb); err != nil {
		return err
	}

	fonts.SetTexID(imdraw.DescriptorSetID(r.fontDescriptorSet))
	fonts.ClearTexData()
	return nil
}

// beginOneShot allocates and begins a single-use command buffer from the
// host's pool.
func (r *Renderer) beginOneShot() (vk.CommandBuffer, error) {
	allocInfo := vk.CommandBufferAllocateInfo{
		SType:              vk.StructureTypeCommandBufferAllocateInfo,
		CommandPool:        r.cfg.CommandPool,
		Level:              vk.CommandBufferLevelPrimary,
		CommandBufferCount: 1,
	}
	cbs := make([]vk.CommandBuffer, 1)
	if res := vk.AllocateCommandBuffers(r.cfg.Device, &allocInfo, cbs); res != vk.Success {
		return nil, fmt.Errorf("vulkan: vkAllocateCommandBuffers failed: %d", res)
	}

	beginInfo := vk.CommandBufferBeginInfo{
		SType: vk.StructureTypeCommandBufferBeginInfo,
		Flags: vk.CommandBufferUsageFlags(vk.CommandBufferUsageOneTimeSubmitBit),
	}
	if res := vk.BeginCommandBuffer(cbs[0], &beginInfo); res != vk.Success {
		vk.FreeCommandBuffers(r.cfg.Device, r.cfg.CommandPool, 1, cbs)
		return nil, fmt.Errorf("vulkan: vkBeginCommandBuffer failed: %d", res)
	}
	return cbs[0], nil
}

// endOneShot submits the command buffer, waits for the queue to go idle,
// then frees it.
func (r *Renderer) endOneShot(cb vk.CommandBuffer) error {
	defer vk.FreeCommandBuffers(r.cfg.Device, r.cfg.CommandPool, 1, []vk.CommandBuffer{cb})

	if res := vk.EndCommandBuffer(cb); res != vk.Success {
		return fmt.Errorf("vulkan: vkEndCommandBuffer failed: %d", res)
	}
	submitInfo := vk.SubmitInfo{
		SType:              vk.StructureTypeSubmitInfo,
		CommandBufferCount: 1,
		PCommandBuffers:    []vk.CommandBuffer{cb},
	}
	if res := vk.QueueSubmit(r.cfg.Queue, 1, []vk.SubmitInfo{submitInfo},
		vk.Fence(vk.NullHandle)); res != vk.Success {
		return fmt.Errorf("vulkan: vkQueueSubmit failed: %d", res)
	}
	vk.QueueWaitIdle(r.cfg.Queue)
	return nil
}

// displayTransform matches the vertex shader's push constant block.
type displayTransform struct {
	ScaleX, ScaleY         float32
	TranslateX, TranslateY float32
}

// Render encodes the draw data into the command buffer set by BeginFrame.
// A minimized framebuffer or empty draw data is a successful no-op.
func (r *Renderer) Render(data *imdraw.DrawData) error {
	if !r.initialized {
		return backend.ErrNotInitialized
	}

	if !data.Valid() {
		return nil
	}
	fbWidth, fbHeight := data.FramebufferSize()
	if r.commandBuffer == nil {
		return fmt.Errorf("vulkan: no command buffer, call BeginFrame first")
	}

	if err := r.growBuffers(data); err != nil {
		return err
	}
	r.uploadGeometry(data)

	cb := r.commandBuffer
	vk.CmdBindPipeline(cb, vk.PipelineBindPointGraphics, r.pipeline)
	vk.CmdBindVertexBuffers(cb, 0, 1, []vk.Buffer{r.vtx.buf}, []vk.DeviceSize{0})
	vk.CmdBindIndexBuffer(cb, r.idx.buf, 0, vk.IndexTypeUint16)

	viewport := vk.Viewport{
		Width:    fbWidth,
		Height:   fbHeight,
		MaxDepth: 1,
	}
	vk.CmdSetViewport(cb, 0, 1, []vk.Viewport{viewport})

	// Display coordinates to NDC via a scale and translate pair.
	// Must be a local for cgo pointer rules.
	transform := displayTransform{
		ScaleX:     2.0 / data.DisplaySize.X,
		ScaleY:     2.0 / data.DisplaySize.Y,
		TranslateX: -1.0 - data.DisplayPos.X*(2.0/data.DisplaySize.X),
		TranslateY: -1.0 - data.DisplayPos.Y*(2.0/data.DisplaySize.Y),
	}
	vk.CmdPushConstants(cb, r.pipelineLayout,
		vk.ShaderStageFlags(vk.ShaderStageVertexBit),
		0, pushConstantBytes, unsafe.Pointer(&transform))

	if err := r.drawLists(cb, data, fbWidth, fbHeight); err != nil {
		return err
	}

	// Leave the scissor covering the whole framebuffer for whoever
	// records into the command buffer after us.
	fullScissor := vk.Rect2D{
		Extent: vk.Extent2D{Width: uint32(fbWidth), Height: uint32(fbHeight)},
	}
	vk.CmdSetScissor(cb, 0, 1, []vk.Rect2D{fullScissor})

	return nil
}

// growBuffers ensures the vertex and index buffers can hold the frame's
// geometry, destroying and recreating with doubled capacity when not.
func (r *Renderer) growBuffers(data *imdraw.DrawData) error {
	device := r.cfg.Device

	if newSize := backend.GrowCapacity(r.vtx.size, data.VtxBytes()); newSize > r.vtx.size {
		r.vtx.destroy(device)
		if newSize < r.cfg.InitialVtxBytes {
			newSize = r.cfg.InitialVtxBytes
		}
		buf, err := createDeviceBuffer(device, r.cfg.PhysicalDevice, newSize,
			vk.BufferUsageVertexBufferBit)
		if err != nil {
			return err
		}
		r.vtx = buf
	}

	if newSize := backend.GrowCapacity(r.idx.size, data.IdxBytes()); newSize > r.idx.size {
		r.idx.destroy(device)
		if newSize < r.cfg.InitialIdxBytes {
			newSize = r.cfg.InitialIdxBytes
		}
		buf, err := createDeviceBuffer(device, r.cfg.PhysicalDevice, newSize,
			vk.BufferUsageIndexBufferBit)
		if err != nil {
			return err
		}
		r.idx = buf
	}
	return nil
}

// uploadGeometry copies every list's vertices and indices into the
// device buffers back to back, in list order.
func (r *Renderer) uploadGeometry(data *imdraw.DrawData) {
	device := r.cfg.Device

	vtxOffset, idxOffset := 0, 0
	for _, list := range data.Lists {
		if len(list.VtxBuffer) > 0 {
			r.vtx.upload(device, vtxOffset, vertBytes(list.VtxBuffer))
			vtxOffset += len(list.VtxBuffer) * imdraw.VertexSize
		}
		if len(list.IdxBuffer) > 0 {
			r.idx.upload(device, idxOffset, idxBytes(list.IdxBuffer))
			idxOffset += len(list.IdxBuffer) * imdraw.IndexSize
		}
	}
}

// drawLists walks every command of every list, clipping and issuing one
// indexed draw per command. Offsets into the shared buffers accumulate
// across lists.
func (r *Renderer) drawLists(cb vk.CommandBuffer, data *imdraw.DrawData, fbWidth, fbHeight float32) error {
	listVtxBase, listIdxBase := 0, 0
	for _, list := range data.Lists {
		for i := range list.CmdBuffer {
			cmd := &list.CmdBuffer[i]
			if cmd.UserCallback != nil {
				return backend.ErrUserCallbackUnsupported
			}
			if cmd.ElemCount == 0 {
				continue
			}

			x, y, w, h, ok := backend.ClampClip(cmd.ClipRect,
				data.DisplayPos, data.FramebufferScale, fbWidth, fbHeight)
			if !ok {
				continue
			}
			scissor := vk.Rect2D{
				Offset: vk.Offset2D{X: x, Y: y},
				Extent: vk.Extent2D{Width: uint32(w), Height: uint32(h)},
			}
			vk.CmdSetScissor(cb, 0, 1, []vk.Rect2D{scissor})

			set := r.fontDescriptorSet
			if ds, isSet := cmd.TexID.Handle().(vk.DescriptorSet); isSet && cmd.TexID.Kind() == imdraw.TextureDescriptorSet {
				set = ds
			}
			vk.CmdBindDescriptorSets(cb, vk.PipelineBindPointGraphics,
				r.pipelineLayout, 0, 1, []vk.DescriptorSet{set}, 0, nil)

			vk.CmdDrawIndexed(cb,
				cmd.ElemCount, 1,
				uint32(listIdxBase)+cmd.IdxOffset,
				int32(listVtxBase)+int32(cmd.VtxOffset), 0)
		}
		listVtxBase += len(list.VtxBuffer)
		listIdxBase += len(list.IdxBuffer)
	}
	return nil
}

// CleanUp destroys renderer-owned objects in reverse dependency order.
// Host-owned objects from the config are untouched. Safe to call more
// than once.
func (r *Renderer) CleanUp() {
	device := r.cfg.Device
	if device == nil {
		return
	}

	r.vtx.destroy(device)
	r.idx.destroy(device)

	if r.fontImageView != vk.NullImageView {
		vk.DestroyImageView(device, r.fontImageView, nil)
		r.fontImageView = vk.NullImageView
	}
	if r.fontImage != vk.NullImage {
		vk.DestroyImage(device, r.fontImage, nil)
		r.fontImage = vk.NullImage
	}
	if r.fontMemory != vk.NullDeviceMemory {
		vk.FreeMemory(device, r.fontMemory, nil)
		r.fontMemory = vk.NullDeviceMemory
	}

	if r.pipeline != vk.NullPipeline {
		vk.DestroyPipeline(device, r.pipeline, nil)
		r.pipeline = vk.NullPipeline
	}
	if r.pipelineLayout != vk.NullPipelineLayout {
		vk.DestroyPipelineLayout(device, r.pipelineLayout, nil)
		r.pipelineLayout = vk.NullPipelineLayout
	}
	if r.descriptorSetLayout != vk.NullDescriptorSetLayout {
		vk.DestroyDescriptorSetLayout(device, r.descriptorSetLayout, nil)
		r.descriptorSetLayout = vk.NullDescriptorSetLayout
	}
	if r.sampler != vk.NullSampler {
		vk.DestroySampler(device, r.sampler, nil)
		r.sampler = vk.NullSampler
	}
	if r.descriptorPool != vk.NullDescriptorPool {
		vk.DestroyDescriptorPool(device, r.descriptorPool, nil)
		r.descriptorPool = vk.NullDescriptorPool
	}

	if r.vertModule != vk.NullShaderModule {
		vk.DestroyShaderModule(device, r.vertModule, nil)
		r.vertModule = vk.NullShaderModule
	}
	if r.fragModule != vk.NullShaderModule {
		vk.DestroyShaderModule(device, r.fragModule, nil)
		r.fragModule = vk.NullShaderModule
	}

	r.commandBuffer = nil
	r.initialized = false
	imdraw.Logger().Info("vulkan backend cleaned up")
}
