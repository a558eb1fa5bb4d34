// Package wgpu renders imdraw draw data through the gogpu HAL.
//
// The renderer records into a host-supplied render pass encoder: call
// BeginFrame with the frame's encoder before Render, inside a pass that
// targets the configured texture format. Device and queue normally come
// from the host via New or FromProvider; a renderer obtained from the
// backend registry opens its own device on first Initialize.
package wgpu

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/imdraw"
	"github.com/gogpu/imdraw/backend"
)

func init() {
	backend.Register(backend.BackendWGPU, func() backend.Renderer {
		return NewSelfHosted(DefaultConfig())
	})
}

// uniformSize is the byte size of the shader uniform block:
// scale (vec2<f32>) + translate (vec2<f32>).
const uniformSize = 16

// Config holds renderer settings.
type Config struct {
	// TargetFormat is the color format of the render pass the UI draws
	// into. Default: BGRA8Unorm, the common surface format.
	TargetFormat gputypes.TextureFormat

	// SampleCount must match the host render pass. Default: 1.
	SampleCount uint32

	// InitialVtxBytes and InitialIdxBytes size the geometry buffers
	// before the first growth. Defaults: 8192 and 1024.
	InitialVtxBytes int
	InitialIdxBytes int
}

// DefaultConfig returns the default renderer settings.
func DefaultConfig() Config {
	return Config{
		TargetFormat:    gputypes.TextureFormatBGRA8Unorm,
		SampleCount:     1,
		InitialVtxBytes: 8192,
		InitialIdxBytes: 1024,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.TargetFormat == gputypes.TextureFormatUndefined {
		c.TargetFormat = d.TargetFormat
	}
	if c.SampleCount == 0 {
		c.SampleCount = d.SampleCount
	}
	if c.InitialVtxBytes <= 0 {
		c.InitialVtxBytes = d.InitialVtxBytes
	}
	if c.InitialIdxBytes <= 0 {
		c.InitialIdxBytes = d.InitialIdxBytes
	}
	return c
}

// Renderer draws UI geometry through a hal.Device and hal.Queue.
type Renderer struct {
	cfg    Config
	device hal.Device
	queue  hal.Queue

	// Set when the renderer opened its own device and must tear it down.
	instance   hal.Instance
	ownsDevice bool

	pipe uiPipeline

	uniformBuf hal.Buffer
	vtxBuf     hal.Buffer
	idxBuf     hal.Buffer
	vtxSize    int
	idxSize    int

	fontTex  hal.Texture
	fontView hal.TextureView
	fontBind hal.BindGroup

	pass hal.RenderPassEncoder

	initialized bool
}

// New creates a renderer on a host-owned device and queue.
func New(device hal.Device, queue hal.Queue, cfg Config) *Renderer {
	return &Renderer{
		cfg:    cfg.withDefaults(),
		device: device,
		queue:  queue,
	}
}

// NewSelfHosted creates a renderer that opens its own device on
// Initialize. Used by the backend registry where no host device exists.
func NewSelfHosted(cfg Config) *Renderer {
	return &Renderer{cfg: cfg.withDefaults(), ownsDevice: true}
}

// halProvider is satisfied by windowing hosts that expose their HAL
// device, such as gogpu application contexts.
type halProvider interface {
	HalDevice() any
	HalQueue() any
}

// FromProvider creates a renderer sharing the device of a windowing
// host. The provider must expose HalDevice() any and HalQueue() any
// returning hal.Device and hal.Queue.
func FromProvider(provider any, cfg Config) (*Renderer, error) {
	hp, ok := provider.(halProvider)
	if !ok {
		return nil, fmt.Errorf("wgpu: provider does not expose a HAL device")
	}
	device, ok := hp.HalDevice().(hal.Device)
	if !ok {
		return nil, fmt.Errorf("wgpu: provider HalDevice is not hal.Device")
	}
	queue, ok := hp.HalQueue().(hal.Queue)
	if !ok {
		return nil, fmt.Errorf("wgpu: provider HalQueue is not hal.Queue")
	}
	return New(device, queue, cfg), nil
}

// FromContext creates a renderer sharing the device of a
// gpucontext.DeviceProvider, such as a gogpu application context. The
// provider's surface format becomes the target format unless cfg sets
// one. The underlying device must be HAL-backed, either through
// HalDevice/HalQueue accessors or by returning hal types directly.
func FromContext(provider gpucontext.DeviceProvider, cfg Config) (*Renderer, error) {
	if provider == nil {
		return nil, fmt.Errorf("wgpu: nil device provider")
	}
	if cfg.TargetFormat == gputypes.TextureFormatUndefined {
		cfg.TargetFormat = provider.SurfaceFormat()
	}
	if hp, ok := provider.(halProvider); ok {
		return FromProvider(hp, cfg)
	}
	device, ok := provider.Device().(hal.Device)
	if !ok {
		return nil, fmt.Errorf("wgpu: provider device is not hal.Device")
	}
	queue, ok := provider.Queue().(hal.Queue)
	if !ok {
		return nil, fmt.Errorf("wgpu: provider queue is not hal.Queue")
	}
	return New(device, queue, cfg), nil
}

// Name reports the registry name for this backend.
func (r *Renderer) Name() string { return backend.BackendWGPU }

// BeginFrame records the render pass encoder Render will draw into.
// Call once per frame after the host begins its pass.
func (r *Renderer) BeginFrame(rp hal.RenderPassEncoder) {
	r.pass = rp
}

// Initialize builds the pipeline, the uniform buffer and the font atlas
// texture. It consumes the atlas pixel data on success.
func (r *Renderer) Initialize(fonts *imdraw.FontAtlas) error {
	if r.device == nil {
		if !r.ownsDevice {
			return fmt.Errorf("wgpu: no device")
		}
		if err := r.openDevice(); err != nil {
			return err
		}
	}

	r.pipe.device = r.device
	if err := r.pipe.create(r.cfg); err != nil {
		return err
	}

	uniformBuf, err := r.device.CreateBuffer(&hal.BufferDescriptor{
		Label: "imdraw_ui_uniform",
		Size:  uniformSize,
		Usage: gputypes.BufferUsageUniform | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return fmt.Errorf("create uniform buffer: %w", err)
	}
	r.uniformBuf = uniformBuf

	if err := r.uploadFontAtlas(fonts); err != nil {
		return err
	}

	r.initialized = true
	imdraw.Logger().Info("wgpu backend initialized",
		"format", r.cfg.TargetFormat,
		"samples", r.cfg.SampleCount)
	return nil
}

// openDevice bootstraps a device from the first usable adapter.
func (r *Renderer) openDevice() error {
	halBackend, ok := hal.GetBackend(gputypes.BackendVulkan)
	if !ok {
		return backend.ErrBackendNotAvailable
	}
	instance, err := halBackend.CreateInstance(&hal.InstanceDescriptor{Flags: 0})
	if err != nil {
		return fmt.Errorf("create instance: %w", err)
	}
	adapters := instance.EnumerateAdapters(nil)
	if len(adapters) == 0 {
		instance.Destroy()
		return fmt.Errorf("wgpu: no GPU adapters found")
	}
	var selected *hal.ExposedAdapter
	for i := range adapters {
		if adapters[i].Info.DeviceType == gputypes.DeviceTypeDiscreteGPU ||
			adapters[i].Info.DeviceType == gputypes.DeviceTypeIntegratedGPU {
			selected = &adapters[i]
			break
		}
	}
	if selected == nil {
		selected = &adapters[0]
	}
	openDev, err := selected.Adapter.Open(gputypes.Features(0), gputypes.DefaultLimits())
	if err != nil {
		instance.Destroy()
		return fmt.Errorf("open device: %w", err)
	}
	r.instance = instance
	r.device = openDev.Device
	r.queue = openDev.Queue
	imdraw.Logger().Info("wgpu backend opened device", "adapter", selected.Info.Name)
	return nil
}

// uploadFontAtlas creates the atlas texture, uploads the pixels and
// builds the font bind group published through the atlas TexID.
func (r *Renderer) uploadFontAtlas(fonts *imdraw.FontAtlas) error {
	pixels, width, height, _, err := fonts.TexDataRGBA32()
	if err != nil {
		return err
	}

	w, h := uint32(width), uint32(height)
	tex, err := r.device.CreateTexture(&hal.TextureDescriptor{
		Label:         "imdraw_font_atlas",
		Size:          hal.Extent3D{Width: w, Height: h, DepthOrArrayLayers: 1},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     gputypes.TextureDimension2D,
		Format:        gputypes.TextureFormatRGBA8Unorm,
		Usage:         gputypes.TextureUsageTextureBinding | gputypes.TextureUsageCopyDst,
	})
	if err != nil {
		return fmt.Errorf("create font texture: %w", err)
	}
	r.fontTex = tex

	view, err := r.device.CreateTextureView(tex, &hal.TextureViewDescriptor{
		Label:         "imdraw_font_atlas_view",
		Format:        gputypes.TextureFormatRGBA8Unorm,
		Dimension:     gputypes.TextureViewDimension2D,
		Aspect:        gputypes.TextureAspectAll,
		MipLevelCount: 1,
	})
	if err != nil {
		return fmt.Errorf("create font texture view: %w", err)
	}
	r.fontView = view

	r.queue.WriteTexture(
		&hal.ImageCopyTexture{Texture: tex, MipLevel: 0},
		pixels,
		&hal.ImageDataLayout{Offset: 0, BytesPerRow: w * 4, RowsPerImage: h},
		&hal.Extent3D{Width: w, Height: h, DepthOrArrayLayers: 1},
	)

	bind, err := r.createTextureBindGroup(view, "imdraw_font_bind")
	if err != nil {
		return err
	}
	r.fontBind = bind

	fonts.SetTexID(imdraw.BindGroupID(bind))
	fonts.ClearTexData()
	return nil
}

// createTextureBindGroup builds a bind group pairing the shared uniform
// buffer and sampler with the given texture view.
func (r *Renderer) createTextureBindGroup(view hal.TextureView, label string) (hal.BindGroup, error) {
	bind, err := r.device.CreateBindGroup(&hal.BindGroupDescriptor{
		Label:  label,
		Layout: r.pipe.bindLayout,
		Entries: []gputypes.BindGroupEntry{
			{Binding: 0, Resource: gputypes.BufferBinding{
				Buffer: r.uniformBuf.NativeHandle(), Offset: 0, Size: uniformSize,
			}},
			{Binding: 1, Resource: gputypes.TextureViewBinding{
				TextureView: view.NativeHandle(),
			}},
			{Binding: 2, Resource: gputypes.SamplerBinding{
				Sampler: r.pipe.sampler.NativeHandle(),
			}},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("create bind group %q: %w", label, err)
	}
	return bind, nil
}

// Render encodes the draw data into the pass set by BeginFrame.
// A minimized framebuffer or empty draw data is a successful no-op.
func (r *Renderer) Render(data *imdraw.DrawData) error {
	if !r.initialized {
		return backend.ErrNotInitialized
	}

	if !data.Valid() {
		return nil
	}
	fbWidth, fbHeight := data.FramebufferSize()
	if r.pass == nil {
		return fmt.Errorf("wgpu: no render pass, call BeginFrame first")
	}

	if err := r.growBuffers(data); err != nil {
		return err
	}
	r.uploadGeometry(data)
	r.queue.WriteBuffer(r.uniformBuf, 0, buildUniformData(data))

	rp := r.pass
	rp.SetPipeline(r.pipe.pipeline)
	rp.SetVertexBuffer(0, r.vtxBuf, 0)
	rp.SetIndexBuffer(r.idxBuf, gputypes.IndexFormatUint16, 0)
	rp.SetViewport(0, 0, fbWidth, fbHeight, 0, 1)

	if err := r.drawLists(rp, data, fbWidth, fbHeight); err != nil {
		return err
	}

	// Leave the scissor open for whatever the host draws next.
	rp.SetScissorRect(0, 0, uint32(fbWidth), uint32(fbHeight))
	return nil
}

// growBuffers ensures the geometry buffers hold the frame's data,
// recreating with doubled capacity when they do not.
func (r *Renderer) growBuffers(data *imdraw.DrawData) error {
	if newSize := backend.GrowCapacity(r.vtxSize, data.VtxBytes()); newSize > r.vtxSize || r.vtxBuf == nil {
		if r.vtxBuf != nil {
			r.device.DestroyBuffer(r.vtxBuf)
		}
		if newSize < r.cfg.InitialVtxBytes {
			newSize = r.cfg.InitialVtxBytes
		}
		buf, err := r.device.CreateBuffer(&hal.BufferDescriptor{
			Label: "imdraw_ui_vertices",
			Size:  uint64(newSize),
			Usage: gputypes.BufferUsageVertex | gputypes.BufferUsageCopyDst,
		})
		if err != nil {
			return fmt.Errorf("create vertex buffer: %w", err)
		}
		r.vtxBuf = buf
		r.vtxSize = newSize
	}

	if newSize := backend.GrowCapacity(r.idxSize, data.IdxBytes()); newSize > r.idxSize || r.idxBuf == nil {
		if r.idxBuf != nil {
			r.device.DestroyBuffer(r.idxBuf)
		}
		if newSize < r.cfg.InitialIdxBytes {
			newSize = r.cfg.InitialIdxBytes
		}
		buf, err := r.device.CreateBuffer(&hal.BufferDescriptor{
			Label: "imdraw_ui_indices",
			Size:  uint64(newSize),
			Usage: gputypes.BufferUsageIndex | gputypes.BufferUsageCopyDst,
		})
		if err != nil {
			return fmt.Errorf("create index buffer: %w", err)
		}
		r.idxBuf = buf
		r.idxSize = newSize
	}
	return nil
}

// uploadGeometry writes every list's vertices and indices into the
// shared buffers back to back, in list order.
func (r *Renderer) uploadGeometry(data *imdraw.DrawData) {
	vtxOffset, idxOffset := uint64(0), uint64(0)
	for _, list := range data.Lists {
		if len(list.VtxBuffer) > 0 {
			vtxData := buildVertexData(list.VtxBuffer)
			r.queue.WriteBuffer(r.vtxBuf, vtxOffset, vtxData)
			vtxOffset += uint64(len(vtxData))
		}
		if len(list.IdxBuffer) > 0 {
			idxData := buildIndexData(list.IdxBuffer)
			r.queue.WriteBuffer(r.idxBuf, idxOffset, idxData)
			idxOffset += uint64(len(idxData))
		}
	}
}

// drawLists walks every command of every list, clipping and issuing one
// indexed draw per command. Buffer offsets accumulate across lists.
func (r *Renderer) drawLists(rp hal.RenderPassEncoder, data *imdraw.DrawData, fbWidth, fbHeight float32) error {
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
			rp.SetScissorRect(uint32(x), uint32(y), uint32(w), uint32(h))

			bind := r.fontBind
			if bg, isBind := cmd.TexID.Handle().(hal.BindGroup); isBind && cmd.TexID.Kind() == imdraw.TextureBindGroup {
				bind = bg
			}
			rp.SetBindGroup(0, bind, nil)

			rp.DrawIndexed(cmd.ElemCount, 1,
				uint32(listIdxBase)+cmd.IdxOffset,
				int32(listVtxBase)+int32(cmd.VtxOffset), 0)
		}
		listVtxBase += len(list.VtxBuffer)
		listIdxBase += len(list.IdxBuffer)
	}
	return nil
}

// CleanUp releases all GPU resources. Safe to call more than once.
func (r *Renderer) CleanUp() {
	if r.device == nil {
		return
	}

	if r.fontBind != nil {
		r.device.DestroyBindGroup(r.fontBind)
		r.fontBind = nil
	}
	if r.fontView != nil {
		r.device.DestroyTextureView(r.fontView)
		r.fontView = nil
	}
	if r.fontTex != nil {
		r.device.DestroyTexture(r.fontTex)
		r.fontTex = nil
	}
	if r.vtxBuf != nil {
		r.device.DestroyBuffer(r.vtxBuf)
		r.vtxBuf = nil
		r.vtxSize = 0
	}
	if r.idxBuf != nil {
		r.device.DestroyBuffer(r.idxBuf)
		r.idxBuf = nil
		r.idxSize = 0
	}
	if r.uniformBuf != nil {
		r.device.DestroyBuffer(r.uniformBuf)
		r.uniformBuf = nil
	}

	r.pipe.destroy()

	if r.ownsDevice {
		r.device.Destroy()
		r.device = nil
		r.queue = nil
		if r.instance != nil {
			r.instance.Destroy()
			r.instance = nil
		}
	}

	r.pass = nil
	r.initialized = false
	imdraw.Logger().Info("wgpu backend cleaned up")
}

// ---- Upload data builders ----

// buildUniformData serializes the display transform uniform block.
func buildUniformData(data *imdraw.DrawData) []byte {
	scaleX := 2.0 / data.DisplaySize.X
	scaleY := 2.0 / data.DisplaySize.Y
	buf := make([]byte, uniformSize)
	binary.LittleEndian.PutUint32(buf[0:], math.Float32bits(scaleX))
	binary.LittleEndian.PutUint32(buf[4:], math.Float32bits(scaleY))
	binary.LittleEndian.PutUint32(buf[8:], math.Float32bits(-1.0-data.DisplayPos.X*scaleX))
	binary.LittleEndian.PutUint32(buf[12:], math.Float32bits(-1.0-data.DisplayPos.Y*scaleY))
	return buf
}

// buildVertexData serializes vertices into their 20-byte wire form.
func buildVertexData(verts []imdraw.DrawVert) []byte {
	data := make([]byte, len(verts)*imdraw.VertexSize)
	off := 0
	for _, v := range verts {
		binary.LittleEndian.PutUint32(data[off+0:], math.Float32bits(v.Pos.X))
		binary.LittleEndian.PutUint32(data[off+4:], math.Float32bits(v.Pos.Y))
		binary.LittleEndian.PutUint32(data[off+8:], math.Float32bits(v.UV.X))
		binary.LittleEndian.PutUint32(data[off+12:], math.Float32bits(v.UV.Y))
		binary.LittleEndian.PutUint32(data[off+16:], v.Col)
		off += imdraw.VertexSize
	}
	return data
}

// buildIndexData serializes indices into little-endian bytes.
func buildIndexData(indices []imdraw.DrawIdx) []byte {
	data := make([]byte, len(indices)*imdraw.IndexSize)
	for i, idx := range indices {
		binary.LittleEndian.PutUint16(data[i*2:], idx)
	}
	return data
}
