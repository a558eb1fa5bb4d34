package wgpu

import (
	"encoding/binary"
	"errors"
	"math"
	"testing"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
	"github.com/gogpu/wgpu/hal/noop"

	"github.com/gogpu/imdraw"
	"github.com/gogpu/imdraw/backend"
)

// createNoopDevice creates a noop device and queue for testing.
// Returns the device, queue, and a cleanup function.
func createNoopDevice(t *testing.T) (hal.Device, hal.Queue, func()) {
	t.Helper()
	api := noop.API{}
	instance, err := api.CreateInstance(nil)
	if err != nil {
		t.Fatalf("CreateInstance failed: %v", err)
	}
	adapters := instance.EnumerateAdapters(nil)
	openDev, err := adapters[0].Adapter.Open(0, gputypes.DefaultLimits())
	if err != nil {
		instance.Destroy()
		t.Fatalf("Open failed: %v", err)
	}
	cleanup := func() {
		openDev.Device.Destroy()
		instance.Destroy()
	}
	return openDev.Device, openDev.Queue, cleanup
}

// beginTestPass opens a render pass on a throwaway target texture.
// Returns the encoder and a cleanup that ends the pass and discards
// the encoding.
func beginTestPass(t *testing.T, device hal.Device) (hal.RenderPassEncoder, func()) {
	t.Helper()

	tex, err := device.CreateTexture(&hal.TextureDescriptor{
		Label:         "test_target",
		Size:          hal.Extent3D{Width: 64, Height: 64, DepthOrArrayLayers: 1},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     gputypes.TextureDimension2D,
		Format:        gputypes.TextureFormatBGRA8Unorm,
		Usage:         gputypes.TextureUsageRenderAttachment,
	})
	if err != nil {
		t.Fatalf("CreateTexture failed: %v", err)
	}
	view, err := device.CreateTextureView(tex, &hal.TextureViewDescriptor{
		Label:         "test_target_view",
		Format:        gputypes.TextureFormatBGRA8Unorm,
		Dimension:     gputypes.TextureViewDimension2D,
		Aspect:        gputypes.TextureAspectAll,
		MipLevelCount: 1,
	})
	if err != nil {
		t.Fatalf("CreateTextureView failed: %v", err)
	}

	encoder, err := device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: "test_encoder"})
	if err != nil {
		t.Fatalf("CreateCommandEncoder failed: %v", err)
	}
	if err := encoder.BeginEncoding("test_frame"); err != nil {
		t.Fatalf("BeginEncoding failed: %v", err)
	}
	rp := encoder.BeginRenderPass(&hal.RenderPassDescriptor{
		Label: "test_pass",
		ColorAttachments: []hal.RenderPassColorAttachment{{
			View:       view,
			LoadOp:     gputypes.LoadOpClear,
			StoreOp:    gputypes.StoreOpStore,
			ClearValue: gputypes.Color{},
		}},
	})

	cleanup := func() {
		rp.End()
		encoder.DiscardEncoding()
		device.DestroyTextureView(view)
		device.DestroyTexture(tex)
	}
	return rp, cleanup
}

// newTestAtlas returns a tiny 2x2 white atlas.
func newTestAtlas() *imdraw.FontAtlas {
	pixels := make([]byte, 2*2*4)
	for i := range pixels {
		pixels[i] = 0xFF
	}
	return imdraw.NewFontAtlas(pixels, 2, 2)
}

// oneTriangleData returns draw data with one list holding a single
// clipped triangle.
func oneTriangleData() *imdraw.DrawData {
	data := imdraw.NewDrawData(imdraw.Vec2{X: 640, Y: 480})
	data.AddList(&imdraw.DrawList{
		VtxBuffer: []imdraw.DrawVert{
			{Pos: imdraw.Vec2{X: 0, Y: 0}, Col: 0xFFFFFFFF},
			{Pos: imdraw.Vec2{X: 10, Y: 0}, Col: 0xFFFFFFFF},
			{Pos: imdraw.Vec2{X: 0, Y: 10}, Col: 0xFFFFFFFF},
		},
		IdxBuffer: []imdraw.DrawIdx{0, 1, 2},
		CmdBuffer: []imdraw.DrawCmd{
			{ClipRect: imdraw.ClipRect{X1: 640, Y1: 480}, ElemCount: 3},
		},
	})
	return data
}

func TestRendererInitialize(t *testing.T) {
	device, queue, cleanup := createNoopDevice(t)
	defer cleanup()

	r := New(device, queue, DefaultConfig())
	defer r.CleanUp()

	fonts := newTestAtlas()
	if err := r.Initialize(fonts); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}

	if got := fonts.TexID().Kind(); got != imdraw.TextureBindGroup {
		t.Errorf("atlas TexID kind = %v, want TextureBindGroup", got)
	}
	if fonts.HasTexData() {
		t.Error("atlas pixel data should be released after upload")
	}
}

func TestRendererName(t *testing.T) {
	r := NewSelfHosted(DefaultConfig())
	if r.Name() != backend.BackendWGPU {
		t.Errorf("Name() = %q, want %q", r.Name(), backend.BackendWGPU)
	}
}

func TestRenderNotInitialized(t *testing.T) {
	r := NewSelfHosted(DefaultConfig())
	err := r.Render(oneTriangleData())
	if !errors.Is(err, backend.ErrNotInitialized) {
		t.Errorf("Render before Initialize: err = %v, want ErrNotInitialized", err)
	}
}

func TestRenderSkipsDegenerateFrames(t *testing.T) {
	device, queue, cleanup := createNoopDevice(t)
	defer cleanup()

	r := New(device, queue, DefaultConfig())
	defer r.CleanUp()
	if err := r.Initialize(newTestAtlas()); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}

	// No BeginFrame: a skipped frame must not need a pass.
	tests := []struct {
		name string
		data *imdraw.DrawData
	}{
		{"empty lists", imdraw.NewDrawData(imdraw.Vec2{X: 640, Y: 480})},
		{"zero width", func() *imdraw.DrawData {
			d := oneTriangleData()
			d.DisplaySize.X = 0
			return d
		}()},
		{"minimized", func() *imdraw.DrawData {
			d := oneTriangleData()
			d.DisplaySize = imdraw.Vec2{}
			return d
		}()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := r.Render(tt.data); err != nil {
				t.Errorf("Render(%s) = %v, want nil", tt.name, err)
			}
		})
	}
}

func TestRenderWithoutBeginFrame(t *testing.T) {
	device, queue, cleanup := createNoopDevice(t)
	defer cleanup()

	r := New(device, queue, DefaultConfig())
	defer r.CleanUp()
	if err := r.Initialize(newTestAtlas()); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}

	if err := r.Render(oneTriangleData()); err == nil {
		t.Error("Render without BeginFrame should fail")
	}
}

func TestRenderDrawData(t *testing.T) {
	device, queue, cleanup := createNoopDevice(t)
	defer cleanup()

	r := New(device, queue, DefaultConfig())
	defer r.CleanUp()
	if err := r.Initialize(newTestAtlas()); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}

	rp, endPass := beginTestPass(t, device)
	defer endPass()

	r.BeginFrame(rp)
	if err := r.Render(oneTriangleData()); err != nil {
		t.Fatalf("Render failed: %v", err)
	}

	if r.vtxSize < 3*imdraw.VertexSize {
		t.Errorf("vertex capacity %d cannot hold 3 vertices", r.vtxSize)
	}
	if r.idxSize < 3*imdraw.IndexSize {
		t.Errorf("index capacity %d cannot hold 3 indices", r.idxSize)
	}
}

func TestRenderBufferGrowthMonotonic(t *testing.T) {
	device, queue, cleanup := createNoopDevice(t)
	defer cleanup()

	cfg := DefaultConfig()
	cfg.InitialVtxBytes = 64
	cfg.InitialIdxBytes = 16
	r := New(device, queue, cfg)
	defer r.CleanUp()
	if err := r.Initialize(newTestAtlas()); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}

	rp, endPass := beginTestPass(t, device)
	defer endPass()
	r.BeginFrame(rp)

	// A big frame forces growth past the initial capacity.
	big := imdraw.NewDrawData(imdraw.Vec2{X: 640, Y: 480})
	verts := make([]imdraw.DrawVert, 100)
	indices := make([]imdraw.DrawIdx, 300)
	for i := range indices {
		indices[i] = imdraw.DrawIdx(i % 100)
	}
	big.AddList(&imdraw.DrawList{
		VtxBuffer: verts,
		IdxBuffer: indices,
		CmdBuffer: []imdraw.DrawCmd{
			{ClipRect: imdraw.ClipRect{X1: 640, Y1: 480}, ElemCount: 300},
		},
	})

	if err := r.Render(big); err != nil {
		t.Fatalf("Render(big) failed: %v", err)
	}
	grown := r.vtxSize
	if grown < big.VtxBytes() {
		t.Fatalf("vertex capacity %d < frame size %d", grown, big.VtxBytes())
	}

	// A small follow-up frame must not shrink the buffers.
	if err := r.Render(oneTriangleData()); err != nil {
		t.Fatalf("Render(small) failed: %v", err)
	}
	if r.vtxSize != grown {
		t.Errorf("vertex capacity shrank from %d to %d", grown, r.vtxSize)
	}
}

func TestRenderUserCallbackUnsupported(t *testing.T) {
	device, queue, cleanup := createNoopDevice(t)
	defer cleanup()

	r := New(device, queue, DefaultConfig())
	defer r.CleanUp()
	if err := r.Initialize(newTestAtlas()); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}

	rp, endPass := beginTestPass(t, device)
	defer endPass()
	r.BeginFrame(rp)

	data := oneTriangleData()
	data.Lists[0].CmdBuffer[0].UserCallback = func(*imdraw.DrawList, *imdraw.DrawCmd) {}

	err := r.Render(data)
	if !errors.Is(err, backend.ErrUserCallbackUnsupported) {
		t.Errorf("Render with user callback: err = %v, want ErrUserCallbackUnsupported", err)
	}
}

func TestCleanUpIdempotent(t *testing.T) {
	device, queue, cleanup := createNoopDevice(t)
	defer cleanup()

	r := New(device, queue, DefaultConfig())
	if err := r.Initialize(newTestAtlas()); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}

	r.CleanUp()
	r.CleanUp() // must not panic

	if err := r.Render(oneTriangleData()); !errors.Is(err, backend.ErrNotInitialized) {
		t.Errorf("Render after CleanUp: err = %v, want ErrNotInitialized", err)
	}
}

func TestFromProviderRejectsBadProvider(t *testing.T) {
	if _, err := FromProvider(struct{}{}, DefaultConfig()); err == nil {
		t.Error("FromProvider with non-provider should fail")
	}
}

type testHalProvider struct {
	device hal.Device
	queue  hal.Queue
}

func (p *testHalProvider) HalDevice() any { return p.device }
func (p *testHalProvider) HalQueue() any  { return p.queue }

func TestFromProvider(t *testing.T) {
	device, queue, cleanup := createNoopDevice(t)
	defer cleanup()

	r, err := FromProvider(&testHalProvider{device: device, queue: queue}, DefaultConfig())
	if err != nil {
		t.Fatalf("FromProvider failed: %v", err)
	}
	if r.device != device {
		t.Error("device not taken from provider")
	}
	if r.queue != queue {
		t.Error("queue not taken from provider")
	}
}

type testContextProvider struct {
	device hal.Device
	queue  hal.Queue
	format gputypes.TextureFormat
}

func (p *testContextProvider) Device() gpucontext.Device             { return p.device }
func (p *testContextProvider) Queue() gpucontext.Queue               { return p.queue }
func (p *testContextProvider) Adapter() gpucontext.Adapter           { return nil }
func (p *testContextProvider) AdapterInfo() gpucontext.AdapterInfo   { return gpucontext.AdapterInfo{} }
func (p *testContextProvider) SurfaceFormat() gputypes.TextureFormat { return p.format }

func TestFromContext(t *testing.T) {
	device, queue, cleanup := createNoopDevice(t)
	defer cleanup()

	provider := &testContextProvider{
		device: device,
		queue:  queue,
		format: gputypes.TextureFormatRGBA8Unorm,
	}

	r, err := FromContext(provider, Config{})
	if err != nil {
		t.Fatalf("FromContext failed: %v", err)
	}
	if r.device != device || r.queue != queue {
		t.Error("device or queue not taken from provider")
	}
	if r.cfg.TargetFormat != gputypes.TextureFormatRGBA8Unorm {
		t.Errorf("TargetFormat = %v, want provider surface format", r.cfg.TargetFormat)
	}
}

func TestFromContextNil(t *testing.T) {
	if _, err := FromContext(nil, DefaultConfig()); err == nil {
		t.Error("FromContext(nil) should fail")
	}
}

func TestBuildVertexData(t *testing.T) {
	verts := []imdraw.DrawVert{
		{Pos: imdraw.Vec2{X: 1, Y: 2}, UV: imdraw.Vec2{X: 0.5, Y: 0.25}, Col: 0xAABBCCDD},
	}
	data := buildVertexData(verts)
	if len(data) != imdraw.VertexSize {
		t.Fatalf("len = %d, want %d", len(data), imdraw.VertexSize)
	}

	if got := math.Float32frombits(binary.LittleEndian.Uint32(data[0:])); got != 1 {
		t.Errorf("pos.x = %v, want 1", got)
	}
	if got := math.Float32frombits(binary.LittleEndian.Uint32(data[4:])); got != 2 {
		t.Errorf("pos.y = %v, want 2", got)
	}
	if got := math.Float32frombits(binary.LittleEndian.Uint32(data[8:])); got != 0.5 {
		t.Errorf("uv.x = %v, want 0.5", got)
	}
	if got := binary.LittleEndian.Uint32(data[16:]); got != 0xAABBCCDD {
		t.Errorf("col = %#x, want 0xAABBCCDD", got)
	}
}

func TestBuildIndexData(t *testing.T) {
	data := buildIndexData([]imdraw.DrawIdx{1, 2, 0xFFFF})
	if len(data) != 6 {
		t.Fatalf("len = %d, want 6", len(data))
	}
	if got := binary.LittleEndian.Uint16(data[4:]); got != 0xFFFF {
		t.Errorf("idx[2] = %d, want 65535", got)
	}
}

func TestBuildUniformData(t *testing.T) {
	data := imdraw.NewDrawData(imdraw.Vec2{X: 640, Y: 480})
	buf := buildUniformData(data)
	if len(buf) != uniformSize {
		t.Fatalf("len = %d, want %d", len(buf), uniformSize)
	}

	scaleX := math.Float32frombits(binary.LittleEndian.Uint32(buf[0:]))
	scaleY := math.Float32frombits(binary.LittleEndian.Uint32(buf[4:]))
	transX := math.Float32frombits(binary.LittleEndian.Uint32(buf[8:]))
	if scaleX != 2.0/640 {
		t.Errorf("scale.x = %v, want %v", scaleX, 2.0/640)
	}
	if scaleY != 2.0/480 {
		t.Errorf("scale.y = %v, want %v", scaleY, 2.0/480)
	}
	// Zero display origin maps to the NDC left edge.
	if transX != -1 {
		t.Errorf("translate.x = %v, want -1", transX)
	}
}

// recordedDraw is one DrawIndexed call together with the scissor and
// bind group that were current when it was issued.
type recordedDraw struct {
	indexCount uint32
	firstIndex uint32
	baseVertex int32
	bind       hal.BindGroup
	scissor    [4]uint32
}

// recordingPass captures the draw commands Render issues. The embedded
// encoder is nil; only the methods Render calls are implemented.
type recordingPass struct {
	hal.RenderPassEncoder

	bind    hal.BindGroup
	scissor [4]uint32
	draws   []recordedDraw
}

func (p *recordingPass) SetPipeline(hal.RenderPipeline)                          {}
func (p *recordingPass) SetVertexBuffer(uint32, hal.Buffer, uint64)              {}
func (p *recordingPass) SetIndexBuffer(hal.Buffer, gputypes.IndexFormat, uint64) {}
func (p *recordingPass) SetViewport(x, y, w, h, minDepth, maxDepth float32)      {}

func (p *recordingPass) SetBindGroup(_ uint32, group hal.BindGroup, _ []uint32) {
	p.bind = group
}

func (p *recordingPass) SetScissorRect(x, y, w, h uint32) {
	p.scissor = [4]uint32{x, y, w, h}
}

func (p *recordingPass) DrawIndexed(indexCount, _, firstIndex uint32, baseVertex int32, _ uint32) {
	p.draws = append(p.draws, recordedDraw{
		indexCount: indexCount,
		firstIndex: firstIndex,
		baseVertex: baseVertex,
		bind:       p.bind,
		scissor:    p.scissor,
	})
}

func TestRenderOffsetsAccumulateAcrossLists(t *testing.T) {
	device, queue, cleanup := createNoopDevice(t)
	defer cleanup()

	r := New(device, queue, DefaultConfig())
	defer r.CleanUp()
	if err := r.Initialize(newTestAtlas()); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}

	rec := &recordingPass{}
	r.BeginFrame(rec)

	clip := imdraw.ClipRect{X1: 640, Y1: 480}
	data := imdraw.NewDrawData(imdraw.Vec2{X: 640, Y: 480})
	data.AddList(&imdraw.DrawList{
		VtxBuffer: make([]imdraw.DrawVert, 4),
		IdxBuffer: []imdraw.DrawIdx{0, 1, 2, 0, 2, 3},
		CmdBuffer: []imdraw.DrawCmd{{ClipRect: clip, ElemCount: 6}},
	})
	data.AddList(&imdraw.DrawList{
		VtxBuffer: make([]imdraw.DrawVert, 3),
		IdxBuffer: []imdraw.DrawIdx{0, 1, 2, 1, 2, 0},
		CmdBuffer: []imdraw.DrawCmd{
			{ClipRect: clip, ElemCount: 3, IdxOffset: 3, VtxOffset: 1},
		},
	})

	if err := r.Render(data); err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	if len(rec.draws) != 2 {
		t.Fatalf("recorded %d draws, want 2", len(rec.draws))
	}
	if got := rec.draws[0]; got.firstIndex != 0 || got.baseVertex != 0 {
		t.Errorf("first list draw = (firstIndex %d, baseVertex %d), want (0, 0)",
			got.firstIndex, got.baseVertex)
	}
	// The second list's geometry sits after the first list's 6 indices
	// and 4 vertices; the command's own offsets add on top.
	if got := rec.draws[1]; got.firstIndex != 9 || got.baseVertex != 5 {
		t.Errorf("second list draw = (firstIndex %d, baseVertex %d), want (9, 5)",
			got.firstIndex, got.baseVertex)
	}
	if rec.draws[1].indexCount != 3 {
		t.Errorf("second draw indexCount = %d, want 3", rec.draws[1].indexCount)
	}
}

func TestRenderSkipsDegenerateClipSiblings(t *testing.T) {
	device, queue, cleanup := createNoopDevice(t)
	defer cleanup()

	r := New(device, queue, DefaultConfig())
	defer r.CleanUp()
	if err := r.Initialize(newTestAtlas()); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}

	rec := &recordingPass{}
	r.BeginFrame(rec)

	clip := imdraw.ClipRect{X1: 640, Y1: 480}
	data := imdraw.NewDrawData(imdraw.Vec2{X: 640, Y: 480})
	data.AddList(&imdraw.DrawList{
		VtxBuffer: make([]imdraw.DrawVert, 4),
		IdxBuffer: []imdraw.DrawIdx{0, 1, 2, 0, 2, 3},
		CmdBuffer: []imdraw.DrawCmd{
			{ClipRect: clip, ElemCount: 3},
			// Fully off screen. Skipped, but the commands after it
			// still draw.
			{ClipRect: imdraw.ClipRect{X0: 700, Y0: 500, X1: 800, Y1: 600}, ElemCount: 3},
			{ClipRect: clip, ElemCount: 3, IdxOffset: 3},
		},
	})

	if err := r.Render(data); err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	if len(rec.draws) != 2 {
		t.Fatalf("recorded %d draws, want 2", len(rec.draws))
	}
	if got := rec.draws[0].scissor; got != [4]uint32{0, 0, 640, 480} {
		t.Errorf("first draw scissor = %v, want [0 0 640 480]", got)
	}
	if rec.draws[1].firstIndex != 3 {
		t.Errorf("draw after skipped command firstIndex = %d, want 3", rec.draws[1].firstIndex)
	}
}

func TestRenderBindsPerCommandTexture(t *testing.T) {
	device, queue, cleanup := createNoopDevice(t)
	defer cleanup()

	r := New(device, queue, DefaultConfig())
	defer r.CleanUp()
	if err := r.Initialize(newTestAtlas()); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}

	extra, err := r.createTextureBindGroup(r.fontView, "test_extra_bind")
	if err != nil {
		t.Fatalf("createTextureBindGroup failed: %v", err)
	}
	defer device.DestroyBindGroup(extra)

	rec := &recordingPass{}
	r.BeginFrame(rec)

	clip := imdraw.ClipRect{X1: 640, Y1: 480}
	data := imdraw.NewDrawData(imdraw.Vec2{X: 640, Y: 480})
	data.AddList(&imdraw.DrawList{
		VtxBuffer: make([]imdraw.DrawVert, 4),
		IdxBuffer: []imdraw.DrawIdx{0, 1, 2, 0, 2, 3},
		CmdBuffer: []imdraw.DrawCmd{
			{ClipRect: clip, ElemCount: 3},
			{ClipRect: clip, ElemCount: 3, IdxOffset: 3, TexID: imdraw.BindGroupID(extra)},
		},
	})

	if err := r.Render(data); err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	if len(rec.draws) != 2 {
		t.Fatalf("recorded %d draws, want 2", len(rec.draws))
	}
	if rec.draws[0].bind != r.fontBind {
		t.Error("command without TexID did not bind the font atlas group")
	}
	if rec.draws[1].bind != extra {
		t.Error("command TexID bind group was not used for the draw")
	}
}
