package wgpu

import (
	_ "embed"
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/imdraw"
)

// Embedded UI shader source.
//
//go:embed shaders/ui.wgsl
var uiShaderSource string

// uiPipeline owns the long-lived pipeline objects: shader module, bind
// group layout, pipeline layout, render pipeline and the font sampler.
// Per-frame buffers and bind groups live on the Renderer.
type uiPipeline struct {
	device hal.Device

	shader     hal.ShaderModule
	bindLayout hal.BindGroupLayout
	pipeLayout hal.PipelineLayout
	pipeline   hal.RenderPipeline
	sampler    hal.Sampler
}

// create compiles the UI shader and builds the render pipeline with
// classic alpha blending for non-premultiplied UI colors.
func (p *uiPipeline) create(cfg Config) error {
	if uiShaderSource == "" {
		return fmt.Errorf("ui shader source is empty")
	}

	shader, err := p.device.CreateShaderModule(&hal.ShaderModuleDescriptor{
		Label:  "imdraw_ui_shader",
		Source: hal.ShaderSource{WGSL: uiShaderSource},
	})
	if err != nil {
		return fmt.Errorf("compile ui shader: %w", err)
	}
	p.shader = shader

	// Bind group layout:
	//   Binding 0: Uniforms (uniform buffer, vertex)
	//   Binding 1: texture (texture_2d, fragment)
	//   Binding 2: sampler (fragment)
	bindLayout, err := p.device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label: "imdraw_ui_bind_layout",
		Entries: []gputypes.BindGroupLayoutEntry{
			{
				Binding:    0,
				Visibility: gputypes.ShaderStageVertex,
				Buffer:     &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeUniform},
			},
			{
				Binding:    1,
				Visibility: gputypes.ShaderStageFragment,
				Texture: &gputypes.TextureBindingLayout{
					SampleType:    gputypes.TextureSampleTypeFloat,
					ViewDimension: gputypes.TextureViewDimension2D,
				},
			},
			{
				Binding:    2,
				Visibility: gputypes.ShaderStageFragment,
				Sampler:    &gputypes.SamplerBindingLayout{Type: gputypes.SamplerBindingTypeFiltering},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("create ui bind layout: %w", err)
	}
	p.bindLayout = bindLayout

	pipeLayout, err := p.device.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label:            "imdraw_ui_pipe_layout",
		BindGroupLayouts: []hal.BindGroupLayout{p.bindLayout},
	})
	if err != nil {
		return fmt.Errorf("create ui pipeline layout: %w", err)
	}
	p.pipeLayout = pipeLayout

	sampler, err := p.device.CreateSampler(&hal.SamplerDescriptor{
		Label:        "imdraw_ui_sampler",
		AddressModeU: gputypes.AddressModeRepeat,
		AddressModeV: gputypes.AddressModeRepeat,
		AddressModeW: gputypes.AddressModeRepeat,
		MagFilter:    gputypes.FilterModeLinear,
		MinFilter:    gputypes.FilterModeLinear,
		MipmapFilter: gputypes.FilterModeLinear,
	})
	if err != nil {
		return fmt.Errorf("create ui sampler: %w", err)
	}
	p.sampler = sampler

	alphaBlend := gputypes.BlendState{
		Color: gputypes.BlendComponent{
			SrcFactor: gputypes.BlendFactorSrcAlpha,
			DstFactor: gputypes.BlendFactorOneMinusSrcAlpha,
			Operation: gputypes.BlendOperationAdd,
		},
		Alpha: gputypes.BlendComponent{
			SrcFactor: gputypes.BlendFactorOne,
			DstFactor: gputypes.BlendFactorOneMinusSrcAlpha,
			Operation: gputypes.BlendOperationAdd,
		},
	}
	pipeline, err := p.device.CreateRenderPipeline(&hal.RenderPipelineDescriptor{
		Label:  "imdraw_ui_pipeline",
		Layout: p.pipeLayout,
		Vertex: hal.VertexState{
			Module:     p.shader,
			EntryPoint: "vs_main",
			Buffers:    uiVertexLayout(),
		},
		Fragment: &hal.FragmentState{
			Module:     p.shader,
			EntryPoint: "fs_main",
			Targets: []gputypes.ColorTargetState{
				{
					Format:    cfg.TargetFormat,
					Blend:     &alphaBlend,
					WriteMask: gputypes.ColorWriteMaskAll,
				},
			},
		},
		Primitive: gputypes.PrimitiveState{
			Topology: gputypes.PrimitiveTopologyTriangleList,
			CullMode: gputypes.CullModeNone,
		},
		Multisample: gputypes.MultisampleState{
			Count: cfg.SampleCount,
			Mask:  0xFFFFFFFF,
		},
	})
	if err != nil {
		return fmt.Errorf("create ui pipeline: %w", err)
	}
	p.pipeline = pipeline

	return nil
}

// destroy releases pipeline resources in reverse creation order. Safe to
// call more than once.
func (p *uiPipeline) destroy() {
	if p.device == nil {
		return
	}
	if p.pipeline != nil {
		p.device.DestroyRenderPipeline(p.pipeline)
		p.pipeline = nil
	}
	if p.sampler != nil {
		p.device.DestroySampler(p.sampler)
		p.sampler = nil
	}
	if p.pipeLayout != nil {
		p.device.DestroyPipelineLayout(p.pipeLayout)
		p.pipeLayout = nil
	}
	if p.bindLayout != nil {
		p.device.DestroyBindGroupLayout(p.bindLayout)
		p.bindLayout = nil
	}
	if p.shader != nil {
		p.device.DestroyShaderModule(p.shader)
		p.shader = nil
	}
}

// uiVertexLayout returns the vertex buffer layout for the UI pipeline.
// Matches the vs_main inputs in ui.wgsl:
//
//	location 0: pos   (vec2<f32>)
//	location 1: uv    (vec2<f32>)
//	location 2: color (vec4<f32>, unpacked from 4 unorm bytes)
func uiVertexLayout() []gputypes.VertexBufferLayout {
	return []gputypes.VertexBufferLayout{
		{
			ArrayStride: imdraw.VertexSize,
			StepMode:    gputypes.VertexStepModeVertex,
			Attributes: []gputypes.VertexAttribute{
				{Format: gputypes.VertexFormatFloat32x2, Offset: 0, ShaderLocation: 0},
				{Format: gputypes.VertexFormatFloat32x2, Offset: 8, ShaderLocation: 1},
				{Format: gputypes.VertexFormatUnorm8x4, Offset: 16, ShaderLocation: 2},
			},
		},
	}
}
