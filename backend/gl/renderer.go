// Package gl renders imdraw draw data through OpenGL 3.3 core.
//
// The backend owns one vertex array object, a growable vertex and index
// buffer pair, a compiled shader program and the font atlas texture. It
// requires a current OpenGL context on the calling goroutine for every
// operation; register it only when one exists:
//
//	import _ "github.com/gogpu/imdraw/backend/gl"
package gl

import (
	"fmt"

	"github.com/go-gl/gl/v3.3-core/gl"
	"github.com/go-gl/mathgl/mgl32"

	"github.com/gogpu/imdraw"
	"github.com/gogpu/imdraw/backend"
)

func init() {
	backend.Register(backend.BackendGL, func() backend.Renderer {
		return New(DefaultConfig())
	})
}

// Config holds creation parameters for the OpenGL backend.
type Config struct {
	// InitialVtxBytes is the vertex buffer's starting capacity in bytes.
	InitialVtxBytes int

	// InitialIdxBytes is the index buffer's starting capacity in bytes.
	InitialIdxBytes int
}

// DefaultConfig returns the default buffer capacities.
func DefaultConfig() Config {
	return Config{
		InitialVtxBytes: 8192,
		InitialIdxBytes: 1024,
	}
}

// Renderer is the OpenGL rasterizer backend. Create with New, then follow
// the backend.Renderer lifecycle. Not safe for concurrent use.
type Renderer struct {
	config Config

	vao     uint32
	vbo     uint32
	ebo     uint32
	vboSize int
	eboSize int

	program uint32
	projLoc int32
	texLoc  int32
	fontTex uint32

	initialized bool
}

var _ backend.Renderer = (*Renderer)(nil)

// New creates an OpenGL backend with the given configuration. Zero config
// fields fall back to the defaults.
func New(config Config) *Renderer {
	def := DefaultConfig()
	if config.InitialVtxBytes <= 0 {
		config.InitialVtxBytes = def.InitialVtxBytes
	}
	if config.InitialIdxBytes <= 0 {
		config.InitialIdxBytes = def.InitialIdxBytes
	}
	return &Renderer{config: config}
}

// Name implements backend.Renderer.
func (*Renderer) Name() string { return backend.BackendGL }

// Initialize creates the vertex array object, the growable buffers, the
// shader program and the font atlas texture, and records the texture name
// into fonts.
func (r *Renderer) Initialize(fonts *imdraw.FontAtlas) error {
	gl.GenVertexArrays(1, &r.vao)
	gl.BindVertexArray(r.vao)

	gl.GenBuffers(1, &r.vbo)
	gl.BindBuffer(gl.ARRAY_BUFFER, r.vbo)
	gl.BufferData(gl.ARRAY_BUFFER, r.config.InitialVtxBytes, nil, gl.DYNAMIC_DRAW)
	r.vboSize = r.config.InitialVtxBytes

	gl.GenBuffers(1, &r.ebo)
	gl.BindBuffer(gl.ELEMENT_ARRAY_BUFFER, r.ebo)
	gl.BufferData(gl.ELEMENT_ARRAY_BUFFER, r.config.InitialIdxBytes, nil, gl.DYNAMIC_DRAW)
	r.eboSize = r.config.InitialIdxBytes

	// Vertex layout mirrors imdraw.DrawVert: pos, uv, packed color.
	gl.EnableVertexAttribArray(0)
	gl.VertexAttribPointer(0, 2, gl.FLOAT, false, imdraw.VertexSize, gl.PtrOffset(0))
	gl.EnableVertexAttribArray(1)
	gl.VertexAttribPointer(1, 2, gl.FLOAT, false, imdraw.VertexSize, gl.PtrOffset(8))
	gl.EnableVertexAttribArray(2)
	gl.VertexAttribPointer(2, 4, gl.UNSIGNED_BYTE, true, imdraw.VertexSize, gl.PtrOffset(16))

	program, err := buildProgram()
	if err != nil {
		return err
	}
	r.program = program
	r.projLoc = gl.GetUniformLocation(program, gl.Str("uProjection\x00"))
	r.texLoc = gl.GetUniformLocation(program, gl.Str("uTexture\x00"))

	if err := r.createFontTexture(fonts); err != nil {
		return err
	}

	gl.BindVertexArray(0)
	r.initialized = true
	imdraw.Logger().Info("gl: backend initialized",
		"vtxBytes", r.vboSize, "idxBytes", r.eboSize)
	return nil
}

// createFontTexture uploads the atlas as an RGBA texture with
// nearest-neighbor filtering, records the name into fonts and releases the
// CPU-side pixels.
func (r *Renderer) createFontTexture(fonts *imdraw.FontAtlas) error {
	pixels, width, height, _, err := fonts.TexDataRGBA32()
	if err != nil {
		return fmt.Errorf("gl: font atlas: %w", err)
	}

	gl.GenTextures(1, &r.fontTex)
	gl.BindTexture(gl.TEXTURE_2D, r.fontTex)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MIN_FILTER, gl.NEAREST)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MAG_FILTER, gl.NEAREST)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_S, gl.REPEAT)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_T, gl.REPEAT)
	gl.TexImage2D(gl.TEXTURE_2D, 0, gl.RGBA, int32(width), int32(height), 0,
		gl.RGBA, gl.UNSIGNED_BYTE, gl.Ptr(pixels))

	fonts.SetTexID(imdraw.GLTextureID(r.fontTex))
	fonts.ClearTexData()
	return nil
}

// Render implements backend.Renderer.
func (r *Renderer) Render(data *imdraw.DrawData) error {
	if !r.initialized {
		return backend.ErrNotInitialized
	}
	if !data.Valid() {
		return nil
	}

	r.growBuffers(data.VtxBytes(), data.IdxBytes())

	gl.BindVertexArray(r.vao)
	gl.BindBuffer(gl.ARRAY_BUFFER, r.vbo)
	gl.BindBuffer(gl.ELEMENT_ARRAY_BUFFER, r.ebo)

	// Upload every list's spans at increasing byte offsets; the per-list
	// GPU offsets accumulate monotonically for the rest of this call.
	vtxOffset, idxOffset := 0, 0
	for _, list := range data.Lists {
		if len(list.VtxBuffer) > 0 {
			gl.BufferSubData(gl.ARRAY_BUFFER, vtxOffset,
				len(list.VtxBuffer)*imdraw.VertexSize, gl.Ptr(list.VtxBuffer))
		}
		if len(list.IdxBuffer) > 0 {
			gl.BufferSubData(gl.ELEMENT_ARRAY_BUFFER, idxOffset,
				len(list.IdxBuffer)*imdraw.IndexSize, gl.Ptr(list.IdxBuffer))
		}
		vtxOffset += len(list.VtxBuffer) * imdraw.VertexSize
		idxOffset += len(list.IdxBuffer) * imdraw.IndexSize
	}

	// Orthographic projection over the display rect, Y-flipped to match
	// the toolkit's top-left-origin draw space.
	left := data.DisplayPos.X
	right := data.DisplayPos.X + data.DisplaySize.X
	top := data.DisplayPos.Y
	bottom := data.DisplayPos.Y + data.DisplaySize.Y
	projection := mgl32.Ortho(left, right, bottom, top, -1, 1)

	gl.Enable(gl.BLEND)
	gl.BlendFunc(gl.SRC_ALPHA, gl.ONE_MINUS_SRC_ALPHA)
	gl.Enable(gl.SCISSOR_TEST)
	gl.UseProgram(r.program)
	gl.UniformMatrix4fv(r.projLoc, 1, false, &projection[0])
	gl.Uniform1i(r.texLoc, 0)
	gl.ActiveTexture(gl.TEXTURE0)

	err := r.drawLists(data)

	// Restore opaque blending and leave scissoring off for whatever
	// renders next.
	gl.BlendFunc(gl.ONE, gl.ZERO)
	gl.Disable(gl.BLEND)
	gl.Disable(gl.SCISSOR_TEST)
	gl.BindVertexArray(0)
	return err
}

// drawLists issues one draw call per command, offset by the accumulated
// per-list vertex/index bases plus the command's own offsets.
func (r *Renderer) drawLists(data *imdraw.DrawData) error {
	listVtxBase, listIdxBase := 0, 0
	for _, list := range data.Lists {
		for i := range list.CmdBuffer {
			cmd := &list.CmdBuffer[i]
			if cmd.UserCallback != nil {
				return backend.ErrUserCallbackUnsupported
			}

			tex := r.fontTex
			if name, ok := cmd.TexID.GLName(); ok {
				tex = name
			}
			gl.BindTexture(gl.TEXTURE_2D, tex)

			x, y, w, h := backend.ScissorFlipY(cmd.ClipRect, data.DisplaySize.Y)
			gl.Scissor(x, y, w, h)

			gl.DrawElementsBaseVertex(gl.TRIANGLES, int32(cmd.ElemCount), gl.UNSIGNED_SHORT,
				gl.PtrOffset((listIdxBase+int(cmd.IdxOffset))*imdraw.IndexSize),
				int32(listVtxBase+int(cmd.VtxOffset)))
		}
		listVtxBase += len(list.VtxBuffer)
		listIdxBase += len(list.IdxBuffer)
	}
	return nil
}

// growBuffers reallocates either buffer whose capacity the frame exceeds.
// Previous contents are discarded; the frame's geometry is re-uploaded in
// full right after.
func (r *Renderer) growBuffers(vtxBytes, idxBytes int) {
	if newCap := backend.GrowCapacity(r.vboSize, vtxBytes); newCap != r.vboSize {
		gl.BindBuffer(gl.ARRAY_BUFFER, r.vbo)
		gl.BufferData(gl.ARRAY_BUFFER, newCap, nil, gl.DYNAMIC_DRAW)
		imdraw.Logger().Debug("gl: vertex buffer grown", "from", r.vboSize, "to", newCap)
		r.vboSize = newCap
	}
	if newCap := backend.GrowCapacity(r.eboSize, idxBytes); newCap != r.eboSize {
		gl.BindBuffer(gl.ELEMENT_ARRAY_BUFFER, r.ebo)
		gl.BufferData(gl.ELEMENT_ARRAY_BUFFER, newCap, nil, gl.DYNAMIC_DRAW)
		imdraw.Logger().Debug("gl: index buffer grown", "from", r.eboSize, "to", newCap)
		r.eboSize = newCap
	}
}

// CleanUp deletes the vertex array object, both buffers, the shader
// program and the font texture, in that order.
func (r *Renderer) CleanUp() {
	gl.DeleteVertexArrays(1, &r.vao)
	gl.DeleteBuffers(1, &r.vbo)
	gl.DeleteBuffers(1, &r.ebo)
	gl.DeleteProgram(r.program)
	gl.DeleteTextures(1, &r.fontTex)
	r.vao, r.vbo, r.ebo, r.program, r.fontTex = 0, 0, 0, 0, 0
	r.initialized = false
	imdraw.Logger().Info("gl: backend cleaned up")
}
