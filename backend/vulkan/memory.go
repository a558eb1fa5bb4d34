package vulkan

import (
	"unsafe"

	"github.com/gogpu/imdraw"
)

// vertBytes views a vertex slice as its raw 20-byte-per-element wire form.
func vertBytes(verts []imdraw.DrawVert) []byte {
	if len(verts) == 0 {
		return nil
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(&verts[0])), len(verts)*imdraw.VertexSize)
}

// idxBytes views an index slice as its raw little-endian byte form.
func idxBytes(indices []imdraw.DrawIdx) []byte {
	if len(indices) == 0 {
		return nil
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(&indices[0])), len(indices)*imdraw.IndexSize)
}
