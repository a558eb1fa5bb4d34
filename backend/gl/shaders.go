package gl

import (
	"fmt"
	"strings"

	"github.com/go-gl/gl/v3.3-core/gl"
)

// The UI shader pair is embedded rather than loaded from an asset: it is
// part of the backend's contract with the vertex layout and never varies.

const vertexShaderSource = `#version 330 core
uniform mat4 uProjection;
layout (location = 0) in vec2 aPos;
layout (location = 1) in vec2 aUV;
layout (location = 2) in vec4 aColor;
out vec2 vUV;
out vec4 vColor;
void main() {
	vUV = aUV;
	vColor = aColor;
	gl_Position = uProjection * vec4(aPos.xy, 0.0, 1.0);
}
`

const fragmentShaderSource = `#version 330 core
uniform sampler2D uTexture;
in vec2 vUV;
in vec4 vColor;
out vec4 fragColor;
void main() {
	fragColor = vColor * texture(uTexture, vUV);
}
`

// buildProgram compiles and links the UI shader pair, returning the program
// name. The individual shader objects are deleted after linking.
func buildProgram() (uint32, error) {
	vertexShader, err := compileShader(gl.VERTEX_SHADER, vertexShaderSource)
	if err != nil {
		return 0, fmt.Errorf("gl: vertex shader: %w", err)
	}
	fragmentShader, err := compileShader(gl.FRAGMENT_SHADER, fragmentShaderSource)
	if err != nil {
		gl.DeleteShader(vertexShader)
		return 0, fmt.Errorf("gl: fragment shader: %w", err)
	}

	program := gl.CreateProgram()
	gl.AttachShader(program, vertexShader)
	gl.AttachShader(program, fragmentShader)
	gl.LinkProgram(program)

	var status int32
	gl.GetProgramiv(program, gl.LINK_STATUS, &status)
	if status == gl.FALSE {
		var logLength int32
		gl.GetProgramiv(program, gl.INFO_LOG_LENGTH, &logLength)
		infoLog := strings.Repeat("\x00", int(logLength+1))
		gl.GetProgramInfoLog(program, logLength, nil, gl.Str(infoLog))
		gl.DeleteShader(vertexShader)
		gl.DeleteShader(fragmentShader)
		gl.DeleteProgram(program)
		return 0, fmt.Errorf("gl: link error: %s", infoLog)
	}

	gl.DeleteShader(vertexShader)
	gl.DeleteShader(fragmentShader)
	return program, nil
}

func compileShader(shaderType uint32, source string) (uint32, error) {
	shader := gl.CreateShader(shaderType)
	csources, free := gl.Strs(source + "\x00")
	gl.ShaderSource(shader, 1, csources, nil)
	free()
	gl.CompileShader(shader)

	var status int32
	gl.GetShaderiv(shader, gl.COMPILE_STATUS, &status)
	if status == gl.FALSE {
		var logLength int32
		gl.GetShaderiv(shader, gl.INFO_LOG_LENGTH, &logLength)
		infoLog := strings.Repeat("\x00", int(logLength+1))
		gl.GetShaderInfoLog(shader, logLength, nil, gl.Str(infoLog))
		gl.DeleteShader(shader)
		return 0, fmt.Errorf("compile error: %s", infoLog)
	}
	return shader, nil
}
