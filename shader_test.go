package grayv

import (
	"testing"
	"testing/fstest"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInferShader(t *testing.T) {
	tests := []struct {
		name    string
		want    ShaderSource
		wantErr error
	}{
		{"screen_quad.vert", ShaderSource{ShaderVertex, StageVertex, LanguageGLSL}, nil},
		{"dir/screen.frag", ShaderSource{ShaderFragment, StageFragment, LanguageGLSL}, nil},
		{"blur.comp", ShaderSource{ShaderCompute, StageCompute, LanguageGLSL}, nil},
		{"quad.vert.wgsl", ShaderSource{ShaderVertex, StageVertex, LanguageWGSL}, nil},
		{"quad.frag.wgsl", ShaderSource{ShaderFragment, StageFragment, LanguageWGSL}, nil},
		{"quad.wgsl", ShaderSource{}, ErrUnknownStage},
		{"quad.spv", ShaderSource{ShaderBytecode, StageUnknown, LanguageSPIRV}, nil},
		{"quad.frag.spv", ShaderSource{ShaderBytecode, StageFragment, LanguageSPIRV}, nil},
		{"quad.glsl", ShaderSource{}, ErrUnknownStage},
		{"noext", ShaderSource{}, ErrUnknownStage},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := InferShader(tt.name)
			if tt.wantErr != nil {
				assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

type shaderRig struct {
	drv  *fakeDriver
	s    *Session
	fsys *countingFS
	comp *fakeCompiler
}

func newShaderRig(t *testing.T) *shaderRig {
	t.Helper()
	drv := newFakeDriver(qualifyingAdapter("discrete", AdapterDiscrete))
	return &shaderRig{drv: drv, s: newTestSession(t, drv), fsys: shaderTree(), comp: &fakeCompiler{}}
}

func (r *shaderRig) load(t *testing.T, name string) *ShaderUnit {
	t.Helper()
	u, err := LoadShader(r.s, r.fsys, name, Compilers{GLSL: r.comp, WGSL: r.comp})
	require.NoError(t, err)
	return u
}

func (r *shaderRig) close(t *testing.T, units ...*ShaderUnit) {
	t.Helper()
	for _, u := range units {
		u.Destroy()
	}
	require.NoError(t, r.s.Destroy())
	assert.Empty(t, r.drv.leaks())
	assert.Empty(t, r.drv.violations)
}

func TestLoadShader(t *testing.T) {
	r := newShaderRig(t)
	u := r.load(t, "screen_quad.vert")

	assert.NotZero(t, u.Module())
	assert.Equal(t, "screen_quad.vert", u.Path())
	assert.Equal(t, ShaderVertex, u.Source().Kind)
	assert.Equal(t, epoch, u.ModTime())
	assert.NoError(t, u.LastError())
	assert.Equal(t, StageInfo{Stage: StageVertex, Module: u.Module(), EntryPoint: "main"}, u.StageInfo())
	assert.Equal(t, 1, r.comp.preprocessed)
	assert.Equal(t, 1, r.comp.compiled)
	assert.Equal(t, 1, r.s.Dependents())
	assert.Equal(t, spirv("vert:#version 450\nvoid main() {}\n"), r.drv.modules[u.Module()])

	r.close(t, u)
}

func TestLoadShaderMissingFile(t *testing.T) {
	r := newShaderRig(t)
	_, err := LoadShader(r.s, r.fsys, "missing.frag", Compilers{GLSL: r.comp})
	assert.True(t, errors.Is(err, ErrFileNotFound))
	assert.Empty(t, r.drv.modules)
	assert.Equal(t, 0, r.s.Dependents())
	r.close(t)
}

func TestLoadShaderFailures(t *testing.T) {
	tests := []struct {
		name string
		file string
		src  string
		want error
	}{
		{"preprocess", "bad.frag", "#error nope", ErrPreprocessFailed},
		{"compile", "bad.frag", "void main() { syntax error }", ErrCompileFailed},
		{"bytecode", "bad.spv", "not spirv", ErrInvalidBytecode},
		{"unknown suffix", "bad.hlsl", "", ErrUnknownStage},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newShaderRig(t)
			r.fsys.touch(tt.file, tt.src, epoch)
			_, err := LoadShader(r.s, r.fsys, tt.file, Compilers{GLSL: r.comp})
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
			assert.Empty(t, r.drv.modules)
			r.close(t)
		})
	}
}

func TestLoadShaderWithoutCompiler(t *testing.T) {
	r := newShaderRig(t)
	r.fsys.touch("quad.vert.wgsl", "@vertex fn main() {}", epoch)
	_, err := LoadShader(r.s, r.fsys, "quad.vert.wgsl", Compilers{GLSL: r.comp})
	assert.Error(t, err)
	assert.Zero(t, r.fsys.reads)
	r.close(t)
}

func TestLoadBytecode(t *testing.T) {
	r := newShaderRig(t)
	code := spirv("precompiled")
	r.fsys.MapFS["quad.frag.spv"] = &fstest.MapFile{Data: code, ModTime: epoch}

	u := r.load(t, "quad.frag.spv")
	assert.Equal(t, ShaderBytecode, u.Source().Kind)
	assert.Equal(t, StageFragment, u.StageInfo().Stage)
	assert.Equal(t, code, r.drv.modules[u.Module()])
	assert.Zero(t, r.comp.compiled, "bytecode bypasses the compiler")
	r.close(t, u)
}

func TestShaderReloadUnchangedOnlyStats(t *testing.T) {
	r := newShaderRig(t)
	u := r.load(t, "screen.frag")
	r.fsys.reads, r.fsys.stats = 0, 0
	module := u.Module()

	for i := 0; i < 3; i++ {
		status, err := u.Reload()
		require.NoError(t, err)
		assert.Equal(t, Unchanged, status)
	}
	assert.Zero(t, r.fsys.reads)
	assert.Equal(t, 3, r.fsys.stats)
	assert.Equal(t, module, u.Module())
	assert.Equal(t, 1, r.comp.compiled)
	r.close(t, u)
}

func TestShaderReloadChanged(t *testing.T) {
	r := newShaderRig(t)
	u := r.load(t, "screen.frag")
	old := u.Module()

	later := epoch.Add(time.Second)
	r.fsys.touch("screen.frag", "#version 450\nvoid main() { /* v2 */ }\n", later)
	status, err := u.Reload()
	require.NoError(t, err)
	assert.Equal(t, Changed, status)

	assert.NotEqual(t, old, u.Module())
	assert.NotContains(t, r.drv.modules, old)
	assert.Contains(t, r.drv.modules, u.Module())
	assert.Equal(t, u.Module(), u.StageInfo().Module)
	assert.Equal(t, later, u.ModTime())
	assert.Equal(t, []string{"destroy:shadermodule"}, r.drv.destroyCalls("shadermodule"))
	r.close(t, u)
}

func TestShaderFailedReloadKeepsModule(t *testing.T) {
	r := newShaderRig(t)
	u := r.load(t, "screen.frag")
	info := u.StageInfo()

	broken := epoch.Add(time.Second)
	r.fsys.touch("screen.frag", "void main() { syntax error }", broken)
	status, err := u.Reload()
	assert.Equal(t, ReloadFailed, status)
	assert.True(t, errors.Is(err, ErrCompileFailed))
	assert.Equal(t, info, u.StageInfo())
	assert.Equal(t, epoch, u.ModTime())
	assert.Equal(t, err, u.LastError())
	assert.Empty(t, r.drv.destroyCalls("shadermodule"))

	// Same timestamp: the cached failure comes back without a read.
	r.fsys.reads = 0
	compiled := r.comp.compiled
	status, again := u.Reload()
	assert.Equal(t, ReloadFailed, status)
	assert.Equal(t, err, again)
	assert.Zero(t, r.fsys.reads)
	assert.Equal(t, compiled, r.comp.compiled)

	fixed := broken.Add(time.Second)
	r.fsys.touch("screen.frag", "#version 450\nvoid main() {}\n", fixed)
	status, err = u.Reload()
	require.NoError(t, err)
	assert.Equal(t, Changed, status)
	assert.NoError(t, u.LastError())
	assert.NotEqual(t, info.Module, u.Module())
	r.close(t, u)
}

func TestShaderReloadDeletedFile(t *testing.T) {
	r := newShaderRig(t)
	u := r.load(t, "screen.frag")
	module := u.Module()
	delete(r.fsys.MapFS, "screen.frag")

	status, err := u.Reload()
	assert.Equal(t, ReloadFailed, status)
	assert.True(t, errors.Is(err, ErrFileNotFound))
	assert.Equal(t, module, u.Module())
	r.close(t, u)
}

func TestShaderReloadModuleCreationFailure(t *testing.T) {
	r := newShaderRig(t)
	u := r.load(t, "screen.frag")
	module := u.Module()

	r.drv.failModule = true
	r.fsys.touch("screen.frag", "#version 450\nvoid main() {}\n", epoch.Add(time.Minute))
	status, err := u.Reload()
	assert.Equal(t, ReloadFailed, status)
	assert.Error(t, err)
	assert.Equal(t, module, u.Module())
	assert.Contains(t, r.drv.modules, module)

	r.drv.failModule = false
	r.close(t, u)
}

func TestShaderDestroy(t *testing.T) {
	r := newShaderRig(t)
	u := r.load(t, "screen.frag")
	u.Destroy()
	u.Destroy()
	assert.Zero(t, u.Module())
	assert.Equal(t, 0, r.s.Dependents())

	status, err := u.Reload()
	assert.Equal(t, ReloadFailed, status)
	assert.True(t, errors.Is(err, ErrDestroyed))
	r.close(t)
}

func TestValidateBytecode(t *testing.T) {
	bad := spirv("x")
	bad[0] = 0xff
	tests := []struct {
		name string
		code []byte
		ok   bool
	}{
		{"valid", spirv("body"), true},
		{"empty", nil, false},
		{"unaligned", append(spirv("body"), 1), false},
		{"short", []byte{0x03, 0x02, 0x23, 0x07}, false},
		{"magic", bad, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateBytecode(tt.code)
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.True(t, errors.Is(err, ErrInvalidBytecode))
			}
		})
	}
}

func TestBytecodeWords(t *testing.T) {
	words := BytecodeWords(spirv("abcd"))
	require.Len(t, words, 6)
	assert.Equal(t, uint32(spirvMagic), words[0])
	assert.Equal(t, uint32('a')|uint32('b')<<8|uint32('c')<<16|uint32('d')<<24, words[5])
}

type garbageCompiler struct{ fakeCompiler }

func (garbageCompiler) Compile(string, ShaderStage, []byte) ([]byte, error) {
	return []byte("garbage!"), nil
}

func TestCompileSourceValidatesOutput(t *testing.T) {
	_, err := CompileSource(&garbageCompiler{}, "x.frag", StageFragment, []byte("src"))
	assert.True(t, errors.Is(err, ErrCompileFailed))

	code, err := CompileSource(&fakeCompiler{}, "x.frag", StageFragment, []byte("src"))
	require.NoError(t, err)
	assert.NoError(t, ValidateBytecode(code))
}
