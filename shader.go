package grayv

import (
	"encoding/binary"
	"io/fs"
	"path"
	"strings"
	"time"

	"github.com/andewx/grayv/log"
	"github.com/pkg/errors"
)

// ShaderKind is how a unit is produced: compiled for one stage, or loaded
// from precompiled bytecode.
type ShaderKind int

const (
	ShaderVertex ShaderKind = iota
	ShaderFragment
	ShaderCompute
	ShaderBytecode
)

func (k ShaderKind) String() string {
	switch k {
	case ShaderVertex:
		return "vertex"
	case ShaderFragment:
		return "fragment"
	case ShaderCompute:
		return "compute"
	}
	return "bytecode"
}

// ShaderStage mirrors VkShaderStageFlagBits.
type ShaderStage uint32

const (
	StageUnknown  ShaderStage = 0
	StageVertex   ShaderStage = 0x01
	StageFragment ShaderStage = 0x10
	StageCompute  ShaderStage = 0x20
)

func (s ShaderStage) String() string {
	switch s {
	case StageVertex:
		return "vert"
	case StageFragment:
		return "frag"
	case StageCompute:
		return "comp"
	}
	return "unknown"
}

// Language is the source language of a unit.
type Language int

const (
	LanguageGLSL Language = iota
	LanguageWGSL
	LanguageSPIRV
)

func (l Language) String() string {
	switch l {
	case LanguageGLSL:
		return "glsl"
	case LanguageWGSL:
		return "wgsl"
	}
	return "spirv"
}

var stageSuffixes = map[string]ShaderStage{
	".vert": StageVertex,
	".frag": StageFragment,
	".comp": StageCompute,
}

// ShaderSource is what a file name says about a shader.
type ShaderSource struct {
	Kind     ShaderKind
	Stage    ShaderStage
	Language Language
}

// InferShader derives kind, stage and language from the file suffix.
// WGSL and bytecode files take their stage from an inner suffix, as in
// quad.vert.wgsl or quad.vert.spv.
func InferShader(name string) (ShaderSource, error) {
	ext := path.Ext(name)
	inner := path.Ext(strings.TrimSuffix(name, ext))
	switch ext {
	case ".vert", ".frag", ".comp":
		stage := stageSuffixes[ext]
		return ShaderSource{Kind: kindOf(stage), Stage: stage, Language: LanguageGLSL}, nil
	case ".wgsl":
		stage, ok := stageSuffixes[inner]
		if !ok {
			return ShaderSource{}, errors.Wrapf(ErrUnknownStage, "%s: name wgsl files <name>.<vert|frag|comp>.wgsl", name)
		}
		return ShaderSource{Kind: kindOf(stage), Stage: stage, Language: LanguageWGSL}, nil
	case ".spv":
		return ShaderSource{Kind: ShaderBytecode, Stage: stageSuffixes[inner], Language: LanguageSPIRV}, nil
	}
	return ShaderSource{}, errors.Wrapf(ErrUnknownStage, "%s: unsupported suffix %q", name, ext)
}

func kindOf(stage ShaderStage) ShaderKind {
	switch stage {
	case StageVertex:
		return ShaderVertex
	case StageFragment:
		return ShaderFragment
	}
	return ShaderCompute
}

// ReloadStatus is the outcome of ShaderUnit.Reload.
type ReloadStatus int

const (
	Unchanged ReloadStatus = iota
	Changed
	ReloadFailed
)

func (r ReloadStatus) String() string {
	switch r {
	case Unchanged:
		return "unchanged"
	case Changed:
		return "changed"
	}
	return "failed"
}

const spirvMagic = 0x07230203

// ValidateBytecode checks that code looks like a SPIR-V module.
func ValidateBytecode(code []byte) error {
	if len(code) == 0 {
		return errors.Wrap(ErrInvalidBytecode, "empty")
	}
	if len(code)%4 != 0 {
		return errors.Wrapf(ErrInvalidBytecode, "size %d is not a multiple of 4", len(code))
	}
	if len(code) < 20 {
		return errors.Wrapf(ErrInvalidBytecode, "size %d is shorter than the header", len(code))
	}
	if binary.LittleEndian.Uint32(code) != spirvMagic {
		return errors.Wrapf(ErrInvalidBytecode, "bad magic %#08x", binary.LittleEndian.Uint32(code))
	}
	return nil
}

// BytecodeWords copies validated bytecode into 32-bit words.
func BytecodeWords(code []byte) []uint32 {
	words := make([]uint32, len(code)/4)
	for i := range words {
		words[i] = binary.LittleEndian.Uint32(code[i*4:])
	}
	return words
}

// CompileSource runs the preprocess and compile stages for a source file.
func CompileSource(c Compiler, name string, stage ShaderStage, src []byte) ([]byte, error) {
	pre, err := c.Preprocess(name, stage, src)
	if err != nil {
		return nil, errors.Wrapf(ErrPreprocessFailed, "%s: %v", name, err)
	}
	code, err := c.Compile(name, stage, pre)
	if err != nil {
		return nil, errors.Wrapf(ErrCompileFailed, "%s: %v", name, err)
	}
	if err := ValidateBytecode(code); err != nil {
		return nil, errors.Wrapf(ErrCompileFailed, "%s: %v", name, err)
	}
	return code, nil
}

// ShaderUnit owns one shader module. The loaded module stays valid until a
// replacement has been created; a failed reload leaves it untouched.
type ShaderUnit struct {
	session  *Session
	fsys     fs.FS
	path     string
	source   ShaderSource
	compiler Compiler
	entry    string
	logger   log.Logger

	modTime time.Time
	module  ShaderModule

	failedModTime time.Time
	failure       error

	destroyed bool
}

// LoadShader resolves path inside fsys and produces the first module.
// Any failure here aborts construction.
func LoadShader(session *Session, fsys fs.FS, name string, compilers Compilers) (*ShaderUnit, error) {
	src, err := InferShader(name)
	if err != nil {
		return nil, err
	}
	u := &ShaderUnit{
		session: session,
		fsys:    fsys,
		path:    name,
		source:  src,
		entry:   "main",
		logger:  log.New("shader"),
	}
	if src.Kind != ShaderBytecode {
		if u.compiler, err = compilers.For(src.Language); err != nil {
			return nil, err
		}
	}

	info, err := fs.Stat(fsys, name)
	if err != nil {
		return nil, statError(name, err)
	}
	module, err := u.build()
	if err != nil {
		return nil, err
	}
	u.module = module
	u.modTime = info.ModTime()
	session.acquire()
	u.logger.Infof("loaded %s shader %s", src.Kind, name)
	return u, nil
}

func statError(name string, err error) error {
	if errors.Is(err, fs.ErrNotExist) {
		return errors.Wrap(ErrFileNotFound, name)
	}
	return errors.Wrapf(err, "stat %s", name)
}

// build reads the file and creates a new module without touching the
// current one.
func (u *ShaderUnit) build() (ShaderModule, error) {
	data, err := fs.ReadFile(u.fsys, u.path)
	if err != nil {
		return 0, statError(u.path, err)
	}
	code := data
	if u.source.Kind == ShaderBytecode {
		if err := ValidateBytecode(code); err != nil {
			return 0, errors.Wrap(err, u.path)
		}
	} else {
		if code, err = CompileSource(u.compiler, u.path, u.source.Stage, data); err != nil {
			return 0, err
		}
	}
	module, err := u.session.Driver().CreateShaderModule(u.session.Device(), code)
	if err != nil {
		return 0, errors.Wrapf(err, "create shader module %s", u.path)
	}
	return module, nil
}

// Reload rebuilds the module when the file's modification time moved.
// An unchanged timestamp costs one stat. A timestamp that already failed
// returns the cached failure without reading the file again.
func (u *ShaderUnit) Reload() (ReloadStatus, error) {
	if u.destroyed {
		return ReloadFailed, ErrDestroyed
	}
	info, err := fs.Stat(u.fsys, u.path)
	if err != nil {
		return ReloadFailed, statError(u.path, err)
	}
	mod := info.ModTime()
	if mod.Equal(u.modTime) {
		return Unchanged, nil
	}
	if u.failure != nil && mod.Equal(u.failedModTime) {
		return ReloadFailed, u.failure
	}

	module, err := u.build()
	if err != nil {
		u.failedModTime = mod
		u.failure = err
		u.logger.Errorf("reload %s: %v", u.path, err)
		return ReloadFailed, err
	}

	old := u.module
	u.module = module
	u.modTime = mod
	u.failure = nil
	u.session.Driver().DestroyShaderModule(u.session.Device(), old)
	u.logger.Noticef("reloaded %s", u.path)
	return Changed, nil
}

// Module returns the currently loaded module.
func (u *ShaderUnit) Module() ShaderModule { return u.module }

// StageInfo describes the module for pipeline construction.
func (u *ShaderUnit) StageInfo() StageInfo {
	return StageInfo{Stage: u.source.Stage, Module: u.module, EntryPoint: u.entry}
}

func (u *ShaderUnit) Path() string { return u.path }
func (u *ShaderUnit) Source() ShaderSource { return u.source }
func (u *ShaderUnit) ModTime() time.Time { return u.modTime }

// LastError is the failure of the latest reload, or nil.
func (u *ShaderUnit) LastError() error { return u.failure }

func (u *ShaderUnit) Destroy() {
	if u.destroyed {
		return
	}
	u.session.Driver().DestroyShaderModule(u.session.Device(), u.module)
	u.module = 0
	u.destroyed = true
	u.session.releaseDependent()
}
