package grayv

import (
	"bytes"
	"context"
	"os/exec"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/gogpu/naga"
	"github.com/mattn/go-shellwords"
	"github.com/pkg/errors"
)

// Compiler turns shader source into SPIR-V in two stages so preprocessing
// diagnostics can be told apart from compile diagnostics.
type Compiler interface {
	Preprocess(name string, stage ShaderStage, src []byte) ([]byte, error)
	Compile(name string, stage ShaderStage, src []byte) ([]byte, error)
}

// Compilers routes each source language to its compiler.
type Compilers struct {
	GLSL Compiler
	WGSL Compiler
}

func (c Compilers) For(lang Language) (Compiler, error) {
	var comp Compiler
	switch lang {
	case LanguageGLSL:
		comp = c.GLSL
	case LanguageWGSL:
		comp = c.WGSL
	}
	if comp == nil {
		return nil, errors.Errorf("no compiler configured for %s", lang)
	}
	return comp, nil
}

// CompileOptions pin the preprocessor and compiler environment.
type CompileOptions struct {
	// Tool is the glslc executable.
	Tool      string
	TargetEnv string
	Optimize  bool
	Macros    map[string]string
	// ExtraArgs is a shell-quoted argument string appended to every invocation.
	ExtraArgs string
	Timeout   time.Duration
}

// DefaultCompileOptions identify the engine to shaders and target Vulkan 1.3.
func DefaultCompileOptions() CompileOptions {
	return CompileOptions{
		Tool:      "glslc",
		TargetEnv: "vulkan1.3",
		Optimize:  true,
		Macros:    map[string]string{"__VK_GLSL__": "1"},
		Timeout:   30 * time.Second,
	}
}

// GLSLC compiles GLSL by running glslc from the shaderc project.
type GLSLC struct {
	opts  CompileOptions
	extra []string
}

func NewGLSLC(opts CompileOptions) (*GLSLC, error) {
	extra, err := shellwords.Parse(opts.ExtraArgs)
	if err != nil {
		return nil, errors.Wrapf(err, "parse glslc args %q", opts.ExtraArgs)
	}
	if opts.Tool == "" {
		opts.Tool = "glslc"
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	return &GLSLC{opts: opts, extra: extra}, nil
}

// Args returns the command line for one stage, reading stdin and writing stdout.
func (g *GLSLC) Args(stage ShaderStage, preprocess bool) []string {
	args := []string{"-fshader-stage=" + stage.String()}
	if g.opts.TargetEnv != "" {
		args = append(args, "--target-env="+g.opts.TargetEnv)
	}
	if preprocess {
		args = append(args, "-E")
		keys := make([]string, 0, len(g.opts.Macros))
		for k := range g.opts.Macros {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			if v := g.opts.Macros[k]; v != "" {
				args = append(args, "-D"+k+"="+v)
			} else {
				args = append(args, "-D"+k)
			}
		}
	} else if g.opts.Optimize {
		args = append(args, "-O")
	}
	args = append(args, g.extra...)
	return append(args, "-o", "-", "-")
}

func (g *GLSLC) run(stage ShaderStage, preprocess bool, src []byte) ([]byte, error) {
	ctx, cancel := context.WithTimeout(context.Background(), g.opts.Timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, g.opts.Tool, g.Args(stage, preprocess)...)
	var stdout, stderr bytes.Buffer
	cmd.Stdin = bytes.NewReader(src)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return nil, errors.New(msg)
		}
		return nil, errors.Wrap(err, g.opts.Tool)
	}
	return stdout.Bytes(), nil
}

func (g *GLSLC) Preprocess(name string, stage ShaderStage, src []byte) ([]byte, error) {
	out, err := g.run(stage, true, src)
	return out, errors.Wrap(err, name)
}

func (g *GLSLC) Compile(name string, stage ShaderStage, src []byte) ([]byte, error) {
	out, err := g.run(stage, false, src)
	return out, errors.Wrap(err, name)
}

// Naga compiles WGSL in process. WGSL has no preprocessor; the preprocess
// stage only checks the text is UTF-8.
type Naga struct{}

func (Naga) Preprocess(name string, _ ShaderStage, src []byte) ([]byte, error) {
	if !utf8.Valid(src) {
		return nil, errors.Errorf("%s: source is not valid UTF-8", name)
	}
	return src, nil
}

func (Naga) Compile(name string, _ ShaderStage, src []byte) ([]byte, error) {
	code, err := naga.Compile(string(src))
	if err != nil {
		return nil, errors.Wrap(err, name)
	}
	return code, nil
}
