package main

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/andewx/grayv"
	"github.com/pkg/errors"
	"github.com/urfave/cli"
)

// CompileShaders compiles every argument to SPIR-V. All files are attempted;
// the first failure is returned once the rest are done.
func CompileShaders(ctx *cli.Context) error {
	cfg, err := setup(ctx)
	if err != nil {
		return err
	}
	if ctx.NArg() == 0 {
		return errors.New("no shader files given")
	}
	comps, err := cfg.Compilers()
	if err != nil {
		// WGSL does not need glslc.
		logger.Warningf("glsl compiler unavailable: %v", err)
		comps = grayv.Compilers{WGSL: grayv.Naga{}}
	}

	outDir := ctx.String("out")
	if outDir != "" {
		if err := os.MkdirAll(outDir, 0755); err != nil {
			return errors.Wrap(err, "create output directory")
		}
	}

	var first error
	for _, file := range ctx.Args() {
		out, err := compileFile(comps, file, outDir)
		if err != nil {
			logger.Errorf("%v", err)
			if first == nil {
				first = err
			}
			continue
		}
		logger.Infof("%s -> %s", file, out)
	}
	return first
}

// outputPath names the bytecode file for a source: screen.frag becomes
// screen.frag.spv and quad.vert.wgsl becomes quad.vert.spv.
func outputPath(file, outDir string) string {
	name := strings.TrimSuffix(filepath.Base(file), ".wgsl") + ".spv"
	if outDir == "" {
		outDir = filepath.Dir(file)
	}
	return filepath.Join(outDir, name)
}

func compileFile(comps grayv.Compilers, file, outDir string) (string, error) {
	src, err := grayv.InferShader(filepath.Base(file))
	if err != nil {
		return "", err
	}
	if src.Kind == grayv.ShaderBytecode {
		return "", errors.Errorf("%s is already SPIR-V", file)
	}
	comp, err := comps.For(src.Language)
	if err != nil {
		return "", errors.Wrap(err, file)
	}
	text, err := os.ReadFile(file)
	if err != nil {
		return "", err
	}
	code, err := grayv.CompileSource(comp, filepath.Base(file), src.Stage, text)
	if err != nil {
		return "", err
	}
	out := outputPath(file, outDir)
	if err := os.WriteFile(out, code, 0644); err != nil {
		return "", errors.Wrap(err, "write bytecode")
	}
	return out, nil
}
