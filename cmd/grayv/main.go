package main

import (
	"os"
	"runtime"

	"github.com/urfave/cli"
)

func init() {
	// glfw and the Vulkan surface must stay on the main thread.
	runtime.LockOSThread()
}

func main() {
	cli.VersionFlag = cli.BoolFlag{
		Name:  "version",
		Usage: "print only the version",
	}

	app := cli.NewApp()
	app.Name = "grayv"
	app.Usage = "ray-march a full-screen shader with live reload"
	app.Version = "0.1.0"
	app.Flags = []cli.Flag{
		cli.BoolFlag{
			Name:  "v",
			Usage: "enable verbose logging",
		},
		cli.BoolFlag{
			Name:  "vv",
			Usage: "enable even more verbose logging",
		},
		cli.StringFlag{
			Name:  "config, c",
			Value: "",
			Usage: "TOML configuration file; defaults apply when omitted",
		},
	}
	app.Commands = []cli.Command{
		{
			Name:  "run",
			Usage: "open a window and render the configured shaders",
			Description: `
Create a window, pick an adapter following the configured policy and draw the
screen shaders every frame. Shader files are reloaded when they change on disk
(or when the reload key is pressed) and a broken edit keeps the last good
pipeline on screen.`,
			Flags: []cli.Flag{
				cli.StringFlag{
					Name:  "shaders",
					Usage: "shader directory, overrides shaders.dir",
				},
				cli.BoolFlag{
					Name:  "validation",
					Usage: "enable the Khronos validation layer",
				},
				cli.StringFlag{
					Name:  "present-mode",
					Usage: "fifo, mailbox, immediate or fifo-relaxed",
				},
			},
			Action: Run,
		},
		{
			Name:   "adapters",
			Usage:  "list GPUs and whether they can run grayv",
			Action: ListAdapters,
		},
		{
			Name:  "compile",
			Usage: "compile shader sources to SPIR-V",
			Description: `
Compile each GLSL (.vert, .frag, .comp) or WGSL (.vert.wgsl, .frag.wgsl) file
with the configured compiler and write <file>.spv next to it, or into --out.`,
			ArgsUsage: "shader1.frag shader2.vert ...",
			Flags: []cli.Flag{
				cli.StringFlag{
					Name:  "out, o",
					Usage: "output directory",
				},
			},
			Action: CompileShaders,
		},
	}

	if err := app.Run(os.Args); err != nil {
		logger.Error(err)
		os.Exit(1)
	}
}
