package grayv

import (
	"bytes"
	"os"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"github.com/pkg/errors"
)

// Config is the renderer configuration read from a TOML file over defaults.
type Config struct {
	Window   WindowConfig   `toml:"window"`
	Renderer RendererConfig `toml:"renderer"`
	Shaders  ShaderConfig   `toml:"shaders"`
	Camera   CameraConfig   `toml:"camera"`
	Keys     KeyConfig      `toml:"keys"`
	Log      LogConfig      `toml:"log"`
}

type WindowConfig struct {
	Title  string `toml:"title"`
	Width  int    `toml:"width"`
	Height int    `toml:"height"`
}

type RendererConfig struct {
	FramesInFlight int        `toml:"frames_in_flight"`
	MaxRebuilds    int        `toml:"max_rebuilds"`
	PresentMode    string     `toml:"present_mode"`
	AdapterPolicy  string     `toml:"adapter_policy"`
	Validation     bool       `toml:"validation"`
	ClearColor     [4]float32 `toml:"clear_color"`
}

type ShaderConfig struct {
	Dir       string            `toml:"dir"`
	Vertex    string            `toml:"vertex"`
	Fragment  string            `toml:"fragment"`
	Watch     bool              `toml:"watch"`
	Compiler  string            `toml:"compiler"`
	TargetEnv string            `toml:"target_env"`
	Optimize  bool              `toml:"optimize"`
	ExtraArgs string            `toml:"extra_args"`
	Macros    map[string]string `toml:"macros"`
	Timeout   string            `toml:"timeout"`
}

type CameraConfig struct {
	MoveSpeed float32    `toml:"move_speed"`
	LookSpeed float32    `toml:"look_speed"`
	FOV       float32    `toml:"fov"`
	Near      float32    `toml:"near"`
	Far       float32    `toml:"far"`
	Position  [3]float32 `toml:"position"`
}

// KeyConfig binds camera actions to key names such as "W", "SPACE" or
// "LEFT_SHIFT".
type KeyConfig struct {
	Forward   string `toml:"forward"`
	Backward  string `toml:"backward"`
	Left      string `toml:"left"`
	Right     string `toml:"right"`
	Up        string `toml:"up"`
	Down      string `toml:"down"`
	RollLeft  string `toml:"roll_left"`
	RollRight string `toml:"roll_right"`
	Reload    string `toml:"reload"`
	Quit      string `toml:"quit"`
}

type LogConfig struct {
	Level string `toml:"level"`
}

func DefaultConfig() Config {
	opts := DefaultCompileOptions()
	return Config{
		Window: WindowConfig{Title: "grayv", Width: 1280, Height: 720},
		Renderer: RendererConfig{
			FramesInFlight: DefaultFramesInFlight,
			MaxRebuilds:    DefaultMaxRebuilds,
			PresentMode:    "mailbox",
			AdapterPolicy:  string(PolicyPreferDiscrete),
			ClearColor:     [4]float32{0, 0, 0, 1},
		},
		Shaders: ShaderConfig{
			Dir:       "shaders",
			Vertex:    "screen_quad.vert",
			Fragment:  "screen.frag",
			Watch:     true,
			Compiler:  opts.Tool,
			TargetEnv: opts.TargetEnv,
			Optimize:  opts.Optimize,
			Macros:    opts.Macros,
			Timeout:   opts.Timeout.String(),
		},
		Camera: CameraConfig{
			MoveSpeed: 2,
			LookSpeed: 0.1,
			FOV:       70,
			Near:      0.01,
			Far:       1000,
		},
		Keys: KeyConfig{
			Forward:   "W",
			Backward:  "S",
			Left:      "A",
			Right:     "D",
			Up:        "SPACE",
			Down:      "LEFT_SHIFT",
			RollLeft:  "Q",
			RollRight: "E",
			Reload:    "R",
			Quit:      "ESCAPE",
		},
		Log: LogConfig{Level: "notice"},
	}
}

// LoadConfig decodes the TOML file at path over the defaults. Unknown keys
// are rejected.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, errors.Wrap(err, "read config")
	}
	if err := DecodeConfig(data, &cfg); err != nil {
		return cfg, errors.Wrapf(err, "config %s", path)
	}
	return cfg, nil
}

// DecodeConfig decodes TOML data into cfg and validates the result.
func DecodeConfig(data []byte, cfg *Config) error {
	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(cfg); err != nil {
		var strict *toml.StrictMissingError
		if errors.As(err, &strict) {
			return errors.New(strict.String())
		}
		return err
	}
	return cfg.Validate()
}

// Encode writes cfg as TOML.
func (c Config) Encode() ([]byte, error) {
	return toml.Marshal(c)
}

func (c Config) Validate() error {
	if c.Window.Width <= 0 || c.Window.Height <= 0 {
		return errors.Errorf("window size %dx%d must be positive", c.Window.Width, c.Window.Height)
	}
	if c.Renderer.FramesInFlight < 1 {
		return errors.Errorf("frames_in_flight %d must be at least 1", c.Renderer.FramesInFlight)
	}
	if c.Renderer.MaxRebuilds < 1 {
		return errors.Errorf("max_rebuilds %d must be at least 1", c.Renderer.MaxRebuilds)
	}
	if _, err := ParsePresentMode(c.Renderer.PresentMode); err != nil {
		return err
	}
	if _, err := ParsePolicy(c.Renderer.AdapterPolicy); err != nil {
		return err
	}
	if c.Camera.MoveSpeed <= 0 || c.Camera.LookSpeed <= 0 {
		return errors.New("camera move_speed and look_speed must be positive")
	}
	if c.Camera.FOV <= 0 || c.Camera.FOV >= 180 {
		return errors.Errorf("camera fov %g must be within (0, 180)", c.Camera.FOV)
	}
	if c.Camera.Near <= 0 || c.Camera.Far <= c.Camera.Near {
		return errors.Errorf("camera clip range [%g, %g] is invalid", c.Camera.Near, c.Camera.Far)
	}
	if _, err := c.compileTimeout(); err != nil {
		return err
	}
	if c.Shaders.Vertex == "" || c.Shaders.Fragment == "" {
		return errors.New("shaders.vertex and shaders.fragment are required")
	}
	for action, name := range c.Keys.bindings() {
		if !ValidKeyName(name) {
			return errors.Errorf("keys.%s: unknown key %q", action, name)
		}
	}
	return nil
}

func (k KeyConfig) bindings() map[string]string {
	return map[string]string{
		"forward":    k.Forward,
		"backward":   k.Backward,
		"left":       k.Left,
		"right":      k.Right,
		"up":         k.Up,
		"down":       k.Down,
		"roll_left":  k.RollLeft,
		"roll_right": k.RollRight,
		"reload":     k.Reload,
		"quit":       k.Quit,
	}
}

// NamedKeys lists the non-alphanumeric key names accepted in bindings.
var NamedKeys = []string{
	"SPACE", "ESCAPE", "ENTER", "TAB", "BACKSPACE",
	"LEFT_SHIFT", "RIGHT_SHIFT", "LEFT_CONTROL", "RIGHT_CONTROL", "LEFT_ALT", "RIGHT_ALT",
	"UP", "DOWN", "LEFT", "RIGHT", "PAGE_UP", "PAGE_DOWN", "HOME", "END",
	"F1", "F2", "F3", "F4", "F5", "F6", "F7", "F8", "F9", "F10", "F11", "F12",
}

// ValidKeyName accepts single letters, digits and NamedKeys.
func ValidKeyName(name string) bool {
	name = strings.ToUpper(name)
	if len(name) == 1 {
		c := name[0]
		return c >= 'A' && c <= 'Z' || c >= '0' && c <= '9'
	}
	for _, k := range NamedKeys {
		if k == name {
			return true
		}
	}
	return false
}

// ParsePresentMode maps a config name onto a present mode.
func ParsePresentMode(name string) (PresentMode, error) {
	switch strings.ToLower(name) {
	case "fifo", "":
		return PresentModeFifo, nil
	case "mailbox":
		return PresentModeMailbox, nil
	case "immediate":
		return PresentModeImmediate, nil
	case "fifo-relaxed", "fifo_relaxed":
		return PresentModeFifoRelaxed, nil
	}
	return PresentModeFifo, errors.Errorf("unknown present mode %q", name)
}

func (c Config) compileTimeout() (time.Duration, error) {
	if c.Shaders.Timeout == "" {
		return DefaultCompileOptions().Timeout, nil
	}
	d, err := time.ParseDuration(c.Shaders.Timeout)
	if err != nil {
		return 0, errors.Wrap(err, "shaders.timeout")
	}
	return d, nil
}

// AppInfo derives session settings.
func (c Config) AppInfo() AppInfo {
	app := DefaultAppInfo()
	app.Name = c.Window.Title
	app.Debug = c.Renderer.Validation
	app.Policy, _ = ParsePolicy(c.Renderer.AdapterPolicy)
	return app
}

// CompileOptions derives the GLSL compiler settings.
func (c Config) CompileOptions() CompileOptions {
	timeout, _ := c.compileTimeout()
	return CompileOptions{
		Tool:      c.Shaders.Compiler,
		TargetEnv: c.Shaders.TargetEnv,
		Optimize:  c.Shaders.Optimize,
		Macros:    c.Shaders.Macros,
		ExtraArgs: c.Shaders.ExtraArgs,
		Timeout:   timeout,
	}
}

// Compilers builds the compiler set for the configured tools.
func (c Config) Compilers() (Compilers, error) {
	glslc, err := NewGLSLC(c.CompileOptions())
	if err != nil {
		return Compilers{}, err
	}
	return Compilers{GLSL: glslc, WGSL: Naga{}}, nil
}
