package grayv

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io/fs"
	"sort"
	"testing/fstest"
	"time"
	"unsafe"

	"github.com/pkg/errors"
)

// fakeAdapter is a simulated physical device.
type fakeAdapter struct {
	info       AdapterInfo
	extensions []string
	present    map[uint32]bool
	details    SurfaceDetails
}

func qualifyingAdapter(name string, t AdapterType) fakeAdapter {
	return fakeAdapter{
		info: AdapterInfo{
			Name:          name,
			Type:          t,
			APIVersion:    MakeVersion(1, 3, 0),
			QueueFamilies: []QueueFamily{{Index: 0, Flags: QueueGraphics | QueueCompute | QueueTransfer, Count: 1}},
		},
		extensions: []string{"VK_KHR_swapchain"},
		present:    map[uint32]bool{0: true},
		details: SurfaceDetails{
			Capabilities: SurfaceCapabilities{
				MinImageCount:           2,
				MaxImageCount:           8,
				CurrentExtent:           UndefinedExtent,
				MinImageExtent:          Extent2D{Width: 1, Height: 1},
				MaxImageExtent:          Extent2D{Width: 1920, Height: 1080},
				SupportedTransforms:     TransformIdentity,
				CurrentTransform:        TransformIdentity,
				SupportedCompositeAlpha: CompositeAlphaOpaque,
			},
			Formats: []SurfaceFormat{
				{Format: FormatR8G8B8A8Unorm, ColorSpace: ColorSpaceSrgbNonlinear},
				{Format: FormatB8G8R8A8Srgb, ColorSpace: ColorSpaceSrgbNonlinear},
			},
			PresentModes: []PresentMode{PresentModeFifo, PresentModeMailbox},
		},
	}
}

// fakeDriver is an in-memory Driver. GPU work completes as soon as it is
// submitted but the CPU only learns about it through a fence wait or a
// device idle, which is what lets tests catch premature reuse.
type fakeDriver struct {
	adapters           []fakeAdapter
	instanceExtensions []string
	layers             []string

	next       uint64
	live       map[uint64]string
	calls      []string
	violations []string

	failDevice    bool
	failSwapchain bool
	failModule    bool
	failPipeline  bool

	failResetCommand bool

	cbInUse   map[CommandBuffer]bool
	fenceBusy map[Fence]bool
	fenceSig  map[Fence]bool
	fenceCB   map[Fence][]CommandBuffer
	semSig    map[Semaphore]bool
	poolCBs   map[CommandPool][]CommandBuffer

	images     map[SwapchainHandle][]Image
	swapchains []SwapchainInfo
	acquired   uint32

	acquireScript []Result
	presentScript []Result

	modules   map[ShaderModule][]byte
	pipelines map[Pipeline]GraphicsPipelineInfo
	bound     map[CommandBuffer]Pipeline
	recorded  map[CommandBuffer][]string
	draws     []Pipeline
	pushes    [][]byte

	instanceInfo InstanceInfo
	deviceInfo   DeviceInfo

	waitIdle   int
	fenceWaits int
	submits    int
	presents   int
}

func newFakeDriver(adapters ...fakeAdapter) *fakeDriver {
	d := &fakeDriver{
		instanceExtensions: []string{"VK_KHR_surface", "VK_KHR_xcb_surface", "VK_EXT_debug_report"},
		layers:             []string{"VK_LAYER_KHRONOS_validation"},
		live:               make(map[uint64]string),
		cbInUse:            make(map[CommandBuffer]bool),
		fenceBusy:          make(map[Fence]bool),
		fenceSig:           make(map[Fence]bool),
		fenceCB:            make(map[Fence][]CommandBuffer),
		semSig:             make(map[Semaphore]bool),
		poolCBs:            make(map[CommandPool][]CommandBuffer),
		images:             make(map[SwapchainHandle][]Image),
		modules:            make(map[ShaderModule][]byte),
		pipelines:          make(map[Pipeline]GraphicsPipelineInfo),
		bound:              make(map[CommandBuffer]Pipeline),
		recorded:           make(map[CommandBuffer][]string),
		next:               100,
	}
	for i, a := range adapters {
		a.info.Handle = PhysicalDevice(1 + i)
		d.adapters = append(d.adapters, a)
	}
	return d
}

func (d *fakeDriver) alloc(kind string) uint64 {
	d.next++
	d.live[d.next] = kind
	return d.next
}

func (d *fakeDriver) free(h uint64, kind string) {
	if h == 0 {
		d.violate("destroy null %s", kind)
		return
	}
	if got, ok := d.live[h]; !ok || got != kind {
		d.violate("destroy of unknown %s %d", kind, h)
		return
	}
	delete(d.live, h)
	d.calls = append(d.calls, "destroy:"+kind)
}

func (d *fakeDriver) violate(format string, args ...interface{}) {
	d.violations = append(d.violations, fmt.Sprintf(format, args...))
}

func (d *fakeDriver) busy() bool {
	for _, v := range d.cbInUse {
		if v {
			return true
		}
	}
	return false
}

// leaks lists live handles by kind.
func (d *fakeDriver) leaks() []string {
	var out []string
	for h, kind := range d.live {
		out = append(out, fmt.Sprintf("%s:%d", kind, h))
	}
	sort.Strings(out)
	return out
}

func (d *fakeDriver) adapter(pd PhysicalDevice) *fakeAdapter {
	for i := range d.adapters {
		if d.adapters[i].info.Handle == pd {
			return &d.adapters[i]
		}
	}
	return nil
}

// destroyCalls returns the destroy calls in order, filtered to kinds.
func (d *fakeDriver) destroyCalls(kinds ...string) []string {
	want := make(map[string]bool)
	for _, k := range kinds {
		want["destroy:"+k] = true
	}
	var out []string
	for _, c := range d.calls {
		if want[c] {
			out = append(out, c)
		}
	}
	return out
}

func (d *fakeDriver) AvailableInstanceExtensions() ([]string, error) { return d.instanceExtensions, nil }
func (d *fakeDriver) AvailableLayers() ([]string, error) { return d.layers, nil }

func (d *fakeDriver) CreateInstance(info InstanceInfo) (Instance, error) {
	d.instanceInfo = info
	return Instance(d.alloc("instance")), nil
}

func (d *fakeDriver) DestroyInstance(inst Instance) { d.free(uint64(inst), "instance") }

func (d *fakeDriver) CreateSurface(inst Instance, provider SurfaceProvider) (Surface, error) {
	if _, err := provider.CreateWindowSurface(uintptr(inst), nil); err != nil {
		return 0, err
	}
	return Surface(d.alloc("surface")), nil
}

func (d *fakeDriver) DestroySurface(inst Instance, surface Surface) {
	if _, ok := d.live[uint64(inst)]; !ok {
		d.violate("surface destroyed after its instance")
	}
	d.free(uint64(surface), "surface")
}

func (d *fakeDriver) EnumerateAdapters(inst Instance) ([]AdapterInfo, error) {
	var out []AdapterInfo
	for _, a := range d.adapters {
		out = append(out, a.info)
	}
	return out, nil
}

func (d *fakeDriver) AdapterExtensions(pd PhysicalDevice) ([]string, error) {
	return d.adapter(pd).extensions, nil
}

func (d *fakeDriver) SurfaceSupported(pd PhysicalDevice, family uint32, surface Surface) (bool, error) {
	return d.adapter(pd).present[family], nil
}

func (d *fakeDriver) SurfaceDetails(pd PhysicalDevice, surface Surface) (SurfaceDetails, error) {
	return d.adapter(pd).details, nil
}

func (d *fakeDriver) CreateDevice(pd PhysicalDevice, info DeviceInfo) (Device, error) {
	if d.failDevice {
		return 0, NewError(ErrorInitializationFail)
	}
	d.deviceInfo = info
	return Device(d.alloc("device")), nil
}

func (d *fakeDriver) DestroyDevice(dev Device) {
	for h, kind := range d.live {
		if kind != "device" && kind != "instance" && kind != "surface" {
			d.violate("device destroyed while %s %d is alive", kind, h)
		}
	}
	d.free(uint64(dev), "device")
}

func (d *fakeDriver) DeviceWaitIdle(dev Device) error {
	d.waitIdle++
	d.calls = append(d.calls, "waitidle")
	for f, b := range d.fenceBusy {
		if b {
			d.fenceBusy[f] = false
			d.fenceSig[f] = true
		}
	}
	for cb := range d.cbInUse {
		d.cbInUse[cb] = false
	}
	return nil
}

func (d *fakeDriver) GetQueue(dev Device, family, index uint32) Queue {
	return Queue(10 + family)
}

func (d *fakeDriver) CreateSwapchain(dev Device, info SwapchainInfo) (SwapchainHandle, error) {
	if d.busy() {
		d.violate("swapchain created while frames are in flight")
	}
	if d.failSwapchain {
		return 0, NewError(ErrorOutOfDeviceMemory)
	}
	d.swapchains = append(d.swapchains, info)
	sc := SwapchainHandle(d.alloc("swapchain"))
	imgs := make([]Image, info.MinImageCount)
	for i := range imgs {
		d.next++
		imgs[i] = Image(d.next)
	}
	d.images[sc] = imgs
	d.calls = append(d.calls, "create:swapchain")
	return sc, nil
}

func (d *fakeDriver) DestroySwapchain(dev Device, sc SwapchainHandle) {
	if d.busy() {
		d.violate("swapchain destroyed while frames are in flight")
	}
	delete(d.images, sc)
	d.free(uint64(sc), "swapchain")
}

func (d *fakeDriver) SwapchainImages(dev Device, sc SwapchainHandle) ([]Image, error) {
	return d.images[sc], nil
}

func (d *fakeDriver) CreateImageView(dev Device, img Image, format Format) (ImageView, error) {
	return ImageView(d.alloc("imageview")), nil
}

func (d *fakeDriver) DestroyImageView(dev Device, view ImageView) {
	if d.busy() {
		d.violate("image view destroyed while frames are in flight")
	}
	d.free(uint64(view), "imageview")
}

func (d *fakeDriver) CreateSemaphore(dev Device) (Semaphore, error) {
	return Semaphore(d.alloc("semaphore")), nil
}

func (d *fakeDriver) DestroySemaphore(dev Device, sem Semaphore) {
	delete(d.semSig, sem)
	d.free(uint64(sem), "semaphore")
}

// waitSemaphores consumes the signal of every semaphore in sems.
func (d *fakeDriver) waitSemaphores(op string, sems []Semaphore) {
	for _, sem := range sems {
		if !d.semSig[sem] {
			d.violate("%s waits on unsignaled semaphore %d", op, sem)
		}
		d.semSig[sem] = false
	}
}

func (d *fakeDriver) CreateFence(dev Device, signaled bool) (Fence, error) {
	f := Fence(d.alloc("fence"))
	d.fenceSig[f] = signaled
	return f, nil
}

func (d *fakeDriver) DestroyFence(dev Device, fence Fence) {
	if d.fenceBusy[fence] {
		d.violate("fence %d destroyed with pending work", fence)
	}
	d.free(uint64(fence), "fence")
}

func (d *fakeDriver) WaitForFences(dev Device, fences []Fence, timeout uint64) error {
	for _, f := range fences {
		d.fenceWaits++
		d.calls = append(d.calls, "waitfence")
		switch {
		case d.fenceBusy[f]:
			d.fenceBusy[f] = false
			d.fenceSig[f] = true
			for _, cb := range d.fenceCB[f] {
				d.cbInUse[cb] = false
			}
		case !d.fenceSig[f]:
			d.violate("wait on fence %d that can never signal", f)
			return NewError(Timeout)
		}
	}
	return nil
}

func (d *fakeDriver) ResetFences(dev Device, fences []Fence) error {
	for _, f := range fences {
		if d.fenceBusy[f] {
			d.violate("fence %d reset with pending work", f)
		}
		d.fenceSig[f] = false
	}
	return nil
}

func (d *fakeDriver) CreateCommandPool(dev Device, family uint32) (CommandPool, error) {
	return CommandPool(d.alloc("commandpool")), nil
}

func (d *fakeDriver) DestroyCommandPool(dev Device, pool CommandPool) {
	for _, cb := range d.poolCBs[pool] {
		if d.cbInUse[cb] {
			d.violate("command pool destroyed while buffer %d is in flight", cb)
		}
		d.free(uint64(cb), "commandbuffer")
	}
	delete(d.poolCBs, pool)
	d.free(uint64(pool), "commandpool")
}

func (d *fakeDriver) AllocateCommandBuffers(dev Device, pool CommandPool, count uint32) ([]CommandBuffer, error) {
	cbs := make([]CommandBuffer, count)
	for i := range cbs {
		cbs[i] = CommandBuffer(d.alloc("commandbuffer"))
	}
	d.poolCBs[pool] = append(d.poolCBs[pool], cbs...)
	return cbs, nil
}

func (d *fakeDriver) ResetCommandBuffer(cb CommandBuffer) error {
	if d.cbInUse[cb] {
		d.violate("command buffer %d reset while in flight", cb)
	}
	if d.failResetCommand {
		return NewError(ErrorOutOfHostMemory)
	}
	return nil
}

func (d *fakeDriver) BeginCommandBuffer(cb CommandBuffer) error {
	if d.cbInUse[cb] {
		d.violate("command buffer %d recorded while in flight", cb)
	}
	d.recorded[cb] = []string{"begin"}
	return nil
}

func (d *fakeDriver) EndCommandBuffer(cb CommandBuffer) error {
	d.recorded[cb] = append(d.recorded[cb], "end")
	return nil
}

func (d *fakeDriver) CmdBeginRenderPass(cb CommandBuffer, begin RenderPassBegin) {
	if _, ok := d.live[uint64(begin.Framebuffer)]; !ok {
		d.violate("render pass begun on dead framebuffer %d", begin.Framebuffer)
	}
	d.recorded[cb] = append(d.recorded[cb], "beginpass")
}

func (d *fakeDriver) CmdEndRenderPass(cb CommandBuffer) {
	d.recorded[cb] = append(d.recorded[cb], "endpass")
}

func (d *fakeDriver) CmdBindPipeline(cb CommandBuffer, pipeline Pipeline) {
	d.bound[cb] = pipeline
	d.recorded[cb] = append(d.recorded[cb], "bind")
}

func (d *fakeDriver) CmdSetViewportScissor(cb CommandBuffer, extent Extent2D) {
	d.recorded[cb] = append(d.recorded[cb], "viewport")
}

func (d *fakeDriver) CmdPushConstants(cb CommandBuffer, layout PipelineLayout, data []byte) {
	d.pushes = append(d.pushes, append([]byte(nil), data...))
	d.recorded[cb] = append(d.recorded[cb], "push")
}

func (d *fakeDriver) CmdDraw(cb CommandBuffer, vertexCount, instanceCount uint32) {
	p := d.bound[cb]
	if _, ok := d.live[uint64(p)]; !ok {
		d.violate("draw with dead pipeline %d", p)
	}
	d.draws = append(d.draws, p)
	d.recorded[cb] = append(d.recorded[cb], fmt.Sprintf("draw:%d", vertexCount))
}

func (d *fakeDriver) AcquireNextImage(dev Device, sc SwapchainHandle, timeout uint64, signal Semaphore) (uint32, Result) {
	d.calls = append(d.calls, "acquire")
	res := Success
	if len(d.acquireScript) > 0 {
		res = d.acquireScript[0]
		d.acquireScript = d.acquireScript[1:]
		if res != Success && res != Suboptimal {
			return 0, res
		}
	}
	imgs := d.images[sc]
	if len(imgs) == 0 {
		d.violate("acquire on swapchain %d without images", sc)
		return 0, ErrorOutOfDateResult
	}
	if d.semSig[signal] {
		d.violate("acquire with already-signaled semaphore %d", signal)
	}
	d.semSig[signal] = true
	idx := d.acquired % uint32(len(imgs))
	d.acquired++
	return idx, res
}

func (d *fakeDriver) QueueSubmit(q Queue, info SubmitInfo, fence Fence) error {
	d.submits++
	d.calls = append(d.calls, "submit")
	if d.fenceSig[fence] {
		d.violate("submit with signaled fence %d", fence)
	}
	d.waitSemaphores("submit", info.Wait)
	for _, sem := range info.Signal {
		d.semSig[sem] = true
	}
	for _, cb := range info.CommandBuffers {
		d.cbInUse[cb] = true
	}
	d.fenceBusy[fence] = true
	d.fenceCB[fence] = info.CommandBuffers
	return nil
}

func (d *fakeDriver) QueuePresent(q Queue, info PresentInfo) Result {
	d.calls = append(d.calls, "present")
	// Waits run even when the present is rejected as out of date.
	d.waitSemaphores("present", info.Wait)
	if len(d.presentScript) > 0 {
		res := d.presentScript[0]
		d.presentScript = d.presentScript[1:]
		if res != Success {
			return res
		}
	}
	d.presents++
	return Success
}

func (d *fakeDriver) CreateShaderModule(dev Device, code []byte) (ShaderModule, error) {
	if d.failModule {
		return 0, NewError(ErrorOutOfDeviceMemory)
	}
	if err := ValidateBytecode(code); err != nil {
		return 0, err
	}
	m := ShaderModule(d.alloc("shadermodule"))
	d.modules[m] = append([]byte(nil), code...)
	return m, nil
}

func (d *fakeDriver) DestroyShaderModule(dev Device, module ShaderModule) {
	delete(d.modules, module)
	d.free(uint64(module), "shadermodule")
}

func (d *fakeDriver) CreateRenderPass(dev Device, format Format) (RenderPass, error) {
	return RenderPass(d.alloc("renderpass")), nil
}

func (d *fakeDriver) DestroyRenderPass(dev Device, pass RenderPass) { d.free(uint64(pass), "renderpass") }

func (d *fakeDriver) CreateFramebuffer(dev Device, pass RenderPass, view ImageView, extent Extent2D) (Framebuffer, error) {
	if _, ok := d.live[uint64(view)]; !ok {
		d.violate("framebuffer created on dead view %d", view)
	}
	return Framebuffer(d.alloc("framebuffer")), nil
}

func (d *fakeDriver) DestroyFramebuffer(dev Device, fb Framebuffer) { d.free(uint64(fb), "framebuffer") }

func (d *fakeDriver) CreatePipelineLayout(dev Device, pushConstantSize uint32) (PipelineLayout, error) {
	return PipelineLayout(d.alloc("pipelinelayout")), nil
}

func (d *fakeDriver) DestroyPipelineLayout(dev Device, layout PipelineLayout) {
	d.free(uint64(layout), "pipelinelayout")
}

func (d *fakeDriver) CreateGraphicsPipeline(dev Device, info GraphicsPipelineInfo) (Pipeline, error) {
	if d.failPipeline {
		return 0, NewError(ErrorOutOfDeviceMemory)
	}
	for _, st := range info.Stages {
		if _, ok := d.modules[st.Module]; !ok {
			d.violate("pipeline built from dead module %d", st.Module)
		}
	}
	p := Pipeline(d.alloc("pipeline"))
	d.pipelines[p] = info
	return p, nil
}

func (d *fakeDriver) DestroyPipeline(dev Device, pipeline Pipeline) {
	d.free(uint64(pipeline), "pipeline")
}

// fakeWindow is a SurfaceProvider.
type fakeWindow struct {
	width, height int
	failSurface   bool
}

func (w *fakeWindow) GetRequiredInstanceExtensions() []string {
	return []string{"VK_KHR_surface", "VK_KHR_xcb_surface"}
}

func (w *fakeWindow) CreateWindowSurface(instance interface{}, allocCallbacks unsafe.Pointer) (uintptr, error) {
	if w.failSurface {
		return 0, errors.New("window has no surface")
	}
	return 1, nil
}

func (w *fakeWindow) GetFramebufferSize() (int, int) { return w.width, w.height }

// spirv builds a minimal valid-looking module whose payload is body.
func spirv(body string) []byte {
	payload := []byte(body)
	for len(payload)%4 != 0 {
		payload = append(payload, 0)
	}
	out := make([]byte, 20, 20+len(payload))
	binary.LittleEndian.PutUint32(out[0:], spirvMagic)
	binary.LittleEndian.PutUint32(out[4:], 0x00010300)
	binary.LittleEndian.PutUint32(out[12:], 1)
	return append(out, payload...)
}

// fakeCompiler fails preprocessing on "#error" and compilation on "syntax error".
type fakeCompiler struct {
	preprocessed int
	compiled     int
}

func (c *fakeCompiler) Preprocess(name string, stage ShaderStage, src []byte) ([]byte, error) {
	c.preprocessed++
	if bytes.Contains(src, []byte("#error")) {
		return nil, errors.Errorf("%s:1: error: #error directive", name)
	}
	return src, nil
}

func (c *fakeCompiler) Compile(name string, stage ShaderStage, src []byte) ([]byte, error) {
	c.compiled++
	if bytes.Contains(src, []byte("syntax error")) {
		return nil, errors.Errorf("%s:1: error: syntax error", name)
	}
	return spirv(stage.String() + ":" + string(src)), nil
}

// countingFS counts reads separately from stats.
type countingFS struct {
	fstest.MapFS
	reads int
	stats int
}

func (c *countingFS) Open(name string) (fs.File, error) {
	c.reads++
	return c.MapFS.Open(name)
}

func (c *countingFS) ReadFile(name string) ([]byte, error) {
	c.reads++
	return c.MapFS.ReadFile(name)
}

func (c *countingFS) Stat(name string) (fs.FileInfo, error) {
	c.stats++
	return c.MapFS.Stat(name)
}

// touch rewrites a file with a newer modification time.
func (c *countingFS) touch(name, data string, mod time.Time) {
	c.MapFS[name] = &fstest.MapFile{Data: []byte(data), ModTime: mod}
}

var epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func shaderTree() *countingFS {
	return &countingFS{MapFS: fstest.MapFS{
		"screen_quad.vert": {Data: []byte("#version 450\nvoid main() {}\n"), ModTime: epoch},
		"screen.frag":      {Data: []byte("#version 450\nvoid main() {}\n"), ModTime: epoch},
	}}
}
