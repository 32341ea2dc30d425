package grayv

import (
	"fmt"
	"unsafe"
)

// Opaque GPU object handles. The zero value of every handle is the null handle.
type (
	Instance        uint64
	Surface         uint64
	PhysicalDevice  uint64
	Device          uint64
	Queue           uint64
	SwapchainHandle uint64
	Image           uint64
	ImageView       uint64
	Semaphore       uint64
	Fence           uint64
	CommandPool     uint64
	CommandBuffer   uint64
	ShaderModule    uint64
	RenderPass      uint64
	Framebuffer     uint64
	PipelineLayout  uint64
	Pipeline        uint64
)

// NoTimeout makes fence waits block until the fence is signaled.
const NoTimeout = ^uint64(0)

// AdapterType mirrors VkPhysicalDeviceType.
type AdapterType uint32

const (
	AdapterOther AdapterType = iota
	AdapterIntegrated
	AdapterDiscrete
	AdapterVirtual
	AdapterCPU
)

func (t AdapterType) String() string {
	switch t {
	case AdapterIntegrated:
		return "integrated"
	case AdapterDiscrete:
		return "discrete"
	case AdapterVirtual:
		return "virtual"
	case AdapterCPU:
		return "cpu"
	}
	return "other"
}

// QueueFlags mirrors VkQueueFlags.
type QueueFlags uint32

const (
	QueueGraphics QueueFlags = 1 << iota
	QueueCompute
	QueueTransfer
)

func (f QueueFlags) Has(flag QueueFlags) bool {
	return f&flag == flag
}

// Format mirrors the subset of VkFormat used for presentation.
type Format uint32

const (
	FormatUndefined     Format = 0
	FormatR8G8B8A8Unorm Format = 37
	FormatR8G8B8A8Srgb  Format = 43
	FormatB8G8R8A8Unorm Format = 44
	FormatB8G8R8A8Srgb  Format = 50
)

// ColorSpace mirrors VkColorSpaceKHR.
type ColorSpace uint32

const ColorSpaceSrgbNonlinear ColorSpace = 0

// PresentMode mirrors VkPresentModeKHR.
type PresentMode uint32

const (
	PresentModeImmediate   PresentMode = 0
	PresentModeMailbox     PresentMode = 1
	PresentModeFifo        PresentMode = 2
	PresentModeFifoRelaxed PresentMode = 3
)

func (m PresentMode) String() string {
	switch m {
	case PresentModeImmediate:
		return "immediate"
	case PresentModeMailbox:
		return "mailbox"
	case PresentModeFifo:
		return "fifo"
	case PresentModeFifoRelaxed:
		return "fifo-relaxed"
	}
	return fmt.Sprintf("present-mode(%d)", uint32(m))
}

// SharingMode mirrors VkSharingMode.
type SharingMode uint32

const (
	SharingExclusive SharingMode = iota
	SharingConcurrent
)

// Surface transform and composite alpha bits.
const (
	TransformIdentity uint32 = 0x1

	CompositeAlphaOpaque         uint32 = 0x1
	CompositeAlphaPreMultiplied  uint32 = 0x2
	CompositeAlphaPostMultiplied uint32 = 0x4
	CompositeAlphaInherit        uint32 = 0x8
)

// Extent2D is a size in pixels.
type Extent2D struct {
	Width  uint32
	Height uint32
}

func (e Extent2D) IsZero() bool {
	return e.Width == 0 || e.Height == 0
}

func (e Extent2D) String() string {
	return fmt.Sprintf("%dx%d", e.Width, e.Height)
}

// UndefinedExtent is reported as current extent when the surface size
// is decided by the swapchain.
var UndefinedExtent = Extent2D{Width: ^uint32(0), Height: ^uint32(0)}

type SurfaceFormat struct {
	Format     Format
	ColorSpace ColorSpace
}

type SurfaceCapabilities struct {
	MinImageCount           uint32
	MaxImageCount           uint32
	CurrentExtent           Extent2D
	MinImageExtent          Extent2D
	MaxImageExtent          Extent2D
	SupportedTransforms     uint32
	CurrentTransform        uint32
	SupportedCompositeAlpha uint32
}

// SurfaceDetails is what an adapter reports for a surface.
type SurfaceDetails struct {
	Capabilities SurfaceCapabilities
	Formats      []SurfaceFormat
	PresentModes []PresentMode
}

type QueueFamily struct {
	Index uint32
	Flags QueueFlags
	Count uint32
}

// AdapterInfo describes a physical device candidate.
type AdapterInfo struct {
	Handle        PhysicalDevice
	Name          string
	Type          AdapterType
	APIVersion    uint32
	VendorID      uint32
	DeviceID      uint32
	QueueFamilies []QueueFamily
}

type InstanceInfo struct {
	AppName    string
	AppVersion uint32
	APIVersion uint32
	EngineName string
	Extensions []string
	Layers     []string
	Debug      bool
}

type DeviceInfo struct {
	QueueFamilies []uint32
	Extensions    []string
	Layers        []string
}

type SwapchainInfo struct {
	Surface        Surface
	MinImageCount  uint32
	Format         SurfaceFormat
	Extent         Extent2D
	SharingMode    SharingMode
	QueueFamilies  []uint32
	PreTransform   uint32
	CompositeAlpha uint32
	PresentMode    PresentMode
	OldSwapchain   SwapchainHandle
}

type SubmitInfo struct {
	Wait           []Semaphore
	CommandBuffers []CommandBuffer
	Signal         []Semaphore
}

type PresentInfo struct {
	Wait       []Semaphore
	Swapchain  SwapchainHandle
	ImageIndex uint32
}

type RenderPassBegin struct {
	Pass        RenderPass
	Framebuffer Framebuffer
	Extent      Extent2D
	ClearColor  [4]float32
}

// StageInfo binds a loaded module to a pipeline stage.
type StageInfo struct {
	Stage      ShaderStage
	Module     ShaderModule
	EntryPoint string
}

type GraphicsPipelineInfo struct {
	Layout     PipelineLayout
	RenderPass RenderPass
	Stages     []StageInfo
}

// SurfaceProvider is the windowing collaborator. *glfw.Window satisfies it.
type SurfaceProvider interface {
	GetRequiredInstanceExtensions() []string
	CreateWindowSurface(instance interface{}, allocCallbacks unsafe.Pointer) (surface uintptr, err error)
	GetFramebufferSize() (width, height int)
}

// Driver is the set of GPU entry points the session, swapchain, frame
// scheduler and shader units are built on. Methods returning Result report
// presentation outcomes that callers must interpret; everything else
// reports failures as errors created with NewError.
type Driver interface {
	AvailableInstanceExtensions() ([]string, error)
	AvailableLayers() ([]string, error)
	CreateInstance(info InstanceInfo) (Instance, error)
	DestroyInstance(inst Instance)

	CreateSurface(inst Instance, provider SurfaceProvider) (Surface, error)
	DestroySurface(inst Instance, surface Surface)

	EnumerateAdapters(inst Instance) ([]AdapterInfo, error)
	AdapterExtensions(pd PhysicalDevice) ([]string, error)
	SurfaceSupported(pd PhysicalDevice, family uint32, surface Surface) (bool, error)
	SurfaceDetails(pd PhysicalDevice, surface Surface) (SurfaceDetails, error)

	CreateDevice(pd PhysicalDevice, info DeviceInfo) (Device, error)
	DestroyDevice(dev Device)
	DeviceWaitIdle(dev Device) error
	GetQueue(dev Device, family, index uint32) Queue

	CreateSwapchain(dev Device, info SwapchainInfo) (SwapchainHandle, error)
	DestroySwapchain(dev Device, sc SwapchainHandle)
	SwapchainImages(dev Device, sc SwapchainHandle) ([]Image, error)
	CreateImageView(dev Device, img Image, format Format) (ImageView, error)
	DestroyImageView(dev Device, view ImageView)

	CreateSemaphore(dev Device) (Semaphore, error)
	DestroySemaphore(dev Device, sem Semaphore)
	CreateFence(dev Device, signaled bool) (Fence, error)
	DestroyFence(dev Device, fence Fence)
	WaitForFences(dev Device, fences []Fence, timeout uint64) error
	ResetFences(dev Device, fences []Fence) error

	CreateCommandPool(dev Device, family uint32) (CommandPool, error)
	DestroyCommandPool(dev Device, pool CommandPool)
	AllocateCommandBuffers(dev Device, pool CommandPool, count uint32) ([]CommandBuffer, error)
	ResetCommandBuffer(cb CommandBuffer) error
	BeginCommandBuffer(cb CommandBuffer) error
	EndCommandBuffer(cb CommandBuffer) error
	CmdBeginRenderPass(cb CommandBuffer, begin RenderPassBegin)
	CmdEndRenderPass(cb CommandBuffer)
	CmdBindPipeline(cb CommandBuffer, pipeline Pipeline)
	CmdSetViewportScissor(cb CommandBuffer, extent Extent2D)
	CmdPushConstants(cb CommandBuffer, layout PipelineLayout, data []byte)
	CmdDraw(cb CommandBuffer, vertexCount, instanceCount uint32)

	AcquireNextImage(dev Device, sc SwapchainHandle, timeout uint64, signal Semaphore) (uint32, Result)
	QueueSubmit(q Queue, info SubmitInfo, fence Fence) error
	QueuePresent(q Queue, info PresentInfo) Result

	CreateShaderModule(dev Device, code []byte) (ShaderModule, error)
	DestroyShaderModule(dev Device, module ShaderModule)

	CreateRenderPass(dev Device, format Format) (RenderPass, error)
	DestroyRenderPass(dev Device, pass RenderPass)
	CreateFramebuffer(dev Device, pass RenderPass, view ImageView, extent Extent2D) (Framebuffer, error)
	DestroyFramebuffer(dev Device, fb Framebuffer)
	CreatePipelineLayout(dev Device, pushConstantSize uint32) (PipelineLayout, error)
	DestroyPipelineLayout(dev Device, layout PipelineLayout)
	CreateGraphicsPipeline(dev Device, info GraphicsPipelineInfo) (Pipeline, error)
	DestroyPipeline(dev Device, pipeline Pipeline)
}
