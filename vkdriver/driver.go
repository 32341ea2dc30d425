// Package vkdriver implements grayv.Driver on top of vulkan-go.
package vkdriver

import (
	"unsafe"

	"github.com/andewx/grayv"
	"github.com/andewx/grayv/log"
	"github.com/pkg/errors"
	vk "github.com/vulkan-go/vulkan"
)

var _ grayv.Driver = (*Driver)(nil)

// Init loads the Vulkan loader through the given vkGetInstanceProcAddr,
// typically glfw.GetVulkanGetInstanceProcAddress().
func Init(getInstanceProcAddr unsafe.Pointer) error {
	vk.SetGetInstanceProcAddr(getInstanceProcAddr)
	return errors.Wrap(vk.Init(), "vulkan init")
}

// Driver issues real Vulkan calls. It is not safe for concurrent use apart
// from its handle registry.
type Driver struct {
	reg       *registry
	callbacks map[grayv.Instance]vk.DebugReportCallback
	logger    log.Logger
}

func New() *Driver {
	return &Driver{
		reg:       newRegistry(),
		callbacks: make(map[grayv.Instance]vk.DebugReportCallback),
		logger:    log.New("vulkan"),
	}
}

// Live reports how many handles are still registered.
func (d *Driver) Live() int { return d.reg.Len() }

func (d *Driver) AvailableInstanceExtensions() ([]string, error) {
	return instanceExtensions()
}

func (d *Driver) AvailableLayers() ([]string, error) {
	return validationLayers()
}

func (d *Driver) CreateInstance(info grayv.InstanceInfo) (grayv.Instance, error) {
	extensions := safeStrings(info.Extensions)
	layers := safeStrings(info.Layers)

	var instance vk.Instance
	ret := vk.CreateInstance(&vk.InstanceCreateInfo{
		SType: vk.StructureTypeInstanceCreateInfo,
		PApplicationInfo: &vk.ApplicationInfo{
			SType:              vk.StructureTypeApplicationInfo,
			ApiVersion:         info.APIVersion,
			ApplicationVersion: info.AppVersion,
			PApplicationName:   safeString(info.AppName),
			PEngineName:        safeString(info.EngineName),
		},
		EnabledExtensionCount:   uint32(len(extensions)),
		PpEnabledExtensionNames: extensions,
		EnabledLayerCount:       uint32(len(layers)),
		PpEnabledLayerNames:     layers,
	}, nil, &instance)
	if err := grayv.NewError(result(ret)); err != nil {
		return 0, err
	}
	if err := vk.InitInstance(instance); err != nil {
		vk.DestroyInstance(instance, nil)
		return 0, errors.Wrap(err, "init instance")
	}
	h := grayv.Instance(d.reg.put(instance))

	if info.Debug {
		var callback vk.DebugReportCallback
		ret := vk.CreateDebugReportCallback(instance, &vk.DebugReportCallbackCreateInfo{
			SType:       vk.StructureTypeDebugReportCallbackCreateInfo,
			Flags:       debugReportFlags(),
			PfnCallback: dbgCallbackFunc,
		}, nil, &callback)
		if err := grayv.NewError(result(ret)); err != nil {
			d.logger.Warningf("debug report callback unavailable: %v", err)
		} else {
			d.callbacks[h] = callback
			d.logger.Info("debug report callback enabled")
		}
	}
	return h, nil
}

func (d *Driver) DestroyInstance(inst grayv.Instance) {
	instance := lookup[vk.Instance](d.reg, uint64(inst))
	if instance == nil {
		return
	}
	if callback, ok := d.callbacks[inst]; ok {
		vk.DestroyDebugReportCallback(instance, callback, nil)
		delete(d.callbacks, inst)
	}
	vk.DestroyInstance(instance, nil)
	d.reg.drop(uint64(inst))
}

func (d *Driver) CreateSurface(inst grayv.Instance, provider grayv.SurfaceProvider) (grayv.Surface, error) {
	instance := lookup[vk.Instance](d.reg, uint64(inst))
	ptr, err := provider.CreateWindowSurface(instance, nil)
	if err != nil {
		return 0, errors.Wrap(err, "create window surface")
	}
	surface := vk.SurfaceFromPointer(ptr)
	if surface == nil {
		return 0, errors.New("window returned a null surface")
	}
	return grayv.Surface(d.reg.put(surface)), nil
}

func (d *Driver) DestroySurface(inst grayv.Instance, surface grayv.Surface) {
	instance := lookup[vk.Instance](d.reg, uint64(inst))
	s := lookup[vk.Surface](d.reg, uint64(surface))
	if instance == nil || s == nil {
		return
	}
	vk.DestroySurface(instance, s, nil)
	d.reg.drop(uint64(surface))
}

func (d *Driver) EnumerateAdapters(inst grayv.Instance) ([]grayv.AdapterInfo, error) {
	gpus, err := physicalDevices(lookup[vk.Instance](d.reg, uint64(inst)))
	if err != nil {
		return nil, err
	}
	adapters := make([]grayv.AdapterInfo, 0, len(gpus))
	for _, gpu := range gpus {
		h := d.reg.intern(gpu)
		d.reg.own(uint64(inst), h)
		var props vk.PhysicalDeviceProperties
		vk.GetPhysicalDeviceProperties(gpu, &props)
		props.Deref()
		adapters = append(adapters, grayv.AdapterInfo{
			Handle:        grayv.PhysicalDevice(h),
			Name:          vk.ToString(props.DeviceName[:]),
			Type:          grayv.AdapterType(props.DeviceType),
			APIVersion:    props.ApiVersion,
			VendorID:      props.VendorID,
			DeviceID:      props.DeviceID,
			QueueFamilies: queueFamilies(gpu),
		})
	}
	return adapters, nil
}

func (d *Driver) AdapterExtensions(pd grayv.PhysicalDevice) ([]string, error) {
	return deviceExtensions(lookup[vk.PhysicalDevice](d.reg, uint64(pd)))
}

func (d *Driver) SurfaceSupported(pd grayv.PhysicalDevice, family uint32, surface grayv.Surface) (bool, error) {
	var supported vk.Bool32
	ret := vk.GetPhysicalDeviceSurfaceSupport(
		lookup[vk.PhysicalDevice](d.reg, uint64(pd)), family,
		lookup[vk.Surface](d.reg, uint64(surface)), &supported)
	if err := grayv.NewError(result(ret)); err != nil {
		return false, err
	}
	return supported.B(), nil
}

func (d *Driver) SurfaceDetails(pd grayv.PhysicalDevice, surface grayv.Surface) (details grayv.SurfaceDetails, err error) {
	defer checkErr(&err)
	gpu := lookup[vk.PhysicalDevice](d.reg, uint64(pd))
	s := lookup[vk.Surface](d.reg, uint64(surface))

	var caps vk.SurfaceCapabilities
	ret := vk.GetPhysicalDeviceSurfaceCapabilities(gpu, s, &caps)
	orPanic(grayv.NewError(result(ret)))
	caps.Deref()
	details.Capabilities = grayv.SurfaceCapabilities{
		MinImageCount:           caps.MinImageCount,
		MaxImageCount:           caps.MaxImageCount,
		CurrentExtent:           extent(caps.CurrentExtent),
		MinImageExtent:          extent(caps.MinImageExtent),
		MaxImageExtent:          extent(caps.MaxImageExtent),
		SupportedTransforms:     uint32(caps.SupportedTransforms),
		CurrentTransform:        uint32(caps.CurrentTransform),
		SupportedCompositeAlpha: uint32(caps.SupportedCompositeAlpha),
	}

	var formatCount uint32
	ret = vk.GetPhysicalDeviceSurfaceFormats(gpu, s, &formatCount, nil)
	orPanic(grayv.NewError(result(ret)))
	formats := make([]vk.SurfaceFormat, formatCount)
	ret = vk.GetPhysicalDeviceSurfaceFormats(gpu, s, &formatCount, formats)
	orPanic(grayv.NewError(result(ret)))
	for _, f := range formats[:formatCount] {
		f.Deref()
		details.Formats = append(details.Formats, grayv.SurfaceFormat{
			Format:     grayv.Format(f.Format),
			ColorSpace: grayv.ColorSpace(f.ColorSpace),
		})
	}

	var modeCount uint32
	ret = vk.GetPhysicalDeviceSurfacePresentModes(gpu, s, &modeCount, nil)
	orPanic(grayv.NewError(result(ret)))
	modes := make([]vk.PresentMode, modeCount)
	ret = vk.GetPhysicalDeviceSurfacePresentModes(gpu, s, &modeCount, modes)
	orPanic(grayv.NewError(result(ret)))
	for _, m := range modes[:modeCount] {
		details.PresentModes = append(details.PresentModes, grayv.PresentMode(m))
	}
	return details, nil
}

func (d *Driver) CreateDevice(pd grayv.PhysicalDevice, info grayv.DeviceInfo) (grayv.Device, error) {
	queueInfos := make([]vk.DeviceQueueCreateInfo, 0, len(info.QueueFamilies))
	for _, family := range info.QueueFamilies {
		queueInfos = append(queueInfos, vk.DeviceQueueCreateInfo{
			SType:            vk.StructureTypeDeviceQueueCreateInfo,
			QueueFamilyIndex: family,
			QueueCount:       1,
			PQueuePriorities: []float32{1.0},
		})
	}
	extensions := safeStrings(info.Extensions)
	layers := safeStrings(info.Layers)

	var device vk.Device
	ret := vk.CreateDevice(lookup[vk.PhysicalDevice](d.reg, uint64(pd)), &vk.DeviceCreateInfo{
		SType:                   vk.StructureTypeDeviceCreateInfo,
		QueueCreateInfoCount:    uint32(len(queueInfos)),
		PQueueCreateInfos:       queueInfos,
		EnabledExtensionCount:   uint32(len(extensions)),
		PpEnabledExtensionNames: extensions,
		EnabledLayerCount:       uint32(len(layers)),
		PpEnabledLayerNames:     layers,
	}, nil, &device)
	if err := grayv.NewError(result(ret)); err != nil {
		return 0, err
	}
	return grayv.Device(d.reg.put(device)), nil
}

func (d *Driver) DestroyDevice(dev grayv.Device) {
	device := lookup[vk.Device](d.reg, uint64(dev))
	if device == nil {
		return
	}
	vk.DestroyDevice(device, nil)
	d.reg.drop(uint64(dev))
}

func (d *Driver) DeviceWaitIdle(dev grayv.Device) error {
	return grayv.NewError(result(vk.DeviceWaitIdle(lookup[vk.Device](d.reg, uint64(dev)))))
}

func (d *Driver) GetQueue(dev grayv.Device, family, index uint32) grayv.Queue {
	var queue vk.Queue
	vk.GetDeviceQueue(lookup[vk.Device](d.reg, uint64(dev)), family, index, &queue)
	h := d.reg.intern(queue)
	d.reg.own(uint64(dev), h)
	return grayv.Queue(h)
}

func (d *Driver) device(dev grayv.Device) vk.Device {
	return lookup[vk.Device](d.reg, uint64(dev))
}
