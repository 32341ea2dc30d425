package vkdriver

import (
	"github.com/andewx/grayv"
	"github.com/pkg/errors"
	vk "github.com/vulkan-go/vulkan"
)

func orPanic(err error) {
	if err != nil {
		panic(err)
	}
}

func checkErr(err *error) {
	if v := recover(); v != nil {
		if e, ok := v.(error); ok {
			*err = e
			return
		}
		*err = errors.Errorf("%+v", v)
	}
}

func result(ret vk.Result) grayv.Result {
	return grayv.Result(ret)
}

func safeString(s string) string {
	if len(s) == 0 || s[len(s)-1] != 0 {
		return s + "\x00"
	}
	return s
}

func safeStrings(list []string) []string {
	out := make([]string, len(list))
	for i, s := range list {
		out[i] = safeString(s)
	}
	return out
}

// instanceExtensions lists the instance extensions available on the platform.
func instanceExtensions() (names []string, err error) {
	defer checkErr(&err)

	var count uint32
	ret := vk.EnumerateInstanceExtensionProperties("", &count, nil)
	orPanic(grayv.NewError(result(ret)))
	list := make([]vk.ExtensionProperties, count)
	ret = vk.EnumerateInstanceExtensionProperties("", &count, list)
	orPanic(grayv.NewError(result(ret)))
	for _, ext := range list[:count] {
		ext.Deref()
		names = append(names, vk.ToString(ext.ExtensionName[:]))
	}
	return names, err
}

// deviceExtensions lists the extensions available on gpu.
func deviceExtensions(gpu vk.PhysicalDevice) (names []string, err error) {
	defer checkErr(&err)

	var count uint32
	ret := vk.EnumerateDeviceExtensionProperties(gpu, "", &count, nil)
	orPanic(grayv.NewError(result(ret)))
	list := make([]vk.ExtensionProperties, count)
	ret = vk.EnumerateDeviceExtensionProperties(gpu, "", &count, list)
	orPanic(grayv.NewError(result(ret)))
	for _, ext := range list[:count] {
		ext.Deref()
		names = append(names, vk.ToString(ext.ExtensionName[:]))
	}
	return names, err
}

// validationLayers lists the layers available on the platform.
func validationLayers() (names []string, err error) {
	defer checkErr(&err)

	var count uint32
	ret := vk.EnumerateInstanceLayerProperties(&count, nil)
	orPanic(grayv.NewError(result(ret)))
	list := make([]vk.LayerProperties, count)
	ret = vk.EnumerateInstanceLayerProperties(&count, list)
	orPanic(grayv.NewError(result(ret)))
	for _, layer := range list[:count] {
		layer.Deref()
		names = append(names, vk.ToString(layer.LayerName[:]))
	}
	return names, err
}

func physicalDevices(inst vk.Instance) (gpus []vk.PhysicalDevice, err error) {
	defer checkErr(&err)

	var count uint32
	ret := vk.EnumeratePhysicalDevices(inst, &count, nil)
	orPanic(grayv.NewError(result(ret)))
	gpus = make([]vk.PhysicalDevice, count)
	ret = vk.EnumeratePhysicalDevices(inst, &count, gpus)
	orPanic(grayv.NewError(result(ret)))
	return gpus[:count], nil
}

func queueFamilies(gpu vk.PhysicalDevice) []grayv.QueueFamily {
	var count uint32
	vk.GetPhysicalDeviceQueueFamilyProperties(gpu, &count, nil)
	props := make([]vk.QueueFamilyProperties, count)
	vk.GetPhysicalDeviceQueueFamilyProperties(gpu, &count, props)

	families := make([]grayv.QueueFamily, 0, count)
	for i := uint32(0); i < count; i++ {
		props[i].Deref()
		families = append(families, grayv.QueueFamily{
			Index: i,
			Flags: grayv.QueueFlags(props[i].QueueFlags) & (grayv.QueueGraphics | grayv.QueueCompute | grayv.QueueTransfer),
			Count: props[i].QueueCount,
		})
	}
	return families
}

func extent(e vk.Extent2D) grayv.Extent2D {
	e.Deref()
	return grayv.Extent2D{Width: e.Width, Height: e.Height}
}

func vkExtent(e grayv.Extent2D) vk.Extent2D {
	return vk.Extent2D{Width: e.Width, Height: e.Height}
}
