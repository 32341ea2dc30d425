package vkdriver

import (
	"github.com/andewx/grayv"
	"github.com/pkg/errors"
	vk "github.com/vulkan-go/vulkan"
)

func (d *Driver) CreateSwapchain(dev grayv.Device, info grayv.SwapchainInfo) (grayv.SwapchainHandle, error) {
	var swapchain vk.Swapchain
	ret := vk.CreateSwapchain(d.device(dev), &vk.SwapchainCreateInfo{
		SType:                 vk.StructureTypeSwapchainCreateInfo,
		Surface:               lookup[vk.Surface](d.reg, uint64(info.Surface)),
		MinImageCount:         info.MinImageCount,
		ImageFormat:           vk.Format(info.Format.Format),
		ImageColorSpace:       vk.ColorSpace(info.Format.ColorSpace),
		ImageExtent:           vkExtent(info.Extent),
		ImageUsage:            vk.ImageUsageFlags(vk.ImageUsageColorAttachmentBit),
		PreTransform:          vk.SurfaceTransformFlagBits(info.PreTransform),
		CompositeAlpha:        vk.CompositeAlphaFlagBits(info.CompositeAlpha),
		ImageArrayLayers:      1,
		ImageSharingMode:      vk.SharingMode(info.SharingMode),
		QueueFamilyIndexCount: uint32(len(info.QueueFamilies)),
		PQueueFamilyIndices:   info.QueueFamilies,
		PresentMode:           vk.PresentMode(info.PresentMode),
		OldSwapchain:          lookup[vk.Swapchain](d.reg, uint64(info.OldSwapchain)),
		Clipped:               vk.True,
	}, nil, &swapchain)
	if err := grayv.NewError(result(ret)); err != nil {
		return 0, err
	}
	return grayv.SwapchainHandle(d.reg.put(swapchain)), nil
}

// DestroySwapchain also forgets the image handles the swapchain owned.
func (d *Driver) DestroySwapchain(dev grayv.Device, sc grayv.SwapchainHandle) {
	swapchain := lookup[vk.Swapchain](d.reg, uint64(sc))
	if swapchain == nil {
		return
	}
	vk.DestroySwapchain(d.device(dev), swapchain, nil)
	d.reg.drop(uint64(sc))
}

func (d *Driver) SwapchainImages(dev grayv.Device, sc grayv.SwapchainHandle) (images []grayv.Image, err error) {
	defer checkErr(&err)
	device := d.device(dev)
	swapchain := lookup[vk.Swapchain](d.reg, uint64(sc))

	var count uint32
	ret := vk.GetSwapchainImages(device, swapchain, &count, nil)
	orPanic(grayv.NewError(result(ret)))
	list := make([]vk.Image, count)
	ret = vk.GetSwapchainImages(device, swapchain, &count, list)
	orPanic(grayv.NewError(result(ret)))

	images = make([]grayv.Image, 0, count)
	for _, img := range list[:count] {
		h := d.reg.intern(img)
		d.reg.own(uint64(sc), h)
		images = append(images, grayv.Image(h))
	}
	return images, nil
}

func (d *Driver) CreateImageView(dev grayv.Device, img grayv.Image, format grayv.Format) (grayv.ImageView, error) {
	var view vk.ImageView
	ret := vk.CreateImageView(d.device(dev), &vk.ImageViewCreateInfo{
		SType:    vk.StructureTypeImageViewCreateInfo,
		Image:    lookup[vk.Image](d.reg, uint64(img)),
		ViewType: vk.ImageViewType2d,
		Format:   vk.Format(format),
		Components: vk.ComponentMapping{
			R: vk.ComponentSwizzleR,
			G: vk.ComponentSwizzleG,
			B: vk.ComponentSwizzleB,
			A: vk.ComponentSwizzleA,
		},
		SubresourceRange: vk.ImageSubresourceRange{
			AspectMask: vk.ImageAspectFlags(vk.ImageAspectColorBit),
			LevelCount: 1,
			LayerCount: 1,
		},
	}, nil, &view)
	if err := grayv.NewError(result(ret)); err != nil {
		return 0, err
	}
	return grayv.ImageView(d.reg.put(view)), nil
}

func (d *Driver) DestroyImageView(dev grayv.Device, view grayv.ImageView) {
	v := lookup[vk.ImageView](d.reg, uint64(view))
	if v == nil {
		return
	}
	vk.DestroyImageView(d.device(dev), v, nil)
	d.reg.drop(uint64(view))
}

func (d *Driver) CreateSemaphore(dev grayv.Device) (grayv.Semaphore, error) {
	var sem vk.Semaphore
	ret := vk.CreateSemaphore(d.device(dev), &vk.SemaphoreCreateInfo{
		SType: vk.StructureTypeSemaphoreCreateInfo,
	}, nil, &sem)
	if err := grayv.NewError(result(ret)); err != nil {
		return 0, err
	}
	return grayv.Semaphore(d.reg.put(sem)), nil
}

func (d *Driver) DestroySemaphore(dev grayv.Device, sem grayv.Semaphore) {
	s := lookup[vk.Semaphore](d.reg, uint64(sem))
	if s == nil {
		return
	}
	vk.DestroySemaphore(d.device(dev), s, nil)
	d.reg.drop(uint64(sem))
}

func (d *Driver) CreateFence(dev grayv.Device, signaled bool) (grayv.Fence, error) {
	var flags vk.FenceCreateFlags
	if signaled {
		flags = vk.FenceCreateFlags(vk.FenceCreateSignaledBit)
	}
	var fence vk.Fence
	ret := vk.CreateFence(d.device(dev), &vk.FenceCreateInfo{
		SType: vk.StructureTypeFenceCreateInfo,
		Flags: flags,
	}, nil, &fence)
	if err := grayv.NewError(result(ret)); err != nil {
		return 0, err
	}
	return grayv.Fence(d.reg.put(fence)), nil
}

func (d *Driver) DestroyFence(dev grayv.Device, fence grayv.Fence) {
	f := lookup[vk.Fence](d.reg, uint64(fence))
	if f == nil {
		return
	}
	vk.DestroyFence(d.device(dev), f, nil)
	d.reg.drop(uint64(fence))
}

func (d *Driver) WaitForFences(dev grayv.Device, fences []grayv.Fence, timeout uint64) error {
	if len(fences) == 0 {
		return nil
	}
	list := lookupAll[vk.Fence](d.reg, fences)
	ret := vk.WaitForFences(d.device(dev), uint32(len(list)), list, vk.True, timeout)
	if ret == vk.Timeout {
		return errors.Errorf("fence wait timed out after %dns", timeout)
	}
	return grayv.NewError(result(ret))
}

func (d *Driver) ResetFences(dev grayv.Device, fences []grayv.Fence) error {
	if len(fences) == 0 {
		return nil
	}
	list := lookupAll[vk.Fence](d.reg, fences)
	return grayv.NewError(result(vk.ResetFences(d.device(dev), uint32(len(list)), list)))
}

func (d *Driver) AcquireNextImage(dev grayv.Device, sc grayv.SwapchainHandle, timeout uint64, signal grayv.Semaphore) (uint32, grayv.Result) {
	var idx uint32
	ret := vk.AcquireNextImage(d.device(dev), lookup[vk.Swapchain](d.reg, uint64(sc)), timeout,
		lookup[vk.Semaphore](d.reg, uint64(signal)), vk.NullFence, &idx)
	return idx, result(ret)
}

func (d *Driver) QueueSubmit(q grayv.Queue, info grayv.SubmitInfo, fence grayv.Fence) error {
	stages := make([]vk.PipelineStageFlags, len(info.Wait))
	for i := range stages {
		stages[i] = vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit)
	}
	ret := vk.QueueSubmit(lookup[vk.Queue](d.reg, uint64(q)), 1, []vk.SubmitInfo{{
		SType:                vk.StructureTypeSubmitInfo,
		WaitSemaphoreCount:   uint32(len(info.Wait)),
		PWaitSemaphores:      lookupAll[vk.Semaphore](d.reg, info.Wait),
		PWaitDstStageMask:    stages,
		CommandBufferCount:   uint32(len(info.CommandBuffers)),
		PCommandBuffers:      lookupAll[vk.CommandBuffer](d.reg, info.CommandBuffers),
		SignalSemaphoreCount: uint32(len(info.Signal)),
		PSignalSemaphores:    lookupAll[vk.Semaphore](d.reg, info.Signal),
	}}, lookup[vk.Fence](d.reg, uint64(fence)))
	return grayv.NewError(result(ret))
}

func (d *Driver) QueuePresent(q grayv.Queue, info grayv.PresentInfo) grayv.Result {
	ret := vk.QueuePresent(lookup[vk.Queue](d.reg, uint64(q)), &vk.PresentInfo{
		SType:              vk.StructureTypePresentInfo,
		WaitSemaphoreCount: uint32(len(info.Wait)),
		PWaitSemaphores:    lookupAll[vk.Semaphore](d.reg, info.Wait),
		SwapchainCount:     1,
		PSwapchains:        []vk.Swapchain{lookup[vk.Swapchain](d.reg, uint64(info.Swapchain))},
		PImageIndices:      []uint32{info.ImageIndex},
	})
	return result(ret)
}
