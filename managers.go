package grayv

import "github.com/pkg/errors"

// FrameSlot holds the synchronization objects and command buffer of one
// frame in flight.
type FrameSlot struct {
	ImageAcquired  Semaphore
	RenderFinished Semaphore
	Fence          Fence
	Command        CommandBuffer

	// pending is set from submit until the fence has been observed signaled.
	pending bool
}

// Pending reports whether the slot has submitted work not yet observed complete.
func (s *FrameSlot) Pending() bool { return s.pending }

// frameSlots is a fixed arena of N slots sharing one command pool. It is not
// thread-safe; only the thread driving the scheduler touches it.
type frameSlots struct {
	drv   Driver
	dev   Device
	pool  CommandPool
	slots []FrameSlot
}

func newFrameSlots(drv Driver, dev Device, family uint32, n int) (_ *frameSlots, err error) {
	fs := &frameSlots{drv: drv, dev: dev, slots: make([]FrameSlot, n)}
	defer func() {
		if err != nil {
			fs.destroy()
		}
	}()

	if fs.pool, err = drv.CreateCommandPool(dev, family); err != nil {
		return nil, errors.Wrap(err, "create command pool")
	}
	cmds, err := drv.AllocateCommandBuffers(dev, fs.pool, uint32(n))
	if err != nil {
		return nil, errors.Wrap(err, "allocate command buffers")
	}
	for i := range fs.slots {
		slot := &fs.slots[i]
		slot.Command = cmds[i]
		if slot.ImageAcquired, err = drv.CreateSemaphore(dev); err != nil {
			return nil, errors.Wrap(err, "create semaphore")
		}
		if slot.RenderFinished, err = drv.CreateSemaphore(dev); err != nil {
			return nil, errors.Wrap(err, "create semaphore")
		}
		// Created signaled so the first wait on every slot returns at once.
		if slot.Fence, err = drv.CreateFence(dev, true); err != nil {
			return nil, errors.Wrap(err, "create fence")
		}
	}
	return fs, nil
}

// wait blocks until the slot's previous submission has completed.
func (fs *frameSlots) wait(slot *FrameSlot) error {
	if err := fs.drv.WaitForFences(fs.dev, []Fence{slot.Fence}, NoTimeout); err != nil {
		return errors.Wrap(err, "wait frame fence")
	}
	slot.pending = false
	return nil
}

// waitAll waits every slot that has outstanding work.
func (fs *frameSlots) waitAll() error {
	var fences []Fence
	for i := range fs.slots {
		if fs.slots[i].pending {
			fences = append(fences, fs.slots[i].Fence)
		}
	}
	if len(fences) == 0 {
		return nil
	}
	if err := fs.drv.WaitForFences(fs.dev, fences, NoTimeout); err != nil {
		return errors.Wrap(err, "wait frame fences")
	}
	for i := range fs.slots {
		fs.slots[i].pending = false
	}
	return nil
}

func (fs *frameSlots) destroy() {
	for i := range fs.slots {
		slot := &fs.slots[i]
		if slot.Fence != 0 {
			fs.drv.DestroyFence(fs.dev, slot.Fence)
		}
		if slot.RenderFinished != 0 {
			fs.drv.DestroySemaphore(fs.dev, slot.RenderFinished)
		}
		if slot.ImageAcquired != 0 {
			fs.drv.DestroySemaphore(fs.dev, slot.ImageAcquired)
		}
		*slot = FrameSlot{}
	}
	// Destroying the pool frees its command buffers.
	if fs.pool != 0 {
		fs.drv.DestroyCommandPool(fs.dev, fs.pool)
		fs.pool = 0
	}
}
