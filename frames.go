package grayv

import (
	"github.com/andewx/grayv/log"
	"github.com/pkg/errors"
)

const (
	DefaultFramesInFlight = 2
	DefaultMaxRebuilds    = 16
)

// FrameRecorder records the commands for one frame into cb, targeting the
// swapchain image at imageIndex.
type FrameRecorder interface {
	RecordFrame(cb CommandBuffer, imageIndex uint32, sc *Swapchain) error
}

// RecorderFunc adapts a function to FrameRecorder.
type RecorderFunc func(cb CommandBuffer, imageIndex uint32, sc *Swapchain) error

func (f RecorderFunc) RecordFrame(cb CommandBuffer, imageIndex uint32, sc *Swapchain) error {
	return f(cb, imageIndex, sc)
}

// FrameStats are counters kept by the scheduler.
type FrameStats struct {
	Presented uint64
	Rebuilds  int
	// Abandoned counts frames dropped after acquire because recording failed.
	Abandoned int
}

// FrameScheduler drives acquire, record, submit and present across N slots.
// A slot's command buffer is only re-recorded after its fence was observed
// signaled.
type FrameScheduler struct {
	session   *Session
	swapchain *SwapchainManager
	slots     *frameSlots
	logger    log.Logger

	index       int
	maxRebuilds int
	stats       FrameStats
	destroyed   bool
}

// NewFrameScheduler allocates n frame slots and registers itself as the
// swapchain's frame waiter.
func NewFrameScheduler(session *Session, swapchain *SwapchainManager, n int) (*FrameScheduler, error) {
	if n < 1 {
		n = DefaultFramesInFlight
	}
	slots, err := newFrameSlots(session.Driver(), session.Device(), session.GraphicsQueueFamilyIndex(), n)
	if err != nil {
		return nil, err
	}
	f := &FrameScheduler{
		session:     session,
		swapchain:   swapchain,
		slots:       slots,
		logger:      log.New("frames"),
		maxRebuilds: DefaultMaxRebuilds,
	}
	swapchain.SetWaiter(f)
	session.acquire()
	return f, nil
}

// SetMaxRebuilds bounds the number of swapchain rebuilds within one DrawFrame.
func (f *FrameScheduler) SetMaxRebuilds(n int) {
	if n > 0 {
		f.maxRebuilds = n
	}
}

// Index is the current logical frame index in [0, N).
func (f *FrameScheduler) Index() int { return f.index }

// FramesInFlight is N.
func (f *FrameScheduler) FramesInFlight() int { return len(f.slots.slots) }

func (f *FrameScheduler) Stats() FrameStats { return f.stats }

// Slot exposes slot i for inspection.
func (f *FrameScheduler) Slot(i int) *FrameSlot { return &f.slots.slots[i] }

// WaitAll blocks until every slot's outstanding work has completed.
func (f *FrameScheduler) WaitAll() error {
	if f.destroyed {
		return nil
	}
	return f.slots.waitAll()
}

func (f *FrameScheduler) rebuild(count *int) error {
	*count++
	if *count > f.maxRebuilds {
		return errors.Wrapf(ErrTooManyRebuilds, "%d rebuilds", *count-1)
	}
	f.stats.Rebuilds++
	return f.swapchain.Rebuild()
}

// DrawFrame runs one frame: wait the slot fence, acquire, record, submit and
// present. An out-of-date surface rebuilds the swapchain and retries the
// same frame without advancing the index. Device or surface loss is returned.
func (f *FrameScheduler) DrawFrame(rec FrameRecorder) error {
	if f.destroyed {
		return ErrDestroyed
	}
	drv := f.session.Driver()
	dev := f.session.Device()
	slot := &f.slots.slots[f.index]

	rebuilds := 0
	for {
		sc := f.swapchain.Current()
		if sc == nil {
			if err := f.rebuild(&rebuilds); err != nil {
				return err
			}
			continue
		}

		if err := f.slots.wait(slot); err != nil {
			return err
		}

		image, res := drv.AcquireNextImage(dev, sc.Handle, NoTimeout, slot.ImageAcquired)
		switch res {
		case Success, Suboptimal:
		case ErrorOutOfDateResult:
			f.logger.Debugf("acquire out of date, frame %d", f.index)
			if err := f.rebuild(&rebuilds); err != nil {
				return err
			}
			continue
		default:
			return errors.Wrap(NewError(res), "acquire")
		}

		if err := drv.ResetCommandBuffer(slot.Command); err != nil {
			return f.abandon(slot, errors.Wrap(err, "reset command buffer"))
		}
		if err := rec.RecordFrame(slot.Command, image, sc); err != nil {
			return f.abandon(slot, errors.Wrap(err, "record frame"))
		}
		// The fence stays signaled until work is certain to be submitted.
		if err := drv.ResetFences(dev, []Fence{slot.Fence}); err != nil {
			return errors.Wrap(err, "reset fence")
		}
		err := drv.QueueSubmit(f.session.GraphicsQueue(), SubmitInfo{
			Wait:           []Semaphore{slot.ImageAcquired},
			CommandBuffers: []CommandBuffer{slot.Command},
			Signal:         []Semaphore{slot.RenderFinished},
		}, slot.Fence)
		if err != nil {
			return errors.Wrap(err, "submit")
		}
		slot.pending = true

		res = drv.QueuePresent(f.session.PresentQueue(), PresentInfo{
			Wait:       []Semaphore{slot.RenderFinished},
			Swapchain:  sc.Handle,
			ImageIndex: image,
		})
		switch res {
		case Success:
			f.advance()
			return nil
		case Suboptimal:
			f.advance()
			f.logger.Debugf("present suboptimal, rebuilding")
			return f.rebuild(&rebuilds)
		case ErrorOutOfDateResult:
			f.logger.Debugf("present out of date, frame %d", f.index)
			if err := f.rebuild(&rebuilds); err != nil {
				return err
			}
		default:
			return errors.Wrap(NewError(res), "present")
		}
	}
}

// abandon drops a frame whose image was acquired but never recorded. An
// empty submit consumes the image-acquired signal so the next acquire on
// this slot starts from an unsignaled semaphore. The image itself returns to
// the swapchain on its next rebuild.
func (f *FrameScheduler) abandon(slot *FrameSlot, cause error) error {
	drv := f.session.Driver()
	if err := drv.ResetFences(f.session.Device(), []Fence{slot.Fence}); err != nil {
		return errors.Wrapf(cause, "reset fence: %v", err)
	}
	err := drv.QueueSubmit(f.session.GraphicsQueue(), SubmitInfo{
		Wait: []Semaphore{slot.ImageAcquired},
	}, slot.Fence)
	if err != nil {
		return errors.Wrapf(cause, "release acquire semaphore: %v", err)
	}
	slot.pending = true
	f.stats.Abandoned++
	return cause
}

func (f *FrameScheduler) advance() {
	f.stats.Presented++
	f.index = (f.index + 1) % len(f.slots.slots)
}

// Destroy waits for outstanding slot work and releases all slots.
func (f *FrameScheduler) Destroy() {
	if f.destroyed {
		return
	}
	if err := f.slots.waitAll(); err != nil {
		f.logger.Warningf("wait frames before destroy: %v", err)
	}
	f.slots.destroy()
	f.swapchain.SetWaiter(nil)
	f.destroyed = true
	f.session.releaseDependent()
}
