package grayv

type queueFamilies struct {
	graphics      uint32
	present       uint32
	graphicsFound bool
	presentFound  bool
}

func (q queueFamilies) separate() bool {
	return q.graphics != q.present
}

// sharing returns the sharing mode and family list for resources used by
// both queues.
func (q queueFamilies) sharing() (SharingMode, []uint32) {
	if q.separate() {
		return SharingConcurrent, []uint32{q.graphics, q.present}
	}
	return SharingExclusive, nil
}

func (q queueFamilies) unique() []uint32 {
	if q.separate() {
		return []uint32{q.graphics, q.present}
	}
	return []uint32{q.graphics}
}

// findQueueFamilies takes the first graphics-capable family. If it can also
// present it serves both roles, otherwise the first present-capable family
// on the adapter becomes the present family.
func findQueueFamilies(drv Driver, info AdapterInfo, surface Surface) (queueFamilies, error) {
	var q queueFamilies
	for _, fam := range info.QueueFamilies {
		if fam.Count == 0 || !fam.Flags.Has(QueueGraphics) {
			continue
		}
		q.graphics, q.graphicsFound = fam.Index, true
		ok, err := drv.SurfaceSupported(info.Handle, fam.Index, surface)
		if err != nil {
			return q, err
		}
		if ok {
			q.present, q.presentFound = fam.Index, true
			return q, nil
		}
		break
	}
	for _, fam := range info.QueueFamilies {
		if fam.Count == 0 {
			continue
		}
		ok, err := drv.SurfaceSupported(info.Handle, fam.Index, surface)
		if err != nil {
			return q, err
		}
		if ok {
			q.present, q.presentFound = fam.Index, true
			break
		}
	}
	return q, nil
}
