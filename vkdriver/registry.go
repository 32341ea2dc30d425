package vkdriver

import "sync"

// registry maps the opaque uint64 handles handed to the core onto the
// vulkan-go objects they stand for. Handle 0 is never issued.
type registry struct {
	mu      sync.Mutex
	next    uint64
	objs    map[uint64]interface{}
	byValue map[interface{}]uint64
	owned   map[uint64][]uint64
}

func newRegistry() *registry {
	return &registry{
		objs:    make(map[uint64]interface{}),
		byValue: make(map[interface{}]uint64),
		owned:   make(map[uint64][]uint64),
	}
}

func (r *registry) put(v interface{}) uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.next++
	r.objs[r.next] = v
	return r.next
}

// intern returns the handle already issued for v, issuing one if needed.
// It is meant for objects the driver never destroys, like physical devices
// and queues, which are reported again on every query.
func (r *registry) intern(v interface{}) uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	if h, ok := r.byValue[v]; ok {
		return h
	}
	r.next++
	r.objs[r.next] = v
	r.byValue[v] = r.next
	return r.next
}

// own records that child is released together with parent.
func (r *registry) own(parent, child uint64) {
	r.mu.Lock()
	r.owned[parent] = append(r.owned[parent], child)
	r.mu.Unlock()
}

// drop forgets h and every handle it owns.
func (r *registry) drop(h uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.dropLocked(h)
}

func (r *registry) dropLocked(h uint64) {
	for _, child := range r.owned[h] {
		r.dropLocked(child)
	}
	delete(r.owned, h)
	if v, ok := r.objs[h]; ok {
		if r.byValue[v] == h {
			delete(r.byValue, v)
		}
		delete(r.objs, h)
	}
}

func (r *registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.objs)
}

// lookup returns the object behind h, or the zero T (the null handle for
// every vulkan-go handle type) when h is unknown or of another type.
func lookup[T any](r *registry, h uint64) T {
	var zero T
	if h == 0 {
		return zero
	}
	r.mu.Lock()
	v, ok := r.objs[h]
	r.mu.Unlock()
	if !ok {
		return zero
	}
	t, ok := v.(T)
	if !ok {
		return zero
	}
	return t
}

func lookupAll[T any, H ~uint64](r *registry, hs []H) []T {
	out := make([]T, len(hs))
	for i, h := range hs {
		out[i] = lookup[T](r, uint64(h))
	}
	return out
}
