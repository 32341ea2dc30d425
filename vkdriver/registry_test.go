package vkdriver

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeObj struct{ name string }

func TestRegistryPutLookup(t *testing.T) {
	r := newRegistry()
	a := &fakeObj{"a"}
	h := r.put(a)
	require.NotZero(t, h)

	assert.Same(t, a, lookup[*fakeObj](r, h))
	assert.Nil(t, lookup[*fakeObj](r, 0), "handle 0 is null")
	assert.Nil(t, lookup[*fakeObj](r, h+100))
	assert.Equal(t, "", lookup[string](r, h), "wrong type yields the zero value")
	assert.Equal(t, 1, r.Len())
}

func TestRegistryIntern(t *testing.T) {
	r := newRegistry()
	a := &fakeObj{"gpu"}
	h1 := r.intern(a)
	h2 := r.intern(a)
	assert.Equal(t, h1, h2)
	assert.NotEqual(t, h1, r.intern(&fakeObj{"gpu"}))

	r.drop(h1)
	h3 := r.intern(a)
	assert.NotEqual(t, h1, h3, "a dropped value gets a fresh handle")
}

func TestRegistryDropOwned(t *testing.T) {
	r := newRegistry()
	pool := r.put(&fakeObj{"pool"})
	var buffers []uint64
	for i := 0; i < 3; i++ {
		cb := r.put(&fakeObj{"cb"})
		r.own(pool, cb)
		buffers = append(buffers, cb)
	}
	other := r.put(&fakeObj{"other"})
	require.Equal(t, 5, r.Len())

	r.drop(pool)
	assert.Equal(t, 1, r.Len())
	for _, cb := range buffers {
		assert.Nil(t, lookup[*fakeObj](r, cb))
	}
	assert.NotNil(t, lookup[*fakeObj](r, other))

	r.drop(pool)
	assert.Equal(t, 1, r.Len())
}

func TestLookupAll(t *testing.T) {
	type handle uint64
	r := newRegistry()
	a, b := &fakeObj{"a"}, &fakeObj{"b"}
	hs := []handle{handle(r.put(a)), 0, handle(r.put(b))}

	got := lookupAll[*fakeObj](r, hs)
	require.Len(t, got, 3)
	assert.Same(t, a, got[0])
	assert.Nil(t, got[1])
	assert.Same(t, b, got[2])
}

func TestSafeStrings(t *testing.T) {
	assert.Equal(t, "main\x00", safeString("main"))
	assert.Equal(t, "main\x00", safeString("main\x00"))
	assert.Equal(t, "\x00", safeString(""))
	assert.Equal(t, []string{"VK_KHR_surface\x00", "VK_KHR_swapchain\x00"},
		safeStrings([]string{"VK_KHR_surface", "VK_KHR_swapchain\x00"}))
}
