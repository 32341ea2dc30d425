package main

import (
	"testing"

	"github.com/andewx/grayv"
	"github.com/go-gl/glfw/v3.3/glfw"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyByName(t *testing.T) {
	tests := []struct {
		name string
		want glfw.Key
		ok   bool
	}{
		{"W", glfw.KeyW, true},
		{"w", glfw.KeyW, true},
		{"7", glfw.Key7, true},
		{"SPACE", glfw.KeySpace, true},
		{"left_shift", glfw.KeyLeftShift, true},
		{"F12", glfw.KeyF12, true},
		{"HYPER", glfw.KeyUnknown, false},
		{"", glfw.KeyUnknown, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := keyByName(tt.name)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

// Every name the config accepts has a glfw key.
func TestNamedKeysCoverConfig(t *testing.T) {
	for _, name := range grayv.NamedKeys {
		_, ok := namedKeys[name]
		assert.True(t, ok, name)
	}
}

func TestNewBindings(t *testing.T) {
	b, err := newBindings(grayv.DefaultConfig().Keys)
	require.NoError(t, err)
	assert.Equal(t, glfw.KeyW, b.forward)
	assert.Equal(t, glfw.KeyLeftShift, b.down)
	assert.Equal(t, glfw.KeyR, b.reload)
	assert.Equal(t, glfw.KeyEscape, b.quit)

	keys := grayv.DefaultConfig().Keys
	keys.Quit = "NOPE"
	_, err = newBindings(keys)
	assert.Error(t, err)
}

func TestAxis(t *testing.T) {
	held := map[glfw.Key]bool{glfw.KeyW: true}
	pressed := func(k glfw.Key) bool { return held[k] }
	assert.Equal(t, float32(1), axis(pressed, glfw.KeyW, glfw.KeyS))
	held[glfw.KeyS] = true
	assert.Equal(t, float32(0), axis(pressed, glfw.KeyW, glfw.KeyS))
	held[glfw.KeyW] = false
	assert.Equal(t, float32(-1), axis(pressed, glfw.KeyW, glfw.KeyS))
}
