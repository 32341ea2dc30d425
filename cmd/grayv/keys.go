package main

import (
	"strings"

	"github.com/andewx/grayv"
	"github.com/go-gl/glfw/v3.3/glfw"
	"github.com/pkg/errors"
)

var namedKeys = map[string]glfw.Key{
	"SPACE":         glfw.KeySpace,
	"ESCAPE":        glfw.KeyEscape,
	"ENTER":         glfw.KeyEnter,
	"TAB":           glfw.KeyTab,
	"BACKSPACE":     glfw.KeyBackspace,
	"LEFT_SHIFT":    glfw.KeyLeftShift,
	"RIGHT_SHIFT":   glfw.KeyRightShift,
	"LEFT_CONTROL":  glfw.KeyLeftControl,
	"RIGHT_CONTROL": glfw.KeyRightControl,
	"LEFT_ALT":      glfw.KeyLeftAlt,
	"RIGHT_ALT":     glfw.KeyRightAlt,
	"UP":            glfw.KeyUp,
	"DOWN":          glfw.KeyDown,
	"LEFT":          glfw.KeyLeft,
	"RIGHT":         glfw.KeyRight,
	"PAGE_UP":       glfw.KeyPageUp,
	"PAGE_DOWN":     glfw.KeyPageDown,
	"HOME":          glfw.KeyHome,
	"END":           glfw.KeyEnd,
	"F1":            glfw.KeyF1,
	"F2":            glfw.KeyF2,
	"F3":            glfw.KeyF3,
	"F4":            glfw.KeyF4,
	"F5":            glfw.KeyF5,
	"F6":            glfw.KeyF6,
	"F7":            glfw.KeyF7,
	"F8":            glfw.KeyF8,
	"F9":            glfw.KeyF9,
	"F10":           glfw.KeyF10,
	"F11":           glfw.KeyF11,
	"F12":           glfw.KeyF12,
}

// keyByName maps a configured key name onto a glfw key. Letters and digits
// share their ASCII code with the glfw key.
func keyByName(name string) (glfw.Key, bool) {
	name = strings.ToUpper(name)
	if !grayv.ValidKeyName(name) {
		return glfw.KeyUnknown, false
	}
	if len(name) == 1 {
		return glfw.Key(name[0]), true
	}
	k, ok := namedKeys[name]
	return k, ok
}

type bindings struct {
	forward, backward   glfw.Key
	left, right         glfw.Key
	up, down            glfw.Key
	rollLeft, rollRight glfw.Key
	reload, quit        glfw.Key
}

func newBindings(k grayv.KeyConfig) (bindings, error) {
	var b bindings
	for _, bind := range []struct {
		name string
		dst  *glfw.Key
	}{
		{k.Forward, &b.forward},
		{k.Backward, &b.backward},
		{k.Left, &b.left},
		{k.Right, &b.right},
		{k.Up, &b.up},
		{k.Down, &b.down},
		{k.RollLeft, &b.rollLeft},
		{k.RollRight, &b.rollRight},
		{k.Reload, &b.reload},
		{k.Quit, &b.quit},
	} {
		key, ok := keyByName(bind.name)
		if !ok {
			return b, errors.Errorf("unknown key %q", bind.name)
		}
		*bind.dst = key
	}
	return b, nil
}

// axis is +1 while pos is held, -1 while neg is held and 0 otherwise.
func axis(pressed func(glfw.Key) bool, pos, neg glfw.Key) float32 {
	var v float32
	if pressed(pos) {
		v++
	}
	if pressed(neg) {
		v--
	}
	return v
}
