package grayv

import (
	"encoding/binary"
	"math"
)

// FrameConstantsSize is the size of the fragment push-constant block.
const FrameConstantsSize = 64

// FrameConstants is the per-frame push-constant block read by the screen
// fragment shader. Layout matches std430: four vec4.
//
//	layout(push_constant) uniform Frame {
//	    vec4 position; // xyz, w unused
//	    vec4 direction;
//	    vec4 up;
//	    vec4 params;   // fov radians, aspect, time seconds, unused
//	};
type FrameConstants struct {
	Position  [3]float32
	Direction [3]float32
	Up        [3]float32
	FOV       float32
	Aspect    float32
	Time      float32
}

// Bytes encodes the block little-endian.
func (c FrameConstants) Bytes() []byte {
	buf := make([]byte, FrameConstantsSize)
	put := func(i int, v float32) {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	for i := 0; i < 3; i++ {
		put(i, c.Position[i])
		put(4+i, c.Direction[i])
		put(8+i, c.Up[i])
	}
	put(12, c.FOV)
	put(13, c.Aspect)
	put(14, c.Time)
	return buf
}
