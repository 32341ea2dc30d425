package log

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	specs := []struct {
		in  string
		exp Level
	}{
		{"debug", Debug},
		{"INFO", Info},
		{"", Notice},
		{"warn", Warning},
		{" error ", Error},
	}
	for _, s := range specs {
		lvl, err := ParseLevel(s.in)
		require.NoError(t, err, s.in)
		assert.Equal(t, s.exp, lvl, s.in)
	}

	_, err := ParseLevel("loud")
	assert.Error(t, err)
}

func TestSinkAndLevel(t *testing.T) {
	var buf bytes.Buffer
	SetSink(&buf)
	defer SetSink(&bytes.Buffer{})

	logger := New("test")
	SetLevel(Warning)
	logger.Info("hidden")
	logger.Warning("shown")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
	assert.Contains(t, buf.String(), "[test]")
}
