package event

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatBytes(t *testing.T) {
	assert.Equal(t, "0 B", FormatBytes(0))
	assert.Equal(t, "0 B", FormatBytes(-1))
	assert.Equal(t, "512 B", FormatBytes(512))
	assert.Equal(t, "1.0 KiB", FormatBytes(1024))
	assert.Equal(t, "10 MiB", FormatBytes(10*1024*1024))
}

func TestFormatSpeed(t *testing.T) {
	assert.Equal(t, "---", FormatSpeed(0))
	assert.Equal(t, "---", FormatSpeed(-5))
	assert.Equal(t, "2.0 MiB/s", FormatSpeed(2*1024*1024))
}

func TestFormatFraction(t *testing.T) {
	assert.Equal(t, "0.0%", FormatFraction(-0.5))
	assert.Equal(t, "42.0%", FormatFraction(0.42))
	assert.Equal(t, "100.0%", FormatFraction(1.7))
}
