package hashutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSum(t *testing.T) {
	// BLAKE3 of the empty input
	assert.Equal(t, "af1349b9f5f9a1a6a0404dea36dcc9499bcb25c9adc112b7cc9a93cae41f3262", Sum(nil))
	assert.Len(t, Sum([]byte("texture")), 64)
	assert.NotEqual(t, Sum([]byte("a")), Sum([]byte("b")))
}
