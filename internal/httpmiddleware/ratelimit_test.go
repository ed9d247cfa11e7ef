package httpmiddleware

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTokenBucketExhausts(t *testing.T) {
	l := NewSimpleTokenBucket(3, 3)
	for i := 0; i < 3; i++ {
		assert.True(t, l.allow("1.2.3.4"), "request %d within capacity", i)
	}
	assert.False(t, l.allow("1.2.3.4"))
}

func TestTokenBucketPerKey(t *testing.T) {
	l := NewSimpleTokenBucket(1, 1)
	assert.True(t, l.allow("1.2.3.4"))
	assert.False(t, l.allow("1.2.3.4"))
	assert.True(t, l.allow("5.6.7.8"), "keys are limited independently")
}

func TestZeroCapacityDefaultsToRate(t *testing.T) {
	l := NewSimpleTokenBucket(0, 2)
	assert.True(t, l.allow("k"))
	assert.True(t, l.allow("k"))
	assert.False(t, l.allow("k"))
}
