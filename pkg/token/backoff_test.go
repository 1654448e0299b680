package token_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/netpie/microgear-go/pkg/token"
)

// TestBackoffDoublesUpToCeiling: consecutive pending outcomes double the
// delay until the ceiling, which then repeats.
func TestBackoffDoublesUpToCeiling(t *testing.T) {
	b := token.NewBackoff(100*time.Millisecond, 30*time.Second)

	expected := []time.Duration{
		100 * time.Millisecond,
		200 * time.Millisecond,
		400 * time.Millisecond,
		800 * time.Millisecond,
	}
	for _, want := range expected {
		assert.Equal(t, want, b.Next())
	}

	var last time.Duration
	for i := 0; i < 16; i++ {
		last = b.Next()
		assert.LessOrEqual(t, last, 30*time.Second)
	}
	assert.Equal(t, 30*time.Second, last)
	assert.Equal(t, 30*time.Second, b.Next())
}

// TestBackoffResetReturnsToMinimum: any handshake progress snaps the delay
// back to the minimum.
func TestBackoffResetReturnsToMinimum(t *testing.T) {
	b := token.NewBackoff(100*time.Millisecond, 30*time.Second)

	b.Next()
	b.Next()
	b.Next()
	b.Reset()

	assert.Equal(t, 100*time.Millisecond, b.Next())
	assert.Equal(t, 200*time.Millisecond, b.Next())
}

func TestBackoffDefaultsForInvalidBounds(t *testing.T) {
	b := token.NewBackoff(0, 0)
	assert.Equal(t, 100*time.Millisecond, b.Next())
}
