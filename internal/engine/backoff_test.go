package engine_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/nbrennan/huesic/internal/engine"
)

func Test_Backoff(t *testing.T) {

	t.Run("doubles until the cap and then holds steady", func(t *testing.T) {
		b := engine.NewBackoff(2*time.Second, 60*time.Second)

		expected := []time.Duration{
			2 * time.Second,
			4 * time.Second,
			8 * time.Second,
			16 * time.Second,
			32 * time.Second,
			60 * time.Second,
			60 * time.Second,
			60 * time.Second,
		}
		for _, want := range expected {
			assert.Equal(t, want, b.Next())
		}
	})

	t.Run("reset starts the sequence over", func(t *testing.T) {
		b := engine.NewBackoff(2*time.Second, 60*time.Second)

		b.Next()
		b.Next()
		b.Reset()

		assert.Equal(t, 2*time.Second, b.Next())
	})
}
