package models_test

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/nbrennan/huesic/internal/models"
)

func Test_Color(t *testing.T) {

	t.Run("xy coordinates land inside the CIE diagram", func(t *testing.T) {
		for _, c := range []models.Color{
			{R: 255, G: 0, B: 0},
			{R: 0, G: 255, B: 0},
			{R: 0, G: 0, B: 255},
			{R: 200, G: 30, B: 30},
			{R: 255, G: 255, B: 255},
		} {
			x, y := c.XY()
			assert.Greater(t, x, 0.0, c.Hex())
			assert.Less(t, x, 1.0, c.Hex())
			assert.Greater(t, y, 0.0, c.Hex())
			assert.Less(t, y, 1.0, c.Hex())
		}
	})

	t.Run("full red and white are full brightness", func(t *testing.T) {
		assert.Equal(t, 100, models.Color{R: 255, G: 0, B: 0}.Brightness())
		assert.Equal(t, 100, models.Color{R: 255, G: 255, B: 255}.Brightness())
	})

	t.Run("brightness never reaches zero", func(t *testing.T) {
		assert.Equal(t, 1, models.Color{R: 0, G: 0, B: 0}.Brightness())
		assert.Equal(t, 1, models.Color{R: 1, G: 1, B: 1}.Brightness())
	})

	t.Run("white is unsaturated, pure red fully saturated", func(t *testing.T) {
		assert.Equal(t, 0.0, models.Color{R: 255, G: 255, B: 255}.Saturation())
		assert.Equal(t, 1.0, models.Color{R: 255, G: 0, B: 0}.Saturation())
	})

	t.Run("hex formatting", func(t *testing.T) {
		assert.Equal(t, "#c81e1e", models.Color{R: 200, G: 30, B: 30}.Hex())
		assert.Equal(t, "#000000", models.Color{}.Hex())
	})
}

func Test_RateLimitError(t *testing.T) {

	t.Run("matches the transient service failure class", func(t *testing.T) {
		err := &models.RateLimitError{RetryAfter: 10 * time.Second}

		assert.ErrorIs(t, err, models.ErrServiceUnavailable)
		assert.NotErrorIs(t, err, models.ErrAuthorizationExpired)
	})

	t.Run("the delay survives wrapping", func(t *testing.T) {
		var rateLimit *models.RateLimitError
		wrapped := errors.Join(errors.New("outer"), &models.RateLimitError{RetryAfter: 10 * time.Second})

		assert.ErrorAs(t, wrapped, &rateLimit)
		assert.Equal(t, 10*time.Second, rateLimit.RetryAfter)
	})
}
