package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCalculateHeatZeroInteraction(t *testing.T) {
	heat := CalculateHeat(time.Now(), 0, 0, 0)
	assert.Zero(t, heat, "无互动图书热度为 0")
}

func TestCalculateHeatMoreInteractionHigher(t *testing.T) {
	now := time.Now().Add(-time.Hour)

	quiet := CalculateHeat(now, 1, 1, 3)
	busy := CalculateHeat(now, 50, 100, 4.8)
	assert.Greater(t, busy, quiet)
}

func TestCalculateHeatTimeDecay(t *testing.T) {
	fresh := CalculateHeat(time.Now().Add(-time.Hour), 10, 10, 4)
	stale := CalculateHeat(time.Now().Add(-30*24*time.Hour), 10, 10, 4)
	assert.Greater(t, fresh, stale, "同等互动下新书热度更高")
}

func TestCalculateHeatNonNegative(t *testing.T) {
	heat := CalculateHeat(time.Now(), 0, 0, -1)
	assert.GreaterOrEqual(t, heat, 0.0)
}
