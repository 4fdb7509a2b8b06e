package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHaversineDistance(t *testing.T) {
	// Nairobi CBD to the airport, about 13 km
	d := HaversineDistance(-1.2864, 36.8172, -1.3192, 36.9278)
	assert.InDelta(t, 12.8, d, 1.0)

	assert.Zero(t, HaversineDistance(-1.2864, 36.8172, -1.2864, 36.8172))
}

func TestBoundingBox(t *testing.T) {
	box := GetBoundingBox(-1.2864, 36.8172, 5)

	assert.True(t, box.Contains(-1.2864, 36.8172))
	assert.True(t, box.Contains(-1.30, 36.83))
	assert.False(t, box.Contains(-1.3192, 36.9278))

	assert.True(t, IsWithinRadius(-1.2864, 36.8172, -1.30, 36.83, 5))
	assert.False(t, IsWithinRadius(-1.2864, 36.8172, -1.3192, 36.9278, 5))
}
