package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/renthive/renthive-backend/internal/booking"
	"github.com/renthive/renthive-backend/internal/models"
)

func TestAvailabilityCache(t *testing.T) {
	cache := NewAvailabilityCache(time.Minute)
	defer cache.Stop()

	loads := 0
	load := func() ([]booking.BookedRange, error) {
		loads++
		return []booking.BookedRange{{Status: models.ApplicationStatusPending}}, nil
	}

	got, err := cache.Get(models.ListingKindBike, 3, load)
	require.NoError(t, err)
	assert.Len(t, got, 1)
	_, err = cache.Get(models.ListingKindBike, 3, load)
	require.NoError(t, err)
	assert.Equal(t, 1, loads)

	// Same id under the other kind is a different listing.
	_, err = cache.Get(models.ListingKindProperty, 3, load)
	require.NoError(t, err)
	assert.Equal(t, 2, loads)

	cache.Notify(context.Background(), booking.Event{
		Type:    booking.EventApplicationSubmitted,
		Listing: models.ListingRef{Kind: models.ListingKindBike, ID: 3},
	})
	_, err = cache.Get(models.ListingKindBike, 3, load)
	require.NoError(t, err)
	assert.Equal(t, 3, loads)
}

func TestAvailabilityCacheDropsLoadRacingInvalidation(t *testing.T) {
	cache := NewAvailabilityCache(time.Minute)
	defer cache.Stop()

	// The first load reads the calendar, then a booking commits and
	// invalidates before the result reaches the cache.
	stale := func() ([]booking.BookedRange, error) {
		ranges := []booking.BookedRange{}
		cache.Invalidate(models.ListingKindProperty, 7)
		return ranges, nil
	}
	got, err := cache.Get(models.ListingKindProperty, 7, stale)
	require.NoError(t, err)
	assert.Empty(t, got)

	fresh := func() ([]booking.BookedRange, error) {
		return []booking.BookedRange{{Status: models.ApplicationStatusPending}}, nil
	}
	got, err = cache.Get(models.ListingKindProperty, 7, fresh)
	require.NoError(t, err)
	assert.Len(t, got, 1)

	// Without an interleaved invalidation the result stays cached.
	got, err = cache.Get(models.ListingKindProperty, 7, stale)
	require.NoError(t, err)
	assert.Len(t, got, 1)
}
