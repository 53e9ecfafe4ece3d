package services_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"food-whatsapp/db"
	"food-whatsapp/models"
	"food-whatsapp/services"
)

func TestCustomerDirectoryFindOrCreate(t *testing.T) {
	ctx := context.Background()
	dir := services.NewCustomerDirectory(db.NewMemory())

	c, err := dir.FindOrCreate(ctx, "919800000001")
	require.NoError(t, err)
	assert.Equal(t, models.PlaceholderName, c.Name)
	assert.False(t, c.ProfileComplete)
	assert.False(t, c.HasName())
	first := c.LastSeen

	c, err = dir.FindOrCreate(ctx, "919800000001")
	require.NoError(t, err)
	assert.False(t, c.LastSeen.Before(first))

	recent, err := dir.Recent(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, recent, 1)
}

func TestCustomerDirectoryUpdateProfile(t *testing.T) {
	ctx := context.Background()
	dir := services.NewCustomerDirectory(db.NewMemory())
	_, err := dir.FindOrCreate(ctx, "911")
	require.NoError(t, err)

	name := "  Ravi  "
	c, err := dir.UpdateProfile(ctx, "911", models.ProfileUpdate{Name: &name})
	require.NoError(t, err)
	assert.Equal(t, "Ravi", c.Name)
	assert.False(t, c.ProfileComplete)

	addr := "4 Park Street"
	c, err = dir.UpdateProfile(ctx, "911", models.ProfileUpdate{Address: &addr, Location: &models.GeoPoint{Lat: 1, Lon: 2}})
	require.NoError(t, err)
	assert.True(t, c.ProfileComplete)
	require.NotNil(t, c.Location)
	assert.Equal(t, 2.0, c.Location.Lon)

	_, err = dir.UpdateProfile(ctx, "nobody", models.ProfileUpdate{Name: &name})
	assert.ErrorIs(t, err, models.ErrNotFound)
}
