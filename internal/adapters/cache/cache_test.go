package cache

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"compliancesync/internal/domain"
)

func TestMemory_TTL(t *testing.T) {
	ctx := context.Background()
	clock := clockwork.NewFakeClock()
	c := NewMemory(clock)
	res := domain.JurisdictionResult{JurisdictionID: "us", ComplianceScore: 82}

	require.NoError(t, c.Set(ctx, "k", res, time.Hour))
	got, found, err := c.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, res, got)

	clock.Advance(59 * time.Minute)
	_, found, _ = c.Get(ctx, "k")
	assert.True(t, found)

	clock.Advance(time.Minute)
	_, found, _ = c.Get(ctx, "k")
	assert.False(t, found)
}

func TestMemory_NoTTLAndPurge(t *testing.T) {
	ctx := context.Background()
	clock := clockwork.NewFakeClock()
	c := NewMemory(clock)
	require.NoError(t, c.Set(ctx, "k", domain.JurisdictionResult{}, 0))
	clock.Advance(1000 * time.Hour)
	_, found, _ := c.Get(ctx, "k")
	assert.True(t, found)

	c.Purge()
	_, found, _ = c.Get(ctx, "k")
	assert.False(t, found)
}

func TestRedis_RoundTrip(t *testing.T) {
	url := os.Getenv("TEST_REDIS_URL")
	if url == "" {
		t.Skip("TEST_REDIS_URL not set")
	}
	ctx := context.Background()
	c, err := NewRedis(ctx, url)
	require.NoError(t, err)
	defer c.Close()

	key := "test:" + time.Now().Format(time.RFC3339Nano)
	_, found, err := c.Get(ctx, key)
	require.NoError(t, err)
	assert.False(t, found)

	res := domain.JurisdictionResult{JurisdictionID: "eu", ComplianceScore: 55, Status: domain.StatusPartial}
	require.NoError(t, c.Set(ctx, key, res, time.Minute))
	got, found, err := c.Get(ctx, key)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, res.ComplianceScore, got.ComplianceScore)
	assert.Equal(t, res.Status, got.Status)
}
