package portsweep

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestResolverCacheRoundTrip(t *testing.T) {
	cache, err := NewResolverCache(time.Minute, zap.NewNop())
	require.NoError(t, err)
	defer cache.Close()

	cache.Set("scanme.example.com", "192.0.2.10")
	cache.Wait()

	assert.Equal(t, "192.0.2.10", cache.Get("scanme.example.com"))
}

func TestResolverCacheMiss(t *testing.T) {
	cache, err := NewResolverCache(time.Minute, zap.NewNop())
	require.NoError(t, err)
	defer cache.Close()

	assert.Equal(t, "", cache.Get("never-stored.example.com"))
}
