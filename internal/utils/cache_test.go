package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCacheSetGet(t *testing.T) {
	c := GetCache()

	c.Set("test:key", "value", time.Minute)
	assert.Equal(t, "value", c.Get("test:key"))

	assert.Nil(t, c.Get("test:missing"))
}

func TestCacheExpiry(t *testing.T) {
	c := GetCache()

	c.Set("test:expired", 42, -time.Second)
	assert.Nil(t, c.Get("test:expired"), "过期条目应视为不存在")
}

func TestCacheDelete(t *testing.T) {
	c := GetCache()

	c.Set("test:doomed", "bye", time.Minute)
	require.NotNil(t, c.Get("test:doomed"))
	c.Delete("test:doomed")
	assert.Nil(t, c.Get("test:doomed"))
}

func TestCacheSingleton(t *testing.T) {
	assert.Same(t, GetCache(), GetCache())
}

func TestCacheOverwrite(t *testing.T) {
	c := GetCache()

	c.Set("test:over", 1, time.Minute)
	c.Set("test:over", 2, time.Minute)
	assert.Equal(t, 2, c.Get("test:over"))
}
