package cache

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/legalscan/internal/model"
)

func TestKey(t *testing.T) {
	a := ReportKey("a1b2")
	assert.True(t, strings.HasPrefix(a, "legalscan:v1:report:"))
	assert.Equal(t, a, ReportKey("a1b2"))
	assert.NotEqual(t, a, ReportKey("a1b3"))
	assert.NotEqual(t, a, Key("url", "a1b2"))
}

func TestNew(t *testing.T) {
	assert.Nil(t, New(model.CacheConfig{Enabled: false}))
	assert.IsType(t, &MemoryCache{}, New(model.CacheConfig{Enabled: true, MemoryTTL: time.Minute}))
	assert.IsType(t, &LayeredCache{}, New(model.CacheConfig{Enabled: true, Dir: t.TempDir()}))
}

func TestMemoryCache(t *testing.T) {
	c := NewMemoryCache(time.Minute, time.Minute)

	value := []byte("report")
	require.NoError(t, c.Set("k", value, 0))
	value[0] = 'X'

	got, ok := c.Get("k")
	require.True(t, ok)
	assert.Equal(t, "report", string(got))

	// Mutating a returned value leaves the cached copy intact
	got[0] = 'Y'
	again, ok := c.Get("k")
	require.True(t, ok)
	assert.Equal(t, "report", string(again))

	require.NoError(t, c.Set("short", []byte("v"), time.Millisecond))
	time.Sleep(5 * time.Millisecond)
	_, ok = c.Get("short")
	assert.False(t, ok)
	assert.Equal(t, 1, c.Len())

	require.NoError(t, c.Delete("k"))
	_, ok = c.Get("k")
	assert.False(t, ok)

	require.NoError(t, c.Set("a", []byte("1"), 0))
	require.NoError(t, c.Clear())
	assert.Equal(t, 0, c.Len())
}

func TestDiskCache(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "cache")
	c := NewDiskCache(dir, time.Hour)
	key := ReportKey("abc")

	_, ok := c.Get(key)
	assert.False(t, ok)

	require.NoError(t, c.Set(key, []byte(`{"id":"abc"}`), 0))
	got, ok := c.Get(key)
	require.True(t, ok)
	assert.Equal(t, `{"id":"abc"}`, string(got))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.NotContains(t, entries[0].Name(), ":")

	require.NoError(t, c.Set("expired", []byte("v"), -time.Second))
	_, ok = c.Get("expired")
	assert.False(t, ok)

	require.NoError(t, os.WriteFile(c.path("corrupt"), []byte("{"), 0o644))
	_, ok = c.Get("corrupt")
	assert.False(t, ok)
	_, err = os.Stat(c.path("corrupt"))
	assert.True(t, os.IsNotExist(err))

	require.NoError(t, c.Delete(key))
	require.NoError(t, c.Delete(key))
	_, ok = c.Get(key)
	assert.False(t, ok)

	require.NoError(t, c.Clear())
	_, err = os.Stat(dir)
	assert.True(t, os.IsNotExist(err))
}

func TestLayeredCache(t *testing.T) {
	dir := t.TempDir()
	c := NewLayeredCache(time.Minute, dir, time.Hour)

	require.NoError(t, c.Set("k", []byte("v"), 0))
	got, ok := c.Get("k")
	require.True(t, ok)
	assert.Equal(t, "v", string(got))

	// A fresh layered cache over the same directory promotes disk hits
	other := NewLayeredCache(time.Minute, dir, time.Hour)
	got, ok = other.Get("k")
	require.True(t, ok)
	assert.Equal(t, "v", string(got))
	got, ok = other.memory.Get("k")
	require.True(t, ok)
	assert.Equal(t, "v", string(got))

	require.NoError(t, other.Delete("k"))
	_, ok = other.Get("k")
	assert.False(t, ok)

	require.NoError(t, c.Clear())
}
