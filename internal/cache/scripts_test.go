package cache

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gosight/gosight/scriptgen/internal/config"
)

func TestKey(t *testing.T) {
	body := []byte(`[{"type":2}]`)

	k := Key(body, "playwright", "login")
	assert.True(t, strings.HasPrefix(k, "script:playwright:"))
	assert.Len(t, strings.TrimPrefix(k, "script:playwright:"), 64)

	assert.Equal(t, k, Key(body, "playwright", "login"))
	assert.NotEqual(t, k, Key(body, "python", "login"))
	assert.NotEqual(t, k, Key(body, "playwright", "checkout"))
	assert.NotEqual(t, k, Key([]byte(`[{"type":3}]`), "playwright", "login"))
}

func TestKey_TestNameBoundary(t *testing.T) {
	// body and test name are separated so shifting bytes between them
	// changes the key
	assert.NotEqual(t, Key([]byte("ab"), "fragment", "c"), Key([]byte("a"), "fragment", "bc"))
}

func TestScriptCache_DisabledWithoutAddr(t *testing.T) {
	c := NewScriptCache(config.RedisConfig{}, time.Minute)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k", &Entry{Script: "x"}))

	entry, ok := c.Get(ctx, "k")
	assert.False(t, ok)
	assert.Nil(t, entry)

	assert.NoError(t, c.Close())
}

func TestScriptCache_RoundTripAndTTL(t *testing.T) {
	mr := miniredis.RunT(t)
	c := NewScriptCache(config.RedisConfig{Addr: mr.Addr()}, time.Minute)
	defer c.Close()
	ctx := context.Background()

	_, ok := c.Get(ctx, "script:fragment:abc")
	assert.False(t, ok)

	in := &Entry{ConversionID: "c1", Script: "await page.goto();", Target: "fragment", ActionCount: 2, Warnings: []string{"w"}}
	require.NoError(t, c.Set(ctx, "script:fragment:abc", in))

	out, ok := c.Get(ctx, "script:fragment:abc")
	require.True(t, ok)
	assert.Equal(t, in, out)

	mr.FastForward(2 * time.Minute)
	_, ok = c.Get(ctx, "script:fragment:abc")
	assert.False(t, ok)
}

func TestScriptCache_CorruptEntryIsDropped(t *testing.T) {
	mr := miniredis.RunT(t)
	c := NewScriptCache(config.RedisConfig{Addr: mr.Addr()}, time.Minute)
	defer c.Close()

	require.NoError(t, mr.Set("script:python:x", "{not json"))

	_, ok := c.Get(context.Background(), "script:python:x")
	assert.False(t, ok)
	assert.False(t, mr.Exists("script:python:x"))
}
