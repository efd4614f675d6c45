package cache

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSetAndGet(t *testing.T) {
	c := New()

	c.Set("key1", "value1", 10*time.Second)
	val, exists := c.Get("key1")
	assert.True(t, exists)
	assert.Equal(t, "value1", val)

	val, exists = c.Get("nonexistent")
	assert.False(t, exists)
	assert.Nil(t, val)
}

func TestExpiration(t *testing.T) {
	c := New()

	c.Set("short", "v", 10*time.Millisecond)
	time.Sleep(20 * time.Millisecond)

	_, exists := c.Get("short")
	assert.False(t, exists)
}

func TestDelete(t *testing.T) {
	c := New()

	c.Set("key", 42, time.Minute)
	c.Delete("key")

	_, exists := c.Get("key")
	assert.False(t, exists)
}

func TestClear(t *testing.T) {
	c := New()

	c.Set("a", 1, time.Minute)
	c.Set("b", 2, time.Minute)
	c.Clear()

	_, exists := c.Get("a")
	assert.False(t, exists)
	_, exists = c.Get("b")
	assert.False(t, exists)
}

func TestOverwrite(t *testing.T) {
	c := New()

	c.Set("key", "old", time.Minute)
	c.Set("key", "new", time.Minute)

	val, exists := c.Get("key")
	assert.True(t, exists)
	assert.Equal(t, "new", val)
}

func TestConcurrentAccess(t *testing.T) {
	c := New()
	var wg sync.WaitGroup

	for i := 0; i < 10; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			c.Set("shared", 1, time.Minute)
		}()
		go func() {
			defer wg.Done()
			c.Get("shared")
		}()
	}
	wg.Wait()

	_, exists := c.Get("shared")
	assert.True(t, exists)
}
