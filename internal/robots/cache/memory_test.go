package cache

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMemoryCache_PutGet(t *testing.T) {
	c := NewMemoryCache()

	_, found := c.Get("example.com")
	assert.False(t, found)

	entry := Entry{
		CrawlDelay: time.Second,
		FetchedAt:  time.Now(),
		ExpiresAt:  time.Now().Add(time.Hour),
	}
	c.Put("example.com", entry)

	got, found := c.Get("example.com")
	assert.True(t, found)
	assert.Equal(t, entry.CrawlDelay, got.CrawlDelay)
	assert.Equal(t, 1, c.Size())
}

func TestMemoryCache_Overwrite(t *testing.T) {
	c := NewMemoryCache()
	c.Put("k", Entry{CrawlDelay: time.Second})
	c.Put("k", Entry{CrawlDelay: 2 * time.Second})

	got, _ := c.Get("k")
	assert.Equal(t, 2*time.Second, got.CrawlDelay)
	assert.Equal(t, 1, c.Size())
}

func TestMemoryCache_Delete(t *testing.T) {
	c := NewMemoryCache()
	c.Put("k", Entry{})
	c.Delete("k")

	_, found := c.Get("k")
	assert.False(t, found)
}

func TestEntry_Expired(t *testing.T) {
	now := time.Now()
	entry := Entry{ExpiresAt: now.Add(time.Minute)}

	assert.False(t, entry.Expired(now))
	assert.True(t, entry.Expired(now.Add(2*time.Minute)))
}

func TestMemoryCache_ConcurrentAccess(t *testing.T) {
	c := NewMemoryCache()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(2)
		go func(n int) {
			defer wg.Done()
			c.Put(fmt.Sprintf("host-%d", n), Entry{})
		}(i)
		go func(n int) {
			defer wg.Done()
			c.Get(fmt.Sprintf("host-%d", n))
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 10, c.Size())
}
