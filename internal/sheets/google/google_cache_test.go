package google

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestRowCacheServesFreshCount(t *testing.T) {
	c := &Client{cacheValidDuration: time.Minute}
	c.storeRowCount("2024 Transactions", 10)

	// svc is nil: a cache miss would panic, so a fresh entry must be served.
	n, err := c.rowCount(context.Background(), "2024 Transactions")
	if err != nil || n != 10 {
		t.Fatalf("rowCount = %d, %v; want 10", n, err)
	}
}

func TestRowCacheExpiration(t *testing.T) {
	c := &Client{cacheValidDuration: 50 * time.Millisecond}
	c.storeRowCount("2024 Transactions", 3)

	c.mu.Lock()
	valid := time.Now().Before(c.cacheExpiresAt)
	c.mu.Unlock()
	if !valid {
		t.Fatal("cache should be valid right after a store")
	}

	time.Sleep(75 * time.Millisecond)

	c.mu.Lock()
	valid = time.Now().Before(c.cacheExpiresAt)
	c.mu.Unlock()
	if valid {
		t.Error("cache should be expired after TTL")
	}
}

func TestInvalidateRowCache(t *testing.T) {
	c := &Client{cacheValidDuration: 10 * time.Minute}
	c.storeRowCount("2024 Transactions", 42)

	c.InvalidateRowCache()

	c.mu.Lock()
	defer c.mu.Unlock()
	if time.Now().Before(c.cacheExpiresAt) {
		t.Error("cache should be expired after invalidation")
	}
}

func TestCacheInitialState(t *testing.T) {
	c := &Client{cacheValidDuration: 2 * time.Minute}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cachedRowCount != 0 || c.cacheSheet != "" {
		t.Errorf("unexpected initial cache %q/%d", c.cacheSheet, c.cachedRowCount)
	}
	if time.Now().Before(c.cacheExpiresAt) {
		t.Error("initial cache should be expired")
	}
}

func TestCacheMutexProtection(t *testing.T) {
	c := &Client{cacheValidDuration: 2 * time.Minute}

	var wg sync.WaitGroup
	wg.Add(3)
	go func() {
		defer wg.Done()
		for i := 0; i < 100; i++ {
			c.storeRowCount("2024 Transactions", i)
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 100; i++ {
			c.mu.Lock()
			_ = c.cachedRowCount
			c.mu.Unlock()
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 50; i++ {
			c.InvalidateRowCache()
		}
	}()
	wg.Wait()
}
