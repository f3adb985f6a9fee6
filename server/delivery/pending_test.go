package delivery

import (
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIdentifierFor(t *testing.T) {
	assert.Equal(t, "dQw4w9WgXcQ_mp4", IdentifierFor("dQw4w9WgXcQ.mp4"))
	assert.Equal(t, "abc_DEF_123_webm", IdentifierFor("abc-DEF_123.webm"))
	assert.Equal(t, "plain", IdentifierFor("plain"))
}

func TestMemoryStorePutTake(t *testing.T) {
	store := NewMemoryStore(time.Hour)

	record := &PendingDelivery{ArtifactPath: "/tmp/a.mp4", Title: "A", CreatedAt: time.Now()}
	require.NoError(t, store.Put("a_mp4", record))

	// the store keeps its own copy
	record.Title = "changed"

	count, err := store.Len()
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	got, err := store.Take("a_mp4")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "A", got.Title)

	again, err := store.Take("a_mp4")
	require.NoError(t, err)
	assert.Nil(t, again)

	missing, err := store.Take("unknown")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestMemoryStoreExpiry(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	store := NewMemoryStore(time.Hour)
	store.now = func() time.Time { return now }

	require.NoError(t, store.Put("old", &PendingDelivery{ArtifactPath: "/tmp/old.mp4", CreatedAt: now.Add(-2 * time.Hour)}))
	require.NoError(t, store.Put("new", &PendingDelivery{ArtifactPath: "/tmp/new.mp4", CreatedAt: now}))

	got, err := store.Take("old")
	require.NoError(t, err)
	assert.Nil(t, got)

	count, err := store.Len()
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	expired, err := store.Sweep(now)
	require.NoError(t, err)
	require.Len(t, expired, 1)
	assert.Equal(t, "/tmp/old.mp4", expired[0].ArtifactPath)

	expired, err = store.Sweep(now)
	require.NoError(t, err)
	assert.Empty(t, expired)

	got, err = store.Take("new")
	require.NoError(t, err)
	assert.NotNil(t, got)
}

func TestMemoryStoreNoExpiry(t *testing.T) {
	store := NewMemoryStore(0)
	require.NoError(t, store.Put("k", &PendingDelivery{CreatedAt: time.Now().Add(-1000 * time.Hour)}))

	expired, err := store.Sweep(time.Now())
	require.NoError(t, err)
	assert.Empty(t, expired)

	got, err := store.Take("k")
	require.NoError(t, err)
	assert.NotNil(t, got)
}

func TestMemoryStoreConcurrentDistinctKeys(t *testing.T) {
	store := NewMemoryStore(time.Hour)

	const workers = 64
	var wg sync.WaitGroup
	var taken atomic.Int32

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			key := fmt.Sprintf("video_%d_mp4", i)
			path := fmt.Sprintf("/tmp/video-%d.mp4", i)

			if err := store.Put(key, &PendingDelivery{ArtifactPath: path, CreatedAt: time.Now()}); err != nil {
				t.Error(err)
				return
			}
			got, err := store.Take(key)
			if err != nil {
				t.Error(err)
				return
			}
			if got != nil && got.ArtifactPath == path {
				taken.Add(1)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(workers), taken.Load())
	count, err := store.Len()
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestMemoryStoreTakeIsExclusive(t *testing.T) {
	store := NewMemoryStore(time.Hour)
	require.NoError(t, store.Put("shared", &PendingDelivery{CreatedAt: time.Now()}))

	var wg sync.WaitGroup
	var winners atomic.Int32
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if got, err := store.Take("shared"); err == nil && got != nil {
				winners.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), winners.Load())
}

func TestLinkBuilder(t *testing.T) {
	b := NewLinkBuilder("https://files.example.com/videos/")
	assert.False(t, b.Degraded())
	assert.Equal(t, "https://files.example.com/videos/abc.mp4", b.For("/data/downloads/abc.mp4"))

	local := NewLinkBuilder("  ")
	assert.True(t, local.Degraded())
	assert.Equal(t, "file:///data/downloads/abc.mp4", local.For("/data/downloads/abc.mp4"))
}
