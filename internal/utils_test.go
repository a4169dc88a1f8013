package internal

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"page-crawler/pkg/models"
)

func TestVisitedSet_TryAdmit(t *testing.T) {
	set := NewVisitedSet()

	assert.True(t, set.TryAdmit("blog.boot.dev/path"))
	assert.False(t, set.TryAdmit("blog.boot.dev/path"))
	assert.True(t, set.TryAdmit("blog.boot.dev/other"))
	assert.True(t, set.Contains("blog.boot.dev/path"))
	assert.False(t, set.Contains("blog.boot.dev"))
	assert.Equal(t, 2, set.Len())
}

func TestVisitedSet_ConcurrentAdmitSameKey(t *testing.T) {
	const callers = 64
	set := NewVisitedSet()

	var admitted atomic.Int32
	var start sync.WaitGroup
	var done sync.WaitGroup
	start.Add(1)
	for i := 0; i < callers; i++ {
		done.Add(1)
		go func() {
			defer done.Done()
			start.Wait()
			if set.TryAdmit("example.com/contested") {
				admitted.Add(1)
			}
		}()
	}
	start.Done()
	done.Wait()

	assert.Equal(t, int32(1), admitted.Load())
	assert.Equal(t, 1, set.Len())
}

func TestVisitedSet_Snapshot(t *testing.T) {
	set := NewVisitedSet()
	set.TryAdmit("b.com")
	set.TryAdmit("a.com/x")
	set.TryAdmit("a.com")

	snap := set.Snapshot()
	require.Len(t, snap, 3)
	assert.Equal(t, []models.NormalizedURL{"a.com", "a.com/x", "b.com"}, snap)
}
