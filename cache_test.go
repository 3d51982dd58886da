package campuscms

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eringen/campuscms/homecontent"
)

type countingLoader struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (l *countingLoader) Load(context.Context) (homecontent.Aggregate, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls++
	if l.err != nil {
		return homecontent.Aggregate{}, l.err
	}
	agg := homecontent.New()
	agg.Version = int64(l.calls)
	return agg, nil
}

func TestContentCacheServesFromMemory(t *testing.T) {
	l := &countingLoader{}
	c := NewContentCache(l, time.Minute)

	for i := 0; i < 3; i++ {
		agg, err := c.Get(context.Background())
		require.NoError(t, err)
		assert.EqualValues(t, 1, agg.Version)
	}
	assert.Equal(t, 1, l.calls)
}

func TestContentCacheInvalidate(t *testing.T) {
	l := &countingLoader{}
	c := NewContentCache(l, time.Minute)

	_, err := c.Get(context.Background())
	require.NoError(t, err)
	c.Invalidate()
	agg, err := c.Get(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 2, agg.Version)
}

func TestContentCacheExpires(t *testing.T) {
	l := &countingLoader{}
	c := NewContentCache(l, time.Nanosecond)

	_, _ = c.Get(context.Background())
	time.Sleep(time.Millisecond)
	_, _ = c.Get(context.Background())
	assert.Equal(t, 2, l.calls)
}

func TestContentCacheDoesNotKeepErrors(t *testing.T) {
	l := &countingLoader{err: errors.New("db down")}
	c := NewContentCache(l, time.Minute)

	_, err := c.Get(context.Background())
	require.Error(t, err)

	l.err = nil
	agg, err := c.Get(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 2, agg.Version)
}

func TestContentCacheConcurrentGet(t *testing.T) {
	l := &countingLoader{}
	c := NewContentCache(l, time.Minute)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = c.Get(context.Background())
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, l.calls)
}
