package site

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCacheLoadOutlivesCallerCancellation(t *testing.T) {
	c := newCache(time.Hour, time.Now)
	started := make(chan struct{})
	release := make(chan struct{})
	load := func(ctx context.Context) (interface{}, error) {
		close(started)
		<-release
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return "props", nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	first := make(chan error, 1)
	go func() {
		_, err := c.get(ctx, "home", load)
		first <- err
	}()

	<-started
	cancel()
	close(release)
	require.NoError(t, <-first)

	// a second load would close started twice, so this must be served cached
	value, err := c.get(context.Background(), "home", load)
	require.NoError(t, err)
	assert.Equal(t, "props", value)
}

func TestCacheReloadsAfterTTL(t *testing.T) {
	now := time.Date(2021, 3, 20, 10, 0, 0, 0, time.UTC)
	c := newCache(time.Minute, func() time.Time { return now })
	calls := 0
	load := func(context.Context) (interface{}, error) {
		calls++
		return calls, nil
	}

	value, err := c.get(context.Background(), "feed", load)
	require.NoError(t, err)
	assert.Equal(t, 1, value)

	now = now.Add(30 * time.Second)
	value, _ = c.get(context.Background(), "feed", load)
	assert.Equal(t, 1, value)

	now = now.Add(time.Minute)
	value, _ = c.get(context.Background(), "feed", load)
	assert.Equal(t, 2, value)
}
