package circuitbreaker_test

import (
	"errors"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"devto-news/internal/resilience/circuitbreaker"
)

func trippableConfig() circuitbreaker.Config {
	return circuitbreaker.Config{
		Name:             "test",
		MaxRequests:      1,
		Interval:         time.Minute,
		Timeout:          time.Minute,
		FailureThreshold: 0.5,
		MinRequests:      2,
	}
}

func TestExecute_PassesThroughResult(t *testing.T) {
	cb := circuitbreaker.New(circuitbreaker.DefaultConfig("test"))

	got, err := cb.Execute(func() (any, error) {
		return "articles", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "articles", got)
	assert.Equal(t, gobreaker.StateClosed, cb.State())
}

func TestExecute_PropagatesError(t *testing.T) {
	cb := circuitbreaker.New(circuitbreaker.DefaultConfig("test"))
	boom := errors.New("upstream down")

	_, err := cb.Execute(func() (any, error) {
		return nil, boom
	})
	assert.ErrorIs(t, err, boom)
}

func TestExecute_TripsAfterFailureThreshold(t *testing.T) {
	cb := circuitbreaker.New(trippableConfig())

	for i := 0; i < 2; i++ {
		_, _ = cb.Execute(func() (any, error) {
			return nil, errors.New("upstream down")
		})
	}

	require.True(t, cb.IsOpen())

	calls := 0
	_, err := cb.Execute(func() (any, error) {
		calls++
		return nil, nil
	})
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Zero(t, calls)
}

func TestFeedFetchConfig(t *testing.T) {
	cfg := circuitbreaker.FeedFetchConfig()
	assert.Equal(t, "feed-fetch", cfg.Name)
	assert.Equal(t, "feed-fetch", circuitbreaker.New(cfg).Name())
}
