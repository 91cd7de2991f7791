package api

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/commission-engine/commission"
)

func TestSessionRegistry_OpenGetClose(t *testing.T) {
	r := NewSessionRegistry()

	s := r.Open(commission.MustParseDate("2025-02-15"))

	got, err := r.Get(s.ID)
	require.NoError(t, err)
	assert.Same(t, s, got)

	require.NoError(t, r.Close(s.ID))
	_, err = r.Get(s.ID)
	assert.True(t, errors.Is(err, commission.ErrSessionNotFound))
	assert.True(t, errors.Is(r.Close(s.ID), commission.ErrSessionNotFound))
}

func TestSessionRegistry_ListOldestFirst(t *testing.T) {
	r := NewSessionRegistry()
	clock := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	r.now = func() time.Time {
		clock = clock.Add(time.Minute)
		return clock
	}

	first := r.Open(commission.Date{})
	second := r.Open(commission.Date{})

	list := r.List()
	require.Len(t, list, 2)
	assert.Equal(t, first.ID, list[0].ID)
	assert.Equal(t, second.ID, list[1].ID)
}

func TestSessionRegistry_ConcurrentOpen(t *testing.T) {
	r := NewSessionRegistry()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s := r.Open(commission.Date{})
			s.Add(commission.StatementLine{PolicyNumber: "POL-1"})
		}()
	}
	wg.Wait()

	assert.Len(t, r.List(), 50)
}

func TestSessionRegistry_ClaimRelease(t *testing.T) {
	r := NewSessionRegistry()
	s := r.Open(commission.Date{})

	claimed, err := r.Claim(s.ID)
	require.NoError(t, err)
	assert.Same(t, s, claimed)

	// A second claim finds nothing until the first is released.
	_, err = r.Claim(s.ID)
	assert.True(t, errors.Is(err, commission.ErrSessionNotFound))

	r.Release(claimed)
	got, err := r.Get(s.ID)
	require.NoError(t, err)
	assert.Same(t, s, got)
}
