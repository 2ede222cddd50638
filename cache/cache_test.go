package cache

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock is a manually advanced clock for expiry tests.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	f.now = f.now.Add(d)
	f.mu.Unlock()
}

func TestSetThenGet(t *testing.T) {
	c := New(0)
	c.Set("k", []byte(`{"a":1}`), time.Minute)

	got, ok := c.Get("k")
	require.True(t, ok)
	assert.Equal(t, `{"a":1}`, string(got))
}

func TestGet_Missing(t *testing.T) {
	c := New(0)
	got, ok := c.Get("nope")
	assert.False(t, ok)
	assert.Nil(t, got)
}

func TestGet_ExpiresAndEvicts(t *testing.T) {
	clock := newFakeClock()
	c := New(0, WithClock(clock.Now))
	c.Set("tides", []byte("v"), 10*time.Minute)

	clock.Advance(10*time.Minute - time.Nanosecond)
	_, ok := c.Get("tides")
	assert.True(t, ok, "entry should still be live just before expiry")

	clock.Advance(time.Nanosecond)
	_, ok = c.Get("tides")
	assert.False(t, ok, "entry must not be returned at expiresAt")
	assert.Equal(t, 0, c.Len(), "expired entry should be evicted on Get")
}

func TestSet_LastWriteWins(t *testing.T) {
	clock := newFakeClock()
	c := New(0, WithClock(clock.Now))
	c.Set("k", []byte("first"), time.Minute)
	clock.Advance(30 * time.Second)
	c.Set("k", []byte("second"), time.Minute)

	clock.Advance(45 * time.Second)
	got, ok := c.Get("k")
	require.True(t, ok, "overwrite should reset the expiry")
	assert.Equal(t, "second", string(got))
}

func TestSet_NonPositiveTTLStoresNothing(t *testing.T) {
	c := New(0)
	c.Set("k", []byte("v"), 0)
	c.Set("j", []byte("v"), -time.Second)
	assert.Equal(t, 0, c.Len())
}

func TestValuesAreCopied(t *testing.T) {
	c := New(0)
	in := []byte("abc")
	c.Set("k", in, time.Minute)
	in[0] = 'X'

	out, _ := c.Get("k")
	assert.Equal(t, "abc", string(out), "mutating the input must not affect the cache")

	out[1] = 'Y'
	again, _ := c.Get("k")
	assert.Equal(t, "abc", string(again), "mutating a returned value must not affect the cache")
}

func TestSet_CapacityPrefersExpired(t *testing.T) {
	clock := newFakeClock()
	c := New(2, WithClock(clock.Now))
	c.Set("short", []byte("1"), time.Second)
	c.Set("long", []byte("2"), time.Hour)

	clock.Advance(2 * time.Second)
	c.Set("new", []byte("3"), time.Hour)

	assert.Equal(t, 2, c.Len())
	_, ok := c.Get("long")
	assert.True(t, ok, "live entry should survive when an expired one can be dropped")
	_, ok = c.Get("new")
	assert.True(t, ok)
}

func TestSet_CapacityEvictsOne(t *testing.T) {
	c := New(2)
	c.Set("a", []byte("1"), time.Hour)
	c.Set("b", []byte("2"), time.Hour)
	c.Set("c", []byte("3"), time.Hour)
	assert.Equal(t, 2, c.Len())

	_, ok := c.Get("c")
	assert.True(t, ok, "the newest entry is always kept")
}

func TestKey_Distinct(t *testing.T) {
	tests := []struct {
		name string
		a, b string
	}{
		{"station split", Key("tides", "0223"), Key("tides", "02", "23")},
		{"separator inside part", Key("tides", "a|b"), Key("tides", "a", "b")},
		{"resource vs param", Key("tides0223"), Key("tides", "0223")},
		{"different stations", Key("tides", "0223"), Key("tides", "0224")},
		{"no params vs empty param", Key("forecast"), Key("forecast", "")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NotEqual(t, tt.a, tt.b)
		})
	}
}

func TestConcurrentAccess(t *testing.T) {
	c := New(0)
	var wg sync.WaitGroup
	for i := range 50 {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			key := fmt.Sprintf("k%d", id%5)
			c.Set(key, []byte("v"), time.Minute)
			_, _ = c.Get(key)
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 5, c.Len())
}
