package cache

import (
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestCacheSetGet(t *testing.T) {
	tc := New[int](DefaultExpiration, 0)

	_, found := tc.Get("a")
	assert.False(t, found)

	tc.Set("a", 1)
	v, found := tc.Get("a")
	assert.True(t, found)
	assert.Equal(t, 1, v)
}

func TestCacheExpiration(t *testing.T) {
	tc := New[string](time.Millisecond*20, 0)
	tc.Set("a", "x")
	tc.SetWithExpiration("b", "y", NoExpiration)

	time.Sleep(time.Millisecond * 40)

	_, found := tc.Get("a")
	assert.False(t, found)
	v, found := tc.Get("b")
	assert.True(t, found)
	assert.Equal(t, "y", v)
}

func TestCacheTouch(t *testing.T) {
	tc := New[string](time.Millisecond*60, 0)
	tc.Set("a", "x")
	time.Sleep(time.Millisecond * 40)
	assert.True(t, tc.Touch("a"))
	time.Sleep(time.Millisecond * 40)
	_, found := tc.Get("a")
	assert.True(t, found)
	assert.False(t, tc.Touch("nope"))
}

func TestCacheModify(t *testing.T) {
	tc := New[int](NoExpiration, 0)
	tc.Set("a", 1)
	err := tc.Modify("a", func(x int) (int, error) {
		return x + 1, nil
	})
	assert.NoError(t, err)
	v, _ := tc.Get("a")
	assert.Equal(t, 2, v)

	err = tc.Modify("a", func(x int) (int, error) {
		return 0, errors.New("boom")
	})
	assert.Error(t, err)
	v, _ = tc.Get("a")
	assert.Equal(t, 2, v)

	err = tc.Modify("b", func(x int) (int, error) {
		return x, nil
	})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCacheOnEvicted(t *testing.T) {
	tc := New[int](NoExpiration, 0)
	evicted := make(map[string]int)
	tc.OnEvicted(func(k string, v int) {
		evicted[k] = v
	})
	tc.Set("a", 1)
	tc.Delete("a")
	tc.Delete("a")
	assert.Equal(t, map[string]int{"a": 1}, evicted)
}

func TestCacheJanitor(t *testing.T) {
	tc := New[int](time.Millisecond*10, time.Millisecond*5)
	defer tc.Close()
	var mu sync.Mutex
	evicted := 0
	tc.OnEvicted(func(k string, v int) {
		mu.Lock()
		defer mu.Unlock()
		evicted++
	})
	tc.Set("a", 1)
	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return evicted == 1
	}, time.Second, time.Millisecond*10)
	assert.Equal(t, 0, tc.ItemCount())
}

func TestCacheIterate(t *testing.T) {
	tc := New[int](NoExpiration, 0)
	tc.Set("a", 1)
	tc.Set("b", 2)
	sum := 0
	tc.Iterate(func(_ string, v int) {
		sum += v
	})
	assert.Equal(t, 3, sum)
}
