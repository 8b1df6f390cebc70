package subscription

import (
	"bytes"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetSubscribeNotify(t *testing.T) {
	s := NewSet[int]("test", nil)

	var got []int
	id1 := s.Subscribe(func(v int) { got = append(got, v) })
	id2 := s.Subscribe(func(v int) { got = append(got, v*10) })

	assert.NotEqual(t, id1, id2)
	assert.NotZero(t, id1)
	assert.Equal(t, 2, s.Len())

	assert.Zero(t, s.Notify(3))
	assert.Equal(t, []int{3, 30}, got)
}

func TestSetUnsubscribe(t *testing.T) {
	s := NewSet[string]("test", nil)

	calls := 0
	id := s.Subscribe(func(string) { calls++ })

	assert.True(t, s.Unsubscribe(id))
	assert.False(t, s.Unsubscribe(id), "second unsubscribe is a no-op")

	s.Notify("x")
	assert.Zero(t, calls)
	assert.Zero(t, s.Len())
}

func TestSetPanicIsolation(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	s := NewSet[int]("sensor", logger)

	var after []int
	s.Subscribe(func(int) { panic("boom") })
	s.Subscribe(func(v int) { after = append(after, v) })

	failures := s.Notify(7)

	assert.Equal(t, 1, failures)
	assert.Equal(t, []int{7}, after)
	assert.Contains(t, buf.String(), "subscriber failed")
	assert.Contains(t, buf.String(), "boom")

	delivered, failed := s.Stats()
	assert.Equal(t, uint64(1), delivered)
	assert.Equal(t, uint64(1), failed)
}

func TestSetUnsubscribeDuringNotify(t *testing.T) {
	s := NewSet[int]("test", nil)

	var id ID
	calls := 0
	id = s.Subscribe(func(int) {
		calls++
		s.Unsubscribe(id)
	})
	other := 0
	s.Subscribe(func(int) { other++ })

	s.Notify(1)
	s.Notify(2)

	assert.Equal(t, 1, calls)
	assert.Equal(t, 2, other)
}

func TestSetConcurrentUse(t *testing.T) {
	s := NewSet[int]("test", nil)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			id := s.Subscribe(func(int) {})
			s.Unsubscribe(id)
		}()
		go func() {
			defer wg.Done()
			s.Notify(1)
		}()
	}
	wg.Wait()

	require.Zero(t, s.Len())
}

func TestSetClear(t *testing.T) {
	s := NewSet[int]("test", nil)
	s.Subscribe(func(int) {})
	s.Subscribe(func(int) {})

	s.Clear()
	assert.Zero(t, s.Len())
}
