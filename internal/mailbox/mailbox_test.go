package mailbox

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestPushAndReceive(t *testing.T) {
	m := New(42, 4)
	assert.Equal(t, uint64(42), m.PlayerID())

	require.NoError(t, m.Push(OpponentAssigned{OpponentID: 7}))
	require.NoError(t, m.Push(ForceDisconnect{}))

	assert.Equal(t, OpponentAssigned{OpponentID: 7}, <-m.Notices())
	assert.Equal(t, ForceDisconnect{}, <-m.Notices())
}

func TestPushFull(t *testing.T) {
	m := New(1, 1)
	require.NoError(t, m.Push(ForceDisconnect{}))
	err := m.Push(ForceDisconnect{})
	assert.True(t, errors.Is(err, ErrFull))
}

func TestPushAfterClose(t *testing.T) {
	m := New(1, 1)
	m.Close()
	assert.True(t, m.IsClosed())
	assert.True(t, errors.Is(m.Push(ForceDisconnect{}), ErrClosed))

	_, ok := <-m.Notices()
	assert.False(t, ok, "channel is closed")
}

func TestCloseIdempotent(t *testing.T) {
	m := New(1, 1)
	m.Close()
	assert.NotPanics(t, m.Close)
}

func TestDefaultDepth(t *testing.T) {
	m := New(1, 0)
	assert.Equal(t, 16, cap(m.notices))
}

func TestConcurrentPushAndClose(t *testing.T) {
	m := New(1, 8)
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = m.Push(ForceDisconnect{})
		}()
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		m.Close()
	}()
	wg.Wait()
	assert.True(t, m.IsClosed())
}

func TestPropertyPushNeverExceedsDepth(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		depth := rapid.IntRange(1, 32).Draw(t, "depth")
		pushes := rapid.IntRange(0, 64).Draw(t, "pushes")
		m := New(1, depth)
		accepted := 0
		for i := 0; i < pushes; i++ {
			if m.Push(OpponentAssigned{OpponentID: uint64(i)}) == nil {
				accepted++
			}
		}
		want := pushes
		if want > depth {
			want = depth
		}
		if accepted != want {
			t.Fatalf("accepted %d, want %d", accepted, want)
		}
	})
}
