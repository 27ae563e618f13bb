package conversation

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionStore_PutAndRelease(t *testing.T) {
	s := NewSessionStore(time.Minute)

	h := s.Acquire(1)
	assert.Nil(t, h.Session())
	h.Put(&Session{State: StateSelectType, Asset: "ETH"})
	h.Release()

	h = s.Acquire(1)
	require.NotNil(t, h.Session())
	assert.Equal(t, int64(1), h.Session().UserID)
	assert.Equal(t, "ETH", h.Session().Asset)
	h.Clear()
	h.Release()

	assert.Equal(t, 0, s.Len(), "empty slots are dropped on release")
}

func TestSessionStore_SweepEvictsIdleOnly(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	s := NewSessionStore(15 * time.Minute)
	s.now = func() time.Time { return now }

	h := s.Acquire(1)
	h.Put(&Session{State: StateAwaitAmount, Asset: "ETH"})
	h.Release()

	now = now.Add(10 * time.Minute)
	h = s.Acquire(2)
	h.Put(&Session{State: StateAwaitAmount, Asset: "BTC"})
	h.Release()

	evicted := s.Sweep(now.Add(6 * time.Minute))
	assert.Equal(t, 1, evicted)
	assert.Equal(t, 1, s.Len())

	h = s.Acquire(2)
	assert.NotNil(t, h.Session())
	h.Release()
}

func TestSessionStore_SweepSkipsHeldSlots(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	s := NewSessionStore(time.Minute)
	s.now = func() time.Time { return now }

	h := s.Acquire(1)
	h.Put(&Session{State: StateAwaitAmount})
	h.Release()

	held := s.Acquire(1)
	assert.Equal(t, 0, s.Sweep(now.Add(time.Hour)))
	held.Release()
}

func TestSessionStore_ExpiredOnAcquire(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	s := NewSessionStore(time.Minute)
	s.now = func() time.Time { return now }

	h := s.Acquire(1)
	h.Put(&Session{State: StatePreview})
	h.Release()

	now = now.Add(2 * time.Minute)
	h = s.Acquire(1)
	assert.Nil(t, h.Session())
	h.Release()
}

func TestSessionStore_PerUserExclusion(t *testing.T) {
	s := NewSessionStore(0)

	const workers = 8
	const rounds = 200

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(user int64) {
			defer wg.Done()
			for i := 0; i < rounds; i++ {
				h := s.Acquire(user % 2)
				sess := h.Session()
				if sess == nil {
					sess = &Session{}
					h.Put(sess)
				}
				// read-modify-write must not lose updates under the user's lock
				sess.Amount = sess.Amount.Add(d("1"))
				h.Release()
			}
		}(int64(w))
	}
	wg.Wait()

	for user := int64(0); user < 2; user++ {
		h := s.Acquire(user)
		require.NotNil(t, h.Session())
		assert.True(t, h.Session().Amount.Equal(d("800")), "user %d got %s", user, h.Session().Amount)
		h.Release()
	}
}
