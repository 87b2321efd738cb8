package connection

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeHandle struct{ name string }

func TestRegistryRegister(t *testing.T) {
	start := time.Unix(1_700_000_000, 0)
	r := newRegistry(func() time.Time { return start })

	h1, h2 := &fakeHandle{"a"}, &fakeHandle{"b"}

	rec1, err := r.Register(h1, false)
	require.NoError(t, err)
	rec2, err := r.Register(h2, true)
	require.NoError(t, err)

	assert.Equal(t, start.Unix()+1, rec1.ID)
	assert.Equal(t, start.Unix()+2, rec2.ID)
	assert.False(t, rec1.Secure)
	assert.True(t, rec2.Secure)
	assert.Equal(t, start, rec1.Opened)
	assert.Equal(t, 2, r.Len())
}

func TestRegistryRegisterTwice(t *testing.T) {
	r := NewRegistry()
	h := &fakeHandle{"a"}

	first, err := r.Register(h, true)
	require.NoError(t, err)

	second, err := r.Register(h, false)
	assert.ErrorIs(t, err, ErrAlreadyRegistered)
	assert.Same(t, first, second)
	assert.True(t, second.Secure, "secure flag must not change")
	assert.Equal(t, 1, r.Len())
}

func TestRegistryLookupAndRemove(t *testing.T) {
	r := NewRegistry()
	h := &fakeHandle{"a"}

	_, err := r.Lookup(h)
	assert.ErrorIs(t, err, ErrNotFound)

	rec, err := r.Register(h, true)
	require.NoError(t, err)

	got, err := r.Lookup(h)
	require.NoError(t, err)
	assert.Same(t, rec, got)

	removed, err := r.Remove(h)
	require.NoError(t, err)
	assert.Equal(t, rec.ID, removed.ID)

	_, err = r.Lookup(h)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = r.Remove(h)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, 0, r.Len())
}

func TestRegistryIDsNotReusedAfterRemove(t *testing.T) {
	r := NewRegistry()
	h := &fakeHandle{"a"}

	rec1, err := r.Register(h, false)
	require.NoError(t, err)
	_, err = r.Remove(h)
	require.NoError(t, err)

	rec2, err := r.Register(h, false)
	require.NoError(t, err)
	assert.Greater(t, rec2.ID, rec1.ID)
}

func TestRegistryConcurrentRegisterUnique(t *testing.T) {
	r := NewRegistry()

	const n = 200
	handles := make([]*fakeHandle, n)
	ids := make([]int64, n)

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		handles[i] = &fakeHandle{}
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			rec, err := r.Register(handles[i], i%2 == 0)
			if err != nil {
				t.Errorf("Register() error = %v", err)
				return
			}
			ids[i] = rec.ID
		}(i)
	}
	wg.Wait()

	seen := make(map[int64]bool, n)
	for _, id := range ids {
		assert.False(t, seen[id], "duplicate id %d", id)
		seen[id] = true
	}
	assert.Equal(t, n, r.Len())
	assert.Len(t, r.Records(), n)
}

func TestRecordAck(t *testing.T) {
	rec := &Record{}

	rec.Ack(5)
	assert.Equal(t, int64(5), rec.AckSequence())

	rec.Ack(3)
	assert.Equal(t, int64(5), rec.AckSequence(), "lower sequence must not move ack back")

	rec.Ack(9)
	assert.Equal(t, int64(9), rec.AckSequence())
}
