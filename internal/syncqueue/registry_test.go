package syncqueue

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kevinbarfleur/LeCollecteurDeDose-sub001/internal/collection"
)

func TestRegistry_GetOrCreate(t *testing.T) {
	var mu sync.Mutex
	built := map[string]int{}
	r := NewRegistry(func(username string) (*Queue, error) {
		mu.Lock()
		built[username]++
		mu.Unlock()
		return New(collection.New(0, nil), &fakeCommitter{}, Options{}), nil
	})
	defer r.CloseAll()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := r.GetOrCreate("alice")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	_, err := r.GetOrCreate("bob")
	require.NoError(t, err)

	assert.Equal(t, 1, built["alice"])
	assert.Equal(t, 2, r.Count())
	assert.Equal(t, []string{"alice", "bob"}, r.Usernames())

	_, ok := r.Get("carol")
	assert.False(t, ok)

	_, err = r.GetOrCreate("")
	assert.ErrorIs(t, err, ErrInvalidOperation)
}

func TestRegistry_RemoveClosesQueue(t *testing.T) {
	r := NewRegistry(func(string) (*Queue, error) {
		return New(collection.New(5, nil), &fakeCommitter{}, Options{}), nil
	})

	q, err := r.GetOrCreate("alice")
	require.NoError(t, err)

	assert.True(t, r.Remove("alice"))
	assert.False(t, r.Remove("alice"))

	_, err = q.Enqueue(Operation{Username: "alice", CurrencyDelta: -1})
	assert.ErrorIs(t, err, ErrQueueClosed)
}

func TestRegistry_FactoryError(t *testing.T) {
	boom := errors.New("no collection")
	r := NewRegistry(func(string) (*Queue, error) { return nil, boom })

	_, err := r.GetOrCreate("alice")
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 0, r.Count())
}
