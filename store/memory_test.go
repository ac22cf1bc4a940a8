package store

import (
	"strconv"
	"sync"
	"testing"

	"github.com/docker/clonekit/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPutGet(t *testing.T) {
	s := NewMemoryStore()
	assert.Nil(t, s.Get("k1"))
	assert.Equal(t, 0, s.Len())

	require.NoError(t, s.Put(&api.Record{Key: "k1", Sequence: 1, Body: []byte("a")}))
	require.NoError(t, s.Put(&api.Record{Key: "k2", Sequence: 2, Body: []byte("b")}))

	rec := s.Get("k1")
	require.NotNil(t, rec)
	assert.Equal(t, int64(1), rec.Sequence)
	assert.Equal(t, "a", string(rec.Body))
	assert.Equal(t, 2, s.Len())
	assert.Equal(t, map[string]string{"k1": "a", "k2": "b"}, s.Map())
}

func TestPutOverwrites(t *testing.T) {
	s := NewMemoryStore()
	require.NoError(t, s.Put(&api.Record{Key: "k", Sequence: 1, Body: []byte("a")}))
	require.NoError(t, s.Put(&api.Record{Key: "k", Sequence: 2, Body: []byte("b")}))

	assert.Equal(t, 1, s.Len())
	rec := s.Get("k")
	require.NotNil(t, rec)
	assert.Equal(t, "b", string(rec.Body))
	assert.Equal(t, int64(2), rec.Sequence)
}

func TestPutRejectsEmptyKey(t *testing.T) {
	s := NewMemoryStore()
	assert.Error(t, s.Put(&api.Record{Sequence: 1}))
	assert.Error(t, s.Put(nil))
	assert.Equal(t, 0, s.Len())
}

func TestStoreCopies(t *testing.T) {
	s := NewMemoryStore()
	rec := &api.Record{Key: "k", Sequence: 1, Body: []byte("a")}
	require.NoError(t, s.Put(rec))

	rec.Body[0] = 'z'
	assert.Equal(t, "a", string(s.Get("k").Body))

	got := s.Get("k")
	got.Body[0] = 'y'
	assert.Equal(t, "a", string(s.Get("k").Body))
}

func TestList(t *testing.T) {
	s := NewMemoryStore()
	for _, k := range []string{"3", "1", "2"} {
		require.NoError(t, s.Put(&api.Record{Key: k, Body: []byte(k)}))
	}

	var keys []string
	for _, rec := range s.List() {
		keys = append(keys, rec.Key)
	}
	assert.Equal(t, []string{"1", "2", "3"}, keys)
}

func TestConcurrentReaders(t *testing.T) {
	s := NewMemoryStore()

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				s.Get("k")
				s.Len()
			}
		}()
	}
	for i := 0; i < 100; i++ {
		require.NoError(t, s.Put(&api.Record{Key: "k", Sequence: int64(i), Body: []byte(strconv.Itoa(i))}))
	}
	wg.Wait()

	assert.Equal(t, "99", string(s.Get("k").Body))
}
