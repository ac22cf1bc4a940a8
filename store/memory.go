// Package store holds the local mirror of the replicated key-value store.
package store

import (
	"github.com/docker/clonekit/api"
	memdb "github.com/hashicorp/go-memdb"
	"github.com/pkg/errors"
)

const (
	tableRecord = "record"
	indexID     = "id"

	prefix = "_prefix"
)

var schema = &memdb.DBSchema{
	Tables: map[string]*memdb.TableSchema{
		tableRecord: {
			Name: tableRecord,
			Indexes: map[string]*memdb.IndexSchema{
				indexID: {
					Name:    indexID,
					Unique:  true,
					Indexer: &memdb.StringFieldIndex{Field: "Key"},
				},
			},
		},
	},
}

// MemoryStore maps keys to the most recently accepted record for that key.
// Records are copied on the way in and on the way out, so callers may keep
// using the values they pass or receive.
//
// Writes are expected from a single goroutine; reads may happen from any
// goroutine.
type MemoryStore struct {
	memDB *memdb.MemDB
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	memDB, err := memdb.NewMemDB(schema)
	if err != nil {
		// This shouldn't fail
		panic(err)
	}

	return &MemoryStore{memDB: memDB}
}

// Put inserts rec, replacing any record with the same key.
func (s *MemoryStore) Put(rec *api.Record) error {
	if rec == nil || rec.Key == "" {
		return errors.New("store: record has no key")
	}

	tx := s.memDB.Txn(true)
	if err := tx.Insert(tableRecord, rec.Copy()); err != nil {
		tx.Abort()
		return errors.Wrapf(err, "store: put %q", rec.Key)
	}
	tx.Commit()
	return nil
}

// Get returns the record stored under key, or nil.
func (s *MemoryStore) Get(key string) *api.Record {
	tx := s.memDB.Txn(false)
	defer tx.Abort()

	obj, err := tx.First(tableRecord, indexID, key)
	if err != nil || obj == nil {
		return nil
	}
	return obj.(*api.Record).Copy()
}

// Len returns the number of keys in the store.
func (s *MemoryStore) Len() int {
	n := 0
	s.each(func(*api.Record) { n++ })
	return n
}

// List returns every record in the store, ordered by key.
func (s *MemoryStore) List() []*api.Record {
	var records []*api.Record
	s.each(func(rec *api.Record) {
		records = append(records, rec.Copy())
	})
	return records
}

// Map returns the store contents as key to body.
func (s *MemoryStore) Map() map[string]string {
	m := make(map[string]string)
	s.each(func(rec *api.Record) {
		m[rec.Key] = string(rec.Body)
	})
	return m
}

func (s *MemoryStore) each(cb func(*api.Record)) {
	tx := s.memDB.Txn(false)
	defer tx.Abort()

	it, err := tx.Get(tableRecord, indexID+prefix, "")
	if err != nil {
		return
	}
	for obj := it.Next(); obj != nil; obj = it.Next() {
		cb(obj.(*api.Record))
	}
}
