package api

import (
	"fmt"
)

const (
	// SnapshotRequestKey is the key of the record a client sends on the
	// snapshot channel to ask for the full state.
	SnapshotRequestKey = "ICANHAZ?"

	// TerminatorKey marks the end of a snapshot. The sequence of the
	// terminator record is the sequence the snapshot was taken at; nothing
	// else in it is meaningful.
	TerminatorKey = "KTHXBAI"
)

// Record is the unit of replicated state: a key, the sequence number the
// publishing authority assigned to it, and an opaque body.
type Record struct {
	Key      string
	Sequence int64
	Body     []byte
}

// NewSnapshotRequest returns the record sent to request a snapshot.
func NewSnapshotRequest() *Record {
	return &Record{Key: SnapshotRequestKey}
}

// NewTerminator returns the record that ends a snapshot taken at sequence.
func NewTerminator(sequence int64) *Record {
	return &Record{Key: TerminatorKey, Sequence: sequence}
}

// IsTerminator reports whether r marks the end of a snapshot.
func (r *Record) IsTerminator() bool {
	return r != nil && r.Key == TerminatorKey
}

// Copy returns a deep copy of r.
func (r *Record) Copy() *Record {
	if r == nil {
		return nil
	}
	c := *r
	if r.Body != nil {
		c.Body = append([]byte(nil), r.Body...)
	}
	return &c
}

// Equal reports whether r and other carry the same key, sequence and body.
func (r *Record) Equal(other *Record) bool {
	if r == nil || other == nil {
		return r == other
	}
	return r.Key == other.Key && r.Sequence == other.Sequence && string(r.Body) == string(other.Body)
}

func (r *Record) String() string {
	if r == nil {
		return "<nil>"
	}
	return fmt.Sprintf("%s@%d=%q", r.Key, r.Sequence, r.Body)
}
