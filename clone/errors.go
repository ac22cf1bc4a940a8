package clone

import "errors"

var (
	// ErrIncompleteBootstrap is returned by Bootstrap when the snapshot
	// ended before its terminator, either because the context was
	// cancelled or because the snapshot channel failed. The store holds
	// whatever arrived and the sequence is still 0; the client is not in
	// sync.
	ErrIncompleteBootstrap = errors.New("clone: incomplete bootstrap")

	// ErrTornDown is returned by Stream when the subscribe channel was
	// torn down underneath it.
	ErrTornDown = errors.New("clone: transport torn down")

	errBootstrapped = errors.New("clone: already bootstrapped")
)
