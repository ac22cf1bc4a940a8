package testutils

import (
	"time"
)

// PollFuncWithTimeout calls f until it returns nil or timeout elapses, and
// returns the last error.
func PollFuncWithTimeout(f func() error, timeout time.Duration) error {
	if f == nil {
		return nil
	}
	deadline := time.After(timeout)
	for {
		err := f()
		if err == nil {
			return nil
		}
		select {
		case <-deadline:
			return err
		case <-time.After(10 * time.Millisecond):
		}
	}
}

// PollFunc is PollFuncWithTimeout with a ten second timeout.
func PollFunc(f func() error) error {
	return PollFuncWithTimeout(f, 10*time.Second)
}
