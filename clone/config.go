package clone

import (
	"math/rand"
	"time"

	"code.cloudfoundry.org/clock"
	"github.com/pkg/errors"
)

// Defaults for Config.
const (
	DefaultTickInterval = time.Second
	DefaultKeySpace     = 10000
	DefaultBodySpace    = 1000000

	// maxPendingEchoes bounds the set of emitted records remembered while
	// waiting for them to come back on the subscribe channel.
	maxPendingEchoes = 1024
)

// Config provides values for a Client.
type Config struct {
	// TickInterval is the time between two emitted records.
	TickInterval time.Duration

	// KeySpace and BodySpace bound the random keys and bodies of emitted
	// records: both are decimal renderings of a draw in [0, n).
	KeySpace  int
	BodySpace int

	// ExpectLoopback records whether updates this client pushes are
	// expected to come back to it on the subscribe channel. When set, the
	// client remembers what it emitted and counts the echoes.
	ExpectLoopback bool

	// Clock drives the emission timer. Defaults to the wall clock.
	Clock clock.Clock

	// Rand is the source of emitted keys and bodies. Defaults to a
	// source seeded from the clock.
	Rand *rand.Rand
}

func (c *Config) setDefaults() {
	if c.TickInterval == 0 {
		c.TickInterval = DefaultTickInterval
	}
	if c.KeySpace == 0 {
		c.KeySpace = DefaultKeySpace
	}
	if c.BodySpace == 0 {
		c.BodySpace = DefaultBodySpace
	}
	if c.Clock == nil {
		c.Clock = clock.NewClock()
	}
	if c.Rand == nil {
		c.Rand = rand.New(rand.NewSource(c.Clock.Now().UnixNano()))
	}
}

func (c *Config) validate() error {
	if c.TickInterval < 0 {
		return errors.Errorf("config: negative tick interval %v", c.TickInterval)
	}
	if c.KeySpace < 0 || c.BodySpace < 0 {
		return errors.New("config: key and body spaces must not be negative")
	}
	return nil
}
