package clone

import (
	"fmt"
	"strings"
	"time"

	"github.com/docker/go-units"
	"github.com/dustin/go-humanize"
)

// Summary reports what a client did. Counts cover the whole life of the
// client, bootstrap included.
type Summary struct {
	Synced          bool          `json:"synced"`
	SnapshotRecords int           `json:"snapshot_records"`
	Applied         int64         `json:"applied"`
	Discarded       int64         `json:"discarded"`
	Malformed       int64         `json:"malformed"`
	Emitted         int64         `json:"emitted"`
	PushFailures    int64         `json:"push_failures"`
	Echoed          int64         `json:"echoed,omitempty"`
	Sequence        int64         `json:"sequence"`
	Keys            int           `json:"keys"`
	Elapsed         time.Duration `json:"elapsed"`
	Reason          string        `json:"reason,omitempty"`
}

// Summary returns the client's counters.
func (c *Client) Summary() Summary {
	s := Summary{
		Synced:          c.synced,
		SnapshotRecords: c.snapshotRecords,
		Applied:         c.applied,
		Discarded:       c.discarded,
		Malformed:       c.malformed,
		Emitted:         c.emitted,
		PushFailures:    c.pushFailures,
		Echoed:          c.echoed,
		Sequence:        c.sequence,
		Keys:            c.store.Len(),
	}
	if !c.started.IsZero() {
		s.Elapsed = c.config.Clock.Since(c.started)
	}
	if c.reason != nil {
		s.Reason = c.reason.Error()
	}
	return s
}

func (s Summary) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s messages in", humanize.Comma(s.Applied))
	fmt.Fprintf(&b, ", sequence=%d", s.Sequence)
	fmt.Fprintf(&b, ", keys=%s", humanize.Comma(int64(s.Keys)))
	if !s.Synced {
		b.WriteString(" (snapshot incomplete)")
	}
	fmt.Fprintf(&b, ", %s discarded, %s malformed, %s emitted",
		humanize.Comma(s.Discarded), humanize.Comma(s.Malformed), humanize.Comma(s.Emitted))
	if s.Elapsed > 0 {
		fmt.Fprintf(&b, " over %s", units.HumanDuration(s.Elapsed))
	}
	return b.String()
}
