// Package cursor defines the change-feed position used by remote
// subscriptions. The remote store assigns every mutation a monotonically
// increasing sequence number per collection; a Cursor is the high-water mark
// a subscriber has observed.
package cursor

import (
	"fmt"
	"strconv"
)

// Cursor is a simple high-water mark over a collection's change feed.
type Cursor struct {
	Seq uint64
}

// Zero is the cursor of a subscriber that has seen nothing.
var Zero = Cursor{}

// Compare returns -1 if c is before other, 0 if equal, 1 if after.
func (c Cursor) Compare(other Cursor) int {
	switch {
	case c.Seq < other.Seq:
		return -1
	case c.Seq > other.Seq:
		return 1
	default:
		return 0
	}
}

// IsZero reports whether the cursor is the initial position.
func (c Cursor) IsZero() bool { return c.Seq == 0 }

// Next returns the cursor advanced by one mutation.
func (c Cursor) Next() Cursor { return Cursor{Seq: c.Seq + 1} }

func (c Cursor) String() string { return strconv.FormatUint(c.Seq, 10) }

// Parse converts the wire representation back into a Cursor. The empty
// string and "0" both mean Zero.
func Parse(s string) (Cursor, error) {
	if s == "" || s == "0" {
		return Zero, nil
	}
	seq, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return Zero, fmt.Errorf("invalid cursor %q: %w", s, err)
	}
	return Cursor{Seq: seq}, nil
}
