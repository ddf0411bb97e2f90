package domain

import (
	"fmt"
	"strconv"
	"time"
)

// Timestamp is a 64-bit backend timestamp (nanoseconds) held as a decimal
// string. The backend sends timestamps as integers; storing them as strings
// client-side avoids precision loss in hosts whose numeric representation
// cannot hold a full uint64.
type Timestamp string

// TimestampFromNanos encodes a wire timestamp.
func TimestampFromNanos(ns uint64) Timestamp {
	return Timestamp(strconv.FormatUint(ns, 10))
}

// TimestampFromTime encodes a time.Time.
func TimestampFromTime(t time.Time) Timestamp {
	return TimestampFromNanos(uint64(t.UnixNano()))
}

// Nanos decodes the timestamp back to its wire form.
func (t Timestamp) Nanos() (uint64, error) {
	ns, err := strconv.ParseUint(string(t), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse timestamp %q: %w", string(t), err)
	}
	return ns, nil
}

// Time converts the timestamp to a time.Time. Invalid timestamps yield
// the zero time.
func (t Timestamp) Time() time.Time {
	ns, err := t.Nanos()
	if err != nil {
		return time.Time{}
	}
	return time.Unix(0, int64(ns))
}

// Before reports whether t is earlier than other. Invalid timestamps
// sort first.
func (t Timestamp) Before(other Timestamp) bool {
	a, _ := t.Nanos()
	b, _ := other.Nanos()
	return a < b
}
