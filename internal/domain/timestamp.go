package domain

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// TimestampLayout is the wall-clock format used by the monitor, the history
// file and event messages.
const TimestampLayout = "2006-01-02 15:04:05"

// Timestamp is a zone-less wall-clock time with second precision. Two
// timestamps are compared as plain calendar values; callers must feed
// consistently-zoned inputs.
type Timestamp struct {
	wall time.Time
}

// ParseTimestamp parses "YYYY-MM-DD HH:MM:SS".
func ParseTimestamp(raw string) (Timestamp, error) {
	t, err := time.Parse(TimestampLayout, strings.TrimSpace(raw))
	if err != nil {
		return Timestamp{}, fmt.Errorf("timestamp %q: want format %s: %w", raw, TimestampLayout, err)
	}
	return Timestamp{wall: t}, nil
}

// MustParseTimestamp is ParseTimestamp for literals; it panics on bad input.
func MustParseTimestamp(raw string) Timestamp {
	ts, err := ParseTimestamp(raw)
	if err != nil {
		panic(err)
	}
	return ts
}

// TimestampOf keeps the wall clock of t in its own location and drops the zone.
func TimestampOf(t time.Time) Timestamp {
	return Timestamp{wall: time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), 0, time.UTC)}
}

// TimestampFromUnixMillis converts a monitor epoch-millisecond value to the
// wall clock of loc. Sub-second precision is discarded.
func TimestampFromUnixMillis(ms int64, loc *time.Location) Timestamp {
	if loc == nil {
		loc = time.Local
	}
	return TimestampOf(time.Unix(ms/1000, 0).In(loc))
}

func (t Timestamp) IsZero() bool { return t.wall.IsZero() }

// Sub returns t-u.
func (t Timestamp) Sub(u Timestamp) time.Duration { return t.wall.Sub(u.wall) }

func (t Timestamp) Before(u Timestamp) bool { return t.wall.Before(u.wall) }

func (t Timestamp) Equal(u Timestamp) bool { return t.wall.Equal(u.wall) }

// Time returns the wall clock as a UTC time.Time.
func (t Timestamp) Time() time.Time { return t.wall }

func (t Timestamp) String() string {
	if t.wall.IsZero() {
		return ""
	}
	return t.wall.Format(TimestampLayout)
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("timestamp must be a string: %w", err)
	}
	parsed, err := ParseTimestamp(raw)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}
