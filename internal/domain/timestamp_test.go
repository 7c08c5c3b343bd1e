package domain

import (
	"encoding/json"
	"testing"
	"time"
)

func TestParseTimestampRoundTrip(t *testing.T) {
	ts, err := ParseTimestamp("2024-01-02 10:00:00")
	if err != nil {
		t.Fatalf("ParseTimestamp returned error: %v", err)
	}
	if got := ts.String(); got != "2024-01-02 10:00:00" {
		t.Fatalf("String() = %q", got)
	}

	data, err := json.Marshal(struct {
		Time Timestamp `json:"time"`
	}{ts})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(data) != `{"time":"2024-01-02 10:00:00"}` {
		t.Fatalf("marshal = %s", data)
	}
}

func TestParseTimestampRejectsOtherLayouts(t *testing.T) {
	for _, raw := range []string{"2024/01/02 10:00:00", "2024-01-02T10:00:00Z", "", "yesterday"} {
		if _, err := ParseTimestamp(raw); err == nil {
			t.Fatalf("ParseTimestamp(%q) should fail", raw)
		}
	}
}

func TestTimestampUnmarshalRejectsNumbers(t *testing.T) {
	var ts Timestamp
	if err := json.Unmarshal([]byte(`1704103200`), &ts); err == nil {
		t.Fatal("expected error for numeric timestamp")
	}
}

func TestTimestampSubIgnoresZones(t *testing.T) {
	a := MustParseTimestamp("2024-01-02 10:00:00")
	b := MustParseTimestamp("2024-01-01 10:00:00")
	if got := a.Sub(b); got != 24*time.Hour {
		t.Fatalf("Sub = %v, want 24h", got)
	}
	if !b.Before(a) {
		t.Fatal("expected b before a")
	}
}

func TestTimestampFromUnixMillisUsesLocation(t *testing.T) {
	loc := time.FixedZone("UTC+2", 2*60*60)
	// 2024-01-01 08:00:00 UTC, with milliseconds that must be dropped
	ts := TimestampFromUnixMillis(1704096000123, loc)
	if got := ts.String(); got != "2024-01-01 10:00:00" {
		t.Fatalf("TimestampFromUnixMillis = %q, want 2024-01-01 10:00:00", got)
	}
}
