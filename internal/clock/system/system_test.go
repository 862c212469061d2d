package system

import (
	"testing"
	"time"
)

func TestClockNowUTC(t *testing.T) {
	t.Parallel()

	before := time.Now().UTC().Add(-time.Second)
	got := New().Now()
	after := time.Now().UTC().Add(time.Second)

	if got.Location() != time.UTC {
		t.Fatalf("expected UTC location, got %v", got.Location())
	}
	if got.Before(before) || got.After(after) {
		t.Fatalf("expected %v to be between %v and %v", got, before, after)
	}
}

func TestFixedClock(t *testing.T) {
	t.Parallel()

	shanghai := time.FixedZone("CST", 8*3600)
	at := time.Date(2025, 3, 1, 8, 0, 0, 0, shanghai)
	clk := Fixed{At: at}
	got := clk.Now()
	if !got.Equal(at) || got.Location() != time.UTC {
		t.Fatalf("unexpected fixed time %v", got)
	}
	if got.Format(time.RFC3339) != "2025-03-01T00:00:00Z" {
		t.Fatalf("unexpected RFC3339 %s", got.Format(time.RFC3339))
	}
}
