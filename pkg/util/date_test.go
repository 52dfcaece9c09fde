package util

import (
	"strconv"
	"testing"
	"time"
)

func TestParseTimeRFC3339(t *testing.T) {
	s := "2024-10-10T10:10:10Z"
	got, ok := ParseTime(s)
	if !ok {
		t.Fatalf("expected ok")
	}
	if got.UTC().Format(time.RFC3339) != s {
		t.Fatalf("unexpected time %v", got)
	}
}

func TestParseTimeSWPC(t *testing.T) {
	got, ok := ParseTime("2024-10-10 10:10:10")
	if !ok {
		t.Fatalf("expected ok")
	}
	want := time.Date(2024, 10, 10, 10, 10, 10, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("unexpected time %v", got)
	}
}

func TestParseTimeUnix(t *testing.T) {
	ts := time.Date(2024, 10, 10, 10, 10, 10, 0, time.UTC).Unix()
	got, ok := ParseTime(strconv.FormatInt(ts, 10))
	if !ok {
		t.Fatalf("expected ok")
	}
	if got.Unix() != ts {
		t.Fatalf("unexpected unix %v", got.Unix())
	}
}

func TestParseTimeDefault(t *testing.T) {
	def := time.Date(2024, 10, 10, 10, 10, 10, 0, time.UTC)
	if got := ParseTimeDefault("", def); !got.Equal(def) {
		t.Fatalf("expected default, got %v", got)
	}
	if got := ParseTimeDefault("garbage", def); !got.Equal(def) {
		t.Fatalf("expected default, got %v", got)
	}
}

func TestClampHours(t *testing.T) {
	cases := []struct {
		name string
		req  int
		want int
	}{
		{"zero falls back", 0, 72},
		{"negative falls back", -5, 72},
		{"over max falls back", 200, 72},
		{"in range kept", 24, 24},
		{"max kept", 168, 168},
		{"min kept", 1, 1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ClampHours(tc.req, 72, 168); got != tc.want {
				t.Fatalf("ClampHours(%d) = %d, want %d", tc.req, got, tc.want)
			}
		})
	}
}
