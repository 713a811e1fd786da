package netquality

import (
	"context"
	"testing"
	"time"

	"arena/server/logging"
	loggingNetwork "arena/server/logging/network"
	"arena/server/logging/sinks"
)

func TestClassifyBoundaries(t *testing.T) {
	cases := []struct {
		rtt  time.Duration
		want Tier
	}{
		{0, TierExcellent},
		{49 * time.Millisecond, TierExcellent},
		{50 * time.Millisecond, TierGood},
		{99 * time.Millisecond, TierGood},
		{100 * time.Millisecond, TierMedium},
		{199 * time.Millisecond, TierMedium},
		{200 * time.Millisecond, TierPoor},
		{2 * time.Second, TierPoor},
	}
	for _, tc := range cases {
		if got := Classify(tc.rtt); got != tc.want {
			t.Fatalf("Classify(%s) = %s, want %s", tc.rtt, got, tc.want)
		}
	}
}

func TestObserveReportsChanges(t *testing.T) {
	sink := sinks.NewMemorySink(0)
	pub := logging.PublisherFunc(func(_ context.Context, event logging.Event) { _ = sink.Write(event) })
	m := NewMonitor(pub)

	if tier, changed := m.Observe(1, 10*time.Millisecond); tier != TierExcellent || changed {
		t.Fatalf("expected excellent without change, got %s changed=%v", tier, changed)
	}
	if tier, changed := m.Observe(1, 250*time.Millisecond); tier != TierPoor || !changed {
		t.Fatalf("expected change to poor, got %s changed=%v", tier, changed)
	}
	if _, changed := m.Observe(1, 300*time.Millisecond); changed {
		t.Fatalf("expected no change while staying poor")
	}
	if got := m.Tier(1); got != TierPoor {
		t.Fatalf("expected poor tier, got %s", got)
	}
	if got := len(sink.EventsOfType(loggingNetwork.EventQualityChanged)); got != 1 {
		t.Fatalf("expected one quality event, got %d", got)
	}
}

func TestSummaryAndRemove(t *testing.T) {
	m := NewMonitor(nil)
	if s := m.Summary(); s.Connections != 0 || s.MeanRTT != 0 {
		t.Fatalf("expected empty summary, got %+v", s)
	}
	m.Observe(1, 20*time.Millisecond)
	m.Observe(2, 40*time.Millisecond)
	m.Observe(3, 240*time.Millisecond)
	m.Observe(4, 300*time.Millisecond)

	s := m.Summary()
	if s.Connections != 4 {
		t.Fatalf("expected 4 connections, got %d", s.Connections)
	}
	if s.MeanRTT != 150*time.Millisecond {
		t.Fatalf("expected mean 150ms, got %s", s.MeanRTT)
	}
	if s.PoorRatio != 0.5 {
		t.Fatalf("expected poor ratio 0.5, got %v", s.PoorRatio)
	}

	m.Remove(3)
	m.Remove(4)
	if s := m.Summary(); s.PoorRatio != 0 || s.Connections != 2 {
		t.Fatalf("unexpected summary after removal: %+v", s)
	}
	if got := m.Tier(3); got != TierExcellent {
		t.Fatalf("expected removed connection to read as excellent, got %s", got)
	}
}
