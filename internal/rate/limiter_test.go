package rate

import (
	"fmt"
	"testing"
	"time"
)

func TestMemoryLimiterWindow(t *testing.T) {
	l := NewMemory()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }

	for i := 0; i < 3; i++ {
		if ok, _ := l.Allow("vote:u1", 3, time.Minute); !ok {
			t.Fatalf("request %d should be allowed", i+1)
		}
	}
	ok, retry := l.Allow("vote:u1", 3, time.Minute)
	if ok {
		t.Fatalf("fourth request should be limited")
	}
	if retry != time.Minute {
		t.Fatalf("unexpected retry after %v", retry)
	}
	if ok, _ := l.Allow("vote:u2", 3, time.Minute); !ok {
		t.Fatalf("other keys must not share a bucket")
	}

	now = now.Add(time.Minute)
	if ok, _ := l.Allow("vote:u1", 3, time.Minute); !ok {
		t.Fatalf("request after reset should be allowed")
	}
}

func TestMemoryLimiterDisabled(t *testing.T) {
	l := NewMemory()
	for i := 0; i < 10; i++ {
		if ok, _ := l.Allow("k", 0, time.Minute); !ok {
			t.Fatalf("zero limit means unlimited")
		}
	}
}

func TestMemoryLimiterSweepsExpiredBuckets(t *testing.T) {
	l := NewMemory()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }

	for i := 0; i < sweepEvery-1; i++ {
		l.Allow(fmt.Sprintf("ip:%d", i), 5, time.Second)
	}
	now = now.Add(2 * time.Second)
	l.Allow("ip:last", 5, time.Second)

	if len(l.buckets) != 1 {
		t.Fatalf("expected expired buckets swept, %d remain", len(l.buckets))
	}
}
