package ratelimit

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func testLimiter(current *time.Time, opts ...Option) *Limiter {
	opts = append(opts, WithNow(func() time.Time { return *current }))
	return New(opts...)
}

func TestSlidingWindowSequence(t *testing.T) {
	current := time.Unix(1_700_000_000, 0).UTC()
	l := testLimiter(&current)
	defer l.Close()

	for i := 0; i < 5; i++ {
		res := l.Check("203.0.113.9", BucketLogin)
		if !res.Allowed {
			t.Fatalf("check %d should be allowed", i+1)
		}
		if res.Remaining != 5-(i+1) {
			t.Fatalf("check %d: remaining=%d, want %d", i+1, res.Remaining, 5-(i+1))
		}
	}

	res := l.Check("203.0.113.9", BucketLogin)
	if res.Allowed {
		t.Fatal("sixth check within the window must be denied")
	}
	if res.Remaining != 0 {
		t.Fatalf("denied check: remaining=%d, want 0", res.Remaining)
	}
	if res.RetryAfter != 5*time.Minute {
		t.Fatalf("RetryAfter=%v, want window length", res.RetryAfter)
	}

	// After the window elapses the key recovers.
	current = current.Add(5*time.Minute + time.Second)
	if res := l.Check("203.0.113.9", BucketLogin); !res.Allowed {
		t.Fatal("check after the window elapsed should be allowed")
	}
}

// A denied check must not consume budget: once the oldest hits age out, the
// client gets exactly the freed capacity back regardless of how many denied
// attempts happened in between.
func TestDeniedChecksDoNotConsume(t *testing.T) {
	current := time.Unix(1_700_000_000, 0).UTC()
	l := testLimiter(&current)
	defer l.Close()

	for i := 0; i < 5; i++ {
		l.Check("198.51.100.4", BucketLogin)
		current = current.Add(time.Second)
	}
	for i := 0; i < 20; i++ {
		if res := l.Check("198.51.100.4", BucketLogin); res.Allowed {
			t.Fatal("over-capacity check must be denied")
		}
	}

	// First hit was at t0; it ages out at t0+window.
	current = current.Add(5 * time.Minute)
	if res := l.Check("198.51.100.4", BucketLogin); !res.Allowed {
		t.Fatal("expected exactly one slot back after the oldest hit aged out")
	}
	if res := l.Check("198.51.100.4", BucketLogin); res.Allowed {
		t.Fatal("only one slot should have been freed")
	}
}

func TestBucketsAreIndependent(t *testing.T) {
	current := time.Unix(1_700_000_000, 0).UTC()
	l := testLimiter(&current)
	defer l.Close()

	for i := 0; i < 5; i++ {
		l.Check("203.0.113.9", BucketLogin)
	}
	if res := l.Check("203.0.113.9", BucketLogin); res.Allowed {
		t.Fatal("login bucket exhausted")
	}
	if res := l.Check("203.0.113.9", BucketAPI); !res.Allowed {
		t.Fatal("api bucket must be unaffected by login bucket")
	}
	if res := l.Check("203.0.113.10", BucketLogin); !res.Allowed {
		t.Fatal("another client must be unaffected")
	}
}

func TestWhitelistBypassesLimiter(t *testing.T) {
	current := time.Unix(1_700_000_000, 0).UTC()
	l := testLimiter(&current)
	defer l.Close()

	for i := 0; i < 50; i++ {
		if res := l.Check("127.0.0.1", BucketLogin); !res.Allowed {
			t.Fatal("loopback addresses bypass the limiter")
		}
	}
}

func TestDynamicPolicy(t *testing.T) {
	current := time.Unix(1_700_000_000, 0).UTC()
	l := testLimiter(&current)
	defer l.Close()

	p := Policy{Capacity: 2, Window: 10 * time.Second}
	if res := l.CheckWith("203.0.113.9", "export", p); !res.Allowed {
		t.Fatal("first dynamic check allowed")
	}
	if res := l.CheckWith("203.0.113.9", "export", p); !res.Allowed {
		t.Fatal("second dynamic check allowed")
	}
	if res := l.CheckWith("203.0.113.9", "export", p); res.Allowed {
		t.Fatal("third dynamic check denied")
	}
}

// Regression test for the check-then-record race: N concurrent checks
// against an empty bucket admit exactly capacity of them, never more.
func TestConcurrentChecksAdmitExactlyCapacity(t *testing.T) {
	current := time.Unix(1_700_000_000, 0).UTC()
	l := testLimiter(&current, WithPolicy("burst", Policy{Capacity: 10, Window: time.Minute}))
	defer l.Close()

	const workers = 64
	var admitted atomic.Int64
	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			if res := l.Check("203.0.113.9", "burst"); res.Allowed {
				admitted.Add(1)
			}
		}()
	}
	close(start)
	wg.Wait()

	if got := admitted.Load(); got != 10 {
		t.Fatalf("admitted %d requests, want exactly capacity 10", got)
	}
}

func TestResetAtTracksOldestHit(t *testing.T) {
	base := time.Unix(1_700_000_000, 0).UTC()
	current := base
	l := testLimiter(&current)
	defer l.Close()

	res := l.Check("203.0.113.9", BucketLogin)
	if !res.ResetAt.Equal(base.Add(5 * time.Minute)) {
		t.Fatalf("ResetAt=%v, want first hit + window", res.ResetAt)
	}

	current = base.Add(time.Minute)
	res = l.Check("203.0.113.9", BucketLogin)
	if !res.ResetAt.Equal(base.Add(5 * time.Minute)) {
		t.Fatalf("ResetAt should still track the oldest hit, got %v", res.ResetAt)
	}
}
