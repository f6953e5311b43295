package search

import (
	"context"
	"testing"
	"time"
)

func TestRateLimiter_BackoffIncreasesUpToCeiling(t *testing.T) {
	rl := NewRateLimiter(100*time.Millisecond, 500*time.Millisecond, 2.0)

	prev := rl.Delay()
	for i := 0; i < 3; i++ {
		rl.Failure()
		cur := rl.Delay()
		if cur <= prev && cur != 500*time.Millisecond {
			t.Errorf("failure %d: delay %v did not increase from %v", i+1, cur, prev)
		}
		if cur > 500*time.Millisecond {
			t.Errorf("failure %d: delay %v exceeds ceiling", i+1, cur)
		}
		prev = cur
	}

	if rl.Failures() != 3 {
		t.Errorf("failure count = %d, want 3", rl.Failures())
	}

	// More failures stay pinned at the ceiling.
	rl.Failure()
	if rl.Delay() != 500*time.Millisecond {
		t.Errorf("delay = %v, want pinned at ceiling", rl.Delay())
	}
}

func TestRateLimiter_SuccessResetsToFloor(t *testing.T) {
	rl := NewRateLimiter(100*time.Millisecond, time.Minute, 2.0)

	for i := 0; i < 5; i++ {
		rl.Failure()
	}
	if rl.Delay() == 100*time.Millisecond {
		t.Fatal("setup: delay should have grown")
	}

	// One success after any failure streak fully resets backoff; there is
	// no gradual decay.
	rl.Success()
	if rl.Delay() != 100*time.Millisecond {
		t.Errorf("delay = %v, want floor after success", rl.Delay())
	}
	if rl.Failures() != 0 {
		t.Errorf("failure count = %d, want 0 after success", rl.Failures())
	}
}

func TestRateLimiter_WaitSpacesRequests(t *testing.T) {
	rl := NewRateLimiter(50*time.Millisecond, time.Second, 2.0)

	if err := rl.Wait(context.Background()); err != nil {
		t.Fatalf("first wait: %v", err)
	}

	start := time.Now()
	if err := rl.Wait(context.Background()); err != nil {
		t.Fatalf("second wait: %v", err)
	}
	if elapsed := time.Since(start); elapsed < 40*time.Millisecond {
		t.Errorf("second wait returned after %v, want at least ~50ms spacing", elapsed)
	}
}

func TestRateLimiter_WaitHonorsContext(t *testing.T) {
	rl := NewRateLimiter(time.Minute, time.Hour, 2.0)

	if err := rl.Wait(context.Background()); err != nil {
		t.Fatalf("first wait: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	start := time.Now()
	err := rl.Wait(ctx)
	if err == nil {
		t.Fatal("expected a context error from a cancelled wait")
	}
	if time.Since(start) > time.Second {
		t.Error("cancelled wait blocked far longer than the context deadline")
	}
}
