package limiter_test

import (
	"testing"
	"time"

	"github.com/xraph/workq/limiter"
)

// ---------------------------------------------------------------------------
// Exponential
// ---------------------------------------------------------------------------

func TestExponential_DoublesPerAttempt(t *testing.T) {
	l := limiter.NewExponential[string](time.Millisecond, 1000*time.Second)

	for _, want := range []time.Duration{
		1 * time.Millisecond,
		2 * time.Millisecond,
		4 * time.Millisecond,
		8 * time.Millisecond,
		16 * time.Millisecond,
	} {
		if got := l.When("one"); got != want {
			t.Errorf("When = %v, want %v", got, want)
		}
	}

	if got := l.NumRequeues("one"); got != 5 {
		t.Errorf("NumRequeues = %d, want 5", got)
	}
}

func TestExponential_CapsAtMaxBeforeOverflow(t *testing.T) {
	l := limiter.NewExponential[string](time.Second, 1000*time.Second)

	// Push the attempt count far past the point where base*2^k overflows
	// int64 nanoseconds; every result must stay clamped at the max.
	for i := 0; i < 128; i++ {
		d := l.When("one")
		if d < 0 {
			t.Fatalf("attempt %d: negative delay %v (overflow)", i, d)
		}
		if d > 1000*time.Second {
			t.Fatalf("attempt %d: delay %v above max", i, d)
		}
	}
	if got := l.When("one"); got != 1000*time.Second {
		t.Errorf("expected clamp at 1000s, got %v", got)
	}
}

func TestExponential_ForgetResets(t *testing.T) {
	l := limiter.NewExponential[string](time.Millisecond, time.Second)

	l.When("one")
	l.When("one")
	l.Forget("one")

	if got := l.NumRequeues("one"); got != 0 {
		t.Errorf("NumRequeues after Forget = %d, want 0", got)
	}
	if got := l.When("one"); got != time.Millisecond {
		t.Errorf("When after Forget = %v, want %v", got, time.Millisecond)
	}
}

func TestExponential_ItemsAreIndependent(t *testing.T) {
	l := limiter.NewExponential[string](time.Millisecond, time.Second)

	l.When("one")
	l.When("one")

	if got := l.When("two"); got != time.Millisecond {
		t.Errorf("fresh item delay = %v, want %v", got, time.Millisecond)
	}
}

// ---------------------------------------------------------------------------
// FastSlow
// ---------------------------------------------------------------------------

func TestFastSlow_SwitchesAfterThreshold(t *testing.T) {
	l := limiter.NewFastSlow[string](5*time.Millisecond, 10*time.Second, 3)

	for i := 0; i < 3; i++ {
		if got := l.When("one"); got != 5*time.Millisecond {
			t.Errorf("attempt %d: When = %v, want fast delay", i+1, got)
		}
	}
	if got := l.When("one"); got != 10*time.Second {
		t.Errorf("attempt 4: When = %v, want slow delay", got)
	}
	if got := l.When("one"); got != 10*time.Second {
		t.Errorf("attempt 5: When = %v, want slow delay", got)
	}

	if got := l.NumRequeues("one"); got != 5 {
		t.Errorf("NumRequeues = %d, want 5", got)
	}
}

func TestFastSlow_ForgetResets(t *testing.T) {
	l := limiter.NewFastSlow[string](5*time.Millisecond, 10*time.Second, 1)

	l.When("one")
	l.When("one")
	l.Forget("one")

	if got := l.When("one"); got != 5*time.Millisecond {
		t.Errorf("When after Forget = %v, want fast delay", got)
	}
}

// ---------------------------------------------------------------------------
// TokenBucket
// ---------------------------------------------------------------------------

func TestTokenBucket_BurstThenThrottles(t *testing.T) {
	l := limiter.NewTokenBucket[string](1, 1)

	// The burst token admits the first item immediately.
	if got := l.When("one"); got > 10*time.Millisecond {
		t.Errorf("first When = %v, want ~0", got)
	}

	// Subsequent reservations queue up behind the 1 qps refill.
	second := l.When("two")
	if second < 500*time.Millisecond || second > 1100*time.Millisecond {
		t.Errorf("second When = %v, want ~1s", second)
	}
	third := l.When("three")
	if third <= second {
		t.Errorf("third When = %v, want later than %v", third, second)
	}
}

func TestTokenBucket_HasNoPerItemState(t *testing.T) {
	l := limiter.NewTokenBucket[string](10, 100)

	l.When("one")
	l.When("one")
	l.Forget("one")

	if got := l.NumRequeues("one"); got != 0 {
		t.Errorf("NumRequeues = %d, want 0", got)
	}
}

// ---------------------------------------------------------------------------
// MaxOf
// ---------------------------------------------------------------------------

func TestMaxOf_ReturnsWorstAndChargesAll(t *testing.T) {
	slow := limiter.NewFastSlow[string](2*time.Second, 2*time.Second, 10)
	slower := limiter.NewFastSlow[string](5*time.Second, 5*time.Second, 10)
	l := limiter.NewMaxOf[string](slow, slower)

	if got := l.When("one"); got != 5*time.Second {
		t.Errorf("When = %v, want 5s", got)
	}

	// Both sub-limiters advanced, not only the winner.
	if got := slow.NumRequeues("one"); got != 1 {
		t.Errorf("first sub-limiter NumRequeues = %d, want 1", got)
	}
	if got := slower.NumRequeues("one"); got != 1 {
		t.Errorf("second sub-limiter NumRequeues = %d, want 1", got)
	}
	if got := l.NumRequeues("one"); got != 1 {
		t.Errorf("combined NumRequeues = %d, want 1", got)
	}
}

func TestMaxOf_ForgetClearsAllSubLimiters(t *testing.T) {
	first := limiter.NewExponential[string](time.Millisecond, time.Second)
	second := limiter.NewExponential[string](time.Millisecond, time.Second)
	l := limiter.NewMaxOf[string](first, second)

	l.When("one")
	l.When("one")
	l.Forget("one")

	if got := first.NumRequeues("one"); got != 0 {
		t.Errorf("first sub-limiter NumRequeues = %d, want 0", got)
	}
	if got := second.NumRequeues("one"); got != 0 {
		t.Errorf("second sub-limiter NumRequeues = %d, want 0", got)
	}
}

// ---------------------------------------------------------------------------
// Default
// ---------------------------------------------------------------------------

func TestDefault_BacksOffExponentially(t *testing.T) {
	l := limiter.Default[string]()

	// Within the token bucket's burst the exponential term dominates.
	for _, want := range []time.Duration{
		5 * time.Millisecond,
		10 * time.Millisecond,
		20 * time.Millisecond,
	} {
		if got := l.When("one"); got != want {
			t.Errorf("When = %v, want %v", got, want)
		}
	}
	if got := l.NumRequeues("one"); got != 3 {
		t.Errorf("NumRequeues = %d, want 3", got)
	}

	l.Forget("one")
	if got := l.When("one"); got != 5*time.Millisecond {
		t.Errorf("When after Forget = %v, want 5ms", got)
	}
}
