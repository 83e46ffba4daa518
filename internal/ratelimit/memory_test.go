package ratelimit

import (
	"context"
	"testing"
	"time"
)

func TestMemoryLimiterFixedWindow(t *testing.T) {
	limiter := NewMemoryLimiter()
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		result, errAllow := limiter.Allow(ctx, "uid:abc", 3, time.Minute, now)
		if errAllow != nil {
			t.Fatalf("Allow: %v", errAllow)
		}
		if !result.Allowed {
			t.Fatalf("attempt %d: expected allowed", i)
		}
		if result.Remaining != 3-i-1 {
			t.Fatalf("attempt %d: expected remaining %d, got %d", i, 3-i-1, result.Remaining)
		}
	}

	result, errAllow := limiter.Allow(ctx, "uid:abc", 3, time.Minute, now)
	if errAllow != nil {
		t.Fatalf("Allow: %v", errAllow)
	}
	if result.Allowed {
		t.Fatalf("expected fourth attempt to be blocked")
	}

	// Another key has its own budget.
	result, errAllow = limiter.Allow(ctx, "uid:other", 3, time.Minute, now)
	if errAllow != nil {
		t.Fatalf("Allow: %v", errAllow)
	}
	if !result.Allowed {
		t.Fatalf("expected other key to be allowed")
	}

	// The next window resets the count.
	result, errAllow = limiter.Allow(ctx, "uid:abc", 3, time.Minute, now.Add(time.Minute))
	if errAllow != nil {
		t.Fatalf("Allow: %v", errAllow)
	}
	if !result.Allowed {
		t.Fatalf("expected fresh window to be allowed")
	}
}

func TestMemoryLimiterZeroLimitAllows(t *testing.T) {
	limiter := NewMemoryLimiter()
	result, errAllow := limiter.Allow(context.Background(), "uid:abc", 0, time.Minute, time.Now())
	if errAllow != nil {
		t.Fatalf("Allow: %v", errAllow)
	}
	if !result.Allowed {
		t.Fatalf("expected zero limit to disable limiting")
	}
}

func TestManagerFallsBackToMemory(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	manager := NewManager(func() SettingsConfig {
		return SettingsConfig{Attempts: 1, Window: time.Minute}
	}, func() time.Time { return now }, nil)

	result, errAllow := manager.Allow(context.Background(), "uid:abc")
	if errAllow != nil {
		t.Fatalf("Allow: %v", errAllow)
	}
	if !result.Allowed {
		t.Fatalf("expected first attempt to be allowed")
	}
	result, errAllow = manager.Allow(context.Background(), "uid:abc")
	if errAllow != nil {
		t.Fatalf("Allow: %v", errAllow)
	}
	if result.Allowed {
		t.Fatalf("expected second attempt to be blocked")
	}
}

func TestManagerDisabledWithoutAttempts(t *testing.T) {
	manager := NewManager(func() SettingsConfig { return SettingsConfig{} }, nil, nil)
	result, errAllow := manager.Allow(context.Background(), "uid:abc")
	if errAllow != nil {
		t.Fatalf("Allow: %v", errAllow)
	}
	if !result.Allowed {
		t.Fatalf("expected limiter without attempts budget to allow")
	}
}

func TestKeyForUID(t *testing.T) {
	if key := KeyForUID("abc"); key != "uid:abc" {
		t.Fatalf("expected uid:abc, got %q", key)
	}
	if key := KeyForUID(""); key != "" {
		t.Fatalf("expected empty key for empty uid, got %q", key)
	}
}
