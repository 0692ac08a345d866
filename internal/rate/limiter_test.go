package rate

import (
	"context"
	"testing"
	"time"

	"github.com/dropDatabas3/backvault/internal/cache"
)

func TestFixedWindowEnforcesLimit(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	l := NewFixedWindow(cache.NewMemory(time.Hour), 3, time.Minute)

	for i := 0; i < 3; i++ {
		if !l.Allow(ctx, "1.2.3.4") {
			t.Fatalf("request %d should be allowed", i)
		}
	}
	if l.Allow(ctx, "1.2.3.4") {
		t.Fatal("fourth request should be rejected")
	}

	// Otra clave no comparte presupuesto.
	if !l.Allow(ctx, "5.6.7.8") {
		t.Fatal("different key should be allowed")
	}
}

func TestFixedWindowResets(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	current := time.Now()
	l := NewFixedWindow(cache.NewMemory(time.Hour), 1, time.Minute).
		WithClock(func() time.Time { return current })

	if !l.Allow(ctx, "k") {
		t.Fatal("first request should pass")
	}
	if l.Allow(ctx, "k") {
		t.Fatal("second request in window should fail")
	}

	current = current.Add(2 * time.Minute)
	if !l.Allow(ctx, "k") {
		t.Fatal("request in new window should pass")
	}
}
