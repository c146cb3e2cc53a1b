package correlation

import (
	"context"
	"fmt"
	"testing"
	"time"
)

func TestMemoryDedup_Seen(t *testing.T) {
	d := NewMemoryDedup(5 * time.Minute)
	ctx := context.Background()
	now := time.Unix(1000, 0)

	if d.Seen(ctx, "abc", now) {
		t.Error("first Seen() = true, want false")
	}
	if !d.Seen(ctx, "abc", now.Add(time.Minute)) {
		t.Error("second Seen() within horizon = false, want true")
	}
	if d.Seen(ctx, "other", now) {
		t.Error("different id reported as seen")
	}
}

func TestMemoryDedup_HorizonExpiry(t *testing.T) {
	d := NewMemoryDedup(5 * time.Minute)
	ctx := context.Background()
	now := time.Unix(1000, 0)

	d.Seen(ctx, "abc", now)
	if d.Seen(ctx, "abc", now.Add(6*time.Minute)) {
		t.Error("Seen() past the horizon = true, want false")
	}
}

func TestMemoryDedup_Compaction(t *testing.T) {
	d := NewMemoryDedup(time.Minute)
	ctx := context.Background()
	now := time.Unix(1000, 0)

	for i := 0; i < 10001; i++ {
		d.Seen(ctx, fmt.Sprintf("id-%d", i), now)
	}
	// One more insert far in the future trips compaction of everything old.
	d.Seen(ctx, "fresh", now.Add(time.Hour))

	if got := d.Len(); got > 2 {
		t.Errorf("Len() after compaction = %d, want <= 2", got)
	}
}
