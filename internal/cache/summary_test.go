package cache

import (
	"context"
	"strings"
	"testing"
)

func TestDisabledCacheIsANoop(t *testing.T) {
	c := NewSummaryCache(nil, 0)
	if c.Enabled() {
		t.Fatalf("expected cache without client to be disabled")
	}
	var dest map[string]int
	hit, err := c.Get(context.Background(), "school", "grades", "term=1", &dest)
	if err != nil || hit {
		t.Fatalf("expected miss without error, got hit=%v err=%v", hit, err)
	}
	if err := c.Set(context.Background(), "school", "grades", "term=1", map[string]int{"a": 1}); err != nil {
		t.Fatalf("set on disabled cache: %v", err)
	}
	if err := c.Invalidate(context.Background(), "school"); err != nil {
		t.Fatalf("invalidate on disabled cache: %v", err)
	}
}

func TestSummaryKeyChangesWithVersionAndParams(t *testing.T) {
	base := summaryKey("s1", 0, "grades", "term=1")
	if !strings.HasPrefix(base, "academics:summary:s1:v0:grades:") {
		t.Fatalf("unexpected key layout %s", base)
	}
	if summaryKey("s1", 1, "grades", "term=1") == base {
		t.Fatalf("expected version bump to change key")
	}
	if summaryKey("s1", 0, "grades", "term=2") == base {
		t.Fatalf("expected params to change key")
	}
	if summaryKey("s1", 0, "grades", "term=1") != base {
		t.Fatalf("expected key to be stable")
	}
}
