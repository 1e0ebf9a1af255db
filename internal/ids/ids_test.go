package ids

import (
	"regexp"
	"testing"
	"time"
)

func TestNewFormat(t *testing.T) {
	now := time.UnixMilli(1736500000123)
	id := New("apt", now)
	if !regexp.MustCompile(`^apt_1736500000123_[0-9a-f]{9}$`).MatchString(id) {
		t.Fatalf("unexpected id %q", id)
	}
}

func TestNewUnique(t *testing.T) {
	now := time.Now()
	seen := make(map[string]struct{})
	for i := 0; i < 1000; i++ {
		id := New("call", now)
		if _, dup := seen[id]; dup {
			t.Fatalf("duplicate id %q", id)
		}
		seen[id] = struct{}{}
	}
}
