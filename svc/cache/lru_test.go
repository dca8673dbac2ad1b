package cache

import (
	"testing"

	"codebin/pkg/domain"
)

func TestNewLRUBounds(t *testing.T) {
	if _, err := NewLRU(0); err == nil {
		t.Error("expected error for zero size")
	}
	if _, err := NewLRU(maxSize + 1); err == nil {
		t.Error("expected error for oversized cache")
	}
}

func TestLRUEvictsOldest(t *testing.T) {
	c, err := NewLRU(2)
	if err != nil {
		t.Fatal(err)
	}
	c.Add(&domain.Paste{ID: "aaaaa"})
	c.Add(&domain.Paste{ID: "bbbbb"})
	if _, ok := c.Get("aaaaa"); !ok {
		t.Fatal("expected aaaaa to be cached")
	}
	c.Add(&domain.Paste{ID: "ccccc"})

	if _, ok := c.Get("bbbbb"); ok {
		t.Error("bbbbb was least recently used and should be evicted")
	}
	if p, ok := c.Get("aaaaa"); !ok || p.ID != "aaaaa" {
		t.Error("aaaaa should survive eviction")
	}
	if c.Len() != 2 {
		t.Errorf("Len = %d, want 2", c.Len())
	}
}
