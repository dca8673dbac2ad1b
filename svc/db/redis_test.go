package db

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"codebin/pkg/domain"

	"github.com/redis/go-redis/v9"
)

func TestPasteEncodingKeepsPinHash(t *testing.T) {
	created := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	in := &domain.Paste{ID: "abc2345", Title: "T", Content: "C", PinHash: "feed", CreatedAt: created}
	data, err := encodePaste(in)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `"pin_hash":"feed"`) {
		t.Fatalf("cache entry lost the pin hash: %s", data)
	}
	out, err := decodePaste(data)
	if err != nil {
		t.Fatal(err)
	}
	if out.PinHash != "feed" || out.Content != "C" || !out.CreatedAt.Equal(created) {
		t.Fatalf("decoded %+v", out)
	}
}

// Runs against a live server only when REDIS_TEST_URL is set.
func TestRedisRoundTrip(t *testing.T) {
	url := os.Getenv("REDIS_TEST_URL")
	if url == "" {
		t.Skip("REDIS_TEST_URL not set")
	}
	opt, err := redis.ParseURL(url)
	if err != nil {
		t.Fatal(err)
	}
	r := NewRedisFromClient(redis.NewClient(opt), time.Second, time.Minute)
	defer r.Close()
	ctx := context.Background()
	if err := r.Ping(ctx); err != nil {
		t.Skipf("redis unavailable: %v", err)
	}

	id := "t" + time.Now().Format("150405")
	miss, err := r.GetPaste(ctx, id)
	if err != nil || miss != nil {
		t.Fatalf("expected clean miss, got %+v, %v", miss, err)
	}
	if err := r.CachePaste(ctx, &domain.Paste{ID: id, Content: "cached", CreatedAt: time.Now()}); err != nil {
		t.Fatal(err)
	}
	hit, err := r.GetPaste(ctx, id)
	if err != nil || hit == nil || hit.Content != "cached" {
		t.Fatalf("expected hit, got %+v, %v", hit, err)
	}
}
