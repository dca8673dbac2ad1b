package util

import (
	"context"
	"testing"
)

func TestRequestIDFrom(t *testing.T) {
	const inbound = "6f1c2b8e-3d4a-4f6b-9a1e-2c3d4e5f6a7b"
	if got := RequestIDFrom(inbound); got != inbound {
		t.Errorf("well-formed id replaced: %s", got)
	}
	for _, h := range []string{"", "not-a-uuid", "<script>"} {
		got := RequestIDFrom(h)
		if got == h || len(got) != 36 {
			t.Errorf("RequestIDFrom(%q) = %q", h, got)
		}
	}
}

func TestRequestIDContext(t *testing.T) {
	if got := GetRequestID(context.Background()); got != "" {
		t.Fatalf("empty context returned %q", got)
	}
	ctx := SetRequestID(context.Background(), "abc")
	if got := GetRequestID(ctx); got != "abc" {
		t.Fatalf("got %q", got)
	}
}
