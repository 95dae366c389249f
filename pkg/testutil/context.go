package testutil

import (
	"context"
	"testing"
	"time"

	"onboard/pkg/requestcontext"
)

// Context returns a request context pinned to a fixed clock and correlation
// id, cancelled when the test finishes.
func Context(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	ctx = requestcontext.WithRequestID(ctx, "test-request")
	return requestcontext.WithTime(ctx, FixedTime())
}

// FixedTime is the deterministic clock used across unit tests.
func FixedTime() time.Time {
	return time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC)
}
