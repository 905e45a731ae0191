package testutil

import (
	"context"
	"os"
	"testing"
	"time"
)

func GetTestContext(t *testing.T, testTimeout time.Duration) (context.Context, context.CancelFunc) {
	timeoutStr, found := os.LookupEnv("TEST_CONTEXT_TIMEOUT")
	if found {
		if parsed, err := time.ParseDuration(timeoutStr); err == nil {
			testTimeout = parsed
		} else {
			t.Logf("ignoring invalid TEST_CONTEXT_TIMEOUT value %q: %v", timeoutStr, err)
		}
	}

	return context.WithTimeout(context.Background(), testTimeout)
}
