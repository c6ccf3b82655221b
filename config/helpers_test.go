package config

import (
	"context"
	"testing"

	"github.com/grovetools/pulse/testutil"
	"github.com/sirupsen/logrus"
)

func testLogger() *logrus.Entry {
	return testutil.QuietLogger()
}

func contextWithCancel(t *testing.T) (context.Context, context.CancelFunc) {
	t.Helper()
	return context.WithCancel(context.Background())
}
