// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package testutil

import (
	"testing"

	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"

	"grimm.is/yodeler/internal/logging"
)

// Logger returns a debug-level logger that writes through t.Log.
func Logger(t zaptest.TestingT) *logging.Logger {
	return logging.FromZap(zaptest.NewLogger(t, zaptest.Level(zapcore.DebugLevel)))
}

// UseLogger routes the default logger through t.Log until the test ends.
func UseLogger(t testing.TB) {
	prev := logging.Default()
	logging.SetDefault(Logger(t))
	t.Cleanup(func() { logging.SetDefault(prev) })
}
