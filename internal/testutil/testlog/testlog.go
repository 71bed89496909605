// Package testlog routes node logs through the test runner so failures
// carry the surrounding log context.
package testlog

import (
	"testing"

	"github.com/rs/zerolog"
)

func Logger(t *testing.T) zerolog.Logger {
	t.Helper()
	return zerolog.New(zerolog.NewTestWriter(t)).With().Timestamp().Logger()
}
