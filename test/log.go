package test

import (
	"os"

	"github.com/btcsuite/btclog"
)

// logger writes test fake activity to stdout. It stays quiet unless a test
// raises its level.
var (
	backendLog = btclog.NewBackend(logWriter{})
	logger     = backendLog.Logger("TEST")
)

func init() {
	logger.SetLevel(btclog.LevelOff)
}

// SetLogLevel changes the verbosity of the test fakes.
func SetLogLevel(level btclog.Level) {
	logger.SetLevel(level)
}

// logWriter implements an io.Writer that outputs to standard output.
type logWriter struct{}

func (logWriter) Write(p []byte) (int, error) {
	os.Stdout.Write(p)
	return len(p), nil
}
