package test

import (
	"testing"
	"time"

	"github.com/fortytw2/leaktest"
)

// GuardTimeout is the time after which Guard aborts a test.
var GuardTimeout = 10 * time.Second

// Guard implements a test level timeout and checks that the test doesn't
// leak goroutines. Use it as defer test.Guard(t)().
func Guard(t *testing.T) func() {
	done := make(chan struct{})
	go func() {
		select {
		case <-time.After(GuardTimeout):
			DumpGoroutines()

			panic("test timeout")
		case <-done:
		}
	}()

	fn := leaktest.CheckTimeout(t, Timeout)

	return func() {
		close(done)
		fn()
	}
}
