package testutil

import (
	"log"
	"os"
	"testing"
)

// TestLogger returns a logger tagged with the running test's name. Its
// output is reset to stderr once the test ends so goroutines that outlive
// the test never write through a redirected buffer.
func TestLogger(t *testing.T) *log.Logger {
	logger := log.New(os.Stdout, "[sarthi-test "+t.Name()+"] ", log.LstdFlags|log.Lmicroseconds)
	t.Cleanup(func() {
		logger.SetOutput(os.Stderr)
	})
	return logger
}
