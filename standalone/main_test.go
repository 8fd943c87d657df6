package standalone

import (
	"testing"

	"go.uber.org/goleak"
)

// Every test waits for the tasks it started: no task goroutine may survive.
func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}
