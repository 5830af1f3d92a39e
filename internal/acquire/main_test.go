package acquire

import (
	"testing"

	"go.uber.org/goleak"
)

// The collector fans out one goroutine per source; none may outlive Acquire.
func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}
