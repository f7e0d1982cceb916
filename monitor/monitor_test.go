package monitor

import (
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
)

func TestFollowCountsBytes(t *testing.T) {
	m := New("/dev/null", 115200, zap.NewNop())
	go m.follow(strings.NewReader("hello\nworld\n"))
	m.Wait()
	// line bytes plus one newline each
	if got := m.Bytes(); got != 12 {
		t.Fatal("wrong byte count:", got)
	}
}

func TestStopEndsSampling(t *testing.T) {
	m := New("/dev/null", 115200, nil)
	done := make(chan struct{})
	go func() {
		m.sampleRate()
		close(done)
	}()
	m.Stop()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sampleRate did not exit after Stop")
	}
}

func TestThroughputEmpty(t *testing.T) {
	m := New("/dev/null", 115200, nil)
	if got := m.Throughput(10); got != 0 {
		t.Fatal("expected zero throughput, got", got)
	}
}
