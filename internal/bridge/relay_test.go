package bridge

import (
	"sync"
	"testing"
	"time"

	"github.com/robiparvez/activity-tracker-desktop-app/internal/export"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProgressRelay_SlowSenderDoesNotBlockPush(t *testing.T) {
	var (
		mu   sync.Mutex
		seen []int64
	)
	entered := make(chan struct{}, 1)
	unblock := make(chan struct{})
	relay := newProgressRelay(func(p export.Progress) {
		select {
		case entered <- struct{}{}:
		default:
		}
		<-unblock
		mu.Lock()
		seen = append(seen, p.Current)
		mu.Unlock()
	})

	relay.push(export.Progress{Current: 0})
	<-entered

	pushed := make(chan struct{})
	go func() {
		for i := int64(1); i <= 100; i++ {
			relay.push(export.Progress{Status: export.StatusExporting, Current: i})
		}
		close(pushed)
	}()
	select {
	case <-pushed:
	case <-time.After(time.Second):
		t.Fatal("push blocked on a stalled sender")
	}

	close(unblock)
	relay.close()

	mu.Lock()
	defer mu.Unlock()
	require.NotEmpty(t, seen)
	assert.Equal(t, int64(0), seen[0])
	assert.Equal(t, int64(100), seen[len(seen)-1], "the latest report is delivered")
	assert.LessOrEqual(t, len(seen), 3)
}

func TestProgressRelay_PushAfterCloseIsDropped(t *testing.T) {
	var calls int
	relay := newProgressRelay(func(export.Progress) { calls++ })
	relay.push(export.Progress{Current: 1})
	relay.close()
	relay.push(export.Progress{Current: 2})
	assert.Equal(t, 1, calls)
}

func TestProgressRelay_CloseWithoutReports(t *testing.T) {
	relay := newProgressRelay(func(export.Progress) { t.Error("unexpected send") })
	done := make(chan struct{})
	go func() {
		relay.close()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("close did not return")
	}
}
