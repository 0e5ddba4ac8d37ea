package daemon

import (
	"bytes"
	"context"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/robiparvez/activity-tracker-desktop-app/internal/bridge"
	"github.com/robiparvez/activity-tracker-desktop-app/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// lockedBuffer is written by the daemon goroutine and read by the test.
type lockedBuffer struct {
	mu sync.Mutex
	b  bytes.Buffer
}

func (l *lockedBuffer) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.b.Write(p)
}

func (l *lockedBuffer) String() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.b.String()
}

func freeAddr(t *testing.T) string {
	t.Helper()
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := lis.Addr().String()
	require.NoError(t, lis.Close())
	return addr
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := &config.Config{}
	cfg.LoadDefaults()
	cfg.DataDir = t.TempDir()
	cfg.SourcePath = cfg.DataDir + "/missing.db"
	cfg.BridgeAddr = "127.0.0.1:0"
	return cfg
}

func TestNewApp_GeneratesSecret(t *testing.T) {
	a, err := NewApp(testConfig(t), &bytes.Buffer{})
	require.NoError(t, err)
	defer a.closer.Close()
	assert.Len(t, a.secret, 2*secretBytes)

	cfg := testConfig(t)
	cfg.BridgeSecret = "fixed"
	b, err := NewApp(cfg, &bytes.Buffer{})
	require.NoError(t, err)
	defer b.closer.Close()
	assert.Equal(t, []byte("fixed"), b.secret)
}

func TestRun_PrintsTokenAndStops(t *testing.T) {
	var out lockedBuffer
	a, err := NewApp(testConfig(t), &out)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	time.Sleep(150 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("daemon did not stop after context cancel")
	}
	assert.True(t, strings.HasPrefix(out.String(), "ACTIVITY_TOKEN="))
}

func TestRun_BadAddress(t *testing.T) {
	cfg := testConfig(t)
	cfg.BridgeAddr = "127.0.0.1:99999"
	a, err := NewApp(cfg, &bytes.Buffer{})
	require.NoError(t, err)
	require.Error(t, a.Run(context.Background()))
}

// The printed token authenticates against the daemon's bridge.
func TestRun_TokenAuthenticates(t *testing.T) {
	cfg := testConfig(t)
	cfg.BridgeAddr = freeAddr(t)
	var out lockedBuffer
	a, err := NewApp(cfg, &out)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	require.Eventually(t, func() bool { return strings.Contains(out.String(), "\n") }, time.Second, 10*time.Millisecond)
	token := strings.TrimSpace(strings.TrimPrefix(out.String(), "ACTIVITY_TOKEN="))

	c, err := bridge.NewClient(cfg.BridgeAddr, token)
	require.NoError(t, err)
	defer c.Close()

	require.Eventually(t, func() bool {
		_, err := c.GetConfig(context.Background())
		return err == nil
	}, 2*time.Second, 20*time.Millisecond)
}
