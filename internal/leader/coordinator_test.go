package leader

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/zenjugit/zeppelin/internal/transport"
	"github.com/zenjugit/zeppelin/pkg/errs"
)

type fakeSource struct {
	mu   sync.Mutex
	ip   string
	port int
	ok   bool
}

func (f *fakeSource) set(ip string, port int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ip, f.port, f.ok = ip, port, true
}

func (f *fakeSource) clear() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ok = false
}

func (f *fakeSource) Leader() (string, int, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.ip, f.port, f.ok
}

func testConfig() *Config {
	return &Config{
		LocalIP:      "127.0.0.1",
		LocalPort:    9221,
		CmdPortShift: 100,
		PollInterval: 5 * time.Millisecond,
		DialTimeout:  100 * time.Millisecond,
		SendTimeout:  100 * time.Millisecond,
		RecvTimeout:  100 * time.Millisecond,
	}
}

func TestDiscoverBlocksUntilElected(t *testing.T) {
	src := &fakeSource{}
	c := NewCoordinator(src, testConfig(), func() error { return nil }, zap.NewNop())

	go func() {
		time.Sleep(20 * time.Millisecond)
		src.set("10.0.0.1", 9221)
	}()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	ip, port, ok := c.Discover(ctx)
	require.True(t, ok)
	assert.Equal(t, "10.0.0.1", ip)
	assert.Equal(t, 9221, port)
}

func TestDiscoverCancellable(t *testing.T) {
	src := &fakeSource{}
	src.clear()
	c := NewCoordinator(src, testConfig(), func() error { return nil }, zap.NewNop())

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	_, _, ok := c.Discover(ctx)
	assert.False(t, ok)
}

func TestReconcileSelfRunsTakeoverOnce(t *testing.T) {
	src := &fakeSource{}
	src.set("127.0.0.1", 9221)

	takeovers := 0
	c := NewCoordinator(src, testConfig(), func() error {
		takeovers++
		return nil
	}, zap.NewNop())

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		isLeader, err := c.Reconcile(ctx)
		require.NoError(t, err)
		assert.True(t, isLeader)
	}
	assert.Equal(t, 1, takeovers, "takeover runs only on the first observation")
	assert.Equal(t, StateSelf, c.State())
	assert.True(t, c.IsSelf())
}

func TestReconcileRemoteUnreachableStaysDisconnected(t *testing.T) {
	src := &fakeSource{}
	// Nothing listens on this port.
	src.set("127.0.0.1", 1)

	c := NewCoordinator(src, testConfig(), func() error { return nil }, zap.NewNop())

	isLeader, err := c.Reconcile(context.Background())
	require.NoError(t, err)
	assert.False(t, isLeader)
	assert.Equal(t, StateDisconnected, c.State())
}

func TestReconcileConnectsAndRedirects(t *testing.T) {
	leaderSrv := transport.NewServer("127.0.0.1:0", func(req *transport.Request) *transport.Response {
		return req.OK()
	}, zap.NewNop())
	go leaderSrv.Start()
	defer leaderSrv.Stop()
	waitListening(t, leaderSrv)

	_, port, err := splitAddr(leaderSrv.Addr())
	require.NoError(t, err)

	src := &fakeSource{}
	cfg := testConfig()
	cfg.CmdPortShift = 1
	// The log reports the leader's base port; the command port is one up.
	src.set("127.0.0.1", port-1)

	c := NewCoordinator(src, cfg, func() error { return nil }, zap.NewNop())

	isLeader, err := c.Reconcile(context.Background())
	require.NoError(t, err)
	require.False(t, isLeader)
	require.Equal(t, StateConnected, c.State())

	req := transport.NewRequest(transport.CmdPing)
	resp, err := c.Redirect(req)
	require.NoError(t, err)
	assert.Equal(t, transport.CodeOK, resp.Code)
	assert.Equal(t, req.ID, resp.ID)

	// Same leader on the next tick: no reconnect churn.
	_, err = c.Reconcile(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StateConnected, c.State())
}

func TestRedirectWithoutConnection(t *testing.T) {
	src := &fakeSource{}
	c := NewCoordinator(src, testConfig(), func() error { return nil }, zap.NewNop())

	_, err := c.Redirect(transport.NewRequest(transport.CmdPing))
	assert.ErrorIs(t, err, errs.ErrNoLeaderConn)
}

func TestRedirectFailureTearsDown(t *testing.T) {
	leaderSrv := transport.NewServer("127.0.0.1:0", func(req *transport.Request) *transport.Response {
		return req.OK()
	}, zap.NewNop())
	go leaderSrv.Start()
	waitListening(t, leaderSrv)

	_, port, err := splitAddr(leaderSrv.Addr())
	require.NoError(t, err)

	src := &fakeSource{}
	cfg := testConfig()
	cfg.CmdPortShift = 1
	src.set("127.0.0.1", port-1)

	c := NewCoordinator(src, cfg, func() error { return nil }, zap.NewNop())
	_, err = c.Reconcile(context.Background())
	require.NoError(t, err)
	require.Equal(t, StateConnected, c.State())

	// Kill the leader; the next redirect must fail and tear down.
	leaderSrv.Stop()

	_, err = c.Redirect(transport.NewRequest(transport.CmdPing))
	require.Error(t, err)
	assert.Equal(t, StateDisconnected, c.State())

	_, err = c.Redirect(transport.NewRequest(transport.CmdPing))
	assert.ErrorIs(t, err, errs.ErrNoLeaderConn)
}
