// Package leader tracks which process the replicated log has elected and
// keeps this process in one of three states: disconnected from the leader,
// connected to a remote leader, or being the leader itself.
package leader

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/zenjugit/zeppelin/internal/metrics"
	"github.com/zenjugit/zeppelin/internal/transport"
	"github.com/zenjugit/zeppelin/pkg/addr"
	"github.com/zenjugit/zeppelin/pkg/errs"
)

// State is the coordinator's connection state.
type State int

const (
	StateDisconnected State = iota
	StateConnected
	StateSelf
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnected:
		return "connected"
	case StateSelf:
		return "self"
	default:
		return "unknown"
	}
}

// Source answers leader queries against the replicated log.
type Source interface {
	Leader() (ip string, port int, ok bool)
}

// Config holds the tunables for leader discovery and the leader connection.
type Config struct {
	LocalIP   string
	LocalPort int

	// CmdPortShift is added to a leader's base port to reach its command
	// port.
	CmdPortShift int

	PollInterval time.Duration
	DialTimeout  time.Duration
	SendTimeout  time.Duration
	RecvTimeout  time.Duration
}

// DefaultConfig returns sensible defaults matching the server's cron cadence.
func DefaultConfig() *Config {
	return &Config{
		CmdPortShift: 100,
		PollInterval: time.Second,
		DialTimeout:  time.Second,
		SendTimeout:  time.Second,
		RecvTimeout:  time.Second,
	}
}

// Coordinator discovers the elected leader, holds the follower-side
// connection to it, and runs the takeover hook the first time it observes
// that this process has been elected.
type Coordinator struct {
	source Source
	cfg    *Config
	logger *zap.Logger

	// onTakeover rebuilds leader-local state (alive table, cached
	// version) when this process becomes leader.
	onTakeover func() error

	mu            sync.Mutex
	state         State
	leaderIP      string
	leaderCmdPort int
	cli           *transport.Client
}

func NewCoordinator(source Source, cfg *Config, onTakeover func() error, logger *zap.Logger) *Coordinator {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	return &Coordinator{
		source:     source,
		cfg:        cfg,
		logger:     logger,
		onTakeover: onTakeover,
		state:      StateDisconnected,
	}
}

// Discover blocks until the replicated log reports an elected leader or ctx
// is cancelled. It is one of the two sanctioned unbounded wait loops.
func (c *Coordinator) Discover(ctx context.Context) (string, int, bool) {
	ticker := time.NewTicker(c.cfg.PollInterval)
	defer ticker.Stop()

	for {
		if ip, port, ok := c.source.Leader(); ok {
			return ip, port, true
		}
		c.logger.Info("waiting for leader election")
		select {
		case <-ctx.Done():
			return "", 0, false
		case <-ticker.C:
		}
	}
}

// Reconcile is called on each liveness tick. It reports whether this
// process is currently the leader.
func (c *Coordinator) Reconcile(ctx context.Context) (bool, error) {
	ip, port, ok := c.Discover(ctx)
	if !ok {
		return false, ctx.Err()
	}
	cmdPort := port + c.cfg.CmdPortShift

	c.mu.Lock()
	defer c.mu.Unlock()

	self := ip == c.cfg.LocalIP && port == c.cfg.LocalPort
	if self {
		if c.state == StateSelf {
			return true, nil
		}
		c.teardownLocked()
		c.logger.Info("becoming leader", zap.String("ip", ip), zap.Int("port", port))
		if err := c.onTakeover(); err != nil {
			return false, fmt.Errorf("leader takeover: %w", err)
		}
		c.state = StateSelf
		metrics.IsLeader.Set(1)
		c.logger.Info("became leader")
		return true, nil
	}

	if c.state == StateConnected && ip == c.leaderIP && cmdPort == c.leaderCmdPort {
		return false, nil
	}

	c.teardownLocked()
	metrics.IsLeader.Set(0)

	address := addr.Join(ip, cmdPort)
	cli, err := transport.Dial(address, c.cfg.DialTimeout, c.cfg.SendTimeout, c.cfg.RecvTimeout)
	if err != nil {
		// Stay disconnected; retried on the next tick.
		c.logger.Error("connect to leader failed", zap.String("leader", address), zap.Error(err))
		return false, nil
	}
	c.cli = cli
	c.leaderIP = ip
	c.leaderCmdPort = cmdPort
	c.state = StateConnected
	c.logger.Info("connected to leader", zap.String("leader", address))
	return false, nil
}

// Redirect forwards a request verbatim to the elected leader and returns its
// response. Any I/O failure tears down the connection, forcing rediscovery
// on the next tick.
func (c *Coordinator) Redirect(req *transport.Request) (*transport.Response, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cli == nil {
		c.logger.Error("redirect with no leader connection", zap.String("req", req.ID))
		metrics.RedirectsTotal.WithLabelValues("error").Inc()
		return nil, errs.ErrNoLeaderConn
	}
	if err := c.cli.Send(req); err != nil {
		c.teardownLocked()
		c.logger.Error("redirect send failed", zap.String("req", req.ID), zap.Error(err))
		metrics.RedirectsTotal.WithLabelValues("error").Inc()
		return nil, err
	}
	resp, err := c.cli.Recv()
	if err != nil {
		c.teardownLocked()
		c.logger.Error("redirect recv failed", zap.String("req", req.ID), zap.Error(err))
		metrics.RedirectsTotal.WithLabelValues("error").Inc()
		return nil, err
	}
	metrics.RedirectsTotal.WithLabelValues("success").Inc()
	return resp, nil
}

// State reports the current coordination state.
func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// IsSelf reports whether this process is the leader.
func (c *Coordinator) IsSelf() bool {
	return c.State() == StateSelf
}

// Close tears down any held leader connection.
func (c *Coordinator) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.teardownLocked()
}

func (c *Coordinator) teardownLocked() {
	if c.cli != nil {
		c.cli.Close()
		c.cli = nil
	}
	c.leaderIP = ""
	c.leaderCmdPort = 0
	c.state = StateDisconnected
}
