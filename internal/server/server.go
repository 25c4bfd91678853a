// Package server implements the cluster-state machine of the metadata
// server: node liveness, partition assignment, and failover/recovery, all
// persisted through the replicated log and mutated only by the elected
// leader.
package server

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/zenjugit/zeppelin/internal/leader"
	"github.com/zenjugit/zeppelin/internal/meta"
	"github.com/zenjugit/zeppelin/internal/metrics"
	"github.com/zenjugit/zeppelin/internal/store"
	"github.com/zenjugit/zeppelin/internal/update"
	"github.com/zenjugit/zeppelin/pkg/addr"
	"github.com/zenjugit/zeppelin/pkg/errs"
)

// Config holds the server tunables.
type Config struct {
	// LivenessTimeout is how long a node may go without a heartbeat
	// before it is swept and failed over.
	LivenessTimeout time.Duration

	// TickInterval drives the sweep and leadership-reconcile cron.
	TickInterval time.Duration

	// RetryInterval paces the unbounded startup loops (version
	// discovery, leader discovery).
	RetryInterval time.Duration

	// Clock is injectable for tests; nil means time.Now.
	Clock func() time.Time
}

// DefaultConfig returns the production cadence.
func DefaultConfig() *Config {
	return &Config{
		LivenessTimeout: 12 * time.Second,
		TickInterval:    time.Second,
		RetryInterval:   time.Second,
	}
}

// Server is the metadata server core. nodeMu makes each registry/topology
// read-modify-write atomic against other local goroutines; cross-process
// safety relies on the log's per-key linearizability plus the single-leader
// invariant.
type Server struct {
	cfg      *Config
	store    *store.Adapter
	alive    *meta.AliveTracker
	notifier *update.Notifier
	coord    *leader.Coordinator
	logger   *zap.Logger

	// nodeMu guards every registry/topology read-modify-write.
	nodeMu sync.Mutex

	versionMu sync.Mutex
	version   int64

	runCtx    context.Context
	runCancel context.CancelFunc
}

// NewServer wires the core with its collaborators. lcfg configures leader
// discovery and the follower-side leader connection.
func NewServer(st *store.Adapter, notifier *update.Notifier, cfg *Config, lcfg *leader.Config, logger *zap.Logger) *Server {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	s := &Server{
		cfg:      cfg,
		store:    st,
		alive:    meta.NewAliveTracker(cfg.Clock),
		notifier: notifier,
		logger:   logger,
		version:  -1,
	}
	s.coord = leader.NewCoordinator(st, lcfg, s.becomeLeader, logger)
	return s
}

// Coordinator exposes the leader layer, for redirect and state queries.
func (s *Server) Coordinator() *leader.Coordinator {
	return s.coord
}

// Alive exposes the liveness tracker.
func (s *Server) Alive() *meta.AliveTracker {
	return s.alive
}

// Version returns the cached topology version.
func (s *Server) Version() int64 {
	s.versionMu.Lock()
	defer s.versionMu.Unlock()
	return s.version
}

func (s *Server) setVersion(v int64) {
	s.versionMu.Lock()
	s.version = v
	s.versionMu.Unlock()
	metrics.TopologyVersion.Set(float64(v))
}

// Run blocks until ctx is cancelled. It waits for a first leader election,
// discovers the persisted topology version, then drives the periodic sweep
// and leadership reconciliation.
func (s *Server) Run(ctx context.Context) error {
	s.runCtx, s.runCancel = context.WithCancel(ctx)
	defer s.runCancel()

	if _, _, ok := s.coord.Discover(s.runCtx); !ok {
		return s.runCtx.Err()
	}
	if err := s.initVersion(s.runCtx); err != nil {
		return err
	}

	s.notifier.Start()
	defer s.notifier.Stop()
	defer s.coord.Close()

	ticker := time.NewTicker(s.cfg.TickInterval)
	defer ticker.Stop()

	s.logger.Info("meta server running",
		zap.Int64("version", s.Version()),
		zap.Duration("liveness_timeout", s.cfg.LivenessTimeout))

	for {
		select {
		case <-s.runCtx.Done():
			return nil
		case <-ticker.C:
			s.Tick()
		}
	}
}

// Tick runs one liveness-check round: reconcile leadership, then sweep
// stale heartbeats if this process is the leader.
func (s *Server) Tick() {
	if _, err := s.coord.Reconcile(s.runCtx); err != nil {
		if s.runCtx.Err() != nil {
			return
		}
		s.logger.Error("leadership reconcile failed", zap.Error(err))
		return
	}
	if s.coord.IsSelf() {
		s.SweepAlive()
	}
}

// initVersion reads the persisted topology version, retrying on log errors
// until it succeeds or ctx is cancelled. Absent topology means a fresh
// cluster, version -1.
func (s *Server) initVersion(ctx context.Context) error {
	ticker := time.NewTicker(s.cfg.RetryInterval)
	defer ticker.Stop()

	for {
		topo, err := s.store.TopologyLinear()
		switch {
		case err == nil:
			s.setVersion(topo.Version)
			s.logger.Info("got topology version", zap.Int64("version", topo.Version))
			return nil
		case errors.Is(err, errs.ErrNotFound):
			s.setVersion(-1)
			s.logger.Info("no topology yet, fresh cluster")
			return nil
		default:
			s.logger.Error("read topology version failed, retrying", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// becomeLeader is the leader-takeover sequence: rebuild the alive table from
// the persisted up set and re-read the cached version.
func (s *Server) becomeLeader() error {
	nodes, err := s.store.Nodes()
	if err != nil && !errors.Is(err, errs.ErrNotFound) {
		return fmt.Errorf("read registry on takeover: %w", err)
	}

	var up []meta.Node
	for _, rec := range nodes.Alive() {
		up = append(up, rec.Node)
	}
	s.alive.Restore(up)

	ctx := s.runCtx
	if ctx == nil {
		ctx = context.Background()
	}
	return s.initVersion(ctx)
}

// AddNodeAlive handles a join: stamp the alive table, upsert the node as up
// in the registry, and schedule an add notification. A malformed address
// fails before anything is touched; a registry persistence failure leaves
// the already-applied timestamp in place.
func (s *Server) AddNodeAlive(ipPort string) error {
	ip, port, err := addr.Parse(ipPort)
	if err != nil {
		return err
	}

	s.alive.Touch(ipPort)

	if err := s.addNode(ip, port); err != nil {
		return err
	}

	s.logger.Info("node alive", zap.String("node", ipPort))
	metrics.HeartbeatsTotal.WithLabelValues("join").Inc()
	s.notifier.Schedule(ipPort, update.OpAdd)
	return nil
}

// UpdateNodeAlive refreshes the heartbeat timestamp for a known node and
// reports whether the node was known.
func (s *Server) UpdateNodeAlive(ipPort string) bool {
	if !s.alive.Refresh(ipPort) {
		s.logger.Warn("heartbeat from untracked node", zap.String("node", ipPort))
		return false
	}
	metrics.HeartbeatsTotal.WithLabelValues("refresh").Inc()
	return true
}

// Heartbeat is the ping entry point: refresh a known node, or fall back to
// the full join path for one the alive table has not seen.
func (s *Server) Heartbeat(ipPort string) error {
	if s.UpdateNodeAlive(ipPort) {
		return nil
	}
	return s.AddNodeAlive(ipPort)
}

// SweepAlive removes every node whose heartbeat has gone stale and runs the
// failover transition for each, one at a time, outside the alive lock.
func (s *Server) SweepAlive() {
	metrics.SweepsTotal.Inc()

	stale := s.alive.Sweep(s.cfg.LivenessTimeout)
	for _, ipPort := range stale {
		s.logger.Warn("node heartbeat timed out", zap.String("node", ipPort))

		ip, port, err := addr.Parse(ipPort)
		if err != nil {
			s.logger.Error("bad address in alive table", zap.String("node", ipPort), zap.Error(err))
			continue
		}
		if err := s.OffNode(ip, port); err != nil {
			metrics.FailoversTotal.WithLabelValues("error").Inc()
			s.logger.Error("failover failed", zap.String("node", ipPort), zap.Error(err))
		} else {
			metrics.FailoversTotal.WithLabelValues("success").Inc()
		}
		s.notifier.Schedule(ipPort, update.OpRemove)
	}
}

// addNode upserts (ip, port) as up in the persisted registry. Flipping a
// down record, or inserting an unseen one, also runs the recovery
// transition for partitions orphaned on that node.
func (s *Server) addNode(ip string, port int) error {
	s.nodeMu.Lock()
	defer s.nodeMu.Unlock()

	nodes, err := s.store.Nodes()
	if err != nil && !errors.Is(err, errs.ErrNotFound) {
		return err
	}

	if i := nodes.Find(ip, port); i >= 0 {
		if nodes[i].Status == meta.NodeUp {
			return nil
		}
		nodes[i].Status = meta.NodeUp
	} else {
		nodes = append(nodes, meta.NodeRecord{
			Node:   meta.Node{IP: ip, Port: port},
			Status: meta.NodeUp,
		})
	}

	if err := s.store.SetNodes(nodes); err != nil {
		return err
	}

	if err := s.onNodeLocked(ip, port); err != nil {
		metrics.RecoveriesTotal.WithLabelValues("error").Inc()
		return err
	}
	metrics.RecoveriesTotal.WithLabelValues("success").Inc()
	return nil
}

// PartitionNums returns the persisted partition count, with any read
// failure reported as 0. A non-zero value signals the cluster has completed
// initial distribution.
func (s *Server) PartitionNums() int {
	n, err := s.store.PartitionCount()
	if err != nil {
		if !errors.Is(err, errs.ErrNotFound) {
			s.logger.Error("read partition count failed", zap.Error(err))
		}
		return 0
	}
	return n
}

// GetTopology returns the current full topology from a dirty read.
func (s *Server) GetTopology() (meta.Topology, error) {
	return s.store.Topology()
}
