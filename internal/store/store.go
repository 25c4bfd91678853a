// Package store adapts the replicated log's raw key/value contract into the
// typed entities the meta server persists. The log itself (election,
// replication, durability) is an external collaborator behind the Log
// interface.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"go.uber.org/zap"

	"github.com/zenjugit/zeppelin/internal/meta"
	"github.com/zenjugit/zeppelin/pkg/errs"
)

// Well-known keys in the replicated log.
const (
	KeyNodes         = "all_nodes"
	KeyTopology      = "full_meta"
	KeyPartitionNum  = "partition_num"
	replicaSetPrefix = "replicaset_"
)

// ReplicaSetKey returns the per-partition routing key.
func ReplicaSetKey(id int) string {
	return replicaSetPrefix + strconv.Itoa(id)
}

// Log is the read/write/delete contract exposed by the replicated log.
// Read is linearizable; DirtyRead may return stale data in exchange for
// lower latency. Absent keys are reported as errs.ErrNotFound.
type Log interface {
	Read(key string) ([]byte, error)
	DirtyRead(key string) ([]byte, error)
	Write(key string, value []byte) error
	Delete(key string) error
	GetLeader() (ip string, port int, ok bool)
}

// Adapter is the typed wrapper every component reads and writes through.
type Adapter struct {
	log    Log
	logger *zap.Logger
}

func NewAdapter(log Log, logger *zap.Logger) *Adapter {
	return &Adapter{log: log, logger: logger}
}

// Leader queries the replicated log for the currently elected leader.
func (a *Adapter) Leader() (string, int, bool) {
	return a.log.GetLeader()
}

// Nodes returns the persisted node registry from a dirty read.
// Returns errs.ErrNotFound when no registry has been written yet.
func (a *Adapter) Nodes() (meta.Nodes, error) {
	value, err := a.log.DirtyRead(KeyNodes)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return nil, err
		}
		a.logger.Error("read node registry failed", zap.Error(err))
		return nil, fmt.Errorf("%w: read node registry: %v", errs.ErrCorruption, err)
	}
	var nodes meta.Nodes
	if err := json.Unmarshal(value, &nodes); err != nil {
		a.logger.Error("decode node registry failed", zap.Error(err))
		return nil, fmt.Errorf("%w: decode node registry: %v", errs.ErrCorruption, err)
	}
	return nodes, nil
}

// SetNodes persists the whole node registry in one write.
func (a *Adapter) SetNodes(nodes meta.Nodes) error {
	value, err := json.Marshal(nodes)
	if err != nil {
		return fmt.Errorf("%w: encode node registry: %v", errs.ErrCorruption, err)
	}
	if err := a.log.Write(KeyNodes, value); err != nil {
		a.logger.Error("write node registry failed", zap.Error(err))
		return fmt.Errorf("%w: write node registry: %v", errs.ErrCorruption, err)
	}
	return nil
}

// Topology returns the persisted cluster topology from a dirty read.
// Returns errs.ErrNotFound when the cluster has no topology yet.
func (a *Adapter) Topology() (meta.Topology, error) {
	return a.topology(a.log.DirtyRead)
}

// TopologyLinear is Topology through a linearizable read; used for the
// startup version discovery and the leader-takeover rebuild.
func (a *Adapter) TopologyLinear() (meta.Topology, error) {
	return a.topology(a.log.Read)
}

func (a *Adapter) topology(read func(string) ([]byte, error)) (meta.Topology, error) {
	var topo meta.Topology
	value, err := read(KeyTopology)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return topo, err
		}
		a.logger.Error("read full meta failed", zap.Error(err))
		return topo, fmt.Errorf("%w: read full meta: %v", errs.ErrCorruption, err)
	}
	if err := json.Unmarshal(value, &topo); err != nil {
		a.logger.Error("decode full meta failed", zap.Error(err))
		return topo, fmt.Errorf("%w: decode full meta: %v", errs.ErrCorruption, err)
	}
	return topo, nil
}

// SetTopology persists the whole topology in one write.
func (a *Adapter) SetTopology(topo meta.Topology) error {
	value, err := json.Marshal(topo)
	if err != nil {
		return fmt.Errorf("%w: encode full meta: %v", errs.ErrCorruption, err)
	}
	if err := a.log.Write(KeyTopology, value); err != nil {
		a.logger.Error("write full meta failed", zap.Error(err))
		return fmt.Errorf("%w: write full meta: %v", errs.ErrCorruption, err)
	}
	return nil
}

// ReplicaSet returns the routing view for one partition.
func (a *Adapter) ReplicaSet(id int) (meta.ReplicaSet, error) {
	var rs meta.ReplicaSet
	value, err := a.log.DirtyRead(ReplicaSetKey(id))
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return rs, err
		}
		return rs, fmt.Errorf("%w: read replicaset %d: %v", errs.ErrCorruption, id, err)
	}
	if err := json.Unmarshal(value, &rs); err != nil {
		return rs, fmt.Errorf("%w: decode replicaset %d: %v", errs.ErrCorruption, id, err)
	}
	return rs, nil
}

// SetReplicaSet persists the routing view for one partition.
func (a *Adapter) SetReplicaSet(rs meta.ReplicaSet) error {
	value, err := json.Marshal(rs)
	if err != nil {
		return fmt.Errorf("%w: encode replicaset %d: %v", errs.ErrCorruption, rs.ID, err)
	}
	if err := a.log.Write(ReplicaSetKey(rs.ID), value); err != nil {
		a.logger.Error("write replicaset failed", zap.Int("id", rs.ID), zap.Error(err))
		return fmt.Errorf("%w: write replicaset %d: %v", errs.ErrCorruption, rs.ID, err)
	}
	return nil
}

// PartitionCount returns the persisted partition count. Its presence signals
// the cluster has completed initial distribution; read failures of any kind
// are reported as 0 by PartitionNums on the server side.
func (a *Adapter) PartitionCount() (int, error) {
	value, err := a.log.DirtyRead(KeyPartitionNum)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return 0, err
		}
		return 0, fmt.Errorf("%w: read partition count: %v", errs.ErrCorruption, err)
	}
	n, err := strconv.Atoi(string(value))
	if err != nil {
		return 0, fmt.Errorf("%w: decode partition count %q: %v", errs.ErrCorruption, value, err)
	}
	return n, nil
}

// SetPartitionCount persists the partition count.
func (a *Adapter) SetPartitionCount(n int) error {
	if err := a.log.Write(KeyPartitionNum, []byte(strconv.Itoa(n))); err != nil {
		a.logger.Error("write partition count failed", zap.Error(err))
		return fmt.Errorf("%w: write partition count: %v", errs.ErrCorruption, err)
	}
	return nil
}
