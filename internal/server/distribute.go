package server

import (
	"errors"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/zenjugit/zeppelin/internal/meta"
	"github.com/zenjugit/zeppelin/pkg/errs"
)

// replicaSize is the number of nodes holding copies of one partition.
const replicaSize = 3

// reorganize orders the alive nodes so that nodes sharing a host end up as
// far apart as possible: nodes are bucketed by ip and the buckets, visited
// in sorted ip order, each contribute one node per round until exhausted.
// Any 3 consecutive entries are then unlikely to share a host when multiple
// hosts exist.
func reorganize(alive []meta.NodeRecord) []meta.Node {
	groups := make(map[string][]meta.Node)
	for _, rec := range alive {
		groups[rec.Node.IP] = append(groups[rec.Node.IP], rec.Node)
	}

	ips := make([]string, 0, len(groups))
	for ip := range groups {
		ips = append(ips, ip)
	}
	sort.Strings(ips)

	order := make([]meta.Node, 0, len(alive))
	for len(order) < len(alive) {
		for _, ip := range ips {
			group := groups[ip]
			if len(group) == 0 {
				continue
			}
			order = append(order, group[len(group)-1])
			groups[ip] = group[:len(group)-1]
		}
	}
	return order
}

// Distribute performs the one-shot initial assignment of num partitions
// across the alive nodes. Each partition gets a 3-node replica set laid out
// round-robin over the host-interleaved ordering; fewer than 3 alive nodes
// is accepted degraded replication, not an error.
//
// The multi-key write sequence is not transactional: a failure mid-way
// leaves already-written replica-set keys in place and no partition count,
// and the caller retries by calling Distribute again.
func (s *Server) Distribute(num int) error {
	if num <= 0 {
		return fmt.Errorf("%w: partition count %d", errs.ErrCorruption, num)
	}

	s.nodeMu.Lock()
	defer s.nodeMu.Unlock()

	if s.PartitionNums() != 0 {
		return errs.ErrAlreadyDistributed
	}

	nodes, err := s.store.Nodes()
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return errs.ErrNoNodes
		}
		return err
	}
	alive := nodes.Alive()
	if len(alive) == 0 {
		return errs.ErrNoNodes
	}

	order := reorganize(alive)
	a := len(order)

	topo := meta.Topology{
		Version:    s.Version() + 1,
		Partitions: make([]meta.Partition, 0, num),
	}

	for i := 0; i < num; i++ {
		rs := meta.ReplicaSet{
			ID:    i,
			Nodes: make([]meta.Node, 0, replicaSize),
		}
		for j := 0; j < replicaSize; j++ {
			rs.Nodes = append(rs.Nodes, order[(i+j)%a])
		}
		if err := s.store.SetReplicaSet(rs); err != nil {
			return err
		}

		topo.Partitions = append(topo.Partitions, meta.Partition{
			ID:     i,
			Master: order[i%a],
			Slaves: []meta.Node{order[(i+1)%a], order[(i+2)%a]},
		})
	}

	if err := s.store.SetTopology(topo); err != nil {
		return err
	}
	s.setVersion(topo.Version)
	s.logger.Info("distributed partitions",
		zap.Int("partitions", num),
		zap.Int("alive_nodes", a),
		zap.Int64("version", topo.Version))

	return s.store.SetPartitionCount(num)
}
