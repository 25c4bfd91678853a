package server

import (
	"errors"

	"go.uber.org/zap"

	"github.com/zenjugit/zeppelin/internal/meta"
	"github.com/zenjugit/zeppelin/pkg/errs"
)

// OffNode runs the Up->Down transition for (ip, port): the node is marked
// down in the registry and every partition it mastered is repaired, either
// by promoting the first slave that was up before the failure (a swap that
// keeps the replica-set size) or, when no slave is viable, by orphaning the
// partition with the failed master parked in the slave list.
func (s *Server) OffNode(ip string, port int) error {
	s.nodeMu.Lock()
	defer s.nodeMu.Unlock()

	nodes, err := s.store.Nodes()
	if err != nil {
		return err
	}

	// Snapshot of the up set before the flip; these are the viable
	// promotion targets.
	aliveBefore := nodes.Alive()

	i := nodes.Find(ip, port)
	if i < 0 {
		return errs.ErrNodeNotFound
	}
	if nodes[i].Status != meta.NodeDown {
		nodes[i].Status = meta.NodeDown
		if err := s.store.SetNodes(nodes); err != nil {
			return err
		}
	}
	// Already-down records still get topology repair, idempotently.

	topo, err := s.store.Topology()
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			// Nothing distributed yet, nothing to repair.
			return nil
		}
		return err
	}

	touched := false
	for pi := range topo.Partitions {
		p := &topo.Partitions[pi]
		if p.Master.IP != ip || p.Master.Port != port {
			continue
		}
		touched = true

		former := p.Master
		promoted := false
		for j := range p.Slaves {
			if !meta.IsAlive(aliveBefore, p.Slaves[j].IP, p.Slaves[j].Port) {
				continue
			}
			// First up slave wins; the demoted master takes its
			// vacated slot.
			s.logger.Info("promoting slave",
				zap.Int("partition", p.ID),
				zap.String("slave", p.Slaves[j].Addr()),
				zap.String("former_master", former.Addr()))
			p.Master = p.Slaves[j]
			p.Slaves[j] = former
			promoted = true
			break
		}
		if !promoted {
			// Park the failed master among the slaves and leave the
			// partition orphaned until it recovers.
			s.logger.Warn("no up slave to promote, orphaning partition",
				zap.Int("partition", p.ID),
				zap.String("former_master", former.Addr()))
			p.Master = meta.Node{}
			p.Slaves = append(p.Slaves, former)
		}
	}

	if !touched {
		return nil
	}
	return s.rewriteTopology(topo)
}

// onNodeLocked runs the Down->Up recovery transition for (ip, port) with
// nodeMu held: every orphaned partition holding the node among its slaves
// takes it back as master. The vacated slave slot is overwritten with the
// last slave and the list shrunk by one; slave order is not preserved.
func (s *Server) onNodeLocked(ip string, port int) error {
	topo, err := s.store.Topology()
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return nil
		}
		return err
	}

	touched := false
	for pi := range topo.Partitions {
		p := &topo.Partitions[pi]
		if !p.Orphaned() {
			continue
		}
		for j := range p.Slaves {
			if p.Slaves[j].IP != ip || p.Slaves[j].Port != port {
				continue
			}
			touched = true
			s.logger.Info("recovering orphaned partition",
				zap.Int("partition", p.ID),
				zap.String("master", p.Slaves[j].Addr()))
			last := len(p.Slaves) - 1
			p.Master = p.Slaves[j]
			p.Slaves[j] = p.Slaves[last]
			p.Slaves = p.Slaves[:last]
			break
		}
	}

	if !touched {
		return nil
	}
	return s.rewriteTopology(topo)
}

// rewriteTopology persists a repaired topology with version bumped from the
// on-log value the repair was computed on. A mismatch with the cached
// version means another writer got in between; the write proceeds anyway
// (last writer wins) and only warns.
func (s *Server) rewriteTopology(topo meta.Topology) error {
	if cached := s.Version(); topo.Version != cached {
		s.logger.Warn("topology version mismatch",
			zap.Int64("cached", cached),
			zap.Int64("on_log", topo.Version))
	}
	topo.Version++
	if err := s.store.SetTopology(topo); err != nil {
		return err
	}
	s.setVersion(topo.Version)
	return nil
}
