package server

import (
	"fmt"

	"github.com/zenjugit/zeppelin/internal/transport"
	"github.com/zenjugit/zeppelin/pkg/errs"
)

// Handle answers one dispatched command. Pull is served locally from a
// dirty read on any server; the mutating commands run here only on the
// leader and are otherwise forwarded verbatim over the held leader
// connection, with the leader's response relayed back.
func (s *Server) Handle(req *transport.Request) *transport.Response {
	switch req.Cmd {
	case transport.CmdPull:
		topo, err := s.GetTopology()
		if err != nil {
			return req.Fail(err)
		}
		resp := req.OK()
		resp.Topology = &topo
		return resp

	case transport.CmdJoin, transport.CmdPing, transport.CmdInit:
		if !s.coord.IsSelf() {
			resp, err := s.coord.Redirect(req)
			if err != nil {
				return req.Fail(err)
			}
			return resp
		}
		return s.handleLocal(req)

	default:
		return req.Fail(fmt.Errorf("%w: unknown command %q", errs.ErrCorruption, req.Cmd))
	}
}

func (s *Server) handleLocal(req *transport.Request) *transport.Response {
	var err error
	switch req.Cmd {
	case transport.CmdJoin:
		err = s.AddNodeAlive(req.Node.Addr())
	case transport.CmdPing:
		err = s.Heartbeat(req.Node.Addr())
	case transport.CmdInit:
		err = s.Distribute(req.PartitionNum)
	}
	if err != nil {
		return req.Fail(err)
	}
	return req.OK()
}
