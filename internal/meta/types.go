package meta

import "github.com/zenjugit/zeppelin/pkg/addr"

// NodeStatus is the liveness status recorded for a node in the registry.
type NodeStatus int

const (
	NodeUp NodeStatus = iota
	NodeDown
)

func (s NodeStatus) String() string {
	if s == NodeUp {
		return "up"
	}
	return "down"
}

// Node identifies a storage node. It is the identity key for every other
// entity; an empty ip with port 0 encodes "no node" (an orphaned master).
type Node struct {
	IP   string `json:"ip"`
	Port int    `json:"port"`
}

// Empty reports whether the node is the absent-master placeholder.
func (n Node) Empty() bool {
	return n.IP == "" && n.Port == 0
}

func (n Node) Equal(other Node) bool {
	return n.IP == other.IP && n.Port == other.Port
}

// Addr returns the canonical "ip:port" form.
func (n Node) Addr() string {
	return addr.Join(n.IP, n.Port)
}

// NodeRecord is one registry entry. Records are never deleted; membership is
// monotonic and departed nodes are only flipped to down.
type NodeRecord struct {
	Node   Node       `json:"node"`
	Status NodeStatus `json:"status"`
}

// Nodes is the persisted node registry, unique by (ip, port).
type Nodes []NodeRecord

// Partition assigns one shard of the keyspace to a master and its slaves.
// A partition with an empty master is orphaned and pending recovery.
type Partition struct {
	ID     int    `json:"id"`
	Master Node   `json:"master"`
	Slaves []Node `json:"slaves"`
}

// Orphaned reports whether the partition currently has no master.
func (p *Partition) Orphaned() bool {
	return p.Master.Empty()
}

// Topology is the full cluster metadata persisted under one key. Version
// increases by exactly 1 on every successful mutating write.
type Topology struct {
	Version    int64       `json:"version"`
	Partitions []Partition `json:"partitions"`
}

// ReplicaSet is the client-routing view of one partition, written once at
// initial distribution time and never touched by failover.
type ReplicaSet struct {
	ID    int    `json:"id"`
	Nodes []Node `json:"nodes"`
}
