package meta

// Find returns the index of the record for (ip, port), or -1.
func (ns Nodes) Find(ip string, port int) int {
	for i := range ns {
		if ns[i].Node.IP == ip && ns[i].Node.Port == port {
			return i
		}
	}
	return -1
}

// Alive returns the subset of records whose status is up.
func (ns Nodes) Alive() []NodeRecord {
	var alive []NodeRecord
	for _, rec := range ns {
		if rec.Status == NodeUp {
			alive = append(alive, rec)
		}
	}
	return alive
}

// IsAlive reports whether (ip, port) appears among the given records,
// typically a pre-failure snapshot of the up set.
func IsAlive(recs []NodeRecord, ip string, port int) bool {
	for i := range recs {
		if recs[i].Node.IP == ip && recs[i].Node.Port == port {
			return true
		}
	}
	return false
}
