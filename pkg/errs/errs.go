// Package errs defines sentinel errors used across the Zeppelin meta server.
package errs

import "errors"

// Sentinel errors for replicated-log access.
var (
	// ErrNotFound indicates the key is absent from the replicated log,
	// which usually means "not yet initialized" rather than a failure.
	ErrNotFound = errors.New("not found in replicated log")

	// ErrCorruption indicates a log I/O failure, a (de)serialization
	// failure, or a violated logical precondition.
	ErrCorruption = errors.New("corruption")
)

// Sentinel errors for cluster-topology operations.
var (
	// ErrAlreadyDistributed indicates partitions have already been
	// distributed for this cluster.
	ErrAlreadyDistributed = errors.New("already distributed")

	// ErrNoNodes indicates no alive node is available for distribution.
	ErrNoNodes = errors.New("no nodes")

	// ErrNodeNotFound indicates the node is absent from the registry.
	ErrNodeNotFound = errors.New("node not found in registry")
)

// Sentinel errors for leader coordination.
var (
	// ErrNoLeaderConn indicates no connection to the elected leader is held.
	ErrNoLeaderConn = errors.New("no leader connection")

	// ErrTransport indicates a connection or redirect failure.
	ErrTransport = errors.New("transport failure")
)

// ErrMalformedAddr indicates an unparsable ip:port string.
var ErrMalformedAddr = errors.New("malformed address")
