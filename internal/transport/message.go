// Package transport carries meta-server requests over point-to-point TCP
// connections as length-prefixed JSON frames. The same request and response
// structures are used by the client-facing dispatch and by leader redirect.
package transport

import (
	"errors"

	"github.com/google/uuid"

	"github.com/zenjugit/zeppelin/internal/meta"
	"github.com/zenjugit/zeppelin/pkg/errs"
)

// CmdType names one meta-server command.
type CmdType string

const (
	CmdJoin CmdType = "join"
	CmdPing CmdType = "ping"
	CmdPull CmdType = "pull"
	CmdInit CmdType = "init"
)

// Code is the terse error classification returned to callers. Internal
// detail stays in the logs.
type Code string

const (
	CodeOK            Code = "ok"
	CodeNotFound      Code = "not_found"
	CodeCorruption    Code = "corruption"
	CodeTransport     Code = "transport"
	CodeMalformedAddr Code = "malformed_addr"
)

// CodeFor classifies an error into a response code.
func CodeFor(err error) Code {
	switch {
	case err == nil:
		return CodeOK
	case errors.Is(err, errs.ErrNotFound):
		return CodeNotFound
	case errors.Is(err, errs.ErrMalformedAddr):
		return CodeMalformedAddr
	case errors.Is(err, errs.ErrTransport), errors.Is(err, errs.ErrNoLeaderConn):
		return CodeTransport
	default:
		return CodeCorruption
	}
}

// Request is one command envelope. ID correlates a response with its
// request across a redirect hop.
type Request struct {
	ID           string    `json:"id"`
	Cmd          CmdType   `json:"cmd"`
	Node         meta.Node `json:"node,omitempty"`
	PartitionNum int       `json:"partition_num,omitempty"`
}

// NewRequest builds a request with a fresh correlation id.
func NewRequest(cmd CmdType) *Request {
	return &Request{ID: uuid.NewString(), Cmd: cmd}
}

// Response answers one request. Topology is set only for pull.
type Response struct {
	ID       string         `json:"id"`
	Cmd      CmdType        `json:"cmd"`
	Code     Code           `json:"code"`
	Msg      string         `json:"msg,omitempty"`
	Topology *meta.Topology `json:"topology,omitempty"`
}

// OK builds a success response for req.
func (r *Request) OK() *Response {
	return &Response{ID: r.ID, Cmd: r.Cmd, Code: CodeOK}
}

// Fail builds an error response for req from err's classification.
func (r *Request) Fail(err error) *Response {
	return &Response{ID: r.ID, Cmd: r.Cmd, Code: CodeFor(err), Msg: err.Error()}
}
