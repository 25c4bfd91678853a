package transport

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/zenjugit/zeppelin/internal/meta"
	"github.com/zenjugit/zeppelin/pkg/errs"
)

func startServer(t *testing.T, handler Handler) *Server {
	t.Helper()
	srv := NewServer("127.0.0.1:0", handler, zap.NewNop())
	go srv.Start()
	t.Cleanup(srv.Stop)

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if srv.Addr() != "127.0.0.1:0" {
			return srv
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("server did not start listening")
	return nil
}

func TestClientServerRoundTrip(t *testing.T) {
	srv := startServer(t, func(req *Request) *Response {
		resp := req.OK()
		resp.Topology = &meta.Topology{Version: 9}
		return resp
	})

	cli, err := Dial(srv.Addr(), time.Second, time.Second, time.Second)
	require.NoError(t, err)
	defer cli.Close()

	req := NewRequest(CmdPull)
	require.NoError(t, cli.Send(req))

	resp, err := cli.Recv()
	require.NoError(t, err)
	assert.Equal(t, req.ID, resp.ID)
	assert.Equal(t, CodeOK, resp.Code)
	require.NotNil(t, resp.Topology)
	assert.Equal(t, int64(9), resp.Topology.Version)
}

func TestClientMultipleRequestsOneConnection(t *testing.T) {
	srv := startServer(t, func(req *Request) *Response {
		return req.OK()
	})

	cli, err := Dial(srv.Addr(), time.Second, time.Second, time.Second)
	require.NoError(t, err)
	defer cli.Close()

	for i := 0; i < 3; i++ {
		req := NewRequest(CmdPing)
		req.Node = meta.Node{IP: "10.0.0.1", Port: 9221}
		require.NoError(t, cli.Send(req))
		resp, err := cli.Recv()
		require.NoError(t, err)
		assert.Equal(t, req.ID, resp.ID)
	}
}

func TestRecvTimeout(t *testing.T) {
	// Handler that answers only after the client has given up.
	block := make(chan struct{})
	defer close(block)
	srv := startServer(t, func(req *Request) *Response {
		<-block
		return req.OK()
	})

	cli, err := Dial(srv.Addr(), time.Second, time.Second, 30*time.Millisecond)
	require.NoError(t, err)
	defer cli.Close()

	require.NoError(t, cli.Send(NewRequest(CmdPing)))
	_, err = cli.Recv()
	assert.ErrorIs(t, err, errs.ErrTransport)
}

func TestDialFailure(t *testing.T) {
	_, err := Dial("127.0.0.1:1", 50*time.Millisecond, time.Second, time.Second)
	assert.ErrorIs(t, err, errs.ErrTransport)
}

func TestCodeFor(t *testing.T) {
	assert.Equal(t, CodeOK, CodeFor(nil))
	assert.Equal(t, CodeNotFound, CodeFor(errs.ErrNotFound))
	assert.Equal(t, CodeMalformedAddr, CodeFor(errs.ErrMalformedAddr))
	assert.Equal(t, CodeTransport, CodeFor(errs.ErrTransport))
	assert.Equal(t, CodeTransport, CodeFor(errs.ErrNoLeaderConn))
	assert.Equal(t, CodeCorruption, CodeFor(errs.ErrCorruption))
	assert.Equal(t, CodeCorruption, CodeFor(errors.New("anything else")))
}

func TestRequestFailCarriesClassification(t *testing.T) {
	req := NewRequest(CmdInit)
	resp := req.Fail(errs.ErrAlreadyDistributed)
	assert.Equal(t, CodeCorruption, resp.Code)
	assert.Equal(t, req.ID, resp.ID)
	assert.Contains(t, resp.Msg, "already distributed")
}
