package transport

import (
	"encoding/json"
	"fmt"
	"net"
	"time"

	"github.com/zenjugit/zeppelin/pkg/errs"
)

// Client is a persistent connection to one meta server, typically the
// elected leader. Send and Recv use fixed short deadlines so a dead peer
// cannot stall a forwarding request indefinitely.
type Client struct {
	conn        net.Conn
	sendTimeout time.Duration
	recvTimeout time.Duration
}

// Dial connects to addr with the given timeouts.
func Dial(address string, dialTimeout, sendTimeout, recvTimeout time.Duration) (*Client, error) {
	conn, err := net.DialTimeout("tcp", address, dialTimeout)
	if err != nil {
		return nil, fmt.Errorf("%w: dial %s: %v", errs.ErrTransport, address, err)
	}
	return &Client{
		conn:        conn,
		sendTimeout: sendTimeout,
		recvTimeout: recvTimeout,
	}, nil
}

// Send writes one request frame.
func (c *Client) Send(req *Request) error {
	payload, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("%w: encode request: %v", errs.ErrTransport, err)
	}
	if err := writeFrame(c.conn, payload, c.sendTimeout); err != nil {
		return fmt.Errorf("%w: %v", errs.ErrTransport, err)
	}
	return nil
}

// Recv reads one response frame.
func (c *Client) Recv() (*Response, error) {
	payload, err := readFrame(c.conn, c.recvTimeout)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errs.ErrTransport, err)
	}
	var resp Response
	if err := json.Unmarshal(payload, &resp); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", errs.ErrTransport, err)
	}
	return &resp, nil
}

// RemoteAddr reports the peer address.
func (c *Client) RemoteAddr() string {
	return c.conn.RemoteAddr().String()
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	return c.conn.Close()
}
