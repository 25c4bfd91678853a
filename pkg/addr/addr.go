// Package addr parses and formats the ip:port strings used as node identity.
package addr

import (
	"fmt"
	"net"
	"strconv"

	"github.com/zenjugit/zeppelin/pkg/errs"
)

// Parse splits an "ip:port" string into its parts. The ip is not resolved,
// only validated syntactically.
func Parse(ipPort string) (string, int, error) {
	host, portStr, err := net.SplitHostPort(ipPort)
	if err != nil {
		return "", 0, fmt.Errorf("%w: %q", errs.ErrMalformedAddr, ipPort)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil || port <= 0 || port > 65535 {
		return "", 0, fmt.Errorf("%w: bad port in %q", errs.ErrMalformedAddr, ipPort)
	}
	if host == "" {
		return "", 0, fmt.Errorf("%w: empty host in %q", errs.ErrMalformedAddr, ipPort)
	}
	return host, port, nil
}

// Join formats an ip and port back into the canonical "ip:port" form.
func Join(ip string, port int) string {
	return net.JoinHostPort(ip, strconv.Itoa(port))
}
