package leader

import (
	"testing"
	"time"

	"github.com/zenjugit/zeppelin/internal/transport"
	"github.com/zenjugit/zeppelin/pkg/addr"
)

// waitListening polls until the server has bound its listener.
func waitListening(t *testing.T, srv *transport.Server) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if _, port, err := splitAddr(srv.Addr()); err == nil && port != 0 {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("server did not start listening")
}

func splitAddr(ipPort string) (string, int, error) {
	return addr.Parse(ipPort)
}
