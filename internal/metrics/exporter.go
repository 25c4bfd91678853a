package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Exporter exposes metrics via HTTP.
type Exporter struct {
	server *http.Server
}

// NewExporter creates a metrics exporter listening on addr.
func NewExporter(addr string) *Exporter {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	return &Exporter{
		server: &http.Server{
			Addr:    addr,
			Handler: mux,
		},
	}
}

// Start serves until Stop is called.
func (e *Exporter) Start() error {
	return e.server.ListenAndServe()
}

// Stop closes the exporter.
func (e *Exporter) Stop() error {
	return e.server.Close()
}
