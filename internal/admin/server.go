// HTTP status server for a running fleet
package admin

import (
	"context"
	"embed"
	"encoding/json"
	"html/template"
	"net/http"

	"github.com/gorilla/mux"

	"iotfleet-sim/internal/monitoring"
	"iotfleet-sim/internal/sim"
)

// Server exposes fleet progress over HTTP: an HTML index, JSON
// snapshots, and Prometheus metrics.
type Server struct {
	Fleet *sim.Fleet
	tpl   *template.Template
}

//go:embed templates/index.html
var content embed.FS

// NewServer creates a status server for fleet.
func NewServer(fleet *sim.Fleet) *Server {
	tpl := template.Must(template.New("index.html").ParseFS(content, "templates/index.html"))
	return &Server{Fleet: fleet, tpl: tpl}
}

func (s *Server) router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/", s.handleIndex).Methods(http.MethodGet)
	r.HandleFunc("/devices", s.handleDevices).Methods(http.MethodGet)
	r.HandleFunc("/fleet-health", s.handleHealth).Methods(http.MethodGet)
	r.Handle("/metrics", monitoring.Handler()).Methods(http.MethodGet)
	return r
}

// Start serves until ctx is done, then shuts the listener down.
func (s *Server) Start(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.router()}
	go func() {
		<-ctx.Done()
		_ = srv.Shutdown(context.Background())
	}()
	return srv.ListenAndServe()
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	data := struct {
		Health  sim.FleetHealth
		VTime   string
		Devices int
	}{
		Health:  s.Fleet.Health(),
		VTime:   s.Fleet.CurrentTime().String(),
		Devices: s.Fleet.Config().DeviceCount,
	}
	_ = s.tpl.Execute(w, data)
}

func (s *Server) handleDevices(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(s.Fleet.Snapshot())
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(s.Fleet.Health())
}
