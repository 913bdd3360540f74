package status

import (
	"encoding/json"
	"net/http"

	"github.com/rpattn/tamperlog/internal/middleware"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"go.uber.org/zap"
)

// Options configures the status handler.
type Options struct {
	AllowedOrigins []string
}

// Handler exposes /healthz, /livez and /metrics.
type Handler struct {
	tracker *Tracker
}

// NewHTTPHandler wraps the tracker and the metrics registry.
func NewHTTPHandler(tracker *Tracker, gatherer prometheus.Gatherer, opts Options, logger *zap.Logger) http.Handler {
	h := &Handler{tracker: tracker}

	// /healthz and /livez are polled and answer 503 while the loop is failing;
	// logging them would write WARN entries into the monitoring collection
	// the health probe reads.
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", h.handleHealth)
	mux.HandleFunc("/livez", h.handleLive)
	mux.Handle("/metrics", middleware.LoggingMiddleware(logger)(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	origins := opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:3000"}
	}
	corsHandler := cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders: []string{"*"},
	})

	return corsHandler.Handler(mux)
}

type healthResponse struct {
	Status string `json:"status"`
	Snapshot
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	snap := h.tracker.Snapshot()
	status, code := "ok", http.StatusOK
	if snap.LastError != "" {
		status, code = "failing", http.StatusServiceUnavailable
	}
	writeJSON(w, code, healthResponse{Status: status, Snapshot: snap})
}

func (h *Handler) handleLive(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("live"))
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(payload)
}
