// Package status serves read-only operational views: per-service metrics
// snapshots and per-tenant monthly usage.
package status

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/olajoao/signal-desk/internal/usage"
	"github.com/olajoao/signal-desk/pkg/metrics"
)

// Handlers wraps the dependencies of the status endpoints.
type Handlers struct {
	redis  *redis.Client
	reader *metrics.Reader
	now    func() time.Time
}

// NewHandlers creates the status handlers.
func NewHandlers(client *redis.Client) *Handlers {
	return &Handlers{
		redis:  client,
		reader: metrics.NewReader(client),
		now:    time.Now,
	}
}

// Register mounts the endpoints on mux.
func (h *Handlers) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/services/metrics", h.GetServiceMetrics)
	mux.HandleFunc("GET /api/v1/usage", h.GetUsage)
}

// ServiceMetricsResponse wraps service metrics with the known service list.
type ServiceMetricsResponse struct {
	Services      map[string]*metrics.ServiceMetrics `json:"services"`
	KnownServices []string                           `json:"known_services"`
}

// GetServiceMetrics returns every known service's snapshot, or a single one
// with ?service=. Services without a snapshot are reported offline.
// GET /api/v1/services/metrics
func (h *Handlers) GetServiceMetrics(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if name := r.URL.Query().Get("service"); name != "" {
		writeJSON(w, http.StatusOK, h.serviceMetrics(r, name))
		return
	}

	resp := ServiceMetricsResponse{
		Services:      make(map[string]*metrics.ServiceMetrics, len(metrics.ServiceNames)),
		KnownServices: metrics.ServiceNames,
	}
	for _, name := range metrics.ServiceNames {
		if ctx.Err() != nil {
			return
		}
		resp.Services[name] = h.serviceMetrics(r, name)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handlers) serviceMetrics(r *http.Request, name string) *metrics.ServiceMetrics {
	m, err := h.reader.GetServiceMetrics(r.Context(), name)
	if err != nil {
		slog.Debug("No metrics for service", "service", name, "error", err)
		return &metrics.ServiceMetrics{ServiceName: name, Status: "offline"}
	}
	return m
}

// UsageResponse is the usage of one tenant for one month. SpikeAlert is the
// tenant's open usage spike alert, if any.
type UsageResponse struct {
	TenantID string `json:"tenant_id"`
	Month    string `json:"month"`
	usage.Counts
	SpikeAlert *usage.SpikeAlert `json:"spike_alert,omitempty"`
}

// GetUsage returns a tenant's counters for ?month=YYYY-MM, defaulting to the
// current month.
// GET /api/v1/usage?tenant=<id>
func (h *Handlers) GetUsage(w http.ResponseWriter, r *http.Request) {
	tenantID := r.URL.Query().Get("tenant")
	if tenantID == "" {
		http.Error(w, "tenant query parameter is required", http.StatusBadRequest)
		return
	}

	at := h.now().UTC()
	if month := r.URL.Query().Get("month"); month != "" {
		parsed, err := time.Parse("2006-01", month)
		if err != nil {
			http.Error(w, "month must be formatted as YYYY-MM", http.StatusBadRequest)
			return
		}
		at = parsed
	}

	counts, err := usage.Get(r.Context(), h.redis, tenantID, at)
	if err != nil {
		slog.Error("Failed to read usage", "tenant_id", tenantID, "error", err)
		http.Error(w, "Failed to retrieve usage", http.StatusInternalServerError)
		return
	}

	alert, err := usage.GetSpikeAlert(r.Context(), h.redis, tenantID)
	if err != nil {
		slog.Warn("Failed to read usage spike alert", "tenant_id", tenantID, "error", err)
	}

	writeJSON(w, http.StatusOK, UsageResponse{
		TenantID:   tenantID,
		Month:      at.Format("2006-01"),
		Counts:     counts,
		SpikeAlert: alert,
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}
