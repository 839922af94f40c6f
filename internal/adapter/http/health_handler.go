package http

import (
	"context"
	"net/http"
	"time"

	"github.com/chiwei-platform/app-bundler/internal/port"
)

type HealthHandler struct {
	cluster port.ClusterInspector
}

// NewHealthHandler 的 cluster 为 nil 时 readyz 不检查集群。
func NewHealthHandler(cluster port.ClusterInspector) *HealthHandler {
	return &HealthHandler{cluster: cluster}
}

func (h *HealthHandler) Healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *HealthHandler) Readyz(w http.ResponseWriter, r *http.Request) {
	if h.cluster != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()
		if err := h.cluster.Ping(ctx); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, errorBody{Error: "cluster unreachable: " + err.Error()})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
