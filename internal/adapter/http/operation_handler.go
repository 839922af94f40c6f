package http

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/chiwei-platform/app-bundler/internal/domain"
	"github.com/chiwei-platform/app-bundler/internal/port"
	"github.com/chiwei-platform/app-bundler/internal/service"
)

type OperationHandler struct {
	svc *service.OperationService
}

func NewOperationHandler(svc *service.OperationService) *OperationHandler {
	return &OperationHandler{svc: svc}
}

func (h *OperationHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := port.OperationFilter{
		Namespace: q.Get("namespace"),
		AppName:   q.Get("appname"),
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, fmt.Errorf("%w: limit should be a non-negative integer", domain.ErrInvalidInput))
			return
		}
		filter.Limit = n
	}

	ops, err := h.svc.List(r.Context(), filter)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ops)
}
