package handle

import (
	"net/http"
)

func (h *Handle) ListCatalog(w http.ResponseWriter, r *http.Request) {
	cat, err := h.Catalog.Get(r.Context())
	if err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "catalog: " + err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"components": cat.Names()})
}

func (h *Handle) RefreshCatalog(w http.ResponseWriter, r *http.Request) {
	cat, err := h.Catalog.Refresh(r.Context())
	if err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "catalog: " + err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"components": cat.Names()})
}
