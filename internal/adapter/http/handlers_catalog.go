package adapthttp

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"storeadmin/internal/domain"
)

func (s *Server) handleListProducts(w http.ResponseWriter, r *http.Request) {
	items, err := s.svc.Products.List(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (s *Server) handleGetProduct(w http.ResponseWriter, r *http.Request) {
	p, err := s.svc.Products.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleCreateProduct(w http.ResponseWriter, r *http.Request) {
	var body domain.Product
	if err := parseJSON(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	p, err := s.svc.Products.Create(r.Context(), body)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.logger.Info("product created", "id", p.ID, "sku", p.SKU, "request_id", requestIDFrom(r.Context()))
	writeJSON(w, http.StatusCreated, p)
}

func (s *Server) handleUpdateProduct(w http.ResponseWriter, r *http.Request) {
	var body domain.Product
	if err := parseJSON(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	p, err := s.svc.Products.Update(r.Context(), chi.URLParam(r, "id"), body)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleDeleteProduct(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.svc.Products.Delete(r.Context(), id); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.logger.Info("product deleted", "id", id, "request_id", requestIDFrom(r.Context()))
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *Server) handleInventory(w http.ResponseWriter, r *http.Request) {
	report, err := s.svc.Inventory.Report(r.Context())
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}
