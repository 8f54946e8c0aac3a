package adapthttp

import (
	"net/http"

	"storeadmin/internal/domain"
)

func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := s.svc.Settings.Get(r.Context())
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

func (s *Server) handleSaveSettings(w http.ResponseWriter, r *http.Request) {
	var body domain.Settings
	if err := parseJSON(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	saved, err := s.svc.Settings.Save(r.Context(), body)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.logger.Info("settings saved", "request_id", requestIDFrom(r.Context()))
	writeJSON(w, http.StatusOK, saved)
}
