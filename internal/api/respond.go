package api

import (
	"net/http"

	"github.com/EyasDmour/vehicle-tracker/internal/httputil"
)

func (s *Server) writeJSONError(w http.ResponseWriter, status int, msg string) {
	httputil.WriteJSONError(w, status, msg)
}

func (s *Server) writeJSON(w http.ResponseWriter, data interface{}) {
	httputil.WriteJSONOK(w, data)
}
