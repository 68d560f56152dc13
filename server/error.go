package server

import (
	"encoding/json"
	"net/http"

	"github.com/fwojciec/sitemd"
)

// codes maps application error codes to HTTP status codes.
var codes = map[string]int{
	sitemd.ECONFLICT: http.StatusConflict,
	sitemd.EINVALID:  http.StatusBadRequest,
	sitemd.ENOTFOUND: http.StatusNotFound,
	sitemd.ENOTREADY: http.StatusConflict,
	sitemd.EINTERNAL: http.StatusInternalServerError,
}

// ErrorStatusCode returns the HTTP status code for an application error code.
func ErrorStatusCode(code string) int {
	if v, ok := codes[code]; ok {
		return v
	}
	return http.StatusInternalServerError
}

type errorResponse struct {
	Error string `json:"error"`
}

// Error writes err as a JSON error response. Internal errors are logged
// and reported with a generic message.
func (s *Server) Error(w http.ResponseWriter, r *http.Request, err error) {
	code, message := sitemd.ErrorCode(err), sitemd.ErrorMessage(err)
	if code == sitemd.EINTERNAL {
		s.logger().Error("http error", "method", r.Method, "path", r.URL.Path, "err", err)
	}
	writeJSON(w, ErrorStatusCode(code), errorResponse{Error: message})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
