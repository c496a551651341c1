package www

import (
	"encoding/json"
	"errors"
	"net/http"

	"fleettrack/track"
)

func (h *Handlers) jsonOK(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func (h *Handlers) jsonError(w http.ResponseWriter, msg string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

// jsonDomainError maps domain error kinds onto HTTP statuses.
func (h *Handlers) jsonDomainError(w http.ResponseWriter, err error) {
	code := http.StatusInternalServerError
	switch {
	case errors.Is(err, track.ErrNotFound):
		code = http.StatusNotFound
	case errors.Is(err, track.ErrUnauthorized):
		code = http.StatusUnauthorized
	case errors.Is(err, track.ErrInvalidLocation):
		code = http.StatusBadRequest
	case errors.Is(err, track.ErrStaleReport):
		code = http.StatusConflict
	case errors.Is(err, track.ErrInvalidTransition), errors.Is(err, track.ErrInvalidState):
		code = http.StatusUnprocessableEntity
	case errors.Is(err, track.ErrConflict):
		code = http.StatusConflict
	case errors.Is(err, track.ErrUnavailable):
		code = http.StatusServiceUnavailable
	}
	h.jsonError(w, err.Error(), code)
}

func decodeJSON(r *http.Request, dst any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(dst)
}
