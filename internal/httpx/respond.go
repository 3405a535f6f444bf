package httpx

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/shopd/go-shop-orders/internal/shoperr"
)

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// writeErr maps the domain error taxonomy onto status codes. Anything
// outside the taxonomy is an infrastructure failure and stays opaque.
func writeErr(w http.ResponseWriter, err error) {
	var (
		notFound     *shoperr.NotFound
		insufficient *shoperr.InsufficientStock
		emptyCart    *shoperr.EmptyCart
		forbidden    *shoperr.Forbidden
		invalidState *shoperr.InvalidState
		duplicate    *shoperr.Duplicate
	)
	switch {
	case errors.As(err, &notFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
	case errors.As(err, &emptyCart):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	case errors.As(err, &forbidden):
		writeJSON(w, http.StatusForbidden, map[string]string{"error": err.Error()})
	case errors.As(err, &insufficient), errors.As(err, &invalidState), errors.As(err, &duplicate):
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
	default:
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
	}
}

// userID reads the identity resolved by the upstream auth gateway. The core
// never sees credentials, only the authenticated user id.
func userID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.Header.Get("X-User-ID"), 10, 64)
	if err != nil || id <= 0 {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "missing or invalid X-User-ID"})
		return 0, false
	}
	return id, true
}

func pathID(r *http.Request, param string) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, param), 10, 64)
}
