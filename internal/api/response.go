package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/zanvidmar/zahtevek/internal/store"
)

// jsonResponse writes a JSON response with the given status code.
func jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			slog.Error("encoding response", "error", err)
		}
	}
}

// jsonError writes a JSON error response.
func jsonError(w http.ResponseWriter, status int, message string) {
	jsonResponse(w, status, map[string]string{"error": message})
}

// decodeJSON decodes a JSON request body into the given target.
func decodeJSON(r *http.Request, target any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(target)
}

// storeError maps a store-layer failure to an HTTP response. Every domain
// failure kind has an explicit mapping; anything else is logged and surfaced
// as a generic internal error so storage details never leak to callers.
func storeError(w http.ResponseWriter, err error) {
	var validation store.ValidationErrors
	var transition *store.InvalidTransitionError
	var insufficient *store.InsufficientStockError
	var conflict *store.ConflictError
	var invalidQty *store.InvalidQuantityError

	switch {
	case errors.As(err, &validation):
		jsonResponse(w, http.StatusBadRequest, map[string]any{
			"error":  "validation failed",
			"errors": []string(validation),
		})
	case errors.Is(err, store.ErrNotFound):
		jsonError(w, http.StatusNotFound, "not found")
	case errors.As(err, &transition):
		jsonResponse(w, http.StatusBadRequest, map[string]any{
			"error":          transition.Error(),
			"current_status": transition.Current,
		})
	case errors.As(err, &insufficient):
		jsonResponse(w, http.StatusConflict, map[string]any{
			"error":     insufficient.Error(),
			"item_name": insufficient.ItemName,
			"available": insufficient.Available,
			"requested": insufficient.Requested,
		})
	case errors.As(err, &conflict):
		jsonError(w, http.StatusConflict, conflict.Error())
	case errors.As(err, &invalidQty):
		jsonError(w, http.StatusBadRequest, invalidQty.Error())
	default:
		slog.Error("internal error", "error", err)
		jsonError(w, http.StatusInternalServerError, "internal error")
	}
}
