// Package helpers agrupa utilidades chicas de los handlers HTTP.
package helpers

import (
	"encoding/json"
	"net/http"
)

// WriteJSON serializa v con el status dado.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
