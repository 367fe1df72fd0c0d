package middleware

import (
	"encoding/json"
	"net/http"
)

// writeJSONError mirrors the API error body without importing the api package.
func writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
