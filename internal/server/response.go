package server

import (
	"encoding/json"
	"net/http"
)

type APIResponse[T any] struct {
	Message string `json:"message"`
	Data    T      `json:"data"`
}

func writeJSON[T any](w http.ResponseWriter, status int, data T) {
	writeRaw(w, status, APIResponse[T]{
		Message: "ok",
		Data:    data,
	})
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeRaw(w, status, APIResponse[*struct{}]{Message: message})
}

func writeLegacyError(w http.ResponseWriter, status int, message string) {
	writeRaw(w, status, map[string]string{"error": message})
}

func writeRaw(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
