package utils

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

func ParseRequestBody(w http.ResponseWriter, r *http.Request, dest interface{}) bool {
	dec := json.NewDecoder(r.Body)
	err := dec.Decode(dest)
	if err != nil {
		slog.Error("error parsing request body", "error", err)
		WriteErrorResponse(w, http.StatusBadRequest, "Invalid request body", fmt.Sprintf("error parsing request body: %v", err))
		return false
	}
	return true
}

func WriteJsonResponse(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	err := json.NewEncoder(w).Encode(data)
	if err != nil {
		slog.Error("error serializing response body", "error", err)
	}
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// WriteErrorResponse emits the error envelope every endpoint uses, including
// the auth middleware. Error is a short category, message the human detail.
func WriteErrorResponse(w http.ResponseWriter, status int, label, message string) {
	WriteJsonResponse(w, status, errorResponse{Error: label, Message: message})
}

func URLParamUUID(r *http.Request, key string) (uuid.UUID, error) {
	param := chi.URLParam(r, key)

	if len(param) == 0 {
		return uuid.Nil, fmt.Errorf("missing {%v} url parameter", key)
	}

	id, err := uuid.Parse(param)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid uuid '%v' provided: %w", param, err)
	}

	return id, nil
}

func QueryParamInt(r *http.Request, key string, defaultValue int) (int, error) {
	value := r.URL.Query().Get(key)
	if value == "" {
		return defaultValue, nil
	}
	i, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid integer '%v' for query param %v", value, key)
	}
	return i, nil
}
