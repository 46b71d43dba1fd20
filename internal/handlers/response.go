package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"scheduler-client/internal/apiclient"
	"scheduler-client/internal/middleware"
	"scheduler-client/internal/models"
	"scheduler-client/internal/repository"
	"scheduler-client/internal/services"
)

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func errorResp(code, message string, r *http.Request) models.ErrorResponse {
	return models.ErrorResponse{
		Error: models.APIError{
			Code:      code,
			Message:   message,
			RequestID: r.Header.Get(middleware.RequestIDHeader),
		},
	}
}

func errorRespWithFields(code, message string, fields map[string]string, r *http.Request) models.ErrorResponse {
	return models.ErrorResponse{
		Error: models.APIError{
			Code:      code,
			Message:   message,
			Fields:    fields,
			RequestID: r.Header.Get(middleware.RequestIDHeader),
		},
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("INVALID_JSON", "Request body is not valid JSON", r))
		return false
	}
	return true
}

func handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		validation   *services.ValidationError
		notFound     *services.NotFoundError
		unauthorized *services.UnauthorizedError
		remote       *apiclient.APIError
	)

	switch {
	case errors.As(err, &validation):
		writeJSON(w, http.StatusBadRequest, errorRespWithFields("VALIDATION_ERROR", "Validation failed", validation.Fields, r))
	case errors.As(err, &notFound):
		writeJSON(w, http.StatusNotFound, errorResp("NOT_FOUND", notFound.Message, r))
	case errors.Is(err, repository.ErrTaskNotFound):
		writeJSON(w, http.StatusNotFound, errorResp("NOT_FOUND", "Task not found", r))
	case errors.Is(err, services.ErrSessionNotFound):
		writeJSON(w, http.StatusNotFound, errorResp("NOT_FOUND", "Study session not found", r))
	case errors.Is(err, services.ErrNoPlan):
		writeJSON(w, http.StatusNotFound, errorResp("NO_PLAN", "No study plan yet", r))
	case errors.As(err, &unauthorized):
		writeJSON(w, http.StatusUnauthorized, errorResp("UNAUTHORIZED", unauthorized.Message, r))
	case errors.As(err, &remote):
		if remote.StatusCode == http.StatusUnauthorized {
			writeJSON(w, http.StatusUnauthorized, errorResp("UNAUTHORIZED", "Your session has expired. Please sign in again.", r))
			return
		}
		msg := remote.Detail
		if msg == "" {
			msg = "The scheduler backend returned an error"
		}
		writeJSON(w, http.StatusBadGateway, errorResp("BACKEND_ERROR", msg, r))
	default:
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "An unexpected error occurred", r))
	}
}
