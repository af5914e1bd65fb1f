package apihttp

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"mediashare/internal/domain"
	"mediashare/internal/usecase"
)

const maxBodyBytes = 1 << 20

type errorEnvelope struct {
	Error errorPayload `json:"error"`
}

type errorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type statusResponse struct {
	Status string `json:"status"`
}

func writeUseCaseError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", "not found")
	case errors.Is(err, domain.ErrInvalidToken), errors.Is(err, domain.ErrExpired):
		writeError(w, http.StatusUnauthorized, "unauthorized", err.Error())
	case errors.Is(err, domain.ErrForbidden):
		writeError(w, http.StatusForbidden, "forbidden", err.Error())
	case errors.Is(err, domain.ErrLimitReached):
		writeError(w, http.StatusTooManyRequests, "limit_reached", err.Error())
	case errors.Is(err, domain.ErrInvalidRecord), errors.Is(err, domain.ErrInvalidLink),
		errors.Is(err, domain.ErrMalformedEvent), errors.Is(err, usecase.ErrSameChannel):
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
	case errors.Is(err, usecase.ErrBusy), errors.Is(err, usecase.ErrAnnounceDisabled):
		writeError(w, http.StatusConflict, "conflict", err.Error())
	case errors.Is(err, usecase.ErrProvider):
		writeError(w, http.StatusBadGateway, "provider_error", err.Error())
	case errors.Is(err, usecase.ErrTransport):
		writeError(w, http.StatusBadGateway, "transport_error", err.Error())
	case errors.Is(err, usecase.ErrRepository):
		writeError(w, http.StatusInternalServerError, "repository_error", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorEnvelope{Error: errorPayload{Code: code, Message: message}})
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeMethodNotAllowed(w http.ResponseWriter, allowed ...string) {
	w.Header().Set("Allow", strings.Join(allowed, ", "))
	writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
}

// decodeJSON reads a size-limited JSON body into dst. Unknown fields are
// rejected.
func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("invalid json: %w", err)
	}
	return nil
}

func parsePage(value string) (int, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 1, nil
	}
	page, err := strconv.Atoi(value)
	if err != nil || page < 1 || page > domain.MaxPage {
		return 0, errors.New("page must be a positive integer")
	}
	return page, nil
}

func parseID(value string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
	if err != nil {
		return 0, errors.New("invalid id")
	}
	return id, nil
}

func parseTitleType(value string, fallback domain.TitleType) (domain.TitleType, error) {
	value = strings.ToLower(strings.TrimSpace(value))
	if value == "" {
		return fallback, nil
	}
	t := domain.TitleType(value)
	if !t.Valid() {
		return "", errors.New("tmdb_type must be movie or tv")
	}
	return t, nil
}

func parseBoolQuery(value string) (bool, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return false, nil
	}
	switch strings.ToLower(value) {
	case "true", "1":
		return true, nil
	case "false", "0":
		return false, nil
	default:
		return false, errors.New("invalid bool")
	}
}

func parseOptionalID(value string) (int64, error) {
	if strings.TrimSpace(value) == "" {
		return 0, nil
	}
	return parseID(value)
}
