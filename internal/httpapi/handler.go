package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/c4ts0up/Fasti-Client/internal/fila"
	"github.com/c4ts0up/Fasti-Client/internal/models"
	"github.com/c4ts0up/Fasti-Client/internal/store"

	"github.com/google/uuid"
)

type Service interface {
	JoinQueue(ctx context.Context, queueID, phone string) (fila.Assignment, error)
	GetWaitingScreen(ctx context.Context, phone string) (fila.Snapshot, error)
	Register(ctx context.Context, phone, name, credential string) error
	GetProfile(ctx context.Context, phone string) (models.User, error)
	UpdateName(ctx context.Context, phone, name string) error
	Delete(ctx context.Context, phone string) error
}

type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", h.handleHealth)
	mux.HandleFunc("/api/queues/", h.handleQueues)
	mux.HandleFunc("/api/clients", h.handleRegister)
	mux.HandleFunc("/api/clients/", h.handleClients)
	return mux
}

type joinRequest struct {
	RequestID string `json:"request_id"`
	Phone     string `json:"celular"`
}

type registerRequest struct {
	RequestID  string `json:"request_id"`
	Phone      string `json:"celular"`
	Name       string `json:"nombre"`
	Credential string `json:"clave"`
}

type updateNameRequest struct {
	RequestID string `json:"request_id"`
	Name      string `json:"nombre"`
}

type errorResponse struct {
	RequestID string        `json:"request_id"`
	Error     responseError `json:"error"`
}

type responseError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (h *Handler) handleQueues(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	path := strings.TrimPrefix(r.URL.Path, "/api/queues/")
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) != 2 || parts[1] != "join" || parts[0] == "" {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	queueID := parts[0]

	var req joinRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		writeError(w, req.RequestID, http.StatusBadRequest, "invalid_json", "invalid JSON payload")
		return
	}

	req.RequestID = strings.TrimSpace(req.RequestID)
	req.Phone = strings.TrimSpace(req.Phone)
	requestID, ok := normalizeRequestID(w, req.RequestID)
	if !ok {
		return
	}
	if !isValidPhone(req.Phone) {
		writeError(w, requestID, http.StatusBadRequest, "invalid_request", "celular must be 8-16 digits")
		return
	}

	assignment, err := h.service.JoinQueue(r.Context(), queueID, req.Phone)
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, requestID, status, code, msg)
		return
	}

	writeJSON(w, http.StatusOK, assignment)
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req registerRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		writeError(w, req.RequestID, http.StatusBadRequest, "invalid_json", "invalid JSON payload")
		return
	}

	req.RequestID = strings.TrimSpace(req.RequestID)
	req.Phone = strings.TrimSpace(req.Phone)
	req.Name = strings.TrimSpace(req.Name)
	requestID, ok := normalizeRequestID(w, req.RequestID)
	if !ok {
		return
	}
	if !isValidPhone(req.Phone) {
		writeError(w, requestID, http.StatusBadRequest, "invalid_request", "celular must be 8-16 digits")
		return
	}
	if req.Name == "" || req.Credential == "" {
		writeError(w, requestID, http.StatusBadRequest, "invalid_request", "nombre and clave are required")
		return
	}

	if err := h.service.Register(r.Context(), req.Phone, req.Name, req.Credential); err != nil {
		status, code, msg := mapError(err)
		writeError(w, requestID, status, code, msg)
		return
	}

	w.WriteHeader(http.StatusCreated)
}

func (h *Handler) handleClients(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/clients/")
	parts := strings.Split(strings.Trim(path, "/"), "/")

	switch {
	case len(parts) == 1 && parts[0] != "":
		h.handleProfile(w, r, parts[0])
	case len(parts) == 2 && parts[1] == "waiting-screen":
		h.handleWaitingScreen(w, r, parts[0])
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (h *Handler) handleWaitingScreen(w http.ResponseWriter, r *http.Request, phone string) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if !isValidPhone(phone) {
		writeError(w, "", http.StatusBadRequest, "invalid_request", "celular must be 8-16 digits")
		return
	}

	snapshot, err := h.service.GetWaitingScreen(r.Context(), phone)
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, "", status, code, msg)
		return
	}

	writeJSON(w, http.StatusOK, snapshot)
}

func (h *Handler) handleProfile(w http.ResponseWriter, r *http.Request, phone string) {
	if !isValidPhone(phone) {
		writeError(w, "", http.StatusBadRequest, "invalid_request", "celular must be 8-16 digits")
		return
	}

	switch r.Method {
	case http.MethodGet:
		user, err := h.service.GetProfile(r.Context(), phone)
		if err != nil {
			status, code, msg := mapError(err)
			writeError(w, "", status, code, msg)
			return
		}
		writeJSON(w, http.StatusOK, user)
	case http.MethodPut:
		var req updateNameRequest
		decoder := json.NewDecoder(r.Body)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&req); err != nil {
			writeError(w, req.RequestID, http.StatusBadRequest, "invalid_json", "invalid JSON payload")
			return
		}
		req.RequestID = strings.TrimSpace(req.RequestID)
		req.Name = strings.TrimSpace(req.Name)
		requestID, ok := normalizeRequestID(w, req.RequestID)
		if !ok {
			return
		}
		if req.Name == "" {
			writeError(w, requestID, http.StatusBadRequest, "invalid_request", "nombre is required")
			return
		}
		if err := h.service.UpdateName(r.Context(), phone, req.Name); err != nil {
			status, code, msg := mapError(err)
			writeError(w, requestID, status, code, msg)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	case http.MethodDelete:
		if err := h.service.Delete(r.Context(), phone); err != nil {
			status, code, msg := mapError(err)
			writeError(w, "", status, code, msg)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// normalizeRequestID validates a caller-supplied request id or mints one.
func normalizeRequestID(w http.ResponseWriter, requestID string) (string, bool) {
	if requestID == "" {
		return uuid.NewString(), true
	}
	if !isValidUUID(requestID) {
		writeError(w, requestID, http.StatusBadRequest, "invalid_request", "request_id must be a UUID")
		return "", false
	}
	return requestID, true
}

func isValidUUID(value string) bool {
	_, err := uuid.Parse(value)
	return err == nil
}

func isValidPhone(value string) bool {
	if len(value) < 8 || len(value) > 16 {
		return false
	}
	for _, r := range value {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func mapError(err error) (int, string, string) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound, "not_found", "record not found"
	case errors.Is(err, fila.ErrPartialFailure):
		return http.StatusInternalServerError, "partial_failure", "queue advanced but assignment incomplete; retry the assignment"
	case errors.Is(err, fila.ErrServiceUnavailable):
		return http.StatusServiceUnavailable, "service_unavailable", "service unavailable"
	case errors.Is(err, store.ErrTimeout):
		return http.StatusGatewayTimeout, "upstream_timeout", "record store timed out"
	case errors.Is(err, store.ErrWriteFailed):
		return http.StatusBadGateway, "upstream_write_failed", "record store rejected the write"
	case errors.Is(err, store.ErrConflict):
		return http.StatusConflict, "conflict", "conflicting record state"
	default:
		return http.StatusInternalServerError, "internal_error", "internal server error"
	}
}

func writeError(w http.ResponseWriter, requestID string, status int, code, message string) {
	writeJSON(w, status, errorResponse{
		RequestID: requestID,
		Error: responseError{
			Code:    code,
			Message: message,
		},
	})
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(payload)
}
