package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/c4ts0up/Fasti-Client/internal/fila"
	"github.com/c4ts0up/Fasti-Client/internal/models"
	"github.com/c4ts0up/Fasti-Client/internal/store"
)

type fakeService struct {
	joinFn       func(ctx context.Context, queueID, phone string) (fila.Assignment, error)
	waitingFn    func(ctx context.Context, phone string) (fila.Snapshot, error)
	registerFn   func(ctx context.Context, phone, name, credential string) error
	getProfileFn func(ctx context.Context, phone string) (models.User, error)
	updateNameFn func(ctx context.Context, phone, name string) error
	deleteFn     func(ctx context.Context, phone string) error
}

func (f fakeService) JoinQueue(ctx context.Context, queueID, phone string) (fila.Assignment, error) {
	if f.joinFn == nil {
		return fila.Assignment{}, nil
	}
	return f.joinFn(ctx, queueID, phone)
}

func (f fakeService) GetWaitingScreen(ctx context.Context, phone string) (fila.Snapshot, error) {
	if f.waitingFn == nil {
		return fila.Snapshot{}, nil
	}
	return f.waitingFn(ctx, phone)
}

func (f fakeService) Register(ctx context.Context, phone, name, credential string) error {
	if f.registerFn == nil {
		return nil
	}
	return f.registerFn(ctx, phone, name, credential)
}

func (f fakeService) GetProfile(ctx context.Context, phone string) (models.User, error) {
	if f.getProfileFn == nil {
		return models.User{}, nil
	}
	return f.getProfileFn(ctx, phone)
}

func (f fakeService) UpdateName(ctx context.Context, phone, name string) error {
	if f.updateNameFn == nil {
		return nil
	}
	return f.updateNameFn(ctx, phone, name)
}

func (f fakeService) Delete(ctx context.Context, phone string) error {
	if f.deleteFn == nil {
		return nil
	}
	return f.deleteFn(ctx, phone)
}

func doRequest(t *testing.T, handler http.Handler, method, path string, payload interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var body bytes.Buffer
	if payload != nil {
		if err := json.NewEncoder(&body).Encode(payload); err != nil {
			t.Fatalf("encode payload: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &body)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, req)
	return recorder
}

func TestJoinQueueEndpoint(t *testing.T) {
	at := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	handler := NewHandler(fakeService{
		joinFn: func(ctx context.Context, queueID, phone string) (fila.Assignment, error) {
			if queueID != "fila-1" || phone != "3001234567" {
				t.Fatalf("join called with queueID=%q phone=%q", queueID, phone)
			}
			return fila.Assignment{QueueID: queueID, AssignedTurn: 12, AssignedAt: at}, nil
		},
	}).Routes()

	recorder := doRequest(t, handler, http.MethodPost, "/api/queues/fila-1/join", map[string]string{
		"celular": "3001234567",
	})
	if recorder.Code != http.StatusOK {
		t.Fatalf("status %d, want 200: %s", recorder.Code, recorder.Body.String())
	}

	var assignment fila.Assignment
	if err := json.Unmarshal(recorder.Body.Bytes(), &assignment); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if assignment.AssignedTurn != 12 {
		t.Fatalf("turno %d, want 12", assignment.AssignedTurn)
	}
}

func TestJoinQueueValidation(t *testing.T) {
	handler := NewHandler(fakeService{}).Routes()

	cases := []struct {
		name    string
		path    string
		payload interface{}
		status  int
	}{
		{"invalid phone", "/api/queues/fila-1/join", map[string]string{"celular": "abc"}, http.StatusBadRequest},
		{"short phone", "/api/queues/fila-1/join", map[string]string{"celular": "123"}, http.StatusBadRequest},
		{"unknown field", "/api/queues/fila-1/join", map[string]string{"telefono": "3001234567"}, http.StatusBadRequest},
		{"bad request id", "/api/queues/fila-1/join", map[string]string{"celular": "3001234567", "request_id": "nope"}, http.StatusBadRequest},
		{"missing join segment", "/api/queues/fila-1", map[string]string{"celular": "3001234567"}, http.StatusNotFound},
	}

	for _, tt := range cases {
		t.Run(tt.name, func(t *testing.T) {
			recorder := doRequest(t, handler, http.MethodPost, tt.path, tt.payload)
			if recorder.Code != tt.status {
				t.Fatalf("status %d, want %d: %s", recorder.Code, tt.status, recorder.Body.String())
			}
		})
	}
}

func TestJoinQueueErrorMapping(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"not found", store.ErrNotFound, http.StatusNotFound, "not_found"},
		{"partial failure", fila.ErrPartialFailure, http.StatusInternalServerError, "partial_failure"},
		{"timeout", store.ErrTimeout, http.StatusGatewayTimeout, "upstream_timeout"},
		{"write failed", store.ErrWriteFailed, http.StatusBadGateway, "upstream_write_failed"},
		{"conflict", store.ErrConflict, http.StatusConflict, "conflict"},
	}

	for _, tt := range cases {
		t.Run(tt.name, func(t *testing.T) {
			handler := NewHandler(fakeService{
				joinFn: func(ctx context.Context, queueID, phone string) (fila.Assignment, error) {
					return fila.Assignment{}, tt.err
				},
			}).Routes()

			recorder := doRequest(t, handler, http.MethodPost, "/api/queues/fila-1/join", map[string]string{
				"celular": "3001234567",
			})
			if recorder.Code != tt.status {
				t.Fatalf("status %d, want %d", recorder.Code, tt.status)
			}
			var resp errorResponse
			if err := json.Unmarshal(recorder.Body.Bytes(), &resp); err != nil {
				t.Fatalf("decode error response: %v", err)
			}
			if resp.Error.Code != tt.code {
				t.Fatalf("code %q, want %q", resp.Error.Code, tt.code)
			}
		})
	}
}

func TestWaitingScreenEndpoint(t *testing.T) {
	handler := NewHandler(fakeService{
		waitingFn: func(ctx context.Context, phone string) (fila.Snapshot, error) {
			return fila.Snapshot{Name: "Maria", QueueID: "fila-1", TurnNumber: 8, CurrentTurn: 5, EstimatedWait: 30}, nil
		},
	}).Routes()

	recorder := doRequest(t, handler, http.MethodGet, "/api/clients/3001234567/waiting-screen", nil)
	if recorder.Code != http.StatusOK {
		t.Fatalf("status %d, want 200: %s", recorder.Code, recorder.Body.String())
	}

	var snapshot fila.Snapshot
	if err := json.Unmarshal(recorder.Body.Bytes(), &snapshot); err != nil {
		t.Fatalf("decode snapshot: %v", err)
	}
	if snapshot.EstimatedWait != 30 || snapshot.Name != "Maria" {
		t.Fatalf("unexpected snapshot: %+v", snapshot)
	}
}

func TestWaitingScreenOpaqueError(t *testing.T) {
	handler := NewHandler(fakeService{
		waitingFn: func(ctx context.Context, phone string) (fila.Snapshot, error) {
			return fila.Snapshot{}, fila.ErrServiceUnavailable
		},
	}).Routes()

	recorder := doRequest(t, handler, http.MethodGet, "/api/clients/3001234567/waiting-screen", nil)
	if recorder.Code != http.StatusServiceUnavailable {
		t.Fatalf("status %d, want 503", recorder.Code)
	}
	var resp errorResponse
	if err := json.Unmarshal(recorder.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode error response: %v", err)
	}
	if resp.Error.Code != "service_unavailable" {
		t.Fatalf("code %q, want service_unavailable", resp.Error.Code)
	}
}

func TestRegisterEndpoint(t *testing.T) {
	registered := false
	handler := NewHandler(fakeService{
		registerFn: func(ctx context.Context, phone, name, credential string) error {
			registered = true
			if phone != "3001234567" || name != "Maria" || credential != "secreta" {
				t.Fatalf("register called with %q %q %q", phone, name, credential)
			}
			return nil
		},
	}).Routes()

	recorder := doRequest(t, handler, http.MethodPost, "/api/clients", map[string]string{
		"celular": "3001234567",
		"nombre":  "Maria",
		"clave":   "secreta",
	})
	if recorder.Code != http.StatusCreated {
		t.Fatalf("status %d, want 201: %s", recorder.Code, recorder.Body.String())
	}
	if !registered {
		t.Fatalf("register not called")
	}
}

func TestProfileEndpoints(t *testing.T) {
	handler := NewHandler(fakeService{
		getProfileFn: func(ctx context.Context, phone string) (models.User, error) {
			return models.User{Phone: phone, Name: "Maria"}, nil
		},
	}).Routes()

	recorder := doRequest(t, handler, http.MethodGet, "/api/clients/3001234567", nil)
	if recorder.Code != http.StatusOK {
		t.Fatalf("get profile status %d, want 200", recorder.Code)
	}
	var user models.User
	if err := json.Unmarshal(recorder.Body.Bytes(), &user); err != nil {
		t.Fatalf("decode profile: %v", err)
	}
	if user.Name != "Maria" {
		t.Fatalf("nombre %q, want Maria", user.Name)
	}

	recorder = doRequest(t, handler, http.MethodPut, "/api/clients/3001234567", map[string]string{
		"nombre": "Maria Jose",
	})
	if recorder.Code != http.StatusNoContent {
		t.Fatalf("update name status %d, want 204: %s", recorder.Code, recorder.Body.String())
	}

	recorder = doRequest(t, handler, http.MethodDelete, "/api/clients/3001234567", nil)
	if recorder.Code != http.StatusNoContent {
		t.Fatalf("delete status %d, want 204", recorder.Code)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	handler := NewHandler(fakeService{}).Routes()

	cases := []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/api/queues/fila-1/join"},
		{http.MethodPost, "/api/clients/3001234567/waiting-screen"},
		{http.MethodPut, "/api/clients"},
		{http.MethodPost, "/healthz"},
	}
	for _, tt := range cases {
		recorder := doRequest(t, handler, tt.method, tt.path, nil)
		if recorder.Code != http.StatusMethodNotAllowed {
			t.Fatalf("%s %s status %d, want 405", tt.method, tt.path, recorder.Code)
		}
	}
}
