// Package supabase implements the record store over the Supabase PostgREST
// API. Records are addressed with column=eq.value filters; single-record
// reads insist on exactly one match instead of taking element zero of the
// result list.
package supabase

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/c4ts0up/Fasti-Client/internal/models"
	"github.com/c4ts0up/Fasti-Client/internal/store"
)

type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

type Store struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

func NewStore(cfg Config) *Store {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Store{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		client:  &http.Client{Timeout: timeout},
	}
}

func (s *Store) GetUser(ctx context.Context, phone string) (models.User, error) {
	var user models.User
	if err := s.getOne(ctx, store.CollectionUsers, eq("celular", phone), &user); err != nil {
		return models.User{}, err
	}
	return user, nil
}

func (s *Store) CreateUser(ctx context.Context, user models.User) error {
	return s.insertOne(ctx, store.CollectionUsers, user)
}

func (s *Store) UpdateUserName(ctx context.Context, phone, name string) error {
	rows, err := s.patch(ctx, store.CollectionUsers, eq("celular", phone), map[string]interface{}{
		"nombre": name,
	})
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) DeleteUser(ctx context.Context, phone string) error {
	return s.deleteOne(ctx, store.CollectionUsers, eq("celular", phone))
}

func (s *Store) GetClient(ctx context.Context, phone string) (models.Client, error) {
	var client models.Client
	if err := s.getOne(ctx, store.CollectionClients, eq("celular", phone), &client); err != nil {
		return models.Client{}, err
	}
	return client, nil
}

func (s *Store) CreateClient(ctx context.Context, client models.Client) error {
	return s.insertOne(ctx, store.CollectionClients, client)
}

func (s *Store) DeleteClient(ctx context.Context, phone string) error {
	return s.deleteOne(ctx, store.CollectionClients, eq("celular", phone))
}

func (s *Store) GetQueue(ctx context.Context, queueID string) (models.Queue, error) {
	var queue models.Queue
	if err := s.getOne(ctx, store.CollectionQueues, eq("id", queueID), &queue); err != nil {
		return models.Queue{}, err
	}
	return queue, nil
}

// AdvanceQueue patches both counters to expectedIssued+1 with an extra
// turnosOtorgados=eq.expectedIssued filter. Zero matched rows means either a
// concurrent join advanced the counter first or the queue is gone; both
// report ErrConflict and the caller re-reads to tell them apart.
func (s *Store) AdvanceQueue(ctx context.Context, queueID string, expectedIssued int) (models.Queue, error) {
	filter := url.Values{}
	filter.Set("id", "eq."+queueID)
	filter.Set("turnosOtorgados", "eq."+strconv.Itoa(expectedIssued))

	next := expectedIssued + 1
	rows, err := s.patch(ctx, store.CollectionQueues, filter, map[string]interface{}{
		"turnoActual":     next,
		"turnosOtorgados": next,
	})
	if err != nil {
		return models.Queue{}, err
	}
	if len(rows) != 1 {
		return models.Queue{}, fmt.Errorf("%w: expected 1 queue, matched %d", store.ErrConflict, len(rows))
	}

	var queue models.Queue
	if err := json.Unmarshal(rows[0], &queue); err != nil {
		return models.Queue{}, err
	}
	return queue, nil
}

func (s *Store) AssignClientTurn(ctx context.Context, input store.AssignTurnInput) error {
	rows, err := s.patch(ctx, store.CollectionClients, eq("celular", input.Phone), map[string]interface{}{
		"fila":       input.QueueID,
		"turno":      input.Turn,
		"hora_turno": input.AssignedAt.UTC().Format(time.RFC3339),
	})
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) getOne(ctx context.Context, collection string, filter url.Values, target interface{}) error {
	req, err := s.newRequest(ctx, http.MethodGet, collection, filter, nil)
	if err != nil {
		return err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return classify(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("record store read: unexpected status %d", resp.StatusCode)
	}

	var rows []json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&rows); err != nil {
		return err
	}
	switch len(rows) {
	case 0:
		return store.ErrNotFound
	case 1:
		return json.Unmarshal(rows[0], target)
	default:
		return fmt.Errorf("%w: %d records matched", store.ErrConflict, len(rows))
	}
}

// patch applies a partial update to every record matching the filter and
// returns the updated rows, so callers can distinguish "nothing matched"
// from "applied".
func (s *Store) patch(ctx context.Context, collection string, filter url.Values, fields map[string]interface{}) ([]json.RawMessage, error) {
	body, err := json.Marshal(fields)
	if err != nil {
		return nil, err
	}
	req, err := s.newRequest(ctx, http.MethodPatch, collection, filter, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Prefer", "return=representation")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, classify(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", store.ErrWriteFailed, resp.StatusCode)
	}

	var rows []json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&rows); err != nil {
		return nil, err
	}
	return rows, nil
}

func (s *Store) insertOne(ctx context.Context, collection string, record interface{}) error {
	body, err := json.Marshal(record)
	if err != nil {
		return err
	}
	req, err := s.newRequest(ctx, http.MethodPost, collection, nil, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Prefer", "return=minimal")

	resp, err := s.client.Do(req)
	if err != nil {
		return classify(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("%w: status %d", store.ErrWriteFailed, resp.StatusCode)
	}
	return nil
}

func (s *Store) deleteOne(ctx context.Context, collection string, filter url.Values) error {
	req, err := s.newRequest(ctx, http.MethodDelete, collection, filter, nil)
	if err != nil {
		return err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return classify(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent && resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: status %d", store.ErrWriteFailed, resp.StatusCode)
	}
	return nil
}

func (s *Store) newRequest(ctx context.Context, method, collection string, filter url.Values, body *bytes.Reader) (*http.Request, error) {
	endpoint := s.baseURL + "/" + collection
	if len(filter) > 0 {
		endpoint += "?" + filter.Encode()
	}
	var reader io.Reader
	if body != nil {
		reader = body
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("apikey", s.apiKey)
	req.Header.Set("Authorization", "Bearer "+s.apiKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

func eq(column, value string) url.Values {
	filter := url.Values{}
	filter.Set(column, "eq."+value)
	return filter
}

func classify(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", store.ErrTimeout, err)
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Timeout() {
		return fmt.Errorf("%w: %v", store.ErrTimeout, err)
	}
	return err
}
