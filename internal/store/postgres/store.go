// Package postgres implements the record store against a directly owned
// database. Queue advancement is a single atomic UPDATE, so the optimistic
// guard the HTTP backend needs does not apply here.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/c4ts0up/Fasti-Client/internal/models"
	"github.com/c4ts0up/Fasti-Client/internal/store"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func (s *Store) GetUser(ctx context.Context, phone string) (models.User, error) {
	var user models.User
	row := s.pool.QueryRow(ctx, `
		SELECT celular, nombre, clave FROM usuarios WHERE celular = $1
	`, phone)
	if err := row.Scan(&user.Phone, &user.Name, &user.Credential); err != nil {
		return models.User{}, mapError(err)
	}
	return user, nil
}

func (s *Store) CreateUser(ctx context.Context, user models.User) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO usuarios (celular, nombre, clave) VALUES ($1, $2, $3)
	`, user.Phone, user.Name, user.Credential)
	return mapWriteError(err)
}

func (s *Store) UpdateUserName(ctx context.Context, phone, name string) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE usuarios SET nombre = $2 WHERE celular = $1
	`, phone, name)
	if err != nil {
		return mapWriteError(err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) DeleteUser(ctx context.Context, phone string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM usuarios WHERE celular = $1`, phone)
	return mapWriteError(err)
}

func (s *Store) GetClient(ctx context.Context, phone string) (models.Client, error) {
	var client models.Client
	var queueID *string
	var turn *int
	row := s.pool.QueryRow(ctx, `
		SELECT celular, fila, turno, hora_turno FROM clientes WHERE celular = $1
	`, phone)
	if err := row.Scan(&client.Phone, &queueID, &turn, &client.TurnTimestamp); err != nil {
		return models.Client{}, mapError(err)
	}
	if queueID != nil {
		client.QueueID = *queueID
	}
	if turn != nil {
		client.TurnNumber = *turn
	}
	return client, nil
}

func (s *Store) CreateClient(ctx context.Context, client models.Client) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO clientes (celular) VALUES ($1)
	`, client.Phone)
	return mapWriteError(err)
}

func (s *Store) DeleteClient(ctx context.Context, phone string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM clientes WHERE celular = $1`, phone)
	return mapWriteError(err)
}

func (s *Store) GetQueue(ctx context.Context, queueID string) (models.Queue, error) {
	var queue models.Queue
	row := s.pool.QueryRow(ctx, `
		SELECT id, turno_actual, turnos_otorgados, turnos_resueltos, espera_acumulada
		FROM filas WHERE id = $1
	`, queueID)
	if err := row.Scan(&queue.ID, &queue.CurrentTurn, &queue.IssuedTurns, &queue.ResolvedTurns, &queue.AccumulatedWaitTime); err != nil {
		return models.Queue{}, mapError(err)
	}
	return queue, nil
}

// AdvanceQueue increments both counters in one statement; the row lock
// linearizes concurrent joins, so expectedIssued is not consulted.
func (s *Store) AdvanceQueue(ctx context.Context, queueID string, expectedIssued int) (models.Queue, error) {
	var queue models.Queue
	row := s.pool.QueryRow(ctx, `
		UPDATE filas
		SET turno_actual = turnos_otorgados + 1,
			turnos_otorgados = turnos_otorgados + 1
		WHERE id = $1
		RETURNING id, turno_actual, turnos_otorgados, turnos_resueltos, espera_acumulada
	`, queueID)
	if err := row.Scan(&queue.ID, &queue.CurrentTurn, &queue.IssuedTurns, &queue.ResolvedTurns, &queue.AccumulatedWaitTime); err != nil {
		return models.Queue{}, mapError(err)
	}
	return queue, nil
}

func (s *Store) AssignClientTurn(ctx context.Context, input store.AssignTurnInput) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE clientes SET fila = $2, turno = $3, hora_turno = $4 WHERE celular = $1
	`, input.Phone, input.QueueID, input.Turn, input.AssignedAt.UTC())
	if err != nil {
		return mapWriteError(err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

func mapError(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return store.ErrNotFound
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", store.ErrTimeout, err)
	}
	return err
}

func mapWriteError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", store.ErrTimeout, err)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return fmt.Errorf("%w: %s", store.ErrWriteFailed, pgErr.Code)
	}
	return fmt.Errorf("%w: %v", store.ErrWriteFailed, err)
}
