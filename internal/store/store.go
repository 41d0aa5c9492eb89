package store

import (
	"context"
	"time"

	"github.com/c4ts0up/Fasti-Client/internal/models"
)

const (
	CollectionUsers   = "Usuarios"
	CollectionClients = "Clientes"
	CollectionQueues  = "Filas"
)

type AssignTurnInput struct {
	Phone      string
	QueueID    string
	Turn       int
	AssignedAt time.Time
}

// RecordStore is the contract against the external record store. Every
// operation targets a single record by its key (phone for users and clients,
// queue id for queues) and is atomic per record; nothing here spans
// collections.
type RecordStore interface {
	GetUser(ctx context.Context, phone string) (models.User, error)
	CreateUser(ctx context.Context, user models.User) error
	UpdateUserName(ctx context.Context, phone, name string) error
	DeleteUser(ctx context.Context, phone string) error

	GetClient(ctx context.Context, phone string) (models.Client, error)
	CreateClient(ctx context.Context, client models.Client) error
	DeleteClient(ctx context.Context, phone string) error

	GetQueue(ctx context.Context, queueID string) (models.Queue, error)

	// AdvanceQueue issues the next turn: it bumps turnoActual and
	// turnosOtorgados to expectedIssued+1 and returns the updated queue.
	// The write is guarded: it only applies while turnosOtorgados still
	// equals expectedIssued, so two concurrent joins can never issue the
	// same turn. A lost race reports ErrConflict; callers re-read and
	// retry. Backends with an atomic increment may ignore expectedIssued.
	AdvanceQueue(ctx context.Context, queueID string, expectedIssued int) (models.Queue, error)

	AssignClientTurn(ctx context.Context, input AssignTurnInput) error
}
