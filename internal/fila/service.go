package fila

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/c4ts0up/Fasti-Client/internal/models"
	"github.com/c4ts0up/Fasti-Client/internal/store"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/crypto/bcrypt"
)

var (
	// ErrPartialFailure reports that the queue counters advanced but the
	// client assignment did not. The issued turn is not rolled back; the
	// caller may retry the assignment.
	ErrPartialFailure = errors.New("queue advanced but client assignment failed")

	// ErrServiceUnavailable is the only error the waiting-screen path
	// surfaces; the internal cause is logged, never returned.
	ErrServiceUnavailable = errors.New("service unavailable")
)

const defaultJoinRetryAttempts = 5

// Publisher receives queue updates after a successful join.
type Publisher interface {
	PublishQueueUpdate(queueID string, currentTurn, issuedTurns int)
}

type Options struct {
	// JoinRetryAttempts bounds the re-read/retry loop when a concurrent
	// join wins the guarded counter write. Zero means the default.
	JoinRetryAttempts int
	Publisher         Publisher
	Now               func() time.Time
}

type Service struct {
	store     store.RecordStore
	retries   int
	publisher Publisher
	now       func() time.Time
	tracer    trace.Tracer
}

func NewService(recordStore store.RecordStore, options Options) *Service {
	retries := options.JoinRetryAttempts
	if retries <= 0 {
		retries = defaultJoinRetryAttempts
	}
	now := options.Now
	if now == nil {
		now = time.Now
	}
	return &Service{
		store:     recordStore,
		retries:   retries,
		publisher: options.Publisher,
		now:       now,
		tracer:    otel.Tracer("fila"),
	}
}

type Assignment struct {
	QueueID      string    `json:"fila"`
	AssignedTurn int       `json:"turno"`
	AssignedAt   time.Time `json:"hora_turno"`
}

// JoinQueue issues the next turn of the queue to the client. The counter
// write is guarded against concurrent joins; a lost race re-reads the queue
// and retries up to the configured bound. If the counters advance but the
// client assignment fails, the error wraps ErrPartialFailure and the issued
// turn stays recorded on the queue.
func (s *Service) JoinQueue(ctx context.Context, queueID, phone string) (Assignment, error) {
	ctx, span := s.tracer.Start(ctx, "fila.JoinQueue",
		trace.WithAttributes(attribute.String("queue.id", queueID)))
	defer span.End()

	queue, err := s.store.GetQueue(ctx, queueID)
	if err != nil {
		return Assignment{}, classify(err)
	}

	var advanced models.Queue
	for attempt := 1; ; attempt++ {
		advanced, err = s.store.AdvanceQueue(ctx, queueID, queue.IssuedTurns)
		if err == nil {
			break
		}
		if !errors.Is(err, store.ErrConflict) || attempt >= s.retries {
			return Assignment{}, classify(err)
		}
		// Lost the race or the queue disappeared; re-read to tell.
		queue, err = s.store.GetQueue(ctx, queueID)
		if err != nil {
			return Assignment{}, classify(err)
		}
	}
	span.SetAttributes(attribute.Int("queue.turn", advanced.CurrentTurn))

	assignedAt := s.now().UTC()
	err = s.store.AssignClientTurn(ctx, store.AssignTurnInput{
		Phone:      phone,
		QueueID:    queueID,
		Turn:       advanced.CurrentTurn,
		AssignedAt: assignedAt,
	})
	if err != nil {
		return Assignment{}, fmt.Errorf("%w: %v", ErrPartialFailure, err)
	}

	if s.publisher != nil {
		s.publisher.PublishQueueUpdate(queueID, advanced.CurrentTurn, advanced.IssuedTurns)
	}

	return Assignment{
		QueueID:      queueID,
		AssignedTurn: advanced.CurrentTurn,
		AssignedAt:   assignedAt,
	}, nil
}

type Snapshot struct {
	Name          string     `json:"nombre"`
	QueueID       string     `json:"fila"`
	TurnNumber    int        `json:"turno"`
	TurnTimestamp *time.Time `json:"hora_turno,omitempty"`
	CurrentTurn   int        `json:"turno_actual"`
	EstimatedWait int        `json:"espera_estimada"`
	BeingServed   bool       `json:"siendo_atendido"`
}

// GetWaitingScreen assembles the waiting-screen snapshot for a client. Every
// internal failure collapses to ErrServiceUnavailable; the cause is logged
// so operators still get a diagnosis.
func (s *Service) GetWaitingScreen(ctx context.Context, phone string) (Snapshot, error) {
	ctx, span := s.tracer.Start(ctx, "fila.GetWaitingScreen")
	defer span.End()

	user, err := s.store.GetUser(ctx, phone)
	if err != nil {
		return Snapshot{}, unavailable("get_user", phone, err)
	}
	client, err := s.store.GetClient(ctx, phone)
	if err != nil {
		return Snapshot{}, unavailable("get_client", phone, err)
	}
	if client.QueueID == "" {
		return Snapshot{}, unavailable("get_queue", phone, store.ErrNotFound)
	}
	queue, err := s.store.GetQueue(ctx, client.QueueID)
	if err != nil {
		return Snapshot{}, unavailable("get_queue", phone, err)
	}

	estimate := EstimateWait(queue.AccumulatedWaitTime, queue.ResolvedTurns, queue.CurrentTurn, client.TurnNumber)
	return Snapshot{
		Name:          user.Name,
		QueueID:       client.QueueID,
		TurnNumber:    client.TurnNumber,
		TurnTimestamp: client.TurnTimestamp,
		CurrentTurn:   queue.CurrentTurn,
		EstimatedWait: estimate,
		BeingServed:   estimate <= 0,
	}, nil
}

// Register creates the account pair. The usuario insert goes first; if the
// cliente insert then fails the account exists without a queue record, which
// surfaces as a partial failure.
func (s *Service) Register(ctx context.Context, phone, name, credential string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(credential), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	err = s.store.CreateUser(ctx, models.User{Phone: phone, Name: name, Credential: string(hash)})
	if err != nil {
		return classify(err)
	}
	if err := s.store.CreateClient(ctx, models.Client{Phone: phone}); err != nil {
		return fmt.Errorf("%w: %v", ErrPartialFailure, err)
	}
	return nil
}

func (s *Service) GetProfile(ctx context.Context, phone string) (models.User, error) {
	user, err := s.store.GetUser(ctx, phone)
	if err != nil {
		return models.User{}, classify(err)
	}
	user.Credential = ""
	return user, nil
}

func (s *Service) UpdateName(ctx context.Context, phone, name string) error {
	return classify(s.store.UpdateUserName(ctx, phone, name))
}

// Delete removes the account pair, cliente first so a failure never leaves a
// queue record pointing at a deleted usuario.
func (s *Service) Delete(ctx context.Context, phone string) error {
	if err := s.store.DeleteClient(ctx, phone); err != nil {
		return classify(err)
	}
	if err := s.store.DeleteUser(ctx, phone); err != nil {
		return fmt.Errorf("%w: %v", ErrPartialFailure, err)
	}
	return nil
}

func classify(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", store.ErrTimeout, err)
	}
	return err
}

func unavailable(step, phone string, err error) error {
	log.Printf("waiting screen step=%s phone=%s error=%v", step, phone, err)
	return ErrServiceUnavailable
}
