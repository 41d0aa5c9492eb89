package hub

import (
	"encoding/json"
	"log"
	"sync"
	"time"
)

type Subscription struct {
	QueueID string
}

type Client struct {
	ID           string
	Send         chan []byte
	Subscription Subscription
}

type Hub struct {
	mu      sync.RWMutex
	clients map[string]*Client
}

type SubscribeMessage struct {
	Action  string `json:"action"`
	QueueID string `json:"fila"`
}

type QueueUpdate struct {
	QueueID     string `json:"fila"`
	CurrentTurn int    `json:"turno_actual"`
	IssuedTurns int    `json:"turnos_otorgados"`
}

type envelope struct {
	Type      string      `json:"type"`
	Payload   QueueUpdate `json:"payload"`
	CreatedAt time.Time   `json:"created_at"`
}

func New() *Hub {
	return &Hub{clients: make(map[string]*Client)}
}

func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[client.ID] = client
}

func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.clients, client.ID)
	close(client.Send)
}

func (h *Hub) UpdateSubscription(client *Client, sub Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	client.Subscription = sub
}

// PublishQueueUpdate fans a turn advance out to every waiting screen
// subscribed to the queue.
func (h *Hub) PublishQueueUpdate(queueID string, currentTurn, issuedTurns int) {
	payload, err := json.Marshal(envelope{
		Type: "turn_advanced",
		Payload: QueueUpdate{
			QueueID:     queueID,
			CurrentTurn: currentTurn,
			IssuedTurns: issuedTurns,
		},
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		return
	}
	h.Broadcast(payload, queueID)
}

func (h *Hub) Broadcast(payload []byte, queueID string) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, client := range h.clients {
		if client.Subscription.QueueID == "" || client.Subscription.QueueID != queueID {
			continue
		}
		select {
		case client.Send <- payload:
		default:
			log.Printf("drop message for client %s", client.ID)
		}
	}
}

func ParseSubscribe(data []byte) (SubscribeMessage, bool) {
	var msg SubscribeMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return SubscribeMessage{}, false
	}
	if msg.Action != "subscribe" && msg.Action != "unsubscribe" {
		return SubscribeMessage{}, false
	}
	return msg, true
}
