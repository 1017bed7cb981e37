package websocket

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/podcastgen/api/internal/model"
)

const (
	sendBuffer   = 256
	pingInterval = 30 * time.Second
	pruneEvery   = time.Minute
)

// DefaultRetention is how long the last event of a job is kept for late subscribers
const DefaultRetention = 30 * time.Minute

// Client is one websocket subscriber to a job's events
type Client struct {
	JobID string
	Conn  *websocket.Conn
	Send  chan []byte
	done  chan struct{}
}

// NewClient creates a subscriber for jobID
func NewClient(jobID string, conn *websocket.Conn) *Client {
	return &Client{
		JobID: jobID,
		Conn:  conn,
		Send:  make(chan []byte, sendBuffer),
		done:  make(chan struct{}),
	}
}

// Done is closed once the hub has dropped the client
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// offer queues msg unless the client is gone or its buffer is full
func (c *Client) offer(msg []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.Send <- msg:
		return true
	default:
		return false
	}
}

type snapshot struct {
	data []byte
	at   time.Time
}

// Hub fans job events out to subscribers. The latest event of every job is
// kept so a client that connects mid-job starts from the current phase.
type Hub struct {
	clients map[string]map[*Client]bool
	latest  map[string]snapshot

	register   chan *Client
	unregister chan *Client
	broadcast  chan *BroadcastMessage

	retention time.Duration
	mu        sync.RWMutex
}

// BroadcastMessage is an encoded event for one job
type BroadcastMessage struct {
	JobID   string
	Message []byte
}

// NewHub creates a hub that keeps each job's last event for DefaultRetention
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[string]map[*Client]bool),
		latest:     make(map[string]snapshot),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *BroadcastMessage, sendBuffer),
		retention:  DefaultRetention,
	}
}

// Run processes subscriptions and broadcasts until the process exits
func (h *Hub) Run() {
	prune := time.NewTicker(pruneEvery)
	defer prune.Stop()

	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			if h.clients[client.JobID] == nil {
				h.clients[client.JobID] = make(map[*Client]bool)
			}
			h.clients[client.JobID][client] = true
			last, ok := h.latest[client.JobID]
			h.mu.Unlock()
			if ok {
				client.offer(last.data)
			}
			log.Printf("[Hub] client subscribed to job %s", client.JobID)

		case client := <-h.unregister:
			h.mu.Lock()
			h.drop(client)
			h.mu.Unlock()
			log.Printf("[Hub] client left job %s", client.JobID)

		case msg := <-h.broadcast:
			h.mu.Lock()
			h.latest[msg.JobID] = snapshot{data: msg.Message, at: time.Now()}
			for client := range h.clients[msg.JobID] {
				if !client.offer(msg.Message) {
					log.Printf("[Hub] dropping slow subscriber on job %s", msg.JobID)
					h.drop(client)
				}
			}
			h.mu.Unlock()

		case now := <-prune.C:
			h.mu.Lock()
			h.pruneBefore(now.Add(-h.retention))
			h.mu.Unlock()
		}
	}
}

// drop removes a client and signals its writer; callers hold h.mu
func (h *Hub) drop(client *Client) {
	clients, ok := h.clients[client.JobID]
	if !ok || !clients[client] {
		return
	}
	delete(clients, client)
	close(client.done)
	if len(clients) == 0 {
		delete(h.clients, client.JobID)
	}
}

// pruneBefore forgets unwatched job events older than cutoff; callers hold h.mu
func (h *Hub) pruneBefore(cutoff time.Time) {
	for jobID, s := range h.latest {
		if s.at.Before(cutoff) && len(h.clients[jobID]) == 0 {
			delete(h.latest, jobID)
		}
	}
}

// Subscribers returns the number of clients watching a job
func (h *Hub) Subscribers(jobID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[jobID])
}

// Register adds a new client
func (h *Hub) Register(client *Client) {
	h.register <- client
}

// Unregister removes a client
func (h *Hub) Unregister(client *Client) {
	h.unregister <- client
}

func (h *Hub) publish(jobID string, msg interface{}) {
	data, err := json.Marshal(msg)
	if err != nil {
		log.Printf("[Hub] failed to encode event for job %s: %v", jobID, err)
		return
	}
	h.broadcast <- &BroadcastMessage{JobID: jobID, Message: data}
}

// BroadcastProgress sends a phase change to all job subscribers
func (h *Hub) BroadcastProgress(jobID string, phase model.Phase, progress int, status model.JobStatus, step string) {
	h.publish(jobID, model.WSProgressMessage{
		Type:        model.WSMessageTypeProgress,
		JobID:       jobID,
		Progress:    progress,
		Status:      status,
		Phase:       phase,
		CurrentStep: step,
	})
}

// BroadcastComplete sends the job result to all job subscribers
func (h *Hub) BroadcastComplete(jobID string, result interface{}) {
	h.publish(jobID, model.WSCompleteMessage{
		Type:   model.WSMessageTypeComplete,
		JobID:  jobID,
		Result: result,
	})
}

// BroadcastError sends a failure, tagged with the failing phase, to all job subscribers
func (h *Hub) BroadcastError(jobID string, phase model.Phase, code, message string) {
	h.publish(jobID, model.WSErrorMessage{
		Type:  model.WSMessageTypeError,
		JobID: jobID,
		Phase: phase,
		Error: model.WSError{
			Code:    code,
			Message: message,
		},
	})
}

// HandleConnection streams a job's events to c until either side goes away
func (h *Hub) HandleConnection(c *websocket.Conn, jobID string) {
	client := NewClient(jobID, c)
	h.Register(client)
	defer h.Unregister(client)

	go h.writePump(client)

	for {
		_, message, err := c.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("[Hub] websocket error on job %s: %v", jobID, err)
			}
			return
		}

		var msg model.WSMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			continue
		}
		if msg.Type == model.WSMessageTypePing {
			pong, _ := json.Marshal(model.WSMessage{Type: model.WSMessageTypePong})
			client.offer(pong)
		}
	}
}

// writePump is the only writer on the connection
func (h *Hub) writePump(client *Client) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case message := <-client.Send:
			if err := client.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-client.done:
			client.Conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		case <-ticker.C:
			if err := client.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
