package ws

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/lumenbrowser/lumen/backend/internal/infrastructure/logging"
	"github.com/lumenbrowser/lumen/backend/internal/infrastructure/monitoring"
	"github.com/lumenbrowser/lumen/backend/internal/permission"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// The server binds to loopback; the browser shell is the only
		// reachable client.
		return true
	},
}

// Event is one outbound message to the shell.
type Event struct {
	Type      string      `json:"type"`
	Payload   interface{} `json:"payload,omitempty"`
	Timestamp int64       `json:"timestamp"`
}

// inbound is one message from the shell.
type inbound struct {
	Type      string `json:"type"`
	RequestID string `json:"request_id,omitempty"`
	Approved  bool   `json:"approved,omitempty"`
}

// connection wraps one client with a write lock, since gorilla
// connections allow a single concurrent writer.
type connection struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *connection) write(e Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteJSON(e)
}

// Hub fans events out to every connected shell window and routes
// approval decisions back to the broker. It implements
// permission.Publisher.
type Hub struct {
	broker  *permission.Broker
	logger  *logging.Logger
	metrics *monitoring.Metrics

	mu    sync.Mutex
	conns map[string]*connection
}

var _ permission.Publisher = (*Hub)(nil)

// NewHub creates an empty hub. The broker is attached afterwards via
// SetBroker because broker and hub reference each other.
func NewHub(logger *logging.Logger, metrics *monitoring.Metrics) *Hub {
	return &Hub{
		logger:  logger.Named("ws"),
		metrics: metrics,
		conns:   make(map[string]*connection),
	}
}

// SetBroker attaches the permission broker that receives decisions.
func (h *Hub) SetBroker(broker *permission.Broker) {
	h.broker = broker
}

// PublishApproval broadcasts an approval prompt to every shell window.
func (h *Hub) PublishApproval(event permission.ApprovalEvent) {
	h.Broadcast("approval_request", event)
}

// Broadcast sends an event to every connected client. Write failures
// drop the connection; the read loop notices and cleans up.
func (h *Hub) Broadcast(eventType string, payload interface{}) {
	event := Event{Type: eventType, Payload: payload, Timestamp: time.Now().Unix()}

	h.mu.Lock()
	conns := make([]*connection, 0, len(h.conns))
	for _, c := range h.conns {
		conns = append(conns, c)
	}
	h.mu.Unlock()

	for _, c := range conns {
		if err := c.write(event); err != nil {
			h.logger.Debug("broadcast write failed", zap.Error(err))
		}
	}
}

// HandleConnection upgrades an HTTP request and serves the event
// channel until the client disconnects.
func (h *Hub) HandleConnection(c *gin.Context) {
	wsConn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	connID := uuid.New().String()
	conn := &connection{conn: wsConn}

	h.mu.Lock()
	h.conns[connID] = conn
	h.mu.Unlock()
	h.metrics.WSConnections.Inc()
	h.logger.Info("shell connected", zap.String("conn_id", connID))

	defer func() {
		h.mu.Lock()
		delete(h.conns, connID)
		h.mu.Unlock()
		h.metrics.WSConnections.Dec()
		wsConn.Close()
		h.logger.Info("shell disconnected", zap.String("conn_id", connID))
	}()

	conn.write(Event{Type: "system", Payload: "connected", Timestamp: time.Now().Unix()})

	// Replay prompts that are still waiting so a reconnecting window
	// can answer them.
	if h.broker != nil {
		for _, pending := range h.broker.Pending() {
			conn.write(Event{Type: "approval_request", Payload: pending, Timestamp: time.Now().Unix()})
		}
	}

	for {
		var msg inbound
		if err := wsConn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debug("websocket read error", zap.Error(err))
			}
			return
		}

		switch msg.Type {
		case "resolve":
			if h.broker != nil {
				h.broker.Resolve(msg.RequestID, msg.Approved)
			}
		case "ping":
			conn.write(Event{Type: "pong", Timestamp: time.Now().Unix()})
		default:
			conn.write(Event{Type: "error", Payload: "unknown message type", Timestamp: time.Now().Unix()})
		}
	}
}
