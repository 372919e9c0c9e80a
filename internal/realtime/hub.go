package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	// PingInterval and PongWait are used for heartbeat.
	PingInterval = 30
	PongWait     = 60

	// AdminRoom holds every connection whose user is an admin.
	AdminRoom = "admin"

	roomAll        = "*"
	publishTimeout = 5 * time.Second
)

// ErrNotInitialized is the panic value of an emit on a hub that is not running.
var ErrNotInitialized = errors.New("realtime: hub is not running")

// UserRoom returns the private room of a user.
func UserRoom(userID uuid.UUID) string {
	return "user:" + userID.String()
}

// Envelope is one event addressed to a room, as carried by a Backplane.
type Envelope struct {
	Room  string          `json:"room"`
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
	At    int64           `json:"at"`
}

// Backplane fans envelopes out to every process running a hub, this one included.
type Backplane interface {
	Publish(ctx context.Context, env Envelope) error
	Subscribe(ctx context.Context, handler func(Envelope)) error
}

// Hub maintains room -> set of connections and implements Emitter.
// The room map is written only by Register and Unregister.
type Hub struct {
	rooms     map[string]map[*Client]struct{}
	clients   map[*Client]struct{}
	mu        sync.RWMutex
	running   atomic.Bool
	done      chan struct{}
	logger    *zap.Logger
	backplane Backplane
}

var _ Emitter = (*Hub)(nil)

// NewHub creates a new WebSocket hub. backplane may be nil for a single process.
func NewHub(logger *zap.Logger, backplane Backplane) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		rooms:     make(map[string]map[*Client]struct{}),
		clients:   make(map[*Client]struct{}),
		done:      make(chan struct{}),
		logger:    logger,
		backplane: backplane,
	}
}

// Start marks the hub as running and, with a backplane, subscribes to it.
// The hub stops when ctx is cancelled: every client is disconnected and later emits panic.
func (h *Hub) Start(ctx context.Context) error {
	if h.backplane != nil {
		if err := h.backplane.Subscribe(ctx, h.deliverEnvelope); err != nil {
			return fmt.Errorf("subscribe backplane: %w", err)
		}
	}
	if !h.running.CompareAndSwap(false, true) {
		return errors.New("realtime: hub already started")
	}
	go func() {
		<-ctx.Done()
		h.stop()
	}()
	h.logger.Info("realtime hub started", zap.Bool("backplane", h.backplane != nil))
	return nil
}

// Done is closed once the hub has stopped.
func (h *Hub) Done() <-chan struct{} {
	return h.done
}

// Running reports whether emits are currently accepted.
func (h *Hub) Running() bool {
	return h.running.Load()
}

func (h *Hub) stop() {
	h.running.Store(false)
	h.mu.Lock()
	clients := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.rooms = make(map[string]map[*Client]struct{})
	h.clients = make(map[*Client]struct{})
	h.mu.Unlock()

	for _, c := range clients {
		c.close()
	}
	close(h.done)
	h.logger.Info("realtime hub stopped", zap.Int("disconnected", len(clients)))
}

// Register adds a client to its rooms: its user room, plus the admin room for admins.
// It returns false when the hub is not running.
func (h *Hub) Register(c *Client) bool {
	h.mu.Lock()
	if !h.running.Load() {
		h.mu.Unlock()
		return false
	}
	h.clients[c] = struct{}{}
	for _, room := range c.rooms {
		if h.rooms[room] == nil {
			h.rooms[room] = make(map[*Client]struct{})
		}
		h.rooms[room][c] = struct{}{}
	}
	h.mu.Unlock()
	h.logger.Debug("client connected", zap.String("client_id", c.ID), zap.Strings("rooms", c.rooms))
	return true
}

// Unregister removes a client from every room it was in.
func (h *Hub) Unregister(c *Client, reason error) {
	h.mu.Lock()
	delete(h.clients, c)
	for _, room := range c.rooms {
		if m, ok := h.rooms[room]; ok {
			delete(m, c)
			if len(m) == 0 {
				delete(h.rooms, room)
			}
		}
	}
	h.mu.Unlock()
	c.close()
	h.logger.Debug("client disconnected", zap.String("client_id", c.ID), zap.String("user_id", c.UserID.String()), zap.Error(reason))
}

// RoomSize returns the number of live connections in a room.
func (h *Hub) RoomSize(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}

// EmitToUser delivers only to connections of the given user.
func (h *Hub) EmitToUser(userID uuid.UUID, event string, payload any) {
	h.emit(UserRoom(userID), event, payload)
}

// EmitToAdmins delivers to every admin connection.
func (h *Hub) EmitToAdmins(event string, payload any) {
	h.emit(AdminRoom, event, payload)
}

// EmitToAll delivers to every connection.
func (h *Hub) EmitToAll(event string, payload any) {
	h.emit(roomAll, event, payload)
}

func (h *Hub) emit(room, event string, payload any) {
	if !h.running.Load() {
		panic(ErrNotInitialized)
	}
	data, err := json.Marshal(payload)
	if err != nil {
		h.logger.Error("emit: marshal payload", zap.String("event", event), zap.Error(err))
		return
	}
	h.logger.Info("emit", zap.String("event", event), zap.String("room", room))

	env := Envelope{Room: room, Event: event, Data: data, At: time.Now().Unix()}
	if h.backplane == nil {
		h.deliverEnvelope(env)
		return
	}
	// The subscriber delivers for every process, this one included.
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	if err := h.backplane.Publish(ctx, env); err != nil {
		h.logger.Warn("emit: backplane publish failed, delivering locally", zap.String("event", event), zap.Error(err))
		h.deliverEnvelope(env)
	}
}

func (h *Hub) deliverEnvelope(env Envelope) {
	msg := WSMessage{Event: env.Event, Data: env.Data}

	h.mu.RLock()
	var targets []*Client
	if env.Room == roomAll {
		targets = make([]*Client, 0, len(h.clients))
		for c := range h.clients {
			targets = append(targets, c)
		}
	} else {
		members := h.rooms[env.Room]
		targets = make([]*Client, 0, len(members))
		for c := range members {
			targets = append(targets, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range targets {
		if !c.enqueue(msg) {
			h.logger.Debug("send buffer full, dropping event", zap.String("client_id", c.ID), zap.String("event", env.Event))
		}
	}
}
