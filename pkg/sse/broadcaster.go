package sse

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/IcodeNet/employee-scheduling-api/internal/api/jsonrpcx"
	"github.com/IcodeNet/employee-scheduling-api/internal/api/middleware"
	"github.com/IcodeNet/employee-scheduling-api/pkg/logger"
)

// SSEClient represents a connected SSE client
type SSEClient struct {
	ID       string
	UserID   string
	Writer   http.ResponseWriter
	Flusher  http.Flusher
	Done     chan struct{}
	LastSeen time.Time
	mutex    sync.Mutex // serializes writes to this client
	once     sync.Once
}

// close waits for an in-flight write so nothing touches Writer afterwards
func (c *SSEClient) close() {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.once.Do(func() { close(c.Done) })
}

// outbound is one encoded message; an empty target list means every client
type outbound struct {
	targets []string
	data    []byte
}

// Option configures an SSEBroadcaster
type Option func(*SSEBroadcaster)

// WithHeartbeat sets the heartbeat interval of each connection
func WithHeartbeat(d time.Duration) Option {
	return func(b *SSEBroadcaster) {
		b.heartbeat = d
	}
}

// WithStaleAfter sets how long a client may go without a successful write
func WithStaleAfter(d time.Duration) Option {
	return func(b *SSEBroadcaster) {
		b.staleAfter = d
	}
}

// SSEBroadcaster manages SSE connections and broadcasts
type SSEBroadcaster struct {
	logger      *logger.Logger
	clients     map[string]*SSEClient
	userClients map[string]map[string]*SSEClient
	mutex       sync.RWMutex
	queue       chan outbound
	heartbeat   time.Duration
	staleAfter  time.Duration
	shutdown    chan struct{}
	closeOnce   sync.Once
}

// NewSSEBroadcaster creates a new SSE broadcaster and starts its loops
func NewSSEBroadcaster(log *logger.Logger, opts ...Option) *SSEBroadcaster {
	b := &SSEBroadcaster{
		logger:      log.WithComponent("sse-broadcaster"),
		clients:     make(map[string]*SSEClient),
		userClients: make(map[string]map[string]*SSEClient),
		queue:       make(chan outbound, 1000),
		heartbeat:   30 * time.Second,
		staleAfter:  90 * time.Second,
		shutdown:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(b)
	}

	go b.broadcastLoop()
	go b.cleanupLoop()

	return b
}

// AddClient adds a new SSE client
func (b *SSEBroadcaster) AddClient(client *SSEClient) {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	b.clients[client.ID] = client
	if b.userClients[client.UserID] == nil {
		b.userClients[client.UserID] = make(map[string]*SSEClient)
	}
	b.userClients[client.UserID][client.ID] = client

	b.logger.Debug("SSE client connected",
		zap.String("clientId", client.ID),
		zap.String("userId", client.UserID))
}

// RemoveClient removes an SSE client
func (b *SSEBroadcaster) RemoveClient(clientID string) {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	b.removeLocked(clientID)
}

func (b *SSEBroadcaster) removeLocked(clientID string) {
	client, exists := b.clients[clientID]
	if !exists {
		return
	}

	client.close()
	delete(b.clients, clientID)
	if set := b.userClients[client.UserID]; set != nil {
		delete(set, clientID)
		if len(set) == 0 {
			delete(b.userClients, client.UserID)
		}
	}

	b.logger.Debug("SSE client disconnected",
		zap.String("clientId", clientID),
		zap.String("userId", client.UserID))
}

// BroadcastToAll sends a JSON-RPC notification to all connected clients
func (b *SSEBroadcaster) BroadcastToAll(notification jsonrpcx.JsonRpcNotification) {
	b.enqueue(nil, notification)
}

// BroadcastToUsers sends a JSON-RPC notification to the given users' local connections
func (b *SSEBroadcaster) BroadcastToUsers(targetUsers []string, notification jsonrpcx.JsonRpcNotification) {
	if len(targetUsers) == 0 {
		return
	}
	b.enqueue(targetUsers, notification)
}

func (b *SSEBroadcaster) enqueue(targets []string, notification jsonrpcx.JsonRpcNotification) {
	data, err := json.Marshal(notification)
	if err != nil {
		b.logger.Error("Failed to marshal JSON-RPC notification", zap.Error(err))
		return
	}

	select {
	case <-b.shutdown:
	case b.queue <- outbound{targets: targets, data: data}:
	default:
		b.logger.Warn("Broadcast queue full, dropping message", zap.String("method", notification.Method))
	}
}

// recipients snapshots the clients a message goes to
func (b *SSEBroadcaster) recipients(targets []string) []*SSEClient {
	b.mutex.RLock()
	defer b.mutex.RUnlock()

	if len(targets) == 0 {
		out := make([]*SSEClient, 0, len(b.clients))
		for _, c := range b.clients {
			out = append(out, c)
		}
		return out
	}

	var out []*SSEClient
	for _, userID := range targets {
		for _, c := range b.userClients[userID] {
			out = append(out, c)
		}
	}
	return out
}

func (b *SSEBroadcaster) broadcastLoop() {
	for {
		select {
		case <-b.shutdown:
			return
		case msg := <-b.queue:
			for _, client := range b.recipients(msg.targets) {
				if err := b.sendToClient(client, msg.data); err != nil {
					b.logger.Warn("Failed to send to client",
						zap.String("clientId", client.ID),
						zap.Error(err))
					b.RemoveClient(client.ID)
				}
			}
		}
	}
}

// sendToClient writes one SSE data frame
func (b *SSEBroadcaster) sendToClient(client *SSEClient, data []byte) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic recovered: %v", r)
		}
	}()

	if client.Writer == nil || client.Flusher == nil {
		return fmt.Errorf("client %s has no writer", client.ID)
	}

	client.mutex.Lock()
	defer client.mutex.Unlock()

	select {
	case <-client.Done:
		return fmt.Errorf("client connection closed")
	default:
	}

	frame := fmt.Sprintf("data: %s\n\n", data)
	if _, err := client.Writer.Write([]byte(frame)); err != nil {
		return fmt.Errorf("write failed: %w", err)
	}
	client.Flusher.Flush()
	client.LastSeen = time.Now()
	return nil
}

// cleanupLoop removes connections without a successful write for staleAfter
func (b *SSEBroadcaster) cleanupLoop() {
	ticker := time.NewTicker(b.staleAfter / 3)
	defer ticker.Stop()

	for {
		select {
		case <-b.shutdown:
			return
		case <-ticker.C:
			b.mutex.Lock()
			now := time.Now()
			for clientID, client := range b.clients {
				client.mutex.Lock()
				stale := now.Sub(client.LastSeen) > b.staleAfter
				client.mutex.Unlock()
				if stale {
					b.logger.Debug("Removing stale SSE client", zap.String("clientId", clientID))
					b.removeLocked(clientID)
				}
			}
			b.mutex.Unlock()
		}
	}
}

// GetClientCount returns the number of connected clients
func (b *SSEBroadcaster) GetClientCount() int {
	b.mutex.RLock()
	defer b.mutex.RUnlock()
	return len(b.clients)
}

// Close disconnects every client and stops the loops
func (b *SSEBroadcaster) Close() {
	b.closeOnce.Do(func() {
		close(b.shutdown)

		b.mutex.Lock()
		defer b.mutex.Unlock()
		for clientID := range b.clients {
			b.removeLocked(clientID)
		}
		b.logger.Debug("SSE broadcaster shutdown complete")
	})
}

// HandleSSE streams notifications to an authenticated client
func (b *SSEBroadcaster) HandleSSE(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		http.Error(w, "Authentication required", http.StatusUnauthorized)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Server-Sent Events not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	client := &SSEClient{
		ID:       fmt.Sprintf("%s-%d", userID, time.Now().UnixNano()),
		UserID:   userID,
		Writer:   w,
		Flusher:  flusher,
		Done:     make(chan struct{}),
		LastSeen: time.Now(),
	}
	b.AddClient(client)
	defer b.RemoveClient(client.ID)

	connected, _ := json.Marshal(map[string]string{"type": "connected", "client_id": client.ID})
	if err := b.sendToClient(client, connected); err != nil {
		return
	}

	heartbeat := time.NewTicker(b.heartbeat)
	defer heartbeat.Stop()

	for {
		select {
		case <-client.Done:
			return
		case <-r.Context().Done():
			return
		case <-b.shutdown:
			return
		case <-heartbeat.C:
			beat, _ := json.Marshal(map[string]string{"type": "heartbeat", "timestamp": time.Now().Format(time.RFC3339)})
			if err := b.sendToClient(client, beat); err != nil {
				b.logger.Warn("Failed to send heartbeat",
					zap.String("clientId", client.ID),
					zap.Error(err))
				return
			}
		}
	}
}
