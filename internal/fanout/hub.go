// Package fanout pushes accepted bids to everyone watching an auction over websockets
package fanout

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	model "auction-bidding/internal/models"
	"auction-bidding/utils"

	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	sendBuffer = 256
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// AuctionChannel is the channel viewers of an auction subscribe to
func AuctionChannel(auctionID string) string { return "auction:" + auctionID }

// UserChannel carries notices addressed to a single bidder
func UserChannel(userID string) string { return "user:" + userID }

// SubscribeRequest is sent by clients to manage their channels
type SubscribeRequest struct {
	Op       string   `json:"op"`
	Channels []string `json:"channels"`
}

// Message is the frame pushed to clients
type Message struct {
	Type    string `json:"type"`
	Channel string `json:"channel"`
	Data    any    `json:"data"`
}

// ConnTracker observes connection counts; *monitoring.Monitor satisfies it
type ConnTracker interface {
	ConnectionOpened()
	ConnectionClosed()
}

// Hub keeps the live websocket connections and who watches which channel
type Hub struct {
	clients  map[*Client]struct{}
	channels map[string]map[*Client]struct{}
	mu       sync.RWMutex

	register   chan *Client
	unregister chan *Client
	done       chan struct{}

	tracker ConnTracker
}

// NewHub creates a hub. tracker may be nil.
func NewHub(tracker ConnTracker) *Hub {
	return &Hub{
		clients:    make(map[*Client]struct{}),
		channels:   make(map[string]map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		tracker:    tracker,
	}
}

// Run handles connection lifecycle until ctx is done, then disconnects everyone
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = struct{}{}
			total := len(h.clients)
			h.mu.Unlock()
			if h.tracker != nil {
				h.tracker.ConnectionOpened()
			}
			utils.Debug("ws client connected", map[string]any{"client_id": client.id, "total": total})

		case client := <-h.unregister:
			h.remove(client)

		case <-ctx.Done():
			h.mu.RLock()
			clients := make([]*Client, 0, len(h.clients))
			for c := range h.clients {
				clients = append(clients, c)
			}
			h.mu.RUnlock()
			for _, c := range clients {
				h.remove(c)
			}
			return
		}
	}
}

func (h *Hub) remove(client *Client) {
	h.mu.Lock()
	if _, ok := h.clients[client]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.clients, client)
	for channel := range client.subscriptions {
		h.dropSubscriber(channel, client)
	}
	close(client.send)
	total := len(h.clients)
	h.mu.Unlock()

	if h.tracker != nil {
		h.tracker.ConnectionClosed()
	}
	utils.Debug("ws client disconnected", map[string]any{"client_id": client.id, "total": total})
}

// dropSubscriber must be called with h.mu held
func (h *Hub) dropSubscriber(channel string, client *Client) {
	subs := h.channels[channel]
	delete(subs, client)
	if len(subs) == 0 {
		delete(h.channels, channel)
	}
}

func (h *Hub) subscribe(client *Client, channel string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[client]; !ok {
		return
	}
	subs, ok := h.channels[channel]
	if !ok {
		subs = make(map[*Client]struct{})
		h.channels[channel] = subs
	}
	subs[client] = struct{}{}
	client.subscriptions[channel] = struct{}{}
}

func (h *Hub) unsubscribe(client *Client, channel string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := client.subscriptions[channel]; !ok {
		return
	}
	delete(client.subscriptions, channel)
	h.dropSubscriber(channel, client)
}

// Subscribers returns how many clients listen on channel
func (h *Hub) Subscribers(channel string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.channels[channel])
}

// ViewerCount is the number of clients currently watching an auction
func (h *Hub) ViewerCount(auctionID string) int {
	return h.Subscribers(AuctionChannel(auctionID))
}

// Broadcast sends msg to every subscriber of its channel. Clients whose buffer is full miss it.
func (h *Hub) Broadcast(msg Message) (int, error) {
	payload, err := json.Marshal(msg)
	if err != nil {
		return 0, fmt.Errorf("fanout: marshal %s message: %w", msg.Type, err)
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	sent := 0
	for client := range h.channels[msg.Channel] {
		select {
		case client.send <- payload:
			sent++
		default:
			utils.Warn("ws client buffer full, message skipped", map[string]any{
				"client_id": client.id,
				"channel":   msg.Channel,
			})
		}
	}
	return sent, nil
}

func (h *Hub) Name() string { return "websocket" }

// PublishBidAccepted pushes the accepted bid to the auction's viewers
func (h *Hub) PublishBidAccepted(_ context.Context, event model.BidAcceptedEvent) error {
	_, err := h.Broadcast(Message{Type: "bid_accepted", Channel: AuctionChannel(event.AuctionID), Data: event})
	return err
}

// PublishOutbid pushes the notice to the previous bidder's own channel
func (h *Hub) PublishOutbid(_ context.Context, notice model.OutbidNotice) error {
	_, err := h.Broadcast(Message{Type: "outbid", Channel: UserChannel(notice.PreviousBidderID), Data: notice})
	return err
}

// ServeWS upgrades the request and starts the client pumps
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		utils.Warn("ws upgrade failed", map[string]any{"error": err.Error()})
		return
	}

	client := &Client{
		hub:           h,
		conn:          conn,
		send:          make(chan []byte, sendBuffer),
		id:            utils.GenerateID(),
		subscriptions: make(map[string]struct{}),
	}

	select {
	case h.register <- client:
	case <-h.done:
		_ = conn.Close()
		return
	case <-r.Context().Done():
		_ = conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}

// Client is one websocket connection. subscriptions is guarded by hub.mu.
type Client struct {
	hub           *Hub
	conn          *websocket.Conn
	send          chan []byte
	id            string
	subscriptions map[string]struct{}
}

func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		_ = c.conn.Close()
	}()

	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				utils.Warn("ws read error", map[string]any{"client_id": c.id, "error": err.Error()})
			}
			return
		}

		var req SubscribeRequest
		if err := json.Unmarshal(message, &req); err != nil {
			utils.Debug("ws invalid message", map[string]any{"client_id": c.id, "error": err.Error()})
			continue
		}

		switch req.Op {
		case "subscribe":
			for _, channel := range req.Channels {
				c.hub.subscribe(c, channel)
			}
		case "unsubscribe":
			for _, channel := range req.Channels {
				c.hub.unsubscribe(c, channel)
			}
		default:
			utils.Debug("ws unknown op", map[string]any{"client_id": c.id, "op": req.Op})
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
