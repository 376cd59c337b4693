// README: WebSocket hub fanning bus snapshots out to dashboard and driver clients.
package ws

import (
	"context"
	"encoding/json"
	"time"

	"github.com/sirupsen/logrus"

	"radar/internal/bus"
	"radar/internal/modules/call"
	"radar/internal/modules/location"
)

// Message is the envelope every frame uses.
type Message struct {
	Type      string `json:"type"`
	Topic     string `json:"topic,omitempty"`
	Timestamp int64  `json:"timestamp"`
	Data      any    `json:"data"`
}

type outbound struct {
	room string
	data []byte
}

// Hub owns the client set and the room membership. All mutation happens on
// the Run goroutine via the register/unregister/broadcast channels.
type Hub struct {
	clients    map[*Client]bool
	rooms      map[string]map[*Client]bool
	register   chan *Client
	unregister chan *Client
	broadcast  chan outbound
	log        *logrus.Logger
}

func NewHub(log *logrus.Logger) *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		rooms:      make(map[string]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan outbound, 64),
		log:        log,
	}
}

// Run processes hub events until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			for client := range h.clients {
				h.drop(client)
			}
			return
		case client := <-h.register:
			h.registerClient(client)
		case client := <-h.unregister:
			h.drop(client)
		case out := <-h.broadcast:
			h.sendToRoom(out.room, out.data)
		}
	}
}

// Publish queues a message for every client in the room. Never blocks.
func (h *Hub) Publish(room string, msg Message) {
	if msg.Timestamp == 0 {
		msg.Timestamp = time.Now().UnixMilli()
	}
	data, err := json.Marshal(msg)
	if err != nil {
		h.log.WithError(err).Warn("dropping unmarshalable hub message")
		return
	}
	select {
	case h.broadcast <- outbound{room: room, data: data}:
	default:
		h.log.WithField("room", room).Warn("hub broadcast queue full, frame dropped")
	}
}

// BridgeCalls forwards call snapshots from the bus onto the calls room and
// the per-driver room of the assigned driver.
func (h *Hub) BridgeCalls(ctx context.Context, events *bus.Bus[*call.Call]) {
	ch, cancel := events.Subscribe("calls")
	defer cancel()
	for {
		select {
		case <-ctx.Done():
			return
		case c, ok := <-ch:
			if !ok {
				return
			}
			msg := Message{Type: "call_update", Topic: "calls", Data: c}
			h.Publish(RoomCalls, msg)
			if c.AssignedDriverID != nil {
				h.Publish(driverRoom(string(*c.AssignedDriverID)), msg)
			}
		}
	}
}

// BridgeDriverLocations forwards live driver positions onto the locations room.
func (h *Hub) BridgeDriverLocations(ctx context.Context, events *bus.Bus[location.Event]) {
	ch, cancel := events.Subscribe("locations:drivers")
	defer cancel()
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-ch:
			if !ok {
				return
			}
			h.Publish(RoomLocations, Message{Type: "location_update", Topic: "locations", Data: e})
		}
	}
}

func (h *Hub) registerClient(client *Client) {
	h.clients[client] = true
	for _, room := range client.rooms() {
		h.joinRoom(client, room)
	}
	h.log.WithFields(logrus.Fields{"user_id": client.UserID, "role": client.Role}).Debug("websocket client connected")
}

func (h *Hub) drop(client *Client) {
	if _, ok := h.clients[client]; !ok {
		return
	}
	delete(h.clients, client)
	close(client.send)
	for room, members := range h.rooms {
		delete(members, client)
		if len(members) == 0 {
			delete(h.rooms, room)
		}
	}
	h.log.WithField("user_id", client.UserID).Debug("websocket client disconnected")
}

func (h *Hub) joinRoom(client *Client, room string) {
	if h.rooms[room] == nil {
		h.rooms[room] = make(map[*Client]bool)
	}
	h.rooms[room][client] = true
}

func (h *Hub) sendToRoom(room string, data []byte) {
	for client := range h.rooms[room] {
		select {
		case client.send <- data:
		default:
			h.drop(client)
		}
	}
}

// Room names.
const (
	RoomCalls     = "calls"
	RoomLocations = "locations"
)

func driverRoom(driverID string) string {
	return "driver_" + driverID
}
