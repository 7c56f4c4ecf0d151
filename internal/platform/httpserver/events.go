package httpserver

import (
	"context"
	"log/slog"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"tokenmart/contexts/trading-core/marketplace-service/ports"
)

const feedConsumerGroup = "marketplace-event-feed-cg"

// EventFeed fans marketplace events out to connected websocket clients.
// Slow clients are dropped rather than allowed to back up the bus.
type EventFeed struct {
	logger   *slog.Logger
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*feedClient]struct{}
}

type feedClient struct {
	send chan ports.EventEnvelope
}

func NewEventFeed(subscriber ports.EventSubscriber, topic string, logger *slog.Logger) (*EventFeed, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if topic == "" {
		topic = "marketplace.events"
	}
	feed := &EventFeed{
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		clients: make(map[*feedClient]struct{}),
	}
	err := subscriber.Subscribe(
		context.Background(),
		topic,
		feedConsumerGroup,
		func(_ context.Context, envelope ports.EventEnvelope) error {
			feed.broadcast(envelope)
			return nil
		},
	)
	if err != nil {
		return nil, err
	}
	return feed, nil
}

func (f *EventFeed) broadcast(envelope ports.EventEnvelope) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for client := range f.clients {
		select {
		case client.send <- envelope:
		default:
			delete(f.clients, client)
			close(client.send)
		}
	}
}

func (f *EventFeed) Handle(w http.ResponseWriter, r *http.Request) {
	conn, err := f.upgrader.Upgrade(w, r, nil)
	if err != nil {
		f.logger.Warn("websocket upgrade failed",
			"event", "event_feed_upgrade_failed",
			"module", "internal/platform/httpserver",
			"layer", "platform",
			"error", err.Error(),
		)
		return
	}

	client := &feedClient{send: make(chan ports.EventEnvelope, 32)}
	f.mu.Lock()
	f.clients[client] = struct{}{}
	f.mu.Unlock()

	go f.readLoop(conn, client)
	f.writeLoop(conn, client)
}

func (f *EventFeed) readLoop(conn *websocket.Conn, client *feedClient) {
	defer f.drop(client)
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (f *EventFeed) writeLoop(conn *websocket.Conn, client *feedClient) {
	defer conn.Close()
	for envelope := range client.send {
		if err := conn.WriteJSON(envelope); err != nil {
			f.drop(client)
			return
		}
	}
}

func (f *EventFeed) drop(client *feedClient) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.clients[client]; ok {
		delete(f.clients, client)
		close(client.send)
	}
}
