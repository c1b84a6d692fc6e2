// Package busadaptor exposes the coordinator's state over a bus-like RPC
// surface. The real daemon speaks this over D-Bus; since that transport
// has no portable Go binding worth depending on, this adaptor stands the
// surface up over HTTP (method calls) and a WebSocket (signal push), with
// the same method and signal names the D-Bus interface would use.
package busadaptor

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/tuxedocomputers/tccd/internal/logging"
)

// SignalName identifies one of the adaptor's broadcast signals.
type SignalName string

const (
	// SignalProfileChanged fires whenever the active or default profile changes.
	SignalProfileChanged SignalName = "ProfileChanged"
	// SignalPowerStateChanged fires on an AC/battery/water-cooler state transition.
	SignalPowerStateChanged SignalName = "PowerStateChanged"
	// SignalWaterCoolerStatusChanged fires on BLE connect/disconnect/reconnect.
	SignalWaterCoolerStatusChanged SignalName = "WaterCoolerStatusChanged"
	// SignalModeReapplyPendingChanged fires when a profile edit needs a manual reapply.
	SignalModeReapplyPendingChanged SignalName = "ModeReapplyPendingChanged"
)

// Signal is one broadcast event pushed to every subscribed client.
type Signal struct {
	Name      SignalName  `json:"name"`
	Data      interface{} `json:"data"`
	Timestamp time.Time   `json:"timestamp"`
}

// subscribeRequest lets a client narrow the signals it wants pushed to it.
// Sending no request at all (the common case) means "all signals".
type subscribeRequest struct {
	Signals []SignalName `json:"signals"`
}

// SignalBroker fans published signals out to every connected WebSocket
// client, optionally filtered per client by subscribeRequest.
type SignalBroker struct {
	logger   logging.Logger
	upgrader websocket.Upgrader

	mu      sync.RWMutex
	clients map[*signalClient]struct{}
}

type signalClient struct {
	conn   *websocket.Conn
	mu     sync.Mutex // guards WriteJSON; gorilla conns aren't write-concurrent-safe
	filter map[SignalName]struct{}
}

func (c *signalClient) wants(name SignalName) bool {
	if len(c.filter) == 0 {
		return true
	}
	_, ok := c.filter[name]
	return ok
}

func (c *signalClient) send(sig Signal) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteJSON(sig)
}

// NewSignalBroker creates a broker ready to accept WebSocket subscribers.
func NewSignalBroker(logger logging.Logger) *SignalBroker {
	if logger == nil {
		logger = logging.NoOpLogger{}
	}
	return &SignalBroker{
		logger: logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		clients: make(map[*signalClient]struct{}),
	}
}

// HandleWebSocket upgrades the connection and registers it as a subscriber
// until the client disconnects or the request context ends.
func (b *SignalBroker) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := b.upgrader.Upgrade(w, r, nil)
	if err != nil {
		b.logger.Warn("signal websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	client := &signalClient{conn: conn}
	b.register(client)
	defer b.unregister(client)

	go b.readFilter(ctx, cancel, client)

	b.keepAlive(ctx, conn)
}

func (b *SignalBroker) register(c *signalClient) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.clients[c] = struct{}{}
}

func (b *SignalBroker) unregister(c *signalClient) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.clients, c)
}

// readFilter reads at most one subscribeRequest from the client, narrowing
// the signals pushed to it, then keeps reading (and discarding) frames
// until the connection closes so a client ping/pong doesn't look like a
// dead peer.
func (b *SignalBroker) readFilter(ctx context.Context, cancel context.CancelFunc, c *signalClient) {
	defer cancel()

	var req subscribeRequest
	if err := c.conn.ReadJSON(&req); err == nil && len(req.Signals) > 0 {
		filter := make(map[SignalName]struct{}, len(req.Signals))
		for _, name := range req.Signals {
			filter[name] = struct{}{}
		}
		c.filter = filter
	}

	for {
		if _, _, err := c.conn.NextReader(); err != nil {
			return
		}
		select {
		case <-ctx.Done():
			return
		default:
		}
	}
}

// keepAlive pings the connection until the context ends or a ping fails.
func (b *SignalBroker) keepAlive(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Publish broadcasts a signal to every subscriber whose filter accepts it.
// Slow or dead clients are dropped rather than allowed to back up the
// coordinator's tick.
func (b *SignalBroker) Publish(name SignalName, data interface{}) {
	sig := Signal{Name: name, Data: data, Timestamp: time.Now()}

	b.mu.RLock()
	targets := make([]*signalClient, 0, len(b.clients))
	for c := range b.clients {
		if c.wants(name) {
			targets = append(targets, c)
		}
	}
	b.mu.RUnlock()

	for _, c := range targets {
		if err := c.send(sig); err != nil {
			b.logger.Debug("dropping signal subscriber after write error", "signal", string(name), "error", err)
			b.unregister(c)
		}
	}
}

// PublishProfileChanged is a typed convenience wrapper around Publish.
func (b *SignalBroker) PublishProfileChanged(profileID string) {
	b.Publish(SignalProfileChanged, map[string]string{"profile_id": profileID})
}

// PublishPowerStateChanged is a typed convenience wrapper around Publish.
func (b *SignalBroker) PublishPowerStateChanged(state string) {
	b.Publish(SignalPowerStateChanged, map[string]string{"state": state})
}

// PublishWaterCoolerStatusChanged is a typed convenience wrapper around Publish.
func (b *SignalBroker) PublishWaterCoolerStatusChanged(connected bool) {
	b.Publish(SignalWaterCoolerStatusChanged, map[string]bool{"connected": connected})
}

// PublishModeReapplyPendingChanged is a typed convenience wrapper around Publish.
func (b *SignalBroker) PublishModeReapplyPendingChanged(pending bool) {
	b.Publish(SignalModeReapplyPendingChanged, map[string]bool{"pending": pending})
}
