package reactive

import "github.com/shashiranjanraj/qcache/pkg/ws"

// Watcher is the external watcher primitive: a push channel a stream-kind
// Query Instance's subscriber attaches to, so server-pushed updates reach
// onUpdate without a poll loop. It adapts pkg/ws.Hub, whose
// register/unregister/broadcast loop already models exactly this lifecycle
// for WebSocket clients.
type Watcher struct {
	hub *ws.Hub
}

// NewWatcher starts a Watcher's underlying hub loop in the background.
func NewWatcher() *Watcher {
	hub := ws.NewHub()
	go hub.Run()
	return &Watcher{hub: hub}
}

// Hub exposes the underlying ws.Hub for transport wiring (e.g. ws.Upgrade).
func (w *Watcher) Hub() *ws.Hub { return w.hub }

// Broadcast pushes data to every currently connected watcher client.
func (w *Watcher) Broadcast(data []byte) {
	w.hub.Broadcast <- data
}

// ClientCount reports the number of currently attached watchers.
func (w *Watcher) ClientCount() int { return w.hub.ClientCount() }
