// Package hub implements the host runtime over websocket connections from map clients.
//
// Every connected client receives the same rendering commands; live portal data,
// selections and clicks from any client feed the engine.
package hub

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"portalslayer/pkg/config"
	"portalslayer/pkg/host"
	"portalslayer/pkg/metrics"
	"portalslayer/pkg/model"
)

const (
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 1 << 20
)

// Hub implements host.Runtime.
type Hub struct {
	cfg      config.HostConfig
	metrics  *metrics.Metrics
	logger   *slog.Logger
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[string]*client

	panes  map[string]host.PaneSpec
	layers map[string]*layer

	selection  map[string]host.SelectionHandler
	readyFns   map[string]func()
	labelFns   map[string]func()
	siblingFns map[string]func()

	entMu    sync.RWMutex
	entities map[string]host.Entity
}

// New creates a hub. m may be nil.
func New(cfg config.HostConfig, m *metrics.Metrics) *Hub {
	h := &Hub{
		cfg:       cfg,
		metrics:   m,
		logger:    slog.With("component", "hub"),
		clients:   make(map[string]*client),
		panes:     make(map[string]host.PaneSpec),
		layers:    make(map[string]*layer),
		selection:  make(map[string]host.SelectionHandler),
		readyFns:   make(map[string]func()),
		labelFns:   make(map[string]func()),
		siblingFns: make(map[string]func()),
		entities:   make(map[string]host.Entity),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     h.checkOrigin,
	}
	if h.cfg.SendBuffer <= 0 {
		h.cfg.SendBuffer = 256
	}
	if h.cfg.WriteWait <= 0 {
		h.cfg.WriteWait = config.Duration(10 * time.Second)
	}
	return h
}

// checkOrigin accepts non-browser clients and the configured origins.
func (h *Hub) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || len(h.cfg.AllowOrigin) == 0 {
		return true
	}
	return slices.Contains(h.cfg.AllowOrigin, origin)
}

// ServeHTTP upgrades the request and serves the client until it disconnects.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("Websocket upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}

	c := &client{
		id:   uuid.NewString(),
		conn: conn,
		send: make(chan []byte, h.cfg.SendBuffer),
		hub:  h,
	}
	h.register(c)
	go c.writePump(h.cfg.WriteWait.Std())
	c.readPump()
}

func (h *Hub) register(c *client) {
	h.mu.Lock()
	h.clients[c.id] = c
	n := len(h.clients)
	h.mu.Unlock()

	h.metrics.SetHostClients(n)
	h.logger.Info("Map client connected", "client", c.id, "clients", n)
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	if _, ok := h.clients[c.id]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.clients, c.id)
	n := len(h.clients)
	h.mu.Unlock()

	c.close()
	h.metrics.SetHostClients(n)
	h.logger.Info("Map client disconnected", "client", c.id, "clients", n)
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.Lock()
	clients := make([]*client, 0, len(h.clients))
	for _, c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	for _, c := range clients {
		h.unregister(c)
	}
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// broadcast queues a message for every ready client. It never blocks: a client
// whose queue is full is disconnected.
func (h *Hub) broadcast(typ string, data any) {
	msg, err := encode(typ, data)
	if err != nil {
		h.logger.Error("Failed to encode message", "type", typ, "error", err)
		return
	}

	var slow []*client
	h.mu.Lock()
	for _, c := range h.clients {
		if !c.isReady() {
			continue
		}
		if !c.enqueue(msg) {
			slow = append(slow, c)
		}
	}
	h.mu.Unlock()

	h.metrics.HostMessage("out", typ)
	for _, c := range slow {
		h.logger.Warn("Dropping slow map client", "client", c.id)
		h.unregister(c)
	}
}

// Ready implements host.Runtime: at least one client has initialized its map.
func (h *Hub) Ready() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, c := range h.clients {
		if c.isReady() {
			return true
		}
	}
	return false
}

// Entity implements host.EntityLookup.
func (h *Hub) Entity(id string) (host.Entity, bool) {
	h.entMu.RLock()
	defer h.entMu.RUnlock()
	e, ok := h.entities[id]
	return e, ok
}

// Subscribe implements host.SelectionHook.
func (h *Hub) Subscribe(key string, fn host.SelectionHandler) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.selection[key] = fn
}

// Unsubscribe implements host.SelectionHook.
func (h *Hub) Unsubscribe(key string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.selection, key)
}

// OnReady implements host.ReadyNotifier. fn runs whenever a client (re)initializes its map.
func (h *Hub) OnReady(key string, fn func()) func() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.readyFns[key] = fn
	return func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		delete(h.readyFns, key)
	}
}

// EnsurePane implements host.LayerRegistry.
func (h *Hub) EnsurePane(p host.PaneSpec) bool {
	if !h.Ready() {
		return false
	}
	h.mu.Lock()
	_, exists := h.panes[p.Name]
	if !exists {
		h.panes[p.Name] = p
	}
	h.mu.Unlock()

	if !exists {
		h.broadcast(MsgPane, p)
	}
	return true
}

// LayerGroup implements host.LayerRegistry.
func (h *Hub) LayerGroup(name, pane string) (host.Layer, bool) {
	h.mu.Lock()
	if l, ok := h.layers[name]; ok {
		h.mu.Unlock()
		return l, true
	}
	if _, ok := h.panes[pane]; !ok {
		h.mu.Unlock()
		return nil, false
	}
	l := &layer{name: name, pane: pane, hub: h, markers: make(map[host.MarkerHandle]func())}
	h.layers[name] = l
	h.mu.Unlock()

	h.broadcast(MsgLayerAdd, LayerPayload{Name: name, Pane: pane})
	return l, true
}

// Sibling implements host.SiblingProvider.
func (h *Hub) Sibling() (host.Sibling, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, c := range h.clients {
		if c.hasSibling() {
			return siblingProxy{hub: h}, true
		}
	}
	return nil, false
}

// OnSibling implements host.SiblingProvider. fn runs whenever a client announces the sibling.
func (h *Hub) OnSibling(key string, fn func()) func() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.siblingFns[key] = fn
	return func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		delete(h.siblingFns, key)
	}
}

// activate replays pane and layer definitions to a client that just initialized its
// map and marks it ready. Both happen under the hub lock, so no broadcast can reach
// the client before its definitions.
func (h *Hub) activate(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, p := range h.panes {
		if msg, err := encode(MsgPane, p); err == nil {
			c.enqueue(msg)
		}
	}
	for _, l := range h.layers {
		if msg, err := encode(MsgLayerAdd, LayerPayload{Name: l.name, Pane: l.pane}); err == nil {
			c.enqueue(msg)
		}
	}
	c.setReady()
}

func (h *Hub) dispatch(c *client, env Envelope) {
	h.metrics.HostMessage("in", env.Type)

	switch env.Type {
	case MsgReady:
		h.activate(c)
		h.runAll(h.readyFns)

	case MsgPortals:
		var p PortalsPayload
		if !h.decode(c, env, &p) {
			return
		}
		h.entMu.Lock()
		for _, e := range p.Upsert {
			if e.ID != "" {
				h.entities[e.ID] = e
			}
		}
		for _, id := range p.Remove {
			delete(h.entities, id)
		}
		h.entMu.Unlock()

	case MsgPortalSelected:
		var ev host.SelectionEvent
		if !h.decode(c, env, &ev) {
			return
		}
		h.mu.Lock()
		fns := make([]host.SelectionHandler, 0, len(h.selection))
		for _, fn := range h.selection {
			fns = append(fns, fn)
		}
		h.mu.Unlock()
		for _, fn := range fns {
			fn(context.Background(), ev)
		}

	case MsgMarkerClick:
		var p MarkerClickPayload
		if !h.decode(c, env, &p) {
			return
		}
		h.mu.Lock()
		l := h.layers[p.Layer]
		h.mu.Unlock()
		if l != nil {
			l.click(p.Handle)
		}

	case MsgLabelsUpdated:
		h.runAll(h.labelFns)

	case MsgSibling:
		var p SiblingPayload
		if !h.decode(c, env, &p) {
			return
		}
		c.setSibling(p.Present)
		if p.Present {
			h.runAll(h.siblingFns)
		}

	default:
		h.logger.Debug("Ignoring unknown message", "client", c.id, "type", env.Type)
	}
}

func (h *Hub) decode(c *client, env Envelope, v any) bool {
	if err := json.Unmarshal(env.Data, v); err != nil {
		h.logger.Warn("Malformed message", "client", c.id, "type", env.Type, "error", err)
		return false
	}
	return true
}

// runAll calls the registered callbacks outside the hub lock.
func (h *Hub) runAll(registry map[string]func()) {
	h.mu.Lock()
	fns := make([]func(), 0, len(registry))
	for _, fn := range registry {
		fns = append(fns, fn)
	}
	h.mu.Unlock()

	for _, fn := range fns {
		fn()
	}
}

type layer struct {
	name string
	pane string
	hub  *Hub

	mu      sync.Mutex
	markers map[host.MarkerHandle]func()
}

func (l *layer) AddMarker(spec host.MarkerSpec, onClick func()) host.MarkerHandle {
	h := host.MarkerHandle(uuid.NewString())
	l.mu.Lock()
	l.markers[h] = onClick
	l.mu.Unlock()

	l.hub.broadcast(MsgMarkerAdd, MarkerAddPayload{Layer: l.name, Handle: h, Marker: spec})
	return h
}

func (l *layer) RemoveMarker(h host.MarkerHandle) {
	l.mu.Lock()
	delete(l.markers, h)
	l.mu.Unlock()

	l.hub.broadcast(MsgMarkerRemove, MarkerPayload{Layer: l.name, Handle: h})
}

func (l *layer) SetInteractive(h host.MarkerHandle, on bool) {
	l.hub.broadcast(MsgMarkerInteractive, MarkerPayload{Layer: l.name, Handle: h, Interactive: &on})
}

func (l *layer) Clear() {
	l.mu.Lock()
	clear(l.markers)
	l.mu.Unlock()

	l.hub.broadcast(MsgLayerClear, LayerClearPayload{Layer: l.name})
}

func (l *layer) click(h host.MarkerHandle) {
	l.mu.Lock()
	fn := l.markers[h]
	l.mu.Unlock()
	if fn != nil {
		fn()
	}
}

// siblingProxy forwards label requests to the clients running the sibling plugin.
type siblingProxy struct {
	hub *Hub
}

func (s siblingProxy) AddLabel(id string, pos model.Position) {
	s.hub.broadcast(MsgLabelAdd, LabelPayload{ID: id, Position: pos})
}

func (s siblingProxy) OnLabelsUpdated(key string, fn func()) func() {
	h := s.hub
	h.mu.Lock()
	defer h.mu.Unlock()
	h.labelFns[key] = fn
	return func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		delete(h.labelFns, key)
	}
}
