package server

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/purchase-export/extract"
)

// Actions understood by the bridge.
const (
	ActionExtract        = "extract"
	ActionStopExtraction = "stopExtraction"
	ActionHealth         = "health"
	ActionGetExports     = "getExports"
)

// Message types sent by the bridge.
const (
	MsgTypeResponse = "response"
	MsgTypeProgress = "progress"
	MsgTypeError    = "error"
)

// WSRequest is a message from a UI client.
type WSRequest struct {
	Action       string `json:"action"`
	RequestID    string `json:"requestId,omitempty"`
	MaxPurchases *int   `json:"maxPurchases,omitempty"`
}

// WSConfig configures the WebSocket bridge.
type WSConfig struct {
	Exporter     Exporter
	Logger       *zap.SugaredLogger
	Version      string
	DefaultCount int
	// PingInterval keeps idle connections alive (default: 30s).
	PingInterval time.Duration
}

// WSBridge serves the popup message protocol over WebSocket and pushes
// run progress to every connected client.
type WSBridge struct {
	config   WSConfig
	upgrader websocket.Upgrader

	// ctx outlives single connections so a run survives its client leaving.
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu    sync.RWMutex
	conns map[*wsConn]struct{}
}

type wsConn struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *wsConn) send(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return errors.Wrap(err, "marshal message failed")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

// NewWSBridge creates a bridge. Close it to stop runs it started.
func NewWSBridge(config WSConfig) *WSBridge {
	if config.PingInterval == 0 {
		config.PingInterval = 30 * time.Second
	}
	if config.Logger == nil {
		config.Logger = zap.NewNop().Sugar()
	}
	ctx, cancel := context.WithCancel(context.Background())
	b := &WSBridge{
		config: config,
		ctx:    ctx,
		cancel: cancel,
		conns:  make(map[*wsConn]struct{}),
	}
	b.upgrader = websocket.Upgrader{CheckOrigin: allowedOrigin}
	return b
}

// allowedOrigin accepts local pages, browser extensions and non-browser
// clients.
func allowedOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	switch u.Scheme {
	case "chrome-extension", "moz-extension":
		return true
	case "http", "https":
		host := u.Hostname()
		if host == "localhost" {
			return true
		}
		ip := net.ParseIP(host)
		return ip != nil && ip.IsLoopback()
	}
	return false
}

// ServeHTTP upgrades the request and serves the connection until it closes.
func (b *WSBridge) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := b.upgrader.Upgrade(w, r, nil)
	if err != nil {
		b.config.Logger.Warnf("WebSocket upgrade failed: %v", err)
		return
	}
	c := &wsConn{conn: conn}
	b.mu.Lock()
	b.conns[c] = struct{}{}
	b.mu.Unlock()
	b.config.Logger.Infof("UI client connected from %s", r.RemoteAddr)

	done := make(chan struct{})
	go b.pingPump(c, done)
	b.readPump(c)
	close(done)

	b.mu.Lock()
	delete(b.conns, c)
	b.mu.Unlock()
	conn.Close()
	b.config.Logger.Info("UI client disconnected")
}

func (b *WSBridge) readPump(c *wsConn) {
	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				b.config.Logger.Warnf("websocket error: %v", err)
			}
			return
		}
		b.handleMessage(c, message)
	}
}

func (b *WSBridge) pingPump(c *wsConn, done <-chan struct{}) {
	ticker := time.NewTicker(b.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-b.ctx.Done():
			return
		case <-ticker.C:
			c.mu.Lock()
			err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second))
			c.mu.Unlock()
			if err != nil {
				return
			}
		}
	}
}

func (b *WSBridge) handleMessage(c *wsConn, data []byte) {
	var req WSRequest
	if err := json.Unmarshal(data, &req); err != nil {
		b.reply(c, MsgTypeError, "", "", map[string]any{"error": "invalid message format: " + err.Error()})
		return
	}

	switch req.Action {
	case ActionExtract:
		requested := b.config.DefaultCount
		if req.MaxPurchases != nil {
			requested = *req.MaxPurchases
		}
		b.config.Logger.Infof("Extraction requested over WebSocket for %d purchases", requested)
		// the read loop must stay free to receive stopExtraction
		b.wg.Add(1)
		go func() {
			defer b.wg.Done()
			out, err := b.config.Exporter.Export(b.ctx, requested)
			if err != nil {
				b.config.Logger.Errorf("Export failed: %v", err)
			}
			b.reply(c, MsgTypeResponse, req.Action, req.RequestID, exportResponse(out, err))
		}()

	case ActionStopExtraction:
		cancelled := b.config.Exporter.Cancel()
		b.reply(c, MsgTypeResponse, req.Action, req.RequestID, map[string]any{"success": true, "cancelled": cancelled})

	case ActionHealth:
		b.reply(c, MsgTypeResponse, req.Action, req.RequestID, map[string]any{"healthy": true, "version": b.config.Version})

	case ActionGetExports:
		session, err := b.config.Exporter.Latest()
		if err != nil {
			b.reply(c, MsgTypeResponse, req.Action, req.RequestID, map[string]any{"success": false, "error": err.Error()})
			return
		}
		b.reply(c, MsgTypeResponse, req.Action, req.RequestID, sessionResponse(session))

	default:
		b.reply(c, MsgTypeError, req.Action, req.RequestID, map[string]any{"error": "unknown action: " + req.Action})
	}
}

func (b *WSBridge) reply(c *wsConn, msgType, action, requestID string, body map[string]any) {
	body["type"] = msgType
	if action != "" {
		body["action"] = action
	}
	if requestID != "" {
		body["requestId"] = requestID
	}
	if err := c.send(body); err != nil {
		b.config.Logger.Debugf("Could not reply to UI client: %v", err)
	}
}

// Publish pushes a progress event to every connected client. It is meant
// to be installed as the orchestrator's progress callback.
func (b *WSBridge) Publish(p extract.Progress) {
	b.mu.RLock()
	conns := make([]*wsConn, 0, len(b.conns))
	for c := range b.conns {
		conns = append(conns, c)
	}
	b.mu.RUnlock()

	msg := map[string]any{
		"type":    MsgTypeProgress,
		"runId":   p.RunID,
		"phase":   string(p.Phase),
		"current": p.Current,
		"total":   p.Total,
	}
	for _, c := range conns {
		if err := c.send(msg); err != nil {
			b.config.Logger.Debugf("Could not push progress: %v", err)
		}
	}
}

// Close cancels runs started through the bridge and waits for them.
func (b *WSBridge) Close() error {
	b.cancel()
	b.wg.Wait()
	return nil
}

// RunWSServer serves the bridge at /ws on addr until ctx is done.
func RunWSServer(ctx context.Context, addr string, bridge *WSBridge, logger *zap.SugaredLogger) error {
	mux := http.NewServeMux()
	mux.Handle("/ws", bridge)
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"healthy":true}`))
	})

	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
		bridge.Close()
	}()

	if !isLoopback(addr) {
		logger.Warnf("WebSocket bridge on %s is reachable from other machines", addr)
	}
	logger.Infof("WebSocket bridge listening on ws://%s/ws", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "WebSocket bridge stopped")
	}
	return nil
}

func isLoopback(addr string) bool {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return false
	}
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(strings.Trim(host, "[]"))
	return ip != nil && ip.IsLoopback()
}
