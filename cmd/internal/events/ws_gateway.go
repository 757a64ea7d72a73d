package events

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
)

const (
	wsDefaultWriteTimeout = 5 * time.Second
	wsDefaultQueueSize    = 256
	wsMinQueueSize        = 32

	// Origin is required by default; only localhost is allowed out of the box.
	wsDefaultOriginRequired = true
	wsDefaultAllowedOrigins = "http://localhost,http://127.0.0.1"
)

// WSGateway streams IRN lifecycle events to WebSocket clients.
//
// The stream is write-only: clients subscribe by connecting and the server
// pushes JSON-encoded irn.Event values until either side disconnects.
type WSGateway struct {
	log *slog.Logger
	hub *Hub

	originRequired bool
	allowedOrigins []string
	originPatterns []string

	writeTimeout time.Duration
	queueSize    int
}

// NewWSGateway constructs a gateway with secure defaults.
func NewWSGateway(log *slog.Logger, hub *Hub) *WSGateway {
	if log == nil {
		log = slog.Default()
	}
	if hub == nil {
		hub = NewHub(log)
	}
	g := &WSGateway{log: log, hub: hub}

	g.originRequired = envBool("FIRSGATE_WS_ORIGIN_REQUIRED", wsDefaultOriginRequired)
	g.allowedOrigins = envCSV("FIRSGATE_WS_ALLOWED_ORIGINS", wsDefaultAllowedOrigins)

	// websocket.Accept authorizes same-host origins by default; cross-origin
	// requires OriginPatterns, so we derive host patterns from the allowlist
	// to keep both layers in agreement.
	g.originPatterns = deriveOriginPatterns(g.allowedOrigins)

	g.writeTimeout = envDuration("FIRSGATE_WS_WRITE_TIMEOUT", wsDefaultWriteTimeout)
	g.queueSize = envInt("FIRSGATE_WS_SEND_QUEUE", wsDefaultQueueSize)
	if g.queueSize < wsMinQueueSize {
		g.queueSize = wsMinQueueSize
	}

	return g
}

// ServeHTTP adapter so it can be mounted as http.Handler.
func (g *WSGateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	g.HandleWS(w, r)
}

// HandleWS upgrades the request and streams events until disconnect.
func (g *WSGateway) HandleWS(w http.ResponseWriter, r *http.Request) {
	if err := g.enforceOrigin(r); err != nil {
		g.log.Info("ws.reject.origin", "err", err, "origin", r.Header.Get("Origin"), "remote", r.RemoteAddr)
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: g.originPatterns,
	})
	if err != nil {
		g.log.Error("ws.accept.fail", "err", err)
		return
	}
	defer func() { _ = conn.Close(websocket.StatusNormalClosure, "bye") }()

	// Write-only stream: CloseRead watches for client close frames and
	// cancels the context when the peer goes away.
	ctx := conn.CloseRead(r.Context())

	ch, cancel := g.hub.Subscribe(g.queueSize)
	defer cancel()

	g.log.Info("ws.subscribe", "remote", r.RemoteAddr, "subscribers", g.hub.Subscribers())

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-ch:
			if !ok {
				return
			}
			writeCtx, writeCancel := context.WithTimeout(ctx, g.writeTimeout)
			err := wsjson.Write(writeCtx, conn, ev)
			writeCancel()
			if err != nil {
				g.log.Info("ws.write.fail", "close_status", websocket.CloseStatus(err), "err", err)
				return
			}
		}
	}
}

func (g *WSGateway) enforceOrigin(r *http.Request) error {
	origin := strings.TrimSpace(r.Header.Get("Origin"))
	if origin == "" {
		if g.originRequired {
			return errors.New("missing origin")
		}
		return nil
	}

	if len(g.allowedOrigins) == 0 {
		return errors.New("origin not allowed (no allowlist)")
	}

	originHost := originHostOnly(origin)
	for _, a := range g.allowedOrigins {
		a = strings.TrimSpace(a)
		if a == "" {
			continue
		}
		if a == "*" || origin == a {
			return nil
		}
		if originHost != "" && originHost == originHostOnly(a) {
			return nil
		}
	}
	return fmt.Errorf("origin not allowed: %s", origin)
}

func originHostOnly(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}

	if strings.Contains(s, "://") {
		u, err := url.Parse(s)
		if err != nil {
			return ""
		}
		h := strings.TrimSpace(u.Host)
		if h == "" {
			return ""
		}
		if host, _, err := net.SplitHostPort(h); err == nil {
			return strings.ToLower(host)
		}
		return strings.ToLower(h)
	}

	if host, _, err := net.SplitHostPort(s); err == nil {
		return strings.ToLower(host)
	}
	return strings.ToLower(s)
}

func deriveOriginPatterns(allowed []string) []string {
	seen := make(map[string]struct{}, len(allowed))
	for _, a := range allowed {
		h := originHostOnly(a)
		if h == "" || h == "*" {
			continue
		}
		seen[h] = struct{}{}
	}

	out := make([]string, 0, len(seen))
	for h := range seen {
		out = append(out, h)
	}
	return out
}

// ---- env helpers ----

func envBool(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func envInt(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return def
	}
	return n
}

func envDuration(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return def
	}
	return d
}

func envCSV(key string, def string) []string {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		raw = def
	}
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
