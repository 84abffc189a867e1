package pagehub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"pixel_pets/internal/domain/reminder"
	"pixel_pets/internal/domain/surface"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

const (
	frameHello = "HELLO"

	helloTimeout     = 10 * time.Second
	pongWait         = 60 * time.Second
	pingPeriod       = pongWait * 9 / 10
	defaultWriteWait = 5 * time.Second
	commandTimeout   = 10 * time.Second
	maxFrameBytes    = 4096
)

// ErrPageGone is returned by Deliver when the page has disconnected.
var ErrPageGone = errors.New("page is no longer connected")

// CommandExecutor runs commands sent by the in-page pet.
type CommandExecutor interface {
	Execute(ctx context.Context, cmd reminder.Command) (reminder.Result, error)
}

// inbound is any frame a page may send. HELLO may be repeated after the
// page navigates.
type inbound struct {
	Type string `json:"type"`
	URL  string `json:"url,omitempty"`
}

type page struct {
	id      string
	conn    *websocket.Conn
	writeMu sync.Mutex

	mu  sync.RWMutex
	url string
}

func (p *page) currentURL() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.url
}

func (p *page) setURL(url string) {
	p.mu.Lock()
	p.url = url
	p.mu.Unlock()
}

func (p *page) write(ctx context.Context, v any) error {
	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(defaultWriteWait)
	}
	p.writeMu.Lock()
	defer p.writeMu.Unlock()
	_ = p.conn.SetWriteDeadline(deadline)
	return p.conn.WriteJSON(v)
}

func (p *page) ping() error {
	p.writeMu.Lock()
	defer p.writeMu.Unlock()
	return p.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(defaultWriteWait))
}

// Hub accepts page connections on a WebSocket endpoint and exposes them as
// page surfaces.
type Hub struct {
	logger   *logrus.Entry
	executor CommandExecutor
	upgrader websocket.Upgrader

	mu     sync.RWMutex
	pages  map[string]*page
	nextID atomic.Uint64
	closed bool
}

// NewHub builds a hub. Pages may send ACKNOWLEDGE_REMINDER and
// SNOOZE_REMINDER frames which are passed to executor; a nil executor
// ignores them. An empty allowedOrigins list or "*" accepts any origin.
func NewHub(logger *logrus.Entry, executor CommandExecutor, allowedOrigins []string) *Hub {
	h := &Hub{
		logger:   logger,
		executor: executor,
		pages:    make(map[string]*page),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     originChecker(allowedOrigins),
	}
	return h
}

func originChecker(allowed []string) func(*http.Request) bool {
	if len(allowed) == 0 || slices.Contains(allowed, "*") {
		return func(*http.Request) bool { return true }
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		// Non-browser clients send no Origin.
		return origin == "" || slices.Contains(allowed, origin)
	}
}

// ServeHTTP upgrades the request and serves the page until it disconnects.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.WithError(err).Debug("WebSocket upgrade failed")
		return
	}
	conn.SetReadLimit(maxFrameBytes)

	hello, err := readHello(conn)
	if err != nil {
		h.logger.WithError(err).Warn("Rejected page without hello")
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "expected hello"),
			time.Now().Add(time.Second))
		_ = conn.Close()
		return
	}

	p := &page{
		id:   "page:" + strconv.FormatUint(h.nextID.Add(1), 10),
		conn: conn,
		url:  hello.URL,
	}
	if !h.add(p) {
		_ = conn.Close()
		return
	}
	log := h.logger.WithField("surface", p.id)
	log.WithField("url", hello.URL).Info("Page connected")

	stopPing := make(chan struct{})
	go h.keepAlive(p, stopPing)
	h.readLoop(r.Context(), p, log)
	close(stopPing)

	h.remove(p)
	_ = conn.Close()
	log.Info("Page disconnected")
}

func readHello(conn *websocket.Conn) (inbound, error) {
	_ = conn.SetReadDeadline(time.Now().Add(helloTimeout))
	var hello inbound
	if err := conn.ReadJSON(&hello); err != nil {
		return inbound{}, fmt.Errorf("read hello: %w", err)
	}
	if !strings.EqualFold(strings.TrimSpace(hello.Type), frameHello) {
		return inbound{}, fmt.Errorf("expected %s frame, got %q", frameHello, hello.Type)
	}
	return hello, nil
}

func (h *Hub) readLoop(ctx context.Context, p *page, log *logrus.Entry) {
	_ = p.conn.SetReadDeadline(time.Now().Add(pongWait))
	p.conn.SetPongHandler(func(string) error {
		return p.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var frame inbound
		if err := p.conn.ReadJSON(&frame); err != nil {
			var syntaxErr *json.SyntaxError
			var typeErr *json.UnmarshalTypeError
			if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
				log.WithError(err).Debug("Ignoring malformed frame")
				continue
			}
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.WithError(err).Debug("Page connection closed unexpectedly")
			}
			return
		}
		_ = p.conn.SetReadDeadline(time.Now().Add(pongWait))
		h.handleFrame(ctx, p, frame, log)
	}
}

func (h *Hub) handleFrame(ctx context.Context, p *page, frame inbound, log *logrus.Entry) {
	switch reminder.CommandType(frame.Type) {
	case frameHello:
		p.setURL(frame.URL)
		log.WithField("url", frame.URL).Debug("Page navigated")
	case reminder.CmdAcknowledgeReminder, reminder.CmdSnoozeReminder:
		if h.executor == nil {
			return
		}
		cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), commandTimeout)
		defer cancel()
		res, err := h.executor.Execute(cctx, reminder.Command{Type: reminder.CommandType(frame.Type)})
		switch {
		case err != nil:
			log.WithError(err).WithField("command", frame.Type).Warn("Page command not executed")
		case !res.Success:
			log.WithField("command", frame.Type).Warnf("Page command failed: %s", res.Error)
		}
	default:
		log.WithField("type", frame.Type).Debug("Ignoring unsupported frame")
	}
}

func (h *Hub) keepAlive(p *page, stop <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if err := p.ping(); err != nil {
				return
			}
		}
	}
}

func (h *Hub) add(p *page) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.pages[p.id] = p
	return true
}

func (h *Hub) remove(p *page) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.pages[p.id] == p {
		delete(h.pages, p.id)
	}
}

func (h *Hub) lookup(id string) (*page, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	p, ok := h.pages[id]
	return p, ok
}

// Count returns the number of connected pages.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.pages)
}

// Surfaces lists the connected pages.
func (h *Hub) Surfaces(context.Context) ([]surface.Surface, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]surface.Surface, 0, len(h.pages))
	for _, p := range h.pages {
		out = append(out, surface.Surface{ID: p.id, Kind: surface.KindPage, URL: p.currentURL()})
	}
	slices.SortFunc(out, func(a, b surface.Surface) int { return strings.Compare(a.ID, b.ID) })
	return out, nil
}

// Deliver writes n to the page. A page that cannot be written to is
// disconnected.
func (h *Hub) Deliver(ctx context.Context, s surface.Surface, n surface.Notification) error {
	p, ok := h.lookup(s.ID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrPageGone, s.ID)
	}
	if err := p.write(ctx, n); err != nil {
		h.remove(p)
		_ = p.conn.Close()
		return fmt.Errorf("write to %s: %w", s.ID, err)
	}
	return nil
}

// Close disconnects every page and rejects new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	pages := make([]*page, 0, len(h.pages))
	for _, p := range h.pages {
		pages = append(pages, p)
	}
	h.pages = make(map[string]*page)
	h.closed = true
	h.mu.Unlock()

	for _, p := range pages {
		p.writeMu.Lock()
		_ = p.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(time.Second))
		p.writeMu.Unlock()
		_ = p.conn.Close()
	}
}
