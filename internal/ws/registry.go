package ws

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/rufatasadov/sober-driver-backend/internal/domain"
	"github.com/rufatasadov/sober-driver-backend/internal/events"
	"github.com/rufatasadov/sober-driver-backend/internal/logx"
)

// Config tunes session timeouts and buffers.
type Config struct {
	IdleTimeout     time.Duration
	WriteTimeout    time.Duration
	SendBuffer      int
	MaxMessageBytes int64
	AllowedOrigins  []string
}

const (
	defaultIdleTimeout  = 60 * time.Second
	defaultWriteTimeout = 10 * time.Second
	defaultSendBuffer   = 64
	defaultMaxMessage   = 4 << 10
)

// Registry upgrades connections and owns the live session table.
type Registry struct {
	hub      hub
	coord    coordinator
	verifier tokenVerifier
	limiter  Limiter
	logger   logx.Logger
	gauge    *prometheus.GaugeVec
	cfg      Config
	upgrader websocket.Upgrader

	mu       sync.Mutex
	sessions map[string]*Session
	drivers  map[string]int
	presence presenceLocks
}

// presenceLocks serializes connect and disconnect handling per driver so a
// stale disconnect can never land after a newer connect.
type presenceLocks struct {
	mu    sync.Mutex
	locks map[string]*presenceLock
}

type presenceLock struct {
	mu   sync.Mutex
	refs int
}

func (p *presenceLocks) lock(driverID string) (unlock func()) {
	p.mu.Lock()
	if p.locks == nil {
		p.locks = make(map[string]*presenceLock)
	}
	l, ok := p.locks[driverID]
	if !ok {
		l = &presenceLock{}
		p.locks[driverID] = l
	}
	l.refs++
	p.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		p.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(p.locks, driverID)
		}
		p.mu.Unlock()
	}
}

func isDriver(a domain.Actor) bool {
	return a.Role == domain.RoleDriver && a.DriverID != ""
}

// NewRegistry creates a Registry. limiter and gauge may be nil.
func NewRegistry(h hub, coord coordinator, verifier tokenVerifier, limiter Limiter, logger logx.Logger, gauge *prometheus.GaugeVec, cfg Config) *Registry {
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = defaultIdleTimeout
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = defaultWriteTimeout
	}
	if cfg.SendBuffer <= 0 {
		cfg.SendBuffer = defaultSendBuffer
	}
	if cfg.MaxMessageBytes <= 0 {
		cfg.MaxMessageBytes = defaultMaxMessage
	}
	if logger == nil {
		logger = logx.Nop()
	}
	r := &Registry{
		hub:      h,
		coord:    coord,
		verifier: verifier,
		limiter:  limiter,
		logger:   logger,
		gauge:    gauge,
		cfg:      cfg,
		sessions: make(map[string]*Session),
		drivers:  make(map[string]int),
	}
	r.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     r.checkOrigin,
	}
	return r
}

func (r *Registry) checkOrigin(req *http.Request) bool {
	if len(r.cfg.AllowedOrigins) == 0 {
		return true
	}
	origin := req.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, o := range r.cfg.AllowedOrigins {
		if o == "*" || strings.EqualFold(o, origin) {
			return true
		}
	}
	return false
}

// ServeHTTP authenticates, upgrades and serves one session until it closes.
func (r *Registry) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	token := req.URL.Query().Get("token")
	if token == "" {
		token = req.Header.Get("Authorization")
	}
	actor, err := r.verifier.Verify(token)
	if err != nil {
		r.logger.Warn("ws auth failed", logx.String("remote_addr", req.RemoteAddr), logx.Any("err", err))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":"unauthorized"}`))
		return
	}

	conn, err := r.upgrader.Upgrade(w, req, nil)
	if err != nil {
		r.logger.Warn("ws upgrade failed", logx.String("user_id", actor.UserID), logx.Any("err", err))
		return
	}

	sess := newSession(uuid.NewString(), actor, conn, r.cfg.SendBuffer)
	ctx := context.WithoutCancel(req.Context())

	r.attach(ctx, sess)
	defer r.detach(ctx, sess)

	go r.writePump(sess)
	r.readPump(ctx, sess)
}

func (r *Registry) attach(ctx context.Context, s *Session) {
	a := s.actor
	if isDriver(a) {
		defer r.presence.lock(a.DriverID)()
	}

	r.mu.Lock()
	r.sessions[s.id] = s
	firstDriver := false
	if isDriver(a) {
		r.drivers[a.DriverID]++
		firstDriver = r.drivers[a.DriverID] == 1
	}
	r.mu.Unlock()

	r.hub.Subscribe(events.UserTopic(a.UserID), s)
	for _, topic := range events.RoleTopics(a.Role) {
		r.hub.Subscribe(topic, s)
	}
	if r.gauge != nil {
		r.gauge.WithLabelValues(string(a.Role)).Inc()
	}

	if firstDriver {
		if _, err := r.coord.DriverConnected(ctx, a); err != nil {
			r.logger.Error("driver connect failed", logx.String("driver_id", a.DriverID), logx.Any("err", err))
		}
	}

	r.logger.Info("ws session opened",
		logx.String("session_id", s.id),
		logx.String("user_id", a.UserID),
		logx.String("role", string(a.Role)),
	)
	r.reply(s, eventConnected, connectedPayload{SessionID: s.id, UserID: a.UserID, Role: string(a.Role)})
}

func (r *Registry) detach(ctx context.Context, s *Session) {
	a := s.actor
	s.close()
	if s.conn != nil {
		_ = s.conn.Close()
	}
	r.hub.UnsubscribeAll(s.id)
	if isDriver(a) {
		defer r.presence.lock(a.DriverID)()
	}

	r.mu.Lock()
	_, known := r.sessions[s.id]
	delete(r.sessions, s.id)
	lastDriver := false
	if known && isDriver(a) {
		r.drivers[a.DriverID]--
		if r.drivers[a.DriverID] <= 0 {
			delete(r.drivers, a.DriverID)
			lastDriver = true
		}
	}
	r.mu.Unlock()

	if !known {
		return
	}
	if r.gauge != nil {
		r.gauge.WithLabelValues(string(a.Role)).Dec()
	}
	if lastDriver {
		r.coord.DriverDisconnected(ctx, a)
	}
	r.logger.Info("ws session closed",
		logx.String("session_id", s.id),
		logx.String("user_id", a.UserID),
	)
}

func (r *Registry) readPump(ctx context.Context, s *Session) {
	conn := s.conn
	conn.SetReadLimit(r.cfg.MaxMessageBytes)
	_ = conn.SetReadDeadline(time.Now().Add(r.cfg.IdleTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(r.cfg.IdleTimeout))
	})

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				r.logger.Debug("ws read failed", logx.String("session_id", s.id), logx.Any("err", err))
			}
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(r.cfg.IdleTimeout))
		r.handle(ctx, s, raw)
	}
}

func (r *Registry) writePump(s *Session) {
	conn := s.conn
	ticker := time.NewTicker(r.cfg.IdleTimeout * 9 / 10)
	defer func() {
		ticker.Stop()
		_ = conn.Close()
	}()

	for {
		select {
		case env := <-s.send:
			_ = conn.SetWriteDeadline(time.Now().Add(r.cfg.WriteTimeout))
			if err := conn.WriteJSON(env); err != nil {
				r.logger.Debug("ws write failed", logx.String("session_id", s.id), logx.Any("err", err))
				s.close()
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(r.cfg.WriteTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				s.close()
				return
			}
		case <-s.done:
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(r.cfg.WriteTimeout))
			return
		}
	}
}

func (r *Registry) reply(s *Session, event string, data any) {
	if !s.Deliver(events.Envelope{Event: event, Topic: "session", Data: data, At: time.Now().UTC()}) {
		r.logger.Warn("ws reply dropped", logx.String("session_id", s.id), logx.String("event", event))
	}
}

// Count returns the number of open sessions.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Close ends every open session. Used on shutdown since hijacked
// connections are not tracked by http.Server.
func (r *Registry) Close() {
	r.mu.Lock()
	open := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		open = append(open, s)
	}
	r.mu.Unlock()

	for _, s := range open {
		s.close()
	}
}
