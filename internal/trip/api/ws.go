package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"taxi-realtime/internal/realtime/group"
	"taxi-realtime/internal/realtime/session"
	"taxi-realtime/internal/shared/apperrors"
	"taxi-realtime/internal/shared/models"
	"taxi-realtime/internal/shared/util"
	"taxi-realtime/internal/trip/app"
	"taxi-realtime/internal/trip/domain"

	"github.com/gorilla/websocket"
)

const (
	maxMessageSize = 64 << 10
	handleTimeout  = 5 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Gateway accepts rider and driver websocket connections, authenticates
// them and bridges each one to a session.
type Gateway struct {
	router   *app.Router
	registry *group.Registry
	trips    session.TripLister
	auth     Authenticator
	cfg      models.WebSocketConfig
	logger   *util.Logger

	mu       sync.Mutex
	sessions map[string]*session.Session
	closing  bool
}

func NewGateway(router *app.Router, registry *group.Registry, trips session.TripLister, auth Authenticator, cfg models.WebSocketConfig, logger *util.Logger) *Gateway {
	if cfg.AuthTimeout <= 0 {
		cfg.AuthTimeout = 5 * time.Second
	}
	if cfg.PongWait <= 0 {
		cfg.PongWait = 60 * time.Second
	}
	if cfg.PingInterval <= 0 || cfg.PingInterval >= cfg.PongWait {
		cfg.PingInterval = cfg.PongWait * 9 / 10
	}
	if cfg.WriteWait <= 0 {
		cfg.WriteWait = 10 * time.Second
	}
	if cfg.SendBuffer < 1 {
		cfg.SendBuffer = 64
	}
	return &Gateway{
		router:   router,
		registry: registry,
		trips:    trips,
		auth:     auth,
		cfg:      cfg,
		logger:   logger,
		sessions: make(map[string]*session.Session),
	}
}

func (g *Gateway) RiderWSHandler(w http.ResponseWriter, r *http.Request) {
	g.serve(w, r, domain.RoleRider)
}

func (g *Gateway) DriverWSHandler(w http.ResponseWriter, r *http.Request) {
	g.serve(w, r, domain.RoleDriver)
}

func (g *Gateway) serve(w http.ResponseWriter, r *http.Request, role domain.Role) {
	instance := "Gateway." + string(role)
	headerToken := r.Header.Get("Authorization")

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		g.logger.Error(instance, fmt.Errorf("upgrade failed: %w", err))
		return
	}

	s := session.New(g.registry, g.cfg.SendBuffer)

	user, viaMessage, err := g.authenticate(conn, headerToken)
	if err == nil {
		err = s.Authenticate(user, role)
	}
	if err != nil {
		g.logger.Warn(instance, fmt.Sprintf("authentication failed [session=%s]: %v", s.ID(), err))
		s.Close()
		g.reject(conn, apperrors.CodeAuth, err.Error())
		return
	}

	if err := s.Subscribe(r.Context(), g.trips); err != nil {
		g.logger.Error(instance, fmt.Errorf("subscribe %s: %w", user.ID, err))
		s.Close()
		g.reject(conn, apperrors.CodeInternal, "internal error")
		return
	}

	if !g.register(s) {
		s.Close()
		g.reject(conn, apperrors.CodeInternal, "server shutting down")
		return
	}

	if viaMessage {
		g.sendJSON(s, WSResponse{Type: "auth_success", Message: "authenticated"})
	}

	g.logger.OK(instance, fmt.Sprintf("session opened [session=%s, user=%s, topics=%d]", s.ID(), user.ID, len(s.Topics())))

	go g.writePump(conn, s)
	g.readPump(r.Context(), conn, s)
}

// authenticate resolves the user from the upgrade header or, failing that,
// from a first {"type":"auth"} frame read within the auth timeout.
func (g *Gateway) authenticate(conn *websocket.Conn, headerToken string) (domain.User, bool, error) {
	if headerToken != "" {
		user, err := g.auth.Authenticate(headerToken)
		return user, false, err
	}

	conn.SetReadDeadline(time.Now().Add(g.cfg.AuthTimeout))
	_, raw, err := conn.ReadMessage()
	if err != nil {
		return domain.User{}, true, fmt.Errorf("%w: no auth message: %v", domain.ErrUnauthenticated, err)
	}
	conn.SetReadDeadline(time.Time{})

	var msg AuthMessage
	if err := json.Unmarshal(raw, &msg); err != nil || msg.Type != "auth" || msg.Token == "" {
		return domain.User{}, true, fmt.Errorf("%w: expected auth message", domain.ErrUnauthenticated)
	}
	user, err := g.auth.Authenticate(msg.Token)
	return user, true, err
}

func (g *Gateway) reject(conn *websocket.Conn, code, message string) {
	defer conn.Close()
	conn.SetWriteDeadline(time.Now().Add(g.cfg.WriteWait))
	if err := conn.WriteJSON(WSResponse{Type: "error", Code: code, Message: message}); err != nil {
		return
	}
	closeCode := websocket.ClosePolicyViolation
	if code == apperrors.CodeInternal {
		closeCode = websocket.CloseInternalServerErr
	}
	conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(closeCode, code))
}

func (g *Gateway) readPump(ctx context.Context, conn *websocket.Conn, s *session.Session) {
	defer g.release(s)

	conn.SetReadLimit(maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(g.cfg.PongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(g.cfg.PongWait))
		return nil
	})

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				g.logger.Warn("Gateway.readPump", fmt.Sprintf("connection lost [session=%s]: %v", s.ID(), err))
			}
			return
		}

		hctx, cancel := context.WithTimeout(ctx, handleTimeout)
		err = g.router.Handle(hctx, s, raw)
		cancel()
		if err != nil && !apperrors.IsClientError(err) && !errors.Is(err, context.Canceled) {
			g.logger.Error("Gateway.readPump", fmt.Errorf("session %s: %w", s.ID(), err))
		}
	}
}

// writePump is the only writer of conn once the session is open. It exits
// when the outbox is closed or a write fails.
func (g *Gateway) writePump(conn *websocket.Conn, s *session.Session) {
	ticker := time.NewTicker(g.cfg.PingInterval)
	defer func() {
		ticker.Stop()
		conn.Close()
		g.release(s)
	}()

	for {
		select {
		case msg, ok := <-s.Outbox():
			conn.SetWriteDeadline(time.Now().Add(g.cfg.WriteWait))
			if !ok {
				conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(g.cfg.WriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (g *Gateway) register(s *session.Session) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closing {
		return false
	}
	g.sessions[s.ID()] = s
	return true
}

// release closes s and forgets it. Both pumps call it; only the first call
// does anything.
func (g *Gateway) release(s *session.Session) {
	g.mu.Lock()
	delete(g.sessions, s.ID())
	g.mu.Unlock()

	if s.Close() {
		g.logger.Info("Gateway.release", fmt.Sprintf("session closed [session=%s, user=%s, dropped=%d]", s.ID(), s.User().ID, s.Dropped()))
	}
}

func (g *Gateway) sendJSON(s *session.Session, v interface{}) {
	body, err := json.Marshal(v)
	if err != nil {
		return
	}
	s.Send(body)
}

// Sessions reports the number of open sessions.
func (g *Gateway) Sessions() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.sessions)
}

// Shutdown closes every open session and refuses new ones.
func (g *Gateway) Shutdown() {
	g.mu.Lock()
	g.closing = true
	open := make([]*session.Session, 0, len(g.sessions))
	for _, s := range g.sessions {
		open = append(open, s)
	}
	g.mu.Unlock()

	for _, s := range open {
		g.release(s)
	}
	g.logger.Info("Gateway.Shutdown", fmt.Sprintf("closed %d sessions", len(open)))
}
