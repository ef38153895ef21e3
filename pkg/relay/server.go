package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/multierr"

	"github.com/gregLibert/smart-card-hce/internal/syncutil"
	"github.com/gregLibert/smart-card-hce/pkg/hce"
	"github.com/gregLibert/smart-card-hce/pkg/profile"
	"github.com/gregLibert/smart-card-hce/pkg/tlv"
)

// ProfileSource returns the profile a new session answers with. It is
// called once per connection; later changes do not affect live sessions.
type ProfileSource func() (profile.Profile, error)

// StaticProfile always returns p.
func StaticProfile(p profile.Profile) ProfileSource {
	return func() (profile.Profile, error) { return p, nil }
}

// SessionInfo describes a live session.
type SessionInfo struct {
	ID      string    `json:"id"`
	Remote  string    `json:"remote"`
	Started time.Time `json:"started"`
}

type session struct {
	info      SessionInfo
	conn      *websocket.Conn
	responder *hce.Responder
}

// Server accepts relay connections and runs one Responder per connection.
type Server struct {
	source   ProfileSource
	options  []hce.Option
	logger   *slog.Logger
	upgrader websocket.Upgrader

	mu       syncutil.RWMutex
	sessions map[string]*session
}

// NewServer creates a relay server. opts are applied to every Responder,
// after a per-session logger.
func NewServer(source ProfileSource, logger *slog.Logger, opts ...hce.Option) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		source:  source,
		options: opts,
		logger:  logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		sessions: make(map[string]*session),
	}
}

// Handler serves the relay endpoint and a health check.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle(Path, s)
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"status":   "ok",
			"sessions": s.Sessions(),
		})
	})
	return mux
}

// ServeHTTP upgrades the connection and runs the session until it ends.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("WebSocket upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}
	defer conn.Close()

	id := uuid.New().String()
	logger := s.logger.With("session", id)

	responder, err := s.newResponder(logger)
	if err != nil {
		logger.Error("Session rejected", "error", err)
		_ = conn.WriteJSON(Message{Type: TypeError, ID: id, Error: err.Error()})
		return
	}

	sess := &session{
		info:      SessionInfo{ID: id, Remote: r.RemoteAddr, Started: time.Now()},
		conn:      conn,
		responder: responder,
	}
	s.register(sess)
	defer s.unregister(id)

	logger.Info("Session started", "remote", r.RemoteAddr)
	if err := conn.WriteJSON(Message{Type: TypeSession, ID: id}); err != nil {
		responder.Deactivate(r.Context(), hce.LinkLoss)
		return
	}

	s.serve(r.Context(), sess, logger)
}

func (s *Server) newResponder(logger *slog.Logger) (*hce.Responder, error) {
	p, err := s.source()
	if err != nil {
		return nil, fmt.Errorf("load profile: %w", err)
	}
	opts := append([]hce.Option{hce.WithLogger(logger)}, s.options...)
	return hce.NewResponder(p, opts...)
}

// serve answers frames until the peer deactivates or the link drops.
func (s *Server) serve(ctx context.Context, sess *session, logger *slog.Logger) {
	for {
		_, raw, err := sess.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Warn("WebSocket read error", "error", err)
			}
			sess.responder.Deactivate(ctx, hce.LinkLoss)
			return
		}

		var msg Message
		if err := json.Unmarshal(raw, &msg); err != nil {
			s.reply(sess, logger, Message{Type: TypeError, Error: fmt.Sprintf("invalid frame: %v", err)})
			continue
		}

		switch msg.Type {
		case TypeAPDU:
			cmd, err := tlv.ParseHex(msg.APDU)
			if err != nil {
				s.reply(sess, logger, Message{Type: TypeError, ID: msg.ID, Error: fmt.Sprintf("invalid apdu: %v", err)})
				continue
			}
			resp := sess.responder.Process(ctx, cmd)
			s.reply(sess, logger, Message{Type: TypeRAPDU, ID: msg.ID, APDU: tlv.UpperHex(resp)})

		case TypeDeactivate:
			reason := hce.Deselected
			if msg.Reason != nil {
				reason = hce.DeactivationReason(*msg.Reason)
			}
			sess.responder.Deactivate(ctx, reason)
			_ = sess.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, reason.String()),
				time.Now().Add(time.Second))
			return

		default:
			s.reply(sess, logger, Message{Type: TypeError, ID: msg.ID, Error: fmt.Sprintf("unknown message type %q", msg.Type)})
		}
	}
}

func (s *Server) reply(sess *session, logger *slog.Logger, msg Message) {
	if err := sess.conn.WriteJSON(msg); err != nil {
		logger.Warn("WebSocket write error", "type", msg.Type, "error", err)
	}
}

func (s *Server) register(sess *session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sess.info.ID] = sess
}

func (s *Server) unregister(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
}

// Sessions lists live sessions, oldest first.
func (s *Server) Sessions() []SessionInfo {
	s.mu.RLock()
	out := make([]SessionInfo, 0, len(s.sessions))
	for _, sess := range s.sessions {
		out = append(out, sess.info)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Started.Before(out[j].Started) })
	return out
}

// CloseAll drops every live connection. Each session then ends as a link loss.
func (s *Server) CloseAll() error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var err error
	for _, sess := range s.sessions {
		err = multierr.Append(err, sess.conn.Close())
	}
	return err
}
