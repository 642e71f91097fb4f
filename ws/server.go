package ws

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/net/websocket"
)

const (
	maxDecodeErrorsPerConn = 3
	maxContentRunes        = 4000

	defaultIdleTimeout = 60 * time.Second
)

var (
	ErrSessionNotFound = errors.New("ws: consultation not found")
	ErrSessionEnded    = errors.New("ws: consultation has ended")
)

// Identity is the resolved owner of an authenticated connection.
type Identity struct {
	UserID uint
	Role   string
}

// Authorizer resolves an access token carried in an auth frame.
type Authorizer interface {
	Authenticate(token string) (Identity, error)
}

// Session is the directory's view of one consultation.
type Session struct {
	ID           uint
	UserID       uint
	ConsultantID uint
	Active       bool
}

// Directory answers who belongs to a consultation and whether the caller has
// an active one to resume.
type Directory interface {
	Lookup(consultationID uint) (Session, error)
	ActiveFor(userID uint) (Session, bool, error)
}

// StoredMessage is a persisted chat message as returned by the Store.
type StoredMessage struct {
	ID             uint
	ConsultationID uint
	SenderRole     string
	Content        string
	CreatedAt      time.Time
}

// Store persists chat messages for later backfill.
type Store interface {
	Append(consultationID uint, senderRole, content string) (StoredMessage, error)
}

// frame is the flat wire format. Every frame carries a type discriminator;
// the remaining fields are populated per type.
type frame struct {
	Type           string `json:"type"`
	Token          string `json:"token,omitempty"`
	ConsultationID uint   `json:"consultation_id,omitempty"`
	Content        string `json:"content,omitempty"`
	IsTyping       bool   `json:"is_typing,omitempty"`
}

type errorFrame struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type authSuccessFrame struct {
	Type               string `json:"type"`
	UserID             uint   `json:"user_id"`
	Role               string `json:"role"`
	ActiveConsultation *uint  `json:"active_consultation,omitempty"`
}

type joinedFrame struct {
	Type           string `json:"type"`
	ConsultationID uint   `json:"consultation_id"`
	ServerTime     string `json:"server_time"`
}

type participantFrame struct {
	Type           string `json:"type"`
	ConsultationID uint   `json:"consultation_id"`
	Role           string `json:"role"`
}

type messageSentFrame struct {
	Type    string         `json:"type"`
	Message messagePayload `json:"message"`
}

type messagePayload struct {
	ID             uint   `json:"id"`
	ConsultationID uint   `json:"consultation_id"`
	SenderRole     string `json:"sender_role"`
	Content        string `json:"content"`
	CreatedAt      string `json:"created_at"`
}

type typingFrame struct {
	Type           string `json:"type"`
	ConsultationID uint   `json:"consultation_id"`
	Role           string `json:"role"`
	IsTyping       bool   `json:"is_typing"`
}

type pongFrame struct {
	Type string `json:"type"`
}

// Server hosts the realtime consultation transport.
type Server struct {
	hub         *Hub
	authorizer  Authorizer
	directory   Directory
	store       Store
	idleTimeout time.Duration
}

func NewServer(authorizer Authorizer, directory Directory, store Store, idleTimeout time.Duration) *Server {
	if idleTimeout <= 0 {
		idleTimeout = defaultIdleTimeout
	}
	return &Server{
		hub:         NewHub(),
		authorizer:  authorizer,
		directory:   directory,
		store:       store,
		idleTimeout: idleTimeout,
	}
}

// Handler returns the websocket endpoint to mount at /ws.
func (s *Server) Handler() http.Handler {
	return websocket.Handler(s.handleConn)
}

// connState tracks one connection's identity and room membership. It is only
// touched by the connection's read loop, so no locking is needed.
type connState struct {
	identity *Identity
	room     *room
	peer     *peer
}

func (s *Server) handleConn(conn *websocket.Conn) {
	defer func() {
		_ = conn.Close()
	}()

	decoder := json.NewDecoder(conn)
	state := &connState{peer: newPeer(json.NewEncoder(conn), conn)}
	defer s.detach(state)

	decodeErrors := 0
	for {
		_ = conn.SetReadDeadline(time.Now().Add(s.idleTimeout))

		var f frame
		if err := decoder.Decode(&f); err != nil {
			if errors.Is(err, io.EOF) {
				return
			}
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				log.Printf("[ws] closing idle connection")
				return
			}
			decodeErrors++
			_ = state.peer.send(errorFrame{Type: "error", Message: "invalid frame"})
			if decodeErrors >= maxDecodeErrorsPerConn {
				return
			}
			continue
		}
		decodeErrors = 0

		if f.Type == "auth" {
			if !s.handleAuth(state, f) {
				return
			}
			continue
		}
		if state.identity == nil {
			// the connection stays inert until an auth frame succeeds
			_ = state.peer.send(errorFrame{Type: "error", Message: "authentication required"})
			continue
		}

		switch f.Type {
		case "ping":
			_ = state.peer.send(pongFrame{Type: "pong"})
		case "join_consultation":
			s.handleJoin(state, f)
		case "chat_message":
			s.handleChatMessage(state, f)
		case "typing":
			s.handleTyping(state, f)
		case "leave_consultation":
			s.handleLeave(state)
		default:
			log.Printf("[ws] dropping unknown frame type %q", f.Type)
		}
	}
}

// handleAuth resolves the token. A failed auth closes the connection; the
// false return tells the read loop to stop.
func (s *Server) handleAuth(state *connState, f frame) bool {
	identity, err := s.authorizer.Authenticate(strings.TrimSpace(f.Token))
	if err != nil {
		_ = state.peer.send(errorFrame{Type: "error", Message: "invalid token"})
		return false
	}
	state.identity = &identity

	out := authSuccessFrame{
		Type:   "auth_success",
		UserID: identity.UserID,
		Role:   identity.Role,
	}
	if session, ok, err := s.directory.ActiveFor(identity.UserID); err == nil && ok {
		id := session.ID
		out.ActiveConsultation = &id
	}
	_ = state.peer.send(out)
	return true
}

func (s *Server) handleJoin(state *connState, f frame) {
	if f.ConsultationID == 0 {
		_ = state.peer.send(errorFrame{Type: "error", Message: "consultation_id is required"})
		return
	}

	session, err := s.directory.Lookup(f.ConsultationID)
	if err != nil {
		_ = state.peer.send(errorFrame{Type: "error", Message: "consultation not found"})
		return
	}
	role, ok := partyRole(session, *state.identity)
	if !ok {
		// non-parties get the same answer as a missing consultation
		_ = state.peer.send(errorFrame{Type: "error", Message: "consultation not found"})
		return
	}
	if !session.Active {
		_ = state.peer.send(errorFrame{Type: "error", Message: "consultation has ended"})
		return
	}

	// joining a second room implicitly leaves the first
	if state.room != nil && state.room.consultationID != session.ID {
		s.leaveRoom(state)
	}

	r := s.hub.room(session.ID)
	replaced, other := r.join(role, state.peer)
	state.room = r
	if replaced != nil && replaced != state.peer {
		replaced.close()
	}

	_ = state.peer.send(joinedFrame{
		Type:           "joined_consultation",
		ConsultationID: session.ID,
		ServerTime:     time.Now().UTC().Format(time.RFC3339),
	})
	if other != nil {
		_ = other.send(participantFrame{
			Type:           "participant_joined",
			ConsultationID: session.ID,
			Role:           role,
		})
	}
}

func (s *Server) handleChatMessage(state *connState, f frame) {
	if state.room == nil {
		_ = state.peer.send(errorFrame{Type: "error", Message: "join a consultation first"})
		return
	}
	content := strings.TrimSpace(f.Content)
	if content == "" {
		_ = state.peer.send(errorFrame{Type: "error", Message: "content is required"})
		return
	}
	if utf8.RuneCountInString(content) > maxContentRunes {
		_ = state.peer.send(errorFrame{Type: "error", Message: "content is too long"})
		return
	}

	role := s.roleIn(state)
	stored, err := s.store.Append(state.room.consultationID, role, content)
	if err != nil {
		if errors.Is(err, ErrSessionEnded) {
			_ = state.peer.send(errorFrame{Type: "error", Message: "consultation has ended"})
			return
		}
		log.Printf("[ws] append message failed consultation=%d: %v", state.room.consultationID, err)
		_ = state.peer.send(errorFrame{Type: "error", Message: "message could not be saved"})
		return
	}

	out := messageSentFrame{
		Type: "message_sent",
		Message: messagePayload{
			ID:             stored.ID,
			ConsultationID: stored.ConsultationID,
			SenderRole:     stored.SenderRole,
			Content:        stored.Content,
			CreatedAt:      stored.CreatedAt.UTC().Format(time.RFC3339),
		},
	}
	for _, p := range state.room.peers() {
		_ = p.send(out)
	}
}

func (s *Server) handleTyping(state *connState, f frame) {
	if state.room == nil {
		return
	}
	role := s.roleIn(state)
	if other := state.room.other(role); other != nil {
		_ = other.send(typingFrame{
			Type:           "typing",
			ConsultationID: state.room.consultationID,
			Role:           role,
			IsTyping:       f.IsTyping,
		})
	}
}

func (s *Server) handleLeave(state *connState) {
	if state.room == nil {
		return
	}
	s.leaveRoom(state)
}

// detach is the disconnect path. It vacates the slot and notifies the other
// party; it never touches session state or billing.
func (s *Server) detach(state *connState) {
	if state.room == nil {
		return
	}
	s.leaveRoom(state)
}

func (s *Server) leaveRoom(state *connState) {
	r := state.room
	role := s.roleIn(state)
	other, empty := r.leave(role, state.peer)
	if other != nil {
		_ = other.send(participantFrame{
			Type:           "participant_left",
			ConsultationID: r.consultationID,
			Role:           role,
		})
	}
	if empty {
		s.hub.drop(r.consultationID)
	}
	state.room = nil
}

func (s *Server) roleIn(state *connState) string {
	if state.identity == nil {
		return ""
	}
	return state.identity.Role
}

func partyRole(session Session, identity Identity) (string, bool) {
	switch {
	case identity.Role == "user" && session.UserID == identity.UserID:
		return "user", true
	case identity.Role == "consultant" && session.ConsultantID == identity.UserID:
		return "consultant", true
	}
	return "", false
}
