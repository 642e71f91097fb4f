package ws

import (
	"encoding/json"
	"errors"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"golang.org/x/net/websocket"
)

type fakeAuthorizer struct {
	tokens map[string]Identity
}

func (f fakeAuthorizer) Authenticate(token string) (Identity, error) {
	identity, ok := f.tokens[token]
	if !ok {
		return Identity{}, errors.New("unknown token")
	}
	return identity, nil
}

type fakeDirectory struct {
	sessions map[uint]Session
}

func (f fakeDirectory) Lookup(consultationID uint) (Session, error) {
	session, ok := f.sessions[consultationID]
	if !ok {
		return Session{}, ErrSessionNotFound
	}
	return session, nil
}

func (f fakeDirectory) ActiveFor(userID uint) (Session, bool, error) {
	for _, session := range f.sessions {
		if session.Active && (session.UserID == userID || session.ConsultantID == userID) {
			return session, true, nil
		}
	}
	return Session{}, false, nil
}

type fakeStore struct {
	mu       sync.Mutex
	nextID   uint
	appended []StoredMessage
	err      error
}

func (f *fakeStore) Append(consultationID uint, senderRole, content string) (StoredMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return StoredMessage{}, f.err
	}
	f.nextID++
	msg := StoredMessage{
		ID:             f.nextID,
		ConsultationID: consultationID,
		SenderRole:     senderRole,
		Content:        content,
		CreatedAt:      time.Now().UTC(),
	}
	f.appended = append(f.appended, msg)
	return msg, nil
}

type testFrame struct {
	Type               string `json:"type"`
	Message            string `json:"message,omitempty"`
	UserID             uint   `json:"user_id,omitempty"`
	Role               string `json:"role,omitempty"`
	ActiveConsultation *uint  `json:"active_consultation,omitempty"`
	ConsultationID     uint   `json:"consultation_id,omitempty"`
	IsTyping           bool   `json:"is_typing,omitempty"`
}

// message_sent carries a nested message object; decode it separately.
type testMessageSent struct {
	Type    string `json:"type"`
	Message struct {
		ID             uint   `json:"id"`
		ConsultationID uint   `json:"consultation_id"`
		SenderRole     string `json:"sender_role"`
		Content        string `json:"content"`
	} `json:"message"`
}

func newTestServer() *Server {
	return NewServer(
		fakeAuthorizer{tokens: map[string]Identity{
			"tok-user":       {UserID: 1, Role: "user"},
			"tok-consultant": {UserID: 2, Role: "consultant"},
		}},
		fakeDirectory{sessions: map[uint]Session{
			10: {ID: 10, UserID: 1, ConsultantID: 2, Active: true},
			11: {ID: 11, UserID: 1, ConsultantID: 2, Active: false},
		}},
		&fakeStore{},
		time.Minute,
	)
}

func dialWS(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, err := websocket.Dial(wsURL, "", srv.URL)
	if err != nil {
		t.Fatalf("dial websocket: %v", err)
	}
	t.Cleanup(func() {
		_ = conn.Close()
	})
	return conn
}

func startTestServer(t *testing.T, server *Server) *httptest.Server {
	t.Helper()
	mux := httptest.NewServer(server.Handler())
	t.Cleanup(mux.Close)
	return mux
}

func writeFrame(t *testing.T, conn *websocket.Conn, frame map[string]any) {
	t.Helper()
	if err := json.NewEncoder(conn).Encode(frame); err != nil {
		t.Fatalf("encode frame: %v", err)
	}
}

func readFrame(t *testing.T, conn *websocket.Conn) testFrame {
	t.Helper()
	_ = conn.SetDeadline(time.Now().Add(2 * time.Second))
	var got testFrame
	if err := json.NewDecoder(conn).Decode(&got); err != nil {
		t.Fatalf("decode server frame: %v", err)
	}
	return got
}

func readMessageSent(t *testing.T, conn *websocket.Conn) testMessageSent {
	t.Helper()
	_ = conn.SetDeadline(time.Now().Add(2 * time.Second))
	var got testMessageSent
	if err := json.NewDecoder(conn).Decode(&got); err != nil {
		t.Fatalf("decode server frame: %v", err)
	}
	return got
}

func authenticate(t *testing.T, conn *websocket.Conn, token string) testFrame {
	t.Helper()
	writeFrame(t, conn, map[string]any{"type": "auth", "token": token})
	got := readFrame(t, conn)
	if got.Type != "auth_success" {
		t.Fatalf("frame type = %q, want %q", got.Type, "auth_success")
	}
	return got
}

func joinConsultation(t *testing.T, conn *websocket.Conn, consultationID uint) {
	t.Helper()
	writeFrame(t, conn, map[string]any{"type": "join_consultation", "consultation_id": consultationID})
	got := readFrame(t, conn)
	if got.Type != "joined_consultation" {
		t.Fatalf("frame type = %q, want %q", got.Type, "joined_consultation")
	}
	if got.ConsultationID != consultationID {
		t.Fatalf("consultation_id = %d, want %d", got.ConsultationID, consultationID)
	}
}

func TestAuthSuccessReturnsIdentityAndActiveHint(t *testing.T) {
	srv := startTestServer(t, newTestServer())
	conn := dialWS(t, srv)

	got := authenticate(t, conn, "tok-user")
	if got.UserID != 1 || got.Role != "user" {
		t.Fatalf("identity = (%d, %q), want (1, user)", got.UserID, got.Role)
	}
	if got.ActiveConsultation == nil || *got.ActiveConsultation != 10 {
		t.Fatalf("active_consultation = %v, want 10", got.ActiveConsultation)
	}
}

func TestAuthWithBadTokenClosesConnection(t *testing.T) {
	srv := startTestServer(t, newTestServer())
	conn := dialWS(t, srv)

	writeFrame(t, conn, map[string]any{"type": "auth", "token": "bogus"})
	got := readFrame(t, conn)
	if got.Type != "error" {
		t.Fatalf("frame type = %q, want %q", got.Type, "error")
	}

	_ = conn.SetDeadline(time.Now().Add(2 * time.Second))
	var next testFrame
	if err := json.NewDecoder(conn).Decode(&next); err == nil {
		t.Fatalf("expected closed connection, got frame %+v", next)
	}
}

func TestFramesBeforeAuthAreRejected(t *testing.T) {
	srv := startTestServer(t, newTestServer())
	conn := dialWS(t, srv)

	writeFrame(t, conn, map[string]any{"type": "join_consultation", "consultation_id": 10})
	got := readFrame(t, conn)
	if got.Type != "error" {
		t.Fatalf("frame type = %q, want %q", got.Type, "error")
	}
	if !strings.Contains(got.Message, "authentication") {
		t.Fatalf("error message = %q, expected authentication required", got.Message)
	}
}

func TestJoinNotifiesOtherParticipant(t *testing.T) {
	srv := startTestServer(t, newTestServer())
	userConn := dialWS(t, srv)
	consultantConn := dialWS(t, srv)

	authenticate(t, userConn, "tok-user")
	authenticate(t, consultantConn, "tok-consultant")

	joinConsultation(t, userConn, 10)
	joinConsultation(t, consultantConn, 10)

	notice := readFrame(t, userConn)
	if notice.Type != "participant_joined" {
		t.Fatalf("frame type = %q, want %q", notice.Type, "participant_joined")
	}
	if notice.Role != "consultant" {
		t.Fatalf("joined role = %q, want consultant", notice.Role)
	}
}

func TestJoinEndedConsultationFails(t *testing.T) {
	srv := startTestServer(t, newTestServer())
	conn := dialWS(t, srv)
	authenticate(t, conn, "tok-user")

	writeFrame(t, conn, map[string]any{"type": "join_consultation", "consultation_id": 11})
	got := readFrame(t, conn)
	if got.Type != "error" {
		t.Fatalf("frame type = %q, want %q", got.Type, "error")
	}
	if !strings.Contains(got.Message, "ended") {
		t.Fatalf("error message = %q, expected ended", got.Message)
	}
}

func TestJoinAsNonPartyLooksLikeMissingConsultation(t *testing.T) {
	server := NewServer(
		fakeAuthorizer{tokens: map[string]Identity{"tok-other": {UserID: 99, Role: "user"}}},
		fakeDirectory{sessions: map[uint]Session{10: {ID: 10, UserID: 1, ConsultantID: 2, Active: true}}},
		&fakeStore{},
		time.Minute,
	)
	srv := startTestServer(t, server)
	conn := dialWS(t, srv)

	writeFrame(t, conn, map[string]any{"type": "auth", "token": "tok-other"})
	_ = readFrame(t, conn)

	writeFrame(t, conn, map[string]any{"type": "join_consultation", "consultation_id": 10})
	got := readFrame(t, conn)
	if got.Type != "error" || !strings.Contains(got.Message, "not found") {
		t.Fatalf("frame = %+v, want not found error", got)
	}
}

func TestChatMessagePersistsAndFansOutToBothParties(t *testing.T) {
	store := &fakeStore{}
	server := NewServer(
		fakeAuthorizer{tokens: map[string]Identity{
			"tok-user":       {UserID: 1, Role: "user"},
			"tok-consultant": {UserID: 2, Role: "consultant"},
		}},
		fakeDirectory{sessions: map[uint]Session{10: {ID: 10, UserID: 1, ConsultantID: 2, Active: true}}},
		store,
		time.Minute,
	)
	srv := startTestServer(t, server)
	userConn := dialWS(t, srv)
	consultantConn := dialWS(t, srv)

	authenticate(t, userConn, "tok-user")
	authenticate(t, consultantConn, "tok-consultant")
	joinConsultation(t, userConn, 10)
	joinConsultation(t, consultantConn, 10)
	_ = readFrame(t, userConn) // participant_joined

	writeFrame(t, userConn, map[string]any{"type": "chat_message", "content": "hello there"})

	senderEcho := readMessageSent(t, userConn)
	if senderEcho.Type != "message_sent" {
		t.Fatalf("sender frame type = %q, want %q", senderEcho.Type, "message_sent")
	}
	receiverCopy := readMessageSent(t, consultantConn)
	if receiverCopy.Message.Content != "hello there" {
		t.Fatalf("receiver content = %q, want %q", receiverCopy.Message.Content, "hello there")
	}
	if receiverCopy.Message.SenderRole != "user" {
		t.Fatalf("sender_role = %q, want user", receiverCopy.Message.SenderRole)
	}
	if receiverCopy.Message.ID == 0 {
		t.Fatal("expected persisted message id")
	}

	store.mu.Lock()
	defer store.mu.Unlock()
	if len(store.appended) != 1 {
		t.Fatalf("store has %d messages, want 1", len(store.appended))
	}
}

func TestChatMessageBeforeJoinFails(t *testing.T) {
	srv := startTestServer(t, newTestServer())
	conn := dialWS(t, srv)
	authenticate(t, conn, "tok-user")

	writeFrame(t, conn, map[string]any{"type": "chat_message", "content": "hello"})
	got := readFrame(t, conn)
	if got.Type != "error" || !strings.Contains(got.Message, "join") {
		t.Fatalf("frame = %+v, want join-first error", got)
	}
}

func TestChatMessageAgainstEndedSessionReportsEnded(t *testing.T) {
	store := &fakeStore{err: ErrSessionEnded}
	server := NewServer(
		fakeAuthorizer{tokens: map[string]Identity{"tok-user": {UserID: 1, Role: "user"}}},
		fakeDirectory{sessions: map[uint]Session{10: {ID: 10, UserID: 1, ConsultantID: 2, Active: true}}},
		store,
		time.Minute,
	)
	srv := startTestServer(t, server)
	conn := dialWS(t, srv)
	authenticate(t, conn, "tok-user")
	joinConsultation(t, conn, 10)

	writeFrame(t, conn, map[string]any{"type": "chat_message", "content": "too late"})
	got := readFrame(t, conn)
	if got.Type != "error" || !strings.Contains(got.Message, "ended") {
		t.Fatalf("frame = %+v, want ended error", got)
	}
}

func TestTypingRelaysToOtherPartyOnly(t *testing.T) {
	srv := startTestServer(t, newTestServer())
	userConn := dialWS(t, srv)
	consultantConn := dialWS(t, srv)

	authenticate(t, userConn, "tok-user")
	authenticate(t, consultantConn, "tok-consultant")
	joinConsultation(t, userConn, 10)
	joinConsultation(t, consultantConn, 10)
	_ = readFrame(t, userConn) // participant_joined

	writeFrame(t, userConn, map[string]any{"type": "typing", "is_typing": true})

	got := readFrame(t, consultantConn)
	if got.Type != "typing" {
		t.Fatalf("frame type = %q, want %q", got.Type, "typing")
	}
	if !got.IsTyping || got.Role != "user" {
		t.Fatalf("typing frame = %+v, want is_typing from user", got)
	}

	// the sender gets no echo; a ping/pong round trip proves the read queue is empty
	writeFrame(t, userConn, map[string]any{"type": "ping"})
	next := readFrame(t, userConn)
	if next.Type != "pong" {
		t.Fatalf("frame type = %q, want pong (no typing echo)", next.Type)
	}
}

func TestLeaveNotifiesOtherParty(t *testing.T) {
	srv := startTestServer(t, newTestServer())
	userConn := dialWS(t, srv)
	consultantConn := dialWS(t, srv)

	authenticate(t, userConn, "tok-user")
	authenticate(t, consultantConn, "tok-consultant")
	joinConsultation(t, userConn, 10)
	joinConsultation(t, consultantConn, 10)
	_ = readFrame(t, userConn) // participant_joined

	writeFrame(t, userConn, map[string]any{"type": "leave_consultation"})

	got := readFrame(t, consultantConn)
	if got.Type != "participant_left" {
		t.Fatalf("frame type = %q, want %q", got.Type, "participant_left")
	}
	if got.Role != "user" {
		t.Fatalf("left role = %q, want user", got.Role)
	}
}

func TestDisconnectNotifiesOtherParty(t *testing.T) {
	srv := startTestServer(t, newTestServer())
	userConn := dialWS(t, srv)
	consultantConn := dialWS(t, srv)

	authenticate(t, userConn, "tok-user")
	authenticate(t, consultantConn, "tok-consultant")
	joinConsultation(t, userConn, 10)
	joinConsultation(t, consultantConn, 10)
	_ = readFrame(t, userConn) // participant_joined

	_ = userConn.Close()

	got := readFrame(t, consultantConn)
	if got.Type != "participant_left" {
		t.Fatalf("frame type = %q, want %q", got.Type, "participant_left")
	}
}

func TestPingPong(t *testing.T) {
	srv := startTestServer(t, newTestServer())
	conn := dialWS(t, srv)
	authenticate(t, conn, "tok-user")

	writeFrame(t, conn, map[string]any{"type": "ping"})
	got := readFrame(t, conn)
	if got.Type != "pong" {
		t.Fatalf("frame type = %q, want pong", got.Type)
	}
}

func TestUnknownFrameTypeIsDropped(t *testing.T) {
	srv := startTestServer(t, newTestServer())
	conn := dialWS(t, srv)
	authenticate(t, conn, "tok-user")

	writeFrame(t, conn, map[string]any{"type": "telemetry", "content": "ignored"})
	writeFrame(t, conn, map[string]any{"type": "ping"})

	got := readFrame(t, conn)
	if got.Type != "pong" {
		t.Fatalf("frame type = %q, want pong (unknown type should produce nothing)", got.Type)
	}
}
