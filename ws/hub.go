package ws

import (
	"encoding/json"
	"io"
	"sync"
)

type peer struct {
	mu      sync.Mutex
	encoder *json.Encoder
	closer  io.Closer
}

func newPeer(encoder *json.Encoder, closer io.Closer) *peer {
	return &peer{encoder: encoder, closer: closer}
}

func (p *peer) send(v interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.encoder.Encode(v)
}

func (p *peer) close() {
	if p.closer != nil {
		_ = p.closer.Close()
	}
}

// room holds the two live connections of one consultation, one slot per
// party role. A rejoin on the same role replaces the previous connection.
type room struct {
	mu             sync.Mutex
	consultationID uint
	slots          map[string]*peer
}

func newRoom(consultationID uint) *room {
	return &room{
		consultationID: consultationID,
		slots:          make(map[string]*peer),
	}
}

// join seats p in the role's slot and returns the displaced peer (nil when
// the slot was free) plus the other party's peer if connected.
func (r *room) join(role string, p *peer) (replaced, other *peer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	replaced = r.slots[role]
	r.slots[role] = p
	other = r.otherLocked(role)
	return replaced, other
}

// leave vacates the role's slot if p still owns it. Stale leaves from a
// replaced connection are ignored.
func (r *room) leave(role string, p *peer) (other *peer, empty bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.slots[role] != p {
		return nil, false
	}
	delete(r.slots, role)
	return r.otherLocked(role), len(r.slots) == 0
}

func (r *room) other(role string) *peer {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.otherLocked(role)
}

func (r *room) otherLocked(role string) *peer {
	for slot, p := range r.slots {
		if slot != role {
			return p
		}
	}
	return nil
}

func (r *room) peers() []*peer {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*peer, 0, len(r.slots))
	for _, p := range r.slots {
		out = append(out, p)
	}
	return out
}

// Hub is the registry of live rooms keyed by consultation id.
type Hub struct {
	mu    sync.Mutex
	rooms map[uint]*room
}

func NewHub() *Hub {
	return &Hub{rooms: make(map[uint]*room)}
}

func (h *Hub) room(consultationID uint) *room {
	h.mu.Lock()
	defer h.mu.Unlock()
	r, ok := h.rooms[consultationID]
	if ok {
		return r
	}
	r = newRoom(consultationID)
	h.rooms[consultationID] = r
	return r
}

// drop removes a room once both slots are empty.
func (h *Hub) drop(consultationID uint) {
	h.mu.Lock()
	defer h.mu.Unlock()
	r, ok := h.rooms[consultationID]
	if !ok {
		return
	}
	r.mu.Lock()
	empty := len(r.slots) == 0
	r.mu.Unlock()
	if empty {
		delete(h.rooms, consultationID)
	}
}
