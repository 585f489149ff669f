package gateway

import (
	"time"

	"github.com/alireza-hadizadeh/socket-app/internal/types"
)

// Entry is the live state of one connection. Identity fields are
// captured at handshake and merged in place by identify events.
type Entry struct {
	SocketId      string
	Authenticated bool
	UserId        int
	Username      string
	Role          types.Role
	ApiKey        string
	Platform      string
	AppVersion    string
	// ClientUserId is the identifier supplied by an identify event; it
	// is free text and may not match any account.
	ClientUserId string
	ConnectedAt  time.Time
}

// Registry is the authoritative in-memory table of live connections.
// It is owned by the Gateway run loop: created at server start, cleared
// at shutdown, and only ever mutated from that single goroutine, so it
// needs no locking.
type Registry struct {
	entries map[string]*Entry
}

func NewRegistry() *Registry {
	return &Registry{
		entries: make(map[string]*Entry),
	}
}

func (r *Registry) Add(e *Entry) {
	r.entries[e.SocketId] = e
}

func (r *Registry) Get(socketId string) (*Entry, bool) {
	e, ok := r.entries[socketId]
	return e, ok
}

func (r *Registry) Remove(socketId string) (*Entry, bool) {
	e, ok := r.entries[socketId]
	if ok {
		delete(r.entries, socketId)
	}
	return e, ok
}

func (r *Registry) Len() int {
	return len(r.entries)
}

func (r *Registry) Clear() {
	r.entries = make(map[string]*Entry)
}
