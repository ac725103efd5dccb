// Package ws keeps live WebSocket sessions and binds them to event topics.
package ws

import (
	"sync"

	"github.com/gorilla/websocket"

	"github.com/rufatasadov/sober-driver-backend/internal/domain"
	"github.com/rufatasadov/sober-driver-backend/internal/events"
)

// Session is one connected client. It is an events.Subscriber.
type Session struct {
	id    string
	actor domain.Actor
	conn  *websocket.Conn

	send      chan events.Envelope
	done      chan struct{}
	closeOnce sync.Once
}

func newSession(id string, actor domain.Actor, conn *websocket.Conn, buffer int) *Session {
	if buffer <= 0 {
		buffer = 1
	}
	return &Session{
		id:    id,
		actor: actor,
		conn:  conn,
		send:  make(chan events.Envelope, buffer),
		done:  make(chan struct{}),
	}
}

// ID returns the session id.
func (s *Session) ID() string { return s.id }

// UserID returns the account that owns the session.
func (s *Session) UserID() string { return s.actor.UserID }

// Actor returns the authenticated identity of the session.
func (s *Session) Actor() domain.Actor { return s.actor }

// Deliver queues env for the write pump. A full queue or closed session drops it.
func (s *Session) Deliver(env events.Envelope) bool {
	select {
	case <-s.done:
		return false
	default:
	}
	select {
	case s.send <- env:
		return true
	default:
		return false
	}
}

func (s *Session) close() {
	s.closeOnce.Do(func() { close(s.done) })
}
