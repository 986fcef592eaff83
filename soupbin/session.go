package soupbin

import (
	"sync"

	"github.com/marketlink/marketlink/wire"
)

// Session is a single SoupBinTCP session: a session id, a monotonically
// increasing next-sequence counter, the set of client connections currently
// subscribed to it, and a DataStore handle used to replay history to newly
// joined clients.
type Session struct {
	id    wire.SessionID
	store DataStore

	mu      sync.Mutex
	nextSeq uint64
	clients map[*serverConn]struct{}
	ended   bool
}

// NewSession creates a fresh, unended session bound to store. Its first
// published message is sequence number 1.
func NewSession(id wire.SessionID, store DataStore) *Session {
	return &Session{
		id:      id,
		store:   store,
		nextSeq: 1,
		clients: make(map[*serverConn]struct{}),
	}
}

// ID returns the session's identifier.
func (s *Session) ID() wire.SessionID {
	return s.id
}

// CurrentSequence returns the sequence number of the next message this
// session will send.
func (s *Session) CurrentSequence() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nextSeq
}

// Ended reports whether End has been called on this session.
func (s *Session) Ended() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ended
}

// ClientCount returns the number of connections currently subscribed to
// this session.
func (s *Session) ClientCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

func (s *Session) addClient(c *serverConn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clients[c] = struct{}{}
}

func (s *Session) removeClient(c *serverConn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.clients, c)
}

// Publish assigns the next sequence number to payload, records it in the
// DataStore, and forwards it as SequencedData to every connected client. It
// returns the sequence number assigned.
func (s *Session) Publish(payload []byte) (uint64, error) {
	s.mu.Lock()
	if s.ended {
		s.mu.Unlock()
		return 0, newLocalErr(KindSessionEnded, "session already ended")
	}
	seq := s.nextSeq
	s.nextSeq++
	clients := make([]*serverConn, 0, len(s.clients))
	for c := range s.clients {
		clients = append(clients, c)
	}
	s.mu.Unlock()

	if s.store != nil {
		if err := s.store.Put(seq, payload); err != nil {
			return seq, err
		}
	}

	pkt, err := wire.NewSequencedData(payload)
	if err != nil {
		return seq, err
	}
	for _, c := range clients {
		c.send(pkt)
	}
	return seq, nil
}

// End marks the session over, broadcasts EndOfSession to every connected
// client, and drops the client set. A session never resumes after End.
func (s *Session) End() {
	s.mu.Lock()
	if s.ended {
		s.mu.Unlock()
		return
	}
	s.ended = true
	clients := make([]*serverConn, 0, len(s.clients))
	for c := range s.clients {
		clients = append(clients, c)
	}
	s.clients = make(map[*serverConn]struct{})
	s.mu.Unlock()

	for _, c := range clients {
		c.send(wire.NewEndOfSession())
		c.closeWithReason(&CloseError{Kind: KindSessionEnded})
	}
}

func newLocalErr(kind Kind, msg string) *CloseError {
	return &CloseError{Kind: kind, Err: errString(msg)}
}

type errString string

func (e errString) Error() string { return string(e) }
