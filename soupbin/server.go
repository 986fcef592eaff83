package soupbin

import (
	"context"
	"net"
	"strings"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/marketlink/marketlink/metrics"
	"github.com/marketlink/marketlink/wire"
)

// ServerConfig configures the SoupBinTCP login server.
type ServerConfig struct {
	Username    string
	Password    string
	BindAddress string
}

// Server accepts SoupBinTCP connections, resolves each login against a
// SessionsManager, and replays/forwards sequenced data. Grounded on the
// teacher's accept-then-spawn-goroutine pattern in sol.Manager.StartSession.
type Server struct {
	cfg      ServerConfig
	sessions *SessionsManager
}

// NewServer returns a Server bound to the given sessions manager. It does
// not start listening until ListenAndServe is called.
func NewServer(cfg ServerConfig, sessions *SessionsManager) *Server {
	return &Server{cfg: cfg, sessions: sessions}
}

// ListenAndServe accepts connections until ctx is canceled or the listener
// errors. It blocks; call it from its own goroutine.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.BindAddress)
	if err != nil {
		return err
	}
	defer ln.Close()

	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	log.Infof("soupbin: listening on %s", s.cfg.BindAddress)
	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
				return err
			}
		}
		go s.handleConn(ctx, conn)
	}
}

// serverConn is one accepted, logged-in client connection.
type serverConn struct {
	conn    net.Conn
	writeMu sync.Mutex
	close   closeSlot
	done    chan struct{}
}

func (c *serverConn) send(p wire.Packet) {
	frame, err := wire.Encode(p)
	if err != nil {
		c.closeWithReason(&CloseError{Kind: KindIO, Err: err})
		return
	}
	c.writeMu.Lock()
	_, err = c.conn.Write(frame)
	c.writeMu.Unlock()
	if err != nil {
		c.closeWithReason(&CloseError{Kind: KindIO, Err: err})
	}
}

func (c *serverConn) closeWithReason(ce *CloseError) {
	if c.close.set(ce) {
		c.conn.Close()
		close(c.done)
	}
}

func (s *Server) handleConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()
	metrics.SoupBinConnects.Inc()

	pkt, err := wire.Decode(conn)
	if err != nil {
		log.Debugf("soupbin: server: frame decode failed during login: %v", err)
		return
	}
	if pkt.Type != wire.PacketLoginRequest {
		log.Debugf("soupbin: server: expected LoginRequest, got %s", pkt.Type)
		return
	}

	username, password, sessID, reqSeqField, err := pkt.LoginRequestFields()
	if err != nil {
		log.Debugf("soupbin: server: malformed LoginRequest: %v", err)
		return
	}

	if !credentialsMatch(username.String(), password.String(), s.cfg.Username, s.cfg.Password) {
		writeReject(conn, wire.RejectNotAuthorized)
		return
	}

	sess, ok := s.sessions.Get(sessID)
	if !ok {
		writeReject(conn, wire.RejectSessionNotAvail)
		return
	}

	req := reqSeqField.ToU64()
	curr := sess.CurrentSequence()

	var startSeq uint64
	switch {
	case req == 0:
		startSeq = curr
	case req <= curr:
		startSeq = req
	default:
		// req > curr: rejected rather than silently treated as a fresh
		// tail-subscribe, so a client with a stale view of the sequence
		// space finds out immediately instead of silently skipping data.
		writeReject(conn, wire.RejectSessionNotAvail)
		return
	}

	accepted := wire.NewLoginAccepted(sess.ID(), wire.SequenceNumberFromU64(startSeq))
	frame, err := wire.Encode(accepted)
	if err != nil {
		log.Errorf("soupbin: server: encoding LoginAccepted: %v", err)
		return
	}
	if _, err := conn.Write(frame); err != nil {
		return
	}

	c := &serverConn{conn: conn, done: make(chan struct{})}
	sess.addClient(c)
	defer sess.removeClient(c)

	if req != 0 && req < curr {
		replaySequenced(sess, c, req, curr)
	}
	if c.close.closed() {
		return
	}

	connCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go s.heartbeatLoop(connCtx, c)

	s.readLoop(c)
}

func replaySequenced(sess *Session, c *serverConn, from, to uint64) {
	for seq := from; seq < to; seq++ {
		payload, ok := sess.store.Get(seq)
		if !ok {
			continue
		}
		pkt, err := wire.NewSequencedData(payload)
		if err != nil {
			continue
		}
		c.send(pkt)
		if c.close.closed() {
			return
		}
	}
}

// heartbeatLoop emits a ServerHeartbeat on every one-second tick, whether or
// not other frames were sent on this connection during that second. It
// piggybacks on send's writeMu so a heartbeat never interleaves with a data
// frame.
func (s *Server) heartbeatLoop(ctx context.Context, c *serverConn) {
	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-c.done:
			return
		case <-ticker.C:
			c.send(wire.NewServerHeartbeat())
			metrics.SoupBinHeartbeatsSent.Inc()
		}
	}
}

// readLoop drains client-originated frames (ClientHeartbeat, LogoutRequest)
// until the connection closes.
func (s *Server) readLoop(c *serverConn) {
	for {
		pkt, err := wire.Decode(c.conn)
		if err != nil {
			c.closeWithReason(&CloseError{Kind: KindIO, Err: err})
			return
		}
		switch pkt.Type {
		case wire.PacketClientHeartbeat:
			// liveness only; nothing to deliver.
		case wire.PacketLogoutRequest:
			metrics.SoupBinLogouts.Inc()
			c.closeWithReason(&CloseError{Kind: KindLoggedOut})
			return
		default:
			c.closeWithReason(&CloseError{
				Kind: KindProtocol,
				Err:  newUnexpectedPacketErr(pkt.Type),
			})
			return
		}
	}
}

func writeReject(conn net.Conn, reason wire.RejectReason) {
	metrics.SoupBinLoginRejects.WithLabelValues(reason.String()).Inc()
	frame, err := wire.Encode(wire.NewLoginReject(reason))
	if err != nil {
		return
	}
	_, _ = conn.Write(frame)
}

// credentialsMatch compares case-insensitively, ASCII upper-fold, per §4.3.
func credentialsMatch(gotUser, gotPass, wantUser, wantPass string) bool {
	return strings.EqualFold(gotUser, wantUser) && strings.EqualFold(gotPass, wantPass)
}

func newUnexpectedPacketErr(t wire.PacketType) error {
	return &wire.Error{Kind: wire.KindUnexpectedPacketType, Msg: t.String()}
}
