package soupbin

import (
	"context"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/marketlink/marketlink/wire"
)

// ClientHandler receives every decoded incoming packet except
// ServerHeartbeat (liveness only) and EndOfSession (delivered as a close).
type ClientHandler func(wire.Packet)

// ClientConfig configures a SoupBinTCP client connection.
type ClientConfig struct {
	Username        string
	Password        string
	SessionID       string // empty means blank/current
	SequenceNumber  uint64
	ServerTimeout   time.Duration // default 15s if zero
	ConnectDeadline time.Duration // zero means no deadline
}

// Client is a connected SoupBinTCP session. The read half and write half
// are independently mutex-guarded; a background timekeeper fires client
// heartbeats and enforces the server timeout, grounded on the teacher's
// atomic-timestamp + ticker pattern in go-sol's Session.
type Client struct {
	conn net.Conn

	writeMu      sync.Mutex
	readMu       sync.Mutex
	lastSendNano atomic.Int64
	lastRecvNano atomic.Int64

	serverTimeout time.Duration
	close         closeSlot
	done          chan struct{}

	sessionID wire.SessionID
	startSeq  wire.SequenceNumber
}

// Connect dials addr, performs the SoupBinTCP login handshake, and starts
// the background heartbeat/timeout timekeeper. handler, if non-nil, is
// invoked synchronously from the read loop for every delivered packet.
func Connect(ctx context.Context, addr string, cfg ClientConfig, handler ClientHandler) (*Client, error) {
	dialer := net.Dialer{}
	if cfg.ConnectDeadline > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.ConnectDeadline)
		defer cancel()
	}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, &CloseError{Kind: KindIO, Err: err}
	}

	username, err := wire.NewUsername(cfg.Username)
	if err != nil {
		conn.Close()
		return nil, &CloseError{Kind: KindProtocol, Err: err}
	}
	password, err := wire.NewPassword(cfg.Password)
	if err != nil {
		conn.Close()
		return nil, &CloseError{Kind: KindProtocol, Err: err}
	}
	sessID, err := wire.NewSessionID(cfg.SessionID)
	if err != nil {
		conn.Close()
		return nil, &CloseError{Kind: KindProtocol, Err: err}
	}
	seq := wire.SequenceNumberFromU64(cfg.SequenceNumber)

	login := wire.NewLoginRequest(username, password, sessID, seq)
	frame, err := wire.Encode(login)
	if err != nil {
		conn.Close()
		return nil, &CloseError{Kind: KindProtocol, Err: err}
	}
	if _, err := conn.Write(frame); err != nil {
		conn.Close()
		return nil, &CloseError{Kind: KindIO, Err: err}
	}

	resp, err := wire.Decode(conn)
	if err != nil {
		conn.Close()
		return nil, &CloseError{Kind: KindProtocol, Err: err}
	}

	switch resp.Type {
	case wire.PacketLoginAccepted:
		gotSess, err := resp.SessionID()
		if err != nil {
			conn.Close()
			return nil, &CloseError{Kind: KindProtocol, Err: err}
		}
		gotSeq, err := resp.SequenceNumber()
		if err != nil {
			conn.Close()
			return nil, &CloseError{Kind: KindProtocol, Err: err}
		}

		timeout := cfg.ServerTimeout
		if timeout <= 0 {
			timeout = 15 * time.Second
		}

		c := &Client{
			conn:          conn,
			serverTimeout: timeout,
			done:          make(chan struct{}),
			sessionID:     gotSess,
			startSeq:      gotSeq,
		}
		now := time.Now().UnixNano()
		c.lastSendNano.Store(now)
		c.lastRecvNano.Store(now)

		go c.timekeeper()
		go c.readLoop(handler)
		return c, nil

	case wire.PacketLoginReject:
		reason, err := resp.RejectReason()
		conn.Close()
		if err != nil {
			return nil, &CloseError{Kind: KindProtocol, Err: err}
		}
		return nil, &CloseError{Kind: KindLoginRejected, Reason: reason}

	default:
		conn.Close()
		return nil, &CloseError{Kind: KindProtocol, Err: newUnexpectedPacketErr(resp.Type)}
	}
}

// SessionID returns the session id confirmed at login.
func (c *Client) SessionID() wire.SessionID {
	return c.sessionID
}

// StartSequence returns the starting sequence number confirmed at login.
func (c *Client) StartSequence() wire.SequenceNumber {
	return c.startSeq
}

// Err returns the close error if the client has closed, or nil if it is
// still open.
func (c *Client) Err() error {
	if ce := c.close.get(); ce != nil {
		return ce
	}
	return nil
}

// SendUnsequenced frames payload as UnsequencedData and writes it.
func (c *Client) SendUnsequenced(payload []byte) error {
	pkt, err := wire.NewUnsequencedData(payload)
	if err != nil {
		return err
	}
	return c.write(pkt)
}

// Logout writes a LogoutRequest, then shuts down the connection and
// transitions to the closed state with KindLoggedOut.
func (c *Client) Logout() error {
	err := c.write(wire.NewLogoutRequest())
	c.closeWithReason(&CloseError{Kind: KindLoggedOut})
	return err
}

func (c *Client) write(p wire.Packet) error {
	if ce := c.close.get(); ce != nil {
		return ce
	}
	frame, err := wire.Encode(p)
	if err != nil {
		return err
	}
	c.writeMu.Lock()
	_, err = c.conn.Write(frame)
	c.writeMu.Unlock()
	if err != nil {
		ce := &CloseError{Kind: KindIO, Err: err}
		c.closeWithReason(ce)
		return ce
	}
	c.lastSendNano.Store(time.Now().UnixNano())
	return nil
}

func (c *Client) closeWithReason(ce *CloseError) {
	if c.close.set(ce) {
		c.conn.Close()
		close(c.done)
	}
}

// timekeeper fires a ClientHeartbeat after 1s of send-side silence and
// enforces the server timeout, checking at sub-second granularity per §5.
func (c *Client) timekeeper() {
	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			now := time.Now()
			if now.Sub(time.Unix(0, c.lastRecvNano.Load())) > c.serverTimeout {
				c.closeWithReason(&CloseError{Kind: KindServerTimedOut})
				return
			}
			if now.Sub(time.Unix(0, c.lastSendNano.Load())) >= time.Second {
				c.write(wire.NewClientHeartbeat())
			}
		}
	}
}

func (c *Client) readLoop(handler ClientHandler) {
	c.readMu.Lock()
	defer c.readMu.Unlock()
	for {
		pkt, err := wire.Decode(c.conn)
		if err != nil {
			c.closeWithReason(&CloseError{Kind: KindIO, Err: err})
			return
		}
		c.lastRecvNano.Store(time.Now().UnixNano())

		switch pkt.Type {
		case wire.PacketServerHeartbeat:
			// liveness only.
		case wire.PacketEndOfSession:
			c.closeWithReason(&CloseError{Kind: KindSessionEnded})
			return
		default:
			if handler != nil {
				handler(pkt)
			}
		}
	}
}
