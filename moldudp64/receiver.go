package moldudp64

import (
	"context"
	"fmt"
	"net"
	"syscall"
	"time"

	"golang.org/x/sys/unix"

	"github.com/marketlink/marketlink/metrics"
	"github.com/marketlink/marketlink/wire"
)

// EventKind distinguishes the two notifications a Receiver delivers.
type EventKind int

const (
	// EventData carries one in-order message with its sequence number.
	EventData EventKind = iota
	// EventEndOfSession is the synthetic notification delivered when an
	// end-of-session packet arrives; Payload and Sequence are unset.
	EventEndOfSession
)

// Event is one notification delivered to a Receiver's Handler.
type Event struct {
	Kind     EventKind
	Sequence uint64
	Payload  []byte
}

// Handler receives Events from a Receiver's read loop, invoked
// synchronously so that per-sequence delivery order is preserved.
type Handler func(Event)

// ReceiverConfig configures a MoldUDP64 receiver.
type ReceiverConfig struct {
	SessionID          string // empty means learn from the first datagram
	SequenceNumber     uint64 // starting next_expected
	MulticastAddress   string // group address, e.g. "239.1.1.1:12345"
	MulticastInterface string // interface name; empty picks the default route
	RequestAddrs       []string
	AutoRerequest      bool
	ServerTimeout      time.Duration
	BufferSize         int // default 4096
}

// Receiver joins a MoldUDP64 multicast group, delivers in-order messages to
// a Handler, and reorders or requests retransmission of gapped data.
type Receiver struct {
	cfg  ReceiverConfig
	conn *net.UDPConn

	haveSession  bool
	sessionID    wire.SessionID
	nextExpected uint64
	buffered     map[uint64][][]byte

	reqAddrs []*net.UDPAddr

	close closeSlot
	done  chan struct{}
}

// NewReceiver joins the configured multicast group with address reuse
// enabled and returns a Receiver ready for Run.
func NewReceiver(cfg ReceiverConfig) (*Receiver, error) {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 4096
	}

	r := &Receiver{
		cfg:          cfg,
		nextExpected: cfg.SequenceNumber,
		buffered:     make(map[uint64][][]byte),
		done:         make(chan struct{}),
	}

	if cfg.SessionID != "" {
		sessID, err := wire.NewSessionID(cfg.SessionID)
		if err != nil {
			return nil, err
		}
		r.sessionID = sessID
		r.haveSession = true
	}

	for _, a := range cfg.RequestAddrs {
		addr, err := net.ResolveUDPAddr("udp", a)
		if err != nil {
			return nil, err
		}
		r.reqAddrs = append(r.reqAddrs, addr)
	}

	conn, err := joinMulticast(cfg.MulticastAddress, cfg.MulticastInterface)
	if err != nil {
		return nil, err
	}
	r.conn = conn

	return r, nil
}

// joinMulticast binds a UDP4 socket with SO_REUSEADDR set (so multiple
// receivers can share the same multicast port) and joins the group via
// IP_ADD_MEMBERSHIP, optionally on a named interface.
func joinMulticast(groupAddr, ifaceName string) (*net.UDPConn, error) {
	gaddr, err := net.ResolveUDPAddr("udp4", groupAddr)
	if err != nil {
		return nil, err
	}

	lc := net.ListenConfig{
		Control: func(network, address string, c syscall.RawConn) error {
			var sockErr error
			ctrlErr := c.Control(func(fd uintptr) {
				sockErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1)
			})
			if ctrlErr != nil {
				return ctrlErr
			}
			return sockErr
		},
	}

	pc, err := lc.ListenPacket(context.Background(), "udp4", fmt.Sprintf("0.0.0.0:%d", gaddr.Port))
	if err != nil {
		return nil, err
	}
	conn := pc.(*net.UDPConn)

	var ifIP net.IP
	if ifaceName != "" {
		iface, err := net.InterfaceByName(ifaceName)
		if err != nil {
			conn.Close()
			return nil, err
		}
		addrs, err := iface.Addrs()
		if err != nil || len(addrs) == 0 {
			conn.Close()
			return nil, fmt.Errorf("moldudp64: interface %s has no usable address", ifaceName)
		}
		if ipNet, ok := addrs[0].(*net.IPNet); ok {
			ifIP = ipNet.IP
		}
	}

	mreq := &unix.IPMreq{}
	copy(mreq.Multiaddr[:], gaddr.IP.To4())
	if ifIP != nil {
		copy(mreq.Interface[:], ifIP.To4())
	}

	rawConn, err := conn.SyscallConn()
	if err != nil {
		conn.Close()
		return nil, err
	}
	var sockErr error
	ctrlErr := rawConn.Control(func(fd uintptr) {
		sockErr = unix.SetsockoptIPMreq(int(fd), unix.IPPROTO_IP, unix.IP_ADD_MEMBERSHIP, mreq)
	})
	if ctrlErr != nil {
		conn.Close()
		return nil, ctrlErr
	}
	if sockErr != nil {
		conn.Close()
		return nil, sockErr
	}

	return conn, nil
}

// SessionID returns the session id, learned from the first datagram if the
// receiver was not configured with one.
func (r *Receiver) SessionID() wire.SessionID {
	return r.sessionID
}

// NextExpected returns the next sequence number the receiver expects. It is
// a best-effort snapshot read from outside the Run goroutine, intended for
// status display rather than protocol logic.
func (r *Receiver) NextExpected() uint64 {
	return r.nextExpected
}

// BufferedGaps returns the number of out-of-order packets currently held
// pending a gap fill. Same best-effort caveat as NextExpected.
func (r *Receiver) BufferedGaps() int {
	return len(r.buffered)
}

// Err returns the close error if the receiver has closed, or nil.
func (r *Receiver) Err() error {
	if ce := r.close.get(); ce != nil {
		return ce
	}
	return nil
}

// Run reads datagrams until ctx is canceled or a terminal condition closes
// the receiver, delivering Events to handler from this goroutine.
func (r *Receiver) Run(ctx context.Context, handler Handler) error {
	go func() {
		<-ctx.Done()
		r.Close()
	}()

	buf := make([]byte, r.cfg.BufferSize)
	for {
		if r.cfg.ServerTimeout > 0 {
			if err := r.conn.SetReadDeadline(time.Now().Add(r.cfg.ServerTimeout)); err != nil {
				r.closeWithReason(&CloseError{Kind: KindIO, Err: err})
				return r.close.get()
			}
		}

		n, _, err := r.conn.ReadFromUDP(buf)
		if err != nil {
			if r.close.closed() {
				return r.close.get()
			}
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				r.closeWithReason(&CloseError{Kind: KindServerTimedOut})
			} else {
				r.closeWithReason(&CloseError{Kind: KindIO, Err: err})
			}
			return r.close.get()
		}

		mp, err := wire.DecodeMoldPacket(buf[:n])
		if err != nil {
			// Malformed datagram on an unreliable transport: discard and
			// keep listening rather than tearing down the receiver.
			continue
		}

		if !r.haveSession {
			r.sessionID = mp.Session
			r.haveSession = true
		} else if mp.Session != r.sessionID {
			r.closeWithReason(&CloseError{
				Kind: KindProtocol,
				Err:  &wire.Error{Kind: wire.KindUnexpectedSession, Msg: "mold packet session mismatch"},
			})
			return r.close.get()
		}

		switch {
		case mp.IsHeartbeat():
			metrics.MoldHeartbeatsReceived.Inc()
			r.nextExpected = mp.Sequence
		case mp.IsEndOfSession():
			if handler != nil {
				handler(Event{Kind: EventEndOfSession})
			}
			r.closeWithReason(&CloseError{Kind: KindSessionEnded})
			return r.close.get()
		default:
			r.handleData(mp.Sequence, mp.Messages, handler)
		}
	}
}

func (r *Receiver) handleData(first uint64, messages [][]byte, handler Handler) {
	count := uint64(len(messages))
	last := first + count - 1

	switch {
	case first == r.nextExpected:
		r.deliver(messages, first, handler)
		r.nextExpected = last + 1
		r.drainBuffered(handler)

	case first > r.nextExpected:
		metrics.MoldGapsDetected.Inc()
		r.buffered[first] = messages
		if r.cfg.AutoRerequest {
			r.sendRequest(r.nextExpected, first-r.nextExpected)
		}

	case last < r.nextExpected:
		// duplicate or late; discard.

	default:
		// first < nextExpected <= last: overlap.
		offset := r.nextExpected - first
		r.deliver(messages[offset:], r.nextExpected, handler)
		r.nextExpected = last + 1
		r.drainBuffered(handler)
	}
}

func (r *Receiver) drainBuffered(handler Handler) {
	for {
		msgs, ok := r.buffered[r.nextExpected]
		if !ok {
			return
		}
		delete(r.buffered, r.nextExpected)
		metrics.MoldGapsFilled.Inc()
		last := r.nextExpected + uint64(len(msgs)) - 1
		r.deliver(msgs, r.nextExpected, handler)
		r.nextExpected = last + 1
	}
}

func (r *Receiver) deliver(messages [][]byte, startSeq uint64, handler Handler) {
	if handler == nil {
		return
	}
	for i, m := range messages {
		handler(Event{Kind: EventData, Sequence: startSeq + uint64(i), Payload: m})
	}
}

// sendRequest asks for count messages starting at seq, trying each
// configured request address in turn until one accepts the write.
func (r *Receiver) sendRequest(seq uint64, count uint64) {
	if count > 0xFFFE {
		count = 0xFFFE
	}
	req := wire.RequestPacket{Session: r.sessionID, Sequence: seq, RequestedCount: uint16(count)}
	frame := req.Encode()

	for _, addr := range r.reqAddrs {
		conn, err := net.DialUDP("udp", nil, addr)
		if err != nil {
			continue
		}
		_, err = conn.Write(frame)
		conn.Close()
		if err == nil {
			metrics.MoldRerequestsSent.Inc()
			return
		}
	}
}

func (r *Receiver) closeWithReason(ce *CloseError) {
	if r.close.set(ce) {
		r.conn.SetReadDeadline(time.Now().Add(-time.Second))
		close(r.done)
	}
}

// Close leaves the multicast group and unblocks the read loop.
func (r *Receiver) Close() error {
	r.closeWithReason(&CloseError{Kind: KindSessionEnded})
	return r.conn.Close()
}
