package moldudp64

import (
	"net"
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/marketlink/marketlink/wire"
)

// DatagramBudget bounds the encoded size of a single outbound packet
// (MoldUDP64 header plus message blocks), conservative enough to stay under
// a typical network path MTU after the UDP/IP headers.
const DatagramBudget = 1200

// TransmitterConfig configures a MoldUDP64 transmitter.
type TransmitterConfig struct {
	SessionID      string
	SequenceNumber uint64 // starting next-sequence counter
	MulticastAddr  string // downstream multicast address, host:port
	RequestBind    string // local address to listen for RequestPackets; empty disables retransmit service
}

// Transmitter emits MoldUDP64 packets to a multicast address and, if
// configured with a request-listener address, answers unicast
// RequestPacket retransmit requests from a DataStore.
type Transmitter struct {
	sessionID wire.SessionID

	mu      sync.Mutex
	nextSeq uint64

	conn    *net.UDPConn
	reqConn *net.UDPConn
	store   DataStore
}

// NewTransmitter dials the multicast address and, if RequestBind is set,
// starts listening for retransmit requests in the background.
func NewTransmitter(cfg TransmitterConfig, store DataStore) (*Transmitter, error) {
	sessID, err := wire.NewSessionID(cfg.SessionID)
	if err != nil {
		return nil, err
	}

	raddr, err := net.ResolveUDPAddr("udp", cfg.MulticastAddr)
	if err != nil {
		return nil, err
	}
	conn, err := net.DialUDP("udp", nil, raddr)
	if err != nil {
		return nil, err
	}

	t := &Transmitter{
		sessionID: sessID,
		nextSeq:   cfg.SequenceNumber,
		conn:      conn,
		store:     store,
	}

	if cfg.RequestBind != "" {
		laddr, err := net.ResolveUDPAddr("udp", cfg.RequestBind)
		if err != nil {
			conn.Close()
			return nil, err
		}
		reqConn, err := net.ListenUDP("udp", laddr)
		if err != nil {
			conn.Close()
			return nil, err
		}
		t.reqConn = reqConn
		go t.serveRequests()
	}

	return t, nil
}

// NextSequence returns the sequence number of the next message to be sent.
func (t *Transmitter) NextSequence() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.nextSeq
}

// Send emits a single pre-built downstream packet as-is.
func (t *Transmitter) Send(frame []byte) error {
	_, err := t.conn.Write(frame)
	return err
}

// SendMessages atomically bumps the sequence counter by len(blocks) and
// frames one or more packets; the first packet's sequence number equals
// the pre-bump counter. Blocks are grouped into packets as splitIntoGroups
// describes.
func (t *Transmitter) SendMessages(blocks [][]byte) error {
	if len(blocks) == 0 {
		return nil
	}

	t.mu.Lock()
	start := t.nextSeq
	t.nextSeq += uint64(len(blocks))
	t.mu.Unlock()

	if t.store != nil {
		for i, b := range blocks {
			if err := t.store.Put(start+uint64(i), b); err != nil {
				return err
			}
		}
	}

	groups := splitIntoGroups(blocks)
	seq := start
	for _, g := range groups {
		frame, err := wire.EncodeMoldData(t.sessionID, seq, g)
		if err != nil {
			return err
		}
		if err := t.Send(frame); err != nil {
			return err
		}
		seq += uint64(len(g))
	}
	return nil
}

// splitIntoGroups partitions blocks into runs whose encoded size stays
// within DatagramBudget, preserving order. A block too large to fit the
// budget on its own is placed alone in its own group, which then exceeds
// the budget; blocks are never split.
func splitIntoGroups(blocks [][]byte) [][][]byte {
	var groups [][][]byte
	var cur [][]byte
	size := wire.MoldHeaderLen

	for _, b := range blocks {
		add := 2 + len(b)
		if len(cur) > 0 && size+add > DatagramBudget {
			groups = append(groups, cur)
			cur = nil
			size = wire.MoldHeaderLen
		}
		cur = append(cur, b)
		size += add
	}
	if len(cur) > 0 {
		groups = append(groups, cur)
	}
	return groups
}

// SendHeartbeat emits a heartbeat packet bearing the current next-sequence
// number.
func (t *Transmitter) SendHeartbeat() error {
	return t.Send(wire.EncodeMoldHeartbeat(t.sessionID, t.NextSequence()))
}

// SendEndOfSession emits an end-of-session packet.
func (t *Transmitter) SendEndOfSession() error {
	return t.Send(wire.EncodeMoldEndOfSession(t.sessionID, t.NextSequence()))
}

// Close releases the transmitter's sockets.
func (t *Transmitter) Close() error {
	if t.reqConn != nil {
		t.reqConn.Close()
	}
	return t.conn.Close()
}

func (t *Transmitter) serveRequests() {
	buf := make([]byte, wire.RequestPacketLen)
	for {
		n, addr, err := t.reqConn.ReadFromUDP(buf)
		if err != nil {
			return
		}
		req, err := wire.DecodeRequestPacket(buf[:n])
		if err != nil {
			log.Debugf("moldudp64: transmitter: bad request packet from %s: %v", addr, err)
			continue
		}
		if req.Session != t.sessionID {
			continue
		}
		if req.RequestedCount == 0 {
			continue
		}
		t.replay(req, addr)
	}
}

func (t *Transmitter) replay(req wire.RequestPacket, addr *net.UDPAddr) {
	blocks := make([][]byte, 0, req.RequestedCount)
	for i := uint16(0); i < req.RequestedCount; i++ {
		payload, ok := t.store.Get(req.Sequence + uint64(i))
		if !ok {
			break
		}
		blocks = append(blocks, payload)
	}
	if len(blocks) == 0 {
		return
	}

	seq := req.Sequence
	for _, g := range splitIntoGroups(blocks) {
		frame, err := wire.EncodeMoldData(t.sessionID, seq, g)
		if err != nil {
			return
		}
		if _, err := t.reqConn.WriteToUDP(frame, addr); err != nil {
			log.Debugf("moldudp64: transmitter: replay to %s failed: %v", addr, err)
			return
		}
		seq += uint64(len(g))
	}
}
