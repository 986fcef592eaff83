package moldudp64

import (
	"bytes"
	"net"
	"testing"

	"github.com/marketlink/marketlink/wire"
)

// mustUDPListener opens a UDP socket on an OS-assigned loopback port and
// returns it along with its dial-able address.
func mustUDPListener(t *testing.T) (*net.UDPConn, string) {
	t.Helper()
	conn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	if err != nil {
		t.Fatalf("ListenUDP: %v", err)
	}
	return conn, conn.LocalAddr().String()
}

func TestSplitIntoGroupsRespectsBudget(t *testing.T) {
	big := make([]byte, DatagramBudget-wire.MoldHeaderLen-2)
	blocks := [][]byte{big, []byte("small")}

	groups := splitIntoGroups(blocks)
	if len(groups) != 2 {
		t.Fatalf("groups = %d, want 2 (big block alone fills the budget)", len(groups))
	}
	if len(groups[0]) != 1 || len(groups[1]) != 1 {
		t.Fatalf("groups = %+v, want one block per group", groups)
	}
}

func TestSplitIntoGroupsPacksSmallBlocksTogether(t *testing.T) {
	blocks := [][]byte{[]byte("a"), []byte("b"), []byte("c")}
	groups := splitIntoGroups(blocks)
	if len(groups) != 1 || len(groups[0]) != 3 {
		t.Fatalf("groups = %+v, want a single group of 3", groups)
	}
}

func TestTransmitterSendMessagesOverUDP(t *testing.T) {
	sess, _ := wire.NewSessionID("S")

	recvConn, recvAddr := mustUDPListener(t)
	defer recvConn.Close()

	store := NewMemoryStore()
	tx, err := NewTransmitter(TransmitterConfig{
		SessionID:      "S",
		SequenceNumber: 100,
		MulticastAddr:  recvAddr,
	}, store)
	if err != nil {
		t.Fatalf("NewTransmitter: %v", err)
	}
	defer tx.Close()

	if err := tx.SendMessages([][]byte{[]byte("AAPL"), []byte("MSFT")}); err != nil {
		t.Fatalf("SendMessages: %v", err)
	}
	if got := tx.NextSequence(); got != 102 {
		t.Fatalf("NextSequence() = %d, want 102", got)
	}

	buf := make([]byte, 2048)
	n, err := recvConn.Read(buf)
	if err != nil {
		t.Fatalf("reading datagram: %v", err)
	}
	mp, err := wire.DecodeMoldPacket(buf[:n])
	if err != nil {
		t.Fatalf("DecodeMoldPacket: %v", err)
	}
	if mp.Session != sess || mp.Sequence != 100 || len(mp.Messages) != 2 {
		t.Fatalf("header mismatch: %+v", mp)
	}
	if !bytes.Equal(mp.Messages[0], []byte("AAPL")) || !bytes.Equal(mp.Messages[1], []byte("MSFT")) {
		t.Fatalf("messages mismatch: %+v", mp.Messages)
	}

	if payload, ok := store.Get(100); !ok || string(payload) != "AAPL" {
		t.Fatalf("store.Get(100) = %q, %v; want AAPL, true", payload, ok)
	}
	if payload, ok := store.Get(101); !ok || string(payload) != "MSFT" {
		t.Fatalf("store.Get(101) = %q, %v; want MSFT, true", payload, ok)
	}
}
