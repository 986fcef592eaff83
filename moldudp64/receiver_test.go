package moldudp64

import (
	"testing"

	"github.com/marketlink/marketlink/wire"
)

// TestHandleDataGapAndReorder reproduces the spec's concrete MoldUDP64 gap
// scenario: seq 100 count 2, then seq 104 count 1 arrives before the gap at
// [102,103] is filled.
func TestHandleDataGapAndReorder(t *testing.T) {
	r := &Receiver{nextExpected: 100, buffered: make(map[uint64][][]byte)}
	var delivered []uint64
	handler := func(e Event) {
		if e.Kind == EventData {
			delivered = append(delivered, e.Sequence)
		}
	}

	r.handleData(100, [][]byte{[]byte("a"), []byte("b")}, handler)
	if r.nextExpected != 102 {
		t.Fatalf("nextExpected = %d, want 102", r.nextExpected)
	}

	r.handleData(104, [][]byte{[]byte("e")}, handler)
	if r.nextExpected != 102 {
		t.Fatalf("nextExpected = %d, want 102 (gap not yet filled)", r.nextExpected)
	}
	if _, buffered := r.buffered[104]; !buffered {
		t.Fatal("packet at seq 104 should be buffered pending the gap")
	}

	r.handleData(102, [][]byte{[]byte("c"), []byte("d")}, handler)
	if r.nextExpected != 105 {
		t.Fatalf("nextExpected = %d, want 105 once the gap fill drains the buffered packet", r.nextExpected)
	}

	want := []uint64{100, 101, 102, 103, 104}
	if len(delivered) != len(want) {
		t.Fatalf("delivered = %v, want %v", delivered, want)
	}
	for i := range want {
		if delivered[i] != want[i] {
			t.Fatalf("delivered = %v, want %v", delivered, want)
		}
	}
}

func TestHandleDataDiscardsStaleDuplicate(t *testing.T) {
	r := &Receiver{nextExpected: 10, buffered: make(map[uint64][][]byte)}
	r.handleData(5, [][]byte{[]byte("x")}, nil)
	if r.nextExpected != 10 {
		t.Fatalf("nextExpected = %d, want unchanged 10 for a stale duplicate", r.nextExpected)
	}
}

func TestHandleDataOverlapDeliversOnlyNewPortion(t *testing.T) {
	r := &Receiver{nextExpected: 10, buffered: make(map[uint64][][]byte)}
	var delivered []uint64
	r.handleData(8, [][]byte{[]byte("8"), []byte("9"), []byte("10"), []byte("11")}, func(e Event) {
		delivered = append(delivered, e.Sequence)
	})
	if r.nextExpected != 12 {
		t.Fatalf("nextExpected = %d, want 12", r.nextExpected)
	}
	want := []uint64{10, 11}
	if len(delivered) != len(want) || delivered[0] != want[0] || delivered[1] != want[1] {
		t.Fatalf("delivered = %v, want %v", delivered, want)
	}
}

func TestHandleDataAutoRerequestNoAddrsIsNoop(t *testing.T) {
	sessID, _ := wire.NewSessionID("S")
	r := &Receiver{
		nextExpected: 100,
		buffered:     make(map[uint64][][]byte),
		cfg:          ReceiverConfig{AutoRerequest: true},
		sessionID:    sessID,
		haveSession:  true,
	}
	r.handleData(104, [][]byte{[]byte("e")}, nil)
	if r.nextExpected != 100 {
		t.Fatalf("nextExpected = %d, want unchanged 100 after buffering a gapped packet", r.nextExpected)
	}
	if len(r.buffered) != 1 {
		t.Fatalf("buffered = %d entries, want 1", len(r.buffered))
	}
}
