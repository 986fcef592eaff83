package adminserver

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/marketlink/marketlink/wire"
)

// SessionInfo is the JSON shape of one entry in the sessions listing.
type SessionInfo struct {
	ID              string `json:"id"`
	CurrentSequence uint64 `json:"current_sequence"`
	ClientCount     int    `json:"client_count"`
	Ended           bool   `json:"ended"`
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	sessions := s.sessions.Sessions()
	result := make([]SessionInfo, 0, len(sessions))
	for _, sess := range sessions {
		result = append(result, SessionInfo{
			ID:              sess.ID().String(),
			CurrentSequence: sess.CurrentSequence(),
			ClientCount:     sess.ClientCount(),
			Ended:           sess.Ended(),
		})
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(result)
}

func (s *Server) handleSessionStatus(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	id, err := wire.NewSessionID(vars["id"])
	if err != nil {
		http.Error(w, "invalid session id", http.StatusBadRequest)
		return
	}

	sess, ok := s.sessions.Get(id)
	if !ok {
		http.Error(w, "session not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(SessionInfo{
		ID:              sess.ID().String(),
		CurrentSequence: sess.CurrentSequence(),
		ClientCount:     sess.ClientCount(),
		Ended:           sess.Ended(),
	})
}

// ReceiverInfo is the JSON shape of one entry in the receivers listing.
type ReceiverInfo struct {
	Name         string `json:"name"`
	SessionID    string `json:"session_id"`
	NextExpected uint64 `json:"next_expected"`
	BufferedGaps int    `json:"buffered_gaps"`
	Closed       bool   `json:"closed"`
}

func (s *Server) handleListReceivers(w http.ResponseWriter, r *http.Request) {
	snapshot := s.receivers.Snapshot()
	result := make([]ReceiverInfo, 0, len(snapshot))
	for name, rcv := range snapshot {
		result = append(result, ReceiverInfo{
			Name:         name,
			SessionID:    rcv.SessionID().String(),
			NextExpected: rcv.NextExpected(),
			BufferedGaps: rcv.BufferedGaps(),
			Closed:       rcv.Err() != nil,
		})
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(result)
}
