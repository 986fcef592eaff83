package wire

import (
	"fmt"
	"strconv"
	"strings"
)

// Fixed-width field lengths, per the SoupBinTCP wire format.
const (
	UsernameLen       = 6
	PasswordLen       = 10
	SessionIDLen      = 10
	SequenceNumberLen = 20
)

// Username is a 6-byte, right-padded (with spaces) ASCII identifier.
type Username [UsernameLen]byte

// Password is a 10-byte, right-padded (with spaces) ASCII identifier.
type Password [PasswordLen]byte

// SessionID is a 10-byte, left-padded (with spaces) ASCII identifier. The
// all-spaces value is the distinguished "blank" session, meaning "current".
type SessionID [SessionIDLen]byte

// SequenceNumber is a 20-byte, left-padded (with spaces) ASCII decimal
// number, representing a value up to 2^64-1.
type SequenceNumber [SequenceNumberLen]byte

// BlankSessionID is the distinguished "current session" sentinel.
var BlankSessionID = SessionID{' ', ' ', ' ', ' ', ' ', ' ', ' ', ' ', ' ', ' '}

// ZeroSequenceNumber is the wire encoding of sequence number 0: nineteen
// spaces followed by the digit "0".
var ZeroSequenceNumber = mustSequenceNumberFromU64(0)

// NewUsername right-pads s with spaces to UsernameLen, failing if s is too
// long to fit.
func NewUsername(s string) (Username, error) {
	var u Username
	if err := padRight(u[:], s); err != nil {
		return u, fmt.Errorf("username: %w", err)
	}
	return u, nil
}

// String returns s with trailing padding removed.
func (u Username) String() string {
	return strings.TrimRight(string(u[:]), " ")
}

// Bytes returns the fixed-width wire form.
func (u Username) Bytes() []byte {
	b := u
	return b[:]
}

// NewPassword right-pads s with spaces to PasswordLen, failing if s is too
// long to fit.
func NewPassword(s string) (Password, error) {
	var p Password
	if err := padRight(p[:], s); err != nil {
		return p, fmt.Errorf("password: %w", err)
	}
	return p, nil
}

func (p Password) String() string {
	return strings.TrimRight(string(p[:]), " ")
}

func (p Password) Bytes() []byte {
	b := p
	return b[:]
}

// NewSessionID left-pads s with spaces to SessionIDLen, failing if s is too
// long to fit. An empty string yields BlankSessionID.
func NewSessionID(s string) (SessionID, error) {
	var id SessionID
	if err := padLeft(id[:], s, ' '); err != nil {
		return id, fmt.Errorf("session id: %w", err)
	}
	return id, nil
}

func (id SessionID) String() string {
	return strings.TrimLeft(string(id[:]), " ")
}

func (id SessionID) Bytes() []byte {
	b := id
	return b[:]
}

// IsBlank reports whether id is the all-spaces "current session" sentinel.
func (id SessionID) IsBlank() bool {
	return id == BlankSessionID
}

// NewSequenceNumber parses a SequenceNumber out of its left-padded decimal
// wire form.
func NewSequenceNumber(b [SequenceNumberLen]byte) (SequenceNumber, error) {
	trimmed := strings.TrimLeft(string(b[:]), " ")
	if trimmed != "" {
		if _, err := strconv.ParseUint(trimmed, 10, 64); err != nil {
			return SequenceNumber{}, fmt.Errorf("sequence number: %w", err)
		}
	}
	return SequenceNumber(b), nil
}

// SequenceNumberFromU64 formats n as a left-padded decimal SequenceNumber.
func SequenceNumberFromU64(n uint64) SequenceNumber {
	var sn SequenceNumber
	s := strconv.FormatUint(n, 10)
	// s always fits: 2^64-1 is 20 digits, exactly SequenceNumberLen.
	_ = padLeft(sn[:], s, ' ')
	return sn
}

func mustSequenceNumberFromU64(n uint64) SequenceNumber {
	return SequenceNumberFromU64(n)
}

// ToU64 parses the decimal value of sn. An all-spaces field (with no
// digits at all) parses as zero, same as ZeroSequenceNumber.
func (sn SequenceNumber) ToU64() uint64 {
	trimmed := strings.TrimLeft(string(sn[:]), " ")
	if trimmed == "" {
		return 0
	}
	n, err := strconv.ParseUint(trimmed, 10, 64)
	if err != nil {
		return 0
	}
	return n
}

func (sn SequenceNumber) Bytes() []byte {
	b := sn
	return b[:]
}

func (sn SequenceNumber) String() string {
	return strconv.FormatUint(sn.ToU64(), 10)
}

// padRight copies s into dst, padding the remainder with spaces. It fails
// if s is longer than dst.
func padRight(dst []byte, s string) error {
	if len(s) > len(dst) {
		return fmt.Errorf("%q exceeds %d bytes", s, len(dst))
	}
	n := copy(dst, s)
	for i := n; i < len(dst); i++ {
		dst[i] = ' '
	}
	return nil
}

// padLeft copies s into the tail of dst, padding the head with fill. It
// fails if s is longer than dst.
func padLeft(dst []byte, s string, fill byte) error {
	if len(s) > len(dst) {
		return fmt.Errorf("%q exceeds %d bytes", s, len(dst))
	}
	pad := len(dst) - len(s)
	for i := 0; i < pad; i++ {
		dst[i] = fill
	}
	copy(dst[pad:], s)
	return nil
}
