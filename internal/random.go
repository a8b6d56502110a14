package internal

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
)

type StateID [16]byte

func NewStateID() (StateID, error) {
	var sid StateID
	_, err := rand.Read(sid[:])
	return sid, err
}

func (s StateID) Bytes() []byte {
	return s[:]
}

func (s StateID) String() string {
	// base64url, no padding, compact
	return base64.RawURLEncoding.EncodeToString(s[:])
}

func ParseStateID(stateID string) (StateID, error) {
	var sid StateID

	raw, err := base64.RawURLEncoding.DecodeString(stateID)
	if err != nil {
		return sid, err
	}
	if len(raw) != len(sid) {
		return sid, errors.New("invalid state id size")
	}

	copy(sid[:], raw)
	return sid, nil
}
