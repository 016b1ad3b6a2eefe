package domain

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"strings"
)

// ActorID is the opaque 32-byte identity of a voter or admin.
// Its text form is 0x followed by 64 lowercase hex digits.
type ActorID [32]byte

// ParseActorID parses the hex text form. The 0x prefix is optional.
func ParseActorID(s string) (ActorID, error) {
	var id ActorID
	h := strings.TrimPrefix(strings.TrimPrefix(strings.TrimSpace(s), "0x"), "0X")
	if len(h) != hex.EncodedLen(len(id)) {
		return id, fmt.Errorf("actor id %q: want %d hex digits, got %d", s, hex.EncodedLen(len(id)), len(h))
	}
	if _, err := hex.Decode(id[:], []byte(h)); err != nil {
		return id, fmt.Errorf("actor id %q: %w", s, err)
	}
	return id, nil
}

// String returns the 0x-prefixed hex form.
func (id ActorID) String() string {
	return "0x" + hex.EncodeToString(id[:])
}

// IsZero reports whether id is all zero bytes.
func (id ActorID) IsZero() bool {
	return id == ActorID{}
}

// Less orders ids bytewise.
func (id ActorID) Less(other ActorID) bool {
	return bytes.Compare(id[:], other[:]) < 0
}

// MarshalText implements encoding.TextMarshaler so ActorID works as a JSON map key.
func (id ActorID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (id *ActorID) UnmarshalText(b []byte) error {
	parsed, err := ParseActorID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}
