// Package identity provides the 12-byte record identifier used as the
// primary key for every stored entity and as the embedded foreign key
// inside parent records.
//
// An ID is composed of a 4-byte big-endian unix timestamp, 5 random bytes
// fixed per process, and a 3-byte monotonic counter. IDs generated in the
// same process are strictly increasing; IDs generated anywhere sort
// roughly by creation time.
package identity

import (
	"bytes"
	"crypto/rand"
	"database/sql/driver"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"sync/atomic"
	"time"
)

// RawLen is the byte length of an ID.
const RawLen = 12

// HexLen is the length of the textual hex form of an ID.
const HexLen = 2 * RawLen

// ErrInvalid is returned when a textual identifier is not a well-formed
// 24-character hex encoding of 12 bytes.
var ErrInvalid = errors.New("invalid identity")

// ID is an opaque, immutable, comparable record identifier.
type ID [RawLen]byte

var processUnique = mustRandom5()

var counter = initCounter()

func mustRandom5() [5]byte {
	var b [5]byte
	if _, err := rand.Read(b[:]); err != nil {
		panic(fmt.Sprintf("identity: cannot seed process unique bytes: %v", err))
	}
	return b
}

func initCounter() *uint32 {
	var b [4]byte
	if _, err := rand.Read(b[:]); err != nil {
		panic(fmt.Sprintf("identity: cannot seed counter: %v", err))
	}
	c := binary.BigEndian.Uint32(b[:])
	return &c
}

// New generates a fresh ID.
func New() ID {
	var id ID
	binary.BigEndian.PutUint32(id[0:4], uint32(time.Now().Unix()))
	copy(id[4:9], processUnique[:])
	n := atomic.AddUint32(counter, 1)
	id[9] = byte(n >> 16)
	id[10] = byte(n >> 8)
	id[11] = byte(n)
	return id
}

// Parse decodes the 24-character hex form of an ID.
// It returns ErrInvalid when the text is malformed.
func Parse(text string) (ID, error) {
	var id ID
	if len(text) != HexLen {
		return id, fmt.Errorf("%w: %q", ErrInvalid, text)
	}
	if _, err := hex.Decode(id[:], []byte(text)); err != nil {
		return id, fmt.Errorf("%w: %q", ErrInvalid, text)
	}
	return id, nil
}

// Hex returns the lowercase hex form of the ID.
func (id ID) Hex() string {
	return hex.EncodeToString(id[:])
}

// String implements fmt.Stringer.
func (id ID) String() string {
	return id.Hex()
}

// IsZero reports whether the ID is the all-zero value.
func (id ID) IsZero() bool {
	return id == ID{}
}

// Compare returns -1, 0 or 1 comparing the raw bytes of a and b.
// The ordering is total and, within a process, matches generation order.
func Compare(a, b ID) int {
	return bytes.Compare(a[:], b[:])
}

// MarshalJSON encodes the ID as a hex string.
func (id ID) MarshalJSON() ([]byte, error) {
	return []byte(`"` + id.Hex() + `"`), nil
}

// UnmarshalJSON decodes a hex string into the ID.
func (id *ID) UnmarshalJSON(data []byte) error {
	if len(data) < 2 || data[0] != '"' || data[len(data)-1] != '"' {
		return fmt.Errorf("%w: %s", ErrInvalid, data)
	}
	parsed, err := Parse(string(data[1 : len(data)-1]))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

// Value implements driver.Valuer; IDs are stored as hex text.
func (id ID) Value() (driver.Value, error) {
	return id.Hex(), nil
}

// Scan implements sql.Scanner for hex text columns.
func (id *ID) Scan(src any) error {
	switch v := src.(type) {
	case string:
		parsed, err := Parse(v)
		if err != nil {
			return err
		}
		*id = parsed
		return nil
	case []byte:
		parsed, err := Parse(string(v))
		if err != nil {
			return err
		}
		*id = parsed
		return nil
	default:
		return fmt.Errorf("%w: cannot scan %T", ErrInvalid, src)
	}
}
