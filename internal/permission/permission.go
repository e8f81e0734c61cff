// Package permission wraps the 256-bit ACC permission bitmap (spec §3) and
// exposes its fixed bit accessors. The bitmap is the same width and byte
// order the EVM itself works in, so it is represented with go-ethereum's
// own 256-bit integer type rather than a hand-rolled byte array.
package permission

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/holiman/uint256"
)

// Bit positions fixed by spec §3. Bits 20-25 are reserved and 0-19 are
// user-defined; neither is interpreted by the Guardian.
const (
	bitTerminated = 255
	bitDirectory  = 254
	bitRead       = 253
	bitWrite      = 252
	bitAppend     = 251
	bitExecute    = 250
)

// Bits is an immutable 256-bit ACC permission value.
type Bits struct {
	v uint256.Int
}

// Zero is the all-clear permission bitmap (every accessor false).
var Zero = Bits{}

// FromHex parses a 0x-prefixed hex string (of any length up to 64 hex
// digits, left-padded) into a Bits value. Leading zero digits are
// accepted: ACC return values arrive zero-padded to the full 32 bytes.
func FromHex(s string) (Bits, error) {
	s = strings.TrimPrefix(s, "0x")
	s = strings.TrimPrefix(s, "0X")
	if s == "" {
		return Zero, nil
	}
	if len(s) > 64 {
		return Bits{}, fmt.Errorf("permission: hex value too long: %d digits", len(s))
	}
	if len(s)%2 == 1 {
		s = "0" + s
	}
	raw, err := hex.DecodeString(s)
	if err != nil {
		return Bits{}, fmt.Errorf("permission: invalid hex value: %w", err)
	}
	var v uint256.Int
	v.SetBytes(raw)
	return Bits{v: v}, nil
}

// FromUint256 wraps an already-parsed 256-bit value.
func FromUint256(v *uint256.Int) Bits {
	var b Bits
	b.v.Set(v)
	return b
}

// Hex renders the bitmap as a "0x"-prefixed, zero-padded 64-hex-digit
// string, the form returned to clients by the getPermissions method.
func (b Bits) Hex() string {
	arr := b.v.Bytes32()
	return "0x" + fmt.Sprintf("%x", arr[:])
}

func (b Bits) bit(n uint) bool {
	mask := new(uint256.Int).Lsh(uint256.NewInt(1), n)
	tmp := new(uint256.Int).And(&b.v, mask)
	return !tmp.IsZero()
}

// BubbleTerminated reports whether bit 255 (bubble-terminated) is set.
func (b Bits) BubbleTerminated() bool { return b.bit(bitTerminated) }

// IsDirectory reports whether bit 254 (directory) is set on this
// permissioned part, per the ACC's own classification of the file id —
// distinct from bubblefile.Filename's structural notion of "directory".
func (b Bits) IsDirectory() bool { return b.bit(bitDirectory) }

// CanRead reports whether bit 253 (read) is set.
func (b Bits) CanRead() bool { return b.bit(bitRead) }

// CanWrite reports whether bit 252 (write) is set.
func (b Bits) CanWrite() bool { return b.bit(bitWrite) }

// CanAppend reports whether bit 251 (append) is set.
func (b Bits) CanAppend() bool { return b.bit(bitAppend) }

// CanExecute reports whether bit 250 (execute) is set.
func (b Bits) CanExecute() bool { return b.bit(bitExecute) }
