package domain

import (
	"crypto/ed25519"
	"fmt"
	"strconv"
	"strings"

	"github.com/mr-tron/base58"
)

// Address is a stable wallet identity: the base58 encoding of an ed25519
// public key. It is the uniqueness key for membership and is immutable once
// created.
type Address string

// AddressFromPublicKey derives the canonical address for a signing key.
func AddressFromPublicKey(pub ed25519.PublicKey) Address {
	return Address(base58.Encode(pub))
}

// PublicKey decodes the address back into the verification key it encodes.
func (a Address) PublicKey() (ed25519.PublicKey, error) {
	raw, err := base58.Decode(string(a))
	if err != nil {
		return nil, fmt.Errorf("decode address: %w", err)
	}
	if len(raw) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("address encodes %d bytes, want %d", len(raw), ed25519.PublicKeySize)
	}
	return ed25519.PublicKey(raw), nil
}

func (a Address) String() string { return string(a) }

// IsZero reports whether the address is unset. The zero address stands for
// "no owner" and is only ever valid as the source of a mint.
func (a Address) IsZero() bool { return a == "" }

// Amount is a fixed-point monetary value in base units. One whole coin is
// Coin base units; treasury arithmetic never touches floating point.
type Amount uint64

// Coin is the number of base units per whole coin.
const Coin Amount = 1_000_000_000

// ParseAmount reads a decimal coin amount such as "0.03" into base units.
// At most nine fractional digits are accepted.
func ParseAmount(s string) (Amount, error) {
	whole, frac, _ := strings.Cut(strings.TrimSpace(s), ".")
	if whole == "" {
		whole = "0"
	}
	w, err := strconv.ParseUint(whole, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse amount %q: %w", s, err)
	}
	if len(frac) > 9 {
		return 0, fmt.Errorf("parse amount %q: more than 9 fractional digits", s)
	}
	var f uint64
	if frac != "" {
		f, err = strconv.ParseUint(frac+strings.Repeat("0", 9-len(frac)), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("parse amount %q: %w", s, err)
		}
	}
	return Amount(w)*Coin + Amount(f), nil
}

// String renders the amount as a decimal coin value for logs and responses.
func (a Amount) String() string {
	whole := uint64(a / Coin)
	frac := uint64(a % Coin)
	if frac == 0 {
		return strconv.FormatUint(whole, 10)
	}
	s := strconv.FormatUint(whole, 10) + "." + fmt.Sprintf("%09d", frac)
	return strings.TrimRight(s, "0")
}
