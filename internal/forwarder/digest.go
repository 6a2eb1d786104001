package forwarder

import (
	"crypto/ed25519"
	"encoding/binary"

	"golang.org/x/crypto/sha3"

	"mintgate/internal/domain"
)

// domainSeparator keeps forward-request digests from colliding with any other
// signed payloads in the system.
const domainSeparator = "mintgate/forward-request/v1"

// Digest computes the Keccak-256 hash of the canonical encoding of a forward
// request, excluding the signature. Fields are length-prefixed so no two
// distinct requests share an encoding.
func Digest(req domain.ForwardRequest) []byte {
	h := sha3.NewLegacyKeccak256()
	writeBytes := func(b []byte) {
		var n [8]byte
		binary.BigEndian.PutUint64(n[:], uint64(len(b)))
		h.Write(n[:])
		h.Write(b)
	}
	writeUint := func(v uint64) {
		var n [8]byte
		binary.BigEndian.PutUint64(n[:], v)
		h.Write(n[:])
	}
	writeBytes([]byte(domainSeparator))
	writeBytes([]byte(req.From))
	writeBytes([]byte(req.To))
	writeUint(uint64(req.Value))
	writeUint(req.GasLimit)
	writeUint(req.Nonce)
	writeBytes(req.Data)
	writeUint(uint64(req.ValidUntil))
	return h.Sum(nil)
}

// Sign fills in the signature over the request digest. It is the signing
// capability the login collaborator provides; kept here so clients and tests
// produce exactly what Verify checks.
func Sign(priv ed25519.PrivateKey, req domain.ForwardRequest) domain.ForwardRequest {
	req.Signature = ed25519.Sign(priv, Digest(req))
	return req
}
