package ledger

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
)

// AlgorithmHMACSHA256 is the signature algorithm tag stored on every entry.
const AlgorithmHMACSHA256 = "HMAC-SHA256"

// Signer signs chain links with a process-wide secret key.
type Signer struct {
	key []byte
}

// NewSigner creates a signer for the given secret
func NewSigner(secret string) (*Signer, error) {
	if secret == "" {
		return nil, errors.New("ledger secret must not be empty")
	}
	return &Signer{key: []byte(secret)}, nil
}

// Algorithm returns the tag recorded alongside signatures
func (s *Signer) Algorithm() string {
	return AlgorithmHMACSHA256
}

// Sign returns hex(HMAC-SHA256(key, previousHash || recordHash)).
func (s *Signer) Sign(previousHash, recordHash string) string {
	mac := hmac.New(sha256.New, s.key)
	mac.Write([]byte(previousHash))
	mac.Write([]byte(recordHash))
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify checks signature in constant time
func (s *Signer) Verify(previousHash, recordHash, signature string) bool {
	return hmac.Equal([]byte(s.Sign(previousHash, recordHash)), []byte(signature))
}

// Hash returns the hex SHA-256 digest of canonical bytes.
func Hash(canonical []byte) string {
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:])
}
