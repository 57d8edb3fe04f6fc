package canon

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes keep digests of different record kinds apart.
const (
	DomainRun    = "fixturekit/run/v1"
	DomainResult = "fixturekit/result/v1"
)

// hashWithDomain computes SHA256(domain + 0x00 + data).
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// Hash returns the hex digest of v's canonical encoding under domain.
func Hash(domain string, v any) (string, error) {
	data, err := Marshal(v)
	if err != nil {
		return "", fmt.Errorf("canonical %s: %w", domain, err)
	}
	return hashWithDomain(domain, data), nil
}

// MustHash is like Hash but panics on error.
func MustHash(domain string, v any) string {
	h, err := Hash(domain, v)
	if err != nil {
		panic(err)
	}
	return h
}
