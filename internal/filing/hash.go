package filing

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/gowebpki/jcs"
)

// DomainFiling prefixes filing document hashes.
// Format: SHA256(domain + 0x00 + canonical JSON)
const DomainFiling = "colin-migrate/filing/v1"

// Canonical returns the RFC 8785 canonical JSON of a document.
func Canonical(doc Document) ([]byte, error) {
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("marshal filing: %w", err)
	}
	out, err := jcs.Transform(raw)
	if err != nil {
		return nil, fmt.Errorf("canonicalize filing: %w", err)
	}
	return out, nil
}

// Hash returns "sha256:<hex>" over the domain prefix and the canonical JSON.
func Hash(doc Document) (string, error) {
	canon, err := Canonical(doc)
	if err != nil {
		return "", err
	}
	h := sha256.New()
	h.Write([]byte(DomainFiling))
	h.Write([]byte{0x00})
	h.Write(canon)
	return "sha256:" + hex.EncodeToString(h.Sum(nil)), nil
}
