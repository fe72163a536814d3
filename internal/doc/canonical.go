package doc

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"unicode/utf16"
)

// Hash domains. The version suffix leaves room for algorithm migration.
const (
	DomainSubevent = "grimoire/subevent/v1"
	DomainEffect   = "grimoire/effect/v1"
	DomainResource = "grimoire/resource/v1"
)

// MarshalCanonical encodes v as canonical JSON: object keys sorted by UTF-16
// code units, NFC-normalized strings, no HTML escaping and no whitespace.
// Two structurally equal documents always produce identical bytes.
func MarshalCanonical(v Value) ([]byte, error) {
	var buf bytes.Buffer
	if err := writeJSON(&buf, v, true); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Hash returns the hex SHA-256 of domain, a 0x00 separator and the canonical
// encoding of v.
func Hash(domain string, v Value) (string, error) {
	data, err := MarshalCanonical(v)
	if err != nil {
		return "", err
	}
	return hashWithDomain(domain, data), nil
}

func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// compareKeysUTF16 orders keys by UTF-16 code units, which differs from
// byte order for characters outside the BMP.
func compareKeysUTF16(a, b string) int {
	ua := utf16.Encode([]rune(a))
	ub := utf16.Encode([]rune(b))
	for i := 0; i < len(ua) && i < len(ub); i++ {
		if ua[i] != ub[i] {
			if ua[i] < ub[i] {
				return -1
			}
			return 1
		}
	}
	switch {
	case len(ua) < len(ub):
		return -1
	case len(ua) > len(ub):
		return 1
	default:
		return 0
	}
}
