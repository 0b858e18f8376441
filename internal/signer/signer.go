// Package signer computes the keyed digest the chatbot backend verifies on
// every request.
package signer

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"

	"clovagate/internal/domain"
)

// Signer computes HMAC-SHA256 digests keyed by the shared backend secret.
type Signer struct {
	key []byte
}

func New(secret string) *Signer {
	return &Signer{key: []byte(secret)}
}

// Sign returns the standard-Base64 HMAC-SHA256 digest of body. The exact
// bytes signed here must also be the bytes sent on the wire, or the backend
// rejects the signature.
func (s *Signer) Sign(body []byte) (string, error) {
	if len(s.key) == 0 {
		return "", domain.ErrMissingSecret
	}
	mac := hmac.New(sha256.New, s.key)
	mac.Write(body)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil)), nil
}
