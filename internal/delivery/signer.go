package delivery

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
)

// Signer computes HMAC-SHA256 signatures over the exact transmitted
// bytes with the shared secret. Delivery payloads carry the base64
// form; status pings carry hex.
type Signer struct {
	secretKey []byte
}

func NewSigner(secretKey string) *Signer {
	return &Signer{
		secretKey: []byte(secretKey),
	}
}

func (s *Signer) SignBase64(data []byte) string {
	return base64.StdEncoding.EncodeToString(s.sum(data))
}

func (s *Signer) SignHex(data []byte) string {
	return hex.EncodeToString(s.sum(data))
}

// Verify checks a signature in either encoding.
func (s *Signer) Verify(data []byte, signature string) bool {
	return hmac.Equal([]byte(s.SignBase64(data)), []byte(signature)) ||
		hmac.Equal([]byte(s.SignHex(data)), []byte(signature))
}

func (s *Signer) sum(data []byte) []byte {
	h := hmac.New(sha256.New, s.secretKey)
	h.Write(data)
	return h.Sum(nil)
}
