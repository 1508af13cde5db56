// Package crypto signs outbound webhook payloads so receivers can verify they
// came from this ledger and were not replayed.
package crypto

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"strconv"
	"time"
)

// Signature header names attached to signed webhook requests.
const (
	HeaderTimestamp = "X-Pari-Timestamp"
	HeaderSignature = "X-Pari-Signature"
)

// Signer computes HMAC-SHA256 signatures over timestamp+method+path+body.
type Signer struct {
	Secret string
	now    func() time.Time
}

// NewSigner creates a Signer for secret.
func NewSigner(secret string) *Signer {
	return &Signer{Secret: secret, now: time.Now}
}

// Headers returns the signature headers for a request sent now.
func (s *Signer) Headers(method, path string, body []byte) map[string]string {
	return s.HeadersAt(method, path, body, s.now().Unix())
}

// HeadersAt is like Headers with a caller-supplied Unix timestamp.
func (s *Signer) HeadersAt(method, path string, body []byte, unixTS int64) map[string]string {
	ts := strconv.FormatInt(unixTS, 10)
	return map[string]string{
		HeaderTimestamp: ts,
		HeaderSignature: s.sign(ts + method + path + string(body)),
	}
}

// Verify reports whether sig matches the payload. Signatures older than
// maxAge are rejected; maxAge <= 0 skips the age check.
func (s *Signer) Verify(method, path string, body []byte, ts, sig string, maxAge time.Duration) bool {
	unix, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return false
	}
	if maxAge > 0 && s.now().Sub(time.Unix(unix, 0)) > maxAge {
		return false
	}
	want := s.sign(ts + method + path + string(body))
	return hmac.Equal([]byte(want), []byte(sig))
}

func (s *Signer) sign(message string) string {
	mac := hmac.New(sha256.New, []byte(s.Secret))
	mac.Write([]byte(message))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// String returns a redacted representation suitable for logging.
func (s *Signer) String() string {
	if len(s.Secret) <= 4 {
		return "Signer{secret=****}"
	}
	return fmt.Sprintf("Signer{secret=%s****}", s.Secret[:4])
}
