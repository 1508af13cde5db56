package crypto

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSigner_HeadersAtIsDeterministic(t *testing.T) {
	s := NewSigner("topsecret")
	a := s.HeadersAt("POST", "/hooks/rounds", []byte(`{"a":1}`), 1700000000)
	b := s.HeadersAt("POST", "/hooks/rounds", []byte(`{"a":1}`), 1700000000)
	assert.Equal(t, a, b)
	assert.Equal(t, "1700000000", a[HeaderTimestamp])
	assert.NotEmpty(t, a[HeaderSignature])

	c := s.HeadersAt("POST", "/hooks/rounds", []byte(`{"a":2}`), 1700000000)
	assert.NotEqual(t, a[HeaderSignature], c[HeaderSignature], "body is covered")
}

func TestSigner_Verify(t *testing.T) {
	now := time.Unix(1700000100, 0)
	s := NewSigner("topsecret")
	s.now = func() time.Time { return now }
	body := []byte(`{"title":"x"}`)

	h := s.HeadersAt("POST", "/h", body, 1700000000)
	assert.True(t, s.Verify("POST", "/h", body, h[HeaderTimestamp], h[HeaderSignature], 5*time.Minute))
	assert.False(t, s.Verify("POST", "/h", body, h[HeaderTimestamp], h[HeaderSignature], time.Minute), "too old")
	assert.False(t, s.Verify("POST", "/h", []byte(`{}`), h[HeaderTimestamp], h[HeaderSignature], 0))
	assert.False(t, NewSigner("other").Verify("POST", "/h", body, h[HeaderTimestamp], h[HeaderSignature], 0))
	assert.False(t, s.Verify("POST", "/h", body, "not-a-number", h[HeaderSignature], 0))
}

func TestSigner_StringRedacts(t *testing.T) {
	assert.Equal(t, "Signer{secret=tops****}", NewSigner("topsecret").String())
	assert.Equal(t, "Signer{secret=****}", NewSigner("abc").String())
}
