package storage

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Token verification failures.
var (
	ErrTokenMalformed = errors.New("malformed download token")
	ErrTokenSignature = errors.New("invalid download token signature")
	ErrTokenExpired   = errors.New("download token expired")
)

const fieldSeparator = "\x1f"

// Grant is the content of a verified download token.
type Grant struct {
	ResourceID string
	Path       string
	ExpiresAt  time.Time
}

// SignedURLSigner issues HMAC-SHA256 download tokens bound to a stored path.
type SignedURLSigner struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewSignedURLSigner constructs a signer; ttl defaults to 24h.
func NewSignedURLSigner(secret string, ttl time.Duration) *SignedURLSigner {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &SignedURLSigner{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// TTL reports how long issued tokens stay valid.
func (s *SignedURLSigner) TTL() time.Duration {
	return s.ttl
}

// Sign returns a URL-safe token for relPath and its expiry.
func (s *SignedURLSigner) Sign(resourceID, relPath string) (string, time.Time, error) {
	if resourceID == "" || relPath == "" {
		return "", time.Time{}, errors.New("resource id and path are required")
	}
	if len(s.secret) == 0 {
		return "", time.Time{}, errors.New("signing secret missing")
	}
	expiresAt := s.now().Add(s.ttl).Truncate(time.Second)
	payload := strings.Join([]string{resourceID, strconv.FormatInt(expiresAt.Unix(), 10), relPath}, fieldSeparator)
	token := base64.RawURLEncoding.EncodeToString([]byte(payload)) + "." + base64.RawURLEncoding.EncodeToString(s.mac(payload))
	return token, expiresAt, nil
}

// Verify checks the signature and expiry of token.
func (s *SignedURLSigner) Verify(token string) (Grant, error) {
	encodedPayload, encodedSig, ok := strings.Cut(token, ".")
	if !ok {
		return Grant{}, ErrTokenMalformed
	}
	rawPayload, err := base64.RawURLEncoding.DecodeString(encodedPayload)
	if err != nil {
		return Grant{}, fmt.Errorf("%w: %v", ErrTokenMalformed, err)
	}
	signature, err := base64.RawURLEncoding.DecodeString(encodedSig)
	if err != nil {
		return Grant{}, fmt.Errorf("%w: %v", ErrTokenMalformed, err)
	}
	payload := string(rawPayload)
	if !hmac.Equal(signature, s.mac(payload)) {
		return Grant{}, ErrTokenSignature
	}

	fields := strings.Split(payload, fieldSeparator)
	if len(fields) != 3 {
		return Grant{}, ErrTokenMalformed
	}
	expUnix, err := strconv.ParseInt(fields[1], 10, 64)
	if err != nil {
		return Grant{}, fmt.Errorf("%w: %v", ErrTokenMalformed, err)
	}
	grant := Grant{ResourceID: fields[0], Path: fields[2], ExpiresAt: time.Unix(expUnix, 0)}
	if s.now().After(grant.ExpiresAt) {
		return grant, ErrTokenExpired
	}
	return grant, nil
}

func (s *SignedURLSigner) mac(payload string) []byte {
	h := hmac.New(sha256.New, s.secret)
	_, _ = h.Write([]byte(payload))
	return h.Sum(nil)
}
