package utils

import (
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	// QRTokenType is the purpose tag embedded in kiosk check-in tokens.
	QRTokenType = "qr_checkin"
	// DefaultQRTokenTTL is the lifetime of a check-in token when none is configured.
	DefaultQRTokenTTL = 24 * time.Hour
	// DefaultKioskBaseURL is where the kiosk frontend is served by default.
	DefaultKioskBaseURL = "http://localhost:5173"
)

type qrClaims struct {
	SessionID uint64 `json:"session_id"`
	Type      string `json:"type"`
	jwt.RegisteredClaims
}

// QRTokens issues and validates the signed tokens encoded in session QR
// codes.  Nothing is persisted; a token is valid as long as its signature
// and expiry hold.
type QRTokens struct {
	secret []byte
	now    func() time.Time
}

// NewQRTokens returns a QRTokens signing with secret.  A nil clock uses
// time.Now.
func NewQRTokens(secret string, now func() time.Time) *QRTokens {
	if now == nil {
		now = time.Now
	}
	return &QRTokens{secret: []byte(secret), now: now}
}

// Issue signs a token for sessionID expiring after ttl.  ttl <= 0 uses
// DefaultQRTokenTTL.
func (q *QRTokens) Issue(sessionID uint64, ttl time.Duration) (string, time.Time, error) {
	if ttl <= 0 {
		ttl = DefaultQRTokenTTL
	}
	exp := q.now().UTC().Add(ttl)
	claims := qrClaims{
		SessionID: sessionID,
		Type:      QRTokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(q.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp, nil
}

// Validate returns the session id bound to token.  Any failure (malformed
// input, bad signature, expiry, wrong algorithm or purpose tag, missing
// session id) yields ok == false.
func (q *QRTokens) Validate(token string) (sessionID uint64, ok bool) {
	token = strings.TrimSpace(token)
	if token == "" {
		return 0, false
	}
	claims := &qrClaims{}
	tok, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return q.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(q.now),
	)
	if err != nil || !tok.Valid {
		return 0, false
	}
	if claims.Type != QRTokenType || claims.SessionID == 0 {
		return 0, false
	}
	return claims.SessionID, true
}

// CheckinURL returns the kiosk URL a QR code should encode.
func CheckinURL(baseURL, token string) string {
	if baseURL == "" {
		baseURL = DefaultKioskBaseURL
	}
	return strings.TrimRight(baseURL, "/") + "/checkin?token=" + url.QueryEscape(token)
}
