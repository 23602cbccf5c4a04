package webchat

import (
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	sessionIssuer     = "cosmetology-webchat"
	defaultSessionTTL = 30 * 24 * time.Hour
	// Web chat ids start above this bound so they never collide with chat
	// ids that arrive through the gateway.
	webUserIDFloor = int64(1) << 52
)

// ErrInvalidSession is returned for missing, forged or expired tokens.
var ErrInvalidSession = errors.New("webchat: invalid session token")

// Sessions issues and verifies signed web chat session tokens. A token
// binds a connection to one user id; ids are never taken from the client.
type Sessions struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewSessions builds a signer. An empty secret gets a random one, so
// tokens do not survive a restart.
func NewSessions(secret string, ttl time.Duration) (*Sessions, error) {
	key := []byte(secret)
	if len(key) == 0 {
		key = make([]byte, 32)
		if _, err := rand.Read(key); err != nil {
			return nil, fmt.Errorf("webchat: generate session secret: %w", err)
		}
	}
	if ttl <= 0 {
		ttl = defaultSessionTTL
	}
	return &Sessions{secret: key, ttl: ttl, now: time.Now}, nil
}

// NewUser assigns a fresh random user id and its token.
func (s *Sessions) NewUser() (int64, string, error) {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		return 0, "", fmt.Errorf("webchat: generate user id: %w", err)
	}
	id := webUserIDFloor + int64(binary.BigEndian.Uint64(b[:])%uint64(webUserIDFloor))
	token, err := s.Issue(id)
	if err != nil {
		return 0, "", err
	}
	return id, token, nil
}

// Issue signs a token for userID.
func (s *Sessions) Issue(userID int64) (string, error) {
	now := s.now()
	claims := jwt.RegisteredClaims{
		Issuer:    sessionIssuer,
		Subject:   strconv.FormatInt(userID, 10),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("webchat: sign session: %w", err)
	}
	return token, nil
}

// Verify returns the user id bound to token.
func (s *Sessions) Verify(token string) (int64, error) {
	if token == "" {
		return 0, ErrInvalidSession
	}
	var claims jwt.RegisteredClaims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(sessionIssuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil || !parsed.Valid {
		return 0, ErrInvalidSession
	}
	id, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil || id <= 0 {
		return 0, ErrInvalidSession
	}
	return id, nil
}
