package service

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrNoSubject    = errors.New("participant id not found")
)

// ParticipantClaims name the participant a token was issued to.
type ParticipantClaims struct {
	DisplayName string `json:"name,omitempty"`
	jwt.RegisteredClaims
}

// Identity is what a verified token says about its holder.
type Identity struct {
	ParticipantID string
	DisplayName   string
}

// JWT signs and verifies participant tokens with an HMAC secret.
type JWT struct {
	secret []byte
	now    func() time.Time
}

func NewJWT(secret string) *JWT {
	return &JWT{secret: []byte(secret), now: time.Now}
}

// Enabled reports whether a secret was configured.
func (j *JWT) Enabled() bool {
	return j != nil && len(j.secret) > 0
}

func (j *JWT) Generate(participantID, displayName string, ttl time.Duration) (string, error) {
	now := j.now()
	claims := ParticipantClaims{
		DisplayName: displayName,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   participantID,
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(j.secret)
}

func (j *JWT) Parse(tokenString string) (Identity, error) {
	var claims ParticipantClaims
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return j.secret, nil
	}, jwt.WithTimeFunc(j.now))

	if err != nil || !token.Valid {
		return Identity{}, ErrInvalidToken
	}
	if claims.Subject == "" {
		return Identity{}, ErrNoSubject
	}

	return Identity{ParticipantID: claims.Subject, DisplayName: claims.DisplayName}, nil
}
