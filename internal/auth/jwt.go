// Package auth issues and verifies the HS256 tokens that carry a
// participant identity in the sub claim.
package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/seeitsmanish/SongCircle/internal/domain"
)

var ErrNoSubject = errors.New("token has no subject")

// JWT wraps a signing secret for issuing/verifying tokens.
type JWT struct {
	secret []byte
}

func New(secret string) *JWT { return &JWT{secret: []byte(secret)} }

// Verify checks a token and returns the participant id from the sub claim.
func (j *JWT) Verify(token string) (domain.ParticipantID, error) {
	claims := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return j.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Name}))
	if err != nil {
		return "", err
	}
	sub, _ := claims["sub"].(string)
	if sub == "" {
		return "", ErrNoSubject
	}
	return domain.ParticipantID(sub), nil
}

// Sign creates a token for a participant with the given TTL.
func (j *JWT) Sign(pid domain.ParticipantID, ttl time.Duration) (string, error) {
	if pid == "" {
		return "", ErrNoSubject
	}
	claims := jwt.MapClaims{
		"sub": string(pid),
		"iat": time.Now().Unix(),
		"exp": time.Now().Add(ttl).Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(j.secret)
}
