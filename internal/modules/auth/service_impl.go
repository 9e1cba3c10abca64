package auth

import (
	"context"
	"errors"
	"time"

	"github.com/dgrijalva/jwt-go"
	"golang.org/x/crypto/bcrypt"
)

type service struct {
	signingKey []byte
	// clients maps API client ids to bcrypt hashes of their secrets.
	clients map[string]string
}

// NewService creates a new auth service over a static client registry.
func NewService(signingKey []byte, clients map[string]string) Service {
	return &service{signingKey: signingKey, clients: clients}
}

func (s *service) IssueToken(ctx context.Context, clientID, clientSecret string) (string, error) {
	hash, ok := s.clients[clientID]
	if !ok {
		return "", errors.New("invalid credentials")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(clientSecret)); err != nil {
		return "", errors.New("invalid credentials")
	}

	expirationTime := time.Now().Add(12 * time.Hour)
	claims := &jwt.StandardClaims{
		Subject:   clientID,
		ExpiresAt: expirationTime.Unix(),
		IssuedAt:  time.Now().Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.signingKey)
}

func (s *service) Verify(tokenString string) (string, error) {
	claims := &jwt.StandardClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return s.signingKey, nil
	})
	if err != nil || !token.Valid {
		return "", errors.New("invalid token")
	}
	return claims.Subject, nil
}
