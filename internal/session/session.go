// Package session issues and verifies the tokens that bind a websocket
// connection to a username, room and role.
package session

import (
	"errors"
	"fmt"
	"time"

	"github.com/DoyleJ11/franchise-auction/internal/engine"
	"github.com/golang-jwt/jwt/v5"
)

const issuer = "franchise-auction"

var ErrInvalidToken = errors.New("invalid session token")

type Identity struct {
	Username string
	Room     string
	Role     engine.Role
}

type Claims struct {
	Room string      `json:"room"`
	Role engine.Role `json:"role"`
	jwt.RegisteredClaims
}

type Issuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewIssuer(secret string, ttl time.Duration) *Issuer {
	return &Issuer{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// WithClock replaces the time source; used by tests.
func (i *Issuer) WithClock(now func() time.Time) *Issuer {
	i.now = now
	return i
}

func (i *Issuer) Issue(id Identity) (string, error) {
	now := i.now()
	claims := Claims{
		Room: id.Room,
		Role: id.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   id.Username,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("sign session token: %w", err)
	}
	return token, nil
}

func (i *Issuer) Verify(raw string) (Identity, error) {
	var claims Claims
	_, err := jwt.ParseWithClaims(raw, &claims, func(*jwt.Token) (any, error) {
		return i.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if claims.Subject == "" || claims.Room == "" {
		return Identity{}, fmt.Errorf("%w: missing subject or room", ErrInvalidToken)
	}
	switch claims.Role {
	case engine.RoleController, engine.RoleParticipant:
	default:
		return Identity{}, fmt.Errorf("%w: role %q", ErrInvalidToken, claims.Role)
	}
	return Identity{Username: claims.Subject, Room: claims.Room, Role: claims.Role}, nil
}
