// Package identity resolves connection credentials to a stable user identity.
package identity

import (
	"context"
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v4"
	"github.com/sirupsen/logrus"
)

var ErrUnauthorized = errors.New("unauthorized")

// Identity is the resolved outcome for one connection.
type Identity struct {
	UserID      string
	DisplayName string
	Anonymous   bool
}

// Verifier is the identity-provider boundary: it turns an opaque token into a
// stable user id and display name, or fails.
type Verifier interface {
	Verify(ctx context.Context, token string) (userID, displayName string, err error)
}

// Resolver prefers explicitly claimed identity over token verification and
// degrades to a per-connection anonymous identity unless strict mode is on.
type Resolver struct {
	verifier Verifier
	strict   bool
	log      *logrus.Entry
}

// NewResolver builds a resolver. verifier may be nil when no identity provider
// is configured; every connection then resolves as claimed or anonymous.
func NewResolver(verifier Verifier, strict bool) *Resolver {
	return &Resolver{
		verifier: verifier,
		strict:   strict,
		log:      logrus.WithField("component", "identity"),
	}
}

// Resolve maps a connection's credentials to an identity. Verification is the
// only potentially slow step in the connect path and runs outside any shared
// lock. In strict mode a failed or missing verification rejects the
// connection; otherwise it downgrades to anonymous.
func (r *Resolver) Resolve(ctx context.Context, token, claimedID, claimedName, connID string) (Identity, error) {
	if claimedID != "" {
		name := claimedName
		if name == "" {
			name = "Anonymous"
		}
		return Identity{UserID: claimedID, DisplayName: name}, nil
	}

	if token != "" && r.verifier != nil {
		userID, name, err := r.verifier.Verify(ctx, token)
		if err == nil {
			if claimedName != "" {
				name = claimedName
			}
			return Identity{UserID: userID, DisplayName: name}, nil
		}
		r.log.WithError(err).Debug("token verification failed")
		if r.strict {
			return Identity{}, ErrUnauthorized
		}
	} else if r.strict {
		return Identity{}, ErrUnauthorized
	}

	return anonymous(connID, claimedName), nil
}

// anonymous synthesizes a per-connection identity, stable only for the
// connection's lifetime.
func anonymous(connID, claimedName string) Identity {
	id := connID
	if len(id) > 6 {
		id = id[:6]
	}
	name := claimedName
	if name == "" {
		name = "Anonymous"
	}
	return Identity{UserID: "anon-" + id, DisplayName: name, Anonymous: true}
}

// JWTVerifier validates HMAC-signed tokens carrying sub and name claims.
type JWTVerifier struct {
	secret []byte
}

// NewJWTVerifier returns nil when no secret is configured, which disables
// verification entirely.
func NewJWTVerifier(secret string) *JWTVerifier {
	if secret == "" {
		return nil
	}
	return &JWTVerifier{secret: []byte(secret)}
}

// Verify parses and validates the token, returning its subject and name.
func (v *JWTVerifier) Verify(_ context.Context, token string) (string, string, error) {
	claims := jwt.MapClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil {
		return "", "", err
	}
	if !parsed.Valid {
		return "", "", ErrUnauthorized
	}

	sub, _ := claims["sub"].(string)
	if sub == "" {
		return "", "", errors.New("token has no subject")
	}
	name, _ := claims["name"].(string)
	if name == "" {
		name = "user-" + sub
	}
	return sub, name, nil
}
