/*
Copyright 2024 FraudLens Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package session

import (
	"errors"
	"fmt"
	"time"

	"github.com/fraudlens/caseflow/model"
	"github.com/golang-jwt/jwt/v5"
)

var ErrInvalidToken = errors.New("invalid token")

// Claims carries the actor and its session id inside an HS256 bearer token.
type Claims struct {
	Role      model.Role `json:"role"`
	SessionID string     `json:"sid,omitempty"`
	jwt.RegisteredClaims
}

func (c *Claims) Actor() model.Actor {
	return model.Actor{ID: c.Subject, Role: c.Role}
}

type TokenSigner struct {
	secret []byte
	issuer string
}

func NewTokenSigner(secret, issuer string) *TokenSigner {
	return &TokenSigner{secret: []byte(secret), issuer: issuer}
}

// Sign issues a token for sess that expires with it.
func (t *TokenSigner) Sign(sess *Session) (string, error) {
	claims := Claims{
		Role:      sess.Role,
		SessionID: sess.SessionID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sess.ActorID,
			Issuer:    t.issuer,
			IssuedAt:  jwt.NewNumericDate(sess.IssuedAt),
			ExpiresAt: jwt.NewNumericDate(sess.ExpiresAt),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
}

// Parse verifies signature, expiry and issuer and returns the claims.
func (t *TokenSigner) Parse(token string) (*Claims, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithLeeway(5 * time.Second)}
	if t.issuer != "" {
		opts = append(opts, jwt.WithIssuer(t.issuer))
	}

	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return t.secret, nil
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !parsed.Valid || claims.Subject == "" || !claims.Role.Valid() {
		return nil, ErrInvalidToken
	}

	return claims, nil
}
