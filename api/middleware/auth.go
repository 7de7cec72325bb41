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

package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/fraudlens/caseflow/internal/session"
	"github.com/fraudlens/caseflow/model"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

const (
	AuthorizationHeader = "Authorization"
	bearerPrefix        = "Bearer "
	actorKey            = "actor"
	sessionKey          = "sessionID"
)

// AuthMiddleware turns a bearer token into the actor of the request.
type AuthMiddleware struct {
	signer   *session.TokenSigner
	sessions *session.Store
}

// NewAuthMiddleware creates the middleware. When sessions is nil the token alone is trusted;
// otherwise its session id must resolve to a live session.
func NewAuthMiddleware(signer *session.TokenSigner, sessions *session.Store) *AuthMiddleware {
	return &AuthMiddleware{signer: signer, sessions: sessions}
}

func abortWith(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, gin.H{"code": code, "message": message})
}

// Authenticate verifies the bearer token and stores the actor on the context.
//
// Responses:
// - 401 Unauthorized: when the token is missing, malformed, expired or its session has ended.
func (m *AuthMiddleware) Authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := extractToken(c)
		if token == "" {
			abortWith(c, http.StatusUnauthorized, "UNAUTHENTICATED", "Authentication required. Use the Authorization: Bearer header")
			return
		}

		claims, err := m.signer.Parse(token)
		if err != nil {
			abortWith(c, http.StatusUnauthorized, "UNAUTHENTICATED", "Invalid or expired token")
			return
		}

		if m.sessions != nil {
			sess, err := m.sessions.Get(c.Request.Context(), claims.SessionID)
			if errors.Is(err, session.ErrSessionNotFound) {
				abortWith(c, http.StatusUnauthorized, "UNAUTHENTICATED", "Session has ended")
				return
			}
			if err != nil {
				logrus.WithError(err).Error("session lookup failed")
				abortWith(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "Could not verify session")
				return
			}
			if sess.ActorID != claims.Subject || sess.Role != claims.Role {
				abortWith(c, http.StatusUnauthorized, "UNAUTHENTICATED", "Token does not match its session")
				return
			}
		}

		c.Set(actorKey, claims.Actor())
		c.Set(sessionKey, claims.SessionID)
		c.Next()
	}
}

// extractToken retrieves the bearer token from the Authorization header.
func extractToken(c *gin.Context) string {
	header := c.GetHeader(AuthorizationHeader)
	if !strings.HasPrefix(header, bearerPrefix) {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(header, bearerPrefix))
}

// ActorFromContext returns the actor Authenticate stored on c.
func ActorFromContext(c *gin.Context) (model.Actor, bool) {
	v, ok := c.Get(actorKey)
	if !ok {
		return model.Actor{}, false
	}
	actor, ok := v.(model.Actor)
	return actor, ok
}

// SessionIDFromContext returns the session id carried by the request token, if any.
func SessionIDFromContext(c *gin.Context) string {
	return c.GetString(sessionKey)
}
