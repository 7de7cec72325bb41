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
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/fraudlens/caseflow/config"
	"github.com/fraudlens/caseflow/internal/session"
	"github.com/fraudlens/caseflow/model"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupSessions(t *testing.T) (*session.Store, *session.TokenSigner) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return session.NewStore(client, time.Hour), session.NewTokenSigner("test-secret", "fraudlens")
}

func protectedRouter(m *AuthMiddleware) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/case-flow/whoami", m.Authenticate(), func(c *gin.Context) {
		actor, ok := ActorFromContext(c)
		if !ok {
			c.Status(http.StatusInternalServerError)
			return
		}
		c.JSON(http.StatusOK, gin.H{"id": actor.ID, "role": actor.Role, "sid": SessionIDFromContext(c)})
	})
	return r
}

func get(r *gin.Engine, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/case-flow/whoami", nil)
	if token != "" {
		req.Header.Set(AuthorizationHeader, token)
	}
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	return resp
}

func TestAuthMiddleware_Authenticate(t *testing.T) {
	store, signer := setupSessions(t)
	ctx := context.Background()

	live, err := store.Start(ctx, model.Actor{ID: "pol_1", Role: model.RolePolice})
	require.NoError(t, err)
	liveToken, err := signer.Sign(live)
	require.NoError(t, err)

	ended, err := store.Start(ctx, model.Actor{ID: "usr_1", Role: model.RoleUser})
	require.NoError(t, err)
	endedToken, err := signer.Sign(ended)
	require.NoError(t, err)
	require.NoError(t, store.End(ctx, ended.SessionID))

	foreign, err := session.NewTokenSigner("other-secret", "fraudlens").Sign(live)
	require.NoError(t, err)

	tests := []struct {
		name         string
		sessions     *session.Store
		header       string
		expectedCode int
	}{
		{"missing header", store, "", http.StatusUnauthorized},
		{"not a bearer token", store, liveToken, http.StatusUnauthorized},
		{"garbage token", store, "Bearer abc.def.ghi", http.StatusUnauthorized},
		{"wrong signing key", store, "Bearer " + foreign, http.StatusUnauthorized},
		{"live session", store, "Bearer " + liveToken, http.StatusOK},
		{"ended session", store, "Bearer " + endedToken, http.StatusUnauthorized},
		{"ended session without store", nil, "Bearer " + endedToken, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := get(protectedRouter(NewAuthMiddleware(signer, tt.sessions)), tt.header)
			assert.Equal(t, tt.expectedCode, resp.Code, resp.Body.String())
		})
	}

	resp := get(protectedRouter(NewAuthMiddleware(signer, store)), "Bearer "+liveToken)
	assert.JSONEq(t, `{"id":"pol_1","role":"police","sid":"`+live.SessionID+`"}`, resp.Body.String())
}

func TestRateLimitMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	rps := 1.0
	burst := 1
	conf := &config.Configuration{RateLimit: config.RateLimitConfig{RequestsPerSecond: &rps, Burst: &burst}}

	r := gin.New()
	r.Use(RateLimitMiddleware(conf))
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	send := func() int {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "10.0.0.1:5000"
		resp := httptest.NewRecorder()
		r.ServeHTTP(resp, req)
		return resp.Code
	}
	assert.Equal(t, http.StatusOK, send())
	assert.Equal(t, http.StatusTooManyRequests, send())
}

func TestRateLimitDisabled(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RateLimitMiddleware(&config.Configuration{}))
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	for i := 0; i < 5; i++ {
		resp := httptest.NewRecorder()
		r.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusOK, resp.Code)
	}
}
