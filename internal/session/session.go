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
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/fraudlens/caseflow/model"
	"github.com/redis/go-redis/v9"
)

// ErrSessionNotFound is returned for unknown, ended or expired sessions.
var ErrSessionNotFound = errors.New("session not found")

const keyPrefix = "case-flow:session:"

type Session struct {
	SessionID string     `json:"session_id"`
	ActorID   string     `json:"actor_id"`
	Role      model.Role `json:"role"`
	IssuedAt  time.Time  `json:"issued_at"`
	ExpiresAt time.Time  `json:"expires_at"`
}

func (s *Session) Actor() model.Actor {
	return model.Actor{ID: s.ActorID, Role: s.Role}
}

// Store keeps sessions in redis; expiry is delegated to the key TTL.
type Store struct {
	client redis.UniversalClient
	ttl    time.Duration
}

func NewStore(client redis.UniversalClient, ttl time.Duration) *Store {
	return &Store{client: client, ttl: ttl}
}

func key(sessionID string) string {
	return keyPrefix + sessionID
}

func (s *Store) TTL() time.Duration {
	return s.ttl
}

// Start opens a session for actor.
func (s *Store) Start(ctx context.Context, actor model.Actor) (*Session, error) {
	if actor.ID == "" || !actor.Role.Valid() {
		return nil, fmt.Errorf("invalid actor %q with role %q", actor.ID, actor.Role)
	}

	now := time.Now().UTC()
	sess := &Session{
		SessionID: model.GenerateUUIDWithSuffix("ses"),
		ActorID:   actor.ID,
		Role:      actor.Role,
		IssuedAt:  now,
		ExpiresAt: now.Add(s.ttl),
	}

	data, err := json.Marshal(sess)
	if err != nil {
		return nil, err
	}
	if err := s.client.Set(ctx, key(sess.SessionID), data, s.ttl).Err(); err != nil {
		return nil, err
	}

	return sess, nil
}

func (s *Store) Get(ctx context.Context, sessionID string) (*Session, error) {
	data, err := s.client.Get(ctx, key(sessionID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, err
	}

	sess := &Session{}
	if err := json.Unmarshal(data, sess); err != nil {
		return nil, err
	}
	return sess, nil
}

// End tears the session down. Ending an unknown session is not an error.
func (s *Store) End(ctx context.Context, sessionID string) error {
	return s.client.Del(ctx, key(sessionID)).Err()
}
