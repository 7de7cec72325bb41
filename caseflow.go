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

package caseflow

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/fraudlens/caseflow/config"
	"github.com/fraudlens/caseflow/database"
	"github.com/fraudlens/caseflow/internal/apierror"
	"github.com/fraudlens/caseflow/internal/cache"
	redlock "github.com/fraudlens/caseflow/internal/lock"
	"github.com/fraudlens/caseflow/internal/notification"
	redis_db "github.com/fraudlens/caseflow/internal/redis-db"
	"github.com/fraudlens/caseflow/model"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

//go:embed sql/*.sql
var SQLFiles embed.FS

var tracer = otel.Tracer("fraudlens.caseflow")

const statusCachePrefix = "case-flow:status:"

// CaseFlow is the case lifecycle service. It is the only writer of a case's step and timeline.
type CaseFlow struct {
	datasource database.IDataSource
	redis      redis.UniversalClient
	queue      *Queue
	cache      cache.Cache
	generator  DocumentGenerator
	notifier   Notifier
	lockTTL    time.Duration
	repairWait time.Duration
	statusTTL  time.Duration
	now        func() time.Time
}

type Option func(*CaseFlow)

func WithDocumentGenerator(g DocumentGenerator) Option {
	return func(cf *CaseFlow) { cf.generator = g }
}

func WithNotifier(n Notifier) Option {
	return func(cf *CaseFlow) { cf.notifier = n }
}

func WithQueue(q *Queue) Option {
	return func(cf *CaseFlow) { cf.queue = q }
}

// WithCache overrides the status cache. A nil cache disables caching.
func WithCache(c cache.Cache) Option {
	return func(cf *CaseFlow) { cf.cache = c }
}

func WithClock(now func() time.Time) Option {
	return func(cf *CaseFlow) { cf.now = now }
}

// New wires a CaseFlow from explicit dependencies. Collaborators default to the
// notice generator and mail relay notifier built from cfg.
func New(db database.IDataSource, redisClient redis.UniversalClient, cfg *config.Configuration, opts ...Option) *CaseFlow {
	cf := &CaseFlow{
		datasource: db,
		redis:      redisClient,
		cache:      cache.NewCache(redisClient),
		generator:  NewNoticeGenerator(cfg),
		notifier:   NewMailRelayNotifier(cfg),
		lockTTL:    durationOrDefault(time.Duration(cfg.CaseFlow.LockTTLSec)*time.Second, config.DEFAULT_CASE_LOCK_TTL_SEC*time.Second),
		repairWait: 5 * time.Second,
		statusTTL:  durationOrDefault(time.Duration(cfg.CaseFlow.StatusCacheSec)*time.Second, config.DEFAULT_STATUS_CACHE_SEC*time.Second),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(cf)
	}
	return cf
}

// NewCaseFlow builds the service from the loaded configuration, connecting to redis and the webhook queue.
func NewCaseFlow(db database.IDataSource, opts ...Option) (*CaseFlow, error) {
	cfg, err := config.Fetch()
	if err != nil {
		return nil, err
	}

	redisClient, err := redis_db.NewFromConfig(cfg.Redis)
	if err != nil {
		return nil, err
	}

	queue, err := NewQueue(cfg)
	if err != nil {
		return nil, err
	}

	return New(db, redisClient.Client(), cfg, append([]Option{WithQueue(queue)}, opts...)...), nil
}

func durationOrDefault(d, fallback time.Duration) time.Duration {
	if d <= 0 {
		return fallback
	}
	return d
}

// Redis exposes the client the service locks and caches with, so sessions can share it.
func (cf *CaseFlow) Redis() redis.UniversalClient {
	return cf.redis
}

func (cf *CaseFlow) Close() error {
	return cf.queue.Close()
}

func logAndRecordError(span trace.Span, msg string, err error) error {
	span.RecordError(err)
	logrus.WithError(err).Error(msg)
	return err
}

func (cf *CaseFlow) acquireCaseLock(ctx context.Context, caseID string) (*redlock.Locker, error) {
	locker := redlock.NewCaseLocker(cf.redis, caseID, model.GenerateUUIDWithSuffix("loc"))
	err := locker.Lock(ctx, cf.lockTTL)
	if errors.Is(err, redlock.ErrLockHeld) {
		return nil, apierror.NewAPIError(apierror.ErrConflict, fmt.Sprintf("Case '%s' is being updated by another request", caseID), nil)
	}
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to acquire case lock", err)
	}
	return locker, nil
}

func releaseCaseLock(ctx context.Context, locker *redlock.Locker) {
	if err := locker.Unlock(context.WithoutCancel(ctx)); err != nil {
		logrus.WithField("key", locker.Key()).WithError(err).Warn("failed to release case lock")
	}
}

func statusKey(caseID string) string {
	return statusCachePrefix + caseID
}

// refreshStatus rereads the committed projection and overwrites the cached copy. Callers hold the
// case lock, so no other write can land between the read and the Set.
func (cf *CaseFlow) refreshStatus(ctx context.Context, caseID string) (*model.CaseStatus, error) {
	ctx = context.WithoutCancel(ctx)
	status, err := cf.datasource.GetCaseStatus(ctx, caseID)
	if err != nil {
		cf.invalidateStatus(ctx, caseID)
		return nil, err
	}
	if cf.cache != nil {
		if err := cf.cache.Set(ctx, statusKey(caseID), status, cf.statusTTL); err != nil {
			logrus.WithField("case_id", caseID).WithError(err).Warn("failed to refresh cached case status")
			cf.invalidateStatus(ctx, caseID)
		}
	}
	return status, nil
}

// syncStatus refreshes the cached projection after a write whose result is not returned.
func (cf *CaseFlow) syncStatus(ctx context.Context, caseID string) {
	if cf.cache == nil {
		return
	}
	if _, err := cf.refreshStatus(ctx, caseID); err != nil {
		logrus.WithField("case_id", caseID).WithError(err).Warn("failed to reread case status")
	}
}

func (cf *CaseFlow) invalidateStatus(ctx context.Context, caseID string) {
	if cf.cache == nil {
		return
	}
	if err := cf.cache.Delete(context.WithoutCancel(ctx), statusKey(caseID)); err != nil {
		logrus.WithField("case_id", caseID).WithError(err).Warn("failed to invalidate cached case status")
	}
}

// postCaseEvent publishes a webhook after a committed change. Failures are reported, never returned,
// because the change they describe has already happened.
func (cf *CaseFlow) postCaseEvent(ctx context.Context, event string, payload interface{}) {
	err := cf.queue.EnqueueWebhook(context.WithoutCancel(ctx), NewWebhook{
		Event:     event,
		Payload:   payload,
		Timestamp: cf.now().UTC(),
	})
	if err != nil {
		notification.NotifyError(fmt.Errorf("failed to enqueue %s webhook: %w", event, err))
	}
}
