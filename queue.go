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
	"encoding/json"
	"fmt"
	"time"

	"github.com/fraudlens/caseflow/config"
	redis_db "github.com/fraudlens/caseflow/internal/redis-db"
	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"
)

// Queue carries case events to the webhook worker.
type Queue struct {
	Client       *asynq.Client
	webhookQueue string
	webhookURL   string
}

// RedisClientOpt derives asynq connection options from the configured redis DNS.
func RedisClientOpt(conf *config.Configuration) (asynq.RedisClientOpt, error) {
	redisOption, err := redis_db.ParseRedisURL(conf.Redis.Dns, conf.Redis.SkipTLSVerify)
	if err != nil {
		return asynq.RedisClientOpt{}, fmt.Errorf("error parsing redis url: %w", err)
	}
	return asynq.RedisClientOpt{Addr: redisOption.Addr, Username: redisOption.Username, Password: redisOption.Password, DB: redisOption.DB, TLSConfig: redisOption.TLSConfig}, nil
}

func NewQueue(conf *config.Configuration) (*Queue, error) {
	opt, err := RedisClientOpt(conf)
	if err != nil {
		return nil, err
	}
	return &Queue{
		Client:       asynq.NewClient(opt),
		webhookQueue: conf.Queue.WebhookQueue,
		webhookURL:   conf.Notification.Webhook.Url,
	}, nil
}

// EnqueueWebhook queues hook for delivery. It is a no-op when no webhook URL is configured.
func (q *Queue) EnqueueWebhook(ctx context.Context, hook NewWebhook) error {
	if q == nil || q.webhookURL == "" {
		return nil
	}

	payload, err := json.Marshal(hook)
	if err != nil {
		return err
	}

	task := asynq.NewTask(q.webhookQueue, payload, asynq.Queue(q.webhookQueue), asynq.MaxRetry(5), asynq.Timeout(30*time.Second))
	info, err := q.Client.EnqueueContext(ctx, task)
	if err != nil {
		return err
	}

	logrus.WithFields(logrus.Fields{"event": hook.Event, "task_id": info.ID}).Debug("webhook enqueued")
	return nil
}

func (q *Queue) Close() error {
	if q == nil || q.Client == nil {
		return nil
	}
	return q.Client.Close()
}
