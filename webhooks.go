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
	"net/http"
	"time"

	"github.com/fraudlens/caseflow/config"
	"github.com/fraudlens/caseflow/internal/request"
	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"
)

// Case events published to the configured webhook.
const (
	EventCaseSubmitted   = "case.submitted"
	EventCaseAdvanced    = "case.advanced"
	EventCaseOverridden  = "case.force_advanced"
	EventCaseStageFailed = "case.stage_failed"
	EventCaseRepaired    = "case.repaired"
)

// NewWebhook is the envelope posted to the webhook URL.
type NewWebhook struct {
	Event     string      `json:"event"`
	Payload   interface{} `json:"data"`
	Timestamp time.Time   `json:"timestamp"`
}

func processHTTP(ctx context.Context, conf *config.Configuration, data json.RawMessage) error {
	req, err := request.NewJSONRequest(http.MethodPost, conf.Notification.Webhook.Url, data, conf.Notification.Webhook.Headers)
	if err != nil {
		return err
	}
	_, err = request.CallWithTimeout(req.WithContext(ctx), nil, 20*time.Second)
	return err
}

// ProcessWebhook delivers one queued webhook. A returned error makes asynq retry the task.
func ProcessWebhook(ctx context.Context, task *asynq.Task) error {
	conf, err := config.Fetch()
	if err != nil {
		return err
	}

	if conf.Notification.Webhook.Url == "" {
		return nil
	}

	var envelope struct {
		Event string `json:"event"`
	}
	if err := json.Unmarshal(task.Payload(), &envelope); err != nil {
		logrus.WithError(err).Error("dropping malformed webhook task")
		return asynq.SkipRetry
	}

	logrus.WithField("event", envelope.Event).Info("processing webhook")
	return processHTTP(ctx, conf, json.RawMessage(task.Payload()))
}
