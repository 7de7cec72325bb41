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
	"errors"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/fraudlens/caseflow/config"
	"github.com/fraudlens/caseflow/internal/request"
	"github.com/hibiken/asynq"
	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const hookURL = "https://hooks.fraudlens.test/case"

func webhookTask(t *testing.T, event string) *asynq.Task {
	t.Helper()
	b, err := json.Marshal(NewWebhook{Event: event, Payload: map[string]string{"case_id": "FRD-1-ABCDEF"}, Timestamp: time.Now().UTC()})
	require.NoError(t, err)
	return asynq.NewTask(config.DEFAULT_WEBHOOK_QUEUE, b)
}

func mockWebhookConfig(url string) {
	cfg := testConfig()
	cfg.Notification.Webhook.Url = url
	cfg.Notification.Webhook.Headers = map[string]string{"X-FraudLens-Signature": "sig"}
	config.MockConfig(cfg)
}

func TestProcessWebhook(t *testing.T) {
	httpmock.Activate()
	defer httpmock.DeactivateAndReset()
	mockWebhookConfig(hookURL)

	var received map[string]interface{}
	httpmock.RegisterResponder(http.MethodPost, hookURL, func(req *http.Request) (*http.Response, error) {
		assert.Equal(t, "sig", req.Header.Get("X-FraudLens-Signature"))
		body, err := io.ReadAll(req.Body)
		if err != nil {
			return nil, err
		}
		if err := json.Unmarshal(body, &received); err != nil {
			return nil, err
		}
		return httpmock.NewStringResponse(http.StatusOK, ""), nil
	})

	require.NoError(t, ProcessWebhook(context.Background(), webhookTask(t, EventCaseSubmitted)))
	assert.Equal(t, "case.submitted", received["event"])
	assert.Equal(t, "FRD-1-ABCDEF", received["data"].(map[string]interface{})["case_id"])
}

func TestProcessWebhookFailureIsRetried(t *testing.T) {
	httpmock.Activate()
	defer httpmock.DeactivateAndReset()
	mockWebhookConfig(hookURL)
	httpmock.RegisterResponder(http.MethodPost, hookURL, httpmock.NewStringResponder(http.StatusBadGateway, "down"))

	err := ProcessWebhook(context.Background(), webhookTask(t, EventCaseAdvanced))
	var statusErr *request.StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusBadGateway, statusErr.StatusCode)
	assert.False(t, errors.Is(err, asynq.SkipRetry))
}

func TestProcessWebhookMalformedPayloadIsSkipped(t *testing.T) {
	mockWebhookConfig(hookURL)
	err := ProcessWebhook(context.Background(), asynq.NewTask(config.DEFAULT_WEBHOOK_QUEUE, []byte("{not json")))
	assert.ErrorIs(t, err, asynq.SkipRetry)
}

func TestProcessWebhookWithoutURL(t *testing.T) {
	httpmock.Activate()
	defer httpmock.DeactivateAndReset()
	mockWebhookConfig("")

	require.NoError(t, ProcessWebhook(context.Background(), webhookTask(t, EventCaseAdvanced)))
	assert.Zero(t, httpmock.GetTotalCallCount())
}
