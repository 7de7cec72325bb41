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
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/fraudlens/caseflow/config"
	"github.com/fraudlens/caseflow/internal/request"
	"github.com/fraudlens/caseflow/model"
	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Notifier delivers the notice of a case entering step 4 to every recipient category.
// The returned map holds one outcome per category; an error means at least one category failed.
type Notifier interface {
	Notify(ctx context.Context, c *model.Case, doc *model.CRPCDocument) (map[string]model.Delivery, error)
}

// ErrRelayNotConfigured is returned when no mail relay URL is set.
var ErrRelayNotConfigured = errors.New("mail relay is not configured")

type relayMessage struct {
	From           string `json:"from"`
	To             string `json:"to"`
	Subject        string `json:"subject"`
	Body           string `json:"body"`
	CaseID         string `json:"case_id"`
	Category       string `json:"category"`
	DocumentID     string `json:"document_id,omitempty"`
	DocumentNumber string `json:"document_number,omitempty"`
	ArtifactRef    string `json:"artifact_ref,omitempty"`
}

// MailRelayNotifier hands each notice to an HTTP mail relay, retrying transient failures.
type MailRelayNotifier struct {
	relayURL    string
	from        string
	headers     map[string]string
	timeout     time.Duration
	maxAttempts int
	recipients  map[string]string
	now         func() time.Time
	backoff     func() backoff.BackOff
}

func NewMailRelayNotifier(cfg *config.Configuration) *MailRelayNotifier {
	return &MailRelayNotifier{
		relayURL:    cfg.Notification.Mail.RelayURL,
		from:        cfg.Notification.Mail.From,
		headers:     cfg.Notification.Mail.Headers,
		timeout:     time.Duration(cfg.Notification.Mail.TimeoutSec) * time.Second,
		maxAttempts: cfg.Notification.Mail.MaxAttempts,
		recipients:  cfg.AuthorityAddresses(),
		now:         time.Now,
		backoff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 200 * time.Millisecond
			b.MaxInterval = 2 * time.Second
			return b
		},
	}
}

func noticeMessage(from, category, address string, c *model.Case, doc *model.CRPCDocument) relayMessage {
	msg := relayMessage{
		From:     from,
		To:       address,
		Category: category,
		CaseID:   c.CaseID,
		Subject:  fmt.Sprintf("Notice under Section 91 CrPC for case %s", c.CaseID),
		Body: fmt.Sprintf("A %s complaint involving a loss of INR %s on %s has been registered as case %s. "+
			"Please preserve and furnish the records relating to this incident.",
			strings.ReplaceAll(string(c.CaseType), "_", " "), c.AmountLost.StringFixed(2), c.IncidentDate.Format("02 Jan 2006"), c.CaseID),
	}
	if doc != nil {
		msg.DocumentID = doc.DocumentID
		msg.DocumentNumber = doc.DocumentNumber
		msg.ArtifactRef = doc.ArtifactRef
		msg.Subject = fmt.Sprintf("Notice %s under Section 91 CrPC for case %s", doc.DocumentNumber, c.CaseID)
	}
	return msg
}

func (n *MailRelayNotifier) send(ctx context.Context, msg relayMessage) error {
	operation := func() error {
		req, err := request.NewJSONRequest(http.MethodPost, n.relayURL, msg, n.headers)
		if err != nil {
			return backoff.Permanent(err)
		}
		_, err = request.CallWithTimeout(req.WithContext(ctx), nil, n.timeout)
		var statusErr *request.StatusError
		if errors.As(err, &statusErr) && statusErr.StatusCode < http.StatusInternalServerError && statusErr.StatusCode != http.StatusTooManyRequests {
			return backoff.Permanent(err)
		}
		return err
	}

	attempts := n.maxAttempts
	if attempts < 1 {
		attempts = 1
	}
	policy := backoff.WithContext(backoff.WithMaxRetries(n.backoff(), uint64(attempts-1)), ctx)

	return backoff.RetryNotify(operation, policy, func(err error, wait time.Duration) {
		logrus.WithFields(logrus.Fields{
			"case_id":  msg.CaseID,
			"category": msg.Category,
			"retry_in": wait.String(),
		}).WithError(err).Warn("mail relay delivery failed, retrying")
	})
}

// Notify attempts every category even after a failure so the case records the full outcome.
func (n *MailRelayNotifier) Notify(ctx context.Context, c *model.Case, doc *model.CRPCDocument) (map[string]model.Delivery, error) {
	if n.relayURL == "" {
		return nil, ErrRelayNotConfigured
	}

	deliveries := make(map[string]model.Delivery, len(model.RecipientCategories))
	var failed []string

	for _, category := range model.RecipientCategories {
		address := n.recipients[category]
		delivery := model.Delivery{Address: address, Status: model.DeliverySent}

		var err error
		if address == "" {
			err = fmt.Errorf("no address configured for %s", category)
		} else {
			err = n.send(ctx, noticeMessage(n.from, category, address, c, doc))
		}
		delivery.At = n.now().UTC()

		if err != nil {
			delivery.Status = model.DeliveryFailed
			delivery.Error = err.Error()
			failed = append(failed, category)
		}
		deliveries[category] = delivery
	}

	if len(failed) > 0 {
		sort.Strings(failed)
		return deliveries, pkgerrors.Errorf("notice delivery failed for %s", strings.Join(failed, ", "))
	}

	return deliveries, nil
}
