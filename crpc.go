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
	"fmt"
	"strings"
	"time"

	"github.com/fraudlens/caseflow/config"
	"github.com/fraudlens/caseflow/model"
)

const RecipientPending = "pending"

// DocumentGenerator produces the Section 91 CrPC notice for a case entering step 3.
// The returned document is persisted by the engine in the same transaction as the step change.
type DocumentGenerator interface {
	Generate(ctx context.Context, c *model.Case, actor model.Actor) (*model.CRPCDocument, error)
}

// NoticeGenerator numbers notices and addresses them to the configured authorities.
// Rendering the notice body happens outside this service; ArtifactRef points at where it will live.
type NoticeGenerator struct {
	prefix          string
	artifactBaseURL string
	recipients      map[string]string
	now             func() time.Time
}

func NewNoticeGenerator(cfg *config.Configuration) *NoticeGenerator {
	return &NoticeGenerator{
		prefix:          cfg.Documents.NumberPrefix,
		artifactBaseURL: strings.TrimRight(cfg.Documents.ArtifactBaseURL, "/"),
		recipients:      cfg.AuthorityAddresses(),
		now:             time.Now,
	}
}

// DocumentNumber formats <prefix>/<year>/<case suffix>.
func DocumentNumber(prefix string, at time.Time, caseID string) string {
	return fmt.Sprintf("%s/%d/%s", prefix, at.Year(), model.CaseSuffix(caseID))
}

func (g *NoticeGenerator) Generate(_ context.Context, c *model.Case, actor model.Actor) (*model.CRPCDocument, error) {
	if c == nil {
		return nil, fmt.Errorf("no case to generate a notice for")
	}

	at := g.now().UTC()
	doc := &model.CRPCDocument{
		DocumentID:     model.GenerateUUIDWithSuffix("doc"),
		DocumentNumber: DocumentNumber(g.prefix, at, c.CaseID),
		CaseID:         c.CaseID,
		GeneratedBy:    actor.ID,
		Recipients:     make(map[string]model.Recipient, len(model.RecipientCategories)),
		GeneratedAt:    at,
	}
	for _, category := range model.RecipientCategories {
		doc.Recipients[category] = model.Recipient{Address: g.recipients[category], Status: RecipientPending}
	}
	if g.artifactBaseURL != "" {
		doc.ArtifactRef = fmt.Sprintf("%s/%s.pdf", g.artifactBaseURL, doc.DocumentID)
	}

	return doc, nil
}

// GetCRPCDocuments lists the notices generated for a case the actor may view.
func (cf *CaseFlow) GetCRPCDocuments(ctx context.Context, caseID string, actor model.Actor) ([]model.CRPCDocument, error) {
	if _, err := cf.viewableCase(ctx, caseID, actor); err != nil {
		return nil, err
	}
	return cf.datasource.GetCRPCDocumentsByCase(ctx, caseID)
}

// GetCRPCDocument returns one notice if the actor may view the case it belongs to.
func (cf *CaseFlow) GetCRPCDocument(ctx context.Context, documentID string, actor model.Actor) (*model.CRPCDocument, error) {
	doc, err := cf.datasource.GetCRPCDocument(ctx, documentID)
	if err != nil {
		return nil, err
	}
	if _, err := cf.viewableCase(ctx, doc.CaseID, actor); err != nil {
		return nil, err
	}
	return doc, nil
}
