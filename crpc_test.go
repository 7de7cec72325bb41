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
	"testing"
	"time"

	"github.com/fraudlens/caseflow/internal/apierror"
	"github.com/fraudlens/caseflow/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDocumentNumber(t *testing.T) {
	at := time.Date(2026, 5, 4, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, "91CRPC/2026/3F9A1C", DocumentNumber("91CRPC", at, "FRD-1718000000000-3F9A1C"))
	assert.Equal(t, "N/2026/legacy", DocumentNumber("N", at, "legacy"))
}

func TestNoticeGenerator(t *testing.T) {
	g := NewNoticeGenerator(testConfig())
	g.now = func() time.Time { return time.Date(2026, 7, 1, 10, 0, 0, 0, time.UTC) }

	c := &model.Case{CaseID: "FRD-1718000000000-ABC123"}
	doc, err := g.Generate(context.Background(), c, admin)
	require.NoError(t, err)

	assert.Contains(t, doc.DocumentID, "doc_")
	assert.Equal(t, "91CRPC/2026/ABC123", doc.DocumentNumber)
	assert.Equal(t, c.CaseID, doc.CaseID)
	assert.Equal(t, admin.ID, doc.GeneratedBy)
	assert.Equal(t, "https://files.fraudlens.test/notices/"+doc.DocumentID+".pdf", doc.ArtifactRef)
	require.Len(t, doc.Recipients, 3)
	assert.Equal(t, model.Recipient{Address: "nodal@authority.test", Status: RecipientPending}, doc.Recipients[model.RecipientNodal])

	_, err = g.Generate(context.Background(), nil, admin)
	assert.Error(t, err)
}

func TestNoticeGeneratorWithoutArtifactStore(t *testing.T) {
	cfg := testConfig()
	cfg.Documents.ArtifactBaseURL = ""
	doc, err := NewNoticeGenerator(cfg).Generate(context.Background(), &model.Case{CaseID: "FRD-1-ABCDEF"}, admin)
	require.NoError(t, err)
	assert.Empty(t, doc.ArtifactRef)
}

func TestGetCRPCDocumentVisibility(t *testing.T) {
	cf, store, _ := newTestFlow(t)
	ctx := context.Background()
	store.seedCase("FRD-1-YYYYYY", model.StepVerified, reporter.ID, "")

	status, err := cf.Advance(ctx, "FRD-1-YYYYYY", model.StepCRPCGenerated, admin, AdvanceParams{})
	require.NoError(t, err)
	docID := status.Case.CRPCDocumentID
	require.NotEmpty(t, docID)

	doc, err := cf.GetCRPCDocument(ctx, docID, reporter)
	require.NoError(t, err)
	assert.Equal(t, "FRD-1-YYYYYY", doc.CaseID)

	_, err = cf.GetCRPCDocument(ctx, docID, model.Actor{ID: "usr_2", Role: model.RoleUser})
	assert.True(t, apierror.Is(err, apierror.ErrUnauthorized))

	_, err = cf.GetCRPCDocuments(ctx, "FRD-1-YYYYYY", officer)
	assert.True(t, apierror.Is(err, apierror.ErrUnauthorized))

	_, err = cf.GetCRPCDocument(ctx, "doc_missing", admin)
	assert.True(t, apierror.Is(err, apierror.ErrNotFound))
}
