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
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/fraudlens/caseflow/config"
	"github.com/fraudlens/caseflow/internal/apierror"
	"github.com/fraudlens/caseflow/model"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

// memStore is an in-memory datasource with the same transactional guarantees as the
// postgres one: a version guard on every case update and one timeline entry per stage.
type memStore struct {
	mu        sync.Mutex
	seq       int64
	cases     map[string]*model.Case
	timelines map[string][]model.TimelineEntry
	documents map[string]model.CRPCDocument
	scammers  map[string]*model.Scammer
	failures  []model.StageError

	// failApply makes the next ApplyStageTransition fail with the given error.
	failApply error
}

func newMemStore() *memStore {
	return &memStore{
		cases:     make(map[string]*model.Case),
		timelines: make(map[string][]model.TimelineEntry),
		documents: make(map[string]model.CRPCDocument),
		scammers:  make(map[string]*model.Scammer),
	}
}

func (m *memStore) nextID() int64 {
	m.seq++
	return m.seq
}

func (m *memStore) hasStage(caseID, stage string) bool {
	for _, e := range m.timelines[caseID] {
		if e.Stage == stage {
			return true
		}
	}
	return false
}

func (m *memStore) CreateCase(_ context.Context, c *model.Case, initial *model.TimelineEntry, scammer *model.Scammer) (*model.Case, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.cases[c.CaseID]; ok {
		return nil, apierror.NewAPIError(apierror.ErrConflict, "case exists", nil)
	}
	stored := *c
	stored.ID = m.nextID()
	stored.Version = 1

	if scammer != nil {
		scammer.Normalize()
	}
	if scammer != nil && scammer.HasIdentifier() {
		var match *model.Scammer
		for _, s := range m.scammers {
			if (scammer.Phone != "" && s.Phone == scammer.Phone) || (scammer.Email != "" && s.Email == scammer.Email) ||
				(scammer.UPIID != "" && s.UPIID == scammer.UPIID) || (scammer.BankAccount != "" && s.BankAccount == scammer.BankAccount) {
				match = s
				break
			}
		}
		if match == nil {
			match = &model.Scammer{ScammerID: model.GenerateUUIDWithSuffix("scm"), Name: scammer.Name, Phone: scammer.Phone,
				Email: scammer.Email, UPIID: scammer.UPIID, BankAccount: scammer.BankAccount}
			m.scammers[match.ScammerID] = match
		}
		match.CaseCount++
		match.CaseIDs = append(match.CaseIDs, stored.CaseID)
		*scammer = *match
		stored.ScammerID = match.ScammerID
	}

	entry := *initial
	entry.ID = m.nextID()
	m.cases[stored.CaseID] = &stored
	m.timelines[stored.CaseID] = []model.TimelineEntry{entry}

	out := stored
	return &out, nil
}

func (m *memStore) GetCaseByID(_ context.Context, caseID string) (*model.Case, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.cases[caseID]
	if !ok {
		return nil, apierror.NewAPIError(apierror.ErrNotFound, fmt.Sprintf("case with ID '%s' not found", caseID), nil)
	}
	out := *c
	return &out, nil
}

func (m *memStore) listWhere(keep func(*model.Case) bool, limit, offset int) []model.Case {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Case
	for _, c := range m.cases {
		if keep(c) {
			out = append(out, *c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	if offset >= len(out) {
		return []model.Case{}
	}
	out = out[offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

func (m *memStore) GetAllCases(_ context.Context, limit, offset int) ([]model.Case, error) {
	return m.listWhere(func(*model.Case) bool { return true }, limit, offset), nil
}

func (m *memStore) GetCasesByReporter(_ context.Context, reporterID string, limit, offset int) ([]model.Case, error) {
	return m.listWhere(func(c *model.Case) bool { return c.ReporterID == reporterID }, limit, offset), nil
}

func (m *memStore) GetCasesByOfficer(_ context.Context, officerID string, limit, offset int) ([]model.Case, error) {
	return m.listWhere(func(c *model.Case) bool { return c.AssignedPolice == officerID }, limit, offset), nil
}

func (m *memStore) GetCaseIDsPaginated(_ context.Context, limit, offset int) ([]string, error) {
	all := m.listWhere(func(*model.Case) bool { return true }, len(m.cases)+1, 0)
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })
	ids := []string{}
	for i := offset; i < len(all) && len(ids) < limit; i++ {
		ids = append(ids, all[i].CaseID)
	}
	return ids, nil
}

func (m *memStore) ApplyStageTransition(_ context.Context, t *model.StageTransition) (*model.Case, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.failApply != nil {
		err := m.failApply
		m.failApply = nil
		return nil, err
	}

	c, ok := m.cases[t.CaseID]
	if !ok || c.CurrentStep != t.FromStep || c.Version != t.ExpectedVersion {
		return nil, apierror.NewAPIError(apierror.ErrConflict, "case was modified concurrently", nil)
	}
	if m.hasStage(t.CaseID, t.Entry.Stage) {
		return nil, apierror.NewAPIError(apierror.ErrDuplicateTimelineEntry, "stage already recorded", nil)
	}

	updated := *c
	if t.Document != nil {
		doc := *t.Document
		doc.ID = m.nextID()
		m.documents[doc.DocumentID] = doc
		updated.CRPCDocumentID = doc.DocumentID
	}
	if t.Notifications != nil {
		updated.Notifications = t.Notifications
		if doc, ok := m.documents[updated.CRPCDocumentID]; ok {
			for category, d := range t.Notifications {
				doc.Recipients[category] = model.Recipient{Address: d.Address, Status: d.Status}
			}
			m.documents[doc.DocumentID] = doc
		}
	}
	if t.AssignedPolice != "" {
		updated.AssignedPolice = t.AssignedPolice
	}
	updated.CurrentStep = t.ToStep
	updated.Version++
	updated.LastError = nil
	updated.UpdatedAt = time.Now().UTC()

	entry := t.Entry
	entry.ID = m.nextID()
	m.cases[t.CaseID] = &updated
	m.timelines[t.CaseID] = append(m.timelines[t.CaseID], entry)

	out := updated
	return &out, nil
}

func (m *memStore) RecordStageFailure(_ context.Context, caseID string, failure model.StageError) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.cases[caseID]
	if !ok {
		return apierror.NewAPIError(apierror.ErrNotFound, "case not found", nil)
	}
	f := failure
	c.LastError = &f
	m.failures = append(m.failures, failure)
	return nil
}

func (m *memStore) GetCaseStatus(_ context.Context, caseID string) (*model.CaseStatus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.cases[caseID]
	if !ok {
		return nil, apierror.NewAPIError(apierror.ErrNotFound, fmt.Sprintf("case with ID '%s' not found", caseID), nil)
	}
	return &model.CaseStatus{Case: *c, Timeline: m.sortedTimeline(caseID)}, nil
}

func (m *memStore) sortedTimeline(caseID string) []model.TimelineEntry {
	out := make([]model.TimelineEntry, len(m.timelines[caseID]))
	copy(out, m.timelines[caseID])
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (m *memStore) ApplyTimelineRepair(_ context.Context, r *model.TimelineRepair) (*model.Case, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.cases[r.CaseID]
	if !ok || c.Version != r.ExpectedVersion {
		return nil, apierror.NewAPIError(apierror.ErrConflict, "case was modified concurrently", nil)
	}

	drop := make(map[string]bool, len(r.DeleteEntryIDs))
	for _, id := range r.DeleteEntryIDs {
		drop[id] = true
	}
	kept := m.timelines[r.CaseID][:0]
	for _, e := range m.timelines[r.CaseID] {
		if !drop[e.EntryID] {
			kept = append(kept, e)
		}
	}
	if r.Insert != nil {
		entry := *r.Insert
		entry.ID = m.nextID()
		kept = append(kept, entry)
	}
	m.timelines[r.CaseID] = kept

	updated := *c
	if r.SetStep != nil {
		updated.CurrentStep = *r.SetStep
	}
	updated.Version++
	m.cases[r.CaseID] = &updated

	out := updated
	return &out, nil
}

func (m *memStore) GetScammerByID(_ context.Context, scammerID string) (*model.Scammer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.scammers[scammerID]
	if !ok {
		return nil, apierror.NewAPIError(apierror.ErrNotFound, "scammer not found", nil)
	}
	out := *s
	return &out, nil
}

func (m *memStore) GetCRPCDocument(_ context.Context, documentID string) (*model.CRPCDocument, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.documents[documentID]
	if !ok {
		return nil, apierror.NewAPIError(apierror.ErrNotFound, "document not found", nil)
	}
	return &doc, nil
}

func (m *memStore) GetCRPCDocumentsByCase(_ context.Context, caseID string) ([]model.CRPCDocument, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	docs := []model.CRPCDocument{}
	for _, doc := range m.documents {
		if doc.CaseID == caseID {
			docs = append(docs, doc)
		}
	}
	return docs, nil
}

// seedCase stores a case at step directly, with one timeline entry per step passed.
func (m *memStore) seedCase(caseID string, step model.Step, reporter, officer string) *model.Case {
	m.mu.Lock()
	defer m.mu.Unlock()

	created := time.Now().UTC().Add(-time.Hour)
	c := &model.Case{
		ID: m.nextID(), CaseID: caseID, CaseType: model.CaseTypeUPIFraud, Description: "seeded",
		AmountLost: decimal.NewFromInt(1000), IncidentDate: created, ReporterID: reporter,
		AssignedPolice: officer, Evidence: []string{}, CurrentStep: step, Version: 1, CreatedAt: created, UpdatedAt: created,
	}
	m.cases[caseID] = c
	for s := model.StepSubmitted; s <= step; s++ {
		entry := model.NewTimelineEntry(caseID, s, "", model.Actor{ID: "seed", Role: model.RoleAdmin}, created.Add(time.Duration(s)*time.Minute))
		entry.ID = m.nextID()
		m.timelines[caseID] = append(m.timelines[caseID], entry)
	}
	return c
}

type generatorFunc func(ctx context.Context, c *model.Case, actor model.Actor) (*model.CRPCDocument, error)

func (f generatorFunc) Generate(ctx context.Context, c *model.Case, actor model.Actor) (*model.CRPCDocument, error) {
	return f(ctx, c, actor)
}

type notifierFunc func(ctx context.Context, c *model.Case, doc *model.CRPCDocument) (map[string]model.Delivery, error)

func (f notifierFunc) Notify(ctx context.Context, c *model.Case, doc *model.CRPCDocument) (map[string]model.Delivery, error) {
	return f(ctx, c, doc)
}

func okNotifier() Notifier {
	return notifierFunc(func(_ context.Context, _ *model.Case, _ *model.CRPCDocument) (map[string]model.Delivery, error) {
		out := make(map[string]model.Delivery)
		for _, category := range model.RecipientCategories {
			out[category] = model.Delivery{Address: category + "@authority.test", Status: model.DeliverySent, At: time.Now().UTC()}
		}
		return out, nil
	})
}

func testConfig() *config.Configuration {
	return &config.Configuration{
		ProjectName: "FraudLens",
		Redis:       config.RedisConfig{Dns: "localhost:6379"},
		Documents:   config.DocumentConfig{NumberPrefix: "91CRPC", ArtifactBaseURL: "https://files.fraudlens.test/notices/"},
		Authorities: config.AuthorityConfig{Telecom: "telecom@authority.test", Banking: "banking@authority.test", Nodal: "nodal@authority.test"},
		CaseFlow:    config.CaseFlowConfig{LockTTLSec: 30, StatusCacheSec: 60},
	}
}

// newTestFlow wires a CaseFlow over the in-memory store and a miniredis server.
func newTestFlow(t *testing.T, opts ...Option) (*CaseFlow, *memStore, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	store := newMemStore()
	cf := New(store, client, testConfig(), append([]Option{WithNotifier(okNotifier())}, opts...)...)
	cf.repairWait = 300 * time.Millisecond
	return cf, store, mr
}

var (
	admin    = model.Actor{ID: "adm_1", Role: model.RoleAdmin}
	reporter = model.Actor{ID: "usr_1", Role: model.RoleUser}
	officer  = model.Actor{ID: "pol_1", Role: model.RolePolice}
)
